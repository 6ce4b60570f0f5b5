// simdemo runs a small end-to-end saxpy on the in-memory clsim driver:
// device selection, program build, buffer upload, dispatch, and readback.
package main

import (
	"flag"
	"fmt"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/clsim"
	"github.com/gomlx/gocl/compute"
)

var (
	flagN     = flag.Int("n", 16, "Number of elements")
	flagAlpha = flag.Float64("alpha", 2.0, "Scalar multiplier for saxpy")
)

const source = `
__kernel void saxpy(const float a, __global const float *x, __global float *y) {
	int i = get_global_id(0);
	y[i] = a*x[i] + y[i];
}
`

func main() {
	klog.InitFlags(flag.CommandLine)
	flag.Parse()

	sim := clsim.New(
		clsim.PlatformConfig{
			Name:   "clsim demo platform",
			Vendor: "clsim",
			Devices: []clsim.DeviceConfig{
				{Name: "sim-gpu-0", ComputeUnits: 16, ClockMHz: 1500},
				{Name: "sim-gpu-1", ComputeUnits: 16, ClockMHz: 1500},
			},
		})
	pool := compute.NewDevicePool(sim)

	device := must.M1(compute.NewDevice(pool))
	defer func() { must.M(device.Destroy()) }()
	fmt.Printf("Selected %s (%d compute units × %d MHz)\n",
		device, device.MaxComputeUnits(), device.MaxClockFrequencyMHz())

	program := must.M1(compute.BuildProgram(device, source))
	kernel := must.M1(compute.NewKernel(program, "saxpy"))

	n := *flagN
	x := compute.NewBuffer[float32](device, n)
	y := compute.NewBuffer[float32](device, n)
	for i := 0; i < n; i++ {
		x.Host()[i] = float32(i)
		y.Host()[i] = 1
	}
	must.M1(x.UploadToDevice())
	must.M1(y.UploadToDevice())

	must.M1(kernel.Invoke(compute.MakeDim(1), compute.MakeDim(n), float32(*flagAlpha), x, y))
	must.M1(y.DownloadToHost())
	must.M(device.Wait())

	fmt.Printf("saxpy(a=%g): y = %v\n", *flagAlpha, y.Host())
}

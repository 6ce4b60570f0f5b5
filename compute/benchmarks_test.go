package compute

import (
	"testing"

	"github.com/janpfeifer/must"

	"github.com/gomlx/gocl/clsim"
)

var benchmarkSizes = []int{1, 100, 10_000, 1_000_000}

func newBenchDevice(b *testing.B) *Device {
	b.Helper()
	sim := clsim.NewSingleGPU("clsim bench platform", "sim-gpu-0")
	device := must.M1(NewDevice(NewDevicePool(sim)))
	b.Cleanup(func() { must.M(device.Destroy()) })
	return device
}

func BenchmarkBufferUploadDownload(b *testing.B) {
	device := newBenchDevice(b)
	for _, size := range benchmarkSizes {
		buffer := NewBuffer[float32](device, size)
		must.M1(buffer.UploadToDevice())
		must.M(device.Wait())
		b.Run(fmtSize(size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				must.M1(buffer.UploadToDevice())
				must.M1(buffer.DownloadToHost())
				must.M(device.Wait())
			}
		})
	}
}

func BenchmarkKernelInvoke(b *testing.B) {
	device := newBenchDevice(b)
	program := must.M1(BuildProgram(device, testSource))
	kernel := must.M1(NewKernel(program, "saxpy"))
	for _, size := range benchmarkSizes {
		x := NewBuffer[float32](device, size)
		y := NewBuffer[float32](device, size)
		must.M1(x.UploadToDevice())
		must.M1(y.UploadToDevice())
		must.M(device.Wait())
		b.Run(fmtSize(size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				must.M1(kernel.Invoke(MakeDim(1), MakeDim(size), float32(2), x, y))
				must.M(device.Wait())
			}
		})
	}
}

func fmtSize(size int) string {
	switch {
	case size >= 1_000_000:
		return "1M"
	case size >= 10_000:
		return "10k"
	case size >= 100:
		return "100"
	}
	return "1"
}

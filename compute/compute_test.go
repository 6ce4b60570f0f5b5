package compute

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/gocl/clsim"
)

// Kernel source used across tests: the simulator only looks at the
// declarations, the bodies document intent.
const testSource = `
__kernel void copy(__global const int *src, __global int *dst) {
	int i = get_global_id(0);
	dst[i] = src[i];
}

__kernel void saxpy(const float a, __global const float *x, __global float *y) {
	int i = get_global_id(0);
	y[i] = a*x[i] + y[i];
}

__kernel void sqrtf(__global const float *src, __global float *dst) {
	int i = get_global_id(0);
	dst[i] = sqrt(src[i]);
}

__kernel void block_sum(__global const float *src, __global float *dst, __local float *scratch) {
	int l = get_local_id(0);
	scratch[l] = src[get_global_id(0)];
	barrier(CLK_LOCAL_MEM_FENCE);
	if (l == 0) {
		float sum = 0;
		for (int i = 0; i < get_local_size(0); i++) sum += scratch[i];
		dst[get_group_id(0)] = sum;
	}
}
`

// clsimGPU is a GPU fixture with a fixed score, for tied-best sets.
func clsimGPU(name string) clsim.DeviceConfig {
	return clsim.DeviceConfig{Name: name, Vendor: "clsim", ComputeUnits: 8, ClockMHz: 1000}
}

// hostAddr returns the address of a buffer's host storage.
func hostAddr[T POD](b *Buffer[T]) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.Host()))
}

// newTestPool creates a pool over a single simulated platform with the given
// devices.
func newTestPool(t *testing.T, devices ...clsim.DeviceConfig) *DevicePool {
	t.Helper()
	sim := clsim.New(clsim.PlatformConfig{
		Name:    "clsim test platform",
		Vendor:  "clsim",
		Devices: devices,
	})
	return NewDevicePool(sim)
}

// newTestDevice creates a Device on a fresh single-GPU pool and arranges for
// its destruction.
func newTestDevice(t *testing.T) *Device {
	t.Helper()
	pool := newTestPool(t, clsim.DeviceConfig{Name: "sim-gpu-0", Vendor: "clsim"})
	device, err := NewDevice(pool)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, device.Destroy()) })
	return device
}

// buildTestKernel compiles testSource on the device and returns the named
// kernel.
func buildTestKernel(t *testing.T, device *Device, name string) *Kernel {
	t.Helper()
	program, err := BuildProgram(device, testSource)
	require.NoError(t, err)
	kernel, err := NewKernel(program, name)
	require.NoError(t, err)
	return kernel
}

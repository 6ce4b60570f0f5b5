package compute

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/gocl/clsim"
)

func TestDeviceAccessors(t *testing.T) {
	pool := newTestPool(t, clsim.DeviceConfig{
		Name:             "sim-gpu",
		Vendor:           "clsim",
		ComputeUnits:     12,
		ClockMHz:         1800,
		MaxWorkItemSizes: [3]int{256, 256, 64},
		LocalMemSize:     32 << 10,
	})
	device, err := NewDevice(pool)
	require.NoError(t, err)
	defer func() { require.NoError(t, device.Destroy()) }()

	require.Equal(t, "sim-gpu", device.Name())
	require.Equal(t, "clsim", device.Vendor())
	require.Equal(t, 12, device.MaxComputeUnits())
	require.Equal(t, 1800, device.MaxClockFrequencyMHz())
	require.Equal(t, 32<<10, device.LocalMemSize())
	require.NotNil(t, device.Context())
	require.NotNil(t, device.Queue())

	limits := device.MaxLocalWorkItems()
	require.Equal(t, 3, limits.Rank())
	require.Equal(t, [3]int{256, 256, 64}, limits.Array())

	// Clamping a local shape against the limits keeps the shape's rank.
	local := MakeDim(1024).Min(limits)
	require.Equal(t, 1, local.Rank())
	require.Equal(t, 256, local.X)
}

func TestDeviceWait(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBufferFromSlice(device, []int32{1, 2, 3, 4})

	_, err := buffer.UploadToDevice()
	require.NoError(t, err)
	_, err = buffer.DownloadToHost()
	require.NoError(t, err)
	require.NoError(t, device.Wait())

	// Wait drained and released the tokens; waiting again is a no-op.
	require.NoError(t, device.Wait())
}

func TestDeviceWaitOnToken(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBufferFromSlice(device, []float32{1, 2, 3})

	// The token returned by one operation can be awaited on its own,
	// without draining the whole queue.
	token, err := buffer.UploadToDevice()
	require.NoError(t, err)
	require.NoError(t, token.Await())
}

func TestDeviceDestroy(t *testing.T) {
	pool := newTestPool(t, clsim.DeviceConfig{Name: "sim-gpu-0"})
	device, err := NewDevice(pool)
	require.NoError(t, err)

	require.NoError(t, device.Destroy())
	require.Error(t, device.Wait())
	// Destroying twice is a no-op.
	require.NoError(t, device.Destroy())
}

// Two devices tied at the top power score: constructing two Devices in
// sequence yields two distinct physical bindings.
func TestTwoTiedDevicesBindDistinct(t *testing.T) {
	pool := newTestPool(t,
		clsim.DeviceConfig{Name: "gpu-a", ComputeUnits: 8, ClockMHz: 1000},
		clsim.DeviceConfig{Name: "gpu-b", ComputeUnits: 8, ClockMHz: 1000},
	)
	first, err := NewDevice(pool)
	require.NoError(t, err)
	second, err := NewDevice(pool)
	require.NoError(t, err)

	require.NotEqual(t, first.Name(), second.Name())
	require.NotSame(t, first.Physical(), second.Physical())

	require.NoError(t, first.Destroy())
	require.NoError(t, second.Destroy())
}

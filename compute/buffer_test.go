package compute

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestBufferRoundTrip(t *testing.T) {
	device := newTestDevice(t)
	for _, count := range []int{0, 1, 5, 64, 1000} {
		values := make([]float64, count)
		for i := range values {
			values[i] = float64(i) * 0.5
		}
		buffer := NewBufferFromSlice(device, values)
		_, err := buffer.UploadToDevice()
		require.NoError(t, err)

		// Clobber the host side so the download is observable.
		for i := range buffer.Host() {
			buffer.Host()[i] = -1
		}
		_, err = buffer.DownloadToHost()
		require.NoError(t, err)
		require.NoError(t, device.Wait())
		require.Equal(t, values, append([]float64{}, buffer.Host()...), "count=%d", count)
		require.NoError(t, buffer.Destroy())
	}
}

func TestBufferHalfPrecisionRoundTrip(t *testing.T) {
	device := newTestDevice(t)
	values := []float16.Float16{
		float16.Fromfloat32(0.5),
		float16.Fromfloat32(-2),
		float16.Fromfloat32(65504),
	}
	buffer := NewBufferFromSlice(device, values)
	_, err := buffer.UploadToDevice()
	require.NoError(t, err)
	clear(buffer.Host())
	_, err = buffer.DownloadToHost()
	require.NoError(t, err)
	require.NoError(t, device.Wait())
	require.Equal(t, values, buffer.Host())
}

func TestBufferDeviceCapacityMonotonic(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBuffer[int32](device, 0)

	maxSeen := 0
	lastCapacity := 0
	for _, count := range []int{4, 2, 8, 3, 8, 16, 1} {
		buffer.Resize(count)
		_, err := buffer.UploadToDevice()
		require.NoError(t, err)
		require.NoError(t, device.Wait())

		if count*4 > maxSeen {
			maxSeen = count * 4
		}
		capacity := buffer.DeviceBytes()
		require.GreaterOrEqual(t, capacity, maxSeen,
			"device capacity must cover the maximum size seen so far")
		require.GreaterOrEqual(t, capacity, lastCapacity, "device capacity must never shrink")
		lastCapacity = capacity
	}
}

func TestBufferHostAlignment(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBuffer[float32](device, 17)
	require.Equal(t, 17, buffer.Len())
	require.Equal(t, 17*4, buffer.SizeBytes())
	require.Zero(t, uintptr(hostAddr(buffer))%BufferAlignment)
}

func TestBufferResize(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBufferFromSlice(device, []int32{1, 2, 3, 4})

	buffer.Resize(2)
	require.Equal(t, []int32{1, 2}, buffer.Host())

	// Growing back within capacity re-zeroes the exposed tail.
	buffer.Resize(4)
	require.Equal(t, []int32{1, 2, 0, 0}, buffer.Host())

	// Growing past capacity reallocates, preserving the prefix.
	buffer.Host()[3] = 9
	buffer.Resize(100)
	require.Equal(t, int32(1), buffer.Host()[0])
	require.Equal(t, int32(9), buffer.Host()[3])
	require.Equal(t, int32(0), buffer.Host()[99])
}

func TestBufferCopyDeviceRange(t *testing.T) {
	device := newTestDevice(t)
	src := NewBufferFromSlice(device, []int32{10, 11, 12, 13, 14, 15, 16, 17})
	dst := NewBuffer[int32](device, 8)
	_, err := src.UploadToDevice()
	require.NoError(t, err)
	_, err = dst.UploadToDevice()
	require.NoError(t, err)

	// dst[2:6] = src[4:8], entirely on the device.
	_, err = src.CopyDeviceRange(dst, 2, 4, 4)
	require.NoError(t, err)
	_, err = dst.DownloadToHost()
	require.NoError(t, err)
	require.NoError(t, device.Wait())
	require.Equal(t, []int32{0, 0, 14, 15, 16, 17, 0, 0}, dst.Host())
}

func TestBufferCopyDeviceRangeViolations(t *testing.T) {
	device := newTestDevice(t)
	src := NewBufferFromSlice(device, []int32{1, 2, 3, 4})
	dst := NewBuffer[int32](device, 2)

	// No device storage yet.
	_, err := src.CopyDeviceRange(dst, 0, 0, 2)
	require.ErrorContains(t, err, "device storage")

	_, err = src.UploadToDevice()
	require.NoError(t, err)
	_, err = dst.UploadToDevice()
	require.NoError(t, err)
	require.NoError(t, device.Wait())

	var rangeErr *RangeError
	_, err = src.CopyDeviceRange(dst, 0, 2, 3) // source [2, 5) over capacity 4
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "copy source", rangeErr.Op)

	_, err = src.CopyDeviceRange(dst, 1, 0, 2) // destination [1, 3) over capacity 2
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "copy destination", rangeErr.Op)

	_, err = src.CopyDeviceRange(dst, 0, 0, -1)
	require.ErrorAs(t, err, &rangeErr)
}

func TestBufferCopyAcrossDevices(t *testing.T) {
	pool := newTestPool(t,
		clsimGPU("gpu-a"),
		clsimGPU("gpu-b"),
	)
	first, err := NewDevice(pool)
	require.NoError(t, err)
	second, err := NewDevice(pool)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, first.Destroy())
		require.NoError(t, second.Destroy())
	}()

	src := NewBufferFromSlice(first, []int32{1, 2})
	dst := NewBuffer[int32](second, 2)
	_, err = src.UploadToDevice()
	require.NoError(t, err)
	_, err = dst.UploadToDevice()
	require.NoError(t, err)

	_, err = src.CopyDeviceRange(dst, 0, 0, 2)
	require.ErrorContains(t, err, "across Devices")
}

func TestBufferFillDeviceRange(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBuffer[float32](device, 6)
	_, err := buffer.UploadToDevice()
	require.NoError(t, err)

	_, err = buffer.FillDeviceRange(2.5, 3, 2)
	require.NoError(t, err)
	_, err = buffer.DownloadToHost()
	require.NoError(t, err)
	require.NoError(t, device.Wait())
	require.Equal(t, []float32{0, 0, 2.5, 2.5, 2.5, 0}, buffer.Host())

	var rangeErr *RangeError
	_, err = buffer.FillDeviceRange(1, 3, 4) // [4, 7) over capacity 6
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, "fill", rangeErr.Op)

	_, err = buffer.FillDeviceRange(1, 0, 0) // empty fill is a contract violation
	require.ErrorAs(t, err, &rangeErr)
}

func TestBufferRefCount(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBufferFromSlice(device, []int32{1, 2, 3})
	require.Zero(t, buffer.RefCount(), "no device storage allocated yet")

	_, err := buffer.UploadToDevice()
	require.NoError(t, err)
	require.NoError(t, device.Wait())
	require.Equal(t, 1, buffer.RefCount())

	require.NoError(t, buffer.Destroy())
	require.Zero(t, buffer.RefCount())
}

func TestBufferDownloadBeforeUpload(t *testing.T) {
	device := newTestDevice(t)
	buffer := NewBuffer[int32](device, 4)
	_, err := buffer.DownloadToHost()
	require.ErrorContains(t, err, "no device storage")
}

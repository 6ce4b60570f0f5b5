package compute

import (
	"runtime"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/cl"
)

// POD constrains buffer elements to the fixed-width plain-old-data types
// the layer supports. The ~uint16 term also admits half-precision values
// stored as float16.Float16.
type POD interface {
	~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func sizeOf[T POD]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Buffer is a paired host/device memory region on one Device.
//
// Host storage exists from construction (64-byte aligned, see
// AlignedAlloc); device storage is created lazily on the first upload,
// dispatch, copy, or fill that needs it, and only ever grows: when the
// logical size outgrows the device allocation it is replaced by a larger
// one, never shrunk.
type Buffer[T POD] struct {
	device *Device
	host   []T
	mem    cl.Mem
}

// NewBuffer creates a buffer of n zero elements on the device. Device
// storage is not allocated yet.
func NewBuffer[T POD](device *Device, n int) *Buffer[T] {
	if n < 0 {
		exceptions.Panicf("compute.NewBuffer: negative element count %d", n)
	}
	b := &Buffer[T]{device: device, host: alignedElems[T](n)}
	registerBufferFinalizer(b)
	return b
}

// NewBufferFromSlice creates a buffer holding a copy of values. Device
// storage is not allocated yet.
func NewBufferFromSlice[T POD](device *Device, values []T) *Buffer[T] {
	b := NewBuffer[T](device, len(values))
	copy(b.host, values)
	return b
}

func alignedElems[T POD](n int) []T {
	raw := AlignedAlloc(n*sizeOf[T](), BufferAlignment)
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(raw))), n)
}

func registerBufferFinalizer[T POD](b *Buffer[T]) {
	runtime.SetFinalizer(b, func(b *Buffer[T]) {
		if err := b.Destroy(); err != nil {
			klog.Errorf("Buffer.Destroy failed: %v", err)
		}
	})
}

// Len returns the element count.
func (b *Buffer[T]) Len() int { return len(b.host) }

// SizeBytes returns the logical byte size (element count × element size).
func (b *Buffer[T]) SizeBytes() int { return len(b.host) * sizeOf[T]() }

// Host returns the host-resident storage. The slice is valid until the next
// Resize or Destroy.
func (b *Buffer[T]) Host() []T { return b.host }

// Resize changes the logical element count, preserving the common prefix of
// the host data. Device storage is untouched until the next operation that
// syncs it.
func (b *Buffer[T]) Resize(n int) {
	if n < 0 {
		exceptions.Panicf("compute.Buffer.Resize: negative element count %d", n)
	}
	if n <= cap(b.host) {
		grown := b.host[:n]
		// Zero anything exposed by growing within capacity.
		for i := len(b.host); i < n; i++ {
			var zero T
			grown[i] = zero
		}
		b.host = grown
		return
	}
	host := alignedElems[T](n)
	copy(host, b.host)
	b.host = host
}

// hostBytes views the host storage as raw bytes.
func (b *Buffer[T]) hostBytes() []byte {
	if len(b.host) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b.host))), b.SizeBytes())
}

// DeviceBytes returns the device storage capacity in bytes, 0 if it hasn't
// been allocated yet.
func (b *Buffer[T]) DeviceBytes() int {
	if b.mem == nil {
		return 0
	}
	return b.mem.Size()
}

// deviceElems is the device storage capacity in elements.
func (b *Buffer[T]) deviceElems() int { return b.DeviceBytes() / sizeOf[T]() }

// RefCount returns the driver's reference count of the device storage, 0 if
// none is allocated.
func (b *Buffer[T]) RefCount() int {
	if b.mem == nil {
		return 0
	}
	return b.mem.RefCount()
}

// syncDeviceStorage makes sure device storage covers the logical size:
// nothing happens when the existing allocation is large enough, otherwise it
// is released and replaced by one sized to the current logical size.
// Capacity never shrinks.
//
// Growth does not drain the queue: an operation still in flight against the
// old allocation keeps it alive through the driver's reference counting, but
// if its results matter, the caller must Device.Wait before growing.
func (b *Buffer[T]) syncDeviceStorage() error {
	if b.device == nil {
		return errors.New("Buffer already destroyed")
	}
	need := b.SizeBytes()
	if b.mem != nil && b.mem.Size() >= need {
		return nil
	}
	if b.mem != nil {
		if err := b.mem.Release(); err != nil {
			klog.Errorf("Buffer: releasing outgrown device storage: %v", err)
		}
	}
	mem, err := b.device.Context().NewBuffer(need)
	if err != nil {
		b.mem = nil
		return errors.WithMessagef(err, "failed to allocate %d bytes of device storage on %s",
			need, b.device)
	}
	b.mem = mem
	return nil
}

// bindArg implements deviceArg: a Buffer argument binds its device storage
// handle, forcing the lazy allocation if needed. No data is transferred.
func (b *Buffer[T]) bindArg(kernel cl.Kernel, index int) error {
	if err := b.syncDeviceStorage(); err != nil {
		return err
	}
	return kernel.SetArgMem(index, b.mem)
}

// UploadToDevice sizes the device storage and asynchronously writes the host
// contents to it. It returns before the transfer completes; the host storage
// must not be mutated until the returned token (or Device.Wait) reports
// completion.
func (b *Buffer[T]) UploadToDevice() (cl.Event, error) {
	if err := b.syncDeviceStorage(); err != nil {
		return nil, err
	}
	ev, err := b.device.Queue().EnqueueWrite(b.mem, 0, b.hostBytes())
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to upload %d bytes to %s", b.SizeBytes(), b.device)
	}
	b.device.addEvent(ev)
	return ev, nil
}

// DownloadToHost asynchronously reads the device storage back into the host
// storage. The host contents are valid only after the returned token (or
// Device.Wait) reports completion.
func (b *Buffer[T]) DownloadToHost() (cl.Event, error) {
	if b.device == nil {
		return nil, errors.New("Buffer already destroyed")
	}
	if b.mem == nil {
		return nil, errors.New("Buffer has no device storage to download; upload or dispatch first")
	}
	if b.DeviceBytes() < b.SizeBytes() {
		return nil, errors.Errorf("device storage holds %d bytes but logical size is %d; upload after growing",
			b.DeviceBytes(), b.SizeBytes())
	}
	ev, err := b.device.Queue().EnqueueRead(b.mem, 0, b.hostBytes())
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to download %d bytes from %s", b.SizeBytes(), b.device)
	}
	b.device.addEvent(ev)
	return ev, nil
}

// CopyDeviceRange enqueues a device-to-device copy of n elements from b at
// srcOffset into dst at dstOffset, entirely on the accelerator. Both buffers
// must already have device storage covering the requested ranges;
// out-of-range requests fail with a *RangeError, they are never clamped.
func (b *Buffer[T]) CopyDeviceRange(dst *Buffer[T], dstOffset, srcOffset, n int) (cl.Event, error) {
	if b.device == nil || dst.device == nil {
		return nil, errors.New("Buffer already destroyed")
	}
	if dst.device != b.device {
		return nil, errors.Errorf("device-to-device copy across Devices (%s to %s) is not supported",
			b.device, dst.device)
	}
	if b.mem == nil || dst.mem == nil {
		return nil, errors.New("both buffers need device storage before a device copy; upload or sync first")
	}
	if n < 0 || srcOffset < 0 || srcOffset+n > b.deviceElems() {
		return nil, &RangeError{Op: "copy source", Offset: srcOffset, Count: n, Capacity: b.deviceElems()}
	}
	if dstOffset < 0 || dstOffset+n > dst.deviceElems() {
		return nil, &RangeError{Op: "copy destination", Offset: dstOffset, Count: n, Capacity: dst.deviceElems()}
	}
	elem := sizeOf[T]()
	ev, err := b.device.Queue().EnqueueCopy(b.mem, dst.mem, srcOffset*elem, dstOffset*elem, n*elem)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to enqueue device copy of %d elements", n)
	}
	b.device.addEvent(ev)
	return ev, nil
}

// FillDeviceRange enqueues a device-side fill of count elements starting at
// offset with the repeated value. Same range contract as CopyDeviceRange.
func (b *Buffer[T]) FillDeviceRange(value T, count, offset int) (cl.Event, error) {
	if b.device == nil {
		return nil, errors.New("Buffer already destroyed")
	}
	if b.mem == nil {
		return nil, errors.New("Buffer needs device storage before a device fill; upload or sync first")
	}
	if count <= 0 || offset < 0 || offset+count > b.deviceElems() {
		return nil, &RangeError{Op: "fill", Offset: offset, Count: count, Capacity: b.deviceElems()}
	}
	elem := sizeOf[T]()
	pattern := make([]byte, elem)
	*(*T)(unsafe.Pointer(unsafe.SliceData(pattern))) = value
	ev, err := b.device.Queue().EnqueueFill(b.mem, pattern, offset*elem, count*elem)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to enqueue device fill of %d elements", count)
	}
	b.device.addEvent(ev)
	return ev, nil
}

// Destroy releases the device storage. The host storage is ordinary Go
// memory and follows normal lifetime rules.
func (b *Buffer[T]) Destroy() error {
	if b.device == nil {
		return nil
	}
	var err error
	if b.mem != nil {
		err = b.mem.Release()
		b.mem = nil
	}
	b.device = nil
	b.host = nil
	return err
}

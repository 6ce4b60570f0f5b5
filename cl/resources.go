package cl

// Context scopes memory, programs, and queues to one device.
type Context interface {
	// NewQueue creates an in-order command queue on the context's device.
	NewQueue() (Queue, error)

	// NewBuffer allocates sizeBytes of device memory.
	NewBuffer(sizeBytes int) (Mem, error)

	// BuildProgram compiles kernel source text into an executable module.
	// On a compilation failure the returned error is a *BuildError carrying
	// the full diagnostic log.
	BuildProgram(source string) (Program, error)

	Release() error
}

// Queue is an in-order submission channel. All Enqueue methods are
// asynchronous: they return as soon as the operation is queued, together with
// an Event that completes when the operation has executed. Operations on one
// queue execute in submission order.
type Queue interface {
	// EnqueueRead copies len(dst) bytes from device memory at srcOffset into
	// dst. The dst slice must stay valid until the returned Event completes.
	EnqueueRead(src Mem, srcOffset int, dst []byte) (Event, error)

	// EnqueueWrite copies len(src) bytes from src into device memory at
	// dstOffset. The src slice must stay valid until the Event completes.
	EnqueueWrite(dst Mem, dstOffset int, src []byte) (Event, error)

	// EnqueueCopy copies n bytes between two device allocations without
	// touching the host.
	EnqueueCopy(src, dst Mem, srcOffset, dstOffset, n int) (Event, error)

	// EnqueueFill writes n bytes of the repeated pattern into dst starting at
	// offset. n must be a multiple of len(pattern).
	EnqueueFill(dst Mem, pattern []byte, offset, n int) (Event, error)

	// EnqueueNDRange launches kernel over an index space of workDim
	// dimensions (1 to 3). Only the first workDim components of global and
	// local are meaningful.
	EnqueueNDRange(kernel Kernel, workDim int, global, local [3]int) (Event, error)

	// Flush submits queued work to the device without waiting.
	Flush() error

	// Finish blocks until every operation enqueued so far has completed.
	Finish() error

	Release() error
}

// Mem is a device memory allocation.
type Mem interface {
	// Size returns the allocated byte size.
	Size() int

	// RefCount returns the driver's reference count for the allocation,
	// including references held by in-flight operations.
	RefCount() int

	Release() error
}

// Program is a built executable module.
type Program interface {
	// NewKernel resolves a named entry point in the module.
	NewKernel(name string) (Kernel, error)

	Release() error
}

// Kernel is one entry point with positional argument slots.
type Kernel interface {
	// SetArgMem binds a device memory handle to the slot.
	SetArgMem(index int, m Mem) error

	// SetArgLocal reserves sizeBytes of device-local scratch memory for the
	// slot. No data is transferred.
	SetArgLocal(index int, sizeBytes int) error

	// SetArgValue binds a fixed-size value, copied at set time.
	SetArgValue(index int, value []byte) error

	Release() error
}

// Event is a completion token for one enqueued operation.
type Event interface {
	// Await blocks until the operation has completed and returns its error,
	// if any.
	Await() error

	Release() error
}

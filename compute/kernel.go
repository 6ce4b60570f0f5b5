package compute

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/cl"
)

// Kernel is a callable bound to one entry point of a Program.
type Kernel struct {
	program *Program
	kernel  cl.Kernel
	name    string
}

// NewKernel resolves the named entry point in a built program. Failure to
// resolve is unrecoverable for the same reason a build failure is.
func NewKernel(program *Program, name string) (*Kernel, error) {
	if program == nil || program.program == nil {
		return nil, errors.New("NewKernel on nil or destroyed Program")
	}
	kernel, err := program.program.NewKernel(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create kernel %q from %s", name, program)
	}
	k := &Kernel{program: program, kernel: kernel, name: name}
	runtime.SetFinalizer(k, func(k *Kernel) {
		if err := k.Destroy(); err != nil {
			klog.Errorf("Kernel.Destroy failed: %v", err)
		}
	})
	return k, nil
}

// deviceArg is implemented by *Buffer and LocalBuffer: arguments that bind
// to a slot as device memory rather than by value.
type deviceArg interface {
	bindArg(kernel cl.Kernel, index int) error
}

// scalarBytes encodes a supported fixed-width numeric scalar into its
// device byte representation (little-endian, as every supported device).
// The bool result reports whether the type is supported.
func scalarBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case int16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b, true
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b, true
	case float16.Float16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return b, true
	case int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b, true
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b, true
	case int64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return b, true
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b, true
	case float32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
		return b, true
	case float64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return b, true
	}
	return nil, false
}

// Invoke binds the arguments to their positional slots and enqueues the
// kernel over the given index space, returning a completion token. It does
// not wait: completion is observed through the token or Device.Wait.
//
// Argument binding is type-directed:
//   - a *Buffer binds its device storage handle, forcing the lazy device
//     allocation if it hasn't happened yet (no data transfer);
//   - a LocalBuffer reserves device-local scratch of its byte size;
//   - a fixed-width numeric scalar (int16, uint16, int32, uint32, int64,
//     uint64, float32, float64, float16.Float16) is bound by value.
//
// Anything else fails with a *BindError before any slot is mutated, and a
// local/global rank mismatch fails with a *ShapeMismatchError before
// anything is enqueued. Both are recoverable: the caller may retry with
// corrected arguments.
func (k *Kernel) Invoke(local, global Dim, args ...any) (cl.Event, error) {
	if k.kernel == nil {
		return nil, errors.New("Invoke on destroyed Kernel")
	}
	if local.Rank() != global.Rank() {
		return nil, &ShapeMismatchError{Local: local, Global: global}
	}

	// Validate every argument before touching any slot, so a bad argument
	// list is rejected atomically.
	binders := make([]func() error, len(args))
	for index, arg := range args {
		switch v := arg.(type) {
		case deviceArg:
			binders[index] = func() error { return v.bindArg(k.kernel, index) }
		default:
			b, ok := scalarBytes(arg)
			if !ok {
				return nil, &BindError{Index: index, Value: arg}
			}
			binders[index] = func() error { return k.kernel.SetArgValue(index, b) }
		}
	}
	for index, bind := range binders {
		if err := bind(); err != nil {
			return nil, errors.WithMessagef(err, "failed to bind argument %d of kernel %q", index, k.name)
		}
	}

	device := k.program.device
	ev, err := device.Queue().EnqueueNDRange(k.kernel, global.Rank(), global.Array(), local.Array())
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to enqueue kernel %q with local=%s global=%s",
			k.name, local, global)
	}
	device.addEvent(ev)
	return ev, nil
}

// Name returns the entry-point name.
func (k *Kernel) Name() string { return k.name }

// String implements fmt.Stringer.
func (k *Kernel) String() string {
	if k.kernel == nil {
		return "Kernel[destroyed]"
	}
	return fmt.Sprintf("Kernel[%q on %s]", k.name, k.program.device)
}

// Destroy releases the entry handle. Work already enqueued is unaffected:
// in-flight execution is owned by the queue, not the Kernel.
func (k *Kernel) Destroy() error {
	if k.kernel == nil {
		return nil
	}
	err := k.kernel.Release()
	k.kernel = nil
	return err
}

package clsim

import (
	"encoding/binary"
	"math"
	"sync"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// ArgKind tags one bound kernel argument.
type ArgKind int

const (
	// ArgMem is a device memory handle.
	ArgMem ArgKind = iota
	// ArgLocal is device-local scratch, sized at dispatch.
	ArgLocal
	// ArgValue is a by-value scalar.
	ArgValue
)

// Arg is one argument slot as seen by a kernel implementation.
type Arg struct {
	Kind ArgKind

	// LocalSize is the requested scratch byte size for ArgLocal.
	LocalSize int

	mem   *mem
	value []byte // scalar bytes, or materialized scratch for ArgLocal
}

// Bytes returns the argument's backing storage: device memory for ArgMem,
// scratch for ArgLocal, the copied value for ArgValue.
func (a *Arg) Bytes() []byte {
	if a.Kind == ArgMem {
		return a.mem.data()
	}
	return a.value
}

// Float32s views the argument storage as a float32 slice.
func (a *Arg) Float32s() []float32 {
	b := a.Bytes()
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/4)
}

// Int32s views the argument storage as an int32 slice.
func (a *Arg) Int32s() []int32 {
	b := a.Bytes()
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/4)
}

// Float32 decodes an ArgValue scalar.
func (a *Arg) Float32() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(a.value))
}

// Int32 decodes an ArgValue scalar.
func (a *Arg) Int32() int32 {
	return int32(binary.LittleEndian.Uint32(a.value))
}

// Invocation is one kernel dispatch: the bound arguments and the index space.
type Invocation struct {
	Args    []*Arg
	WorkDim int
	Global  [3]int
	Local   [3]int
}

// Items returns the total number of work items in the global index space.
func (inv *Invocation) Items() int {
	n := 1
	for dim := 0; dim < inv.WorkDim; dim++ {
		n *= inv.Global[dim]
	}
	return n
}

// GroupItems returns the number of work items per work group.
func (inv *Invocation) GroupItems() int {
	n := 1
	for dim := 0; dim < inv.WorkDim; dim++ {
		n *= inv.Local[dim]
	}
	return n
}

// KernelFunc executes one whole dispatch of a simulated kernel. It is handed
// the full index space rather than one work item at a time; implementations
// loop as real kernels would be looped by the device.
type KernelFunc func(inv *Invocation) error

var (
	kernelLibMu sync.Mutex
	kernelLib   = map[string]KernelFunc{}
)

// RegisterKernel adds (or replaces) a kernel implementation under the given
// entry-point name. Programs whose source declares the name will dispatch to
// fn.
func RegisterKernel(name string, fn KernelFunc) {
	kernelLibMu.Lock()
	defer kernelLibMu.Unlock()
	kernelLib[name] = fn
}

func lookupKernel(name string) (KernelFunc, bool) {
	kernelLibMu.Lock()
	defer kernelLibMu.Unlock()
	fn, ok := kernelLib[name]
	return fn, ok
}

func wantArgs(inv *Invocation, n int) error {
	if len(inv.Args) != n {
		return errors.Errorf("expected %d arguments, got %d", n, len(inv.Args))
	}
	return nil
}

// Builtin kernels. Tests and the demo declare these by name in their program
// source.
func init() {
	// copy(src, dst): element-wise identity copy. Element size is inferred
	// from the source allocation and the index-space size.
	RegisterKernel("copy", func(inv *Invocation) error {
		if err := wantArgs(inv, 2); err != nil {
			return err
		}
		src, dst := inv.Args[0].Bytes(), inv.Args[1].Bytes()
		items := inv.Items()
		if items == 0 {
			return nil
		}
		elem := len(src) / items
		n := items * elem
		if n > len(dst) {
			return errors.Errorf("copy: destination size %d < %d", len(dst), n)
		}
		copy(dst[:n], src)
		return nil
	})

	// saxpy(a, x, y): y[i] = a*x[i] + y[i] over float32.
	RegisterKernel("saxpy", func(inv *Invocation) error {
		if err := wantArgs(inv, 3); err != nil {
			return err
		}
		a := inv.Args[0].Float32()
		x, y := inv.Args[1].Float32s(), inv.Args[2].Float32s()
		items := inv.Items()
		if items > len(x) || items > len(y) {
			return errors.Errorf("saxpy: %d items over x[%d], y[%d]", items, len(x), len(y))
		}
		for i := 0; i < items; i++ {
			y[i] = a*x[i] + y[i]
		}
		return nil
	})

	// sqrtf(src, dst): dst[i] = sqrt(src[i]) over float32.
	RegisterKernel("sqrtf", func(inv *Invocation) error {
		if err := wantArgs(inv, 2); err != nil {
			return err
		}
		src, dst := inv.Args[0].Float32s(), inv.Args[1].Float32s()
		items := inv.Items()
		if items > len(src) || items > len(dst) {
			return errors.Errorf("sqrtf: %d items over src[%d], dst[%d]", items, len(src), len(dst))
		}
		for i := 0; i < items; i++ {
			dst[i] = math32.Sqrt(src[i])
		}
		return nil
	})

	// fill_index(dst): dst[i] = i over int32.
	RegisterKernel("fill_index", func(inv *Invocation) error {
		if err := wantArgs(inv, 1); err != nil {
			return err
		}
		dst := inv.Args[0].Int32s()
		items := inv.Items()
		if items > len(dst) {
			return errors.Errorf("fill_index: %d items over dst[%d]", items, len(dst))
		}
		for i := 0; i < items; i++ {
			dst[i] = int32(i)
		}
		return nil
	})

	// block_sum(src, dst, scratch): per-work-group float32 reduction, with
	// the partial sums staged through the local scratch argument the way a
	// real tree reduction would.
	RegisterKernel("block_sum", func(inv *Invocation) error {
		if err := wantArgs(inv, 3); err != nil {
			return err
		}
		if inv.Args[2].Kind != ArgLocal {
			return errors.New("block_sum: argument 2 must be local scratch")
		}
		src, dst := inv.Args[0].Float32s(), inv.Args[1].Float32s()
		scratch := inv.Args[2].Float32s()
		items, group := inv.Items(), inv.GroupItems()
		if group == 0 || group > len(scratch) {
			return errors.Errorf("block_sum: group size %d over scratch[%d]", group, len(scratch))
		}
		if items > len(src) || items/group > len(dst) {
			return errors.Errorf("block_sum: %d items over src[%d], dst[%d]", items, len(src), len(dst))
		}
		for g := 0; g < items/group; g++ {
			for l := 0; l < group; l++ {
				scratch[l] = src[g*group+l]
			}
			var sum float32
			for l := 0; l < group; l++ {
				sum += scratch[l]
			}
			dst[g] = sum
		}
		return nil
	})
}

package compute

import (
	"fmt"

	"github.com/pkg/errors"
)

// Bootstrap failures. These are unrecoverable for the process: there is no
// fallback path when the machine has no usable accelerator. They are still
// returned as errors (not aborts) so the caller decides how to terminate.
var (
	// ErrNoPlatforms reports that the compute runtime found no platforms.
	ErrNoPlatforms = errors.New("no compute platforms visible")

	// ErrNoEligibleDevice reports that platform selection or device
	// enumeration produced no usable device.
	ErrNoEligibleDevice = errors.New("no eligible compute device")
)

// ShapeMismatchError reports a dispatch whose local and global shapes have
// different ranks. It is returned before anything is enqueued.
type ShapeMismatchError struct {
	Local, Global Dim
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("local shape %s has rank %d but global shape %s has rank %d",
		e.Local, e.Local.Rank(), e.Global, e.Global.Rank())
}

// BindError reports a kernel argument of a type the binder doesn't support.
// It is returned before any argument slot is mutated and before anything is
// enqueued, so the caller can retry with corrected arguments.
type BindError struct {
	// Index is the positional argument slot.
	Index int

	// Value is the offending argument.
	Value any
}

func (e *BindError) Error() string {
	return fmt.Sprintf("unsupported kernel argument %v (%T) at index %d: "+
		"want *Buffer, LocalBuffer, or a fixed-width numeric scalar", e.Value, e.Value, e.Index)
}

// RangeError reports an out-of-range device copy or fill request. Ranges are
// validated against device storage capacity and rejected, never clamped.
type RangeError struct {
	// Op is the operation that was rejected ("copy source", "copy
	// destination", "fill").
	Op string

	// Offset and Count delimit the requested element range.
	Offset, Count int

	// Capacity is the device storage capacity, in elements.
	Capacity int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s range [%d, %d) out of device storage capacity of %d elements",
		e.Op, e.Offset, e.Offset+e.Count, e.Capacity)
}

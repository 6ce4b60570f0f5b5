package compute

import (
	"github.com/gomlx/exceptions"

	"github.com/gomlx/gocl/cl"
)

// LocalBuffer requests device-local scratch memory for one kernel argument
// slot. It has no host storage and no persistent device allocation: the
// scratch is sized from it at dispatch time, with no data transfer.
type LocalBuffer[T POD] struct {
	elementCount int
}

// MakeLocalBuffer describes elementCount elements of device-local scratch.
func MakeLocalBuffer[T POD](elementCount int) LocalBuffer[T] {
	if elementCount <= 0 {
		exceptions.Panicf("compute.MakeLocalBuffer: element count must be positive, got %d", elementCount)
	}
	return LocalBuffer[T]{elementCount: elementCount}
}

// Len returns the requested element count.
func (l LocalBuffer[T]) Len() int { return l.elementCount }

// SizeBytes returns the requested scratch size in bytes.
func (l LocalBuffer[T]) SizeBytes() int { return l.elementCount * sizeOf[T]() }

// bindArg implements deviceArg: reserve scratch of the requested byte size.
func (l LocalBuffer[T]) bindArg(kernel cl.Kernel, index int) error {
	return kernel.SetArgLocal(index, l.SizeBytes())
}

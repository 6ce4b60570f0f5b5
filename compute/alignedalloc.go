package compute

// This file defines AlignedAlloc, modelled after mm_malloc. Buffer host
// storage is allocated through it so transfers hand the driver aligned
// addresses.

import (
	"fmt"
	"unsafe"
)

// BufferAlignment is the byte alignment of Buffer host storage.
const BufferAlignment = 64

// AlignedAlloc returns a zeroed byte slice of the given size whose first
// element sits at an address that is a multiple of alignment. The slice is
// ordinary garbage-collected memory; there is nothing to free.
func AlignedAlloc(size, alignment int) []byte {
	if alignment < 8 || alignment%8 != 0 {
		panic(fmt.Sprintf("AlignedAlloc: alignment must be a multiple of 8, got %d", alignment))
	}

	// Allocate extra to allow re-slicing to an aligned start.
	buf := make([]byte, size+alignment)
	offset := int(uintptr(unsafe.Pointer(unsafe.SliceData(buf))) % uintptr(alignment))
	if offset != 0 {
		offset = alignment - offset
	}
	return buf[offset : offset+size : offset+size]
}

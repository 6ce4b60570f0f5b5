package compute

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Dim describes a 1 to 3 dimensional index-space shape, used for the local
// and global extents of a kernel dispatch.
//
// The zero value has rank 0 and is not dispatchable.
type Dim struct {
	X, Y, Z int

	rank int
}

// MakeDim builds a Dim from 1 to 3 sizes. Unspecified trailing components
// are 1, and the rank is the number of sizes given: MakeDim(4) is a
// one-dimensional shape even though 4 > 1.
//
// It panics if given no sizes or more than 3.
func MakeDim(sizes ...int) Dim {
	if len(sizes) < 1 || len(sizes) > 3 {
		exceptions.Panicf("compute.MakeDim: takes 1 to 3 sizes, got %d", len(sizes))
	}
	d := Dim{X: 1, Y: 1, Z: 1, rank: len(sizes)}
	d.X = sizes[0]
	if len(sizes) > 1 {
		d.Y = sizes[1]
	}
	if len(sizes) > 2 {
		d.Z = sizes[2]
	}
	return d
}

// Rank returns the dimensionality of the shape.
func (d Dim) Rank() int { return d.rank }

// Array returns the components as a fixed-size array, for the enqueue calls.
func (d Dim) Array() [3]int { return [3]int{d.X, d.Y, d.Z} }

// Items returns the total number of index points in the shape.
func (d Dim) Items() int {
	n := 1
	for dim, size := range d.Array() {
		if dim >= d.rank {
			break
		}
		n *= size
	}
	return n
}

// Min returns the component-wise minimum of d and other. The result keeps
// the receiver's rank, so clamping a shape against a device limit (see
// Device.MaxLocalWorkItems) preserves its dimensionality.
func (d Dim) Min(other Dim) Dim {
	return Dim{
		X:    min(d.X, other.X),
		Y:    min(d.Y, other.Y),
		Z:    min(d.Z, other.Z),
		rank: d.rank,
	}
}

// Max returns the component-wise maximum of d and other, keeping the
// receiver's rank.
func (d Dim) Max(other Dim) Dim {
	return Dim{
		X:    max(d.X, other.X),
		Y:    max(d.Y, other.Y),
		Z:    max(d.Z, other.Z),
		rank: d.rank,
	}
}

// String implements fmt.Stringer.
func (d Dim) String() string {
	switch d.rank {
	case 1:
		return fmt.Sprintf("Dim(%d)", d.X)
	case 2:
		return fmt.Sprintf("Dim(%d, %d)", d.X, d.Y)
	case 3:
		return fmt.Sprintf("Dim(%d, %d, %d)", d.X, d.Y, d.Z)
	}
	return fmt.Sprintf("Dim<rank=%d>(%d, %d, %d)", d.rank, d.X, d.Y, d.Z)
}

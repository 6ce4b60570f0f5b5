package compute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeDim(t *testing.T) {
	d := MakeDim(4)
	require.Equal(t, 1, d.Rank())
	require.Equal(t, [3]int{4, 1, 1}, d.Array())
	require.Equal(t, 4, d.Items())
	require.Equal(t, "Dim(4)", d.String())

	d = MakeDim(4, 8)
	require.Equal(t, 2, d.Rank())
	require.Equal(t, 32, d.Items())

	d = MakeDim(2, 3, 4)
	require.Equal(t, 3, d.Rank())
	require.Equal(t, [3]int{2, 3, 4}, d.Array())
	require.Equal(t, 24, d.Items())
	require.Equal(t, "Dim(2, 3, 4)", d.String())

	// Rank comes from the constructor arity, not the component values:
	// MakeDim(1) is still one-dimensional.
	require.Equal(t, 1, MakeDim(1).Rank())

	require.Panics(t, func() { MakeDim() })
	require.Panics(t, func() { MakeDim(1, 2, 3, 4) })
}

func TestDimMinMax(t *testing.T) {
	a := MakeDim(4, 100)
	b := MakeDim(64, 8, 2)

	require.Equal(t, [3]int{4, 8, 1}, a.Min(b).Array())
	require.Equal(t, 2, a.Min(b).Rank(), "Min keeps the receiver's rank")
	require.Equal(t, [3]int{64, 100, 2}, a.Max(b).Array())
	require.Equal(t, 3, b.Max(a).Rank())
}

func TestDimZeroValue(t *testing.T) {
	var d Dim
	require.Zero(t, d.Rank())
	require.Equal(t, 1, d.Items(), "rank 0 has an empty index-space product")
}

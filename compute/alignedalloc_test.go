package compute

import (
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAlignedAlloc(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	for range 10_000 {
		size := rng.IntN(1_000)
		buf := AlignedAlloc(size, BufferAlignment)
		require.Len(t, buf, size)
		if size == 0 {
			continue
		}
		require.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(buf)))%BufferAlignment)
		for _, b := range buf {
			require.Zero(t, b)
		}
	}
}

func TestAlignedAllocBadAlignment(t *testing.T) {
	require.Panics(t, func() { AlignedAlloc(16, 7) })
	require.Panics(t, func() { AlignedAlloc(16, 4) })
}

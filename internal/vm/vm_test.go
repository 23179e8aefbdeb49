package vm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glenda/internal/pmem"
)

// freshKernelPool gives each test its own backing store for the
// package-level kernel pool pmem.Kernel/pmem.User draw intermediate
// tables and frames from, since both are process-wide singletons.
func freshKernelPool(t *testing.T, pages int) {
	t.Helper()
	buf := make([]byte, (pages+1)*pmem.PageSize)
	liveVMBuffers = append(liveVMBuffers, buf)
	base := uintptr(unsafe.Pointer(&buf[0]))
	base = (base + pmem.PageSize - 1) &^ (pmem.PageSize - 1)
	pmem.Kernel.Init(base, base+uintptr(pages/2)*pmem.PageSize)
	pmem.User.Init(base+uintptr(pages/2)*pmem.PageSize, base+uintptr(pages)*pmem.PageSize)
}

var liveVMBuffers [][]byte

func newRoot(t *testing.T) *Table {
	t.Helper()
	frame := pmem.Kernel.Alloc()
	return tableAt(frame)
}

// TestFiveLeafMapAndPrint reproduces spec.md §8 scenario 1.
func TestFiveLeafMapAndPrint(t *testing.T) {
	freshKernelPool(t, 4096)
	root := newRoot(t)

	a := pmem.Kernel.Alloc()
	b := pmem.Kernel.Alloc()
	c := pmem.Kernel.Alloc()
	d := pmem.Kernel.Alloc()
	e := pmem.Kernel.Alloc()

	type mapping struct {
		va    uintptr
		pa    uintptr
		flags uint64
	}
	maps := []mapping{
		{0, a, PteR},
		{40960, b, PteR | PteW},
		{2097152, c, PteR | PteX},
		{1073741824, d, PteR | PteX},
		{(1 << 38) - 4096, e, PteW},
	}
	for _, m := range maps {
		require.NoError(t, Map(root, m.va, m.pa, PageSize, m.flags))
	}

	entries := Entries(root)
	require.Len(t, entries, 5)

	byVA := map[uintptr]Leaf{}
	for _, l := range entries {
		byVA[l.VA] = l
	}
	for _, m := range maps {
		l, ok := byVA[m.va]
		require.Truef(t, ok, "no leaf emitted for va=%x", m.va)
		assert.Equal(t, m.pa&^(pmem.PageSize-1), l.PA)
		assert.Equal(t, m.flags|PteV, l.Flags)
	}
}

// TestRemapAndUnmapReturnsFrames reproduces spec.md §8 scenario 2.
func TestRemapAndUnmapReturnsFrames(t *testing.T) {
	freshKernelPool(t, 4096)
	root := newRoot(t)

	a := pmem.Kernel.Alloc()
	b := pmem.Kernel.Alloc()
	c := pmem.Kernel.Alloc()

	require.NoError(t, Map(root, 0, a, PageSize, PteR))
	require.NoError(t, Map(root, 40960, b, PageSize, PteR|PteW))
	require.NoError(t, Map(root, 2097152, c, PageSize, PteR|PteX))

	initialAllocable := pmem.Kernel.Allocable()

	require.NoError(t, Map(root, 0, a, PageSize, PteR|PteW), "same-PA remap must succeed")

	require.NoError(t, Unmap(root, 40960, PageSize, true))
	require.NoError(t, Unmap(root, 2097152, PageSize, true))

	slot, err := Walk(root, 40960, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), *slot, "the unmapped leaf slot must be invalid")
	slot, err = Walk(root, 2097152, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), *slot, "the unmapped leaf slot must be invalid")

	assert.Equal(t, initialAllocable+2, pmem.Kernel.Allocable())
}

func TestMapConflictingLeafFails(t *testing.T) {
	freshKernelPool(t, 64)
	root := newRoot(t)

	a := pmem.Kernel.Alloc()
	otherFrame := pmem.Kernel.Alloc()

	require.NoError(t, Map(root, 0, a, PageSize, PteR))
	err := Map(root, 0, otherFrame, PageSize, PteR)
	assert.ErrorIs(t, err, ErrConflictingMapping)
}

func TestWalkRejectsAddressAboveMaxVA(t *testing.T) {
	freshKernelPool(t, 8)
	root := newRoot(t)

	_, err := Walk(root, MaxVA, true)
	assert.ErrorIs(t, err, ErrAddressTooLarge)
}

func TestUnmapOfUnmappedAddressFails(t *testing.T) {
	freshKernelPool(t, 8)
	root := newRoot(t)

	err := Unmap(root, 0, PageSize, false)
	assert.ErrorIs(t, err, ErrNotMapped)
}

// Package pmem implements the boot core's physical frame allocator: two
// independent regions (kernel and user), each a lock-protected,
// intrusive free list threaded through the 4 KiB frames themselves — a
// free frame's first machine word holds the address of the next free
// frame, so there is no metadata array living outside the pages it
// describes.
package pmem

import (
	"errors"
	"unsafe"

	isync "glenda/internal/sync"
)

const PageSize = 4096

var ErrExhausted = errors.New("pmem: region exhausted")

type regionState struct {
	begin, end uintptr
	head       uintptr // 0 means empty
	allocable  uint64
}

// Region is one independently-locked pool of 4 KiB frames.
type Region struct {
	mu isync.Mutex[regionState]
}

func alignUp(v, align uintptr) uintptr   { return (v + align - 1) &^ (align - 1) }
func alignDown(v, align uintptr) uintptr { return v &^ (align - 1) }

// readNext/writeNext/zeroFrame all operate on ordinary RAM — unlike
// internal/arch's MMIO primitives these are plain pointer dereferences,
// since a free frame is just memory, not a device register.

func readNext(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func writeNext(addr uintptr, next uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = next
}

func zeroFrame(addr uintptr) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), PageSize)
	clear(buf)
}

// Init builds the free list for [begin, end), aligning begin up and end
// down to the page size. It is safe to call concurrently; callers
// should gate it with a sync.Once so it only actually runs once per
// region, per spec.md §4.D.
func (r *Region) Init(begin, end uintptr) {
	begin = alignUp(begin, PageSize)
	end = alignDown(end, PageSize)

	g := r.mu.Lock()
	defer g.Unlock()
	st := g.Value()
	st.begin, st.end = begin, end
	st.head = 0
	st.allocable = 0
	for addr := begin; addr < end; addr += PageSize {
		writeNext(addr, st.head)
		st.head = addr
		st.allocable++
	}
}

// Alloc detaches the head frame, zeroes it, and returns it. It panics
// if the region is exhausted — spec.md §7 mandates alloc panic on
// exhaustion while try_alloc merely returns an error.
func (r *Region) Alloc() uintptr {
	addr, err := r.TryAlloc()
	if err != nil {
		panic("pmem: alloc on exhausted region")
	}
	return addr
}

// TryAlloc is Alloc without the panic: it returns ErrExhausted instead.
func (r *Region) TryAlloc() (uintptr, error) {
	g := r.mu.Lock()
	st := g.Value()
	head := st.head
	if head == 0 {
		g.Unlock()
		return 0, ErrExhausted
	}
	st.head = readNext(head)
	st.allocable--
	g.Unlock()

	zeroFrame(head)
	return head, nil
}

// Free returns addr to the region's free list. It panics if addr is not
// page-aligned or falls outside the region's bounds.
func (r *Region) Free(addr uintptr) {
	g := r.mu.Lock()
	defer g.Unlock()
	st := g.Value()
	if addr%PageSize != 0 || addr < st.begin || addr >= st.end {
		panic("pmem: free of misaligned or out-of-range address")
	}
	writeNext(addr, st.head)
	st.head = addr
	st.allocable++
}

// Contains reports whether addr falls within this region's bounds,
// regardless of whether it is currently allocated or free.
func (r *Region) Contains(addr uintptr) bool {
	g := r.mu.Lock()
	defer g.Unlock()
	st := g.Value()
	return addr >= st.begin && addr < st.end
}

// Allocable returns the current free-list length.
func (r *Region) Allocable() uint64 {
	g := r.mu.Lock()
	defer g.Unlock()
	return g.Value().allocable
}

// Bounds returns the region's [begin, end) range.
func (r *Region) Bounds() (begin, end uintptr) {
	g := r.mu.Lock()
	defer g.Unlock()
	st := g.Value()
	return st.begin, st.end
}

package pmem

import isync "glenda/internal/sync"

// DefaultKernelPages is the number of 4 KiB frames reserved for the
// kernel pool when the boot orchestrator does not override it.
const DefaultKernelPages = 4096 // 16 MiB

var (
	Kernel Region
	User   Region

	poolsOnce isync.Once
)

// InitPools splits [allocStart, memEnd) into the kernel and user pools
// at allocStart + kernPages*PageSize (clamped to memEnd), exactly once
// across all harts; secondary harts calling this after the first
// winner simply observe the already-built pools. allocStart must
// already be page-aligned and at or after the kernel's BSS end, per
// spec.md §4.D — callers are expected to have validated that upstream.
func InitPools(allocStart, memEnd uintptr, kernPages uint64) {
	poolsOnce.Do(func() {
		split := allocStart + uintptr(kernPages)*PageSize
		if split > memEnd {
			split = memEnd
		}
		Kernel.Init(allocStart, split)
		User.Init(split, memEnd)
	})
}

// RegionFor returns the region owning addr, or nil if neither pool
// contains it.
func RegionFor(addr uintptr) *Region {
	if Kernel.Contains(addr) {
		return &Kernel
	}
	if User.Contains(addr) {
		return &User
	}
	return nil
}

package vm

import (
	"unsafe"

	"glenda/internal/arch"
	"glenda/internal/console"
	"glenda/internal/pmem"
	isync "glenda/internal/sync"
)

var (
	kernelRootOnce isync.Once
	kernelRoot     *Table
)

// InitKernelVM builds the process-wide kernel root table exactly once
// (spec.md §4.E "init_kernel_vm"): identity-maps .text/.rodata/.data/
// .bss from the linker symbols, a 4 KiB MMIO window at the active
// console's base, and the full kernel and user allocator pools. The
// root table itself is allocated from the kernel pool — functionally
// equivalent to the "statically-allocated" table spec.md describes,
// since its lifetime is the kernel's lifetime either way, and simpler
// than carving out a separate fixed-address slot the way the teacher's
// mmu.go does for its own page tables.
//
// Callers on every hart may call this; only the first actually builds
// the table, and every caller — including the one that built it —
// receives the same *Table.
func InitKernelVM() *Table {
	kernelRootOnce.Do(func() {
		frame := pmem.Kernel.Alloc()
		root := tableAt(frame)

		mustMapSection(root, arch.TextStartAddr(), arch.TextEndAddr(), PteR|PteX|PteA)
		mustMapSection(root, arch.RodataStartAddr(), arch.RodataEndAddr(), PteR|PteA)
		mustMapSection(root, arch.DataStartAddr(), arch.DataEndAddr(), PteR|PteW|PteA|PteD)
		mustMapSection(root, arch.BSSStartAddr(), arch.BSSEndAddr(), PteR|PteW|PteA|PteD)

		uartBase := console.Active().Base
		must(Map(root, uartBase, uartBase, PageSize, PteR|PteW|PteA|PteD))

		// The user pool is identity-mapped here too: a known shortcut
		// (spec.md §9) that lets boot-time test code touch user frames
		// through kernel virtual addresses. A production design would
		// remove this and map user pages only inside per-process
		// address spaces. Both pools sit well under MaxVA on real QEMU
		// virt physical memory; the range check only guards host test
		// environments, where a pool backed by ordinary heap memory can
		// legitimately live above Sv39's 38-bit ceiling.
		kb, ke := pmem.Kernel.Bounds()
		mustMapIdentityIfInRange(root, kb, ke, PteR|PteW|PteA|PteD)
		ub, ue := pmem.User.Bounds()
		mustMapIdentityIfInRange(root, ub, ue, PteR|PteW|PteA|PteD)

		kernelRoot = root
	})
	return kernelRoot
}

// KernelRoot returns the already-built kernel root table, or nil if
// InitKernelVM has not run yet.
func KernelRoot() *Table {
	return kernelRoot
}

func mustMapSection(root *Table, start, end uintptr, flags uint64) {
	if end <= start {
		return
	}
	must(Map(root, start, start, end-start, flags))
}

func mustMapIdentityIfInRange(root *Table, start, end uintptr, flags uint64) {
	if end <= start || end > MaxVA {
		return
	}
	must(Map(root, start, start, end-start, flags))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// SwitchSATP installs root into the current hart's SATP (Sv39, ASID 0)
// and flushes every TLB entry.
func SwitchSATP(root *Table) {
	phys := uintptr(unsafe.Pointer(root))
	satp := uint64(SatpModeSv39)<<60 | uint64(phys>>PageShift)
	arch.WriteSATP(satp)
	arch.SfenceVMAAll()
}

// DisablePaging sets SATP to bare mode and flushes the TLB.
func DisablePaging() {
	arch.WriteSATP(0)
	arch.SfenceVMAAll()
}

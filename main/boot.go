// Command glenda is the early-boot S-mode core of a small RISC-V
// microkernel for the QEMU virt platform: it parses the firmware device
// tree, brings up every enabled hart through SBI, initializes the
// console, partitions RAM into kernel/user page pools, and builds the
// Sv39 kernel root table before enabling paging everywhere.
package main

import (
	"unsafe"

	"glenda/internal/console"
	"glenda/internal/dtb"
	"glenda/internal/pmem"
	"glenda/internal/sbi"
	isync "glenda/internal/sync"
	"glenda/internal/vm"
)

var secondaryStartOnce isync.Once

// entry is the per-hart boot ABI: entry(hartid, dtb) -> !. Firmware
// jumps every hart here (primary and secondary alike) per the RISC-V
// boot convention; secondary harts brought up through SBI land at
// secondaryEntry instead, which funnels back into bootSequence.
func entry(hartid uintptr, dtbPtr unsafe.Pointer) {
	defer guardFault()
	root := bootSequence(hartid, dtbPtr)
	if hartid == 0 {
		runSelfTestHook(root)
	}
	idleForever()
}

// secondaryEntry is the address handed to SBI's hart_start for every
// non-zero hart.
func secondaryEntry(hartid uintptr, dtbPtr unsafe.Pointer) {
	defer guardFault()
	bootSequence(hartid, dtbPtr)
	idleForever()
}

// guardFault is the boot-time panic boundary: there is no recovery
// during boot (spec.md §7), so a panic anywhere in bootSequence dumps
// what diagnostics it can and hangs in WFI rather than unwinding
// further or restarting. Grounded on the teacher's own top-level
// recover in KernelMain (main_teacher_ref/kernel.go).
func guardFault() {
	if r := recover(); r != nil {
		reportFault(r)
		idleForever()
	}
}

// reportFault prints the best-effort diagnostics for a caught boot
// panic. Split out from guardFault so it can be exercised without the
// trailing infinite idle loop.
func reportFault(r any) {
	dumpTrap()
	console.EmergencyWrite("FATAL: ")
	console.EmergencyWrite(panicMessage(r))
	console.EmergencyWrite("\r\n")
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unknown panic"
}

// bootSequence runs spec.md §4.F's seven-step sequence and returns once
// this hart has paging enabled; entry/secondaryEntry then idle. Split
// out as its own function so the orchestration logic is callable
// without the infinite idle loop, the same separation the teacher
// keeps between KernelMain and kernelMainBody.
func bootSequence(hartid uintptr, dtbPtr unsafe.Pointer) *vm.Table {
	// Step 1: device tree (idempotent, non-fatal on failure).
	summary, err := dtb.Init(dtbPtr)

	// Step 2: console bring-up, DT config or fallback.
	cfg := console.Fallback
	if err == nil && summary.UART != nil {
		cfg = *summary.UART
	}
	console.Init(cfg)

	hartCount := uint32(1)
	if err == nil {
		hartCount = summary.HartCount
	}

	// Step 3: banner, primary hart only.
	if hartid == 0 {
		console.Print("glenda: booting\n")
		if err != nil {
			console.Printf("glenda: device tree parse failed (%s), using fallback console\n", err.Error())
		}
		console.Printf("glenda: %d hart(s) detected\n", hartCount)
	}

	// Step 4: secondary hart bring-up via SBI HSM, primary only, once.
	if hartid == 0 {
		startSecondaryHarts(hartCount, dtbPtr)
	}

	// Step 5: page pools, once across all harts. A failed DT parse falls
	// back to dtb.DefaultMemory rather than leaving the pools empty.
	sections := readSections()
	mem := dtb.DefaultMemory
	if err == nil {
		mem = summary.Memory
	}
	memEnd := mem.Start + mem.Size
	pmem.InitPools(sections.allocStart, memEnd, pmem.DefaultKernelPages)

	// Step 6: kernel root table, once across all harts, then every
	// hart installs it and flushes its TLB.
	root := vm.InitKernelVM()
	vm.SwitchSATP(root)

	return root
}

// startSecondaryHarts issues SBI hart_start for every hart id other
// than 0, up to hartCount, logging success/failure per hart. A
// once-flag ensures a secondary hart that (incorrectly) re-entered this
// path never re-triggers bootstrap, per spec.md §4.F step 4.
func startSecondaryHarts(hartCount uint32, dtbPtr unsafe.Pointer) {
	secondaryStartOnce.Do(func() {
		entryAddr := secondaryEntryAddr()
		for t := uintptr(1); t < uintptr(hartCount); t++ {
			errCode := sbi.HartStart(t, entryAddr, uintptr(dtbPtr))
			if errCode != sbi.ErrSuccess {
				console.Printf("glenda: hart %d start failed: %s\n", t, sbi.ErrorName(errCode))
				continue
			}
			console.Printf("glenda: hart %d started\n", t)
		}
	})
}

func idleForever() {
	for {
		idleWFI()
	}
}

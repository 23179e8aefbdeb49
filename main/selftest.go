//go:build selftest

package main

import (
	"glenda/internal/console"
	"glenda/internal/pmem"
	"glenda/internal/vm"
)

func init() {
	runSelfTestHook = runSelfTest
}

// runSelfTest exercises the live kernel root table end to end: map a
// fresh frame, confirm Print sees exactly the expected leaf, then
// unmap and confirm the freed frame is back in the kernel pool (the
// intermediate tables Map allocated stay in place). Gated behind the
// selftest build tag so production boots skip it entirely, per
// original_source's kernel/src/tests/run.rs.
func runSelfTest(root *vm.Table) {
	console.Print("selftest: starting\n")

	const probeVA = 0x10_0000_0000 // arbitrary unused VA below MaxVA

	frame := pmem.Kernel.Alloc()

	if err := vm.Map(root, probeVA, frame, vm.PageSize, vm.PteR|vm.PteW); err != nil {
		console.Printf("selftest: FAIL map: %s\n", err.Error())
		return
	}
	mapped := pmem.Kernel.Allocable()

	found := false
	for _, l := range vm.Entries(root) {
		if l.VA == probeVA {
			found = true
			if l.PA != frame {
				console.Print("selftest: FAIL leaf PA mismatch\n")
				return
			}
		}
	}
	if !found {
		console.Print("selftest: FAIL leaf not found after map\n")
		return
	}

	if err := vm.Unmap(root, probeVA, vm.PageSize, true); err != nil {
		console.Printf("selftest: FAIL unmap: %s\n", err.Error())
		return
	}

	if pmem.Kernel.Allocable() != mapped+1 {
		console.Print("selftest: FAIL unmapped frame was not returned to the kernel pool\n")
		return
	}

	console.Print("selftest: PASS\n")
}

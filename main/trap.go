package main

import (
	"glenda/internal/arch"
	"glenda/internal/console"
	"glenda/internal/vm"
)

// dumpTrap records sepc/stval/sp and, when a kernel root table is
// available, a best-effort Sv39 walk of sepc, stval and sp through it —
// the diagnostic format supplemented from original_source's
// trapdiag.rs. The trap vector itself that would call this remains an
// external collaborator; only the formatting here is this kernel's.
func dumpTrap() {
	sepc := arch.ReadSEPC()
	stval := arch.ReadSTVAL()
	sp := arch.ReadSP()

	console.EmergencyWrite(sprintfTrap("trap: sepc=", sepc))
	console.EmergencyWrite(sprintfTrap("trap: stval=", stval))
	console.EmergencyWrite(sprintfTrap("trap: sp=", sp))

	root := vm.KernelRoot()
	if root == nil {
		return
	}
	describeWalk(root, "sepc", sepc)
	describeWalk(root, "stval", stval)
	describeWalk(root, "sp", sp)
}

func describeWalk(root *vm.Table, label string, va uintptr) {
	slot, err := vm.Walk(root, va, false)
	if err != nil || *slot&vm.PteV == 0 {
		console.EmergencyWrite("trap: " + label + " not mapped\r\n")
		return
	}
	console.EmergencyWrite("trap: " + label + " is mapped\r\n")
}

func sprintfTrap(prefix string, v uintptr) string {
	return prefix + hex(v) + "\r\n"
}

func hex(v uintptr) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

package main

import (
	"reflect"

	"glenda/internal/arch"
)

// secondaryEntryAddr returns the code address of secondaryEntry as a
// raw uintptr suitable for SBI's hart_start a1 argument. This relies on
// the same "hosted Go runtime on bare metal" assumption the teacher
// kernel depends on throughout (reflect, make, channels all work); a
// fully freestanding build would instead export this address as a
// linker symbol the way the teacher exports KernelMainBody via
// go:linkname.
func secondaryEntryAddr() uintptr {
	return reflect.ValueOf(secondaryEntry).Pointer()
}

func idleWFI() {
	arch.WFI()
}

package main

import "glenda/internal/arch"

// sections caches the section bounds the linker script exports, in the
// spirit of the teacher's getLinkerSymbol glue (main_teacher_ref/memory.go)
// adapted to this kernel's own symbol set: __text_start/end,
// __rodata_start/end, __data_start/end, __bss_start/end, __alloc_start.
type sections struct {
	textStart, textEnd     uintptr
	rodataStart, rodataEnd uintptr
	dataStart, dataEnd     uintptr
	bssStart, bssEnd       uintptr
	allocStart             uintptr
}

func readSections() sections {
	return sections{
		textStart:   arch.TextStartAddr(),
		textEnd:     arch.TextEndAddr(),
		rodataStart: arch.RodataStartAddr(),
		rodataEnd:   arch.RodataEndAddr(),
		dataStart:   arch.DataStartAddr(),
		dataEnd:     arch.DataEndAddr(),
		bssStart:    arch.BSSStartAddr(),
		bssEnd:      arch.BSSEndAddr(),
		allocStart:  arch.AllocStartAddr(),
	}
}

package vm

import "glenda/internal/console"

// Leaf describes one valid L0 entry as surfaced by Entries/Print.
type Leaf struct {
	VA    uintptr
	PA    uintptr
	Flags uint64
}

// Entries walks the full three-level table and returns one Leaf per
// valid L0 entry, asserting along the way that every L2/L1 entry it
// follows is a valid intermediate (table, not leaf) and every L0
// entry it records is a leaf — an assertion failure here means the
// table was corrupted by something other than Map/Unmap, and is
// fatal per spec.md §4.E.
func Entries(root *Table) []Leaf {
	var out []Leaf
	for i2 := uintptr(0); i2 < 512; i2++ {
		e2 := root[i2]
		if e2&PteV == 0 {
			continue
		}
		if e2&(PteR|PteW|PteX) != 0 {
			panic("vm: assertion failed: L2 entry is a leaf")
		}
		l1 := tableAt(ppnToPhys(e2))
		for i1 := uintptr(0); i1 < 512; i1++ {
			e1 := l1[i1]
			if e1&PteV == 0 {
				continue
			}
			if e1&(PteR|PteW|PteX) != 0 {
				panic("vm: assertion failed: L1 entry is a leaf")
			}
			l0 := tableAt(ppnToPhys(e1))
			for i0 := uintptr(0); i0 < 512; i0++ {
				e0 := l0[i0]
				if e0&PteV == 0 {
					continue
				}
				if e0&(PteR|PteW|PteX) == 0 {
					panic("vm: assertion failed: L0 entry is not a leaf")
				}
				out = append(out, Leaf{
					VA:    i2<<30 | i1<<21 | i0<<12,
					PA:    ppnToPhys(e0),
					Flags: e0 & flagMask,
				})
			}
		}
	}
	return out
}

// Print renders every valid L0 leaf through the kernel console, one
// line per entry.
func Print(root *Table) {
	for _, l := range Entries(root) {
		console.Printf("vm: va=%x -> pa=%x flags=%x\n", l.VA, l.PA, l.Flags)
	}
}

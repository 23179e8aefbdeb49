//go:build riscv64

package arch

// MMIORead8 performs a volatile 8-bit load from the given physical
// address. addr is expected to already be in the kernel's identity-mapped
// MMIO window.
func MMIORead8(addr uintptr) uint8

// MMIOWrite8 performs a volatile 8-bit store to addr.
func MMIOWrite8(addr uintptr, value uint8)

// MMIORead32 performs a volatile 32-bit load from addr.
func MMIORead32(addr uintptr) uint32

// MMIOWrite32 performs a volatile 32-bit store to addr.
func MMIOWrite32(addr uintptr, value uint32)

// ReadSATP returns the current hart's supervisor address translation and
// protection register.
func ReadSATP() uint64

// WriteSATP installs a new root table / mode into SATP. Callers must
// follow with SfenceVMAAll before relying on the new mapping.
func WriteSATP(value uint64)

// ReadSEPC returns the supervisor exception program counter, valid only
// while handling a trap.
func ReadSEPC() uintptr

// ReadSTVAL returns the supervisor trap value register.
func ReadSTVAL() uintptr

// ReadSP returns the current stack pointer.
func ReadSP() uintptr

// SfenceVMAAll flushes every TLB entry for every address space (`sfence.vma
// zero, zero`).
func SfenceVMAAll()

// WFI parks the hart in wait-for-interrupt until the next interrupt,
// which during boot never arrives with interrupts enabled; callers loop
// on this.
func WFI()

// Pause gives a CPU hint that the caller is in a busy-wait spin loop.
func Pause()

// Ecall issues a raw SBI call: extension in a7, function in a6,
// arguments in a0..a2. Returns the SBI error code (a0) and the SBI
// return value (a1).
func Ecall(extension, function, a0, a1, a2 uintptr) (errCode int64, value uintptr)

// The linker script for the final image exports these symbols; each
// getter returns the symbol's address as a uintptr.

func TextStartAddr() uintptr
func TextEndAddr() uintptr
func RodataStartAddr() uintptr
func RodataEndAddr() uintptr
func DataStartAddr() uintptr
func DataEndAddr() uintptr
func BSSStartAddr() uintptr
func BSSEndAddr() uintptr
func AllocStartAddr() uintptr

//go:build !riscv64

package arch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// The riscv64 build of this package declares every primitive below
// without a body and leaves it to a platform assembly file. This file
// exists so that `go test` and ordinary editor tooling on a developer's
// workstation (almost never riscv64) have something to link against,
// mirroring the teacher's own uart_stub.go split. The simulated MMIO
// bus below is good enough to exercise internal/console and
// internal/sbi end-to-end in tests; it is never linked into the real
// kernel image.

var mmio8 sync.Map  // uintptr -> uint8
var mmio32 sync.Map // uintptr -> uint32

// MMIORead8 returns the last value written to addr, or 0xFF (all status
// bits set) for an address never written — good enough to keep a
// THRE-style polling loop from spinning forever in tests.
func MMIORead8(addr uintptr) uint8 {
	if v, ok := mmio8.Load(addr); ok {
		return v.(uint8)
	}
	return 0xFF
}

func MMIOWrite8(addr uintptr, value uint8) {
	mmio8.Store(addr, value)
}

func MMIORead32(addr uintptr) uint32 {
	if v, ok := mmio32.Load(addr); ok {
		return v.(uint32)
	}
	return 0xFFFFFFFF
}

func MMIOWrite32(addr uintptr, value uint32) {
	mmio32.Store(addr, value)
}

// ResetMMIO clears the simulated bus between tests.
func ResetMMIO() {
	mmio8 = sync.Map{}
	mmio32 = sync.Map{}
}

var fakeSATP atomic.Uint64

func ReadSATP() uint64       { return fakeSATP.Load() }
func WriteSATP(value uint64) { fakeSATP.Store(value) }

var fakeSEPC, fakeSTVAL, fakeSP atomic.Uintptr

func ReadSEPC() uintptr  { return fakeSEPC.Load() }
func ReadSTVAL() uintptr { return fakeSTVAL.Load() }
func ReadSP() uintptr    { return fakeSP.Load() }

func SfenceVMAAll() {}

func WFI() {}

// Pause yields the host scheduler instead of executing a CPU-level spin
// hint, since a test goroutine genuinely should let other goroutines
// run while it spins.
func Pause() { runtime.Gosched() }

// EcallHook lets tests simulate SBI firmware responses; nil means
// "always succeed with value 0".
var EcallHook func(extension, function, a0, a1, a2 uintptr) (errCode int64, value uintptr)

func Ecall(extension, function, a0, a1, a2 uintptr) (errCode int64, value uintptr) {
	if EcallHook != nil {
		return EcallHook(extension, function, a0, a1, a2)
	}
	return 0, 0
}

// Linker symbols have no meaning on the host; tests that need concrete
// section bounds set these variables directly.
var (
	FakeTextStart, FakeTextEnd     uintptr
	FakeRodataStart, FakeRodataEnd uintptr
	FakeDataStart, FakeDataEnd     uintptr
	FakeBSSStart, FakeBSSEnd       uintptr
	FakeAllocStart                uintptr
)

func TextStartAddr() uintptr   { return FakeTextStart }
func TextEndAddr() uintptr     { return FakeTextEnd }
func RodataStartAddr() uintptr { return FakeRodataStart }
func RodataEndAddr() uintptr   { return FakeRodataEnd }
func DataStartAddr() uintptr   { return FakeDataStart }
func DataEndAddr() uintptr     { return FakeDataEnd }
func BSSStartAddr() uintptr    { return FakeBSSStart }
func BSSEndAddr() uintptr      { return FakeBSSEnd }
func AllocStartAddr() uintptr  { return FakeAllocStart }

// Package arch declares the hardware primitives the boot core needs but
// cannot express in portable Go: volatile MMIO access, CSR access, the
// SBI ecall trampoline, linker-symbol getters, and the fence/idle
// instructions. On riscv64 these are assembly-backed and have no Go
// body, the same external-collaborator boundary the teacher kernel
// draws around its own "asm" package. On every other GOARCH — i.e. the
// build a developer's workstation actually compiles and tests with —
// arch_stub.go supplies plain Go fallbacks so `go test` and ordinary
// tooling work without a cross toolchain, mirroring the teacher's own
// uart_stub.go build-tag split.
package arch

// Package sbi wraps the Supervisor Binary Interface calls the boot
// core needs: bringing up secondary harts through the Hart-State-
// Management extension. Numeric IDs are grounded on
// tinyrange-cc/internal/hv/riscv/rv64/sbi.go, the only source in the
// retrieval pack that encodes real SBI constants (as the hypervisor
// side of the same calls this kernel issues as a guest).
package sbi

import "glenda/internal/arch"

// HSM extension and function IDs (hex 0x48534D = "HSM").
const (
	ExtHSM = 0x48534D

	FuncHartStart  = 0
	FuncHartStop   = 1
	FuncHartStatus = 2
)

// Standard SBI error codes (the "standard SBI error space" spec.md §6
// refers to).
const (
	ErrSuccess          = 0
	ErrFailed           = -1
	ErrNotSupported     = -2
	ErrInvalidParam     = -3
	ErrDenied           = -4
	ErrInvalidAddress   = -5
	ErrAlreadyAvailable = -6
	ErrAlreadyStarted   = -7
	ErrAlreadyStopped   = -8
)

// HartStart asks firmware to start hart hartid executing at startAddr
// (a1) with opaque (here, the DTB pointer) in a2. errCode is the raw SBI
// return code in a0; 0 means success.
func HartStart(hartid, startAddr, opaque uintptr) (errCode int64) {
	errCode, _ = arch.Ecall(ExtHSM, FuncHartStart, hartid, startAddr, opaque)
	return errCode
}

// HartStatus returns the current status code of hartid as reported by
// the HSM extension's hart_get_status function.
func HartStatus(hartid uintptr) (status int64, errCode int64) {
	errCode, value := arch.Ecall(ExtHSM, FuncHartStatus, hartid, 0, 0)
	return int64(value), errCode
}

// ErrorName renders a standard SBI error code for logging.
func ErrorName(code int64) string {
	switch code {
	case ErrSuccess:
		return "success"
	case ErrFailed:
		return "failed"
	case ErrNotSupported:
		return "not supported"
	case ErrInvalidParam:
		return "invalid param"
	case ErrDenied:
		return "denied"
	case ErrInvalidAddress:
		return "invalid address"
	case ErrAlreadyAvailable:
		return "already available"
	case ErrAlreadyStarted:
		return "already started"
	case ErrAlreadyStopped:
		return "already stopped"
	default:
		return "unknown"
	}
}

package sbi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"glenda/internal/arch"
)

func TestHartStartForwardsArgsAndReturnsErrCode(t *testing.T) {
	defer func() { arch.EcallHook = nil }()

	var gotExt, gotFunc, gotA0, gotA1, gotA2 uintptr
	arch.EcallHook = func(extension, function, a0, a1, a2 uintptr) (int64, uintptr) {
		gotExt, gotFunc, gotA0, gotA1, gotA2 = extension, function, a0, a1, a2
		return ErrSuccess, 0
	}

	errCode := HartStart(3, 0x8020_0000, 0x4000_0000)
	assert.Equal(t, int64(ErrSuccess), errCode)
	assert.Equal(t, uintptr(ExtHSM), gotExt)
	assert.Equal(t, uintptr(FuncHartStart), gotFunc)
	assert.Equal(t, uintptr(3), gotA0)
	assert.Equal(t, uintptr(0x8020_0000), gotA1)
	assert.Equal(t, uintptr(0x4000_0000), gotA2)
}

func TestHartStartSurfacesFailure(t *testing.T) {
	defer func() { arch.EcallHook = nil }()
	arch.EcallHook = func(extension, function, a0, a1, a2 uintptr) (int64, uintptr) {
		return ErrAlreadyAvailable, 0
	}

	errCode := HartStart(1, 0, 0)
	assert.Equal(t, int64(ErrAlreadyAvailable), errCode)
}

func TestErrorNameKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "success", ErrorName(ErrSuccess))
	assert.Equal(t, "already available", ErrorName(ErrAlreadyAvailable))
	assert.Equal(t, "unknown", ErrorName(-99))
}

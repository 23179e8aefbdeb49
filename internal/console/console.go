// Package console implements the boot core's UART driver: a polled
// NS16550-compatible byte sink discovered from the device tree (or a
// hard-coded QEMU virt fallback), plus a kernel-wide locked print
// helper and a lock-free emergency writer for use when the main
// console's mutex might already be held by a panicking hart.
package console

import (
	"glenda/internal/arch"
	isync "glenda/internal/sync"
)

// Config describes one NS16550-family UART instance as derived from
// the device tree, or the hard-coded fallback.
type Config struct {
	Base        uintptr
	THROffset   uintptr
	LSROffset   uintptr
	LSRThreMask uint8
}

// Fallback is used whenever the device tree does not advertise an
// NS16550-compatible console, per spec.md §4.B.
var Fallback = Config{
	Base:        0x1000_0000,
	THROffset:   0,
	LSROffset:   5,
	LSRThreMask: 0x20,
}

var (
	initOnce isync.Once
	active   Config
	printMu  isync.Mutex[struct{}]
)

// Init installs config as the active console. It is idempotent across
// harts: the first caller wins, every later caller (including calls
// with a different config) is a no-op, matching the once-init
// discipline every process-wide singleton in this kernel uses.
func Init(config Config) {
	initOnce.Do(func() {
		active = config
	})
}

// Active returns the console configuration currently in effect. It
// must only be called after Init.
func Active() Config {
	return active
}

// WriteByte performs one polled, busy-wait MMIO write: spin while the
// line-status register reports the transmitter not-ready, then write
// the byte to the transmitter-holding register.
func WriteByte(c Config, b byte) {
	for arch.MMIORead8(c.Base+c.LSROffset)&c.LSRThreMask == 0 {
		arch.Pause()
	}
	arch.MMIOWrite8(c.Base+c.THROffset, b)
}

// Write sends p to the console, expanding '\n' to "\r\n". It returns
// len(p) and a nil error always, matching io.Writer's contract for a
// sink that cannot fail.
func Write(c Config, p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			WriteByte(c, '\r')
		}
		WriteByte(c, b)
	}
	return len(p), nil
}

// Print writes s to the active console under the kernel-wide console
// mutex, so that concurrent harts never interleave output mid-line.
func Print(s string) {
	g := printMu.Lock()
	defer g.Unlock()
	Write(active, []byte(s))
}

// Printf formats with this package's minimal sprintf (%d, %x, %s and
// %%) and passes the result to Print, without importing the fmt
// package. Any other verb is copied to the output as written; callers
// that need rich formatting should format the string themselves and
// call Print.
func Printf(format string, args ...any) {
	Print(sprintf(format, args...))
}

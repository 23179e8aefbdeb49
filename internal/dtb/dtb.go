// Package dtb parses the flattened device tree blob firmware hands the
// boot hart and exposes the handful of facts the rest of the kernel
// needs: the console's register layout, the number of enabled harts,
// and the first memory region. Parsing happens at most once per boot;
// every later caller observes the cached result.
package dtb

import (
	"unsafe"

	"glenda/internal/console"
	isync "glenda/internal/sync"
)

// MemoryRange describes one /memory reg entry.
type MemoryRange struct {
	Start uintptr
	Size  uintptr
}

// DefaultMemory is used when the blob has no usable /memory node.
var DefaultMemory = MemoryRange{Start: 0x8000_0000, Size: 128 << 20}

// Summary is the immutable record produced by a successful parse.
// UART is nil when the blob had no NS16550-compatible console; callers
// fall back to console.Fallback in that case.
type Summary struct {
	UART      *console.Config
	HartCount uint32
	Memory    MemoryRange
}

var cell isync.OnceValue[*Summary]

// Init parses blob exactly once across all harts and caches the result;
// subsequent calls (with any argument) return the cached summary. A
// parse failure is not retried automatically — spec.md treats DT parse
// failure as non-fatal and expects the orchestrator to fall back to
// defaults, so the cache is left uninitialized on error, matching the
// once-cell's documented retry contract.
func Init(blob unsafe.Pointer) (*Summary, error) {
	return cell.GetOrTryInit(func() (*Summary, error) {
		return parseBlob(blob)
	})
}

// Cached returns the previously parsed summary, if any, without
// attempting a parse.
func Cached() (*Summary, bool) {
	return cell.Get()
}

func parseBlob(blob unsafe.Pointer) (*Summary, error) {
	if blob == nil {
		return nil, errNilBlob
	}
	header := (*[fdtHeaderSize]byte)(unsafe.Pointer(blob))
	if be32(header[0:4]) != fdtMagic {
		return nil, errBadMagic
	}
	totalSize := be32(header[4:8])
	if totalSize < fdtHeaderSize {
		return nil, errBadMagic
	}
	data := unsafe.Slice((*byte)(blob), totalSize)
	return parseTree(data)
}

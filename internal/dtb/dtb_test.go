package dtb

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	isync "glenda/internal/sync"
)

// fdtBuilder constructs a minimal flattened devicetree image in memory,
// in the spirit of tinyrange-cc's FDTBuilder, so these tests can
// exercise the real token-walk parser without a real firmware blob.
type fdtBuilder struct {
	strings map[string]uint32
	strBuf  []byte
	struct_ []byte
}

func newFDTBuilder() *fdtBuilder {
	return &fdtBuilder{strings: map[string]uint32{}}
}

func (b *fdtBuilder) strOff(name string) uint32 {
	if off, ok := b.strings[name]; ok {
		return off
	}
	off := uint32(len(b.strBuf))
	b.strBuf = append(b.strBuf, []byte(name)...)
	b.strBuf = append(b.strBuf, 0)
	b.strings[name] = off
	return off
}

func putBE32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func putBE64(v uint64) []byte {
	return append(putBE32(uint32(v>>32)), putBE32(uint32(v))...)
}

func (b *fdtBuilder) align() {
	for len(b.struct_)%4 != 0 {
		b.struct_ = append(b.struct_, 0)
	}
}

func (b *fdtBuilder) beginNode(name string) {
	b.struct_ = append(b.struct_, putBE32(fdtBeginNode)...)
	b.struct_ = append(b.struct_, []byte(name)...)
	b.struct_ = append(b.struct_, 0)
	b.align()
}

func (b *fdtBuilder) endNode() {
	b.struct_ = append(b.struct_, putBE32(fdtEndNode)...)
}

func (b *fdtBuilder) prop(name string, value []byte) {
	b.struct_ = append(b.struct_, putBE32(fdtProp)...)
	b.struct_ = append(b.struct_, putBE32(uint32(len(value)))...)
	b.struct_ = append(b.struct_, putBE32(b.strOff(name))...)
	b.struct_ = append(b.struct_, value...)
	b.align()
}

func (b *fdtBuilder) propString(name, value string) {
	b.prop(name, append([]byte(value), 0))
}

func (b *fdtBuilder) propStringList(name string, values ...string) {
	var buf []byte
	for _, v := range values {
		buf = append(buf, v...)
		buf = append(buf, 0)
	}
	b.prop(name, buf)
}

func (b *fdtBuilder) propU32(name string, v uint32) {
	b.prop(name, putBE32(v))
}

func (b *fdtBuilder) propReg64(name string, addr, size uint64) {
	b.prop(name, append(putBE64(addr), putBE64(size)...))
}

func (b *fdtBuilder) build() []byte {
	b.struct_ = append(b.struct_, putBE32(fdtEnd)...)

	offStruct := uint32(fdtHeaderSize)
	offStrings := offStruct + uint32(len(b.struct_))
	total := offStrings + uint32(len(b.strBuf))

	out := make([]byte, 0, total)
	out = append(out, putBE32(fdtMagic)...)
	out = append(out, putBE32(total)...)
	out = append(out, putBE32(offStruct)...)
	out = append(out, putBE32(offStrings)...)
	out = append(out, putBE32(0)...) // off_mem_rsvmap (unused by this reader)
	out = append(out, putBE32(17)...)
	out = append(out, putBE32(16)...)
	out = append(out, putBE32(0)...)
	out = append(out, putBE32(uint32(len(b.strBuf)))...)
	out = append(out, putBE32(uint32(len(b.struct_)))...)
	out = append(out, b.struct_...)
	out = append(out, b.strBuf...)
	return out
}

func buildVirtLikeDTB() []byte {
	b := newFDTBuilder()
	b.beginNode("")
	b.beginNode("chosen")
	b.propString("stdout-path", "/soc/serial@10000000:115200")
	b.endNode()
	b.beginNode("cpus")
	b.beginNode("cpu@0")
	b.propString("status", "okay")
	b.endNode()
	b.beginNode("cpu@1")
	b.propString("status", "okay")
	b.endNode()
	b.beginNode("cpu@2")
	b.propString("status", "disabled")
	b.endNode()
	b.endNode()
	b.beginNode("memory@80000000")
	b.propReg64("reg", 0x80000000, 256<<20)
	b.endNode()
	b.beginNode("soc")
	b.beginNode("serial@10000000")
	b.propStringList("compatible", "ns16550a")
	b.propReg64("reg", 0x10000000, 0x100)
	b.propU32("reg-shift", 0)
	b.propU32("reg-io-width", 1)
	b.endNode()
	b.endNode()
	b.endNode()
	return b.build()
}

func TestParseVirtLikeDTB(t *testing.T) {
	blob := buildVirtLikeDTB()
	summary, err := parseTree(blob)
	require.NoError(t, err)

	require.NotNil(t, summary.UART)
	assert.Equal(t, uintptr(0x10000000), summary.UART.Base)
	assert.Equal(t, uintptr(0), summary.UART.THROffset)
	assert.Equal(t, uintptr(5), summary.UART.LSROffset)
	assert.Equal(t, uint8(0x20), summary.UART.LSRThreMask)

	assert.Equal(t, uint32(2), summary.HartCount, "the disabled cpu must not be counted")
	assert.Equal(t, uintptr(0x80000000), summary.Memory.Start)
	assert.Equal(t, uintptr(256<<20), summary.Memory.Size)
}

// TestParseIgnoresNonCPUChildrenOfCpusNode covers a /cpus child such as
// cpu-map, which carries no status property and must never be counted
// as an enabled hart.
func TestParseIgnoresNonCPUChildrenOfCpusNode(t *testing.T) {
	b := newFDTBuilder()
	b.beginNode("")
	b.beginNode("cpus")
	b.beginNode("cpu@0")
	b.propString("status", "okay")
	b.endNode()
	b.beginNode("cpu@1")
	b.propString("status", "okay")
	b.endNode()
	b.beginNode("cpu-map")
	b.beginNode("cluster0")
	b.endNode()
	b.endNode()
	b.endNode()
	b.endNode()

	summary, err := parseTree(b.build())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), summary.HartCount, "cpu-map is not a hart and must not be counted")
}

func TestParseFallsBackOnMissingUARTNode(t *testing.T) {
	b := newFDTBuilder()
	b.beginNode("")
	b.beginNode("cpus")
	b.beginNode("cpu@0")
	b.propString("status", "okay")
	b.endNode()
	b.endNode()
	b.endNode()

	summary, err := parseTree(b.build())
	require.NoError(t, err)
	assert.Nil(t, summary.UART)
	assert.Equal(t, DefaultMemory, summary.Memory)
	assert.Equal(t, uint32(1), summary.HartCount)
}

func TestInitRejectsBadMagic(t *testing.T) {
	cell = isync.OnceValue[*Summary]{}
	bad := make([]byte, fdtHeaderSize)
	_, err := Init(unsafe.Pointer(&bad[0]))
	assert.Error(t, err)
	_, ok := Cached()
	assert.False(t, ok, "a failed parse must not populate the cache")
}

func TestInitIsIdempotent(t *testing.T) {
	cell = isync.OnceValue[*Summary]{}
	blob := buildVirtLikeDTB()
	s1, err := Init(unsafe.Pointer(&blob[0]))
	require.NoError(t, err)

	other := make([]byte, fdtHeaderSize)
	s2, err := Init(unsafe.Pointer(&other[0]))
	require.NoError(t, err)
	assert.Same(t, s1, s2, "the second Init call must return the cached summary, not re-parse")
}

package dtb

import (
	"errors"
	"strings"

	"glenda/internal/console"
)

// Flattened devicetree token values (devicetree.org spec v0.3 §5.4),
// cross-checked against tinyrange-cc's FDT constants and the teacher's
// own (PCI-ECAM-specific) dtb_qemu.go reader.
const (
	fdtMagic      = 0xd00d_feed
	fdtBeginNode  = 1
	fdtEndNode    = 2
	fdtProp       = 3
	fdtNop        = 4
	fdtEnd        = 9
	fdtHeaderSize = 40

	maxWalkIterations = 200_000
)

var (
	errNilBlob    = errors.New("dtb: nil blob")
	errBadMagic   = errors.New("dtb: bad magic or truncated header")
	errTruncated  = errors.New("dtb: truncated struct block")
	errTooDeep    = errors.New("dtb: node nesting too deep")
	errUnbalanced = errors.New("dtb: unbalanced begin/end node tokens")
)

// node is one devicetree node: a name and a flat property map, plus its
// children in document order. Building the whole tree (rather than the
// single-purpose streaming lookup the teacher's dtb_qemu.go performs)
// is what lets this reader resolve a /chosen/stdout-path reference to
// an arbitrary node elsewhere in the tree in one pass.
type node struct {
	name     string
	props    map[string][]byte
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// lookup resolves a slash-separated absolute path ("/soc/serial@...")
// against the tree rooted at n (itself the tree root, named "").
func (n *node) lookup(path string) *node {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return n
	}
	cur := n
	for _, part := range strings.Split(path, "/") {
		cur = cur.child(part)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func be32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be64(b []byte) uint64 {
	return uint64(be32(b[0:4]))<<32 | uint64(be32(b[4:8]))
}

// cString reads a NUL-terminated string from b starting at off.
func cString(b []byte, off uint32) (string, error) {
	end := off
	for end < uint32(len(b)) && b[end] != 0 {
		end++
	}
	if end >= uint32(len(b)) {
		return "", errTruncated
	}
	return string(b[off:end]), nil
}

func align4(off uint32) uint32 {
	return (off + 3) &^ 3
}

// parseTree walks the struct block of a flattened devicetree image held
// entirely in data (header included) and returns the summary built from
// the tree's root node.
func parseTree(data []byte) (*Summary, error) {
	if len(data) < fdtHeaderSize {
		return nil, errTruncated
	}
	offStruct := be32(data[8:12])
	offStrings := be32(data[12:16])

	root := &node{name: "", props: map[string][]byte{}}
	stack := []*node{root}

	p := offStruct
	for iter := 0; iter < maxWalkIterations; iter++ {
		if p+4 > uint32(len(data)) {
			return nil, errTruncated
		}
		tag := be32(data[p : p+4])
		p += 4
		switch tag {
		case fdtBeginNode:
			name, err := cString(data, p)
			if err != nil {
				return nil, err
			}
			p = align4(p + uint32(len(name)) + 1)
			n := &node{name: name, props: map[string][]byte{}}
			stack[len(stack)-1].children = append(stack[len(stack)-1].children, n)
			stack = append(stack, n)
			if len(stack) > 64 {
				return nil, errTooDeep
			}
		case fdtEndNode:
			if len(stack) <= 1 {
				return nil, errUnbalanced
			}
			stack = stack[:len(stack)-1]
		case fdtProp:
			if p+8 > uint32(len(data)) {
				return nil, errTruncated
			}
			plen := be32(data[p : p+4])
			nameOff := be32(data[p+4 : p+8])
			p += 8
			if p+plen > uint32(len(data)) {
				return nil, errTruncated
			}
			propName, err := cString(data, offStrings+nameOff)
			if err != nil {
				return nil, err
			}
			stack[len(stack)-1].props[propName] = data[p : p+plen]
			p = align4(p + plen)
		case fdtNop:
		case fdtEnd:
			if len(stack) != 1 {
				return nil, errUnbalanced
			}
			// The blob's own root node (named "") is the single child of
			// the synthetic node the walk starts from.
			top := root
			if len(root.children) == 1 && root.children[0].name == "" {
				top = root.children[0]
			}
			return summarize(top), nil
		default:
			return nil, errTruncated
		}
	}
	return nil, errTruncated
}

func summarize(root *node) *Summary {
	s := &Summary{
		HartCount: hartCount(root),
		Memory:    memoryRange(root),
		UART:      uartConfig(root),
	}
	return s
}

func hartCount(root *node) uint32 {
	cpus := root.child("cpus")
	if cpus == nil {
		return 1
	}
	count := uint32(0)
	for _, c := range cpus.children {
		if !isCPUNode(c.name) {
			continue
		}
		status, ok := c.props["status"]
		if ok && stringsTrimNul(status) == "disabled" {
			continue
		}
		count++
	}
	if count == 0 {
		return 1
	}
	return count
}

// isCPUNode reports whether name names an actual CPU node ("cpu" or
// "cpu@...") rather than some other /cpus child such as "cpu-map",
// which carries no status property and must not be counted as a hart.
func isCPUNode(name string) bool {
	return name == "cpu" || strings.HasPrefix(name, "cpu@")
}

func stringsTrimNul(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

func memoryRange(root *node) MemoryRange {
	for _, c := range root.children {
		if c.name == "memory" || strings.HasPrefix(c.name, "memory@") {
			reg, ok := c.props["reg"]
			if ok && len(reg) >= 16 {
				return MemoryRange{
					Start: uintptr(be64(reg[0:8])),
					Size:  uintptr(be64(reg[8:16])),
				}
			}
		}
	}
	return DefaultMemory
}

func uartConfig(root *node) *console.Config {
	chosen := root.child("chosen")
	if chosen == nil {
		return nil
	}
	raw, ok := chosen.props["stdout-path"]
	if !ok {
		return nil
	}
	path := stringsTrimNul(raw)
	if i := strings.IndexByte(path, ':'); i >= 0 {
		path = path[:i]
	}
	target := root.lookup(path)
	if target == nil {
		return nil
	}
	compat, ok := target.props["compatible"]
	if !ok || !compatContainsNS16550(compat) {
		return nil
	}
	reg, ok := target.props["reg"]
	if !ok || len(reg) < 16 {
		return nil
	}
	base := uintptr(be64(reg[0:8]))

	regShift := readU32Prop(target, "reg-shift", 0)
	regIOWidth := readU32Prop(target, "reg-io-width", 1)
	stride := uintptr(regIOWidth) << regShift
	if stride == 0 {
		stride = 1
	}
	return &console.Config{
		Base:        base,
		THROffset:   0 * stride,
		LSROffset:   5 * stride,
		LSRThreMask: 0x20,
	}
}

func readU32Prop(n *node, name string, def uint32) uint32 {
	raw, ok := n.props[name]
	if !ok || len(raw) < 4 {
		return def
	}
	return be32(raw[0:4])
}

func compatContainsNS16550(raw []byte) bool {
	for _, s := range strings.Split(stringsTrimNul(raw), "\x00") {
		if strings.Contains(s, "ns16550") {
			return true
		}
	}
	return false
}

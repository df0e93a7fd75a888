package msl

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/mtlcc/ir"
)

// slotClass partitions the Metal argument table.
type slotClass uint8

const (
	classBuffer slotClass = iota
	classTexture
	classSampler
	classCount
)

func (c slotClass) String() string {
	switch c {
	case classBuffer:
		return "buffer"
	case classTexture:
		return "texture"
	case classSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

type binding struct {
	class slotClass
	slot  int
}

// bindingTable assigns argument slots first-touch: the first request
// for a variable allocates the next free slot in its class, and
// every later request returns the same slot. Once frozen the table
// rejects new assignments, so reflection output cannot drift from
// the emitted code.
type bindingTable struct {
	limits   [classCount]int
	next     [classCount]int
	slots    map[*ir.Variable]binding
	order    [classCount][]*ir.Variable
	overflow map[*ir.Variable]struct{}
	frozen   bool
	diags    *DiagnosticList
}

func newBindingTable(target Target, diags *DiagnosticList) *bindingTable {
	return &bindingTable{
		limits:   [classCount]int{target.MaxBufferSlots, target.MaxTextureSlots, target.MaxSamplerSlots},
		slots:    make(map[*ir.Variable]binding),
		overflow: make(map[*ir.Variable]struct{}),
		diags:    diags,
	}
}

// assign returns the slot for v, allocating on first touch. The
// second result is false when the class is exhausted; the overflow
// is recorded once per variable and compilation continues so every
// overflow is collected.
func (t *bindingTable) assign(v *ir.Variable, class slotClass) (int, bool) {
	if b, ok := t.slots[v]; ok {
		return b.slot, true
	}
	if _, ok := t.overflow[v]; ok {
		return 0, false
	}
	if t.frozen {
		t.diags.addf(ErrStructural, v.Name, "resource touched after layout freeze")
		return 0, false
	}
	slot := t.next[class]
	if slot >= t.limits[class] {
		t.overflow[v] = struct{}{}
		t.diags.addf(ErrCapability, v.Name, "out of %s slots (limit %d)", class, t.limits[class])
		return 0, false
	}
	t.next[class] = slot + 1
	t.slots[v] = binding{class: class, slot: slot}
	t.order[class] = append(t.order[class], v)
	return slot, true
}

// lookup returns the binding for v without allocating.
func (t *bindingTable) lookup(v *ir.Variable) (binding, bool) {
	b, ok := t.slots[v]
	return b, ok
}

// freeze stops further allocation.
func (t *bindingTable) freeze() {
	t.frozen = true
}

// count returns the number of slots assigned in a class.
func (t *bindingTable) count(class slotClass) int {
	return t.next[class]
}

// constantBufferMask marks the buffer slots bound to constant
// buffers, the implicit globals block included.
func (t *bindingTable) constantBufferMask() uint64 {
	var mask uint64
	for slot, v := range t.order[classBuffer] {
		if _, ok := v.Type.(*ir.Aggregate); ok {
			mask |= 1 << uint(slot)
		}
	}
	return mask
}

// typedBufferMask marks the buffer slots accessed through a texel
// format conversion.
func (t *bindingTable) typedBufferMask() uint64 {
	var mask uint64
	for slot, v := range t.order[classBuffer] {
		if b, ok := v.Type.(ir.Buffer); ok && b.Addressing == ir.AddrTyped {
			mask |= 1 << uint(slot)
		}
	}
	return mask
}

// typedFormats records the texel format of every typed buffer slot,
// nil when the layout has none.
func (t *bindingTable) typedFormats() map[int]string {
	var formats map[int]string
	for slot, v := range t.order[classBuffer] {
		b, ok := v.Type.(ir.Buffer)
		if !ok || b.Addressing != ir.AddrTyped {
			continue
		}
		if formats == nil {
			formats = make(map[int]string)
		}
		formats[slot] = typedFormat(b.Elem)
	}
	return formats
}

// typedFormat names the texel format a typed buffer element maps to.
func typedFormat(t ir.Type) string {
	elem, width := t, 1
	if v, ok := t.(ir.Vector); ok {
		elem, width = v.Elem, int(v.Width)
	}
	channels := [5]string{1: "R", 2: "RG", 3: "RGB", 4: "RGBA"}[width]
	s, _ := elem.(ir.Scalar)
	switch s.Kind {
	case ir.Half:
		return channels + "16Half"
	case ir.Uint:
		return channels + "32Uint"
	case ir.Int:
		return channels + "32Sint"
	default:
		return channels + "32Float"
	}
}

// layoutHash digests the frozen layout: class, slot and name of
// every binding in slot order.
func (t *bindingTable) layoutHash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for class := slotClass(0); class < classCount; class++ {
		for slot, v := range t.order[class] {
			buf[0] = byte(class)
			binary.LittleEndian.PutUint32(buf[1:5], uint32(slot))
			d.Write(buf[:5])
			d.WriteString(v.Name)
		}
	}
	return d.Sum64()
}

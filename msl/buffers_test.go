package msl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/mtlcc/ir"
)

func TestBindingTable_FirstTouch(t *testing.T) {
	var diags DiagnosticList
	table := newBindingTable(DefaultTarget(), &diags)

	a := &ir.Variable{Name: "a"}
	b := &ir.Variable{Name: "b"}
	tex := &ir.Variable{Name: "tex"}

	if slot, ok := table.assign(a, classBuffer); !ok || slot != 0 {
		t.Errorf("first buffer slot = %d, %v; want 0, true", slot, ok)
	}
	if slot, ok := table.assign(b, classBuffer); !ok || slot != 1 {
		t.Errorf("second buffer slot = %d, %v; want 1, true", slot, ok)
	}
	// Repeat touches reuse the first assignment.
	if slot, ok := table.assign(a, classBuffer); !ok || slot != 0 {
		t.Errorf("repeat assign = %d, %v; want 0, true", slot, ok)
	}
	// Classes count independently.
	if slot, ok := table.assign(tex, classTexture); !ok || slot != 0 {
		t.Errorf("texture slot = %d, %v; want 0, true", slot, ok)
	}
	if table.count(classBuffer) != 2 {
		t.Errorf("buffer count = %d, want 2", table.count(classBuffer))
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}

func TestBindingTable_OverflowCollected(t *testing.T) {
	target := DefaultTarget()
	target.MaxBufferSlots = 2
	var diags DiagnosticList
	table := newBindingTable(target, &diags)

	vars := make([]*ir.Variable, 4)
	for i := range vars {
		vars[i] = &ir.Variable{Name: fmt.Sprintf("b%d", i)}
		table.assign(vars[i], classBuffer)
	}
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(diags), diags)
	}
	for _, d := range diags {
		if d.Kind != ErrCapability {
			t.Errorf("diagnostic kind = %v, want CapabilityError", d.Kind)
		}
	}
	// A repeat touch of an overflowed variable reports nothing new.
	table.assign(vars[3], classBuffer)
	if len(diags) != 2 {
		t.Errorf("repeat overflow touch added a diagnostic: %v", diags)
	}
}

func TestBindingTable_Frozen(t *testing.T) {
	var diags DiagnosticList
	table := newBindingTable(DefaultTarget(), &diags)
	a := &ir.Variable{Name: "a"}
	table.assign(a, classBuffer)
	table.freeze()

	// Frozen tables still answer for assigned variables.
	if slot, ok := table.assign(a, classBuffer); !ok || slot != 0 {
		t.Errorf("assigned lookup after freeze = %d, %v; want 0, true", slot, ok)
	}
	if _, ok := table.assign(&ir.Variable{Name: "late"}, classBuffer); ok {
		t.Error("new assignment succeeded after freeze")
	}
	if len(diags) != 1 || diags[0].Kind != ErrStructural {
		t.Errorf("expected one structural diagnostic, got %v", diags)
	}
}

func TestBindingTable_LayoutHash(t *testing.T) {
	build := func(names ...string) *bindingTable {
		var diags DiagnosticList
		table := newBindingTable(DefaultTarget(), &diags)
		for _, name := range names {
			table.assign(&ir.Variable{Name: name}, classBuffer)
		}
		return table
	}
	if build("a", "b").layoutHash() != build("a", "b").layoutHash() {
		t.Error("identical layouts hash differently")
	}
	if build("a", "b").layoutHash() == build("b", "a").layoutHash() {
		t.Error("reordered layouts hash identically")
	}
}

func TestBindingTable_MasksAndFormats(t *testing.T) {
	var diags DiagnosticList
	table := newBindingTable(DefaultTarget(), &diags)

	cb := &ir.Variable{Name: "frame", Type: &ir.Aggregate{Name: "Frame"}}
	raw := &ir.Variable{Name: "raw", Type: ir.Buffer{Elem: uintType, Addressing: ir.AddrByte}}
	typed := &ir.Variable{Name: "colors", Type: ir.Buffer{Elem: float4Type, Addressing: ir.AddrTyped}}
	counts := &ir.Variable{Name: "counts", Type: ir.Buffer{Elem: uintType, Addressing: ir.AddrTyped}}
	for _, v := range []*ir.Variable{cb, raw, typed, counts} {
		table.assign(v, classBuffer)
	}

	if mask := table.constantBufferMask(); mask != 0b0001 {
		t.Errorf("constant buffer mask = %04b, want 0001", mask)
	}
	if mask := table.typedBufferMask(); mask != 0b1100 {
		t.Errorf("typed buffer mask = %04b, want 1100", mask)
	}
	formats := table.typedFormats()
	if got, want := formats[2], "RGBA32Float"; got != want {
		t.Errorf("slot 2 format = %q, want %q", got, want)
	}
	if got, want := formats[3], "R32Uint"; got != want {
		t.Errorf("slot 3 format = %q, want %q", got, want)
	}
	if len(formats) != 2 {
		t.Errorf("got %d typed formats, want 2: %v", len(formats), formats)
	}
}

func TestCompile_BufferSlotCeiling(t *testing.T) {
	target := DefaultTarget()
	target.MaxBufferSlots = 2

	params := make([]*ir.Variable, 4)
	for i := range params {
		params[i] = &ir.Variable{
			Name: fmt.Sprintf("b%d", i),
			Type: ir.Buffer{Elem: float4Type},
			Mode: ir.ModeUniform,
		}
	}
	fn := &ir.Function{
		Name:       "CSMain",
		Params:     params,
		Attributes: ir.FunctionAttributes{NumThreads: [3]uint32{64, 1, 1}},
	}
	program := &ir.Program{Functions: []*ir.Function{fn}}

	opts := stageOptions("CSMain", ir.StageCompute)
	opts.Target = target
	src, _, err := Compile(program, opts)
	if err == nil {
		t.Fatal("expected error")
	}
	if src != "" {
		t.Errorf("got output alongside overflow error:\n%s", src)
	}
	if !IsCapability(err) {
		t.Fatalf("expected capability error, got %v", err)
	}
	var list DiagnosticList
	if !errors.As(err, &list) {
		t.Fatalf("error does not carry a diagnostic list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d overflow diagnostics, want 2: %v", len(list), list)
	}
}

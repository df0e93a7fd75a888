package msl

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/mtlcc/ir"
)

func TestRestrictions_VertexWritesCollected(t *testing.T) {
	vid := &ir.Variable{Name: "vid", Type: uintType, Mode: ir.ModeIn, Semantic: "SV_VertexID"}
	bufA := &ir.Variable{Name: "bufA", Type: ir.Buffer{Elem: uintType, Writable: true}, Mode: ir.ModeUniform}
	bufB := &ir.Variable{Name: "bufB", Type: ir.Buffer{Elem: uintType, Writable: true}, Mode: ir.ModeUniform}
	img := &ir.Variable{Name: "img", Type: ir.Texture{Dim: ir.Dim2D, Elem: floatType, Storage: true}, Mode: ir.ModeUniform}

	fn := &ir.Function{
		Name:           "VSMain",
		Params:         []*ir.Variable{vid, bufA, bufB, img},
		Return:         float4Type,
		ReturnSemantic: "SV_Position",
		Body: []ir.Stmt{
			&ir.Assign{LHS: &ir.Index{Base: vref(bufA), Index: vref(vid)}, RHS: ir.LitUint(1)},
			&ir.Assign{LHS: &ir.Index{Base: vref(bufB), Index: vref(vid)}, RHS: ir.LitUint(2)},
			// Writing the same buffer twice is one violation.
			&ir.Assign{LHS: &ir.Index{Base: vref(bufA), Index: vref(vid)}, RHS: ir.LitUint(3)},
			&ir.TexWrite{
				Texture: vref(img),
				Coord:   &ir.Construct{Type: ir.Vector{Elem: uintType, Width: 2}, Args: []ir.Expr{vref(vid), vref(vid)}},
				Value:   &ir.Construct{Type: float4Type, Args: []ir.Expr{ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(1)}},
			},
			&ir.Return{Value: &ir.Construct{Type: float4Type, Args: []ir.Expr{
				ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(1),
			}}},
		},
	}
	program := &ir.Program{Functions: []*ir.Function{fn}}

	src, _, err := Compile(program, stageOptions("VSMain", ir.StageVertex))
	if err == nil {
		t.Fatal("expected error")
	}
	if src != "" {
		t.Error("got output alongside restriction error")
	}
	var list DiagnosticList
	if !errors.As(err, &list) {
		t.Fatalf("error does not carry a diagnostic list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d violations, want 3: %v", len(list), list)
	}
	for _, d := range list {
		if d.Kind != ErrCapability {
			t.Errorf("diagnostic kind = %v, want CapabilityError", d.Kind)
		}
		if !strings.Contains(d.Message, "vertex stage cannot write device memory") {
			t.Errorf("unexpected message %q", d.Message)
		}
	}
}

func TestRestrictions_FragmentMayWrite(t *testing.T) {
	pos := &ir.Variable{Name: "pos", Type: float4Type, Mode: ir.ModeIn, Semantic: "SV_Position"}
	counters := &ir.Variable{Name: "counters", Type: ir.Buffer{Elem: uintType, Writable: true}, Mode: ir.ModeUniform}

	fn := &ir.Function{
		Name:           "PSMain",
		Params:         []*ir.Variable{pos, counters},
		Return:         float4Type,
		ReturnSemantic: "SV_Target",
		Body: []ir.Stmt{
			&ir.Assign{LHS: &ir.Index{Base: vref(counters), Index: ir.LitUint(0)}, RHS: ir.LitUint(1)},
			&ir.Return{Value: vref(pos)},
		},
	}
	program := &ir.Program{Functions: []*ir.Function{fn}}

	src, _ := mustCompile(t, program, stageOptions("PSMain", ir.StageFragment))
	wantContains(t, src,
		"device uint* counters [[buffer(0)]]",
		"counters[0u] = 1u;",
	)
}

func TestRestrictions_OutParamCountsAsWrite(t *testing.T) {
	// Storing into a buffer through a callee's out parameter is a
	// write at the call site.
	sink := &ir.Variable{Name: "result", Type: uintType, Mode: ir.ModeOut}
	helper := &ir.Function{
		Name:   "produce",
		Params: []*ir.Variable{sink},
		Body: []ir.Stmt{
			&ir.Assign{LHS: vref(sink), RHS: ir.LitUint(7)},
		},
	}

	vid := &ir.Variable{Name: "vid", Type: uintType, Mode: ir.ModeIn, Semantic: "SV_VertexID"}
	buf := &ir.Variable{Name: "buf", Type: ir.Buffer{Elem: uintType, Writable: true}, Mode: ir.ModeUniform}
	entry := &ir.Function{
		Name:           "VSMain",
		Params:         []*ir.Variable{vid, buf},
		Return:         float4Type,
		ReturnSemantic: "SV_Position",
		Body: []ir.Stmt{
			&ir.Call{Callee: helper, Args: []ir.Expr{&ir.Index{Base: vref(buf), Index: vref(vid)}}},
			&ir.Return{Value: &ir.Construct{Type: float4Type, Args: []ir.Expr{
				ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(0), ir.LitFloat(1),
			}}},
		},
	}
	program := &ir.Program{Functions: []*ir.Function{helper, entry}}

	_, _, err := Compile(program, stageOptions("VSMain", ir.StageVertex))
	if err == nil || !IsCapability(err) {
		t.Fatalf("expected capability error, got %v", err)
	}
}

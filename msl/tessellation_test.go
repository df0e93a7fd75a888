package msl

import (
	"strings"
	"testing"

	"github.com/gogpu/mtlcc/ir"
)

// tessProgram builds a vertex+hull+patch-constant triple with 3
// input control points and the given output control point count.
func tessProgram(outCP uint32) *ir.Program {
	vsOut := &ir.Aggregate{Name: "VertexOut", Fields: []ir.Field{
		{Name: "position", Type: float4Type},
	}}
	hullOut := &ir.Aggregate{Name: "HullOut", Fields: []ir.Field{
		{Name: "position", Type: float4Type},
	}}
	patchOut := &ir.Aggregate{Name: "PatchConstants", Fields: []ir.Field{
		{Name: "edges", Type: ir.Array{Elem: floatType, Count: 3}, Semantic: "SV_TessFactor"},
		{Name: "inside", Type: floatType, Semantic: "SV_InsideTessFactor"},
	}}

	vid := &ir.Variable{Name: "vid", Type: uintType, Mode: ir.ModeIn, Semantic: "SV_VertexID"}
	verts := &ir.Variable{Name: "verts", Type: ir.Buffer{Elem: float4Type}, Mode: ir.ModeUniform}
	vout := &ir.Variable{Name: "vout", Type: vsOut, Mode: ir.ModeLocal}
	vertexFn := &ir.Function{
		Name:   "VSMain",
		Params: []*ir.Variable{vid, verts},
		Return: vsOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: vout},
			&ir.Assign{
				LHS: &ir.FieldRef{Base: vref(vout), Name: "position"},
				RHS: &ir.Index{Base: vref(verts), Index: vref(vid)},
			},
			&ir.Return{Value: vref(vout)},
		},
	}

	cps := &ir.Variable{Name: "cps", Type: ir.Patch{ControlPoint: vsOut, Length: 3}, Mode: ir.ModeIn}
	cpid := &ir.Variable{Name: "cpid", Type: uintType, Mode: ir.ModeIn, Semantic: "SV_OutputControlPointID"}
	hout := &ir.Variable{Name: "hout", Type: hullOut, Mode: ir.ModeLocal}
	hullFn := &ir.Function{
		Name:   "HSMain",
		Params: []*ir.Variable{cps, cpid},
		Return: hullOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: hout},
			&ir.Assign{
				LHS: &ir.FieldRef{Base: vref(hout), Name: "position"},
				RHS: &ir.FieldRef{Base: &ir.Index{Base: vref(cps), Index: vref(cpid)}, Name: "position"},
			},
			&ir.Return{Value: vref(hout)},
		},
		Attributes: ir.FunctionAttributes{Tess: &ir.TessAttributes{
			Domain:              ir.DomainTri,
			Partitioning:        ir.PartitionInteger,
			Winding:             ir.WindingCW,
			OutputControlPoints: outCP,
			MaxTessFactor:       64,
			PatchConstantFunc:   "HSConst",
		}},
	}

	outCps := &ir.Variable{Name: "outCps", Type: ir.Patch{ControlPoint: hullOut, Length: outCP, Output: true}, Mode: ir.ModeIn}
	pout := &ir.Variable{Name: "pout", Type: patchOut, Mode: ir.ModeLocal}
	patchFn := &ir.Function{
		Name:   "HSConst",
		Params: []*ir.Variable{outCps},
		Return: patchOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: pout},
			&ir.Assign{LHS: &ir.Index{Base: &ir.FieldRef{Base: vref(pout), Name: "edges"}, Index: ir.LitUint(0)}, RHS: ir.LitFloat(4)},
			&ir.Assign{LHS: &ir.Index{Base: &ir.FieldRef{Base: vref(pout), Name: "edges"}, Index: ir.LitUint(1)}, RHS: ir.LitFloat(4)},
			&ir.Assign{LHS: &ir.Index{Base: &ir.FieldRef{Base: vref(pout), Name: "edges"}, Index: ir.LitUint(2)}, RHS: ir.LitFloat(4)},
			&ir.Assign{LHS: &ir.FieldRef{Base: vref(pout), Name: "inside"}, RHS: ir.LitFloat(4)},
			&ir.Return{Value: vref(pout)},
		},
	}

	return &ir.Program{
		Types:     []*ir.Aggregate{vsOut, hullOut, patchOut},
		Functions: []*ir.Function{vertexFn, hullFn, patchFn},
	}
}

func tessOptions() *Options {
	opts := stageOptions("HSMain", ir.StageHull)
	opts.VertexEntry = "VSMain"
	return opts
}

func TestTessellation_Collapse(t *testing.T) {
	src, info := mustCompile(t, tessProgram(3), tessOptions())

	// Equal control point counts collapse the stride loop into a
	// single guarded invocation.
	if strings.Contains(src, "while (true)") {
		t.Error("collapsed pipeline still emits a stride loop")
	}
	wantContains(t, src,
		"kernel void hs_Main(uint threadIndex [[thread_index_in_threadgroup]]",
		"uint groupID [[threadgroup_position_in_grid]]",
		"uint patchIDInThreadgroup = (threadIndex / 3u);",
		"bool isPatchValid = (internalPatchID < patchCount[0u]);",
		"uint inputControlPointID = (threadIndex % 3u);",
		"threadgroup _array30_VertexOut inputControlPoints;",
		"struct _array30_VertexOut { VertexOut inner[30]; };",
		"uint vertexIndex = indexBuffer[((internalPatchID * 3u) + inputControlPointID)];",
		"vertexOut = VSMain(vertexIndex, verts);",
		"uint outputControlPointID = inputControlPointID;",
		"controlPointOut = HSMain(&inputControlPoints.inner[(patchIDInThreadgroup * 3u)], outputControlPointID);",
		"PatchControlPointOutBuffer[((internalPatchID * 3u) + outputControlPointID)] = controlPointOut;",
		"patchConstOut = HSConst(&PatchControlPointOutBuffer[(internalPatchID * 3u)]);",
		"__HSOut[internalPatchID] = patchConstOut;",
		"__HSTFOut[((internalPatchID * 4u) + 0u)] = half(patchConstOut.edges[0u]);",
		"__HSTFOut[((internalPatchID * 4u) + 3u)] = half(patchConstOut.inside);",
		"#define TessellationOutputControlPoints 3",
		"#define TessellationInputControlPoints 3",
		"#define TessellationPatchesPerThreadGroup 10",
		"#define TessellationMaxTessFactor 64.0",
	)

	if info.NumThreads != [3]uint32{30, 1, 1} {
		t.Errorf("NumThreads = %v, want 30x1x1", info.NumThreads)
	}
}

func TestTessellation_BarrierPlacement(t *testing.T) {
	src, _ := mustCompile(t, tessProgram(3), tessOptions())

	const barrier = "threadgroup_barrier(metal::mem_flags::mem_threadgroup);"
	first := strings.Index(src, barrier)
	last := strings.LastIndex(src, barrier)
	if first < 0 || first == last {
		t.Fatalf("expected two barriers, output:\n%s", src)
	}

	vertexStore := strings.Index(src, "inputControlPoints.inner[((patchIDInThreadgroup * 3u) + inputControlPointID)] = vertexOut;")
	hullCall := strings.Index(src, "controlPointOut = HSMain(")
	patchCall := strings.Index(src, "patchConstOut = HSConst(")
	if vertexStore < 0 || hullCall < 0 || patchCall < 0 {
		t.Fatalf("missing phase markers, output:\n%s", src)
	}
	if !(vertexStore < first && first < hullCall) {
		t.Error("first barrier does not separate vertex stores from hull reads")
	}
	if !(hullCall < last && last < patchCall) {
		t.Error("second barrier does not precede the patch constant phase")
	}
}

func TestTessellation_StrideLoop(t *testing.T) {
	src, info := mustCompile(t, tessProgram(6), tessOptions())

	wantContains(t, src,
		"while (true) {",
		"if ((baseControlPointID >= 6u)) {",
		"break;",
		"outputControlPointID = (baseControlPointID + inputControlPointID);",
		"if ((outputControlPointID < 6u)) {",
		"baseControlPointID = (baseControlPointID + 3u);",
		"#define TessellationOutputControlPoints 6",
		"#define TessellationPatchesPerThreadGroup 5",
	)
	if info.NumThreads != [3]uint32{30, 1, 1} {
		t.Errorf("NumThreads = %v, want 30x1x1", info.NumThreads)
	}
}

func TestTessellation_ControlPointStructRenamed(t *testing.T) {
	src, _ := mustCompile(t, tessProgram(3), tessOptions())

	if strings.Contains(src, "struct HullOut {") {
		t.Error("hull output struct kept its source name")
	}
	if !strings.Contains(src, "struct PatchControlPointOut_") {
		t.Error("hull output struct not renamed to its layout digest")
	}

	// The digest is a function of the struct shape, so repeat
	// compiles agree on the name.
	again, _ := mustCompile(t, tessProgram(3), tessOptions())
	if src != again {
		t.Error("tessellation compile is not deterministic")
	}
}

func TestTessellation_SystemBufferBindings(t *testing.T) {
	src, _ := mustCompile(t, tessProgram(3), tessOptions())

	wantContains(t, src,
		"const device metal::float4* verts [[buffer(0)]]",
		"const device uint* patchCount [[buffer(1)]]",
		"const device uint* indexBuffer [[buffer(2)]]",
		"device PatchConstants* __HSOut [[buffer(3)]]",
		"PatchControlPointOutBuffer [[buffer(4)]]",
		"device half* __HSTFOut [[buffer(5)]]",
		"// @TessellationOutputControlPoints: 3",
		"// @TessellationDomain: tri",
		"// @TessellationInputControlPoints: 3",
		"// @TessellationMaxTessFactor: 64.0",
		"// @TessellationOutputWinding: cw",
		"// @TessellationPartitioning: integer",
		"// @TessellationPatchesPerThreadGroup: 10",
		"// @TessellationPatchCountBuffer: 1",
		"// @TessellationIndexBuffer: 2",
		"// @TessellationHSOutBuffer: 3",
		"// @TessellationControlPointOutBuffer: 4",
		"// @TessellationHSTFOutBuffer: 5",
		"// @NumThreads: 30, 1, 1",
	)
}

func TestTessellation_QuadFactorStores(t *testing.T) {
	program := tessProgram(3)
	hull := program.FindFunction("HSMain")
	hull.Attributes.Tess.Domain = ir.DomainQuad
	patchOut := program.Types[2]
	patchOut.Fields = []ir.Field{
		{Name: "edges", Type: ir.Array{Elem: floatType, Count: 4}, Semantic: "SV_TessFactor"},
		{Name: "inside", Type: ir.Array{Elem: floatType, Count: 2}, Semantic: "SV_InsideTessFactor"},
	}
	patchFn := program.FindFunction("HSConst")
	pout := &ir.Variable{Name: "pout", Type: patchOut, Mode: ir.ModeLocal}
	patchFn.Body = []ir.Stmt{
		&ir.Declare{Var: pout},
		&ir.Return{Value: vref(pout)},
	}

	src, _ := mustCompile(t, program, tessOptions())
	wantContains(t, src,
		"// @TessellationDomain: quad",
		"__HSTFOut[((internalPatchID * 6u) + 3u)] = half(patchConstOut.edges[3u]);",
		"__HSTFOut[((internalPatchID * 6u) + 4u)] = half(patchConstOut.inside[0u]);",
		"__HSTFOut[((internalPatchID * 6u) + 5u)] = half(patchConstOut.inside[1u]);",
	)
}

func TestTessellation_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ir.Program, opts *Options)
	}{
		{
			name: "no vertex entry named",
			mutate: func(p *ir.Program, opts *Options) {
				opts.VertexEntry = ""
			},
		},
		{
			name: "vertex entry not found",
			mutate: func(p *ir.Program, opts *Options) {
				opts.VertexEntry = "Missing"
			},
		},
		{
			name: "missing tessellation attributes",
			mutate: func(p *ir.Program, opts *Options) {
				p.FindFunction("HSMain").Attributes.Tess = nil
			},
		},
		{
			name: "patch constant function not found",
			mutate: func(p *ir.Program, opts *Options) {
				p.FindFunction("HSMain").Attributes.Tess.PatchConstantFunc = "Missing"
			},
		},
		{
			name: "threadgroup budget exceeded",
			mutate: func(p *ir.Program, opts *Options) {
				p.FindFunction("HSMain").Attributes.Tess.OutputControlPoints = 33
			},
		},
		{
			name: "no edge factors",
			mutate: func(p *ir.Program, opts *Options) {
				p.Types[2].Fields = []ir.Field{{Name: "pad", Type: floatType}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := tessProgram(3)
			opts := tessOptions()
			tt.mutate(program, opts)
			src, _, err := Compile(program, opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsStructural(err) {
				t.Errorf("expected structural error, got %v", err)
			}
			if src != "" {
				t.Error("got output alongside error")
			}
		})
	}
}

// Command mtlcc compiles the built-in demo programs to Metal source.
//
// The module is a backend library; until a front end feeds it, the
// CLI exists to inspect what the backend emits for representative
// pipelines.
//
// Usage:
//
//	mtlcc [options] <demo>
//
// Examples:
//
//	mtlcc triangle                  # Vertex shader for a lit triangle
//	mtlcc -o out.metal compute      # Compute kernel, written to a file
//	mtlcc -bounds tessellation      # Fused tessellation kernel, checked accesses
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/gogpu/mtlcc"
	"github.com/gogpu/mtlcc/ir"
	"github.com/gogpu/mtlcc/msl"
)

var (
	output   = flag.String("o", "", "output file (default: stdout)")
	bounds   = flag.Bool("bounds", false, "clamp buffer and array indices")
	fastMath = flag.Bool("fastmath", true, "allow relaxed-precision math")
	version  = flag.Bool("version", false, "print version")
)

const mtlccVersion = "0.1.0-dev"

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("mtlcc version %s\n", mtlccVersion)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fail("no demo named")
	}

	program, options := demoProgram(args[0])
	if program == nil {
		fail(fmt.Sprintf("unknown demo %q (want triangle, fullscreen, compute or tessellation)", args[0]))
	}
	options.BoundsChecks = *bounds
	options.FastMath = *fastMath

	src, info, err := mtlcc.Compile(program, options)
	if err != nil {
		fail(err.Error())
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(src), 0644); err != nil {
			fail(err.Error())
		}
		fmt.Printf("%s: entry %s, layout %016x, %d buffer slot(s)\n",
			*output, info.EntryPointName, info.LayoutHash, info.BufferSlots)
		return
	}
	fmt.Print(src)
}

// fail prints an error, in red when stderr is a terminal, and
// exits.
func fail(msg string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[31merror:\x1b[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: mtlcc [options] <demo>")
	fmt.Fprintln(os.Stderr, "Demos: triangle, fullscreen, compute, tessellation")
	flag.PrintDefaults()
}

// demoProgram builds one of the sample pipelines.
func demoProgram(name string) (*ir.Program, *msl.Options) {
	switch name {
	case "triangle":
		return triangleDemo()
	case "fullscreen":
		return fullscreenDemo()
	case "compute":
		return computeDemo()
	case "tessellation":
		return tessellationDemo()
	default:
		return nil, nil
	}
}

// triangleDemo is a vertex shader reading positions from a
// structured buffer and applying a uniform transform.
func triangleDemo() (*ir.Program, *msl.Options) {
	float4 := ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: 4}
	mat4 := ir.Matrix{Elem: ir.Scalar{Kind: ir.Float}, Cols: 4, Rows: 4}

	cb := &ir.Aggregate{Name: "FrameConstants", Fields: []ir.Field{
		{Name: "worldViewProj", Type: mat4},
	}}
	frame := &ir.Variable{Name: "frame", Type: cb, Mode: ir.ModeUniform}
	verts := &ir.Variable{Name: "verts", Type: ir.Buffer{Elem: float4}, Mode: ir.ModeUniform}
	vid := &ir.Variable{Name: "vid", Type: ir.Scalar{Kind: ir.Uint}, Mode: ir.ModeIn, Semantic: "SV_VertexID"}

	pos := &ir.Variable{Name: "pos", Type: float4, Mode: ir.ModeLocal}
	vs := &ir.Function{
		Name:           "VSMain",
		Params:         []*ir.Variable{vid, frame, verts},
		Return:         float4,
		ReturnSemantic: "SV_Position",
		Body: []ir.Stmt{
			&ir.Declare{Var: pos, Init: &ir.Index{Base: &ir.VarRef{Var: verts}, Index: &ir.VarRef{Var: vid}}},
			&ir.Return{Value: ir.NewOp(ir.OpMul,
				&ir.FieldRef{Base: &ir.VarRef{Var: frame}, Name: "worldViewProj"},
				&ir.VarRef{Var: pos})},
		},
	}

	program := &ir.Program{Types: []*ir.Aggregate{cb}, Functions: []*ir.Function{vs}}
	options := msl.DefaultOptions()
	options.EntryPoint = "VSMain"
	options.Stage = ir.StageVertex
	return program, options
}

// fullscreenDemo is a fragment shader sampling a texture.
func fullscreenDemo() (*ir.Program, *msl.Options) {
	float2 := ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: 2}
	float4 := ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: 4}

	tex := &ir.Variable{Name: "sceneColor", Type: ir.Texture{Dim: ir.Dim2D, Elem: ir.Scalar{Kind: ir.Float}}, Mode: ir.ModeUniform}
	smp := &ir.Variable{Name: "linearSampler", Type: ir.Sampler{}, Mode: ir.ModeUniform}
	uv := &ir.Variable{Name: "uv", Type: float2, Mode: ir.ModeIn, Semantic: "TEXCOORD0"}
	exposure := &ir.Variable{Name: "exposure", Type: ir.Scalar{Kind: ir.Float}, Mode: ir.ModeUniform}

	ps := &ir.Function{
		Name:           "PSMain",
		Params:         []*ir.Variable{uv, tex, smp, exposure},
		Return:         float4,
		ReturnSemantic: "SV_Target0",
		Body: []ir.Stmt{
			&ir.Return{Value: ir.NewOp(ir.OpMul,
				&ir.TexSample{Texture: &ir.VarRef{Var: tex}, Sampler: &ir.VarRef{Var: smp}, Coord: &ir.VarRef{Var: uv}},
				&ir.Construct{Type: float4, Args: []ir.Expr{&ir.VarRef{Var: exposure}}})},
		},
	}

	program := &ir.Program{Functions: []*ir.Function{ps}}
	options := msl.DefaultOptions()
	options.EntryPoint = "PSMain"
	options.Stage = ir.StageFragment
	return program, options
}

// computeDemo doubles a buffer in place.
func computeDemo() (*ir.Program, *msl.Options) {
	float4 := ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: 4}

	data := &ir.Variable{Name: "data", Type: ir.Buffer{Elem: float4, Writable: true}, Mode: ir.ModeUniform}
	tid := &ir.Variable{Name: "tid", Type: ir.Scalar{Kind: ir.Uint}, Mode: ir.ModeIn, Semantic: "SV_DispatchThreadID"}

	cs := &ir.Function{
		Name:   "CSMain",
		Params: []*ir.Variable{tid, data},
		Body: []ir.Stmt{
			&ir.Assign{
				LHS: &ir.Index{Base: &ir.VarRef{Var: data}, Index: &ir.VarRef{Var: tid}},
				RHS: ir.NewOp(ir.OpAdd,
					&ir.Index{Base: &ir.VarRef{Var: data}, Index: &ir.VarRef{Var: tid}},
					&ir.Index{Base: &ir.VarRef{Var: data}, Index: &ir.VarRef{Var: tid}}),
			},
		},
		Attributes: ir.FunctionAttributes{NumThreads: [3]uint32{64, 1, 1}},
	}

	program := &ir.Program{Functions: []*ir.Function{cs}}
	options := msl.DefaultOptions()
	options.EntryPoint = "CSMain"
	options.Stage = ir.StageCompute
	return program, options
}

// tessellationDemo is a three-control-point passthrough pipeline:
// vertex fetch, hull passthrough, constant factors.
func tessellationDemo() (*ir.Program, *msl.Options) {
	float4 := ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: 4}
	floatT := ir.Scalar{Kind: ir.Float}

	vsOut := &ir.Aggregate{Name: "VertexOut", Fields: []ir.Field{
		{Name: "position", Type: float4, Semantic: "POSITION"},
	}}
	cpOut := &ir.Aggregate{Name: "ControlPointOut", Fields: []ir.Field{
		{Name: "position", Type: float4, Semantic: "POSITION"},
	}}
	pcOut := &ir.Aggregate{Name: "PatchConstOut", Fields: []ir.Field{
		{Name: "edges", Type: ir.Array{Elem: floatT, Count: 3}, Semantic: "SV_TessFactor"},
		{Name: "inside", Type: floatT, Semantic: "SV_InsideTessFactor"},
	}}

	verts := &ir.Variable{Name: "verts", Type: ir.Buffer{Elem: float4}, Mode: ir.ModeUniform}
	vid := &ir.Variable{Name: "vid", Type: ir.Scalar{Kind: ir.Uint}, Mode: ir.ModeIn, Semantic: "SV_VertexID"}
	vsLocal := &ir.Variable{Name: "out", Type: vsOut, Mode: ir.ModeLocal}
	vs := &ir.Function{
		Name:   "VSMain",
		Params: []*ir.Variable{vid, verts},
		Return: vsOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: vsLocal},
			&ir.Assign{
				LHS: &ir.FieldRef{Base: &ir.VarRef{Var: vsLocal}, Name: "position"},
				RHS: &ir.Index{Base: &ir.VarRef{Var: verts}, Index: &ir.VarRef{Var: vid}},
			},
			&ir.Return{Value: &ir.VarRef{Var: vsLocal}},
		},
	}

	patch := &ir.Variable{Name: "cps", Type: ir.Patch{ControlPoint: vsOut, Length: 3}, Mode: ir.ModeIn}
	cpid := &ir.Variable{Name: "cpid", Type: ir.Scalar{Kind: ir.Uint}, Mode: ir.ModeIn, Semantic: "SV_OutputControlPointID"}
	hsLocal := &ir.Variable{Name: "out", Type: cpOut, Mode: ir.ModeLocal}
	hs := &ir.Function{
		Name:   "HSMain",
		Params: []*ir.Variable{patch, cpid},
		Return: cpOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: hsLocal},
			&ir.Assign{
				LHS: &ir.FieldRef{Base: &ir.VarRef{Var: hsLocal}, Name: "position"},
				RHS: &ir.FieldRef{
					Base: &ir.Index{Base: &ir.VarRef{Var: patch}, Index: &ir.VarRef{Var: cpid}},
					Name: "position",
				},
			},
			&ir.Return{Value: &ir.VarRef{Var: hsLocal}},
		},
		Attributes: ir.FunctionAttributes{Tess: &ir.TessAttributes{
			Domain:              ir.DomainTri,
			Partitioning:        ir.PartitionInteger,
			Winding:             ir.WindingCW,
			OutputControlPoints: 3,
			MaxTessFactor:       15,
			PatchConstantFunc:   "HSConst",
		}},
	}

	pcLocal := &ir.Variable{Name: "out", Type: pcOut, Mode: ir.ModeLocal}
	pc := &ir.Function{
		Name:   "HSConst",
		Params: []*ir.Variable{{Name: "cps", Type: ir.Patch{ControlPoint: cpOut, Length: 3, Output: true}, Mode: ir.ModeIn}},
		Return: pcOut,
		Body: []ir.Stmt{
			&ir.Declare{Var: pcLocal},
			&ir.Assign{
				LHS: &ir.Index{Base: &ir.FieldRef{Base: &ir.VarRef{Var: pcLocal}, Name: "edges"}, Index: ir.LitUint(0)},
				RHS: ir.LitFloat(4),
			},
			&ir.Assign{
				LHS: &ir.Index{Base: &ir.FieldRef{Base: &ir.VarRef{Var: pcLocal}, Name: "edges"}, Index: ir.LitUint(1)},
				RHS: ir.LitFloat(4),
			},
			&ir.Assign{
				LHS: &ir.Index{Base: &ir.FieldRef{Base: &ir.VarRef{Var: pcLocal}, Name: "edges"}, Index: ir.LitUint(2)},
				RHS: ir.LitFloat(4),
			},
			&ir.Assign{
				LHS: &ir.FieldRef{Base: &ir.VarRef{Var: pcLocal}, Name: "inside"},
				RHS: ir.LitFloat(4),
			},
			&ir.Return{Value: &ir.VarRef{Var: pcLocal}},
		},
	}

	program := &ir.Program{
		Types:     []*ir.Aggregate{vsOut, cpOut, pcOut},
		Functions: []*ir.Function{vs, hs, pc},
	}
	options := msl.DefaultOptions()
	options.EntryPoint = "HSMain"
	options.Stage = ir.StageHull
	options.VertexEntry = "VSMain"
	return program, options
}

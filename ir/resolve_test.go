package ir

import "testing"

func TestTypeOfLiterals(t *testing.T) {
	cases := []struct {
		expr Expr
		want Type
	}{
		{LitBool(true), Scalar{Bool}},
		{LitInt(-3), Scalar{Int}},
		{LitUint(7), Scalar{Uint}},
		{LitFloat(1.5), Scalar{Float}},
		{LitHalf(0.25), Scalar{Half}},
	}
	for _, tc := range cases {
		if got := TypeOf(tc.expr); !SameType(got, tc.want) {
			t.Errorf("TypeOf(%#v) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestTypeOfMixedPrecision(t *testing.T) {
	h := &Variable{Name: "h", Type: Vector{Elem: Scalar{Half}, Width: 4}}
	f := &Variable{Name: "f", Type: Vector{Elem: Scalar{Float}, Width: 4}}

	got := TypeOf(NewOp(OpAdd, &VarRef{h}, &VarRef{f}))
	want := Vector{Elem: Scalar{Float}, Width: 4}
	if !SameType(got, want) {
		t.Errorf("half4 + float4 resolved to %v, want %v", got, want)
	}
}

func TestTypeOfMatrixVector(t *testing.T) {
	m := &Variable{Name: "m", Type: Matrix{Elem: Scalar{Float}, Cols: 4, Rows: 4}}
	v := &Variable{Name: "v", Type: Vector{Elem: Scalar{Float}, Width: 4}}

	want := Vector{Elem: Scalar{Float}, Width: 4}
	if got := TypeOf(NewOp(OpMul, &VarRef{m}, &VarRef{v})); !SameType(got, want) {
		t.Errorf("mat4 * float4 resolved to %v, want %v", got, want)
	}
	if got := TypeOf(NewOp(OpMul, &VarRef{v}, &VarRef{m})); !SameType(got, want) {
		t.Errorf("float4 * mat4 resolved to %v, want %v", got, want)
	}
}

func TestTypeOfComparison(t *testing.T) {
	v := &Variable{Name: "v", Type: Vector{Elem: Scalar{Float}, Width: 3}}
	want := Vector{Elem: Scalar{Bool}, Width: 3}
	if got := TypeOf(NewOp(OpLess, &VarRef{v}, &VarRef{v})); !SameType(got, want) {
		t.Errorf("float3 < float3 resolved to %v, want %v", got, want)
	}
}

func TestTypeOfBufferIndex(t *testing.T) {
	buf := &Variable{
		Name: "verts",
		Type: Buffer{Elem: Vector{Elem: Scalar{Float}, Width: 4}},
		Mode: ModeUniform,
	}
	got := TypeOf(&Index{Base: &VarRef{buf}, Index: LitUint(0)})
	want := Vector{Elem: Scalar{Float}, Width: 4}
	if !SameType(got, want) {
		t.Errorf("buffer index resolved to %v, want %v", got, want)
	}
}

func TestTypeOfSwizzle(t *testing.T) {
	v := &Variable{Name: "v", Type: Vector{Elem: Scalar{Float}, Width: 4}}
	got := TypeOf(&Swizzle{Base: &VarRef{v}, Components: []uint8{0, 1}})
	want := Vector{Elem: Scalar{Float}, Width: 2}
	if !SameType(got, want) {
		t.Errorf("v.xy resolved to %v, want %v", got, want)
	}
	if got := TypeOf(&Swizzle{Base: &VarRef{v}, Components: []uint8{3}}); !SameType(got, Scalar{Float}) {
		t.Errorf("v.w resolved to %v, want float", got)
	}
}

func TestOpOperandCounts(t *testing.T) {
	for op := Op(0); op < OpCount; op++ {
		if n := op.Operands(); n < 1 || n > 3 {
			t.Errorf("%v reports %d operands", op, n)
		}
		if op.String() == "unknown" || op.String() == "" {
			t.Errorf("op %d has no mnemonic", op)
		}
	}
}

package msl

import (
	"testing"

	"github.com/gogpu/mtlcc/ir"
)

func TestScalarTypeName(t *testing.T) {
	tests := []struct {
		kind ir.ScalarKind
		want string
	}{
		{ir.Bool, "bool"},
		{ir.Int, "int"},
		{ir.Uint, "uint"},
		{ir.Half, "half"},
		{ir.Float, "float"},
	}
	for _, tt := range tests {
		if got := scalarTypeName(tt.kind); got != tt.want {
			t.Errorf("scalarTypeName(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestCompositeTypeNames(t *testing.T) {
	if got := vectorTypeName(ir.Vector{Elem: ir.Scalar{Kind: ir.Half}, Width: 3}); got != "metal::half3" {
		t.Errorf("vectorTypeName = %q", got)
	}
	if got := matrixTypeName(ir.Matrix{Elem: floatType, Cols: 3, Rows: 4}); got != "metal::float3x4" {
		t.Errorf("matrixTypeName = %q", got)
	}
}

func TestTextureTypeName(t *testing.T) {
	w := newWriter(&ir.Program{}, DefaultOptions())
	tests := []struct {
		tex    ir.Texture
		access accessFlags
		want   string
	}{
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType}, accessRead, "metal::texture2d<float>"},
		{ir.Texture{Dim: ir.Dim3D, Elem: ir.Scalar{Kind: ir.Uint}}, accessRead, "metal::texture3d<uint>"},
		{ir.Texture{Dim: ir.DimCube, Elem: floatType}, accessRead, "metal::texturecube<float>"},
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType, Arrayed: true}, accessRead, "metal::texture2d_array<float>"},
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType, Multisampled: true}, accessRead, "metal::texture2d_ms<float>"},
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType, Shadow: true}, accessRead, "metal::depth2d<float>"},
		{ir.Texture{Dim: ir.DimCube, Elem: floatType, Shadow: true}, accessRead, "metal::depthcube<float>"},
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType, Storage: true}, accessWrite, "metal::texture2d<float, metal::access::write>"},
		{ir.Texture{Dim: ir.Dim2D, Elem: floatType, Storage: true}, accessRead | accessWrite, "metal::texture2d<float, metal::access::read_write>"},
	}
	for _, tt := range tests {
		if got := w.textureTypeName(tt.tex, tt.access); got != tt.want {
			t.Errorf("textureTypeName = %q, want %q", got, tt.want)
		}
	}
}

func TestBufferPointerType(t *testing.T) {
	w := newWriter(&ir.Program{}, DefaultOptions())
	tests := []struct {
		buf     ir.Buffer
		written bool
		want    string
	}{
		{ir.Buffer{Elem: float4Type}, false, "const device metal::float4*"},
		{ir.Buffer{Elem: float4Type, Writable: true}, true, "device metal::float4*"},
		{ir.Buffer{Elem: uintType, Addressing: ir.AddrByte}, false, "const device uint*"},
		{ir.Buffer{Elem: uintType, Addressing: ir.AddrByte}, true, "device uint*"},
		{ir.Buffer{Elem: float2Type, Addressing: ir.AddrTyped}, false, "metal::texture_buffer<float, metal::access::read>"},
		{ir.Buffer{Elem: float2Type, Addressing: ir.AddrTyped}, true, "metal::texture_buffer<float, metal::access::read_write>"},
	}
	for _, tt := range tests {
		got, err := w.bufferPointerType(tt.buf, tt.written)
		if err != nil {
			t.Fatalf("bufferPointerType failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("bufferPointerType = %q, want %q", got, tt.want)
		}
	}

	// Typed views require scalar or vector elements.
	agg := &ir.Aggregate{Name: "S"}
	if _, err := w.bufferPointerType(ir.Buffer{Elem: agg, Addressing: ir.AddrTyped}, false); err == nil {
		t.Error("expected error for aggregate typed buffer element")
	}
}

func TestMangleType(t *testing.T) {
	tests := []struct {
		typ  ir.Type
		want string
	}{
		{floatType, "float"},
		{float4Type, "float4"},
		{mat4Type, "float4x4"},
		{ir.Array{Elem: float4Type, Count: 3}, "float4_3"},
		{&ir.Aggregate{Name: "Light"}, "Light"},
	}
	for _, tt := range tests {
		if got := mangleType(tt.typ); got != tt.want {
			t.Errorf("mangleType = %q, want %q", got, tt.want)
		}
	}
}

func TestAggregateDependencyOrder(t *testing.T) {
	inner := &ir.Aggregate{Name: "Inner", Fields: []ir.Field{{Name: "v", Type: float4Type}}}
	outer := &ir.Aggregate{Name: "Outer", Fields: []ir.Field{
		{Name: "nested", Type: inner},
		{Name: "more", Type: ir.Array{Elem: inner, Count: 2}},
	}}
	// Program order lists the user before the dependency.
	w := newWriter(&ir.Program{Types: []*ir.Aggregate{outer, inner}}, DefaultOptions())

	sorted := w.sortedAggregates()
	if len(sorted) != 2 {
		t.Fatalf("got %d aggregates, want 2", len(sorted))
	}
	if sorted[0] != inner || sorted[1] != outer {
		t.Errorf("aggregates not in dependency order: %s before %s", sorted[0].Name, sorted[1].Name)
	}
}

func TestNestedArrayMembers(t *testing.T) {
	grid := &ir.Aggregate{Name: "Grid", Fields: []ir.Field{
		{Name: "cells", Type: ir.Array{Elem: ir.Array{Elem: floatType, Count: 4}, Count: 2}},
	}}
	w := newWriter(&ir.Program{Types: []*ir.Aggregate{grid}}, DefaultOptions())
	if err := w.writeAggregate(grid); err != nil {
		t.Fatalf("writeAggregate failed: %v", err)
	}
	want := "struct Grid {\n    float cells[2][4];\n};\n\n"
	if got := w.out.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"testing"

	"github.com/gogpu/mtlcc/ir"
)

func TestNamerExplicitNames(t *testing.T) {
	n := newNamer()
	a := &ir.Variable{Name: "color", Type: float4Type, Mode: ir.ModeLocal}
	b := &ir.Variable{Name: "color", Type: float4Type, Mode: ir.ModeLocal}

	if got := n.name(a); got != "color" {
		t.Errorf("first name = %q, want color", got)
	}
	if got := n.name(b); got != "color_1" {
		t.Errorf("colliding name = %q, want color_1", got)
	}
	// Stable across repeat queries.
	if got := n.name(a); got != "color" {
		t.Errorf("repeat name = %q, want color", got)
	}
}

func TestNamerEscapesReserved(t *testing.T) {
	n := newNamer()
	v := &ir.Variable{Name: "device", Type: floatType, Mode: ir.ModeLocal}
	if got := n.name(v); got != "_device" {
		t.Errorf("name = %q, want _device", got)
	}
}

func TestNamerBackendIdentifiersReserved(t *testing.T) {
	n := newNamer()
	v := &ir.Variable{Name: "BufferSizes", Type: floatType, Mode: ir.ModeLocal}
	if got := n.name(v); got != "BufferSizes_1" {
		t.Errorf("name = %q, want BufferSizes_1", got)
	}

	sys := &ir.Variable{Name: SideTableName}
	n.claim(sys, SideTableName)
	if got := n.name(sys); got != "BufferSizes" {
		t.Errorf("claimed name = %q, want BufferSizes", got)
	}
}

func TestNamerSynthesized(t *testing.T) {
	n := newNamer()
	// The id counter is shared across prefixes, so two synthesized
	// names can never collide even when their prefixes differ.
	tests := []struct {
		typ  ir.Type
		want string
	}{
		{floatType, "f0"},
		{floatType, "f1"},
		{float4Type, "v2"},
		{mat4Type, "m3"},
		{ir.Scalar{Kind: ir.Bool}, "b4"},
		{ir.Scalar{Kind: ir.Uint}, "u5"},
	}
	for _, tt := range tests {
		v := &ir.Variable{Type: tt.typ, Mode: ir.ModeLocal}
		if got := n.name(v); got != tt.want {
			t.Errorf("name = %q, want %q", got, tt.want)
		}
	}

	// File-scope names draw from a separate counter.
	g := &ir.Variable{Type: floatType, Mode: ir.ModeUniform}
	if got := n.name(g); got != "gf0" {
		t.Errorf("file-scope name = %q, want gf0", got)
	}
}

func TestNamerBeginFunctionSkipsTakenNames(t *testing.T) {
	n := newNamer()
	n.name(&ir.Variable{Type: floatType, Mode: ir.ModeTemporary})
	n.name(&ir.Variable{Type: floatType, Mode: ir.ModeTemporary})
	n.beginFunction()
	// The counter restarts but earlier spellings stay reserved.
	if got := n.name(&ir.Variable{Type: floatType, Mode: ir.ModeTemporary}); got != "f2" {
		t.Errorf("name = %q, want f2", got)
	}
}

func TestStructName(t *testing.T) {
	n := newNamer()
	if got := n.structName("Light"); got != "Light" {
		t.Errorf("structName = %q, want Light", got)
	}
	if got := n.structName("Light"); got != "Light_1" {
		t.Errorf("colliding structName = %q, want Light_1", got)
	}
	if got := n.structName(""); got != UnnamedIdentifier {
		t.Errorf("empty structName = %q, want %q", got, UnnamedIdentifier)
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"position", "position"},
		{"kernel", "_kernel"},
		{"while", "_while"},
		{"texture2d", "_texture2d"},
		{"", UnnamedIdentifier},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsReserved(t *testing.T) {
	for _, name := range []string{"constant", "half", "metal", "threadgroup_barrier"} {
		if !IsReserved(name) {
			t.Errorf("IsReserved(%q) = false, want true", name)
		}
	}
	if IsReserved("worldViewProj") {
		t.Error("IsReserved(worldViewProj) = true, want false")
	}
}

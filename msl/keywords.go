// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

// UnnamedIdentifier is the default name for empty identifiers.
const UnnamedIdentifier = "_unnamed"

// Generated identifiers reserved by the backend.
const (
	// SideTableName is the buffer-length side table parameter.
	SideTableName = "BufferSizes"

	// PatchCountName is the patch count system buffer.
	PatchCountName = "patchCount"

	// IndexBufferName is the draw index system buffer.
	IndexBufferName = "indexBuffer"

	// HullOutName receives per-patch hull outputs.
	HullOutName = "__HSOut"

	// TessFactorOutName receives tessellation factors.
	TessFactorOutName = "__HSTFOut"

	// ControlPointOutName receives per-control-point hull outputs.
	ControlPointOutName = "PatchControlPointOutBuffer"
)

// reservedKeywords contains the identifiers that may not be used for
// generated names: C++14 keywords, Metal address space and type
// names, and the stdlib names the emitter relies on unqualified.
var reservedKeywords = map[string]struct{}{
	// C++14 keywords.
	"alignas": {}, "alignof": {}, "and": {}, "and_eq": {}, "asm": {},
	"auto": {}, "bitand": {}, "bitor": {}, "bool": {}, "break": {},
	"case": {}, "catch": {}, "char": {}, "char16_t": {}, "char32_t": {},
	"class": {}, "compl": {}, "const": {}, "const_cast": {},
	"constexpr": {}, "continue": {}, "decltype": {}, "default": {},
	"delete": {}, "do": {}, "double": {}, "dynamic_cast": {},
	"else": {}, "enum": {}, "explicit": {}, "extern": {}, "false": {},
	"float": {}, "for": {}, "friend": {}, "goto": {}, "if": {},
	"inline": {}, "int": {}, "long": {}, "mutable": {}, "namespace": {},
	"new": {}, "noexcept": {}, "not": {}, "not_eq": {}, "nullptr": {},
	"operator": {}, "or": {}, "or_eq": {}, "private": {},
	"protected": {}, "public": {}, "register": {}, "reinterpret_cast": {},
	"return": {}, "short": {}, "signed": {}, "sizeof": {}, "static": {},
	"static_assert": {}, "static_cast": {}, "struct": {}, "switch": {},
	"template": {}, "this": {}, "thread_local": {}, "throw": {},
	"true": {}, "try": {}, "typedef": {}, "typeid": {}, "typename": {},
	"union": {}, "unsigned": {}, "using": {}, "virtual": {}, "void": {},
	"volatile": {}, "wchar_t": {}, "while": {}, "xor": {}, "xor_eq": {},

	// Metal address spaces and qualifiers.
	"device": {}, "constant": {}, "thread": {}, "threadgroup": {},
	"threadgroup_imageblock": {}, "ray_data": {}, "object_data": {},
	"kernel": {}, "vertex": {}, "fragment": {}, "patch": {},

	// Metal scalar, vector and matrix type names.
	"half": {}, "uchar": {}, "ushort": {}, "uint": {}, "ulong": {},
	"int8_t": {}, "int16_t": {}, "int32_t": {}, "int64_t": {},
	"uint8_t": {}, "uint16_t": {}, "uint32_t": {}, "uint64_t": {},
	"bool2": {}, "bool3": {}, "bool4": {},
	"int2": {}, "int3": {}, "int4": {},
	"uint2": {}, "uint3": {}, "uint4": {},
	"half2": {}, "half3": {}, "half4": {},
	"float2": {}, "float3": {}, "float4": {},
	"half2x2": {}, "half3x3": {}, "half4x4": {},
	"float2x2": {}, "float2x3": {}, "float2x4": {},
	"float3x2": {}, "float3x3": {}, "float3x4": {},
	"float4x2": {}, "float4x3": {}, "float4x4": {},

	// Metal resource and stdlib names used by generated code.
	"texture1d": {}, "texture2d": {}, "texture3d": {}, "texturecube": {},
	"texture1d_array": {}, "texture2d_array": {}, "texture2d_ms": {},
	"texture_buffer": {}, "depth2d": {}, "depthcube": {},
	"sampler": {}, "access": {}, "metal": {}, "simd": {},
	"mem_flags": {}, "threadgroup_barrier": {}, "simdgroup_barrier": {},
	"discard_fragment": {}, "main": {},
}

// IsReserved reports whether name may not be used verbatim in
// generated Metal source.
func IsReserved(name string) bool {
	_, ok := reservedKeywords[name]
	return ok
}

// Escape returns a safe rendition of name, prefixing reserved words
// with an underscore.
func Escape(name string) string {
	if name == "" {
		return UnnamedIdentifier
	}
	if IsReserved(name) {
		return "_" + name
	}
	return name
}

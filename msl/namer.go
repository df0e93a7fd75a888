// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"fmt"

	"github.com/gogpu/mtlcc/ir"
)

// namer generates deterministic identifiers for emitted variables.
//
// Explicitly named variables keep their names, escaped and suffixed
// on collision. Unnamed variables get a prefix derived from their
// type and a counter: the temporary counter resets per function, the
// file-scope counter never resets, so dumps of the whole unit stay
// stable as functions are appended.
type namer struct {
	names map[*ir.Variable]string

	// usedNames tracks emitted names to keep explicit names unique.
	usedNames map[string]struct{}

	tempID   uint32
	globalID uint32
	counter  uint32
}

func newNamer() *namer {
	n := &namer{
		names:     make(map[*ir.Variable]string),
		usedNames: make(map[string]struct{}),
	}

	// Pre-register the identifiers the backend emits directly.
	for _, name := range []string{
		SideTableName,
		PatchCountName,
		IndexBufferName,
		HullOutName,
		TessFactorOutName,
		ControlPointOutName,
	} {
		n.usedNames[name] = struct{}{}
	}
	return n
}

// beginFunction resets the temporary counter. Names already handed
// out keep their spelling.
func (n *namer) beginFunction() {
	n.tempID = 0
}

// claim binds v to one of the pre-registered backend identifiers.
func (n *namer) claim(v *ir.Variable, name string) {
	n.names[v] = name
}

// name returns the stable identifier for v, creating one on first
// use.
func (n *namer) name(v *ir.Variable) string {
	if s, ok := n.names[v]; ok {
		return s
	}
	var s string
	if v.Name != "" {
		s = n.unique(Escape(v.Name))
	} else if v.Mode == ir.ModeTemporary || v.Mode == ir.ModeLocal {
		s = n.synthesize(typePrefix(v.Type), &n.tempID)
	} else {
		s = n.synthesize("g"+typePrefix(v.Type), &n.globalID)
	}
	n.names[v] = s
	return s
}

// synthesize builds prefix+id names, skipping collisions with
// explicit names.
func (n *namer) synthesize(prefix string, id *uint32) string {
	for {
		candidate := fmt.Sprintf("%s%d", prefix, *id)
		*id++
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// unique reserves base, adding a numeric suffix when taken.
func (n *namer) unique(base string) string {
	if _, used := n.usedNames[base]; !used {
		n.usedNames[base] = struct{}{}
		return base
	}
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", base, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// typePrefix maps a type to the single-letter prefix used for
// synthesized names.
func typePrefix(t ir.Type) string {
	switch t := t.(type) {
	case ir.Matrix:
		return "m"
	case ir.Vector:
		return "v"
	case ir.Scalar:
		switch t.Kind {
		case ir.Bool:
			return "b"
		case ir.Int:
			return "i"
		case ir.Uint:
			return "u"
		case ir.Half:
			return "h"
		case ir.Float:
			return "f"
		}
	}
	return "t"
}

// structName reserves a name for a user aggregate, escaping and
// de-duplicating like variable names.
func (n *namer) structName(base string) string {
	if base == "" {
		base = UnnamedIdentifier
	}
	return n.unique(Escape(base))
}

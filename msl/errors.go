// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package msl

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes Metal compilation errors.
type ErrorKind uint8

const (
	// ErrStructural indicates the input program is malformed or
	// incomplete: a missing patch constant function, indeterminable
	// control point counts, an ill-typed expression tree.
	ErrStructural ErrorKind = iota

	// ErrCapability indicates the program exceeds a limit of the
	// target, or uses an access pattern the target forbids in the
	// requested stage. Capability errors are collected; compilation
	// runs to completion before reporting them.
	ErrCapability

	// ErrUnsupported indicates a construct with no Metal rendition,
	// such as a matrix-matrix multiply.
	ErrUnsupported
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrStructural:
		return "StructuralError"
	case ErrCapability:
		return "CapabilityError"
	case ErrUnsupported:
		return "UnsupportedConstructError"
	default:
		return "Unknown"
	}
}

// Diagnostic represents a single Metal compilation error.
type Diagnostic struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Context names the variable, function or operator involved.
	// May be empty.
	Context string

	// Message provides details about the error.
	Message string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Context != "" {
		return fmt.Sprintf("msl %s: %s: %s", d.Kind, d.Context, d.Message)
	}
	return fmt.Sprintf("msl %s: %s", d.Kind, d.Message)
}

// DiagnosticList collects diagnostics across a compilation.
type DiagnosticList []*Diagnostic

// Error implements the error interface, joining all diagnostics.
func (l DiagnosticList) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

func (l *DiagnosticList) addf(kind ErrorKind, context, format string, args ...any) {
	*l = append(*l, &Diagnostic{
		Kind:    kind,
		Context: context,
		Message: fmt.Sprintf(format, args...),
	})
}

// IsStructural reports whether err is or contains a structural error.
func IsStructural(err error) bool { return hasKind(err, ErrStructural) }

// IsCapability reports whether err is or contains a capability error.
func IsCapability(err error) bool { return hasKind(err, ErrCapability) }

// IsUnsupported reports whether err is or contains an unsupported
// construct error.
func IsUnsupported(err error) bool { return hasKind(err, ErrUnsupported) }

func hasKind(err error, kind ErrorKind) bool {
	for err != nil {
		switch e := err.(type) {
		case *Diagnostic:
			return e.Kind == kind
		case DiagnosticList:
			for _, d := range e {
				if d.Kind == kind {
					return true
				}
			}
			return false
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

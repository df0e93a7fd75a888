package ir

// Type represents a type in the IR.
type Type interface {
	typeKind()
}

// ScalarKind represents the kind of a scalar value.
type ScalarKind uint8

const (
	Bool ScalarKind = iota
	Int
	Uint
	Half
	Float
)

// String returns the scalar kind name.
func (k ScalarKind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Half:
		return "half"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the kind is a floating-point kind.
func (k ScalarKind) IsFloat() bool {
	return k == Half || k == Float
}

// Scalar is a single numeric or boolean value.
type Scalar struct {
	Kind ScalarKind
}

func (Scalar) typeKind() {}

// Vector is a vector of 2 to 4 scalars.
type Vector struct {
	Elem  Scalar
	Width uint8
}

func (Vector) typeKind() {}

// Matrix is a matrix of Cols columns by Rows rows. Element kind
// must be a floating-point kind.
type Matrix struct {
	Elem Scalar
	Cols uint8
	Rows uint8
}

func (Matrix) typeKind() {}

// Array is a fixed-size array.
type Array struct {
	Elem  Type
	Count uint32
}

func (Array) typeKind() {}

// Field is a named member of an aggregate.
type Field struct {
	Name     string
	Type     Type
	Semantic string
}

// Aggregate is a user-defined structure type. Identity is pointer
// identity; programs share one *Aggregate per distinct type.
type Aggregate struct {
	Name   string
	Fields []Field
}

func (*Aggregate) typeKind() {}

// FieldIndex returns the index of the named field, or -1.
func (a *Aggregate) FieldIndex(name string) int {
	for i := range a.Fields {
		if a.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// TextureDim represents a texture dimensionality.
type TextureDim uint8

const (
	Dim1D TextureDim = iota
	Dim2D
	Dim3D
	DimCube
)

// Texture is a sampled or storage image.
type Texture struct {
	Dim          TextureDim
	Elem         Scalar
	Arrayed      bool
	Multisampled bool
	// Storage marks the texture as a storage image (UAV).
	Storage bool
	// Shadow marks the texture for comparison sampling.
	Shadow bool
}

func (Texture) typeKind() {}

// Sampler is a sampler state object.
type Sampler struct {
	Comparison bool
}

func (Sampler) typeKind() {}

// BufferAddressing selects how a buffer is indexed.
type BufferAddressing uint8

const (
	// AddrStructured indexes whole elements of the element type.
	AddrStructured BufferAddressing = iota
	// AddrByte indexes 32-bit words by byte offset.
	AddrByte
	// AddrTyped reads and writes through a format conversion, the
	// way typed buffer views behave.
	AddrTyped
)

// Buffer is a device-memory buffer resource.
type Buffer struct {
	Elem       Type
	Addressing BufferAddressing
	Writable   bool
}

func (Buffer) typeKind() {}

// Patch is a fixed-length run of control points flowing between the
// vertex, hull and domain stages.
type Patch struct {
	ControlPoint Type
	Length       uint32
	// Output distinguishes OutputPatch from InputPatch.
	Output bool
}

func (Patch) typeKind() {}

// ScalarOf returns the element scalar of a scalar, vector or matrix
// type.
func ScalarOf(t Type) (Scalar, bool) {
	switch t := t.(type) {
	case Scalar:
		return t, true
	case Vector:
		return t.Elem, true
	case Matrix:
		return t.Elem, true
	}
	return Scalar{}, false
}

// Components returns the number of scalar components of a scalar or
// vector type, and 0 for anything else.
func Components(t Type) int {
	switch t := t.(type) {
	case Scalar:
		return 1
	case Vector:
		return int(t.Width)
	}
	return 0
}

// SameType reports whether two types are structurally identical.
// Aggregates compare by pointer identity.
func SameType(a, b Type) bool {
	switch a := a.(type) {
	case Scalar:
		b, ok := b.(Scalar)
		return ok && a == b
	case Vector:
		b, ok := b.(Vector)
		return ok && a == b
	case Matrix:
		b, ok := b.(Matrix)
		return ok && a == b
	case Array:
		b, ok := b.(Array)
		return ok && a.Count == b.Count && SameType(a.Elem, b.Elem)
	case *Aggregate:
		b, ok := b.(*Aggregate)
		return ok && a == b
	case Texture:
		b, ok := b.(Texture)
		return ok && a == b
	case Sampler:
		b, ok := b.(Sampler)
		return ok && a == b
	case Buffer:
		b, ok := b.(Buffer)
		return ok && a.Addressing == b.Addressing && a.Writable == b.Writable && SameType(a.Elem, b.Elem)
	case Patch:
		b, ok := b.(Patch)
		return ok && a.Length == b.Length && a.Output == b.Output && SameType(a.ControlPoint, b.ControlPoint)
	}
	return false
}

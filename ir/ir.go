// Package ir defines the intermediate representation consumed by the
// Metal backend.
//
// The IR is a small typed tree: a Program holds named aggregate types,
// file-scope variables and functions; function bodies are statement
// trees over expression trees. Front ends construct it directly, and
// the backend synthesizes additional fragments (entry points, system
// buffers) without mutating the fragments it was handed.
package ir

// Program represents a translation unit handed to a backend.
type Program struct {
	// Types holds the user-defined aggregate types, in no particular
	// order. Backends are expected to sort declarations themselves.
	Types []*Aggregate

	// Globals holds file-scope variables: stage inputs and outputs,
	// uniform blocks, packed globals, textures, samplers and buffers.
	Globals []*Variable

	// Functions holds all function definitions, entry candidates
	// included.
	Functions []*Function
}

// FindFunction returns the function with the given name, or nil.
func (p *Program) FindFunction(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Stage represents a shader pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageHull
	StageDomain
	StageFragment
	StageCompute
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageHull:
		return "hull"
	case StageDomain:
		return "domain"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// StorageMode describes where a variable lives and how it may be
// accessed.
type StorageMode uint8

const (
	// ModeTemporary is a compiler-generated scratch variable.
	ModeTemporary StorageMode = iota
	// ModeLocal is an ordinary function-local variable.
	ModeLocal
	// ModeIn is a stage input.
	ModeIn
	// ModeOut is a stage output.
	ModeOut
	// ModeUniform is uniform data: constant buffers, packed globals,
	// textures, samplers and device buffers.
	ModeUniform
	// ModeShared is threadgroup-shared memory.
	ModeShared
)

// BufferRole tags buffer variables that play a structural part in a
// pipeline, so backends never have to guess from names.
type BufferRole uint8

const (
	RoleNone BufferRole = iota
	// RolePatchCount carries the number of patches in a draw.
	RolePatchCount
	// RoleIndexBuffer is the draw index buffer.
	RoleIndexBuffer
	// RoleHullOut receives per-patch hull outputs.
	RoleHullOut
	// RoleControlPointOut receives per-control-point hull outputs.
	RoleControlPointOut
	// RoleTessFactorOut receives tessellation factors.
	RoleTessFactorOut
)

// Variable is a named, typed storage location. Identity is pointer
// identity: two distinct *Variable values are distinct variables even
// when their names collide.
type Variable struct {
	Name     string
	Type     Type
	Mode     StorageMode
	Semantic string // system or user semantic, empty when none
	Role     BufferRole

	// Precise disables arithmetic contraction for values computed
	// into this variable.
	Precise bool
}

// Function represents a function definition.
type Function struct {
	Name           string
	Params         []*Variable
	Return         Type // nil for void
	ReturnSemantic string
	Body           []Stmt

	// Attributes carries entry-point attributes; zero value for
	// ordinary helpers.
	Attributes FunctionAttributes
}

// FunctionAttributes holds metadata attached to entry candidates.
type FunctionAttributes struct {
	// NumThreads is the compute thread-group size, all zero when
	// unspecified.
	NumThreads [3]uint32

	// Tess holds hull-stage tessellation attributes, nil otherwise.
	Tess *TessAttributes
}

// TessDomain selects the tessellator primitive domain.
type TessDomain uint8

const (
	DomainTri TessDomain = iota
	DomainQuad
	DomainIsoline
)

// String returns the domain name as it appears in reflection output.
func (d TessDomain) String() string {
	switch d {
	case DomainTri:
		return "tri"
	case DomainQuad:
		return "quad"
	case DomainIsoline:
		return "isoline"
	default:
		return "unknown"
	}
}

// TessPartitioning selects the tessellator partitioning scheme.
type TessPartitioning uint8

const (
	PartitionInteger TessPartitioning = iota
	PartitionFractionalEven
	PartitionFractionalOdd
	PartitionPow2
)

// String returns the partitioning name as it appears in reflection
// output.
func (p TessPartitioning) String() string {
	switch p {
	case PartitionInteger:
		return "integer"
	case PartitionFractionalEven:
		return "fractional_even"
	case PartitionFractionalOdd:
		return "fractional_odd"
	case PartitionPow2:
		return "pow2"
	default:
		return "unknown"
	}
}

// TessWinding selects the output primitive winding.
type TessWinding uint8

const (
	WindingCW TessWinding = iota
	WindingCCW
)

// String returns the winding name as it appears in reflection output.
func (w TessWinding) String() string {
	if w == WindingCCW {
		return "ccw"
	}
	return "cw"
}

// TessAttributes holds the hull-stage attributes needed to drive a
// tessellation pipeline.
type TessAttributes struct {
	Domain              TessDomain
	Partitioning        TessPartitioning
	Winding             TessWinding
	OutputControlPoints uint32
	MaxTessFactor       float32

	// PatchConstantFunc names the per-patch constant function. It
	// must resolve to a function in the same Program.
	PatchConstantFunc string
}

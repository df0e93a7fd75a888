package msl

import (
	"fmt"

	"github.com/gogpu/mtlcc/ir"
)

// Version represents an MSL language version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common MSL versions.
var (
	Version2_0 = Version{Major: 2, Minor: 0}
	Version2_1 = Version{Major: 2, Minor: 1}
	Version2_3 = Version{Major: 2, Minor: 3}
	Version3_0 = Version{Major: 3, Minor: 0}
)

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool {
	return v.Major > o.Major || (v.Major == o.Major && v.Minor >= o.Minor)
}

// Target describes the capabilities of the device family being
// compiled for.
type Target struct {
	// LangVersion is the MSL version to emit.
	// Defaults to Version2_1 if zero.
	LangVersion Version

	// MaxBufferSlots is the number of buffer argument slots.
	MaxBufferSlots int

	// MaxTextureSlots is the number of texture argument slots.
	MaxTextureSlots int

	// MaxSamplerSlots is the number of sampler argument slots.
	MaxSamplerSlots int

	// TextureBuffers enables the typed buffer path backed by
	// texture_buffer views.
	TextureBuffers bool
}

// DefaultTarget returns the limits of the baseline Metal device
// family.
func DefaultTarget() Target {
	return Target{
		LangVersion:     Version2_1,
		MaxBufferSlots:  31,
		MaxTextureSlots: 128,
		MaxSamplerSlots: 16,
		TextureBuffers:  true,
	}
}

// Options configures Metal code generation.
type Options struct {
	// Target describes the device limits compiled against.
	Target Target

	// EntryPoint names the function compiled as the shader entry.
	EntryPoint string

	// Stage selects the pipeline stage the entry runs in.
	Stage ir.Stage

	// VertexEntry names the vertex function fused into the hull
	// kernel. Used only when Stage is ir.StageHull.
	VertexEntry string

	// BoundsChecks clamps buffer and array indices, backed by the
	// buffer-length side table.
	BoundsChecks bool

	// FastMath permits contracted and relaxed-precision math. When
	// false the emitter routes the affected functions through
	// metal::precise.
	FastMath bool
}

// DefaultOptions returns options with the default target and fast
// math enabled.
func DefaultOptions() *Options {
	return &Options{
		Target:   DefaultTarget(),
		FastMath: true,
	}
}

// TranslationInfo describes the result of a compilation.
type TranslationInfo struct {
	// EntryPointName is the name of the emitted Metal entry point.
	EntryPointName string

	// Stage is the pipeline stage compiled.
	Stage ir.Stage

	// LayoutHash digests the frozen resource layout. Two compiles
	// with equal hashes bind resources identically.
	LayoutHash uint64

	// BufferSlots, TextureSlots and SamplerSlots count the argument
	// slots assigned.
	BufferSlots  int
	TextureSlots int
	SamplerSlots int

	// SideTableSlot is the buffer slot of the length side table, or
	// -1 when absent.
	SideTableSlot int

	// ConstantBufferMask and TypedBufferMask mark the buffer slots
	// holding constant buffers and typed buffers.
	ConstantBufferMask uint64
	TypedBufferMask    uint64

	// TypedBufferFormats maps each typed buffer slot to its texel
	// format, nil when the layout has none.
	TypedBufferFormats map[int]string

	// NumThreads is the compute thread-group size, zero for
	// render stages.
	NumThreads [3]uint32
}

// Compile translates a program to Metal source and reflection
// metadata. On error no source is returned.
func Compile(program *ir.Program, options *Options) (string, TranslationInfo, error) {
	if options == nil {
		options = DefaultOptions()
	}
	// Apply defaults for zero values without mutating the caller's
	// options.
	opts := *options
	if opts.Target.LangVersion.Major == 0 {
		opts.Target.LangVersion = Version2_1
	}
	w := newWriter(program, &opts)
	src, err := w.writeProgram()
	if err != nil {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", err)
	}
	return src, w.info, nil
}

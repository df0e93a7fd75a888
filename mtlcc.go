// Package mtlcc cross-compiles shader IR to Metal Shading Language.
//
// The module is a backend: front ends build an ir.Program, and mtlcc
// turns one entry point of it into Metal source plus reflection
// metadata. The heavy lifting lives in the msl package; this package
// wraps the common stage configurations.
//
// Example usage:
//
//	src, info, err := mtlcc.CompileVertex(program, "VSMain")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(info.EntryPointName, info.LayoutHash)
//
// Tessellation pipelines compile the vertex and hull functions into
// one fused compute kernel:
//
//	src, info, err := mtlcc.CompileTessellation(program, "VSMain", "HSMain")
package mtlcc

import (
	"github.com/gogpu/mtlcc/ir"
	"github.com/gogpu/mtlcc/msl"
)

// Compile translates one entry point of a program with explicit
// options.
func Compile(program *ir.Program, options *msl.Options) (string, msl.TranslationInfo, error) {
	return msl.Compile(program, options)
}

// CompileVertex compiles entry as a vertex shader with default
// options.
func CompileVertex(program *ir.Program, entry string) (string, msl.TranslationInfo, error) {
	return compileStage(program, entry, ir.StageVertex)
}

// CompileFragment compiles entry as a fragment shader with default
// options.
func CompileFragment(program *ir.Program, entry string) (string, msl.TranslationInfo, error) {
	return compileStage(program, entry, ir.StageFragment)
}

// CompileCompute compiles entry as a compute kernel with default
// options.
func CompileCompute(program *ir.Program, entry string) (string, msl.TranslationInfo, error) {
	return compileStage(program, entry, ir.StageCompute)
}

// CompileTessellation fuses vertexEntry and hullEntry into a single
// compute kernel with default options.
func CompileTessellation(program *ir.Program, vertexEntry, hullEntry string) (string, msl.TranslationInfo, error) {
	options := msl.DefaultOptions()
	options.EntryPoint = hullEntry
	options.Stage = ir.StageHull
	options.VertexEntry = vertexEntry
	return msl.Compile(program, options)
}

func compileStage(program *ir.Program, entry string, stage ir.Stage) (string, msl.TranslationInfo, error) {
	options := msl.DefaultOptions()
	options.EntryPoint = entry
	options.Stage = stage
	return msl.Compile(program, options)
}

// Package msl generates Metal Shading Language source from IR.
//
// The backend produces a single self-contained translation unit:
// a reflection header of structured comments, the preprocessor
// prologue, type declarations, and the function bodies, ending with
// the synthesized entry point. Output is deterministic: compiling
// the same program with the same options yields byte-identical
// source, so driver-side caches can key on a digest of the result.
//
// Resource slots are assigned first-touch during a single fixed
// traversal of the entry point, then frozen before the header is
// printed. Violations of target restrictions and capability limits
// are collected rather than reported one at a time; when any are
// present the backend returns them all and produces no output.
package msl

package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/mtlcc/ir"
)

// printHeader renders the reflection header: one structured comment
// line per category, categories in fixed order, empty categories
// omitted. The header is printed only after the binding table is
// frozen, so every slot it reports is the slot the code binds.
func (w *Writer) printHeader(plan *entryPlan) string {
	var sb strings.Builder
	line := func(category, content string) {
		if content != "" {
			fmt.Fprintf(&sb, "// @%s: %s\n", category, content)
		}
	}

	line("Inputs", w.stageIOList(plan.inputStruct))
	line("Outputs", w.stageIOList(plan.outputStruct))

	var blocks []string
	for _, v := range plan.uniformBlocks {
		if b, ok := w.table.lookup(v); ok {
			blocks = append(blocks, fmt.Sprintf("%s(%d)", v.Name, b.slot))
		}
	}
	line("UniformBlocks", strings.Join(blocks, ","))

	var packed []string
	for _, pg := range plan.packed {
		packed = append(packed, fmt.Sprintf("%s(%d,%d)", pg.v.Name, pg.offset, pg.size))
	}
	line("PackedGlobals", strings.Join(packed, ","))

	var textures []string
	for _, v := range w.table.order[classTexture] {
		b, _ := w.table.lookup(v)
		textures = append(textures, fmt.Sprintf("%s(%d)", v.Name, b.slot))
	}
	line("Samplers", strings.Join(textures, ","))

	line("UAVs", strings.Join(w.uavList(), ","))

	var samplers []string
	for _, v := range w.table.order[classSampler] {
		b, _ := w.table.lookup(v)
		samplers = append(samplers, fmt.Sprintf("%d:%s", b.slot, v.Name))
	}
	line("SamplerStates", strings.Join(samplers, ","))

	if plan.numThreads != [3]uint32{} {
		line("NumThreads", fmt.Sprintf("%d, %d, %d", plan.numThreads[0], plan.numThreads[1], plan.numThreads[2]))
	}

	if w.sideTableVar != nil {
		if b, ok := w.table.lookup(w.sideTableVar); ok {
			line("SideTable", fmt.Sprintf("%s(%d)", SideTableName, b.slot))
		}
	}

	if plan.tess != nil {
		w.printTessHeader(&sb, plan.tess)
	}

	sb.WriteString("\n")
	return sb.String()
}

// stageIOList renders a stage struct as typecode:semantic items.
func (w *Writer) stageIOList(s *stageStruct) string {
	if s == nil {
		return ""
	}
	items := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		sem := f.Semantic
		if sem == "" {
			sem = f.Name
		}
		items = append(items, fmt.Sprintf("%s:%s", typeCode(f.Type), sem))
	}
	return strings.Join(items, ",")
}

// uavList renders the read-write resources: writable buffers and
// storage textures, system buffers excluded.
func (w *Writer) uavList() []string {
	var uavs []string
	for _, v := range w.table.order[classBuffer] {
		buf, ok := v.Type.(ir.Buffer)
		if !ok || !buf.Writable || v.Role != ir.RoleNone {
			continue
		}
		b, _ := w.table.lookup(v)
		uavs = append(uavs, fmt.Sprintf("%s(%d)", v.Name, b.slot))
	}
	for _, v := range w.table.order[classTexture] {
		tex, ok := v.Type.(ir.Texture)
		if !ok || !tex.Storage {
			continue
		}
		b, _ := w.table.lookup(v)
		uavs = append(uavs, fmt.Sprintf("%s(%d)", v.Name, b.slot))
	}
	return uavs
}

// typeCode is the compact type spelling used by reflection lines.
func typeCode(t ir.Type) string {
	letter := func(k ir.ScalarKind) string {
		switch k {
		case ir.Bool:
			return "b"
		case ir.Int:
			return "i"
		case ir.Uint:
			return "u"
		case ir.Half:
			return "h"
		default:
			return "f"
		}
	}
	switch t := t.(type) {
	case ir.Scalar:
		return letter(t.Kind) + "1"
	case ir.Vector:
		return fmt.Sprintf("%s%d", letter(t.Elem.Kind), t.Width)
	case ir.Matrix:
		return fmt.Sprintf("%s%dx%d", letter(t.Elem.Kind), t.Cols, t.Rows)
	default:
		return "t"
	}
}

// printTessHeader renders the tessellation pipeline categories.
func (w *Writer) printTessHeader(sb *strings.Builder, fs *fusionState) {
	attrs := fs.hullFn.Attributes.Tess
	fmt.Fprintf(sb, "// @TessellationOutputControlPoints: %d\n", fs.outCP)
	fmt.Fprintf(sb, "// @TessellationDomain: %s\n", attrs.Domain)
	fmt.Fprintf(sb, "// @TessellationInputControlPoints: %d\n", fs.inCP)
	fmt.Fprintf(sb, "// @TessellationMaxTessFactor: %s\n", floatLiteral(attrs.MaxTessFactor))
	fmt.Fprintf(sb, "// @TessellationOutputWinding: %s\n", attrs.Winding)
	fmt.Fprintf(sb, "// @TessellationPartitioning: %s\n", attrs.Partitioning)
	fmt.Fprintf(sb, "// @TessellationPatchesPerThreadGroup: %d\n", fs.patchesPerTG)
	slot := func(v *ir.Variable) int {
		if b, ok := w.table.lookup(v); ok {
			return b.slot
		}
		return -1
	}
	fmt.Fprintf(sb, "// @TessellationPatchCountBuffer: %d\n", slot(fs.patchCount))
	fmt.Fprintf(sb, "// @TessellationIndexBuffer: %d\n", slot(fs.indexBuf))
	fmt.Fprintf(sb, "// @TessellationHSOutBuffer: %d\n", slot(fs.hsOut))
	fmt.Fprintf(sb, "// @TessellationControlPointOutBuffer: %d\n", slot(fs.cpOut))
	fmt.Fprintf(sb, "// @TessellationHSTFOutBuffer: %d\n", slot(fs.tfOut))
}

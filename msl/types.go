package msl

import (
	"fmt"
	"sort"

	"github.com/gogpu/mtlcc/ir"
)

// Namespace is the Metal standard library namespace prefix.
const Namespace = "metal::"

// scalarTypeName returns the MSL spelling of a scalar kind.
func scalarTypeName(k ir.ScalarKind) string {
	switch k {
	case ir.Bool:
		return "bool"
	case ir.Int:
		return "int"
	case ir.Uint:
		return "uint"
	case ir.Half:
		return "half"
	case ir.Float:
		return "float"
	default:
		return "void"
	}
}

// vectorTypeName returns the MSL spelling of a vector type.
func vectorTypeName(v ir.Vector) string {
	return fmt.Sprintf("%s%s%d", Namespace, scalarTypeName(v.Elem.Kind), v.Width)
}

// matrixTypeName returns the MSL spelling of a matrix type.
func matrixTypeName(m ir.Matrix) string {
	return fmt.Sprintf("%s%s%dx%d", Namespace, scalarTypeName(m.Elem.Kind), m.Cols, m.Rows)
}

// arrayType records a fixed-size array wrapped in a struct so it can
// be passed and assigned by value.
type arrayType struct {
	name  string
	elem  ir.Type
	count uint32
}

// typeName resolves the value spelling of a type. Resource types
// have no value spelling; their declarations are built at parameter
// sites.
func (w *Writer) typeName(t ir.Type) (string, error) {
	switch t := t.(type) {
	case ir.Scalar:
		return scalarTypeName(t.Kind), nil
	case ir.Vector:
		return vectorTypeName(t), nil
	case ir.Matrix:
		return matrixTypeName(t), nil
	case *ir.Aggregate:
		return w.aggregateName(t), nil
	case ir.Array:
		return w.arrayWrapper(t)
	case ir.Texture:
		return w.textureTypeName(t, accessRead), nil
	case ir.Sampler:
		return Namespace + "sampler", nil
	}
	return "", &Diagnostic{Kind: ErrStructural, Message: fmt.Sprintf("type %T has no value spelling", t)}
}

// aggregateName returns the emitted name of a user aggregate,
// reserving it on first use.
func (w *Writer) aggregateName(a *ir.Aggregate) string {
	if s, ok := w.aggNames[a]; ok {
		return s
	}
	s := w.names.structName(a.Name)
	w.aggNames[a] = s
	return s
}

// arrayWrapper returns the wrapper struct name for an array type,
// registering the wrapper for declaration on first use.
func (w *Writer) arrayWrapper(t ir.Array) (string, error) {
	elem, err := w.typeName(t.Elem)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s[%d]", elem, t.Count)
	if s, ok := w.arrayNames[key]; ok {
		return s, nil
	}
	name := fmt.Sprintf("_array%d_%s", t.Count, mangleType(t.Elem))
	w.arrayNames[key] = name
	w.arrays = append(w.arrays, arrayType{name: name, elem: t.Elem, count: t.Count})
	return name, nil
}

// mangleType flattens a type into an identifier fragment.
func mangleType(t ir.Type) string {
	switch t := t.(type) {
	case ir.Scalar:
		return scalarTypeName(t.Kind)
	case ir.Vector:
		return fmt.Sprintf("%s%d", scalarTypeName(t.Elem.Kind), t.Width)
	case ir.Matrix:
		return fmt.Sprintf("%s%dx%d", scalarTypeName(t.Elem.Kind), t.Cols, t.Rows)
	case *ir.Aggregate:
		return Escape(t.Name)
	case ir.Array:
		return fmt.Sprintf("%s_%d", mangleType(t.Elem), t.Count)
	default:
		return "t"
	}
}

// textureTypeName renders a texture type with the access qualifier
// its usage requires.
func (w *Writer) textureTypeName(t ir.Texture, access accessFlags) string {
	dim := ""
	switch t.Dim {
	case ir.Dim1D:
		dim = "texture1d"
	case ir.Dim2D:
		dim = "texture2d"
	case ir.Dim3D:
		dim = "texture3d"
	case ir.DimCube:
		dim = "texturecube"
	}
	if t.Shadow {
		switch t.Dim {
		case ir.DimCube:
			dim = "depthcube"
		default:
			dim = "depth2d"
		}
	}
	if t.Arrayed {
		dim += "_array"
	}
	if t.Multisampled {
		dim += "_ms"
	}
	elem := scalarTypeName(t.Elem.Kind)
	if !t.Storage {
		return fmt.Sprintf("%s%s<%s>", Namespace, dim, elem)
	}
	qual := "write"
	if access&accessRead != 0 {
		qual = "read_write"
	}
	return fmt.Sprintf("%s%s<%s, %saccess::%s>", Namespace, dim, elem, Namespace, qual)
}

// bufferPointerType renders the parameter spelling of a buffer
// resource: typed buffers become texture_buffer views, byte buffers
// become word pointers, structured buffers element pointers.
func (w *Writer) bufferPointerType(t ir.Buffer, written bool) (string, error) {
	switch t.Addressing {
	case ir.AddrTyped:
		elem, ok := ir.ScalarOf(t.Elem)
		if !ok {
			return "", &Diagnostic{Kind: ErrStructural, Message: "typed buffer element is not scalar or vector"}
		}
		qual := "read"
		if written {
			qual = "read_write"
		}
		return fmt.Sprintf("%stexture_buffer<%s, %saccess::%s>", Namespace, scalarTypeName(elem.Kind), Namespace, qual), nil
	case ir.AddrByte:
		if written {
			return "device uint*", nil
		}
		return "const device uint*", nil
	default:
		elem, err := w.typeName(t.Elem)
		if err != nil {
			return "", err
		}
		if written {
			return fmt.Sprintf("device %s*", elem), nil
		}
		return fmt.Sprintf("const device %s*", elem), nil
	}
}

// writeAggregates emits user aggregates in dependency order.
func (w *Writer) writeAggregates() error {
	for _, a := range w.sortedAggregates() {
		if err := w.writeAggregate(a); err != nil {
			return err
		}
	}
	return nil
}

// writeArrayWrappers emits the wrapper structs registered while
// function bodies rendered. Registration order is emission order,
// which is fixed.
func (w *Writer) writeArrayWrappers() error {
	for i := 0; i < len(w.arrays); i++ {
		a := w.arrays[i]
		elem, err := w.typeName(a.elem)
		if err != nil {
			return err
		}
		w.writeLine(fmt.Sprintf("struct %s { %s inner[%d]; };", a.name, elem, a.count))
	}
	if len(w.arrays) > 0 {
		w.writeLine("")
	}
	return nil
}

// sortedAggregates orders declared aggregates so every field's type
// precedes its user, keeping the program order otherwise.
func (w *Writer) sortedAggregates() []*ir.Aggregate {
	index := make(map[*ir.Aggregate]int, len(w.program.Types)+len(w.extraAggs))
	all := make([]*ir.Aggregate, 0, len(w.program.Types)+len(w.extraAggs))
	add := func(a *ir.Aggregate) {
		if _, ok := index[a]; !ok {
			index[a] = len(all)
			all = append(all, a)
		}
	}
	for _, a := range w.program.Types {
		add(a)
	}
	for _, a := range w.extraAggs {
		add(a)
	}

	var (
		out     []*ir.Aggregate
		visited = make(map[*ir.Aggregate]bool)
		visit   func(a *ir.Aggregate)
	)
	visit = func(a *ir.Aggregate) {
		if visited[a] {
			return
		}
		visited[a] = true
		deps := fieldAggregates(a)
		sort.Slice(deps, func(i, j int) bool { return index[deps[i]] < index[deps[j]] })
		for _, d := range deps {
			visit(d)
		}
		out = append(out, a)
	}
	for _, a := range all {
		visit(a)
	}
	return out
}

func fieldAggregates(a *ir.Aggregate) []*ir.Aggregate {
	var deps []*ir.Aggregate
	for _, f := range a.Fields {
		t := f.Type
		for {
			if arr, ok := t.(ir.Array); ok {
				t = arr.Elem
				continue
			}
			break
		}
		if agg, ok := t.(*ir.Aggregate); ok {
			deps = append(deps, agg)
		}
	}
	return deps
}

// writeAggregate emits a struct declaration.
func (w *Writer) writeAggregate(a *ir.Aggregate) error {
	w.writeLine(fmt.Sprintf("struct %s {", w.aggregateName(a)))
	w.pushIndent()
	for _, f := range a.Fields {
		// Array members stay bare C arrays; the wrapper structs
		// exist for locals, which need value semantics.
		ft := f.Type
		suffix := ""
		for {
			arr, ok := ft.(ir.Array)
			if !ok {
				break
			}
			suffix += fmt.Sprintf("[%d]", arr.Count)
			ft = arr.Elem
		}
		name, err := w.typeName(ft)
		if err != nil {
			return err
		}
		w.writeIndent()
		w.write(name)
		w.write(" ")
		w.write(Escape(f.Name))
		w.write(suffix)
		w.write(";")
		w.write("\n")
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
	return nil
}

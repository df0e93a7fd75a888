package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/mtlcc/ir"
)

// Writer generates Metal source from IR.
type Writer struct {
	program *ir.Program
	options *Options

	// Output buffer; repointed while sections render.
	out    *strings.Builder
	indent int

	// Name management
	names     *namer
	funcNames map[*ir.Function]string

	// Type tracking
	aggNames   map[*ir.Aggregate]string
	extraAggs  []*ir.Aggregate
	arrays     []arrayType
	arrayNames map[string]string

	// Resource layout
	table         *bindingTable
	usage         usageMap
	needSideTable bool
	sideTableVar  *ir.Variable
	sideTableFns  map[*ir.Function]bool
	globalsAgg    *ir.Aggregate
	globalsVar    *ir.Variable

	plan  *entryPlan
	diags DiagnosticList

	// noContract suppresses fused multiplies while emitting values
	// computed into a precise variable.
	noContract bool

	// exprErr holds an error raised inside a captured subexpression.
	exprErr error

	info TranslationInfo
}

// newWriter creates a writer for one compilation.
func newWriter(program *ir.Program, options *Options) *Writer {
	w := &Writer{
		program:      program,
		options:      options,
		out:          &strings.Builder{},
		names:        newNamer(),
		funcNames:    make(map[*ir.Function]string),
		aggNames:     make(map[*ir.Aggregate]string),
		arrayNames:   make(map[string]string),
		sideTableFns: make(map[*ir.Function]bool),
	}
	w.table = newBindingTable(options.Target, &w.diags)
	return w
}

func (w *Writer) write(s string) {
	w.out.WriteString(s)
}

func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

func (w *Writer) writeLine(s string) {
	w.writeIndent()
	w.out.WriteString(s)
	w.out.WriteString("\n")
}

func (w *Writer) pushIndent() { w.indent++ }
func (w *Writer) popIndent()  { w.indent-- }

// funcName returns the emitted name of a function, reserving it on
// first use.
func (w *Writer) funcName(f *ir.Function) string {
	if s, ok := w.funcNames[f]; ok {
		return s
	}
	s := w.names.unique(Escape(f.Name))
	w.funcNames[f] = s
	return s
}

// writeProgram runs the full pipeline: plan the entry point, check
// restrictions, bind resources in one fixed traversal, render the
// bodies, freeze the layout, then assemble header, prologue,
// declarations and code. Any collected diagnostics suppress all
// output.
func (w *Writer) writeProgram() (string, error) {
	if w.program == nil {
		return "", &Diagnostic{Kind: ErrStructural, Message: "nil program"}
	}

	plan, err := w.planEntry()
	if err != nil {
		return "", err
	}
	w.plan = plan

	w.usage = checkRestrictions(plan.stage, plan.roots(), &w.diags)
	if len(w.diags) > 0 {
		return "", w.diags
	}

	w.bindResources(plan)

	// Function bodies render into their own buffer so declarations
	// discovered along the way can still precede them.
	var body strings.Builder
	w.out = &body
	for _, f := range w.program.Functions {
		if err := w.writeFunction(f); err != nil {
			return "", err
		}
	}
	if err := w.writeEntry(plan); err != nil {
		return "", err
	}
	if w.exprErr != nil {
		return "", w.exprErr
	}

	w.table.freeze()
	if len(w.diags) > 0 {
		return "", w.diags
	}

	var decls strings.Builder
	w.out = &decls
	if err := w.writeAggregates(); err != nil {
		return "", err
	}
	if err := w.writeArrayWrappers(); err != nil {
		return "", err
	}
	if err := w.writeStageStructs(plan); err != nil {
		return "", err
	}

	w.fillInfo(plan)

	var sb strings.Builder
	sb.WriteString(w.printHeader(plan))
	sb.WriteString("#include <metal_stdlib>\n\n")
	for _, d := range plan.defines {
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	if len(plan.defines) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(decls.String())
	sb.WriteString(body.String())
	return sb.String(), nil
}

func (w *Writer) fillInfo(plan *entryPlan) {
	w.info = TranslationInfo{
		EntryPointName: plan.mainName,
		Stage:          plan.stage,
		LayoutHash:     w.table.layoutHash(),
		BufferSlots:    w.table.count(classBuffer),
		TextureSlots:   w.table.count(classTexture),
		SamplerSlots:   w.table.count(classSampler),
		SideTableSlot:  -1,
		NumThreads:     plan.numThreads,

		ConstantBufferMask: w.table.constantBufferMask(),
		TypedBufferMask:    w.table.typedBufferMask(),
		TypedBufferFormats: w.table.typedFormats(),
	}
	if w.sideTableVar != nil {
		if b, ok := w.table.lookup(w.sideTableVar); ok {
			w.info.SideTableSlot = b.slot
		}
	}
}

// writeFunction emits an ordinary (non-entry) function definition.
func (w *Writer) writeFunction(f *ir.Function) error {
	w.names.beginFunction()

	ret := "void"
	if f.Return != nil {
		var err error
		ret, err = w.typeName(f.Return)
		if err != nil {
			return err
		}
	}
	params := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		decl, err := w.paramDecl(p)
		if err != nil {
			return err
		}
		params = append(params, decl)
	}
	if w.sideTableFns[f] {
		params = append(params, "const device uint* "+SideTableName)
	}
	w.writeLine(fmt.Sprintf("%s %s(%s) {", ret, w.funcName(f), strings.Join(params, ", ")))
	w.pushIndent()
	if err := w.writeStmts(f.Body); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// paramDecl renders a helper function parameter. Resources carry no
// binding attribute here; only the entry signature binds slots.
func (w *Writer) paramDecl(v *ir.Variable) (string, error) {
	name := w.names.name(v)
	switch t := v.Type.(type) {
	case ir.Buffer:
		ptr, err := w.bufferPointerType(t, t.Writable)
		if err != nil {
			return "", err
		}
		return ptr + " " + name, nil
	case ir.Texture:
		return w.textureTypeName(t, w.usage[v]) + " " + name, nil
	case ir.Sampler:
		return Namespace + "sampler " + name, nil
	case ir.Patch:
		elem, err := w.typeName(t.ControlPoint)
		if err != nil {
			return "", err
		}
		if t.Output {
			return "const device " + elem + "* " + name, nil
		}
		return "const threadgroup " + elem + "* " + name, nil
	case *ir.Aggregate:
		if v.Mode == ir.ModeUniform {
			return "constant " + w.aggregateName(t) + "& " + name, nil
		}
	}
	tn, err := w.typeName(v.Type)
	if err != nil {
		return "", err
	}
	if v.Mode == ir.ModeOut {
		return "thread " + tn + "& " + name, nil
	}
	return tn + " " + name, nil
}

// packedGlobal records a loose uniform packed into the implicit
// globals block.
type packedGlobal struct {
	v      *ir.Variable
	offset int
	size   int
}

// bindResources performs the single fixed traversal assigning
// argument slots: entry parameters first, then body references in
// pre-order, callees inline at their call sites, then system
// buffers, then the side table. First touch wins; repeat touches
// reuse the assigned slot.
func (w *Writer) bindResources(plan *entryPlan) {
	b := &resourceBinder{w: w, plan: plan, visited: make(map[*ir.Function]struct{})}
	for _, root := range plan.roots() {
		b.bindFunction(root)
	}
	if plan.tess != nil {
		for _, v := range plan.tess.systemBuffers() {
			b.touch(v)
		}
		// The synthesized kernel body indexes the system buffers.
		if w.options.BoundsChecks {
			w.needSideTable = true
		}
	}
	if w.needSideTable {
		w.sideTableVar = &ir.Variable{
			Name: SideTableName,
			Type: ir.Buffer{Elem: ir.Scalar{Kind: ir.Uint}},
			Mode: ir.ModeUniform,
		}
		w.names.claim(w.sideTableVar, SideTableName)
		b.touch(w.sideTableVar)
	}
}

type resourceBinder struct {
	w       *Writer
	plan    *entryPlan
	visited map[*ir.Function]struct{}
	current *ir.Function
}

func (b *resourceBinder) bindFunction(f *ir.Function) {
	if f == nil {
		return
	}
	if _, ok := b.visited[f]; ok {
		return
	}
	b.visited[f] = struct{}{}
	prev := b.current
	b.current = f
	for _, p := range f.Params {
		b.touch(p)
	}
	b.bindStmts(f.Body)
	b.current = prev
}

// touch classifies a variable and assigns its slot on first touch.
func (b *resourceBinder) touch(v *ir.Variable) {
	if v.Mode != ir.ModeUniform {
		return
	}
	w := b.w
	switch t := v.Type.(type) {
	case ir.Buffer:
		if _, ok := w.table.lookup(v); ok {
			return
		}
		if t.Addressing == ir.AddrTyped && !w.typedBuffersSupported() {
			w.diags.addf(ErrCapability, v.Name,
				"typed buffers need texture_buffer support (MSL 2.1)")
		}
		if _, ok := w.table.assign(v, classBuffer); ok {
			b.plan.resources = append(b.plan.resources, v)
		}
	case ir.Texture:
		if _, ok := w.table.lookup(v); ok {
			return
		}
		if _, ok := w.table.assign(v, classTexture); ok {
			b.plan.resources = append(b.plan.resources, v)
		}
	case ir.Sampler:
		if _, ok := w.table.lookup(v); ok {
			return
		}
		if _, ok := w.table.assign(v, classSampler); ok {
			b.plan.resources = append(b.plan.resources, v)
		}
	case *ir.Aggregate:
		if _, ok := w.table.lookup(v); ok {
			return
		}
		if _, ok := w.table.assign(v, classBuffer); ok {
			b.plan.resources = append(b.plan.resources, v)
			b.plan.uniformBlocks = append(b.plan.uniformBlocks, v)
		}
	case ir.Scalar, ir.Vector, ir.Matrix:
		b.touchPacked(v)
	}
}

// touchPacked folds a loose uniform into the implicit globals
// block, which occupies one buffer slot assigned at the first
// packed touch.
func (b *resourceBinder) touchPacked(v *ir.Variable) {
	w := b.w
	for _, pg := range b.plan.packed {
		if pg.v == v {
			return
		}
	}
	g := w.globalsBlock()
	if _, ok := w.table.lookup(g); !ok {
		if _, ok := w.table.assign(g, classBuffer); ok {
			b.plan.resources = append(b.plan.resources, g)
		}
	}
	offset := 0
	if n := len(b.plan.packed); n > 0 {
		last := b.plan.packed[n-1]
		offset = last.offset + last.size
	}
	size := packedSize(v.Type)
	b.plan.packed = append(b.plan.packed, packedGlobal{v: v, offset: offset, size: size})
	w.globalsAgg.Fields = append(w.globalsAgg.Fields, ir.Field{Name: v.Name, Type: v.Type})
}

// typedBuffersSupported reports whether the target can back typed
// buffers with texture_buffer views, available from MSL 2.1.
func (w *Writer) typedBuffersSupported() bool {
	t := w.options.Target
	return t.TextureBuffers && t.LangVersion.AtLeast(Version2_1)
}

// globalsBlock lazily creates the implicit packed globals block.
func (w *Writer) globalsBlock() *ir.Variable {
	if w.globalsVar == nil {
		w.globalsAgg = &ir.Aggregate{Name: "_Globals_Type"}
		w.globalsVar = &ir.Variable{Name: "_Globals", Type: w.globalsAgg, Mode: ir.ModeUniform}
		w.extraAggs = append(w.extraAggs, w.globalsAgg)
	}
	return w.globalsVar
}

// uniformArg is the expression an entry passes for a uniform
// parameter. Loose scalars, vectors and matrices live in the packed
// globals block and are read through it.
func (w *Writer) uniformArg(p *ir.Variable) ir.Expr {
	switch p.Type.(type) {
	case ir.Scalar, ir.Vector, ir.Matrix:
		return &ir.FieldRef{Base: &ir.VarRef{Var: w.globalsBlock()}, Name: p.Name}
	}
	return &ir.VarRef{Var: p}
}

// packedSize is the element count a type occupies in the packed
// globals layout.
func packedSize(t ir.Type) int {
	switch t := t.(type) {
	case ir.Scalar:
		return 1
	case ir.Vector:
		return int(t.Width)
	case ir.Matrix:
		return int(t.Cols) * int(t.Rows)
	}
	return 0
}

func (b *resourceBinder) bindStmts(body []ir.Stmt) {
	for _, s := range body {
		b.bindStmt(s)
	}
}

func (b *resourceBinder) bindStmt(s ir.Stmt) {
	switch s := s.(type) {
	case *ir.Declare:
		b.bindExpr(s.Init)
	case *ir.Assign:
		b.bindExpr(s.LHS)
		b.bindExpr(s.RHS)
	case *ir.Call:
		for _, a := range s.Args {
			b.bindExpr(a)
		}
		b.bindExpr(s.Result)
		b.bindFunction(s.Callee)
		// Callers forward the side table to callees needing it.
		if b.w.sideTableFns[s.Callee] && b.current != nil {
			b.w.sideTableFns[b.current] = true
		}
	case *ir.If:
		b.bindExpr(s.Cond)
		b.bindStmts(s.Then)
		b.bindStmts(s.Else)
	case *ir.Loop:
		b.bindStmts(s.Body)
	case *ir.Return:
		b.bindExpr(s.Value)
	case *ir.TexWrite:
		b.bindExpr(s.Texture)
		b.bindExpr(s.Coord)
		b.bindExpr(s.Value)
	case *ir.Block:
		b.bindStmts(s.Body)
	}
}

func (b *resourceBinder) bindExpr(e ir.Expr) {
	switch e := e.(type) {
	case nil:
	case *ir.VarRef:
		b.touch(e.Var)
	case *ir.OpExpr:
		for _, o := range e.Operands {
			b.bindExpr(o)
		}
	case *ir.Index:
		if buf, ok := ir.TypeOf(e.Base).(ir.Buffer); ok && b.w.options.BoundsChecks {
			if buf.Addressing != ir.AddrTyped {
				b.w.needSideTable = true
				if b.current != nil {
					b.w.sideTableFns[b.current] = true
				}
			}
		}
		b.bindExpr(e.Base)
		b.bindExpr(e.Index)
	case *ir.FieldRef:
		b.bindExpr(e.Base)
	case *ir.Swizzle:
		b.bindExpr(e.Base)
	case *ir.Construct:
		for _, a := range e.Args {
			b.bindExpr(a)
		}
	case *ir.TexSample:
		b.bindExpr(e.Texture)
		b.bindExpr(e.Sampler)
		b.bindExpr(e.Coord)
		b.bindExpr(e.Level)
		b.bindExpr(e.Compare)
	case *ir.TexRead:
		b.bindExpr(e.Texture)
		b.bindExpr(e.Coord)
	}
}

package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/mtlcc/ir"
)

// entryPlan is the synthesized layer between a user entry candidate
// and the emitted Metal entry point: the stage-in and output
// structs, builtin parameters, the ordered resource list, and the
// main body built as IR so the ordinary statement emitter renders
// it.
type entryPlan struct {
	stage    ir.Stage
	source   *ir.Function
	mainName string

	inputStruct  *stageStruct
	outputStruct *stageStruct
	inVar        *ir.Variable
	builtins     []builtinParam

	resources     []*ir.Variable
	uniformBlocks []*ir.Variable
	packed        []packedGlobal

	body       []ir.Stmt
	numThreads [3]uint32
	defines    []string

	tess *fusionState
}

// stageStruct is a struct with per-field binding attributes.
type stageStruct struct {
	name   string
	fields []ir.Field
	attrs  []string
}

type builtinParam struct {
	v    *ir.Variable
	attr string
}

// roots returns the user functions the entry reaches directly.
func (p *entryPlan) roots() []*ir.Function {
	if p.tess != nil {
		return []*ir.Function{p.tess.vertexFn, p.tess.hullFn, p.tess.patchConstFn}
	}
	return []*ir.Function{p.source}
}

// shaderPrefix is the stage prefix of emitted entry names.
func shaderPrefix(s ir.Stage) string {
	switch s {
	case ir.StageVertex:
		return "vs"
	case ir.StageHull:
		return "hs"
	case ir.StageDomain:
		return "ds"
	case ir.StageFragment:
		return "ps"
	case ir.StageCompute:
		return "cs"
	default:
		return "xx"
	}
}

// planEntry resolves the entry candidates and synthesizes the main
// function for the requested stage.
func (w *Writer) planEntry() (*entryPlan, error) {
	opts := w.options
	if opts.EntryPoint == "" {
		return nil, &Diagnostic{Kind: ErrStructural, Message: "no entry point named"}
	}
	f := w.program.FindFunction(opts.EntryPoint)
	if f == nil {
		return nil, &Diagnostic{
			Kind:    ErrStructural,
			Context: opts.EntryPoint,
			Message: "entry point not found",
		}
	}
	if opts.Stage == ir.StageHull {
		return w.planTessellation(f)
	}
	return w.planSingleStage(f)
}

// builtinInputAttribute maps a system input semantic to its Metal
// attribute for a stage. Empty means not a builtin.
func builtinInputAttribute(stage ir.Stage, semantic string) string {
	switch strings.ToUpper(semantic) {
	case "SV_VERTEXID":
		return "[[vertex_id]]"
	case "SV_INSTANCEID":
		return "[[instance_id]]"
	case "SV_POSITION":
		if stage == ir.StageFragment {
			return "[[position]]"
		}
	case "SV_ISFRONTFACE":
		return "[[front_facing]]"
	case "SV_DISPATCHTHREADID":
		return "[[thread_position_in_grid]]"
	case "SV_GROUPID":
		return "[[threadgroup_position_in_grid]]"
	case "SV_GROUPTHREADID":
		return "[[thread_position_in_threadgroup]]"
	case "SV_GROUPINDEX":
		return "[[thread_index_in_threadgroup]]"
	}
	return ""
}

// outputAttribute maps an output semantic to its Metal attribute.
func outputAttribute(semantic string, userIndex int) string {
	upper := strings.ToUpper(semantic)
	switch {
	case upper == "SV_POSITION":
		return "[[position]]"
	case upper == "SV_DEPTH":
		return "[[depth(any)]]"
	case upper == "SV_POINTSIZE" || upper == "PSIZE":
		return "[[point_size]]"
	case strings.HasPrefix(upper, "SV_TARGET"):
		n := 0
		fmt.Sscanf(upper, "SV_TARGET%d", &n)
		return fmt.Sprintf("[[color(%d)]]", n)
	case strings.HasPrefix(upper, "COLOR"):
		n := 0
		fmt.Sscanf(upper, "COLOR%d", &n)
		return fmt.Sprintf("[[color(%d)]]", n)
	default:
		return fmt.Sprintf("[[user(locn%d)]]", userIndex)
	}
}

// planSingleStage synthesizes main for vertex, domain, fragment and
// compute entries: stage inputs arrive through a stage-in struct
// and builtin parameters, outputs leave through a return struct,
// and the user function runs in between, untouched.
func (w *Writer) planSingleStage(f *ir.Function) (*entryPlan, error) {
	stage := w.options.Stage
	plan := &entryPlan{
		stage:    stage,
		source:   f,
		mainName: shaderPrefix(stage) + "_Main",
	}

	input := &stageStruct{name: Escape(f.Name) + "_Input"}
	output := &stageStruct{name: Escape(f.Name) + "_Output"}
	inVar := &ir.Variable{Name: "in", Mode: ir.ModeIn}

	var (
		args      []ir.Expr
		outCopies []ir.Stmt
		decls     []ir.Stmt
	)
	outVar := &ir.Variable{Name: "out", Mode: ir.ModeLocal}
	outAgg := &ir.Aggregate{}
	userIn, userOut := 0, 0

	for _, p := range f.Params {
		switch p.Mode {
		case ir.ModeUniform:
			args = append(args, w.uniformArg(p))
		case ir.ModeOut:
			local := &ir.Variable{Name: p.Name, Type: p.Type, Mode: ir.ModeLocal}
			decls = append(decls, &ir.Declare{Var: local})
			args = append(args, &ir.VarRef{Var: local})
			attr := outputAttribute(p.Semantic, userOut)
			if strings.HasPrefix(attr, "[[user") {
				userOut++
			}
			output.fields = append(output.fields, ir.Field{Name: p.Name, Type: p.Type, Semantic: p.Semantic})
			output.attrs = append(output.attrs, attr)
			outAgg.Fields = append(outAgg.Fields, ir.Field{Name: p.Name, Type: p.Type})
			outCopies = append(outCopies, &ir.Assign{
				LHS: &ir.FieldRef{Base: &ir.VarRef{Var: outVar}, Name: p.Name},
				RHS: &ir.VarRef{Var: local},
			})
		default:
			if _, isPatch := p.Type.(ir.Patch); isPatch {
				return nil, &Diagnostic{
					Kind:    ErrStructural,
					Context: f.Name,
					Message: "control point inputs require the fused tessellation pipeline",
				}
			}
			if attr := builtinInputAttribute(stage, p.Semantic); attr != "" {
				plan.builtins = append(plan.builtins, builtinParam{v: p, attr: attr})
				args = append(args, &ir.VarRef{Var: p})
				continue
			}
			var attr string
			if stage == ir.StageVertex {
				attr = fmt.Sprintf("[[attribute(%d)]]", userIn)
			} else {
				attr = fmt.Sprintf("[[user(locn%d)]]", userIn)
			}
			userIn++
			input.fields = append(input.fields, ir.Field{Name: p.Name, Type: p.Type, Semantic: p.Semantic})
			input.attrs = append(input.attrs, attr)
			args = append(args, &ir.FieldRef{Base: &ir.VarRef{Var: inVar}, Name: p.Name})
		}
	}

	var call *ir.Call
	if f.Return != nil {
		if f.ReturnSemantic == "" && stage != ir.StageCompute {
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: f.Name,
				Message: "entry return value has no semantic",
			}
		}
		retLocal := &ir.Variable{Name: "result", Type: f.Return, Mode: ir.ModeLocal}
		decls = append(decls, &ir.Declare{Var: retLocal})
		call = &ir.Call{Callee: f, Args: args, Result: &ir.VarRef{Var: retLocal}}
		attr := outputAttribute(f.ReturnSemantic, userOut)
		output.fields = append(output.fields, ir.Field{Name: "result", Type: f.Return, Semantic: f.ReturnSemantic})
		output.attrs = append(output.attrs, attr)
		outAgg.Fields = append(outAgg.Fields, ir.Field{Name: "result", Type: f.Return})
		outCopies = append(outCopies, &ir.Assign{
			LHS: &ir.FieldRef{Base: &ir.VarRef{Var: outVar}, Name: "result"},
			RHS: &ir.VarRef{Var: retLocal},
		})
	} else {
		call = &ir.Call{Callee: f, Args: args}
	}

	if stage == ir.StageCompute {
		if f.Attributes.NumThreads == [3]uint32{} {
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: f.Name,
				Message: "compute entry has no thread-group size",
			}
		}
		plan.numThreads = f.Attributes.NumThreads
		if len(output.fields) > 0 {
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: f.Name,
				Message: "compute entry cannot have stage outputs",
			}
		}
		plan.body = append(decls, call)
		if len(input.fields) > 0 {
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: f.Name,
				Message: "compute entry cannot have stage inputs",
			}
		}
		return plan, nil
	}

	if len(input.fields) > 0 {
		inAgg := &ir.Aggregate{Name: input.name}
		for _, fld := range input.fields {
			inAgg.Fields = append(inAgg.Fields, ir.Field{Name: fld.Name, Type: fld.Type})
		}
		inVar.Type = inAgg
		plan.inputStruct = input
		plan.inVar = inVar
	}
	if len(output.fields) == 0 {
		return nil, &Diagnostic{
			Kind:    ErrStructural,
			Context: f.Name,
			Message: "render entry produces no outputs",
		}
	}
	plan.outputStruct = output
	outVar.Type = outAgg

	body := []ir.Stmt{&ir.Declare{Var: outVar}}
	body = append(body, decls...)
	body = append(body, call)
	body = append(body, outCopies...)
	body = append(body, &ir.Return{Value: &ir.VarRef{Var: outVar}})
	plan.body = body
	return plan, nil
}

// writeStageStructs emits the stage-in and output structs with
// their binding attributes.
func (w *Writer) writeStageStructs(plan *entryPlan) error {
	for _, s := range []*stageStruct{plan.inputStruct, plan.outputStruct} {
		if s == nil {
			continue
		}
		w.writeLine(fmt.Sprintf("struct %s {", s.name))
		w.pushIndent()
		for i, f := range s.fields {
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
			w.writeLine(fmt.Sprintf("%s %s%s %s;", name, Escape(f.Name), suffix, s.attrs[i]))
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
	return nil
}

// entryQualifier is the Metal function qualifier for a stage.
func entryQualifier(s ir.Stage) string {
	switch s {
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute, ir.StageHull:
		return "kernel"
	default:
		return "vertex"
	}
}

// writeEntry emits the synthesized entry point: the attributed
// signature, then the planned body through the ordinary statement
// emitter.
func (w *Writer) writeEntry(plan *entryPlan) error {
	w.names.beginFunction()

	ret := "void"
	if plan.outputStruct != nil {
		ret = plan.outputStruct.name
	}

	var params []string
	if plan.inputStruct != nil {
		params = append(params, fmt.Sprintf("%s %s [[stage_in]]", plan.inputStruct.name, w.names.name(plan.inVar)))
	}
	for _, b := range plan.builtins {
		tn, err := w.typeName(b.v.Type)
		if err != nil {
			return err
		}
		params = append(params, fmt.Sprintf("%s %s %s", tn, w.names.name(b.v), b.attr))
	}
	for _, v := range plan.resources {
		decl, err := w.resourceParamDecl(v)
		if err != nil {
			return err
		}
		params = append(params, decl)
	}

	// Stage structs are not user aggregates; register their
	// spellings for the body's declarations and field accesses.
	if plan.outputStruct != nil {
		if outAgg := w.planOutputAgg(plan); outAgg != nil {
			w.aggNames[outAgg] = plan.outputStruct.name
		}
	}
	if plan.inVar != nil {
		if inAgg, ok := plan.inVar.Type.(*ir.Aggregate); ok {
			w.aggNames[inAgg] = plan.inputStruct.name
		}
	}

	w.writeLine(fmt.Sprintf("%s %s %s(%s) {", entryQualifier(plan.stage), ret, plan.mainName, strings.Join(params, ",\n        ")))
	w.pushIndent()
	if err := w.writeStmts(plan.body); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

// planOutputAgg digs the output aggregate out of the synthesized
// body's leading declaration.
func (w *Writer) planOutputAgg(plan *entryPlan) *ir.Aggregate {
	if len(plan.body) == 0 {
		return nil
	}
	d, ok := plan.body[0].(*ir.Declare)
	if !ok {
		return nil
	}
	agg, _ := d.Var.Type.(*ir.Aggregate)
	return agg
}

// resourceParamDecl renders an entry resource parameter with its
// binding attribute.
func (w *Writer) resourceParamDecl(v *ir.Variable) (string, error) {
	b, ok := w.table.lookup(v)
	if !ok {
		return "", &Diagnostic{Kind: ErrStructural, Context: v.Name, Message: "resource has no binding"}
	}
	decl, err := w.paramDecl(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s [[%s(%d)]]", decl, b.class, b.slot), nil
}

package msl

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/mtlcc/ir"
)

// maxTessThreadsPerThreadgroup is the thread budget a fused
// tessellation kernel packs patches into.
const maxTessThreadsPerThreadgroup = 32

// fusionState holds everything the fused vertex+hull kernel is
// built from.
type fusionState struct {
	vertexFn     *ir.Function
	hullFn       *ir.Function
	patchConstFn *ir.Function

	inCP         uint32
	outCP        uint32
	patchesPerTG uint32

	domain      ir.TessDomain
	edgeCount   int
	insideCount int

	patchCount *ir.Variable
	indexBuf   *ir.Variable
	cpOut      *ir.Variable
	hsOut      *ir.Variable
	tfOut      *ir.Variable
}

// factorCount is the tessellation factor stride per patch.
func (f *fusionState) factorCount() int {
	return f.edgeCount + f.insideCount
}

// systemBuffers lists the synthetic buffers in their fixed binding
// order.
func (f *fusionState) systemBuffers() []*ir.Variable {
	return []*ir.Variable{f.patchCount, f.indexBuf, f.hsOut, f.cpOut, f.tfOut}
}

// planTessellation fuses a vertex and a hull function into one
// compute kernel. Threads map to control points: each threadgroup
// processes patchesPerTG patches, each patch owning
// max(inCP, outCP) consecutive threads. The vertex phase runs on
// the input control points and parks results in threadgroup memory;
// after a barrier the hull phase reads them back; one thread per
// patch then runs the patch constant function.
func (w *Writer) planTessellation(hull *ir.Function) (*entryPlan, error) {
	attrs := hull.Attributes.Tess
	if attrs == nil {
		return nil, &Diagnostic{Kind: ErrStructural, Context: hull.Name, Message: "hull function has no tessellation attributes"}
	}
	outCP := attrs.OutputControlPoints
	if outCP == 0 {
		return nil, &Diagnostic{Kind: ErrStructural, Context: hull.Name, Message: "output control point count indeterminable"}
	}
	var inCP uint32
	for _, p := range hull.Params {
		if patch, ok := p.Type.(ir.Patch); ok && !patch.Output {
			inCP = patch.Length
		}
	}
	if inCP == 0 {
		return nil, &Diagnostic{Kind: ErrStructural, Context: hull.Name, Message: "input control point count indeterminable"}
	}

	if w.options.VertexEntry == "" {
		return nil, &Diagnostic{Kind: ErrStructural, Context: hull.Name, Message: "no vertex entry named for fusion"}
	}
	vertex := w.program.FindFunction(w.options.VertexEntry)
	if vertex == nil {
		return nil, &Diagnostic{Kind: ErrStructural, Context: w.options.VertexEntry, Message: "fused vertex entry not found"}
	}
	if vertex.Return == nil {
		return nil, &Diagnostic{Kind: ErrStructural, Context: vertex.Name, Message: "fused vertex entry returns nothing"}
	}
	patchConst := w.program.FindFunction(attrs.PatchConstantFunc)
	if patchConst == nil {
		return nil, &Diagnostic{Kind: ErrStructural, Context: attrs.PatchConstantFunc, Message: "patch constant function not found"}
	}

	threadsPerPatch := inCP
	if outCP > threadsPerPatch {
		threadsPerPatch = outCP
	}
	patchesPerTG := uint32(maxTessThreadsPerThreadgroup) / threadsPerPatch
	if patchesPerTG == 0 {
		return nil, &Diagnostic{
			Kind:    ErrStructural,
			Context: hull.Name,
			Message: fmt.Sprintf("%d control points exceed the %d-thread threadgroup budget", threadsPerPatch, maxTessThreadsPerThreadgroup),
		}
	}

	cpOutAgg, ok := hull.Return.(*ir.Aggregate)
	if !ok {
		return nil, &Diagnostic{Kind: ErrStructural, Context: hull.Name, Message: "hull function must return an aggregate"}
	}
	pcAgg, ok := patchConst.Return.(*ir.Aggregate)
	if !ok {
		return nil, &Diagnostic{Kind: ErrStructural, Context: patchConst.Name, Message: "patch constant function must return an aggregate"}
	}

	// The control point output struct is named by a digest of its
	// shape so pipeline stages compiled separately agree on it.
	w.aggNames[cpOutAgg] = w.names.unique(fmt.Sprintf("PatchControlPointOut_%08x", aggregateHash(cpOutAgg)))

	fs := &fusionState{
		vertexFn:     vertex,
		hullFn:       hull,
		patchConstFn: patchConst,
		inCP:         inCP,
		outCP:        outCP,
		patchesPerTG: patchesPerTG,
		domain:       attrs.Domain,
	}
	switch attrs.Domain {
	case ir.DomainQuad:
		fs.edgeCount, fs.insideCount = 4, 2
	case ir.DomainIsoline:
		fs.edgeCount, fs.insideCount = 2, 0
	default:
		fs.edgeCount, fs.insideCount = 3, 1
	}

	uintBuf := ir.Buffer{Elem: ir.Scalar{Kind: ir.Uint}}
	fs.patchCount = &ir.Variable{Name: PatchCountName, Type: uintBuf, Mode: ir.ModeUniform, Role: ir.RolePatchCount}
	fs.indexBuf = &ir.Variable{Name: IndexBufferName, Type: uintBuf, Mode: ir.ModeUniform, Role: ir.RoleIndexBuffer}
	fs.cpOut = &ir.Variable{
		Name: ControlPointOutName,
		Type: ir.Buffer{Elem: cpOutAgg, Writable: true},
		Mode: ir.ModeUniform,
		Role: ir.RoleControlPointOut,
	}
	fs.hsOut = &ir.Variable{
		Name: HullOutName,
		Type: ir.Buffer{Elem: pcAgg, Writable: true},
		Mode: ir.ModeUniform,
		Role: ir.RoleHullOut,
	}
	fs.tfOut = &ir.Variable{
		Name: TessFactorOutName,
		Type: ir.Buffer{Elem: ir.Scalar{Kind: ir.Half}, Writable: true},
		Mode: ir.ModeUniform,
		Role: ir.RoleTessFactorOut,
	}
	for _, v := range fs.systemBuffers() {
		w.names.claim(v, v.Name)
	}

	plan := &entryPlan{
		stage:    ir.StageHull,
		source:   hull,
		mainName: shaderPrefix(ir.StageHull) + "_Main",
		tess:     fs,
		numThreads: [3]uint32{
			threadsPerPatch * patchesPerTG, 1, 1,
		},
		defines: []string{
			fmt.Sprintf("#define TessellationOutputControlPoints %d", outCP),
			fmt.Sprintf("#define TessellationInputControlPoints %d", inCP),
			fmt.Sprintf("#define TessellationPatchesPerThreadGroup %d", patchesPerTG),
			fmt.Sprintf("#define TessellationMaxTessFactor %s", floatLiteral(attrs.MaxTessFactor)),
		},
	}

	body, err := w.buildFusedBody(plan, fs)
	if err != nil {
		return nil, err
	}
	plan.body = body
	return plan, nil
}

// aggregateHash digests an aggregate's shape.
func aggregateHash(a *ir.Aggregate) uint32 {
	d := xxhash.New()
	d.WriteString(a.Name)
	for _, f := range a.Fields {
		d.WriteString(f.Name)
		d.WriteString(mangleType(f.Type))
		d.WriteString(f.Semantic)
	}
	return uint32(d.Sum64())
}

// buildFusedBody assembles the kernel body as IR.
func (w *Writer) buildFusedBody(plan *entryPlan, fs *fusionState) ([]ir.Stmt, error) {
	uintT := ir.Scalar{Kind: ir.Uint}
	threadsPerPatch := fs.inCP
	if fs.outCP > threadsPerPatch {
		threadsPerPatch = fs.outCP
	}

	tid := &ir.Variable{Name: "threadIndex", Type: uintT, Mode: ir.ModeIn, Semantic: "SV_GroupIndex"}
	gid := &ir.Variable{Name: "groupID", Type: uintT, Mode: ir.ModeIn, Semantic: "SV_GroupID"}
	plan.builtins = []builtinParam{
		{v: tid, attr: "[[thread_index_in_threadgroup]]"},
		{v: gid, attr: "[[threadgroup_position_in_grid]]"},
	}

	patchIDInTG := &ir.Variable{Name: "patchIDInThreadgroup", Type: uintT, Mode: ir.ModeLocal}
	internalPatchID := &ir.Variable{Name: "internalPatchID", Type: uintT, Mode: ir.ModeLocal}
	isPatchValid := &ir.Variable{Name: "isPatchValid", Type: ir.Scalar{Kind: ir.Bool}, Mode: ir.ModeLocal}
	inputCPID := &ir.Variable{Name: "inputControlPointID", Type: uintT, Mode: ir.ModeLocal}

	scratch := &ir.Variable{
		Name: "inputControlPoints",
		Type: ir.Array{Elem: fs.vertexFn.Return, Count: fs.inCP * fs.patchesPerTG},
		Mode: ir.ModeShared,
	}

	ref := func(v *ir.Variable) ir.Expr { return &ir.VarRef{Var: v} }
	u := func(n uint32) ir.Expr { return ir.LitUint(n) }

	body := []ir.Stmt{
		&ir.Declare{Var: patchIDInTG, Init: ir.NewOp(ir.OpDiv, ref(tid), u(threadsPerPatch))},
		&ir.Declare{Var: internalPatchID, Init: ir.NewOp(ir.OpAdd,
			ir.NewOp(ir.OpMul, ref(gid), u(fs.patchesPerTG)),
			ref(patchIDInTG))},
		&ir.Declare{Var: isPatchValid, Init: ir.NewOp(ir.OpLess,
			ref(internalPatchID),
			&ir.Index{Base: ref(fs.patchCount), Index: u(0)})},
		&ir.Declare{Var: inputCPID, Init: ir.NewOp(ir.OpMod, ref(tid), u(threadsPerPatch))},
		&ir.Declare{Var: scratch},
	}

	// Vertex phase.
	vertexIndex := &ir.Variable{Name: "vertexIndex", Type: uintT, Mode: ir.ModeLocal}
	vertexOut := &ir.Variable{Name: "vertexOut", Type: fs.vertexFn.Return, Mode: ir.ModeLocal}
	vsArgs, err := w.fusedVertexArgs(fs, vertexIndex)
	if err != nil {
		return nil, err
	}
	vertexPhase := &ir.If{
		Cond: ir.NewOp(ir.OpLogicAnd, ref(isPatchValid),
			ir.NewOp(ir.OpLess, ref(inputCPID), u(fs.inCP))),
		Then: []ir.Stmt{
			&ir.Declare{Var: vertexIndex, Init: &ir.Index{
				Base: ref(fs.indexBuf),
				Index: ir.NewOp(ir.OpAdd,
					ir.NewOp(ir.OpMul, ref(internalPatchID), u(fs.inCP)),
					ref(inputCPID)),
			}},
			&ir.Declare{Var: vertexOut},
			&ir.Call{Callee: fs.vertexFn, Args: vsArgs, Result: ref(vertexOut)},
			&ir.Assign{
				LHS: &ir.Index{
					Base: ref(scratch),
					Index: ir.NewOp(ir.OpAdd,
						ir.NewOp(ir.OpMul, ref(patchIDInTG), u(fs.inCP)),
						ref(inputCPID)),
				},
				RHS: ref(vertexOut),
			},
		},
	}
	body = append(body, vertexPhase,
		&ir.Barrier{Flags: ir.BarrierThreadgroup})

	// Hull phase.
	outputCPID := &ir.Variable{Name: "outputControlPointID", Type: uintT, Mode: ir.ModeLocal}
	hullStmts, err := w.fusedHullCall(fs, scratch, patchIDInTG, internalPatchID, outputCPID)
	if err != nil {
		return nil, err
	}
	guarded := &ir.If{Cond: ref(isPatchValid), Then: hullStmts}

	if fs.inCP == fs.outCP {
		// Every thread owns one control point; the stride loop
		// collapses into a single conditional.
		body = append(body,
			&ir.Declare{Var: outputCPID, Init: ref(inputCPID)},
			guarded,
		)
	} else {
		baseCPID := &ir.Variable{Name: "baseControlPointID", Type: uintT, Mode: ir.ModeLocal}
		body = append(body,
			&ir.Declare{Var: baseCPID, Init: u(0)},
			&ir.Declare{Var: outputCPID, Init: u(0)},
			&ir.Loop{Body: []ir.Stmt{
				&ir.If{
					Cond: ir.NewOp(ir.OpGreaterEqual, ref(baseCPID), u(fs.outCP)),
					Then: []ir.Stmt{&ir.Break{}},
				},
				&ir.Assign{LHS: ref(outputCPID), RHS: ir.NewOp(ir.OpAdd, ref(baseCPID), ref(inputCPID))},
				&ir.If{
					Cond: ir.NewOp(ir.OpLess, ref(outputCPID), u(fs.outCP)),
					Then: []ir.Stmt{guarded},
				},
				&ir.Assign{LHS: ref(baseCPID), RHS: ir.NewOp(ir.OpAdd, ref(baseCPID), u(fs.inCP))},
			}},
		)
	}

	body = append(body, &ir.Barrier{Flags: ir.BarrierThreadgroup})

	// Patch constant phase, one thread per patch.
	pcStmts, err := w.fusedPatchConstant(fs, internalPatchID)
	if err != nil {
		return nil, err
	}
	body = append(body, &ir.If{
		Cond: ir.NewOp(ir.OpLogicAnd, ref(isPatchValid),
			ir.NewOp(ir.OpEqual, ref(inputCPID), u(0))),
		Then: pcStmts,
	})
	return body, nil
}

// fusedVertexArgs maps the vertex function parameters inside the
// fused kernel: the vertex id comes from the index buffer, and
// resources pass through. Attribute-sourced inputs have no home in
// the fused kernel.
func (w *Writer) fusedVertexArgs(fs *fusionState, vertexIndex *ir.Variable) ([]ir.Expr, error) {
	args := make([]ir.Expr, 0, len(fs.vertexFn.Params))
	for _, p := range fs.vertexFn.Params {
		switch {
		case p.Mode == ir.ModeUniform:
			args = append(args, w.uniformArg(p))
		case builtinInputAttribute(ir.StageVertex, p.Semantic) == "[[vertex_id]]":
			args = append(args, &ir.VarRef{Var: vertexIndex})
		default:
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: fs.vertexFn.Name,
				Message: fmt.Sprintf("fused vertex input %q must come from buffers", p.Name),
			}
		}
	}
	return args, nil
}

// fusedHullCall builds the per-control-point hull invocation and
// the store of its result.
func (w *Writer) fusedHullCall(fs *fusionState, scratch, patchIDInTG, internalPatchID, outputCPID *ir.Variable) ([]ir.Stmt, error) {
	ref := func(v *ir.Variable) ir.Expr { return &ir.VarRef{Var: v} }
	cpLocal := &ir.Variable{Name: "controlPointOut", Type: fs.hullFn.Return, Mode: ir.ModeLocal}

	args := make([]ir.Expr, 0, len(fs.hullFn.Params))
	for _, p := range fs.hullFn.Params {
		switch {
		case p.Mode == ir.ModeUniform:
			args = append(args, w.uniformArg(p))
		default:
			if patch, ok := p.Type.(ir.Patch); ok && !patch.Output {
				args = append(args, &ir.Index{
					Base:  ref(scratch),
					Index: ir.NewOp(ir.OpMul, ref(patchIDInTG), ir.LitUint(fs.inCP)),
				})
				continue
			}
			switch p.Semantic {
			case "SV_OutputControlPointID":
				args = append(args, ref(outputCPID))
			case "SV_PrimitiveID":
				args = append(args, ref(internalPatchID))
			default:
				return nil, &Diagnostic{
					Kind:    ErrStructural,
					Context: fs.hullFn.Name,
					Message: fmt.Sprintf("hull input %q has no source in the fused kernel", p.Name),
				}
			}
		}
	}

	return []ir.Stmt{
		&ir.Declare{Var: cpLocal},
		&ir.Call{Callee: fs.hullFn, Args: args, Result: ref(cpLocal)},
		&ir.Assign{
			LHS: &ir.Index{
				Base: ref(fs.cpOut),
				Index: ir.NewOp(ir.OpAdd,
					ir.NewOp(ir.OpMul, ref(internalPatchID), ir.LitUint(fs.outCP)),
					ref(outputCPID)),
			},
			RHS: ref(cpLocal),
		},
	}, nil
}

// fusedPatchConstant builds the per-patch constant invocation, the
// per-patch output store and the factor stores.
func (w *Writer) fusedPatchConstant(fs *fusionState, internalPatchID *ir.Variable) ([]ir.Stmt, error) {
	ref := func(v *ir.Variable) ir.Expr { return &ir.VarRef{Var: v} }
	pcAgg := fs.patchConstFn.Return.(*ir.Aggregate)
	pcLocal := &ir.Variable{Name: "patchConstOut", Type: pcAgg, Mode: ir.ModeLocal}

	args := make([]ir.Expr, 0, len(fs.patchConstFn.Params))
	for _, p := range fs.patchConstFn.Params {
		switch {
		case p.Mode == ir.ModeUniform:
			args = append(args, w.uniformArg(p))
		default:
			if patch, ok := p.Type.(ir.Patch); ok && patch.Output {
				args = append(args, &ir.Index{
					Base:  ref(fs.cpOut),
					Index: ir.NewOp(ir.OpMul, ref(internalPatchID), ir.LitUint(fs.outCP)),
				})
				continue
			}
			if p.Semantic == "SV_PrimitiveID" {
				args = append(args, ref(internalPatchID))
				continue
			}
			return nil, &Diagnostic{
				Kind:    ErrStructural,
				Context: fs.patchConstFn.Name,
				Message: fmt.Sprintf("patch constant input %q has no source in the fused kernel", p.Name),
			}
		}
	}

	stmts := []ir.Stmt{
		&ir.Declare{Var: pcLocal},
		&ir.Call{Callee: fs.patchConstFn, Args: args, Result: ref(pcLocal)},
		&ir.Assign{
			LHS: &ir.Index{Base: ref(fs.hsOut), Index: ref(internalPatchID)},
			RHS: ref(pcLocal),
		},
	}

	edgeField, insideField := "", ""
	for _, f := range pcAgg.Fields {
		switch f.Semantic {
		case "SV_TessFactor":
			edgeField = f.Name
		case "SV_InsideTessFactor":
			insideField = f.Name
		}
	}
	if edgeField == "" {
		return nil, &Diagnostic{Kind: ErrStructural, Context: fs.patchConstFn.Name, Message: "patch constant output has no edge tessellation factors"}
	}
	if fs.insideCount > 0 && insideField == "" {
		return nil, &Diagnostic{Kind: ErrStructural, Context: fs.patchConstFn.Name, Message: "patch constant output has no inside tessellation factors"}
	}

	half := ir.Scalar{Kind: ir.Half}
	factorBase := ir.NewOp(ir.OpMul, ref(internalPatchID), ir.LitUint(uint32(fs.factorCount())))
	store := func(slot int, value ir.Expr) ir.Stmt {
		return &ir.Assign{
			LHS: &ir.Index{
				Base:  ref(fs.tfOut),
				Index: ir.NewOp(ir.OpAdd, factorBase, ir.LitUint(uint32(slot))),
			},
			RHS: &ir.Construct{Type: half, Args: []ir.Expr{value}},
		}
	}
	for i := 0; i < fs.edgeCount; i++ {
		stmts = append(stmts, store(i, &ir.Index{
			Base:  &ir.FieldRef{Base: ref(pcLocal), Name: edgeField},
			Index: ir.LitUint(uint32(i)),
		}))
	}
	for i := 0; i < fs.insideCount; i++ {
		var value ir.Expr = &ir.FieldRef{Base: ref(pcLocal), Name: insideField}
		idx := pcAgg.FieldIndex(insideField)
		if _, isArray := pcAgg.Fields[idx].Type.(ir.Array); isArray {
			value = &ir.Index{Base: value, Index: ir.LitUint(uint32(i))}
		}
		stmts = append(stmts, store(fs.edgeCount+i, value))
	}
	return stmts, nil
}

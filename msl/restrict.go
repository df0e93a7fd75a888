package msl

import (
	"github.com/gogpu/mtlcc/ir"
)

// accessFlags records how a resource is touched.
type accessFlags uint8

const (
	accessRead accessFlags = 1 << iota
	accessWrite
)

// usageMap aggregates resource access over the reachable code.
type usageMap map[*ir.Variable]accessFlags

// checkRestrictions walks everything reachable from the entry
// candidates and validates resource access against the target
// stage. All violations are collected; the walk never stops early.
//
// Compute runs the permissive pass: reads and writes are recorded
// for reflection but nothing is rejected. Render stages run the
// restrictive pass: writes to device memory are only expressible in
// the fragment stage, so a vertex, hull or domain function storing
// to a buffer or storage texture is reported per resource.
func checkRestrictions(stage ir.Stage, roots []*ir.Function, diags *DiagnosticList) usageMap {
	c := &restrictionChecker{
		stage:    stage,
		usage:    make(usageMap),
		flagged:  make(map[*ir.Variable]struct{}),
		visited:  make(map[*ir.Function]struct{}),
		diags:    diags,
		permitRW: stage == ir.StageCompute || stage == ir.StageFragment,
	}
	for _, f := range roots {
		c.checkFunction(f)
	}
	return c.usage
}

type restrictionChecker struct {
	stage    ir.Stage
	usage    usageMap
	flagged  map[*ir.Variable]struct{}
	visited  map[*ir.Function]struct{}
	diags    *DiagnosticList
	permitRW bool
}

func (c *restrictionChecker) checkFunction(f *ir.Function) {
	if f == nil {
		return
	}
	if _, ok := c.visited[f]; ok {
		return
	}
	c.visited[f] = struct{}{}
	c.checkStmts(f.Body)
}

func (c *restrictionChecker) checkStmts(body []ir.Stmt) {
	for _, s := range body {
		c.checkStmt(s)
	}
}

func (c *restrictionChecker) checkStmt(s ir.Stmt) {
	switch s := s.(type) {
	case *ir.Declare:
		c.checkExpr(s.Init)
	case *ir.Assign:
		c.markWrite(s.LHS)
		c.checkLHSReads(s.LHS)
		c.checkExpr(s.RHS)
	case *ir.Call:
		for i, a := range s.Args {
			if i < len(s.Callee.Params) && s.Callee.Params[i].Mode == ir.ModeOut {
				c.markWrite(a)
				continue
			}
			c.checkExpr(a)
		}
		if s.Result != nil {
			c.markWrite(s.Result)
		}
		c.checkFunction(s.Callee)
	case *ir.If:
		c.checkExpr(s.Cond)
		c.checkStmts(s.Then)
		c.checkStmts(s.Else)
	case *ir.Loop:
		c.checkStmts(s.Body)
	case *ir.Return:
		c.checkExpr(s.Value)
	case *ir.TexWrite:
		c.markWrite(s.Texture)
		c.checkExpr(s.Coord)
		c.checkExpr(s.Value)
	case *ir.Block:
		c.checkStmts(s.Body)
	}
}

func (c *restrictionChecker) checkExpr(e ir.Expr) {
	switch e := e.(type) {
	case nil:
	case *ir.VarRef:
		if isDeviceResource(e.Var) {
			c.usage[e.Var] |= accessRead
		}
	case *ir.OpExpr:
		for _, o := range e.Operands {
			c.checkExpr(o)
		}
	case *ir.Index:
		c.checkExpr(e.Base)
		c.checkExpr(e.Index)
	case *ir.FieldRef:
		c.checkExpr(e.Base)
	case *ir.Swizzle:
		c.checkExpr(e.Base)
	case *ir.Construct:
		for _, a := range e.Args {
			c.checkExpr(a)
		}
	case *ir.TexSample:
		c.checkExpr(e.Texture)
		c.checkExpr(e.Sampler)
		c.checkExpr(e.Coord)
		c.checkExpr(e.Level)
		c.checkExpr(e.Compare)
	case *ir.TexRead:
		c.checkExpr(e.Texture)
		c.checkExpr(e.Coord)
	}
}

// checkLHSReads records index expressions inside a store
// destination, which are reads.
func (c *restrictionChecker) checkLHSReads(e ir.Expr) {
	switch e := e.(type) {
	case *ir.Index:
		c.checkLHSReads(e.Base)
		c.checkExpr(e.Index)
	case *ir.FieldRef:
		c.checkLHSReads(e.Base)
	case *ir.Swizzle:
		c.checkLHSReads(e.Base)
	}
}

// markWrite records a store through the destination's root variable
// and reports it when the stage cannot express it.
func (c *restrictionChecker) markWrite(e ir.Expr) {
	v := rootVariable(e)
	if v == nil || !isDeviceResource(v) {
		return
	}
	c.usage[v] |= accessWrite
	if c.permitRW {
		return
	}
	if _, done := c.flagged[v]; done {
		return
	}
	c.flagged[v] = struct{}{}
	c.diags.addf(ErrCapability, v.Name,
		"%s stage cannot write device memory; writes require the fragment or compute stage", c.stage)
}

// isDeviceResource reports whether v is backed by device memory:
// a buffer or a storage texture.
func isDeviceResource(v *ir.Variable) bool {
	switch t := v.Type.(type) {
	case ir.Buffer:
		return true
	case ir.Texture:
		return t.Storage
	default:
		return false
	}
}

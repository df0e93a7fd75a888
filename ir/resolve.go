package ir

// TypeOf resolves the static type of an expression. It returns nil
// when the tree is malformed; backends treat that as a structural
// error in the input.
func TypeOf(e Expr) Type {
	switch e := e.(type) {
	case *VarRef:
		return e.Var.Type
	case LitBool:
		return Scalar{Bool}
	case LitInt:
		return Scalar{Int}
	case LitUint:
		return Scalar{Uint}
	case LitFloat:
		return Scalar{Float}
	case LitHalf:
		return Scalar{Half}
	case *OpExpr:
		return resolveOp(e)
	case *Index:
		return resolveIndex(e)
	case *FieldRef:
		agg, ok := TypeOf(e.Base).(*Aggregate)
		if !ok {
			return nil
		}
		if i := agg.FieldIndex(e.Name); i >= 0 {
			return agg.Fields[i].Type
		}
		return nil
	case *Swizzle:
		elem, ok := ScalarOf(TypeOf(e.Base))
		if !ok {
			return nil
		}
		if len(e.Components) == 1 {
			return elem
		}
		return Vector{Elem: elem, Width: uint8(len(e.Components))}
	case *Construct:
		return e.Type
	case *TexSample:
		tex, ok := TypeOf(e.Texture).(Texture)
		if !ok {
			return nil
		}
		if tex.Shadow {
			return Scalar{Float}
		}
		return Vector{Elem: tex.Elem, Width: 4}
	case *TexRead:
		tex, ok := TypeOf(e.Texture).(Texture)
		if !ok {
			return nil
		}
		return Vector{Elem: tex.Elem, Width: 4}
	}
	return nil
}

func resolveIndex(e *Index) Type {
	switch base := TypeOf(e.Base).(type) {
	case Array:
		return base.Elem
	case Vector:
		return base.Elem
	case Matrix:
		return Vector{Elem: base.Elem, Width: base.Rows}
	case Buffer:
		if base.Addressing == AddrByte {
			return Scalar{Uint}
		}
		return base.Elem
	case Patch:
		return base.ControlPoint
	}
	return nil
}

func resolveOp(e *OpExpr) Type {
	if len(e.Operands) == 0 {
		return nil
	}
	first := TypeOf(e.Operands[0])
	switch e.Op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEqual, OpNotEqual:
		if w := Components(first); w > 1 {
			return Vector{Elem: Scalar{Bool}, Width: uint8(w)}
		}
		return Scalar{Bool}
	case OpLogicAnd, OpLogicOr, OpLogicNot:
		return Scalar{Bool}
	case OpDot, OpLength, OpDistance:
		elem, ok := ScalarOf(first)
		if !ok {
			return nil
		}
		return elem
	case OpMul:
		return resolveMul(first, TypeOf(e.Operands[1]))
	case OpAdd, OpSub, OpDiv:
		return widen(first, TypeOf(e.Operands[1]))
	case OpSelect:
		return TypeOf(e.Operands[1])
	default:
		return first
	}
}

// resolveMul handles the matrix shapes; everything else follows the
// widening rule.
func resolveMul(a, b Type) Type {
	am, aIsMat := a.(Matrix)
	bm, bIsMat := b.(Matrix)
	switch {
	case aIsMat && bIsMat:
		return Matrix{Elem: am.Elem, Cols: bm.Cols, Rows: am.Rows}
	case aIsMat:
		if _, ok := b.(Vector); ok {
			return Vector{Elem: am.Elem, Width: am.Rows}
		}
		return a
	case bIsMat:
		if _, ok := a.(Vector); ok {
			return Vector{Elem: bm.Elem, Width: bm.Cols}
		}
		return b
	default:
		return widen(a, b)
	}
}

// widen resolves mixed-precision arithmetic: when one side is half
// and the other float, the result is float with the wider shape.
func widen(a, b Type) Type {
	ak, aok := ScalarOf(a)
	bk, bok := ScalarOf(b)
	if !aok || !bok {
		return a
	}
	kind := ak.Kind
	if bk.Kind > kind {
		kind = bk.Kind
	}
	width := Components(a)
	if w := Components(b); w > width {
		width = w
	}
	if width > 1 {
		return Vector{Elem: Scalar{kind}, Width: uint8(width)}
	}
	return Scalar{kind}
}

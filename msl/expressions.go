package msl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/mtlcc/ir"
)

// opSyntax holds the up-to-four syntax fragments of an operator:
// prefix, the separator after the first operand, the separator after
// the second, and the shorthand. Fragments interleave with operands;
// the fragment after the last operand closes the form, so the
// shorthand doubles as the closer of three-operand forms. For infix
// operators the shorthand records the bare token.
type opSyntax struct {
	prefix    string
	infix     string
	infix2    string
	shorthand string
}

// opTable maps every operator to its Metal syntax. The array is
// sized by the operator count, so a new operator without an entry
// renders as empty and is rejected at emission.
var opTable = [ir.OpCount]opSyntax{
	ir.OpNeg:      {"-(", ")", "", ""},
	ir.OpLogicNot: {"!(", ")", "", ""},
	ir.OpBitNot:   {"~(", ")", "", ""},
	ir.OpAbs:      {"metal::abs(", ")", "", ""},
	ir.OpSign:     {"metal::sign(", ")", "", ""},
	ir.OpSaturate: {"metal::saturate(", ")", "", ""},
	ir.OpSqrt:     {"metal::sqrt(", ")", "", ""},
	ir.OpRsqrt:    {"metal::rsqrt(", ")", "", ""},
	ir.OpFrac:     {"metal::fract(", ")", "", ""},
	ir.OpFloor:    {"metal::floor(", ")", "", ""},
	ir.OpCeil:     {"metal::ceil(", ")", "", ""},
	ir.OpExp:      {"metal::exp(", ")", "", ""},
	ir.OpExp2:     {"metal::exp2(", ")", "", ""},
	ir.OpLog:      {"metal::log(", ")", "", ""},
	ir.OpLog2:     {"metal::log2(", ")", "", ""},
	ir.OpSin:      {"metal::sin(", ")", "", ""},
	ir.OpCos:      {"metal::cos(", ")", "", ""},
	ir.OpTan:      {"metal::tan(", ")", "", ""},

	ir.OpNormalize: {"metal::normalize(", ")", "", ""},
	ir.OpLength:    {"metal::length(", ")", "", ""},

	ir.OpAdd:          {"(", " + ", ")", "+"},
	ir.OpSub:          {"(", " - ", ")", "-"},
	ir.OpMul:          {"(", " * ", ")", "*"},
	ir.OpDiv:          {"(", " / ", ")", "/"},
	ir.OpMod:          {"metal::fmod(", ", ", ")", "%"},
	ir.OpLess:         {"(", " < ", ")", "<"},
	ir.OpLessEqual:    {"(", " <= ", ")", "<="},
	ir.OpGreater:      {"(", " > ", ")", ">"},
	ir.OpGreaterEqual: {"(", " >= ", ")", ">="},
	ir.OpEqual:        {"(", " == ", ")", "=="},
	ir.OpNotEqual:     {"(", " != ", ")", "!="},
	ir.OpLogicAnd:     {"(", " && ", ")", "&&"},
	ir.OpLogicOr:      {"(", " || ", ")", "||"},
	ir.OpBitAnd:       {"(", " & ", ")", "&"},
	ir.OpBitOr:        {"(", " | ", ")", "|"},
	ir.OpBitXor:       {"(", " ^ ", ")", "^"},
	ir.OpShl:          {"(", " << ", ")", "<<"},
	ir.OpShr:          {"(", " >> ", ")", ">>"},
	ir.OpMin:          {"metal::fmin(", ", ", ")", ""},
	ir.OpMax:          {"metal::fmax(", ", ", ")", ""},
	ir.OpDot:          {"metal::dot(", ", ", ")", ""},
	ir.OpCross:        {"metal::cross(", ", ", ")", ""},
	ir.OpPow:          {"metal::pow(", ", ", ")", ""},
	ir.OpStep:         {"metal::step(", ", ", ")", ""},
	ir.OpDistance:     {"metal::distance(", ", ", ")", ""},

	ir.OpFma:        {"metal::fma(", ", ", ", ", ")"},
	ir.OpClamp:      {"metal::clamp(", ", ", ", ", ")"},
	ir.OpLerp:       {"metal::mix(", ", ", ", ", ")"},
	ir.OpSelect:     {"(", " ? ", " : ", ")"},
	ir.OpSmoothstep: {"metal::smoothstep(", ", ", ", ", ")"},
}

// preciseGated lists the functions rerouted through metal::precise
// when fast math is off.
var preciseGated = map[ir.Op]bool{
	ir.OpSaturate: true,
	ir.OpSqrt:     true,
	ir.OpRsqrt:    true,
	ir.OpMin:      true,
	ir.OpMax:      true,
	ir.OpClamp:    true,
}

// writeExpr renders an expression into the current buffer.
func (w *Writer) writeExpr(e ir.Expr) error {
	switch e := e.(type) {
	case *ir.VarRef:
		w.write(w.names.name(e.Var))
		return nil
	case ir.LitBool:
		if e {
			w.write("true")
		} else {
			w.write("false")
		}
		return nil
	case ir.LitInt:
		w.write(strconv.FormatInt(int64(e), 10))
		return nil
	case ir.LitUint:
		w.write(strconv.FormatUint(uint64(e), 10))
		w.write("u")
		return nil
	case ir.LitFloat:
		w.write(floatLiteral(float32(e)))
		return nil
	case ir.LitHalf:
		w.write(floatLiteral(float32(e)))
		w.write("h")
		return nil
	case *ir.OpExpr:
		return w.writeOp(e)
	case *ir.Index:
		return w.writeIndex(e, false)
	case *ir.FieldRef:
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write(".")
		w.write(Escape(e.Name))
		return nil
	case *ir.Swizzle:
		return w.writeSwizzle(e)
	case *ir.Construct:
		name, err := w.typeName(e.Type)
		if err != nil {
			return err
		}
		w.write(name)
		w.write("(")
		for i, a := range e.Args {
			if i > 0 {
				w.write(", ")
			}
			if err := w.writeExpr(a); err != nil {
				return err
			}
		}
		w.write(")")
		return nil
	case *ir.TexSample:
		return w.writeTexSample(e)
	case *ir.TexRead:
		if err := w.writeExpr(e.Texture); err != nil {
			return err
		}
		w.write(".read(")
		if err := w.writeExpr(e.Coord); err != nil {
			return err
		}
		w.write(")")
		return nil
	}
	return &Diagnostic{Kind: ErrStructural, Message: fmt.Sprintf("unhandled expression %T", e)}
}

// floatLiteral formats f so it always reads as a float.
func floatLiteral(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (w *Writer) writeSwizzle(e *ir.Swizzle) error {
	const letters = "xyzw"
	base := ir.TypeOf(e.Base)
	if _, scalar := base.(ir.Scalar); scalar {
		// Scalars have no dot form: a single component is the base
		// itself, a broadcast uses a constructor.
		if len(e.Components) == 1 {
			return w.writeExpr(e.Base)
		}
		elem, _ := ir.ScalarOf(base)
		w.write(vectorTypeName(ir.Vector{Elem: elem, Width: uint8(len(e.Components))}))
		w.write("(")
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write(")")
		return nil
	}
	if err := w.writeExpr(e.Base); err != nil {
		return err
	}
	w.write(".")
	for _, c := range e.Components {
		if c > 3 {
			return &Diagnostic{Kind: ErrStructural, Message: "swizzle component out of range"}
		}
		w.write(string(letters[c]))
	}
	return nil
}

func (w *Writer) writeTexSample(e *ir.TexSample) error {
	if err := w.writeExpr(e.Texture); err != nil {
		return err
	}
	if e.Compare != nil {
		w.write(".sample_compare(")
	} else {
		w.write(".sample(")
	}
	if err := w.writeExpr(e.Sampler); err != nil {
		return err
	}
	w.write(", ")
	if err := w.writeExpr(e.Coord); err != nil {
		return err
	}
	if e.Compare != nil {
		w.write(", ")
		if err := w.writeExpr(e.Compare); err != nil {
			return err
		}
	}
	if e.Level != nil {
		w.write(", ")
		w.write(Namespace)
		w.write("level(")
		if err := w.writeExpr(e.Level); err != nil {
			return err
		}
		w.write(")")
	}
	w.write(")")
	return nil
}

// writeIndex renders base[index] forms. Buffers go through the
// addressing strategy; wrapped arrays through their inner member.
// store selects the lvalue rendition of typed buffers, which have
// none and are handled by the assignment writer.
func (w *Writer) writeIndex(e *ir.Index, store bool) error {
	switch base := ir.TypeOf(e.Base).(type) {
	case ir.Buffer:
		return w.writeBufferAccess(e, base, store)
	case ir.Array:
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		// Locals are wrapped; aggregate members are bare arrays.
		if _, local := e.Base.(*ir.VarRef); local {
			w.write(".inner[")
		} else {
			w.write("[")
		}
		if err := w.writeClampedIndex(e.Index, fmt.Sprintf("%du", base.Count-1)); err != nil {
			return err
		}
		w.write("]")
		return nil
	default:
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write("[")
		if err := w.writeExpr(e.Index); err != nil {
			return err
		}
		w.write("]")
		return nil
	}
}

// writeClampedIndex emits idx clamped to limit when bounds checks
// are on.
func (w *Writer) writeClampedIndex(idx ir.Expr, limit string) error {
	if !w.options.BoundsChecks {
		return w.writeExpr(idx)
	}
	w.write("metal::min(uint(")
	if err := w.writeExpr(idx); err != nil {
		return err
	}
	w.write("), ")
	w.write(limit)
	w.write(")")
	return nil
}

// writeBufferAccess renders a buffer element access under the
// buffer's addressing strategy.
func (w *Writer) writeBufferAccess(e *ir.Index, buf ir.Buffer, store bool) error {
	v := rootVariable(e.Base)
	if v == nil {
		return &Diagnostic{Kind: ErrStructural, Message: "buffer access has no variable root"}
	}
	switch buf.Addressing {
	case ir.AddrTyped:
		// Loads read a 4-component texel; the element width picks
		// the components kept. Stores are rendered by the
		// assignment writer.
		if store {
			return &Diagnostic{Kind: ErrStructural, Context: v.Name, Message: "typed buffer store outside assignment"}
		}
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write(".read(uint(")
		if err := w.writeExpr(e.Index); err != nil {
			return err
		}
		w.write("))")
		switch ir.Components(buf.Elem) {
		case 1:
			w.write(".x")
		case 2:
			w.write(".xy")
		case 3:
			w.write(".xyz")
		}
		return nil
	case ir.AddrByte:
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write("[")
		word := fmt.Sprintf("(%s) >> 2u", w.capture(e.Index))
		if w.options.BoundsChecks {
			w.write(fmt.Sprintf("metal::min(%s, %s - 1u)", word, w.sideTableRef(v)))
		} else {
			w.write(word)
		}
		w.write("]")
		return nil
	default:
		if err := w.writeExpr(e.Base); err != nil {
			return err
		}
		w.write("[")
		if w.options.BoundsChecks {
			if err := w.writeClampedIndex(e.Index, w.sideTableRef(v)+" - 1u"); err != nil {
				return err
			}
		} else if err := w.writeExpr(e.Index); err != nil {
			return err
		}
		w.write("]")
		return nil
	}
}

// sideTableRef returns the side table entry for a buffer variable.
func (w *Writer) sideTableRef(v *ir.Variable) string {
	b, ok := w.table.lookup(v)
	if !ok {
		return SideTableName + "[0]"
	}
	return fmt.Sprintf("%s[%d]", SideTableName, b.slot)
}

// capture renders a subexpression to a string using the main
// emission path.
func (w *Writer) capture(e ir.Expr) string {
	saved := w.out
	var buf strings.Builder
	w.out = &buf
	err := w.writeExpr(e)
	s := buf.String()
	w.out = saved
	if err != nil && w.exprErr == nil {
		w.exprErr = err
	}
	return s
}

// writeOp renders an operator application. Special cases run first:
// matrix multiply shapes, fused float multiply, mixed-precision
// arithmetic, integer renditions of float-named functions, and the
// precise reroute under strict math.
func (w *Writer) writeOp(e *ir.OpExpr) error {
	if want := e.Op.Operands(); len(e.Operands) != want {
		return &Diagnostic{
			Kind:    ErrStructural,
			Context: e.Op.String(),
			Message: fmt.Sprintf("operator takes %d operands, got %d", want, len(e.Operands)),
		}
	}

	switch e.Op {
	case ir.OpMul:
		return w.writeMul(e)
	case ir.OpAdd, ir.OpSub, ir.OpDiv:
		if w.isMixedPrecision(e) {
			return w.writeMixedPrecision(e)
		}
	case ir.OpMod:
		if elem, ok := ir.ScalarOf(ir.TypeOf(e.Operands[0])); ok && !elem.Kind.IsFloat() {
			w.write("(")
			if err := w.writeExpr(e.Operands[0]); err != nil {
				return err
			}
			w.write(" % ")
			if err := w.writeExpr(e.Operands[1]); err != nil {
				return err
			}
			w.write(")")
			return nil
		}
	}

	frag := opTable[e.Op]
	if frag.prefix == "" {
		return &Diagnostic{
			Kind:    ErrUnsupported,
			Context: e.Op.String(),
			Message: "no Metal rendition",
		}
	}
	frag = w.adjustSyntax(e, frag)

	w.write(frag.prefix)
	for i, operand := range e.Operands {
		if i > 0 {
			switch i {
			case 1:
				w.write(frag.infix)
			case 2:
				w.write(frag.infix2)
			}
		}
		if err := w.writeExpr(operand); err != nil {
			return err
		}
	}
	switch len(e.Operands) {
	case 1:
		w.write(frag.infix)
	case 2:
		w.write(frag.infix2)
	case 3:
		w.write(frag.shorthand)
	}
	return nil
}

// adjustSyntax rewrites a syntax entry for the operand types:
// integer operands drop the f prefix of fmin/fmax, strict math
// reroutes the gated set through metal::precise.
func (w *Writer) adjustSyntax(e *ir.OpExpr, frag opSyntax) opSyntax {
	elem, ok := ir.ScalarOf(ir.TypeOf(e.Operands[0]))
	if !ok {
		return frag
	}
	if !elem.Kind.IsFloat() {
		switch e.Op {
		case ir.OpMin:
			frag.prefix = "metal::min("
		case ir.OpMax:
			frag.prefix = "metal::max("
		}
		return frag
	}
	if !w.options.FastMath && preciseGated[e.Op] {
		frag.prefix = "metal::precise::" + strings.TrimPrefix(frag.prefix, "metal::")
	}
	return frag
}

// isMixedPrecision reports whether a binary op mixes half and float
// operands.
func (w *Writer) isMixedPrecision(e *ir.OpExpr) bool {
	a, aok := ir.ScalarOf(ir.TypeOf(e.Operands[0]))
	b, bok := ir.ScalarOf(ir.TypeOf(e.Operands[1]))
	return aok && bok && a.Kind.IsFloat() && b.Kind.IsFloat() && a.Kind != b.Kind
}

// writeMixedPrecision widens both operands to float and wraps the
// whole form in a cast to the resolved result type, so the
// arithmetic itself runs at single precision.
func (w *Writer) writeMixedPrecision(e *ir.OpExpr) error {
	result, err := w.typeName(ir.TypeOf(e))
	if err != nil {
		return err
	}
	w.write(result)
	w.write("((")
	if err := w.writeWidened(e.Operands[0]); err != nil {
		return err
	}
	w.write(opTable[e.Op].infix)
	if err := w.writeWidened(e.Operands[1]); err != nil {
		return err
	}
	w.write("))")
	return nil
}

// writeWidened renders an operand cast to float at its own width.
func (w *Writer) writeWidened(e ir.Expr) error {
	t := ir.TypeOf(e)
	elem, _ := ir.ScalarOf(t)
	if elem.Kind == ir.Float {
		return w.writeExpr(e)
	}
	var name string
	if width := ir.Components(t); width > 1 {
		name = vectorTypeName(ir.Vector{Elem: ir.Scalar{Kind: ir.Float}, Width: uint8(width)})
	} else {
		name = "float"
	}
	w.write(name)
	w.write("(")
	if err := w.writeExpr(e); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeMul handles the multiply shapes. Matrix times matrix has no
// supported rendition; vector times matrix is re-emitted as the
// matrix form; a same-type float product is contracted into fma so
// the downstream compiler cannot split it.
func (w *Writer) writeMul(e *ir.OpExpr) error {
	a, b := ir.TypeOf(e.Operands[0]), ir.TypeOf(e.Operands[1])
	_, aMat := a.(ir.Matrix)
	_, bMat := b.(ir.Matrix)
	switch {
	case aMat && bMat:
		return &Diagnostic{
			Kind:    ErrUnsupported,
			Context: e.Op.String(),
			Message: "matrix-matrix multiply has no Metal rendition; decompose into column products",
		}
	case bMat:
		// v * M reads as M * v on the target.
		w.write("(")
		if err := w.writeExpr(e.Operands[1]); err != nil {
			return err
		}
		w.write(" * ")
		if err := w.writeExpr(e.Operands[0]); err != nil {
			return err
		}
		w.write(")")
		return nil
	case aMat:
		w.write("(")
		if err := w.writeExpr(e.Operands[0]); err != nil {
			return err
		}
		w.write(" * ")
		if err := w.writeExpr(e.Operands[1]); err != nil {
			return err
		}
		w.write(")")
		return nil
	}

	if w.isMixedPrecision(e) {
		return w.writeMixedPrecision(e)
	}

	ak, aok := ir.ScalarOf(a)
	if aok && ak.Kind.IsFloat() && ir.SameType(a, b) && !w.noContract {
		zero, err := w.typeName(a)
		if err != nil {
			return err
		}
		w.write("metal::fma(")
		if err := w.writeExpr(e.Operands[0]); err != nil {
			return err
		}
		w.write(", ")
		if err := w.writeExpr(e.Operands[1]); err != nil {
			return err
		}
		w.write(fmt.Sprintf(", %s(0.0))", zero))
		return nil
	}

	w.write("(")
	if err := w.writeExpr(e.Operands[0]); err != nil {
		return err
	}
	w.write(" * ")
	if err := w.writeExpr(e.Operands[1]); err != nil {
		return err
	}
	w.write(")")
	return nil
}

package ir

// Expr represents an expression tree node.
type Expr interface {
	exprKind()
}

// VarRef references a variable.
type VarRef struct {
	Var *Variable
}

func (*VarRef) exprKind() {}

// LitBool is a boolean literal.
type LitBool bool

func (LitBool) exprKind() {}

// LitInt is a signed 32-bit integer literal.
type LitInt int32

func (LitInt) exprKind() {}

// LitUint is an unsigned 32-bit integer literal.
type LitUint uint32

func (LitUint) exprKind() {}

// LitFloat is a 32-bit float literal (may not be NaN or infinity).
type LitFloat float32

func (LitFloat) exprKind() {}

// LitHalf is a half-precision float literal, stored widened.
type LitHalf float32

func (LitHalf) exprKind() {}

// OpExpr applies an operator to one, two or three operands.
type OpExpr struct {
	Op       Op
	Operands []Expr
}

func (*OpExpr) exprKind() {}

// Index selects an element of an array, vector, matrix column or
// buffer.
type Index struct {
	Base  Expr
	Index Expr
}

func (*Index) exprKind() {}

// FieldRef selects a named member of an aggregate value.
type FieldRef struct {
	Base Expr
	Name string
}

func (*FieldRef) exprKind() {}

// Swizzle rearranges components of a scalar or vector value.
// Components are indices into xyzw.
type Swizzle struct {
	Base       Expr
	Components []uint8
}

func (*Swizzle) exprKind() {}

// Construct builds a value of Type from component arguments. With a
// single argument of a different shape it acts as a conversion.
type Construct struct {
	Type Type
	Args []Expr
}

func (*Construct) exprKind() {}

// TexSample samples a texture through a sampler.
type TexSample struct {
	Texture Expr
	Sampler Expr
	Coord   Expr
	// Level is the explicit LOD, nil for implicit.
	Level Expr
	// Compare is the comparison reference for shadow sampling, nil
	// otherwise.
	Compare Expr
}

func (*TexSample) exprKind() {}

// TexRead loads a texel without sampling.
type TexRead struct {
	Texture Expr
	Coord   Expr
}

func (*TexRead) exprKind() {}

// Op enumerates the expression operators. The backend keeps exactly
// one syntax entry per operator; OpCount is the table length.
type Op uint8

const (
	// Unary.
	OpNeg Op = iota
	OpLogicNot
	OpBitNot
	OpAbs
	OpSign
	OpSaturate
	OpSqrt
	OpRsqrt
	OpFrac
	OpFloor
	OpCeil
	OpExp
	OpExp2
	OpLog
	OpLog2
	OpSin
	OpCos
	OpTan
	OpNormalize
	OpLength

	// Binary.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpEqual
	OpNotEqual
	OpLogicAnd
	OpLogicOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpMin
	OpMax
	OpDot
	OpCross
	OpPow
	OpStep
	OpDistance

	// Ternary.
	OpFma
	OpClamp
	OpLerp
	OpSelect
	OpSmoothstep

	OpCount
)

// Operands returns the operand count the operator expects.
func (op Op) Operands() int {
	switch {
	case op <= OpLength:
		return 1
	case op <= OpDistance:
		return 2
	case op < OpCount:
		return 3
	}
	return 0
}

// String returns the operator mnemonic.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

var opNames = [OpCount]string{
	OpNeg:          "neg",
	OpLogicNot:     "logic_not",
	OpBitNot:       "bit_not",
	OpAbs:          "abs",
	OpSign:         "sign",
	OpSaturate:     "saturate",
	OpSqrt:         "sqrt",
	OpRsqrt:        "rsqrt",
	OpFrac:         "frac",
	OpFloor:        "floor",
	OpCeil:         "ceil",
	OpExp:          "exp",
	OpExp2:         "exp2",
	OpLog:          "log",
	OpLog2:         "log2",
	OpSin:          "sin",
	OpCos:          "cos",
	OpTan:          "tan",
	OpNormalize:    "normalize",
	OpLength:       "length",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpDiv:          "div",
	OpMod:          "mod",
	OpLess:         "less",
	OpLessEqual:    "less_equal",
	OpGreater:      "greater",
	OpGreaterEqual: "greater_equal",
	OpEqual:        "equal",
	OpNotEqual:     "not_equal",
	OpLogicAnd:     "logic_and",
	OpLogicOr:      "logic_or",
	OpBitAnd:       "bit_and",
	OpBitOr:        "bit_or",
	OpBitXor:       "bit_xor",
	OpShl:          "shl",
	OpShr:          "shr",
	OpMin:          "min",
	OpMax:          "max",
	OpDot:          "dot",
	OpCross:        "cross",
	OpPow:          "pow",
	OpStep:         "step",
	OpDistance:     "distance",
	OpFma:          "fma",
	OpClamp:        "clamp",
	OpLerp:         "lerp",
	OpSelect:       "select",
	OpSmoothstep:   "smoothstep",
}

// NewOp builds an OpExpr, a small convenience for synthesized code.
func NewOp(op Op, operands ...Expr) *OpExpr {
	return &OpExpr{Op: op, Operands: operands}
}

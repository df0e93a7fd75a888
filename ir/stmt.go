package ir

// Stmt represents a statement tree node.
type Stmt interface {
	stmtKind()
}

// Declare introduces a local variable, optionally initialized.
type Declare struct {
	Var  *Variable
	Init Expr
}

func (*Declare) stmtKind() {}

// Assign stores RHS into the location denoted by LHS. LHS must be a
// VarRef, Index, FieldRef or Swizzle chain.
type Assign struct {
	LHS Expr
	RHS Expr
}

func (*Assign) stmtKind() {}

// Call invokes a function for its effects. Result, when non-nil, is
// the location receiving the return value.
type Call struct {
	Callee *Function
	Args   []Expr
	Result Expr
}

func (*Call) stmtKind() {}

// If branches on a boolean condition.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

func (*If) stmtKind() {}

// Loop repeats its body until a Break executes.
type Loop struct {
	Body []Stmt
}

func (*Loop) stmtKind() {}

// Break exits the innermost loop.
type Break struct{}

func (*Break) stmtKind() {}

// Continue jumps to the next iteration of the innermost loop.
type Continue struct{}

func (*Continue) stmtKind() {}

// Return leaves the function, with Value nil for void returns.
type Return struct {
	Value Expr
}

func (*Return) stmtKind() {}

// Discard abandons the fragment.
type Discard struct{}

func (*Discard) stmtKind() {}

// BarrierFlags selects the memory scope of a barrier.
type BarrierFlags uint8

const (
	BarrierThreadgroup BarrierFlags = 1 << iota
	BarrierDevice
)

// Barrier synchronizes an execution group and flushes the selected
// memory scopes.
type Barrier struct {
	Flags BarrierFlags
}

func (*Barrier) stmtKind() {}

// TexWrite stores a texel to a storage texture.
type TexWrite struct {
	Texture Expr
	Coord   Expr
	Value   Expr
}

func (*TexWrite) stmtKind() {}

// Block groups statements into a nested scope.
type Block struct {
	Body []Stmt
}

func (*Block) stmtKind() {}

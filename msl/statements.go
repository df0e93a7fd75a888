package msl

import (
	"fmt"

	"github.com/gogpu/mtlcc/ir"
)

func (w *Writer) writeStmts(body []ir.Stmt) error {
	for _, s := range body {
		if err := w.writeStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeStmt(s ir.Stmt) error {
	switch s := s.(type) {
	case *ir.Declare:
		return w.writeDeclare(s)
	case *ir.Assign:
		return w.writeAssign(s)
	case *ir.Call:
		return w.writeCall(s)
	case *ir.If:
		w.writeIndent()
		w.write("if (")
		if err := w.writeExpr(s.Cond); err != nil {
			return err
		}
		w.write(") {\n")
		w.pushIndent()
		if err := w.writeStmts(s.Then); err != nil {
			return err
		}
		w.popIndent()
		if len(s.Else) > 0 {
			w.writeLine("} else {")
			w.pushIndent()
			if err := w.writeStmts(s.Else); err != nil {
				return err
			}
			w.popIndent()
		}
		w.writeLine("}")
		return nil
	case *ir.Loop:
		w.writeLine("while (true) {")
		w.pushIndent()
		if err := w.writeStmts(s.Body); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil
	case *ir.Break:
		w.writeLine("break;")
		return nil
	case *ir.Continue:
		w.writeLine("continue;")
		return nil
	case *ir.Return:
		if s.Value == nil {
			w.writeLine("return;")
			return nil
		}
		w.writeIndent()
		w.write("return ")
		if err := w.writeExpr(s.Value); err != nil {
			return err
		}
		w.write(";\n")
		return nil
	case *ir.Discard:
		w.writeLine("discard_fragment();")
		return nil
	case *ir.Barrier:
		w.writeBarrier(s)
		return nil
	case *ir.TexWrite:
		w.writeIndent()
		if err := w.writeExpr(s.Texture); err != nil {
			return err
		}
		w.write(".write(")
		if err := w.writeExpr(s.Value); err != nil {
			return err
		}
		w.write(", ")
		if err := w.writeExpr(s.Coord); err != nil {
			return err
		}
		w.write(");\n")
		return nil
	case *ir.Block:
		w.writeLine("{")
		w.pushIndent()
		if err := w.writeStmts(s.Body); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil
	}
	return &Diagnostic{Kind: ErrStructural, Message: fmt.Sprintf("unhandled statement %T", s)}
}

func (w *Writer) writeDeclare(s *ir.Declare) error {
	w.writeIndent()
	if s.Var.Mode == ir.ModeShared {
		w.write("threadgroup ")
	}
	name, err := w.typeName(s.Var.Type)
	if err != nil {
		return err
	}
	w.write(name)
	w.write(" ")
	w.write(w.names.name(s.Var))
	if s.Init != nil {
		w.write(" = ")
		if s.Var.Precise {
			w.noContract = true
		}
		err := w.writeExpr(s.Init)
		w.noContract = false
		if err != nil {
			return err
		}
	}
	w.write(";\n")
	return nil
}

func (w *Writer) writeAssign(s *ir.Assign) error {
	// Typed buffer elements have no lvalue; stores go through the
	// view's write method.
	if idx, ok := s.LHS.(*ir.Index); ok {
		if buf, ok := ir.TypeOf(idx.Base).(ir.Buffer); ok && buf.Addressing == ir.AddrTyped {
			return w.writeTypedStore(idx, buf, s.RHS)
		}
	}
	w.writeIndent()
	if idx, ok := s.LHS.(*ir.Index); ok {
		if err := w.writeIndex(idx, true); err != nil {
			return err
		}
	} else if err := w.writeExpr(s.LHS); err != nil {
		return err
	}
	w.write(" = ")
	if v := rootVariable(s.LHS); v != nil && v.Precise {
		w.noContract = true
	}
	err := w.writeExpr(s.RHS)
	w.noContract = false
	if err != nil {
		return err
	}
	w.write(";\n")
	return nil
}

// rootVariable walks an lvalue expression down to the variable it
// stores into, nil when there is none.
func rootVariable(e ir.Expr) *ir.Variable {
	for {
		switch l := e.(type) {
		case *ir.VarRef:
			return l.Var
		case *ir.Index:
			e = l.Base
		case *ir.FieldRef:
			e = l.Base
		case *ir.Swizzle:
			e = l.Base
		default:
			return nil
		}
	}
}

func (w *Writer) writeTypedStore(idx *ir.Index, buf ir.Buffer, value ir.Expr) error {
	elem, ok := ir.ScalarOf(buf.Elem)
	if !ok {
		return &Diagnostic{Kind: ErrStructural, Message: "typed buffer element is not scalar or vector"}
	}
	w.writeIndent()
	if err := w.writeExpr(idx.Base); err != nil {
		return err
	}
	w.write(".write(")
	// Stores take a full texel; narrower elements broadcast up.
	if ir.Components(buf.Elem) < 4 {
		w.write(vectorTypeName(ir.Vector{Elem: elem, Width: 4}))
		w.write("(")
		if err := w.writeExpr(value); err != nil {
			return err
		}
		w.write(")")
	} else if err := w.writeExpr(value); err != nil {
		return err
	}
	w.write(", uint(")
	if err := w.writeExpr(idx.Index); err != nil {
		return err
	}
	w.write("));\n")
	return nil
}

func (w *Writer) writeCall(s *ir.Call) error {
	w.writeIndent()
	if s.Result != nil {
		if err := w.writeExpr(s.Result); err != nil {
			return err
		}
		w.write(" = ")
	}
	w.write(w.funcName(s.Callee))
	w.write("(")
	for i, a := range s.Args {
		if i > 0 {
			w.write(", ")
		}
		// Control point runs pass by pointer.
		if i < len(s.Callee.Params) {
			if _, isPatch := s.Callee.Params[i].Type.(ir.Patch); isPatch {
				w.write("&")
			}
		}
		if err := w.writeExpr(a); err != nil {
			return err
		}
	}
	if w.sideTableFns[s.Callee] {
		if len(s.Args) > 0 {
			w.write(", ")
		}
		w.write(SideTableName)
	}
	w.write(");\n")
	return nil
}

func (w *Writer) writeBarrier(s *ir.Barrier) {
	flags := ""
	switch {
	case s.Flags&ir.BarrierDevice != 0 && s.Flags&ir.BarrierThreadgroup != 0:
		flags = "metal::mem_flags::mem_device_and_threadgroup"
	case s.Flags&ir.BarrierDevice != 0:
		flags = "metal::mem_flags::mem_device"
	default:
		flags = "metal::mem_flags::mem_threadgroup"
	}
	w.writeLine(fmt.Sprintf("threadgroup_barrier(%s);", flags))
}

package ir

import (
	"fmt"
	"io"
	"strings"

	"tsbc/internal/token"
	"tsbc/internal/types"
)

// Dump returns a human-readable representation of the unit.
func Dump(u *Unit) string {
	var sb strings.Builder
	Fprint(&sb, u)
	return sb.String()
}

// Fprint writes the text form of u to w.
func Fprint(w io.Writer, u *Unit) {
	p := &printer{w: w}
	p.line(0, "unit %s target=%s", u.Name, u.Target)
	for _, c := range u.Classes {
		p.class(c)
	}
	for _, c := range u.Closures {
		p.closure(c)
	}
}

type printer struct {
	w io.Writer
}

func (p *printer) line(indent int, format string, args ...any) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

func (p *printer) class(c *Class) {
	kind := "class"
	if c.Interface {
		kind = "interface"
	}
	head := fmt.Sprintf("%s %s", kind, c.Name)
	if c.Super != "" {
		head += " extends " + c.Super
	}
	if len(c.Interfaces) > 0 {
		head += " implements " + strings.Join(c.Interfaces, ", ")
	}
	p.line(1, "%s", head)
	for _, f := range c.Fields {
		p.line(2, "field %s %s%s%s", f.Name, f.Type, flag(f.Static, " static"), flag(f.Final, " final"))
	}
	for _, m := range c.Methods {
		p.line(2, "method %s%s%s", m.Sig.Name, m.Sig.Descriptor(), flag(m.Sig.Static, " static"))
		p.locals(3, m.Locals)
		if m.Body != nil {
			p.block(3, m.Body)
		}
	}
}

func (p *printer) closure(c *Closure) {
	p.line(1, "closure %s owner=%s implements %s.%s%s%s", c.ID, c.Owner, c.Target, c.Method.Name, c.Method.Descriptor(), flag(c.CapturesThis, " this"))
	for i, cp := range c.Captures {
		src := "capture"
		if cp.FromLocal {
			src = "local"
		}
		p.line(2, "capture %d %s %s <- %s %d", i, cp.Name, cp.Type, src, cp.Index)
	}
	p.locals(2, c.Locals)
	p.block(2, c.Body)
}

func (p *printer) locals(indent int, ls []Local) {
	for _, l := range ls {
		p.line(indent, "local %d %s %s%s", l.Slot, l.Name, l.Type, flag(l.Synthetic, " synthetic"))
	}
}

func (p *printer) block(indent int, b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		p.stmt(indent, s)
	}
}

func (p *printer) stmt(indent int, s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.line(indent, "block")
		p.block(indent+1, s)
	case *ExprStmt:
		p.line(indent, "%s", ExprString(s.X))
	case *If:
		p.line(indent, "if %s", ExprString(s.Cond))
		p.block(indent+1, s.Then)
		if s.Else != nil {
			p.line(indent, "else")
			p.block(indent+1, s.Else)
		}
	case *Loop:
		head := fmt.Sprintf("loop %d", s.ID)
		if s.Label != "" {
			head += " " + s.Label + ":"
		}
		if s.Cond != nil {
			head += " while " + ExprString(s.Cond)
		}
		if s.Post != nil {
			head += " post " + ExprString(s.Post)
		}
		if s.PostTest {
			head += " posttest"
		}
		p.line(indent, "%s", head)
		p.block(indent+1, s.Body)
	case *Labeled:
		p.line(indent, "labeled %d %s:", s.ID, s.Label)
		p.block(indent+1, s.Body)
	case *Exit:
		head := s.Kind.String()
		if s.Kind != ExitReturn {
			head += fmt.Sprintf(" %d", s.Target)
		}
		if s.Value != nil {
			head += " " + ExprString(s.Value)
		}
		if s.Spill >= 0 {
			head += fmt.Sprintf(" via $%d", s.Spill)
		}
		p.line(indent, "%s", head)
		for _, u := range s.Unwind {
			p.line(indent+1, "unwind %s %d", u.Kind, u.ID)
			p.block(indent+2, u.Body)
		}
	case *Throw:
		p.line(indent, "throw %s", ExprString(s.X))
	case *Try:
		p.line(indent, "try %d", s.ID)
		p.block(indent+1, s.Body)
		if s.Catch != nil {
			p.line(indent, "catch $%d", s.CatchSlot)
			p.block(indent+1, s.Catch)
		}
		if s.Finally != nil {
			p.line(indent, "finally")
			p.block(indent+1, s.Finally)
		}
	case *Region:
		r := s.Resource
		p.line(indent, "region %d using %s %s #%d value=$%d state=$%d close=%s", s.ID, r.Name, r.Type, r.Index, r.Slot, r.State, r.Close)
		p.block(indent+1, s.Body)
		if s.Exit != nil {
			p.line(indent, "exit")
			p.block(indent+1, s.Exit)
		}
		if s.Handler != nil {
			p.line(indent, "handler $%d", s.Handler.Slot)
			p.block(indent+1, s.Handler.Body)
		}
	case *Close:
		if s.Into >= 0 {
			p.line(indent, "close %s suppress-into $%d", s.Resource.Name, s.Into)
		} else {
			p.line(indent, "close %s", s.Resource.Name)
		}
	case *Rethrow:
		p.line(indent, "rethrow $%d", s.Slot)
	default:
		p.line(indent, "<unknown stmt %T>", s)
	}
}

// ExprString renders e on one line.
func ExprString(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch e := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Const:
		switch e.Kind {
		case ConstInt:
			fmt.Fprintf(sb, "%d:%s", e.Int, e.T)
		case ConstFloat:
			fmt.Fprintf(sb, "%g:%s", e.Float, e.T)
		case ConstString:
			fmt.Fprintf(sb, "%q", e.String)
		case ConstBool:
			fmt.Fprintf(sb, "%t", e.Bool)
		case ConstNull:
			sb.WriteString("null")
		}
	case *Load:
		fmt.Fprintf(sb, "$%d", e.Slot)
	case *LoadCapture:
		fmt.Fprintf(sb, "cap%d", e.Index)
	case *This:
		sb.WriteString("this")
	case *GetField:
		if e.Recv == nil {
			sb.WriteString(e.Field.Owner.Name)
		} else {
			writeExpr(sb, e.Recv)
		}
		sb.WriteByte('.')
		sb.WriteString(e.Field.Name)
	case *ArrayIndex:
		writeExpr(sb, e.X)
		sb.WriteByte('[')
		writeExpr(sb, e.Index)
		sb.WriteByte(']')
	case *ArrayLen:
		writeExpr(sb, e.X)
		sb.WriteString(".length")
	case *Assign:
		writeExpr(sb, e.Target)
		fmt.Fprintf(sb, " %s ", assignOp(e))
		writeExpr(sb, e.Value)
	case *Update:
		if e.Prefix {
			sb.WriteString(e.Op.String())
			writeExpr(sb, e.Target)
		} else {
			writeExpr(sb, e.Target)
			sb.WriteString(e.Op.String())
		}
	case *Invoke:
		fmt.Fprintf(sb, "invoke%s ", e.Kind)
		if e.Recv != nil {
			writeExpr(sb, e.Recv)
			sb.WriteString(" ")
		}
		fmt.Fprintf(sb, "%s.%s%s", e.Method.Owner, e.Method.Name, e.Method.Descriptor())
		writeArgs(sb, e.Args)
	case *New:
		fmt.Fprintf(sb, "new %s%s", e.Class, e.Ctor.Descriptor())
		writeArgs(sb, e.Args)
	case *MakeClosure:
		fmt.Fprintf(sb, "closure %s", e.Closure)
		args := e.Captures
		if e.This != nil {
			args = append([]Expr{e.This}, args...)
		}
		writeArgs(sb, args)
	case *Binary:
		sb.WriteByte('(')
		writeExpr(sb, e.X)
		fmt.Fprintf(sb, " %s ", e.Op)
		writeExpr(sb, e.Y)
		sb.WriteByte(')')
	case *Unary:
		sb.WriteString(e.Op.String())
		writeExpr(sb, e.X)
	case *Concat:
		sb.WriteString("concat")
		writeArgs(sb, e.Parts)
	case *Convert:
		fmt.Fprintf(sb, "%s<%s>(", e.Kind, e.T)
		writeExpr(sb, e.X)
		sb.WriteByte(')')
	case *Cond:
		sb.WriteByte('(')
		writeExpr(sb, e.Cond)
		sb.WriteString(" ? ")
		writeExpr(sb, e.Then)
		sb.WriteString(" : ")
		writeExpr(sb, e.Else)
		sb.WriteByte(')')
	case *NewArray:
		fmt.Fprintf(sb, "new %s[]{", e.Elem)
		for i, el := range e.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeExpr(sb, el)
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "<unknown expr %T>", e)
	}
}

func writeArgs(sb *strings.Builder, args []Expr) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
	sb.WriteByte(')')
}

func assignOp(a *Assign) string {
	if a.Op == token.Assign || a.Op == token.Illegal {
		return "="
	}
	if a.OpType != nil && !types.Equal(a.OpType, a.Target.Type()) {
		return fmt.Sprintf("%s=<%s>", a.Op, a.OpType)
	}
	return a.Op.String() + "="
}

func flag(b bool, s string) string {
	if b {
		return s
	}
	return ""
}

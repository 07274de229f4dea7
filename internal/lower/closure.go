package lower

import (
	"fmt"

	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/resolver"
	"tsbc/internal/scope"
	"tsbc/internal/token"
	"tsbc/internal/types"
)

// closure converts a function literal into a closure descriptor
// implementing target and returns the expression creating it.
func (l *lowerer) closure(lit *ast.FuncLiteral, target types.Type) ir.Expr {
	if target != nil && types.IsInvalid(target) {
		return bad()
	}
	if target == nil {
		l.report(&diag.ClosureTargetError{Pos: lit.FunPos, Reason: "no target type"})
		return bad()
	}
	cls, isClass := target.(*types.Class)
	sam, ok := l.idx.SingleAbstractMethod(target)
	if !isClass || !ok {
		l.report(&diag.ClosureTargetError{Pos: lit.FunPos, Target: target, Reason: "not a functional interface"})
		return bad()
	}
	if len(sam.Params) != len(lit.Params) {
		l.report(&diag.ClosureTargetError{
			Pos:    lit.FunPos,
			Target: target,
			Reason: fmt.Sprintf("%s takes %d parameters, the literal declares %d", sam, len(sam.Params), len(lit.Params)),
		})
		return bad()
	}
	params, ok := l.literalParams(lit, cls, sam)
	if !ok {
		return bad()
	}

	captured := l.capturePrepass(lit)

	c := &ir.Closure{
		ID:     l.closureID(),
		Owner:  l.class.typ.Name,
		Target: cls,
		Method: sam,
		Params: len(sam.Params),
	}
	l.out.Closures = append(l.out.Closures, c)

	outer := l.fn
	f := l.scope.Push(scope.FrameClosure)
	info := l.res.Enter(f)
	l.fn = &funcState{info: info, static: outer.static, result: sam.Result, site: lit.FunPos}

	prologue := l.closureParams(lit, sam, params)
	for _, b := range captured {
		l.res.Resolve(l.scope, b)
	}
	c.Body = l.closureBody(lit, sam, prologue)
	c.Locals = l.fn.locals()

	l.scope.Pop()
	l.fn = outer

	c.CapturesThis = info.CapturesThis
	mk := &ir.MakeClosure{Closure: c.ID, T: cls}
	for _, cp := range info.Captures {
		c.Captures = append(c.Captures, ir.Capture{Name: cp.Name, Type: cp.Type, FromLocal: cp.IsLocal, Index: cp.Index})
		mk.Captures = append(mk.Captures, captureSource(cp))
	}
	if c.CapturesThis {
		mk.This = &ir.This{T: l.class.typ}
	}
	return mk
}

func captureSource(cp resolver.Capture) ir.Expr {
	if cp.IsLocal {
		return &ir.Load{Slot: cp.Index, T: cp.Type}
	}
	return &ir.LoadCapture{Index: cp.Index, T: cp.Type}
}

// literalParams checks declared literal parameter types against the
// interface method and returns the type of each parameter binding.
func (l *lowerer) literalParams(lit *ast.FuncLiteral, cls *types.Class, sam *types.Method) ([]types.Type, bool) {
	params := make([]types.Type, len(lit.Params))
	ok := true
	for i, p := range lit.Params {
		params[i] = sam.Params[i]
		if p.Type == nil {
			continue
		}
		declared := l.typeOf(p.Type)
		if types.IsInvalid(declared) {
			ok = false
			continue
		}
		if l.scorer.Param(sam.Params[i], declared) == 0 {
			l.report(&diag.ClosureTargetError{
				Pos:    p.NamePos,
				Target: cls,
				Reason: fmt.Sprintf("parameter %s of type %s cannot accept %s", p.Name, declared, sam.Params[i]),
			})
			ok = false
			continue
		}
		params[i] = declared
	}
	if lit.Result != nil {
		declared := l.typeOf(lit.Result)
		switch {
		case types.IsInvalid(declared):
			ok = false
		case types.IsVoid(sam.Result):
		case types.IsVoid(declared) || l.scorer.Param(declared, sam.Result) == 0:
			l.report(&diag.ClosureTargetError{
				Pos:    lit.FunPos,
				Target: cls,
				Reason: fmt.Sprintf("result %s is not compatible with %s", declared, sam.Result),
			})
			ok = false
		}
	}
	return params, ok
}

// capturePrepass finds the enclosing variables the literal reads and
// checks that each is effectively final at the creation point.
func (l *lowerer) capturePrepass(lit *ast.FuncLiteral) []*scope.Binding {
	names, _ := resolver.Free(lit)
	var out []*scope.Binding
	for _, name := range names {
		b, ok := l.scope.Lookup(name)
		if !ok || !b.IsVariable() {
			continue
		}
		if l.scope.Writes(b) > 1 {
			l.report(&diag.CaptureMutabilityError{Pos: lit.FunPos, Variable: name, Site: lit.FunPos})
		}
		l.scope.MarkCaptured(b, lit.FunPos)
		out = append(out, b)
	}
	return out
}

// closureParams declares the literal's parameters. A parameter declared
// wider than the interface method's receives the argument through a
// synthetic slot and a converting prologue.
func (l *lowerer) closureParams(lit *ast.FuncLiteral, sam *types.Method, params []types.Type) []ir.Stmt {
	type widened struct {
		b    *scope.Binding
		from int
		pos  token.Position
	}
	var pending []widened
	for i, p := range lit.Params {
		if types.Equal(params[i], sam.Params[i]) {
			l.declareParam(p, params[i])
			continue
		}
		from := l.temp(fmt.Sprintf("$arg%d", i), sam.Params[i])
		b := &scope.Binding{Name: p.Name, Type: params[i], Kind: scope.Param, Pos: p.NamePos}
		pending = append(pending, widened{b: b, from: from, pos: p.NamePos})
	}
	var prologue []ir.Stmt
	for _, w := range pending {
		if _, ok := l.scope.Declare(w.b); !ok {
			l.errorf(w.pos, "duplicate parameter %s", w.b.Name)
			continue
		}
		slot := l.fn.info.AddLocal(w.b)
		src := &ir.Load{Slot: w.from, T: l.fn.info.Locals[w.from].Type}
		prologue = append(prologue, &ir.ExprStmt{X: &ir.Assign{
			Target: &ir.Load{Slot: slot, T: w.b.Type},
			Op:     token.Assign,
			Value:  l.coerce(src, w.b.Type, w.pos, "parameter "+w.b.Name),
		}})
	}
	return prologue
}

func (l *lowerer) closureBody(lit *ast.FuncLiteral, sam *types.Method, prologue []ir.Stmt) *ir.Block {
	body := &ir.Block{Stmts: prologue}
	if lit.ExprBody != nil {
		if types.IsVoid(sam.Result) {
			body.Stmts = append(body.Stmts, &ir.ExprStmt{X: l.expr(lit.ExprBody)})
			return body
		}
		x := l.coerce(l.exprWant(lit.ExprBody, sam.Result), sam.Result, lit.ExprBody.Pos(), "closure result")
		body.Stmts = append(body.Stmts, l.exit(ir.ExitReturn, 0, 0, x, lit.ExprBody.Pos()))
		return body
	}
	if lit.Body == nil {
		l.report(diag.Internalf(lit.FunPos, "function literal without a body"))
		return body
	}
	l.scope.Push(scope.FrameBlock)
	body.Stmts = append(body.Stmts, l.stmts(lit.Body.Stmts)...)
	l.scope.Pop()
	if !types.IsVoid(sam.Result) && !ir.Terminates(body) {
		l.errorf(lit.FunPos, "function literal must return a value of type %s", sam.Result)
	}
	return body
}

package lower

import (
	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/overload"
	"tsbc/internal/token"
	"tsbc/internal/types"
)

// argument is one call-site actual. Function literals are lowered only
// once the chosen parameter type gives them a target.
type argument struct {
	node ast.Expr
	x    ir.Expr
	lit  *ast.FuncLiteral
	t    types.Type
}

func (l *lowerer) arguments(args []ast.Expr) ([]argument, bool) {
	out := make([]argument, 0, len(args))
	ok := true
	for _, a := range args {
		if lit, isLit := a.(*ast.FuncLiteral); isLit {
			params := make([]types.Type, len(lit.Params))
			for i, p := range lit.Params {
				if p.Type == nil {
					continue
				}
				params[i] = l.typeOf(p.Type)
				if types.IsInvalid(params[i]) {
					ok = false
				}
			}
			out = append(out, argument{node: a, lit: lit, t: &types.Lambda{Params: params}})
			continue
		}
		x := l.expr(a)
		switch t := x.Type(); {
		case types.IsInvalid(t):
			ok = false
		case types.IsVoid(t):
			l.errorf(a.Pos(), "a void value cannot be used as an argument")
			ok = false
		}
		out = append(out, argument{node: a, x: x, t: x.Type()})
	}
	return out, ok
}

func argTypes(args []argument) []types.Type {
	out := make([]types.Type, len(args))
	for i, a := range args {
		out[i] = a.t
	}
	return out
}

// pick resolves the overload of member on recv among ms.
func (l *lowerer) pick(recv types.Type, member string, ms []*types.Method, args []argument, pos token.Position) (overload.Match, bool) {
	ts := argTypes(args)
	m, err := l.scorer.Resolve(overload.FromMethods(ms), ts)
	if err != nil || !l.scorer.Applicable(m, ts) {
		l.report(&diag.OverloadResolutionError{Pos: pos, Receiver: recv, Member: member, Args: ts})
		return overload.Match{}, false
	}
	return m, true
}

// bind converts the actuals to the parameters of m, packing spread
// vararg actuals into an array.
func (l *lowerer) bind(m overload.Match, args []argument) []ir.Expr {
	meth := m.Candidate.Method
	fixed := len(meth.Params)
	if m.Spread {
		fixed--
	}
	out := make([]ir.Expr, 0, len(meth.Params))
	for i := 0; i < fixed; i++ {
		out = append(out, l.bindArg(args[i], meth.Params[i]))
	}
	if m.Spread {
		elem, _ := meth.VarargElem()
		arr := &ir.NewArray{Elem: elem}
		for _, a := range args[fixed:] {
			arr.Elems = append(arr.Elems, l.bindArg(a, elem))
		}
		out = append(out, arr)
	}
	return out
}

func (l *lowerer) bindArg(a argument, p types.Type) ir.Expr {
	if a.lit != nil {
		return l.closure(a.lit, p)
	}
	return l.coerce(a.x, p, a.node.Pos(), "argument")
}

func filterStatic(ms []*types.Method, static bool) []*types.Method {
	var out []*types.Method
	for _, m := range ms {
		if m.Static == static {
			out = append(out, m)
		}
	}
	return out
}

func (l *lowerer) invokeKind(m *types.Method) ir.InvokeKind {
	if m.Static {
		return ir.InvokeStatic
	}
	if info, ok := l.idx.Class(m.Owner.Name); ok && info.Interface {
		return ir.InvokeInterface
	}
	return ir.InvokeVirtual
}

func (l *lowerer) call(e *ast.CallExpr) ir.Expr {
	switch callee := e.Callee.(type) {
	case *ast.MemberExpr:
		if c, ok := l.staticType(callee.X); ok {
			return l.invoke(e, c, nil, callee.Name, callee.NamePos, true)
		}
		recv := l.expr(callee.X)
		if invalid(recv) {
			l.arguments(e.Args)
			return bad()
		}
		if t := recv.Type(); !types.IsReference(t) || types.IsNull(t) {
			l.errorf(callee.NamePos, "cannot call %s on a value of type %s", callee.Name, t)
			return bad()
		}
		return l.invoke(e, recv.Type(), recv, callee.Name, callee.NamePos, false)

	case *ast.IdentExpr:
		if b, ok := l.scope.Lookup(callee.Name); ok {
			return l.callValue(e, l.load(b, callee.NamePos), callee)
		}
		if l.class == nil {
			break
		}
		static := l.fn.static
		ms := l.idx.Members(l.class.typ, callee.Name)
		if len(ms) == 0 {
			l.report(&diag.UnresolvedIdentifierError{Pos: callee.NamePos, Name: callee.Name})
			return bad()
		}
		if static && len(filterStatic(ms, true)) == 0 {
			l.errorf(callee.NamePos, "instance method %s called from a static context", callee.Name)
			return bad()
		}
		return l.invoke(e, l.class.typ, nil, callee.Name, callee.NamePos, static)
	}
	l.errorf(e.Pos(), "expression is not callable")
	return bad()
}

// callValue calls the single abstract method of a functional-interface
// value, such as a local holding a closure.
func (l *lowerer) callValue(e *ast.CallExpr, recv ir.Expr, callee *ast.IdentExpr) ir.Expr {
	if invalid(recv) {
		return bad()
	}
	sam, ok := l.idx.SingleAbstractMethod(recv.Type())
	if !ok {
		l.errorf(callee.NamePos, "%s of type %s is not callable", callee.Name, recv.Type())
		return bad()
	}
	args, ok := l.arguments(e.Args)
	if !ok {
		return bad()
	}
	m, ok := l.pick(recv.Type(), sam.Name, []*types.Method{sam}, args, callee.NamePos)
	if !ok {
		return bad()
	}
	return &ir.Invoke{Kind: l.invokeKind(sam), Recv: recv, Method: sam, Args: l.bind(m, args)}
}

// invoke resolves and lowers member on owner. recv is nil for calls
// through a type name and for unqualified calls inside the class, where
// an instance method gets the implicit receiver.
func (l *lowerer) invoke(e *ast.CallExpr, owner types.Type, recv ir.Expr, member string, pos token.Position, staticOnly bool) ir.Expr {
	args, ok := l.arguments(e.Args)
	if !ok {
		return bad()
	}
	ms := l.idx.Lookup(owner, member, len(args))
	switch {
	case staticOnly:
		ms = filterStatic(ms, true)
	case recv != nil:
		ms = filterStatic(ms, false)
	}
	if len(l.idx.Members(owner, member)) == 0 {
		l.errorf(pos, "%s has no method %s", owner, member)
		return bad()
	}
	m, ok := l.pick(owner, member, ms, args, pos)
	if !ok {
		return bad()
	}
	meth := m.Candidate.Method
	if recv == nil && !meth.Static {
		recv = l.this(pos)
	}
	if meth.Static {
		recv = nil
	}
	return &ir.Invoke{Kind: l.invokeKind(meth), Recv: recv, Method: meth, Args: l.bind(m, args)}
}

func (l *lowerer) newExpr(e *ast.NewExpr) ir.Expr {
	t := l.typeOf(e.Type)
	if types.IsInvalid(t) {
		l.arguments(e.Args)
		return bad()
	}
	c, ok := t.(*types.Class)
	if !ok {
		l.errorf(e.NewPos, "cannot instantiate %s", t)
		return bad()
	}
	if info, ok := l.idx.Class(c.Name); ok && info.Interface {
		l.errorf(e.NewPos, "cannot instantiate interface %s", c)
		return bad()
	}
	args, ok := l.arguments(e.Args)
	if !ok {
		return bad()
	}
	m, ok := l.pick(c, types.ConstructorName, l.idx.Lookup(c, types.ConstructorName, len(args)), args, e.NewPos)
	if !ok {
		return bad()
	}
	return &ir.New{Class: c, Ctor: m.Candidate.Method, Args: l.bind(m, args)}
}

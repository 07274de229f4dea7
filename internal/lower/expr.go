package lower

import (
	"math"
	"strings"

	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/overload"
	"tsbc/internal/scope"
	"tsbc/internal/token"
	"tsbc/internal/types"
)

// bad stands in for an expression that failed to lower. Its invalid type
// silences follow-up errors.
func bad() ir.Expr { return &ir.Const{T: types.Invalid, Kind: ir.ConstNull} }

func invalid(xs ...ir.Expr) bool {
	for _, x := range xs {
		if types.IsInvalid(x.Type()) {
			return true
		}
	}
	return false
}

func isString(t types.Type) bool {
	c, ok := t.(*types.Class)
	return ok && c.Name == types.String.Name
}

func (l *lowerer) expr(e ast.Expr) ir.Expr { return l.exprWant(e, nil) }

// exprWant lowers e. want is the type the context expects, or nil; it
// gives function literals and array literals their target.
func (l *lowerer) exprWant(e ast.Expr, want types.Type) ir.Expr {
	switch e := e.(type) {
	case *ast.IntLiteral:
		t := types.Type(types.Int)
		if e.Value > math.MaxInt32 || e.Value < math.MinInt32 || strings.HasSuffix(e.Raw, "L") {
			t = types.Long
		}
		return &ir.Const{T: t, Kind: ir.ConstInt, Int: e.Value}
	case *ast.FloatLiteral:
		return &ir.Const{T: types.Double, Kind: ir.ConstFloat, Float: e.Value}
	case *ast.StringLiteral:
		return &ir.Const{T: types.String, Kind: ir.ConstString, String: e.Value}
	case *ast.BoolLiteral:
		return &ir.Const{T: types.Boolean, Kind: ir.ConstBool, Bool: e.Value}
	case *ast.NullLiteral:
		return &ir.Const{T: types.Null, Kind: ir.ConstNull}
	case *ast.IdentExpr:
		b, ok := l.scope.Lookup(e.Name)
		if !ok {
			l.report(&diag.UnresolvedIdentifierError{Pos: e.NamePos, Name: e.Name})
			return bad()
		}
		return l.load(b, e.NamePos)
	case *ast.ThisExpr:
		return l.this(e.ThisPos)
	case *ast.ArrayLiteral:
		return l.arrayLit(e, want)
	case *ast.UnaryExpr:
		return l.unary(e)
	case *ast.BinaryExpr:
		x, y := l.expr(e.Left), l.expr(e.Right)
		if invalid(x, y) {
			return bad()
		}
		return l.binary(e.Op, x, y, e.OpPos)
	case *ast.AssignExpr:
		return l.assign(e)
	case *ast.UpdateExpr:
		return l.update(e)
	case *ast.CondExpr:
		return l.cond(e, want)
	case *ast.CallExpr:
		return l.call(e)
	case *ast.NewExpr:
		return l.newExpr(e)
	case *ast.MemberExpr:
		return l.member(e)
	case *ast.IndexExpr:
		return l.index(e)
	case *ast.FuncLiteral:
		return l.closure(e, want)
	case *ast.AsExpr:
		return l.as(e)
	}
	l.report(diag.Internalf(e.Pos(), "unexpected expression %T", e))
	return bad()
}

// load reads binding b at pos.
func (l *lowerer) load(b *scope.Binding, pos token.Position) ir.Expr {
	switch b.Kind {
	case scope.Local, scope.Param:
		ref := l.res.Resolve(l.scope, b)
		if ref.Capture {
			return &ir.LoadCapture{Index: ref.Index, T: b.Type}
		}
		return &ir.Load{Slot: ref.Index, T: b.Type}
	case scope.Field:
		f := &ir.FieldRef{Owner: b.Owner, Name: b.Name, Type: b.Type, Static: b.Static}
		if b.Static {
			return &ir.GetField{Field: f}
		}
		return &ir.GetField{Recv: l.this(pos), Field: f}
	}
	l.errorf(pos, "%s is not a value", b.Name)
	return bad()
}

func (l *lowerer) this(pos token.Position) ir.Expr {
	if l.fn == nil || l.fn.static {
		l.errorf(pos, "this used in a static context")
		return bad()
	}
	l.res.UseThis(l.scope)
	return &ir.This{T: l.class.typ}
}

// staticType reports whether x names a type rather than a value.
func (l *lowerer) staticType(x ast.Expr) (*types.Class, bool) {
	name, ok := ast.QualifiedName(x)
	if !ok {
		return nil, false
	}
	head, _, _ := strings.Cut(name, ".")
	if _, isValue := l.scope.Lookup(head); isValue {
		return nil, false
	}
	t, ok := l.types.lookup(name)
	if !ok {
		return nil, false
	}
	c, ok := t.(*types.Class)
	return c, ok
}

func (l *lowerer) member(e *ast.MemberExpr) ir.Expr {
	if c, ok := l.staticType(e.X); ok {
		f, found := l.idx.Field(c, e.Name)
		if !found || !f.Static {
			l.errorf(e.NamePos, "%s has no static field %s", c, e.Name)
			return bad()
		}
		return &ir.GetField{Field: fieldRef(f)}
	}
	x := l.expr(e.X)
	if invalid(x) {
		return bad()
	}
	if _, isArr := x.Type().(*types.Array); isArr && e.Name == "length" {
		return &ir.ArrayLen{X: x}
	}
	f, ok := l.idx.Field(x.Type(), e.Name)
	if !ok {
		l.errorf(e.NamePos, "%s has no field %s", x.Type(), e.Name)
		return bad()
	}
	if f.Static {
		return &ir.GetField{Field: fieldRef(f)}
	}
	return &ir.GetField{Recv: x, Field: fieldRef(f)}
}

func (l *lowerer) index(e *ast.IndexExpr) ir.Expr {
	x := l.expr(e.X)
	i := l.expr(e.Index)
	if invalid(x, i) {
		return bad()
	}
	arr, ok := x.Type().(*types.Array)
	if !ok {
		l.errorf(e.LBracket, "cannot index %s", x.Type())
		return bad()
	}
	return &ir.ArrayIndex{X: x, Index: l.coerce(i, types.Int, e.Index.Pos(), "array index"), T: arr.Elem}
}

func (l *lowerer) arrayLit(e *ast.ArrayLiteral, want types.Type) ir.Expr {
	var elem types.Type
	switch {
	case e.Elem != nil:
		elem = l.typeOf(e.Elem)
	case want != nil:
		if arr, ok := want.(*types.Array); ok {
			elem = arr.Elem
		}
	}
	if elem == nil {
		elems := make([]ir.Expr, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = l.expr(el)
		}
		elem = types.Object
		if len(elems) > 0 && !types.IsNull(elems[0].Type()) {
			elem = elems[0].Type()
		}
		out := &ir.NewArray{Elem: elem}
		for i, x := range elems {
			out.Elems = append(out.Elems, l.coerce(x, elem, e.Elements[i].Pos(), "array element"))
		}
		return out
	}
	out := &ir.NewArray{Elem: elem}
	for _, el := range e.Elements {
		out.Elems = append(out.Elems, l.coerce(l.exprWant(el, elem), elem, el.Pos(), "array element"))
	}
	return out
}

// condition lowers a boolean test, unboxing a Boolean.
func (l *lowerer) condition(e ast.Expr) ir.Expr {
	return l.boolean(l.expr(e), e.Pos())
}

func (l *lowerer) boolean(x ir.Expr, pos token.Position) ir.Expr {
	if invalid(x) {
		return x
	}
	if !types.AsBoolean(x.Type()) {
		l.report(&diag.TypeMismatchError{Pos: pos, From: x.Type(), To: types.Boolean, Context: "condition"})
		return bad()
	}
	return l.coerce(x, types.Boolean, pos, "condition")
}

func (l *lowerer) unary(e *ast.UnaryExpr) ir.Expr {
	x := l.expr(e.X)
	if invalid(x) {
		return x
	}
	switch e.Op {
	case token.Minus, token.Plus:
		if c, ok := x.(*ir.Const); ok && e.Op == token.Minus {
			switch c.Kind {
			case ir.ConstInt:
				return &ir.Const{T: c.T, Kind: ir.ConstInt, Int: -c.Int}
			case ir.ConstFloat:
				return &ir.Const{T: c.T, Kind: ir.ConstFloat, Float: -c.Float}
			}
		}
		if p, ok := types.UnaryPromotion(x.Type()); ok {
			return &ir.Unary{Op: e.Op, X: l.coerce(x, p, e.OpPos, "operand"), T: p}
		}
	case token.Bang:
		if types.AsBoolean(x.Type()) {
			return &ir.Unary{Op: e.Op, X: l.coerce(x, types.Boolean, e.OpPos, "operand"), T: types.Boolean}
		}
	case token.Tilde:
		if p, ok := types.UnaryPromotion(x.Type()); ok && p.IsIntegral() {
			return &ir.Unary{Op: e.Op, X: l.coerce(x, p, e.OpPos, "operand"), T: p}
		}
	}
	l.errorf(e.OpPos, "operator %s is not defined on %s", e.Op, x.Type())
	return bad()
}

func concat(x, y ir.Expr) ir.Expr {
	var parts []ir.Expr
	if c, ok := x.(*ir.Concat); ok {
		parts = append(parts, c.Parts...)
	} else {
		parts = append(parts, x)
	}
	return &ir.Concat{Parts: append(parts, y)}
}

func (l *lowerer) binary(op token.Kind, x, y ir.Expr, pos token.Position) ir.Expr {
	xt, yt := x.Type(), y.Type()
	promoted := func(p types.Type, result types.Type) ir.Expr {
		return &ir.Binary{
			Op:     op,
			X:      l.coerce(x, p, pos, "operand"),
			Y:      l.coerce(y, p, pos, "operand"),
			OpType: p,
			T:      result,
		}
	}
	switch op {
	case token.Plus:
		if isString(xt) || isString(yt) {
			if types.IsVoid(xt) || types.IsVoid(yt) {
				break
			}
			return concat(x, y)
		}
		if p, ok := types.NumericPromotion(xt, yt); ok {
			return promoted(p, p)
		}
	case token.Minus, token.Star, token.Slash, token.Percent:
		if p, ok := types.NumericPromotion(xt, yt); ok {
			return promoted(p, p)
		}
	case token.And, token.Or:
		if types.AsBoolean(xt) && types.AsBoolean(yt) {
			return promoted(types.Boolean, types.Boolean)
		}
	case token.Amp, token.Pipe, token.Caret:
		if types.AsBoolean(xt) && types.AsBoolean(yt) {
			return promoted(types.Boolean, types.Boolean)
		}
		if p, ok := types.NumericPromotion(xt, yt); ok && p.IsIntegral() {
			return promoted(p, p)
		}
	case token.Shl, token.Shr, token.UShr:
		px, okx := types.UnaryPromotion(xt)
		py, oky := types.UnaryPromotion(yt)
		if okx && oky && px.IsIntegral() && py.IsIntegral() {
			return &ir.Binary{
				Op:     op,
				X:      l.coerce(x, px, pos, "operand"),
				Y:      l.coerce(y, py, pos, "operand"),
				OpType: px,
				T:      px,
			}
		}
	case token.Lt, token.Lte, token.Gt, token.Gte:
		if p, ok := types.NumericPromotion(xt, yt); ok {
			return promoted(p, types.Boolean)
		}
	case token.Eq, token.NotEq:
		primitive := types.IsPrimitive(xt) || types.IsPrimitive(yt)
		if p, ok := types.NumericPromotion(xt, yt); ok && primitive {
			return promoted(p, types.Boolean)
		}
		if primitive && types.AsBoolean(xt) && types.AsBoolean(yt) {
			return promoted(types.Boolean, types.Boolean)
		}
		if types.IsReference(xt) && types.IsReference(yt) {
			return &ir.Binary{Op: op, X: x, Y: y, OpType: types.Object, T: types.Boolean}
		}
	}
	l.errorf(pos, "operator %s is not defined on %s and %s", op, xt, yt)
	return bad()
}

// place lowers an assignment target. The binding is returned for local
// variables so the caller can record the write.
func (l *lowerer) place(e ast.Expr) (ir.Expr, *scope.Binding) {
	switch e := e.(type) {
	case *ast.IdentExpr:
		b, ok := l.scope.Lookup(e.Name)
		if !ok {
			l.report(&diag.UnresolvedIdentifierError{Pos: e.NamePos, Name: e.Name})
			return bad(), nil
		}
		if b.Mutability == scope.Const && !(b.Kind == scope.Field && l.fn.init) {
			l.errorf(e.NamePos, "cannot assign to constant %s", e.Name)
		}
		x := l.load(b, e.NamePos)
		if !b.IsVariable() {
			return x, nil
		}
		return x, b
	case *ast.MemberExpr:
		x := l.member(e)
		if g, ok := x.(*ir.GetField); ok {
			if f, found := l.idx.Field(g.Field.Owner, g.Field.Name); found && f.Final &&
				!(l.fn.init && g.Field.Owner.Name == l.class.typ.Name) {
				l.errorf(e.NamePos, "cannot assign to final field %s", e.Name)
			}
		}
		return x, nil
	case *ast.IndexExpr:
		return l.index(e), nil
	}
	l.errorf(e.Pos(), "invalid assignment target")
	return bad(), nil
}

// write records an assignment to variable b. A variable may not be
// assigned inside a closure that captures it, nor after a closure
// captured it.
func (l *lowerer) write(b *scope.Binding, pos token.Position) {
	if b == nil {
		return
	}
	if len(l.scope.Crossed(b)) > 0 {
		l.report(&diag.CaptureMutabilityError{Pos: pos, Variable: b.Name, Site: l.fn.site})
		return
	}
	if prev := l.scope.RecordWrite(b); prev.Captured {
		l.report(&diag.CaptureMutabilityError{Pos: pos, Variable: b.Name, Site: prev.Site})
	}
}

func (l *lowerer) assign(e *ast.AssignExpr) ir.Expr {
	target, b := l.place(e.Target)
	tt := target.Type()
	if e.Op == token.Assign {
		v := l.exprWant(e.Value, tt)
		if invalid(target, v) {
			return bad()
		}
		v = l.coerce(v, tt, e.Value.Pos(), "assignment")
		l.write(b, e.OpPos)
		return &ir.Assign{Target: target, Op: token.Assign, Value: v}
	}

	op, ok := e.Op.Compound()
	if !ok {
		l.report(diag.Internalf(e.OpPos, "unexpected assignment operator %s", e.Op))
		return bad()
	}
	v := l.expr(e.Value)
	if invalid(target, v) {
		return bad()
	}
	l.write(b, e.OpPos)
	if op == token.Plus && isString(tt) {
		return &ir.Assign{Target: target, Op: op, OpType: types.String, Value: v}
	}
	if !types.IsPrimitive(tt) {
		l.errorf(e.OpPos, "operator %s needs a primitive or string target, have %s", e.Op, tt)
		return bad()
	}
	p, ok := types.NumericPromotion(tt, v.Type())
	if !ok {
		l.errorf(e.OpPos, "operator %s is not defined on %s and %s", e.Op, tt, v.Type())
		return bad()
	}
	return &ir.Assign{Target: target, Op: op, OpType: p, Value: l.coerce(v, p, e.Value.Pos(), "operand")}
}

func (l *lowerer) update(e *ast.UpdateExpr) ir.Expr {
	target, b := l.place(e.Target)
	if invalid(target) {
		return bad()
	}
	if p, ok := target.Type().(*types.Primitive); !ok || !p.IsNumeric() {
		l.errorf(e.OpPos, "operator %s needs a numeric target, have %s", e.Op, target.Type())
		return bad()
	}
	l.write(b, e.OpPos)
	return &ir.Update{Target: target, Op: e.Op, Prefix: e.Prefix}
}

func (l *lowerer) cond(e *ast.CondExpr, want types.Type) ir.Expr {
	c := l.condition(e.Cond)
	before := l.scope.Snapshot()
	x := l.exprWant(e.Then, want)
	afterThen := l.scope.Snapshot()
	l.scope.Restore(before)
	y := l.exprWant(e.Else, want)
	l.scope.Restore(scope.Merge(afterThen, l.scope.Snapshot()))
	if invalid(c, x, y) {
		return bad()
	}
	t := l.unify(x.Type(), y.Type(), want)
	if t == nil {
		l.errorf(e.Pos(), "branches of the conditional have incompatible types %s and %s", x.Type(), y.Type())
		return bad()
	}
	return &ir.Cond{
		Cond: c,
		Then: l.coerce(x, t, e.Then.Pos(), "conditional branch"),
		Else: l.coerce(y, t, e.Else.Pos(), "conditional branch"),
		T:    t,
	}
}

// unify picks the type of a conditional expression, or nil.
func (l *lowerer) unify(a, b, want types.Type) types.Type {
	switch {
	case types.Equal(a, b):
		return a
	case types.IsPrimitive(a) && types.IsPrimitive(b):
		if p, ok := types.NumericPromotion(a, b); ok {
			return p
		}
		return nil
	case types.IsNull(a) && types.IsReference(b):
		return b
	case types.IsNull(b) && types.IsReference(a):
		return a
	case types.IsReference(a) && types.IsReference(b):
		switch {
		case l.idx.IsAssignable(a, b):
			return b
		case l.idx.IsAssignable(b, a):
			return a
		}
		if want != nil && types.IsReference(want) {
			return want
		}
		return types.Object
	}
	if want != nil {
		_, okA := l.convertible(a, want)
		_, okB := l.convertible(b, want)
		if okA && okB {
			return want
		}
	}
	return nil
}

func (l *lowerer) convertible(from, to types.Type) (ir.Expr, bool) {
	return l.convert(&ir.Load{T: from}, to)
}

func (l *lowerer) as(e *ast.AsExpr) ir.Expr {
	to := l.typeOf(e.Type)
	x := l.expr(e.X)
	if invalid(x) || types.IsInvalid(to) {
		return bad()
	}
	from := x.Type()
	if y, ok := l.convert(x, to); ok {
		if types.IsReference(to) && !types.Equal(from, to) && !types.IsPrimitive(from) {
			return &ir.Convert{Kind: ir.ConvCast, X: x, T: to}
		}
		return y
	}
	fp, fPrim := from.(*types.Primitive)
	tp, tPrim := to.(*types.Primitive)
	switch {
	case fPrim && tPrim && fp.IsNumeric() && tp.IsNumeric():
		return &ir.Convert{Kind: ir.ConvNarrow, X: x, T: to}
	case tPrim && types.IsReference(from):
		w, ok := types.Box(tp)
		if ok && l.idx.IsAssignable(w, from) {
			return &ir.Convert{Kind: ir.ConvUnbox, X: &ir.Convert{Kind: ir.ConvCast, X: x, T: w}, T: to}
		}
	case types.IsReference(from) && types.IsReference(to):
		_, fromClass := from.(*types.Class)
		_, toClass := to.(*types.Class)
		if (fromClass && toClass) || l.idx.IsAssignable(to, from) {
			return &ir.Convert{Kind: ir.ConvCast, X: x, T: to}
		}
	}
	l.report(&diag.TypeMismatchError{Pos: e.AsPos, From: from, To: to, Context: "cast"})
	return bad()
}

// coerce applies an assignment conversion of x to to, reporting a
// TypeMismatchError when none exists.
func (l *lowerer) coerce(x ir.Expr, to types.Type, pos token.Position, context string) ir.Expr {
	if to == nil || types.IsInvalid(to) || invalid(x) {
		return x
	}
	if y, ok := l.convert(x, to); ok {
		return y
	}
	l.report(&diag.TypeMismatchError{Pos: pos, From: x.Type(), To: to, Context: context})
	return x
}

// convert applies the implicit conversions: identity, primitive
// widening, boxing (with reference widening), unboxing (with primitive
// widening), reference widening and narrowing of int constants.
func (l *lowerer) convert(x ir.Expr, to types.Type) (ir.Expr, bool) {
	from := x.Type()
	switch {
	case types.Equal(from, to):
		return x, true
	case types.IsVoid(from) || types.IsVoid(to):
		return x, false
	case types.IsNull(from):
		return x, types.IsReference(to)
	}
	fp, fPrim := from.(*types.Primitive)
	tp, tPrim := to.(*types.Primitive)
	switch {
	case fPrim && tPrim:
		if overload.Widening(fp, tp) > 0 {
			return &ir.Convert{Kind: ir.ConvWiden, X: x, T: to}, true
		}
		if c, ok := x.(*ir.Const); ok && c.Kind == ir.ConstInt && fp.Kind == types.PrimInt && fits(c.Int, tp) {
			return &ir.Const{T: tp, Kind: ir.ConstInt, Int: c.Int}, true
		}
		return x, false
	case fPrim:
		w, ok := types.Box(fp)
		if !ok {
			return x, false
		}
		if types.Equal(w, to) || l.idx.IsAssignable(w, to) {
			return &ir.Convert{Kind: ir.ConvBox, X: x, T: w}, true
		}
		return x, false
	case tPrim:
		p, ok := types.Unbox(from)
		if !ok {
			return x, false
		}
		un := &ir.Convert{Kind: ir.ConvUnbox, X: x, T: p}
		if p.Kind == tp.Kind {
			return un, true
		}
		if overload.Widening(p, tp) > 0 {
			return &ir.Convert{Kind: ir.ConvWiden, X: un, T: to}, true
		}
		return x, false
	}
	return x, l.idx.IsAssignable(from, to)
}

func fits(v int64, p *types.Primitive) bool {
	switch p.Kind {
	case types.PrimByte:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case types.PrimShort:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case types.PrimChar:
		return v >= 0 && v <= math.MaxUint16
	}
	return false
}

// Package lower turns a typed AST unit into IR: call sites are bound to
// resolved signatures, function literals become closure descriptors and
// `using` declarations become cleanup regions.
package lower

import (
	"context"
	"errors"
	"fmt"

	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/overload"
	"tsbc/internal/resolver"
	"tsbc/internal/scope"
	"tsbc/internal/token"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
)

// Lower lowers one unit against idx, which must already contain the
// unit's own classes (see Declare). It returns the collected diagnostics
// as a *diag.ListError; a unit with errors yields no IR. ctx is checked
// between top-level declarations.
func Lower(ctx context.Context, u *ast.Unit, idx typeindex.Index, opts Options) (*ir.Unit, error) {
	l := newLowerer(u, idx, opts)
	if err := l.unit(ctx); err != nil {
		return nil, err
	}
	if err := l.errs.Err(); err != nil {
		return nil, err
	}
	if err := ir.Validate(l.out); err != nil {
		return nil, err
	}
	return l.out, nil
}

type lowerer struct {
	unitDecl *ast.Unit
	idx      typeindex.Index
	opts     Options
	types    *typeResolver
	scorer   overload.Scorer
	scope    *scope.Scope
	res      *resolver.Resolver
	errs     *diag.List
	out      *ir.Unit

	class *classState
	fn    *funcState
}

type classState struct {
	decl    *ast.ClassDecl
	info    *typeindex.ClassInfo
	typ     *types.Class
	out     *ir.Class
	lambdas int
}

func newLowerer(u *ast.Unit, idx typeindex.Index, opts Options) *lowerer {
	known := func(name string) bool {
		_, ok := idx.Class(name)
		return ok
	}
	return &lowerer{
		unitDecl: u,
		idx:      idx,
		opts:     opts,
		types:    newTypeResolver(u, opts, known),
		scorer:   overload.Scorer{H: idx},
		scope:    scope.New(),
		res:      resolver.NewResolver(),
		errs:     &diag.List{},
		out:      &ir.Unit{Name: u.Name, Source: u.Source, Target: opts.Target},
	}
}

func (l *lowerer) errorf(pos token.Position, format string, args ...any) {
	l.errs.Add(diag.Errorf(pos, format, args...))
}

func (l *lowerer) report(err error) { l.errs.Add(err) }

// typeOf resolves a type annotation of the unit.
func (l *lowerer) typeOf(t ast.TypeNode) types.Type {
	return l.types.node(t, l.errs)
}

func (l *lowerer) unit(ctx context.Context) error {
	l.scope.Push(scope.FrameNamespace)
	defer l.scope.Pop()

	for _, d := range l.unitDecl.Interfaces {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.iface(d)
	}
	for _, d := range l.unitDecl.Classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.classDecl(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lookupInfo(name string, pos token.Position) (*typeindex.ClassInfo, bool) {
	info, ok := l.idx.Class(QualifiedName(l.unitDecl, name))
	if !ok {
		l.report(diag.Internalf(pos, "class %s missing from the type index", name))
	}
	return info, ok
}

func (l *lowerer) iface(d *ast.InterfaceDecl) {
	info, ok := l.lookupInfo(d.Name, d.NamePos)
	if !ok {
		return
	}
	c := &ir.Class{Name: info.Name, Interfaces: info.Interfaces, Interface: true}
	for _, m := range info.Methods {
		c.Methods = append(c.Methods, &ir.Method{Sig: m, Params: len(m.Params)})
	}
	l.out.Classes = append(l.out.Classes, c)
}

func (l *lowerer) classDecl(ctx context.Context, d *ast.ClassDecl) error {
	info, ok := l.lookupInfo(d.Name, d.NamePos)
	if !ok {
		return nil
	}
	cs := &classState{
		decl: d,
		info: info,
		typ:  info.Type(),
		out:  &ir.Class{Name: info.Name, Super: info.Super, Interfaces: info.Interfaces},
	}
	l.out.Classes = append(l.out.Classes, cs.out)
	l.class = cs
	defer func() { l.class = nil }()

	l.scope.Push(scope.FrameClass)
	defer l.scope.Pop()
	for _, f := range info.Fields {
		mut := scope.Let
		if f.Final {
			mut = scope.Const
		}
		l.scope.Declare(&scope.Binding{
			Name:       f.Name,
			Type:       f.Type,
			Kind:       scope.Field,
			Mutability: mut,
			Owner:      f.Owner,
			Static:     f.Static,
		})
		cs.out.Fields = append(cs.out.Fields, &ir.Field{Name: f.Name, Type: f.Type, Static: f.Static, Final: f.Final})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	l.staticInit(d)

	ctors, methods := 0, 0
	for _, m := range d.Methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Constructor {
			l.method(m, info.Constructors[ctors])
			ctors++
			continue
		}
		l.method(m, info.Methods[methods])
		methods++
	}
	if ctors == 0 {
		l.method(nil, info.Constructors[0])
	}
	return nil
}

// staticInit gathers static field initializers into <clinit>.
func (l *lowerer) staticInit(d *ast.ClassDecl) {
	var inits []*ast.FieldDecl
	for _, f := range d.Fields {
		if f.Static && f.Init != nil {
			inits = append(inits, f)
		}
	}
	if len(inits) == 0 {
		return
	}
	sig := &types.Method{Owner: l.class.typ, Name: "<clinit>", Result: types.Void, Static: true}
	l.enterFunc(sig, d.NamePos)
	body := &ir.Block{}
	for _, f := range inits {
		body.Stmts = append(body.Stmts, l.fieldInit(f))
	}
	l.leaveMethod(sig, 0, body)
}

func (l *lowerer) fieldInit(f *ast.FieldDecl) ir.Stmt {
	field, _ := l.idx.Field(l.class.typ, f.Name)
	ref := fieldRef(field)
	var recv ir.Expr
	if !f.Static {
		recv = l.this(f.NamePos)
	}
	val := l.coerce(l.exprWant(f.Init, field.Type), field.Type, f.Init.Pos(), "field initializer")
	return &ir.ExprStmt{X: &ir.Assign{Target: &ir.GetField{Recv: recv, Field: ref}, Op: token.Assign, Value: val}}
}

func fieldRef(f *typeindex.Field) *ir.FieldRef {
	return &ir.FieldRef{Owner: f.Owner, Name: f.Name, Type: f.Type, Static: f.Static}
}

// method lowers a method or constructor body. d is nil for the
// synthesized default constructor.
func (l *lowerer) method(d *ast.MethodDecl, sig *types.Method) {
	pos := l.class.decl.NamePos
	if d != nil {
		pos = d.NamePos
	}
	l.enterFunc(sig, pos)
	if d != nil {
		for i, p := range d.Params {
			l.declareParam(p, sig.Params[i])
		}
	}

	body := &ir.Block{}
	if sig.IsConstructor() {
		body.Stmts = append(body.Stmts, l.superCall(pos)...)
		for _, f := range l.class.decl.Fields {
			if !f.Static && f.Init != nil {
				body.Stmts = append(body.Stmts, l.fieldInit(f))
			}
		}
	}
	if d != nil && d.Body != nil {
		l.scope.Push(scope.FrameBlock)
		body.Stmts = append(body.Stmts, l.stmts(d.Body.Stmts)...)
		l.scope.Pop()
		if !types.IsVoid(sig.Result) && !types.IsInvalid(sig.Result) && !ir.Terminates(body) {
			l.errorf(d.NamePos, "method %s must return a value of type %s", sig.Name, sig.Result)
		}
	}
	params := len(sig.Params)
	l.leaveMethod(sig, params, body)
}

func (l *lowerer) superCall(pos token.Position) []ir.Stmt {
	super := types.NewClass(l.class.info.Super)
	for _, c := range l.idx.Constructors(super) {
		if len(c.Params) == 0 {
			return []ir.Stmt{&ir.ExprStmt{X: &ir.Invoke{Kind: ir.InvokeSpecial, Recv: l.this(pos), Method: c}}}
		}
	}
	l.errorf(pos, "superclass %s has no zero-argument constructor", super)
	return nil
}

// enterFunc pushes the frame of a method body.
func (l *lowerer) enterFunc(sig *types.Method, pos token.Position) {
	f := l.scope.Push(scope.FrameMethod)
	l.fn = &funcState{
		info:   l.res.Enter(f),
		static: sig.Static,
		init:   sig.IsConstructor() || sig.Name == "<clinit>",
		result: sig.Result,
		site:   pos,
	}
}

func (l *lowerer) leaveMethod(sig *types.Method, params int, body *ir.Block) {
	l.class.out.Methods = append(l.class.out.Methods, &ir.Method{
		Sig:    sig,
		Params: params,
		Locals: l.fn.locals(),
		Body:   body,
	})
	l.scope.Pop()
	l.fn = nil
}

func (l *lowerer) declareParam(p *ast.Param, t types.Type) *scope.Binding {
	b := &scope.Binding{Name: p.Name, Type: t, Kind: scope.Param, Pos: p.NamePos}
	if _, ok := l.scope.Declare(b); !ok {
		l.errorf(p.NamePos, "duplicate parameter %s", p.Name)
		return b
	}
	l.fn.info.AddLocal(b)
	return b
}

// muted runs f with diagnostics discarded and write facts restored
// afterwards. Inlined copies of finally blocks are lowered this way so
// that each source error is reported once.
func (l *lowerer) muted(f func()) {
	saved, facts := l.errs, l.scope.Snapshot()
	l.errs = &diag.List{}
	defer func() {
		if l.errs.HasInternal() {
			for _, err := range l.errs.Errors() {
				var ie *diag.InternalError
				if errors.As(err, &ie) {
					saved.Add(err)
				}
			}
		}
		l.errs = saved
		l.scope.Restore(facts)
	}()
	f()
}

func (l *lowerer) closureID() string {
	id := fmt.Sprintf("%s$lambda$%d", l.class.typ.Name, l.class.lambdas)
	l.class.lambdas++
	return id
}

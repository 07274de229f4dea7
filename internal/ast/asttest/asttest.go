// Package asttest builds annotated syntax trees for tests. Every node gets
// the next line of the builder's file as its position, so diagnostics can
// be matched against the node that produced them.
package asttest

import (
	"strings"

	"tsbc/internal/ast"
	"tsbc/internal/token"
)

// B hands out positions and builds nodes.
type B struct {
	File string
	line int
}

func New(file string) *B { return &B{File: file} }

// Pos returns the next position.
func (b *B) Pos() token.Position {
	b.line++
	return token.Position{File: b.File, Line: b.line, Column: 1}
}

// Type parses a type spelling such as "int", "java.lang.String" or "int[]".
func (b *B) Type(name string) ast.TypeNode {
	if name == "" {
		return nil
	}
	if elem, ok := strings.CutSuffix(name, "[]"); ok {
		return &ast.ArrayType{Elem: b.Type(elem)}
	}
	return &ast.SimpleType{Name: name, NamePos: b.Pos()}
}

// Unit wraps classes and interfaces into a unit named name.
func (b *B) Unit(name string, decls ...any) *ast.Unit {
	u := &ast.Unit{Name: name, Source: b.File}
	for _, d := range decls {
		switch d := d.(type) {
		case *ast.ClassDecl:
			u.Classes = append(u.Classes, d)
		case *ast.InterfaceDecl:
			u.Interfaces = append(u.Interfaces, d)
		case *ast.ImportDecl:
			u.Imports = append(u.Imports, d)
		}
	}
	return u
}

func (b *B) Import(path, alias string) *ast.ImportDecl {
	return &ast.ImportDecl{ImportPos: b.Pos(), Path: path, Alias: alias}
}

// Class declares a class. super may be empty; members are fields and methods.
func (b *B) Class(name, super string, members ...any) *ast.ClassDecl {
	c := &ast.ClassDecl{Name: name, NamePos: b.Pos(), Super: b.Type(super)}
	for _, m := range members {
		switch m := m.(type) {
		case *ast.FieldDecl:
			c.Fields = append(c.Fields, m)
		case *ast.MethodDecl:
			c.Methods = append(c.Methods, m)
		case ast.TypeNode:
			c.Implements = append(c.Implements, m)
		}
	}
	return c
}

func (b *B) Interface(name string, methods ...*ast.InterfaceMethod) *ast.InterfaceDecl {
	return &ast.InterfaceDecl{Name: name, NamePos: b.Pos(), Methods: methods}
}

func (b *B) Abstract(name, result string, params ...*ast.Param) *ast.InterfaceMethod {
	return &ast.InterfaceMethod{Name: name, NamePos: b.Pos(), Params: params, Result: b.Type(result)}
}

func (b *B) Field(name, typ string, init ast.Expr) *ast.FieldDecl {
	return &ast.FieldDecl{Name: name, NamePos: b.Pos(), Type: b.Type(typ), Init: init}
}

func (b *B) StaticField(name, typ string, init ast.Expr) *ast.FieldDecl {
	f := b.Field(name, typ, init)
	f.Static = true
	return f
}

func (b *B) Method(name, result string, params []*ast.Param, body ...ast.Stmt) *ast.MethodDecl {
	return &ast.MethodDecl{Name: name, NamePos: b.Pos(), Params: params, Result: b.Type(result), Body: b.Block(body...)}
}

func (b *B) StaticMethod(name, result string, params []*ast.Param, body ...ast.Stmt) *ast.MethodDecl {
	m := b.Method(name, result, params, body...)
	m.Static = true
	return m
}

func (b *B) Ctor(params []*ast.Param, body ...ast.Stmt) *ast.MethodDecl {
	m := b.Method("constructor", "", params, body...)
	m.Constructor = true
	return m
}

// Params builds parameters from name, type pairs. An empty type leaves
// the parameter unannotated.
func (b *B) Params(nameType ...string) []*ast.Param {
	var out []*ast.Param
	for i := 0; i+1 < len(nameType); i += 2 {
		out = append(out, &ast.Param{Name: nameType[i], NamePos: b.Pos(), Type: b.Type(nameType[i+1])})
	}
	return out
}

func (b *B) Rest(name, typ string) *ast.Param {
	return &ast.Param{Name: name, NamePos: b.Pos(), Type: b.Type(typ), Rest: true}
}

// ---------- Statements ----------

func (b *B) Block(stmts ...ast.Stmt) *ast.BlockStmt {
	return &ast.BlockStmt{LBrace: b.Pos(), Stmts: stmts}
}

func (b *B) Let(name, typ string, value ast.Expr) *ast.VarDeclStmt {
	p := b.Pos()
	return &ast.VarDeclStmt{DeclPos: p, Kind: ast.DeclLet, Name: name, NamePos: p, Type: b.Type(typ), Value: value}
}

func (b *B) Const(name, typ string, value ast.Expr) *ast.VarDeclStmt {
	s := b.Let(name, typ, value)
	s.Kind = ast.DeclConst
	return s
}

func (b *B) Using(decls ...*ast.UsingDecl) *ast.UsingStmt {
	return &ast.UsingStmt{UsingPos: b.Pos(), Decls: decls}
}

func (b *B) Res(name, typ string, value ast.Expr) *ast.UsingDecl {
	return &ast.UsingDecl{Name: name, NamePos: b.Pos(), Type: b.Type(typ), Value: value}
}

func (b *B) Expr(x ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{Expression: x} }

func (b *B) If(cond ast.Expr, then, els ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{IfPos: b.Pos(), Cond: cond, Then: then, Else: els}
}

func (b *B) Return(x ast.Expr) *ast.ReturnStmt {
	return &ast.ReturnStmt{ReturnPos: b.Pos(), Result: x}
}

func (b *B) Throw(x ast.Expr) *ast.ThrowStmt {
	return &ast.ThrowStmt{ThrowPos: b.Pos(), Expr: x}
}

func (b *B) Break(label string) *ast.BreakStmt {
	return &ast.BreakStmt{BreakPos: b.Pos(), Label: label}
}

func (b *B) Continue(label string) *ast.ContinueStmt {
	return &ast.ContinueStmt{ContinuePos: b.Pos(), Label: label}
}

func (b *B) Label(label string, body ast.Stmt) *ast.LabeledStmt {
	return &ast.LabeledStmt{LabelPos: b.Pos(), Label: label, Body: body}
}

// Try builds a try statement. An empty catchName omits the catch clause;
// a nil finally omits the finally clause.
func (b *B) Try(body *ast.BlockStmt, catchName string, catch, finally *ast.BlockStmt) *ast.TryStmt {
	s := &ast.TryStmt{TryPos: b.Pos(), Body: body, Finally: finally}
	if catchName != "" {
		s.CatchName, s.CatchPos, s.CatchBody = catchName, b.Pos(), catch
	}
	return s
}

func (b *B) While(cond ast.Expr, body ...ast.Stmt) *ast.WhileStmt {
	return &ast.WhileStmt{WhilePos: b.Pos(), Cond: cond, Body: b.Block(body...)}
}

func (b *B) DoWhile(cond ast.Expr, body ...ast.Stmt) *ast.DoWhileStmt {
	return &ast.DoWhileStmt{DoPos: b.Pos(), Body: b.Block(body...), Cond: cond}
}

func (b *B) For(init ast.Stmt, cond, post ast.Expr, body ...ast.Stmt) *ast.ForStmt {
	return &ast.ForStmt{ForPos: b.Pos(), Init: init, Cond: cond, Post: post, Body: b.Block(body...)}
}

// ---------- Expressions ----------

func (b *B) Ident(name string) *ast.IdentExpr {
	return &ast.IdentExpr{Name: name, NamePos: b.Pos()}
}

func (b *B) This() *ast.ThisExpr { return &ast.ThisExpr{ThisPos: b.Pos()} }

func (b *B) Int(v int64) *ast.IntLiteral { return &ast.IntLiteral{Value: v, LitPos: b.Pos()} }

func (b *B) Float(v float64) *ast.FloatLiteral {
	return &ast.FloatLiteral{Value: v, LitPos: b.Pos()}
}

func (b *B) Str(v string) *ast.StringLiteral { return &ast.StringLiteral{Value: v, LitPos: b.Pos()} }

func (b *B) Bool(v bool) *ast.BoolLiteral { return &ast.BoolLiteral{Value: v, LitPos: b.Pos()} }

func (b *B) Null() *ast.NullLiteral { return &ast.NullLiteral{LitPos: b.Pos()} }

// Bin builds a binary expression from an operator spelling.
func (b *B) Bin(x ast.Expr, op string, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Left: x, Op: token.Lookup(op), OpPos: b.Pos(), Right: y}
}

func (b *B) Not(x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Op: token.Bang, OpPos: b.Pos(), X: x}
}

func (b *B) Neg(x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Op: token.Minus, OpPos: b.Pos(), X: x}
}

func (b *B) Assign(target, value ast.Expr) *ast.AssignExpr {
	return &ast.AssignExpr{Target: target, Op: token.Assign, OpPos: b.Pos(), Value: value}
}

// OpAssign builds a compound assignment such as "+=".
func (b *B) OpAssign(target ast.Expr, op string, value ast.Expr) *ast.AssignExpr {
	return &ast.AssignExpr{Target: target, Op: token.Lookup(op), OpPos: b.Pos(), Value: value}
}

// Inc is the postfix x++.
func (b *B) Inc(target ast.Expr) *ast.UpdateExpr {
	return &ast.UpdateExpr{Target: target, Op: token.Inc, OpPos: b.Pos()}
}

func (b *B) PreDec(target ast.Expr) *ast.UpdateExpr {
	return &ast.UpdateExpr{Target: target, Op: token.Dec, OpPos: b.Pos(), Prefix: true}
}

func (b *B) Call(callee ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Callee: callee, LParen: b.Pos(), Args: args}
}

func (b *B) Sel(x ast.Expr, name string) *ast.MemberExpr {
	return &ast.MemberExpr{X: x, Name: name, NamePos: b.Pos()}
}

// Path builds the member chain spelled by a dotted name.
func (b *B) Path(dotted string) ast.Expr {
	parts := strings.Split(dotted, ".")
	var x ast.Expr = b.Ident(parts[0])
	for _, p := range parts[1:] {
		x = b.Sel(x, p)
	}
	return x
}

// Println is System.out.println(args...).
func (b *B) Println(args ...ast.Expr) *ast.ExprStmt {
	return b.Expr(b.Call(b.Path("System.out.println"), args...))
}

func (b *B) New(typ string, args ...ast.Expr) *ast.NewExpr {
	return &ast.NewExpr{NewPos: b.Pos(), Type: b.Type(typ), Args: args}
}

// Fn is a function literal with a block body.
func (b *B) Fn(params []*ast.Param, body ...ast.Stmt) *ast.FuncLiteral {
	return &ast.FuncLiteral{FunPos: b.Pos(), Params: params, Body: b.Block(body...)}
}

// Arrow is a function literal with an expression body.
func (b *B) Arrow(params []*ast.Param, x ast.Expr) *ast.FuncLiteral {
	return &ast.FuncLiteral{FunPos: b.Pos(), Params: params, ExprBody: x}
}

func (b *B) As(x ast.Expr, typ string) *ast.AsExpr {
	return &ast.AsExpr{X: x, AsPos: b.Pos(), Type: b.Type(typ)}
}

func (b *B) Index(x, index ast.Expr) *ast.IndexExpr {
	return &ast.IndexExpr{X: x, LBracket: b.Pos(), Index: index}
}

func (b *B) Cond(cond, then, els ast.Expr) *ast.CondExpr {
	return &ast.CondExpr{Cond: cond, Then: then, Else: els}
}

// Array is an array literal; elem may be empty.
func (b *B) Array(elem string, elems ...ast.Expr) *ast.ArrayLiteral {
	return &ast.ArrayLiteral{LBracket: b.Pos(), Elem: b.Type(elem), Elements: elems}
}

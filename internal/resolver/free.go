package resolver

import "tsbc/internal/ast"

// Free lists the identifiers a function literal uses but does not declare
// itself, in order of first use, and whether it or a nested literal uses
// `this`. Identifiers that name fields, types or packages are included;
// the caller filters them against its scope.
func Free(lit *ast.FuncLiteral) (names []string, usesThis bool) {
	w := &freeWalker{seen: make(map[string]bool)}
	w.literal(lit)
	return w.names, w.this
}

type freeWalker struct {
	scopes []map[string]bool
	seen   map[string]bool
	names  []string
	this   bool
}

func (w *freeWalker) push() { w.scopes = append(w.scopes, make(map[string]bool)) }
func (w *freeWalker) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *freeWalker) declare(name string) {
	w.scopes[len(w.scopes)-1][name] = true
}

func (w *freeWalker) use(name string) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i][name] {
			return
		}
	}
	if !w.seen[name] {
		w.seen[name] = true
		w.names = append(w.names, name)
	}
}

func (w *freeWalker) literal(lit *ast.FuncLiteral) {
	w.push()
	for _, p := range lit.Params {
		w.declare(p.Name)
	}
	if lit.Body != nil {
		w.stmts(lit.Body.Stmts)
	} else {
		w.expr(lit.ExprBody)
	}
	w.pop()
}

func (w *freeWalker) block(b *ast.BlockStmt) {
	if b == nil {
		return
	}
	w.push()
	w.stmts(b.Stmts)
	w.pop()
}

func (w *freeWalker) stmts(list []ast.Stmt) {
	for _, s := range list {
		w.stmt(s)
	}
}

func (w *freeWalker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.BlockStmt:
		w.block(s)
	case *ast.VarDeclStmt:
		w.expr(s.Value)
		w.declare(s.Name)
	case *ast.UsingStmt:
		for _, d := range s.Decls {
			w.expr(d.Value)
			w.declare(d.Name)
		}
	case *ast.ExprStmt:
		w.expr(s.Expression)
	case *ast.IfStmt:
		w.expr(s.Cond)
		w.scoped(s.Then)
		w.scoped(s.Else)
	case *ast.ReturnStmt:
		w.expr(s.Result)
	case *ast.ThrowStmt:
		w.expr(s.Expr)
	case *ast.LabeledStmt:
		w.scoped(s.Body)
	case *ast.TryStmt:
		w.block(s.Body)
		if s.CatchBody != nil {
			w.push()
			w.declare(s.CatchName)
			w.stmts(s.CatchBody.Stmts)
			w.pop()
		}
		w.block(s.Finally)
	case *ast.WhileStmt:
		w.expr(s.Cond)
		w.scoped(s.Body)
	case *ast.DoWhileStmt:
		w.scoped(s.Body)
		w.expr(s.Cond)
	case *ast.ForStmt:
		w.push()
		w.stmt(s.Init)
		w.expr(s.Cond)
		w.expr(s.Post)
		w.scoped(s.Body)
		w.pop()
	}
}

// scoped walks a statement in its own frame so declarations in an
// unbraced branch do not leak.
func (w *freeWalker) scoped(s ast.Stmt) {
	if s == nil {
		return
	}
	w.push()
	w.stmt(s)
	w.pop()
}

func (w *freeWalker) expr(e ast.Expr) {
	switch e := e.(type) {
	case nil:
	case *ast.IdentExpr:
		w.use(e.Name)
	case *ast.ThisExpr:
		w.this = true
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			w.expr(el)
		}
	case *ast.UnaryExpr:
		w.expr(e.X)
	case *ast.BinaryExpr:
		w.expr(e.Left)
		w.expr(e.Right)
	case *ast.AssignExpr:
		w.expr(e.Target)
		w.expr(e.Value)
	case *ast.UpdateExpr:
		w.expr(e.Target)
	case *ast.CondExpr:
		w.expr(e.Cond)
		w.expr(e.Then)
		w.expr(e.Else)
	case *ast.CallExpr:
		w.expr(e.Callee)
		for _, a := range e.Args {
			w.expr(a)
		}
	case *ast.NewExpr:
		for _, a := range e.Args {
			w.expr(a)
		}
	case *ast.MemberExpr:
		w.expr(e.X)
	case *ast.IndexExpr:
		w.expr(e.X)
		w.expr(e.Index)
	case *ast.FuncLiteral:
		w.literal(e)
	case *ast.AsExpr:
		w.expr(e.X)
	}
}

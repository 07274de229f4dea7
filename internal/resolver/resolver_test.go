package resolver_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tsbc/internal/ast"
	"tsbc/internal/resolver"
	"tsbc/internal/scope"
	"tsbc/internal/types"
)

func TestResolve_ThreadsNestedCaptures(t *testing.T) {
	s := scope.New()
	r := resolver.NewResolver()

	method := r.Enter(s.Push(scope.FrameMethod))
	a := &scope.Binding{Name: "a", Type: types.Int, Kind: scope.Param}
	s.Declare(a)
	method.AddLocal(a)
	x := &scope.Binding{Name: "x", Type: types.String, Kind: scope.Local}
	s.Declare(x)
	method.AddLocal(x)

	outer := r.Enter(s.Push(scope.FrameClosure))
	if ref := r.Resolve(s, a); !ref.Capture || ref.Index != 0 {
		t.Fatalf("outer closure must capture a as 0, got %+v", ref)
	}

	inner := r.Enter(s.Push(scope.FrameClosure))
	if inner.Parent != outer {
		t.Fatalf("inner closure parent not threaded")
	}
	if ref := r.Resolve(s, x); !ref.Capture || ref.Index != 0 {
		t.Fatalf("inner closure must capture x as 0, got %+v", ref)
	}
	if ref := r.Resolve(s, a); !ref.Capture || ref.Index != 1 {
		t.Fatalf("inner closure must capture a as 1, got %+v", ref)
	}

	gotOuter := []resolver.Capture{}
	for _, c := range outer.Captures {
		gotOuter = append(gotOuter, resolver.Capture{Name: c.Name, IsLocal: c.IsLocal, Index: c.Index})
	}
	wantOuter := []resolver.Capture{
		{Name: "a", IsLocal: true, Index: 0},
		{Name: "x", IsLocal: true, Index: 1},
	}
	if diff := cmp.Diff(wantOuter, gotOuter); diff != "" {
		t.Fatalf("outer captures mismatch (-want +got):\n%s", diff)
	}

	// the inner closure reads a through the outer closure's capture
	c := inner.Captures[1]
	if c.Name != "a" || c.IsLocal || c.Index != 0 {
		t.Fatalf("inner capture of a must read outer capture 0, got %+v", c)
	}

	s.Pop()
	if ref := r.Resolve(s, x); !ref.Capture || ref.Index != 1 {
		t.Fatalf("re-resolving in the outer closure must reuse capture 1, got %+v", ref)
	}
	s.Pop()
	if ref := r.Resolve(s, x); ref.Capture || ref.Index != 1 {
		t.Fatalf("method must read x from slot 1, got %+v", ref)
	}
}

func TestUseThis(t *testing.T) {
	s := scope.New()
	r := resolver.NewResolver()
	r.Enter(s.Push(scope.FrameMethod))
	outer := r.Enter(s.Push(scope.FrameClosure))
	s.Push(scope.FrameBlock)
	inner := r.Enter(s.Push(scope.FrameClosure))
	r.UseThis(s)
	if !inner.CapturesThis || !outer.CapturesThis {
		t.Fatalf("both closures must capture this")
	}
}

func TestFree(t *testing.T) {
	// (p) => { let y = p + a; const g = (q) => q + y + b; if (c) { let a = 1; } return this.f(a, d); }
	lit := &ast.FuncLiteral{
		Params: []*ast.Param{{Name: "p"}},
		Body: &ast.BlockStmt{Stmts: []ast.Stmt{
			&ast.VarDeclStmt{Name: "y", Value: &ast.BinaryExpr{Left: &ast.IdentExpr{Name: "p"}, Right: &ast.IdentExpr{Name: "a"}}},
			&ast.VarDeclStmt{Kind: ast.DeclConst, Name: "g", Value: &ast.FuncLiteral{
				Params: []*ast.Param{{Name: "q"}},
				ExprBody: &ast.BinaryExpr{
					Left:  &ast.BinaryExpr{Left: &ast.IdentExpr{Name: "q"}, Right: &ast.IdentExpr{Name: "y"}},
					Right: &ast.IdentExpr{Name: "b"},
				},
			}},
			&ast.IfStmt{
				Cond: &ast.IdentExpr{Name: "c"},
				Then: &ast.BlockStmt{Stmts: []ast.Stmt{&ast.VarDeclStmt{Name: "a", Value: &ast.IntLiteral{Value: 1}}}},
			},
			&ast.ReturnStmt{Result: &ast.CallExpr{
				Callee: &ast.MemberExpr{X: &ast.ThisExpr{}, Name: "f"},
				Args:   []ast.Expr{&ast.IdentExpr{Name: "a"}, &ast.IdentExpr{Name: "d"}},
			}},
		}},
	}
	names, this := resolver.Free(lit)
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, names); diff != "" {
		t.Fatalf("free names mismatch (-want +got):\n%s", diff)
	}
	if !this {
		t.Fatalf("this use must be reported")
	}
}

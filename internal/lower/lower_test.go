package lower_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tsbc/internal/ast"
	"tsbc/internal/ast/asttest"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/lower"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
)

var opts = lower.Options{Target: "17"}

func lowerUnit(t *testing.T, u *ast.Unit) (*ir.Unit, error) {
	t.Helper()
	idx, err := lower.Declare([]*ast.Unit{u}, typeindex.NewCore("17"), opts)
	if err != nil {
		t.Fatalf("Declare error: %v", err)
	}
	return lower.Lower(context.Background(), u, idx, opts)
}

func mustLower(t *testing.T, u *ast.Unit) *ir.Unit {
	t.Helper()
	out, err := lowerUnit(t, u)
	if err != nil {
		t.Fatalf("Lower error: %v", err)
	}
	return out
}

func resClass(b *asttest.B) *ast.ClassDecl {
	return b.Class("Res", "", b.Type("AutoCloseable"),
		b.Method("close", "", nil),
	)
}

func method(t *testing.T, u *ir.Unit, class, name string) *ir.Method {
	t.Helper()
	c := u.Class(class)
	if c == nil {
		t.Fatalf("class %s not lowered", class)
	}
	m := c.Method(name)
	if m == nil {
		t.Fatalf("method %s.%s not lowered", class, name)
	}
	return m
}

// regionOf returns the region following the resource initializer in stmts.
func regionOf(t *testing.T, stmts []ir.Stmt) *ir.Region {
	t.Helper()
	for _, s := range stmts {
		if r, ok := s.(*ir.Region); ok {
			return r
		}
	}
	t.Fatalf("no region among %d statements", len(stmts))
	return nil
}

func TestCaptureOfReassignedLocalIsRejected(t *testing.T) {
	b := asttest.New("capture.ts")
	lit := b.Fn(nil, b.Println(b.Ident("x")))
	write := b.Assign(b.Ident("x"), b.Int(2))
	u := b.Unit("capture", b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Let("x", "", b.Int(1)),
			b.Const("f", "Runnable", lit),
			b.Expr(write),
		),
	))
	_, err := lowerUnit(t, u)

	var cme *diag.CaptureMutabilityError
	if !errors.As(err, &cme) {
		t.Fatalf("expected CaptureMutabilityError, got %v", err)
	}
	if cme.Variable != "x" || cme.Pos != write.OpPos || cme.Site != lit.FunPos {
		t.Fatalf("unexpected error %+v", cme)
	}
}

func TestCaptureMutability(t *testing.T) {
	tests := []struct {
		name string
		body func(b *asttest.B) []ast.Stmt
		ok   bool
	}{
		{
			name: "written once",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(1)),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
			ok: true,
		},
		{
			name: "written twice before capture",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(1)),
					b.Expr(b.Assign(b.Ident("x"), b.Int(2))),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
		},
		{
			name: "one write per branch",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "int", nil),
					b.If(b.Bool(true),
						b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(1)))),
						b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(2))))),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
			ok: true,
		},
		{
			name: "written in a loop",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "int", nil),
					b.While(b.Bool(false), b.Expr(b.Assign(b.Ident("x"), b.Int(1)))),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
		},
		{
			name: "declared inside the loop",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.While(b.Bool(false),
						b.Const("y", "", b.Int(1)),
						b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("y"))))),
				}
			},
			ok: true,
		},
		{
			name: "written inside the closure",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(1)),
					b.Const("f", "Runnable", b.Fn(nil, b.Expr(b.Assign(b.Ident("x"), b.Int(3))))),
				}
			},
		},
		{
			name: "write on a returning branch",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "int", nil),
					b.If(b.Bin(b.Ident("p"), "==", b.Int(0)),
						b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(1))), b.Return(nil)), nil),
					b.Expr(b.Assign(b.Ident("x"), b.Int(2))),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
			ok: true,
		},
		{
			name: "write on a throwing else branch",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "int", nil),
					b.If(b.Bin(b.Ident("p"), "==", b.Int(0)),
						b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(1)))),
						b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(2))), b.Throw(b.New("RuntimeException", b.Str("no"))))),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
			ok: true,
		},
		{
			name: "write carried by a labeled break",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(0)),
					b.Label("out", b.Block(
						b.If(b.Bin(b.Ident("p"), "==", b.Int(0)),
							b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(1))), b.Break("out")), nil),
					)),
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
				}
			},
		},
		{
			name: "write carried by a continue",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(0)),
					b.While(b.Bin(b.Ident("p"), "<", b.Int(3)),
						b.If(b.Bin(b.Ident("p"), "==", b.Int(1)),
							b.Block(b.Expr(b.Assign(b.Ident("x"), b.Int(1))), b.Continue("")), nil),
						b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))),
					),
				}
			},
		},
		{
			name: "capture on a breaking branch then written",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Let("x", "", b.Int(0)),
					b.While(b.Bool(true),
						b.If(b.Bin(b.Ident("p"), "==", b.Int(1)),
							b.Block(b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("x")))), b.Break("")), nil),
					),
					b.Expr(b.Assign(b.Ident("x"), b.Int(2))),
				}
			},
		},
		{
			name: "parameter captured",
			body: func(b *asttest.B) []ast.Stmt {
				return []ast.Stmt{
					b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Ident("p")))),
				}
			},
			ok: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := asttest.New("capture.ts")
			u := b.Unit("capture", b.Class("Main", "",
				b.StaticMethod("run", "", b.Params("p", "int"), tt.body(b)...),
			))
			_, err := lowerUnit(t, u)
			var cme *diag.CaptureMutabilityError
			switch {
			case tt.ok && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case !tt.ok && !errors.As(err, &cme):
				t.Fatalf("expected CaptureMutabilityError, got %v", err)
			}
		})
	}
}

func TestNestedClosureThreadsCapture(t *testing.T) {
	b := asttest.New("nested.ts")
	inner := b.Fn(nil, b.Println(b.Ident("x")))
	outer := b.Fn(nil,
		b.Const("g", "Runnable", inner),
		b.Expr(b.Call(b.Sel(b.Ident("g"), "run"))),
	)
	u := b.Unit("nested", b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Const("x", "", b.Int(1)),
			b.Const("f", "Runnable", outer),
		),
	))
	out := mustLower(t, u)

	if len(out.Closures) != 2 {
		t.Fatalf("expected 2 closures, got %d", len(out.Closures))
	}
	o, i := out.Closure("Main$lambda$0"), out.Closure("Main$lambda$1")
	if o == nil || i == nil {
		t.Fatalf("closure ids: %s, %s", out.Closures[0].ID, out.Closures[1].ID)
	}
	want := []ir.Capture{{Name: "x", Type: o.Captures[0].Type, FromLocal: true, Index: 0}}
	if diff := cmp.Diff(want, o.Captures, cmpopts.EquateComparable(types.Primitive{})); diff != "" {
		t.Fatalf("outer captures (-want +got):\n%s", diff)
	}
	if len(i.Captures) != 1 || i.Captures[0].FromLocal || i.Captures[0].Index != 0 {
		t.Fatalf("inner closure must read the outer capture field, got %+v", i.Captures)
	}
}

func TestClosureCapturesThis(t *testing.T) {
	b := asttest.New("this.ts")
	u := b.Unit("this", b.Class("Main", "",
		b.Field("n", "int", nil),
		b.Method("run", "", nil,
			b.Const("f", "Runnable", b.Fn(nil, b.Println(b.Sel(b.This(), "n")))),
		),
	))
	out := mustLower(t, u)
	c := out.Closures[0]
	if !c.CapturesThis || len(c.Captures) != 0 {
		t.Fatalf("expected a this-only capture, got this=%v captures=%+v", c.CapturesThis, c.Captures)
	}
}

func TestClosureTargetErrors(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		params []string
	}{
		{name: "not an interface", typ: "string"},
		{name: "arity mismatch", typ: "Runnable", params: []string{"a", ""}},
		{name: "incompatible parameter", typ: "java.util.function.IntUnaryOperator", params: []string{"a", "boolean"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := asttest.New("target.ts")
			u := b.Unit("target", b.Class("Main", "",
				b.StaticMethod("run", "", nil,
					b.Const("f", tt.typ, b.Fn(b.Params(tt.params...))),
				),
			))
			_, err := lowerUnit(t, u)
			var cte *diag.ClosureTargetError
			if !errors.As(err, &cte) {
				t.Fatalf("expected ClosureTargetError, got %v", err)
			}
		})
	}
}

func TestOverloadResolutionFailure(t *testing.T) {
	b := asttest.New("overload.ts")
	call := b.Call(b.Path("Math.max"), b.Bool(true), b.Int(1))
	u := b.Unit("overload", b.Class("Main", "",
		b.StaticMethod("run", "", nil, b.Expr(call)),
	))
	_, err := lowerUnit(t, u)
	var ore *diag.OverloadResolutionError
	if !errors.As(err, &ore) {
		t.Fatalf("expected OverloadResolutionError, got %v", err)
	}
	if ore.Member != "max" || ore.Receiver.String() != "java.lang.Math" || len(ore.Args) != 2 {
		t.Fatalf("unexpected error %+v", ore)
	}
}

func TestOverloadPicksClosestWidening(t *testing.T) {
	b := asttest.New("widen.ts")
	u := b.Unit("widen", b.Class("Main", "",
		b.StaticMethod("run", "int", b.Params("x", "short"),
			b.Return(b.Call(b.Path("Math.abs"), b.Ident("x"))),
		),
		b.StaticMethod("text", "string", b.Params("c", "char"),
			b.Return(b.Call(b.Path("String.valueOf"), b.Ident("c"))),
		),
	))
	out := mustLower(t, u)
	dump := ir.Dump(out)
	for _, want := range []string{"java.lang.Math.abs(I)I", "java.lang.String.valueOf(C)Ljava/lang/String;"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("expected a call to %s in:\n%s", want, dump)
		}
	}
}

func TestUnresolvedIdentifier(t *testing.T) {
	b := asttest.New("unresolved.ts")
	y := b.Ident("y")
	u := b.Unit("unresolved", b.Class("Main", "",
		b.StaticMethod("run", "int", nil, b.Return(y)),
	))
	_, err := lowerUnit(t, u)
	var uie *diag.UnresolvedIdentifierError
	if !errors.As(err, &uie) || uie.Name != "y" || uie.Pos != y.NamePos {
		t.Fatalf("expected UnresolvedIdentifierError for y, got %v", err)
	}
}

func TestResourceTypeError(t *testing.T) {
	b := asttest.New("resource.ts")
	u := b.Unit("resource", b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(b.Res("s", "", b.Str("not closeable"))),
		),
	))
	_, err := lowerUnit(t, u)
	var rte *diag.ResourceTypeError
	if !errors.As(err, &rte) || rte.Variable != "s" {
		t.Fatalf("expected ResourceTypeError for s, got %v", err)
	}
}

func TestErrorsAreCollectedAcrossMethods(t *testing.T) {
	b := asttest.New("many.ts")
	u := b.Unit("many", b.Class("Main", "",
		b.StaticMethod("a", "int", nil, b.Return(b.Ident("missing"))),
		b.StaticMethod("b", "", nil, b.Using(b.Res("s", "", b.Str("x")))),
	))
	_, err := lowerUnit(t, u)
	var le *diag.ListError
	if !errors.As(err, &le) || len(le.Errs) != 2 {
		t.Fatalf("expected two collected errors, got %v", err)
	}
}

func TestMultiDeclaratorUsingNests(t *testing.T) {
	b := asttest.New("multi.ts")
	u := b.Unit("multi", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(
				b.Res("a", "", b.New("Res")),
				b.Res("n", "Res", nil),
			),
			b.Println(b.Str("body")),
		),
	))
	out := mustLower(t, u)
	outer := regionOf(t, method(t, out, "Main", "run").Body.Stmts)
	inner := regionOf(t, outer.Body.Stmts)

	if outer.Resource.Name != "a" || outer.Resource.Index != 0 {
		t.Fatalf("outer region guards %s #%d", outer.Resource.Name, outer.Resource.Index)
	}
	if inner.Resource.Name != "n" || inner.Resource.Index != 1 {
		t.Fatalf("inner region guards %s #%d", inner.Resource.Name, inner.Resource.Index)
	}
	init, ok := outer.Body.Stmts[0].(*ir.ExprStmt)
	if !ok {
		t.Fatalf("expected the initializer of n first, got %T", outer.Body.Stmts[0])
	}
	if c, ok := init.X.(*ir.Assign).Value.(*ir.Const); !ok || c.Kind != ir.ConstNull {
		t.Fatalf("using without initializer must store null, got %s", ir.ExprString(init.X))
	}
	for _, r := range []*ir.Region{outer, inner} {
		if r.Exit == nil || r.Handler == nil {
			t.Fatalf("region %d lacks its exit or handler", r.ID)
		}
	}
}

func TestReturnUnwindsInnermostFirst(t *testing.T) {
	b := asttest.New("return.ts")
	u := b.Unit("return", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "int", nil,
			b.Using(b.Res("a", "", b.New("Res"))),
			b.Try(
				b.Block(
					b.Using(b.Res("b", "", b.New("Res"))),
					b.Return(b.Int(1)),
				),
				"", nil,
				b.Block(b.Println(b.Str("finally"))),
			),
		),
	))
	out := mustLower(t, u)
	m := method(t, out, "Main", "run")
	a := regionOf(t, m.Body.Stmts)
	try := a.Body.Stmts[0].(*ir.Try)
	bRegion := regionOf(t, try.Body.Stmts)
	exit := bRegion.Body.Stmts[0].(*ir.Exit)

	var got []string
	for _, st := range exit.Unwind {
		got = append(got, st.Kind.String())
	}
	if diff := cmp.Diff([]string{"close", "finally", "close"}, got); diff != "" {
		t.Fatalf("unwind order (-want +got):\n%s", diff)
	}
	if exit.Unwind[0].ID != bRegion.ID || exit.Unwind[1].ID != try.ID || exit.Unwind[2].ID != a.ID {
		t.Fatalf("unwind steps name the wrong statements: %+v", exit.Unwind)
	}
	if exit.Spill < 0 || !m.Locals[exit.Spill].Synthetic {
		t.Fatalf("return value must be spilled to a synthetic slot, spill=%d", exit.Spill)
	}
	if bRegion.Exit != nil {
		t.Fatalf("a region whose body returns needs no fallthrough close")
	}
}

func TestLabeledBreakLeavesOnlyInnerRegions(t *testing.T) {
	b := asttest.New("label.ts")
	loop := b.While(b.Bool(true),
		b.Using(b.Res("r", "", b.New("Res"))),
		b.Break("done"),
	)
	u := b.Unit("label", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(b.Res("outer", "", b.New("Res"))),
			b.Label("done", loop),
		),
	))
	out := mustLower(t, u)
	outer := regionOf(t, method(t, out, "Main", "run").Body.Stmts)
	l := outer.Body.Stmts[0].(*ir.Loop)
	r := regionOf(t, l.Body.Stmts)
	exit := r.Body.Stmts[0].(*ir.Exit)

	if exit.Kind != ir.ExitBreak || exit.Target != l.ID {
		t.Fatalf("break targets %d, loop is %d", exit.Target, l.ID)
	}
	if len(exit.Unwind) != 1 || exit.Unwind[0].ID != r.ID {
		t.Fatalf("break must close only the loop body's resource, got %+v", exit.Unwind)
	}
}

func TestUsingForInitializerWrapsLoop(t *testing.T) {
	b := asttest.New("forusing.ts")
	u := b.Unit("forusing", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.For(b.Using(b.Res("r", "", b.New("Res"))), b.Bool(false), nil,
				b.Break(""),
			),
		),
	))
	out := mustLower(t, u)
	blk, ok := method(t, out, "Main", "run").Body.Stmts[0].(*ir.Block)
	if !ok {
		t.Fatalf("expected the for statement to lower to a block")
	}
	r := regionOf(t, blk.Stmts)
	l, ok := r.Body.Stmts[0].(*ir.Loop)
	if !ok {
		t.Fatalf("the region must protect the loop, got %T", r.Body.Stmts[0])
	}
	if r.Exit == nil {
		t.Fatalf("the loop completes normally, so the region needs a fallthrough close")
	}
	exit := l.Body.Stmts[0].(*ir.Exit)
	if len(exit.Unwind) != 0 {
		t.Fatalf("break stays inside the region, got %+v", exit.Unwind)
	}
	if err := ir.Validate(out); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestExitLeavingTryMarksBoundary(t *testing.T) {
	b := asttest.New("leave.ts")
	u := b.Unit("leave", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "int", nil,
			b.Using(b.Res("a", "", b.New("Res"))),
			b.Try(b.Block(b.Return(b.Int(1))), "e", b.Block(b.Return(b.Int(2))), nil),
		),
	))
	out := mustLower(t, u)
	a := regionOf(t, method(t, out, "Main", "run").Body.Stmts)
	try := a.Body.Stmts[0].(*ir.Try)
	for _, blk := range []*ir.Block{try.Body, try.Catch} {
		exit := blk.Stmts[0].(*ir.Exit)
		if len(exit.Unwind) != 2 || exit.Unwind[0].Kind != ir.UnwindLeave || exit.Unwind[0].ID != try.ID ||
			exit.Unwind[1].Kind != ir.UnwindClose || exit.Unwind[1].ID != a.ID {
			t.Fatalf("want leave of try %d then close of region %d, got %+v", try.ID, a.ID, exit.Unwind)
		}
	}
	if err := ir.Validate(out); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidatorAcceptsLoweredJumps(t *testing.T) {
	b := asttest.New("jumps.ts")
	u := b.Unit("jumps", resClass(b), b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.For(b.Let("i", "", b.Int(0)), b.Bin(b.Ident("i"), "<", b.Int(4)), b.Inc(b.Ident("i")),
				b.Using(b.Res("r", "", b.New("Res"))),
				b.If(b.Bin(b.Ident("i"), "==", b.Int(1)), b.Continue(""), nil),
				b.If(b.Bin(b.Ident("i"), "==", b.Int(2)), b.Break(""), nil),
			),
		),
	))
	out := mustLower(t, u)
	if err := ir.Validate(out); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	build := func() *ast.Unit {
		b := asttest.New("det.ts")
		return b.Unit("det", resClass(b), b.Class("Main", "",
			b.StaticMethod("apply", "int", b.Params("f", "java.util.function.IntBinaryOperator"),
				b.Return(b.Call(b.Sel(b.Ident("f"), "applyAsInt"), b.Int(1), b.Int(2))),
			),
			b.StaticMethod("run", "int", nil,
				b.Const("k", "", b.Int(3)),
				b.Using(b.Res("r", "", b.New("Res"))),
				b.Return(b.Call(b.Ident("apply"),
					b.Arrow(b.Params("x", "", "y", ""), b.Bin(b.Bin(b.Ident("x"), "+", b.Ident("y")), "*", b.Ident("k"))))),
			),
		))
	}
	img1, fp1, err := ir.Image(mustLower(t, build()))
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	img2, fp2, err := ir.Image(mustLower(t, build()))
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if !bytes.Equal(img1, img2) || fp1 != fp2 {
		t.Fatalf("two lowerings of the same unit differ: %s vs %s", fp1, fp2)
	}
}

func TestLowerHonorsCancellation(t *testing.T) {
	b := asttest.New("cancel.ts")
	u := b.Unit("cancel", b.Class("Main", ""))
	idx, err := lower.Declare([]*ast.Unit{u}, typeindex.NewCore("17"), opts)
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lower.Lower(ctx, u, idx, opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDeclareSynthesizesDefaultConstructor(t *testing.T) {
	b := asttest.New("declare.ts")
	u := b.Unit("declare", b.Class("Main", "",
		b.StaticMethod("sum", "int", []*ast.Param{b.Rest("xs", "int")},
			b.Return(b.Sel(b.Ident("xs"), "length")),
		),
	))
	u.Namespace = "app"
	idx, err := lower.Declare([]*ast.Unit{u}, typeindex.NewCore("17"), opts)
	if err != nil {
		t.Fatalf("Declare: %v", err)
	}
	info, ok := idx.Class("app.Main")
	if !ok {
		t.Fatalf("app.Main is not declared")
	}
	if len(info.Constructors) != 1 || len(info.Constructors[0].Params) != 0 {
		t.Fatalf("expected one default constructor, got %v", info.Constructors)
	}
	sum := info.Methods[0]
	if !sum.Varargs || sum.Params[0].String() != "int[]" {
		t.Fatalf("rest parameter must become a vararg array, got %s", sum)
	}
}

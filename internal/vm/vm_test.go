package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tsbc/internal/ast"
	"tsbc/internal/ast/asttest"
	"tsbc/internal/lower"
	"tsbc/internal/typeindex"
	"tsbc/internal/value"
)

// compile declares and lowers decls as one unit and loads it into a VM
// whose System.out is the returned buffer.
func compile(t *testing.T, b *asttest.B, decls ...any) (*VM, *bytes.Buffer) {
	t.Helper()
	u := b.Unit("main", decls...)
	opts := lower.Options{Target: "17"}
	idx, err := lower.Declare([]*ast.Unit{u}, typeindex.NewCore("17"), opts)
	if err != nil {
		t.Fatalf("Declare error: %v", err)
	}
	out, err := lower.Lower(context.Background(), u, idx, opts)
	if err != nil {
		t.Fatalf("Lower error: %v", err)
	}
	var buf bytes.Buffer
	return NewVM(idx, NewCoreHost(&buf), out), &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

// resClass prints when it is opened and closed.
func resClass(b *asttest.B) *ast.ClassDecl {
	return b.Class("Res", "", b.Type("AutoCloseable"),
		b.Field("name", "string", nil),
		b.Ctor(b.Params("n", "string"),
			b.Expr(b.Assign(b.Sel(b.This(), "name"), b.Ident("n"))),
			b.Println(b.Bin(b.Str("open "), "+", b.Ident("n"))),
		),
		b.Method("close", "", nil,
			b.Println(b.Bin(b.Str("close "), "+", b.Sel(b.This(), "name"))),
		),
	)
}

// badClass throws from close.
func badClass(b *asttest.B) *ast.ClassDecl {
	return b.Class("Bad", "", b.Type("AutoCloseable"),
		b.Field("name", "string", nil),
		b.Ctor(b.Params("n", "string"),
			b.Expr(b.Assign(b.Sel(b.This(), "name"), b.Ident("n"))),
		),
		b.Method("close", "", nil,
			b.Throw(b.New("IllegalStateException", b.Bin(b.Str("close "), "+", b.Sel(b.This(), "name")))),
		),
	)
}

func run(t *testing.T, m *VM, method string) value.Value {
	t.Helper()
	v, err := m.CallStatic("Main", method)
	if err != nil {
		t.Fatalf("%s error: %v", method, err)
	}
	return v
}

func TestVM_UsingClosesInReverseOrder(t *testing.T) {
	b := asttest.New("using.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(
				b.Res("r1", "", b.New("Res", b.Str("r1"))),
				b.Res("r2", "", b.New("Res", b.Str("r2"))),
			),
			b.Using(b.Res("r3", "", b.New("Res", b.Str("r3")))),
			b.Println(b.Str("body")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")

	want := []string{"open r1", "open r2", "open r3", "body", "close r3", "close r2", "close r1"}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_ReturnValueComputedBeforeClose(t *testing.T) {
	b := asttest.New("return.ts")
	counter := b.Class("Counter", "", b.Type("AutoCloseable"),
		b.Field("n", "int", nil),
		b.Method("close", "", nil,
			b.Expr(b.Assign(b.Sel(b.This(), "n"), b.Int(0))),
			b.Println(b.Str("closed")),
		),
	)
	main := b.Class("Main", "",
		b.StaticMethod("value", "int", nil,
			b.Using(b.Res("c", "", b.New("Counter"))),
			b.Expr(b.Assign(b.Sel(b.Ident("c"), "n"), b.Int(7))),
			b.Return(b.Sel(b.Ident("c"), "n")),
		),
	)
	m, out := compile(t, b, counter, main)
	v := run(t, m, "value")
	if v.Kind != value.KindInt || v.Int != 7 {
		t.Fatalf("expected 7, got %s", v)
	}
	if got := out.String(); got != "closed\n" {
		t.Fatalf("expected the resource to be closed once, output %q", got)
	}
}

func TestVM_CloseFailuresAreSuppressed(t *testing.T) {
	b := asttest.New("suppressed.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(
				b.Res("a", "", b.New("Bad", b.Str("a"))),
				b.Res("b", "", b.New("Bad", b.Str("b"))),
			),
			b.Throw(b.New("RuntimeException", b.Str("body"))),
		),
	)
	m, _ := compile(t, b, badClass(b), main)
	_, err := m.CallStatic("Main", "run")

	var th *value.Thrown
	if !errors.As(err, &th) {
		t.Fatalf("expected a thrown exception, got %v", err)
	}
	if th.Exc.Class != "java.lang.RuntimeException" || th.Exc.Exception().Message != "body" {
		t.Fatalf("primary exception = %s", value.Obj(th.Exc))
	}
	var got []string
	for _, s := range th.Exc.Exception().Suppressed {
		got = append(got, value.Obj(s).String())
	}
	want := []string{
		"java.lang.IllegalStateException: close b",
		"java.lang.IllegalStateException: close a",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suppressed mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_CloseFailureAfterNormalBody(t *testing.T) {
	b := asttest.New("closefail.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(
				b.Res("a", "", b.New("Res", b.Str("a"))),
				b.Res("b", "", b.New("Bad", b.Str("b"))),
			),
			b.Println(b.Str("body")),
		),
	)
	m, out := compile(t, b, resClass(b), badClass(b), main)
	_, err := m.CallStatic("Main", "run")

	var th *value.Thrown
	if !errors.As(err, &th) || th.Exc.Class != "java.lang.IllegalStateException" {
		t.Fatalf("expected IllegalStateException, got %v", err)
	}
	want := []string{"open a", "body", "close a"}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_NullResourceIsSkipped(t *testing.T) {
	b := asttest.New("null.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Using(
				b.Res("r", "Res", nil),
				b.Res("s", "Res", b.Null()),
			),
			b.Println(b.Str("body")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")
	if got := out.String(); got != "body\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestVM_BreakClosesPerIteration(t *testing.T) {
	b := asttest.New("loop.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.For(b.Let("i", "", b.Int(0)), b.Bin(b.Ident("i"), "<", b.Int(3)), b.Inc(b.Ident("i")),
				b.Using(b.Res("r", "", b.New("Res", b.Bin(b.Str("r"), "+", b.Ident("i"))))),
				b.If(b.Bin(b.Ident("i"), "==", b.Int(1)), b.Block(b.Break("")), nil),
				b.Println(b.Bin(b.Str("iter "), "+", b.Ident("i"))),
			),
			b.Println(b.Str("done")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")

	want := []string{"open r0", "iter 0", "close r0", "open r1", "close r1", "done"}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_LabeledBreakUnwindsRegions(t *testing.T) {
	b := asttest.New("labeled.ts")
	inner := b.For(b.Let("j", "", b.Int(0)), b.Bin(b.Ident("j"), "<", b.Int(2)), b.Inc(b.Ident("j")),
		b.Using(b.Res("y", "", b.New("Res", b.Bin(b.Str("y"), "+", b.Ident("j"))))),
		b.Break("outer"),
	)
	outer := b.For(b.Let("i", "", b.Int(0)), b.Bin(b.Ident("i"), "<", b.Int(2)), b.Inc(b.Ident("i")),
		b.Using(b.Res("x", "", b.New("Res", b.Bin(b.Str("x"), "+", b.Ident("i"))))),
		inner,
	)
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Label("outer", outer),
			b.Println(b.Str("done")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")

	want := []string{"open x0", "open y0", "close y0", "close x0", "done"}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_ReturnRunsFinallyCopy(t *testing.T) {
	b := asttest.New("finally.ts")
	main := b.Class("Main", "",
		b.StaticMethod("value", "int", nil,
			b.Let("x", "", b.Int(1)),
			b.Try(
				b.Block(b.Return(b.Ident("x"))),
				"", nil,
				b.Block(b.Println(b.Str("finally"))),
			),
		),
	)
	m, out := compile(t, b, main)
	v := run(t, m, "value")
	if v.Int != 1 {
		t.Fatalf("expected 1, got %s", v)
	}
	if got := out.String(); got != "finally\n" {
		t.Fatalf("finally ran %q", got)
	}
}

func TestVM_CatchRuntimeException(t *testing.T) {
	b := asttest.New("catch.ts")
	main := b.Class("Main", "",
		b.StaticMethod("value", "string", nil,
			b.Let("zero", "", b.Int(0)),
			b.Let("x", "", b.Int(1)),
			b.Try(
				b.Block(
					b.Expr(b.Assign(b.Ident("x"), b.Bin(b.Ident("x"), "/", b.Ident("zero")))),
					b.Return(b.Str("none")),
				),
				"e", b.Block(b.Return(b.Call(b.Sel(b.Ident("e"), "getMessage")))),
				nil,
			),
		),
	)
	m, _ := compile(t, b, main)
	if v := run(t, m, "value"); v.Str != "/ by zero" {
		t.Fatalf("expected the division message, got %s", v)
	}
}

func TestVM_ClosuresCaptureValues(t *testing.T) {
	b := asttest.New("closure.ts")
	acc := b.Class("Acc", "",
		b.Field("total", "int", nil),
		b.Method("add", "", b.Params("n", "int"),
			b.Const("f", "Runnable", b.Fn(nil,
				b.Expr(b.Assign(b.Sel(b.This(), "total"), b.Bin(b.Sel(b.This(), "total"), "+", b.Ident("n")))),
			)),
			b.Expr(b.Call(b.Sel(b.Ident("f"), "run"))),
			b.Expr(b.Call(b.Sel(b.Ident("f"), "run"))),
		),
	)
	main := b.Class("Main", "",
		b.StaticMethod("apply", "int", b.Params("f", "java.util.function.IntUnaryOperator", "x", "int"),
			b.Return(b.Call(b.Sel(b.Ident("f"), "applyAsInt"), b.Ident("x"))),
		),
		b.StaticMethod("captured", "int", nil,
			b.Const("base", "", b.Int(10)),
			b.Return(b.Call(b.Ident("apply"), b.Arrow(b.Params("v", ""), b.Bin(b.Ident("v"), "+", b.Ident("base"))), b.Int(5))),
		),
		b.StaticMethod("receiver", "int", nil,
			b.Const("a", "", b.New("Acc")),
			b.Expr(b.Call(b.Sel(b.Ident("a"), "add"), b.Int(3))),
			b.Return(b.Sel(b.Ident("a"), "total")),
		),
	)
	m, _ := compile(t, b, acc, main)
	if v := run(t, m, "captured"); v.Int != 15 {
		t.Fatalf("captured: expected 15, got %s", v)
	}
	if v := run(t, m, "receiver"); v.Int != 6 {
		t.Fatalf("receiver: expected 6, got %s", v)
	}
}

func TestVM_CompoundAssignmentWraps(t *testing.T) {
	b := asttest.New("wrap.ts")
	main := b.Class("Main", "",
		b.StaticMethod("value", "int", nil,
			b.Let("i", "int", b.Int(2147483647)),
			b.Expr(b.OpAssign(b.Ident("i"), "+=", b.Int(1))),
			b.Return(b.Ident("i")),
		),
		b.StaticMethod("text", "string", nil,
			b.Let("s", "", b.Str("n=")),
			b.Expr(b.OpAssign(b.Ident("s"), "+=", b.Int(4))),
			b.Return(b.Ident("s")),
		),
	)
	m, _ := compile(t, b, main)
	if v := run(t, m, "value"); v.Int != -2147483648 {
		t.Fatalf("expected overflow to MIN_VALUE, got %s", v)
	}
	if v := run(t, m, "text"); v.Str != "n=4" {
		t.Fatalf("expected n=4, got %s", v)
	}
}

func TestVM_VarargsCall(t *testing.T) {
	b := asttest.New("varargs.ts")
	main := b.Class("Main", "",
		b.StaticMethod("value", "string", nil,
			b.Return(b.Call(b.Path("String.format"), b.Str("%s-%d"), b.Str("a"), b.Int(1))),
		),
	)
	m, _ := compile(t, b, main)
	if v := run(t, m, "value"); v.Str != "a-1" {
		t.Fatalf("expected a-1, got %s", v)
	}
}

func TestVM_ArrayIndexOutOfBounds(t *testing.T) {
	b := asttest.New("array.ts")
	main := b.Class("Main", "",
		b.StaticMethod("value", "int", nil,
			b.Const("xs", "int[]", b.Array("", b.Int(1), b.Int(2))),
			b.Return(b.Index(b.Ident("xs"), b.Int(2))),
		),
	)
	m, _ := compile(t, b, main)
	_, err := m.CallStatic("Main", "value")
	var th *value.Thrown
	if !errors.As(err, &th) || th.Exc.Class != "java.lang.ArrayIndexOutOfBoundsException" {
		t.Fatalf("expected ArrayIndexOutOfBoundsException, got %v", err)
	}
}

func TestVM_StaticInitializerRunsOnce(t *testing.T) {
	b := asttest.New("clinit.ts")
	main := b.Class("Main", "",
		b.StaticField("count", "int", b.Int(40)),
		b.StaticMethod("bump", "int", nil,
			b.Expr(b.Inc(b.Ident("count"))),
			b.Return(b.Ident("count")),
		),
	)
	m, _ := compile(t, b, main)
	run(t, m, "bump")
	if v := run(t, m, "bump"); v.Int != 42 {
		t.Fatalf("expected 42, got %s", v)
	}
}

func TestVM_UnknownEntryPoint(t *testing.T) {
	b := asttest.New("missing.ts")
	m, _ := compile(t, b, b.Class("Main", ""))
	if _, err := m.CallStatic("Main", "nope"); !errors.Is(err, ErrNoMethod) {
		t.Fatalf("expected ErrNoMethod, got %v", err)
	}
}

func TestVM_CloseAfterLeavingTryIsNotCaught(t *testing.T) {
	b := asttest.New("trycatch.ts")
	catchBody := func() *ast.BlockStmt {
		return b.Block(b.Println(b.Str("caught")), b.Return(b.Int(2)))
	}
	main := b.Class("Main", "",
		b.StaticMethod("withFinally", "int", nil,
			b.Using(b.Res("r", "", b.New("Bad", b.Str("r")))),
			b.Try(b.Block(b.Return(b.Int(1))), "e", catchBody(), b.Block(b.Println(b.Str("fin")))),
		),
		b.StaticMethod("withoutFinally", "int", nil,
			b.Using(b.Res("r", "", b.New("Bad", b.Str("r")))),
			b.Try(b.Block(b.Return(b.Int(1))), "e", catchBody(), nil),
		),
		b.StaticMethod("inside", "int", nil,
			b.Try(b.Block(
				b.Using(b.Res("r", "", b.New("Bad", b.Str("r")))),
				b.Return(b.Int(1)),
			), "e", catchBody(), nil),
		),
	)

	m, out := compile(t, b, badClass(b), main)

	tests := []struct {
		method string
		want   []string
	}{
		{method: "withFinally", want: []string{"fin"}},
		{method: "withoutFinally", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			out.Reset()
			_, err := m.CallStatic("Main", tt.method)
			var th *value.Thrown
			if !errors.As(err, &th) || th.Exc.Exception().Message != "close r" {
				t.Fatalf("expected the close failure to propagate, got %v", err)
			}
			var got []string
			if out.Len() > 0 {
				got = lines(out)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	out.Reset()
	if v := run(t, m, "inside"); v.Int != 2 {
		t.Fatalf("a close failure inside the try must reach its catch, got %s", v)
	}
	if diff := cmp.Diff([]string{"caught"}, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_UsingForInitializerSpansLoop(t *testing.T) {
	b := asttest.New("forusing.ts")
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.Let("i", "", b.Int(0)),
			b.For(b.Using(b.Res("r", "", b.New("Res", b.Str("r")))), b.Bin(b.Ident("i"), "<", b.Int(2)), b.Inc(b.Ident("i")),
				b.Println(b.Bin(b.Str("iter "), "+", b.Ident("i"))),
			),
			b.Println(b.Str("done")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")

	want := []string{"open r", "iter 0", "iter 1", "close r", "done"}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestVM_ContinueClosesIterationResources(t *testing.T) {
	b := asttest.New("continue.ts")
	name := func(prefix string) ast.Expr { return b.Bin(b.Str(prefix), "+", b.Ident("i")) }
	main := b.Class("Main", "",
		b.StaticMethod("run", "", nil,
			b.For(b.Let("i", "", b.Int(0)), b.Bin(b.Ident("i"), "<", b.Int(3)), b.Inc(b.Ident("i")),
				b.Using(
					b.Res("a", "", b.New("Res", name("a"))),
					b.Res("b", "", b.New("Res", name("b"))),
				),
				b.If(b.Bin(b.Ident("i"), "==", b.Int(1)), b.Continue(""), nil),
				b.Println(name("iter ")),
			),
			b.Println(b.Str("done")),
		),
	)
	m, out := compile(t, b, resClass(b), main)
	run(t, m, "run")

	want := []string{
		"open a0", "open b0", "iter 0", "close b0", "close a0",
		"open a1", "open b1", "close b1", "close a1",
		"open a2", "open b2", "iter 2", "close b2", "close a2",
		"done",
	}
	if diff := cmp.Diff(want, lines(out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

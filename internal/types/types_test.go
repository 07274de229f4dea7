package types_test

import (
	"testing"

	"tsbc/internal/types"
)

func TestDescriptor_RoundTrip(t *testing.T) {
	cases := []string{
		"I",
		"Z",
		"Ljava/lang/String;",
		"[[J",
		"[Ljava/lang/Object;",
	}
	for _, desc := range cases {
		typ, err := types.ParseDescriptor(desc)
		if err != nil {
			t.Fatalf("parse %q: %v", desc, err)
		}
		if got := typ.Descriptor(); got != desc {
			t.Fatalf("descriptor of %s = %q, want %q", typ, got, desc)
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, result, err := types.ParseMethodDescriptor("(ILjava/lang/String;[D)V")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	if !types.Equal(params[0], types.Int) || !types.Equal(params[1], types.String) {
		t.Fatalf("unexpected params: %v", params)
	}
	if !types.Equal(params[2], &types.Array{Elem: types.Double}) {
		t.Fatalf("expected double[], got %s", params[2])
	}
	if !types.IsVoid(result) {
		t.Fatalf("expected void result, got %s", result)
	}

	for _, bad := range []string{"I)V", "(I", "(V)V", "(Ljava/lang/String)V", "(Q)V"} {
		if _, _, err := types.ParseMethodDescriptor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBoxing(t *testing.T) {
	w, ok := types.Box(types.Int)
	if !ok || w.Name != "java.lang.Integer" {
		t.Fatalf("Box(int) = %v, %v", w, ok)
	}
	p, ok := types.Unbox(types.NewClass("java.lang.Character"))
	if !ok || p != types.Char {
		t.Fatalf("Unbox(Character) = %v, %v", p, ok)
	}
	if _, ok := types.Unbox(types.String); ok {
		t.Fatalf("String must not unbox")
	}
}

func TestNumericPromotion(t *testing.T) {
	cases := []struct {
		a, b types.Type
		want *types.Primitive
	}{
		{types.Byte, types.Short, types.Int},
		{types.Int, types.Long, types.Long},
		{types.Long, types.Float, types.Float},
		{types.NewClass("java.lang.Integer"), types.Double, types.Double},
	}
	for _, c := range cases {
		got, ok := types.NumericPromotion(c.a, c.b)
		if !ok || got != c.want {
			t.Fatalf("promote(%s, %s) = %v, want %s", c.a, c.b, got, c.want)
		}
	}
	if _, ok := types.NumericPromotion(types.Boolean, types.Int); ok {
		t.Fatalf("boolean must not promote")
	}
}

func TestMethodString(t *testing.T) {
	m := &types.Method{
		Owner:   types.String,
		Name:    "format",
		Params:  []types.Type{types.String, &types.Array{Elem: types.Object}},
		Result:  types.String,
		Varargs: true,
		Static:  true,
	}
	if got, want := m.String(), "java.lang.String.format(java.lang.String, java.lang.Object...)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := m.Descriptor(), "(Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/String;"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAvailable(t *testing.T) {
	cases := []struct {
		since, target string
		want          bool
	}{
		{"", "17", true},
		{"11", "17", true},
		{"17", "17", true},
		{"21", "17", false},
		{"1.8", "11", true},
		{"11", "", true},
	}
	for _, c := range cases {
		if got := types.Available(c.since, c.target); got != c.want {
			t.Fatalf("Available(%q, %q) = %v, want %v", c.since, c.target, got, c.want)
		}
	}
}

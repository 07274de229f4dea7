package overload_test

import (
	"errors"
	"math"
	"testing"

	"tsbc/internal/overload"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
)

func scorer() overload.Scorer {
	return overload.Scorer{H: typeindex.NewCore("17")}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWidening_Monotonic(t *testing.T) {
	chains := [][]*types.Primitive{
		{types.Byte, types.Short, types.Int, types.Long, types.Float, types.Double},
		{types.Short, types.Int, types.Long, types.Float, types.Double},
		{types.Char, types.Int, types.Long, types.Float, types.Double},
		{types.Int, types.Long, types.Float, types.Double},
		{types.Long, types.Float, types.Double},
	}
	for _, chain := range chains {
		from := chain[0]
		prev := 1.0
		for _, to := range chain[1:] {
			w := overload.Widening(from, to)
			if w <= 0 || w >= prev {
				t.Fatalf("widening %s->%s = %v, must be in (0, %v)", from, to, w, prev)
			}
			prev = w
		}
	}
	if overload.Widening(types.Long, types.Int) != 0 {
		t.Fatalf("narrowing must not score")
	}
	if overload.Widening(types.Boolean, types.Int) != 0 {
		t.Fatalf("boolean never widens")
	}
}

func TestParamScores(t *testing.T) {
	s := scorer()
	integer := types.NewClass("java.lang.Integer")
	cases := []struct {
		name       string
		arg, param types.Type
		want       float64
	}{
		{"identical", types.Int, types.Int, 1.0},
		{"byte to short", types.Byte, types.Short, 0.99},
		{"int to double", types.Int, types.Double, 0.97},
		{"boxing", types.Int, integer, 0.7},
		{"unboxing", integer, types.Int, 0.7},
		{"unboxing plus widening", integer, types.Long, 0.6 + 0.99*0.09},
		{"boxing to Object", types.Int, types.Object, 0.5},
		{"boxing to Number", types.Int, types.NewClass("java.lang.Number"), 0.6},
		{"upcast to interface", types.String, types.NewClass("java.lang.CharSequence"), 0.8},
		{"upcast to Object", types.String, types.Object, 0.5},
		{"null to reference", types.Null, types.String, 0.5},
		{"null to primitive", types.Null, types.Int, 0},
		{"unrelated", types.String, integer, 0},
		{"boolean to int", types.Boolean, types.Int, 0},
	}
	for _, c := range cases {
		if got := s.Param(c.arg, c.param); !near(got, c.want) {
			t.Fatalf("%s: score(%s, %s) = %v, want %v", c.name, c.arg, c.param, got, c.want)
		}
	}
}

func TestResolve_MathMax(t *testing.T) {
	idx := typeindex.NewCore("17")
	s := overload.Scorer{H: idx}
	cands := overload.FromMethods(idx.Members(types.NewClass("java.lang.Math"), "max"))

	cases := []struct {
		args []types.Type
		want string
	}{
		{[]types.Type{types.Int, types.Int}, "java.lang.Math.max(int, int)"},
		{[]types.Type{types.Int, types.Long}, "java.lang.Math.max(long, long)"},
		{[]types.Type{types.Byte, types.Short}, "java.lang.Math.max(int, int)"},
		{[]types.Type{types.Float, types.Double}, "java.lang.Math.max(double, double)"},
		{[]types.Type{types.NewClass("java.lang.Integer"), types.Int}, "java.lang.Math.max(int, int)"},
	}
	for _, c := range cases {
		m, err := s.Resolve(cands, c.args)
		if err != nil {
			t.Fatalf("resolve %v: %v", c.args, err)
		}
		if got := m.Candidate.Method.String(); got != c.want {
			t.Fatalf("resolve %v = %s, want %s", c.args, got, c.want)
		}

		// the winner does not depend on candidate order
		reversed := make([]overload.Candidate, len(cands))
		for i := range cands {
			reversed[len(cands)-1-i] = cands[i]
		}
		m2, err := s.Resolve(reversed, c.args)
		if err != nil || m2.Candidate.Method != m.Candidate.Method {
			t.Fatalf("resolve %v depends on candidate order", c.args)
		}
	}
}

func TestResolve_NoMatch(t *testing.T) {
	idx := typeindex.NewCore("17")
	s := overload.Scorer{H: idx}
	if _, err := s.Resolve(nil, []types.Type{types.Int}); !errors.Is(err, overload.ErrNoMatch) {
		t.Fatalf("empty candidate set must not match, got %v", err)
	}
	cands := overload.FromMethods(idx.Members(types.String, "charAt"))
	if _, err := s.Resolve(cands, []types.Type{types.String}); !errors.Is(err, overload.ErrNoMatch) {
		t.Fatalf("charAt(String) must not match, got %v", err)
	}
	if _, err := s.Resolve(cands, nil); !errors.Is(err, overload.ErrNoMatch) {
		t.Fatalf("charAt() must not match, got %v", err)
	}
}

func TestResolve_MeanHidesIncompatibleSlot(t *testing.T) {
	idx := typeindex.NewCore("17")
	s := overload.Scorer{H: idx}
	cands := overload.FromMethods(idx.Lookup(types.NewClass("java.lang.Math"), "max", 2))
	args := []types.Type{types.Boolean, types.Int}
	m, err := s.Resolve(cands, args)
	if err != nil {
		t.Fatalf("a positive mean is a winner: %v", err)
	}
	if s.Applicable(m, args) {
		t.Fatalf("boolean argument must make %s inapplicable", m.Candidate.Method)
	}
}

func TestScore_Varargs(t *testing.T) {
	s := scorer()
	objArr := &types.Array{Elem: types.Object}
	format := overload.Candidate{Params: []types.Type{types.String, objArr}, Varargs: true}

	// exact array pass
	sc, spread := s.Score(format, []types.Type{types.String, objArr})
	if spread || !near(sc, 1.0) {
		t.Fatalf("exact array pass: score %v spread %v", sc, spread)
	}

	// compatible array pass
	sc, spread = s.Score(format, []types.Type{types.String, &types.Array{Elem: types.String}})
	if spread || !near(sc, (1.0+0.95)/2) {
		t.Fatalf("compatible array pass: score %v spread %v", sc, spread)
	}

	// individual elements: averaged over actual count, each element discounted
	sc, spread = s.Score(format, []types.Type{types.String, types.Object, types.Object})
	if !spread || !near(sc, (1.0+0.95+0.95)/3) {
		t.Fatalf("spread elements: score %v spread %v", sc, spread)
	}

	// no trailing elements
	sc, spread = s.Score(format, []types.Type{types.String})
	if !spread || !near(sc, 1.0) {
		t.Fatalf("empty spread: score %v spread %v", sc, spread)
	}

	// null as the last actual is an element, not the array
	_, spread = s.Score(format, []types.Type{types.String, types.Null})
	if !spread {
		t.Fatalf("null trailing actual must take the spread form")
	}

	onlyVar := overload.Candidate{Params: []types.Type{objArr}, Varargs: true}
	if sc, _ := s.Score(onlyVar, nil); !near(sc, 1.0) {
		t.Fatalf("zero actuals score 1.0, got %v", sc)
	}
	if sc, _ := s.Score(format, nil); sc != 0 {
		t.Fatalf("too few actuals must score 0, got %v", sc)
	}
}

func TestScore_Lambda(t *testing.T) {
	s := scorer()
	function := types.NewClass("java.util.function.Function")
	intOp := types.NewClass("java.util.function.IntBinaryOperator")
	runnable := types.NewClass("java.lang.Runnable")

	untyped := &types.Lambda{Params: []types.Type{nil}}
	if got := s.Param(untyped, function); !near(got, 1.0) {
		t.Fatalf("untyped one-arg literal vs Function = %v", got)
	}
	if got := s.Param(untyped, intOp); got != 0 {
		t.Fatalf("arity mismatch must score 0, got %v", got)
	}
	if got := s.Param(&types.Lambda{}, runnable); !near(got, 1.0) {
		t.Fatalf("zero-arg literal vs Runnable = %v", got)
	}
	typed := &types.Lambda{Params: []types.Type{types.Long, types.Long}}
	if got := s.Param(typed, intOp); !near(got, 0.99) {
		t.Fatalf("(long, long) literal vs IntBinaryOperator = %v, want 0.99", got)
	}
	bad := &types.Lambda{Params: []types.Type{types.String, types.Int}}
	if got := s.Param(bad, intOp); got != 0 {
		t.Fatalf("String parameter cannot accept int, got %v", got)
	}
	if got := s.Param(untyped, types.String); got != 0 {
		t.Fatalf("String is not a functional interface, got %v", got)
	}
}

package overload

import (
	"errors"

	"tsbc/internal/types"
)

// ErrNoMatch is returned when no candidate scores above zero.
var ErrNoMatch = errors.New("overload: no applicable candidate")

// Candidate is one callable signature.
type Candidate struct {
	Params  []types.Type
	Varargs bool
	Method  *types.Method
}

// FromMethods builds candidates for a lookup result.
func FromMethods(ms []*types.Method) []Candidate {
	out := make([]Candidate, len(ms))
	for i, m := range ms {
		out[i] = Candidate{Params: m.Params, Varargs: m.Varargs, Method: m}
	}
	return out
}

// Match is the chosen candidate. Spread is set when trailing arguments
// must be packed into the vararg array.
type Match struct {
	Candidate Candidate
	Score     float64
	Spread    bool
}

// Score returns the applicability score of c for args in [0,1], and
// whether the vararg spread form produced it.
func (s Scorer) Score(c Candidate, args []types.Type) (float64, bool) {
	if !c.Varargs || len(c.Params) == 0 {
		return s.fixed(c.Params, args), false
	}

	n := len(c.Params)
	arrayType := c.Params[n-1]
	if len(args) == n {
		last := args[n-1]
		if !types.IsNull(last) && s.H.IsAssignable(last, arrayType) {
			slot := scoreVarArray
			if types.Equal(last, arrayType) {
				slot = scoreExact
			}
			total := slot
			for i := 0; i < n-1; i++ {
				total += s.Param(args[i], c.Params[i])
			}
			return total / float64(n), false
		}
	}

	if len(args) < n-1 {
		return 0, false
	}
	arr, ok := arrayType.(*types.Array)
	if !ok {
		return 0, false
	}
	if len(args) == 0 {
		return scoreExact, true
	}
	total := 0.0
	for i, a := range args {
		if i < n-1 {
			total += s.Param(a, c.Params[i])
		} else {
			total += s.Param(a, arr.Elem) * varargDiscount
		}
	}
	return total / float64(len(args)), true
}

func (s Scorer) fixed(params, args []types.Type) float64 {
	if len(params) != len(args) {
		return 0
	}
	if len(params) == 0 {
		return scoreExact
	}
	total := 0.0
	for i := range params {
		total += s.Param(args[i], params[i])
	}
	return total / float64(len(params))
}

// Resolve picks the candidate with the highest score above zero. On an
// exact tie the earlier candidate wins.
func (s Scorer) Resolve(cands []Candidate, args []types.Type) (Match, error) {
	var best Match
	found := false
	for _, c := range cands {
		sc, spread := s.Score(c, args)
		if sc <= 0 {
			continue
		}
		if !found || sc > best.Score {
			best = Match{Candidate: c, Score: sc, Spread: spread}
			found = true
		}
	}
	if !found {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Applicable reports whether every argument of a match converts to its
// parameter. A mean above zero can still hide one incompatible slot.
func (s Scorer) Applicable(m Match, args []types.Type) bool {
	params := m.Candidate.Params
	for i, a := range args {
		var p types.Type
		switch {
		case m.Spread && i >= len(params)-1:
			p = params[len(params)-1].(*types.Array).Elem
		case i < len(params):
			p = params[i]
		default:
			return false
		}
		if s.Param(a, p) == 0 {
			return false
		}
	}
	return true
}

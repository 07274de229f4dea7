// Package overload scores call-site argument types against candidate
// signatures and picks the best applicable candidate.
package overload

import "tsbc/internal/types"

const (
	scoreExact     = 1.0
	scoreBoxed     = 0.7
	scoreBoxUpcast = 0.6
	scoreUnboxBase = 0.6
	scoreUnboxStep = 0.09
	scoreUpcast    = 0.8
	scoreObject    = 0.5
	scoreNullRef   = 0.5
	scoreVarArray  = 0.95
	varargDiscount = 0.95
)

// widening is the primitive widening lattice. Missing pairs do not widen.
var widening = map[types.PrimKind]map[types.PrimKind]float64{
	types.PrimByte: {
		types.PrimShort:  0.99,
		types.PrimInt:    0.98,
		types.PrimLong:   0.97,
		types.PrimFloat:  0.96,
		types.PrimDouble: 0.95,
	},
	types.PrimShort: {
		types.PrimInt:    0.99,
		types.PrimLong:   0.98,
		types.PrimFloat:  0.97,
		types.PrimDouble: 0.96,
	},
	types.PrimChar: {
		types.PrimInt:    0.99,
		types.PrimLong:   0.98,
		types.PrimFloat:  0.97,
		types.PrimDouble: 0.96,
	},
	types.PrimInt: {
		types.PrimLong:   0.99,
		types.PrimFloat:  0.98,
		types.PrimDouble: 0.97,
	},
	types.PrimLong: {
		types.PrimFloat:  0.99,
		types.PrimDouble: 0.98,
	},
	types.PrimFloat: {
		types.PrimDouble: 0.99,
	},
}

// Widening returns the lattice score of widening from to to, 0 when the
// conversion is not a widening.
func Widening(from, to *types.Primitive) float64 {
	return widening[from.Kind][to.Kind]
}

// Hierarchy is the part of the type index scoring needs.
type Hierarchy interface {
	IsAssignable(from, to types.Type) bool
	SingleAbstractMethod(t types.Type) (*types.Method, bool)
}

// Scorer scores arguments against parameters.
type Scorer struct {
	H Hierarchy
}

// Param scores one argument type against one formal parameter type.
func (s Scorer) Param(arg, param types.Type) float64 {
	if arg == nil || param == nil || types.IsInvalid(arg) || types.IsInvalid(param) {
		return 0
	}
	if types.IsVoid(arg) || types.IsVoid(param) {
		return 0
	}
	if types.Equal(arg, param) {
		return scoreExact
	}
	if lam, ok := arg.(*types.Lambda); ok {
		return s.lambda(lam, param)
	}
	if types.IsNull(arg) {
		if types.IsReference(param) {
			return scoreNullRef
		}
		return 0
	}

	ap, argPrim := arg.(*types.Primitive)
	pp, paramPrim := param.(*types.Primitive)
	switch {
	case argPrim && paramPrim:
		return Widening(ap, pp)

	case argPrim:
		w, ok := types.Box(ap)
		if !ok {
			return 0
		}
		if types.Equal(w, param) {
			return scoreBoxed
		}
		if isObject(param) {
			return scoreObject
		}
		if s.H.IsAssignable(w, param) {
			return scoreBoxUpcast
		}
		return 0

	case paramPrim:
		up, ok := types.Unbox(arg)
		if !ok {
			return 0
		}
		if up.Kind == pp.Kind {
			return scoreBoxed
		}
		if w := Widening(up, pp); w > 0 {
			return scoreUnboxBase + w*scoreUnboxStep
		}
		return 0
	}

	if isObject(param) {
		return scoreObject
	}
	if s.H.IsAssignable(arg, param) {
		return scoreUpcast
	}
	return 0
}

// lambda scores a function literal against a parameter type: the
// parameter must be a functional interface of the same arity, and each
// declared literal parameter must accept the interface's parameter.
func (s Scorer) lambda(lam *types.Lambda, param types.Type) float64 {
	sam, ok := s.H.SingleAbstractMethod(param)
	if !ok || len(sam.Params) != len(lam.Params) {
		return 0
	}
	if len(lam.Params) == 0 {
		return scoreExact
	}
	total := 0.0
	for i, declared := range lam.Params {
		if declared == nil {
			total += scoreExact
			continue
		}
		sc := s.Param(sam.Params[i], declared)
		if sc == 0 {
			return 0
		}
		total += sc
	}
	return total / float64(len(lam.Params))
}

func isObject(t types.Type) bool {
	c, ok := t.(*types.Class)
	return ok && c.Name == types.Object.Name
}

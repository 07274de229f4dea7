package types

var wrappers = map[PrimKind]*Class{
	PrimBoolean: NewClass("java.lang.Boolean"),
	PrimByte:    NewClass("java.lang.Byte"),
	PrimShort:   NewClass("java.lang.Short"),
	PrimChar:    NewClass("java.lang.Character"),
	PrimInt:     NewClass("java.lang.Integer"),
	PrimLong:    NewClass("java.lang.Long"),
	PrimFloat:   NewClass("java.lang.Float"),
	PrimDouble:  NewClass("java.lang.Double"),
}

var unboxed = func() map[string]*Primitive {
	m := make(map[string]*Primitive, len(wrappers))
	for _, p := range []*Primitive{Boolean, Byte, Short, Char, Int, Long, Float, Double} {
		m[wrappers[p.Kind].Name] = p
	}
	return m
}()

// Box returns the wrapper class of p.
func Box(p *Primitive) (*Class, bool) {
	c, ok := wrappers[p.Kind]
	return c, ok
}

// Unbox returns the primitive wrapped by t when t is a wrapper class.
func Unbox(t Type) (*Primitive, bool) {
	c, ok := t.(*Class)
	if !ok {
		return nil, false
	}
	p, ok := unboxed[c.Name]
	return p, ok
}

// NumericPromotion applies binary numeric promotion to a pair of operand
// types, unboxing wrappers first. ok is false for non-numeric operands.
func NumericPromotion(a, b Type) (*Primitive, bool) {
	pa, ok := numeric(a)
	if !ok {
		return nil, false
	}
	pb, ok := numeric(b)
	if !ok {
		return nil, false
	}
	switch {
	case pa.Kind == PrimDouble || pb.Kind == PrimDouble:
		return Double, true
	case pa.Kind == PrimFloat || pb.Kind == PrimFloat:
		return Float, true
	case pa.Kind == PrimLong || pb.Kind == PrimLong:
		return Long, true
	}
	return Int, true
}

// UnaryPromotion widens byte, short and char to int.
func UnaryPromotion(t Type) (*Primitive, bool) {
	p, ok := numeric(t)
	if !ok {
		return nil, false
	}
	if p.Kind < PrimInt {
		return Int, true
	}
	return p, true
}

func numeric(t Type) (*Primitive, bool) {
	p, ok := t.(*Primitive)
	if !ok {
		p, ok = Unbox(t)
		if !ok {
			return nil, false
		}
	}
	return p, p.IsNumeric()
}

// AsBoolean reports whether t is boolean or its wrapper.
func AsBoolean(t Type) bool {
	if p, ok := t.(*Primitive); ok {
		return p.Kind == PrimBoolean
	}
	p, ok := Unbox(t)
	return ok && p.Kind == PrimBoolean
}

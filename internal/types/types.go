package types

import (
	"fmt"
	"strings"
)

type Type interface {
	String() string
	// Descriptor returns the JVM field descriptor of the type.
	Descriptor() string
	equal(Type) bool
}

// Primitive types

type PrimKind int

const (
	PrimInvalid PrimKind = iota
	PrimBoolean
	PrimByte
	PrimShort
	PrimChar
	PrimInt
	PrimLong
	PrimFloat
	PrimDouble
	PrimVoid
)

type Primitive struct {
	Kind PrimKind
	Name string
	desc string
}

func (p *Primitive) String() string     { return p.Name }
func (p *Primitive) Descriptor() string { return p.desc }

func (p *Primitive) equal(other Type) bool {
	o, ok := other.(*Primitive)
	if !ok {
		return false
	}
	return p.Kind == o.Kind
}

// IsNumeric reports whether p takes part in numeric promotion.
func (p *Primitive) IsNumeric() bool {
	return p.Kind >= PrimByte && p.Kind <= PrimDouble
}

// IsIntegral reports whether p is one of the integer kinds, char included.
func (p *Primitive) IsIntegral() bool {
	return p.Kind >= PrimByte && p.Kind <= PrimLong
}

var (
	Invalid = &Primitive{Kind: PrimInvalid, Name: "invalid", desc: "?"}
	Boolean = &Primitive{Kind: PrimBoolean, Name: "boolean", desc: "Z"}
	Byte    = &Primitive{Kind: PrimByte, Name: "byte", desc: "B"}
	Short   = &Primitive{Kind: PrimShort, Name: "short", desc: "S"}
	Char    = &Primitive{Kind: PrimChar, Name: "char", desc: "C"}
	Int     = &Primitive{Kind: PrimInt, Name: "int", desc: "I"}
	Long    = &Primitive{Kind: PrimLong, Name: "long", desc: "J"}
	Float   = &Primitive{Kind: PrimFloat, Name: "float", desc: "F"}
	Double  = &Primitive{Kind: PrimDouble, Name: "double", desc: "D"}
	Void    = &Primitive{Kind: PrimVoid, Name: "void", desc: "V"}
)

var primitivesByName = map[string]*Primitive{
	"boolean": Boolean,
	"byte":    Byte,
	"short":   Short,
	"char":    Char,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
	"void":    Void,
}

// LookupPrimitive returns the primitive spelled name, if any.
func LookupPrimitive(name string) (*Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

func IsInvalid(t Type) bool {
	if p, ok := t.(*Primitive); ok {
		return p.Kind == PrimInvalid
	}
	return t == nil
}

func IsVoid(t Type) bool {
	if p, ok := t.(*Primitive); ok {
		return p.Kind == PrimVoid
	}
	return false
}

func IsPrimitive(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Kind != PrimInvalid && p.Kind != PrimVoid
}

// IsReference reports whether values of t live on the heap (classes, arrays, null).
func IsReference(t Type) bool {
	switch t.(type) {
	case *Class, *Array, *nullType:
		return true
	}
	return false
}

// Classes

// Class is a named reference type, identified by its fully qualified name.
type Class struct {
	Name string
}

func NewClass(name string) *Class { return &Class{Name: name} }

func (c *Class) String() string { return c.Name }

func (c *Class) Descriptor() string {
	return "L" + c.InternalName() + ";"
}

// InternalName is the slash-separated binary name.
func (c *Class) InternalName() string {
	return strings.ReplaceAll(c.Name, ".", "/")
}

// SimpleName is the last dotted segment of the name.
func (c *Class) SimpleName() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

func (c *Class) equal(other Type) bool {
	o, ok := other.(*Class)
	if !ok {
		return false
	}
	return c.Name == o.Name
}

var (
	Object        = NewClass("java.lang.Object")
	String        = NewClass("java.lang.String")
	Throwable     = NewClass("java.lang.Throwable")
	AutoCloseable = NewClass("java.lang.AutoCloseable")
)

// Arrays

type Array struct {
	Elem Type
}

func (a *Array) String() string     { return a.Elem.String() + "[]" }
func (a *Array) Descriptor() string { return "[" + a.Elem.Descriptor() }

func (a *Array) equal(other Type) bool {
	o, ok := other.(*Array)
	if !ok {
		return false
	}
	return Equal(a.Elem, o.Elem)
}

// Null

type nullType struct{}

func (nullType) String() string     { return "null" }
func (nullType) Descriptor() string { return "Ljava/lang/Object;" }

func (nullType) equal(other Type) bool {
	_, ok := other.(*nullType)
	return ok
}

// Null is the type of the null literal. It is assignable to every reference type.
var Null Type = &nullType{}

func IsNull(t Type) bool {
	_, ok := t.(*nullType)
	return ok
}

// Lambda stands in for an untyped function literal during overload scoring.
// A nil entry in Params marks a parameter without a declared type.
type Lambda struct {
	Params []Type
}

func (l *Lambda) String() string {
	parts := make([]string, len(l.Params))
	for i, p := range l.Params {
		if p == nil {
			parts[i] = "?"
		} else {
			parts[i] = p.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ") => ?"
}

func (l *Lambda) Descriptor() string { return "?" }

func (l *Lambda) equal(other Type) bool {
	o, ok := other.(*Lambda)
	if !ok || len(o.Params) != len(l.Params) {
		return false
	}
	for i := range l.Params {
		if (l.Params[i] == nil) != (o.Params[i] == nil) {
			return false
		}
		if l.Params[i] != nil && !Equal(l.Params[i], o.Params[i]) {
			return false
		}
	}
	return true
}

// Equal - public function for type identity
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.equal(b)
}

// Debug helper
func DebugType(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T(%s)", t, t.String())
}

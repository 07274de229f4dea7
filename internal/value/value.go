package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tsbc/internal/ir"
	"tsbc/internal/types"
)

// Kind is the type of a value at runtime.
type Kind int

const (
	KindNull Kind = iota
	KindInt       // byte, short, char, int and long
	KindFloat     // float and double
	KindBool
	KindString
	KindObject
	KindArray
	KindClosure
)

// Object is an instance of a unit or host class. Boxed primitives keep
// the primitive in Native, throwables keep an *Exception.
type Object struct {
	Class  string
	Fields map[string]Value
	Native any
}

// Exception is the payload of a throwable object. The primary exception
// owns the list of suppressed ones.
type Exception struct {
	Message    string
	HasMessage bool
	Cause      *Object
	Suppressed []*Object
}

// Exception returns the throwable payload of o, or nil.
func (o *Object) Exception() *Exception {
	if o == nil {
		return nil
	}
	e, _ := o.Native.(*Exception)
	return e
}

// Array is a fixed-length array.
type Array struct {
	Elem  types.Type
	Elems []Value
}

// Closure is an instantiated function literal. Captures are copies taken
// at creation time.
type Closure struct {
	Desc     *ir.Closure
	Captures []Value
	This     Value
}

// Value is a universal value for the VM and its host.
type Value struct {
	Kind    Kind
	Int     int64
	Float   float64
	Bool    bool
	Str     string
	Obj     *Object
	Arr     *Array
	Closure *Closure
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return FormatFloat(v.Float)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return v.Str
	case KindObject:
		if b, ok := v.Obj.Native.(Value); ok {
			return b.String()
		}
		if e := v.Obj.Exception(); e != nil {
			if e.HasMessage {
				return v.Obj.Class + ": " + e.Message
			}
			return v.Obj.Class
		}
		return fmt.Sprintf("%s@%p", v.Obj.Class, v.Obj)
	case KindArray:
		parts := make([]string, len(v.Arr.Elems))
		for i, el := range v.Arr.Elems {
			parts[i] = el.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindClosure:
		return "<closure " + v.Closure.Desc.ID + ">"
	}
	return "<invalid>"
}

// FormatFloat renders a floating-point value the way the host prints
// doubles: integral values keep a trailing ".0".
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// Helpers

var Null = Value{Kind: KindNull}

func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

func Float(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

func Str(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

func Obj(o *Object) Value {
	if o == nil {
		return Null
	}
	return Value{Kind: KindObject, Obj: o}
}

func NewArray(elem types.Type, elems []Value) Value {
	return Value{Kind: KindArray, Arr: &Array{Elem: elem, Elems: elems}}
}

func NewClosure(desc *ir.Closure, captures []Value, this Value) Value {
	return Value{Kind: KindClosure, Closure: &Closure{Desc: desc, Captures: captures, This: this}}
}

// NewException builds a throwable object of class with an optional message.
func NewException(class string, msg *string) *Object {
	e := &Exception{}
	if msg != nil {
		e.Message, e.HasMessage = *msg, true
	}
	return &Object{Class: class, Native: e}
}

// Box wraps a primitive value in an instance of its wrapper class.
func Box(p *types.Primitive, v Value) Value {
	w, ok := types.Box(p)
	if !ok {
		return v
	}
	return Obj(&Object{Class: w.Name, Native: v})
}

// Unbox returns the primitive held by a wrapper object.
func Unbox(v Value) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	p, ok := v.Obj.Native.(Value)
	return p, ok
}

// Zero returns the default value of a variable of type t.
func Zero(t types.Type) Value {
	p, ok := t.(*types.Primitive)
	if !ok {
		return Null
	}
	switch p.Kind {
	case types.PrimBoolean:
		return Bool(false)
	case types.PrimFloat, types.PrimDouble:
		return Float(0)
	case types.PrimInvalid, types.PrimVoid:
		return Null
	}
	return Int(0)
}

// Thrown carries an exception object out of the evaluator as a Go error.
type Thrown struct {
	Exc *Object
}

func (t *Thrown) Error() string {
	return "uncaught " + Obj(t.Exc).String()
}

// Throw returns a Thrown for a new exception of class with message msg.
func Throw(class, msg string) *Thrown {
	return &Thrown{Exc: NewException(class, &msg)}
}

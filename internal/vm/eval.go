package vm

import (
	"fmt"
	"math"
	"strings"

	"tsbc/internal/ir"
	"tsbc/internal/token"
	"tsbc/internal/types"
	"tsbc/internal/value"
)

func (vm *VM) eval(fr *frame, e ir.Expr) (value.Value, error) {
	switch e := e.(type) {
	case *ir.Const:
		switch e.Kind {
		case ir.ConstInt:
			return value.Int(e.Int), nil
		case ir.ConstFloat:
			return value.Float(e.Float), nil
		case ir.ConstString:
			return value.Str(e.String), nil
		case ir.ConstBool:
			return value.Bool(e.Bool), nil
		}
		return value.Null, nil

	case *ir.Load:
		return fr.locals[e.Slot], nil
	case *ir.LoadCapture:
		return fr.captures[e.Index], nil
	case *ir.This:
		return fr.this, nil

	case *ir.GetField, *ir.ArrayIndex:
		p, err := vm.place(fr, e)
		if err != nil {
			return value.Null, err
		}
		return p.load(vm)

	case *ir.ArrayLen:
		x, err := vm.eval(fr, e.X)
		if err != nil {
			return value.Null, err
		}
		if x.Kind != value.KindArray {
			return value.Null, npe("read the length of")
		}
		return value.Int(int64(len(x.Arr.Elems))), nil

	case *ir.Assign:
		return vm.assign(fr, e)
	case *ir.Update:
		return vm.update(fr, e)

	case *ir.Invoke:
		return vm.invoke(fr, e)

	case *ir.New:
		args, err := vm.evalList(fr, e.Args)
		if err != nil {
			return value.Null, err
		}
		return vm.newObject(e.Class, e.Ctor, args)

	case *ir.MakeClosure:
		desc, ok := vm.closures[e.Closure]
		if !ok {
			return value.Null, fmt.Errorf("vm: unknown closure %s", e.Closure)
		}
		caps, err := vm.evalList(fr, e.Captures)
		if err != nil {
			return value.Null, err
		}
		this := value.Null
		if e.This != nil {
			if this, err = vm.eval(fr, e.This); err != nil {
				return value.Null, err
			}
		}
		return value.NewClosure(desc, caps, this), nil

	case *ir.Binary:
		return vm.binary(fr, e)

	case *ir.Unary:
		x, err := vm.eval(fr, e.X)
		if err != nil {
			return value.Null, err
		}
		return unary(e.Op, x, e.T)

	case *ir.Concat:
		var b strings.Builder
		for _, part := range e.Parts {
			v, err := vm.eval(fr, part)
			if err != nil {
				return value.Null, err
			}
			s, err := vm.Stringify(v, part.Type())
			if err != nil {
				return value.Null, err
			}
			b.WriteString(s)
		}
		return value.Str(b.String()), nil

	case *ir.Convert:
		x, err := vm.eval(fr, e.X)
		if err != nil {
			return value.Null, err
		}
		return vm.convert(e.Kind, x, e.X.Type(), e.T)

	case *ir.Cond:
		c, err := vm.eval(fr, e.Cond)
		if err != nil {
			return value.Null, err
		}
		if c.Bool {
			return vm.eval(fr, e.Then)
		}
		return vm.eval(fr, e.Else)

	case *ir.NewArray:
		elems, err := vm.evalList(fr, e.Elems)
		if err != nil {
			return value.Null, err
		}
		if elems == nil {
			elems = []value.Value{}
		}
		return value.NewArray(e.Elem, elems), nil
	}
	return value.Null, fmt.Errorf("vm: unknown expression %T", e)
}

func (vm *VM) evalList(fr *frame, xs []ir.Expr) ([]value.Value, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	out := make([]value.Value, len(xs))
	for i, x := range xs {
		v, err := vm.eval(fr, x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (vm *VM) invoke(fr *frame, e *ir.Invoke) (value.Value, error) {
	var recv value.Value
	if e.Recv != nil {
		var err error
		if recv, err = vm.eval(fr, e.Recv); err != nil {
			return value.Null, err
		}
	}
	args, err := vm.evalList(fr, e.Args)
	if err != nil {
		return value.Null, err
	}
	switch e.Kind {
	case ir.InvokeStatic:
		return vm.invokeStatic(e.Method, args)
	case ir.InvokeSpecial:
		if e.Method.IsConstructor() {
			return value.Null, vm.construct(recv, e.Method, args)
		}
		m, ok := vm.findMethod(e.Method.Owner.Name, e.Method)
		if !ok {
			return vm.host.Invoke(vm, recv, e.Method, args)
		}
		return vm.call(m, recv, args)
	}
	return vm.dispatch(recv, e.Method, args)
}

// lvalue is a storage location: a local slot, a field or an array element.
type lvalue struct {
	fr     *frame
	slot   int
	obj    *value.Object
	field  *ir.FieldRef
	arr    *value.Array
	index  int
	static bool
	t      types.Type
}

func (vm *VM) place(fr *frame, e ir.Expr) (*lvalue, error) {
	switch e := e.(type) {
	case *ir.Load:
		return &lvalue{fr: fr, slot: e.Slot, t: e.T}, nil
	case *ir.GetField:
		if e.Recv == nil {
			if err := vm.initClass(e.Field.Owner.Name); err != nil {
				return nil, err
			}
			return &lvalue{slot: -1, field: e.Field, static: true, t: e.Field.Type}, nil
		}
		recv, err := vm.eval(fr, e.Recv)
		if err != nil {
			return nil, err
		}
		if recv.Kind != value.KindObject {
			return nil, npe("read field " + e.Field.Name + " of")
		}
		return &lvalue{slot: -1, obj: recv.Obj, field: e.Field, t: e.Field.Type}, nil
	case *ir.ArrayIndex:
		x, err := vm.eval(fr, e.X)
		if err != nil {
			return nil, err
		}
		i, err := vm.eval(fr, e.Index)
		if err != nil {
			return nil, err
		}
		if x.Kind != value.KindArray {
			return nil, npe("index")
		}
		if i.Int < 0 || i.Int >= int64(len(x.Arr.Elems)) {
			return nil, value.Throw("java.lang.ArrayIndexOutOfBoundsException",
				fmt.Sprintf("Index %d out of bounds for length %d", i.Int, len(x.Arr.Elems)))
		}
		return &lvalue{slot: -1, arr: x.Arr, index: int(i.Int), t: e.T}, nil
	}
	return nil, fmt.Errorf("vm: %T is not assignable", e)
}

func (p *lvalue) load(vm *VM) (value.Value, error) {
	switch {
	case p.fr != nil:
		return p.fr.locals[p.slot], nil
	case p.arr != nil:
		return p.arr.Elems[p.index], nil
	case p.static:
		if st, ok := vm.statics[p.field.Owner.Name]; ok {
			return st[p.field.Name], nil
		}
		return vm.host.StaticField(vm, p.field)
	}
	return p.obj.Fields[p.field.Name], nil
}

func (p *lvalue) store(vm *VM, v value.Value) error {
	switch {
	case p.fr != nil:
		p.fr.locals[p.slot] = v
	case p.arr != nil:
		p.arr.Elems[p.index] = v
	case p.static:
		st, ok := vm.statics[p.field.Owner.Name]
		if !ok {
			return fmt.Errorf("vm: cannot assign host field %s.%s", p.field.Owner, p.field.Name)
		}
		st[p.field.Name] = v
	default:
		if p.obj.Fields == nil {
			p.obj.Fields = make(map[string]value.Value)
		}
		p.obj.Fields[p.field.Name] = v
	}
	return nil
}

func (vm *VM) assign(fr *frame, e *ir.Assign) (value.Value, error) {
	p, err := vm.place(fr, e.Target)
	if err != nil {
		return value.Null, err
	}
	if e.Op == token.Assign {
		v, err := vm.eval(fr, e.Value)
		if err != nil {
			return value.Null, err
		}
		return v, p.store(vm, v)
	}
	old, err := p.load(vm)
	if err != nil {
		return value.Null, err
	}
	rhs, err := vm.eval(fr, e.Value)
	if err != nil {
		return value.Null, err
	}
	var v value.Value
	if e.Op == token.Plus && isString(e.OpType) {
		x, err := vm.Stringify(old, p.t)
		if err != nil {
			return value.Null, err
		}
		y, err := vm.Stringify(rhs, e.Value.Type())
		if err != nil {
			return value.Null, err
		}
		v = value.Str(x + y)
	} else {
		opt := e.OpType.(*types.Primitive)
		if v, err = arith(e.Op, numeric(old, prim(p.t), opt), rhs, opt); err != nil {
			return value.Null, err
		}
		v = numeric(v, opt, prim(p.t))
	}
	return v, p.store(vm, v)
}

func (vm *VM) update(fr *frame, e *ir.Update) (value.Value, error) {
	p, err := vm.place(fr, e.Target)
	if err != nil {
		return value.Null, err
	}
	old, err := p.load(vm)
	if err != nil {
		return value.Null, err
	}
	t := prim(p.t)
	delta := int64(1)
	if e.Op == token.Dec {
		delta = -1
	}
	var v value.Value
	if old.Kind == value.KindFloat {
		v = numeric(value.Float(old.Float+float64(delta)), types.Double, t)
	} else {
		v = value.Int(wrap(old.Int+delta, t))
	}
	if err := p.store(vm, v); err != nil {
		return value.Null, err
	}
	if e.Prefix {
		return v, nil
	}
	return old, nil
}

func (vm *VM) binary(fr *frame, e *ir.Binary) (value.Value, error) {
	x, err := vm.eval(fr, e.X)
	if err != nil {
		return value.Null, err
	}
	switch e.Op {
	case token.And:
		if !x.Bool {
			return x, nil
		}
		return vm.eval(fr, e.Y)
	case token.Or:
		if x.Bool {
			return x, nil
		}
		return vm.eval(fr, e.Y)
	}
	y, err := vm.eval(fr, e.Y)
	if err != nil {
		return value.Null, err
	}
	if e.Op == token.Eq || e.Op == token.NotEq {
		if !types.IsPrimitive(e.OpType) {
			same := identical(x, y)
			return value.Bool(same == (e.Op == token.Eq)), nil
		}
	}
	return arith(e.Op, x, y, prim(e.OpType))
}

// identical is reference equality. Strings compare by content since
// literals are interned.
func identical(x, y value.Value) bool {
	if x.Kind != y.Kind {
		return false
	}
	switch x.Kind {
	case value.KindNull:
		return true
	case value.KindString:
		return x.Str == y.Str
	case value.KindObject:
		return x.Obj == y.Obj
	case value.KindArray:
		return x.Arr == y.Arr
	case value.KindClosure:
		return x.Closure == y.Closure
	}
	return x == y
}

func isString(t types.Type) bool {
	c, ok := t.(*types.Class)
	return ok && c.Name == types.String.Name
}

func prim(t types.Type) *types.Primitive {
	if p, ok := t.(*types.Primitive); ok {
		return p
	}
	if p, ok := types.Unbox(t); ok {
		return p
	}
	return types.Invalid
}

func npe(what string) error {
	return value.Throw("java.lang.NullPointerException", "cannot "+what+" null")
}

// arith applies a binary operator to operands of primitive type t.
func arith(op token.Kind, x, y value.Value, t *types.Primitive) (value.Value, error) {
	if t.Kind == types.PrimBoolean {
		switch op {
		case token.Amp, token.And:
			return value.Bool(x.Bool && y.Bool), nil
		case token.Pipe, token.Or:
			return value.Bool(x.Bool || y.Bool), nil
		case token.Caret, token.NotEq:
			return value.Bool(x.Bool != y.Bool), nil
		case token.Eq:
			return value.Bool(x.Bool == y.Bool), nil
		}
		return value.Null, fmt.Errorf("vm: operator %s on boolean", op)
	}
	if t.Kind == types.PrimFloat || t.Kind == types.PrimDouble {
		return floatArith(op, x.Float, y.Float, t)
	}
	a, b := x.Int, y.Int
	switch op {
	case token.Plus:
		return value.Int(wrap(a+b, t)), nil
	case token.Minus:
		return value.Int(wrap(a-b, t)), nil
	case token.Star:
		return value.Int(wrap(a*b, t)), nil
	case token.Slash, token.Percent:
		if b == 0 {
			return value.Null, value.Throw("java.lang.ArithmeticException", "/ by zero")
		}
		if b == -1 {
			// MIN_VALUE / -1 overflows back to MIN_VALUE.
			if op == token.Slash {
				return value.Int(wrap(-a, t)), nil
			}
			return value.Int(0), nil
		}
		if op == token.Slash {
			return value.Int(a / b), nil
		}
		return value.Int(a % b), nil
	case token.Amp:
		return value.Int(a & b), nil
	case token.Pipe:
		return value.Int(a | b), nil
	case token.Caret:
		return value.Int(a ^ b), nil
	case token.Shl, token.Shr, token.UShr:
		bits := uint(32)
		if t.Kind == types.PrimLong {
			bits = 64
		}
		n := uint(b) & (bits - 1)
		switch op {
		case token.Shl:
			return value.Int(wrap(a<<n, t)), nil
		case token.Shr:
			return value.Int(a >> n), nil
		}
		if bits == 32 {
			return value.Int(int64(int32(uint32(a) >> n))), nil
		}
		return value.Int(int64(uint64(a) >> n)), nil
	case token.Eq:
		return value.Bool(a == b), nil
	case token.NotEq:
		return value.Bool(a != b), nil
	case token.Lt:
		return value.Bool(a < b), nil
	case token.Lte:
		return value.Bool(a <= b), nil
	case token.Gt:
		return value.Bool(a > b), nil
	case token.Gte:
		return value.Bool(a >= b), nil
	}
	return value.Null, fmt.Errorf("vm: operator %s on %s", op, t)
}

func floatArith(op token.Kind, a, b float64, t *types.Primitive) (value.Value, error) {
	round := func(f float64) value.Value {
		if t.Kind == types.PrimFloat {
			return value.Float(float64(float32(f)))
		}
		return value.Float(f)
	}
	switch op {
	case token.Plus:
		return round(a + b), nil
	case token.Minus:
		return round(a - b), nil
	case token.Star:
		return round(a * b), nil
	case token.Slash:
		return round(a / b), nil
	case token.Percent:
		return round(math.Mod(a, b)), nil
	case token.Eq:
		return value.Bool(a == b), nil
	case token.NotEq:
		return value.Bool(a != b), nil
	case token.Lt:
		return value.Bool(a < b), nil
	case token.Lte:
		return value.Bool(a <= b), nil
	case token.Gt:
		return value.Bool(a > b), nil
	case token.Gte:
		return value.Bool(a >= b), nil
	}
	return value.Null, fmt.Errorf("vm: operator %s on %s", op, t)
}

func unary(op token.Kind, x value.Value, t types.Type) (value.Value, error) {
	p := prim(t)
	switch op {
	case token.Plus:
		return x, nil
	case token.Minus:
		if x.Kind == value.KindFloat {
			return value.Float(-x.Float), nil
		}
		return value.Int(wrap(-x.Int, p)), nil
	case token.Bang:
		return value.Bool(!x.Bool), nil
	case token.Tilde:
		return value.Int(^x.Int), nil
	}
	return value.Null, fmt.Errorf("vm: unary operator %s", op)
}

// wrap truncates v to the width of integral type t.
func wrap(v int64, t *types.Primitive) int64 {
	switch t.Kind {
	case types.PrimByte:
		return int64(int8(v))
	case types.PrimShort:
		return int64(int16(v))
	case types.PrimChar:
		return int64(uint16(v))
	case types.PrimInt:
		return int64(int32(v))
	}
	return v
}

// numeric converts a primitive value between numeric types with the
// host's widening and narrowing rules.
func numeric(v value.Value, from, to *types.Primitive) value.Value {
	if from.Kind == to.Kind || to.Kind == types.PrimBoolean || from.Kind == types.PrimBoolean {
		return v
	}
	toFloat := to.Kind == types.PrimFloat || to.Kind == types.PrimDouble
	if v.Kind == value.KindFloat {
		if toFloat {
			if to.Kind == types.PrimFloat {
				return value.Float(float64(float32(v.Float)))
			}
			return v
		}
		return value.Int(wrap(truncate(v.Float, to), to))
	}
	if toFloat {
		if to.Kind == types.PrimFloat {
			return value.Float(float64(float32(v.Int)))
		}
		return value.Float(float64(v.Int))
	}
	return value.Int(wrap(v.Int, to))
}

// truncate rounds f toward zero, saturating at the bounds of int or long.
// Narrower targets go through int first.
func truncate(f float64, to *types.Primitive) int64 {
	if math.IsNaN(f) {
		return 0
	}
	lo, hi := float64(math.MinInt32), float64(math.MaxInt32)
	if to.Kind == types.PrimLong {
		lo, hi = math.MinInt64, math.MaxInt64
	}
	switch {
	case f <= lo:
		return int64(lo)
	case f >= hi:
		if to.Kind == types.PrimLong {
			return math.MaxInt64
		}
		return math.MaxInt32
	}
	return int64(f)
}

func (vm *VM) convert(kind ir.ConvKind, x value.Value, from, to types.Type) (value.Value, error) {
	switch kind {
	case ir.ConvWiden, ir.ConvNarrow:
		return numeric(x, prim(from), prim(to)), nil
	case ir.ConvBox:
		p, ok := types.Unbox(to)
		if !ok {
			p = prim(from)
		}
		return value.Box(p, numeric(x, prim(from), p)), nil
	case ir.ConvUnbox:
		if x.IsNull() {
			return value.Null, npe("unbox")
		}
		v, ok := value.Unbox(x)
		if !ok {
			return value.Null, value.Throw("java.lang.ClassCastException", fmt.Sprintf("%s is not a wrapper of %s", x, to))
		}
		w, _ := types.Unbox(from)
		if w == nil {
			w, _ = types.Unbox(types.NewClass(x.Obj.Class))
		}
		if w != nil {
			v = numeric(v, w, prim(to))
		}
		return v, nil
	case ir.ConvCast:
		if x.IsNull() || vm.InstanceOf(x, to) {
			return x, nil
		}
		return value.Null, value.Throw("java.lang.ClassCastException",
			fmt.Sprintf("%s cannot be cast to %s", runtimeClass(x), to))
	}
	return value.Null, fmt.Errorf("vm: conversion %s", kind)
}

func runtimeClass(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return types.String.Name
	case value.KindObject:
		return v.Obj.Class
	case value.KindArray:
		return (&types.Array{Elem: v.Arr.Elem}).String()
	case value.KindClosure:
		return v.Closure.Desc.ID
	}
	return v.String()
}

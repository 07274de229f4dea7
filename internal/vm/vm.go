// Package vm evaluates lowered IR directly. It is the reference
// semantics for regions, unwind steps and closures, used by tests and by
// `tsbc run`; host library classes are delegated to a Host.
package vm

import (
	"errors"
	"fmt"

	"tsbc/internal/ir"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
	"tsbc/internal/value"
)

// maxDepth bounds nested calls before StackOverflowError is thrown.
const maxDepth = 512

// ErrNoMethod is returned when an entry point does not exist.
var ErrNoMethod = errors.New("vm: no such method")

// frame is the activation of one method or closure body.
type frame struct {
	locals   []value.Value
	this     value.Value
	captures []value.Value
}

// VM runs the classes and closures of a set of lowered units.
type VM struct {
	idx      typeindex.Index
	host     Host
	classes  map[string]*ir.Class
	closures map[string]*ir.Closure
	statics  map[string]map[string]value.Value
	inited   map[string]bool
	depth    int
}

// NewVM creates a VM for units. idx answers subtype checks for casts
// and catch-all handling; host implements library classes.
func NewVM(idx typeindex.Index, host Host, units ...*ir.Unit) *VM {
	if host == nil {
		host = NewCoreHost(nil)
	}
	vm := &VM{
		idx:      idx,
		host:     host,
		classes:  make(map[string]*ir.Class),
		closures: make(map[string]*ir.Closure),
		statics:  make(map[string]map[string]value.Value),
		inited:   make(map[string]bool),
	}
	for _, u := range units {
		for _, c := range u.Classes {
			vm.classes[c.Name] = c
			st := make(map[string]value.Value)
			for _, f := range c.Fields {
				if f.Static {
					st[f.Name] = value.Zero(f.Type)
				}
			}
			vm.statics[c.Name] = st
		}
		for _, c := range u.Closures {
			vm.closures[c.ID] = c
		}
	}
	return vm
}

// CallStatic runs the static method name of class with args. The first
// overload with a matching parameter count is used.
func (vm *VM) CallStatic(class, name string, args ...value.Value) (value.Value, error) {
	c, ok := vm.classes[class]
	if !ok {
		return value.Null, fmt.Errorf("%w: class %s", ErrNoMethod, class)
	}
	for _, m := range c.Methods {
		if m.Sig.Name == name && m.Sig.Static && len(m.Sig.Params) == len(args) {
			if err := vm.initClass(class); err != nil {
				return value.Null, err
			}
			return vm.call(m, value.Null, args)
		}
	}
	return value.Null, fmt.Errorf("%w: %s.%s with %d arguments", ErrNoMethod, class, name, len(args))
}

// initClass runs the static initializer of a unit class once.
func (vm *VM) initClass(name string) error {
	c, ok := vm.classes[name]
	if !ok || vm.inited[name] {
		return nil
	}
	vm.inited[name] = true
	if c.Super != "" {
		if err := vm.initClass(c.Super); err != nil {
			return err
		}
	}
	if m := c.Method("<clinit>"); m != nil {
		_, err := vm.call(m, value.Null, nil)
		return err
	}
	return nil
}

// call runs a method body.
func (vm *VM) call(m *ir.Method, this value.Value, args []value.Value) (value.Value, error) {
	if m.Body == nil {
		return value.Null, fmt.Errorf("vm: %s.%s has no body", m.Sig.Owner, m.Sig.Name)
	}
	return vm.run(m.Locals, m.Body, this, nil, args)
}

// callClosure runs the body of a closure instance.
func (vm *VM) callClosure(c *value.Closure, args []value.Value) (value.Value, error) {
	return vm.run(c.Desc.Locals, c.Desc.Body, c.This, c.Captures, args)
}

func (vm *VM) run(locals []ir.Local, body *ir.Block, this value.Value, captures, args []value.Value) (value.Value, error) {
	if vm.depth >= maxDepth {
		return value.Null, value.Throw("java.lang.StackOverflowError", "call depth exceeded")
	}
	vm.depth++
	defer func() { vm.depth-- }()

	fr := &frame{locals: make([]value.Value, len(locals)), this: this, captures: captures}
	for i, l := range locals {
		fr.locals[i] = value.Zero(l.Type)
	}
	copy(fr.locals, args)
	c, err := vm.exec(fr, body)
	if err != nil {
		return value.Null, err
	}
	if c.kind != completeNormal && c.kind != completeReturn {
		return value.Null, fmt.Errorf("vm: %s escaped its body", c.kind)
	}
	return c.value, nil
}

// findMethod looks name and params up along the unit class chain of class.
func (vm *VM) findMethod(class string, sig *types.Method) (*ir.Method, bool) {
	for name := class; name != ""; {
		c, ok := vm.classes[name]
		if !ok {
			return nil, false
		}
		for _, m := range c.Methods {
			if m.Body != nil && !m.Sig.Static && m.Sig.Name == sig.Name && m.Sig.SameParams(sig) {
				return m, true
			}
		}
		name = c.Super
	}
	return nil, false
}

// dispatch calls an instance method on recv.
func (vm *VM) dispatch(recv value.Value, sig *types.Method, args []value.Value) (value.Value, error) {
	switch recv.Kind {
	case value.KindNull:
		return value.Null, value.Throw("java.lang.NullPointerException", "cannot invoke "+sig.String()+" on null")
	case value.KindClosure:
		if sam := recv.Closure.Desc.Method; sam.Name == sig.Name && len(sam.Params) == len(sig.Params) {
			return vm.callClosure(recv.Closure, args)
		}
	case value.KindObject:
		if m, ok := vm.findMethod(recv.Obj.Class, sig); ok {
			return vm.call(m, recv, args)
		}
	}
	return vm.host.Invoke(vm, recv, sig, args)
}

// invokeStatic calls a static method of a unit or host class.
func (vm *VM) invokeStatic(sig *types.Method, args []value.Value) (value.Value, error) {
	if c, ok := vm.classes[sig.Owner.Name]; ok {
		if err := vm.initClass(c.Name); err != nil {
			return value.Null, err
		}
		for _, m := range c.Methods {
			if m.Sig.Static && m.Sig.Name == sig.Name && m.Sig.SameParams(sig) {
				return vm.call(m, value.Null, args)
			}
		}
		return value.Null, fmt.Errorf("%w: %s", ErrNoMethod, sig)
	}
	return vm.host.Invoke(vm, value.Null, sig, args)
}

// construct runs constructor ctor on obj, which must already be allocated.
func (vm *VM) construct(obj value.Value, ctor *types.Method, args []value.Value) error {
	c, ok := vm.classes[ctor.Owner.Name]
	if !ok {
		return vm.host.Init(vm, obj.Obj, ctor, args)
	}
	for _, m := range c.Methods {
		if m.Sig.IsConstructor() && m.Sig.SameParams(ctor) {
			_, err := vm.call(m, obj, args)
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrNoMethod, ctor)
}

// newObject instantiates class with constructor ctor.
func (vm *VM) newObject(class *types.Class, ctor *types.Method, args []value.Value) (value.Value, error) {
	if _, ok := vm.classes[class.Name]; !ok {
		return vm.host.New(vm, class, ctor, args)
	}
	if err := vm.initClass(class.Name); err != nil {
		return value.Null, err
	}
	obj := &value.Object{Class: class.Name, Fields: make(map[string]value.Value)}
	for name := class.Name; name != ""; {
		c, ok := vm.classes[name]
		if !ok {
			break
		}
		for _, f := range c.Fields {
			if !f.Static {
				obj.Fields[f.Name] = value.Zero(f.Type)
			}
		}
		name = c.Super
	}
	if vm.idx.IsAssignable(class, types.Throwable) {
		obj.Native = &value.Exception{}
	}
	v := value.Obj(obj)
	if err := vm.construct(v, ctor, args); err != nil {
		return value.Null, err
	}
	return v, nil
}

// InstanceOf reports whether v is a non-null instance of t.
func (vm *VM) InstanceOf(v value.Value, t types.Type) bool {
	switch v.Kind {
	case value.KindNull:
		return false
	case value.KindString:
		return vm.idx.IsAssignable(types.String, t)
	case value.KindObject:
		return vm.idx.IsAssignable(types.NewClass(v.Obj.Class), t)
	case value.KindArray:
		return vm.idx.IsAssignable(&types.Array{Elem: v.Arr.Elem}, t)
	case value.KindClosure:
		return vm.idx.IsAssignable(v.Closure.Desc.Target, t)
	}
	return false
}

// Stringify returns the string form of v as string concatenation sees it.
func (vm *VM) Stringify(v value.Value, t types.Type) (string, error) {
	if p, ok := t.(*types.Primitive); ok && p.Kind == types.PrimChar && v.Kind == value.KindInt {
		return string(rune(v.Int)), nil
	}
	if v.Kind != value.KindObject {
		return v.String(), nil
	}
	if b, boxed := value.Unbox(v); boxed {
		if v.Obj.Class == "java.lang.Character" {
			return string(rune(b.Int)), nil
		}
		return b.String(), nil
	}
	toString := &types.Method{Owner: types.Object, Name: "toString", Result: types.String}
	s, err := vm.dispatch(v, toString, nil)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

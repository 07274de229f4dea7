package typeindex

import (
	"fmt"

	"tsbc/internal/types"
)

// Overlay layers classes declared by the units of one build over a base
// index. Queries about host classes go to the base unchanged, so a
// memoized base keeps its cache.
type Overlay struct {
	base  Index
	local map[string]*ClassInfo
	order []string
}

func NewOverlay(base Index, classes ...*ClassInfo) (*Overlay, error) {
	o := &Overlay{base: base, local: make(map[string]*ClassInfo, len(classes))}
	for _, c := range classes {
		if _, dup := o.local[c.Name]; dup {
			return nil, fmt.Errorf("typeindex: class %s declared twice", c.Name)
		}
		if _, host := base.Class(c.Name); host {
			return nil, fmt.Errorf("typeindex: class %s shadows a host class", c.Name)
		}
		o.local[c.Name] = c
		o.order = append(o.order, c.Name)
	}
	return o, nil
}

// Local returns the unit-declared classes in declaration order.
func (o *Overlay) Local() []*ClassInfo {
	out := make([]*ClassInfo, len(o.order))
	for i, n := range o.order {
		out[i] = o.local[n]
	}
	return out
}

func (o *Overlay) IsLocal(t types.Type) bool {
	if a, ok := t.(*types.Array); ok {
		return o.IsLocal(a.Elem)
	}
	c, ok := t.(*types.Class)
	if !ok {
		return false
	}
	_, ok = o.local[c.Name]
	return ok
}

func (o *Overlay) Class(name string) (*ClassInfo, bool) {
	if c, ok := o.local[name]; ok {
		return c, true
	}
	return o.base.Class(name)
}

func (o *Overlay) Members(owner types.Type, name string) []*types.Method {
	if !o.IsLocal(owner) {
		return o.base.Members(owner, name)
	}
	return collectMembers(o, owner, name)
}

func (o *Overlay) Constructors(owner types.Type) []*types.Method {
	if !o.IsLocal(owner) {
		return o.base.Constructors(owner)
	}
	return collectConstructors(o, owner)
}

func (o *Overlay) Lookup(owner types.Type, name string, arity int) []*types.Method {
	if !o.IsLocal(owner) {
		return o.base.Lookup(owner, name, arity)
	}
	if name == types.ConstructorName {
		return filterArity(o.Constructors(owner), arity)
	}
	return filterArity(o.Members(owner, name), arity)
}

func (o *Overlay) Field(owner types.Type, name string) (*Field, bool) {
	if !o.IsLocal(owner) {
		return o.base.Field(owner, name)
	}
	return lookupField(o, owner, name)
}

func (o *Overlay) IsAssignable(from, to types.Type) bool {
	if !o.IsLocal(from) && !o.IsLocal(to) {
		return o.base.IsAssignable(from, to)
	}
	return assignable(o, from, to)
}

func (o *Overlay) SingleAbstractMethod(t types.Type) (*types.Method, bool) {
	if !o.IsLocal(t) {
		return o.base.SingleAbstractMethod(t)
	}
	return singleAbstract(o, t)
}

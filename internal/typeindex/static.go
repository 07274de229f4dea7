package typeindex

import (
	"fmt"
	"sort"

	"tsbc/internal/types"
)

// Static is an immutable in-memory index restricted to one platform version.
type Static struct {
	target  string
	classes map[string]*ClassInfo
}

// NewStatic builds an index of classes visible on target. Classes and
// members tagged with a later Since are dropped. Duplicate class names
// are an error.
func NewStatic(target string, classes ...*ClassInfo) (*Static, error) {
	s := &Static{target: target, classes: make(map[string]*ClassInfo, len(classes))}
	for _, c := range classes {
		if _, dup := s.classes[c.Name]; dup {
			return nil, fmt.Errorf("typeindex: class %s declared twice", c.Name)
		}
		if !types.Available(c.Since, target) {
			continue
		}
		s.classes[c.Name] = restrict(c, target)
	}
	return s, nil
}

func restrict(c *ClassInfo, target string) *ClassInfo {
	out := *c
	out.Methods = availableMethods(c.Methods, target)
	out.Constructors = availableMethods(c.Constructors, target)
	out.Fields = nil
	for _, f := range c.Fields {
		if types.Available(f.Since, target) {
			out.Fields = append(out.Fields, f)
		}
	}
	return &out
}

func availableMethods(ms []*types.Method, target string) []*types.Method {
	var out []*types.Method
	for _, m := range ms {
		if types.Available(m.Since, target) {
			out = append(out, m)
		}
	}
	return out
}

// Target returns the platform version the index was restricted to.
func (s *Static) Target() string { return s.target }

// Names returns the indexed class names in sorted order.
func (s *Static) Names() []string {
	names := make([]string, 0, len(s.classes))
	for n := range s.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Static) Class(name string) (*ClassInfo, bool) {
	c, ok := s.classes[name]
	return c, ok
}

func (s *Static) Members(owner types.Type, name string) []*types.Method {
	return collectMembers(s, owner, name)
}

func (s *Static) Constructors(owner types.Type) []*types.Method {
	return collectConstructors(s, owner)
}

func (s *Static) Lookup(owner types.Type, name string, arity int) []*types.Method {
	if name == types.ConstructorName {
		return filterArity(s.Constructors(owner), arity)
	}
	return filterArity(s.Members(owner, name), arity)
}

func (s *Static) Field(owner types.Type, name string) (*Field, bool) {
	return lookupField(s, owner, name)
}

func (s *Static) IsAssignable(from, to types.Type) bool {
	return assignable(s, from, to)
}

func (s *Static) SingleAbstractMethod(t types.Type) (*types.Method, bool) {
	return singleAbstract(s, t)
}

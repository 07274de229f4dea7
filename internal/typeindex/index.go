// Package typeindex answers member, constructor, assignability and
// functional-interface queries against the host type universe.
package typeindex

import "tsbc/internal/types"

// AnyArity disables arity filtering in Lookup.
const AnyArity = -1

// Index is the candidate lookup contract used by lowering and overload
// resolution. Implementations must be safe for concurrent use.
type Index interface {
	Class(name string) (*ClassInfo, bool)
	// Members returns every method named name visible on owner, most
	// derived declaration first. Overridden signatures appear once.
	Members(owner types.Type, name string) []*types.Method
	Constructors(owner types.Type) []*types.Method
	// Lookup is Members (or Constructors for types.ConstructorName)
	// narrowed to candidates that can accept arity arguments.
	Lookup(owner types.Type, name string, arity int) []*types.Method
	Field(owner types.Type, name string) (*Field, bool)
	IsAssignable(from, to types.Type) bool
	SingleAbstractMethod(t types.Type) (*types.Method, bool)
}

// ClassInfo describes one class or interface.
type ClassInfo struct {
	Name         string
	Super        string // "" for java.lang.Object and interfaces
	Interfaces   []string
	Interface    bool
	Since        string
	Fields       []*Field
	Methods      []*types.Method
	Constructors []*types.Method
}

func (c *ClassInfo) Type() *types.Class { return types.NewClass(c.Name) }

type Field struct {
	Owner  *types.Class
	Name   string
	Type   types.Type
	Static bool
	Final  bool
	Since  string
}

// Viable reports whether m can be called with arity arguments.
func Viable(m *types.Method, arity int) bool {
	if arity < 0 {
		return true
	}
	if m.Varargs {
		return arity >= len(m.Params)-1
	}
	return arity == len(m.Params)
}

func filterArity(ms []*types.Method, arity int) []*types.Method {
	if arity < 0 {
		return ms
	}
	var out []*types.Method
	for _, m := range ms {
		if Viable(m, arity) {
			out = append(out, m)
		}
	}
	return out
}

// ownerName maps a receiver type to the class whose members it exposes.
func ownerName(t types.Type) (string, bool) {
	switch t := t.(type) {
	case *types.Class:
		return t.Name, true
	case *types.Array:
		return types.Object.Name, true
	}
	return "", false
}

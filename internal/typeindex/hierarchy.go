package typeindex

import "tsbc/internal/types"

type classSource interface {
	Class(name string) (*ClassInfo, bool)
}

// collectMembers walks owner, its superclasses and its interfaces depth
// first, keeping the most derived declaration of each signature.
func collectMembers(src classSource, owner types.Type, name string) []*types.Method {
	start, ok := ownerName(owner)
	if !ok {
		return nil
	}
	var out []*types.Method
	seen := make(map[string]bool)
	var visit func(cls string)
	visit = func(cls string) {
		if cls == "" || seen[cls] {
			return
		}
		seen[cls] = true
		info, ok := src.Class(cls)
		if !ok {
			return
		}
		for _, m := range info.Methods {
			if m.Name != name || overridden(out, m) {
				continue
			}
			out = append(out, m)
		}
		visit(info.Super)
		for _, i := range info.Interfaces {
			visit(i)
		}
		if info.Interface {
			visit(types.Object.Name)
		}
	}
	visit(start)
	return out
}

func overridden(have []*types.Method, m *types.Method) bool {
	for _, h := range have {
		if h.Name == m.Name && h.SameParams(m) {
			return true
		}
	}
	return false
}

func collectConstructors(src classSource, owner types.Type) []*types.Method {
	c, ok := owner.(*types.Class)
	if !ok {
		return nil
	}
	info, ok := src.Class(c.Name)
	if !ok || info.Interface {
		return nil
	}
	return info.Constructors
}

func lookupField(src classSource, owner types.Type, name string) (*Field, bool) {
	start, ok := ownerName(owner)
	if !ok {
		return nil, false
	}
	seen := make(map[string]bool)
	for cls := start; cls != "" && !seen[cls]; {
		seen[cls] = true
		info, ok := src.Class(cls)
		if !ok {
			return nil, false
		}
		for _, f := range info.Fields {
			if f.Name == name {
				return f, true
			}
		}
		cls = info.Super
	}
	return nil, false
}

func isSubclass(src classSource, from, to string) bool {
	seen := make(map[string]bool)
	var walk func(cls string) bool
	walk = func(cls string) bool {
		if cls == to {
			return true
		}
		if cls == "" || seen[cls] {
			return false
		}
		seen[cls] = true
		info, ok := src.Class(cls)
		if !ok {
			return false
		}
		if walk(info.Super) {
			return true
		}
		for _, i := range info.Interfaces {
			if walk(i) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

var arraySupertypes = map[string]bool{
	"java.lang.Object":     true,
	"java.lang.Cloneable":  true,
	"java.io.Serializable": true,
}

// assignable implements reference assignability; primitives are only
// assignable to themselves here, widening is scored by the resolver.
func assignable(src classSource, from, to types.Type) bool {
	if types.Equal(from, to) {
		return true
	}
	if types.IsNull(from) {
		return types.IsReference(to)
	}
	switch to := to.(type) {
	case *types.Class:
		switch f := from.(type) {
		case *types.Class:
			return to.Name == types.Object.Name || isSubclass(src, f.Name, to.Name)
		case *types.Array:
			return arraySupertypes[to.Name]
		}
	case *types.Array:
		f, ok := from.(*types.Array)
		if !ok {
			return false
		}
		if types.IsReference(f.Elem) && types.IsReference(to.Elem) {
			return assignable(src, f.Elem, to.Elem)
		}
		return types.Equal(f.Elem, to.Elem)
	}
	return false
}

// objectMethod reports whether m redeclares a public method of
// java.lang.Object, which never counts toward a functional interface.
func objectMethod(m *types.Method) bool {
	switch m.Name {
	case "equals":
		return len(m.Params) == 1 && types.Equal(m.Params[0], types.Object)
	case "hashCode", "toString":
		return len(m.Params) == 0
	}
	return false
}

func singleAbstract(src classSource, t types.Type) (*types.Method, bool) {
	c, ok := t.(*types.Class)
	if !ok {
		return nil, false
	}
	root, ok := src.Class(c.Name)
	if !ok || !root.Interface {
		return nil, false
	}
	var abstract, concrete []*types.Method
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		info, ok := src.Class(name)
		if !ok || !info.Interface {
			return
		}
		for _, m := range info.Methods {
			switch {
			case m.Static:
			case !m.Abstract:
				concrete = append(concrete, m)
			case objectMethod(m), overridden(abstract, m), overridden(concrete, m):
			default:
				abstract = append(abstract, m)
			}
		}
		for _, i := range info.Interfaces {
			visit(i)
		}
	}
	visit(c.Name)
	if len(abstract) != 1 {
		return nil, false
	}
	return abstract[0], true
}

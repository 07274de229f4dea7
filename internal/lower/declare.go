package lower

import (
	"fmt"
	"strings"

	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
)

// DefaultAliases maps the source language's built-in type names to host types.
var DefaultAliases = map[string]string{
	"string":  "java.lang.String",
	"number":  "double",
	"boolean": "boolean",
	"object":  "java.lang.Object",
	"any":     "java.lang.Object",
	"void":    "void",
}

// Options carries the driver configuration lowering depends on.
type Options struct {
	// Aliases maps source type names to fully qualified host type names
	// or primitive names. Entries override DefaultAliases.
	Aliases map[string]string
	// Target is the platform version tag the type index was built for.
	Target string
}

func (o Options) alias(name string) (string, bool) {
	if v, ok := o.Aliases[name]; ok {
		return v, true
	}
	v, ok := DefaultAliases[name]
	return v, ok
}

// QualifiedName returns the host name of a class declared in u.
func QualifiedName(u *ast.Unit, name string) string {
	if u.Namespace == "" {
		return name
	}
	return u.Namespace + "." + name
}

// typeResolver maps type spellings of one unit to host types.
type typeResolver struct {
	opts    Options
	known   func(name string) bool
	imports map[string]string // alias or simple name -> qualified name
	local   map[string]string // simple name of a class declared in the unit -> qualified name
}

func newTypeResolver(u *ast.Unit, opts Options, known func(string) bool) *typeResolver {
	r := &typeResolver{
		opts:    opts,
		known:   known,
		imports: make(map[string]string),
		local:   make(map[string]string),
	}
	for _, imp := range u.Imports {
		alias := imp.Alias
		if alias == "" {
			alias = imp.Path[strings.LastIndexByte(imp.Path, '.')+1:]
		}
		r.imports[alias] = imp.Path
	}
	for _, c := range u.Classes {
		r.local[c.Name] = QualifiedName(u, c.Name)
	}
	for _, i := range u.Interfaces {
		r.local[i.Name] = QualifiedName(u, i.Name)
	}
	return r
}

// lookup resolves a type spelling. ok is false when nothing matches.
func (r *typeResolver) lookup(name string) (types.Type, bool) {
	if elem, found := strings.CutSuffix(name, "[]"); found {
		t, ok := r.lookup(elem)
		if !ok || types.IsVoid(t) {
			return nil, false
		}
		return &types.Array{Elem: t}, true
	}
	if p, ok := types.LookupPrimitive(name); ok {
		return p, true
	}
	if target, ok := r.opts.alias(name); ok {
		if p, ok := types.LookupPrimitive(target); ok {
			return p, true
		}
		return types.NewClass(target), true
	}
	if q, ok := r.imports[name]; ok {
		return types.NewClass(q), true
	}
	if q, ok := r.local[name]; ok {
		return types.NewClass(q), true
	}
	if r.known(name) {
		return types.NewClass(name), true
	}
	if !strings.Contains(name, ".") && r.known("java.lang."+name) {
		return types.NewClass("java.lang." + name), true
	}
	return nil, false
}

// node resolves a type node, reporting unknown names to errs.
func (r *typeResolver) node(t ast.TypeNode, errs *diag.List) types.Type {
	if t == nil {
		return nil
	}
	name := ast.TypeName(t)
	rt, ok := r.lookup(name)
	if !ok {
		errs.Add(&diag.UnresolvedIdentifierError{Pos: t.Pos(), Name: name})
		return types.Invalid
	}
	return rt
}

// Declare builds the type index entries of every class and interface
// declared by units so that units can reference each other. It returns
// an overlay of base with those entries. Unresolvable signature types
// are reported and recorded as invalid.
func Declare(units []*ast.Unit, base typeindex.Index, opts Options) (*typeindex.Overlay, error) {
	declared := make(map[string]bool)
	for _, u := range units {
		for _, c := range u.Classes {
			declared[QualifiedName(u, c.Name)] = true
		}
		for _, i := range u.Interfaces {
			declared[QualifiedName(u, i.Name)] = true
		}
	}
	known := func(name string) bool {
		if declared[name] {
			return true
		}
		_, ok := base.Class(name)
		return ok
	}

	var errs diag.List
	var infos []*typeindex.ClassInfo
	for _, u := range units {
		tr := newTypeResolver(u, opts, known)
		for _, i := range u.Interfaces {
			infos = append(infos, declareInterface(u, i, tr, &errs))
		}
		for _, c := range u.Classes {
			infos = append(infos, declareClass(u, c, tr, &errs))
		}
	}
	overlay, err := typeindex.NewOverlay(base, infos...)
	if err != nil {
		return nil, fmt.Errorf("declare: %w", err)
	}
	return overlay, errs.Err()
}

func superName(t types.Type) string {
	if c, ok := t.(*types.Class); ok {
		return c.Name
	}
	return ""
}

func declareInterface(u *ast.Unit, d *ast.InterfaceDecl, tr *typeResolver, errs *diag.List) *typeindex.ClassInfo {
	info := &typeindex.ClassInfo{Name: QualifiedName(u, d.Name), Interface: true}
	owner := info.Type()
	for _, e := range d.Extends {
		info.Interfaces = append(info.Interfaces, superName(tr.node(e, errs)))
	}
	for _, m := range d.Methods {
		sig := signature(owner, m.Name, m.Params, m.Result, tr, errs)
		sig.Abstract = true
		info.Methods = append(info.Methods, sig)
	}
	return info
}

func declareClass(u *ast.Unit, d *ast.ClassDecl, tr *typeResolver, errs *diag.List) *typeindex.ClassInfo {
	info := &typeindex.ClassInfo{Name: QualifiedName(u, d.Name), Super: types.Object.Name}
	owner := info.Type()
	if d.Super != nil {
		info.Super = superName(tr.node(d.Super, errs))
	}
	for _, i := range d.Implements {
		info.Interfaces = append(info.Interfaces, superName(tr.node(i, errs)))
	}
	for _, f := range d.Fields {
		info.Fields = append(info.Fields, &typeindex.Field{
			Owner:  owner,
			Name:   f.Name,
			Type:   tr.node(f.Type, errs),
			Static: f.Static,
			Final:  f.Readonly,
		})
	}
	for _, m := range d.Methods {
		if m.Constructor {
			sig := signature(owner, types.ConstructorName, m.Params, nil, tr, errs)
			info.Constructors = append(info.Constructors, sig)
			continue
		}
		sig := signature(owner, m.Name, m.Params, m.Result, tr, errs)
		sig.Static = m.Static
		info.Methods = append(info.Methods, sig)
	}
	if len(info.Constructors) == 0 {
		info.Constructors = append(info.Constructors, &types.Method{Owner: owner, Name: types.ConstructorName, Result: types.Void})
	}
	return info
}

func signature(owner *types.Class, name string, params []*ast.Param, result ast.TypeNode, tr *typeResolver, errs *diag.List) *types.Method {
	m := &types.Method{Owner: owner, Name: name, Result: types.Void}
	for i, p := range params {
		t := tr.node(p.Type, errs)
		if t == nil {
			errs.Add(diag.Errorf(p.NamePos, "parameter %s needs a type annotation", p.Name))
			t = types.Invalid
		}
		if p.Rest {
			if i != len(params)-1 {
				errs.Add(diag.Errorf(p.NamePos, "rest parameter %s must be last", p.Name))
			}
			if _, isArr := t.(*types.Array); !isArr && !types.IsInvalid(t) {
				t = &types.Array{Elem: t}
			}
			m.Varargs = true
		}
		m.Params = append(m.Params, t)
	}
	if result != nil {
		m.Result = tr.node(result, errs)
	}
	return m
}

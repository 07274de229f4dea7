package types

import "strings"

// ConstructorName is the member name carried by constructors.
const ConstructorName = "<init>"

// Method is a resolved host or unit method signature.
type Method struct {
	Owner    *Class
	Name     string
	Params   []Type
	Result   Type
	Varargs  bool
	Static   bool
	Abstract bool
	Default  bool
	// Since is the first platform version exposing the member; empty means always.
	Since string
}

func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }

// Descriptor returns the JVM method descriptor, e.g. "(ILjava/lang/String;)V".
func (m *Method) Descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p.Descriptor())
	}
	b.WriteByte(')')
	if m.Result == nil {
		b.WriteString(Void.Descriptor())
	} else {
		b.WriteString(m.Result.Descriptor())
	}
	return b.String()
}

// SameParams reports whether two methods take identical parameter lists.
func (m *Method) SameParams(o *Method) bool {
	if len(m.Params) != len(o.Params) {
		return false
	}
	for i := range m.Params {
		if !Equal(m.Params[i], o.Params[i]) {
			return false
		}
	}
	return true
}

func (m *Method) String() string {
	var b strings.Builder
	if m.Owner != nil {
		b.WriteString(m.Owner.Name)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.Varargs && i == len(m.Params)-1 {
			if arr, ok := p.(*Array); ok {
				b.WriteString(arr.Elem.String())
				b.WriteString("...")
				continue
			}
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	return b.String()
}

// VarargElem returns the element type of the trailing vararg parameter.
func (m *Method) VarargElem() (Type, bool) {
	if !m.Varargs || len(m.Params) == 0 {
		return nil, false
	}
	arr, ok := m.Params[len(m.Params)-1].(*Array)
	if !ok {
		return nil, false
	}
	return arr.Elem, true
}

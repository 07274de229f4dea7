// Package scope tracks lexical frames, declared bindings and the
// path-sensitive write facts needed to decide effective finality.
package scope

import (
	"tsbc/internal/token"
	"tsbc/internal/types"
)

type FrameKind int

const (
	FrameNamespace FrameKind = iota
	FrameClass
	FrameMethod
	FrameClosure
	FrameBlock
	FrameLoop
)

func (k FrameKind) String() string {
	switch k {
	case FrameNamespace:
		return "namespace"
	case FrameClass:
		return "class"
	case FrameMethod:
		return "method"
	case FrameClosure:
		return "closure"
	case FrameBlock:
		return "block"
	case FrameLoop:
		return "loop"
	}
	return "frame?"
}

type Mutability int

const (
	Let Mutability = iota
	Const
)

type BindingKind int

const (
	Local BindingKind = iota
	Param
	Field
	TypeName
)

// Binding is one declared name.
type Binding struct {
	Name       string
	Type       types.Type
	Mutability Mutability
	Kind       BindingKind
	Pos        token.Position

	Frame     *Frame // declaring frame
	Func      *Frame // enclosing method or closure frame; nil for fields and types
	LoopDepth int    // loops around the declaration inside Func
	Slot      int    // local slot inside Func, set by lowering

	Owner  *types.Class // fields only
	Static bool         // fields only
}

// IsVariable reports whether b lives in a method or closure frame.
func (b *Binding) IsVariable() bool { return b.Kind == Local || b.Kind == Param }

type Frame struct {
	Kind      FrameKind
	Parent    *Frame
	Func      *Frame // self for method and closure frames
	LoopDepth int
	// Data carries per-frame state owned by the caller, such as the
	// capture table of a closure frame.
	Data any

	bindings map[string]*Binding
	order    []*Binding
}

// Bindings returns the frame's bindings in declaration order.
func (f *Frame) Bindings() []*Binding { return f.order }

func (f *Frame) lookupLocal(name string) (*Binding, bool) {
	b, ok := f.bindings[name]
	return b, ok
}

// Scope is the frame chain of one unit being lowered.
type Scope struct {
	top   *Frame
	facts Facts
}

func New() *Scope {
	return &Scope{facts: make(Facts)}
}

func (s *Scope) Top() *Frame { return s.top }

// Func returns the innermost method or closure frame, or nil.
func (s *Scope) Func() *Frame {
	if s.top == nil {
		return nil
	}
	return s.top.Func
}

func (s *Scope) Push(kind FrameKind) *Frame {
	f := &Frame{Kind: kind, Parent: s.top, bindings: make(map[string]*Binding)}
	switch kind {
	case FrameMethod, FrameClosure:
		f.Func = f
	default:
		if s.top != nil {
			f.Func = s.top.Func
			f.LoopDepth = s.top.LoopDepth
		}
	}
	if kind == FrameLoop {
		f.LoopDepth++
	}
	s.top = f
	return f
}

func (s *Scope) Pop() {
	if s.top == nil {
		panic("scope: pop of empty scope")
	}
	s.top = s.top.Parent
}

// Enter makes f the innermost frame and returns the previous one. Lowering
// uses it to revisit code in the lexical context of an enclosing frame.
func (s *Scope) Enter(f *Frame) *Frame {
	prev := s.top
	s.top = f
	return prev
}

// Declare adds b to the innermost frame. It returns the existing binding
// and false when the name is already declared in that frame.
func (s *Scope) Declare(b *Binding) (*Binding, bool) {
	if prev, ok := s.top.lookupLocal(b.Name); ok {
		return prev, false
	}
	b.Frame = s.top
	if b.IsVariable() {
		b.Func = s.top.Func
		b.LoopDepth = s.top.LoopDepth
	}
	s.top.bindings[b.Name] = b
	s.top.order = append(s.top.order, b)
	return b, true
}

// Lookup resolves name from the innermost frame outwards.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	for f := s.top; f != nil; f = f.Parent {
		if b, ok := f.lookupLocal(name); ok {
			return b, true
		}
	}
	return nil, false
}

// Crossed returns the closure frames between the innermost frame and b's
// function, innermost first. It is empty when b is local to the current
// function or is not a variable.
func (s *Scope) Crossed(b *Binding) []*Frame {
	if !b.IsVariable() {
		return nil
	}
	var out []*Frame
	for f := s.Func(); f != nil && f != b.Func; f = EnclosingFunc(f) {
		out = append(out, f)
	}
	return out
}

// EnclosingFunc returns the method or closure frame enclosing closure
// frame f.
func EnclosingFunc(f *Frame) *Frame {
	if f.Parent == nil {
		return nil
	}
	return f.Parent.Func
}

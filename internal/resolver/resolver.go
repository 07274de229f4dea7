package resolver

import (
	"tsbc/internal/scope"
	"tsbc/internal/types"
)

// Capture describes a variable copied into a closure at creation time.
type Capture struct {
	Name    string
	Type    types.Type
	Binding *scope.Binding
	IsLocal bool // true: reads a local slot of the immediately enclosing function
	Index   int  // slot in the enclosing function's locals OR capture index of the enclosing closure
}

// FunctionInfo contains the locals and captures of one method or closure body.
type FunctionInfo struct {
	Frame        *scope.Frame
	Parent       *FunctionInfo // nil for methods
	Locals       []*scope.Binding
	Captures     []Capture
	CapturesThis bool

	byBinding map[*scope.Binding]int
}

// AddLocal assigns the next slot to b and returns it.
func (fi *FunctionInfo) AddLocal(b *scope.Binding) int {
	b.Slot = len(fi.Locals)
	fi.Locals = append(fi.Locals, b)
	return b.Slot
}

// CaptureIndex returns the capture index of b, if fi captures it.
func (fi *FunctionInfo) CaptureIndex(b *scope.Binding) (int, bool) {
	i, ok := fi.byBinding[b]
	return i, ok
}

func (fi *FunctionInfo) addCapture(c Capture) int {
	if i, ok := fi.byBinding[c.Binding]; ok {
		return i
	}
	fi.Captures = append(fi.Captures, c)
	fi.byBinding[c.Binding] = len(fi.Captures) - 1
	return len(fi.Captures) - 1
}

// Ref tells a function body how to read a variable: a slot of its own
// locals, or one of its captures.
type Ref struct {
	Capture bool
	Index   int
}

// Resolver owns the FunctionInfo of every method and closure frame of one
// unit. It holds no state shared across units.
type Resolver struct {
	funcInfos map[*scope.Frame]*FunctionInfo
}

func NewResolver() *Resolver {
	return &Resolver{funcInfos: make(map[*scope.Frame]*FunctionInfo)}
}

// Enter registers the method or closure frame f. The parent is the
// FunctionInfo of the function enclosing f, if any.
func (r *Resolver) Enter(f *scope.Frame) *FunctionInfo {
	info := &FunctionInfo{Frame: f, byBinding: make(map[*scope.Binding]int)}
	if f.Kind == scope.FrameClosure {
		if enc := scope.EnclosingFunc(f); enc != nil {
			info.Parent = r.funcInfos[enc]
		}
	}
	r.funcInfos[f] = info
	return info
}

// Info returns the FunctionInfo of frame f, or nil.
func (r *Resolver) Info(f *scope.Frame) *FunctionInfo { return r.funcInfos[f] }

// Resolve returns how the innermost function reaches variable b. When b
// belongs to an outer function, every closure between the two captures
// it, the outermost one reading b's slot and each inner one reading its
// enclosing closure's capture.
func (r *Resolver) Resolve(s *scope.Scope, b *scope.Binding) Ref {
	crossed := s.Crossed(b)
	if len(crossed) == 0 {
		return Ref{Index: b.Slot}
	}
	idx := b.Slot
	isLocal := true
	for i := len(crossed) - 1; i >= 0; i-- {
		info := r.funcInfos[crossed[i]]
		idx = info.addCapture(Capture{
			Name:    b.Name,
			Type:    b.Type,
			Binding: b,
			IsLocal: isLocal,
			Index:   idx,
		})
		isLocal = false
	}
	return Ref{Capture: true, Index: idx}
}

// UseThis marks every closure between the innermost function and its
// method as capturing the receiver.
func (r *Resolver) UseThis(s *scope.Scope) {
	for f := s.Func(); f != nil && f.Kind == scope.FrameClosure; f = scope.EnclosingFunc(f) {
		if info := r.funcInfos[f]; info != nil {
			info.CapturesThis = true
		}
	}
}

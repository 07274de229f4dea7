package ir

import (
	"tsbc/internal/diag"
	"tsbc/internal/token"
)

type frameKind int

const (
	frameLoop frameKind = iota
	frameLabeled
	frameRegion
	frameTry
)

type vframe struct {
	kind   frameKind
	id     int
	region *Region
	try    *Try
}

type validator struct {
	pos  token.Position
	errs diag.List
}

// Validate checks that every exit edge of every body in u runs the
// cleanups between it and its target, and that every region closes its
// resource on the normal and the exceptional path. Violations are
// reported as *diag.InternalError.
func Validate(u *Unit) error {
	v := &validator{pos: token.Position{File: u.Source}}
	for _, c := range u.Classes {
		for _, m := range c.Methods {
			if m.Body != nil {
				v.block(m.Body, nil)
			}
		}
	}
	for _, c := range u.Closures {
		v.block(c.Body, nil)
	}
	return v.errs.Err()
}

func (v *validator) errorf(pos token.Position, format string, args ...any) {
	if !pos.IsValid() {
		pos = v.pos
	}
	v.errs.Add(diag.Internalf(pos, format, args...))
}

func (v *validator) block(b *Block, stack []vframe) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		v.stmt(s, stack)
	}
}

func push(stack []vframe, f vframe) []vframe {
	out := make([]vframe, len(stack), len(stack)+1)
	copy(out, stack)
	return append(out, f)
}

func (v *validator) stmt(s Stmt, stack []vframe) {
	switch s := s.(type) {
	case *Block:
		v.block(s, stack)
	case *If:
		v.block(s.Then, stack)
		v.block(s.Else, stack)
	case *Loop:
		v.block(s.Body, push(stack, vframe{kind: frameLoop, id: s.ID}))
	case *Labeled:
		v.block(s.Body, push(stack, vframe{kind: frameLabeled, id: s.ID}))
	case *Try:
		inner := push(stack, vframe{kind: frameTry, id: s.ID, try: s})
		v.block(s.Body, inner)
		v.block(s.Catch, inner)
		v.block(s.Finally, stack)
	case *Region:
		v.region(s, stack)
	case *Exit:
		v.exit(s, stack)
	}
}

func (v *validator) region(r *Region, stack []vframe) {
	if r.Resource == nil {
		v.errorf(r.Pos, "region %d has no resource", r.ID)
		return
	}
	if r.Handler == nil || !closes(r.Handler.Body, r.Resource) {
		v.errorf(r.Pos, "region %d (%s) does not close its resource on the exceptional path", r.ID, r.Resource.Name)
	} else if n := len(r.Handler.Body.Stmts); n == 0 {
		v.errorf(r.Pos, "region %d has an empty handler", r.ID)
	} else if rt, ok := r.Handler.Body.Stmts[n-1].(*Rethrow); !ok || rt.Slot != r.Handler.Slot {
		v.errorf(r.Pos, "region %d handler does not rethrow the primary exception", r.ID)
	}
	if !Terminates(r.Body) && !closes(r.Exit, r.Resource) {
		v.errorf(r.Pos, "region %d (%s) does not close its resource on fallthrough", r.ID, r.Resource.Name)
	}
	v.block(r.Body, push(stack, vframe{kind: frameRegion, id: r.ID, region: r}))
	v.block(r.Exit, stack)
	if r.Handler != nil {
		v.block(r.Handler.Body, stack)
	}
}

func (v *validator) exit(e *Exit, stack []vframe) {
	base := 0
	if e.Kind != ExitReturn {
		base = -1
		for i := len(stack) - 1; i >= 0; i-- {
			f := stack[i]
			if f.id != e.Target {
				continue
			}
			if f.kind == frameLoop || (f.kind == frameLabeled && e.Kind == ExitBreak) {
				base = i + 1
			}
			break
		}
		if base < 0 {
			v.errorf(e.Pos, "%s has no enclosing target %d", e.Kind, e.Target)
			return
		}
	}

	var want []int // stack positions of the cleanups crossed, innermost first
	for i := len(stack) - 1; i >= base; i-- {
		if stack[i].kind == frameRegion || stack[i].kind == frameTry {
			want = append(want, i)
		}
	}
	if len(want) != len(e.Unwind) {
		v.errorf(e.Pos, "%s crosses %d cleanups but unwinds %d", e.Kind, len(want), len(e.Unwind))
		return
	}
	for k, pos := range want {
		f := stack[pos]
		step := e.Unwind[k]
		switch {
		case f.kind == frameRegion && (step.Kind != UnwindClose || step.ID != f.id):
			v.errorf(e.Pos, "%s unwind step %d: want close of region %d, got %s %d", e.Kind, k, f.id, step.Kind, step.ID)
			return
		case f.kind == frameRegion && !closes(step.Body, f.region.Resource):
			v.errorf(e.Pos, "%s unwind step %d does not close %s", e.Kind, k, f.region.Resource.Name)
			return
		case f.kind == frameTry && (step.Kind != leaveKind(f.try) || step.ID != f.id):
			v.errorf(e.Pos, "%s unwind step %d: want %s of try %d, got %s %d", e.Kind, k, leaveKind(f.try), f.id, step.Kind, step.ID)
			return
		case step.Body == nil:
			v.errorf(e.Pos, "%s unwind step %d has no body", e.Kind, k)
			return
		}
		v.block(step.Body, stack[:pos])
	}
	if e.Value != nil && len(e.Unwind) > 0 && e.Spill < 0 {
		v.errorf(e.Pos, "return value is not spilled before unwinding")
	}
}

// leaveKind is the unwind step an exit leaving t carries.
func leaveKind(t *Try) UnwindKind {
	if t.Finally != nil {
		return UnwindFinally
	}
	return UnwindLeave
}

// closes reports whether b starts with the close of r.
func closes(b *Block, r *Resource) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	c, ok := b.Stmts[0].(*Close)
	return ok && c.Resource == r
}

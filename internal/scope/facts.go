package scope

import (
	"math"

	"tsbc/internal/token"
)

// Unbounded is the saturated write count.
const Unbounded = math.MaxInt32

// Fact is what is known about a variable on the current path.
type Fact struct {
	Writes   int
	Captured bool
	Site     token.Position // first closure creation site capturing it
}

// Facts maps variables to their facts. Missing entries are the zero Fact.
type Facts map[*Binding]Fact

func (f Facts) clone() Facts {
	out := make(Facts, len(f))
	for b, v := range f {
		out[b] = v
	}
	return out
}

// Fact returns the current fact for b.
func (s *Scope) Fact(b *Binding) Fact { return s.facts[b] }

func (s *Scope) Writes(b *Binding) int { return s.facts[b].Writes }

// RecordWrite counts one write to b at the innermost frame and returns the
// fact as it was before the write. A write nested in a loop that does not
// also enclose the declaration saturates the count.
func (s *Scope) RecordWrite(b *Binding) Fact {
	prev := s.facts[b]
	next := prev
	switch {
	case s.carried(b):
		next.Writes = Unbounded
	case next.Writes < Unbounded:
		next.Writes++
	}
	s.facts[b] = next
	return prev
}

// MarkCaptured records that a closure created at site captures b.
func (s *Scope) MarkCaptured(b *Binding, site token.Position) {
	f := s.facts[b]
	if !f.Captured {
		f.Captured = true
		f.Site = site
	}
	s.facts[b] = f
}

// Snapshot copies the facts of the current path.
func (s *Scope) Snapshot() Facts { return s.facts.clone() }

// Restore replaces the facts of the current path.
func (s *Scope) Restore(f Facts) { s.facts = f.clone() }

// carried reports whether a loop enclosing the innermost frame, but not
// the declaration of b, brings b back to code that already ran.
func (s *Scope) carried(b *Binding) bool {
	return s.top != nil && s.top.Func == b.Func && s.top.LoopDepth > b.LoopDepth
}

// Merge joins the facts of alternative paths: write counts take the
// maximum, capture marks take the union.
func Merge(paths ...Facts) Facts {
	out := make(Facts)
	for _, p := range paths {
		for b, v := range p {
			cur, seen := out[b]
			if !seen {
				out[b] = v
				continue
			}
			out[b] = join(cur, v)
		}
	}
	return out
}

// Rejoin returns the facts after a branch that cannot complete normally:
// those of cont, the path that does. Bindings carried by an enclosing
// loop keep the facts of left too, since a later iteration reaches the
// code after the branch.
func (s *Scope) Rejoin(cont, left Facts) Facts {
	out := cont.clone()
	for b, v := range left {
		if s.carried(b) {
			out[b] = join(out[b], v)
		}
	}
	return out
}

func join(a, b Fact) Fact {
	if b.Writes > a.Writes {
		a.Writes = b.Writes
	}
	if b.Captured && !a.Captured {
		a.Captured = true
		a.Site = b.Site
	}
	return a
}

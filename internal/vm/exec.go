package vm

import (
	"errors"
	"fmt"

	"tsbc/internal/ir"
	"tsbc/internal/value"
)

type completionKind int

const (
	completeNormal completionKind = iota
	completeReturn
	completeBreak
	completeContinue
)

func (k completionKind) String() string {
	switch k {
	case completeReturn:
		return "return"
	case completeBreak:
		return "break"
	case completeContinue:
		return "continue"
	}
	return "normal"
}

// completion is how a statement finished. Exceptions travel as
// *value.Thrown errors instead. An exit still on its way out of a try
// keeps the Exit and the index of its next unwind step in pending.
type completion struct {
	kind   completionKind
	target int
	value  value.Value

	pending *ir.Exit
	step    int
}

var normal = completion{}

func exitCompletion(e *ir.Exit, v value.Value) completion {
	switch e.Kind {
	case ir.ExitBreak:
		return completion{kind: completeBreak, target: e.Target}
	case ir.ExitContinue:
		return completion{kind: completeContinue, target: e.Target}
	}
	return completion{kind: completeReturn, value: v}
}

// thrown unwraps an exception error. Other errors are faults of the VM
// and are never caught by program code.
func thrown(err error) (*value.Thrown, bool) {
	var t *value.Thrown
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

func (vm *VM) exec(fr *frame, s ir.Stmt) (completion, error) {
	switch s := s.(type) {
	case *ir.Block:
		for _, st := range s.Stmts {
			c, err := vm.exec(fr, st)
			if err != nil || c.kind != completeNormal {
				return c, err
			}
		}
		return normal, nil

	case *ir.ExprStmt:
		_, err := vm.eval(fr, s.X)
		return normal, err

	case *ir.If:
		cond, err := vm.eval(fr, s.Cond)
		if err != nil {
			return normal, err
		}
		if cond.Bool {
			return vm.exec(fr, s.Then)
		}
		if s.Else != nil {
			return vm.exec(fr, s.Else)
		}
		return normal, nil

	case *ir.Loop:
		return vm.loop(fr, s)

	case *ir.Labeled:
		c, err := vm.exec(fr, s.Body)
		if err == nil && c.kind == completeBreak && c.target == s.ID {
			return normal, nil
		}
		return c, err

	case *ir.Exit:
		return vm.exit(fr, s)

	case *ir.Throw:
		v, err := vm.eval(fr, s.X)
		if err != nil {
			return normal, err
		}
		if v.Kind != value.KindObject {
			return normal, value.Throw("java.lang.NullPointerException", "cannot throw null")
		}
		return normal, &value.Thrown{Exc: v.Obj}

	case *ir.Try:
		return vm.try(fr, s)

	case *ir.Region:
		return vm.region(fr, s)

	case *ir.Close:
		return normal, vm.close(fr, s)

	case *ir.Rethrow:
		v := fr.locals[s.Slot]
		if v.Kind != value.KindObject {
			return normal, fmt.Errorf("vm: rethrow of empty slot %d", s.Slot)
		}
		return normal, &value.Thrown{Exc: v.Obj}
	}
	return normal, fmt.Errorf("vm: unknown statement %T", s)
}

func (vm *VM) loop(fr *frame, l *ir.Loop) (completion, error) {
	for first := true; ; first = false {
		if l.Cond != nil && !(l.PostTest && first) {
			cond, err := vm.eval(fr, l.Cond)
			if err != nil {
				return normal, err
			}
			if !cond.Bool {
				return normal, nil
			}
		}
		c, err := vm.exec(fr, l.Body)
		if err != nil {
			return normal, err
		}
		switch c.kind {
		case completeBreak:
			if c.target == l.ID {
				return normal, nil
			}
			return c, nil
		case completeContinue:
			if c.target != l.ID {
				return c, nil
			}
		case completeReturn:
			return c, nil
		}
		if l.Post != nil {
			if _, err := vm.eval(fr, l.Post); err != nil {
				return normal, err
			}
		}
	}
}

// exit evaluates the exit value and runs the unwind steps innermost
// first. It pauses at the first try the exit leaves; that try resumes the
// remaining steps once control is outside its protected range.
func (vm *VM) exit(fr *frame, e *ir.Exit) (completion, error) {
	var v value.Value
	if e.Value != nil {
		var err error
		if v, err = vm.eval(fr, e.Value); err != nil {
			return normal, err
		}
		if e.Spill >= 0 {
			fr.locals[e.Spill] = v
		}
	}
	c := exitCompletion(e, v)
	c.pending = e
	return vm.unwind(fr, c, -1)
}

// unwind runs the steps of c.pending from c.step. The step of try owner
// runs; the step of any other try pauses the exit there. A step that
// throws or exits abruptly wins.
func (vm *VM) unwind(fr *frame, c completion, owner int) (completion, error) {
	e := c.pending
	for ; c.step < len(e.Unwind); c.step++ {
		step := e.Unwind[c.step]
		if step.Kind != ir.UnwindClose && step.ID != owner {
			return c, nil
		}
		sc, err := vm.exec(fr, step.Body)
		if err != nil || sc.kind != completeNormal {
			return sc, err
		}
	}
	if e.Value != nil && e.Spill >= 0 {
		c.value = fr.locals[e.Spill]
	}
	c.pending = nil
	return c, nil
}

// leaving reports whether c is an exit paused at the boundary of t.
func leaving(c completion, t *ir.Try) bool {
	if c.pending == nil || c.step >= len(c.pending.Unwind) {
		return false
	}
	step := c.pending.Unwind[c.step]
	return step.Kind != ir.UnwindClose && step.ID == t.ID
}

// try runs a user try statement. An exit leaving the body or the catch
// pauses at t; its copy of the finally block and its outer steps run
// here, where the catch of t no longer applies.
func (vm *VM) try(fr *frame, t *ir.Try) (completion, error) {
	c, err := vm.exec(fr, t.Body)
	if err == nil && leaving(c, t) {
		return vm.unwind(fr, c, t.ID)
	}
	if err != nil {
		th, ok := thrown(err)
		if !ok {
			return normal, err
		}
		if t.Catch != nil {
			fr.locals[t.CatchSlot] = value.Obj(th.Exc)
			c, err = vm.exec(fr, t.Catch)
			if err == nil && leaving(c, t) {
				return vm.unwind(fr, c, t.ID)
			}
			if err != nil {
				if _, ok := thrown(err); !ok {
					return normal, err
				}
			}
		}
	}
	if t.Finally == nil || (err == nil && c.kind != completeNormal) {
		return c, err
	}
	fc, ferr := vm.exec(fr, t.Finally)
	if ferr != nil || fc.kind != completeNormal {
		return fc, ferr
	}
	return c, err
}

func (vm *VM) region(fr *frame, r *ir.Region) (completion, error) {
	fr.locals[r.Resource.State] = value.Int(int64(ir.StateOpen))
	c, err := vm.exec(fr, r.Body)
	if err != nil {
		th, ok := thrown(err)
		if !ok || r.Handler == nil {
			return normal, err
		}
		fr.locals[r.Handler.Slot] = value.Obj(th.Exc)
		return vm.exec(fr, r.Handler.Body)
	}
	if c.kind == completeNormal && r.Exit != nil {
		return vm.exec(fr, r.Exit)
	}
	return c, nil
}

// close runs the cleanup of one resource. The state moves to closed even
// when close throws, so the resource is never closed twice.
func (vm *VM) close(fr *frame, c *ir.Close) error {
	res := c.Resource
	if ir.ResourceState(fr.locals[res.State].Int) != ir.StateOpen {
		return nil
	}
	fr.locals[res.State] = value.Int(int64(ir.StateClosing))
	v := fr.locals[res.Slot]
	if v.IsNull() {
		fr.locals[res.State] = value.Int(int64(ir.StateClosed))
		return nil
	}
	_, err := vm.dispatch(v, res.Close, nil)
	fr.locals[res.State] = value.Int(int64(ir.StateClosed))
	if err == nil {
		return nil
	}
	th, ok := thrown(err)
	if !ok || c.Into < 0 {
		return err
	}
	primary := fr.locals[c.Into]
	if primary.Kind != value.KindObject {
		fr.locals[c.Into] = value.Obj(th.Exc)
		return nil
	}
	if e := primary.Obj.Exception(); e != nil && primary.Obj != th.Exc {
		e.Suppressed = append(e.Suppressed, th.Exc)
	}
	return nil
}

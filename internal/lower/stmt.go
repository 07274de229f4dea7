package lower

import (
	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/resolver"
	"tsbc/internal/scope"
	"tsbc/internal/token"
	"tsbc/internal/types"
)

// funcState is the per-body state of the method or closure being lowered.
type funcState struct {
	info   *resolver.FunctionInfo
	static bool
	init   bool // constructor or static initializer
	result types.Type
	site   token.Position // closure creation site, or the method name

	frames    []exitFrame
	nextID    int
	synthetic map[int]bool
}

type frameKind int

const (
	frameLoop frameKind = iota
	frameLabeled
	frameRegion
	frameTry
)

// exitFrame is one construct an early exit may target or has to unwind.
type exitFrame struct {
	kind  frameKind
	id    int
	label string

	resource *ir.Resource  // regions
	finally  *ast.BlockStmt // try statements; nil without a finally block
	top      *scope.Frame   // innermost scope frame at the try

	flows []scope.Facts // facts of the break and continue exits reaching the frame
}

func (fs *funcState) newID() int {
	id := fs.nextID
	fs.nextID++
	return id
}

func (fs *funcState) push(f exitFrame) { fs.frames = append(fs.frames, f) }
func (fs *funcState) pop()             { fs.frames = fs.frames[:len(fs.frames)-1] }

func (fs *funcState) locals() []ir.Local {
	out := make([]ir.Local, len(fs.info.Locals))
	for i, b := range fs.info.Locals {
		out[i] = ir.Local{Slot: b.Slot, Name: b.Name, Type: b.Type, Synthetic: fs.synthetic[b.Slot]}
	}
	return out
}

// temp allocates a synthetic local that no source name refers to.
func (l *lowerer) temp(name string, t types.Type) int {
	slot := l.fn.info.AddLocal(&scope.Binding{Name: name, Type: t, Kind: scope.Local})
	if l.fn.synthetic == nil {
		l.fn.synthetic = make(map[int]bool)
	}
	l.fn.synthetic[slot] = true
	return slot
}

func (l *lowerer) stmts(list []ast.Stmt) []ir.Stmt {
	return l.seq(list, 0)
}

// seq lowers the statements of one block. index counts the using
// declarations already seen in the block.
func (l *lowerer) seq(list []ast.Stmt, index int) []ir.Stmt {
	var out []ir.Stmt
	for i, s := range list {
		if u, ok := s.(*ast.UsingStmt); ok {
			if len(u.Decls) == 0 {
				continue
			}
			rest := list[i+1:]
			return append(out, l.using(u, 0, index, func(n int) []ir.Stmt { return l.seq(rest, n) })...)
		}
		out = append(out, l.stmt(s)...)
	}
	return out
}

func (l *lowerer) block(b *ast.BlockStmt) *ir.Block {
	l.scope.Push(scope.FrameBlock)
	defer l.scope.Pop()
	return &ir.Block{Stmts: l.stmts(b.Stmts)}
}

// body lowers the body of a compound statement in its own frame.
func (l *lowerer) body(s ast.Stmt) *ir.Block {
	if b, ok := s.(*ast.BlockStmt); ok {
		return l.block(b)
	}
	l.scope.Push(scope.FrameBlock)
	defer l.scope.Pop()
	return &ir.Block{Stmts: l.stmts([]ast.Stmt{s})}
}

func one(s ir.Stmt) []ir.Stmt {
	if s == nil {
		return nil
	}
	return []ir.Stmt{s}
}

func (l *lowerer) stmt(s ast.Stmt) []ir.Stmt {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return one(l.block(s))
	case *ast.VarDeclStmt:
		return l.varDecl(s)
	case *ast.UsingStmt:
		if len(s.Decls) == 0 {
			return nil
		}
		return l.using(s, 0, 0, nil)
	case *ast.ExprStmt:
		return one(&ir.ExprStmt{X: l.expr(s.Expression)})
	case *ast.IfStmt:
		return one(l.ifStmt(s))
	case *ast.ReturnStmt:
		return one(l.ret(s))
	case *ast.ThrowStmt:
		x := l.expr(s.Expr)
		if t := x.Type(); !types.IsInvalid(t) && !l.idx.IsAssignable(t, types.Throwable) {
			l.report(&diag.TypeMismatchError{Pos: s.Expr.Pos(), From: t, To: types.Throwable, Context: "throw"})
		}
		return one(&ir.Throw{X: x})
	case *ast.BreakStmt:
		return one(l.jump(ir.ExitBreak, s.Label, s.BreakPos))
	case *ast.ContinueStmt:
		return one(l.jump(ir.ExitContinue, s.Label, s.ContinuePos))
	case *ast.LabeledStmt:
		return one(l.labeled(s))
	case *ast.TryStmt:
		return one(l.try(s))
	case *ast.WhileStmt:
		return one(l.while(s, ""))
	case *ast.DoWhileStmt:
		return one(l.doWhile(s, ""))
	case *ast.ForStmt:
		return one(l.forStmt(s, ""))
	}
	l.report(diag.Internalf(s.Pos(), "unexpected statement %T", s))
	return nil
}

func (l *lowerer) varDecl(s *ast.VarDeclStmt) []ir.Stmt {
	var declared types.Type
	if s.Type != nil {
		declared = l.typeOf(s.Type)
	}
	var val ir.Expr
	switch {
	case s.Value != nil:
		val = l.exprWant(s.Value, declared)
		if declared != nil {
			val = l.coerce(val, declared, s.Value.Pos(), "initializer of "+s.Name)
			break
		}
		declared = val.Type()
		switch {
		case types.IsNull(declared):
			l.errorf(s.NamePos, "cannot infer the type of %s from null", s.Name)
			declared = types.Invalid
		case types.IsVoid(declared):
			l.errorf(s.NamePos, "%s is initialized with a void value", s.Name)
			declared = types.Invalid
		}
	case declared == nil:
		l.errorf(s.NamePos, "%s needs a type annotation or an initializer", s.Name)
		declared = types.Invalid
	}

	mut := scope.Let
	if s.Kind == ast.DeclConst {
		mut = scope.Const
		if s.Value == nil {
			l.errorf(s.NamePos, "const %s must be initialized", s.Name)
		}
	}
	b := &scope.Binding{Name: s.Name, Type: declared, Mutability: mut, Kind: scope.Local, Pos: s.NamePos}
	if _, ok := l.scope.Declare(b); !ok {
		l.errorf(s.NamePos, "%s is already declared in this block", s.Name)
		return nil
	}
	slot := l.fn.info.AddLocal(b)
	if val == nil {
		return nil
	}
	l.scope.RecordWrite(b)
	return []ir.Stmt{&ir.ExprStmt{X: &ir.Assign{Target: &ir.Load{Slot: slot, T: declared}, Op: token.Assign, Value: val}}}
}

// ifStmt joins the facts of the branches that complete normally. Exits
// carry theirs to their targets.
func (l *lowerer) ifStmt(s *ast.IfStmt) ir.Stmt {
	out := &ir.If{Cond: l.condition(s.Cond)}
	before := l.scope.Snapshot()
	out.Then = l.body(s.Then)
	afterThen := l.scope.Snapshot()
	l.scope.Restore(before)
	if s.Else != nil {
		out.Else = l.body(s.Else)
	}
	afterElse := l.scope.Snapshot()
	switch {
	case ir.Terminates(out.Then) && !(out.Else != nil && ir.Terminates(out.Else)):
		l.scope.Restore(l.scope.Rejoin(afterElse, afterThen))
	case out.Else != nil && ir.Terminates(out.Else) && !ir.Terminates(out.Then):
		l.scope.Restore(l.scope.Rejoin(afterThen, afterElse))
	default:
		l.scope.Restore(scope.Merge(afterThen, afterElse))
	}
	return out
}

func (l *lowerer) ret(s *ast.ReturnStmt) ir.Stmt {
	result := l.fn.result
	var val ir.Expr
	switch {
	case s.Result == nil:
		if !types.IsVoid(result) && !types.IsInvalid(result) {
			l.errorf(s.ReturnPos, "missing return value of type %s", result)
		}
	case types.IsVoid(result):
		l.expr(s.Result)
		l.errorf(s.ReturnPos, "unexpected return value in a void body")
	default:
		val = l.coerce(l.exprWant(s.Result, result), result, s.Result.Pos(), "return")
	}
	return l.exit(ir.ExitReturn, 0, 0, val, s.ReturnPos)
}

// exit builds an early exit leaving every frame from base outwards.
// Regions and try statements in between become unwind steps, innermost
// first.
func (l *lowerer) exit(kind ir.ExitKind, target, base int, val ir.Expr, pos token.Position) *ir.Exit {
	e := &ir.Exit{Kind: kind, Target: target, Value: val, Spill: -1, Pos: pos}
	frames := l.fn.frames
	flow := l.scope.Snapshot()
	for i := len(frames) - 1; i >= base; i-- {
		f := frames[i]
		switch f.kind {
		case frameRegion:
			e.Unwind = append(e.Unwind, ir.UnwindStep{
				Kind: ir.UnwindClose,
				ID:   f.id,
				Body: &ir.Block{Stmts: []ir.Stmt{&ir.Close{Resource: f.resource, Into: -1}}},
			})
		case frameTry:
			if f.finally == nil {
				e.Unwind = append(e.Unwind, ir.UnwindStep{Kind: ir.UnwindLeave, ID: f.id, Body: &ir.Block{}})
				continue
			}
			e.Unwind = append(e.Unwind, ir.UnwindStep{Kind: ir.UnwindFinally, ID: f.id, Body: l.inlineFinally(i, &flow)})
		}
	}
	if kind != ir.ExitReturn && base > 0 {
		frames[base-1].flows = append(frames[base-1].flows, flow)
	}
	if val != nil && len(e.Unwind) > 0 {
		e.Spill = l.temp("$ret", val.Type())
	}
	return e
}

// inlineFinally lowers a copy of the finally block of frame i as seen
// from outside its try statement. flow holds the facts of the exit path
// and gains the writes of the copy.
func (l *lowerer) inlineFinally(i int, flow *scope.Facts) *ir.Block {
	fs := l.fn
	f := fs.frames[i]
	saved := fs.frames
	fs.frames = append([]exitFrame(nil), saved[:i]...)
	prev := l.scope.Enter(f.top)
	var b *ir.Block
	l.muted(func() {
		l.scope.Restore(*flow)
		b = l.block(f.finally)
		*flow = l.scope.Snapshot()
	})
	l.scope.Enter(prev)
	fs.frames = saved
	return b
}

func (l *lowerer) jump(kind ir.ExitKind, label string, pos token.Position) ir.Stmt {
	frames := l.fn.frames
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		switch {
		case label == "":
			if f.kind != frameLoop {
				continue
			}
		case f.label != label:
			continue
		case f.kind == frameLabeled && kind == ir.ExitContinue:
			l.errorf(pos, "continue target %s is not a loop", label)
			return nil
		}
		return l.exit(kind, f.id, i+1, nil, pos)
	}
	switch {
	case label != "":
		l.errorf(pos, "undefined label %s", label)
	case kind == ir.ExitBreak:
		l.errorf(pos, "break outside a loop")
	default:
		l.errorf(pos, "continue outside a loop")
	}
	return nil
}

func (l *lowerer) labelInUse(label string) bool {
	for _, f := range l.fn.frames {
		if f.label == label {
			return true
		}
	}
	return false
}

func (l *lowerer) labeled(s *ast.LabeledStmt) ir.Stmt {
	if l.labelInUse(s.Label) {
		l.errorf(s.LabelPos, "label %s is already in use", s.Label)
	}
	switch body := s.Body.(type) {
	case *ast.WhileStmt:
		return l.while(body, s.Label)
	case *ast.DoWhileStmt:
		return l.doWhile(body, s.Label)
	case *ast.ForStmt:
		return l.forStmt(body, s.Label)
	}
	out := &ir.Labeled{ID: l.fn.newID(), Label: s.Label}
	l.fn.push(exitFrame{kind: frameLabeled, id: out.ID, label: s.Label})
	before := l.scope.Snapshot()
	out.Body = l.body(s.Body)
	l.join(out.Body, before)
	return out
}

func (l *lowerer) loopBody(id int, label string, body ast.Stmt) *ir.Block {
	l.fn.push(exitFrame{kind: frameLoop, id: id, label: label})
	before := l.scope.Snapshot()
	b := l.body(body)
	l.join(b, before)
	return b
}

// join pops the innermost exit frame and continues with the facts of
// every path leaving it: skipping the body, falling through it, and the
// jumps that targeted the frame.
func (l *lowerer) join(body *ir.Block, before scope.Facts) {
	f := l.fn.frames[len(l.fn.frames)-1]
	l.fn.pop()
	paths := append([]scope.Facts{before}, f.flows...)
	if !ir.Terminates(body) {
		paths = append(paths, l.scope.Snapshot())
	}
	l.scope.Restore(l.scope.Rejoin(scope.Merge(paths...), l.scope.Snapshot()))
}

func (l *lowerer) while(s *ast.WhileStmt, label string) ir.Stmt {
	out := &ir.Loop{ID: l.fn.newID(), Label: label}
	l.scope.Push(scope.FrameLoop)
	defer l.scope.Pop()
	out.Cond = l.condition(s.Cond)
	out.Body = l.loopBody(out.ID, label, s.Body)
	return out
}

func (l *lowerer) doWhile(s *ast.DoWhileStmt, label string) ir.Stmt {
	out := &ir.Loop{ID: l.fn.newID(), Label: label, PostTest: true}
	l.scope.Push(scope.FrameLoop)
	defer l.scope.Pop()
	out.Body = l.loopBody(out.ID, label, s.Body)
	out.Cond = l.condition(s.Cond)
	return out
}

// forStmt runs Init once in a frame of its own, so variables it declares
// live outside the per-iteration loop frame. A using initializer protects
// the whole loop.
func (l *lowerer) forStmt(s *ast.ForStmt, label string) ir.Stmt {
	l.scope.Push(scope.FrameBlock)
	defer l.scope.Pop()

	loop := func() ir.Stmt {
		out := &ir.Loop{ID: l.fn.newID(), Label: label}
		l.scope.Push(scope.FrameLoop)
		defer l.scope.Pop()
		if s.Cond != nil {
			out.Cond = l.condition(s.Cond)
		}
		out.Body = l.loopBody(out.ID, label, s.Body)
		if s.Post != nil {
			out.Post = l.expr(s.Post)
		}
		return out
	}

	var init []ir.Stmt
	switch in := s.Init.(type) {
	case nil:
		return loop()
	case *ast.UsingStmt:
		if len(in.Decls) > 0 {
			return &ir.Block{Stmts: l.using(in, 0, 0, func(int) []ir.Stmt { return one(loop()) })}
		}
	default:
		init = l.stmt(in)
	}
	return &ir.Block{Stmts: append(init, loop())}
}

func (l *lowerer) try(s *ast.TryStmt) ir.Stmt {
	out := &ir.Try{ID: l.fn.newID(), CatchSlot: -1}
	l.fn.push(exitFrame{kind: frameTry, id: out.ID, finally: s.Finally, top: l.scope.Top()})
	out.Body = l.block(s.Body)
	if s.CatchBody != nil {
		l.scope.Push(scope.FrameBlock)
		if s.CatchName == "" {
			out.CatchSlot = l.temp("$caught", types.Throwable)
		} else {
			b := &scope.Binding{Name: s.CatchName, Type: types.Throwable, Kind: scope.Local, Pos: s.CatchPos}
			l.scope.Declare(b)
			out.CatchSlot = l.fn.info.AddLocal(b)
			l.scope.RecordWrite(b)
		}
		out.Catch = &ir.Block{Stmts: l.stmts(s.CatchBody.Stmts)}
		l.scope.Pop()
	}
	l.fn.pop()
	if s.Finally != nil {
		out.Finally = l.block(s.Finally)
	}
	return out
}

// using lowers declarator k of u and everything tail lowers after it
// into a region; later declarators nest inside earlier ones, so the
// normal path closes them in reverse order. tail receives the using
// index of the next declaration and may be nil.
func (l *lowerer) using(u *ast.UsingStmt, k, index int, tail func(index int) []ir.Stmt) []ir.Stmt {
	d := u.Decls[k]
	var declared types.Type
	if d.Type != nil {
		declared = l.typeOf(d.Type)
	}
	var val ir.Expr
	switch {
	case d.Value != nil:
		val = l.exprWant(d.Value, declared)
		if declared == nil {
			declared = val.Type()
		} else {
			val = l.coerce(val, declared, d.Value.Pos(), "using "+d.Name)
		}
	case declared == nil:
		l.errorf(d.NamePos, "using %s needs a type annotation or an initializer", d.Name)
		declared = types.Invalid
		val = bad()
	default:
		val = &ir.Const{T: types.Null, Kind: ir.ConstNull}
	}
	closeM := l.closeMethod(d, declared)

	b := &scope.Binding{Name: d.Name, Type: declared, Mutability: scope.Const, Kind: scope.Local, Pos: d.NamePos}
	if _, ok := l.scope.Declare(b); !ok {
		l.errorf(d.NamePos, "%s is already declared in this block", d.Name)
	}
	slot := l.fn.info.AddLocal(b)
	l.scope.RecordWrite(b)
	res := &ir.Resource{
		Name:  d.Name,
		Type:  declared,
		Index: index,
		Slot:  slot,
		State: l.temp(d.Name+"$state", types.Int),
		Close: closeM,
		Pos:   d.NamePos,
	}
	init := &ir.ExprStmt{X: &ir.Assign{Target: &ir.Load{Slot: slot, T: declared}, Op: token.Assign, Value: val}}

	region := &ir.Region{ID: l.fn.newID(), Resource: res, Pos: d.NamePos}
	l.fn.push(exitFrame{kind: frameRegion, id: region.ID, resource: res})
	var body []ir.Stmt
	switch {
	case k+1 < len(u.Decls):
		body = l.using(u, k+1, index+1, tail)
	case tail != nil:
		body = tail(index + 1)
	}
	l.fn.pop()

	region.Body = &ir.Block{Stmts: body}
	if !ir.Terminates(region.Body) {
		region.Exit = &ir.Block{Stmts: []ir.Stmt{&ir.Close{Resource: res, Into: -1}}}
	}
	exc := l.temp("$exc", types.Throwable)
	region.Handler = &ir.Handler{Slot: exc, Body: &ir.Block{Stmts: []ir.Stmt{
		&ir.Close{Resource: res, Into: exc},
		&ir.Rethrow{Slot: exc},
	}}}
	return []ir.Stmt{init, region}
}

// closeMethod finds the zero-argument instance close of a resource type.
func (l *lowerer) closeMethod(d *ast.UsingDecl, t types.Type) *types.Method {
	if types.IsInvalid(t) {
		return nil
	}
	if types.IsReference(t) && !types.IsNull(t) {
		for _, m := range l.idx.Lookup(t, "close", 0) {
			if !m.Static && len(m.Params) == 0 {
				return m
			}
		}
	}
	l.report(&diag.ResourceTypeError{Pos: d.NamePos, Variable: d.Name, Type: t})
	return nil
}

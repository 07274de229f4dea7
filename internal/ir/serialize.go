package ir

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"fortio.org/safecast"

	"tsbc/internal/token"
	"tsbc/internal/types"
)

var magicV1 = [4]byte{'T', 'S', 'I', 'R'}

const formatVersion uint16 = 1

// statement tags
const (
	tagBlock byte = iota + 1
	tagExprStmt
	tagIf
	tagLoop
	tagLabeled
	tagExit
	tagThrow
	tagTry
	tagRegion
	tagClose
	tagRethrow
)

// expression tags
const (
	tagConst byte = iota + 0x40
	tagLoad
	tagLoadCapture
	tagThis
	tagGetField
	tagArrayIndex
	tagArrayLen
	tagAssign
	tagUpdate
	tagInvoke
	tagNew
	tagMakeClosure
	tagBinary
	tagUnary
	tagConcat
	tagConvert
	tagCond
	tagNewArray
	tagNilExpr
)

func WriteUnitToFile(filename string, u *Unit) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteUnit(f, u); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadUnitFromFile(filename string) (*Unit, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadUnit(bufio.NewReader(f))
}

// WriteUnit writes the binary image of u. The image depends only on u, so
// equal units produce identical bytes.
func WriteUnit(w io.Writer, u *Unit) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, resources: make(map[*Resource]uint32)}
	e.raw(magicV1[:])
	e.u16(formatVersion)
	e.unit(u)
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

type encoder struct {
	w         io.Writer
	err       error
	resources map[*Resource]uint32
}

func (e *encoder) raw(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) put(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *encoder) u8(v byte)    { e.put(v) }
func (e *encoder) u16(v uint16) { e.put(v) }
func (e *encoder) i64(v int64)  { e.put(v) }

func (e *encoder) bool(b bool) {
	if b {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) count(n int) {
	if e.err != nil {
		return
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		e.err = fmt.Errorf("ir: count %d: %w", n, err)
		return
	}
	e.put(v)
}

// int writes a slot, index or id; -1 is allowed.
func (e *encoder) int(n int) {
	if e.err != nil {
		return
	}
	v, err := safecast.Conv[int32](n)
	if err != nil {
		e.err = fmt.Errorf("ir: index %d: %w", n, err)
		return
	}
	e.put(v)
}

func (e *encoder) str(s string) {
	e.count(len(s))
	e.raw([]byte(s))
}

func (e *encoder) strs(ss []string) {
	e.count(len(ss))
	for _, s := range ss {
		e.str(s)
	}
}

func (e *encoder) typ(t types.Type) {
	switch {
	case t == nil:
		e.str("")
	case types.IsNull(t):
		e.str("N")
	default:
		e.str(t.Descriptor())
	}
}

func (e *encoder) pos(p token.Position) {
	e.int(p.Line)
	e.int(p.Column)
}

func (e *encoder) method(m *types.Method) {
	owner := ""
	if m.Owner != nil {
		owner = m.Owner.Name
	}
	e.str(owner)
	e.str(m.Name)
	e.str(m.Descriptor())
	e.bool(m.Static)
	e.bool(m.Varargs)
	e.bool(m.Abstract)
	e.bool(m.Default)
}

func (e *encoder) locals(ls []Local) {
	e.count(len(ls))
	for _, l := range ls {
		e.int(l.Slot)
		e.str(l.Name)
		e.typ(l.Type)
		e.bool(l.Synthetic)
	}
}

func (e *encoder) unit(u *Unit) {
	e.str(u.Name)
	e.str(u.Source)
	e.str(u.Target)
	e.count(len(u.Classes))
	for _, c := range u.Classes {
		e.str(c.Name)
		e.str(c.Super)
		e.strs(c.Interfaces)
		e.bool(c.Interface)
		e.count(len(c.Fields))
		for _, f := range c.Fields {
			e.str(f.Name)
			e.typ(f.Type)
			e.bool(f.Static)
			e.bool(f.Final)
		}
		e.count(len(c.Methods))
		for _, m := range c.Methods {
			e.method(m.Sig)
			e.int(m.Params)
			e.locals(m.Locals)
			e.bool(m.Body != nil)
			if m.Body != nil {
				e.block(m.Body)
			}
		}
	}
	e.count(len(u.Closures))
	for _, c := range u.Closures {
		e.str(c.ID)
		e.str(c.Owner)
		e.str(c.Target.Name)
		e.method(c.Method)
		e.count(len(c.Captures))
		for _, cp := range c.Captures {
			e.str(cp.Name)
			e.typ(cp.Type)
			e.bool(cp.FromLocal)
			e.int(cp.Index)
		}
		e.bool(c.CapturesThis)
		e.int(c.Params)
		e.locals(c.Locals)
		e.block(c.Body)
	}
}

func (e *encoder) optBlock(b *Block) {
	e.bool(b != nil)
	if b != nil {
		e.block(b)
	}
}

func (e *encoder) block(b *Block) {
	e.count(len(b.Stmts))
	for _, s := range b.Stmts {
		e.stmt(s)
	}
}

func (e *encoder) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		e.u8(tagBlock)
		e.block(s)
	case *ExprStmt:
		e.u8(tagExprStmt)
		e.expr(s.X)
	case *If:
		e.u8(tagIf)
		e.expr(s.Cond)
		e.block(s.Then)
		e.optBlock(s.Else)
	case *Loop:
		e.u8(tagLoop)
		e.int(s.ID)
		e.str(s.Label)
		e.expr(s.Cond)
		e.expr(s.Post)
		e.block(s.Body)
		e.bool(s.PostTest)
	case *Labeled:
		e.u8(tagLabeled)
		e.int(s.ID)
		e.str(s.Label)
		e.block(s.Body)
	case *Exit:
		e.u8(tagExit)
		e.u8(byte(s.Kind))
		e.int(s.Target)
		e.expr(s.Value)
		e.int(s.Spill)
		e.pos(s.Pos)
		e.count(len(s.Unwind))
		for _, u := range s.Unwind {
			e.u8(byte(u.Kind))
			e.int(u.ID)
			e.block(u.Body)
		}
	case *Throw:
		e.u8(tagThrow)
		e.expr(s.X)
	case *Try:
		e.u8(tagTry)
		e.int(s.ID)
		e.block(s.Body)
		e.int(s.CatchSlot)
		e.optBlock(s.Catch)
		e.optBlock(s.Finally)
	case *Region:
		e.u8(tagRegion)
		e.int(s.ID)
		e.pos(s.Pos)
		r := s.Resource
		e.resources[r] = uint32(len(e.resources))
		e.str(r.Name)
		e.typ(r.Type)
		e.int(r.Index)
		e.int(r.Slot)
		e.int(r.State)
		e.method(r.Close)
		e.pos(r.Pos)
		e.block(s.Body)
		e.optBlock(s.Exit)
		e.bool(s.Handler != nil)
		if s.Handler != nil {
			e.int(s.Handler.Slot)
			e.block(s.Handler.Body)
		}
	case *Close:
		e.u8(tagClose)
		idx, ok := e.resources[s.Resource]
		if !ok && e.err == nil {
			e.err = fmt.Errorf("ir: close of %s outside its region", s.Resource.Name)
		}
		e.put(idx)
		e.int(s.Into)
	case *Rethrow:
		e.u8(tagRethrow)
		e.int(s.Slot)
	default:
		if e.err == nil {
			e.err = fmt.Errorf("ir: unknown statement %T", s)
		}
	}
}

func (e *encoder) exprs(list []Expr) {
	e.count(len(list))
	for _, x := range list {
		e.expr(x)
	}
}

func (e *encoder) field(f *FieldRef) {
	e.str(f.Owner.Name)
	e.str(f.Name)
	e.typ(f.Type)
	e.bool(f.Static)
}

func (e *encoder) expr(x Expr) {
	switch x := x.(type) {
	case nil:
		e.u8(tagNilExpr)
	case *Const:
		e.u8(tagConst)
		e.typ(x.T)
		e.u8(byte(x.Kind))
		switch x.Kind {
		case ConstInt:
			e.i64(x.Int)
		case ConstFloat:
			e.put(math.Float64bits(x.Float))
		case ConstString:
			e.str(x.String)
		case ConstBool:
			e.bool(x.Bool)
		}
	case *Load:
		e.u8(tagLoad)
		e.int(x.Slot)
		e.typ(x.T)
	case *LoadCapture:
		e.u8(tagLoadCapture)
		e.int(x.Index)
		e.typ(x.T)
	case *This:
		e.u8(tagThis)
		e.str(x.T.Name)
	case *GetField:
		e.u8(tagGetField)
		e.expr(x.Recv)
		e.field(x.Field)
	case *ArrayIndex:
		e.u8(tagArrayIndex)
		e.expr(x.X)
		e.expr(x.Index)
		e.typ(x.T)
	case *ArrayLen:
		e.u8(tagArrayLen)
		e.expr(x.X)
	case *Assign:
		e.u8(tagAssign)
		e.expr(x.Target)
		e.int(int(x.Op))
		e.typ(x.OpType)
		e.expr(x.Value)
	case *Update:
		e.u8(tagUpdate)
		e.expr(x.Target)
		e.int(int(x.Op))
		e.bool(x.Prefix)
	case *Invoke:
		e.u8(tagInvoke)
		e.u8(byte(x.Kind))
		e.expr(x.Recv)
		e.method(x.Method)
		e.exprs(x.Args)
	case *New:
		e.u8(tagNew)
		e.method(x.Ctor)
		e.exprs(x.Args)
	case *MakeClosure:
		e.u8(tagMakeClosure)
		e.str(x.Closure)
		e.exprs(x.Captures)
		e.expr(x.This)
		e.str(x.T.Name)
	case *Binary:
		e.u8(tagBinary)
		e.int(int(x.Op))
		e.expr(x.X)
		e.expr(x.Y)
		e.typ(x.OpType)
		e.typ(x.T)
	case *Unary:
		e.u8(tagUnary)
		e.int(int(x.Op))
		e.expr(x.X)
		e.typ(x.T)
	case *Concat:
		e.u8(tagConcat)
		e.exprs(x.Parts)
	case *Convert:
		e.u8(tagConvert)
		e.u8(byte(x.Kind))
		e.expr(x.X)
		e.typ(x.T)
	case *Cond:
		e.u8(tagCond)
		e.expr(x.Cond)
		e.expr(x.Then)
		e.expr(x.Else)
		e.typ(x.T)
	case *NewArray:
		e.u8(tagNewArray)
		e.typ(x.Elem)
		e.exprs(x.Elems)
	default:
		if e.err == nil {
			e.err = fmt.Errorf("ir: unknown expression %T", x)
		}
	}
}

// ReadUnit reads an image written by WriteUnit.
func ReadUnit(r io.Reader) (*Unit, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr != magicV1 {
		return nil, fmt.Errorf("invalid magic header: %q", string(hdr[:]))
	}
	d := &decoder{r: r}
	if v := d.u16(); d.err == nil && v != formatVersion {
		return nil, fmt.Errorf("unsupported IR format version %d", v)
	}
	u := d.unit()
	if d.err != nil {
		return nil, d.err
	}
	return u, nil
}

type decoder struct {
	r         io.Reader
	err       error
	source    string
	resources []*Resource
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("ir: "+format, args...)
	}
}

func (d *decoder) get(v any) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.LittleEndian, v)
}

func (d *decoder) u8() byte {
	var v byte
	d.get(&v)
	return v
}

func (d *decoder) u16() uint16 {
	var v uint16
	d.get(&v)
	return v
}

func (d *decoder) bool() bool { return d.u8() != 0 }

func (d *decoder) count() int {
	var v uint32
	d.get(&v)
	if d.err != nil {
		return 0
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		d.err = err
	}
	return n
}

func (d *decoder) int() int {
	var v int32
	d.get(&v)
	return int(v)
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return ""
	}
	return string(b)
}

func (d *decoder) strs() []string {
	n := d.count()
	var out []string
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) typ() types.Type {
	s := d.str()
	switch s {
	case "":
		return nil
	case "N":
		return types.Null
	}
	t, err := types.ParseDescriptor(s)
	if err != nil {
		d.fail("%v", err)
		return types.Invalid
	}
	return t
}

func (d *decoder) class() *types.Class {
	return types.NewClass(d.str())
}

func (d *decoder) pos() token.Position {
	line := d.int()
	col := d.int()
	return token.Position{File: d.source, Line: line, Column: col}
}

func (d *decoder) method() *types.Method {
	owner := d.str()
	m := &types.Method{Name: d.str()}
	desc := d.str()
	m.Static = d.bool()
	m.Varargs = d.bool()
	m.Abstract = d.bool()
	m.Default = d.bool()
	if owner != "" {
		m.Owner = types.NewClass(owner)
	}
	if d.err != nil {
		return m
	}
	params, result, err := types.ParseMethodDescriptor(desc)
	if err != nil {
		d.fail("%v", err)
		return m
	}
	m.Params = params
	m.Result = result
	return m
}

func (d *decoder) locals() []Local {
	n := d.count()
	var out []Local
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, Local{Slot: d.int(), Name: d.str(), Type: d.typ(), Synthetic: d.bool()})
	}
	return out
}

func (d *decoder) unit() *Unit {
	u := &Unit{Name: d.str(), Source: d.str(), Target: d.str()}
	d.source = u.Source
	nc := d.count()
	for i := 0; i < nc && d.err == nil; i++ {
		c := &Class{Name: d.str(), Super: d.str(), Interfaces: d.strs(), Interface: d.bool()}
		nf := d.count()
		for j := 0; j < nf && d.err == nil; j++ {
			c.Fields = append(c.Fields, &Field{Name: d.str(), Type: d.typ(), Static: d.bool(), Final: d.bool()})
		}
		nm := d.count()
		for j := 0; j < nm && d.err == nil; j++ {
			m := &Method{Sig: d.method(), Params: d.int(), Locals: d.locals()}
			if d.bool() {
				m.Body = d.block()
			}
			c.Methods = append(c.Methods, m)
		}
		u.Classes = append(u.Classes, c)
	}
	nl := d.count()
	for i := 0; i < nl && d.err == nil; i++ {
		c := &Closure{ID: d.str(), Owner: d.str(), Target: d.class(), Method: d.method()}
		ncap := d.count()
		for j := 0; j < ncap && d.err == nil; j++ {
			c.Captures = append(c.Captures, Capture{Name: d.str(), Type: d.typ(), FromLocal: d.bool(), Index: d.int()})
		}
		c.CapturesThis = d.bool()
		c.Params = d.int()
		c.Locals = d.locals()
		c.Body = d.block()
		u.Closures = append(u.Closures, c)
	}
	return u
}

func (d *decoder) optBlock() *Block {
	if !d.bool() {
		return nil
	}
	return d.block()
}

func (d *decoder) block() *Block {
	n := d.count()
	b := &Block{}
	for i := 0; i < n && d.err == nil; i++ {
		b.Stmts = append(b.Stmts, d.stmt())
	}
	return b
}

func (d *decoder) stmt() Stmt {
	switch tag := d.u8(); tag {
	case tagBlock:
		return d.block()
	case tagExprStmt:
		return &ExprStmt{X: d.expr()}
	case tagIf:
		return &If{Cond: d.expr(), Then: d.block(), Else: d.optBlock()}
	case tagLoop:
		return &Loop{ID: d.int(), Label: d.str(), Cond: d.expr(), Post: d.expr(), Body: d.block(), PostTest: d.bool()}
	case tagLabeled:
		return &Labeled{ID: d.int(), Label: d.str(), Body: d.block()}
	case tagExit:
		s := &Exit{Kind: ExitKind(d.u8()), Target: d.int(), Value: d.expr(), Spill: d.int(), Pos: d.pos()}
		n := d.count()
		for i := 0; i < n && d.err == nil; i++ {
			s.Unwind = append(s.Unwind, UnwindStep{Kind: UnwindKind(d.u8()), ID: d.int(), Body: d.block()})
		}
		return s
	case tagThrow:
		return &Throw{X: d.expr()}
	case tagTry:
		return &Try{ID: d.int(), Body: d.block(), CatchSlot: d.int(), Catch: d.optBlock(), Finally: d.optBlock()}
	case tagRegion:
		s := &Region{ID: d.int(), Pos: d.pos()}
		r := &Resource{Name: d.str(), Type: d.typ(), Index: d.int(), Slot: d.int(), State: d.int(), Close: d.method(), Pos: d.pos()}
		d.resources = append(d.resources, r)
		s.Resource = r
		s.Body = d.block()
		s.Exit = d.optBlock()
		if d.bool() {
			s.Handler = &Handler{Slot: d.int(), Body: d.block()}
		}
		return s
	case tagClose:
		var idx uint32
		d.get(&idx)
		into := d.int()
		if d.err != nil {
			return &Close{Into: into}
		}
		if int(idx) >= len(d.resources) {
			d.fail("close of unknown resource %d", idx)
			return &Close{Into: into}
		}
		return &Close{Resource: d.resources[idx], Into: into}
	case tagRethrow:
		return &Rethrow{Slot: d.int()}
	default:
		d.fail("unknown statement tag 0x%02x", tag)
		return &Block{}
	}
}

func (d *decoder) exprs() []Expr {
	n := d.count()
	var out []Expr
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.expr())
	}
	return out
}

func (d *decoder) field() *FieldRef {
	return &FieldRef{Owner: d.class(), Name: d.str(), Type: d.typ(), Static: d.bool()}
}

func (d *decoder) expr() Expr {
	switch tag := d.u8(); tag {
	case tagNilExpr:
		return nil
	case tagConst:
		c := &Const{T: d.typ(), Kind: ConstKind(d.u8())}
		switch c.Kind {
		case ConstInt:
			d.get(&c.Int)
		case ConstFloat:
			var bits uint64
			d.get(&bits)
			c.Float = math.Float64frombits(bits)
		case ConstString:
			c.String = d.str()
		case ConstBool:
			c.Bool = d.bool()
		}
		return c
	case tagLoad:
		return &Load{Slot: d.int(), T: d.typ()}
	case tagLoadCapture:
		return &LoadCapture{Index: d.int(), T: d.typ()}
	case tagThis:
		return &This{T: d.class()}
	case tagGetField:
		return &GetField{Recv: d.expr(), Field: d.field()}
	case tagArrayIndex:
		return &ArrayIndex{X: d.expr(), Index: d.expr(), T: d.typ()}
	case tagArrayLen:
		return &ArrayLen{X: d.expr()}
	case tagAssign:
		return &Assign{Target: d.expr(), Op: token.Kind(d.int()), OpType: d.typ(), Value: d.expr()}
	case tagUpdate:
		return &Update{Target: d.expr(), Op: token.Kind(d.int()), Prefix: d.bool()}
	case tagInvoke:
		return &Invoke{Kind: InvokeKind(d.u8()), Recv: d.expr(), Method: d.method(), Args: d.exprs()}
	case tagNew:
		ctor := d.method()
		return &New{Class: ctor.Owner, Ctor: ctor, Args: d.exprs()}
	case tagMakeClosure:
		return &MakeClosure{Closure: d.str(), Captures: d.exprs(), This: d.expr(), T: d.class()}
	case tagBinary:
		return &Binary{Op: token.Kind(d.int()), X: d.expr(), Y: d.expr(), OpType: d.typ(), T: d.typ()}
	case tagUnary:
		return &Unary{Op: token.Kind(d.int()), X: d.expr(), T: d.typ()}
	case tagConcat:
		return &Concat{Parts: d.exprs()}
	case tagConvert:
		return &Convert{Kind: ConvKind(d.u8()), X: d.expr(), T: d.typ()}
	case tagCond:
		return &Cond{Cond: d.expr(), Then: d.expr(), Else: d.expr(), T: d.typ()}
	case tagNewArray:
		return &NewArray{Elem: d.typ(), Elems: d.exprs()}
	default:
		d.fail("unknown expression tag 0x%02x", tag)
		return &Const{T: types.Invalid, Kind: ConstNull}
	}
}

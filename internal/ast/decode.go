package ast

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"tsbc/internal/token"
)

// wire is the on-disk shape of every AST node. The front end emits one
// object per node, discriminated by Kind; fields a kind does not use are
// left out.
type wire struct {
	Kind string `json:"kind"`
	Pos  []int  `json:"pos,omitempty"` // [line, column]

	Name      string `json:"name,omitempty"`
	Source    string `json:"source,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Path      string `json:"path,omitempty"`
	Alias     string `json:"alias,omitempty"`
	Label     string `json:"label,omitempty"`
	Op        string `json:"op,omitempty"`
	Raw       string `json:"raw,omitempty"`
	Decl      string `json:"decl,omitempty"` // "let" | "const"
	CatchName string `json:"catchName,omitempty"`
	CatchPos  []int  `json:"catchPos,omitempty"`

	Prefix      bool `json:"prefix,omitempty"`
	Static      bool `json:"static,omitempty"`
	Readonly    bool `json:"readonly,omitempty"`
	Constructor bool `json:"constructor,omitempty"`
	Rest        bool `json:"rest,omitempty"`

	Value json.RawMessage `json:"value,omitempty"` // literal payload

	Type       *wire   `json:"type,omitempty"`
	Elem       *wire   `json:"elem,omitempty"`
	Super      *wire   `json:"super,omitempty"`
	Result     *wire   `json:"result,omitempty"`
	Body       *wire   `json:"body,omitempty"`
	Init       *wire   `json:"init,omitempty"`
	Cond       *wire   `json:"cond,omitempty"`
	Post       *wire   `json:"post,omitempty"`
	Then       *wire   `json:"then,omitempty"`
	Else       *wire   `json:"else,omitempty"`
	X          *wire   `json:"x,omitempty"`
	Left       *wire   `json:"left,omitempty"`
	Right      *wire   `json:"right,omitempty"`
	Target     *wire   `json:"target,omitempty"`
	Callee     *wire   `json:"callee,omitempty"`
	Index      *wire   `json:"index,omitempty"`
	CatchBody  *wire   `json:"catch,omitempty"`
	Finally    *wire   `json:"finally,omitempty"`
	Implements []*wire `json:"implements,omitempty"`
	Extends    []*wire `json:"extends,omitempty"`
	Params     []*wire `json:"params,omitempty"`
	Stmts      []*wire `json:"stmts,omitempty"`
	Decls      []*wire `json:"decls,omitempty"`
	Args       []*wire `json:"args,omitempty"`
	Elements   []*wire `json:"elements,omitempty"`
	Fields     []*wire `json:"fields,omitempty"`
	Methods    []*wire `json:"methods,omitempty"`
	Classes    []*wire `json:"classes,omitempty"`
	Interfaces []*wire `json:"interfaces,omitempty"`
	Imports    []*wire `json:"imports,omitempty"`
}

// DecodeUnit reads one JSON unit document.
func DecodeUnit(r io.Reader) (*Unit, error) {
	var w wire
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	d := &decoder{}
	u := d.unit(&w)
	if d.err != nil {
		return nil, d.err
	}
	return u, nil
}

type decoder struct {
	file string
	err  error
}

func (d *decoder) fail(w *wire, format string, args ...any) {
	if d.err != nil {
		return
	}
	pos := d.pos(w.Pos)
	d.err = fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))
}

func (d *decoder) pos(p []int) token.Position {
	pos := token.Position{File: d.file}
	if len(p) > 0 {
		pos.Line = p[0]
	}
	if len(p) > 1 {
		pos.Column = p[1]
	}
	return pos
}

func (d *decoder) unit(w *wire) *Unit {
	if w.Kind != "Unit" {
		d.fail(w, "expected Unit, got %q", w.Kind)
		return nil
	}
	d.file = w.Source
	u := &Unit{Name: w.Name, Source: w.Source, Namespace: w.Namespace}
	for _, iw := range w.Imports {
		u.Imports = append(u.Imports, &ImportDecl{ImportPos: d.pos(iw.Pos), Path: iw.Path, Alias: iw.Alias})
	}
	for _, cw := range w.Classes {
		u.Classes = append(u.Classes, d.class(cw))
	}
	for _, iw := range w.Interfaces {
		u.Interfaces = append(u.Interfaces, d.iface(iw))
	}
	return u
}

func (d *decoder) class(w *wire) *ClassDecl {
	c := &ClassDecl{Name: w.Name, NamePos: d.pos(w.Pos), Super: d.typ(w.Super)}
	for _, t := range w.Implements {
		c.Implements = append(c.Implements, d.typ(t))
	}
	for _, fw := range w.Fields {
		c.Fields = append(c.Fields, &FieldDecl{
			Name:     fw.Name,
			NamePos:  d.pos(fw.Pos),
			Type:     d.typ(fw.Type),
			Static:   fw.Static,
			Readonly: fw.Readonly,
			Init:     d.expr(fw.Init),
		})
	}
	for _, mw := range w.Methods {
		c.Methods = append(c.Methods, &MethodDecl{
			Name:        mw.Name,
			NamePos:     d.pos(mw.Pos),
			Params:      d.params(mw.Params),
			Result:      d.typ(mw.Result),
			Static:      mw.Static,
			Constructor: mw.Constructor,
			Body:        d.block(mw.Body),
		})
	}
	return c
}

func (d *decoder) iface(w *wire) *InterfaceDecl {
	i := &InterfaceDecl{Name: w.Name, NamePos: d.pos(w.Pos)}
	for _, t := range w.Extends {
		i.Extends = append(i.Extends, d.typ(t))
	}
	for _, mw := range w.Methods {
		i.Methods = append(i.Methods, &InterfaceMethod{
			Name:    mw.Name,
			NamePos: d.pos(mw.Pos),
			Params:  d.params(mw.Params),
			Result:  d.typ(mw.Result),
		})
	}
	return i
}

func (d *decoder) params(ws []*wire) []*Param {
	var out []*Param
	for _, pw := range ws {
		out = append(out, &Param{Name: pw.Name, NamePos: d.pos(pw.Pos), Type: d.typ(pw.Type), Rest: pw.Rest})
	}
	return out
}

func (d *decoder) typ(w *wire) TypeNode {
	if w == nil {
		return nil
	}
	switch w.Kind {
	case "SimpleType":
		return &SimpleType{Name: w.Name, NamePos: d.pos(w.Pos)}
	case "ArrayType":
		elem := d.typ(w.Elem)
		if elem == nil {
			d.fail(w, "array type without element")
			return nil
		}
		return &ArrayType{Elem: elem}
	}
	d.fail(w, "unknown type node %q", w.Kind)
	return nil
}

func (d *decoder) block(w *wire) *BlockStmt {
	if w == nil {
		return nil
	}
	if w.Kind != "Block" {
		d.fail(w, "expected Block, got %q", w.Kind)
		return nil
	}
	b := &BlockStmt{LBrace: d.pos(w.Pos)}
	for _, sw := range w.Stmts {
		if s := d.stmt(sw); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	return b
}

func (d *decoder) stmt(w *wire) Stmt {
	if w == nil {
		return nil
	}
	pos := d.pos(w.Pos)
	switch w.Kind {
	case "Block":
		return d.block(w)
	case "VarDecl":
		kind := DeclLet
		switch w.Decl {
		case "const":
			kind = DeclConst
		case "let", "":
		default:
			d.fail(w, "unknown declaration kind %q", w.Decl)
		}
		return &VarDeclStmt{DeclPos: pos, Kind: kind, Name: w.Name, NamePos: pos, Type: d.typ(w.Type), Value: d.expr(w.Init)}
	case "Using":
		s := &UsingStmt{UsingPos: pos}
		for _, dw := range w.Decls {
			s.Decls = append(s.Decls, &UsingDecl{Name: dw.Name, NamePos: d.pos(dw.Pos), Type: d.typ(dw.Type), Value: d.expr(dw.Init)})
		}
		if len(s.Decls) == 0 {
			d.fail(w, "using without declarators")
		}
		return s
	case "ExprStmt":
		x := d.expr(w.X)
		if x == nil {
			d.fail(w, "expression statement without expression")
			return nil
		}
		return &ExprStmt{Expression: x}
	case "If":
		return &IfStmt{IfPos: pos, Cond: d.expr(w.Cond), Then: d.stmt(w.Then), Else: d.stmt(w.Else)}
	case "Return":
		return &ReturnStmt{ReturnPos: pos, Result: d.expr(w.X)}
	case "Throw":
		return &ThrowStmt{ThrowPos: pos, Expr: d.expr(w.X)}
	case "Break":
		return &BreakStmt{BreakPos: pos, Label: w.Label}
	case "Continue":
		return &ContinueStmt{ContinuePos: pos, Label: w.Label}
	case "Labeled":
		return &LabeledStmt{LabelPos: pos, Label: w.Label, Body: d.stmt(w.Body)}
	case "Try":
		s := &TryStmt{TryPos: pos, Body: d.block(w.Body), CatchName: w.CatchName, CatchPos: d.pos(w.CatchPos), CatchBody: d.block(w.CatchBody), Finally: d.block(w.Finally)}
		if s.CatchBody == nil && s.Finally == nil {
			d.fail(w, "try without catch or finally")
		}
		return s
	case "While":
		return &WhileStmt{WhilePos: pos, Cond: d.expr(w.Cond), Body: d.stmt(w.Body)}
	case "DoWhile":
		return &DoWhileStmt{DoPos: pos, Body: d.stmt(w.Body), Cond: d.expr(w.Cond)}
	case "For":
		return &ForStmt{ForPos: pos, Init: d.stmt(w.Init), Cond: d.expr(w.Cond), Post: d.expr(w.Post), Body: d.stmt(w.Body)}
	}
	d.fail(w, "unknown statement %q", w.Kind)
	return nil
}

func (d *decoder) op(w *wire) token.Kind {
	k := token.Lookup(w.Op)
	if k == token.Illegal {
		d.fail(w, "unknown operator %q", w.Op)
	}
	return k
}

func (d *decoder) expr(w *wire) Expr {
	if w == nil {
		return nil
	}
	pos := d.pos(w.Pos)
	switch w.Kind {
	case "Ident":
		return &IdentExpr{Name: w.Name, NamePos: pos}
	case "This":
		return &ThisExpr{ThisPos: pos}
	case "Null":
		return &NullLiteral{LitPos: pos}
	case "Bool":
		var v bool
		d.literal(w, &v)
		return &BoolLiteral{Value: v, LitPos: pos}
	case "String":
		var v string
		d.literal(w, &v)
		return &StringLiteral{Value: v, LitPos: pos}
	case "Number":
		var v float64
		d.literal(w, &v)
		if v == math.Trunc(v) && math.Abs(v) <= math.MaxInt64/2 && !isFloatSpelling(w.Raw) {
			return &IntLiteral{Value: int64(v), LitPos: pos, Raw: w.Raw}
		}
		return &FloatLiteral{Value: v, LitPos: pos, Raw: w.Raw}
	case "Array":
		a := &ArrayLiteral{LBracket: pos, Elem: d.typ(w.Elem)}
		for _, ew := range w.Elements {
			a.Elements = append(a.Elements, d.expr(ew))
		}
		return a
	case "Unary":
		return &UnaryExpr{Op: d.op(w), OpPos: pos, X: d.expr(w.X)}
	case "Binary":
		return &BinaryExpr{Left: d.expr(w.Left), Op: d.op(w), OpPos: pos, Right: d.expr(w.Right)}
	case "Assign":
		op := token.Assign
		if w.Op != "" {
			op = d.op(w)
		}
		return &AssignExpr{Target: d.expr(w.Target), Op: op, OpPos: pos, Value: d.expr(w.X)}
	case "Update":
		return &UpdateExpr{Target: d.expr(w.Target), Op: d.op(w), OpPos: pos, Prefix: w.Prefix}
	case "Cond":
		return &CondExpr{Cond: d.expr(w.Cond), Then: d.expr(w.Then), Else: d.expr(w.Else)}
	case "Call":
		c := &CallExpr{Callee: d.expr(w.Callee), LParen: pos}
		for _, aw := range w.Args {
			c.Args = append(c.Args, d.expr(aw))
		}
		return c
	case "New":
		n := &NewExpr{NewPos: pos, Type: d.typ(w.Type)}
		for _, aw := range w.Args {
			n.Args = append(n.Args, d.expr(aw))
		}
		return n
	case "Member":
		return &MemberExpr{X: d.expr(w.X), Name: w.Name, NamePos: pos}
	case "Index":
		return &IndexExpr{X: d.expr(w.X), LBracket: pos, Index: d.expr(w.Index)}
	case "Func":
		f := &FuncLiteral{FunPos: pos, Params: d.params(w.Params), Result: d.typ(w.Result)}
		if w.Body != nil && w.Body.Kind == "Block" {
			f.Body = d.block(w.Body)
		} else {
			f.ExprBody = d.expr(w.Body)
		}
		if f.Body == nil && f.ExprBody == nil {
			d.fail(w, "function literal without body")
		}
		return f
	case "As":
		return &AsExpr{X: d.expr(w.X), AsPos: pos, Type: d.typ(w.Type)}
	}
	d.fail(w, "unknown expression %q", w.Kind)
	return nil
}

func (d *decoder) literal(w *wire, v any) {
	if len(w.Value) == 0 {
		d.fail(w, "%s literal without value", w.Kind)
		return
	}
	if err := json.Unmarshal(w.Value, v); err != nil {
		d.fail(w, "%s literal: %v", w.Kind, err)
	}
}

func isFloatSpelling(raw string) bool {
	if len(raw) > 1 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		return false
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '.', 'e', 'E':
			return true
		}
	}
	return false
}

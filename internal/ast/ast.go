package ast

import "tsbc/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

type TypeNode interface {
	Node
	typeNode()
}

// Unit / Namespace

// Unit is one source file after front-end type annotation.
type Unit struct {
	Name       string // unit name, unique within a build
	Source     string // source file path, used in diagnostics
	Namespace  string // dotted package prefix for declared classes, may be ""
	Imports    []*ImportDecl
	Classes    []*ClassDecl
	Interfaces []*InterfaceDecl
}

func (u *Unit) Pos() token.Position {
	if len(u.Classes) > 0 {
		return u.Classes[0].Pos()
	}
	return token.Position{File: u.Source}
}

type ImportDecl struct {
	ImportPos token.Position
	Path      string // fully qualified host name, e.g. "java.util.ArrayList"
	Alias     string // may be "", meaning "use last segment"
}

func (d *ImportDecl) Pos() token.Position { return d.ImportPos }

// ---------- Classes ----------

type ClassDecl struct {
	Name       string
	NamePos    token.Position
	Super      TypeNode // nil means the universal object type
	Implements []TypeNode
	Fields     []*FieldDecl
	Methods    []*MethodDecl
}

func (c *ClassDecl) Pos() token.Position { return c.NamePos }

type FieldDecl struct {
	Name     string
	NamePos  token.Position
	Type     TypeNode
	Static   bool
	Readonly bool
	Init     Expr // nil if no initializer
}

func (f *FieldDecl) Pos() token.Position { return f.NamePos }

type MethodDecl struct {
	Name        string
	NamePos     token.Position
	Params      []*Param
	Result      TypeNode // nil means void
	Static      bool
	Constructor bool
	Body        *BlockStmt
}

func (m *MethodDecl) Pos() token.Position { return m.NamePos }

type Param struct {
	Name    string
	NamePos token.Position
	Type    TypeNode // nil only for function-literal params without annotation
	Rest    bool     // ...rest parameter, lowered as a trailing vararg
}

func (p *Param) Pos() token.Position { return p.NamePos }

// ---------- Interfaces ----------

type InterfaceDecl struct {
	Name    string
	NamePos token.Position
	Extends []TypeNode
	Methods []*InterfaceMethod
}

func (i *InterfaceDecl) Pos() token.Position { return i.NamePos }

type InterfaceMethod struct {
	Name    string
	NamePos token.Position
	Params  []*Param
	Result  TypeNode
}

func (m *InterfaceMethod) Pos() token.Position { return m.NamePos }

// ---------- Types ----------

// SimpleType is a type name, possibly dotted (e.g. java.util.List).
type SimpleType struct {
	Name    string
	NamePos token.Position
}

func (t *SimpleType) Pos() token.Position { return t.NamePos }
func (t *SimpleType) typeNode()           {}

type ArrayType struct {
	Elem TypeNode
}

func (t *ArrayType) Pos() token.Position { return t.Elem.Pos() }
func (t *ArrayType) typeNode()           {}

// ---------- Statements ----------

type BlockStmt struct {
	LBrace token.Position
	Stmts  []Stmt
}

func (b *BlockStmt) Pos() token.Position { return b.LBrace }
func (b *BlockStmt) stmtNode()           {}

type DeclKind int

const (
	DeclLet DeclKind = iota
	DeclConst
)

type VarDeclStmt struct {
	DeclPos token.Position
	Kind    DeclKind
	Name    string
	NamePos token.Position
	Type    TypeNode // nil when the front end did not annotate it
	Value   Expr     // may be nil for `let x: T;`
}

func (s *VarDeclStmt) Pos() token.Position { return s.DeclPos }
func (s *VarDeclStmt) stmtNode()           {}

// UsingStmt declares one or more resources closed at the end of the
// enclosing block.
type UsingStmt struct {
	UsingPos token.Position
	Decls    []*UsingDecl
}

func (s *UsingStmt) Pos() token.Position { return s.UsingPos }
func (s *UsingStmt) stmtNode()           {}

type UsingDecl struct {
	Name    string
	NamePos token.Position
	Type    TypeNode
	Value   Expr // nil stores null
}

func (d *UsingDecl) Pos() token.Position { return d.NamePos }

type ExprStmt struct {
	Expression Expr
}

func (s *ExprStmt) Pos() token.Position { return s.Expression.Pos() }
func (s *ExprStmt) stmtNode()           {}

type IfStmt struct {
	IfPos token.Position
	Cond  Expr
	Then  Stmt
	Else  Stmt // nil, *BlockStmt or *IfStmt
}

func (s *IfStmt) Pos() token.Position { return s.IfPos }
func (s *IfStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Result    Expr // may be nil for `return;`
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

type ThrowStmt struct {
	ThrowPos token.Position
	Expr     Expr
}

func (s *ThrowStmt) Pos() token.Position { return s.ThrowPos }
func (s *ThrowStmt) stmtNode()           {}

type BreakStmt struct {
	BreakPos token.Position
	Label    string
}

func (s *BreakStmt) Pos() token.Position { return s.BreakPos }
func (s *BreakStmt) stmtNode()           {}

type ContinueStmt struct {
	ContinuePos token.Position
	Label       string
}

func (s *ContinueStmt) Pos() token.Position { return s.ContinuePos }
func (s *ContinueStmt) stmtNode()           {}

type LabeledStmt struct {
	LabelPos token.Position
	Label    string
	Body     Stmt
}

func (s *LabeledStmt) Pos() token.Position { return s.LabelPos }
func (s *LabeledStmt) stmtNode()           {}

type TryStmt struct {
	TryPos    token.Position
	Body      *BlockStmt
	CatchName string         // identifier name, e.g., "e"
	CatchPos  token.Position // position of the identifier
	CatchBody *BlockStmt     // nil if no catch
	Finally   *BlockStmt     // nil if no finally
}

func (s *TryStmt) Pos() token.Position { return s.TryPos }
func (s *TryStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     Stmt
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (s *WhileStmt) stmtNode()           {}

type DoWhileStmt struct {
	DoPos token.Position
	Body  Stmt
	Cond  Expr
}

func (s *DoWhileStmt) Pos() token.Position { return s.DoPos }
func (s *DoWhileStmt) stmtNode()           {}

type ForStmt struct {
	ForPos token.Position
	Init   Stmt // may be nil
	Cond   Expr // may be nil
	Post   Expr // may be nil
	Body   Stmt
}

func (s *ForStmt) Pos() token.Position { return s.ForPos }
func (s *ForStmt) stmtNode()           {}

// ---------- Expressions ----------

type IdentExpr struct {
	Name    string
	NamePos token.Position
}

func (e *IdentExpr) Pos() token.Position { return e.NamePos }
func (e *IdentExpr) exprNode()           {}

type ThisExpr struct {
	ThisPos token.Position
}

func (e *ThisExpr) Pos() token.Position { return e.ThisPos }
func (e *ThisExpr) exprNode()           {}

type IntLiteral struct {
	Value  int64
	LitPos token.Position
	Raw    string
}

func (e *IntLiteral) Pos() token.Position { return e.LitPos }
func (e *IntLiteral) exprNode()           {}

type FloatLiteral struct {
	Value  float64
	LitPos token.Position
	Raw    string
}

func (e *FloatLiteral) Pos() token.Position { return e.LitPos }
func (e *FloatLiteral) exprNode()           {}

type StringLiteral struct {
	Value  string
	LitPos token.Position
}

func (e *StringLiteral) Pos() token.Position { return e.LitPos }
func (e *StringLiteral) exprNode()           {}

type BoolLiteral struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLiteral) Pos() token.Position { return e.LitPos }
func (e *BoolLiteral) exprNode()           {}

type NullLiteral struct {
	LitPos token.Position
}

func (e *NullLiteral) Pos() token.Position { return e.LitPos }
func (e *NullLiteral) exprNode()           {}

type ArrayLiteral struct {
	LBracket token.Position
	Elem     TypeNode // optional element annotation
	Elements []Expr
}

func (e *ArrayLiteral) Pos() token.Position { return e.LBracket }
func (e *ArrayLiteral) exprNode()           {}

type UnaryExpr struct {
	Op    token.Kind
	OpPos token.Position
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) exprNode()           {}

type BinaryExpr struct {
	Left  Expr
	Op    token.Kind
	OpPos token.Position
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.Left.Pos() }
func (e *BinaryExpr) exprNode()           {}

// AssignExpr covers plain and compound assignment.
type AssignExpr struct {
	Target Expr
	Op     token.Kind // Assign, PlusAssign, ...
	OpPos  token.Position
	Value  Expr
}

func (e *AssignExpr) Pos() token.Position { return e.OpPos }
func (e *AssignExpr) exprNode()           {}

// UpdateExpr is ++x, x++, --x or x--.
type UpdateExpr struct {
	Target Expr
	Op     token.Kind // Inc or Dec
	OpPos  token.Position
	Prefix bool
}

func (e *UpdateExpr) Pos() token.Position { return e.OpPos }
func (e *UpdateExpr) exprNode()           {}

type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (e *CondExpr) Pos() token.Position { return e.Cond.Pos() }
func (e *CondExpr) exprNode()           {}

type CallExpr struct {
	Callee Expr
	LParen token.Position
	Args   []Expr
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) exprNode()           {}

type NewExpr struct {
	NewPos token.Position
	Type   TypeNode
	Args   []Expr
}

func (e *NewExpr) Pos() token.Position { return e.NewPos }
func (e *NewExpr) exprNode()           {}

// MemberExpr is X.Name; X may denote a value, a type or a package prefix.
type MemberExpr struct {
	X       Expr
	Name    string
	NamePos token.Position
}

func (e *MemberExpr) Pos() token.Position { return e.NamePos }
func (e *MemberExpr) exprNode()           {}

type IndexExpr struct {
	X        Expr
	LBracket token.Position
	Index    Expr
}

func (e *IndexExpr) Pos() token.Position { return e.LBracket }
func (e *IndexExpr) exprNode()           {}

// FuncLiteral is an arrow function or function expression.
// Exactly one of Body and ExprBody is set.
type FuncLiteral struct {
	FunPos   token.Position
	Params   []*Param
	Result   TypeNode // nil when not annotated
	Body     *BlockStmt
	ExprBody Expr
}

func (e *FuncLiteral) Pos() token.Position { return e.FunPos }
func (e *FuncLiteral) exprNode()           {}

// AsExpr is `x as T`.
type AsExpr struct {
	X     Expr
	AsPos token.Position
	Type  TypeNode
}

func (e *AsExpr) Pos() token.Position { return e.AsPos }
func (e *AsExpr) exprNode()           {}

// TypeName returns the dotted spelling of a type node, "" for nil.
func TypeName(t TypeNode) string {
	switch t := t.(type) {
	case *SimpleType:
		return t.Name
	case *ArrayType:
		return TypeName(t.Elem) + "[]"
	}
	return ""
}

// QualifiedName flattens a chain of identifiers and member accesses
// (a.b.c) into its dotted form. ok is false for any other shape.
func QualifiedName(e Expr) (string, bool) {
	switch e := e.(type) {
	case *IdentExpr:
		return e.Name, true
	case *MemberExpr:
		prefix, ok := QualifiedName(e.X)
		if !ok {
			return "", false
		}
		return prefix + "." + e.Name, true
	}
	return "", false
}

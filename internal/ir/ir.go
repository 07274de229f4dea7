// Package ir defines the lowered form handed to the class emitter: every
// call site carries its resolved signature, function literals are closure
// descriptors, and `using` blocks are explicit cleanup regions.
package ir

import (
	"tsbc/internal/token"
	"tsbc/internal/types"
)

// Unit is the lowered form of one compilation unit.
type Unit struct {
	Name     string
	Source   string
	Target   string // platform version the unit was resolved against
	Classes  []*Class
	Closures []*Closure // in creation order
}

type Class struct {
	Name       string // fully qualified
	Super      string
	Interfaces []string
	Interface  bool
	Fields     []*Field
	Methods    []*Method
}

type Field struct {
	Name   string
	Type   types.Type
	Static bool
	Final  bool
}

// Local is one variable slot of a method or closure body. Parameters
// occupy the first slots.
type Local struct {
	Slot      int
	Name      string
	Type      types.Type
	Synthetic bool // resource state, spill and exception slots
}

type Method struct {
	Sig    *types.Method
	Params int
	Locals []Local
	Body   *Block // nil for abstract interface methods
}

// Capture is one field of a closure, filled at creation time.
type Capture struct {
	Name      string
	Type      types.Type
	FromLocal bool // true: a local slot of the creating function, else one of its captures
	Index     int
}

// Closure is the descriptor a function literal lowers to.
type Closure struct {
	ID           string // <Class>$lambda$<n>
	Owner        string
	Target       *types.Class  // functional interface implemented
	Method       *types.Method // its single abstract method
	Captures     []Capture
	CapturesThis bool
	Params       int
	Locals       []Local
	Body         *Block
}

// Resource is one `using` binding.
type Resource struct {
	Name  string
	Type  types.Type
	Index int // declaration order within the governing block
	Slot  int // value local
	State int // state local, see ResourceState
	Close *types.Method
	Pos   token.Position
}

// ResourceState is the value held in a resource's state slot.
type ResourceState int64

const (
	StateUnset ResourceState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ResourceState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unset"
}

// ---------- Statements ----------

type Stmt interface {
	stmtNode()
}

type Block struct {
	Stmts []Stmt
}

type ExprStmt struct {
	X Expr
}

type If struct {
	Cond Expr
	Then *Block
	Else *Block // may be nil
}

// Loop runs Body while Cond holds. A nil Cond loops forever. Post runs
// after every iteration, including ones ended by continue. PostTest
// checks Cond after the first iteration only (do/while).
type Loop struct {
	ID       int
	Label    string
	Cond     Expr
	Post     Expr
	Body     *Block
	PostTest bool
}

// Labeled is a labeled non-loop statement; break may target it.
type Labeled struct {
	ID    int
	Label string
	Body  *Block
}

type ExitKind int

const (
	ExitReturn ExitKind = iota
	ExitBreak
	ExitContinue
)

func (k ExitKind) String() string {
	switch k {
	case ExitReturn:
		return "return"
	case ExitBreak:
		return "break"
	case ExitContinue:
		return "continue"
	}
	return "exit?"
}

type UnwindKind int

const (
	UnwindClose UnwindKind = iota
	UnwindFinally
	UnwindLeave // leaves a try without a finally block; Body is empty
)

func (k UnwindKind) String() string {
	switch k {
	case UnwindClose:
		return "close"
	case UnwindLeave:
		return "leave"
	}
	return "finally"
}

// UnwindStep is one cleanup an early exit runs on its way out: the close
// of a region's resource, an inlined copy of a finally block, or the mark
// of leaving a try.
type UnwindStep struct {
	Kind UnwindKind
	ID   int // Region or Try id
	Body *Block
}

// Exit is return, break or continue. Value is evaluated into the Spill
// slot before any unwind step runs, innermost step first. A finally or
// leave step and every step after it run outside the protected range of
// its Try: the catch of that Try does not see their exceptions and its
// finally block runs once.
type Exit struct {
	Kind   ExitKind
	Target int // Loop or Labeled id; unused for return
	Value  Expr
	Spill  int // -1 without a value
	Unwind []UnwindStep
	Pos    token.Position
}

type Throw struct {
	X Expr
}

// Try is a user try statement. Finally runs on normal completion and on
// exceptions; explicit exits carry their own inlined copy in Unwind, and
// the Try runs it together with the later steps once the exit leaves it.
type Try struct {
	ID        int
	Body      *Block
	CatchSlot int // -1 without catch
	Catch     *Block
	Finally   *Block // may be nil
}

// Region protects Body with the close of Resource. Entering it marks the
// resource open. Exit runs on normal completion of Body and is nil when
// Body cannot complete normally. Handler runs when Body throws.
type Region struct {
	ID       int
	Resource *Resource
	Body     *Block
	Exit     *Block
	Handler  *Handler
	Pos      token.Position
}

// Handler stores the in-flight exception in Slot and runs Body.
type Handler struct {
	Slot int
	Body *Block
}

// Close closes Resource when its state is open and its value is not null.
// With Into >= 0 a throwing close is attached as suppressed to the
// exception in that slot, or stored there when the slot is null.
type Close struct {
	Resource *Resource
	Into     int
}

// Rethrow throws the exception held in Slot.
type Rethrow struct {
	Slot int
}

func (*Block) stmtNode()    {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*Loop) stmtNode()     {}
func (*Labeled) stmtNode()  {}
func (*Exit) stmtNode()     {}
func (*Throw) stmtNode()    {}
func (*Try) stmtNode()      {}
func (*Region) stmtNode()   {}
func (*Close) stmtNode()    {}
func (*Rethrow) stmtNode()  {}

// ---------- Expressions ----------

type Expr interface {
	Type() types.Type
	exprNode()
}

type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBool
	ConstNull
)

// Const is a literal value. Integral kinds of every width use Int.
type Const struct {
	T      types.Type
	Kind   ConstKind
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// Load reads a local slot.
type Load struct {
	Slot int
	T    types.Type
}

// LoadCapture reads a capture field of the running closure.
type LoadCapture struct {
	Index int
	T     types.Type
}

type This struct {
	T *types.Class
}

type FieldRef struct {
	Owner  *types.Class
	Name   string
	Type   types.Type
	Static bool
}

// GetField reads a field; Recv is nil for static fields.
type GetField struct {
	Recv  Expr
	Field *FieldRef
}

type ArrayIndex struct {
	X     Expr
	Index Expr
	T     types.Type
}

type ArrayLen struct {
	X Expr
}

// Assign stores into a Load, GetField or ArrayIndex target and yields the
// stored value. A compound Op reads the target once, applies Op in OpType
// with Value, and narrows the result to the target type.
type Assign struct {
	Target Expr
	Op     token.Kind // token.Assign or a binary operator
	OpType types.Type
	Value  Expr
}

// Update is ++/-- on a Load, GetField or ArrayIndex target.
type Update struct {
	Target Expr
	Op     token.Kind
	Prefix bool
}

type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeVirtual
	InvokeInterface
	InvokeSpecial // constructors and super calls
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeStatic:
		return "static"
	case InvokeVirtual:
		return "virtual"
	case InvokeInterface:
		return "interface"
	case InvokeSpecial:
		return "special"
	}
	return "invoke?"
}

// Invoke calls a resolved method. Args are already converted to the
// parameter types; vararg elements are packed in a NewArray.
type Invoke struct {
	Kind   InvokeKind
	Recv   Expr // nil for static
	Method *types.Method
	Args   []Expr
}

type New struct {
	Class *types.Class
	Ctor  *types.Method
	Args  []Expr
}

// MakeClosure instantiates a closure, copying Captures in field order.
type MakeClosure struct {
	Closure  string
	Captures []Expr
	This     Expr // non-nil when the closure captures the receiver
	T        *types.Class
}

// Binary applies Op to operands already converted to OpType. And and Or
// short-circuit.
type Binary struct {
	Op     token.Kind
	X, Y   Expr
	OpType types.Type
	T      types.Type
}

type Unary struct {
	Op token.Kind
	X  Expr
	T  types.Type
}

// Concat is string concatenation of the string forms of Parts.
type Concat struct {
	Parts []Expr
}

type ConvKind int

const (
	ConvWiden ConvKind = iota
	ConvNarrow
	ConvBox
	ConvUnbox
	ConvCast // reference downcast, checked at run time
)

func (k ConvKind) String() string {
	switch k {
	case ConvWiden:
		return "widen"
	case ConvNarrow:
		return "narrow"
	case ConvBox:
		return "box"
	case ConvUnbox:
		return "unbox"
	case ConvCast:
		return "cast"
	}
	return "conv?"
}

type Convert struct {
	Kind ConvKind
	X    Expr
	T    types.Type
}

type Cond struct {
	Cond, Then, Else Expr
	T                types.Type
}

type NewArray struct {
	Elem  types.Type
	Elems []Expr
}

func (e *Const) Type() types.Type       { return e.T }
func (e *Load) Type() types.Type        { return e.T }
func (e *LoadCapture) Type() types.Type { return e.T }
func (e *This) Type() types.Type        { return e.T }
func (e *GetField) Type() types.Type    { return e.Field.Type }
func (e *ArrayIndex) Type() types.Type  { return e.T }
func (e *ArrayLen) Type() types.Type    { return types.Int }
func (e *Assign) Type() types.Type      { return e.Target.Type() }
func (e *Update) Type() types.Type      { return e.Target.Type() }
func (e *Invoke) Type() types.Type      { return resultOf(e.Method) }
func (e *New) Type() types.Type         { return e.Class }
func (e *MakeClosure) Type() types.Type { return e.T }
func (e *Binary) Type() types.Type      { return e.T }
func (e *Unary) Type() types.Type       { return e.T }
func (e *Concat) Type() types.Type      { return types.String }
func (e *Convert) Type() types.Type     { return e.T }
func (e *Cond) Type() types.Type        { return e.T }
func (e *NewArray) Type() types.Type    { return &types.Array{Elem: e.Elem} }

func resultOf(m *types.Method) types.Type {
	if m.Result == nil {
		return types.Void
	}
	return m.Result
}

func (*Const) exprNode()       {}
func (*Load) exprNode()        {}
func (*LoadCapture) exprNode() {}
func (*This) exprNode()        {}
func (*GetField) exprNode()    {}
func (*ArrayIndex) exprNode()  {}
func (*ArrayLen) exprNode()    {}
func (*Assign) exprNode()      {}
func (*Update) exprNode()      {}
func (*Invoke) exprNode()      {}
func (*New) exprNode()         {}
func (*MakeClosure) exprNode() {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Concat) exprNode()      {}
func (*Convert) exprNode()     {}
func (*Cond) exprNode()        {}
func (*NewArray) exprNode()    {}

// Closure returns the closure with id, or nil.
func (u *Unit) Closure(id string) *Closure {
	for _, c := range u.Closures {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Class returns the class named name, or nil.
func (u *Unit) Class(name string) *Class {
	for _, c := range u.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Method returns the first method of c with the given name, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Sig.Name == name {
			return m
		}
	}
	return nil
}

// Terminates reports whether b can never complete normally.
func Terminates(b *Block) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	return stmtTerminates(b.Stmts[len(b.Stmts)-1])
}

func stmtTerminates(s Stmt) bool {
	switch s := s.(type) {
	case *Exit, *Throw, *Rethrow:
		return true
	case *Block:
		return Terminates(s)
	case *If:
		return s.Else != nil && Terminates(s.Then) && Terminates(s.Else)
	case *Region:
		return Terminates(s.Body)
	case *Try:
		if s.Finally != nil && Terminates(s.Finally) {
			return true
		}
		return Terminates(s.Body) && (s.Catch == nil || Terminates(s.Catch))
	}
	return false
}

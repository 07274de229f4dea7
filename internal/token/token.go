package token

import "fmt"

// Kind identifies an operator carried by AST and IR expression nodes.
type Kind int

const (
	Illegal Kind = iota

	// Arithmetic
	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %

	// Bitwise
	Amp   // &
	Pipe  // |
	Caret // ^
	Shl   // <<
	Shr   // >>
	UShr  // >>>
	Tilde // ~

	// Comparison
	Eq    // ==
	NotEq // !=
	Lt    // <
	Lte   // <=
	Gt    // >
	Gte   // >=

	// Logic
	And  // &&
	Or   // ||
	Bang // !

	// Assignment
	Assign        // =
	PlusAssign    // +=
	MinusAssign   // -=
	StarAssign    // *=
	SlashAssign   // /=
	PercentAssign // %=

	// Update
	Inc // ++
	Dec // --
)

var kindNames = map[Kind]string{
	Illegal:       "Illegal",
	Plus:          "+",
	Minus:         "-",
	Star:          "*",
	Slash:         "/",
	Percent:       "%",
	Amp:           "&",
	Pipe:          "|",
	Caret:         "^",
	Shl:           "<<",
	Shr:           ">>",
	UShr:          ">>>",
	Tilde:         "~",
	Eq:            "==",
	NotEq:         "!=",
	Lt:            "<",
	Lte:           "<=",
	Gt:            ">",
	Gte:           ">=",
	And:           "&&",
	Or:            "||",
	Bang:          "!",
	Assign:        "=",
	PlusAssign:    "+=",
	MinusAssign:   "-=",
	StarAssign:    "*=",
	SlashAssign:   "/=",
	PercentAssign: "%=",
	Inc:           "++",
	Dec:           "--",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Lookup maps an operator spelling (as found in AST documents) to its Kind.
// Unknown spellings map to Illegal.
func Lookup(op string) Kind {
	switch op {
	case "===":
		return Eq
	case "!==":
		return NotEq
	}
	for k, s := range kindNames {
		if s == op && k != Illegal {
			return k
		}
	}
	return Illegal
}

// IsComparison reports whether k yields a boolean from two operands.
func (k Kind) IsComparison() bool {
	switch k {
	case Eq, NotEq, Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

// IsLogical reports whether k is a short-circuit operator.
func (k Kind) IsLogical() bool {
	return k == And || k == Or
}

// Compound returns the binary operator behind a compound assignment
// (PlusAssign -> Plus). ok is false for plain Assign and non-assignments.
func (k Kind) Compound() (Kind, bool) {
	switch k {
	case PlusAssign:
		return Plus, true
	case MinusAssign:
		return Minus, true
	case StarAssign:
		return Star, true
	case SlashAssign:
		return Slash, true
	case PercentAssign:
		return Percent, true
	}
	return Illegal, false
}

// Position is a location in a source unit.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool { return p.Line > 0 }

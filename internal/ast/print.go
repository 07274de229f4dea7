package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *Unit:
		fmt.Fprintf(w, "%sUnit name=%s namespace=%s\n", ind, n.Name, n.Namespace)
		for _, imp := range n.Imports {
			fprintNode(w, imp, indent+1)
		}
		for _, c := range n.Classes {
			fprintNode(w, c, indent+1)
		}
		for _, i := range n.Interfaces {
			fprintNode(w, i, indent+1)
		}

	case *ImportDecl:
		alias := n.Alias
		if alias == "" {
			alias = "<default>"
		}
		fmt.Fprintf(w, "%sImportDecl path=%s alias=%s\n", ind, n.Path, alias)

	case *ClassDecl:
		fmt.Fprintf(w, "%sClassDecl name=%s", ind, n.Name)
		if n.Super != nil {
			fmt.Fprintf(w, " extends=%s", TypeName(n.Super))
		}
		for _, i := range n.Implements {
			fmt.Fprintf(w, " implements=%s", TypeName(i))
		}
		fmt.Fprintln(w)
		for _, f := range n.Fields {
			fprintNode(w, f, indent+1)
		}
		for _, m := range n.Methods {
			fprintNode(w, m, indent+1)
		}

	case *FieldDecl:
		fmt.Fprintf(w, "%sFieldDecl name=%s type=%s%s%s\n", ind, n.Name, TypeName(n.Type), flag(n.Static, " static"), flag(n.Readonly, " readonly"))
		if n.Init != nil {
			fprintNode(w, n.Init, indent+1)
		}

	case *MethodDecl:
		fmt.Fprintf(w, "%sMethodDecl name=%s result=%s%s%s\n", ind, n.Name, resultName(n.Result), flag(n.Static, " static"), flag(n.Constructor, " constructor"))
		for _, p := range n.Params {
			fprintNode(w, p, indent+1)
		}
		fprintNode(w, n.Body, indent+1)

	case *Param:
		fmt.Fprintf(w, "%sParam name=%s type=%s%s\n", ind, n.Name, TypeName(n.Type), flag(n.Rest, " rest"))

	case *InterfaceDecl:
		fmt.Fprintf(w, "%sInterfaceDecl name=%s\n", ind, n.Name)
		for _, m := range n.Methods {
			fmt.Fprintf(w, "%s  Method name=%s result=%s params=%d\n", ind, m.Name, resultName(m.Result), len(m.Params))
		}

	case *BlockStmt:
		if n == nil {
			return
		}
		fmt.Fprintf(w, "%sBlock\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}

	case *VarDeclStmt:
		kind := "let"
		if n.Kind == DeclConst {
			kind = "const"
		}
		fmt.Fprintf(w, "%sVarDecl %s name=%s type=%s\n", ind, kind, n.Name, TypeName(n.Type))
		fprintNode(w, n.Value, indent+1)

	case *UsingStmt:
		fmt.Fprintf(w, "%sUsing\n", ind)
		for _, d := range n.Decls {
			fmt.Fprintf(w, "%s  Decl name=%s type=%s\n", ind, d.Name, TypeName(d.Type))
			fprintNode(w, d.Value, indent+2)
		}

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.Expression, indent+1)

	case *IfStmt:
		fmt.Fprintf(w, "%sIf\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Then, indent+1)
		if n.Else != nil {
			fmt.Fprintf(w, "%s  Else\n", ind)
			fprintNode(w, n.Else, indent+2)
		}

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturn\n", ind)
		fprintNode(w, n.Result, indent+1)

	case *ThrowStmt:
		fmt.Fprintf(w, "%sThrow\n", ind)
		fprintNode(w, n.Expr, indent+1)

	case *BreakStmt:
		fmt.Fprintf(w, "%sBreak%s\n", ind, labelSuffix(n.Label))

	case *ContinueStmt:
		fmt.Fprintf(w, "%sContinue%s\n", ind, labelSuffix(n.Label))

	case *LabeledStmt:
		fmt.Fprintf(w, "%sLabeled label=%s\n", ind, n.Label)
		fprintNode(w, n.Body, indent+1)

	case *TryStmt:
		fmt.Fprintf(w, "%sTry\n", ind)
		fprintNode(w, n.Body, indent+1)
		if n.CatchBody != nil {
			fmt.Fprintf(w, "%s  Catch name=%s\n", ind, n.CatchName)
			fprintNode(w, n.CatchBody, indent+2)
		}
		if n.Finally != nil {
			fmt.Fprintf(w, "%s  Finally\n", ind)
			fprintNode(w, n.Finally, indent+2)
		}

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhile\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Body, indent+1)

	case *DoWhileStmt:
		fmt.Fprintf(w, "%sDoWhile\n", ind)
		fprintNode(w, n.Body, indent+1)
		fprintNode(w, n.Cond, indent+1)

	case *ForStmt:
		fmt.Fprintf(w, "%sFor\n", ind)
		fprintNode(w, n.Init, indent+1)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Post, indent+1)
		fprintNode(w, n.Body, indent+1)

	case *IdentExpr:
		fmt.Fprintf(w, "%sIdent %s\n", ind, n.Name)
	case *ThisExpr:
		fmt.Fprintf(w, "%sThis\n", ind)
	case *IntLiteral:
		fmt.Fprintf(w, "%sInt %d\n", ind, n.Value)
	case *FloatLiteral:
		fmt.Fprintf(w, "%sFloat %g\n", ind, n.Value)
	case *StringLiteral:
		fmt.Fprintf(w, "%sString %q\n", ind, n.Value)
	case *BoolLiteral:
		fmt.Fprintf(w, "%sBool %t\n", ind, n.Value)
	case *NullLiteral:
		fmt.Fprintf(w, "%sNull\n", ind)

	case *ArrayLiteral:
		fmt.Fprintf(w, "%sArray elem=%s\n", ind, TypeName(n.Elem))
		for _, e := range n.Elements {
			fprintNode(w, e, indent+1)
		}

	case *UnaryExpr:
		fmt.Fprintf(w, "%sUnary %s\n", ind, n.Op)
		fprintNode(w, n.X, indent+1)

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinary %s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *AssignExpr:
		fmt.Fprintf(w, "%sAssign %s\n", ind, n.Op)
		fprintNode(w, n.Target, indent+1)
		fprintNode(w, n.Value, indent+1)

	case *UpdateExpr:
		fmt.Fprintf(w, "%sUpdate %s prefix=%t\n", ind, n.Op, n.Prefix)
		fprintNode(w, n.Target, indent+1)

	case *CondExpr:
		fmt.Fprintf(w, "%sCond\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Then, indent+1)
		fprintNode(w, n.Else, indent+1)

	case *CallExpr:
		fmt.Fprintf(w, "%sCall\n", ind)
		fprintNode(w, n.Callee, indent+1)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *NewExpr:
		fmt.Fprintf(w, "%sNew %s\n", ind, TypeName(n.Type))
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *MemberExpr:
		fmt.Fprintf(w, "%sMember .%s\n", ind, n.Name)
		fprintNode(w, n.X, indent+1)

	case *IndexExpr:
		fmt.Fprintf(w, "%sIndex\n", ind)
		fprintNode(w, n.X, indent+1)
		fprintNode(w, n.Index, indent+1)

	case *FuncLiteral:
		fmt.Fprintf(w, "%sFunc result=%s\n", ind, resultName(n.Result))
		for _, p := range n.Params {
			fprintNode(w, p, indent+1)
		}
		if n.Body != nil {
			fprintNode(w, n.Body, indent+1)
		} else {
			fprintNode(w, n.ExprBody, indent+1)
		}

	case *AsExpr:
		fmt.Fprintf(w, "%sAs %s\n", ind, TypeName(n.Type))
		fprintNode(w, n.X, indent+1)

	default:
		fmt.Fprintf(w, "%s<unknown %T>\n", ind, n)
	}
}

func flag(on bool, s string) string {
	if on {
		return s
	}
	return ""
}

func labelSuffix(label string) string {
	if label == "" {
		return ""
	}
	return " label=" + label
}

func resultName(t TypeNode) string {
	if t == nil {
		return "void"
	}
	return TypeName(t)
}

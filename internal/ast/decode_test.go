package ast_test

import (
	"strings"
	"testing"

	"tsbc/internal/ast"
	"tsbc/internal/token"
)

const sampleUnit = `{
  "kind": "Unit", "name": "demo", "source": "demo.ts", "namespace": "com.example",
  "imports": [{"kind": "Import", "path": "java.lang.StringBuilder", "pos": [1, 1]}],
  "classes": [{
    "kind": "Class", "name": "Demo", "pos": [2, 7],
    "methods": [{
      "kind": "Method", "name": "run", "static": true, "pos": [3, 10],
      "params": [{"kind": "Param", "name": "n", "pos": [3, 14], "type": {"kind": "SimpleType", "name": "int"}}],
      "result": {"kind": "SimpleType", "name": "int"},
      "body": {"kind": "Block", "pos": [3, 30], "stmts": [
        {"kind": "VarDecl", "decl": "const", "name": "k", "pos": [4, 5],
         "init": {"kind": "Number", "value": 2, "raw": "2", "pos": [4, 15]}},
        {"kind": "Using", "pos": [5, 5], "decls": [
          {"kind": "UsingDecl", "name": "r", "pos": [5, 11],
           "type": {"kind": "SimpleType", "name": "Res"},
           "init": {"kind": "New", "pos": [5, 20], "type": {"kind": "SimpleType", "name": "Res"}}}
        ]},
        {"kind": "Return", "pos": [6, 5], "x": {
          "kind": "Binary", "op": "*", "pos": [6, 14],
          "left": {"kind": "Ident", "name": "n", "pos": [6, 12]},
          "right": {"kind": "Ident", "name": "k", "pos": [6, 16]}}}
      ]}
    }]
  }]
}`

func TestDecodeUnit(t *testing.T) {
	u, err := ast.DecodeUnit(strings.NewReader(sampleUnit))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Name != "demo" || u.Namespace != "com.example" {
		t.Fatalf("unexpected unit header: %+v", u)
	}
	if len(u.Imports) != 1 || u.Imports[0].Path != "java.lang.StringBuilder" {
		t.Fatalf("unexpected imports: %+v", u.Imports)
	}
	if len(u.Classes) != 1 || len(u.Classes[0].Methods) != 1 {
		t.Fatalf("expected one class with one method")
	}
	m := u.Classes[0].Methods[0]
	if !m.Static || m.Name != "run" || len(m.Params) != 1 {
		t.Fatalf("unexpected method: %+v", m)
	}
	if got := m.NamePos; got != (token.Position{File: "demo.ts", Line: 3, Column: 10}) {
		t.Fatalf("unexpected method position %v", got)
	}
	stmts := m.Body.Stmts
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	decl, ok := stmts[0].(*ast.VarDeclStmt)
	if !ok || decl.Kind != ast.DeclConst {
		t.Fatalf("expected const declaration, got %T", stmts[0])
	}
	if lit, ok := decl.Value.(*ast.IntLiteral); !ok || lit.Value != 2 {
		t.Fatalf("expected int literal 2, got %#v", decl.Value)
	}
	using, ok := stmts[1].(*ast.UsingStmt)
	if !ok || len(using.Decls) != 1 || using.Decls[0].Name != "r" {
		t.Fatalf("unexpected using statement: %#v", stmts[1])
	}
	ret := stmts[2].(*ast.ReturnStmt)
	bin, ok := ret.Result.(*ast.BinaryExpr)
	if !ok || bin.Op != token.Star {
		t.Fatalf("expected multiplication, got %#v", ret.Result)
	}

	dump := ast.Dump(u)
	for _, want := range []string{"ClassDecl name=Demo", "Using", "Binary *"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestDecodeUnit_Errors(t *testing.T) {
	cases := map[string]string{
		"not a unit":      `{"kind": "Class"}`,
		"bad statement":   `{"kind": "Unit", "classes": [{"kind": "Class", "methods": [{"kind": "Method", "body": {"kind": "Block", "stmts": [{"kind": "Goto"}]}}]}]}`,
		"bad operator":    `{"kind": "Unit", "classes": [{"kind": "Class", "fields": [{"kind": "Field", "init": {"kind": "Unary", "op": "??", "x": {"kind": "Null"}}}]}]}`,
		"unknown field":   `{"kind": "Unit", "color": "blue"}`,
		"empty using":     `{"kind": "Unit", "classes": [{"kind": "Class", "methods": [{"kind": "Method", "body": {"kind": "Block", "stmts": [{"kind": "Using"}]}}]}]}`,
		"literal missing": `{"kind": "Unit", "classes": [{"kind": "Class", "fields": [{"kind": "Field", "init": {"kind": "String"}}]}]}`,
	}
	for name, doc := range cases {
		if _, err := ast.DecodeUnit(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeUnit_FloatLiteral(t *testing.T) {
	doc := `{"kind": "Unit", "classes": [{"kind": "Class", "fields": [
	  {"kind": "Field", "name": "a", "init": {"kind": "Number", "value": 1.0, "raw": "1.0"}},
	  {"kind": "Field", "name": "b", "init": {"kind": "Number", "value": 1.5, "raw": "1.5"}},
	  {"kind": "Field", "name": "c", "init": {"kind": "Number", "value": 16, "raw": "0x10"}}
	]}]}`
	u, err := ast.DecodeUnit(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	fields := u.Classes[0].Fields
	if _, ok := fields[0].Init.(*ast.FloatLiteral); !ok {
		t.Fatalf("1.0 should stay a float literal, got %T", fields[0].Init)
	}
	if _, ok := fields[1].Init.(*ast.FloatLiteral); !ok {
		t.Fatalf("1.5 should be a float literal, got %T", fields[1].Init)
	}
	if lit, ok := fields[2].Init.(*ast.IntLiteral); !ok || lit.Value != 16 {
		t.Fatalf("0x10 should be int 16, got %#v", fields[2].Init)
	}
}

package ir_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/token"
	"tsbc/internal/types"
)

var closeable = types.NewClass("java.io.Closeable")

func closeMethod() *types.Method {
	return &types.Method{Owner: closeable, Name: "close", Abstract: true}
}

// sampleUnit builds:
//
//	static int run(Closeable c) { using r = c; return 1 + 2; }
func sampleUnit() *ir.Unit {
	res := &ir.Resource{Name: "r", Type: closeable, Index: 0, Slot: 1, State: 2, Close: closeMethod(), Pos: token.Position{File: "a.ts", Line: 2, Column: 9}}
	ret := &ir.Exit{
		Kind:  ir.ExitReturn,
		Value: &ir.Binary{Op: token.Plus, X: &ir.Const{T: types.Int, Kind: ir.ConstInt, Int: 1}, Y: &ir.Const{T: types.Int, Kind: ir.ConstInt, Int: 2}, OpType: types.Int, T: types.Int},
		Spill: 3,
		Unwind: []ir.UnwindStep{
			{Kind: ir.UnwindClose, ID: 0, Body: &ir.Block{Stmts: []ir.Stmt{&ir.Close{Resource: res, Into: -1}}}},
		},
		Pos: token.Position{File: "a.ts", Line: 3, Column: 3},
	}
	region := &ir.Region{
		ID:       0,
		Resource: res,
		Body:     &ir.Block{Stmts: []ir.Stmt{ret}},
		Handler: &ir.Handler{Slot: 4, Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.Close{Resource: res, Into: 4},
			&ir.Rethrow{Slot: 4},
		}}},
		Pos: res.Pos,
	}
	sig := &types.Method{Owner: types.NewClass("demo.Main"), Name: "run", Params: []types.Type{closeable}, Result: types.Int, Static: true}
	m := &ir.Method{
		Sig:    sig,
		Params: 1,
		Locals: []ir.Local{
			{Slot: 0, Name: "c", Type: closeable},
			{Slot: 1, Name: "r", Type: closeable},
			{Slot: 2, Name: "r$state", Type: types.Int, Synthetic: true},
			{Slot: 3, Name: "$ret", Type: types.Int, Synthetic: true},
			{Slot: 4, Name: "$exc", Type: types.Throwable, Synthetic: true},
		},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.ExprStmt{X: &ir.Assign{Target: &ir.Load{Slot: 1, T: closeable}, Op: token.Assign, Value: &ir.Load{Slot: 0, T: closeable}}},
			region,
		}},
	}
	return &ir.Unit{
		Name:    "a",
		Source:  "a.ts",
		Target:  "17",
		Classes: []*ir.Class{{Name: "demo.Main", Super: "java.lang.Object", Methods: []*ir.Method{m}}},
	}
}

func TestValidate_Sample(t *testing.T) {
	if err := ir.Validate(sampleUnit()); err != nil {
		t.Fatalf("sample unit must validate: %v", err)
	}
}

func TestValidate_MissingUnwindStep(t *testing.T) {
	u := sampleUnit()
	region := u.Classes[0].Methods[0].Body.Stmts[1].(*ir.Region)
	region.Body.Stmts[0].(*ir.Exit).Unwind = nil

	err := ir.Validate(u)
	var ie *diag.InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InternalError, got %v", err)
	}
	if !strings.Contains(ie.Msg, "crosses 1 cleanups but unwinds 0") {
		t.Fatalf("unexpected message: %s", ie.Msg)
	}
	if ie.Pos.Line != 3 {
		t.Fatalf("error must point at the exit, got %s", ie.Pos)
	}
}

func TestValidate_MissingFallthroughClose(t *testing.T) {
	u := sampleUnit()
	region := u.Classes[0].Methods[0].Body.Stmts[1].(*ir.Region)
	region.Body.Stmts = nil

	if err := ir.Validate(u); err == nil {
		t.Fatalf("region without fallthrough close must be rejected")
	}
	region.Exit = &ir.Block{Stmts: []ir.Stmt{&ir.Close{Resource: region.Resource, Into: -1}}}
	if err := ir.Validate(u); err != nil {
		t.Fatalf("empty region body with exit close must validate: %v", err)
	}
}

func TestValidate_BreakTarget(t *testing.T) {
	u := sampleUnit()
	m := u.Classes[0].Methods[0]
	m.Body.Stmts = append(m.Body.Stmts, &ir.Exit{Kind: ir.ExitBreak, Target: 7, Spill: -1})
	if err := ir.Validate(u); err == nil {
		t.Fatalf("break without a target must be rejected")
	}

	m.Body.Stmts = m.Body.Stmts[:2]
	m.Body.Stmts = append(m.Body.Stmts, &ir.Labeled{ID: 7, Label: "out", Body: &ir.Block{Stmts: []ir.Stmt{
		&ir.Exit{Kind: ir.ExitContinue, Target: 7, Spill: -1},
	}}})
	if err := ir.Validate(u); err == nil {
		t.Fatalf("continue to a labeled block must be rejected")
	}
}

func TestWriteReadUnit_RoundTrip(t *testing.T) {
	u := sampleUnit()
	var buf bytes.Buffer
	if err := ir.WriteUnit(&buf, u); err != nil {
		t.Fatalf("WriteUnit: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("TSIR")) {
		t.Fatalf("missing magic header")
	}
	got, err := ir.ReadUnit(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadUnit: %v", err)
	}
	if diff := cmp.Diff(ir.Dump(u), ir.Dump(got)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if err := ir.Validate(got); err != nil {
		t.Fatalf("read unit must still validate (shared resources): %v", err)
	}

	var again bytes.Buffer
	if err := ir.WriteUnit(&again, got); err != nil {
		t.Fatalf("WriteUnit after read: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Fatalf("re-serialized image differs")
	}
}

func TestImage_Deterministic(t *testing.T) {
	b1, fp1, err := ir.Image(sampleUnit())
	if err != nil {
		t.Fatal(err)
	}
	b2, fp2, err := ir.Image(sampleUnit())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) || fp1 != fp2 {
		t.Fatalf("images of equal units differ")
	}
	if len(fp1.String()) != 64 {
		t.Fatalf("fingerprint must be 32 bytes hex, got %q", fp1.String())
	}
}

func TestReadUnit_BadMagic(t *testing.T) {
	if _, err := ir.ReadUnit(strings.NewReader("AVC2....")); err == nil {
		t.Fatalf("expected magic header error")
	}
}

func TestDump(t *testing.T) {
	got := ir.Dump(sampleUnit())
	want := `unit a target=17
  class demo.Main extends java.lang.Object
    method run(Ljava/io/Closeable;)I static
      local 0 c java.io.Closeable
      local 1 r java.io.Closeable
      local 2 r$state int synthetic
      local 3 $ret int synthetic
      local 4 $exc java.lang.Throwable synthetic
      $1 = $0
      region 0 using r java.io.Closeable #0 value=$1 state=$2 close=java.io.Closeable.close()
        return (1:int + 2:int) via $3
          unwind close 0
            close r
      handler $4
        close r suppress-into $4
        rethrow $4
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_ExitLeavingTry(t *testing.T) {
	u := sampleUnit()
	region := u.Classes[0].Methods[0].Body.Stmts[1].(*ir.Region)
	ret := region.Body.Stmts[0].(*ir.Exit)
	region.Body.Stmts[0] = &ir.Try{
		ID:        5,
		Body:      &ir.Block{Stmts: []ir.Stmt{ret}},
		CatchSlot: 4,
		Catch:     &ir.Block{Stmts: []ir.Stmt{&ir.Rethrow{Slot: 4}}},
	}

	err := ir.Validate(u)
	var ie *diag.InternalError
	if !errors.As(err, &ie) || !strings.Contains(ie.Msg, "crosses 2 cleanups but unwinds 1") {
		t.Fatalf("an exit leaving the try must carry its leave step, got %v", err)
	}

	ret.Unwind = append([]ir.UnwindStep{{Kind: ir.UnwindFinally, ID: 5, Body: &ir.Block{}}}, ret.Unwind...)
	if err := ir.Validate(u); err == nil || !strings.Contains(err.Error(), "want leave of try 5") {
		t.Fatalf("a try without finally must be left with a leave step, got %v", err)
	}

	ret.Unwind[0].Kind = ir.UnwindLeave
	if err := ir.Validate(u); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

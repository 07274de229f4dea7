package driver_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"tsbc/internal/ast"
	"tsbc/internal/ast/asttest"
	"tsbc/internal/diag"
	"tsbc/internal/driver"
	"tsbc/internal/ir"
	"tsbc/internal/typeindex"
	"tsbc/internal/types"
)

func newDriver(t *testing.T, opts driver.Options) *driver.Driver {
	t.Helper()
	if opts.Target == "" {
		opts.Target = "17"
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := driver.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func units() []*ast.Unit {
	b := asttest.New("shapes.ts")
	shapes := b.Unit("shapes", b.Class("Square", "",
		b.Field("side", "int", nil),
		b.Ctor(b.Params("side", "int"), b.Expr(b.Assign(b.Sel(b.This(), "side"), b.Ident("side")))),
		b.Method("area", "int", nil, b.Return(b.Bin(b.Sel(b.This(), "side"), "*", b.Sel(b.This(), "side")))),
	))
	m := asttest.New("main.ts")
	main := m.Unit("main", m.Class("Main", "",
		m.StaticMethod("run", "int", nil,
			m.Const("s", "", m.New("Square", m.Int(3))),
			m.Return(m.Call(m.Sel(m.Ident("s"), "area"))),
		),
	))
	return []*ast.Unit{shapes, main}
}

func TestBuildLowersEveryUnit(t *testing.T) {
	d := newDriver(t, driver.Options{Parallelism: 2})
	results, idx, err := d.Build(context.Background(), units())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if failed := driver.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed[0].Err)
	}
	if len(results) != 2 || results[0].Name != "shapes" || results[1].Name != "main" {
		t.Fatalf("results must follow input order")
	}
	for _, r := range results {
		if len(r.Image) == 0 || r.BuildID.Version() != 5 {
			t.Fatalf("unit %s: missing image or name-based build id", r.Name)
		}
	}
	if _, ok := idx.Class("Square"); !ok {
		t.Fatalf("the returned index must include unit classes")
	}
}

func TestBuildIsReproducible(t *testing.T) {
	first, _, err := newDriver(t, driver.Options{}).Build(context.Background(), units())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, _, err := newDriver(t, driver.Options{Parallelism: 1}).Build(context.Background(), units())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := range first {
		if !bytes.Equal(first[i].Image, second[i].Image) || first[i].BuildID != second[i].BuildID {
			t.Fatalf("unit %s differs between builds", first[i].Name)
		}
	}
}

func TestBuildReportsUnitErrorsSeparately(t *testing.T) {
	us := units()
	b := asttest.New("broken.ts")
	us = append(us, b.Unit("broken", b.Class("Broken", "",
		b.StaticMethod("run", "int", nil, b.Return(b.Ident("nowhere"))),
	)))

	results, _, err := newDriver(t, driver.Options{}).Build(context.Background(), us)
	if err != nil {
		t.Fatalf("unit errors must not abort the build: %v", err)
	}
	failed := driver.Failed(results)
	if len(failed) != 1 || failed[0].Name != "broken" {
		t.Fatalf("expected only broken to fail, got %d failures", len(failed))
	}
	var uie *diag.UnresolvedIdentifierError
	if !errors.As(failed[0].Err, &uie) || uie.Name != "nowhere" {
		t.Fatalf("expected UnresolvedIdentifierError, got %v", failed[0].Err)
	}
	if got := len(driver.Units(results)); got != 2 {
		t.Fatalf("expected 2 lowered units, got %d", got)
	}
}

func TestBuildDeclarationErrors(t *testing.T) {
	b := asttest.New("decl.ts")
	u := b.Unit("decl", b.Class("Main", "",
		b.StaticMethod("run", "Missing", nil),
	))
	_, _, err := newDriver(t, driver.Options{}).Build(context.Background(), []*ast.Unit{u})
	var uie *diag.UnresolvedIdentifierError
	if !errors.As(err, &uie) || uie.Name != "Missing" {
		t.Fatalf("expected the unresolved result type, got %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newDriver(t, driver.Options{}).Build(ctx, units())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCatalogReplacesCoreClass(t *testing.T) {
	extra := &typeindex.ClassInfo{
		Name:  "java.lang.Math",
		Super: "java.lang.Object",
		Methods: []*types.Method{{
			Owner:  types.NewClass("java.lang.Math"),
			Name:   "twice",
			Params: []types.Type{types.Int},
			Result: types.Int,
			Static: true,
		}},
	}
	d := newDriver(t, driver.Options{Catalog: []*typeindex.ClassInfo{extra}})
	if ms := d.Index().Lookup(types.NewClass("java.lang.Math"), "twice", 1); len(ms) != 1 {
		t.Fatalf("expected the catalog method, got %v", ms)
	}
	if ms := d.Index().Lookup(types.NewClass("java.lang.Math"), "abs", 1); len(ms) != 0 {
		t.Fatalf("the catalog class must replace the core class")
	}
}

func TestResultWrite(t *testing.T) {
	results, _, err := newDriver(t, driver.Options{}).Build(context.Background(), units())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "out")
	path, err := results[1].Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	u, err := ir.ReadUnitFromFile(path)
	if err != nil {
		t.Fatalf("ReadUnitFromFile: %v", err)
	}
	if u.Name != "main" {
		t.Fatalf("read back unit %s", u.Name)
	}
	if _, err := os.Stat(filepath.Join(dir, "main"+driver.ImageExt)); err != nil {
		t.Fatalf("image not written: %v", err)
	}
}

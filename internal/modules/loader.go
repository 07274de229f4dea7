// Package modules finds and decodes the AST unit documents of a build.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tsbc/internal/ast"
)

// Ext is the file extension of a unit document.
const Ext = ".ast.json"

// UnitFile is one decoded unit document.
type UnitFile struct {
	Name     string // unit name, unique within a World
	FilePath string
	Unit     *ast.Unit
}

// World holds every unit of a build.
type World struct {
	Units map[string]*UnitFile // by unit name
	Root  string               // directory imports are resolved against
	Entry []string             // names of the units loaded from the entry path
}

// Sorted returns the units ordered by name.
func (w *World) Sorted() []*UnitFile {
	names := make([]string, 0, len(w.Units))
	for name := range w.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*UnitFile, len(names))
	for i, name := range names {
		out[i] = w.Units[name]
	}
	return out
}

// ASTs returns the decoded units ordered by name.
func (w *World) ASTs() []*ast.Unit {
	var out []*ast.Unit
	for _, uf := range w.Sorted() {
		out = append(out, uf.Unit)
	}
	return out
}

// LoadWorld loads the unit documents at entry, a file or a directory,
// and every unit document its imports name, recursively.
func LoadWorld(entry string) (*World, []error) {
	entryAbs, err := filepath.Abs(entry)
	if err != nil {
		return nil, []error{fmt.Errorf("cannot resolve entry path: %v", err)}
	}
	info, err := os.Stat(entryAbs)
	if err != nil {
		return nil, []error{fmt.Errorf("cannot read entry: %v", err)}
	}
	root := filepath.Dir(entryAbs)
	files := []string{entryAbs}
	if info.IsDir() {
		root = entryAbs
		files, err = unitFilesIn(entryAbs)
		if err != nil {
			return nil, []error{err}
		}
		if len(files) == 0 {
			return nil, []error{fmt.Errorf("no %s files in %s", Ext, entryAbs)}
		}
	}

	w := &World{Units: make(map[string]*UnitFile), Root: root}
	visited := make(map[string]bool)
	var errs []error
	for _, f := range files {
		uf, lerrs := loadUnit(f, "", w, visited)
		errs = append(errs, lerrs...)
		if uf != nil {
			w.Entry = append(w.Entry, uf.Name)
		}
	}
	return w, errs
}

// loadUnit decodes one document and follows its imports. want is the
// class an import expects the document to declare, "" for entry files.
func loadUnit(path, want string, w *World, visited map[string]bool) (*UnitFile, []error) {
	if visited[path] {
		return nil, nil
	}
	visited[path] = true

	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("cannot read file %s: %v", path, err)}
	}
	u, err := ast.DecodeUnit(f)
	f.Close()
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}
	}
	if u.Name == "" {
		u.Name = strings.TrimSuffix(filepath.Base(path), Ext)
	}
	if u.Source == "" {
		u.Source = path
	}
	if prev, dup := w.Units[u.Name]; dup {
		return nil, []error{fmt.Errorf("%s: unit %q is already defined by %s", path, u.Name, prev.FilePath)}
	}
	if want != "" {
		if err := validateFileClassMapping(path, u, want); err != nil {
			return nil, []error{err}
		}
	}

	uf := &UnitFile{Name: u.Name, FilePath: path, Unit: u}
	w.Units[u.Name] = uf

	var errs []error
	for _, imp := range u.Imports {
		file, ok := findUnitFile(imp.Path, w.Root)
		if !ok {
			// Not a unit of this build; the type index resolves it.
			continue
		}
		_, lerrs := loadUnit(file, imp.Path, w, visited)
		errs = append(errs, lerrs...)
	}
	return uf, errs
}

// findUnitFile locates the document declaring the qualified class name:
// app.geo.Point is looked up as app/geo/Point/Point.ast.json, then as
// app/geo/Point.ast.json.
func findUnitFile(qualified, root string) (string, bool) {
	parts := strings.Split(qualified, ".")
	last := parts[len(parts)-1]

	folderFile := filepath.Join(root, filepath.Join(parts...), last+Ext)
	if _, err := os.Stat(folderFile); err == nil {
		return folderFile, true
	}
	flatFile := filepath.Join(root, filepath.Join(parts...)+Ext)
	if _, err := os.Stat(flatFile); err == nil {
		return flatFile, true
	}
	return "", false
}

func unitFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read unit directory %s: %v", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), Ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateFileClassMapping checks that an imported document declares the
// class or interface its import names.
func validateFileClassMapping(path string, u *ast.Unit, want string) error {
	var names []string
	for _, c := range u.Classes {
		names = append(names, c.Name)
		if qualified(u, c.Name) == want {
			return nil
		}
	}
	for _, i := range u.Interfaces {
		names = append(names, i.Name)
		if qualified(u, i.Name) == want {
			return nil
		}
	}
	return fmt.Errorf("%s: unit %q does not declare %s (declares: %s)", path, u.Name, want, strings.Join(names, ", "))
}

func qualified(u *ast.Unit, name string) string {
	if u.Namespace == "" {
		return name
	}
	return u.Namespace + "." + name
}

package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tsbc/internal/config"
)

func TestDecodeFullDocument(t *testing.T) {
	doc := `
target: "1.8"
aliases:
  number: int
  Str: java.lang.String
typeIndex:
  driver: sqlite
  dsn: "file:catalog.db"
output: build/ir
parallelism: 3
log:
  level: debug
  format: json
`
	cfg, err := config.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := &config.Config{
		Target:      "1.8",
		Aliases:     map[string]string{"number": "int", "Str": "java.lang.String"},
		TypeIndex:   config.TypeIndex{Driver: "sqlite", DSN: "file:catalog.db"},
		Output:      "build/ir",
		Parallelism: 3,
		Log:         config.Log{Level: "debug", Format: "json"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
	if lvl, _ := cfg.Log.SlogLevel(); lvl != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", lvl)
	}
}

func TestDecodeKeepsDefaults(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader("output: dist\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	def := config.Default()
	def.Output = "dist"
	if diff := cmp.Diff(def, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Target != "17" || cfg.Workers() < 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := config.Decode(strings.NewReader("targte: 17\n")); err == nil {
		t.Fatalf("expected an error for a misspelled key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad target", "target: seventeen\n", `target "seventeen"`},
		{"bad driver", "typeIndex: {driver: mysql, dsn: x}\n", "must be sqlite or postgres"},
		{"missing dsn", "typeIndex: {driver: postgres}\n", "typeIndex.dsn must be provided"},
		{"dsn without driver", "typeIndex: {dsn: x}\n", "without typeIndex.driver"},
		{"negative parallelism", "parallelism: -1\n", "parallelism"},
		{"bad level", "log: {level: loud}\n", `log.level "loud"`},
		{"bad format", "log: {format: xml}\n", `log.format "xml"`},
		{"empty alias", "aliases: {x: \"\"}\n", `aliases["x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(tt.doc))
			var ve *config.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, ve.Error())
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault without file: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("defaults must not name a file, got %s", cfg.Path)
	}

	if err := os.WriteFile(path, []byte("target: \"21\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = config.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Target != "21" || cfg.Path != path {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

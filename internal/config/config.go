// Package config loads the driver configuration file, tsbc.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tsbc/internal/types"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "tsbc.yaml"

// Config is the validated driver configuration.
type Config struct {
	Path string `yaml:"-"` // file the configuration was read from, "" for defaults

	// Target is the platform version tag, e.g. "17" or "1.8".
	Target string `yaml:"target"`
	// Aliases maps source type names to host type names.
	Aliases map[string]string `yaml:"aliases"`
	// TypeIndex names an optional SQL catalog merged over the core catalog.
	TypeIndex TypeIndex `yaml:"typeIndex"`
	// Output is the directory IR images are written to.
	Output string `yaml:"output"`
	// Parallelism bounds the units lowered at once. 0 means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
	Log         Log `yaml:"log"`
}

// TypeIndex selects a catalog database. Driver is "sqlite" or "postgres".
type TypeIndex struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json or auto
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Target:      "17",
		Aliases:     map[string]string{},
		Output:      "out",
		Parallelism: runtime.GOMAXPROCS(0),
		Log:         Log{Level: "info", Format: "auto"},
	}
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Load reads and validates the configuration at path. Fields the file
// leaves out keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", absPath, err)
	}
	cfg.Path = absPath
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Decode parses and validates a configuration document. Unknown keys
// are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs ValidationError
	if types.CanonicalVersion(c.Target) == "" {
		errs.Issues = append(errs.Issues, fmt.Sprintf("target %q is not a version tag", c.Target))
	}
	keys := make([]string, 0, len(c.Aliases))
	for k := range c.Aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" || c.Aliases[k] == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("aliases[%q] must map a non-empty name to a non-empty type", k))
		}
	}
	switch c.TypeIndex.Driver {
	case "":
		if c.TypeIndex.DSN != "" {
			errs.Issues = append(errs.Issues, "typeIndex.dsn is set without typeIndex.driver")
		}
	case "sqlite", "postgres":
		if c.TypeIndex.DSN == "" {
			errs.Issues = append(errs.Issues, "typeIndex.dsn must be provided")
		}
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("typeIndex.driver %q must be sqlite or postgres", c.TypeIndex.Driver))
	}
	if c.Parallelism < 0 {
		errs.Issues = append(errs.Issues, "parallelism must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs.Issues = append(errs.Issues, err.Error())
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("log.format %q must be text, json or auto", c.Log.Format))
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// SlogLevel converts Level for log/slog. An empty level is info.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not a level", l.Level)
	}
	return lvl, nil
}

// Workers returns the effective parallelism.
func (c *Config) Workers() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"tsbc/internal/config"
	"tsbc/internal/driver"
	"tsbc/internal/ir"
	"tsbc/internal/modules"
	"tsbc/internal/typeindex"
	"tsbc/internal/value"
	"tsbc/internal/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := os.Args[1]
	var err error
	switch cmd {
	case "build":
		err = cmdBuild(ctx, os.Args[2:])
	case "dump":
		err = cmdDump(ctx, os.Args[2:])
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "index":
		err = cmdIndex(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	case "version", "--version":
		fmt.Println("tsbc", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`tsbc lowers typed AST units to validated IR

Usage:
  tsbc build <unit.ast.json|dir> [-o dir] [flags]
  tsbc dump  <unit.ast.json|dir|unit.tsir> [flags]
  tsbc run   <unit.ast.json|dir> [-class Main] [-method main] [flags]
  tsbc index -dsn <dsn> [-driver sqlite|postgres] [-list]

Commands:
  build    Lower units and write one .tsir image per unit
  dump     Print the lowered IR of units or of a written image
  run      Lower units in memory and run a static method
  index    Export the core type catalog to a database, or list one
  version  Print the tsbc version

Common flags:
  -config  Configuration file (default: tsbc.yaml when present)
  -target  Platform version tag, overrides the configuration
  -j       Units lowered in parallel, overrides the configuration
  -v       Debug logging`)
}

// common holds the flags every lowering command accepts.
type common struct {
	configPath string
	target     string
	jobs       int
	verbose    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", config.FileName, "configuration file")
	fs.StringVar(&c.target, "target", "", "platform version tag")
	fs.IntVar(&c.jobs, "j", 0, "units lowered in parallel")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
}

// load reads the configuration and applies flag overrides.
func (c *common) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.target != "" {
		cfg.Target = c.target
	}
	if c.jobs > 0 {
		cfg.Parallelism = c.jobs
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newLogger writes text to a terminal and JSON otherwise, unless the
// configuration names a format.
func newLogger(lc config.Log) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	format := lc.Format
	if format == "" || format == "auto" {
		format = "json"
		if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func newDriver(ctx context.Context, cfg *config.Config, log *slog.Logger) (*driver.Driver, error) {
	opts := driver.Options{
		Target:      cfg.Target,
		Aliases:     cfg.Aliases,
		Parallelism: cfg.Workers(),
		Logger:      log,
	}
	if cfg.TypeIndex.Driver != "" {
		store, err := typeindex.OpenStore(cfg.TypeIndex.Driver, cfg.TypeIndex.DSN)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		opts.Catalog, err = store.Load(ctx)
		if err != nil {
			return nil, err
		}
		log.Debug("loaded catalog", slog.String("driver", cfg.TypeIndex.Driver), slog.Int("classes", len(opts.Catalog)))
	}
	return driver.New(opts)
}

// lowerAll loads the units at input and lowers them. Unit errors are
// printed and turned into one error.
func lowerAll(ctx context.Context, input string, cfg *config.Config, log *slog.Logger) ([]*driver.Result, typeindex.Index, error) {
	world, errs := modules.LoadWorld(input)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return nil, nil, fmt.Errorf("failed to load %s (%d errors)", input, len(errs))
	}
	d, err := newDriver(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	results, idx, err := d.Build(ctx, world.ASTs())
	if err != nil {
		return nil, nil, err
	}
	if failed := driver.Failed(results); len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintln(os.Stderr, r.Err)
		}
		return nil, nil, fmt.Errorf("%d of %d units failed", len(failed), len(results))
	}
	return results, idx, nil
}

// -------------- BUILD --------------

func cmdBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	var out string
	fs.StringVar(&out, "o", "", "output directory (default: configuration output)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("build: missing input")
	}

	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	if out == "" {
		out = cfg.Output
	}
	results, _, err := lowerAll(ctx, fs.Arg(0), cfg, log)
	if err != nil {
		return err
	}
	for _, r := range results {
		path, err := r.Write(out)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", path, humanize.Bytes(uint64(len(r.Image))), r.BuildID)
	}
	return nil
}

// -------------- DUMP --------------

func cmdDump(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dump: missing input")
	}
	input := fs.Arg(0)

	if filepath.Ext(input) == driver.ImageExt {
		u, err := ir.ReadUnitFromFile(input)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		fmt.Print(ir.Dump(u))
		return nil
	}

	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	results, _, err := lowerAll(ctx, input, cfg, log)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("// %s %s\n", r.Name, r.Fingerprint)
		fmt.Print(ir.Dump(r.Unit))
	}
	return nil
}

// -------------- RUN --------------

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	var class, method string
	fs.StringVar(&class, "class", "Main", "class declaring the entry point")
	fs.StringVar(&method, "method", "main", "static method to run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing input")
	}

	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	results, idx, err := lowerAll(ctx, fs.Arg(0), cfg, log)
	if err != nil {
		return err
	}
	m := vm.NewVM(idx, vm.NewCoreHost(os.Stdout), driver.Units(results)...)
	v, err := m.CallStatic(class, method)
	if err != nil {
		var thrown *value.Thrown
		if errors.As(err, &thrown) {
			return fmt.Errorf("uncaught %s", thrown)
		}
		return err
	}
	if v.Kind != value.KindNull {
		fmt.Println(v)
	}
	return nil
}

// -------------- INDEX --------------

func cmdIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var drv, dsn string
	var list bool
	fs.StringVar(&drv, "driver", "sqlite", "catalog driver: sqlite|postgres")
	fs.StringVar(&dsn, "dsn", "", "catalog data source name")
	fs.BoolVar(&list, "list", false, "list the catalog instead of exporting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if dsn == "" {
		return fmt.Errorf("index: missing -dsn")
	}

	store, err := typeindex.OpenStore(drv, dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	if !list {
		core := typeindex.Core()
		if err := store.Save(ctx, core); err != nil {
			return err
		}
		fmt.Printf("exported %s classes\n", humanize.Comma(int64(len(core))))
		return nil
	}
	classes, err := store.Load(ctx)
	if err != nil {
		return err
	}
	for _, ci := range classes {
		kind := "class"
		if ci.Interface {
			kind = "interface"
		}
		members := len(ci.Methods) + len(ci.Constructors) + len(ci.Fields)
		since := ""
		if ci.Since != "" {
			since = " since " + ci.Since
		}
		fmt.Printf("%-9s %s (%d members)%s\n", kind, ci.Name, members, since)
	}
	return nil
}

// Package driver runs the lowering pipeline over the units of a build:
// shared declaration, then per-unit lowering in parallel, validation and
// image serialization.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tsbc/internal/ast"
	"tsbc/internal/diag"
	"tsbc/internal/ir"
	"tsbc/internal/lower"
	"tsbc/internal/typeindex"
)

// ImageExt is the file extension of written IR images.
const ImageExt = ".tsir"

var tracer = otel.Tracer("tsbc/internal/driver")

// buildNamespace scopes the name-based build ids derived from image
// fingerprints.
var buildNamespace = uuid.MustParse("5f0c7a52-3d8e-4d0b-9a55-1b2f7e1c9d40")

// Options configures a Driver.
type Options struct {
	Target      string
	Aliases     map[string]string
	Parallelism int // 0 means GOMAXPROCS
	// Catalog holds extra classes, typically loaded from a typeindex.Store.
	// A catalog class replaces the core class of the same name.
	Catalog []*typeindex.ClassInfo
	Logger  *slog.Logger
}

// Result is the outcome of lowering one unit. Exactly one of Unit and
// Err is set.
type Result struct {
	Name        string
	Unit        *ir.Unit
	Image       []byte
	Fingerprint ir.Fingerprint
	BuildID     uuid.UUID
	Elapsed     time.Duration
	Err         error
}

// Driver lowers units against one platform target. A Driver is safe for
// concurrent use; its candidate memo is shared by every build.
type Driver struct {
	opts  Options
	log   *slog.Logger
	index *typeindex.Memo
}

// New builds the type index for opts.Target and returns a Driver.
func New(opts Options) (*Driver, error) {
	classes := typeindex.Core()
	if len(opts.Catalog) > 0 {
		classes = mergeCatalog(classes, opts.Catalog)
	}
	static, err := typeindex.NewStatic(opts.Target, classes...)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Driver{opts: opts, log: log, index: typeindex.NewMemo(static)}, nil
}

func mergeCatalog(core, extra []*typeindex.ClassInfo) []*typeindex.ClassInfo {
	replaced := make(map[string]*typeindex.ClassInfo, len(extra))
	for _, c := range extra {
		replaced[c.Name] = c
	}
	var out []*typeindex.ClassInfo
	for _, c := range core {
		if r, ok := replaced[c.Name]; ok {
			out = append(out, r)
			delete(replaced, c.Name)
			continue
		}
		out = append(out, c)
	}
	for _, c := range extra {
		if _, ok := replaced[c.Name]; ok {
			out = append(out, c)
			delete(replaced, c.Name)
		}
	}
	return out
}

// Index returns the shared host index. Unit-declared classes are not in it.
func (d *Driver) Index() typeindex.Index { return d.index }

func (d *Driver) lowerOptions() lower.Options {
	return lower.Options{Target: d.opts.Target, Aliases: d.opts.Aliases}
}

func (d *Driver) workers() int {
	if d.opts.Parallelism > 0 {
		return d.opts.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Build declares every unit, then lowers them in parallel. It returns one
// Result per unit, in input order, together with the overlay index the
// units were lowered against. Errors in a unit are reported in its Result
// and do not stop the others; an internal error or cancellation aborts the
// build and is returned.
func (d *Driver) Build(ctx context.Context, units []*ast.Unit) ([]*Result, typeindex.Index, error) {
	ctx, span := tracer.Start(ctx, "driver.Build", trace.WithAttributes(attribute.Int("units", len(units))))
	defer span.End()

	start := time.Now()
	overlay, err := lower.Declare(units, d.index, d.lowerOptions())
	if err != nil {
		span.SetStatus(codes.Error, "declare")
		return nil, nil, fmt.Errorf("declare: %w", err)
	}
	d.log.Debug("declared units", slog.Int("units", len(units)), slog.Int("classes", len(overlay.Local())))

	results := make([]*Result, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers())
	for i, u := range units {
		g.Go(func() error {
			r := d.lowerUnit(gctx, u, overlay)
			results[i] = r
			if r.Err == nil {
				return nil
			}
			var ie *diag.InternalError
			if errors.As(r.Err, &ie) || errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				return r.Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aborted")
		return results, overlay, err
	}

	hits, misses := d.index.Stats()
	d.log.Info("build finished",
		slog.Int("units", len(units)),
		slog.Int("failed", len(Failed(results))),
		slog.Int64("memo_hits", hits),
		slog.Int64("memo_misses", misses),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, overlay, nil
}

func (d *Driver) lowerUnit(ctx context.Context, u *ast.Unit, idx typeindex.Index) *Result {
	ctx, span := tracer.Start(ctx, "driver.lowerUnit", trace.WithAttributes(attribute.String("unit", u.Name)))
	defer span.End()

	r := &Result{Name: u.Name}
	start := time.Now()
	defer func() { r.Elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}
	out, err := lower.Lower(ctx, u, idx, d.lowerOptions())
	if err != nil {
		r.Err = fmt.Errorf("%s: %w", u.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lower")
		d.log.Debug("unit failed", slog.String("unit", u.Name), slog.String("error", err.Error()))
		return r
	}
	img, fp, err := ir.Image(out)
	if err != nil {
		r.Err = diag.Internalf(u.Pos(), "serialize %s: %v", u.Name, err)
		return r
	}
	r.Unit, r.Image, r.Fingerprint = out, img, fp
	r.BuildID = uuid.NewSHA1(buildNamespace, fp[:])
	span.SetAttributes(attribute.String("fingerprint", fp.String()))
	d.log.Info("lowered unit",
		slog.String("unit", u.Name),
		slog.Int("classes", len(out.Classes)),
		slog.Int("closures", len(out.Closures)),
		slog.Int("bytes", len(img)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return r
}

// Failed returns the results that carry an error.
func Failed(results []*Result) []*Result {
	var out []*Result
	for _, r := range results {
		if r != nil && r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Units returns the lowered units of the successful results.
func Units(results []*Result) []*ir.Unit {
	var out []*ir.Unit
	for _, r := range results {
		if r != nil && r.Unit != nil {
			out = append(out, r.Unit)
		}
	}
	return out
}

// Write stores the image of r as <dir>/<name>.tsir and returns the path.
func (r *Result) Write(dir string) (string, error) {
	if r.Unit == nil {
		return "", fmt.Errorf("driver: unit %s has no image", r.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("driver: %w", err)
	}
	path := filepath.Join(dir, r.Name+ImageExt)
	if err := os.WriteFile(path, r.Image, 0o644); err != nil {
		return "", fmt.Errorf("driver: write %s: %w", path, err)
	}
	return path, nil
}

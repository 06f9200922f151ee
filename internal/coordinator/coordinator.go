// Package coordinator runs a set of independent detectors over one code graph,
// concurrently when it can and sequentially when it must.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/pkg/analyzer"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/sourcegraph/conc/pool"
)

var (
	// ErrTimeout is recorded for a detector abandoned after the per-detector timeout.
	ErrTimeout = errors.New("detector timed out")

	// ErrPanic is recorded for a detector that panicked.
	ErrPanic = errors.New("detector panicked")

	// ErrProcessUnavailable means worker processes cannot be started here.
	ErrProcessUnavailable = errors.New("process workers unavailable")
)

// Mode selects how detectors are executed.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeGoroutine  Mode = "goroutine"
	ModeProcess    Mode = "process"
	ModeSequential Mode = "sequential"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeGoroutine, ModeProcess, ModeSequential:
		return m, nil
	default:
		return "", fmt.Errorf("unknown parallel mode %q", s)
	}
}

// Result is the outcome of one detector.
type Result struct {
	Detector string
	Issues   []graph.Issue
	Elapsed  time.Duration
	CacheHit bool
	Err      error
}

// Report is the merged outcome of a run. Results and Issues are in
// completion order, which is not stable across runs.
type Report struct {
	Mode     Mode
	FellBack bool
	Results  []Result
	Issues   []graph.Issue
	Elapsed  time.Duration
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// CacheHits counts detectors served from the result cache.
func (r *Report) CacheHits() int {
	n := 0
	for _, res := range r.Results {
		if res.CacheHit {
			n++
		}
	}
	return n
}

// Coordinator owns the execution policy for one analysis run.
type Coordinator struct {
	mode     Mode
	workers  int
	timeout  time.Duration
	store    *cache.Store
	launcher Launcher
	cfg      *config.Config
	log      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMode sets the execution mode.
func WithMode(m Mode) Option { return func(c *Coordinator) { c.mode = m } }

// WithWorkers bounds the number of detectors running at once.
func WithWorkers(n int) Option { return func(c *Coordinator) { c.workers = n } }

// WithTimeout sets the per-detector timeout; zero disables it.
func WithTimeout(d time.Duration) Option { return func(c *Coordinator) { c.timeout = d } }

// WithStore routes expensive detectors through the result cache.
func WithStore(s *cache.Store) Option { return func(c *Coordinator) { c.store = s } }

// WithLauncher sets how process-mode workers are started.
func WithLauncher(l Launcher) Option { return func(c *Coordinator) { c.launcher = l } }

// WithConfig sets the configuration shipped to process workers.
func WithConfig(cfg *config.Config) Option { return func(c *Coordinator) { c.cfg = cfg } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.log = l } }

// New creates a coordinator. Without options it runs up to four detectors
// on goroutines with no timeout and no cache.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		mode:    ModeAuto,
		workers: 4,
		store:   cache.Disabled(),
		cfg:     config.DefaultConfig(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.store == nil {
		c.store = cache.Disabled()
	}
	return c
}

// FromConfig creates a coordinator from the parallel section of cfg.
func FromConfig(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	mode, err := ParseMode(cfg.Parallel.Mode)
	if err != nil {
		return nil, err
	}
	if !cfg.Parallel.Enabled {
		mode = ModeSequential
	}
	base := []Option{
		WithMode(mode),
		WithWorkers(cfg.Parallel.Workers),
		WithTimeout(cfg.Parallel.TimeoutDuration()),
		WithConfig(cfg),
	}
	return New(append(base, opts...)...), nil
}

// Mode returns the configured execution mode.
func (c *Coordinator) Mode() Mode { return c.mode }

// Run executes every detector against g and merges their issues. A failing
// detector contributes no issues and never stops its siblings.
func (c *Coordinator) Run(ctx context.Context, g *graph.CodeGraph, dets []detector.Detector) *Report {
	start := time.Now()
	rep := &Report{Mode: c.resolveMode()}

	if tr := analyzer.TrackerFromContext(ctx); tr != nil {
		tr.Add(len(dets))
	}

	if rep.Mode == ModeProcess {
		if err := c.preflight(); err != nil {
			c.log.Warn("falling back to sequential execution", "error", err)
			rep.Mode, rep.FellBack = ModeSequential, true
		}
	}

	files := fileStates(g)
	var mu sync.Mutex
	collect := func(res Result) {
		mu.Lock()
		rep.Results = append(rep.Results, res)
		rep.Issues = append(rep.Issues, res.Issues...)
		mu.Unlock()
	}

	if rep.Mode == ModeSequential {
		for _, d := range dets {
			collect(c.runOne(ctx, rep.Mode, g, files, d))
		}
	} else {
		if err := c.runPool(ctx, rep.Mode, g, files, dets, collect); err != nil {
			c.log.Warn("worker pool failed, running sequentially", "error", err)
			rep.Mode, rep.FellBack = ModeSequential, true
			rep.Results, rep.Issues = nil, nil
			for _, d := range dets {
				collect(c.runOne(ctx, rep.Mode, g, files, d))
			}
		}
	}

	rep.Elapsed = time.Since(start)
	return rep
}

func (c *Coordinator) resolveMode() Mode {
	switch c.mode {
	case ModeProcess, ModeSequential, ModeGoroutine:
		return c.mode
	default:
		return ModeGoroutine
	}
}

func (c *Coordinator) preflight() error {
	if c.launcher == nil {
		l, err := SelfLauncher()
		if err != nil {
			return err
		}
		c.launcher = l
	}
	return c.launcher.Preflight()
}

// runPool fans detectors out to a bounded pool. A panic while scheduling is
// reported as an error so the caller can fall back.
func (c *Coordinator) runPool(ctx context.Context, mode Mode, g *graph.CodeGraph, files []cache.FileState,
	dets []detector.Detector, collect func(Result)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: %v", r)
		}
	}()
	p := pool.New().WithMaxGoroutines(c.workers)
	for _, d := range dets {
		p.Go(func() {
			collect(c.runOne(ctx, mode, g, files, d))
		})
	}
	p.Wait()
	return nil
}

// runOne consults the cache for expensive detectors, computes on a miss and
// stores successful results.
func (c *Coordinator) runOne(ctx context.Context, mode Mode, g *graph.CodeGraph, files []cache.FileState, d detector.Detector) Result {
	start := time.Now()
	id := d.ID()
	res := Result{Detector: id}
	cached := d.Expensive() && c.store.Enabled()

	if cached {
		if issues, ok := c.store.Get(ctx, id, files); ok {
			res.Issues, res.CacheHit = issues, true
			res.Elapsed = time.Since(start)
			c.finish(ctx, res)
			return res
		}
	}

	issues, err := c.compute(ctx, mode, g, d)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", id, err)
		c.finish(ctx, res)
		return res
	}
	res.Issues = issues
	if cached {
		c.store.Set(ctx, id, files, issues)
	}
	c.finish(ctx, res)
	return res
}

func (c *Coordinator) finish(ctx context.Context, res Result) {
	if res.Err != nil {
		c.log.Warn("detector failed", "detector", res.Detector, "elapsed", res.Elapsed, "error", res.Err)
	} else {
		c.log.Debug("detector finished", "detector", res.Detector, "issues", len(res.Issues),
			"elapsed", res.Elapsed, "cache_hit", res.CacheHit)
	}
	if tr := analyzer.TrackerFromContext(ctx); tr != nil {
		if res.Err != nil {
			tr.Fail(res.Detector)
		} else {
			tr.Tick(res.Detector)
		}
	}
}

// compute runs the detector, abandoning it once the timeout expires. An
// abandoned goroutine keeps running; its result is dropped.
func (c *Coordinator) compute(ctx context.Context, mode Mode, g *graph.CodeGraph, d detector.Detector) ([]graph.Issue, error) {
	if c.timeout <= 0 {
		return c.exec(ctx, mode, g, d)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		issues []graph.Issue
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		issues, err := c.exec(ctx, mode, g, d)
		done <- outcome{issues, err}
	}()

	select {
	case o := <-done:
		return o.issues, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, ctx.Err()
	}
}

func (c *Coordinator) exec(ctx context.Context, mode Mode, g *graph.CodeGraph, d detector.Detector) ([]graph.Issue, error) {
	if mode == ModeProcess {
		return c.launcher.Launch(ctx, &Request{DetectorID: d.ID(), Config: c.cfg, Snapshot: g.Snapshot()})
	}
	return SafeDetect(d, g)
}

// SafeDetect runs d, converting a panic into ErrPanic.
func SafeDetect(d detector.Detector, g *graph.CodeGraph) (issues []graph.Issue, err error) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	return d.Detect(g)
}

func fileStates(g *graph.CodeGraph) []cache.FileState {
	paths := g.FilePaths()
	files := g.Files()
	out := make([]cache.FileState, len(paths))
	for i, p := range paths {
		out[i] = cache.FileState{Path: p, Hash: files[p].Hash}
	}
	return out
}

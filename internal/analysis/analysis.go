// Package analysis runs one analysis end to end: scan, load, refresh the
// cache ledger, then hand the graph to the coordinator.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/internal/coordinator"
	"github.com/panbanda/augur/internal/fileproc"
	"github.com/panbanda/augur/internal/loader"
	"github.com/panbanda/augur/internal/parsecache"
	"github.com/panbanda/augur/internal/scanner"
	"github.com/panbanda/augur/pkg/analyzer"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
)

// ErrNoFiles is returned when a scan finds nothing to analyze.
var ErrNoFiles = errors.New("no source files found")

// Progress receives file loading progress.
type Progress interface {
	Start(label string, total int)
	Tick()
	Finish()
}

// Service owns the long-lived state of analysis runs: the result cache, the
// parse cache and the detector registry.
type Service struct {
	cfg      *config.Config
	root     string
	registry *detector.Registry
	store    *cache.Store
	parses   *parsecache.Cache
	launcher coordinator.Launcher
	progress Progress
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRegistry replaces the built-in detector registry.
func WithRegistry(r *detector.Registry) Option { return func(s *Service) { s.registry = r } }

// WithLogger sets the logger shared by every stage.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithLauncher sets how process-mode workers are started.
func WithLauncher(l coordinator.Launcher) Option { return func(s *Service) { s.launcher = l } }

// WithProgress reports file loading progress.
func WithProgress(p Progress) Option { return func(s *Service) { s.progress = p } }

// New creates a service rooted at root. Paths in results and in the cache
// are relative to root, and a relative cache path is resolved against it.
// A cache that cannot be opened is logged and replaced by a disabled one.
func New(root string, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("analysis root: %w", err)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	s := &Service{
		cfg:  cfg,
		root: abs,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = analyzer.DefaultRegistry()
	}

	s.parses = parsecache.New(cfg.Cache.ParseCacheSize)
	s.store = cache.Disabled(cache.WithLogger(s.log))
	if cfg.Cache.Enabled {
		path := cfg.Cache.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(abs, path)
		}
		store, err := cache.Open(path, cache.WithLogger(s.log), cache.WithEvictor(s.parses))
		if err != nil {
			s.log.Warn("result cache unavailable, continuing without it", "path", path, "error", err)
		} else {
			s.store = store
		}
	}
	return s, nil
}

// Root returns the absolute analysis root.
func (s *Service) Root() string { return s.root }

// Store returns the result cache, which is disabled when caching is off.
func (s *Service) Store() *cache.Store { return s.store }

// Close releases the result cache.
func (s *Service) Close() error { return s.store.Close() }

// Request selects what one run analyzes.
type Request struct {
	// Paths are files or directories; empty means the service root.
	Paths []string
	// Detectors are explicit detector ids; empty means every enabled detector.
	Detectors []string
	// DuplicatesOnly restricts the run to the clone detectors.
	DuplicatesOnly bool
}

// Result is the outcome of one run.
type Result struct {
	Root        string
	Files       int
	Skipped     int
	FileErrors  *fileproc.ProcessingErrors
	Invalidated []string
	Purged      int
	ParseHits   int
	Graph       *graph.CodeGraph
	Report      *coordinator.Report
	Issues      []graph.Issue
	Summary     Summary
}

// Run analyzes the requested paths.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	dets, err := s.detectors(req)
	if err != nil {
		return nil, err
	}

	paths := req.Paths
	if len(paths) == 0 {
		paths = []string{s.root}
	}
	sc := scanner.New(s.cfg)
	files, err := sc.Scan(paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	loaded, err := s.load(ctx, files)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Root:       s.root,
		Files:      len(loaded.Files),
		Skipped:    sc.Skipped(),
		FileErrors: loaded.Errors,
		ParseHits:  loaded.ParseHits,
		Graph:      loaded.Graph,
	}
	res.Invalidated, res.Purged = s.refreshLedger(ctx, loaded)

	coord, err := coordinator.FromConfig(s.cfg,
		coordinator.WithStore(s.store),
		coordinator.WithLogger(s.log),
		coordinator.WithLauncher(s.launcher),
	)
	if err != nil {
		return nil, err
	}
	res.Report = coord.Run(ctx, loaded.Graph, dets)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Issues = append([]graph.Issue(nil), res.Report.Issues...)
	graph.SortIssues(res.Issues)
	res.Summary = summarize(res, time.Since(start))

	s.log.Info("analysis finished",
		"files", res.Files,
		"symbols", loaded.Graph.Len(),
		"detectors", len(dets),
		"issues", len(res.Issues),
		"mode", res.Report.Mode,
		"cache_hits", res.Report.CacheHits(),
		"elapsed", res.Summary.Elapsed)
	return res, nil
}

func (s *Service) detectors(req Request) ([]detector.Detector, error) {
	ids := req.Detectors
	if len(ids) == 0 && req.DuplicatesOnly {
		ids = s.registry.DuplicateIDs()
	}
	dets, err := s.registry.Build(s.cfg, ids...)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		return nil, errors.New("no detectors enabled")
	}
	return dets, nil
}

func (s *Service) load(ctx context.Context, files []string) (*loader.Result, error) {
	opts := []loader.Option{
		loader.WithParseCache(s.parses),
		loader.WithWorkers(s.cfg.Parallel.Workers * fileproc.DefaultWorkerMultiplier),
		loader.WithLogger(s.log),
	}
	if s.progress != nil {
		s.progress.Start("Loading", len(files))
		defer s.progress.Finish()
		opts = append(opts, loader.WithProgress(s.progress.Tick))
	}
	return loader.New(opts...).Load(ctx, s.root, files)
}

// refreshLedger brings the cache ledger in line with the loaded files. A
// file whose hash changed invalidates itself and its dependents; dependency
// edges are then replaced and files deleted from disk are purged.
func (s *Service) refreshLedger(ctx context.Context, loaded *loader.Result) ([]string, int) {
	if !s.store.Enabled() {
		return nil, 0
	}
	seen := make(map[string]bool)
	var invalidated []string
	for _, f := range loaded.Files {
		for _, p := range s.store.RefreshFile(ctx, f.Path, f.Hash, f.ModTime) {
			if !seen[p] {
				seen[p] = true
				invalidated = append(invalidated, p)
			}
		}
	}
	// invalidation drops ledger rows, including rows of files refreshed
	// earlier in the loop; put the current ones back
	for _, f := range loaded.Files {
		if seen[f.Path] {
			s.store.RefreshFile(ctx, f.Path, f.Hash, f.ModTime)
		}
	}
	for _, f := range loaded.Files {
		s.store.RecordDependencies(ctx, f.Path, loaded.Dependencies[f.Path])
	}

	purged := s.store.Purge(ctx, func(p string) bool {
		if filepath.IsAbs(p) {
			_, err := os.Stat(p)
			return errors.Is(err, os.ErrNotExist)
		}
		_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(p)))
		return errors.Is(err, os.ErrNotExist)
	})
	if len(invalidated) > 0 || purged > 0 {
		s.log.Debug("cache ledger refreshed", "invalidated", len(invalidated), "purged", purged)
	}
	return invalidated, purged
}

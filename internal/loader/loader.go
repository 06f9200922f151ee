// Package loader turns source files into the CodeGraph detectors read, and
// records which files import which.
package loader

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/internal/fileproc"
	"github.com/panbanda/augur/internal/parsecache"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/parser"
	"github.com/panbanda/augur/pkg/syntax"
)

// File is what the loader learned about one input file.
type File struct {
	Path     string // slash-separated, relative to the load root
	Abs      string
	Module   string
	Hash     string
	ModTime  time.Time
	Language parser.Language
	Tree     *syntax.Node
	Defs     []parser.Definition
	Imports  []parser.Import
}

// Result is the output of one Load.
type Result struct {
	Graph *graph.CodeGraph
	Files []*File
	// Dependencies maps a file to the files it imports.
	Dependencies map[string][]cache.Dependency
	// Errors holds files that could not be read or parsed; nil when none failed.
	Errors    *fileproc.ProcessingErrors
	ParseHits int
}

// Loader builds code graphs.
type Loader struct {
	parses     *parsecache.Cache
	workers    int
	log        *slog.Logger
	onProgress fileproc.ProgressFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithParseCache reuses lowered trees of unchanged files across loads.
func WithParseCache(c *parsecache.Cache) Option { return func(l *Loader) { l.parses = c } }

// WithWorkers bounds parsing concurrency.
func WithWorkers(n int) Option { return func(l *Loader) { l.workers = n } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *Loader) { l.log = log } }

// WithProgress is called once per file.
func WithProgress(fn fileproc.ProgressFunc) Option { return func(l *Loader) { l.onProgress = fn } }

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses files and assembles the graph. Paths in the graph are relative
// to root. Files that fail to load are reported in Result.Errors and left out.
func (l *Loader) Load(ctx context.Context, root string, files []string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var hits atomic.Int64
	loaded, errs := fileproc.MapFiles(ctx, files, fileproc.Options{Workers: l.workers, OnProgress: l.onProgress},
		func(p *parser.Parser, name string) (*File, error) {
			f, hit, err := l.loadFile(p, absRoot, name)
			if hit {
				hits.Add(1)
			}
			return f, err
		})
	if errs.HasErrors() {
		for _, e := range errs.Errors {
			l.log.Warn("skipping file", "path", e.Path, "error", e.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Files:     loaded,
		Errors:    errs,
		ParseHits: int(hits.Load()),
	}
	res.Graph, res.Dependencies = assemble(loaded, l.log)
	l.log.Debug("loaded files", "files", len(loaded), "failed", errs.Len(), "parse_cache_hits", res.ParseHits)
	return res, nil
}

func (l *Loader) loadFile(p *parser.Parser, root, name string) (*File, bool, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, false, err
	}

	rel := relPath(root, abs)
	f := &File{
		Path:     rel,
		Abs:      abs,
		Hash:     cache.HashBytes(src),
		ModTime:  info.ModTime(),
		Language: parser.DetectLanguage(abs),
	}
	f.Module = ModuleName(rel, f.Language)

	hit := false
	if l.parses != nil {
		f.Tree, hit = l.parses.Get(rel, f.ModTime, f.Hash)
	}
	if !hit {
		result, err := p.Parse(src, f.Language, rel)
		if err != nil {
			return nil, false, err
		}
		f.Tree = parser.LowerTree(result)
		if l.parses != nil {
			l.parses.Set(rel, f.Tree, f.Hash, f.ModTime)
		}
	}
	f.Defs = parser.Extract(f.Tree, src)
	f.Imports = parser.Imports(f.Tree)
	return f, hit, nil
}

func relPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// ModuleName derives the dotted module name of a file. Go files belong to
// their directory's package; Python __init__ files name their package.
func ModuleName(rel string, lang parser.Language) string {
	dir, base := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	stem := strings.TrimSuffix(base, path.Ext(base))

	var parts []string
	if dir != "" {
		parts = strings.Split(dir, "/")
	}
	switch {
	case lang == parser.LangGo:
		if len(parts) == 0 {
			parts = []string{"main"}
		}
	case lang == parser.LangPython && stem == "__init__":
		if len(parts) == 0 {
			parts = []string{stem}
		}
	default:
		parts = append(parts, stem)
	}
	return strings.Join(parts, ".")
}

func assemble(files []*File, log *slog.Logger) (*graph.CodeGraph, map[string][]cache.Dependency) {
	files = append([]*File(nil), files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	b := graph.NewBuilder()
	byModule := make(map[string][]*File)
	for _, f := range files {
		byModule[f.Module] = append(byModule[f.Module], f)
		b.AddFile(f.Path, graph.FileInfo{Hash: f.Hash, ModTime: f.ModTime, Language: string(f.Language)})
	}

	deps := make(map[string][]cache.Dependency)
	moduleRefs := make(map[string]map[string]struct{})
	for _, f := range files {
		refs := moduleRefs[f.Module]
		if refs == nil {
			refs = make(map[string]struct{})
			moduleRefs[f.Module] = refs
		}
		for _, imp := range f.Imports {
			target := resolve(imp.Module, f, byModule)
			if target == "" {
				continue
			}
			refs[target] = struct{}{}
			for _, name := range imp.Names {
				refs[target+"."+name] = struct{}{}
			}
			for _, dep := range byModule[target] {
				if dep.Path != f.Path {
					deps[f.Path] = append(deps[f.Path], cache.Dependency{Path: dep.Path, Kind: "import"})
				}
			}
		}

		for _, def := range f.Defs {
			sym := &graph.Symbol{
				FQName: f.Module + "." + def.Name,
				Kind:   def.Kind,
				Tree:   def.Tree,
				Location: graph.Location{
					File:    f.Path,
					Line:    def.Line,
					Column:  def.Col,
					EndLine: def.EndLine,
				},
				Doc:        def.Doc,
				Source:     def.Source,
				References: parser.References(def.Tree),
				Metadata:   map[string]any{"language": string(f.Language)},
			}
			if def.Parent != "" {
				sym.Metadata["parent"] = def.Parent
			}
			b.Add(f.Module, sym)
		}
	}

	// one module symbol per module carries its import references
	for module, members := range byModule {
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		first := members[0]
		refs := make([]string, 0, len(moduleRefs[module]))
		for r := range moduleRefs[module] {
			refs = append(refs, r)
		}
		sort.Strings(refs)
		b.Add(module, &graph.Symbol{
			FQName:     module,
			Kind:       graph.KindModule,
			Location:   graph.Location{File: first.Path, Line: 1, EndLine: first.Tree.EndLine},
			References: refs,
			Metadata:   map[string]any{"language": string(first.Language), "files": len(members)},
		})
	}

	for _, name := range b.Renamed() {
		log.Debug("symbol name already taken, qualified with its location", "symbol", name)
	}
	for file := range deps {
		deps[file] = uniqueDeps(deps[file])
	}
	return b.Build(), deps
}

// resolve maps an import string to a loaded module name, or "" when the
// import points outside the loaded files.
func resolve(imp string, from *File, modules map[string][]*File) string {
	var candidate string
	switch {
	case strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../"):
		joined := path.Join(path.Dir(from.Path), imp)
		candidate = strings.ReplaceAll(strings.TrimSuffix(joined, path.Ext(joined)), "/", ".")
		if _, ok := modules[candidate]; !ok {
			candidate += ".index"
		}
	case strings.HasPrefix(imp, "."):
		// Python relative import
		dots := len(imp) - len(strings.TrimLeft(imp, "."))
		pkg := strings.Split(from.Module, ".")
		if dots <= len(pkg) {
			pkg = pkg[:len(pkg)-dots]
		}
		candidate = strings.Join(append(pkg, strings.TrimLeft(imp, ".")), ".")
		candidate = strings.Trim(candidate, ".")
	default:
		candidate = strings.NewReplacer("/", ".", "::", ".", "\\", ".").Replace(imp)
	}
	candidate = strings.TrimPrefix(candidate, "crate.")

	if _, ok := modules[candidate]; ok {
		return candidate
	}
	// the longest loaded module that the import path ends with, e.g. a Go
	// import of github.com/acme/app/pkg/util resolves to pkg.util
	best := ""
	for m := range modules {
		if strings.HasSuffix(candidate, "."+m) && len(m) > len(best) {
			best = m
		}
	}
	return best
}

func uniqueDeps(deps []cache.Dependency) []cache.Dependency {
	sort.Slice(deps, func(i, j int) bool { return deps[i].Path < deps[j].Path })
	out := deps[:0]
	for i, d := range deps {
		if i > 0 && d.Path == deps[i-1].Path {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Package graph holds the per-run symbol table that every detector reads.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/panbanda/augur/pkg/syntax"
)

// Location is an immutable source position.
type Location struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`     // 1-based
	Column  int    `json:"column" yaml:"column"` // 0-based
	EndLine int    `json:"end_line,omitempty" yaml:"end_line,omitempty"`
	EndCol  int    `json:"end_column,omitempty" yaml:"end_column,omitempty"`
}

// String formats the location as file:line or file:line-end.
func (l Location) String() string {
	if l.EndLine > l.Line {
		return fmt.Sprintf("%s:%d-%d", l.File, l.Line, l.EndLine)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Lines returns the number of lines covered, at least 1.
func (l Location) Lines() int {
	if l.EndLine < l.Line {
		return 1
	}
	return l.EndLine - l.Line + 1
}

// Overlaps reports whether two locations share at least one line of the same file.
func (l Location) Overlaps(o Location) bool {
	if l.File != o.File {
		return false
	}
	lEnd, oEnd := max(l.EndLine, l.Line), max(o.EndLine, o.Line)
	return l.Line <= oEnd && o.Line <= lEnd
}

// SymbolKind classifies a definition.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
	KindModule   SymbolKind = "module"
)

// Symbol is one named definition. Detectors must treat it as read-only.
type Symbol struct {
	FQName     string
	Kind       SymbolKind
	Tree       *syntax.Node
	Location   Location
	Doc        string
	Source     string
	References []string
	Metadata   map[string]any
}

// Name returns the last dot-separated segment of the fully-qualified name,
// without any location suffix.
func (s *Symbol) Name() string {
	base := BaseName(s.FQName)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i+1:]
	}
	return base
}

// LocatedName appends the definition site to fqname. Builders use it to keep
// definitions that share a name apart, such as several Go init functions in
// one package.
func LocatedName(fqname string, loc Location) string {
	return fmt.Sprintf("%s#%s:%d", fqname, loc.File, loc.Line)
}

// BaseName strips the suffix added by LocatedName.
func BaseName(fqname string) string {
	if i := strings.IndexByte(fqname, '#'); i >= 0 {
		return fqname[:i]
	}
	return fqname
}

// Identity is the (fqname, file, line) triple that defines symbol equality.
type Identity struct {
	FQName string
	File   string
	Line   int
}

// ID returns the symbol's identity.
func (s *Symbol) ID() Identity {
	return Identity{FQName: s.FQName, File: s.Location.File, Line: s.Location.Line}
}

// Equal reports whether two symbols have the same identity.
func (s *Symbol) Equal(o *Symbol) bool {
	return s.ID() == o.ID()
}

// FileInfo is what the loader recorded about one input file.
type FileInfo struct {
	Hash     string
	ModTime  time.Time
	Language string
}

// CodeGraph maps fully-qualified names to symbols and modules to their members.
//
// Symbols are stored in an arena ordered by (file, line, fqname) so integer
// indexes are stable for identical input regardless of load order.
type CodeGraph struct {
	arena   []*Symbol
	index   map[string]int
	modules map[string][]string
	files   map[string]FileInfo
}

// Len returns the number of symbols.
func (g *CodeGraph) Len() int { return len(g.arena) }

// Symbols returns the arena in stable identity order. The slice must not be modified.
func (g *CodeGraph) Symbols() []*Symbol { return g.arena }

// At returns the symbol at arena index i.
func (g *CodeGraph) At(i int) *Symbol { return g.arena[i] }

// Symbol looks a symbol up by fully-qualified name.
func (g *CodeGraph) Symbol(fqname string) (*Symbol, bool) {
	i, ok := g.index[fqname]
	if !ok {
		return nil, false
	}
	return g.arena[i], true
}

// Index returns the arena index of fqname, or -1.
func (g *CodeGraph) Index(fqname string) int {
	if i, ok := g.index[fqname]; ok {
		return i
	}
	return -1
}

// Modules returns the sorted module names.
func (g *CodeGraph) Modules() []string {
	names := make([]string, 0, len(g.modules))
	for m := range g.modules {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// ModuleSymbols returns the fqnames belonging to a module.
func (g *CodeGraph) ModuleSymbols(module string) []string {
	return g.modules[module]
}

// ModuleOf returns the module that owns fqname.
func (g *CodeGraph) ModuleOf(fqname string) string {
	fqname = BaseName(fqname)
	best := ""
	for m := range g.modules {
		if (fqname == m || strings.HasPrefix(fqname, m+".")) && len(m) > len(best) {
			best = m
		}
	}
	return best
}

// Files returns the file table keyed by path.
func (g *CodeGraph) Files() map[string]FileInfo { return g.files }

// FilePaths returns the sorted list of input files.
func (g *CodeGraph) FilePaths() []string {
	paths := make([]string, 0, len(g.files))
	for p := range g.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Builder accumulates symbols before freezing them into a CodeGraph.
type Builder struct {
	symbols map[string]*Symbol
	modules map[string]map[string]struct{}
	files   map[string]FileInfo
	renamed []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		symbols: make(map[string]*Symbol),
		modules: make(map[string]map[string]struct{}),
		files:   make(map[string]FileInfo),
	}
}

// AddFile records an input file.
func (b *Builder) AddFile(path string, info FileInfo) *Builder {
	b.files[path] = info
	return b
}

// Add registers a symbol under module. Re-adding a symbol with the same
// identity replaces it. A different definition that reuses a taken fqname is
// renamed with LocatedName.
func (b *Builder) Add(module string, sym *Symbol) *Builder {
	if prev, ok := b.symbols[sym.FQName]; ok && !prev.Equal(sym) {
		sym.FQName = LocatedName(sym.FQName, sym.Location)
		b.renamed = append(b.renamed, sym.FQName)
	}
	b.symbols[sym.FQName] = sym
	if module != "" {
		members, ok := b.modules[module]
		if !ok {
			members = make(map[string]struct{})
			b.modules[module] = members
		}
		members[sym.FQName] = struct{}{}
	}
	if _, ok := b.files[sym.Location.File]; !ok && sym.Location.File != "" {
		b.files[sym.Location.File] = FileInfo{}
	}
	return b
}

// Renamed lists the fqnames Add had to qualify with a location, in order.
func (b *Builder) Renamed() []string { return b.renamed }

// Build freezes the builder into an immutable CodeGraph.
func (b *Builder) Build() *CodeGraph {
	g := &CodeGraph{
		arena:   make([]*Symbol, 0, len(b.symbols)),
		index:   make(map[string]int, len(b.symbols)),
		modules: make(map[string][]string, len(b.modules)),
		files:   make(map[string]FileInfo, len(b.files)),
	}
	for _, s := range b.symbols {
		g.arena = append(g.arena, s)
	}
	SortSymbols(g.arena)
	for i, s := range g.arena {
		g.index[s.FQName] = i
	}
	for m, members := range b.modules {
		names := make([]string, 0, len(members))
		for n := range members {
			names = append(names, n)
		}
		sort.Strings(names)
		g.modules[m] = names
	}
	for p, info := range b.files {
		g.files[p] = info
	}
	return g
}

// SortSymbols orders symbols by (file, line, fqname).
func SortSymbols(syms []*Symbol) {
	sort.Slice(syms, func(i, j int) bool {
		a, b := syms[i], syms[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		return a.FQName < b.FQName
	})
}

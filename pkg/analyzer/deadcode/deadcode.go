// Package deadcode reports symbols that nothing else in the graph refers to.
package deadcode

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
)

// ID is the detector id.
const ID = "dead-code"

// Detector flags unreferenced functions, methods and classes.
type Detector struct {
	entryPoints    map[string]struct{}
	ignoreExported bool
}

// New builds the detector from configuration.
func New(cfg *config.Config) (detector.Detector, error) {
	d := &Detector{
		entryPoints:    make(map[string]struct{}, len(cfg.DeadCode.EntryPoints)),
		ignoreExported: cfg.DeadCode.IgnoreExported,
	}
	for _, name := range cfg.DeadCode.EntryPoints {
		d.entryPoints[name] = struct{}{}
	}
	return d, nil
}

// ID implements detector.Detector.
func (d *Detector) ID() string { return ID }

// Expensive implements detector.Detector.
func (d *Detector) Expensive() bool { return false }

// Detect implements detector.Detector.
func (d *Detector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	referenced := Referenced(g)

	var issues []graph.Issue
	for i, sym := range g.Symbols() {
		if referenced.Contains(uint32(i)) || d.exempt(g, sym) {
			continue
		}
		loc := sym.Location
		issues = append(issues, graph.Issue{
			ID:       detector.IssueID(ID, detector.IdentityKey(sym.ID())),
			Severity: graph.SeverityInfo,
			Message:  fmt.Sprintf("%s %s is never referenced", sym.Kind, sym.FQName),
			Symbol:   sym.FQName,
			Location: &loc,
			Detector: ID,
			Metadata: map[string]any{"kind": string(sym.Kind)},
		})
	}
	return issues, nil
}

// Referenced returns the arena indexes of symbols referenced by some other symbol.
//
// A reference resolves to the symbol with that fully-qualified name, or
// failing that to every symbol whose short name equals the reference's last segment.
func Referenced(g *graph.CodeGraph) *roaring.Bitmap {
	byName := make(map[string][]uint32)
	for i, sym := range g.Symbols() {
		byName[sym.Name()] = append(byName[sym.Name()], uint32(i))
	}

	referenced := roaring.New()
	for i, sym := range g.Symbols() {
		for _, ref := range sym.References {
			if j := g.Index(ref); j >= 0 {
				if j != i {
					referenced.Add(uint32(j))
				}
				continue
			}
			short := ref
			if k := strings.LastIndexByte(ref, '.'); k >= 0 {
				short = ref[k+1:]
			}
			for _, j := range byName[short] {
				if int(j) != i {
					referenced.Add(j)
				}
			}
		}
	}
	return referenced
}

func (d *Detector) exempt(g *graph.CodeGraph, sym *graph.Symbol) bool {
	if sym.Kind == graph.KindModule {
		return true
	}
	name := sym.Name()
	if _, ok := d.entryPoints[name]; ok {
		return true
	}
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	if isTestSymbol(name, sym.Location.File) {
		return true
	}
	if d.ignoreExported && isExported(name, g.Files()[sym.Location.File].Language) {
		return true
	}
	return false
}

func isTestSymbol(name, file string) bool {
	return strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "Test") ||
		strings.HasPrefix(name, "Benchmark") || IsTestFile(file)
}

// isExported checks if a symbol is exported (can be used externally).
func isExported(name, lang string) bool {
	if name == "" {
		return false
	}
	switch lang {
	case "go":
		return name[0] >= 'A' && name[0] <= 'Z'
	case "python", "ruby":
		return name[0] != '_'
	default:
		return !strings.HasPrefix(name, "_")
	}
}

// IsTestFile checks if a file is a test file.
func IsTestFile(path string) bool {
	return strings.HasSuffix(path, "_test.go") ||
		strings.HasSuffix(path, "_test.py") ||
		strings.HasSuffix(path, ".test.ts") ||
		strings.HasSuffix(path, ".test.js") ||
		strings.HasSuffix(path, ".spec.ts") ||
		strings.HasSuffix(path, ".spec.js") ||
		strings.HasPrefix(path, "test_") ||
		strings.Contains(path, "/test_") ||
		strings.Contains(path, "/tests/") ||
		strings.Contains(path, "/__tests__/")
}

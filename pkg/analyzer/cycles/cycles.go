// Package cycles reports strongly connected groups of modules in the reference graph.
package cycles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ID is the detector id.
const ID = "cycles"

// Detector finds module reference cycles.
type Detector struct{}

// New builds the detector.
func New(*config.Config) (detector.Detector, error) {
	return &Detector{}, nil
}

// ID implements detector.Detector.
func (d *Detector) ID() string { return ID }

// Expensive implements detector.Detector.
func (d *Detector) Expensive() bool { return false }

// moduleGraph holds the gonum representation and mappings.
type moduleGraph struct {
	directed *simple.DirectedGraph
	names    []string         // gonum id -> module name
	ids      map[string]int64 // module name -> gonum id
}

// buildModuleGraph links module A to module B when a symbol of A references a symbol of B.
func buildModuleGraph(g *graph.CodeGraph) *moduleGraph {
	mg := &moduleGraph{
		directed: simple.NewDirectedGraph(),
		ids:      make(map[string]int64),
	}
	for i, name := range g.Modules() {
		id := int64(i)
		mg.names = append(mg.names, name)
		mg.ids[name] = id
		mg.directed.AddNode(simple.Node(id))
	}

	for _, from := range g.Modules() {
		fromID := mg.ids[from]
		for _, fq := range g.ModuleSymbols(from) {
			sym, ok := g.Symbol(fq)
			if !ok {
				continue
			}
			for _, ref := range sym.References {
				to := g.ModuleOf(ref)
				toID, ok := mg.ids[to]
				// gonum simple graphs do not support self-loops
				if !ok || toID == fromID {
					continue
				}
				mg.directed.SetEdge(simple.Edge{F: simple.Node(fromID), T: simple.Node(toID)})
			}
		}
	}
	return mg
}

// Cycles returns every strongly connected component of two or more modules,
// each sorted by name, ordered by their first module.
func Cycles(g *graph.CodeGraph) [][]string {
	mg := buildModuleGraph(g)
	var out [][]string
	for _, scc := range topo.TarjanSCC(mg.directed) {
		if len(scc) < 2 {
			continue
		}
		names := make([]string, 0, len(scc))
		for _, n := range scc {
			names = append(names, mg.names[n.ID()])
		}
		sort.Strings(names)
		out = append(out, names)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Detect implements detector.Detector.
func (d *Detector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	var issues []graph.Issue
	for _, modules := range Cycles(g) {
		issue := graph.Issue{
			ID:       detector.IssueID(ID, modules...),
			Severity: graph.SeverityWarn,
			Message:  fmt.Sprintf("reference cycle between %d modules: %s", len(modules), strings.Join(modules, " <-> ")),
			Detector: ID,
			Metadata: map[string]any{"modules": modules, "size": len(modules)},
		}
		for _, m := range modules {
			loc, ok := moduleLocation(g, m)
			if !ok {
				continue
			}
			if issue.Location == nil {
				l := loc
				issue.Location = &l
				issue.Symbol = m
				continue
			}
			issue.Related = append(issue.Related, loc)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// moduleLocation returns the location of the module symbol, or of its first member.
func moduleLocation(g *graph.CodeGraph, module string) (graph.Location, bool) {
	if sym, ok := g.Symbol(module); ok {
		return sym.Location, true
	}
	best := -1
	for _, fq := range g.ModuleSymbols(module) {
		if i := g.Index(fq); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	if best < 0 {
		return graph.Location{}, false
	}
	return graph.Location{File: g.At(best).Location.File, Line: 1}, true
}

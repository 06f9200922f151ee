package duplicates

import (
	"fmt"
	"strings"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/normalize"
	"github.com/panbanda/augur/pkg/syntax"
)

// Signature is the coarse structural shape of a symbol.
type Signature struct {
	Kind     syntax.Kind
	Branches int
	Loops    int
	Try      int
	Params   int
	Methods  int
	Fields   int
	Bases    int
}

// Key joins the counts into the bucketing key.
func (s Signature) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|b%d|l%d|t%d|p%d", s.Kind, s.Branches, s.Loops, s.Try, s.Params)
	if s.Kind == syntax.KindClass {
		fmt.Fprintf(&sb, "|m%d|f%d|i%d", s.Methods, s.Fields, s.Bases)
	}
	return sb.String()
}

// SignatureOf computes the structural signature of a definition tree.
func SignatureOf(tree *syntax.Node) Signature {
	counts := syntax.Count(tree)
	sig := Signature{
		Kind:     tree.Kind,
		Branches: counts[syntax.KindIf],
		Loops:    counts[syntax.KindLoop],
		Try:      counts[syntax.KindTry],
		Params:   len(tree.Params),
	}
	if tree.Kind == syntax.KindClass {
		sig.Bases = len(tree.Bases)
		for _, st := range tree.Children {
			if st == nil {
				continue
			}
			switch st.Kind {
			case syntax.KindFunction:
				sig.Methods++
			case syntax.KindAssign:
				sig.Fields++
			}
		}
	}
	return sig
}

// StructuralMatcher re-scores symbols that share a signature key using
// token-set similarity, to find cross-file equivalents.
//
// Only identical keys are compared; symbols whose shapes differ by a single
// branch or loop land in different buckets and are never paired.
type StructuralMatcher struct {
	cfg   config.StructuralConfig
	light *normalize.Normalizer
}

// NewStructural creates a structural matcher.
func NewStructural(cfg config.StructuralConfig) *StructuralMatcher {
	return &StructuralMatcher{cfg: cfg, light: normalize.New(normalize.Light())}
}

// Groups returns structural clone groups ordered by their first member.
func (m *StructuralMatcher) Groups(g *graph.CodeGraph) []Group {
	buckets := make(map[string][]int)
	var order []string
	for i, sym := range g.Symbols() {
		if sym.Tree == nil || !eligible(sym, m.cfg.MinLines) {
			continue
		}
		key := SignatureOf(sym.Tree).Key()
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}

	var groups []Group
	for _, key := range order {
		idxs := buckets[key]
		if len(idxs) < 2 || !spansFiles(g, idxs) {
			continue
		}
		frags := make([]fragment, 0, len(idxs))
		for _, i := range idxs {
			sym := g.At(i)
			frags = append(frags, fragment{
				member: symbolMember(i, sym),
				owner:  i,
				set:    TokenSet(m.light.Tokens(sym.Tree, sym.Source)),
			})
		}
		var skip skipFunc
		if m.cfg.CrossFileOnly {
			skip = func(a, b *fragment) bool { return a.member.Location.File == b.member.Location.File }
		}
		clusters := clusterFragments(frags, m.cfg.Threshold, skip)
		groups = append(groups, toGroups(frags, clusters, Type4, GranularitySymbol)...)
	}
	return groups
}

func spansFiles(g *graph.CodeGraph, idxs []int) bool {
	first := g.At(idxs[0]).Location.File
	for _, i := range idxs[1:] {
		if g.At(i).Location.File != first {
			return true
		}
	}
	return false
}

// StructuralDetector reports structural clone groups.
type StructuralDetector struct {
	matcher *StructuralMatcher
}

// NewStructuralDetector builds the detector from configuration.
func NewStructuralDetector(cfg *config.Config) (detector.Detector, error) {
	return &StructuralDetector{matcher: NewStructural(cfg.Duplicates.Structural)}, nil
}

// ID implements detector.Detector.
func (d *StructuralDetector) ID() string { return StructuralID }

// Expensive implements detector.Detector.
func (d *StructuralDetector) Expensive() bool { return true }

// Detect implements detector.Detector.
func (d *StructuralDetector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	return issues(StructuralID, graph.SeverityWarn, d.matcher.Groups(g)), nil
}

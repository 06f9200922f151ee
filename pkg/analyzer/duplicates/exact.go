package duplicates

import (
	"fmt"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/normalize"
)

// ExactMatcher groups symbols whose normalized text is identical.
type ExactMatcher struct {
	minLines int
	strict   *normalize.Normalizer
	// literal keeps identifiers and literals; members that also agree under it are type-1 clones.
	literal *normalize.Normalizer
}

// NewExact creates an exact matcher.
func NewExact(cfg config.ExactConfig, opts normalize.Options) *ExactMatcher {
	return &ExactMatcher{
		minLines: cfg.MinLines,
		strict:   normalize.New(opts),
		literal: normalize.New(normalize.Options{
			StripDocs:     true,
			StripComments: true,
			Whitespace:    normalize.WhitespaceCollapse,
		}),
	}
}

// Groups returns the exact clone groups of g, ordered by the arena index of
// their first member.
func (m *ExactMatcher) Groups(g *graph.CodeGraph) []Group {
	byText := make(map[string][]int)
	var order []string
	for i, sym := range g.Symbols() {
		if !eligible(sym, m.minLines) {
			continue
		}
		text := m.strict.Normalize(sym).Text
		if text == "" {
			continue
		}
		if _, ok := byText[text]; !ok {
			order = append(order, text)
		}
		byText[text] = append(byText[text], i)
	}

	var groups []Group
	for _, text := range order {
		idxs := byText[text]
		if len(idxs) < 2 {
			continue
		}
		grp := Group{Type: Type1, Granularity: GranularitySymbol, Similarity: 1.0}
		first := ""
		for n, i := range idxs {
			sym := g.At(i)
			grp.Members = append(grp.Members, symbolMember(i, sym))
			lit := m.literal.Normalize(sym).Text
			if n == 0 {
				first = lit
			} else if lit != first {
				grp.Type = Type2
			}
		}
		groups = append(groups, grp)
	}
	return groups
}

// ExactDetector reports exact clone groups with error severity.
type ExactDetector struct {
	matcher *ExactMatcher
}

// NewExactDetector builds the detector from configuration.
func NewExactDetector(cfg *config.Config) (detector.Detector, error) {
	if cfg.Duplicates.Exact.MinLines < 0 {
		return nil, fmt.Errorf("min_lines must not be negative")
	}
	return &ExactDetector{
		matcher: NewExact(cfg.Duplicates.Exact, normalize.FromConfig(cfg.Normalize)),
	}, nil
}

// ID implements detector.Detector.
func (d *ExactDetector) ID() string { return ExactID }

// Expensive implements detector.Detector. Grouping is a single hashing pass.
func (d *ExactDetector) Expensive() bool { return false }

// Detect implements detector.Detector.
func (d *ExactDetector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	return issues(ExactID, graph.SeverityError, d.matcher.Groups(g)), nil
}

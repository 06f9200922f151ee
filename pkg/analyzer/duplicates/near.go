package duplicates

import (
	"fmt"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/normalize"
)

// NearMatcher clusters symbols whose winnowed n-gram fingerprints overlap.
type NearMatcher struct {
	cfg    config.NearConfig
	blocks config.BlockConfig
	light  *normalize.Normalizer
}

// NewNear creates a near matcher. Block-level matching runs when blocks.Enabled is set.
func NewNear(cfg config.NearConfig, blocks config.BlockConfig) *NearMatcher {
	return &NearMatcher{cfg: cfg, blocks: blocks, light: normalize.New(normalize.Light())}
}

// Groups returns near clone groups over whole symbols.
func (m *NearMatcher) Groups(g *graph.CodeGraph) []Group {
	frags := m.symbolFragments(g)
	clusters := clusterFragments(frags, m.cfg.Threshold, nil)
	return toGroups(frags, clusters, Type3, GranularitySymbol)
}

// symbolFragments fingerprints every eligible symbol. Symbols whose token
// stream is shorter than the n-gram size get an empty fingerprint and are dropped.
func (m *NearMatcher) symbolFragments(g *graph.CodeGraph) []fragment {
	var frags []fragment
	for i, sym := range g.Symbols() {
		if !eligible(sym, m.cfg.MinLines) {
			continue
		}
		tokens := m.light.Tokens(sym.Tree, sym.Source)
		fp := Fingerprint(tokens, m.cfg.NGramSize, m.cfg.WindowSize)
		if fp.IsEmpty() {
			continue
		}
		frags = append(frags, fragment{member: symbolMember(i, sym), owner: i, set: fp})
	}
	return frags
}

// NearDetector reports near clones of whole symbols and, optionally, of statement blocks.
type NearDetector struct {
	matcher *NearMatcher
}

// NewNearDetector builds the detector from configuration.
func NewNearDetector(cfg *config.Config) (detector.Detector, error) {
	near := cfg.Duplicates.Near
	if near.NGramSize <= 0 || near.WindowSize <= 0 {
		return nil, fmt.Errorf("ngram_size and window_size must be positive")
	}
	return &NearDetector{matcher: NewNear(near, cfg.Duplicates.Blocks)}, nil
}

// ID implements detector.Detector.
func (d *NearDetector) ID() string { return NearID }

// Expensive implements detector.Detector.
func (d *NearDetector) Expensive() bool { return true }

// Detect implements detector.Detector.
func (d *NearDetector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	groups := d.matcher.Groups(g)
	if d.matcher.blocks.Enabled {
		groups = append(groups, d.matcher.BlockGroups(g)...)
	}
	return issues(NearID, graph.SeverityWarn, groups), nil
}

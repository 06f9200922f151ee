package duplicates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
)

// Detector ids.
const (
	ExactID      = "exact-clones"
	NearID       = "near-clones"
	StructuralID = "structural-clones"
)

// Type represents the type of code clone detected.
type Type string

const (
	Type1 Type = "type1" // Exact (whitespace, comments and docs only differ)
	Type2 Type = "type2" // Parametric (identifiers/literals differ)
	Type3 Type = "type3" // Near (statements added/removed or changed)
	Type4 Type = "type4" // Structural (same shape, similar vocabulary)
)

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// Granularity tells whether a member is a whole symbol or a statement block inside one.
type Granularity string

const (
	GranularitySymbol Granularity = "symbol"
	GranularityBlock  Granularity = "block"
)

// Member is one occurrence within a clone group.
type Member struct {
	Symbol   string         `json:"symbol"`
	Location graph.Location `json:"location"`
	Index    int            `json:"-"` // arena index of the owning symbol
}

// Group is a set of duplicate fragments. Members[0] is the primary.
type Group struct {
	Type        Type        `json:"type"`
	Granularity Granularity `json:"granularity"`
	Similarity  float64     `json:"similarity"`
	Members     []Member    `json:"members"`
	// FingerprintSize is the smallest fingerprint among members (near clones only).
	FingerprintSize int `json:"fingerprint_size,omitempty"`
}

// Lines returns the size of the primary member.
func (g Group) Lines() int {
	if len(g.Members) == 0 {
		return 0
	}
	return g.Members[0].Location.Lines()
}

// Files returns the distinct files touched by the group, sorted.
func (g Group) Files() []string {
	seen := make(map[string]struct{}, len(g.Members))
	var files []string
	for _, m := range g.Members {
		if _, ok := seen[m.Location.File]; ok {
			continue
		}
		seen[m.Location.File] = struct{}{}
		files = append(files, m.Location.File)
	}
	sort.Strings(files)
	return files
}

// Issue converts the group into an issue attributed to detectorID.
func (g Group) Issue(detectorID string, sev graph.Severity) graph.Issue {
	primary := g.Members[0]
	keys := make([]string, 0, len(g.Members))
	names := make([]string, 0, len(g.Members))
	related := make([]graph.Location, 0, len(g.Members)-1)
	for i, m := range g.Members {
		keys = append(keys, memberKey(m))
		names = append(names, m.Location.String())
		if i > 0 {
			related = append(related, m.Location)
		}
	}

	what := "symbols"
	if g.Granularity == GranularityBlock {
		what = "blocks"
	}
	msg := fmt.Sprintf("%s clone: %d %s share %d lines (similarity %.2f): %s",
		g.Type, len(g.Members), what, g.Lines(), g.Similarity, strings.Join(names, ", "))

	meta := map[string]any{
		"clone_type":  string(g.Type),
		"similarity":  g.Similarity,
		"lines":       g.Lines(),
		"members":     names,
		"granularity": string(g.Granularity),
		"files":       g.Files(),
	}
	if g.FingerprintSize > 0 {
		meta["fingerprint_size"] = g.FingerprintSize
	}

	loc := primary.Location
	return graph.Issue{
		ID:       detector.IssueID(detectorID, keys...),
		Severity: sev,
		Message:  msg,
		Symbol:   primary.Symbol,
		Location: &loc,
		Detector: detectorID,
		Related:  related,
		Metadata: meta,
	}
}

func memberKey(m Member) string {
	return fmt.Sprintf("%s:%d-%d:%s", m.Location.File, m.Location.Line, m.Location.EndLine, m.Symbol)
}

func symbolMember(idx int, sym *graph.Symbol) Member {
	return Member{Symbol: sym.FQName, Location: sym.Location, Index: idx}
}

// eligible reports whether a symbol is a function-like or class-like
// definition at least minLines long.
func eligible(sym *graph.Symbol, minLines int) bool {
	switch sym.Kind {
	case graph.KindFunction, graph.KindMethod, graph.KindClass:
	default:
		return false
	}
	if sym.Tree == nil && sym.Source == "" {
		return false
	}
	return sym.Location.Lines() >= minLines
}

// issues converts groups into issues.
func issues(detectorID string, sev graph.Severity, groups []Group) []graph.Issue {
	out := make([]graph.Issue, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Issue(detectorID, sev))
	}
	return out
}

// Package complexity reports functions whose cyclomatic complexity exceeds a threshold.
package complexity

import (
	"fmt"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
)

// ID is the detector id.
const ID = "complexity"

// Metrics represents code complexity measurements for a function.
type Metrics struct {
	Cyclomatic int `json:"cyclomatic"`
	Cognitive  int `json:"cognitive"`
	MaxNesting int `json:"max_nesting"`
	Lines      int `json:"lines"`
}

// Measure computes the metrics of a function tree. Nested definitions are
// measured on their own and do not contribute.
func Measure(tree *syntax.Node) Metrics {
	m := Metrics{Cyclomatic: 1, Lines: tree.Lines()}
	var visit func(n *syntax.Node, nesting int)
	visit = func(n *syntax.Node, nesting int) {
		if n == nil {
			return
		}
		next := nesting
		switch n.Kind {
		case syntax.KindFunction, syntax.KindClass:
			if n != tree {
				return
			}
		case syntax.KindIf, syntax.KindLoop:
			m.Cyclomatic++
			m.Cognitive += 1 + nesting
			next = nesting + 1
		case syntax.KindHandler:
			m.Cyclomatic++
			m.Cognitive += 1 + nesting
			next = nesting + 1
		case syntax.KindBinaryOp:
			if isBoolOp(n.Text) {
				m.Cyclomatic++
				m.Cognitive++
			}
		case syntax.KindInvalid, syntax.KindModule, syntax.KindParameter, syntax.KindBlock,
			syntax.KindTry, syntax.KindReturn, syntax.KindRaise, syntax.KindAssign,
			syntax.KindExprStmt, syntax.KindCall, syntax.KindUnaryOp, syntax.KindAttribute,
			syntax.KindIndex, syntax.KindIdent, syntax.KindString, syntax.KindNumber,
			syntax.KindLiteral, syntax.KindComment, syntax.KindDoc, syntax.KindOther:
		}
		if next > m.MaxNesting {
			m.MaxNesting = next
		}
		for _, c := range n.Children {
			visit(c, next)
		}
	}
	visit(tree, 0)
	return m
}

func isBoolOp(op string) bool {
	switch op {
	case "and", "or", "&&", "||":
		return true
	}
	return false
}

// Detector flags functions above the configured threshold.
type Detector struct {
	threshold int
}

// New builds the detector from configuration.
func New(cfg *config.Config) (detector.Detector, error) {
	if cfg.Complexity.Threshold <= 0 {
		return nil, fmt.Errorf("complexity threshold must be positive, got %d", cfg.Complexity.Threshold)
	}
	return &Detector{threshold: cfg.Complexity.Threshold}, nil
}

// ID implements detector.Detector.
func (d *Detector) ID() string { return ID }

// Expensive implements detector.Detector.
func (d *Detector) Expensive() bool { return false }

// Detect implements detector.Detector.
func (d *Detector) Detect(g *graph.CodeGraph) ([]graph.Issue, error) {
	var issues []graph.Issue
	for _, sym := range g.Symbols() {
		if sym.Tree == nil || (sym.Kind != graph.KindFunction && sym.Kind != graph.KindMethod) {
			continue
		}
		m := Measure(sym.Tree)
		if m.Cyclomatic <= d.threshold {
			continue
		}
		sev := graph.SeverityWarn
		if m.Cyclomatic > 2*d.threshold {
			sev = graph.SeverityError
		}
		loc := sym.Location
		issues = append(issues, graph.Issue{
			ID:       detector.IssueID(ID, detector.IdentityKey(sym.ID())),
			Severity: sev,
			Message:  fmt.Sprintf("%s has cyclomatic complexity %d (threshold %d)", sym.FQName, m.Cyclomatic, d.threshold),
			Symbol:   sym.FQName,
			Location: &loc,
			Detector: ID,
			Metadata: map[string]any{
				"cyclomatic":  m.Cyclomatic,
				"cognitive":   m.Cognitive,
				"max_nesting": m.MaxNesting,
				"lines":       m.Lines,
			},
		})
	}
	return issues, nil
}

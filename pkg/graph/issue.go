package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Rank orders severities from info (0) to error (2).
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarn:
		return 1
	default:
		return 0
	}
}

// ParseSeverity converts a string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Issue is a defect reported by a detector. Issues are immutable once returned.
type Issue struct {
	ID       string         `json:"id" yaml:"id"`
	Severity Severity       `json:"severity" yaml:"severity"`
	Message  string         `json:"message" yaml:"message"`
	Symbol   string         `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Location *Location      `json:"location,omitempty" yaml:"location,omitempty"`
	Detector string         `json:"detector" yaml:"detector"`
	Related  []Location     `json:"related,omitempty" yaml:"related,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SortIssues orders issues by location then id so output is reproducible.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		af, bf := "", ""
		al, bl := 0, 0
		if a.Location != nil {
			af, al = a.Location.File, a.Location.Line
		}
		if b.Location != nil {
			bf, bl = b.Location.File, b.Location.Line
		}
		if af != bf {
			return af < bf
		}
		if al != bl {
			return al < bl
		}
		if a.Detector != b.Detector {
			return a.Detector < b.Detector
		}
		return a.ID < b.ID
	})
}

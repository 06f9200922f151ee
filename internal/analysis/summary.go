package analysis

import (
	"sort"
	"time"

	"github.com/panbanda/augur/internal/coordinator"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/stats"
)

// DetectorSummary is the per-detector line of a run summary.
type DetectorSummary struct {
	ID       string        `json:"id" yaml:"id"`
	Issues   int           `json:"issues" yaml:"issues"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	CacheHit bool          `json:"cache_hit" yaml:"cache_hit"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary aggregates a run for reporting.
type Summary struct {
	Files      int                    `json:"files" yaml:"files"`
	Symbols    int                    `json:"symbols" yaml:"symbols"`
	Issues     int                    `json:"issues" yaml:"issues"`
	BySeverity map[graph.Severity]int `json:"by_severity" yaml:"by_severity"`
	Detectors  []DetectorSummary      `json:"detectors" yaml:"detectors"`
	Similarity stats.Summary          `json:"similarity" yaml:"similarity"`
	Mode       coordinator.Mode       `json:"mode" yaml:"mode"`
	FellBack   bool                   `json:"fell_back,omitempty" yaml:"fell_back,omitempty"`
	CacheHits  int                    `json:"cache_hits" yaml:"cache_hits"`
	ParseHits  int                    `json:"parse_hits" yaml:"parse_hits"`
	FileErrors int                    `json:"file_errors" yaml:"file_errors"`
	Elapsed    time.Duration          `json:"elapsed" yaml:"elapsed"`
}

func summarize(res *Result, elapsed time.Duration) Summary {
	sum := Summary{
		Files:      res.Files,
		Issues:     len(res.Issues),
		BySeverity: make(map[graph.Severity]int),
		Mode:       res.Report.Mode,
		FellBack:   res.Report.FellBack,
		CacheHits:  res.Report.CacheHits(),
		ParseHits:  res.ParseHits,
		FileErrors: res.FileErrors.Len(),
		Elapsed:    elapsed,
	}
	if res.Graph != nil {
		sum.Symbols = res.Graph.Len()
	}

	var similarities []float64
	for _, is := range res.Issues {
		sum.BySeverity[is.Severity]++
		if v, ok := similarity(is); ok {
			similarities = append(similarities, v)
		}
	}
	sum.Similarity = stats.Summarize(similarities)

	for _, r := range res.Report.Results {
		ds := DetectorSummary{ID: r.Detector, Issues: len(r.Issues), Elapsed: r.Elapsed, CacheHit: r.CacheHit}
		if r.Err != nil {
			ds.Error = r.Err.Error()
		}
		sum.Detectors = append(sum.Detectors, ds)
	}
	sort.Slice(sum.Detectors, func(i, j int) bool { return sum.Detectors[i].ID < sum.Detectors[j].ID })
	return sum
}

func similarity(is graph.Issue) (float64, bool) {
	switch v := is.Metadata["similarity"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

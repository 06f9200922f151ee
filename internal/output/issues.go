package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/augur/internal/analysis"
	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
)

// IssueReport renders the issues of one run followed by its summary.
type IssueReport struct {
	Title   string
	Issues  []graph.Issue
	Summary analysis.Summary
}

type issueData struct {
	Summary analysis.Summary `json:"summary" yaml:"summary"`
	Issues  []graph.Issue    `json:"issues" yaml:"issues"`
}

// NewIssueReport builds a report from an analysis result.
func NewIssueReport(title string, res *analysis.Result) *IssueReport {
	return &IssueReport{Title: title, Issues: res.Issues, Summary: res.Summary}
}

func (r *IssueReport) RenderData() any {
	issues := r.Issues
	if issues == nil {
		issues = []graph.Issue{}
	}
	return issueData{Summary: r.Summary, Issues: issues}
}

func (r *IssueReport) rows(colored bool) [][]string {
	rows := make([][]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		sev := string(is.Severity)
		if colored {
			sev = SeverityColor(sev, sev)
		}
		loc := ""
		if is.Location != nil {
			loc = is.Location.String()
		}
		rows = append(rows, []string{sev, loc, is.Detector, is.Message})
	}
	return rows
}

var issueHeaders = []string{"Severity", "Location", "Detector", "Message"}

func (r *IssueReport) RenderText(w io.Writer, colored bool) error {
	if r.Title != "" {
		heading(w, r.Title, "=", colored, color.Bold, color.FgCyan)
		fmt.Fprintln(w)
	}
	if len(r.Issues) == 0 {
		if colored {
			color.New(color.FgGreen).Fprintln(w, "No issues found.")
		} else {
			fmt.Fprintln(w, "No issues found.")
		}
		fmt.Fprintln(w)
	} else {
		t := NewTable("", issueHeaders, r.rows(colored), nil)
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}

	s := r.Summary
	heading(w, "Summary", "-", colored, color.Bold)
	for _, line := range summaryLines(s) {
		fmt.Fprintln(w, line)
	}
	for _, d := range s.Detectors {
		if d.Error == "" {
			continue
		}
		if colored {
			color.New(color.FgRed).Fprintf(w, "detector %s failed: %s\n", d.ID, d.Error)
		} else {
			fmt.Fprintf(w, "ERROR: detector %s failed: %s\n", d.ID, d.Error)
		}
	}
	return nil
}

func (r *IssueReport) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	if len(r.Issues) == 0 {
		fmt.Fprint(w, "No issues found.\n\n")
	} else {
		rows := r.rows(false)
		for _, row := range rows {
			if row[1] != "" {
				row[1] = "`" + row[1] + "`"
			}
		}
		if err := NewTable("Issues", issueHeaders, rows, nil).RenderMarkdown(w); err != nil {
			return err
		}
	}

	fmt.Fprint(w, "## Summary\n\n")
	for _, line := range summaryLines(r.Summary) {
		fmt.Fprintf(w, "- %s\n", line)
	}
	fmt.Fprintln(w)

	detRows := make([][]string, 0, len(r.Summary.Detectors))
	for _, d := range r.Summary.Detectors {
		status := "ok"
		if d.Error != "" {
			status = "failed: " + d.Error
		} else if d.CacheHit {
			status = "cached"
		}
		detRows = append(detRows, []string{d.ID, strconv.Itoa(d.Issues), d.Elapsed.Round(time.Millisecond).String(), status})
	}
	if len(detRows) > 0 {
		return NewTable("Detectors", []string{"Detector", "Issues", "Elapsed", "Status"}, detRows, nil).RenderMarkdown(w)
	}
	return nil
}

func summaryLines(s analysis.Summary) []string {
	var sev []string
	for _, level := range []graph.Severity{graph.SeverityError, graph.SeverityWarn, graph.SeverityInfo} {
		if n := s.BySeverity[level]; n > 0 {
			sev = append(sev, fmt.Sprintf("%d %s", n, level))
		}
	}
	issues := fmt.Sprintf("%d issues", s.Issues)
	if len(sev) > 0 {
		issues += " (" + strings.Join(sev, ", ") + ")"
	}

	lines := []string{
		fmt.Sprintf("%d files, %d symbols, %s", s.Files, s.Symbols, issues),
	}
	mode := fmt.Sprintf("mode %s", s.Mode)
	if s.FellBack {
		mode += " (fell back)"
	}
	lines = append(lines, fmt.Sprintf("%s, %d detectors, %d cached, elapsed %s",
		mode, len(s.Detectors), s.CacheHits, s.Elapsed.Round(time.Millisecond)))
	if s.Similarity.Count > 0 {
		lines = append(lines, fmt.Sprintf("clone similarity: mean %.2f, p50 %.2f, p95 %.2f, max %.2f",
			s.Similarity.Mean, s.Similarity.P50, s.Similarity.P95, s.Similarity.Max))
	}
	if s.FileErrors > 0 {
		lines = append(lines, fmt.Sprintf("%d files could not be loaded", s.FileErrors))
	}
	return lines
}

// DetectorTable lists registered detectors.
func DetectorTable(infos []detector.Info) *Table {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		var tags []string
		if info.Duplicates {
			tags = append(tags, "clones")
		}
		if info.Expensive {
			tags = append(tags, "cached")
		}
		rows = append(rows, []string{info.ID, strings.Join(tags, ","), info.Description})
	}
	return NewTable("Detectors", []string{"ID", "Tags", "Description"}, rows, infos)
}

// CacheStatsTable renders result cache statistics.
func CacheStatsTable(st cache.Stats) *Table {
	rows := [][]string{
		{"path", st.Path},
		{"enabled", strconv.FormatBool(st.Enabled)},
		{"files", strconv.Itoa(st.Files)},
		{"dependencies", strconv.Itoa(st.Dependencies)},
		{"entries", strconv.Itoa(st.Entries)},
		{"size", formatBytes(st.SizeBytes)},
	}
	ids := make([]string, 0, len(st.Detectors))
	for id := range st.Detectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rows = append(rows, []string{"entries[" + id + "]", strconv.Itoa(st.Detectors[id])})
	}
	return NewTable("Result cache", []string{"Key", "Value"}, rows, st)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

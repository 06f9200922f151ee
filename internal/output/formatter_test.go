package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/augur/internal/analysis"
	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/internal/coordinator"
	"github.com/panbanda/augur/pkg/detector"
	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"", FormatText},
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("html")
	assert.ErrorContains(t, err, "html")
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := NewFormatter(FormatText, path, true)
	require.NoError(t, err)

	require.NoError(t, f.Output(NewTable("Clones", []string{"Name"}, [][]string{{"total"}}, nil)))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Clones\n======")
	assert.NotContains(t, string(data), "\x1b[", "color is disabled for files")

	_, err = NewFormatter(FormatText, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	assert.Error(t, err)
}

func TestTableRender(t *testing.T) {
	table := NewTable("Clones", []string{"Name", "Lines"}, [][]string{{"a|b", "5"}, {"c", "7"}}, nil)

	var text bytes.Buffer
	require.NoError(t, table.RenderText(&text, false))
	out := text.String()
	assert.Contains(t, out, "Clones\n======")
	assert.Contains(t, out, "a|b")
	assert.Contains(t, out, "7")

	var md bytes.Buffer
	require.NoError(t, table.RenderMarkdown(&md))
	assert.Contains(t, md.String(), "## Clones")
	assert.Contains(t, md.String(), "| Name | Lines |\n| --- | --- |")
	assert.Contains(t, md.String(), `| a\|b | 5 |`)

	data := table.RenderData().([]map[string]string)
	require.Len(t, data, 2)
	assert.Equal(t, "c", data[1]["Name"])

	withData := NewTable("", nil, nil, []int{1, 2})
	assert.Equal(t, []int{1, 2}, withData.RenderData())
}

func TestFormatterStructuredOutput(t *testing.T) {
	table := NewTable("", []string{"Key"}, nil, map[string]any{"files": 3})

	var js bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatJSON, &js, false).Output(table))
	assert.JSONEq(t, `{"files": 3}`, js.String())

	var y bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatYAML, &y, false).Output(table))
	assert.Equal(t, "files: 3\n", y.String())

	var md bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatMarkdown, &md, false).Output(table))
	assert.True(t, strings.HasPrefix(md.String(), "| Key |"))
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "plain", SeverityColor("other", "plain"))
	for _, sev := range []string{"error", "warn", "info"} {
		assert.Contains(t, SeverityColor(sev, "x"), "x")
	}
}

func sampleReport() *IssueReport {
	loc := graph.Location{File: "pkg/a.py", Line: 1, EndLine: 6}
	return &IssueReport{
		Title: "Analysis",
		Issues: []graph.Issue{{
			ID:       "exact-clones:0001",
			Severity: graph.SeverityWarn,
			Message:  "type2 clone: 2 symbols share 6 lines",
			Location: &loc,
			Detector: "exact-clones",
			Related:  []graph.Location{{File: "pkg/b.py", Line: 3, EndLine: 8}},
			Metadata: map[string]any{"similarity": 1.0},
		}},
		Summary: analysis.Summary{
			Files:      2,
			Symbols:    4,
			Issues:     1,
			BySeverity: map[graph.Severity]int{graph.SeverityWarn: 1},
			Detectors: []analysis.DetectorSummary{
				{ID: "exact-clones", Issues: 1, Elapsed: 3 * time.Millisecond},
				{ID: "near-clones", Error: "near-clones: detector timed out", Elapsed: time.Second},
			},
			Similarity: stats.Summary{Count: 1, Mean: 1, Min: 1, Max: 1, P50: 1, P95: 1},
			Mode:       coordinator.ModeGoroutine,
			CacheHits:  0,
		},
	}
}

func TestIssueReportText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "Analysis\n========")
	assert.Contains(t, out, "pkg/a.py:1-6")
	assert.Contains(t, out, "exact-clones")
	assert.Contains(t, out, "2 files, 4 symbols, 1 issues (1 warn)")
	assert.Contains(t, out, "mode goroutine, 2 detectors, 0 cached")
	assert.Contains(t, out, "clone similarity: mean 1.00")
	assert.Contains(t, out, "ERROR: detector near-clones failed")
}

func TestIssueReportEmpty(t *testing.T) {
	r := &IssueReport{Summary: analysis.Summary{Mode: coordinator.ModeSequential}}

	var text bytes.Buffer
	require.NoError(t, r.RenderText(&text, false))
	assert.Contains(t, text.String(), "No issues found.")

	var js bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatJSON, &js, false).Output(r))
	assert.Contains(t, js.String(), `"issues": []`)
}

func TestIssueReportMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "# Analysis")
	assert.Contains(t, out, "| warn | `pkg/a.py:1-6` | exact-clones |")
	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "| near-clones | 0 | 1s | failed: near-clones: detector timed out |")
}

func TestIssueReportStructured(t *testing.T) {
	var js bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatJSON, &js, false).Output(sampleReport()))
	var decoded struct {
		Summary struct {
			Files  int `json:"files"`
			Issues int `json:"issues"`
		} `json:"summary"`
		Issues []graph.Issue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Summary.Files)
	require.Len(t, decoded.Issues, 1)
	assert.Equal(t, "pkg/b.py", decoded.Issues[0].Related[0].File)

	var y bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatYAML, &y, false).Output(sampleReport()))
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(y.Bytes(), &doc))
	assert.Contains(t, doc, "summary")
	assert.Contains(t, doc, "issues")
}

func TestDetectorTable(t *testing.T) {
	table := DetectorTable([]detector.Info{
		{ID: "near-clones", Description: "overlapping fingerprints", Expensive: true, Duplicates: true},
		{ID: "cycles", Description: "module cycles"},
	})
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"near-clones", "clones,cached", "overlapping fingerprints"}, table.Rows[0])
	assert.Equal(t, "", table.Rows[1][1])
}

func TestCacheStatsTable(t *testing.T) {
	table := CacheStatsTable(cache.Stats{
		Enabled:   true,
		Path:      ".augur/cache.db",
		Files:     3,
		Entries:   2,
		Detectors: map[string]int{"near-clones": 1, "exact-clones": 1},
		SizeBytes: 4096,
	})
	assert.Contains(t, table.Rows, []string{"size", "4.0 KiB"})
	assert.Equal(t, []string{"entries[exact-clones]", "1"}, table.Rows[6])
	assert.Equal(t, []string{"entries[near-clones]", "1"}, table.Rows[7])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2<<20))
}

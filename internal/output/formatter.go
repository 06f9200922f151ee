// Package output renders reports as text, markdown, json or yaml.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// ParseFormat converts a string to Format. An empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, markdown or yaml)", s)
	}
}

// Renderable is a report that can render itself in every format.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the value serialized for json and yaml.
	RenderData() any
}

// Formatter writes Renderables in one format to stdout or a file.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter writing to stdout, or to the file named
// by output. Color is always off for files.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewWriterFormatter(format, os.Stdout, colored), nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &Formatter{format: format, writer: f, file: f}, nil
}

// NewWriterFormatter creates a formatter over an existing writer.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Output writes r in the configured format.
func (f *Formatter) Output(r Renderable) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(r.RenderData())
	case FormatYAML:
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(r.RenderData()); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	default:
		return r.RenderText(f.writer, f.colored)
	}
}

// Table is a titled grid. Data, when set, replaces the rows in json and yaml.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Data    any
}

func NewTable(title string, headers []string, rows [][]string, data any) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Data: data}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		heading(w, t.Title, "=", colored, color.Bold)
		fmt.Fprintln(w)
	}
	writeGrid(w, t.Headers, t.Rows)
	fmt.Fprintln(w)
	return nil
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	writeMarkdownGrid(w, t.Headers, t.Rows)
	fmt.Fprintln(w)
	return nil
}

// writeGrid draws a borderless, left-aligned table.
func writeGrid(w io.Writer, headers []string, rows [][]string) {
	left := tw.CellAlignment{Global: tw.AlignLeft}
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  left,
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row: tw.CellConfig{Alignment: left},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

func writeMarkdownGrid(w io.Writer, headers []string, rows [][]string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", len(headers)))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}

func heading(w io.Writer, title, underline string, colored bool, attrs ...color.Attribute) {
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(underline, len(title)))
}

// SeverityColor colors text by issue severity.
func SeverityColor(severity, text string) string {
	switch strings.ToLower(severity) {
	case "error":
		return color.RedString(text)
	case "warn", "warning":
		return color.YellowString(text)
	case "info":
		return color.CyanString(text)
	default:
		return text
	}
}

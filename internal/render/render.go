// Package render writes command output as an aligned table, TSV, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTSV   Format = "tsv"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML, FormatTSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, yaml or tsv)", s)
	}
}

// Table is one titled section of tabular output
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	format Format
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, format Format) *Renderer {
	if format == "" {
		format = FormatTable
	}
	return &Renderer{writer: writer, format: format}
}

// Render writes data for the structured formats and tables for the textual
// ones.
func (r *Renderer) Render(data interface{}, tables ...Table) error {
	switch r.format {
	case FormatJSON:
		return r.RenderJSON(data)
	case FormatYAML:
		return r.RenderYAML(data)
	case FormatTSV:
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(r.writer)
			}
			if err := r.RenderTSV(t.Headers, t.Rows); err != nil {
				return err
			}
		}
		return nil
	default:
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(r.writer)
			}
			if t.Title != "" {
				fmt.Fprintf(r.writer, "%s (%d)\n", t.Title, len(t.Rows))
			}
			if err := r.RenderTable(t.Headers, t.Rows); err != nil {
				return err
			}
		}
		return nil
	}
}

// RenderJSON renders data as indented JSON
func (r *Renderer) RenderJSON(data interface{}) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(data)
}

// RenderTSV renders data as tab-separated values. Tabs and newlines inside
// cells are replaced by spaces.
func (r *Renderer) RenderTSV(headers []string, rows [][]string) error {
	if _, err := fmt.Fprintln(r.writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.NewReplacer("\t", " ", "\n", " ").Replace(cell)
		}
		if _, err := fmt.Fprintln(r.writer, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// RenderTable renders data as a formatted table. Nothing is written when
// there are no rows.
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	r.renderTableRow(headers, widths)
	r.renderTableSeparator(widths)
	for _, row := range rows {
		r.renderTableRow(row, widths)
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int) {
	var b strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}
	fmt.Fprintln(r.writer, strings.TrimRight(b.String(), " "))
}

func (r *Renderer) renderTableSeparator(widths []int) {
	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(r.writer, strings.Join(parts, "  "))
}

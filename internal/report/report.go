// Package report accumulates structured rows describing matches, anomalies
// and remediations for human review. Reports render as console tables and
// persist as JSON (for resumable runs and downstream tooling) or CSV (for
// spreadsheet import).
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Header describes one report column. Group labels span several columns in
// the source material ("Bibbi-post ID", "Bibbi-post Name", ...), so rendering
// joins the group and column labels.
type Header struct {
	Group string
	Label string
}

// Title returns the rendered column title.
func (h Header) Title() string {
	group := strings.TrimSpace(h.Group)
	label := strings.TrimSpace(h.Label)
	switch {
	case group == "":
		return label
	case label == "":
		return group
	default:
		return group + " / " + label
	}
}

// Report is an append-only row accumulator. The batch jobs are single
// threaded, so no locking is needed.
type Report struct {
	rows [][]string
}

// New returns an empty report.
func New() *Report {
	return &Report{}
}

// AddRow appends one row. The row is copied so callers may reuse the slice.
func (r *Report) AddRow(columns []string) {
	row := make([]string, len(columns))
	copy(row, columns)
	r.rows = append(r.rows, row)
}

// Rows returns the accumulated rows.
func (r *Report) Rows() [][]string {
	return r.rows
}

// Len returns the number of accumulated rows.
func (r *Report) Len() int {
	return len(r.rows)
}

// SaveJSON writes the rows as a JSON array of string arrays.
func (r *Report) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r.rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// LoadJSON replaces the report contents with rows previously saved by
// SaveJSON, so an interrupted run can append to its own report.
func (r *Report) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report %s: %w", path, err)
	}
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse report %s: %w", path, err)
	}
	r.rows = rows
	return nil
}

// SaveCSV writes a header row followed by the accumulated rows.
func (r *Report) SaveCSV(path string, headers []Header) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	titles := make([]string, len(headers))
	for i, header := range headers {
		titles[i] = header.Title()
	}
	if err := writer.Write(titles); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, row := range r.rows {
		padded := padRow(row, len(headers))
		if err := writer.Write(padded); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush report %s: %w", path, err)
	}
	return nil
}

// Render returns the report as a console table.
func (r *Report) Render(headers []Header) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	headerRow := make(table.Row, len(headers))
	columnConfigs := make([]table.ColumnConfig, 0, len(headers))
	for i, header := range headers {
		headerRow[i] = header.Title()
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(headerRow)
	tw.SetColumnConfigs(columnConfigs)

	for _, row := range r.rows {
		padded := padRow(row, len(headers))
		tableRow := make(table.Row, len(padded))
		for i, value := range padded {
			tableRow[i] = value
		}
		tw.AppendRow(tableRow)
	}

	return tw.Render()
}

func padRow(row []string, width int) []string {
	if width <= len(row) {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

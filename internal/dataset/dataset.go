// Package dataset models tabular data pulled from a spreadsheet and the
// cleaning rules applied before analysis.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column kinds after type inference.
const (
	KindText    = "text"
	KindNumeric = "numeric"
)

// numericShare is the fraction of rows that must parse as numbers
// before a column is treated as numeric.
const numericShare = 0.5

// ErrNoData is returned when a grid has no usable rows after cleaning.
var ErrNoData = errors.New("no data found in sheet")

// Column is a named, typed column of a Dataset.
type Column struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Dataset is a cleaned rectangular grid. Cells keep their original
// text; numeric columns expose parsed values through Numbers.
type Dataset struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New builds a Dataset from a raw value grid. The first row is the
// header row; empty header cells get positional names. Ragged rows are
// padded to the header width, fully empty rows and columns are
// dropped, and a column becomes numeric when more than half of the
// remaining rows parse as numbers after comma removal.
func New(grid [][]string) (*Dataset, error) {
	if len(grid) == 0 {
		return nil, ErrNoData
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		if h == "" {
			headers[i] = fmt.Sprintf("Column_%d", i)
		} else {
			headers[i] = h
		}
	}
	width := len(headers)

	rows := make([][]string, 0, len(grid)-1)
	for _, raw := range grid[1:] {
		row := make([]string, width)
		copy(row, raw)
		if !emptyRow(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	keep := make([]int, 0, width)
	for j := 0; j < width; j++ {
		for _, row := range rows {
			if row[j] != "" {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(keep) == 0 {
		return nil, ErrNoData
	}

	columns := make([]Column, len(keep))
	compact := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(keep))
		for k, j := range keep {
			cells[k] = row[j]
		}
		compact[i] = cells
	}
	for k, j := range keep {
		columns[k] = Column{Name: headers[j], Kind: inferKind(compact, k)}
	}

	return &Dataset{Columns: columns, Rows: compact}, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

func inferKind(rows [][]string, col int) string {
	parseable := 0
	for _, row := range rows {
		if _, ok := ParseNumber(row[col]); ok {
			parseable++
		}
	}
	if float64(parseable) > float64(len(rows))*numericShare {
		return KindNumeric
	}
	return KindText
}

// ParseNumber parses a cell as a float after stripping thousands
// separators. Empty cells do not parse.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int { return len(d.Rows) }

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the index of the first column with the given
// name, or -1 when absent.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// NumericColumns returns names of columns typed numeric.
func (d *Dataset) NumericColumns() []string {
	var names []string
	for _, c := range d.Columns {
		if c.Kind == KindNumeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// TextColumns returns names of columns typed text.
func (d *Dataset) TextColumns() []string {
	var names []string
	for _, c := range d.Columns {
		if c.Kind == KindText {
			names = append(names, c.Name)
		}
	}
	return names
}

// Numbers returns the parsed values of a column, skipping cells that do
// not parse. The result is empty for unknown columns.
func (d *Dataset) Numbers(name string) []float64 {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		if v, ok := ParseNumber(row[idx]); ok {
			values = append(values, v)
		}
	}
	return values
}

// Encode serializes the dataset for snapshot storage.
func (d *Dataset) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Decode restores a dataset from its snapshot form.
func Decode(b []byte) (*Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode dataset snapshot: %w", err)
	}
	if len(d.Columns) == 0 || len(d.Rows) == 0 {
		return nil, ErrNoData
	}
	return &d, nil
}

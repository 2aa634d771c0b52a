// Package timeseries holds the tabular side of the pipeline: confound
// tables read from fMRIPrep-style TSV files, extracted time series, and
// the strict row-aligned augmentation that appends a derived regressor.
package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrAlignment indicates a row/frame count mismatch between
	// temporal and tabular data. Data is never truncated or padded.
	ErrAlignment = errors.New("timeseries: row count mismatch")

	// ErrMissingColumn indicates one or more requested columns are
	// absent from a table.
	ErrMissingColumn = errors.New("timeseries: requested column absent")

	// ErrDuplicateColumn indicates a header with a repeated name.
	ErrDuplicateColumn = errors.New("timeseries: duplicate column name")
)

// Table is an immutable confound table: one row per timepoint, named
// columns in a stable order. Augmentation yields a new table.
type Table struct {
	names []string
	cols  [][]float64
	rows  int
}

// NewTable builds a table from ordered column names and their values.
// All columns must share one length and names must be unique.
func NewTable(names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("timeseries: %d names for %d columns", len(names), len(cols))
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		seen[name] = struct{}{}
		if len(cols[i]) != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				ErrAlignment, name, len(cols[i]), rows)
		}
	}
	return &Table{names: append([]string(nil), names...), cols: cols, rows: rows}, nil
}

// NumRows returns the timepoint count.
func (t *Table) NumRows() int { return t.rows }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Column returns the values of a named column.
func (t *Table) Column(name string) ([]float64, bool) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the table contains a named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ReadTSV parses a tab-delimited confound table with a header row of
// unique names and one numeric row per timepoint.
func ReadTSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("timeseries: parsing table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("timeseries: table has no header row")
	}

	names := records[0]
	cols := make([][]float64, len(names))
	for i := range cols {
		cols[i] = make([]float64, 0, len(records)-1)
	}
	for rowIdx, row := range records[1:] {
		if len(row) != len(names) {
			return nil, fmt.Errorf("timeseries: row %d has %d fields, header has %d",
				rowIdx+1, len(row), len(names))
		}
		for i, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("timeseries: row %d column %q: %w", rowIdx+1, names[i], err)
			}
			cols[i] = append(cols[i], v)
		}
	}
	return NewTable(names, cols)
}

// WriteTSV serializes the table, formatting values with the shortest
// representation that round-trips, so regression keeps full fidelity.
func (t *Table) WriteTSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(t.names); err != nil {
		return fmt.Errorf("timeseries: writing header: %w", err)
	}
	row := make([]string, len(t.names))
	for r := 0; r < t.rows; r++ {
		for c := range t.cols {
			row[c] = strconv.FormatFloat(t.cols[c][r], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("timeseries: writing row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Augment returns a new table with series inserted under name. The
// series must match the table's row count exactly; a mismatch is an
// alignment error, never a truncation. If the name already exists the
// new column replaces it in place (last write wins); all other columns
// and the row order are untouched.
func (t *Table) Augment(series TimeSeries, name string) (*Table, error) {
	if len(series.Values) != t.rows {
		return nil, fmt.Errorf("%w: table has %d rows, series %q has %d",
			ErrAlignment, t.rows, name, len(series.Values))
	}

	values := append([]float64(nil), series.Values...)
	names := append([]string(nil), t.names...)
	cols := append([][]float64(nil), t.cols...)

	for i, n := range names {
		if n == name {
			cols[i] = values
			return &Table{names: names, cols: cols, rows: t.rows}, nil
		}
	}
	names = append(names, name)
	cols = append(cols, values)
	return &Table{names: names, cols: cols, rows: t.rows}, nil
}

// Select extracts the named columns in order. Missing names are
// collected and reported together rather than one at a time.
func (t *Table) Select(names []string) ([][]float64, error) {
	var missing []string
	out := make([][]float64, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, col)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}
	return out, nil
}

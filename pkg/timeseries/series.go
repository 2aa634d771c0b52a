package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TimeSeries is an ordered sequence of scalars with a column label.
// Its length always equals the frame or row count it was derived from.
type TimeSeries struct {
	Label  string
	Values []float64
}

// WriteCSV serializes the series as a single named column, one row per
// timepoint, full float fidelity.
func (s TimeSeries) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{s.Label}); err != nil {
		return fmt.Errorf("timeseries: writing series header: %w", err)
	}
	for i, v := range s.Values {
		if err := cw.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return fmt.Errorf("timeseries: writing series row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesCSV parses a single-column series written by WriteCSV.
func ReadSeriesCSV(r io.Reader) (TimeSeries, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return TimeSeries{}, fmt.Errorf("timeseries: parsing series: %w", err)
	}
	if len(records) == 0 || len(records[0]) != 1 {
		return TimeSeries{}, fmt.Errorf("timeseries: series must have one labeled column")
	}
	out := TimeSeries{Label: records[0][0]}
	for i, row := range records[1:] {
		v, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return TimeSeries{}, fmt.Errorf("timeseries: series row %d: %w", i+1, err)
		}
		out.Values = append(out.Values, v)
	}
	return out, nil
}

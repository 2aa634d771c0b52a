// Package signal extracts masked voxel time series from 4D functional
// volumes and removes nuisance regressors by per-voxel ordinary least
// squares, producing the final denoised, spatially averaged series.
package signal

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"localcsf/pkg/timeseries"
	"localcsf/pkg/volume"
)

// ErrExtraction indicates masked signal extraction could not run:
// mismatched grids or a mask selecting no voxels.
var ErrExtraction = errors.New("signal: extraction failed")

// maskIndices returns the flat indices of mask==1 voxels, in grid order.
func maskIndices(mask *volume.ScalarVolume) []int {
	idx := make([]int, 0)
	for i, v := range mask.Data {
		if v == 1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Matrix reduces a 4D volume to a frames-by-voxels matrix over the
// mask==1 positions. The temporal volume and mask must share one grid;
// no implicit resampling happens here. Frame order is preserved.
func Matrix(temporal *volume.TemporalVolume, mask *volume.ScalarVolume) (*mat.Dense, error) {
	if !temporal.Grid.Equal(mask.Grid) {
		return nil, fmt.Errorf("%w: %w: functional grid %s vs mask grid %s",
			ErrExtraction, volume.ErrGridMismatch, temporal.Grid, mask.Grid)
	}
	idx := maskIndices(mask)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %w: mask selects no voxels",
			ErrExtraction, volume.ErrEmptyResult)
	}

	frames := temporal.NumFrames()
	out := mat.NewDense(frames, len(idx), nil)
	for t, frame := range temporal.Frames {
		row := out.RawRowView(t)
		for j, vi := range idx {
			row[j] = frame[vi]
		}
	}
	return out, nil
}

// Extract averages the masked voxel values per frame, yielding one
// value per timepoint under the given label.
func Extract(temporal *volume.TemporalVolume, mask *volume.ScalarVolume, label string) (timeseries.TimeSeries, error) {
	m, err := Matrix(temporal, mask)
	if err != nil {
		return timeseries.TimeSeries{}, err
	}
	return meanAcrossVoxels(m, label), nil
}

// meanAcrossVoxels collapses a frames-by-voxels matrix to its per-frame
// arithmetic mean.
func meanAcrossVoxels(m *mat.Dense, label string) timeseries.TimeSeries {
	frames, _ := m.Dims()
	values := make([]float64, frames)
	for t := 0; t < frames; t++ {
		values[t] = stat.Mean(m.RawRowView(t), nil)
	}
	return timeseries.TimeSeries{Label: label, Values: values}
}

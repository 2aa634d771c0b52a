package signal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"localcsf/pkg/resample"
	"localcsf/pkg/timeseries"
	"localcsf/pkg/volume"
)

// MeanSeriesLabel is the column label of the final denoised series.
const MeanSeriesLabel = "mean_time_series"

// Clean regresses the selected confounds out of every masked voxel's
// time course, then averages the residuals across voxels per frame.
//
// Functional data and ROI masks commonly come out of different
// alignment pipelines, so when the grids differ the mask is resampled
// onto the functional grid with nearest-neighbor interpolation; this is
// the one sanctioned internal resample in the chain. Residuals are not
// standardized afterwards.
func Clean(temporal *volume.TemporalVolume, mask *volume.ScalarVolume, confounds *timeseries.Table, sel Selection, roi string) (timeseries.TimeSeries, error) {
	if !temporal.Grid.Equal(mask.Grid) {
		aligned, err := resample.Resample(mask, temporal.Grid, resample.Nearest)
		if err != nil {
			return timeseries.TimeSeries{}, fmt.Errorf("signal: aligning mask to functional grid: %w", err)
		}
		mask = aligned
	}

	voxels, err := Matrix(temporal, mask)
	if err != nil {
		return timeseries.TimeSeries{}, err
	}

	names := sel.Resolve(roi)
	if names == nil {
		return meanAcrossVoxels(voxels, MeanSeriesLabel), nil
	}
	if confounds == nil {
		return timeseries.TimeSeries{}, fmt.Errorf("%w: confound regression requires a confound table",
			volume.ErrConfiguration)
	}

	cols, err := confounds.Select(names)
	if err != nil {
		return timeseries.TimeSeries{}, err
	}
	frames, _ := voxels.Dims()
	if confounds.NumRows() != frames {
		return timeseries.TimeSeries{}, fmt.Errorf("%w: confound table has %d rows, functional run has %d frames",
			timeseries.ErrAlignment, confounds.NumRows(), frames)
	}

	design := designMatrix(frames, cols)
	residual, err := residualize(design, voxels)
	if err != nil {
		return timeseries.TimeSeries{}, err
	}
	return meanAcrossVoxels(residual, MeanSeriesLabel), nil
}

// designMatrix assembles the confound columns plus an intercept, so the
// regression removes each voxel's offset along with the nuisance terms.
func designMatrix(frames int, cols [][]float64) *mat.Dense {
	d := mat.NewDense(frames, len(cols)+1, nil)
	for r := 0; r < frames; r++ {
		row := d.RawRowView(r)
		for c, col := range cols {
			row[c] = col[r]
		}
		row[len(cols)] = 1
	}
	return d
}

// residualize removes the least-squares projection of design from every
// column of y independently. One QR factorization serves all voxels.
func residualize(design, y *mat.Dense) (*mat.Dense, error) {
	var qr mat.QR
	qr.Factorize(design)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		// A Condition error flags near-singular designs (e.g. a constant
		// confound duplicating the intercept); the solution is still the
		// minimum-norm least-squares fit.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("signal: confound regression: %w", err)
		}
	}

	var fitted mat.Dense
	fitted.Mul(design, &beta)

	var residual mat.Dense
	residual.Sub(y, &fitted)
	return &residual, nil
}

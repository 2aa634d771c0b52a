package pipeline

import (
	"localcsf/pkg/mask"
	"localcsf/pkg/resample"
	"localcsf/pkg/signal"
	"localcsf/pkg/timeseries"
	"localcsf/pkg/volume"
)

// MaskParams holds the mask-derivation parameters, passed explicitly
// into every call; no ambient state exists.
type MaskParams struct {
	// ROIThreshold binarizes probabilistic ROI masks.
	ROIThreshold float64

	// CSFThreshold binarizes the CSF tissue-probability volume.
	CSFThreshold float64

	// DilationIterations is the number of face-connected dilation steps.
	DilationIterations int
}

// MaskSet is the per-(subject, ROI) mask chain: reusable, read-only,
// shared across all runs of the pair.
type MaskSet struct {
	// Processed is the ROI resampled onto the template grid.
	Processed *volume.ScalarVolume

	// Binary is the thresholded ROI mask.
	Binary *volume.ScalarVolume

	// Dilated is the binary ROI expanded outward.
	Dilated *volume.ScalarVolume

	// Local is the derived local tissue mask:
	// (tissue AND dilated) minus the original ROI.
	Local *volume.ScalarVolume
}

// DeriveMasks runs the geometric half of the chain: resample the raw
// ROI onto the template grid, binarize, dilate, and intersect with the
// tissue volume. The tissue volume is aligned onto the template grid
// here, before derivation, since the deriver itself requires identical
// grids and never resamples.
func DeriveMasks(roi, tissue *volume.ScalarVolume, target volume.Grid, p MaskParams) (*MaskSet, error) {
	processed, err := resample.Resample(roi, target, resample.For(volume.Classify(roi)))
	if err != nil {
		return nil, &StageError{Stage: StageResampled, Op: "resampling ROI", Err: err}
	}

	binary, err := mask.Binarize(processed, p.ROIThreshold)
	if err != nil {
		return nil, &StageError{Stage: StageBinarized, Op: "binarizing ROI", Err: err}
	}

	dilated, err := mask.Dilate(binary, p.DilationIterations)
	if err != nil {
		return nil, &StageError{Stage: StageDilated, Op: "dilating ROI", Err: err}
	}

	alignedTissue, err := resample.Resample(tissue, target, resample.For(volume.Classify(tissue)))
	if err != nil {
		return nil, &StageError{Stage: StageLocalMaskDerived, Op: "resampling tissue volume", Err: err}
	}

	local, err := mask.DeriveLocal(alignedTissue, binary, dilated, p.CSFThreshold)
	if err != nil {
		return nil, &StageError{Stage: StageLocalMaskDerived, Op: "deriving local mask", Err: err}
	}

	return &MaskSet{Processed: processed, Binary: binary, Dilated: dilated, Local: local}, nil
}

// RunResult is the per-run output of the temporal half of the chain.
type RunResult struct {
	// LocalSeries is the mean local-tissue signal per frame.
	LocalSeries timeseries.TimeSeries

	// Augmented is the confound table with the local series appended.
	Augmented *timeseries.Table

	// Cleaned is the final denoised, spatially averaged ROI series.
	Cleaned timeseries.TimeSeries
}

// ProcessRun runs the temporal half for one functional run: extract the
// local signal, append it to the confound table, and clean the ROI
// signal against the selected confounds. The local mask is aligned onto
// the functional grid up front (nearest neighbor) because the extractor
// requires identical grids and performs no resampling of its own.
func ProcessRun(functional *volume.TemporalVolume, masks *MaskSet, confounds *timeseries.Table, roi string, sel signal.Selection) (*RunResult, error) {
	local := masks.Local
	if !local.Grid.Equal(functional.Grid) {
		aligned, err := resample.Resample(local, functional.Grid, resample.Nearest)
		if err != nil {
			return nil, &StageError{Stage: StageSignalExtracted, Op: "aligning local mask to functional grid", Err: err}
		}
		local = aligned
	}

	column := signal.LocalCSFColumn(roi)
	localSeries, err := signal.Extract(functional, local, column)
	if err != nil {
		return nil, &StageError{Stage: StageSignalExtracted, Op: "extracting local signal", Err: err}
	}

	augmented, err := confounds.Augment(localSeries, column)
	if err != nil {
		return nil, &StageError{Stage: StageConfoundAugmented, Op: "augmenting confound table", Err: err}
	}

	cleaned, err := signal.Clean(functional, masks.Binary, augmented, sel, roi)
	if err != nil {
		return nil, &StageError{Stage: StageCleaned, Op: "cleaning ROI signal", Err: err}
	}

	return &RunResult{LocalSeries: localSeries, Augmented: augmented, Cleaned: cleaned}, nil
}

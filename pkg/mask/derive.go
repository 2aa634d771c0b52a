package mask

import (
	"fmt"

	"localcsf/pkg/volume"
)

// DeriveLocal computes the local tissue mask: voxels where tissue is
// present, inside the dilated ring, and outside the original ROI. A
// continuous tissue volume is binarized first with tissueThreshold,
// including the percentage auto-rescale. All three inputs must already
// share one grid; this stage never resamples, misalignment has to be
// resolved upstream. The result carries the dilated mask's grid and
// header, and an empty result aborts rather than degrading silently.
func DeriveLocal(tissue, original, dilated *volume.ScalarVolume, tissueThreshold float64) (*volume.ScalarVolume, error) {
	tissueBin := tissue
	if volume.Classify(tissue) != volume.Binary {
		var err error
		tissueBin, err = Binarize(tissue, tissueThreshold)
		if err != nil {
			return nil, fmt.Errorf("mask: binarizing tissue volume: %w", err)
		}
	}

	if !tissueBin.Grid.Equal(original.Grid) {
		return nil, fmt.Errorf("%w: tissue grid %s vs original ROI grid %s",
			volume.ErrGridMismatch, tissueBin.Grid, original.Grid)
	}
	if !original.Grid.Equal(dilated.Grid) {
		return nil, fmt.Errorf("%w: original ROI grid %s vs dilated ROI grid %s",
			volume.ErrGridMismatch, original.Grid, dilated.Grid)
	}

	local := volume.NewScalarVolume(dilated.Grid)
	local.Header = dilated.Header
	count := 0
	for i := range local.Data {
		if tissueBin.Data[i] == 1 && dilated.Data[i] == 1 && original.Data[i] == 0 {
			local.Data[i] = 1
			count++
		}
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: local mask from tissue/ROI inputs is empty", volume.ErrEmptyResult)
	}
	return local, nil
}

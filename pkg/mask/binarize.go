// Package mask turns probabilistic volumes into strict binary masks and
// derives the spatially-restricted "local" mask around an ROI: tissue
// voxels inside a dilated ring but outside the original region.
package mask

import (
	"fmt"

	"localcsf/pkg/volume"
)

// autoRescaleCutoff is the maximum value above which a volume is taken
// to be on a 0-100 percentage scale rather than [0,1]. Interpolation
// overshoot up to 1.1 does not trigger rescaling.
const autoRescaleCutoff = 1.1

// Binarize thresholds a volume into a {0,1} mask. The threshold must lie
// in [0,1]. An already-binary input is returned as an unchanged copy;
// this is a documented no-op, not an error. When the volume's maximum
// exceeds 1.1 the values are treated as percentages and the threshold is
// scaled by 100 before comparison. Voxels at or above the effective
// threshold become 1.
func Binarize(v *volume.ScalarVolume, threshold float64) (*volume.ScalarVolume, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v not in [0,1]", volume.ErrConfiguration, threshold)
	}

	if volume.Classify(v) == volume.Binary {
		return v.Clone(), nil
	}

	effective := threshold
	if v.Max() > autoRescaleCutoff {
		effective *= 100
	}

	out := volume.NewScalarVolume(v.Grid)
	out.Header = v.Header
	for i, val := range v.Data {
		if val >= effective {
			out.Data[i] = 1
		}
	}
	return out, nil
}

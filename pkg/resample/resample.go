// Package resample aligns scalar volumes onto a target grid. Nearest
// neighbor preserves discrete mask labels; trilinear serves continuous
// and probabilistic content. When the source already sits on the target
// grid the input is returned unchanged rather than approximated.
package resample

import (
	"errors"
	"fmt"
	"math"

	"localcsf/pkg/volume"
)

// ErrResample indicates geometric resampling failed or produced a
// volume whose shape does not match the requested grid.
var ErrResample = errors.New("resample: resampling failed")

// Interpolation selects how source voxels are sampled.
type Interpolation int

const (
	// Nearest samples the closest source voxel. Required for masks and
	// any discrete-label content.
	Nearest Interpolation = iota
	// Trilinear blends the eight surrounding source voxels. Used for
	// continuous and probabilistic content.
	Trilinear
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Trilinear:
		return "trilinear"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// For returns the interpolation mode appropriate for a content class:
// nearest for binary volumes, trilinear otherwise. This mirrors the
// caller-decided policy of the acquisition pipeline.
func For(c volume.Class) Interpolation {
	if c == volume.Binary {
		return Nearest
	}
	return Trilinear
}

// Resample maps v onto target. If v already lives on target the input
// is returned as-is; this no-op never fails. Voxels that fall outside
// the source volume read as zero.
func Resample(v *volume.ScalarVolume, target volume.Grid, interp Interpolation) (*volume.ScalarVolume, error) {
	if v.Grid.Equal(target) {
		return v, nil
	}

	srcInv, err := v.Grid.Affine.Inverse()
	if err != nil {
		return nil, fmt.Errorf("%w: source grid: %v", ErrResample, err)
	}
	// Maps a target voxel index straight to source voxel coordinates.
	toSource := srcInv.Mul(target.Affine)

	out := volume.NewScalarVolume(target)
	out.Header = v.Header
	for z := 0; z < target.Nz; z++ {
		for y := 0; y < target.Ny; y++ {
			for x := 0; x < target.Nx; x++ {
				sx, sy, sz := toSource.Apply(float64(x), float64(y), float64(z))
				var val float64
				switch interp {
				case Nearest:
					val = sampleNearest(v, sx, sy, sz)
				case Trilinear:
					val = sampleTrilinear(v, sx, sy, sz)
				default:
					return nil, fmt.Errorf("%w: unknown interpolation %v", ErrResample, interp)
				}
				out.Set(x, y, z, val)
			}
		}
	}

	if out.Grid.Nx != target.Nx || out.Grid.Ny != target.Ny || out.Grid.Nz != target.Nz {
		return nil, fmt.Errorf("%w: output shape %s does not match target %s",
			ErrResample, out.Grid, target)
	}
	return out, nil
}

func sampleNearest(v *volume.ScalarVolume, x, y, z float64) float64 {
	xi := int(math.Round(x))
	yi := int(math.Round(y))
	zi := int(math.Round(z))
	if !v.Grid.InBounds(xi, yi, zi) {
		return 0
	}
	return v.At(xi, yi, zi)
}

func sampleTrilinear(v *volume.ScalarVolume, x, y, z float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	z0 := int(math.Floor(z))
	fx := x - float64(x0)
	fy := y - float64(y0)
	fz := z - float64(z0)

	var val float64
	for dz := 0; dz <= 1; dz++ {
		for dy := 0; dy <= 1; dy++ {
			for dx := 0; dx <= 1; dx++ {
				xi, yi, zi := x0+dx, y0+dy, z0+dz
				if !v.Grid.InBounds(xi, yi, zi) {
					continue
				}
				w := weight(fx, dx) * weight(fy, dy) * weight(fz, dz)
				val += w * v.At(xi, yi, zi)
			}
		}
	}
	return val
}

func weight(f float64, d int) float64 {
	if d == 1 {
		return f
	}
	return 1 - f
}

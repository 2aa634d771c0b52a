package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dense returns the affine as a 4x4 gonum matrix.
func (a Affine) Dense() *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out.Set(i, j, a[i][j])
		}
	}
	return out
}

// affineFromDense converts a 4x4 gonum matrix back to an Affine.
func affineFromDense(m mat.Matrix) Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a
}

// Inverse returns the world-to-voxel transform. A singular affine
// violates the grid invariant and is reported as a configuration error.
func (a Affine) Inverse() (Affine, error) {
	var inv mat.Dense
	if err := inv.Inverse(a.Dense()); err != nil {
		return Affine{}, fmt.Errorf("%w: affine is singular: %v", ErrConfiguration, err)
	}
	return affineFromDense(&inv), nil
}

// Mul composes two affines: (a.Mul(b)).Apply(p) == a.Apply(b.Apply(p)).
func (a Affine) Mul(b Affine) Affine {
	var out mat.Dense
	out.Mul(a.Dense(), b.Dense())
	return affineFromDense(&out)
}

// Package volume defines the core volumetric data model shared by the
// local CSF pipeline: grids, scalar volumes, 4D temporal volumes and the
// binary/continuous classification used to select processing behavior.
package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Affine is a 4x4 voxel-to-world transform in row-major order.
// The last row is expected to be [0 0 0 1].
type Affine [4][4]float64

// IdentityAffine returns the identity transform.
func IdentityAffine() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// ScaledAffine returns a diagonal affine with the given voxel sizes in mm.
// This is the transform NIfTI files fall back to when no sform is stored.
func ScaledAffine(sx, sy, sz float64) Affine {
	a := IdentityAffine()
	a[0][0] = sx
	a[1][1] = sy
	a[2][2] = sz
	return a
}

// Apply maps a voxel coordinate to world space.
func (a Affine) Apply(x, y, z float64) (wx, wy, wz float64) {
	wx = a[0][0]*x + a[0][1]*y + a[0][2]*z + a[0][3]
	wy = a[1][0]*x + a[1][1]*y + a[1][2]*z + a[1][3]
	wz = a[2][0]*x + a[2][1]*y + a[2][2]*z + a[2][3]
	return wx, wy, wz
}

// Grid is an array shape plus the affine mapping voxel indices to
// physical coordinates. Two volumes may only be combined elementwise
// when their grids are identical.
type Grid struct {
	// Nx, Ny, Nz are the array dimensions in voxels.
	Nx, Ny, Nz int

	// Affine maps voxel indices to world coordinates (mm).
	Affine Affine
}

// NumVoxels returns the total number of voxels in the grid.
func (g Grid) NumVoxels() int {
	return g.Nx * g.Ny * g.Nz
}

// Index returns the flat index of voxel (x, y, z).
// Data is stored z-major: idx = z*Nx*Ny + y*Nx + x.
func (g Grid) Index(x, y, z int) int {
	return z*g.Nx*g.Ny + y*g.Nx + x
}

// Coords is the inverse of Index.
func (g Grid) Coords(idx int) (x, y, z int) {
	plane := g.Nx * g.Ny
	z = idx / plane
	rem := idx % plane
	y = rem / g.Nx
	x = rem % g.Nx
	return x, y, z
}

// InBounds reports whether (x, y, z) lies inside the grid.
func (g Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.Nx && y >= 0 && y < g.Ny && z >= 0 && z < g.Nz
}

// Equal reports whether two grids share the same shape and the exact
// same affine. Grid equality gates every elementwise mask operation.
func (g Grid) Equal(other Grid) bool {
	return g.Nx == other.Nx && g.Ny == other.Ny && g.Nz == other.Nz &&
		g.Affine == other.Affine
}

// String renders the grid shape for error messages.
func (g Grid) String() string {
	return fmt.Sprintf("%dx%dx%d", g.Nx, g.Ny, g.Nz)
}

// Header carries the volumetric metadata that travels alongside the
// voxel data. Stages that do not change geometry forward it unmodified.
type Header struct {
	// PixDim holds the NIfTI pixdim vector; PixDim[1..3] are voxel
	// sizes in mm, PixDim[4] is the TR for temporal volumes.
	PixDim [8]float32

	// XYZTUnits encodes the spatial and temporal units byte.
	XYZTUnits byte

	// Descrip is the free-form description string.
	Descrip string
}

// ScalarVolume is a 3D array of values on a grid. Values may be binary,
// probabilistic in [0,1], or raw percentages in [0,100].
type ScalarVolume struct {
	Grid   Grid
	Header Header

	// Data is the flat voxel array in Grid.Index order.
	Data []float64
}

// NewScalarVolume allocates a zero-filled volume on the given grid.
func NewScalarVolume(g Grid) *ScalarVolume {
	return &ScalarVolume{
		Grid: g,
		Data: make([]float64, g.NumVoxels()),
	}
}

// At returns the value at voxel (x, y, z).
func (v *ScalarVolume) At(x, y, z int) float64 {
	return v.Data[v.Grid.Index(x, y, z)]
}

// Set stores a value at voxel (x, y, z).
func (v *ScalarVolume) Set(x, y, z int, val float64) {
	v.Data[v.Grid.Index(x, y, z)] = val
}

// Clone returns a deep copy sharing nothing with the receiver.
func (v *ScalarVolume) Clone() *ScalarVolume {
	out := &ScalarVolume{Grid: v.Grid, Header: v.Header}
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return out
}

// Max returns the maximum voxel value. An empty volume yields 0.
func (v *ScalarVolume) Max() float64 {
	max := math.Inf(-1)
	for _, val := range v.Data {
		if val > max {
			max = val
		}
	}
	if math.IsInf(max, -1) {
		return 0
	}
	return max
}

// Sum returns the sum of all voxel values. For a binary mask this is
// the number of selected voxels.
func (v *ScalarVolume) Sum() float64 {
	return floats.Sum(v.Data)
}

// TemporalVolume is an ordered sequence of frames sharing one grid.
// Frame order is temporal (TR) order and immutable once loaded.
type TemporalVolume struct {
	Grid   Grid
	Header Header

	// Frames holds one flat voxel array per timepoint, each in
	// Grid.Index order.
	Frames [][]float64
}

// NumFrames returns the number of timepoints.
func (t *TemporalVolume) NumFrames() int {
	return len(t.Frames)
}

// Class is the content classification of a volume, used to pick the
// interpolation method and to decide whether binarization is a no-op.
type Class int

const (
	// Binary means every voxel is exactly 0 or 1.
	Binary Class = iota
	// Continuous means at least one voxel holds another value.
	Continuous
)

// Classify inspects every voxel and returns Binary only when all
// values are exactly 0 or 1.
func Classify(v *ScalarVolume) Class {
	for _, val := range v.Data {
		if val != 0 && val != 1 {
			return Continuous
		}
	}
	return Binary
}

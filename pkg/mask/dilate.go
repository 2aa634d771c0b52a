package mask

import (
	"errors"
	"fmt"

	"localcsf/pkg/volume"
)

// ErrDilation indicates dilation was asked to run on a non-binary mask.
var ErrDilation = errors.New("mask: dilation requires a binary mask")

// faceNeighbors are the six face-adjacent voxel offsets. Iterating a
// single-step dilation with this neighborhood n times equals one
// dilation with a diamond structuring element of radius n.
var faceNeighbors = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Dilate expands a binary mask outward by the given number of
// face-connected steps. iterations must be non-negative; zero returns
// the input unchanged. The grid is never altered, so voxels never grow
// past the volume boundary.
func Dilate(m *volume.ScalarVolume, iterations int) (*volume.ScalarVolume, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("%w: dilation iterations %d must be >= 0", volume.ErrConfiguration, iterations)
	}
	if volume.Classify(m) != volume.Binary {
		return nil, fmt.Errorf("%w: input contains non-{0,1} values", ErrDilation)
	}
	if iterations == 0 {
		return m, nil
	}

	g := m.Grid
	cur := m.Clone()

	// Frontier-based sweep: only voxels set during the previous step can
	// recruit new neighbors, so each step is linear in the frontier size.
	frontier := make([]int, 0, g.NumVoxels()/8)
	for idx, val := range cur.Data {
		if val == 1 {
			frontier = append(frontier, idx)
		}
	}

	for it := 0; it < iterations && len(frontier) > 0; it++ {
		next := frontier[:0:0]
		for _, idx := range frontier {
			x, y, z := g.Coords(idx)
			for _, d := range faceNeighbors {
				nx, ny, nz := x+d[0], y+d[1], z+d[2]
				if !g.InBounds(nx, ny, nz) {
					continue
				}
				nidx := g.Index(nx, ny, nz)
				if cur.Data[nidx] == 0 {
					cur.Data[nidx] = 1
					next = append(next, nidx)
				}
			}
		}
		frontier = next
	}
	return cur, nil
}

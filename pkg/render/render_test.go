package render_test

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"localcsf/pkg/render"
	"localcsf/pkg/volume"
)

func testVolumes(t *testing.T) (*volume.ScalarVolume, *volume.ScalarVolume) {
	t.Helper()
	g := volume.Grid{Nx: 8, Ny: 6, Nz: 4, Affine: volume.IdentityAffine()}
	bg := volume.NewScalarVolume(g)
	for i := range bg.Data {
		bg.Data[i] = float64(i % 100)
	}
	mask := volume.NewScalarVolume(g)
	mask.Set(3, 2, 1, 1)
	mask.Set(4, 2, 1, 1)
	return bg, mask
}

func TestNewRendererGridMismatch(t *testing.T) {
	bg, _ := testVolumes(t)
	other := volume.NewScalarVolume(volume.Grid{Nx: 8, Ny: 6, Nz: 4, Affine: volume.ScaledAffine(2, 2, 2)})

	_, err := render.NewRenderer(bg, other)
	require.ErrorIs(t, err, volume.ErrGridMismatch)
}

func TestCentroid(t *testing.T) {
	bg, mask := testVolumes(t)
	r, err := render.NewRenderer(bg, mask)
	require.NoError(t, err)

	x, y, z := r.Centroid()
	require.Equal(t, 3, x) // int truncation of 3.5
	require.Equal(t, 2, y)
	require.Equal(t, 1, z)
}

func TestCentroidEmptyMaskFallsBackToCenter(t *testing.T) {
	bg, _ := testVolumes(t)
	empty := volume.NewScalarVolume(bg.Grid)

	r, err := render.NewRenderer(bg, empty)
	require.NoError(t, err)

	x, y, z := r.Centroid()
	require.Equal(t, 4, x)
	require.Equal(t, 3, y)
	require.Equal(t, 2, z)
}

func TestExtractSliceDimensions(t *testing.T) {
	bg, mask := testVolumes(t)
	r, err := render.NewRenderer(bg, mask)
	require.NoError(t, err)

	cases := []struct {
		axis          string
		position      int
		width, height int
	}{
		{"x", 3, 4, 6},
		{"y", 2, 8, 4},
		{"z", 1, 8, 6},
	}
	for _, tc := range cases {
		img, err := r.ExtractSlice(tc.axis, tc.position)
		require.NoError(t, err, "axis %s", tc.axis)
		b := img.Bounds()
		require.Equal(t, tc.width, b.Dx(), "axis %s width", tc.axis)
		require.Equal(t, tc.height, b.Dy(), "axis %s height", tc.axis)
	}
}

func TestExtractSliceOverlay(t *testing.T) {
	bg, mask := testVolumes(t)
	r, err := render.NewRenderer(bg, mask)
	require.NoError(t, err)

	img, err := r.ExtractSlice("z", 1)
	require.NoError(t, err)

	masked := img.At(3, 2).(color.RGBA)
	require.Equal(t, uint8(220), masked.R)
	require.Equal(t, uint8(40), masked.G)

	plain := img.At(0, 0).(color.RGBA)
	require.Equal(t, plain.R, plain.G)
	require.Equal(t, plain.G, plain.B)
}

func TestExtractSliceBounds(t *testing.T) {
	bg, mask := testVolumes(t)
	r, err := render.NewRenderer(bg, mask)
	require.NoError(t, err)

	_, err = r.ExtractSlice("x", -1)
	require.Error(t, err)
	_, err = r.ExtractSlice("z", 4)
	require.Error(t, err)
	_, err = r.ExtractSlice("q", 0)
	require.Error(t, err)
}

func TestSaveOrthogonal(t *testing.T) {
	bg, mask := testVolumes(t)
	r, err := render.NewRenderer(bg, mask)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, r.SaveOrthogonal(dir, "sub-011_pag_local"))

	for _, name := range []string{
		"sub-011_pag_local_x_003.jpg",
		"sub-011_pag_local_y_002.jpg",
		"sub-011_pag_local_z_001.jpg",
	} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.Positive(t, info.Size(), name)
	}
}

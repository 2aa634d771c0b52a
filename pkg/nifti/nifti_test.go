package nifti_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"localcsf/pkg/nifti"
	"localcsf/pkg/volume"
)

// testGrid uses affine values exactly representable in float32 so the
// on-disk header round-trips without drift.
func testGrid() volume.Grid {
	g := volume.Grid{Nx: 4, Ny: 3, Nz: 2, Affine: volume.ScaledAffine(2, 2, 2.5)}
	g.Affine[0][3] = -8
	g.Affine[1][3] = 6.5
	g.Affine[2][3] = 0.25
	return g
}

func TestReadVolumeMissingFile(t *testing.T) {
	_, err := nifti.ReadVolume(filepath.Join(t.TempDir(), "absent.nii.gz"))
	require.ErrorIs(t, err, volume.ErrInputNotFound)
}

func TestMaskRoundTrip(t *testing.T) {
	g := testGrid()
	mask := volume.NewScalarVolume(g)
	mask.Set(0, 0, 0, 1)
	mask.Set(3, 2, 1, 1)
	mask.Set(1, 1, 0, 1)

	path := filepath.Join(t.TempDir(), "mask.nii")
	require.NoError(t, nifti.WriteMask(path, mask))

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)
	require.True(t, back.Grid.Equal(g), "grid %s vs %s", back.Grid, g)
	require.Equal(t, mask.Data, back.Data)
	require.Equal(t, volume.Binary, volume.Classify(back))
}

func TestMaskRoundTripGzip(t *testing.T) {
	g := testGrid()
	mask := volume.NewScalarVolume(g)
	mask.Set(2, 1, 1, 1)

	path := filepath.Join(t.TempDir(), "mask.nii.gz")
	require.NoError(t, nifti.WriteMask(path, mask))

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)
	require.True(t, back.Grid.Equal(g))
	require.Equal(t, mask.Data, back.Data)
}

func TestVolumeRoundTrip(t *testing.T) {
	g := testGrid()
	v := volume.NewScalarVolume(g)
	// float32-exact values survive the write datatype.
	vals := []float64{0, 0.5, -1.25, 3, 100, 0.0625}
	for i := range v.Data {
		v.Data[i] = vals[i%len(vals)]
	}

	path := filepath.Join(t.TempDir(), "prob.nii.gz")
	require.NoError(t, nifti.WriteVolume(path, v))

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)
	require.True(t, back.Grid.Equal(g))
	require.Equal(t, v.Data, back.Data)
}

func TestTemporalRoundTrip(t *testing.T) {
	g := testGrid()
	n := g.NumVoxels()
	temporal := &volume.TemporalVolume{Grid: g}
	for f := 0; f < 5; f++ {
		frame := make([]float64, n)
		for i := range frame {
			frame[i] = float64(f*n + i)
		}
		temporal.Frames = append(temporal.Frames, frame)
	}

	path := filepath.Join(t.TempDir(), "bold.nii.gz")
	require.NoError(t, nifti.WriteTemporal(path, temporal))

	back, err := nifti.ReadTemporal(path)
	require.NoError(t, err)
	require.True(t, back.Grid.Equal(g))
	require.Equal(t, 5, back.NumFrames())
	require.Equal(t, temporal.Frames, back.Frames)
}

// TestReadVolumeAcceptsSingleFrame4D patches a written file into a 4D
// header with a degenerate time axis, the shape some tools emit for
// masks, and checks it still loads as 3D.
func TestReadVolumeAcceptsSingleFrame4D(t *testing.T) {
	g := testGrid()
	v := volume.NewScalarVolume(g)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "single.nii")
	require.NoError(t, nifti.WriteVolume(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// dim[] sits at byte 40 as little-endian int16s.
	raw[40] = 4 // dim[0]: 4D
	raw[48] = 1 // dim[4]: one frame
	require.NoError(t, os.WriteFile(path, raw, 0644))

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)
	require.Equal(t, v.Data, back.Data)
}

// writeQformOnly writes a mask, then patches the header to carry only a
// qform: sform_code off, qform_code 1, quaternion and offsets as given.
func writeQformOnly(t *testing.T, v *volume.ScalarVolume, quatD float32, offsets [3]float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qform.nii")
	require.NoError(t, nifti.WriteMask(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// qform_code and sform_code are int16s at bytes 252 and 254.
	raw[252] = 1
	raw[254] = 0
	binary.LittleEndian.PutUint32(raw[264:], math.Float32bits(quatD))
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(raw[268+4*i:], math.Float32bits(off))
	}
	require.NoError(t, os.WriteFile(path, raw, 0644))
	return path
}

// TestReadVolumeQformIdentity checks the sform-less fallback: an
// identity quaternion yields the diagonal pixdim affine plus the
// quaternion offsets.
func TestReadVolumeQformIdentity(t *testing.T) {
	g := volume.Grid{Nx: 4, Ny: 3, Nz: 2, Affine: volume.ScaledAffine(2, 2, 2.5)}
	v := volume.NewScalarVolume(g)
	v.Set(1, 2, 1, 1)

	path := writeQformOnly(t, v, 0, [3]float32{-8, 6.5, 0.25})

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)

	want := volume.ScaledAffine(2, 2, 2.5)
	want[0][3] = -8
	want[1][3] = 6.5
	want[2][3] = 0.25
	require.Equal(t, want, back.Grid.Affine)
	require.Equal(t, v.Data, back.Data)
}

// TestReadVolumeQformRotation uses the d=1 quaternion, a half-turn
// about z, which flips the x and y axes.
func TestReadVolumeQformRotation(t *testing.T) {
	g := volume.Grid{Nx: 4, Ny: 3, Nz: 2, Affine: volume.ScaledAffine(2, 2, 2.5)}
	v := volume.NewScalarVolume(g)

	path := writeQformOnly(t, v, 1, [3]float32{0, 0, 0})

	back, err := nifti.ReadVolume(path)
	require.NoError(t, err)

	want := volume.ScaledAffine(-2, -2, 2.5)
	require.Equal(t, want, back.Grid.Affine)
}

func TestReadVolumeRejects4D(t *testing.T) {
	g := testGrid()
	temporal := &volume.TemporalVolume{Grid: g}
	for f := 0; f < 2; f++ {
		temporal.Frames = append(temporal.Frames, make([]float64, g.NumVoxels()))
	}

	path := filepath.Join(t.TempDir(), "twoframe.nii.gz")
	require.NoError(t, nifti.WriteTemporal(path, temporal))

	_, err := nifti.ReadVolume(path)
	require.Error(t, err)
}

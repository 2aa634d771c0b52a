package signal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"localcsf/pkg/signal"
	"localcsf/pkg/timeseries"
	"localcsf/pkg/volume"
)

func lineGrid(n int) volume.Grid {
	return volume.Grid{Nx: n, Ny: 1, Nz: 1, Affine: volume.IdentityAffine()}
}

func fullMask(g volume.Grid) *volume.ScalarVolume {
	m := volume.NewScalarVolume(g)
	for i := range m.Data {
		m.Data[i] = 1
	}
	return m
}

func TestMatrixFrameOrder(t *testing.T) {
	g := lineGrid(3)
	temporal := &volume.TemporalVolume{
		Grid: g,
		Frames: [][]float64{
			{10, 20, 30},
			{11, 21, 31},
		},
	}
	mask := volume.NewScalarVolume(g)
	mask.Data[0] = 1
	mask.Data[2] = 1

	m, err := signal.Matrix(temporal, mask)
	require.NoError(t, err)

	rows, cols := m.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	require.Equal(t, []float64{10, 30}, m.RawRowView(0))
	require.Equal(t, []float64{11, 31}, m.RawRowView(1))
}

func TestMatrixGridMismatch(t *testing.T) {
	temporal := &volume.TemporalVolume{Grid: lineGrid(3), Frames: [][]float64{{1, 2, 3}}}
	mask := fullMask(lineGrid(4))

	_, err := signal.Matrix(temporal, mask)
	require.ErrorIs(t, err, signal.ErrExtraction)
	require.ErrorIs(t, err, volume.ErrGridMismatch)
}

func TestMatrixEmptyMask(t *testing.T) {
	g := lineGrid(3)
	temporal := &volume.TemporalVolume{Grid: g, Frames: [][]float64{{1, 2, 3}}}
	mask := volume.NewScalarVolume(g)

	_, err := signal.Matrix(temporal, mask)
	require.ErrorIs(t, err, signal.ErrExtraction)
	require.ErrorIs(t, err, volume.ErrEmptyResult)
}

func TestExtractMeans(t *testing.T) {
	g := lineGrid(2)
	temporal := &volume.TemporalVolume{
		Grid: g,
		Frames: [][]float64{
			{1, 3},
			{2, 6},
			{-1, 1},
		},
	}

	series, err := signal.Extract(temporal, fullMask(g), "pag_local_csf")
	require.NoError(t, err)
	require.Equal(t, "pag_local_csf", series.Label)
	require.Equal(t, []float64{2, 4, 0}, series.Values)
}

func TestSelectionResolve(t *testing.T) {
	def := signal.DefaultSelection().Resolve("pag")
	require.Equal(t, []string{"X", "Y", "Z", "RotX", "RotY", "RotZ", "pag_local_csf"}, def)

	explicit := signal.ExplicitSelection("X", "csf").Resolve("pag")
	require.Equal(t, []string{"X", "csf"}, explicit)

	require.Nil(t, signal.NoneSelection().Resolve("pag"))

	custom := signal.MotionSelection([]string{"trans_x", "trans_y"}).Resolve("pag")
	require.Equal(t, []string{"trans_x", "trans_y", "pag_local_csf"}, custom)

	// An empty motion list means the standard set.
	require.Equal(t, def, signal.MotionSelection(nil).Resolve("pag"))
}

func TestCleanNoneSkipsRegression(t *testing.T) {
	g := lineGrid(2)
	temporal := &volume.TemporalVolume{
		Grid:   g,
		Frames: [][]float64{{1, 3}, {2, 6}},
	}

	series, err := signal.Clean(temporal, fullMask(g), nil, signal.NoneSelection(), "pag")
	require.NoError(t, err)
	require.Equal(t, signal.MeanSeriesLabel, series.Label)
	require.Equal(t, []float64{2, 4}, series.Values)
}

// TestCleanRemovesProportionalConfound builds a voxel whose time course
// is an exact linear function of one confound; regression must leave
// residuals at numerical zero.
func TestCleanRemovesProportionalConfound(t *testing.T) {
	g := lineGrid(1)
	confound := []float64{1, 2, 3, 4, 5, 6}
	frames := make([][]float64, len(confound))
	for i, c := range confound {
		frames[i] = []float64{2*c + 5}
	}
	temporal := &volume.TemporalVolume{Grid: g, Frames: frames}

	table, err := timeseries.NewTable([]string{"drift"}, [][]float64{confound})
	require.NoError(t, err)

	series, err := signal.Clean(temporal, fullMask(g), table, signal.ExplicitSelection("drift"), "pag")
	require.NoError(t, err)
	require.Len(t, series.Values, len(confound))
	for i, v := range series.Values {
		require.InDelta(t, 0, v, 1e-9, "frame %d", i)
	}
}

// TestCleanDefaultSelection runs the full motion-plus-local-CSF design
// against a signal composed from those very regressors.
func TestCleanDefaultSelection(t *testing.T) {
	const frames = 12
	g := lineGrid(1)

	names := []string{"X", "Y", "Z", "RotX", "RotY", "RotZ", "pag_local_csf"}
	cols := make([][]float64, len(names))
	for c := range cols {
		cols[c] = make([]float64, frames)
		for r := 0; r < frames; r++ {
			// Distinct frequencies keep the design well conditioned.
			cols[c][r] = math.Sin(float64(r+1) * float64(c+1) / 5)
		}
	}
	table, err := timeseries.NewTable(names, cols)
	require.NoError(t, err)

	data := make([][]float64, frames)
	for r := 0; r < frames; r++ {
		v := 10.0
		for c := range cols {
			v += float64(c+1) * cols[c][r]
		}
		data[r] = []float64{v}
	}
	temporal := &volume.TemporalVolume{Grid: g, Frames: data}

	series, err := signal.Clean(temporal, fullMask(g), table, signal.DefaultSelection(), "pag")
	require.NoError(t, err)
	for i, v := range series.Values {
		require.InDelta(t, 0, v, 1e-8, "frame %d", i)
	}
}

// TestCleanCustomMotionNames regresses against a renamed motion column;
// the selection must pull the configured names, not the standard set.
func TestCleanCustomMotionNames(t *testing.T) {
	g := lineGrid(1)
	motion := []float64{1, 2, 3, 4, 5, 6}
	local := []float64{1, 4, 9, 16, 25, 36}
	frames := make([][]float64, len(motion))
	for i := range frames {
		frames[i] = []float64{3*motion[i] - 2*local[i] + 7}
	}
	temporal := &volume.TemporalVolume{Grid: g, Frames: frames}

	table, err := timeseries.NewTable(
		[]string{"trans_x", "pag_local_csf"},
		[][]float64{motion, local},
	)
	require.NoError(t, err)

	sel := signal.MotionSelection([]string{"trans_x"})
	series, err := signal.Clean(temporal, fullMask(g), table, sel, "pag")
	require.NoError(t, err)
	for i, v := range series.Values {
		require.InDelta(t, 0, v, 1e-9, "frame %d", i)
	}

	// The standard names are absent, so the default selection must fail.
	_, err = signal.Clean(temporal, fullMask(g), table, signal.DefaultSelection(), "pag")
	require.ErrorIs(t, err, timeseries.ErrMissingColumn)
}

func TestCleanNilTableWithSelection(t *testing.T) {
	g := lineGrid(1)
	temporal := &volume.TemporalVolume{Grid: g, Frames: [][]float64{{1}, {2}}}

	_, err := signal.Clean(temporal, fullMask(g), nil, signal.DefaultSelection(), "pag")
	require.ErrorIs(t, err, volume.ErrConfiguration)

	_, err = signal.Clean(temporal, fullMask(g), nil, signal.ExplicitSelection("X"), "pag")
	require.ErrorIs(t, err, volume.ErrConfiguration)
}

func TestCleanMissingColumns(t *testing.T) {
	g := lineGrid(1)
	temporal := &volume.TemporalVolume{Grid: g, Frames: [][]float64{{1}, {2}}}

	table, err := timeseries.NewTable([]string{"X", "Y"}, [][]float64{{0, 0}, {0, 0}})
	require.NoError(t, err)

	_, err = signal.Clean(temporal, fullMask(g), table, signal.DefaultSelection(), "pag")
	require.ErrorIs(t, err, timeseries.ErrMissingColumn)
	require.Contains(t, err.Error(), "RotX")
	require.Contains(t, err.Error(), "pag_local_csf")
}

func TestCleanRowMismatch(t *testing.T) {
	g := lineGrid(1)
	temporal := &volume.TemporalVolume{Grid: g, Frames: [][]float64{{1}, {2}}}

	table, err := timeseries.NewTable([]string{"drift"}, [][]float64{{1, 2, 3}})
	require.NoError(t, err)

	_, err = signal.Clean(temporal, fullMask(g), table, signal.ExplicitSelection("drift"), "pag")
	require.ErrorIs(t, err, timeseries.ErrAlignment)
}

// TestCleanAlignsMaskGrid puts the mask on a sub-voxel-shifted grid; the
// nearest-neighbor alignment maps each mask voxel back onto the same
// functional voxel.
func TestCleanAlignsMaskGrid(t *testing.T) {
	g := lineGrid(2)
	temporal := &volume.TemporalVolume{
		Grid:   g,
		Frames: [][]float64{{4, 8}, {6, 10}},
	}

	maskGrid := g
	maskGrid.Affine[0][3] = 0.25
	mask := fullMask(maskGrid)

	series, err := signal.Clean(temporal, mask, nil, signal.NoneSelection(), "pag")
	require.NoError(t, err)
	require.Equal(t, []float64{6, 8}, series.Values)
}

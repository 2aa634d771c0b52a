package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"localcsf/pkg/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	require.Empty(t, cfg.Study.Subjects)
	require.Len(t, cfg.Study.ROIs, 16)
	require.Contains(t, cfg.Study.ROIs, "brainstemNav_PAG")
	require.Contains(t, cfg.Study.ROIs, "sub_PAG_across_runs")
	require.Equal(t, []string{"run-01", "run-02", "run-03"}, cfg.Study.Runs)
	require.Equal(t, "rest", cfg.Study.Condition)

	require.Equal(t, 0.3, cfg.Masking.ROIThreshold)
	require.Equal(t, 0.6, cfg.Masking.CSFThreshold)
	require.Equal(t, 4, cfg.Masking.DilationIterations)

	require.Equal(t, []string{"X", "Y", "Z", "RotX", "RotY", "RotZ"}, cfg.Confounds.Motion)
	require.Positive(t, cfg.Processing.Workers)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig().Masking, cfg.Masking)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = "/data/study"
	cfg.Paths.OutputDir = "/data/out"
	cfg.Study.Subjects = []string{"sub-011", "sub-012"}
	cfg.Masking.DilationIterations = 2
	cfg.Processing.SaveIntermediary = false

	path := filepath.Join(t.TempDir(), "nested", "localcsf.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localcsf.yaml")
	partial := "masking:\n  dilationIterations: 2\nstudy:\n  condition: task\n"
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Masking.DilationIterations)
	require.Equal(t, "task", cfg.Study.Condition)
	// Untouched sections keep their defaults.
	require.Equal(t, 0.3, cfg.Masking.ROIThreshold)
	require.Equal(t, []string{"run-01", "run-02", "run-03"}, cfg.Study.Runs)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localcsf.yaml")
	require.NoError(t, config.CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "roiThreshold: 0.3")
	require.Contains(t, string(data), "condition: rest")
}

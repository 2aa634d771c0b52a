// Package config provides configuration loading and management for the
// local CSF pipeline. It handles loading configuration from YAML files
// and provides the defaults of the original resting-state study.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the study configuration loaded from YAML.
type Config struct {
	// Paths locates the input data and output tree.
	Paths struct {
		// DataDir is the root of the preprocessed study data.
		DataDir string `yaml:"dataDir"`

		// ROIDir is the root directory of the ROI mask atlases.
		ROIDir string `yaml:"roiDir"`

		// TemplatePath is the reference volume defining the target grid
		// for ROI resampling (e.g. an MNI template).
		TemplatePath string `yaml:"templatePath"`

		// OutputDir is where masks, time series and modified confound
		// tables are written.
		OutputDir string `yaml:"outputDir"`
	} `yaml:"paths"`

	// Study enumerates the processing units.
	Study struct {
		// Subjects are BIDS-style subject ids (e.g. sub-011).
		Subjects []string `yaml:"subjects"`

		// ROIs are the region names resolved through the ROI catalog.
		ROIs []string `yaml:"rois"`

		// Runs are the functional run labels (e.g. run-01).
		Runs []string `yaml:"runs"`

		// Condition is the task condition embedded in functional
		// filenames (e.g. rest).
		Condition string `yaml:"condition"`
	} `yaml:"study"`

	// Masking controls the mask derivation chain.
	Masking struct {
		// ROIThreshold binarizes probabilistic ROI masks; must be in [0,1].
		ROIThreshold float64 `yaml:"roiThreshold"`

		// CSFThreshold binarizes the CSF tissue-probability volume.
		CSFThreshold float64 `yaml:"csfThreshold"`

		// DilationIterations is the number of face-connected dilation steps.
		DilationIterations int `yaml:"dilationIterations"`
	} `yaml:"masking"`

	// Confounds configures the denoising regression.
	Confounds struct {
		// Motion are the motion-parameter column names expected in the
		// confound tables.
		Motion []string `yaml:"motion"`
	} `yaml:"confounds"`

	// Processing controls execution.
	Processing struct {
		// Workers is the number of units processed concurrently.
		Workers int `yaml:"workers"`

		// Verbose controls per-stage progress output.
		Verbose bool `yaml:"verbose"`

		// SaveIntermediary determines whether intermediate masks are
		// written alongside the final outputs.
		SaveIntermediary bool `yaml:"saveIntermediary"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with the study defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Study.Subjects = []string{}
	cfg.Study.ROIs = []string{
		"R_pallidum", "L_pallidum", "R_hippocampus", "L_hippocampus",
		"R_thalamus", "L_thalamus", "R_putamen", "L_putamen",
		"R_caudate", "L_caudate", "R_amygdala", "L_amygdala",
		"R_accumbens", "L_accumbens", "brainstemNav_PAG", "sub_PAG_across_runs",
	}
	cfg.Study.Runs = []string{"run-01", "run-02", "run-03"}
	cfg.Study.Condition = "rest"

	cfg.Masking.ROIThreshold = 0.3
	cfg.Masking.CSFThreshold = 0.6
	cfg.Masking.DilationIterations = 4

	cfg.Confounds.Motion = []string{"X", "Y", "Z", "RotX", "RotY", "RotZ"}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Verbose = true
	cfg.Processing.SaveIntermediary = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

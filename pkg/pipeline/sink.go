package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"localcsf/pkg/nifti"
	"localcsf/pkg/timeseries"
)

// Sink persists finished artifacts. It is the only part of the pipeline
// that touches the output tree; every stage before it returns in-memory
// artifacts. Directory creation is idempotent, so concurrent units
// writing under distinct unit paths never conflict.
type Sink struct {
	// OutDir is the output root. Each subject gets a subdirectory.
	OutDir string

	// SaveIntermediary controls whether the processed, binary and
	// dilated masks are written alongside the local mask.
	SaveIntermediary bool
}

func (s Sink) subjectDir(subject string) string {
	return filepath.Join(s.OutDir, subject)
}

// MaskPath returns where a named mask artifact for a subject/ROI lives.
func (s Sink) MaskPath(subject, roi, suffix string) string {
	return filepath.Join(s.subjectDir(subject), fmt.Sprintf("%s_%s.nii.gz", roi, suffix))
}

// LocalSeriesPath returns where a run's local signal series lives.
func (s Sink) LocalSeriesPath(subject, roi, run string) string {
	return filepath.Join(s.subjectDir(subject), fmt.Sprintf("%s_%s_%s_local_csf_ts.csv", subject, roi, run))
}

// ConfoundPath returns where a run's augmented confound table lives.
func (s Sink) ConfoundPath(subject, roi, run string) string {
	return filepath.Join(s.subjectDir(subject), fmt.Sprintf("%s_%s_%s_confounds_mod.tsv", subject, roi, run))
}

// CleanedPath returns where a run's denoised ROI series lives.
func (s Sink) CleanedPath(subject, roi, run string) string {
	return filepath.Join(s.subjectDir(subject), fmt.Sprintf("%s_%s_%s_corrected_ts.csv", subject, roi, run))
}

// SaveMasks writes the mask chain for a subject/ROI pair. The local
// mask is always written; the intermediates only when configured.
func (s Sink) SaveMasks(subject, roi string, masks *MaskSet) error {
	if s.SaveIntermediary {
		if err := nifti.WriteVolume(s.MaskPath(subject, roi, "proc"), masks.Processed); err != nil {
			return err
		}
		if err := nifti.WriteMask(s.MaskPath(subject, roi, "binary"), masks.Binary); err != nil {
			return err
		}
		if err := nifti.WriteMask(s.MaskPath(subject, roi, "dilated"), masks.Dilated); err != nil {
			return err
		}
	}
	return nifti.WriteMask(s.MaskPath(subject, roi, "local_csf_mask"), masks.Local)
}

// SaveRun writes the per-run outputs: local series, augmented confound
// table, and the final corrected series.
func (s Sink) SaveRun(unit Unit, res *RunResult) error {
	if err := writeCSV(s.LocalSeriesPath(unit.Subject, unit.ROI, unit.Run), res.LocalSeries); err != nil {
		return err
	}
	if err := writeTable(s.ConfoundPath(unit.Subject, unit.ROI, unit.Run), res.Augmented); err != nil {
		return err
	}
	return writeCSV(s.CleanedPath(unit.Subject, unit.ROI, unit.Run), res.Cleaned)
}

func writeCSV(path string, series timeseries.TimeSeries) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := series.WriteCSV(f); err != nil {
		return fmt.Errorf("pipeline: writing %s: %w", path, err)
	}
	return nil
}

func writeTable(path string, table *timeseries.Table) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := table.WriteTSV(f); err != nil {
		return fmt.Errorf("pipeline: writing %s: %w", path, err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("pipeline: creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating %s: %w", path, err)
	}
	return f, nil
}

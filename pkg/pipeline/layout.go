package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"localcsf/pkg/volume"
)

// Layout maps study entities to input file paths, following the
// fMRIPrep-style naming of the preprocessed dataset.
type Layout struct {
	// DataDir is the root of the preprocessed study data.
	DataDir string

	// Condition is the task condition label (e.g. "rest").
	Condition string
}

// TissuePath locates a subject's CSF tissue-probability volume.
func (l Layout) TissuePath(subject string) string {
	return filepath.Join(l.DataDir, "anat", "csf_prob_tissue",
		fmt.Sprintf("%s_T1w_space-MNI152NLin2009cAsym_class-CSF_probtissue.nii.gz", subject))
}

// FunctionalPath locates a subject's preprocessed 4D BOLD run.
func (l Layout) FunctionalPath(subject, run string) string {
	return filepath.Join(l.DataDir, "func",
		fmt.Sprintf("%s_task-%s_%s_bold_space-MNI152NLin2009cAsym_preproc.nii.gz",
			subject, l.Condition, run))
}

// ConfoundPath locates a run's fMRIPrep confound table.
func (l Layout) ConfoundPath(subject, run string) string {
	return filepath.Join(l.DataDir, "func",
		fmt.Sprintf("%s_task-%s_%s_bold_confounds.tsv", subject, l.Condition, run))
}

// resolveArtifact is the one existence check every stage funnels its
// input paths through before any computation starts.
func resolveArtifact(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", volume.ErrInputNotFound, path)
		}
		return "", fmt.Errorf("pipeline: resolving %s: %w", path, err)
	}
	return path, nil
}

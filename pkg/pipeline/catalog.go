// Package pipeline wires the mask derivation and signal cleaning stages
// into per-unit runs: one unit is a (subject, ROI, run) triple. Binary,
// dilated and local masks are computed once per subject and ROI and
// shared read-only across that pair's runs. Computation is pure; all
// filesystem writes go through the Sink.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"localcsf/pkg/volume"
)

// Catalog maps ROI names to resolved mask file paths. The rest of the
// pipeline never discovers or globs paths itself.
type Catalog map[string]string

// BuildCatalog assembles the ROI catalog for one subject from the ROI
// root directory: every Harvard-Oxford atlas mask, the group-level
// brainstem-navigator PAG probability map, and the subject-specific
// averaged PAG mask when present.
func BuildCatalog(roiDir, subject, condition string) (Catalog, error) {
	catalog := Catalog{}

	hosaDir := filepath.Join(roiDir, "harvard_oxford")
	entries, err := os.ReadDir(hosaDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("pipeline: reading atlas directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".nii.gz") {
			continue
		}
		roi := strings.TrimSuffix(name, ".nii.gz")
		catalog[roi] = filepath.Join(hosaDir, name)
	}

	bsnPath := filepath.Join(roiDir, "brainstemNav", "PAG_prob.nii.gz")
	if _, err := os.Stat(bsnPath); err == nil {
		catalog["brainstemNav_PAG"] = bsnPath
	}

	subPAG := filepath.Join(roiDir, "sub_PAG_across_runs", condition, subject,
		subject+"_pag_mask_averaged_all-runs.nii.gz")
	if _, err := os.Stat(subPAG); err == nil {
		catalog["sub_PAG_across_runs"] = subPAG
	}

	return catalog, nil
}

// Resolve returns the mask path for an ROI name.
func (c Catalog) Resolve(roi string) (string, error) {
	path, ok := c[roi]
	if !ok {
		return "", fmt.Errorf("%w: ROI %q not in catalog", volume.ErrInputNotFound, roi)
	}
	return path, nil
}

// Names returns the cataloged ROI names, sorted for stable iteration.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

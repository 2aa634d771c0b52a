package pipeline

import (
	"fmt"
	"os"
	"sort"

	"localcsf/pkg/config"
	"localcsf/pkg/nifti"
	"localcsf/pkg/signal"
	"localcsf/pkg/timeseries"
	"localcsf/pkg/volume"
)

// Study iterates the pipeline across subjects, ROIs and runs. Pairs of
// (subject, ROI) are independent and processed concurrently; the runs
// of one pair share its mask set and execute in order.
type Study struct {
	cfg    *config.Config
	layout Layout
	sink   Sink
}

// NewStudy builds a study driver from a loaded configuration.
func NewStudy(cfg *config.Config) *Study {
	return &Study{
		cfg: cfg,
		layout: Layout{
			DataDir:   cfg.Paths.DataDir,
			Condition: cfg.Study.Condition,
		},
		sink: Sink{
			OutDir:           cfg.Paths.OutputDir,
			SaveIntermediary: cfg.Processing.SaveIntermediary,
		},
	}
}

// pair is the unit of parallelism: masks are derived once per pair and
// reused by its runs.
type pair struct {
	subject string
	roi     string
}

// Run processes every configured unit and returns one result per
// (subject, ROI, run). A failing unit never stops the rest; the caller
// aggregates pass/fail from the results.
func (s *Study) Run() ([]Result, error) {
	templatePath, err := resolveArtifact(s.cfg.Paths.TemplatePath)
	if err != nil {
		return nil, err
	}
	template, err := nifti.ReadVolume(templatePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: loading template: %w", err)
	}
	targetGrid := template.Grid

	var pairs []pair
	for _, subject := range s.cfg.Study.Subjects {
		for _, roi := range s.cfg.Study.ROIs {
			pairs = append(pairs, pair{subject: subject, roi: roi})
		}
	}

	workers := s.cfg.Processing.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan pair)
	resultCh := make(chan []Result)

	for w := 0; w < workers; w++ {
		go func() {
			for p := range jobs {
				resultCh <- s.processPair(p, targetGrid)
			}
		}()
	}

	go func() {
		for _, p := range pairs {
			jobs <- p
		}
		close(jobs)
	}()

	var results []Result
	for range pairs {
		results = append(results, <-resultCh...)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Unit.String() < results[j].Unit.String()
	})
	return results, nil
}

// failAll marks every run of a pair as failed at the same stage.
func (s *Study) failAll(p pair, err error) []Result {
	results := make([]Result, 0, len(s.cfg.Study.Runs))
	for _, run := range s.cfg.Study.Runs {
		results = append(results, Result{
			Unit:  Unit{Subject: p.subject, ROI: p.roi, Run: run},
			Stage: FailedStage(err),
			Err:   err,
		})
	}
	return results
}

// processPair derives the mask chain for one subject/ROI pair and then
// processes each functional run against it.
func (s *Study) processPair(p pair, targetGrid volume.Grid) []Result {
	if s.cfg.Processing.Verbose {
		fmt.Printf("Processing %s / %s...\n", p.subject, p.roi)
	}

	catalog, err := BuildCatalog(s.cfg.Paths.ROIDir, p.subject, s.cfg.Study.Condition)
	if err != nil {
		return s.failAll(p, err)
	}
	roiPath, err := catalog.Resolve(p.roi)
	if err != nil {
		return s.failAll(p, err)
	}
	roiVol, err := nifti.ReadVolume(roiPath)
	if err != nil {
		return s.failAll(p, err)
	}

	tissuePath, err := resolveArtifact(s.layout.TissuePath(p.subject))
	if err != nil {
		return s.failAll(p, err)
	}
	tissue, err := nifti.ReadVolume(tissuePath)
	if err != nil {
		return s.failAll(p, err)
	}

	masks, err := DeriveMasks(roiVol, tissue, targetGrid, MaskParams{
		ROIThreshold:       s.cfg.Masking.ROIThreshold,
		CSFThreshold:       s.cfg.Masking.CSFThreshold,
		DilationIterations: s.cfg.Masking.DilationIterations,
	})
	if err != nil {
		return s.failAll(p, err)
	}
	if err := s.sink.SaveMasks(p.subject, p.roi, masks); err != nil {
		return s.failAll(p, err)
	}

	results := make([]Result, 0, len(s.cfg.Study.Runs))
	for _, run := range s.cfg.Study.Runs {
		unit := Unit{Subject: p.subject, ROI: p.roi, Run: run}
		if err := s.processRun(unit, masks); err != nil {
			results = append(results, Result{Unit: unit, Stage: FailedStage(err), Err: err})
			continue
		}
		results = append(results, Result{Unit: unit, Stage: StageCleaned})
	}
	return results
}

// processRun loads one run's functional data and confounds, runs the
// temporal chain, and persists the outputs.
func (s *Study) processRun(unit Unit, masks *MaskSet) error {
	funcPath, err := resolveArtifact(s.layout.FunctionalPath(unit.Subject, unit.Run))
	if err != nil {
		return err
	}
	functional, err := nifti.ReadTemporal(funcPath)
	if err != nil {
		return err
	}

	confPath, err := resolveArtifact(s.layout.ConfoundPath(unit.Subject, unit.Run))
	if err != nil {
		return err
	}
	confounds, err := readConfounds(confPath)
	if err != nil {
		return err
	}

	res, err := ProcessRun(functional, masks, confounds, unit.ROI, signal.MotionSelection(s.cfg.Confounds.Motion))
	if err != nil {
		return err
	}
	if err := s.sink.SaveRun(unit, res); err != nil {
		return err
	}

	if s.cfg.Processing.Verbose {
		fmt.Printf("  %s: %d frames cleaned\n", unit, len(res.Cleaned.Values))
	}
	return nil
}

func readConfounds(path string) (*timeseries.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: opening %s: %w", path, err)
	}
	defer f.Close()
	table, err := timeseries.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	return table, nil
}

// Summary formats the per-unit pass/fail aggregate.
func Summary(results []Result) string {
	passed := 0
	for _, r := range results {
		if r.OK() {
			passed++
		}
	}
	out := fmt.Sprintf("%d/%d units completed\n", passed, len(results))
	for _, r := range results {
		if !r.OK() {
			out += fmt.Sprintf("  FAILED %s at %s: %v\n", r.Unit, r.Stage, r.Err)
		}
	}
	return out
}

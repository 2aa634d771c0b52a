package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"localcsf/pkg/config"
	"localcsf/pkg/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Subjects []string
	ROIs     []string
	Runs     []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process all configured subject/ROI/run units",
		Long: `Run the full pipeline: resample and binarize each ROI, dilate it,
derive the local CSF mask, extract the local signal from each functional
run, augment the confound table, and write the denoised ROI time series.

Example:
  localcsf run -c study.yaml
  localcsf run -c study.yaml --subjects sub-011 --rois brainstemNav_PAG`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudy(opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Subjects, "subjects", nil, "restrict to these subjects")
	cmd.Flags().StringSliceVar(&opts.ROIs, "rois", nil, "restrict to these ROIs")
	cmd.Flags().StringSliceVar(&opts.Runs, "runs", nil, "restrict to these runs")

	return cmd
}

func runStudy(opts *RunOptions) error {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if len(opts.Subjects) > 0 {
		cfg.Study.Subjects = opts.Subjects
	}
	if len(opts.ROIs) > 0 {
		cfg.Study.ROIs = opts.ROIs
	}
	if len(opts.Runs) > 0 {
		cfg.Study.Runs = opts.Runs
	}
	if len(cfg.Study.Subjects) == 0 {
		return fmt.Errorf("no subjects configured; set study.subjects or pass --subjects")
	}

	study := pipeline.NewStudy(cfg)
	start := time.Now()
	results, err := study.Run()
	if err != nil {
		return err
	}

	fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(start).Seconds())
	fmt.Print(pipeline.Summary(results))
	return nil
}

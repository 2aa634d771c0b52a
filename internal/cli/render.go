package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"localcsf/pkg/nifti"
	"localcsf/pkg/render"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Background string
	Mask       string
	OutDir     string
	Basename   string
}

// NewRenderCommand creates the render command for QA views of a
// finished mask.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render QA slices of a mask over a background volume",
		Long: `Render orthogonal slices through the mask centroid with the mask
highlighted over the background volume, for visual QA of derived masks.

Example:
  localcsf render --background mni_template.nii.gz --mask PAG_local_csf_mask.nii.gz --out qa/`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderMask(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Background, "background", "", "background volume (NIfTI)")
	cmd.Flags().StringVar(&opts.Mask, "mask", "", "binary mask to highlight (NIfTI)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "qa", "output directory for slice images")
	cmd.Flags().StringVar(&opts.Basename, "basename", "mask", "basename for slice images")
	cmd.MarkFlagRequired("background")
	cmd.MarkFlagRequired("mask")

	return cmd
}

func renderMask(opts *RenderOptions) error {
	background, err := nifti.ReadVolume(opts.Background)
	if err != nil {
		return err
	}
	mask, err := nifti.ReadVolume(opts.Mask)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(background, mask)
	if err != nil {
		return err
	}
	if err := r.SaveOrthogonal(opts.OutDir, opts.Basename); err != nil {
		return err
	}

	fmt.Printf("QA slices saved to %s\n", opts.OutDir)
	return nil
}

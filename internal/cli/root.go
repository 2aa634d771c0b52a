// Package cli implements the localcsf command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the localcsf CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "localcsf",
		Short: "Local CSF nuisance extraction for resting-state fMRI",
		Long: `localcsf derives a local CSF mask around each region of interest,
extracts its mean time series from preprocessed 4D functional data, and
produces confound-regressed ROI time series.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "localcsf.yaml", "study configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewInitConfigCommand(opts))

	return cmd
}

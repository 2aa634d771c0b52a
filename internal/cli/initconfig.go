package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"localcsf/pkg/config"
)

// NewInitConfigCommand creates the init-config command.
func NewInitConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "init-config",
		Short:        "Write a default study configuration file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(rootOpts.ConfigPath); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", rootOpts.ConfigPath)
			return nil
		},
	}
}

package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

type rootOptions struct {
	configPath string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "printsim",
		Short:        "Print job dispatch simulator",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to YAML config file (missing file means defaults)")

	cmd.AddCommand(
		newServeCommand(opts),
		newSimulateCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

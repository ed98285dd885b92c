package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orrn/printsim/internal/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}

	var flat bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(root.configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flat {
				values := cfg.Flatten()
				for _, k := range config.SortedKeys(values) {
					fmt.Fprintf(out, "%s=%v\n", k, values[k])
				}
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
	show.Flags().BoolVar(&flat, "flat", false, "Print dotted key=value pairs")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Resolve(root.configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(show, validate)
	return cmd
}

package commands

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration after defaults, the config file, the
BIDSEVENTS_* environment and the flags have been applied, as YAML.
Configuration issues are printed to stderr as for every command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.v.AllSettings()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

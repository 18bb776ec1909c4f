package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/patlint/lint"
)

// initCmd: patlint init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			return fmt.Errorf("error initializing config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", path)
		return nil
	},
}

func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = lint.DefaultConfigFile
	}
	return configurationPath, lint.WriteConfig(configurationPath, lint.DefaultConfig())
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnolang/patlint/formatter"
	"github.com/gnolang/patlint/internal/rule"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rule paths...]",
	Short: "Load and compile rules without scanning",
	Long: `Reports every rule that fails to load or compile. Without arguments the
rules named by the configuration file are checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			config, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			paths = config.Rules
		}
		if len(paths) == 0 {
			return fmt.Errorf("please provide rule files or directories")
		}
		return runValidate(cmd.OutOrStdout(), paths)
	},
}

func runValidate(out io.Writer, paths []string) error {
	set, err := rule.LoadPaths(paths)
	if err != nil {
		return err
	}
	for _, err := range set.Errors {
		fmt.Fprintf(out, "%s: %v\n", formatter.ErrorType(err), err)
	}
	fmt.Fprintf(out, "%d rules loaded, %d rejected\n", len(set.Rules), len(set.Errors))
	if len(set.Errors) > 0 {
		return errFindings
	}
	return nil
}

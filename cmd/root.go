package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
)

// errFindings signals a successful scan that reported findings.
var errFindings = errors.New("findings reported")

var rootCmd = &cobra.Command{
	Use:              "patlint [paths...]",
	Short:            "patlint - structural pattern matching for rule-based static analysis",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			return cmd.Help()
		}
		// Format: patlint [path1 path2 ...] => behaves like the scan subcommand
		return scanCmd.RunE(scanCmd, args)
	},
}

// Execute runs the command line and returns the process exit code: 0 when
// nothing was reported, 1 when findings or rule errors were reported and 2
// on failure.
func Execute() int {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFindings):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file (default .patlint.yaml when present)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Overall scan timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(validateCmd)
}

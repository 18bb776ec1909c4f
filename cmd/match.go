package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/lint"
)

var (
	matchPattern string
	matchLang    string
	matchRegexes []string
	matchOpts    scanOptions
)

var matchCmd = &cobra.Command{
	Use:   "match -e PATTERN [paths...]",
	Short: "Search files for a single pattern",
	Long: `Compiles one pattern and reports every place it matches.
Example) patlint match --lang java -e '$REPO.$METHOD(...)' --regex '$REPO=.*Repository' src/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("please provide file or directory paths")
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		config, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		return runMatch(ctx, logger, cmd.OutOrStdout(), progressWriter(cmd, matchOpts), config, args, matchPattern, matchLang, matchRegexes, matchOpts)
	},
}

func init() {
	addScanFlags(matchCmd, &matchOpts)
	matchCmd.Flags().StringVarP(&matchPattern, "pattern", "e", "", "Pattern to search for")
	matchCmd.Flags().StringVarP(&matchLang, "lang", "l", "java", "Language of the pattern")
	matchCmd.Flags().StringArrayVar(&matchRegexes, "regex", nil, "Metavariable constraint as $X=regex (repeatable)")
	_ = matchCmd.MarkFlagRequired("pattern")
}

func parseRegexFlags(flags []string) (map[string]string, error) {
	regexes := make(map[string]string, len(flags))
	for _, f := range flags {
		name, re, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --regex %q: want $X=regex", f)
		}
		regexes[strings.TrimSpace(name)] = re
	}
	return regexes, nil
}

func runMatch(ctx context.Context, logger *zap.Logger, out, progress io.Writer, config lint.Config, paths []string, src, lang string, regexFlags []string, opts scanOptions) error {
	regexes, err := parseRegexFlags(regexFlags)
	if err != nil {
		return err
	}
	r, err := rule.FromPattern("match", lang, src, regexes)
	if err != nil {
		return err
	}

	config = applyFlags(config, opts)
	matchOptions, err := config.MatchOptions()
	if err != nil {
		return err
	}
	engine, err := lint.NewEngine([]*rule.Rule{r}, lint.Options{Match: matchOptions})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault())
	defer cancel()

	results, err := lint.ProcessFiles(ctx, logger, engine, paths, lint.ProcessOptions{
		Ignore:   config.IgnorePaths,
		Workers:  config.Workers,
		Progress: progress,
	})
	if err != nil {
		return err
	}
	return writeReport(out, results, nil, opts)
}

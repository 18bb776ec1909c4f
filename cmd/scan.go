package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/patlint/formatter"
	"github.com/gnolang/patlint/internal/diff"
	"github.com/gnolang/patlint/internal/stats"
	"github.com/gnolang/patlint/internal/types"
	"github.com/gnolang/patlint/lint"
)

// scanOptions carries the flags shared by scan and match.
type scanOptions struct {
	rules       []string
	ignoreRules string
	ignorePaths string
	jsonOutput  bool
	outPath     string
	minSeverity string
	diffPath    string
	watch       bool
	cacheDir    string
	metricsPath string
	metricsAddr string
	stepBudget  int
	mode        string
	workers     int
	noProgress  bool
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan files with the configured rules",
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
		return runScan(ctx, logger, cmd.OutOrStdout(), progressWriter(cmd, scanOpts), config, args, scanOpts)
	},
}

func init() {
	addScanFlags(scanCmd, &scanOpts)
	scanCmd.Flags().StringSliceVarP(&scanOpts.rules, "rules", "r", nil, "Rule files or directories (replaces the configured ones)")
	scanCmd.Flags().StringVar(&scanOpts.ignoreRules, "ignore", "", "Comma-separated list of rule ids to ignore")
	scanCmd.Flags().BoolVar(&scanOpts.watch, "watch", false, "Rescan files when they change")
	scanCmd.Flags().StringVar(&scanOpts.cacheDir, "cache-dir", "", "Directory of the result cache (disabled when empty)")
	scanCmd.Flags().StringVar(&scanOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")
}

func addScanFlags(cmd *cobra.Command, opts *scanOptions) {
	cmd.Flags().StringVar(&opts.ignorePaths, "ignore-paths", "", "Comma-separated list of path globs to skip")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output findings in JSON format")
	cmd.Flags().StringVarP(&opts.outPath, "output", "o", "", "Output path (stdout when empty)")
	cmd.Flags().StringVar(&opts.minSeverity, "min-severity", "", "Drop findings below INFO, WARNING or ERROR")
	cmd.Flags().StringVar(&opts.diffPath, "diff", "", "Keep findings on lines changed by this git diff (- for stdin)")
	cmd.Flags().StringVar(&opts.metricsPath, "metrics", "", "Write Prometheus metrics to this file")
	cmd.Flags().IntVar(&opts.stepBudget, "step-budget", 0, "Matching steps allowed per anchor")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Environments per anchor: first or all")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Files scanned in parallel")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Hide the progress bar")
}

func progressWriter(cmd *cobra.Command, opts scanOptions) io.Writer {
	if opts.noProgress || opts.jsonOutput || opts.watch {
		return nil
	}
	return cmd.ErrOrStderr()
}

// loadConfig reads the configuration file. Without an explicit path the
// default file is used when it exists.
func loadConfig(path string) (lint.Config, error) {
	if path == "" {
		if _, err := os.Stat(lint.DefaultConfigFile); err != nil {
			config := lint.DefaultConfig()
			config.Rules = nil
			return config, nil
		}
		path = lint.DefaultConfigFile
	}
	return lint.LoadConfig(path)
}

// applyFlags lets explicitly set flags win over the configuration file.
func applyFlags(config lint.Config, opts scanOptions) lint.Config {
	if len(opts.rules) > 0 {
		config.Rules = opts.rules
	}
	if opts.stepBudget > 0 {
		config.StepBudget = opts.stepBudget
	}
	if opts.mode != "" {
		config.Mode = opts.mode
	}
	if opts.workers > 0 {
		config.Workers = opts.workers
	}
	config.IgnorePaths = append(config.IgnorePaths, splitList(opts.ignorePaths)...)
	return config
}

func runScan(ctx context.Context, logger *zap.Logger, out, progress io.Writer, config lint.Config, paths []string, opts scanOptions) error {
	config = applyFlags(config, opts)
	if len(config.Rules) == 0 {
		return fmt.Errorf("no rules: pass --rules or create %s with patlint init", lint.DefaultConfigFile)
	}
	matchOpts, err := config.MatchOptions()
	if err != nil {
		return err
	}

	var st *stats.Stats
	if opts.metricsPath != "" || opts.metricsAddr != "" {
		st = stats.New()
	}

	engine, loadErrs, err := lint.New(config, lint.Options{
		Match:    matchOpts,
		CacheDir: opts.cacheDir,
		Stats:    st,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	for _, err := range loadErrs {
		logger.Error("Rule rejected", zap.Error(err))
	}
	for _, rule := range splitList(opts.ignoreRules) {
		engine.IgnoreRule(rule)
	}

	if opts.watch {
		if opts.metricsAddr != "" {
			go serveMetrics(ctx, logger, opts.metricsAddr, st)
		}
		return runWatch(ctx, logger, out, engine, paths)
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
	if err := engine.Flush(); err != nil {
		logger.Warn("Failed to save cache", zap.Error(err))
	}

	reportErr := writeReport(out, results, loadErrs, opts)
	if opts.metricsPath != "" {
		if err := st.WriteFile(opts.metricsPath); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return reportErr
}

func runWatch(ctx context.Context, logger *zap.Logger, out io.Writer, engine lint.LintEngine, paths []string) error {
	w, err := lint.NewWatcher(engine, logger, func(res types.FileResult) {
		if len(res.Findings) == 0 && len(res.Errors) == 0 {
			fmt.Fprintf(out, "no findings in %s\n", res.Path)
			return
		}
		if err := formatter.WriteText(out, res.Findings, res.Timeouts, res.Errors, formatter.ReadSourceCode); err != nil {
			logger.Error("Error printing findings", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	if err := w.Add(paths...); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s\n", strings.Join(paths, ", "))
	return w.Run(ctx)
}

func serveMetrics(ctx context.Context, logger *zap.Logger, addr string, st *stats.Stats) {
	srv := &http.Server{Addr: addr, Handler: st.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server stopped", zap.String("addr", addr), zap.Error(err))
	}
}

// writeReport filters findings by diff and severity and writes them as
// text or JSON. It returns errFindings when anything was reported.
func writeReport(out io.Writer, results []types.FileResult, extraErrs []error, opts scanOptions) error {
	findings, timeouts, errs := lint.Collect(results)
	errs = append(append([]error(nil), extraErrs...), errs...)

	if opts.diffPath != "" {
		changes, err := readDiff(opts.diffPath)
		if err != nil {
			return err
		}
		findings = changes.Filter(findings)
	}
	if opts.minSeverity != "" {
		threshold, err := types.ParseSeverity(opts.minSeverity)
		if err != nil {
			return err
		}
		findings = lint.FilterSeverity(findings, threshold)
	}

	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.jsonOutput {
		if err := formatter.WriteJSON(out, findings, timeouts, errs); err != nil {
			return err
		}
	} else {
		if err := formatter.WriteText(out, findings, timeouts, errs, formatter.ReadSourceCode); err != nil {
			return err
		}
		fmt.Fprintln(out, formatter.Summary(findings, len(results)))
	}

	if len(findings) > 0 || len(errs) > 0 {
		return errFindings
	}
	return nil
}

func readDiff(path string) (*diff.Changes, error) {
	if path == "-" {
		return diff.Parse(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return diff.Parse(f)
}

func timeoutOrDefault() time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

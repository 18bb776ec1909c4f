package lint

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/patlint/internal/frontend"
	"github.com/gnolang/patlint/internal/types"
	"github.com/gnolang/patlint/scanner"
)

// ProcessOptions control how paths are expanded and scanned.
type ProcessOptions struct {
	// Ignore holds glob patterns of paths to skip.
	Ignore []string
	// Workers bounds the files scanned in parallel. Zero means NumCPU.
	Workers int
	// Progress receives a progress bar for directories when set.
	Progress io.Writer
}

func ProcessFile(ctx context.Context, engine LintEngine, filePath string) (types.FileResult, error) {
	return engine.Run(ctx, filePath)
}

// ProcessFiles scans every path in turn. A file that fails is logged and
// recorded as an error of its result; processing stops only when ctx is done.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	opts ProcessOptions,
) ([]types.FileResult, error) {
	var all []types.FileResult
	for _, path := range paths {
		results, err := ProcessPath(ctx, logger, engine, path, opts)
		all = append(all, results...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return all, err
		}
	}
	return all, nil
}

// ProcessPath scans a file or every source file below a directory. Results
// come back ordered by path.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	path string,
	opts ProcessOptions,
) ([]types.FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if _, ok := frontend.ForPath(path); !ok {
			return nil, nil
		}
		res, err := ProcessFile(ctx, engine, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Errors = append(res.Errors, err)
		}
		return []types.FileResult{res}, nil
	}

	files, err := scanner.New(path, frontend.Extensions()...).Ignore(opts.Ignore...).Scan()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(path),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(opts.Progress) }),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]types.FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, fp := i, file.Path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ProcessFile(gctx, engine, fp)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				res.Path = fp
				res.Errors = append(res.Errors, err)
			}
			results[i] = res
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return compact(results), err
	}
	return results, nil
}

// compact drops the slots of files never processed.
func compact(results []types.FileResult) []types.FileResult {
	kept := results[:0]
	for _, r := range results {
		if r.Path != "" {
			kept = append(kept, r)
		}
	}
	return kept
}

// Collect flattens results into sorted findings, timeouts and errors.
func Collect(results []types.FileResult) ([]types.Finding, []types.Timeout, []error) {
	var (
		findings []types.Finding
		timeouts []types.Timeout
		errs     []error
	)
	for _, r := range results {
		findings = append(findings, r.Findings...)
		timeouts = append(timeouts, r.Timeouts...)
		errs = append(errs, r.Errors...)
	}
	types.SortFindings(findings)
	sort.SliceStable(timeouts, func(i, j int) bool {
		if timeouts[i].Path != timeouts[j].Path {
			return timeouts[i].Path < timeouts[j].Path
		}
		return timeouts[i].Span.Less(timeouts[j].Span)
	})
	return findings, timeouts, errs
}

// FilterSeverity keeps the findings at or above threshold.
func FilterSeverity(findings []types.Finding, threshold types.Severity) []types.Finding {
	kept := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

package lint

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gnolang/patlint/internal/cache"
	"github.com/gnolang/patlint/internal/evaluator"
	"github.com/gnolang/patlint/internal/frontend"
	"github.com/gnolang/patlint/internal/match"
	"github.com/gnolang/patlint/internal/nolint"
	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/stats"
	"github.com/gnolang/patlint/internal/types"
)

type LintEngine interface {
	Run(ctx context.Context, filePath string) (types.FileResult, error)
	RunSource(ctx context.Context, filePath string, source []byte) (types.FileResult, error)
	IgnoreRule(rule string)
}

// Options configure an Engine.
type Options struct {
	Match match.Options
	// Workers bounds the rules evaluated in parallel on one file.
	Workers int
	// CacheDir enables the result cache when set.
	CacheDir string
	Stats    *stats.Stats
}

// Engine runs a compiled rule set over files.
type Engine struct {
	rules     []*rule.Rule
	evaluator *evaluator.Evaluator
	cache     *cache.Cache
	stats     *stats.Stats

	mu      sync.RWMutex
	ignored map[string]bool
}

var _ LintEngine = (*Engine)(nil)

// NewEngine builds an engine for rules.
func NewEngine(rules []*rule.Rule, opts Options) (*Engine, error) {
	e := &Engine{
		rules: rules,
		evaluator: evaluator.New(evaluator.Options{
			Match:   opts.Match,
			Workers: opts.Workers,
			Stats:   opts.Stats,
		}),
		stats:   opts.Stats,
		ignored: make(map[string]bool),
	}
	if opts.CacheDir != "" {
		fp := cache.Fingerprint(rules, fmt.Sprintf("budget=%d mode=%s", opts.Match.StepBudget, opts.Match.Mode))
		c, err := cache.New(opts.CacheDir, fp)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	return e, nil
}

// New loads the rules named by config and builds an engine for them. Rules
// that fail to load or to override are returned as errors next to the
// engine, which runs the remaining rules.
func New(config Config, opts Options) (*Engine, []error, error) {
	set, err := rule.LoadPaths(config.Rules)
	if err != nil {
		return nil, nil, err
	}
	rules, overrideErrs := ApplyOverrides(set.Rules, config.Overrides)

	errs := append(append([]error(nil), set.Errors...), overrideErrs...)
	e, err := NewEngine(rules, opts)
	if err != nil {
		return nil, errs, err
	}
	return e, errs, nil
}

// Rules returns the rules the engine runs, ignored ones included.
func (e *Engine) Rules() []*rule.Rule {
	return e.rules
}

// IgnoreRule drops the findings of a rule from every later result.
func (e *Engine) IgnoreRule(rule string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignored[rule] = true
}

// Run reads and scans one file.
func (e *Engine) Run(ctx context.Context, filePath string) (types.FileResult, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return types.FileResult{Path: filePath}, fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	return e.RunSource(ctx, filePath, source)
}

// RunSource scans source as the content of filePath. The language is taken
// from the file extension. A file that does not parse yields a result
// holding a ParseError; the returned error is reserved for an unknown
// language and a done context.
func (e *Engine) RunSource(ctx context.Context, filePath string, source []byte) (types.FileResult, error) {
	res := types.FileResult{Path: filePath}

	parser, ok := frontend.ForPath(filePath)
	if !ok {
		return res, fmt.Errorf("%s: no frontend for this file type", filePath)
	}

	if findings, ok := e.cache.Get(filePath, source); ok {
		e.stats.FileScanned()
		res.Findings = e.filterIgnored(findings)
		return res, nil
	}

	f, err := parser.Parse(filePath, source)
	if err != nil {
		e.stats.ParseError()
		res.Errors = append(res.Errors, &types.ParseError{Path: filePath, Err: err})
		return res, nil
	}

	res, err = e.evaluator.Evaluate(ctx, e.rules, f)
	if err != nil {
		return res, err
	}
	res.Findings = nolint.ParseComments(f).Filter(res.Findings)
	if len(res.Timeouts) == 0 && len(res.Errors) == 0 {
		e.cache.Set(filePath, source, res.Findings)
	}
	e.stats.FileScanned()

	res.Findings = e.filterIgnored(res.Findings)
	return res, nil
}

// Flush persists the result cache, if any.
func (e *Engine) Flush() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Flush()
}

func (e *Engine) filterIgnored(findings []types.Finding) []types.Finding {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.ignored) == 0 {
		return findings
	}
	kept := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if !e.ignored[f.Rule] {
			kept = append(kept, f)
		}
	}
	return kept
}

// Package evaluator runs compiled rules over parsed files.
package evaluator

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gnolang/patlint/internal/constraint"
	"github.com/gnolang/patlint/internal/match"
	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/stats"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// Options configures an Evaluator.
type Options struct {
	Match match.Options
	// Workers bounds the rules evaluated in parallel on one file.
	// Zero means GOMAXPROCS.
	Workers int
	// Stats receives per rule counters. It may be nil.
	Stats *stats.Stats
}

// Evaluator applies rules to files. It is safe for concurrent use.
type Evaluator struct {
	matcher *match.Matcher
	workers int
	stats   *stats.Stats
}

func New(opts Options) *Evaluator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{
		matcher: match.New(opts.Match),
		workers: workers,
		stats:   opts.Stats,
	}
}

// RuleResult is the outcome of one rule on one file.
type RuleResult struct {
	Findings []types.Finding
	Timeouts []types.Timeout
	Errors   []error
	Anchors  int
}

// Evaluate runs every rule that targets f's language. Rules run in
// parallel and share one index of f. Rule level failures are reported in
// the result; the error is non-nil only when ctx is done.
func (e *Evaluator) Evaluate(ctx context.Context, rules []*rule.Rule, f *tree.File) (types.FileResult, error) {
	res := types.FileResult{Path: f.Path}

	var applicable []*rule.Rule
	for _, r := range rules {
		if r.AppliesTo(f.Lang) {
			applicable = append(applicable, r)
		}
	}
	if len(applicable) == 0 {
		return res, nil
	}

	idx := match.NewIndex(f.Root)
	results := make([]RuleResult, len(applicable))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, r := range applicable {
		i, r := i, r
		g.Go(func() error {
			rr, err := e.EvaluateRule(gctx, r, f, idx)
			if err != nil {
				return err
			}
			results[i] = rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for _, rr := range results {
		res.Findings = append(res.Findings, rr.Findings...)
		res.Timeouts = append(res.Timeouts, rr.Timeouts...)
		res.Errors = append(res.Errors, rr.Errors...)
	}
	types.SortFindings(res.Findings)
	return res, nil
}

// EvaluateRule runs r over f. idx must index f.Root. When idx is nil one is
// built.
func (e *Evaluator) EvaluateRule(ctx context.Context, r *rule.Rule, f *tree.File, idx *match.Index) (RuleResult, error) {
	var out RuleResult
	x, ok := r.Expr(f.Lang)
	if !ok {
		return out, nil
	}
	if idx == nil {
		idx = match.NewIndex(f.Root)
	}

	run := &run{
		ctx:      ctx,
		file:     f,
		idx:      idx,
		matcher:  e.matcher,
		base:     e.matcher,
		inside:   map[*rule.Expr][]candidate{},
		timedOut: map[tree.Span]bool{},
		errSeen:  map[string]bool{},
	}
	cands, err := run.eval(x, nil)
	if err != nil {
		return out, err
	}

	// One finding per anchor span, in source order.
	seen := map[tree.Span]bool{}
	for _, c := range cands {
		if seen[c.span] {
			continue
		}
		seen[c.span] = true
		bound := c.bindings.Texts(f)
		out.Findings = append(out.Findings, types.Finding{
			Rule:     r.ID,
			Path:     f.Path,
			Severity: r.Severity,
			Message:  r.Interpolate(bound),
			Span:     c.span,
			Metavars: bound,
		})
	}
	sort.SliceStable(out.Findings, func(i, j int) bool {
		return out.Findings[i].Span.Less(out.Findings[j].Span)
	})

	for _, span := range run.timeouts {
		out.Timeouts = append(out.Timeouts, types.Timeout{Rule: r.ID, Path: f.Path, Span: span})
	}
	for _, err := range run.errs {
		out.Errors = append(out.Errors, fmt.Errorf("rule %s: %s: %w", r.ID, f.Path, err))
	}
	out.Anchors = run.anchors

	e.stats.RuleDone(r.ID, out.Anchors, len(out.Timeouts), len(out.Findings), len(out.Errors))
	return out, nil
}

// candidate is a location a rule expression holds at, with the bindings
// that made it hold.
type candidate struct {
	span     tree.Span
	bindings match.Bindings
}

func (c candidate) key() string {
	return c.span.String() + "|" + c.bindings.Key()
}

// run is the state of one rule evaluation on one file.
type run struct {
	ctx     context.Context
	file    *tree.File
	idx     *match.Index
	matcher *match.Matcher
	// base is matcher without the constraint filters of enclosing clauses.
	base *match.Matcher

	// inside caches the unscoped matches of pattern-inside operands.
	inside map[*rule.Expr][]candidate

	anchors  int
	timeouts []tree.Span
	timedOut map[tree.Span]bool
	errs     []error
	errSeen  map[string]bool
}

// eval returns the candidates of x. With a nil scope the whole tree is
// searched, otherwise only the scope's span, starting from its bindings.
func (r *run) eval(x *rule.Expr, scope *candidate) ([]candidate, error) {
	switch x.Kind {
	case rule.ExprPattern:
		return r.pattern(x, scope)
	case rule.ExprOr:
		return r.or(x, scope)
	case rule.ExprAnd:
		return r.and(x, scope)
	}
	return nil, fmt.Errorf("%s cannot produce matches on its own", x.Kind)
}

func (r *run) pattern(x *rule.Expr, scope *candidate) ([]candidate, error) {
	var (
		res match.Result
		err error
	)
	if scope == nil {
		res, err = r.matcher.Search(r.ctx, x.Pattern, r.idx)
	} else {
		res, err = r.matcher.MatchSpan(r.ctx, x.Pattern, r.idx, scope.span, scope.bindings)
	}
	r.anchors += res.Anchors
	for _, span := range res.Timeouts {
		if !r.timedOut[span] {
			r.timedOut[span] = true
			r.timeouts = append(r.timeouts, span)
		}
	}
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, len(res.Matches))
	for i, m := range res.Matches {
		cands[i] = candidate{span: m.Span, bindings: m.Bindings}
	}
	return cands, nil
}

func (r *run) or(x *rule.Expr, scope *candidate) ([]candidate, error) {
	var all []candidate
	for _, child := range x.Children {
		cands, err := r.eval(child, scope)
		if err != nil {
			return nil, err
		}
		all = append(all, cands...)
	}
	return dedup(all), nil
}

func (r *run) and(x *rule.Expr, scope *candidate) ([]candidate, error) {
	var positives, filters []*rule.Expr
	for _, child := range x.Children {
		if child.IsPositive() {
			positives = append(positives, child)
		} else {
			filters = append(filters, child)
		}
	}
	if len(positives) == 0 {
		return nil, fmt.Errorf("%s has no positive clause", x)
	}

	cands, err := r.positives(positives, x.Constraints, scope)
	if err != nil {
		return nil, err
	}

	for _, f := range filters {
		if cands, err = r.filter(f, cands); err != nil {
			return nil, err
		}
	}

	if len(x.Constraints) == 0 {
		return cands, nil
	}
	kept := cands[:0]
	for _, c := range cands {
		ok, err := constraint.Satisfied(r.file, c.bindings, x.Constraints)
		if err != nil {
			r.report(err)
			continue
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// positives intersects the positive clauses of a conjunction. While they
// are matched, environments that already violate one of cs are skipped so
// the search moves on to the next environment of the same anchor.
func (r *run) positives(ps []*rule.Expr, cs []constraint.Constraint, scope *candidate) ([]candidate, error) {
	if len(cs) > 0 {
		prev := r.matcher
		r.matcher = prev.Filtered(func(b match.Bindings) bool {
			return constraint.Admissible(r.file, b, cs)
		})
		defer func() { r.matcher = prev }()
	}

	cands, err := r.eval(ps[0], scope)
	if err != nil {
		return nil, err
	}
	for _, p := range ps[1:] {
		var next []candidate
		for i := range cands {
			more, err := r.eval(p, &cands[i])
			if err != nil {
				return nil, err
			}
			for _, m := range more {
				next = append(next, candidate{span: cands[i].span, bindings: cands[i].bindings.Merge(m.bindings)})
			}
		}
		cands = dedup(next)
	}
	return cands, nil
}

func (r *run) filter(f *rule.Expr, cands []candidate) ([]candidate, error) {
	prev := r.matcher
	r.matcher = r.base
	defer func() { r.matcher = prev }()

	operand := f.Children[0]
	var kept []candidate
	switch f.Kind {
	case rule.ExprNot:
		for i := range cands {
			hits, err := r.eval(operand, &cands[i])
			if err != nil {
				return nil, err
			}
			if len(hits) == 0 {
				kept = append(kept, cands[i])
			}
		}
	case rule.ExprInside, rule.ExprNotInside:
		outer, err := r.unscoped(operand)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			enclosing, found := innermost(outer, c)
			switch {
			case f.Kind == rule.ExprInside && found:
				c.bindings = c.bindings.Merge(enclosing.bindings)
				kept = append(kept, c)
			case f.Kind == rule.ExprNotInside && !found:
				kept = append(kept, c)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected filter %s", f.Kind)
	}
	return kept, nil
}

func (r *run) unscoped(x *rule.Expr) ([]candidate, error) {
	if cands, ok := r.inside[x]; ok {
		return cands, nil
	}
	cands, err := r.eval(x, nil)
	if err != nil {
		return nil, err
	}
	r.inside[x] = cands
	return cands, nil
}

// report records err once per distinct message.
func (r *run) report(err error) {
	msg := err.Error()
	if r.errSeen[msg] {
		return
	}
	r.errSeen[msg] = true
	r.errs = append(r.errs, err)
}

// innermost returns the smallest candidate of outer enclosing c with
// bindings consistent with c's.
func innermost(outer []candidate, c candidate) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	for _, o := range outer {
		if !o.span.Contains(c.span) || !o.bindings.Consistent(c.bindings) {
			continue
		}
		if !found || width(o.span) < width(best.span) {
			best, found = o, true
		}
	}
	return best, found
}

func width(s tree.Span) int { return s.End.Offset - s.Start.Offset }

func dedup(cands []candidate) []candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		k := c.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

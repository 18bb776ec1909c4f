package match

import (
	"context"
	"errors"

	"github.com/gnolang/patlint/internal/pattern"
	"github.com/gnolang/patlint/internal/tree"
)

// Match is one successful anchor attempt.
type Match struct {
	// Node is the anchor. For statement sequence patterns it is the
	// first statement of the matched window.
	Node     *tree.Node
	Span     tree.Span
	Bindings Bindings
}

// Result is the outcome of a search: the matches in anchor order and the
// spans of anchors abandoned on ErrMatchTimeout.
type Result struct {
	Matches  []Match
	Timeouts []tree.Span
	// Anchors counts the anchor attempts made.
	Anchors int
}

type spanKey struct{ start, end int }

func keyOf(s tree.Span) spanKey { return spanKey{s.Start.Offset, s.End.Offset} }

// Index is a read-only lookup structure over one tree, shared by every
// search on that tree.
type Index struct {
	Root   *tree.Node
	nodes  []*tree.Node
	byKind map[tree.Kind][]*tree.Node
	bySpan map[spanKey][]*tree.Node
	lists  []*tree.Node
}

// NewIndex indexes root in pre-order.
func NewIndex(root *tree.Node) *Index {
	idx := &Index{
		Root:   root,
		byKind: map[tree.Kind][]*tree.Node{},
		bySpan: map[spanKey][]*tree.Node{},
	}
	tree.Walk(root, func(n *tree.Node) bool {
		idx.nodes = append(idx.nodes, n)
		idx.byKind[n.Kind] = append(idx.byKind[n.Kind], n)
		k := keyOf(n.Span)
		idx.bySpan[k] = append(idx.bySpan[k], n)
		if n.Kind.IsStatementList() && len(n.Children) > 0 {
			idx.lists = append(idx.lists, n)
		}
		return true
	})
	return idx
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// candidates returns the nodes that may anchor p, in source order.
func (idx *Index) candidates(p *pattern.Pattern) []*tree.Node {
	if kind, ok := p.RootKind(); ok {
		return idx.byKind[kind]
	}
	return idx.nodes
}

// Search tries p at every compatible anchor of idx. A timeout abandons only
// the anchor it occurred at. The error is non-nil only when ctx is done.
func (m *Matcher) Search(ctx context.Context, p *pattern.Pattern, idx *Index) (Result, error) {
	if p.IsSequence() {
		return m.searchWindows(ctx, p, idx, nil, nil)
	}

	var res Result
	for _, n := range idx.candidates(p) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := m.tryNode(p, n, nil, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// MatchSpan tries p only at anchors whose span equals span, starting from
// seed. It is used to test further clauses against a location another
// clause already matched.
func (m *Matcher) MatchSpan(ctx context.Context, p *pattern.Pattern, idx *Index, span tree.Span, seed Bindings) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.IsSequence() {
		return m.searchWindows(ctx, p, idx, &span, seed)
	}

	kind, kindOK := p.RootKind()
	var res Result
	for _, n := range idx.bySpan[keyOf(span)] {
		if kindOK && n.Kind != kind {
			continue
		}
		if err := m.tryNode(p, n, seed, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (m *Matcher) tryNode(p *pattern.Pattern, n *tree.Node, seed Bindings, res *Result) error {
	res.Anchors++
	envs, err := m.MatchNode(p.Root, n, seed)
	if errors.Is(err, ErrMatchTimeout) {
		res.Timeouts = append(res.Timeouts, n.Span)
		return nil
	}
	if err != nil {
		return err
	}
	for _, b := range envs {
		res.Matches = append(res.Matches, Match{Node: n, Span: n.Span, Bindings: b})
	}
	return nil
}

// searchWindows matches a statement sequence pattern against contiguous
// windows of every statement list. Leading and trailing ellipses are
// implied by the window search and dropped. Windows are tried by start
// position, then shortest first. When within is set only the window
// spanning exactly that span is tried.
func (m *Matcher) searchWindows(ctx context.Context, p *pattern.Pattern, idx *Index, within *tree.Span, seed Bindings) (Result, error) {
	ps := trimEllipses(p.Root.(*pattern.Composite).Children)
	var res Result
	if len(ps) == 0 {
		return res, nil
	}
	need := required(ps)

	for _, list := range idx.lists {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if within != nil && !list.Span.Contains(*within) {
			continue
		}
		children := list.Children
		for i := range children {
			if within != nil && children[i].Span.Start.Offset != within.Start.Offset {
				continue
			}
			res.Anchors++
			a := &attempt{budget: m.budget}
			for j := i + need; j <= len(children); j++ {
				if within != nil && children[j-1].Span.End.Offset != within.End.Offset {
					continue
				}
				envs, err := m.matchSeq(a, ps, children[i:j], seed)
				if errors.Is(err, ErrMatchTimeout) {
					res.Timeouts = append(res.Timeouts, children[i].Span)
					break
				}
				if err != nil {
					return res, err
				}
				span := tree.Span{Start: children[i].Span.Start, End: children[j-1].Span.End}
				for _, b := range envs {
					res.Matches = append(res.Matches, Match{Node: children[i], Span: span, Bindings: b})
				}
				if len(envs) > 0 && m.mode == FirstMatch {
					break
				}
			}
		}
	}
	return res, nil
}

func trimEllipses(ps []pattern.Node) []pattern.Node {
	for len(ps) > 0 {
		if _, ok := ps[0].(*pattern.Ellipsis); !ok {
			break
		}
		ps = ps[1:]
	}
	for len(ps) > 0 {
		if _, ok := ps[len(ps)-1].(*pattern.Ellipsis); !ok {
			break
		}
		ps = ps[:len(ps)-1]
	}
	return ps
}

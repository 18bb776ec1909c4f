// Package match implements structural matching of pattern trees against
// generic syntax trees.
package match

import (
	"github.com/gnolang/patlint/internal/pattern"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// ErrMatchTimeout is returned when an anchor attempt exhausts its step
// budget.
var ErrMatchTimeout = types.ErrMatchTimeout

// DefaultStepBudget bounds the work spent on a single anchor.
const DefaultStepBudget = 100000

// Mode selects how many environments an anchor attempt produces.
type Mode int

const (
	// FirstMatch stops at the first successful environment of an anchor.
	FirstMatch Mode = iota
	// AllMatches enumerates every distinct environment of an anchor.
	AllMatches
)

func (m Mode) String() string {
	if m == AllMatches {
		return "all"
	}
	return "first"
}

// ParseMode accepts "first" and "all".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "first":
		return FirstMatch, true
	case "all":
		return AllMatches, true
	}
	return FirstMatch, false
}

// Options configure a Matcher.
type Options struct {
	StepBudget int
	Mode       Mode
}

// Accept decides whether a complete environment counts as a match. A
// rejected environment does not stop the search, so in FirstMatch mode the
// next environment in search order is tried.
type Accept func(Bindings) bool

// Matcher runs anchor attempts. It holds no per-match state and is safe for
// concurrent use.
type Matcher struct {
	budget int
	mode   Mode
	accept Accept
}

func New(opts Options) *Matcher {
	budget := opts.StepBudget
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	return &Matcher{budget: budget, mode: opts.Mode}
}

func (m *Matcher) Mode() Mode { return m.mode }

// Filtered returns a copy of m that only yields environments accepted by
// accept and by every filter already set on m.
func (m *Matcher) Filtered(accept Accept) *Matcher {
	c := *m
	if prev := m.accept; prev != nil {
		c.accept = func(b Bindings) bool { return prev(b) && accept(b) }
	} else {
		c.accept = accept
	}
	return &c
}

type goalKind uint8

const (
	// match one pattern node against one tree node
	goalNode goalKind = iota
	// match a pattern sequence against a node sequence
	goalSeq
	// let a leading ellipsis of ps swallow ns[:k], then match the rest
	goalEllipsis
)

type goal struct {
	kind goalKind
	p    pattern.Node
	n    *tree.Node
	ps   []pattern.Node
	ns   []*tree.Node
	k    int
}

// goals is a persistent stack of pending goals. Choice points capture the
// list by pointer, pushing never disturbs a captured list.
type goals struct {
	g    goal
	next *goals
}

func push(g goal, rest *goals) *goals {
	return &goals{g: g, next: rest}
}

type frame struct {
	goals *goals
	env   *Env
}

// attempt is the state of one anchor attempt.
type attempt struct {
	steps  int
	budget int
	stack  []frame
}

// run resolves start under env and calls yield for every environment that
// satisfies all goals, in search order. yield returns false to stop.
func (a *attempt) run(start *goals, env *Env, yield func(*Env) bool) error {
	a.stack = append(a.stack[:0], frame{goals: start, env: env})
	for len(a.stack) > 0 {
		fr := a.stack[len(a.stack)-1]
		a.stack = a.stack[:len(a.stack)-1]

		gl, env := fr.goals, fr.env
		for {
			if gl == nil {
				if !yield(env) {
					return nil
				}
				break
			}
			a.steps++
			if a.steps > a.budget {
				return ErrMatchTimeout
			}

			var ok bool
			g := gl.g
			gl, env, ok = a.step(g, gl.next, env)
			if !ok {
				break
			}
		}
	}
	return nil
}

// step resolves one goal. It returns the goals left to prove and the
// extended environment, or ok=false when the goal fails.
func (a *attempt) step(g goal, rest *goals, env *Env) (*goals, *Env, bool) {
	switch g.kind {
	case goalNode:
		return a.node(g.p, g.n, rest, env)

	case goalSeq:
		ps, ns := g.ps, g.ns
		if len(ps) == 0 {
			return rest, env, len(ns) == 0
		}
		if _, ok := ps[0].(*pattern.Ellipsis); ok {
			return push(goal{kind: goalEllipsis, ps: ps, ns: ns, k: 0}, rest), env, true
		}
		if len(ns) < required(ps) {
			return nil, nil, false
		}
		rest = push(goal{kind: goalSeq, ps: ps[1:], ns: ns[1:]}, rest)
		return push(goal{kind: goalNode, p: ps[0], n: ns[0]}, rest), env, true

	case goalEllipsis:
		tail := g.ps[1:]
		maxK := len(g.ns) - required(tail)
		if g.k > maxK {
			return nil, nil, false
		}
		if g.k < maxK {
			// longer runs are retried after every shorter one failed
			next := g
			next.k++
			a.stack = append(a.stack, frame{goals: push(next, rest), env: env})
		}
		return push(goal{kind: goalSeq, ps: tail, ns: g.ns[g.k:]}, rest), env, true
	}
	return nil, nil, false
}

func (a *attempt) node(p pattern.Node, n *tree.Node, rest *goals, env *Env) (*goals, *Env, bool) {
	switch p := p.(type) {
	case *pattern.Literal:
		return rest, env, p.Kind == n.Kind && p.Text == n.Text && n.IsLeaf()

	case *pattern.Metavar:
		env, ok := env.Bind(p.Name, n)
		return rest, env, ok

	case *pattern.Wildcard:
		return rest, env, p.Kind == tree.KindInvalid || p.Kind == n.Kind

	case *pattern.Composite:
		if p.Kind != n.Kind || p.Text != n.Text {
			return nil, nil, false
		}
		return push(goal{kind: goalSeq, ps: p.Children, ns: n.Children}, rest), env, true
	}
	// an ellipsis outside a sequence never matches
	return nil, nil, false
}

// required counts the pattern elements of ps that consume exactly one node.
func required(ps []pattern.Node) int {
	n := 0
	for _, p := range ps {
		if _, ok := p.(*pattern.Ellipsis); !ok {
			n++
		}
	}
	return n
}

// MatchNode matches p against n starting from seed and returns the
// resulting environments in search order. In FirstMatch mode at most one
// environment is returned. Duplicate environments are dropped.
func (m *Matcher) MatchNode(p pattern.Node, n *tree.Node, seed Bindings) ([]Bindings, error) {
	a := &attempt{budget: m.budget}
	return m.collect(a, push(goal{kind: goalNode, p: p, n: n}, nil), seed)
}

// matchSeq matches ps against exactly ns.
func (m *Matcher) matchSeq(a *attempt, ps []pattern.Node, ns []*tree.Node, seed Bindings) ([]Bindings, error) {
	return m.collect(a, push(goal{kind: goalSeq, ps: ps, ns: ns}, nil), seed)
}

func (m *Matcher) collect(a *attempt, start *goals, seed Bindings) ([]Bindings, error) {
	var (
		out  []Bindings
		seen map[string]bool
	)
	err := a.run(start, seed.Env(), func(env *Env) bool {
		b := env.Bindings()
		if m.accept != nil && !m.accept(b) {
			return true
		}
		if m.mode == FirstMatch {
			out = append(out, b)
			return false
		}
		if seen == nil {
			seen = map[string]bool{}
		}
		if key := b.Key(); !seen[key] {
			seen[key] = true
			out = append(out, b)
		}
		return true
	})
	return out, err
}

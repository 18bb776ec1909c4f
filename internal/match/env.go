package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// Env is a persistent binding environment. Bind never mutates the receiver,
// it returns an extended copy, so a backtracking search can keep older
// versions around for free. The nil *Env is the empty environment.
type Env struct {
	name   string
	node   *tree.Node
	parent *Env
	size   int
}

// Lookup returns the node bound to name.
func (e *Env) Lookup(name string) (*tree.Node, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.node, true
		}
	}
	return nil, false
}

// Bind binds name to n. When name is already bound the existing node must
// be structurally equal to n, otherwise ok is false.
func (e *Env) Bind(name string, n *tree.Node) (env *Env, ok bool) {
	if prev, bound := e.Lookup(name); bound {
		return e, tree.Equal(prev, n)
	}
	return &Env{name: name, node: n, parent: e, size: e.Len() + 1}, true
}

// Len returns the number of bound names.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return e.size
}

// Bindings flattens e into a map.
func (e *Env) Bindings() Bindings {
	b := make(Bindings, e.Len())
	for cur := e; cur != nil; cur = cur.parent {
		b[cur.name] = cur.node
	}
	return b
}

// Bindings maps metavariable names to the nodes they matched.
type Bindings map[string]*tree.Node

// Env returns b as an environment. Names are bound in sorted order so the
// result does not depend on map iteration.
func (b Bindings) Env() *Env {
	var env *Env
	for _, name := range b.Names() {
		env, _ = env.Bind(name, b[name])
	}
	return env
}

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Consistent reports whether every name bound in both b and o is bound to
// structurally equal nodes.
func (b Bindings) Consistent(o Bindings) bool {
	small, large := b, o
	if len(small) > len(large) {
		small, large = large, small
	}
	for name, n := range small {
		if m, ok := large[name]; ok && !tree.Equal(n, m) {
			return false
		}
	}
	return true
}

// Merge returns the union of b and o. Entries of b win on shared names.
func (b Bindings) Merge(o Bindings) Bindings {
	out := make(Bindings, len(b)+len(o))
	for name, n := range o {
		out[name] = n
	}
	for name, n := range b {
		out[name] = n
	}
	return out
}

// Texts returns the source text bound to each name.
func (b Bindings) Texts(f *tree.File) map[string]string {
	out := make(map[string]string, len(b))
	for name, n := range b {
		out[name] = f.NodeText(n)
	}
	return out
}

// Key identifies b by the location of every bound node.
func (b Bindings) Key() string {
	var sb strings.Builder
	for _, name := range b.Names() {
		n := b[name]
		fmt.Fprintf(&sb, "%s=%s@%d-%d;", name, n.Kind, n.Span.Start.Offset, n.Span.End.Offset)
	}
	return sb.String()
}

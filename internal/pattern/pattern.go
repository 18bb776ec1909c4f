// Package pattern compiles concrete syntax snippets into pattern trees.
//
// A pattern tree mirrors the shape of the generic syntax tree produced by
// a frontend, with metavariables, ellipses and wildcards standing in for
// the parts a rule does not care about.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// Node is one of Literal, Metavar, Ellipsis, Wildcard or Composite.
type Node interface {
	node()
	String() string
}

// Literal matches a leaf with the same kind and text.
type Literal struct {
	Kind tree.Kind
	Text string
}

// Metavar binds the node it matches to Name. Repeated names must bind to
// structurally equal nodes.
type Metavar struct {
	Name string
}

// Ellipsis matches a contiguous run of zero or more siblings.
type Ellipsis struct{}

// Wildcard matches any node of Kind, or any node at all when Kind is
// tree.KindInvalid. Content is not inspected.
type Wildcard struct {
	Kind tree.Kind
}

// Composite matches a node of the same kind and text whose children match
// Children in order.
type Composite struct {
	Kind     tree.Kind
	Text     string
	Children []Node
}

func (*Literal) node()   {}
func (*Metavar) node()   {}
func (*Ellipsis) node()  {}
func (*Wildcard) node()  {}
func (*Composite) node() {}

func (l *Literal) String() string {
	if l.Text == "" {
		return l.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", l.Kind, l.Text)
}

func (m *Metavar) String() string { return m.Name }

func (*Ellipsis) String() string { return "..." }

func (w *Wildcard) String() string {
	if w.Kind == tree.KindInvalid {
		return "_"
	}
	return "_:" + w.Kind.String()
}

func (c *Composite) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(c.Kind.String())
	if c.Text != "" {
		fmt.Fprintf(&sb, "[%s]", c.Text)
	}
	for _, child := range c.Children {
		sb.WriteString(" ")
		sb.WriteString(child.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Pattern is a compiled snippet.
type Pattern struct {
	Lang   string
	Source string
	Root   Node
}

// RootKind is the kind a node must have to be an anchor for p. ok is false
// when any node may be an anchor.
func (p *Pattern) RootKind() (kind tree.Kind, ok bool) {
	switch r := p.Root.(type) {
	case *Literal:
		return r.Kind, true
	case *Composite:
		return r.Kind, true
	case *Wildcard:
		return r.Kind, r.Kind != tree.KindInvalid
	}
	return tree.KindInvalid, false
}

// IsSequence reports whether p is a bare statement sequence, matched as a
// window over the children of statement lists.
func (p *Pattern) IsSequence() bool {
	c, ok := p.Root.(*Composite)
	return ok && c.Kind == tree.KindSequence
}

// Metavars returns the sorted names of the metavariables p can bind.
func (p *Pattern) Metavars() []string {
	seen := map[string]bool{}
	Walk(p.Root, func(n Node) {
		if m, ok := n.(*Metavar); ok {
			seen[m.Name] = true
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pattern) String() string {
	return p.Root.String()
}

// Walk calls fn for n and every node below it.
func Walk(n Node, fn func(Node)) {
	fn(n)
	if c, ok := n.(*Composite); ok {
		for _, child := range c.Children {
			Walk(child, fn)
		}
	}
}

var metavarName = regexp.MustCompile(`^\$[A-Z_][A-Z0-9_]*$`)

// IsMetavar reports whether s is a metavariable name such as "$X".
func IsMetavar(s string) bool {
	return metavarName.MatchString(s)
}

// anonymous is the metavariable that matches anything without binding.
const anonymous = "$_"

package tree

import (
	"fmt"
	"strings"
)

// Node is a single element of the generic syntax tree.
//
// Nodes are immutable once a frontend hands them out. Leaves carry their
// literal text, composites carry ordered children whose spans lie inside
// the parent's span.
type Node struct {
	Kind     Kind
	Text     string
	Children []*Node
	Span     Span
}

// NewLeaf creates a leaf node.
func NewLeaf(kind Kind, text string, span Span) *Node {
	return &Node{Kind: kind, Text: text, Span: span}
}

// NewNode creates a composite node. When span is zero it is derived from the
// first and last non-nil child.
func NewNode(kind Kind, span Span, children ...*Node) *Node {
	n := &Node{Kind: kind, Span: span}
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	if span.IsZero() && len(n.Children) > 0 {
		n.Span = Span{Start: n.Children[0].Span.Start, End: n.Children[len(n.Children)-1].Span.End}
	}
	return n
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Equal reports structural equality: same kind, same literal text and
// pairwise equal children. Spans are ignored.
func Equal(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind || a.Text != b.Text || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants in pre-order (source order).
// Returning false from fn skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	// explicit stack; deep expression chains would otherwise recurse deeply
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// String renders n as an S-expression, mostly for tests and debugging.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("nil")
		return
	}
	if n.IsLeaf() {
		if n.Text != "" {
			fmt.Fprintf(sb, "%s(%q)", n.Kind, n.Text)
		} else {
			sb.WriteString(n.Kind.String())
		}
		return
	}
	sb.WriteString("(")
	sb.WriteString(n.Kind.String())
	for _, c := range n.Children {
		sb.WriteString(" ")
		c.write(sb)
	}
	sb.WriteString(")")
}

// Comment is a source comment collected by a frontend. Comments are not part
// of the tree, suppression directives are read from them.
type Comment struct {
	Text string
	Span Span
}

// File is the parse result of one source file.
type File struct {
	Path     string
	Lang     string
	Source   []byte
	Root     *Node
	Comments []Comment
}

// TextOf returns the source text covered by span, or "" when the span is out
// of range.
func (f *File) TextOf(span Span) string {
	if f == nil || span.Start.Offset < 0 || span.End.Offset > len(f.Source) || span.Start.Offset > span.End.Offset {
		return ""
	}
	return string(f.Source[span.Start.Offset:span.End.Offset])
}

// NodeText returns the literal text of a leaf or the source text spanned by
// a composite node.
func (f *File) NodeText(n *Node) string {
	if n == nil {
		return ""
	}
	if n.IsLeaf() && n.Text != "" {
		return n.Text
	}
	return f.TextOf(n.Span)
}

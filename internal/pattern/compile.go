package pattern

import (
	"errors"
	"fmt"

	"github.com/gnolang/patlint/internal/frontend"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// CompileError reports a snippet that cannot be turned into a pattern.
type CompileError struct {
	Lang   string
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile %s pattern %q: %v", e.Lang, e.Source, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

func (e *CompileError) Is(target error) bool { return target == types.ErrCompile }

// Compile parses snippet with the frontend of lang and converts the result
// into a pattern tree.
func Compile(lang, snippet string) (*Pattern, error) {
	fail := func(err error) (*Pattern, error) {
		return nil, &CompileError{Lang: lang, Source: snippet, Err: err}
	}

	parser, err := frontend.Lookup(lang)
	if err != nil {
		return fail(err)
	}
	parsed, err := parser.ParsePattern([]byte(snippet))
	if err != nil {
		return fail(err)
	}
	root, err := FromTree(parsed)
	if err != nil {
		return fail(err)
	}
	return &Pattern{Lang: parser.Lang(), Source: snippet, Root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(lang, snippet string) *Pattern {
	p, err := Compile(lang, snippet)
	if err != nil {
		panic(err)
	}
	return p
}

// FromTree converts a tree parsed in pattern mode.
func FromTree(n *tree.Node) (Node, error) {
	return convert(n, tree.KindInvalid)
}

func convert(n *tree.Node, parent tree.Kind) (Node, error) {
	switch {
	case n.Kind == tree.KindEllipsis:
		if !parent.IsSequence() {
			if parent == tree.KindInvalid {
				return nil, errors.New("a pattern cannot consist of an ellipsis alone")
			}
			return nil, fmt.Errorf("ellipsis at %s is not allowed inside %s", n.Span.Start, parent)
		}
		return &Ellipsis{}, nil

	case !n.IsLeaf():
		c := &Composite{Kind: n.Kind, Text: n.Text, Children: make([]Node, 0, len(n.Children))}
		for _, child := range n.Children {
			pc, err := convert(child, n.Kind)
			if err != nil {
				return nil, err
			}
			c.Children = append(c.Children, pc)
		}
		return c, nil

	case n.Text == anonymous:
		return &Wildcard{}, nil

	case IsMetavar(n.Text):
		return &Metavar{Name: n.Text}, nil

	case n.Kind == tree.KindLiteral && n.Text == `"..."`:
		return &Wildcard{Kind: tree.KindLiteral}, nil

	case n.Kind == tree.KindModifiers, n.Kind == tree.KindThrows:
		// omitted modifiers or throws clause
		return &Wildcard{Kind: n.Kind}, nil
	}
	return &Literal{Kind: n.Kind, Text: n.Text}, nil
}

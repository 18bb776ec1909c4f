// Package java turns Java source into the generic syntax tree.
package java

import (
	"fmt"

	"github.com/gnolang/patlint/internal/tree"
)

// Lang is the language name rules use to target Java.
const Lang = "java"

// Frontend parses Java compilation units and Java pattern snippets.
type Frontend struct{}

func New() *Frontend { return &Frontend{} }

func (*Frontend) Lang() string { return Lang }

func (*Frontend) Extensions() []string { return []string{".java"} }

// Parse parses a complete compilation unit.
func (*Frontend) Parse(path string, src []byte) (*tree.File, error) {
	p, comments, err := newParser(src, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	root, err := p.parseFile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &tree.File{
		Path:     path,
		Lang:     Lang,
		Source:   src,
		Root:     root,
		Comments: comments,
	}, nil
}

// ParsePattern parses a pattern snippet. The snippet may be a catch clause,
// an expression, one or more statements, or one or more class members, tried
// in that order. Several statements or members yield a Sequence node.
func (*Frontend) ParsePattern(src []byte) (*tree.Node, error) {
	p, _, err := newParser(src, true)
	if err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.errorf("empty pattern")
	}

	if p.is("catch") {
		if n, err := p.parseCatch(); err == nil && p.atEOF() {
			return n, nil
		}
		p.reset(mark{})
	}

	if n, err := p.parseExpr(); err == nil && p.atEOF() {
		return n, nil
	}
	p.reset(mark{})

	stmts, stmtErr := p.parseUntilEOF(p.parseStatement)
	if stmtErr == nil {
		return sequence(stmts), nil
	}
	p.reset(mark{})

	if members, err := p.parseUntilEOF(p.parseMember); err == nil {
		return sequence(members), nil
	}
	return nil, stmtErr
}

func (p *parser) parseUntilEOF(parse func() (*tree.Node, error)) ([]*tree.Node, error) {
	var nodes []*tree.Node
	for !p.atEOF() {
		n, err := parse()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func sequence(nodes []*tree.Node) *tree.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return tree.NewNode(tree.KindSequence, tree.Span{}, nodes...)
}

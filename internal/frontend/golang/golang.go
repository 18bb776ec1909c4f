// Package golang maps Go source parsed by go/parser onto the generic syntax
// tree.
package golang

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"regexp"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// Lang is the language name rules use to target Go.
const Lang = "go"

const (
	metavarPrefix = "__mv_"
	ellipsisIdent = "__ellipsis__"
)

var metavarToken = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

// Frontend parses Go files and Go pattern snippets.
type Frontend struct{}

func New() *Frontend { return &Frontend{} }

func (*Frontend) Lang() string { return Lang }

func (*Frontend) Extensions() []string { return []string{".go"} }

// Parse parses a complete Go source file.
func (*Frontend) Parse(path string, src []byte) (*tree.File, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c := newConverter(fset, src, false)
	var comments []tree.Comment
	for _, group := range f.Comments {
		for _, cm := range group.List {
			comments = append(comments, tree.Comment{Text: cm.Text, Span: c.span(cm.Pos(), cm.End())})
		}
	}
	return &tree.File{
		Path:     path,
		Lang:     Lang,
		Source:   src,
		Root:     c.file(f),
		Comments: comments,
	}, nil
}

// ParsePattern parses a Go pattern snippet: an expression, a statement list
// or a list of top level declarations, tried in that order.
func (*Frontend) ParsePattern(src []byte) (*tree.Node, error) {
	text, err := substitute(src)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	fset := token.NewFileSet()
	if expr, err := parser.ParseExprFrom(fset, "pattern", text, parser.SkipObjectResolution); err == nil {
		c := newConverter(fset, []byte(text), true)
		return c.expr(expr), nil
	}

	const stmtPrefix = "package p\nfunc _() {\n"
	wrapped := stmtPrefix + text + "\n}\n"
	fset = token.NewFileSet()
	f, stmtErr := parser.ParseFile(fset, "pattern", wrapped, parser.SkipObjectResolution)
	if stmtErr == nil && len(f.Decls) == 1 {
		if fn, ok := f.Decls[0].(*ast.FuncDecl); ok && fn.Body != nil {
			c := newConverter(fset, []byte(wrapped), true)
			return sequence(c.stmts(fn.Body.List))
		}
	}

	const declPrefix = "package p\n"
	wrapped = declPrefix + text + "\n"
	fset = token.NewFileSet()
	if f, err := parser.ParseFile(fset, "pattern", wrapped, parser.SkipObjectResolution); err == nil {
		c := newConverter(fset, []byte(wrapped), true)
		return sequence(c.file(f).Children[1:])
	}
	return nil, fmt.Errorf("invalid Go pattern: %w", stmtErr)
}

func sequence(nodes []*tree.Node) (*tree.Node, error) {
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("empty pattern")
	case 1:
		return nodes[0], nil
	}
	return tree.NewNode(tree.KindSequence, tree.Span{}, nodes...), nil
}

// substitute rewrites metavariables and pattern ellipses into identifiers so
// the snippet becomes valid Go. A "..." directly after an operand or '[' is
// Go's own variadic or array length syntax and is kept.
func substitute(src []byte) (string, error) {
	text := metavarToken.ReplaceAllString(string(src), metavarPrefix+"$1")
	if strings.Contains(text, "$") {
		return "", fmt.Errorf("invalid metavariable in pattern %q", src)
	}

	var (
		s    scanner.Scanner
		errs scanner.ErrorList
	)
	fset := token.NewFileSet()
	file := fset.AddFile("pattern", -1, len(text))
	s.Init(file, []byte(text), func(pos token.Position, msg string) { errs.Add(pos, msg) }, 0)

	var (
		sb   strings.Builder
		last int
		prev token.Token
	)
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.ELLIPSIS && !continuesOperand(prev) {
			off := file.Offset(pos)
			sb.WriteString(text[last:off])
			sb.WriteString(ellipsisIdent)
			last = off + len("...")
			tok = token.IDENT
		}
		if tok == token.SEMICOLON && lit == "\n" {
			// automatically inserted; keep the previous real token
			prev = token.SEMICOLON
			continue
		}
		prev = tok
	}
	if err := errs.Err(); err != nil {
		return "", err
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

func continuesOperand(prev token.Token) bool {
	switch prev {
	case token.IDENT, token.RPAREN, token.RBRACK, token.RBRACE, token.LBRACK:
		return true
	}
	return false
}

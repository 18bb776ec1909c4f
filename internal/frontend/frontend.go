// Package frontend registers the language parsers that produce generic
// syntax trees.
package frontend

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnolang/patlint/internal/frontend/golang"
	"github.com/gnolang/patlint/internal/frontend/java"
	"github.com/gnolang/patlint/internal/tree"
)

// Parser turns source files and pattern snippets of one language into
// generic trees.
type Parser interface {
	Lang() string
	Extensions() []string
	Parse(path string, src []byte) (*tree.File, error)
	// ParsePattern parses a snippet in which "$NAME" metavariables and "..."
	// ellipses may appear.
	ParsePattern(src []byte) (*tree.Node, error)
}

var (
	byLang = map[string]Parser{}
	byExt  = map[string]Parser{}
)

func init() {
	Register(java.New())
	Register(golang.New())
}

// Register makes p available by language name and file extension.
func Register(p Parser) {
	byLang[p.Lang()] = p
	for _, ext := range p.Extensions() {
		byExt[ext] = p
	}
}

// Lookup returns the parser for a language name such as "java".
func Lookup(lang string) (Parser, error) {
	p, ok := byLang[strings.ToLower(lang)]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	return p, nil
}

// ForPath returns the parser responsible for the file extension of path.
func ForPath(path string) (Parser, bool) {
	p, ok := byExt[filepath.Ext(path)]
	return p, ok
}

// Languages lists the registered language names.
func Languages() []string {
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Extensions lists every registered file extension.
func Extensions() []string {
	exts := make([]string, 0, len(byExt))
	for e := range byExt {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// Package rule defines rules, their pattern expressions and the YAML rule
// file format.
package rule

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gnolang/patlint/internal/constraint"
	"github.com/gnolang/patlint/internal/pattern"
	"github.com/gnolang/patlint/internal/types"
)

// ExprKind is the variant of a pattern expression.
type ExprKind int

const (
	ExprPattern ExprKind = iota
	ExprAnd
	ExprOr
	ExprNot
	ExprInside
	ExprNotInside
)

func (k ExprKind) String() string {
	switch k {
	case ExprPattern:
		return "pattern"
	case ExprAnd:
		return "patterns"
	case ExprOr:
		return "pattern-either"
	case ExprNot:
		return "pattern-not"
	case ExprInside:
		return "pattern-inside"
	case ExprNotInside:
		return "pattern-not-inside"
	}
	return "unknown"
}

// Expr is a compiled pattern expression.
//
// Pattern holds the base pattern of an ExprPattern. And and Or combine
// Children. Not, Inside and NotInside wrap a single child and only filter
// candidates produced by the positive clauses of the enclosing And.
// Constraints of an And are checked once its clauses are resolved.
type Expr struct {
	Kind        ExprKind
	Pattern     *pattern.Pattern
	Children    []*Expr
	Constraints []constraint.Constraint
}

// IsPositive reports whether x can produce candidates on its own.
func (x *Expr) IsPositive() bool {
	switch x.Kind {
	case ExprPattern, ExprAnd, ExprOr:
		return true
	}
	return false
}

// Metavars returns the names x can bind, including those bound through
// pattern-inside.
func (x *Expr) Metavars() []string {
	seen := map[string]bool{}
	x.collect(seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (x *Expr) collect(seen map[string]bool) {
	switch x.Kind {
	case ExprPattern:
		for _, name := range x.Pattern.Metavars() {
			seen[name] = true
		}
	case ExprAnd, ExprOr, ExprInside:
		for _, c := range x.Children {
			if c.Kind != ExprNot && c.Kind != ExprNotInside {
				c.collect(seen)
			}
		}
	}
}

func (x *Expr) String() string {
	switch x.Kind {
	case ExprPattern:
		return x.Pattern.Source
	case ExprAnd, ExprOr:
		parts := make([]string, len(x.Children))
		for i, c := range x.Children {
			parts[i] = c.String()
		}
		return x.Kind.String() + "[" + strings.Join(parts, ", ") + "]"
	}
	return x.Kind.String() + "(" + x.Children[0].String() + ")"
}

// Rule is a compiled rule. A rule targeting several languages holds one
// expression per language.
type Rule struct {
	ID        string
	Languages []string
	Severity  types.Severity
	Message   string
	// Source is the file the rule was loaded from.
	Source string

	exprs map[string]*Expr
}

// Expr returns the expression compiled for lang.
func (r *Rule) Expr(lang string) (*Expr, bool) {
	x, ok := r.exprs[lang]
	return x, ok
}

// AppliesTo reports whether r targets lang.
func (r *Rule) AppliesTo(lang string) bool {
	_, ok := r.exprs[lang]
	return ok
}

// New builds a rule from expressions compiled per language.
func New(id string, severity types.Severity, message string, exprs map[string]*Expr) *Rule {
	r := &Rule{ID: id, Severity: severity, Message: message, exprs: exprs}
	for lang := range exprs {
		r.Languages = append(r.Languages, lang)
	}
	sort.Strings(r.Languages)
	return r
}

var metavarRef = regexp.MustCompile(`\$[A-Z_][A-Z0-9_]*`)

// Interpolate replaces the metavariables in the rule message with the text
// they are bound to. Unbound references are left as written.
func (r *Rule) Interpolate(bound map[string]string) string {
	return metavarRef.ReplaceAllStringFunc(r.Message, func(name string) string {
		if text, ok := bound[name]; ok {
			return text
		}
		return name
	})
}

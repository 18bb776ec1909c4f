// Package constraint filters match environments by predicates over the text
// bound to metavariables.
package constraint

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/gnolang/patlint/internal/match"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// regexTimeout bounds a single regex evaluation.
const regexTimeout = time.Second

// Constraint is a predicate over the text bound to one metavariable.
type Constraint interface {
	Metavar() string
	Check(text string) (bool, error)
	String() string
}

// Regex requires the bound text to match Pattern at its start. The syntax
// is Perl compatible (lookarounds, backreferences).
type Regex struct {
	Name    string
	Pattern string
	re      *regexp2.Regexp
}

// NewRegex compiles pattern for the metavariable name.
func NewRegex(name, pattern string) (*Regex, error) {
	re, err := regexp2.Compile(`\A(?:`+pattern+`)`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q for %s: %w", pattern, name, err)
	}
	re.MatchTimeout = regexTimeout
	return &Regex{Name: name, Pattern: pattern, re: re}, nil
}

func (r *Regex) Metavar() string { return r.Name }

func (r *Regex) Check(text string) (bool, error) {
	return r.re.MatchString(text)
}

func (r *Regex) String() string {
	return fmt.Sprintf("%s =~ /%s/", r.Name, r.Pattern)
}

// UnboundError reports a constraint on a metavariable the environment does
// not bind.
type UnboundError struct {
	Constraint Constraint
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("constraint %s refers to unbound metavariable %s", e.Constraint, e.Constraint.Metavar())
}

func (e *UnboundError) Is(target error) bool { return target == types.ErrConfiguration }

// Satisfied reports whether every constraint holds for b. A constraint on
// an unbound name fails closed with an *UnboundError.
func Satisfied(f *tree.File, b match.Bindings, cs []Constraint) (bool, error) {
	for _, c := range cs {
		n, ok := b[c.Metavar()]
		if !ok {
			return false, &UnboundError{Constraint: c}
		}
		pass, err := c.Check(f.NodeText(n))
		if err != nil {
			return false, fmt.Errorf("evaluating %s: %w", c, err)
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

// Admissible is a partial Satisfied for environments still being built. It
// is false only when a constraint on a bound name fails. Unbound names and
// evaluation errors are left for Satisfied to report.
func Admissible(f *tree.File, b match.Bindings, cs []Constraint) bool {
	for _, c := range cs {
		n, ok := b[c.Metavar()]
		if !ok {
			continue
		}
		if pass, err := c.Check(f.NodeText(n)); err == nil && !pass {
			return false
		}
	}
	return true
}

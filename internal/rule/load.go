package rule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/patlint/internal/constraint"
	"github.com/gnolang/patlint/internal/frontend"
	"github.com/gnolang/patlint/internal/pattern"
	"github.com/gnolang/patlint/internal/types"
)

// ConfigurationError reports an invalid rule definition.
type ConfigurationError struct {
	Rule   string
	Source string
	Msg    string
}

func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	if e.Source != "" {
		sb.WriteString(e.Source)
		sb.WriteString(": ")
	}
	if e.Rule != "" {
		fmt.Fprintf(&sb, "rule %q: ", e.Rule)
	}
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *ConfigurationError) Is(target error) bool { return target == types.ErrConfiguration }

// Set is the result of loading rule files. Rules that failed to load are
// reported in Errors and left out of Rules.
type Set struct {
	Rules  []*Rule
	Errors []error
}

// Lookup returns the rule with the given id.
func (s *Set) Lookup(id string) (*Rule, bool) {
	for _, r := range s.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID                string       `yaml:"id"`
	Languages         []string     `yaml:"languages"`
	Severity          string       `yaml:"severity"`
	Message           string       `yaml:"message"`
	Pattern           string       `yaml:"pattern"`
	Patterns          []clauseSpec `yaml:"patterns"`
	PatternEither     []clauseSpec `yaml:"pattern-either"`
	MetavariableRegex regexList    `yaml:"metavariable-regex"`
}

// clauseSpec is one item of a patterns or pattern-either list. Exactly one
// field may be set.
type clauseSpec struct {
	Pattern           string       `yaml:"pattern"`
	Patterns          []clauseSpec `yaml:"patterns"`
	PatternEither     []clauseSpec `yaml:"pattern-either"`
	PatternNot        string       `yaml:"pattern-not"`
	PatternInside     string       `yaml:"pattern-inside"`
	PatternNotInside  string       `yaml:"pattern-not-inside"`
	MetavariableRegex *regexSpec   `yaml:"metavariable-regex"`
}

type regexSpec struct {
	Metavariable string `yaml:"metavariable"`
	Regex        string `yaml:"regex"`
}

// regexList accepts a single metavariable-regex mapping or a list of them.
type regexList []regexSpec

func (l *regexList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var one regexSpec
		if err := value.Decode(&one); err != nil {
			return err
		}
		*l = regexList{one}
		return nil
	}
	var many []regexSpec
	if err := value.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

// LoadFile loads the rules of one YAML file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(data), path)
}

// LoadPaths loads every rule file named by paths. Directories are searched
// recursively for .yaml and .yml files. Duplicate ids across files are
// configuration errors.
func LoadPaths(paths []string) (*Set, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("rule path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ext := filepath.Ext(path); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	out := &Set{}
	seen := map[string]string{}
	for _, file := range files {
		set, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		out.Errors = append(out.Errors, set.Errors...)
		for _, r := range set.Rules {
			if prev, dup := seen[r.ID]; dup {
				out.Errors = append(out.Errors, &ConfigurationError{
					Rule: r.ID, Source: file, Msg: "duplicate rule id, first defined in " + prev,
				})
				continue
			}
			seen[r.ID] = file
			out.Rules = append(out.Rules, r)
		}
	}
	return out, nil
}

// Load parses a rule file. Malformed YAML is returned as an error, an
// invalid rule only lands in Set.Errors.
func Load(r io.Reader, source string) (*Set, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rule file %s: %w", source, err)
	}

	set := &Set{}
	seen := map[string]bool{}
	for i, spec := range file.Rules {
		if spec.ID == "" {
			set.Errors = append(set.Errors, &ConfigurationError{Source: source, Msg: fmt.Sprintf("rule #%d has no id", i+1)})
			continue
		}
		if seen[spec.ID] {
			set.Errors = append(set.Errors, &ConfigurationError{Rule: spec.ID, Source: source, Msg: "duplicate rule id"})
			continue
		}
		seen[spec.ID] = true

		rule, err := compileRule(spec)
		if err != nil {
			var ce *ConfigurationError
			if errors.As(err, &ce) {
				ce.Source = source
			} else {
				err = fmt.Errorf("%s: rule %q: %w", source, spec.ID, err)
			}
			set.Errors = append(set.Errors, err)
			continue
		}
		rule.Source = source
		set.Rules = append(set.Rules, rule)
	}
	return set, nil
}

func compileRule(spec ruleSpec) (*Rule, error) {
	configErr := func(format string, args ...any) error {
		return &ConfigurationError{Rule: spec.ID, Msg: fmt.Sprintf(format, args...)}
	}

	if len(spec.Languages) == 0 {
		return nil, configErr("no languages")
	}
	severity, err := types.ParseSeverity(spec.Severity)
	if err != nil {
		return nil, configErr("%v", err)
	}
	if strings.TrimSpace(spec.Message) == "" {
		return nil, configErr("no message")
	}

	forms := 0
	for _, set := range []bool{spec.Pattern != "", spec.Patterns != nil, spec.PatternEither != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, configErr("exactly one of pattern, patterns or pattern-either is required")
	}

	exprs := make(map[string]*Expr, len(spec.Languages))
	for _, lang := range spec.Languages {
		p, err := frontend.Lookup(lang)
		if err != nil {
			return nil, configErr("%v", err)
		}
		c := &compiler{lang: p.Lang(), rule: spec.ID}

		var x *Expr
		switch {
		case spec.Pattern != "":
			x, err = c.pattern(spec.Pattern)
		case spec.Patterns != nil:
			x, err = c.and(spec.Patterns)
		default:
			x, err = c.or(spec.PatternEither)
		}
		if err != nil {
			return nil, err
		}

		if len(spec.MetavariableRegex) > 0 {
			if x.Kind != ExprAnd {
				x = &Expr{Kind: ExprAnd, Children: []*Expr{x}}
			}
			for _, rs := range spec.MetavariableRegex {
				cons, err := c.regex(rs, x)
				if err != nil {
					return nil, err
				}
				x.Constraints = append(x.Constraints, cons)
			}
		}
		exprs[p.Lang()] = x
	}
	return New(spec.ID, severity, spec.Message, exprs), nil
}

type compiler struct {
	lang string
	rule string
}

func (c *compiler) errorf(format string, args ...any) error {
	return &ConfigurationError{Rule: c.rule, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) pattern(src string) (*Expr, error) {
	p, err := pattern.Compile(c.lang, strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprPattern, Pattern: p}, nil
}

func (c *compiler) and(clauses []clauseSpec) (*Expr, error) {
	x := &Expr{Kind: ExprAnd}
	var regexes []regexSpec
	for _, cl := range clauses {
		if cl.MetavariableRegex != nil {
			if cl.count() != 1 {
				return nil, c.errorf("a patterns item must have exactly one key")
			}
			regexes = append(regexes, *cl.MetavariableRegex)
			continue
		}
		child, err := c.clause(cl)
		if err != nil {
			return nil, err
		}
		x.Children = append(x.Children, child)
	}

	positive := false
	for _, child := range x.Children {
		positive = positive || child.IsPositive()
	}
	if !positive {
		return nil, c.errorf("patterns needs at least one pattern, patterns or pattern-either item")
	}

	for _, rs := range regexes {
		cons, err := c.regex(rs, x)
		if err != nil {
			return nil, err
		}
		x.Constraints = append(x.Constraints, cons)
	}
	return x, nil
}

func (c *compiler) or(clauses []clauseSpec) (*Expr, error) {
	if len(clauses) == 0 {
		return nil, c.errorf("pattern-either needs at least one alternative")
	}
	x := &Expr{Kind: ExprOr}
	for _, cl := range clauses {
		child, err := c.clause(cl)
		if err != nil {
			return nil, err
		}
		if !child.IsPositive() {
			return nil, c.errorf("pattern-either alternatives must be pattern, patterns or pattern-either")
		}
		x.Children = append(x.Children, child)
	}
	return x, nil
}

func (c *compiler) clause(cl clauseSpec) (*Expr, error) {
	if cl.count() != 1 {
		return nil, c.errorf("a patterns item must have exactly one key")
	}
	switch {
	case cl.Pattern != "":
		return c.pattern(cl.Pattern)
	case cl.Patterns != nil:
		return c.and(cl.Patterns)
	case cl.PatternEither != nil:
		return c.or(cl.PatternEither)
	}

	var (
		kind ExprKind
		src  string
	)
	switch {
	case cl.PatternNot != "":
		kind, src = ExprNot, cl.PatternNot
	case cl.PatternInside != "":
		kind, src = ExprInside, cl.PatternInside
	default:
		kind, src = ExprNotInside, cl.PatternNotInside
	}
	inner, err := c.pattern(src)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: kind, Children: []*Expr{inner}}, nil
}

func (c *compiler) regex(rs regexSpec, scope *Expr) (constraint.Constraint, error) {
	if !pattern.IsMetavar(rs.Metavariable) {
		return nil, c.errorf("metavariable-regex: %q is not a metavariable", rs.Metavariable)
	}
	found := false
	for _, name := range scope.Metavars() {
		found = found || name == rs.Metavariable
	}
	if !found {
		return nil, c.errorf("metavariable-regex: %s is not bound by any pattern", rs.Metavariable)
	}
	cons, err := constraint.NewRegex(rs.Metavariable, rs.Regex)
	if err != nil {
		return nil, c.errorf("metavariable-regex: %v", err)
	}
	return cons, nil
}

func (cl clauseSpec) count() int {
	n := 0
	for _, set := range []bool{
		cl.Pattern != "", cl.Patterns != nil, cl.PatternEither != nil,
		cl.PatternNot != "", cl.PatternInside != "", cl.PatternNotInside != "",
		cl.MetavariableRegex != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// FromPattern compiles one pattern of lang into an INFO rule. regexes maps
// metavariables to the regular expression their text must match.
func FromPattern(id, lang, src string, regexes map[string]string) (*Rule, error) {
	spec := ruleSpec{
		ID:        id,
		Languages: []string{lang},
		Severity:  types.SeverityInfo.String(),
		Message:   "pattern matched",
		Pattern:   src,
	}
	names := make([]string, 0, len(regexes))
	for name := range regexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec.MetavariableRegex = append(spec.MetavariableRegex, regexSpec{Metavariable: name, Regex: regexes[name]})
	}
	return compileRule(spec)
}

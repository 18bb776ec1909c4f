package evaluator

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/patlint/internal/frontend/java"
	"github.com/gnolang/patlint/internal/match"
	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/stats"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// method wraps statements into a class. The first statement is on line 3.
func method(body string) string {
	return "class T {\n void f() {\n" + body + "\n }\n}\n"
}

func parse(t *testing.T, src string) *tree.File {
	t.Helper()
	f, err := java.New().Parse("T.java", []byte(src))
	require.NoError(t, err)
	return f
}

func loadRules(t *testing.T, yaml string) []*rule.Rule {
	t.Helper()
	set, err := rule.Load(strings.NewReader(yaml), "test.yaml")
	require.NoError(t, err)
	require.Empty(t, set.Errors)
	return set.Rules
}

// javaRule builds a single java rule from the body of its pattern keys.
func javaRule(body string) string {
	return "rules:\n  - id: r\n    languages: [java]\n    severity: ERROR\n    message: found\n" + body
}

func lines(fs []types.Finding) []int {
	out := make([]int, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Span.Start.Line)
	}
	return out
}

func evaluate(t *testing.T, opts Options, rules []*rule.Rule, src string) types.FileResult {
	t.Helper()
	res, err := New(opts).Evaluate(context.Background(), rules, parse(t, src))
	require.NoError(t, err)
	return res
}

func TestRuleFixtures(t *testing.T) {
	t.Parallel()

	const nPlusOne = `    patterns:
      - pattern: |
          for ($E : $LIST) { ...; $REPO.$METHOD(...); ... }
      - metavariable-regex:
          metavariable: $REPO
          regex: .*Repository
`
	const removeIterated = `    pattern: |
      for ($ITEM : $COLL) { ...; $COLL.remove(...); ... }
`
	tests := []struct {
		name     string
		rule     string
		src      string
		want     []int
		metavars map[string]string
	}{
		{
			name: "empty catch",
			rule: "    pattern: catch (...) { }\n",
			src:  method("try {\n  risky();\n} catch (Exception e) {\n  // ignored\n}"),
			want: []int{5},
		},
		{
			name: "handled catch",
			rule: "    pattern: catch (...) { }\n",
			src:  method("try {\n  risky();\n} catch (Exception e) {\n  log(e);\n}"),
			want: []int{},
		},
		{
			name:     "repository call in loop",
			rule:     nPlusOne,
			src:      method("for (User u : users) {\n  orderRepository.findByUserId(id);\n}"),
			want:     []int{3},
			metavars: map[string]string{"$E": "u", "$LIST": "users", "$REPO": "orderRepository", "$METHOD": "findByUserId"},
		},
		{
			name: "helper call in loop",
			rule: nPlusOne,
			src:  method("for (User u : users) {\n  helper.doWork();\n}"),
			want: []int{},
		},
		{
			name:     "repository call after helper call in loop",
			rule:     nPlusOne,
			src:      method("for (User u : users) {\n  helper.doWork();\n  orderRepository.findByUserId(id);\n}"),
			want:     []int{3},
			metavars: map[string]string{"$E": "u", "$LIST": "users", "$REPO": "orderRepository", "$METHOD": "findByUserId"},
		},
		{
			name:     "remove from iterated collection",
			rule:     removeIterated,
			src:      method("for (String item : items) {\n  items.remove(item);\n}"),
			want:     []int{3},
			metavars: map[string]string{"$ITEM": "item", "$COLL": "items"},
		},
		{
			name: "remove from other collection",
			rule: removeIterated,
			src:  method("for (String item : items) {\n  toRemove.remove(item);\n}"),
			want: []int{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := evaluate(t, Options{}, loadRules(t, javaRule(tt.rule)), tt.src)
			assert.Empty(t, res.Errors)
			assert.Equal(t, tt.want, lines(res.Findings))
			if tt.metavars != nil {
				require.Len(t, res.Findings, 1)
				assert.Equal(t, tt.metavars, res.Findings[0].Metavars)
			}
		})
	}
}

func TestPathologicalPatternTimesOut(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a();\n", 300)
	src := "class T {\n void f() {\n" + long + " }\n void g() {\n x();\n stop();\n }\n}\n"
	rules := loadRules(t, javaRule("    pattern: '{ ...; ...; stop(); }'\n")+
		"  - id: other\n    languages: [java]\n    severity: INFO\n    message: x\n    pattern: x()\n")

	res := evaluate(t, Options{Match: match.Options{StepBudget: 1000}}, rules, src)
	require.Len(t, res.Timeouts, 1)
	assert.Equal(t, "r", res.Timeouts[0].Rule)
	assert.Equal(t, 2, res.Timeouts[0].Span.Start.Line)

	// The timed out anchor is skipped, the next anchor and the other rule
	// still report.
	var got []string
	for _, f := range res.Findings {
		got = append(got, f.Rule)
	}
	assert.Equal(t, []string{"r", "other"}, got)
}

func TestCombinators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule string
		src  string
		want []int
	}{
		{
			name: "pattern-not removes same span",
			rule: "    patterns:\n      - pattern: $X.remove($Y)\n      - pattern-not: $X.remove(0)\n",
			src:  method("a.remove(b);\na.remove(0);"),
			want: []int{3},
		},
		{
			name: "pattern-not respects bindings",
			rule: "    patterns:\n      - pattern: $X.add($Y)\n      - pattern-not: $X.add($X)\n",
			src:  method("a.add(a);\na.add(b);"),
			want: []int{4},
		},
		{
			name: "pattern-either unions",
			rule: "    pattern-either:\n      - pattern: foo()\n      - pattern: bar()\n",
			src:  method("foo();\nbaz();\nbar();"),
			want: []int{3, 5},
		},
		{
			name: "overlapping alternatives report once",
			rule: "    pattern-either:\n      - pattern: $F()\n      - pattern: foo()\n",
			src:  method("foo();"),
			want: []int{3},
		},
		{
			name: "positive clauses share the anchor",
			rule: "    patterns:\n      - pattern: $X.remove($Y)\n      - pattern: items.remove($Y)\n",
			src:  method("items.remove(a);\nother.remove(b);"),
			want: []int{3},
		},
		{
			name: "pattern-inside",
			rule: "    patterns:\n      - pattern-inside: |\n          while ($C) { ... }\n      - pattern: $X.close()\n",
			src:  method("r.close();\nwhile (more) {\n  s.close();\n}"),
			want: []int{5},
		},
		{
			name: "pattern-not-inside",
			rule: "    patterns:\n      - pattern: $X.close()\n      - pattern-not-inside: |\n          while ($C) { ... }\n",
			src:  method("r.close();\nwhile (more) {\n  s.close();\n}"),
			want: []int{3},
		},
		{
			name: "pattern-inside binds consistently",
			rule: "    patterns:\n      - pattern-inside: |\n          for ($T $X : $C) { ... }\n      - pattern-either:\n          - pattern: $C.remove(...)\n          - pattern: $C.add(...)\n",
			src:  method("for (String s : items) {\n  items.add(s);\n  other.add(s);\n}"),
			want: []int{4},
		},
		{
			name: "nested patterns inside either",
			rule: "    pattern-either:\n      - patterns:\n          - pattern: $X.get($Y)\n          - pattern-not: cache.get($Y)\n      - pattern: fetch()\n",
			src:  method("cache.get(k);\nmap.get(k);\nfetch();"),
			want: []int{4, 5},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := evaluate(t, Options{}, loadRules(t, javaRule(tt.rule)), tt.src)
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Timeouts)
			assert.Equal(t, tt.want, lines(res.Findings))
		})
	}
}

func TestInsideMergesBindings(t *testing.T) {
	t.Parallel()

	rules := loadRules(t, `rules:
  - id: modified
    languages: [java]
    severity: ERROR
    message: $C is modified while iterating over it with $X
    patterns:
      - pattern-inside: |
          for ($T $X : $C) { ... }
      - pattern: $C.remove(...)
`)
	res := evaluate(t, Options{}, rules, method("for (String s : items) {\n  for (int i : nums) {\n    items.remove(s);\n  }\n}"))
	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "items is modified while iterating over it with s", f.Message)
	assert.Equal(t, "String", f.Metavars["$T"])
	assert.Equal(t, types.SeverityError, f.Severity)
}

func TestModes(t *testing.T) {
	t.Parallel()

	rules := loadRules(t, javaRule(`    patterns:
      - pattern: |
          for ($E : $LIST) { ...; $REPO.$METHOD(...); ... }
      - metavariable-regex:
          metavariable: $REPO
          regex: .*Repository
`))
	src := method("for (User u : users) {\n  helper.doWork();\n  orderRepository.findByUserId(id);\n}")

	// The first environment binds $REPO to helper. The regex rejects it and
	// the search moves on to the next environment of the same loop.
	for _, mode := range []match.Mode{match.FirstMatch, match.AllMatches} {
		res := evaluate(t, Options{Match: match.Options{Mode: mode}}, rules, src)
		require.Len(t, res.Findings, 1, mode.String())
		assert.Equal(t, "orderRepository", res.Findings[0].Metavars["$REPO"], mode.String())
	}

	src = method("for (User u : users) {\n  helper.doWork();\n  cache.clear();\n}")
	res := evaluate(t, Options{}, rules, src)
	assert.Empty(t, res.Findings)
}

func TestFixture(t *testing.T) {
	t.Parallel()

	src, err := os.ReadFile("testdata/FocusedTest.java")
	require.NoError(t, err)
	f, err := java.New().Parse("testdata/FocusedTest.java", src)
	require.NoError(t, err)
	set, err := rule.LoadFile("testdata/rules.yaml")
	require.NoError(t, err)
	require.Empty(t, set.Errors)

	st := stats.New()
	res, err := New(Options{Workers: 2, Stats: st}).Evaluate(context.Background(), set.Rules, f)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Timeouts)

	byRule := map[string][]int{}
	for _, finding := range res.Findings {
		byRule[finding.Rule] = append(byRule[finding.Rule], finding.Span.Start.Line)
	}
	want := map[string][]int{
		"empty-catch-block":                    {24, 32, 40},
		"n-plus-one-repository-call":           {61, 77, 78},
		"collection-modified-during-iteration": {106, 115, 124, 133, 142, 145},
	}
	if diff := cmp.Diff(want, byRule); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	rules := loadRules(t, javaRule("    pattern: $X.remove($Y)\n"))
	f := parse(t, method("a.remove(b);\nc.remove(d);"))
	e := New(Options{})

	first, err := e.Evaluate(context.Background(), rules, f)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), rules, f)
	require.NoError(t, err)
	assert.Len(t, first.Findings, 2)
	assert.Equal(t, first, second)
}

func TestSkipsOtherLanguages(t *testing.T) {
	t.Parallel()

	rules := loadRules(t, "rules:\n  - id: g\n    languages: [go]\n    severity: ERROR\n    message: m\n    pattern: foo()\n")
	res := evaluate(t, Options{}, rules, method("foo();"))
	assert.Empty(t, res.Findings)
	assert.Equal(t, "T.java", res.Path)
}

func TestEvaluateHonoursContext(t *testing.T) {
	t.Parallel()

	rules := loadRules(t, javaRule("    pattern: foo()\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Evaluate(ctx, rules, parse(t, method("foo();")))
	assert.ErrorIs(t, err, context.Canceled)
}

package match

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/patlint/internal/frontend/java"
	"github.com/gnolang/patlint/internal/pattern"
	"github.com/gnolang/patlint/internal/tree"
)

func parseJava(t *testing.T, src string) (*tree.File, *Index) {
	t.Helper()
	f, err := java.New().Parse("T.java", []byte(src))
	require.NoError(t, err)
	return f, NewIndex(f.Root)
}

// method wraps statements into a compilable class. The first statement is
// on line 3.
func method(body string) string {
	return "class T {\n void f() {\n" + body + "\n }\n}\n"
}

func search(t *testing.T, mode Mode, pat, src string) (*tree.File, Result) {
	t.Helper()
	f, idx := parseJava(t, src)
	res, err := New(Options{Mode: mode}).Search(context.Background(), pattern.MustCompile("java", pat), idx)
	require.NoError(t, err)
	return f, res
}

func texts(f *tree.File, res Result) []map[string]string {
	var out []map[string]string
	for _, m := range res.Matches {
		out = append(out, m.Bindings.Texts(f))
	}
	return out
}

func TestExactMatchSucceedsOnce(t *testing.T) {
	t.Parallel()
	for _, mode := range []Mode{FirstMatch, AllMatches} {
		_, res := search(t, mode, `foo(1, "a", x.y)`, method(`foo(1, "a", x.y);`))
		require.Len(t, res.Matches, 1, mode)
		assert.Empty(t, res.Matches[0].Bindings)
		assert.Empty(t, res.Timeouts)
	}
}

func TestMetavariableBinding(t *testing.T) {
	t.Parallel()
	f, res := search(t, FirstMatch, "$X.remove($Y)", method("items.remove(item);\nother.add(item);"))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, map[string]string{"$X": "items", "$Y": "item"}, res.Matches[0].Bindings.Texts(f))
	assert.Equal(t, 3, res.Matches[0].Span.Start.Line)
}

func TestConsistency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		call string
		want bool
	}{
		{"g(a, a)", true},
		{"g(a, b)", false},
		{"g(a.b, a.b)", true},
		{"g(a.b, a.c)", false},
		{"g(h(1), h(1))", true},
		{"g(h(1), h(2))", false},
		{"g(1, 1)", true},
		{`g("x", "y")`, false},
		{"g(a, (a))", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.call, func(t *testing.T) {
			t.Parallel()
			for _, mode := range []Mode{FirstMatch, AllMatches} {
				_, res := search(t, mode, "g($X, $X)", method(tt.call+";"))
				assert.Equal(t, tt.want, len(res.Matches) == 1, mode)
			}
		})
	}
}

func TestEllipsisInArguments(t *testing.T) {
	t.Parallel()
	src := method("f(1, 2, 3);")

	f, res := search(t, FirstMatch, "f(..., $X)", src)
	assert.Equal(t, []map[string]string{{"$X": "3"}}, texts(f, res))

	f, res = search(t, AllMatches, "f(..., $X, ...)", src)
	assert.Equal(t, []map[string]string{{"$X": "1"}, {"$X": "2"}, {"$X": "3"}}, texts(f, res))

	f, res = search(t, FirstMatch, "f(..., $X, ...)", src)
	assert.Equal(t, []map[string]string{{"$X": "1"}}, texts(f, res))

	_, res = search(t, FirstMatch, "f(...)", method("f();"))
	assert.Len(t, res.Matches, 1)

	_, res = search(t, FirstMatch, "f(1, ..., 2, 3, 4)", src)
	assert.Empty(t, res.Matches)
}

func TestEllipsisShortestGapFirst(t *testing.T) {
	t.Parallel()
	src := method("a();\nx();\nb();\ny();\nb();")

	_, res := search(t, FirstMatch, "a(); ...; b();", src)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 3, res.Matches[0].Span.Start.Line)
	assert.Equal(t, 5, res.Matches[0].Span.End.Line)

	_, res = search(t, AllMatches, "a(); ...; b();", src)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, 5, res.Matches[0].Span.End.Line)
	assert.Equal(t, 7, res.Matches[1].Span.End.Line)

	_, res = search(t, FirstMatch, "a(); b();", src)
	assert.Empty(t, res.Matches, "statements without ellipsis must be adjacent")

	_, res = search(t, FirstMatch, "b(); y();", src)
	assert.Len(t, res.Matches, 1)
}

func TestSequenceWithoutEllipsisNeedsEqualLength(t *testing.T) {
	t.Parallel()
	_, res := search(t, FirstMatch, "for ($E : $L) { a(); }", method("for (X e : l) { a(); b(); }"))
	assert.Empty(t, res.Matches)

	_, res = search(t, FirstMatch, "for ($E : $L) { a(); ... }", method("for (X e : l) { a(); b(); }"))
	assert.Len(t, res.Matches, 1)
}

func TestEmptyCatchBlock(t *testing.T) {
	t.Parallel()
	const pat = "catch (...) { }"

	empty := method("try {\n  risky();\n} catch (Exception e) {\n  // ignored\n}")
	f, res := search(t, FirstMatch, pat, empty)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, tree.KindCatch, res.Matches[0].Node.Kind)
	assert.Equal(t, 5, res.Matches[0].Span.Start.Line)
	assert.True(t, strings.HasPrefix(f.TextOf(res.Matches[0].Span), "catch (Exception e)"))

	handled := method("try {\n  risky();\n} catch (Exception e) {\n  log(e);\n}")
	_, res = search(t, FirstMatch, pat, handled)
	assert.Empty(t, res.Matches)
}

func TestRemoveFromIteratedCollection(t *testing.T) {
	t.Parallel()
	const pat = "for ($ITEM : $COLL) { ...; $COLL.remove(...); ... }"

	same := method("for (String item : items) {\n  log(item);\n  items.remove(item);\n}")
	f, res := search(t, FirstMatch, pat, same)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, map[string]string{"$ITEM": "item", "$COLL": "items"}, res.Matches[0].Bindings.Texts(f))

	other := method("for (String item : items) {\n  toRemove.remove(item);\n}")
	_, res = search(t, FirstMatch, pat, other)
	assert.Empty(t, res.Matches)
}

func TestStepBudget(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a();\n", 300)
	src := "class T {\n void f() {\n" + long + " }\n void g() {\n x();\n stop();\n }\n}\n"
	_, idx := parseJava(t, src)
	p := pattern.MustCompile("java", "{ ...; ...; stop(); }")

	res, err := New(Options{StepBudget: 1000}).Search(context.Background(), p, idx)
	require.NoError(t, err)
	require.Len(t, res.Timeouts, 1)
	assert.Equal(t, 2, res.Timeouts[0].Start.Line)
	require.Len(t, res.Matches, 1, "the search continues with the next anchor")
	assert.Equal(t, 2+300+2, res.Matches[0].Span.Start.Line)

	res, err = New(Options{StepBudget: 10_000_000}).Search(context.Background(), p, idx)
	require.NoError(t, err)
	assert.Empty(t, res.Timeouts)
	assert.Len(t, res.Matches, 1)
}

func TestSearchIsIdempotent(t *testing.T) {
	t.Parallel()
	src := method("for (A a : as) { as.remove(a); }\nfor (B b : bs) { bs.remove(b); }")
	_, idx := parseJava(t, src)
	p := pattern.MustCompile("java", "for ($ITEM : $COLL) { ...; $COLL.remove(...); ... }")
	m := New(Options{Mode: AllMatches})

	first, err := m.Search(context.Background(), p, idx)
	require.NoError(t, err)
	second, err := m.Search(context.Background(), p, idx)
	require.NoError(t, err)
	assert.Len(t, first.Matches, 2)
	assert.Equal(t, first, second)
}

func TestMatchSpanUsesSeed(t *testing.T) {
	t.Parallel()
	f, idx := parseJava(t, method("items.remove(x);"))
	var call *tree.Node
	tree.Walk(f.Root, func(n *tree.Node) bool {
		if n.Kind == tree.KindCall {
			call = n
		}
		return call == nil
	})
	require.NotNil(t, call)
	var items *tree.Node
	tree.Walk(f.Root, func(n *tree.Node) bool {
		if n.Kind == tree.KindIdent && n.Text == "items" {
			items = n
		}
		return true
	})

	p := pattern.MustCompile("java", "$C.remove($V)")
	m := New(Options{})

	res, err := m.MatchSpan(context.Background(), p, idx, call.Span, Bindings{"$C": items})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "x", f.NodeText(res.Matches[0].Bindings["$V"]))

	other := &tree.Node{Kind: tree.KindIdent, Text: "others"}
	res, err = m.MatchSpan(context.Background(), p, idx, call.Span, Bindings{"$C": other})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestSearchHonoursContext(t *testing.T) {
	t.Parallel()
	_, idx := parseJava(t, method("a();"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Search(ctx, pattern.MustCompile("java", "a()"), idx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvIsPersistent(t *testing.T) {
	t.Parallel()
	a := &tree.Node{Kind: tree.KindIdent, Text: "a"}
	b := &tree.Node{Kind: tree.KindIdent, Text: "b"}

	var empty *Env
	one, ok := empty.Bind("$X", a)
	require.True(t, ok)
	two, ok := one.Bind("$Y", b)
	require.True(t, ok)

	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 1, one.Len())
	assert.Equal(t, 2, two.Len())
	_, found := one.Lookup("$Y")
	assert.False(t, found)

	_, ok = two.Bind("$X", &tree.Node{Kind: tree.KindIdent, Text: "a"})
	assert.True(t, ok, "structurally equal rebinding")
	_, ok = two.Bind("$X", b)
	assert.False(t, ok)

	bs := two.Bindings()
	assert.Equal(t, []string{"$X", "$Y"}, bs.Names())
	assert.True(t, bs.Consistent(Bindings{"$X": a, "$Z": b}))
	assert.False(t, bs.Consistent(Bindings{"$Y": a}))
	assert.Len(t, bs.Merge(Bindings{"$Z": a}), 3)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	m, ok := ParseMode("all")
	assert.True(t, ok)
	assert.Equal(t, AllMatches, m)
	m, ok = ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, FirstMatch, m)
	_, ok = ParseMode("some")
	assert.False(t, ok)
}

func TestFilteredSkipsRejectedEnvironments(t *testing.T) {
	t.Parallel()
	f, idx := parseJava(t, method("for (X e : l) { helper.run(); repo.find(); other.go(); }"))
	p := pattern.MustCompile("java", "for ($E : $L) { ...; $R.$M(); ... }")

	base := New(Options{})
	notHelper := func(b Bindings) bool {
		n, ok := b["$R"]
		return !ok || f.NodeText(n) != "helper"
	}
	notRepo := func(b Bindings) bool {
		n, ok := b["$R"]
		return !ok || f.NodeText(n) != "repo"
	}

	tests := []struct {
		name string
		m    *Matcher
		want string
	}{
		{"unfiltered", base, "helper"},
		{"one filter", base.Filtered(notHelper), "repo"},
		{"stacked filters", base.Filtered(notHelper).Filtered(notRepo), "other"},
	}
	for _, tt := range tests {
		res, err := tt.m.Search(context.Background(), p, idx)
		require.NoError(t, err)
		require.Len(t, res.Matches, 1, tt.name)
		assert.Equal(t, tt.want, res.Matches[0].Bindings.Texts(f)["$R"], tt.name)
	}

	res, err := base.Filtered(func(Bindings) bool { return false }).Search(context.Background(), p, idx)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 1, res.Anchors)
}

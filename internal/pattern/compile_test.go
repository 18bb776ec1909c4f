package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

func TestCompile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		lang    string
		snippet string
		want    string
	}{
		{
			name:    "empty catch",
			lang:    "java",
			snippet: "catch (...) { }",
			want:    "(Catch (Params ...) Block)",
		},
		{
			name:    "repository call in loop",
			lang:    "java",
			snippet: "for ($E : $LIST) { ...; $REPO.$METHOD(...); ... }",
			want:    "(ForEach (Param ... $E) $LIST (Block ... (ExprStmt (Call (Selector $REPO $METHOD) (Args ...))) ...))",
		},
		{
			name:    "omitted modifiers",
			lang:    "java",
			snippet: "$T $V = $E;",
			want:    "(VarDecl _:Modifiers $T (Declarator $V $E))",
		},
		{
			name:    "any string literal",
			lang:    "java",
			snippet: `log("...")`,
			want:    `(Call Ident("log") (Args _:Literal))`,
		},
		{
			name:    "anonymous wildcard",
			lang:    "java",
			snippet: "$_.close()",
			want:    `(Call (Selector _ Ident("close")) Args)`,
		},
		{
			name:    "go pattern",
			lang:    "go",
			snippet: "defer $X.Close()",
			want:    `(Defer (Call (Selector $X Ident("Close")) Args))`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Compile(tt.lang, tt.snippet)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.snippet, p.Source)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		lang    string
		snippet string
	}{
		{"ellipsis as condition", "java", "if (...) { }"},
		{"ellipsis as operand", "java", "a + ..."},
		{"ellipsis alone", "java", "..."},
		{"syntax error", "java", "for ($X : ) {"},
		{"unknown language", "cobol", "MOVE A TO B"},
		{"go ellipsis as operand", "go", "x := ... + 1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(tt.lang, tt.snippet)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrCompile))

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.snippet, ce.Source)
		})
	}
}

func TestPatternInfo(t *testing.T) {
	t.Parallel()
	p := MustCompile("java", "for ($E : $LIST) { ...; $REPO.$METHOD(...); ... }")
	assert.Equal(t, []string{"$E", "$LIST", "$METHOD", "$REPO"}, p.Metavars())

	kind, ok := p.RootKind()
	assert.True(t, ok)
	assert.Equal(t, tree.KindForEach, kind)
	assert.False(t, p.IsSequence())

	seq := MustCompile("java", "$X = 1; $Y = 2;")
	assert.True(t, seq.IsSequence())

	bare := MustCompile("java", "$X")
	_, ok = bare.RootKind()
	assert.False(t, ok)
}

func TestIsMetavar(t *testing.T) {
	t.Parallel()
	for s, want := range map[string]bool{
		"$X":      true,
		"$COLL_2": true,
		"$_":      true,
		"$x":      false,
		"X":       false,
		"$2X":     false,
		"$X.y":    false,
	} {
		assert.Equal(t, want, IsMetavar(s), s)
	}
}

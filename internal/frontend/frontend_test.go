package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()
	p, err := Lookup("Java")
	require.NoError(t, err)
	assert.Equal(t, "java", p.Lang())

	_, err = Lookup("cobol")
	assert.Error(t, err)

	assert.Equal(t, []string{"go", "java"}, Languages())
	assert.Equal(t, []string{".go", ".java"}, Extensions())
}

func TestForPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		lang string
		ok   bool
	}{
		{"src/Main.java", "java", true},
		{"cmd/main.go", "go", true},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		p, ok := ForPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if ok {
			assert.Equal(t, tt.lang, p.Lang())
		}
	}
}

package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var javaSource = NewSourceCode([]byte(`class T {
    void f() {
        try { g(); } catch (Exception e) {}
    }
}
`))

func span(startLine, startCol, endLine, endCol int) tree.Span {
	return tree.Span{
		Start: tree.Pos{Line: startLine, Column: startCol},
		End:   tree.Pos{Line: endLine, Column: endCol},
	}
}

func TestGenerateFormattedIssue(t *testing.T) {
	t.Parallel()

	findings := []types.Finding{
		{
			Rule:     "empty-catch-block",
			Path:     "T.java",
			Severity: types.SeverityWarning,
			Message:  "empty catch",
			Span:     span(3, 22, 3, 44),
			Metavars: map[string]string{"$V": "e", "$E": "Exception"},
		},
		{
			Rule:     "long-method",
			Path:     "T.java",
			Severity: types.SeverityError,
			Message:  "method f",
			Span:     span(2, 5, 4, 6),
		},
	}

	expected := `warning: empty-catch-block
 --> T.java:3:22
  |
3 | try { g(); } catch (Exception e) {}
  |              ~~~~~~~~~~~~~~~~~~~~~~
  = empty catch
  = bound: $E=Exception, $V=e

error: long-method
 --> T.java:2:5
  |
2 | void f() {
3 |     try { g(); } catch (Exception e) {}
4 | }
  | ^
  = method f

`
	assert.Equal(t, expected, GenerateFormattedIssue(findings, javaSource))
}

func TestGenerateFormattedIssueTruncatesLongSpans(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&src, "line%d\n", i)
	}
	finding := types.Finding{Rule: "r", Path: "a.go", Severity: types.SeverityInfo, Message: "m", Span: span(2, 1, 11, 7)}

	expected := `info: r
 --> a.go:2:1
  |
2 | line2
3 | line3
4 | line4
5 | line5
6 | line6
  | ...
  | ^
  = m

`
	assert.Equal(t, expected, GenerateFormattedIssue([]types.Finding{finding}, NewSourceCode(src.Bytes())))
}

func TestGenerateFormattedIssueWithTabs(t *testing.T) {
	t.Parallel()

	code := NewSourceCode([]byte("func f() {\n\tx := 1\n}\n"))
	finding := types.Finding{Rule: "r", Path: "a.go", Severity: types.SeverityError, Message: "m", Span: span(2, 2, 2, 8)}

	expected := `error: r
 --> a.go:2:2
  |
2 | x := 1
  | ~~~~~~
  = m

`
	assert.Equal(t, expected, GenerateFormattedIssue([]types.Finding{finding}, code))
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	findings := []types.Finding{
		{Rule: "a", Path: "T.java", Severity: types.SeverityWarning, Message: "m", Span: span(3, 9, 3, 13)},
	}
	timeouts := []types.Timeout{{Rule: "slow", Path: "T.java", Span: span(2, 5, 4, 6)}}
	errs := []error{&rule.ConfigurationError{Rule: "bad", Msg: "no message"}}

	var buf bytes.Buffer
	err := WriteText(&buf, findings, timeouts, errs, func(string) (*SourceCode, error) { return javaSource, nil })
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "warning: a\n --> T.java:3:9\n")
	assert.Contains(t, out, "  | ~~~~\n")
	assert.Contains(t, out, "timeout: slow gave up at T.java:2:5\n")
	assert.Contains(t, out, `ConfigurationError: rule "bad": no message`)

	buf.Reset()
	err = WriteText(&buf, findings, nil, nil, func(string) (*SourceCode, error) { return nil, errors.New("gone") })
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "= m\n")
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	findings := []types.Finding{{
		Rule:     "n-plus-one-repository-call",
		Path:     "src/A.java",
		Severity: types.SeverityError,
		Message:  "orderRepository.findByUserId called in a loop",
		Span:     tree.Span{Start: tree.Pos{Offset: 120, Line: 7, Column: 9}, End: tree.Pos{Offset: 150, Line: 7, Column: 39}},
		Metavars: map[string]string{"$REPO": "orderRepository"},
	}}
	timeouts := []types.Timeout{{Rule: "slow", Path: "src/B.java", Span: span(2, 1, 9, 2)}}
	errs := []error{&types.ParseError{Path: "src/C.java", Err: errors.New("src/C.java: 3:4: expected ;")}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, findings, timeouts, errs))

	var report Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Results, 1)
	r := report.Results[0]
	assert.Equal(t, "n-plus-one-repository-call", r.CheckID)
	assert.Equal(t, Position{Line: 7, Col: 9, Offset: 120}, r.Start)
	assert.Equal(t, "ERROR", r.Extra.Severity)
	assert.Equal(t, "orderRepository", r.Extra.Metavars["$REPO"])

	require.Len(t, report.Errors, 2)
	assert.Equal(t, "MatchTimeout", report.Errors[0].Type)
	assert.Equal(t, "slow", report.Errors[0].Rule)
	assert.Equal(t, 2, report.Errors[0].Start.Line)
	assert.Equal(t, "ParseError", report.Errors[1].Type)
	assert.Equal(t, "src/C.java", report.Errors[1].Path)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil, nil, nil))
	assert.JSONEq(t, `{"results": [], "errors": []}`, buf.String())
}

func TestSummary(t *testing.T) {
	t.Parallel()

	findings := []types.Finding{
		{Severity: types.SeverityError},
		{Severity: types.SeverityWarning},
		{Severity: types.SeverityWarning},
	}
	assert.Equal(t, "3 findings (1 error, 2 warning, 0 info) in 4 files", Summary(findings, 4))
}

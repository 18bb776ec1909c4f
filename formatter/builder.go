package formatter

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/patlint/internal/types"
)

const (
	tabWidth = 8

	// maxSnippetLines caps the source lines shown for a multi-line finding.
	maxSnippetLines = 5
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	infoStyle    = color.New(color.FgHiBlue, color.Bold)
	ruleStyle    = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	noteStyle    = color.New(color.FgGreen, color.Bold)
)

// SourceCode stores the lines of a source file.
type SourceCode struct {
	Lines []string
}

func NewSourceCode(content []byte) *SourceCode {
	return &SourceCode{Lines: strings.Split(string(content), "\n")}
}

// ReadSourceCode reads a file and splits it into lines.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

var issueTmpl = template.Must(template.New("issue").Funcs(template.FuncMap{
	"header":              header,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
	"metavars":            metavars,
}).Parse(issueTemplate))

// GenerateFormattedIssue renders findings of one file against its source.
func GenerateFormattedIssue(findings []types.Finding, snippet *SourceCode) string {
	var builder strings.Builder
	for _, f := range findings {
		builder.WriteString(buildIssue(f, snippet))
	}
	return builder.String()
}

/***** Issue Formatter Builder *****/

type IssueData struct {
	Severity        string
	Rule            string
	Filename        string
	Padding         string
	StartLine       int
	StartColumn     int
	EndLine         int
	EndColumn       int
	LastLine        int
	MaxLineNumWidth int
	Message         string
	Metavars        map[string]string
	SnippetLines    []string
	CommonIndent    string
}

func buildIssue(f types.Finding, snippet *SourceCode) string {
	startLine := f.Span.Start.Line
	endLine := f.Span.End.Line
	lastLine := endLine
	if lastLine-startLine+1 > maxSnippetLines {
		lastLine = startLine + maxSnippetLines - 1
	}
	maxLineNumWidth := calculateMaxLineNumWidth(lastLine)
	padding := strings.Repeat(" ", maxLineNumWidth+1)

	var commonIndent string
	if isValidLineRange(startLine, lastLine, snippet.Lines) {
		commonIndent = findCommonIndent(snippet.Lines[startLine-1 : lastLine])
	}

	data := IssueData{
		Severity:        f.Severity.String(),
		Rule:            f.Rule,
		Filename:        f.Path,
		StartLine:       startLine,
		StartColumn:     f.Span.Start.Column,
		EndLine:         endLine,
		EndColumn:       f.Span.End.Column,
		LastLine:        lastLine,
		Message:         f.Message,
		Metavars:        f.Metavars,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         padding,
		CommonIndent:    commonIndent,
		SnippetLines:    snippet.Lines,
	}

	var buf bytes.Buffer
	if err := issueTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting finding: %v", err)
	}
	return buf.String()
}

// utils functions used in the text template

func header(rule string, severity string, maxLineNumWidth int, filename string, startLine int, startColumn int) string {
	var endString string
	switch severity {
	case "ERROR":
		endString = errorStyle.Sprint("error: ")
	case "WARNING":
		endString = warningStyle.Sprint("warning: ")
	default:
		endString = infoStyle.Sprint("info: ")
	}

	endString += ruleStyle.Sprintf("%s\n", rule)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	endString += fileStyle.Sprintf("%s:%d:%d\n", filename, startLine, startColumn)

	return endString
}

func codeSnippet(snippetLines []string, startLine, endLine, lastLine, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|\n", padding)

	for i := startLine; i <= lastLine; i++ {
		if i-1 < 0 || i-1 >= len(snippetLines) {
			continue
		}
		line := strings.TrimPrefix(snippetLines[i-1], commonIndent)
		lineNum := fmt.Sprintf("%*d", maxLineNumWidth, i)
		endString += lineStyle.Sprintf("%s | ", lineNum) + line + "\n"
	}
	if lastLine < endLine {
		endString += lineStyle.Sprintf("%s| ...\n", padding)
	}

	return endString
}

// underlineAndMessage marks the finding under the snippet. A single line
// finding is underlined, a multi-line one gets a caret at its start.
func underlineAndMessage(message string, padding string, startLine, endLine, startColumn, endColumn int, snippetLines []string, commonIndent string) string {
	endString := lineStyle.Sprintf("%s| ", padding)

	if !isValidLineRange(startLine, startLine, snippetLines) {
		endString += "\n" + lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", message)
		return endString
	}

	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)
	underlineStart := calculateVisualColumn(snippetLines[startLine-1], startColumn) - commonIndentWidth
	if underlineStart < 0 {
		underlineStart = 0
	}

	marker := "^"
	if startLine == endLine {
		underlineEnd := calculateVisualColumn(snippetLines[startLine-1], endColumn) - commonIndentWidth
		if n := underlineEnd - underlineStart; n > 0 {
			marker = strings.Repeat("~", n)
		}
	}

	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", marker)

	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", message)

	return endString
}

func metavars(bound map[string]string, padding string) string {
	if len(bound) == 0 {
		return ""
	}
	names := make([]string, 0, len(bound))
	for name := range bound {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + bound[name]
	}
	return lineStyle.Sprintf("%s= ", padding) + noteStyle.Sprint("bound: ") + strings.Join(parts, ", ") + "\n"
}

func isValidLineRange(startLine int, endLine int, snippetLines []string) bool {
	return startLine > 0 &&
		endLine > 0 &&
		startLine <= endLine &&
		startLine <= len(snippetLines) &&
		endLine <= len(snippetLines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(fmt.Sprintf("%d", endLine))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	var firstIndent []rune
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}
	if len(firstIndent) == 0 {
		return ""
	}

	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		firstIndent = commonPrefix(firstIndent, []rune(line[:len(line)-len(trimmed)]))
		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}

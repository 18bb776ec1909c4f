package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/patlint/internal/types"
)

// WriteText renders findings grouped by file, followed by timeouts and
// errors. read supplies the source of a file, findings of files it fails
// on are printed without a snippet.
func WriteText(w io.Writer, findings []types.Finding, timeouts []types.Timeout, errs []error, read func(path string) (*SourceCode, error)) error {
	var builder strings.Builder

	for start := 0; start < len(findings); {
		end := start
		for end < len(findings) && findings[end].Path == findings[start].Path {
			end++
		}
		source, err := read(findings[start].Path)
		if err != nil {
			source = &SourceCode{}
		}
		builder.WriteString(GenerateFormattedIssue(findings[start:end], source))
		start = end
	}

	for _, t := range timeouts {
		builder.WriteString(warningStyle.Sprint("timeout: "))
		builder.WriteString(ruleStyle.Sprint(t.Rule))
		builder.WriteString(fmt.Sprintf(" gave up at %s:%d:%d\n", t.Path, t.Span.Start.Line, t.Span.Start.Column))
	}
	for _, err := range errs {
		builder.WriteString(errorStyle.Sprintf("%s: ", ErrorType(err)))
		builder.WriteString(err.Error())
		builder.WriteString("\n")
	}

	_, err := io.WriteString(w, builder.String())
	return err
}

// Summary is the one line tally printed after a text report.
func Summary(findings []types.Finding, files int) string {
	counts := map[types.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return fmt.Sprintf("%d findings (%d error, %d warning, %d info) in %d files",
		len(findings), counts[types.SeverityError], counts[types.SeverityWarning], counts[types.SeverityInfo], files)
}

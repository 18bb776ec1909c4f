package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// Severity of a rule and the findings it produces.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity accepts INFO, WARNING and ERROR in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Finding is one reported, constraint satisfying match of a rule.
type Finding struct {
	Rule     string
	Path     string
	Severity Severity
	Message  string
	Span     tree.Span
	// Metavars maps each bound metavariable to the source text it matched.
	Metavars map[string]string
}

// Timeout records an anchor attempt abandoned after exhausting its step
// budget.
type Timeout struct {
	Rule string
	Path string
	Span tree.Span
}

// FileResult collects everything produced for one file.
type FileResult struct {
	Path     string
	Findings []Finding
	Timeouts []Timeout
	Errors   []error
}

// SortFindings orders findings by path, span and rule id. The sort is stable
// so equal keys keep their discovery order.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Span != b.Span {
			return a.Span.Less(b.Span)
		}
		return a.Rule < b.Rule
	})
}

package formatter

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

// Report is the machine readable scan result.
type Report struct {
	Results []Result      `json:"results"`
	Errors  []ReportError `json:"errors"`
}

type Result struct {
	CheckID string   `json:"check_id"`
	Path    string   `json:"path"`
	Start   Position `json:"start"`
	End     Position `json:"end"`
	Extra   Extra    `json:"extra"`
}

type Position struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
}

type Extra struct {
	Severity string            `json:"severity"`
	Message  string            `json:"message"`
	Metavars map[string]string `json:"metavars,omitempty"`
}

type ReportError struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Rule    string    `json:"rule,omitempty"`
	Path    string    `json:"path,omitempty"`
	Start   *Position `json:"start,omitempty"`
}

func position(p tree.Pos) Position {
	return Position{Line: p.Line, Col: p.Column, Offset: p.Offset}
}

// NewReport assembles a report. Timeouts are listed as errors of type
// MatchTimeout.
func NewReport(findings []types.Finding, timeouts []types.Timeout, errs []error) Report {
	r := Report{Results: []Result{}, Errors: []ReportError{}}
	for _, f := range findings {
		r.Results = append(r.Results, Result{
			CheckID: f.Rule,
			Path:    f.Path,
			Start:   position(f.Span.Start),
			End:     position(f.Span.End),
			Extra: Extra{
				Severity: f.Severity.String(),
				Message:  f.Message,
				Metavars: f.Metavars,
			},
		})
	}
	for _, t := range timeouts {
		start := position(t.Span.Start)
		r.Errors = append(r.Errors, ReportError{
			Type:    "MatchTimeout",
			Message: types.ErrMatchTimeout.Error(),
			Rule:    t.Rule,
			Path:    t.Path,
			Start:   &start,
		})
	}
	for _, err := range errs {
		re := ReportError{Type: ErrorType(err), Message: err.Error()}
		var pe *types.ParseError
		if errors.As(err, &pe) {
			re.Path = pe.Path
		}
		r.Errors = append(r.Errors, re)
	}
	return r
}

// ErrorType classifies err by the error kind it wraps.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, types.ErrCompile):
		return "CompileError"
	case errors.Is(err, types.ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, types.ErrParse):
		return "ParseError"
	case errors.Is(err, types.ErrMatchTimeout):
		return "MatchTimeout"
	}
	return "Error"
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, findings []types.Finding, timeouts []types.Timeout, errs []error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(findings, timeouts, errs))
}

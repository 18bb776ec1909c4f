package types

import "errors"

// Error kinds shared across packages. Concrete errors wrap one of these so
// callers can classify them with errors.Is.
var (
	// ErrCompile marks a malformed pattern or an ellipsis in a position
	// that only takes a single node.
	ErrCompile = errors.New("pattern compile error")

	// ErrConfiguration marks an invalid rule definition.
	ErrConfiguration = errors.New("rule configuration error")

	// ErrMatchTimeout is returned when one anchor attempt exceeds its step
	// budget.
	ErrMatchTimeout = errors.New("match step budget exceeded")

	// ErrParse marks a source file the frontend could not parse.
	ErrParse = errors.New("parse error")
)

// ParseError wraps a frontend failure on one file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

package snoc

import (
	"fmt"
)

// ParseError represents a syntax error in Snow source code.
type ParseError struct {
	Line    int    // 1-based line number
	Column  int    // 1-based column number
	Message string // Error description
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// CompileError represents bad compiler input other than the source
// text: a profile that cannot be loaded or an invalid function filter.
type CompileError struct {
	Message string // Error description
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error: %s", e.Message)
}

// LowerError represents an error while translating the AST to linear
// IR.
type LowerError struct {
	Message string // Error description
}

func (e *LowerError) Error() string {
	return fmt.Sprintf("lowering error: %s", e.Message)
}

// InternalError reports a violated compiler invariant. It always
// indicates a bug in a rewriting pass, never bad input.
type InternalError struct {
	Invariant string // Description of the violated invariant
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Invariant)
}

// IsParseError reports whether err is a ParseError and returns its
// source line. Returns (line, true) for parse errors, (0, false)
// otherwise.
func IsParseError(err error) (int, bool) {
	if e, ok := err.(*ParseError); ok {
		return e.Line, true
	}
	return 0, false
}

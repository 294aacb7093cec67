package parser

import (
	"fmt"
	"strings"

	"github.com/kolkov/snoc/internal/token"
)

// ParseError describes a single syntax error with its source position.
type ParseError struct {
	Pos     token.Position
	Message string
	Got     token.Kind // token that was found
	Want    token.Kind // token that was expected, INVALID when open-ended
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// ErrorList accumulates parse errors in source order.
type ErrorList []*ParseError

// Add appends a new error to the list.
func (l *ErrorList) Add(err *ParseError) {
	*l = append(*l, err)
}

// Error implements the error interface. A single error renders as
// itself; multiple errors render the first with a count suffix.
func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(l[0].Error())
	fmt.Fprintf(&sb, " (and %d more errors)", len(l)-1)
	return sb.String()
}

// Err returns an error equivalent to this list, or nil if it is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// errorf builds a ParseError with a formatted message and no expected
// token kind.
func errorf(pos token.Position, got token.Kind, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
		Got:     got,
		Want:    token.INVALID,
	}
}

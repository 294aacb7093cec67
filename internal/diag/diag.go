// Package diag collects compiler diagnostics.
//
// Every phase appends to a shared List; the driver renders the list to
// stderr at phase boundaries in the order the records were added.
package diag

import (
	"fmt"
	"io"

	"github.com/kolkov/snoc/internal/token"
)

// Severity classifies a diagnostic.
type Severity uint8

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// Diagnostic is a single report tied to a source position.
type Diagnostic struct {
	Pos      token.Position
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// List accumulates diagnostics in report order.
type List struct {
	records []Diagnostic
}

// Add appends a diagnostic.
func (l *List) Add(pos token.Position, sev Severity, msg string) {
	l.records = append(l.records, Diagnostic{Pos: pos, Severity: sev, Message: msg})
}

// Addf appends a diagnostic with a formatted message.
func (l *List) Addf(pos token.Position, sev Severity, format string, args ...interface{}) {
	l.Add(pos, sev, fmt.Sprintf(format, args...))
}

// Merge appends all records from other.
func (l *List) Merge(other *List) {
	l.records = append(l.records, other.records...)
}

// Truncate drops all records past the first n.
func (l *List) Truncate(n int) {
	if n < len(l.records) {
		l.records = l.records[:n]
	}
}

// Records returns the diagnostics in the order they were added.
func (l *List) Records() []Diagnostic {
	return l.records
}

// Len returns the number of diagnostics.
func (l *List) Len() int { return len(l.records) }

// HasErrors reports whether any record is Error or Fatal.
func (l *List) HasErrors() bool {
	for _, d := range l.records {
		if d.Severity >= Error {
			return true
		}
	}
	return false
}

// Write renders all records, one per line, in record order.
func (l *List) Write(w io.Writer) {
	for _, d := range l.records {
		fmt.Fprintln(w, d.String())
	}
}

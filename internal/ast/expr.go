package ast

import (
	"github.com/kolkov/snoc/internal/dodec"
	"github.com/kolkov/snoc/internal/token"
)

// -----------------------------------------------------------------------------
// Literals
// -----------------------------------------------------------------------------

// NumLit represents a numeric literal. The value is always a signed
// 64-bit integer; base twelve and decimal surface forms share it.
// Examples: 42, 3b, 10#255, 12#a0
type NumLit struct {
	BaseExpr
	Value int64  // Parsed value
	Raw   string // Original source text
}

// StrLit represents a string literal.
// Examples: "hello", "line\n"
type StrLit struct {
	BaseExpr
	Value string // Unescaped string value
}

// DurationLit represents a time literal fused from a magnitude and a
// unit suffix. The nanosecond count is computed at lex/parse time.
// Examples: 100ns, 10ms, 3s
type DurationLit struct {
	BaseExpr
	Magnitude int64      // Literal digits, parsed base twelve
	Unit      dodec.Unit // Unit suffix tag
	Nanos     int64      // Normalized nanosecond count
	Saturated bool       // Conversion overflowed and was clamped
}

// -----------------------------------------------------------------------------
// References and operations
// -----------------------------------------------------------------------------

// Ident represents an identifier reference.
type Ident struct {
	BaseExpr
	Name string
}

// BinaryExpr represents a binary operation.
// Examples: a + b, x == y, n * 12
type BinaryExpr struct {
	BaseExpr
	Left  Expr
	Op    token.Kind
	Right Expr
}

// AssignExpr represents an assignment to a variable.
// Example: x = x + 1
type AssignExpr struct {
	BaseExpr
	Target *Ident
	Value  Expr
}

// CallExpr represents a function call.
// Example: tick(n, 3s)
type CallExpr struct {
	BaseExpr
	Name string
	Args []Expr
}

// DerivExpr represents the derivative expression d(inner): the change
// of inner across the sample window of the enclosing temporal
// construct.
type DerivExpr struct {
	BaseExpr
	Inner Expr
}

// Compile-time interface conformance checks.
var (
	_ Expr = (*NumLit)(nil)
	_ Expr = (*StrLit)(nil)
	_ Expr = (*DurationLit)(nil)
	_ Expr = (*Ident)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*AssignExpr)(nil)
	_ Expr = (*CallExpr)(nil)
	_ Expr = (*DerivExpr)(nil)
)

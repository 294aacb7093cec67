package ast

import "github.com/kolkov/snoc/internal/token"

// Program is the root node: the ordered top-level statement list of a
// single translation unit.
type Program struct {
	Stmts []Stmt
}

// Pos returns the position of the first statement, or NoPos for an
// empty program.
func (p *Program) Pos() token.Position {
	if len(p.Stmts) == 0 {
		return token.NoPos
	}
	return p.Stmts[0].Pos()
}

// End returns the position after the last statement.
func (p *Program) End() token.Position {
	if len(p.Stmts) == 0 {
		return token.NoPos
	}
	return p.Stmts[len(p.Stmts)-1].End()
}

var _ Node = (*Program)(nil)

package ast

// -----------------------------------------------------------------------------
// Basic statements
// -----------------------------------------------------------------------------

// ExprStmt represents an expression evaluated for its effect.
type ExprStmt struct {
	BaseStmt
	X Expr
}

// VarDecl represents a variable declaration.
// Example: let x = 3b;
type VarDecl struct {
	BaseStmt
	Name string
	Init Expr // nil when declared without initializer
}

// FuncDecl represents a function declaration. The bracket form
// fn = [name params]; produces a declaration with an empty body.
type FuncDecl struct {
	BaseStmt
	Name   string
	Params []string
	Body   *BlockStmt
}

// BlockStmt represents a statement sequence. Blocks are terminated by
// 'end', 'else', or end of file rather than braces.
type BlockStmt struct {
	BaseStmt
	Stmts []Stmt
}

// -----------------------------------------------------------------------------
// Control flow
// -----------------------------------------------------------------------------

// IfStmt represents a conditional.
// Example: if x == 0: ... else: ...
type IfStmt struct {
	BaseStmt
	Cond Expr
	Then *BlockStmt
	Else *BlockStmt // nil when absent
}

// WhileStmt represents a condition-guarded loop.
// Example: while n < 10: ... end;
type WhileStmt struct {
	BaseStmt
	Cond Expr
	Body *BlockStmt
}

// BreakStmt represents a break statement.
type BreakStmt struct {
	BaseStmt
}

// ContinueStmt represents a continue statement.
type ContinueStmt struct {
	BaseStmt
}

// ReturnStmt represents a return ('return' or its 'ret' alias).
type ReturnStmt struct {
	BaseStmt
	Value Expr // nil for a bare return
}

// -----------------------------------------------------------------------------
// Temporal statements
// -----------------------------------------------------------------------------

// EveryStmt represents periodic execution.
// Example: every 10ms: wait 1s; end;
type EveryStmt struct {
	BaseStmt
	Interval *DurationLit
	Body     *BlockStmt
}

// DeriveStmt represents either a sample capture (derive x = expr;) or
// a windowed form (derive x over 3s: ... end;).
type DeriveStmt struct {
	BaseStmt
	Name     string
	Expr     Expr         // capture form; nil in the windowed form
	Interval *DurationLit // windowed form; nil in the capture form
	Body     *BlockStmt   // windowed form; nil in the capture form
}

// WaitStmt represents a bounded wait.
// Example: wait 100ms;
type WaitStmt struct {
	BaseStmt
	Duration *DurationLit
}

// Compile-time interface conformance checks.
var (
	_ Stmt = (*ExprStmt)(nil)
	_ Stmt = (*VarDecl)(nil)
	_ Stmt = (*FuncDecl)(nil)
	_ Stmt = (*BlockStmt)(nil)
	_ Stmt = (*IfStmt)(nil)
	_ Stmt = (*WhileStmt)(nil)
	_ Stmt = (*BreakStmt)(nil)
	_ Stmt = (*ContinueStmt)(nil)
	_ Stmt = (*ReturnStmt)(nil)
	_ Stmt = (*EveryStmt)(nil)
	_ Stmt = (*DeriveStmt)(nil)
	_ Stmt = (*WaitStmt)(nil)
)

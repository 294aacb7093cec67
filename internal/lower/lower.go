// Package lower translates the AST into linear three-address IR.
//
// Each function gets a flat symbol table mapping source names to
// virtual registers. R0 is the conventional return-value register;
// every subexpression result receives a fresh register with no reuse.
// Top-level statements are collected into an implicit main function.
package lower

import (
	"strconv"

	"github.com/kolkov/snoc/internal/ast"
	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/ir"
	"github.com/kolkov/snoc/internal/token"
)

// MainFunc is the name of the implicit function holding top-level
// statements.
const MainFunc = "main"

type lowerer struct {
	mod       *ir.Module
	fn        *ir.Function
	blk       *ir.BasicBlock
	syms      map[string]int
	nextLabel int
	diags     *diag.List
}

// Lower translates prog into a linear IR module. Unhandled constructs
// produce warnings on diags and are skipped; lowering always runs to
// completion.
func Lower(prog *ast.Program, diags *diag.List) *ir.Module {
	l := &lowerer{mod: &ir.Module{}, diags: diags}
	l.beginFunction(MainFunc, nil)
	main := l.fn
	for _, stmt := range prog.Stmts {
		l.stmt(stmt)
	}
	l.fn, l.blk = main, lastBlock(main)
	l.blk.Append(ir.NewInstr(ir.RET))
	for _, f := range l.mod.Funcs {
		ir.WireSuccessors(f)
	}
	return l.mod
}

func lastBlock(f *ir.Function) *ir.BasicBlock {
	return f.Blocks[len(f.Blocks)-1]
}

func (l *lowerer) beginFunction(name string, params []string) {
	l.fn = l.mod.NewFunction(name, params...)
	l.syms = map[string]int{}
	for _, p := range params {
		reg := l.fn.AllocReg()
		l.syms[p] = reg
		l.fn.BindVar(p, reg)
	}
	l.blk = l.fn.NewBlock("entry")
}

// labelID hands out one id per control-flow statement; all labels of
// that statement share it (then0/else0/endif0).
func (l *lowerer) labelID() string {
	id := strconv.Itoa(l.nextLabel)
	l.nextLabel++
	return id
}

// variable returns the register bound to name, allocating one on
// first reference.
func (l *lowerer) variable(name string) int {
	if reg, ok := l.syms[name]; ok {
		return reg
	}
	reg := l.fn.AllocReg()
	l.syms[name] = reg
	l.fn.BindVar(name, reg)
	return reg
}

func (l *lowerer) emit(op ir.Op, operands ...ir.Operand) *ir.Instruction {
	return l.blk.Emit(op, operands...)
}

func (l *lowerer) warnf(pos token.Position, format string, args ...interface{}) {
	l.diags.Addf(pos, diag.Warning, format, args...)
}

// -----------------------------------------------------------------------------
// Statements
// -----------------------------------------------------------------------------

func (l *lowerer) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.FuncDecl:
		l.funcDecl(s)
	case *ast.VarDecl:
		l.varDecl(s)
	case *ast.IfStmt:
		l.ifStmt(s)
	case *ast.WhileStmt:
		l.whileStmt(s)
	case *ast.EveryStmt:
		l.everyStmt(s)
	case *ast.DeriveStmt:
		l.deriveStmt(s)
	case *ast.WaitStmt:
		l.waitStmt(s)
	case *ast.ReturnStmt:
		l.returnStmt(s)
	case *ast.ExprStmt:
		l.expr(s.X)
	case *ast.BlockStmt:
		l.block(s)
	case *ast.BreakStmt:
		l.warnf(s.Pos(), "break is not lowered yet; statement skipped")
	case *ast.ContinueStmt:
		l.warnf(s.Pos(), "continue is not lowered yet; statement skipped")
	default:
		l.warnf(stmt.Pos(), "unhandled statement %T; skipped", stmt)
	}
}

func (l *lowerer) block(b *ast.BlockStmt) {
	for _, s := range b.Stmts {
		l.stmt(s)
	}
}

// funcDecl lowers a nested function and then restores the enclosing
// function context so statements after the declaration keep flowing
// into it.
func (l *lowerer) funcDecl(s *ast.FuncDecl) {
	outerFn, outerBlk, outerSyms := l.fn, l.blk, l.syms
	l.beginFunction(s.Name, s.Params)
	if s.Body != nil {
		l.block(s.Body)
	}
	l.blk.Append(ir.NewInstr(ir.RET))
	l.fn, l.blk, l.syms = outerFn, outerBlk, outerSyms
}

func (l *lowerer) varDecl(s *ast.VarDecl) {
	reg := l.variable(s.Name)
	if s.Init != nil {
		init := l.expr(s.Init)
		l.emit(ir.MOV, ir.Reg(reg), ir.Reg(init))
	}
}

func (l *lowerer) ifStmt(s *ast.IfStmt) {
	cond := l.expr(s.Cond)
	id := l.labelID()
	thenLabel := "then" + id
	elseLabel := "else" + id
	endLabel := "endif" + id

	l.emit(ir.CMP, ir.Reg(cond), ir.Imm(0))
	if s.Else != nil {
		l.emit(ir.JE, ir.Lbl(elseLabel))
	} else {
		l.emit(ir.JE, ir.Lbl(endLabel))
	}

	l.blk = l.fn.NewBlock(thenLabel)
	l.block(s.Then)
	l.emit(ir.JMP, ir.Lbl(endLabel))

	if s.Else != nil {
		l.blk = l.fn.NewBlock(elseLabel)
		l.block(s.Else)
	}

	l.blk = l.fn.NewBlock(endLabel)
}

func (l *lowerer) whileStmt(s *ast.WhileStmt) {
	id := l.labelID()
	condLabel := "while_cond" + id
	bodyLabel := "while_body" + id
	endLabel := "while_end" + id

	l.blk = l.fn.NewBlock(condLabel)
	l.loopExit(s.Cond, endLabel)

	l.blk = l.fn.NewBlock(bodyLabel)
	l.block(s.Body)
	l.emit(ir.JMP, ir.Lbl(condLabel))

	l.blk = l.fn.NewBlock(endLabel)
}

// loopExit lowers a loop condition into a test and an exit branch. A
// direct comparison becomes one CMP with the inverted conditional
// jump; any other expression is tested against zero.
func (l *lowerer) loopExit(cond ast.Expr, exitLabel string) {
	if e, ok := cond.(*ast.BinaryExpr); ok {
		if jump, ok := exitJump(e.Op); ok {
			left := l.expr(e.Left)
			right := l.expr(e.Right)
			l.emit(ir.CMP, ir.Reg(left), ir.Reg(right))
			l.emit(jump, ir.Lbl(exitLabel))
			return
		}
	}
	reg := l.expr(cond)
	l.emit(ir.CMP, ir.Reg(reg), ir.Imm(0))
	l.emit(ir.JE, ir.Lbl(exitLabel))
}

// exitJump maps a comparison operator to the jump taken when the
// comparison does not hold.
func exitJump(op token.Kind) (ir.Op, bool) {
	switch op {
	case token.EQ:
		return ir.JNE, true
	case token.NEQ:
		return ir.JE, true
	case token.LT:
		return ir.JGE, true
	case token.LTE:
		return ir.JG, true
	case token.GT:
		return ir.JLE, true
	case token.GTE:
		return ir.JL, true
	}
	return ir.NOP, false
}

// everyStmt lowers periodic execution as an infinite loop: the
// interval is materialized once, then each iteration waits and runs
// the body. The trailing block is unreachable until break lowering
// exists.
func (l *lowerer) everyStmt(s *ast.EveryStmt) {
	id := l.labelID()
	startLabel := "every_start" + id
	endLabel := "every_end" + id

	interval := l.fn.AllocReg()
	l.emit(ir.MOV, ir.Reg(interval), ir.Imm(s.Interval.Nanos))

	l.blk = l.fn.NewBlock(startLabel)
	l.emit(ir.WAIT, ir.Reg(interval))
	l.block(s.Body)
	l.emit(ir.JMP, ir.Lbl(startLabel))

	l.blk = l.fn.NewBlock(endLabel)
}

func (l *lowerer) deriveStmt(s *ast.DeriveStmt) {
	if s.Expr != nil {
		reg := l.variable(s.Name)
		expr := l.expr(s.Expr)
		l.emit(ir.DODECAP, ir.Reg(reg), ir.Reg(expr))
		return
	}
	if s.Body != nil {
		l.block(s.Body)
	}
}

func (l *lowerer) waitStmt(s *ast.WaitStmt) {
	reg := l.fn.AllocReg()
	l.emit(ir.MOV, ir.Reg(reg), ir.Imm(s.Duration.Nanos))
	l.emit(ir.WAIT, ir.Reg(reg))
}

func (l *lowerer) returnStmt(s *ast.ReturnStmt) {
	if s.Value != nil {
		reg := l.expr(s.Value)
		l.emit(ir.MOV, ir.Reg(0), ir.Reg(reg))
	}
	l.emit(ir.RET)
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

// expr lowers an expression and returns the register holding its
// result.
func (l *lowerer) expr(expr ast.Expr) int {
	switch e := expr.(type) {
	case *ast.NumLit:
		reg := l.fn.AllocReg()
		l.emit(ir.MOV, ir.Reg(reg), ir.Imm(e.Value))
		return reg

	case *ast.StrLit:
		// Strings have no register representation yet; the slot is
		// reserved so consumers stay well-formed.
		return l.fn.AllocReg()

	case *ast.DurationLit:
		reg := l.fn.AllocReg()
		l.emit(ir.MOV, ir.Reg(reg), ir.Imm(e.Nanos))
		return reg

	case *ast.Ident:
		return l.variable(e.Name)

	case *ast.BinaryExpr:
		return l.binary(e)

	case *ast.AssignExpr:
		value := l.expr(e.Value)
		reg := l.variable(e.Target.Name)
		l.emit(ir.MOV, ir.Reg(reg), ir.Reg(value))
		return reg

	case *ast.CallExpr:
		for _, arg := range e.Args {
			l.expr(arg)
		}
		l.emit(ir.CALL, ir.Lbl(e.Name))
		reg := l.fn.AllocReg()
		l.emit(ir.MOV, ir.Reg(reg), ir.Reg(0))
		return reg

	case *ast.DerivExpr:
		inner := l.expr(e.Inner)
		reg := l.fn.AllocReg()
		l.emit(ir.DODECAP, ir.Reg(reg), ir.Reg(inner))
		return reg
	}

	l.warnf(expr.Pos(), "unhandled expression %T; result undefined", expr)
	return l.fn.AllocReg()
}

// binary lowers arithmetic to three-address ops. Comparisons emit
// only CMP; the condition lives in implicit flag state and the
// returned register is a placeholder for the consumer.
func (l *lowerer) binary(e *ast.BinaryExpr) int {
	left := l.expr(e.Left)
	right := l.expr(e.Right)
	result := l.fn.AllocReg()

	var op ir.Op
	switch e.Op {
	case token.ADD:
		op = ir.ADD
	case token.SUB:
		op = ir.SUB
	case token.MUL:
		op = ir.MUL
	case token.DIV:
		op = ir.DIV
	default:
		l.emit(ir.CMP, ir.Reg(left), ir.Reg(right))
		return result
	}
	l.emit(op, ir.Reg(result), ir.Reg(left), ir.Reg(right))
	return result
}


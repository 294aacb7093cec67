// Package parser implements a recursive descent parser for Snow source
// code. It consumes tokens from the lexer and produces an AST rooted at
// an ast.Program. On syntax errors the parser records a diagnostic,
// synchronizes to the next statement boundary, and keeps going, so a
// single run reports as many errors as possible.
package parser

import (
	"github.com/kolkov/snoc/internal/ast"
	"github.com/kolkov/snoc/internal/dodec"
	"github.com/kolkov/snoc/internal/lexer"
	"github.com/kolkov/snoc/internal/token"
)

// maxExprDepth bounds expression nesting so pathological input fails
// with a diagnostic instead of exhausting the stack.
const maxExprDepth = 512

// Parser holds the state of a single parse.
type Parser struct {
	stream  *lexer.TokenStream
	tok     token.Token // current token
	prevTok token.Token // previously consumed token
	errors  ErrorList
	depth   int // current expression nesting depth
}

// New creates a parser reading from lex.
func New(lex *lexer.Lexer) *Parser {
	p := &Parser{stream: lexer.NewStream(lex)}
	p.next()
	return p
}

// Parse parses a complete Snow program. The returned Program is always
// non-nil; when err is non-nil it is an ErrorList and the program holds
// every statement that parsed cleanly.
func Parse(src []byte, filename string) (*ast.Program, error) {
	p := New(lexer.New(src, filename))
	prog := p.parseProgram()
	return prog, p.errors.Err()
}

// ParseString is a convenience wrapper around Parse for string input.
func ParseString(src string) (*ast.Program, error) {
	return Parse([]byte(src), "")
}

// ParseExpr parses a single expression followed by EOF.
func ParseExpr(src string) (ast.Expr, error) {
	p := New(lexer.NewFromString(src))
	var x ast.Expr
	func() {
		defer p.recoverBailout()
		x = p.parseExpr()
		if p.tok.Kind != token.EOF {
			p.errorf("expected end of expression, got %s", p.tok.Kind)
		}
	}()
	return x, p.errors.Err()
}

// Errors returns the errors accumulated so far.
func (p *Parser) Errors() ErrorList { return p.errors }

// HadError reports whether any syntax error was recorded.
func (p *Parser) HadError() bool { return len(p.errors) > 0 }

// -----------------------------------------------------------------------------
// Token handling
// -----------------------------------------------------------------------------

func (p *Parser) next() {
	p.prevTok = p.tok
	p.tok = p.stream.Next()
	for p.tok.Kind == token.INVALID {
		p.errorf("invalid token %q", p.tok.Lexeme)
		p.tok = p.stream.Next()
	}
}

func (p *Parser) at(kind token.Kind) bool {
	return p.tok.Kind == kind
}

func (p *Parser) match(kind token.Kind) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

// expect consumes the current token if it has the wanted kind;
// otherwise it records an error and bails out of the enclosing
// statement.
func (p *Parser) expect(kind token.Kind, context string) token.Token {
	if p.at(kind) {
		tok := p.tok
		p.next()
		return tok
	}
	p.errors.Add(&ParseError{
		Pos:     p.tok.Pos,
		Message: "expected " + kind.String() + " " + context + ", got " + p.tokenDesc(),
		Got:     p.tok.Kind,
		Want:    kind,
	})
	panic(bailout{})
}

func (p *Parser) tokenDesc() string {
	switch p.tok.Kind {
	case token.EOF:
		return "end of file"
	case token.IDENT, token.NUMBER, token.STRING, token.TIME:
		return p.tok.Kind.String() + " '" + p.tok.Lexeme + "'"
	}
	return "'" + p.tok.Lexeme + "'"
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors.Add(errorf(p.tok.Pos, p.tok.Kind, format, args...))
}

// bailout aborts the current statement after an unrecoverable token
// mismatch. It is caught in parseProgram, never escapes the package.
type bailout struct{}

func (p *Parser) recoverBailout() {
	if r := recover(); r != nil {
		if _, ok := r.(bailout); !ok {
			panic(r)
		}
	}
}

// synchronize advances to the next likely statement boundary: just past
// a semicolon, or in front of a statement keyword.
func (p *Parser) synchronize() {
	for !p.at(token.EOF) {
		switch p.tok.Kind {
		case token.FN, token.LET, token.IF, token.WHILE, token.FOR, token.RETURN:
			return
		}
		p.next()
		if p.prevTok.Kind == token.SEMICOLON {
			return
		}
	}
}

// end returns the source position just past t.
func end(t token.Token) token.Position {
	pos := t.Pos
	pos.Column += len(t.Lexeme)
	pos.Offset += len(t.Lexeme)
	return pos
}

func (p *Parser) span(start token.Position) ast.BaseStmt {
	return ast.MakeBaseStmt(start, end(p.prevTok))
}

// -----------------------------------------------------------------------------
// Statements
// -----------------------------------------------------------------------------

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		if stmt := p.parseStatementSync(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
	}
	return prog
}

// parseStatementSync parses one statement, synchronizing on error. It
// always makes progress: if synchronization lands on the token the
// failed statement started at, that token is skipped.
func (p *Parser) parseStatementSync() (stmt ast.Stmt) {
	start := p.tok.Pos
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize()
			if p.tok.Pos == start && !p.at(token.EOF) {
				p.next()
			}
			stmt = nil
		}
	}()
	return p.parseStatement()
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.tok.Kind {
	case token.FN:
		return p.parseFuncDecl()
	case token.LET:
		return p.parseVarDecl()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.EVERY:
		return p.parseEveryStmt()
	case token.DERIVE:
		return p.parseDeriveStmt()
	case token.WAIT:
		return p.parseWaitStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK:
		start := p.tok.Pos
		p.next()
		p.expect(token.SEMICOLON, "after 'break'")
		return &ast.BreakStmt{BaseStmt: p.span(start)}
	case token.CONTINUE:
		start := p.tok.Pos
		p.next()
		p.expect(token.SEMICOLON, "after 'continue'")
		return &ast.ContinueStmt{BaseStmt: p.span(start)}
	}
	return p.parseExprStmt()
}

// parseFuncDecl handles both declaration forms:
//
//	fn = [name param1 param2];     bracket form, empty body
//	fn name(param1, param2) block  traditional form
//
// The parameter parentheses of the traditional form are optional, and
// the body runs to 'end', 'else', or end of file without a closing
// token of its own.
func (p *Parser) parseFuncDecl() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'fn'

	if p.match(token.ASSIGN) {
		p.expect(token.LBRACKET, "after 'fn ='")
		name := p.expect(token.IDENT, "for function name")
		var params []string
		for !p.at(token.RBRACKET) && !p.at(token.EOF) {
			params = append(params, p.expect(token.IDENT, "for parameter name").Lexeme)
		}
		p.expect(token.RBRACKET, "to close parameter list")
		p.expect(token.SEMICOLON, "after function declaration")
		return &ast.FuncDecl{
			BaseStmt: p.span(start),
			Name:     name.Lexeme,
			Params:   params,
			Body:     &ast.BlockStmt{},
		}
	}

	name := p.expect(token.IDENT, "for function name")
	var params []string
	if p.match(token.LPAREN) {
		if !p.at(token.RPAREN) {
			for {
				params = append(params, p.expect(token.IDENT, "for parameter name").Lexeme)
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		p.expect(token.RPAREN, "after parameters")
	}
	body := p.parseBlock()
	return &ast.FuncDecl{
		BaseStmt: p.span(start),
		Name:     name.Lexeme,
		Params:   params,
		Body:     body,
	}
}

func (p *Parser) parseVarDecl() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'let'
	name := p.expect(token.IDENT, "for variable name")
	var init ast.Expr
	if p.match(token.ASSIGN) {
		init = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "after variable declaration")
	return &ast.VarDecl{BaseStmt: p.span(start), Name: name.Lexeme, Init: init}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'if'
	cond := p.parseExpr()
	p.expect(token.COLON, "after if condition")
	then := p.parseBlock()
	var els *ast.BlockStmt
	if p.match(token.ELSE) {
		p.expect(token.COLON, "after 'else'")
		els = p.parseBlock()
	}
	return &ast.IfStmt{BaseStmt: p.span(start), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'while'
	cond := p.parseExpr()
	p.expect(token.COLON, "after while condition")
	body := p.parseBlock()
	p.expect(token.END, "after while block")
	p.expect(token.SEMICOLON, "after 'end'")
	return &ast.WhileStmt{BaseStmt: p.span(start), Cond: cond, Body: body}
}

func (p *Parser) parseEveryStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'every'
	interval := p.parseDuration()
	p.expect(token.COLON, "after duration")
	body := p.parseBlock()
	p.expect(token.END, "after every block")
	p.expect(token.SEMICOLON, "after 'end'")
	return &ast.EveryStmt{BaseStmt: p.span(start), Interval: interval, Body: body}
}

func (p *Parser) parseDeriveStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'derive'
	name := p.expect(token.IDENT, "for derive target")

	if p.match(token.ASSIGN) {
		expr := p.parseExpr()
		p.expect(token.SEMICOLON, "after derive statement")
		return &ast.DeriveStmt{BaseStmt: p.span(start), Name: name.Lexeme, Expr: expr}
	}

	p.expect(token.OVER, "or '=' after derive target")
	interval := p.parseDuration()
	p.expect(token.COLON, "after duration")
	body := p.parseBlock()
	p.expect(token.END, "after derive block")
	p.expect(token.SEMICOLON, "after 'end'")
	return &ast.DeriveStmt{
		BaseStmt: p.span(start),
		Name:     name.Lexeme,
		Interval: interval,
		Body:     body,
	}
}

func (p *Parser) parseWaitStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'wait'
	dur := p.parseDuration()
	p.expect(token.SEMICOLON, "after wait statement")
	return &ast.WaitStmt{BaseStmt: p.span(start), Duration: dur}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.tok.Pos
	p.next() // 'return' / 'ret'
	var value ast.Expr
	if !p.at(token.SEMICOLON) {
		value = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "after return statement")
	return &ast.ReturnStmt{BaseStmt: p.span(start), Value: value}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	start := p.tok.Pos
	x := p.parseExpr()
	p.expect(token.SEMICOLON, "after expression")
	return &ast.ExprStmt{BaseStmt: p.span(start), X: x}
}

// parseBlock collects statements until 'end', 'else', or end of file.
// The terminator is left for the caller to consume.
func (p *Parser) parseBlock() *ast.BlockStmt {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		p.errorf("statements too deeply nested")
		panic(bailout{})
	}
	start := p.tok.Pos
	block := &ast.BlockStmt{}
	for !p.at(token.END) && !p.at(token.ELSE) && !p.at(token.EOF) {
		if stmt := p.parseStatementSync(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	block.BaseStmt = p.span(start)
	return block
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

func (p *Parser) parseExpr() ast.Expr {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		p.errorf("expression too deeply nested")
		panic(bailout{})
	}
	return p.parseAssignment()
}

// parseAssignment handles 'x = expr'. Assignment is right associative
// and only identifiers are assignable.
func (p *Parser) parseAssignment() ast.Expr {
	x := p.parseLogicalOr()
	if p.at(token.ASSIGN) {
		if !ast.IsLValue(x) {
			p.errorf("cannot assign to this expression")
			panic(bailout{})
		}
		p.next()
		value := p.parseAssignment()
		target := x.(*ast.Ident)
		return &ast.AssignExpr{
			BaseExpr: ast.MakeBaseExpr(target.Pos(), value.End()),
			Target:   target,
			Value:    value,
		}
	}
	return x
}

func (p *Parser) parseLogicalOr() ast.Expr {
	return p.parseLogicalAnd()
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	x := p.parseEquality()
	for p.at(token.AND) {
		op := p.tok.Kind
		p.next()
		right := p.parseEquality()
		x = p.binary(x, op, right)
	}
	return x
}

func (p *Parser) parseEquality() ast.Expr {
	x := p.parseComparison()
	for p.at(token.EQ) || p.at(token.NEQ) {
		op := p.tok.Kind
		p.next()
		right := p.parseComparison()
		x = p.binary(x, op, right)
	}
	return x
}

func (p *Parser) parseComparison() ast.Expr {
	x := p.parseTerm()
	for p.at(token.LT) || p.at(token.GT) || p.at(token.LTE) || p.at(token.GTE) {
		op := p.tok.Kind
		p.next()
		right := p.parseTerm()
		x = p.binary(x, op, right)
	}
	return x
}

func (p *Parser) parseTerm() ast.Expr {
	x := p.parseFactor()
	for p.at(token.ADD) || p.at(token.SUB) {
		op := p.tok.Kind
		p.next()
		right := p.parseFactor()
		x = p.binary(x, op, right)
	}
	return x
}

func (p *Parser) parseFactor() ast.Expr {
	x := p.parseUnary()
	for p.at(token.MUL) || p.at(token.DIV) {
		op := p.tok.Kind
		p.next()
		right := p.parseUnary()
		x = p.binary(x, op, right)
	}
	return x
}

// parseUnary desugars unary minus into a subtraction from zero, so the
// lowering pass only ever sees binary arithmetic.
func (p *Parser) parseUnary() ast.Expr {
	if p.at(token.SUB) {
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxExprDepth {
			p.errorf("expression too deeply nested")
			panic(bailout{})
		}
		start := p.tok.Pos
		p.next()
		x := p.parseUnary()
		zero := &ast.NumLit{BaseExpr: ast.MakeBaseExpr(start, start), Value: 0, Raw: "0"}
		return &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(start, x.End()),
			Left:     zero,
			Op:       token.SUB,
			Right:    x,
		}
	}
	return p.parseCall()
}

func (p *Parser) parseCall() ast.Expr {
	x := p.parsePrimary()
	if p.at(token.LPAREN) {
		ident, ok := x.(*ast.Ident)
		if !ok {
			return x
		}
		p.next()
		var args []ast.Expr
		if !p.at(token.RPAREN) {
			for {
				args = append(args, p.parseExpr())
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		rparen := p.expect(token.RPAREN, "after arguments")
		return &ast.CallExpr{
			BaseExpr: ast.MakeBaseExpr(ident.Pos(), end(rparen)),
			Name:     ident.Name,
			Args:     args,
		}
	}
	return x
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.tok.Kind {
	case token.NUMBER:
		tok := p.tok
		p.next()
		return &ast.NumLit{
			BaseExpr: ast.MakeBaseExpr(tok.Pos, end(tok)),
			Value:    tok.Value,
			Raw:      tok.Lexeme,
		}

	case token.STRING:
		tok := p.tok
		p.next()
		return &ast.StrLit{BaseExpr: ast.MakeBaseExpr(tok.Pos, end(tok)), Value: tok.Lexeme}

	case token.TIME:
		return p.parseDuration()

	case token.TRUE, token.FALSE:
		tok := p.tok
		p.next()
		var v int64
		if tok.Kind == token.TRUE {
			v = 1
		}
		return &ast.NumLit{
			BaseExpr: ast.MakeBaseExpr(tok.Pos, end(tok)),
			Value:    v,
			Raw:      tok.Lexeme,
		}

	case token.IDENT:
		tok := p.tok
		p.next()
		// d(expr) is the derivative form, not a call.
		if tok.Lexeme == "d" && p.match(token.LPAREN) {
			inner := p.parseExpr()
			rparen := p.expect(token.RPAREN, "after derivative expression")
			return &ast.DerivExpr{
				BaseExpr: ast.MakeBaseExpr(tok.Pos, end(rparen)),
				Inner:    inner,
			}
		}
		return &ast.Ident{BaseExpr: ast.MakeBaseExpr(tok.Pos, end(tok)), Name: tok.Lexeme}

	case token.LPAREN:
		p.next()
		x := p.parseExpr()
		p.expect(token.RPAREN, "after expression")
		return x
	}

	p.errorf("expected expression, got %s", p.tokenDesc())
	panic(bailout{})
}

// parseDuration expects a time literal and builds its DurationLit. An
// out-of-range nanosecond count saturates and is flagged on the node.
func (p *Parser) parseDuration() *ast.DurationLit {
	tok := p.expect(token.TIME, "for duration")
	d, ok := dodec.FromParts(tok.Value, tok.Unit)
	return &ast.DurationLit{
		BaseExpr:  ast.MakeBaseExpr(tok.Pos, end(tok)),
		Magnitude: tok.Value,
		Unit:      tok.Unit,
		Nanos:     d.Nanoseconds(),
		Saturated: !ok,
	}
}

func (p *Parser) binary(left ast.Expr, op token.Kind, right ast.Expr) ast.Expr {
	return &ast.BinaryExpr{
		BaseExpr: ast.MakeBaseExpr(left.Pos(), right.End()),
		Left:     left,
		Op:       op,
		Right:    right,
	}
}

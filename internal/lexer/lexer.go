// Package lexer provides Snow source code tokenization.
//
// The scanner is byte-oriented and produces one token per Scan call.
// Numeric literals default to base twelve; the 10# and 12# prefixes
// force decimal and base-twelve parsing. A numeric literal immediately
// followed by unit letters (ns, ms, s, m, h) fuses into a single time
// literal token. Errors are collected as diagnostics without aborting.
package lexer

import (
	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/dodec"
	"github.com/kolkov/snoc/internal/token"
)

// Lexer tokenizes Snow source code.
type Lexer struct {
	src     []byte         // Source code
	ch      byte           // Current character (0 at EOF)
	offset  int            // Current byte offset
	pos     token.Position // Current position
	nextPos token.Position // Position of next character

	errors *diag.List
	stats  Stats
}

// Stats records scanning statistics for one lexer instance.
type Stats struct {
	Tokens      int // total tokens produced, EOF excluded
	Lines       int // lines seen
	Identifiers int
	Keywords    int
	Numbers     int
	Strings     int
	TimeLits    int
	Operators   int
	Delimiters  int
	Errors      int
}

// New creates a new Lexer for the given source and filename.
func New(src []byte, filename string) *Lexer {
	l := &Lexer{
		src:    src,
		errors: &diag.List{},
		nextPos: token.Position{
			Filename: filename,
			Line:     1,
			Column:   1,
		},
	}
	l.pos = l.nextPos
	l.next() // Initialize first character
	return l
}

// NewFromString creates a new Lexer from a string.
func NewFromString(src string) *Lexer {
	return New([]byte(src), "")
}

// Errors returns the diagnostics collected so far.
func (l *Lexer) Errors() *diag.List { return l.errors }

// Statistics returns a copy of the scanning statistics.
func (l *Lexer) Statistics() Stats {
	s := l.stats
	s.Lines = l.pos.Line
	return s
}

// Scan scans and returns the next token.
func (l *Lexer) Scan() token.Token {
	tok := l.scan()
	if tok.Kind != token.EOF {
		l.stats.Tokens++
		switch {
		case tok.Kind == token.IDENT:
			l.stats.Identifiers++
		case tok.Kind.IsKeyword():
			l.stats.Keywords++
		case tok.Kind == token.NUMBER:
			l.stats.Numbers++
		case tok.Kind == token.STRING:
			l.stats.Strings++
		case tok.Kind == token.TIME:
			l.stats.TimeLits++
		case tok.Kind.IsOperator():
			l.stats.Operators++
		case tok.Kind.IsDelimiter():
			l.stats.Delimiters++
		case tok.Kind == token.INVALID:
			l.stats.Errors++
		}
	}
	return tok
}

// TokenizeAll scans the remaining source and returns all tokens,
// ending with exactly one EOF token.
func (l *Lexer) TokenizeAll() []token.Token {
	var toks []token.Token
	for {
		tok := l.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// state is a resumable snapshot of the scanner cursor.
type state struct {
	ch      byte
	offset  int
	pos     token.Position
	nextPos token.Position
	stats   Stats
	errs    int
}

func (l *Lexer) save() state {
	return state{l.ch, l.offset, l.pos, l.nextPos, l.stats, l.errors.Len()}
}

func (l *Lexer) restore(s state) {
	l.ch, l.offset, l.pos, l.nextPos, l.stats = s.ch, s.offset, s.pos, s.nextPos, s.stats
	l.errors.Truncate(s.errs)
}

// Peek returns the next token without consuming it.
// The cursor, line, and column are preserved.
func (l *Lexer) Peek() token.Token {
	return l.PeekAhead(0)
}

// PeekAhead returns the (k+1)-th upcoming token without consuming any.
func (l *Lexer) PeekAhead(k int) token.Token {
	s := l.save()
	var tok token.Token
	for i := 0; i <= k; i++ {
		tok = l.Scan()
		if tok.Kind == token.EOF {
			break
		}
	}
	l.restore(s)
	return tok
}

func (l *Lexer) scan() token.Token {
	l.skipWhitespaceAndComments()

	// Record position
	pos := l.pos

	// EOF
	if l.ch == 0 {
		return token.Token{Kind: token.EOF, Pos: pos}
	}

	switch l.ch {
	case '+':
		l.next()
		return token.Token{Kind: token.ADD, Pos: pos, Lexeme: "+"}

	case '-':
		l.next()
		return token.Token{Kind: token.SUB, Pos: pos, Lexeme: "-"}

	case '*':
		l.next()
		return token.Token{Kind: token.MUL, Pos: pos, Lexeme: "*"}

	case '/':
		l.next()
		return token.Token{Kind: token.DIV, Pos: pos, Lexeme: "/"}

	case '=':
		l.next()
		if l.ch == '=' {
			l.next()
			return token.Token{Kind: token.EQ, Pos: pos, Lexeme: "=="}
		}
		return token.Token{Kind: token.ASSIGN, Pos: pos, Lexeme: "="}

	case '!':
		l.next()
		if l.ch == '=' {
			l.next()
			return token.Token{Kind: token.NEQ, Pos: pos, Lexeme: "!="}
		}
		return token.Token{Kind: token.BANG, Pos: pos, Lexeme: "!"}

	case '<':
		l.next()
		if l.ch == '=' {
			l.next()
			return token.Token{Kind: token.LTE, Pos: pos, Lexeme: "<="}
		}
		return token.Token{Kind: token.LT, Pos: pos, Lexeme: "<"}

	case '>':
		l.next()
		if l.ch == '=' {
			l.next()
			return token.Token{Kind: token.GTE, Pos: pos, Lexeme: ">="}
		}
		return token.Token{Kind: token.GT, Pos: pos, Lexeme: ">"}

	case '(':
		l.next()
		return token.Token{Kind: token.LPAREN, Pos: pos, Lexeme: "("}
	case ')':
		l.next()
		return token.Token{Kind: token.RPAREN, Pos: pos, Lexeme: ")"}
	case '[':
		l.next()
		return token.Token{Kind: token.LBRACKET, Pos: pos, Lexeme: "["}
	case ']':
		l.next()
		return token.Token{Kind: token.RBRACKET, Pos: pos, Lexeme: "]"}
	case '{':
		l.next()
		return token.Token{Kind: token.LBRACE, Pos: pos, Lexeme: "{"}
	case '}':
		l.next()
		return token.Token{Kind: token.RBRACE, Pos: pos, Lexeme: "}"}
	case ';':
		l.next()
		return token.Token{Kind: token.SEMICOLON, Pos: pos, Lexeme: ";"}
	case ':':
		l.next()
		return token.Token{Kind: token.COLON, Pos: pos, Lexeme: ":"}
	case ',':
		l.next()
		return token.Token{Kind: token.COMMA, Pos: pos, Lexeme: ","}
	case '.':
		l.next()
		return token.Token{Kind: token.DOT, Pos: pos, Lexeme: "."}

	case '"':
		return l.scanString(pos)

	default:
		if isDigit(l.ch) {
			return l.scanNumber(pos)
		}
		if isIdentStart(l.ch) {
			return l.scanIdent(pos)
		}
		ch := l.ch
		l.next()
		l.errors.Addf(pos, diag.Error, "unexpected character %q", ch)
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: string(ch)}
	}
}

func (l *Lexer) scanString(pos token.Position) token.Token {
	l.next() // consume opening quote

	var sb []byte
	for l.ch != 0 && l.ch != '"' && l.ch != '\n' {
		if l.ch == '\\' {
			l.next()
			switch l.ch {
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			case 'r':
				sb = append(sb, '\r')
			case '\\':
				sb = append(sb, '\\')
			case '"':
				sb = append(sb, '"')
			default:
				sb = append(sb, '\\', l.ch)
			}
			l.next()
		} else {
			sb = append(sb, l.ch)
			l.next()
		}
	}

	if l.ch != '"' {
		l.errors.Add(pos, diag.Error, "unterminated string")
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: string(sb)}
	}
	l.next() // consume closing quote

	return token.Token{Kind: token.STRING, Pos: pos, Lexeme: string(sb)}
}

// scanNumber scans a numeric or time literal. Base twelve is the
// default; a 10# prefix forces decimal, a 12# prefix is explicit base
// twelve. Unit letters fused directly after the digits produce a TIME
// token.
func (l *Lexer) scanNumber(pos token.Position) token.Token {
	// Prefix check: exactly "10#" or "12#".
	if l.ch == '1' {
		p1, p2 := l.peekByte(0), l.peekByte(1)
		if (p1 == '0' || p1 == '2') && p2 == '#' {
			decimal := p1 == '0'
			l.next() // second prefix digit
			l.next() // '#'
			l.next() // first payload digit
			return l.scanPrefixedNumber(pos, decimal)
		}
	}

	start := pos.Offset
	for isBase12Digit(l.ch) {
		l.next()
	}
	text := string(l.src[start:l.endOffset()])

	// Unit letters fused directly after the digits form a time literal.
	if isIdentStart(l.ch) {
		return l.scanTimeUnit(pos, text)
	}

	value, err := dodec.ParseBaseTwelve(text)
	if err != nil {
		l.errors.Addf(pos, diag.Error, "invalid numeric literal %q: %v", text, err)
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: text}
	}
	return token.Token{Kind: token.NUMBER, Pos: pos, Lexeme: text, Value: value}
}

func (l *Lexer) scanPrefixedNumber(pos token.Position, decimal bool) token.Token {
	start := l.pos.Offset
	for isBase12Digit(l.ch) {
		l.next()
	}
	text := string(l.src[start:l.endOffset()])

	var (
		value int64
		err   error
	)
	if decimal {
		value, err = dodec.ParseDecimal(text)
	} else {
		value, err = dodec.ParseBaseTwelve(text)
	}
	if err != nil {
		l.errors.Addf(pos, diag.Error, "invalid numeric literal %q: %v", text, err)
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: text}
	}
	return token.Token{Kind: token.NUMBER, Pos: pos, Lexeme: text, Value: value}
}

// scanTimeUnit consumes the unit letters following digits and fuses
// them with the magnitude into one TIME token.
func (l *Lexer) scanTimeUnit(pos token.Position, digits string) token.Token {
	start := l.endOffset()
	for isIdentStart(l.ch) {
		l.next()
	}
	suffix := string(l.src[start:l.endOffset()])

	unit, ok := dodec.LookupUnit(suffix)
	if !ok {
		l.errors.Addf(pos, diag.Error, "invalid time unit %q", suffix)
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: digits + suffix}
	}

	value, err := dodec.ParseBaseTwelve(digits)
	if err != nil {
		l.errors.Addf(pos, diag.Error, "invalid numeric literal %q: %v", digits, err)
		return token.Token{Kind: token.INVALID, Pos: pos, Lexeme: digits + suffix}
	}
	return token.Token{Kind: token.TIME, Pos: pos, Lexeme: digits + suffix, Value: value, Unit: unit}
}

func (l *Lexer) scanIdent(pos token.Position) token.Token {
	start := pos.Offset
	for isIdentContinue(l.ch) {
		l.next()
	}
	name := string(l.src[start:l.endOffset()])
	return token.Token{Kind: token.LookupIdent(name), Pos: pos, Lexeme: name}
}

// endOffset returns the correct end offset for slicing l.src.
// At EOF, l.pos is not updated, so we use len(l.src); otherwise l.pos.Offset.
func (l *Lexer) endOffset() int {
	if l.ch == 0 {
		return len(l.src)
	}
	return l.pos.Offset
}

// skipWhitespaceAndComments advances past spaces, tabs, CR, LF, line
// comments (# to end of line) and multi-line comments (## ... ##,
// no nesting).
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.next()
		case '#':
			if l.peekByte(0) == '#' {
				l.skipBlockComment()
			} else {
				l.skipLineComment()
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.next()
	}
}

func (l *Lexer) skipBlockComment() {
	pos := l.pos
	l.next() // first '#'
	l.next() // second '#'
	for l.ch != 0 {
		if l.ch == '#' && l.peekByte(0) == '#' {
			l.next()
			l.next()
			return
		}
		l.next()
	}
	l.errors.Add(pos, diag.Error, "unterminated block comment")
}

// peekByte returns the byte k positions after the current character
// without advancing, or 0 past the end of source.
func (l *Lexer) peekByte(k int) byte {
	idx := l.offset + k
	if idx >= len(l.src) {
		return 0
	}
	return l.src[idx]
}

func (l *Lexer) next() {
	if l.offset >= len(l.src) {
		l.ch = 0
		l.pos = l.nextPos
		return
	}

	l.pos = l.nextPos
	l.ch = l.src[l.offset]
	l.offset++
	l.nextPos.Column++
	l.nextPos.Offset = l.offset

	if l.ch == '\n' {
		l.nextPos.Line++
		l.nextPos.Column = 1
	}
}

// Helper functions

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isBase12Digit(ch byte) bool {
	return isDigit(ch) || ch == 'a' || ch == 'A' || ch == 'b' || ch == 'B'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

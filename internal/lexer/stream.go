package lexer

import (
	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/token"
)

// TokenStream is a parser-facing cursor over a lexer.
// It buffers one token of lookahead through the lexer's peek support
// and reports expectation failures into the shared diagnostics list.
type TokenStream struct {
	lex *Lexer
}

// NewStream wraps a lexer in a TokenStream.
func NewStream(l *Lexer) *TokenStream {
	return &TokenStream{lex: l}
}

// Next consumes and returns the next token.
func (s *TokenStream) Next() token.Token {
	return s.lex.Scan()
}

// Peek returns the next token without consuming it.
func (s *TokenStream) Peek() token.Token {
	return s.lex.Peek()
}

// PeekAhead returns the (k+1)-th upcoming token without consuming any.
func (s *TokenStream) PeekAhead(k int) token.Token {
	return s.lex.PeekAhead(k)
}

// Match consumes the next token if it has the given kind.
// Returns the token and true on a match.
func (s *TokenStream) Match(kind token.Kind) (token.Token, bool) {
	if s.Peek().Kind == kind {
		return s.Next(), true
	}
	return token.Token{}, false
}

// MatchAny consumes the next token if its kind is any of kinds.
func (s *TokenStream) MatchAny(kinds ...token.Kind) (token.Token, bool) {
	next := s.Peek().Kind
	for _, k := range kinds {
		if next == k {
			return s.Next(), true
		}
	}
	return token.Token{}, false
}

// Expect consumes the next token, which must have the given kind.
// On mismatch it records a diagnostic and returns the offending token
// with ok false; the token is still consumed so callers make progress.
func (s *TokenStream) Expect(kind token.Kind, msg string) (token.Token, bool) {
	tok := s.Next()
	if tok.Kind != kind {
		s.lex.Errors().Addf(tok.Pos, diag.Error, "%s: expected %s, got %s", msg, kind, tok.Kind)
		return tok, false
	}
	return tok, true
}

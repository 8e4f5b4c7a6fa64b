package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes query text. Queries are single-line.
type Lexer struct {
	input  string
	pos    int
	col    int
	tokens []Token
	errors []error
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, col: 1}
}

// Tokenize scans the entire input and returns all tokens plus any errors.
func (l *Lexer) Tokenize() ([]Token, []error) {
	for {
		tok := l.next()
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return l.tokens, l.errors
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.pos + offset
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	l.col++
	return r
}

func (l *Lexer) next() Token {
	for unicode.IsSpace(l.peek()) {
		l.advance()
	}
	start, col := l.pos, l.col
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start, Col: col}
	}

	r := l.peek()
	switch {
	case r == '"' || r == '\'':
		return l.scanString(start, col)
	case r >= '0' && r <= '9':
		return l.scanNumber(start, col)
	case isIdentStart(r):
		return l.scanIdent(start, col)
	case r == '>' && l.peekAt(1) == '=':
		l.advance()
		l.advance()
		return Token{Type: TokenGTE, Literal: ">=", Pos: start, Col: col}
	case r == '<' && l.peekAt(1) == '=':
		l.advance()
		l.advance()
		return Token{Type: TokenLTE, Literal: "<=", Pos: start, Col: col}
	case r == '=':
		l.advance()
		return Token{Type: TokenEQ, Literal: "=", Pos: start, Col: col}
	}

	l.advance()
	l.errors = append(l.errors, fmt.Errorf("col %d: unexpected character %q", col, r))
	return l.next()
}

func (l *Lexer) scanString(start, col int) Token {
	quote := l.advance()
	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			return Token{Type: TokenString, Literal: b.String(), Pos: start, Col: col}
		}
		if r == '\\' && l.pos < len(l.input) {
			r = l.advance()
		}
		b.WriteRune(r)
	}
	l.errors = append(l.errors, fmt.Errorf("col %d: unterminated string", col))
	return Token{Type: TokenString, Literal: b.String(), Pos: start, Col: col}
}

// scanNumber reads an integer, or a date when the digits continue as
// yyyy-mm-dd.
func (l *Lexer) scanNumber(start, col int) Token {
	for isDigit(l.peek()) || (l.peek() == '-' && isDigit(l.peekAt(1))) {
		l.advance()
	}
	lit := l.input[start:l.pos]
	if strings.Contains(lit, "-") {
		return Token{Type: TokenDate, Literal: lit, Pos: start, Col: col}
	}
	return Token{Type: TokenInt, Literal: lit, Pos: start, Col: col}
}

func (l *Lexer) scanIdent(start, col int) Token {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupKeyword(lit), Literal: lit, Pos: start, Col: col}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

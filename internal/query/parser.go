package query

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/table"
)

// Query is a parsed filter: structured criteria plus an optional sort.
type Query struct {
	Criteria table.Criteria
	Sort     string
	Desc     bool
}

// Parse lexes and parses input against the columns of s. An empty input is
// the empty query.
func Parse(s *schema.Schema, input string) (Query, error) {
	tokens, lexErrs := NewLexer(input).Tokenize()
	if len(lexErrs) > 0 {
		return Query{}, errors.Join(lexErrs...)
	}
	p := NewParser(s, tokens)
	q, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		errs := make([]error, len(parseErrs))
		for i, e := range parseErrs {
			errs[i] = e
		}
		return Query{}, errors.Join(errs...)
	}
	return q, nil
}

// Parser is a recursive descent parser over a token slice.
type Parser struct {
	schema *schema.Schema
	tokens []Token
	pos    int
	errors []*ParseError
	query  Query
}

// NewParser creates a parser from a token slice (typically from
// Lexer.Tokenize).
func NewParser(s *schema.Schema, tokens []Token) *Parser {
	return &Parser{schema: s, tokens: tokens}
}

// Parse parses the whole token stream. Parsing stops at the first error.
func (p *Parser) Parse() (Query, []*ParseError) {
	p.query = Query{Criteria: table.Criteria{}}
	if !p.atEnd() && !p.check(TokenOrder) {
		p.parseCondition()
		for len(p.errors) == 0 {
			if _, ok := p.match(TokenAnd); !ok {
				break
			}
			p.parseCondition()
		}
	}
	if len(p.errors) == 0 && p.check(TokenOrder) {
		p.parseOrderBy()
	}
	if len(p.errors) == 0 && !p.atEnd() {
		tok := p.peek()
		p.addError(tok, fmt.Sprintf("unexpected %s %q", tok.Type, tok.Literal), "")
	}
	return p.query, p.errors
}

// ── Token navigation ────────────────────────────────────────────────────────

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool { return p.peek().Type == TokenEOF }

func (p *Parser) check(t TokenType) bool { return p.peek().Type == t }

func (p *Parser) match(types ...TokenType) (Token, bool) {
	for _, t := range types {
		if p.check(t) {
			return p.advance(), true
		}
	}
	return Token{}, false
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected %s, got %s", t, tok.Type), "")
	return tok, false
}

func (p *Parser) addError(tok Token, msg, suggestion string) {
	p.errors = append(p.errors, &ParseError{Message: msg, Col: tok.Col, Pos: tok.Pos, Suggestion: suggestion})
}

// ── Clauses ─────────────────────────────────────────────────────────────────

func (p *Parser) column() (schema.FieldSpec, Token, bool) {
	tok, ok := p.expect(TokenIdent)
	if !ok {
		return schema.FieldSpec{}, tok, false
	}
	f, found := p.schema.Field(tok.Literal)
	if !found {
		p.addError(tok, fmt.Sprintf("unknown column %q", tok.Literal), SuggestFrom(tok.Literal, p.schema.Names(), 3))
		return schema.FieldSpec{}, tok, false
	}
	return f, tok, true
}

func (p *Parser) parseCondition() {
	f, colTok, ok := p.column()
	if !ok {
		return
	}

	op := p.peek()
	switch op.Type {
	case TokenEQ:
		p.advance()
		p.parseEquals(f, colTok)
	case TokenBetween:
		p.advance()
		lo, ok := p.date(f)
		if !ok {
			return
		}
		if _, ok := p.expect(TokenAnd); !ok {
			return
		}
		hi, ok := p.date(f)
		if !ok {
			return
		}
		p.setRange(f, colTok, &lo, &hi)
	case TokenGTE:
		p.advance()
		if lo, ok := p.date(f); ok {
			p.setRange(f, colTok, &lo, nil)
		}
	case TokenLTE:
		p.advance()
		if hi, ok := p.date(f); ok {
			p.setRange(f, colTok, nil, &hi)
		}
	default:
		p.addError(op, fmt.Sprintf("expected =, between, >= or <= after %s, got %s", f.Name, op.Type), "")
	}
}

func (p *Parser) parseEquals(f schema.FieldSpec, colTok Token) {
	tok := p.advance()
	if !tok.Type.isValue() {
		p.addError(tok, fmt.Sprintf("expected a value for %s, got %s", f.Name, tok.Type), "")
		return
	}
	if f.Type == schema.FieldDate {
		d, err := schema.ParseDate(tok.Literal)
		if err != nil {
			p.addError(tok, fmt.Sprintf("%q is not a date (yyyy-mm-dd)", tok.Literal), "")
			return
		}
		p.setRange(f, colTok, &d, &d)
		return
	}
	if f.Type == schema.FieldEnum {
		if d, err := p.schema.Enum(f.Domain); err == nil && !d.Contains(tok.Literal) {
			p.addError(tok, fmt.Sprintf("%q is not a %s value", tok.Literal, f.Domain), SuggestFrom(tok.Literal, d.Values, 3))
			return
		}
	}
	if p.query.Criteria.Equals == nil {
		p.query.Criteria.Equals = map[string]string{}
	}
	if _, dup := p.query.Criteria.Equals[f.Name]; dup {
		p.addError(colTok, fmt.Sprintf("%s is compared more than once", f.Name), "")
		return
	}
	p.query.Criteria.Equals[f.Name] = tok.Literal
}

func (p *Parser) date(f schema.FieldSpec) (schema.Date, bool) {
	tok := p.advance()
	if f.Type != schema.FieldDate {
		p.addError(tok, fmt.Sprintf("%s is not a date column", f.Name), "")
		return schema.Date{}, false
	}
	if tok.Type != TokenDate && tok.Type != TokenString {
		p.addError(tok, fmt.Sprintf("expected a date, got %s", tok.Type), "")
		return schema.Date{}, false
	}
	d, err := schema.ParseDate(tok.Literal)
	if err != nil {
		p.addError(tok, fmt.Sprintf("%q is not a date (yyyy-mm-dd)", tok.Literal), "")
		return schema.Date{}, false
	}
	return d, true
}

// setRange narrows the range on f; an open side keeps its previous bound.
func (p *Parser) setRange(f schema.FieldSpec, colTok Token, lo, hi *schema.Date) {
	if p.query.Criteria.Ranges == nil {
		p.query.Criteria.Ranges = map[string]table.DateRange{}
	}
	r := p.query.Criteria.Ranges[f.Name]
	if lo != nil {
		r.From = *lo
	}
	if hi != nil {
		r.To = *hi
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		p.addError(colTok, fmt.Sprintf("empty date range on %s: %s after %s", f.Name, r.From, r.To), "")
		return
	}
	p.query.Criteria.Ranges[f.Name] = r
}

func (p *Parser) parseOrderBy() {
	p.advance()
	if _, ok := p.expect(TokenBy); !ok {
		return
	}
	f, _, ok := p.column()
	if !ok {
		return
	}
	p.query.Sort = f.Name
	if tok, ok := p.match(TokenAsc, TokenDesc); ok {
		p.query.Desc = tok.Type == TokenDesc
	}
}

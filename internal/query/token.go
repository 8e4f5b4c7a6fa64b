// Package query implements the lexer and parser of the list filter
// language. A query is a conjunction of conditions with an optional sort:
//
//	UseStatus = USING and type = pc and Checkdate between 2024-01-01 and 2024-06-30 order by Usedcount desc
//
// Conditions compile to the table's structured criteria, which are pushed
// down to the row store.
package query

import "strings"

// TokenType identifies the kind of lexical token.
type TokenType int

const (
	TokenEOF    TokenType = iota
	TokenIdent            // column name or bare value
	TokenString           // "quoted" or 'quoted'
	TokenInt              // 123
	TokenDate             // 2024-01-31

	TokenEQ  // =
	TokenGTE // >=
	TokenLTE // <=

	TokenAnd
	TokenBetween
	TokenOrder
	TokenBy
	TokenAsc
	TokenDesc
)

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of query"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenInt:
		return "integer"
	case TokenDate:
		return "date"
	case TokenEQ:
		return "="
	case TokenGTE:
		return ">="
	case TokenLTE:
		return "<="
	case TokenAnd:
		return "and"
	case TokenBetween:
		return "between"
	case TokenOrder:
		return "order"
	case TokenBy:
		return "by"
	case TokenAsc:
		return "asc"
	case TokenDesc:
		return "desc"
	default:
		return "unknown"
	}
}

// Token is one lexical token of a query.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset
	Col     int // 1-based column
}

var keywords = map[string]TokenType{
	"and":     TokenAnd,
	"between": TokenBetween,
	"order":   TokenOrder,
	"by":      TokenBy,
	"asc":     TokenAsc,
	"desc":    TokenDesc,
}

// LookupKeyword returns the keyword token type for an identifier, or
// TokenIdent. Lookup is case-insensitive.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdent
}

// isValue reports whether t can stand for a compared value.
func (t TokenType) isValue() bool {
	switch t {
	case TokenIdent, TokenString, TokenInt, TokenDate:
		return true
	}
	return false
}

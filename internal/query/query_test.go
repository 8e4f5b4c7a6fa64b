package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/table"
)

func jigSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Jig()
	require.NoError(t, err)
	return s.WithDomains(
		schema.EnumeratedDomain{Name: schema.DomainJigType, Values: schema.DefaultDomains[schema.DomainJigType]},
		schema.EnumeratedDomain{Name: schema.DomainJigUseStatus, Values: schema.DefaultDomains[schema.DomainJigUseStatus]},
	)
}

func date(y, m, d int) schema.Date { return schema.Date{Year: y, Month: time.Month(m), Day: d} }

func TestLexer_Tokens(t *testing.T) {
	tokens, errs := NewLexer(`UseStatus = USING AND Checkdate >= 2024-01-31 order by no DESC "a b"`).Tokenize()
	require.Empty(t, errs)

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenIdent, TokenEQ, TokenIdent, TokenAnd, TokenIdent, TokenGTE, TokenDate,
		TokenOrder, TokenBy, TokenIdent, TokenDesc, TokenString, TokenEOF,
	}, types)
	assert.Equal(t, "2024-01-31", tokens[6].Literal)
	assert.Equal(t, "a b", tokens[11].Literal)
	assert.Equal(t, 19, tokens[3].Col)
}

func TestLexer_Errors(t *testing.T) {
	_, errs := NewLexer(`name = "open`).Tokenize()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unterminated string")

	_, errs = NewLexer(`name ! x`).Tokenize()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unexpected character")
}

func TestParse(t *testing.T) {
	s := jigSchema(t)
	cases := []struct {
		name  string
		input string
		want  Query
	}{
		{"empty", "  ", Query{Criteria: table.Criteria{}}},
		{
			"equals",
			"UseStatus = USING and type = 'pc'",
			Query{Criteria: table.Criteria{Equals: map[string]string{"UseStatus": "USING", "type": "pc"}}},
		},
		{
			"between",
			"Checkdate between 2024-01-01 and 2024-06-30",
			Query{Criteria: table.Criteria{Ranges: map[string]table.DateRange{
				"Checkdate": {From: date(2024, 1, 1), To: date(2024, 6, 30)},
			}}},
		},
		{
			"half open bounds merge",
			"Makedate >= 2023-03-01 and Makedate <= 2023-12-31",
			Query{Criteria: table.Criteria{Ranges: map[string]table.DateRange{
				"Makedate": {From: date(2023, 3, 1), To: date(2023, 12, 31)},
			}}},
		},
		{
			"date equality is a one-day range",
			"Makedate = 2023-03-01",
			Query{Criteria: table.Criteria{Ranges: map[string]table.DateRange{
				"Makedate": {From: date(2023, 3, 1), To: date(2023, 3, 1)},
			}}},
		},
		{
			"order only",
			"order by Usedcount desc",
			Query{Criteria: table.Criteria{}, Sort: "Usedcount", Desc: true},
		},
		{
			"filter and order",
			"no = J-7 order by name",
			Query{Criteria: table.Criteria{Equals: map[string]string{"no": "J-7"}}, Sort: "name"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(s, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	s := jigSchema(t)
	cases := []struct {
		input      string
		message    string
		suggestion string
	}{
		{"Usedcont = 3", `unknown column "Usedcont"`, "did you mean 'Usedcount'?"},
		{"UseStatus = USNG", `"USNG" is not a JigUseStatus value`, "did you mean 'USING'?"},
		{"name between 2024-01-01 and 2024-02-01", "name is not a date column", ""},
		{"Checkdate between 2024-02-01 and 2024-01-01", "empty date range on Checkdate", ""},
		{"Checkdate >= 2024-13-01", `"2024-13-01" is not a date`, ""},
		{"name = a and name = b", "name is compared more than once", ""},
		{"name a", "expected =, between, >= or <= after name", ""},
		{"name = a order Usedcount", "expected by", ""},
		{"name = a b", `unexpected identifier "b"`, ""},
		{"name =", "expected a value for name", ""},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			_, err := Parse(s, tc.input)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Contains(t, pe.Message, tc.message)
			assert.Equal(t, tc.suggestion, pe.Suggestion)
		})
	}
}

func TestSuggestFrom(t *testing.T) {
	assert.Equal(t, "did you mean 'Checkdate'?", SuggestFrom("checkdate", []string{"Checkdate", "Makedate"}, 2))
	assert.Equal(t, "", SuggestFrom("zzzzzz", []string{"name"}, 2))
	assert.Equal(t, "did you mean 'Makedate'?", SuggestFrom("MAKEDATE", []string{"Checkdate", "Makedate"}, 0))
	assert.Equal(t, "did you mean 'USING'?", SuggestFrom("usng", []string{"USING", "USED"}, 2))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 3, Levenshtein("", "jig"))
	assert.Equal(t, 1, Levenshtein("jäg", "jag"))
}

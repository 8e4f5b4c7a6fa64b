package query

import (
	"fmt"
	"strings"
)

// ParseError is a parse failure with its position and an optional
// suggestion.
type ParseError struct {
	Message    string
	Col        int
	Pos        int
	Suggestion string // "did you mean 'Usedcount'?" or ""
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("col %d: %s", e.Col, e.Message)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	// row[j] holds the distance between the consumed prefix of ra and rb[:j].
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1
		for j, cb := range rb {
			sub := diag
			if ca != cb {
				sub++
			}
			diag = row[j+1]
			row[j+1] = min(row[j]+1, row[j+1]+1, sub)
		}
	}
	return row[len(rb)]
}

// SuggestFrom names the candidate closest to input, ignoring case, when it
// lies within maxDist edits. Earlier candidates win ties.
func SuggestFrom(input string, candidates []string, maxDist int) string {
	folded := strings.ToLower(input)
	best, bestDist := -1, maxDist
	for i, c := range candidates {
		d := Levenshtein(folded, strings.ToLower(c))
		if d < bestDist || (best < 0 && d == bestDist) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return ""
	}
	return fmt.Sprintf("did you mean '%s'?", candidates[best])
}

package similarity

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/xrash/smetrics"
)

// Scorer rates how alike two strings are. Higher means more similar; the
// scale is defined by the scorer.
type Scorer func(a, b string) float64

// CloseMatchRatio is the sequence-matcher similarity 2*M/T on a 0..1 scale,
// where M is the number of matched characters and T the total length of
// both strings. Two empty strings score 1.
func CloseMatchRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(chars(a), chars(b))
	return m.Ratio()
}

// EditRatio is an edit-distance similarity on a 0..100 scale (100 means
// identical), measured in characters. Insertions and deletions cost 1 and
// substitutions cost 2, so the score is
// round(100 * (len(a)+len(b)-d) / (len(a)+len(b))).
// An empty operand scores 0.
func EditRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	total := len(ra) + len(rb)
	return math.Round(100 * float64(total-editDistance(ra, rb)) / float64(total))
}

// editDistance runs smetrics over single-byte symbols, one per distinct
// rune, since smetrics compares bytes. Pairs with more distinct runes than
// a byte can encode use runeDistance.
func editDistance(a, b []rune) int {
	symbols := make(map[rune]byte)
	encode := func(rs []rune) ([]byte, bool) {
		out := make([]byte, len(rs))
		for i, r := range rs {
			sym, ok := symbols[r]
			if !ok {
				if len(symbols) > math.MaxUint8 {
					return nil, false
				}
				sym = byte(len(symbols))
				symbols[r] = sym
			}
			out[i] = sym
		}
		return out, true
	}

	ea, ok := encode(a)
	if !ok {
		return runeDistance(a, b)
	}
	eb, ok := encode(b)
	if !ok {
		return runeDistance(a, b)
	}
	return smetrics.WagnerFischer(string(ea), string(eb), 1, 1, 2)
}

// runeDistance is Wagner-Fischer over runes with costs 1/1/2.
func runeDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub += 2
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// NormalizeSeparators replaces underscores and hyphens with spaces so that
// "needs-review" and "needs_review" compare as "needs review".
func NormalizeSeparators(s string) string {
	return separatorReplacer.Replace(s)
}

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ")

func chars(s string) []string {
	return strings.Split(s, "")
}

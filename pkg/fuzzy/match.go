// Package fuzzy scores free-text queries against track titles and artist names.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum score a field must reach to count as a match.
const DefaultThreshold = 0.75

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]`)
	versionRegex    = regexp.MustCompile(`(?i)\s*-\s*(?:\d{4}\s+)?(?:remaster(?:ed)?|radio edit|live|mono|stereo)\b.*$`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize folds case, strips diacritics and replaces punctuation with spaces.
func Normalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(strings.ToLower(text))
}

// NormalizeTitle drops featured artists and version suffixes before normalizing.
func NormalizeTitle(title string) string {
	title = featRegex.ReplaceAllString(title, "")
	title = versionRegex.ReplaceAllString(title, "")
	return Normalize(title)
}

// Score returns how well query matches the best of fields, from 0 to 1. A field containing
// the whole query scores 1, otherwise the better of token prefix coverage and subsequence
// similarity is used.
func Score(query string, fields ...string) float64 {
	q := Normalize(query)
	if q == "" {
		return 0
	}
	queryTokens := strings.Fields(q)

	best := 0.0
	for _, field := range fields {
		f := Normalize(field)
		if f == "" {
			continue
		}
		if strings.Contains(f, q) {
			return 1
		}
		best = max(best, tokenCoverage(queryTokens, strings.Fields(f)), Similarity(q, f))
	}
	return best
}

// Matches reports whether query reaches DefaultThreshold against any field.
func Matches(query string, fields ...string) bool {
	return Score(query, fields...) >= DefaultThreshold
}

// Similarity is the longest common subsequence of a and b relative to the longer one.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return float64(longestCommonSubsequence(ra, rb)) / float64(max(len(ra), len(rb)))
}

func tokenCoverage(query, field []string) float64 {
	if len(query) == 0 {
		return 0
	}
	found := 0
	for _, q := range query {
		for _, f := range field {
			if strings.HasPrefix(f, q) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(query))
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

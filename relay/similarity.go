package relay

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Similarity scores how close two utterances are, from 0 (unrelated) to 1
// (identical). Both strings are canonicalized before comparison so that
// punctuation, casing and Unicode composition differences do not count
// against the score. Works on runes, so CJK, Arabic and other non-Latin
// scripts compare correctly.
func Similarity(a, b string) float64 {
	na := []rune(normalizeText(a))
	nb := []rune(normalizeText(b))

	if string(na) == string(nb) {
		return 1.0
	}
	if len(na) == 0 || len(nb) == 0 {
		return 0.0
	}

	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	return 1.0 - float64(levenshtein(na, nb))/float64(longest)
}

// normalizeText applies Unicode canonical composition, lowercases and strips
// punctuation and symbol runes. Letters of every script are preserved.
func normalizeText(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein computes the edit distance between two rune slices with the
// standard two-row dynamic program.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("hello world", "hello world"))
}

func TestSimilarityCaseAndPunctuationInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Hello, world!", "hello world"))
	assert.Equal(t, 1.0, Similarity("What time is it?", "what time is it"))
}

func TestSimilarityWhitespaceCollapsed(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("  hello   world  ", "hello world"))
}

func TestSimilarityEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("hello", ""))
	assert.Equal(t, 0.0, Similarity("", "hello"))
	// punctuation-only strings normalize to empty
	assert.Equal(t, 1.0, Similarity("!!!", "???"))
}

func TestSimilarityUnrelated(t *testing.T) {
	s := Similarity("completely different", "zzzzzz")
	assert.Less(t, s, 0.3)
}

func TestSimilarityNearDuplicate(t *testing.T) {
	s := Similarity("sixteen people killed", "sixteen people were killed")
	assert.GreaterOrEqual(t, s, 0.8)
	assert.Less(t, s, 1.0)
}

func TestSimilarityNonLatinScripts(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("こんにちは世界", "こんにちは世界"))
	s := Similarity("こんにちは世界", "こんばんは世界")
	assert.Greater(t, s, 0.5)
	assert.Less(t, s, 1.0)
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "meet me at the station", "meet me at the park"
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein([]rune("abc"), []rune("abc")))
	assert.Equal(t, 1, levenshtein([]rune("abc"), []rune("abd")))
	assert.Equal(t, 3, levenshtein([]rune("abc"), []rune("")))
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
}

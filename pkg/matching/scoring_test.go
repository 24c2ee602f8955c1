package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinkler(t *testing.T) {
	s := NewScorer()

	t.Run("Identical", func(t *testing.T) {
		assert.Equal(t, 1.0, s.JaroWinkler("martha", "martha"))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0.0, s.JaroWinkler("martha", ""))
	})

	t.Run("CloseNames", func(t *testing.T) {
		sim := s.JaroWinkler("martha", "marhta")
		assert.InDelta(t, 0.961, sim, 0.001)
	})

	t.Run("PrefixBoost", func(t *testing.T) {
		withPrefix := s.JaroWinkler("johnson", "johnsen")
		noPrefix := s.Jaro("johnson", "johnsen")
		assert.Greater(t, withPrefix, noPrefix)
	})

	t.Run("Unrelated", func(t *testing.T) {
		assert.Less(t, s.JaroWinkler("smith", "nguyen"), 0.6)
	})
}

func TestNameSimilarity(t *testing.T) {
	s := NewScorer()

	t.Run("TokenOrderIgnored", func(t *testing.T) {
		assert.InDelta(t, 1.0, s.NameSimilarity("Pat Lee", "Lee Pat"), 0.001)
	})

	t.Run("SuffixIgnored", func(t *testing.T) {
		assert.Equal(t, 1.0, s.NameSimilarity("Robert Smith Jr.", "Robert Smith"))
	})

	t.Run("EmptyIsZero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.NameSimilarity("", "Robert Smith"))
	})

	t.Run("TypoStillHigh", func(t *testing.T) {
		assert.Greater(t, s.NameSimilarity("Jon Smith", "John Smith"), 0.9)
	})
}

func TestLevenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
	assert.InDelta(t, 1.0-3.0/7.0, s.Levenshtein("kitten", "sitting"), 0.001)
}

func TestSoundex(t *testing.T) {
	s := NewScorer()

	t.Run("ClassicEncodings", func(t *testing.T) {
		assert.Equal(t, "R163", s.Soundex("Robert"))
		assert.Equal(t, "R163", s.Soundex("Rupert"))
		assert.Equal(t, "S530", s.Soundex("Smith"))
		assert.Equal(t, "S530", s.Soundex("Smyth"))
	})

	t.Run("Match", func(t *testing.T) {
		assert.Equal(t, 1.0, s.SoundexMatch("Smith", "Smyth"))
		assert.Equal(t, 0.0, s.SoundexMatch("Smith", "Jones"))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", s.Soundex(""))
	})
}

func TestExactMatch(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 1.0, s.ExactMatch("ABC", "abc", false))
	assert.Equal(t, 0.0, s.ExactMatch("ABC", "abc", true))
}

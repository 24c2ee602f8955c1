package matching

import (
	"sort"
	"strings"
	"unicode"

	"github.com/harborpaws/resolve/pkg/normalizers"
)

// Scorer provides the string comparison algorithms used for candidate
// evaluation and blocking keys
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// NameSimilarity compares two person names after normalization. Token order
// is ignored ("Lee, Pat" vs "Pat Lee"); the score is the better of the
// direct and the token-sorted Jaro-Winkler comparison.
func (s *Scorer) NameSimilarity(a, b string) float64 {
	na := normalizers.NormalizeName(a)
	nb := normalizers.NormalizeName(b)
	if na == "" || nb == "" {
		return 0.0
	}
	direct := s.JaroWinkler(na, nb)

	ta := strings.Fields(na)
	tb := strings.Fields(nb)
	sort.Strings(ta)
	sort.Strings(tb)
	sorted := s.JaroWinkler(strings.Join(ta, " "), strings.Join(tb, " "))

	if sorted > direct {
		return sorted
	}
	return direct
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings.
// Returns a value between 0.0 (no similarity) and 1.0 (exact match).
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Levenshtein returns a similarity score between 0.0 and 1.0 based on edit
// distance
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// Soundex calculates the Soundex encoding of a string
func (s *Scorer) Soundex(str string) string {
	if len(str) == 0 {
		return ""
	}

	str = strings.ToUpper(str)

	result := string(str[0])
	prevCode := soundexCode(rune(str[0]))

	for i := 1; i < len(str) && len(result) < 4; i++ {
		char := rune(str[i])
		if !unicode.IsLetter(char) {
			continue
		}

		code := soundexCode(char)
		if code != "0" && code != prevCode {
			result += code
		}
		prevCode = code
	}

	for len(result) < 4 {
		result += "0"
	}

	return result
}

// SoundexMatch returns 1.0 if Soundex codes match, 0.0 otherwise
func (s *Scorer) SoundexMatch(a, b string) float64 {
	if s.Soundex(a) == s.Soundex(b) {
		return 1.0
	}
	return 0.0
}

func soundexCode(char rune) string {
	switch char {
	case 'B', 'F', 'P', 'V':
		return "1"
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return "2"
	case 'D', 'T':
		return "3"
	case 'L':
		return "4"
	case 'M', 'N':
		return "5"
	case 'R':
		return "6"
	default:
		return "0"
	}
}

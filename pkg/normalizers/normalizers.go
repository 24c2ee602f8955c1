// Package normalizers provides the value normalization used for identifier
// storage, blocking keys, and match comparison
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("nname", NormalizeName)
	Register("naddress", NormalizeAddress)
	Register("nzip", NormalizeZipCode)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizePhone reduces a phone number to its digits and strips a leading
// US country code
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	return digits
}

// UsablePhone reports whether a normalized phone has enough digits to serve
// as exact-match evidence
func UsablePhone(normalized string) bool {
	return len(normalized) >= 10
}

// AreaCode returns the first three digits of a usable normalized phone
func AreaCode(normalized string) string {
	if len(normalized) < 3 {
		return ""
	}
	return normalized[:3]
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName normalizes a person's name for matching: lowercase, common
// suffixes dropped, punctuation removed, whitespace collapsed
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	suffixes := []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md", " dvm"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeZipCode normalizes a US zip code
func NormalizeZipCode(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 9 {
		return digits[:5]
	}
	if len(digits) == 5 {
		return digits
	}
	return ""
}

var streetAbbreviations = map[string]string{
	" street":    " st",
	" avenue":    " ave",
	" boulevard": " blvd",
	" drive":     " dr",
	" road":      " rd",
	" lane":      " ln",
	" court":     " ct",
	" circle":    " cir",
	" place":     " pl",
	" north":     " n",
	" south":     " s",
	" east":      " e",
	" west":      " w",
}

var unitSuffixRe = regexp.MustCompile(`\s+(apt|apartment|unit|suite|ste|#)\s*\S*$`)
var spaceRe = regexp.MustCompile(`\s+`)
var houseNumberRe = regexp.MustCompile(`^(\d+)\b`)

// NormalizeAddress canonicalizes a street address: lowercase, abbreviated
// street types, unit designators stripped, whitespace collapsed. Two unit
// numbers at the same street address normalize to the same string; unit
// distinctions belong to household modeling, not identity.
func NormalizeAddress(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", " ")

	for full, abbr := range streetAbbreviations {
		s = strings.ReplaceAll(s, full, abbr)
	}

	s = unitSuffixRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// HouseNumber extracts the leading house number from a raw or normalized
// address, or "" when there is none
func HouseNumber(s string) string {
	m := houseNumberRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	return m[1]
}

// MergeSafeAddress reports whether two addresses may count as the same place.
// The normalized strings must agree and so must the house numbers; differing
// house numbers veto the match regardless of how similar the rest looks.
func MergeSafeAddress(a, b string) bool {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	if na == "" || nb == "" || na != nb {
		return false
	}
	return HouseNumber(na) == HouseNumber(nb)
}

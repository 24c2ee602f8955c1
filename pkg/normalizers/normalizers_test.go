package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	t.Run("StripsFormatting", func(t *testing.T) {
		assert.Equal(t, "5035551234", NormalizePhone("(503) 555-1234"))
		assert.Equal(t, "5035551234", NormalizePhone("503.555.1234"))
	})

	t.Run("StripsCountryCode", func(t *testing.T) {
		assert.Equal(t, "5035551234", NormalizePhone("+1 503 555 1234"))
		assert.Equal(t, "5035551234", NormalizePhone("15035551234"))
	})

	t.Run("KeepsShortNumbers", func(t *testing.T) {
		assert.Equal(t, "5551234", NormalizePhone("555-1234"))
	})
}

func TestUsablePhone(t *testing.T) {
	assert.True(t, UsablePhone("5035551234"))
	assert.False(t, UsablePhone("5551234"))
	assert.False(t, UsablePhone(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}

func TestNormalizeName(t *testing.T) {
	t.Run("DropsSuffixes", func(t *testing.T) {
		assert.Equal(t, "robert smith", NormalizeName("Robert Smith Jr."))
		assert.Equal(t, "robert smith", NormalizeName("Robert Smith III"))
	})

	t.Run("StripsPunctuationAndCollapsesSpaces", func(t *testing.T) {
		assert.Equal(t, "maryanne oconnor", NormalizeName("Mary-Anne   O'Connor"))
	})
}

func TestNormalizeZipCode(t *testing.T) {
	assert.Equal(t, "97201", NormalizeZipCode("97201"))
	assert.Equal(t, "97201", NormalizeZipCode("97201-1234"))
	assert.Equal(t, "", NormalizeZipCode("972"))
	assert.Equal(t, "", NormalizeZipCode("not a zip"))
}

func TestNormalizeAddress(t *testing.T) {
	t.Run("AbbreviatesStreetTypes", func(t *testing.T) {
		assert.Equal(t, "123 main st", NormalizeAddress("123 Main Street"))
		assert.Equal(t, "456 oak ave", NormalizeAddress("456 Oak Avenue"))
	})

	t.Run("StripsUnitDesignators", func(t *testing.T) {
		assert.Equal(t, NormalizeAddress("123 Main St"), NormalizeAddress("123 Main Street Apt 4B"))
		assert.Equal(t, NormalizeAddress("123 Main St"), NormalizeAddress("123 Main St Unit 12"))
	})

	t.Run("StripsPeriodsAndCommas", func(t *testing.T) {
		assert.Equal(t, "123 n main st portland", NormalizeAddress("123 N. Main St., Portland"))
	})
}

func TestHouseNumber(t *testing.T) {
	assert.Equal(t, "123", HouseNumber("123 Main St"))
	assert.Equal(t, "", HouseNumber("Main St"))
}

func TestMergeSafeAddress(t *testing.T) {
	t.Run("SameStreetSameNumber", func(t *testing.T) {
		assert.True(t, MergeSafeAddress("123 Main Street", "123 Main St"))
	})

	t.Run("DifferentHouseNumbersNeverMerge", func(t *testing.T) {
		assert.False(t, MergeSafeAddress("123 Main St", "125 Main St"))
	})

	t.Run("UnitsAtSameAddressAgree", func(t *testing.T) {
		assert.True(t, MergeSafeAddress("123 Main St Apt 1", "123 Main St Apt 2"))
	})

	t.Run("EmptyNeverMerges", func(t *testing.T) {
		assert.False(t, MergeSafeAddress("", "123 Main St"))
	})
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "hello", ApplyChain("  HELLO  ", "trim", "lowercase"))
	assert.Equal(t, "unchanged", Apply("unchanged", "no-such-normalizer"))
}

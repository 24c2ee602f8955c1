package merging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLockKey(t *testing.T) {
	t.Run("DirectionInvariant", func(t *testing.T) {
		assert.Equal(t, mergeLockKey("a", "b"), mergeLockKey("b", "a"))
	})

	t.Run("DistinctPairsDistinctKeys", func(t *testing.T) {
		assert.NotEqual(t, mergeLockKey("a", "b"), mergeLockKey("a", "c"))
	})

	t.Run("Format", func(t *testing.T) {
		assert.Equal(t, "merge:a:b", mergeLockKey("b", "a"))
	})
}

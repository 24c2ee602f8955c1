package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSignalSetBestName(t *testing.T) {
	assert.Equal(t, "Pat Lee", (&SignalSet{FullName: strPtr("Pat Lee")}).BestName())
	assert.Equal(t, "Pat Lee", (&SignalSet{FirstName: strPtr("Pat"), LastName: strPtr("Lee")}).BestName())
	assert.Equal(t, "Lee", (&SignalSet{LastName: strPtr("Lee")}).BestName())
	assert.Equal(t, "", (&SignalSet{}).BestName())
}

func TestSignalSetHasUsableIdentifier(t *testing.T) {
	assert.True(t, (&SignalSet{Phone: strPtr("5035551234")}).HasUsableIdentifier())
	assert.True(t, (&SignalSet{Email: strPtr("pat@example.com")}).HasUsableIdentifier())
	assert.True(t, (&SignalSet{ExternalID: strPtr("A-1")}).HasUsableIdentifier())
	assert.True(t, (&SignalSet{FullName: strPtr("Pat Lee"), Address: strPtr("123 Main St")}).HasUsableIdentifier())
	assert.False(t, (&SignalSet{FullName: strPtr("Pat Lee")}).HasUsableIdentifier())
	assert.False(t, (&SignalSet{Address: strPtr("123 Main St")}).HasUsableIdentifier())
}

func TestMatchConfigParseWeights(t *testing.T) {
	cfg := &MatchConfig{Weights: json.RawMessage(`[
		{"field": "phone", "agree_weight": 10, "disagree_weight": -1.5, "agree_threshold": 1, "disagree_threshold": 1}
	]`)}

	weights, err := cfg.ParseWeights()
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.Equal(t, "phone", weights[0].Field)
	assert.Equal(t, 10.0, weights[0].AgreeWeight)

	cfg.Weights = json.RawMessage(`{`)
	_, err = cfg.ParseWeights()
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		err := &ValidationError{Reason: "missing signals"}
		assert.True(t, IsValidationError(err))
		assert.False(t, IsTransient(err))
	})

	t.Run("MergeConflictCarriesCanonical", func(t *testing.T) {
		err := &MergeConflict{PersonID: "a", CanonicalID: "b"}
		assert.True(t, IsMergeConflict(err))
		assert.Contains(t, err.Error(), "b")
	})

	t.Run("TransientUnwraps", func(t *testing.T) {
		cause := assert.AnError
		err := &TransientFailure{Op: "matching.GetActive", Err: cause}
		assert.True(t, IsTransient(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("TransientSurvivesWrapping", func(t *testing.T) {
		err := fmt.Errorf("processing record: %w", &TransientFailure{Op: "db", Err: assert.AnError})
		assert.True(t, IsTransient(err))
	})

	t.Run("ConcurrencyConflictIsRetryable", func(t *testing.T) {
		err := &ConcurrencyConflict{Key: "merge:a:b"}
		assert.True(t, IsConcurrencyConflict(err))
		assert.False(t, IsMergeConflict(err))
		assert.Contains(t, err.Error(), "merge:a:b")
	})

	t.Run("InvariantViolation", func(t *testing.T) {
		err := &InvariantViolation{Detail: "merge pointer cycle at person x"}
		assert.True(t, IsInvariantViolation(err))
		assert.False(t, IsMergeConflict(err))
	})
}

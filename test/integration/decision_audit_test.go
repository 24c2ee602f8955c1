package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborpaws/resolve/pkg/models"
)

func TestDecisionAuditRow(t *testing.T) {
	t.Run("BreakdownSurvivesStorageRoundTrip", func(t *testing.T) {
		sim := 0.93
		breakdown := models.ScoreBreakdown{
			MatchedOn: []string{"phone", "last_name"},
			Fields: []models.FieldScore{
				{Field: "phone", Weight: 10, Similarity: 1.0, Matched: true},
				{Field: "last_name", Weight: 3.2, Similarity: 0.93, Matched: true},
				{Field: "address", Missing: true},
			},
			Tier:           "scored",
			NameSimilarity: &sim,
			PhoneMatch:     true,
		}

		raw, err := json.Marshal(breakdown)
		require.NoError(t, err)

		decision := models.MatchDecision{
			ID:                  uuid.New().String(),
			SourceSystem:        "shelterluv",
			CandidatesEvaluated: 4,
			Score:               13.2,
			Probability:         0.9999,
			ScoreBreakdown:      raw,
			Outcome:             models.OutcomeAutoMatch,
			ConfigVersion:       1,
			ReviewStatus:        models.ReviewStatusNone,
		}

		var restored models.ScoreBreakdown
		require.NoError(t, json.Unmarshal(decision.ScoreBreakdown, &restored))
		assert.Equal(t, breakdown.MatchedOn, restored.MatchedOn)
		assert.Len(t, restored.Fields, 3)
		assert.True(t, restored.Fields[2].Missing)
		require.NotNil(t, restored.NameSimilarity)
		assert.InDelta(t, 0.93, *restored.NameSimilarity, 0.0001)
	})

	t.Run("ReviewPendingRowsEnterTheQueue", func(t *testing.T) {
		decision := models.MatchDecision{
			Outcome:      models.OutcomeReviewPending,
			ReviewStatus: models.ReviewStatusPending,
		}
		assert.Equal(t, models.ReviewStatusPending, decision.ReviewStatus)
		assert.Nil(t, decision.ResultingPersonID)
	})
}

func TestMatchConfigWeights(t *testing.T) {
	cfg := models.MatchConfig{
		Version: 3,
		Weights: json.RawMessage(`[
			{"field":"phone","agree_weight":10,"disagree_weight":-1.5,"agree_threshold":1,"disagree_threshold":1},
			{"field":"last_name","agree_weight":4,"disagree_weight":-3,"agree_threshold":0.92,"disagree_threshold":0.75}
		]`),
		UpperThreshold: 12,
		LowerThreshold: 5,
		IsActive:       true,
	}

	weights, err := cfg.ParseWeights()
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.Equal(t, "phone", weights[0].Field)
	assert.Equal(t, -3.0, weights[1].DisagreeWeight)
	assert.Greater(t, cfg.UpperThreshold, cfg.LowerThreshold)
}

func TestJobLeaseModel(t *testing.T) {
	t.Run("FreshClaimHoldsTheLease", func(t *testing.T) {
		worker := "worker-7f"
		expires := time.Now().Add(90 * time.Second)
		job := models.Job{
			ID:             uuid.New().String(),
			SourceSystem:   "petpoint",
			SourceTable:    "adopters",
			Status:         models.JobStatusProcessing,
			ClaimedBy:      &worker,
			LeaseExpiresAt: &expires,
			Attempts:       1,
			MaxAttempts:    3,
		}

		assert.True(t, job.LeaseExpiresAt.After(time.Now()))
		assert.Less(t, job.Attempts, job.MaxAttempts)
	})

	t.Run("ResultsAccumulatePerBatch", func(t *testing.T) {
		results := models.JobResults{
			RecordsProcessed: 250,
			RecordsFailed:    3,
			EntitiesCreated:  41,
			EntitiesMatched:  206,
			ReviewsQueued:    12,
		}

		raw, err := json.Marshal(results)
		require.NoError(t, err)

		var restored models.JobResults
		require.NoError(t, json.Unmarshal(raw, &restored))
		assert.Equal(t, 250, restored.RecordsProcessed)
		assert.Equal(t, 12, restored.ReviewsQueued)
	})
}

func TestMergePointerModel(t *testing.T) {
	canonical := models.Person{ID: uuid.New().String()}
	target := canonical.ID
	merged := models.Person{
		ID:                 uuid.New().String(),
		MergedIntoPersonID: &target,
	}

	assert.True(t, canonical.IsCanonical())
	assert.False(t, merged.IsCanonical())

	t.Run("UndoClearsThePointerOnly", func(t *testing.T) {
		merged.MergedIntoPersonID = nil
		assert.True(t, merged.IsCanonical())
	})
}

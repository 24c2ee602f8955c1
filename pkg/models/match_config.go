package models

import (
	"encoding/json"
	"time"
)

// FieldWeight holds the signed log-odds contributions for one compared field.
// Agreement adds AgreeWeight, disagreement adds DisagreeWeight (negative); a
// field missing on either side contributes nothing.
type FieldWeight struct {
	Field          string  `json:"field"`
	AgreeWeight    float64 `json:"agree_weight"`
	DisagreeWeight float64 `json:"disagree_weight"`
	// Similarity below which the field counts as a disagreement; between the
	// two cutoffs the contribution is scaled linearly.
	AgreeThreshold    float64 `json:"agree_threshold"`
	DisagreeThreshold float64 `json:"disagree_threshold"`
}

// MatchConfig is one immutable version of the matching configuration. Exactly
// one version is active at a time; every decision records the version that
// produced it.
type MatchConfig struct {
	Version                    int             `json:"version" db:"version"`
	Weights                    json.RawMessage `json:"weights" db:"weights"`
	UpperThreshold             float64         `json:"upper_threshold" db:"upper_threshold"`
	LowerThreshold             float64         `json:"lower_threshold" db:"lower_threshold"`
	HouseholdMinNameSimilarity float64         `json:"household_min_name_similarity" db:"household_min_name_similarity"`
	BlacklistMinNameSimilarity float64         `json:"blacklist_min_name_similarity" db:"blacklist_min_name_similarity"`
	MinNameLength              int             `json:"min_name_length" db:"min_name_length"`
	IsActive                   bool            `json:"is_active" db:"is_active"`
	CreatedAt                  time.Time       `json:"created_at" db:"created_at"`
}

// ParseWeights decodes the weights column
func (c *MatchConfig) ParseWeights() ([]FieldWeight, error) {
	var weights []FieldWeight
	if err := json.Unmarshal(c.Weights, &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

// CreateMatchConfigRequest inserts and activates a new configuration version
type CreateMatchConfigRequest struct {
	Weights                    []FieldWeight `json:"weights" validate:"required,dive"`
	UpperThreshold             float64       `json:"upper_threshold" validate:"required"`
	LowerThreshold             float64       `json:"lower_threshold" validate:"required"`
	HouseholdMinNameSimilarity float64       `json:"household_min_name_similarity"`
	BlacklistMinNameSimilarity float64       `json:"blacklist_min_name_similarity"`
	MinNameLength              int           `json:"min_name_length"`
}

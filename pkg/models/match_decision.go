package models

import (
	"encoding/json"
	"time"
)

// DecisionOutcome classifies one resolution attempt
type DecisionOutcome string

const (
	OutcomeAutoMatch       DecisionOutcome = "auto_match"
	OutcomeReviewPending   DecisionOutcome = "review_pending"
	OutcomeHouseholdMember DecisionOutcome = "household_member"
	OutcomeNewEntity       DecisionOutcome = "new_entity"
	OutcomeRejected        DecisionOutcome = "rejected"
)

// ReviewStatus tracks the human review workflow for ambiguous decisions
type ReviewStatus string

const (
	ReviewStatusNone     ReviewStatus = "none"
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
	ReviewStatusDeferred ReviewStatus = "deferred"
)

// ReviewOutcome is the action a reviewer applies to a pending decision
type ReviewOutcome string

const (
	ReviewOutcomeApprove      ReviewOutcome = "approve"
	ReviewOutcomeReject       ReviewOutcome = "reject"
	ReviewOutcomeMerge        ReviewOutcome = "merge"
	ReviewOutcomeKeepSeparate ReviewOutcome = "keep_separate"
	ReviewOutcomeDefer        ReviewOutcome = "defer"
)

// FieldScore is one compared field's contribution to the composite score
type FieldScore struct {
	Field      string  `json:"field"`
	Weight     float64 `json:"weight"`
	Similarity float64 `json:"similarity"`
	Matched    bool    `json:"matched"`
	Missing    bool    `json:"missing"`
}

// ScoreBreakdown is the audit evidence recorded with every decision
type ScoreBreakdown struct {
	MatchedOn      []string     `json:"matched_on,omitempty"`
	Fields         []FieldScore `json:"fields,omitempty"`
	Tier           string       `json:"tier,omitempty"`
	NameSimilarity *float64     `json:"name_similarity,omitempty"`
	PhoneMatch     bool         `json:"phone_match"`
	EmailMatch     bool         `json:"email_match"`
	AddressMatch   bool         `json:"address_match"`
	Blacklisted    []string     `json:"blacklisted,omitempty"`
	EarlyExit      string       `json:"early_exit,omitempty"`
}

// MatchDecision is the immutable audit row for one resolution attempt. Only
// the review_* columns may change after insert.
type MatchDecision struct {
	ID                  string          `json:"id" db:"id"`
	RawRecordID         *string         `json:"raw_record_id,omitempty" db:"raw_record_id"`
	SourceSystem        string          `json:"source_system" db:"source_system"`
	Signals             json.RawMessage `json:"signals" db:"signals"`
	CandidatesEvaluated int             `json:"candidates_evaluated" db:"candidates_evaluated"`
	TopCandidateID      *string         `json:"top_candidate_id,omitempty" db:"top_candidate_id"`
	Score               float64         `json:"score" db:"score"`
	Probability         float64         `json:"probability" db:"probability"`
	ScoreBreakdown      json.RawMessage `json:"score_breakdown" db:"score_breakdown"`
	Outcome             DecisionOutcome `json:"outcome" db:"outcome"`
	ResultingPersonID   *string         `json:"resulting_person_id,omitempty" db:"resulting_person_id"`
	ConfigVersion       int             `json:"config_version" db:"config_version"`
	ReviewStatus        ReviewStatus    `json:"review_status" db:"review_status"`
	ReviewedBy          *string         `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt          *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes         *string         `json:"review_notes,omitempty" db:"review_notes"`
	ProcessedAt         time.Time       `json:"processed_at" db:"processed_at"`
}

// ApplyReviewRequest resolves a pending decision
type ApplyReviewRequest struct {
	Outcome ReviewOutcome `json:"outcome" validate:"required,oneof=approve reject merge keep_separate defer"`
	Actor   string        `json:"actor"`
	Notes   *string       `json:"notes,omitempty"`
}

// MatchDecisionListResponse pages through decisions
type MatchDecisionListResponse struct {
	Items      []MatchDecision `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

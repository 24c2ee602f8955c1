package models

import (
	"time"
)

// JobStatus is the lifecycle state of a queued unit of work
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusLinking    JobStatus = "linking"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDead       JobStatus = "dead"
)

// JobResults carries per-batch bookkeeping, written on heartbeat and completion
type JobResults struct {
	RecordsProcessed int `json:"records_processed"`
	RecordsFailed    int `json:"records_failed"`
	EntitiesCreated  int `json:"entities_created"`
	EntitiesMatched  int `json:"entities_matched"`
	ReviewsQueued    int `json:"reviews_queued"`
}

// Job is a claimable, lease-protected batch of raw records. At most one worker
// holds an active claim; a stale heartbeat returns the job to queued.
type Job struct {
	ID             string     `json:"id" db:"id"`
	SourceSystem   string     `json:"source_system" db:"source_system"`
	SourceTable    string     `json:"source_table" db:"source_table"`
	Status         JobStatus  `json:"status" db:"status"`
	BatchSize      int        `json:"batch_size" db:"batch_size"`
	Attempts       int        `json:"attempts" db:"attempts"`
	MaxAttempts    int        `json:"max_attempts" db:"max_attempts"`
	ClaimedBy      *string    `json:"claimed_by,omitempty" db:"claimed_by"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	HeartbeatAt    *time.Time `json:"heartbeat_at,omitempty" db:"heartbeat_at"`
	Results        *string    `json:"results,omitempty" db:"results"`
	ErrorMessage   *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// EnqueueJobRequest creates a new queued job
type EnqueueJobRequest struct {
	SourceSystem string `json:"source_system" validate:"required"`
	SourceTable  string `json:"source_table" validate:"required"`
	BatchHint    int    `json:"batch_hint"`
}

// JobStatusCount is one row of the operator status query
type JobStatusCount struct {
	Status       JobStatus `json:"status" db:"status"`
	Count        int       `json:"count" db:"count"`
	OldestAgeSec *float64  `json:"oldest_age_seconds,omitempty" db:"oldest_age_seconds"`
}

package models

import (
	"encoding/json"
	"time"
)

// ProcessingState tracks where a raw record is in the resolution pipeline
type ProcessingState string

const (
	ProcessingStatePending   ProcessingState = "pending"
	ProcessingStateProcessed ProcessingState = "processed"
	ProcessingStateFailed    ProcessingState = "failed"
)

// RawRecord is one ingested payload from a source system. Rows are append-only;
// only processing_state, processed_at and error_message ever change.
type RawRecord struct {
	ID              string          `json:"id" db:"id"`
	SourceSystem    string          `json:"source_system" db:"source_system"`
	SourceTable     string          `json:"source_table" db:"source_table"`
	SourceRowID     string          `json:"source_row_id" db:"source_row_id"`
	SourceRowHash   string          `json:"source_row_hash" db:"source_row_hash"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	ProcessingState ProcessingState `json:"processing_state" db:"processing_state"`
	ReceivedAt      time.Time       `json:"received_at" db:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage    *string         `json:"error_message,omitempty" db:"error_message"`
}

// IngestRequest is the request pushed by source connectors
type IngestRequest struct {
	SourceSystem string          `json:"source_system" validate:"required"`
	SourceTable  string          `json:"source_table" validate:"required"`
	SourceRowID  string          `json:"source_row_id" validate:"required"`
	Payload      json.RawMessage `json:"payload" validate:"required"`
}

// IngestResponse reports the stored record and whether this payload version was
// seen before (re-ingest of an identical row is a no-op)
type IngestResponse struct {
	RawRecordID string `json:"raw_record_id"`
	Duplicate   bool   `json:"duplicate"`
}

package models

import (
	"time"
)

// MergeHistory is the audit row for one merge call. Undo annotates the row
// rather than deleting it.
type MergeHistory struct {
	ID                       string     `json:"id" db:"id"`
	SourcePersonID           string     `json:"source_person_id" db:"source_person_id"`
	TargetPersonID           string     `json:"target_person_id" db:"target_person_id"`
	Reason                   string     `json:"reason" db:"reason"`
	Actor                    string     `json:"actor" db:"actor"`
	TransferredIdentifiers   int        `json:"transferred_identifiers" db:"transferred_identifiers"`
	TransferredRelationships int        `json:"transferred_relationships" db:"transferred_relationships"`
	SkippedDuplicates        int        `json:"skipped_duplicates" db:"skipped_duplicates"`
	BackfilledFields         *string    `json:"backfilled_fields,omitempty" db:"backfilled_fields"`
	MergedAt                 time.Time  `json:"merged_at" db:"merged_at"`
	UndoneAt                 *time.Time `json:"undone_at,omitempty" db:"undone_at"`
	UndoneBy                 *string    `json:"undone_by,omitempty" db:"undone_by"`
}

// MergeResult summarizes a completed merge
type MergeResult struct {
	SourcePersonID           string   `json:"source_person_id"`
	TargetPersonID           string   `json:"target_person_id"`
	TransferredIdentifiers   int      `json:"transferred_identifiers"`
	TransferredRelationships int      `json:"transferred_relationships"`
	SkippedDuplicates        int      `json:"skipped_duplicates"`
	BackfilledFields         []string `json:"backfilled_fields,omitempty"`
	MergeHistoryID           string   `json:"merge_history_id"`
}

// MergeRequest asks to collapse source into target
type MergeRequest struct {
	TargetPersonID string `json:"target_person_id" validate:"required,uuid"`
	Reason         string `json:"reason" validate:"required"`
	// Falls back to the X-Actor header when absent
	Actor string `json:"actor"`
}

// UndoRequest reverses a merge pointer
type UndoRequest struct {
	Actor string `json:"actor"`
}

package models

import (
	"time"
)

// Relationship links a person to another record (an animal, a place, an
// appointment) supplied by a connector. Relationships move to the surviving
// person on merge.
type Relationship struct {
	ID           string    `json:"id" db:"id"`
	PersonID     string    `json:"person_id" db:"person_id"`
	Kind         string    `json:"kind" db:"kind"`
	RelatedType  string    `json:"related_type" db:"related_type"`
	RelatedID    string    `json:"related_id" db:"related_id"`
	SourceSystem string    `json:"source_system" db:"source_system"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

package models

import (
	"time"
)

// IdentifierKind is the type of a proof-of-identity value
type IdentifierKind string

const (
	IdentifierKindPhone      IdentifierKind = "phone"
	IdentifierKindEmail      IdentifierKind = "email"
	IdentifierKindExternalID IdentifierKind = "external_id"
)

// Identifier ties a typed identity value to one person. (kind,
// normalized_value) is unique among canonical owners unless the value is
// soft-blacklisted as shared.
type Identifier struct {
	ID              string         `json:"id" db:"id"`
	PersonID        string         `json:"person_id" db:"person_id"`
	Kind            IdentifierKind `json:"kind" db:"kind"`
	RawValue        string         `json:"raw_value" db:"raw_value"`
	NormalizedValue string         `json:"normalized_value" db:"normalized_value"`
	Confidence      float64        `json:"confidence" db:"confidence"`
	SourceSystem    string         `json:"source_system" db:"source_system"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// SignalSet is the extracted, normalized view of one raw record that the
// matching engine consumes. Missing fields are nil, never empty strings.
type SignalSet struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	FullName   *string `json:"full_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	ExternalID *string `json:"external_id,omitempty"`
	Address    *string `json:"address,omitempty"`
	Zip        *string `json:"zip,omitempty"`
}

// HasUsableIdentifier reports whether any field strong enough to anchor a
// match is present
func (s *SignalSet) HasUsableIdentifier() bool {
	return s.Phone != nil || s.Email != nil || s.ExternalID != nil ||
		(s.BestName() != "" && s.Address != nil)
}

// BestName returns the most complete name available from the signals
func (s *SignalSet) BestName() string {
	if s.FullName != nil {
		return *s.FullName
	}
	if s.FirstName != nil && s.LastName != nil {
		return *s.FirstName + " " + *s.LastName
	}
	if s.LastName != nil {
		return *s.LastName
	}
	if s.FirstName != nil {
		return *s.FirstName
	}
	return ""
}

// SourceContext identifies where a signal set came from
type SourceContext struct {
	SourceSystem string `json:"source_system"`
	SourceTable  string `json:"source_table"`
	RawRecordID  string `json:"raw_record_id"`
}

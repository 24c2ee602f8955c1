package models

import (
	"time"
)

// Household groups distinct people who share a place or contact identifier.
// Membership never implies identity; two members are never merged solely
// because of the shared identifier that put them here.
type Household struct {
	ID                   string          `json:"id" db:"id"`
	PlaceID              *string         `json:"place_id,omitempty" db:"place_id"`
	SharedIdentifierKind *IdentifierKind `json:"shared_identifier_kind,omitempty" db:"shared_identifier_kind"`
	SharedIdentifierVal  *string         `json:"shared_identifier_value,omitempty" db:"shared_identifier_value"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// HouseholdMember is one person's membership interval. Intervals close
// (valid_to set) rather than delete.
type HouseholdMember struct {
	ID             string     `json:"id" db:"id"`
	HouseholdID    string     `json:"household_id" db:"household_id"`
	PersonID       string     `json:"person_id" db:"person_id"`
	Role           string     `json:"role" db:"role"`
	Confidence     float64    `json:"confidence" db:"confidence"`
	EvidenceSource string     `json:"evidence_source" db:"evidence_source"`
	ValidFrom      time.Time  `json:"valid_from" db:"valid_from"`
	ValidTo        *time.Time `json:"valid_to,omitempty" db:"valid_to"`
}

// BlacklistEntry marks an identifier known to be shared by two or more
// distinct people. A blacklisted value may still support a match, but only
// with the corroboration the entry demands.
type BlacklistEntry struct {
	ID                  string         `json:"id" db:"id"`
	Kind                IdentifierKind `json:"kind" db:"kind"`
	NormalizedValue     string         `json:"normalized_value" db:"normalized_value"`
	DistinctOwnerCount  int            `json:"distinct_owner_count" db:"distinct_owner_count"`
	MinNameSimilarity   float64        `json:"min_name_similarity" db:"min_name_similarity"`
	RequireAddressMatch bool           `json:"require_address_match" db:"require_address_match"`
	Reason              *string        `json:"reason,omitempty" db:"reason"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// CreateBlacklistEntryRequest registers a shared identifier
type CreateBlacklistEntryRequest struct {
	Kind                IdentifierKind `json:"kind" validate:"required,oneof=phone email external_id"`
	Value               string         `json:"value" validate:"required"`
	MinNameSimilarity   float64        `json:"min_name_similarity"`
	RequireAddressMatch bool           `json:"require_address_match"`
	Reason              *string        `json:"reason,omitempty"`
}

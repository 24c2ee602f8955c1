package models

import (
	"time"
)

// Person is a canonical entity. A merged person keeps its row with
// merged_into_person_id pointing at the survivor; following those pointers to
// the terminal row yields the canonical person.
type Person struct {
	ID                 string     `json:"id" db:"id"`
	FirstName          *string    `json:"first_name,omitempty" db:"first_name"`
	LastName           *string    `json:"last_name,omitempty" db:"last_name"`
	DisplayName        string     `json:"display_name" db:"display_name"`
	HouseholdID        *string    `json:"household_id,omitempty" db:"household_id"`
	MergedIntoPersonID *string    `json:"merged_into_person_id,omitempty" db:"merged_into_person_id"`
	MergedAt           *time.Time `json:"merged_at,omitempty" db:"merged_at"`
	MergeReason        *string    `json:"merge_reason,omitempty" db:"merge_reason"`
	Version            int        `json:"version" db:"version"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// IsCanonical reports whether the person has not been merged away
func (p *Person) IsCanonical() bool {
	return p.MergedIntoPersonID == nil
}

// Place is a canonical location entity. Addresses are stored both raw and
// normalized; the house number is kept separately because two addresses with
// different house numbers are never the same place no matter how similar the
// rest of the string is.
type Place struct {
	ID                string     `json:"id" db:"id"`
	RawAddress        string     `json:"raw_address" db:"raw_address"`
	NormalizedAddress string     `json:"normalized_address" db:"normalized_address"`
	HouseNumber       *string    `json:"house_number,omitempty" db:"house_number"`
	City              *string    `json:"city,omitempty" db:"city"`
	State             *string    `json:"state,omitempty" db:"state"`
	Zip               *string    `json:"zip,omitempty" db:"zip"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	MergedIntoPlaceID *string    `json:"merged_into_place_id,omitempty" db:"merged_into_place_id"`
	MergedAt          *time.Time `json:"merged_at,omitempty" db:"merged_at"`
}

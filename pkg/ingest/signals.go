// Package ingest turns raw source payloads into stored records, queued work,
// and resolved identities.
package ingest

import (
	"encoding/json"
	"strings"

	"github.com/harborpaws/resolve/pkg/models"
)

// Payload field aliases, checked in order. Connectors map their source
// columns onto these before publishing.
var signalFields = map[string][]string{
	"first_name":  {"first_name", "firstname", "given_name"},
	"last_name":   {"last_name", "lastname", "surname", "family_name"},
	"full_name":   {"full_name", "name", "owner_name"},
	"phone":       {"phone", "phone_number", "primary_phone", "home_phone"},
	"email":       {"email", "email_address"},
	"external_id": {"external_id", "source_person_id", "customer_id"},
	"address":     {"address", "street_address", "address1"},
	"zip":         {"zip", "zipcode", "zip_code", "postal_code"},
}

// ExtractSignals pulls the matching engine's inputs out of a raw payload.
// Absent or blank fields stay nil so the scorer treats them as neutral.
func ExtractSignals(payload json.RawMessage) (*models.SignalSet, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, &models.ValidationError{Reason: "payload is not a JSON object"}
	}

	pick := func(field string) *string {
		for _, alias := range signalFields[field] {
			if v, ok := data[alias]; ok {
				if s, ok := v.(string); ok {
					s = strings.TrimSpace(s)
					if s != "" {
						return &s
					}
				}
			}
		}
		return nil
	}

	return &models.SignalSet{
		FirstName:  pick("first_name"),
		LastName:   pick("last_name"),
		FullName:   pick("full_name"),
		Phone:      pick("phone"),
		Email:      pick("email"),
		ExternalID: pick("external_id"),
		Address:    pick("address"),
		Zip:        pick("zip"),
	}, nil
}

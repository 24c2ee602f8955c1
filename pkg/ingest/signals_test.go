package ingest

import (
	"encoding/json"
	"testing"

	"github.com/harborpaws/resolve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSignals(t *testing.T) {
	t.Run("CanonicalFields", func(t *testing.T) {
		signals, err := ExtractSignals(json.RawMessage(`{
			"first_name": "Pat",
			"last_name": "Lee",
			"phone": "(503) 555-1234",
			"email": "pat@example.com",
			"external_id": "A-100",
			"address": "123 Main St",
			"zip": "97201"
		}`))
		require.NoError(t, err)
		require.NotNil(t, signals.FirstName)
		assert.Equal(t, "Pat", *signals.FirstName)
		require.NotNil(t, signals.Phone)
		assert.Equal(t, "(503) 555-1234", *signals.Phone)
		require.NotNil(t, signals.Zip)
		assert.Equal(t, "97201", *signals.Zip)
	})

	t.Run("Aliases", func(t *testing.T) {
		signals, err := ExtractSignals(json.RawMessage(`{
			"surname": "Lee",
			"owner_name": "Pat Lee",
			"primary_phone": "5035551234",
			"customer_id": "C-7",
			"postal_code": "97201-1234"
		}`))
		require.NoError(t, err)
		require.NotNil(t, signals.LastName)
		assert.Equal(t, "Lee", *signals.LastName)
		require.NotNil(t, signals.FullName)
		assert.Equal(t, "Pat Lee", *signals.FullName)
		require.NotNil(t, signals.ExternalID)
		assert.Equal(t, "C-7", *signals.ExternalID)
	})

	t.Run("BlankFieldsStayNil", func(t *testing.T) {
		signals, err := ExtractSignals(json.RawMessage(`{"first_name": "  ", "email": ""}`))
		require.NoError(t, err)
		assert.Nil(t, signals.FirstName)
		assert.Nil(t, signals.Email)
	})

	t.Run("NonStringValuesIgnored", func(t *testing.T) {
		signals, err := ExtractSignals(json.RawMessage(`{"phone": 5035551234, "last_name": "Lee"}`))
		require.NoError(t, err)
		assert.Nil(t, signals.Phone)
		require.NotNil(t, signals.LastName)
	})

	t.Run("NonObjectPayloadFails", func(t *testing.T) {
		_, err := ExtractSignals(json.RawMessage(`"just a string"`))
		require.Error(t, err)
		assert.True(t, models.IsValidationError(err))
	})
}

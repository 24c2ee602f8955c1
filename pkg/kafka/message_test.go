package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntakeMessage(t *testing.T) {
	t.Run("FullEnvelope", func(t *testing.T) {
		msg := &IncomingMessage{
			Value: []byte(`{"source_system":"clinic-pms","source_table":"owners","source_row_id":"42","payload":{"first_name":"Pat"}}`),
		}
		require.NoError(t, msg.ParseIntakeMessage())
		assert.True(t, msg.IsValid())
		assert.Equal(t, "clinic-pms", msg.GetSourceSystem())
		assert.Equal(t, "owners", msg.GetSourceTable())
		assert.Equal(t, "42", msg.GetSourceRowID())
		assert.JSONEq(t, `{"first_name":"Pat"}`, string(msg.GetPayload()))
	})

	t.Run("HeaderAndKeyFallback", func(t *testing.T) {
		msg := &IncomingMessage{
			Key:   "row-9",
			Value: []byte(`{"payload":{"first_name":"Pat"}}`),
			Headers: map[string]string{
				"source_system": "shelter-db",
				"source_table":  "adopters",
			},
		}
		require.NoError(t, msg.ParseIntakeMessage())
		assert.True(t, msg.IsValid())
		assert.Equal(t, "shelter-db", msg.GetSourceSystem())
		assert.Equal(t, "adopters", msg.GetSourceTable())
		assert.Equal(t, "row-9", msg.GetSourceRowID())
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`not json`)}
		assert.Error(t, msg.ParseIntakeMessage())
	})

	t.Run("MissingIdentityIsInvalid", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"payload":{}}`)}
		require.NoError(t, msg.ParseIntakeMessage())
		assert.False(t, msg.IsValid())
	})
}

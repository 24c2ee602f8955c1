package kafka

import (
	"encoding/json"
	"time"
)

// IntakeMessage is the payload published to the intake topic by upstream
// source connectors. Payload holds the raw source row.
type IntakeMessage struct {
	SourceSystem string          `json:"source_system"`
	SourceTable  string          `json:"source_table"`
	SourceRowID  string          `json:"source_row_id"`
	Payload      json.RawMessage `json:"payload"`
	EmittedAt    time.Time       `json:"emitted_at,omitempty"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Intake *IntakeMessage
}

// ParseIntakeMessage parses the message value as an intake message
func (m *IncomingMessage) ParseIntakeMessage() error {
	var msg IntakeMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.Intake = &msg
	return nil
}

// GetSourceSystem returns the source system, falling back to the header
func (m *IncomingMessage) GetSourceSystem() string {
	if m.Intake != nil && m.Intake.SourceSystem != "" {
		return m.Intake.SourceSystem
	}
	return m.Headers["source_system"]
}

// GetSourceTable returns the source table, falling back to the header
func (m *IncomingMessage) GetSourceTable() string {
	if m.Intake != nil && m.Intake.SourceTable != "" {
		return m.Intake.SourceTable
	}
	return m.Headers["source_table"]
}

// GetSourceRowID returns the row identifier, falling back to the message key
func (m *IncomingMessage) GetSourceRowID() string {
	if m.Intake != nil && m.Intake.SourceRowID != "" {
		return m.Intake.SourceRowID
	}
	return m.Key
}

// GetPayload returns the raw source row as JSON
func (m *IncomingMessage) GetPayload() json.RawMessage {
	if m.Intake != nil && len(m.Intake.Payload) > 0 {
		return m.Intake.Payload
	}
	return m.Value
}

// IsValid reports whether the message carries enough identity to be stored
func (m *IncomingMessage) IsValid() bool {
	return m.GetSourceSystem() != "" && m.GetSourceTable() != "" && m.GetSourceRowID() != ""
}

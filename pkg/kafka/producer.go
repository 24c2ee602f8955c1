package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/harborpaws/resolve/internal/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ResolutionEvent represents a resolution lifecycle event. PersonID is the
// partition key so all events for one person land in order.
type ResolutionEvent struct {
	EventType    string          `json:"event_type"`
	PersonID     string          `json:"person_id"`
	SourceSystem string          `json:"source_system,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// PublishResolutionEvent publishes a resolution event to Kafka
func (p *Producer) PublishResolutionEvent(ctx context.Context, event *ResolutionEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishResolutionEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.PersonID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source_system", Value: []byte(event.SourceSystem)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish resolution event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"person_id":  event.PersonID,
	}).Debug("Published resolution event")

	return nil
}

// PublishResolutionEvents publishes multiple resolution events in a batch
func (p *Producer) PublishResolutionEvents(ctx context.Context, events []*ResolutionEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishResolutionEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(event.PersonID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "source_system", Value: []byte(event.SourceSystem)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish resolution events")
		return err
	}

	return nil
}

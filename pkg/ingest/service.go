package ingest

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/job"
	"github.com/harborpaws/resolve/internal/repositories/rawrecord"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/kafka"
	"github.com/harborpaws/resolve/pkg/models"
)

// Service stores incoming payloads and keeps a queued job per pending source
// table. Re-ingesting an identical row is a no-op and does not enqueue work.
type Service struct {
	logger        ectologger.Logger
	rawRecordRepo *rawrecord.Repository
	jobRepo       *job.Repository
	batchSize     int
	maxAttempts   int
}

// NewService creates a new ingest service
func NewService(
	logger ectologger.Logger,
	rawRecordRepo *rawrecord.Repository,
	jobRepo *job.Repository,
	batchSize int,
	maxAttempts int,
) *Service {
	return &Service{
		logger:        logger,
		rawRecordRepo: rawRecordRepo,
		jobRepo:       jobRepo,
		batchSize:     batchSize,
		maxAttempts:   maxAttempts,
	}
}

// Ingest stores one payload and makes sure a job covers its source table
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Ingest")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"source_system": req.SourceSystem,
		"source_table":  req.SourceTable,
	})

	record, inserted, err := s.rawRecordRepo.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.WithField("raw_record_id", record.ID).Debug("Duplicate payload, skipping enqueue")
		return &models.IngestResponse{RawRecordID: record.ID, Duplicate: true}, nil
	}

	if _, err := s.jobRepo.Enqueue(ctx, models.EnqueueJobRequest{
		SourceSystem: req.SourceSystem,
		SourceTable:  req.SourceTable,
	}, s.batchSize, s.maxAttempts); err != nil {
		return nil, err
	}

	return &models.IngestResponse{RawRecordID: record.ID, Duplicate: false}, nil
}

// HandleIntakeMessage adapts the Kafka intake topic onto Ingest
func (s *Service) HandleIntakeMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.HandleIntakeMessage")
	defer span.End()

	payload := msg.GetPayload()
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	_, err := s.Ingest(ctx, models.IngestRequest{
		SourceSystem: msg.GetSourceSystem(),
		SourceTable:  msg.GetSourceTable(),
		SourceRowID:  msg.GetSourceRowID(),
		Payload:      payload,
	})
	return err
}

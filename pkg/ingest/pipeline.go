package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/rawrecord"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/matching"
	"github.com/harborpaws/resolve/pkg/models"
)

// Pipeline resolves one stored raw record at a time. The matching engine is
// synchronous; the pipeline applies the per-record timeout and maps expiry to
// a transient failure so the enclosing job retries.
type Pipeline struct {
	logger        ectologger.Logger
	rawRecordRepo *rawrecord.Repository
	engine        *matching.Engine
	recordTimeout time.Duration
}

// NewPipeline creates a new per-record pipeline
func NewPipeline(
	logger ectologger.Logger,
	rawRecordRepo *rawrecord.Repository,
	engine *matching.Engine,
	recordTimeout time.Duration,
) *Pipeline {
	if recordTimeout <= 0 {
		recordTimeout = 30 * time.Second
	}
	return &Pipeline{
		logger:        logger,
		rawRecordRepo: rawRecordRepo,
		engine:        engine,
		recordTimeout: recordTimeout,
	}
}

// ProcessRecord extracts signals, resolves them, and marks the record's
// processing state. A validation problem marks the record failed and returns
// the decision when one was recorded; a timeout or dependency failure leaves
// the record pending and surfaces a TransientFailure.
func (p *Pipeline) ProcessRecord(ctx context.Context, record *models.RawRecord) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Pipeline.ProcessRecord")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"raw_record_id": record.ID,
		"source_system": record.SourceSystem,
	})

	signals, err := ExtractSignals(record.Payload)
	if err != nil {
		log.WithError(err).Info("Rejecting record with unparseable payload")
		if merr := p.rawRecordRepo.MarkFailed(ctx, record.ID, err.Error()); merr != nil {
			return nil, merr
		}
		return nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, p.recordTimeout)
	defer cancel()

	decision, err := p.engine.ResolveIdentity(resolveCtx, signals, models.SourceContext{
		SourceSystem: record.SourceSystem,
		SourceTable:  record.SourceTable,
		RawRecordID:  record.ID,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &models.TransientFailure{Op: "matching.ResolveIdentity", Err: err}
		}
		if models.IsTransient(err) {
			return nil, err
		}
		log.WithError(err).Error("Resolution failed for record")
		if merr := p.rawRecordRepo.MarkFailed(ctx, record.ID, err.Error()); merr != nil {
			return nil, merr
		}
		return nil, err
	}

	if err := p.rawRecordRepo.MarkProcessed(ctx, record.ID); err != nil {
		return nil, err
	}
	return decision, nil
}

// Package jobs runs the claim/heartbeat/sweep lifecycle around batches of
// pending raw records.
package jobs

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/job"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

// Service is the job control surface
type Service struct {
	logger      ectologger.Logger
	jobRepo     *job.Repository
	batchSize   int
	maxAttempts int
}

// NewService creates a new job service
func NewService(logger ectologger.Logger, jobRepo *job.Repository, batchSize, maxAttempts int) *Service {
	return &Service{
		logger:      logger,
		jobRepo:     jobRepo,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Enqueue creates a queued job for a source table unless one is already
// waiting
func (s *Service) Enqueue(ctx context.Context, req models.EnqueueJobRequest) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Service.Enqueue")
	defer span.End()

	batchSize := s.batchSize
	if req.BatchHint > 0 && req.BatchHint < batchSize {
		batchSize = req.BatchHint
	}
	return s.jobRepo.Enqueue(ctx, req, batchSize, s.maxAttempts)
}

// Get returns one job
func (s *Service) Get(ctx context.Context, id string) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Service.Get")
	defer span.End()

	return s.jobRepo.Get(ctx, id)
}

// StatusCounts returns the operator dashboard rows: per-status counts with
// the age of the oldest job in each state
func (s *Service) StatusCounts(ctx context.Context) ([]models.JobStatusCount, error) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Service.StatusCounts")
	defer span.End()

	return s.jobRepo.StatusCounts(ctx)
}

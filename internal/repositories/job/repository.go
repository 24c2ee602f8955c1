package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

const columns = "id, source_system, source_table, status, batch_size, attempts, max_attempts, claimed_by, lease_expires_at, heartbeat_at, results, error_message, created_at, updated_at"

// Repository handles job queue persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying handle for transaction composition
func (r *Repository) DB() database.DB {
	return r.db
}

// Enqueue creates a queued job. An already-queued job for the same source
// table is reused so the backlog never holds duplicate queued rows.
func (r *Repository) Enqueue(ctx context.Context, req models.EnqueueJobRequest, batchSize, maxAttempts int) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Enqueue")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":        "Enqueue",
		"source_system": req.SourceSystem,
		"source_table":  req.SourceTable,
	})

	if req.BatchHint > 0 {
		batchSize = req.BatchHint
	}

	now := time.Now().UTC()
	query := `
		WITH ins AS (
			INSERT INTO jobs (id, source_system, source_table, status, batch_size, attempts, max_attempts, created_at, updated_at)
			VALUES ($1, $2, $3, 'queued', $4, 0, $5, $6, $6)
			ON CONFLICT (source_system, source_table) WHERE status = 'queued' DO NOTHING
			RETURNING ` + columns + `
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + columns + `
		FROM jobs
		WHERE source_system = $2 AND source_table = $3 AND status = 'queued'
		LIMIT 1`

	var job models.Job
	err := r.db.GetContext(ctx, &job, query, uuid.New().String(), req.SourceSystem, req.SourceTable, batchSize, maxAttempts, now)
	if err != nil {
		log.WithError(err).Error("Failed to enqueue job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to enqueue job")
	}

	log.WithFields(map[string]any{"id": job.ID}).Info("Enqueued job")
	return &job, nil
}

// ClaimNext atomically takes the oldest queued job for a worker. SKIP LOCKED
// guarantees no two workers claim the same row. Returns nil when the queue is
// empty.
func (r *Repository) ClaimNext(ctx context.Context, workerID string, leaseTimeout time.Duration) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.ClaimNext")
	defer span.End()

	now := time.Now().UTC()
	query := `
		UPDATE jobs SET
			status = 'processing',
			claimed_by = $1,
			attempts = attempts + 1,
			lease_expires_at = $2,
			heartbeat_at = $3,
			updated_at = $3
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + columns

	var job models.Job
	err := r.db.GetContext(ctx, &job, query, workerID, now.Add(leaseTimeout), now)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to claim job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim job")
	}

	return &job, nil
}

// Heartbeat extends the lease of an active job and records partial results
func (r *Repository) Heartbeat(ctx context.Context, jobID string, partial *models.JobResults, leaseTimeout time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Heartbeat")
	defer span.End()

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("jobs")
	assignments := []string{
		ub.Assign("heartbeat_at", now),
		ub.Assign("lease_expires_at", now.Add(leaseTimeout)),
		ub.Assign("updated_at", now),
	}
	if partial != nil {
		data, err := json.Marshal(partial)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode job results")
		}
		assignments = append(assignments, ub.Assign("results", string(data)))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", jobID),
		ub.In("status", string(models.JobStatusProcessing), string(models.JobStatusLinking)),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to heartbeat job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to heartbeat job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// job is no longer active; the lease was likely swept
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("job %s is not active", jobID))
	}
	return nil
}

// SetLinking moves a processing job into the linking phase
func (r *Repository) SetLinking(ctx context.Context, jobID string) error {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.SetLinking")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("jobs")
	ub.Set(
		ub.Assign("status", models.JobStatusLinking),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", jobID),
		ub.Equal("status", models.JobStatusProcessing),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to set job linking")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update job")
	}
	return nil
}

// Complete finishes a job with final results
func (r *Repository) Complete(ctx context.Context, jobID string, results models.JobResults) error {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Complete")
	defer span.End()

	data, err := json.Marshal(results)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to encode job results")
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("jobs")
	ub.Set(
		ub.Assign("status", models.JobStatusCompleted),
		ub.Assign("results", string(data)),
		ub.Assign("claimed_by", nil),
		ub.Assign("lease_expires_at", nil),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", jobID),
		ub.In("status", string(models.JobStatusProcessing), string(models.JobStatusLinking)),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to complete job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete job")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"job_id": jobID}).Info("Completed job")
	return nil
}

// requeueStatusCase picks the next status for a job leaving a claim. A fresh
// queued job for the same source table may already exist (uq_jobs_queued_per_table
// allows only one), in which case this job folds into it as failed instead of
// violating the index.
const requeueStatusCase = `CASE
			WHEN attempts >= max_attempts THEN 'dead'
			WHEN EXISTS (
				SELECT 1 FROM jobs q
				WHERE q.source_system = jobs.source_system
					AND q.source_table = jobs.source_table
					AND q.status = 'queued'
					AND q.id <> jobs.id
			) THEN 'failed'
			ELSE 'queued'
		END`

// Fail records a job failure. Jobs below max_attempts return to queued for
// retry; exhausted jobs go to dead. When another queued job already covers the
// same source table, the failed job folds into it instead of requeueing.
func (r *Repository) Fail(ctx context.Context, jobID string, errMsg string) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Fail")
	defer span.End()

	query := `
		UPDATE jobs SET
			status = ` + requeueStatusCase + `,
			error_message = $2,
			claimed_by = NULL,
			lease_expires_at = NULL,
			updated_at = $3
		WHERE id = $1 AND status IN ('processing', 'linking', 'failed')
		RETURNING ` + columns

	var job models.Job
	err := r.db.GetContext(ctx, &job, query, jobID, errMsg, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// A queued job for the table appeared between the EXISTS snapshot
			// and the index check. Fold into it.
			return r.foldIntoQueued(ctx, jobID, errMsg)
		}
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("job %s is not active", jobID))
		}
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to fail job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fail job")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id": jobID,
		"status": job.Status,
	}).Warn("Job failed")
	return &job, nil
}

// SweepStale requeues jobs whose lease expired without a heartbeat. The status
// and lease predicates make each transition single-shot per expiry, so a job
// is requeued exactly once however many sweepers run. Jobs transition one at
// a time so a single conflicting row cannot abort the rest of the sweep.
func (r *Repository) SweepStale(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.SweepStale")
	defer span.End()

	now := time.Now().UTC()

	var staleIDs []string
	err := r.db.SelectContext(ctx, &staleIDs, `
		SELECT id FROM jobs
		WHERE status IN ('processing', 'linking')
			AND lease_expires_at IS NOT NULL
			AND lease_expires_at < $1`, now)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list stale jobs")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to sweep stale jobs")
	}

	requeued := 0
	for _, id := range staleIDs {
		transitioned, err := r.requeueStale(ctx, id, now)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("job_id", id).Error("Failed to requeue stale job")
			continue
		}
		if transitioned {
			requeued++
		}
	}

	if requeued > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"requeued": requeued}).Warn("Requeued stale jobs")
	}
	return requeued, nil
}

// requeueStale moves one expired claim out of its processing state. Returns
// false when another sweeper already took the transition.
func (r *Repository) requeueStale(ctx context.Context, jobID string, now time.Time) (bool, error) {
	query := `
		UPDATE jobs SET
			status = ` + requeueStatusCase + `,
			claimed_by = NULL,
			lease_expires_at = NULL,
			error_message = 'lease expired: worker presumed dead',
			updated_at = $2
		WHERE id = $1 AND status IN ('processing', 'linking')
			AND lease_expires_at IS NOT NULL
			AND lease_expires_at < $2`

	res, err := r.db.ExecContext(ctx, query, jobID, now)
	if err != nil {
		if isUniqueViolation(err) {
			if _, ferr := r.foldIntoQueued(ctx, jobID, "lease expired: worker presumed dead"); ferr != nil {
				return false, ferr
			}
			return true, nil
		}
		return false, err
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// foldIntoQueued marks a job failed because a fresh queued job already covers
// its source table; the pending records drain through that job instead.
func (r *Repository) foldIntoQueued(ctx context.Context, jobID, errMsg string) (*models.Job, error) {
	query := `
		UPDATE jobs SET
			status = 'failed',
			error_message = $2,
			claimed_by = NULL,
			lease_expires_at = NULL,
			updated_at = $3
		WHERE id = $1 AND status IN ('processing', 'linking', 'failed')
		RETURNING ` + columns

	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, jobID, errMsg, time.Now().UTC()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("job_id", jobID).Error("Failed to fold job into queued successor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fail job")
	}
	return &job, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("jobs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job")
	}

	return &job, nil
}

// StatusCounts returns the operator dashboard rows: per-status counts with the
// age of the oldest job in that state
func (r *Repository) StatusCounts(ctx context.Context) ([]models.JobStatusCount, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.StatusCounts")
	defer span.End()

	query := `
		SELECT status,
			COUNT(*) AS count,
			EXTRACT(EPOCH FROM (NOW() - MIN(created_at))) AS oldest_age_seconds
		FROM jobs
		GROUP BY status
		ORDER BY status`

	var counts []models.JobStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get job status counts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job status counts")
	}
	return counts, nil
}

package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/config"
	"github.com/harborpaws/resolve/internal/repositories/job"
	"github.com/harborpaws/resolve/internal/repositories/rawrecord"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/ingest"
	"github.com/harborpaws/resolve/pkg/models"
)

// WorkerPool claims jobs and drives each claimed batch through the record
// pipeline. Claiming is atomic, so no two workers ever hold the same job;
// everything downstream is idempotent, so a requeued job can safely rerun.
type WorkerPool struct {
	logger        ectologger.Logger
	jobRepo       *job.Repository
	rawRecordRepo *rawrecord.Repository
	pipeline      *ingest.Pipeline
	cfg           config.Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	logger ectologger.Logger,
	jobRepo *job.Repository,
	rawRecordRepo *rawrecord.Repository,
	pipeline *ingest.Pipeline,
	cfg config.Config,
) *WorkerPool {
	return &WorkerPool{
		logger:        logger,
		jobRepo:       jobRepo,
		rawRecordRepo: rawRecordRepo,
		pipeline:      pipeline,
		cfg:           cfg,
	}
}

// GetName implements startup.Dependency
func (w *WorkerPool) GetName() string {
	return "job-worker-pool"
}

// DependsOn implements startup.Dependency
func (w *WorkerPool) DependsOn() []string {
	return []string{"database"}
}

// Start launches the configured number of workers
func (w *WorkerPool) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	hostname, _ := os.Hostname()
	for i := 0; i < w.cfg.JobWorkerCount; i++ {
		workerID := fmt.Sprintf("%s-%d", hostname, i)
		w.wg.Add(1)
		go w.run(ctx, workerID)
	}

	w.logger.WithContext(ctx).WithField("workers", w.cfg.JobWorkerCount).Info("Job worker pool started")
	return nil
}

// Stop signals the workers and waits for in-flight jobs to finish
func (w *WorkerPool) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *WorkerPool) run(ctx context.Context, workerID string) {
	defer w.wg.Done()

	log := w.logger.WithContext(ctx).WithField("worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopping")
			return
		default:
		}

		claimed, err := w.jobRepo.ClaimNext(ctx, workerID, w.cfg.JobLeaseTimeout)
		if err != nil {
			log.WithError(err).Error("Failed to claim job")
			w.sleep(ctx, w.cfg.JobClaimPollInterval)
			continue
		}
		if claimed == nil {
			w.sleep(ctx, w.cfg.JobClaimPollInterval)
			continue
		}

		w.processJob(ctx, claimed, log)
	}
}

func (w *WorkerPool) processJob(ctx context.Context, claimed *models.Job, log ectologger.Logger) {
	ctx, span := tracing.StartSpan(ctx, "jobs.WorkerPool.processJob")
	defer span.End()

	log = log.WithFields(map[string]any{
		"job_id":        claimed.ID,
		"source_system": claimed.SourceSystem,
		"source_table":  claimed.SourceTable,
	})
	log.Info("Claimed job")

	results := &progress{}
	heartbeatDone := w.startHeartbeat(ctx, claimed.ID, results, log)
	defer heartbeatDone()

	for {
		batch, err := w.rawRecordRepo.ListPendingBatch(ctx, claimed.SourceSystem, claimed.SourceTable, claimed.BatchSize)
		if err != nil {
			w.failJob(ctx, claimed.ID, err, log)
			return
		}
		if len(batch) == 0 {
			break
		}

		transient := w.processBatch(ctx, batch, results, log)
		if transient != nil {
			w.failJob(ctx, claimed.ID, transient, log)
			return
		}

		if ctx.Err() != nil {
			// Shutdown mid-job: leave the lease to expire and the sweeper to
			// requeue the remainder.
			return
		}
	}

	if err := w.jobRepo.SetLinking(ctx, claimed.ID); err != nil {
		w.failJob(ctx, claimed.ID, err, log)
		return
	}
	totals := results.snapshot()
	if err := w.jobRepo.Complete(ctx, claimed.ID, totals); err != nil {
		log.WithError(err).Error("Failed to complete job")
		return
	}
	log.WithFields(map[string]any{
		"records_processed": totals.RecordsProcessed,
		"records_failed":    totals.RecordsFailed,
		"entities_created":  totals.EntitiesCreated,
	}).Info("Completed job")
}

// progress tallies batch results. The heartbeat goroutine snapshots the
// totals while the worker increments them, so access is mutex-guarded.
type progress struct {
	mu     sync.Mutex
	totals models.JobResults
}

func (p *progress) recordFailed() {
	p.mu.Lock()
	p.totals.RecordsFailed++
	p.mu.Unlock()
}

func (p *progress) recordProcessed(decision *models.MatchDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals.RecordsProcessed++
	if decision == nil {
		return
	}
	switch decision.Outcome {
	case models.OutcomeNewEntity, models.OutcomeHouseholdMember:
		p.totals.EntitiesCreated++
	case models.OutcomeAutoMatch:
		p.totals.EntitiesMatched++
	case models.OutcomeReviewPending:
		p.totals.ReviewsQueued++
	}
}

func (p *progress) snapshot() models.JobResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals
}

// processBatch runs records one at a time. Per-record failures are recorded
// and skipped; only a transient dependency failure aborts the job.
func (w *WorkerPool) processBatch(ctx context.Context, batch []models.RawRecord, results *progress, log ectologger.Logger) error {
	for i := range batch {
		record := &batch[i]
		decision, err := w.pipeline.ProcessRecord(ctx, record)
		if err != nil {
			if models.IsTransient(err) {
				return err
			}
			results.recordFailed()
			log.WithError(err).WithField("raw_record_id", record.ID).Warn("Record failed, continuing batch")
			continue
		}

		results.recordProcessed(decision)
	}
	return nil
}

// startHeartbeat extends the job lease on an interval until the returned
// function is called
func (w *WorkerPool) startHeartbeat(ctx context.Context, jobID string, results *progress, log ectologger.Logger) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		ticker := time.NewTicker(w.cfg.JobHeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				partial := results.snapshot()
				if err := w.jobRepo.Heartbeat(ctx, jobID, &partial, w.cfg.JobLeaseTimeout); err != nil {
					log.WithError(err).Warn("Heartbeat failed")
				}
			}
		}
	}()
	return stop
}

func (w *WorkerPool) failJob(ctx context.Context, jobID string, cause error, log ectologger.Logger) {
	log.WithError(cause).Error("Job failed")
	if _, err := w.jobRepo.Fail(ctx, jobID, cause.Error()); err != nil {
		log.WithError(err).Error("Failed to mark job failed")
	}
}

func (w *WorkerPool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

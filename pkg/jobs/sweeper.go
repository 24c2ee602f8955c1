package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/job"
)

// Sweeper requeues jobs whose lease expired without a heartbeat. The requeue
// is a single conditional update, so a job is reclaimed exactly once no
// matter how many sweepers run.
type Sweeper struct {
	logger   ectologger.Logger
	jobRepo  *job.Repository
	interval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSweeper creates a new stale-job sweeper
func NewSweeper(logger ectologger.Logger, jobRepo *job.Repository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		logger:   logger,
		jobRepo:  jobRepo,
		interval: interval,
	}
}

// GetName implements startup.Dependency
func (s *Sweeper) GetName() string {
	return "job-sweeper"
}

// DependsOn implements startup.Dependency
func (s *Sweeper) DependsOn() []string {
	return []string{"database"}
}

// Start launches the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts the sweep loop
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.jobRepo.SweepStale(ctx); err != nil {
				s.logger.WithContext(ctx).WithError(err).Error("Sweep failed")
			}
		}
	}
}

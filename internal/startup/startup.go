package startup

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
)

// Dependency is a long-lived component with an ordered lifecycle. Dependencies
// declare what must be running before them and are started in that order.
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

type Startup struct {
	order        []string
	dependencies map[string]Dependency
	statuses     map[string]status
	logger       ectologger.Logger
	maxAttempts  int
}

func New(logger ectologger.Logger, maxAttempts int) *Startup {
	return &Startup{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		maxAttempts:  maxAttempts,
	}
}

func (s *Startup) AddDependency(dep Dependency) {
	if _, ok := s.dependencies[dep.GetName()]; !ok {
		s.order = append(s.order, dep.GetName())
	}
	s.dependencies[dep.GetName()] = dep
}

// Start brings every dependency up, retrying whole-set failures with a
// fibonacci backoff until maxAttempts is exhausted.
func (s *Startup) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, s.dependencies[name]); err != nil {
				s.logger.WithError(err).Errorf("startup dependency '%s' failed on attempt %d", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		s.logger.Infof("retrying startup in %d seconds (attempt %d/%d)", a, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return errors.Wrapf(lastErr, "startup failed after %d attempts", s.maxAttempts)
}

func (s *Startup) startDependency(ctx context.Context, dep Dependency) error {
	if s.statuses[dep.GetName()] == statusStarted {
		return nil
	}

	for _, name := range dep.DependsOn() {
		if s.statuses[name] != statusStarted {
			if err := s.startDependency(ctx, s.dependencies[name]); err != nil {
				return err
			}
		}
	}

	s.logger.WithField("dependency", dep.GetName()).Infof("starting dependency '%s'", dep.GetName())
	s.statuses[dep.GetName()] = statusPending
	if err := dep.Start(ctx); err != nil {
		s.statuses[dep.GetName()] = statusFailed
		return err
	}
	s.statuses[dep.GetName()] = statusStarted
	return nil
}

// Stop shuts dependencies down in reverse start order.
func (s *Startup) Stop(ctx context.Context) error {
	for i := len(s.order) - 1; i >= 0; i-- {
		dep := s.dependencies[s.order[i]]
		if s.statuses[dep.GetName()] != statusStarted {
			continue
		}
		s.logger.WithField("dependency", dep.GetName()).Infof("stopping dependency '%s'", dep.GetName())
		if err := dep.Stop(ctx); err != nil {
			s.logger.WithError(err).Errorf("failed to stop dependency '%s'", dep.GetName())
			return err
		}
		s.statuses[dep.GetName()] = statusStopped
	}
	return nil
}

// Package review is the human workflow around ambiguous match decisions.
package review

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/matchdecision"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/merging"
	"github.com/harborpaws/resolve/pkg/models"
)

// Service applies reviewer verdicts to pending decisions
type Service struct {
	logger         ectologger.Logger
	decisionRepo   *matchdecision.Repository
	identifierRepo *identifier.Repository
	mergeEngine    *merging.Engine
}

// NewService creates a new review service
func NewService(
	logger ectologger.Logger,
	decisionRepo *matchdecision.Repository,
	identifierRepo *identifier.Repository,
	mergeEngine *merging.Engine,
) *Service {
	return &Service{
		logger:         logger,
		decisionRepo:   decisionRepo,
		identifierRepo: identifierRepo,
		mergeEngine:    mergeEngine,
	}
}

// ListPending pages through decisions awaiting review
func (s *Service) ListPending(ctx context.Context, filter matchdecision.ListFilter) (*models.MatchDecisionListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.ListPending")
	defer span.End()

	return s.decisionRepo.ListPending(ctx, filter)
}

// List pages through all decisions with optional filters
func (s *Service) List(ctx context.Context, filter matchdecision.ListFilter) (*models.MatchDecisionListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.List")
	defer span.End()

	return s.decisionRepo.List(ctx, filter)
}

// Get returns one decision
func (s *Service) Get(ctx context.Context, id string) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Get")
	defer span.End()

	return s.decisionRepo.Get(ctx, id)
}

// ApplyOutcome resolves a pending decision. Approve confirms the top
// candidate and enriches it with the record's identifiers; merge additionally
// collapses a person created in the meantime into the candidate; reject and
// keep_separate close the decision without linking; defer parks it.
func (s *Service) ApplyOutcome(ctx context.Context, decisionID string, req models.ApplyReviewRequest) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.ApplyOutcome")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"decision_id": decisionID,
		"outcome":     req.Outcome,
		"actor":       req.Actor,
	})

	decision, err := s.decisionRepo.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	switch req.Outcome {
	case models.ReviewOutcomeApprove:
		if decision.TopCandidateID == nil {
			return nil, &models.ValidationError{Reason: "decision has no candidate to approve"}
		}
		if err := s.attachSignalsTo(ctx, decision, *decision.TopCandidateID); err != nil {
			return nil, err
		}
		if err := s.decisionRepo.UpdateReview(ctx, decisionID, models.ReviewStatusApproved, req.Actor, req.Notes); err != nil {
			return nil, err
		}

	case models.ReviewOutcomeMerge:
		if decision.TopCandidateID == nil {
			return nil, &models.ValidationError{Reason: "decision has no candidate to merge into"}
		}
		if decision.ResultingPersonID != nil && *decision.ResultingPersonID != *decision.TopCandidateID {
			if _, err := s.mergeEngine.Merge(ctx, *decision.ResultingPersonID, *decision.TopCandidateID, "review: confirmed duplicate", req.Actor); err != nil {
				return nil, err
			}
		} else if err := s.attachSignalsTo(ctx, decision, *decision.TopCandidateID); err != nil {
			return nil, err
		}
		if err := s.decisionRepo.UpdateReview(ctx, decisionID, models.ReviewStatusApproved, req.Actor, req.Notes); err != nil {
			return nil, err
		}

	case models.ReviewOutcomeReject, models.ReviewOutcomeKeepSeparate:
		if err := s.decisionRepo.UpdateReview(ctx, decisionID, models.ReviewStatusRejected, req.Actor, req.Notes); err != nil {
			return nil, err
		}

	case models.ReviewOutcomeDefer:
		if err := s.decisionRepo.UpdateReview(ctx, decisionID, models.ReviewStatusDeferred, req.Actor, req.Notes); err != nil {
			return nil, err
		}

	default:
		return nil, &models.ValidationError{Reason: "unknown review outcome"}
	}

	log.Info("Applied review outcome")
	return s.decisionRepo.Get(ctx, decisionID)
}

// attachSignalsTo copies the decision's exact identifiers onto the confirmed
// person so future records fast-path to it
func (s *Service) attachSignalsTo(ctx context.Context, decision *models.MatchDecision, personID string) error {
	var signals models.SignalSet
	if err := json.Unmarshal(decision.Signals, &signals); err != nil {
		return &models.InvariantViolation{Detail: "decision signals are unparseable"}
	}

	attach := func(kind models.IdentifierKind, raw *string, confidence float64) error {
		if raw == nil {
			return nil
		}
		normalized := identifier.Normalize(kind, *raw)
		if normalized == "" {
			return nil
		}
		_, err := s.identifierRepo.Attach(ctx, personID, kind, *raw, confidence, decision.SourceSystem)
		return err
	}

	if err := attach(models.IdentifierKindExternalID, signals.ExternalID, 1.0); err != nil {
		return err
	}
	if err := attach(models.IdentifierKindPhone, signals.Phone, 1.0); err != nil {
		return err
	}
	return attach(models.IdentifierKindEmail, signals.Email, 0.98)
}

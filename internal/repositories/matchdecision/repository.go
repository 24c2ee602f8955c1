package matchdecision

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

const columns = "id, raw_record_id, source_system, signals, candidates_evaluated, top_candidate_id, score, probability, score_breakdown, outcome, resulting_person_id, config_version, review_status, reviewed_by, reviewed_at, review_notes, processed_at"

// Repository handles the immutable decision audit trail
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match decision repository
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

// Create persists one resolution attempt. Decision rows are never updated
// afterwards except through UpdateReview.
func (r *Repository) Create(ctx context.Context, d *models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "Create",
		"id":      d.ID,
		"outcome": d.Outcome,
	})

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("match_decisions")
	ib.Cols("id", "raw_record_id", "source_system", "signals", "candidates_evaluated", "top_candidate_id",
		"score", "probability", "score_breakdown", "outcome", "resulting_person_id", "config_version",
		"review_status", "processed_at")
	ib.Values(d.ID, d.RawRecordID, d.SourceSystem, d.Signals, d.CandidatesEvaluated, d.TopCandidateID,
		d.Score, d.Probability, d.ScoreBreakdown, d.Outcome, d.ResultingPersonID, d.ConfigVersion,
		d.ReviewStatus, d.ProcessedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create match decision")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match decision")
	}

	return nil
}

// Get retrieves a decision by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_decisions")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var d models.MatchDecision
	if err := r.db.GetContext(ctx, &d, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match decision %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match decision")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match decision")
	}

	return &d, nil
}

// ListFilter narrows ListPending and List results
type ListFilter struct {
	SourceSystem *string
	Outcome      *models.DecisionOutcome
	ReviewStatus *models.ReviewStatus
	Page         int
	PageSize     int
}

// ListPending pages through decisions awaiting human review, oldest first
func (r *Repository) ListPending(ctx context.Context, filter ListFilter) (*models.MatchDecisionListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.ListPending")
	defer span.End()

	pending := models.ReviewStatusPending
	filter.ReviewStatus = &pending
	return r.List(ctx, filter)
}

// List pages through decisions with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) (*models.MatchDecisionListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.List")
	defer span.End()

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 500 {
		filter.PageSize = 50
	}

	apply := func(sb *sqlbuilder.SelectBuilder) {
		if filter.SourceSystem != nil {
			sb.Where(sb.Equal("source_system", *filter.SourceSystem))
		}
		if filter.Outcome != nil {
			sb.Where(sb.Equal("outcome", *filter.Outcome))
		}
		if filter.ReviewStatus != nil {
			sb.Where(sb.Equal("review_status", *filter.ReviewStatus))
		}
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("match_decisions")
	apply(countSb)

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match decisions")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_decisions")
	apply(sb)
	sb.OrderBy("processed_at ASC")
	sb.Limit(filter.PageSize)
	sb.Offset((filter.Page - 1) * filter.PageSize)

	query, args := sb.Build()
	var items []models.MatchDecision
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match decisions")
	}

	return &models.MatchDecisionListResponse{
		Items:      items,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

// UpdateReview mutates the review fields of a pending decision. Everything
// else on the row stays frozen.
func (r *Repository) UpdateReview(ctx context.Context, id string, status models.ReviewStatus, actor string, notes *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.UpdateReview")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("match_decisions")
	ub.Set(
		ub.Assign("review_status", status),
		ub.Assign("reviewed_by", actor),
		ub.Assign("reviewed_at", time.Now().UTC()),
		ub.Assign("review_notes", notes),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.In("review_status", string(models.ReviewStatusPending), string(models.ReviewStatusDeferred)),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to update review status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("match decision %s is not awaiting review", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":     id,
		"status": status,
		"actor":  actor,
	}).Info("Updated review status")
	return nil
}

// CountByRawRecord reports how many decisions exist for one raw record
func (r *Repository) CountByRawRecord(ctx context.Context, rawRecordID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.CountByRawRecord")
	defer span.End()

	query := `SELECT COUNT(*) FROM match_decisions WHERE raw_record_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, rawRecordID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count decisions for raw record")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count decisions")
	}
	return count, nil
}

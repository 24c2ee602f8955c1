package mergehistory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

const columns = "id, source_person_id, target_person_id, reason, actor, transferred_identifiers, transferred_relationships, skipped_duplicates, backfilled_fields, merged_at, undone_at, undone_by"

// Repository handles the merge audit trail
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge history repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create writes one merge audit row
func (r *Repository) Create(ctx context.Context, h *models.MergeHistory) error {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.Create")
	defer span.End()

	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.MergedAt.IsZero() {
		h.MergedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("merge_history")
	ib.Cols("id", "source_person_id", "target_person_id", "reason", "actor",
		"transferred_identifiers", "transferred_relationships", "skipped_duplicates",
		"backfilled_fields", "merged_at")
	ib.Values(h.ID, h.SourcePersonID, h.TargetPersonID, h.Reason, h.Actor,
		h.TransferredIdentifiers, h.TransferredRelationships, h.SkippedDuplicates,
		h.BackfilledFields, h.MergedAt)

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create merge history")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge history")
	}

	return tx.Commit(ctx)
}

// LatestActiveBySource returns the most recent not-undone merge of a source
// person, or nil when none exists
func (r *Repository) LatestActiveBySource(ctx context.Context, sourcePersonID string) (*models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.LatestActiveBySource")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("merge_history")
	sb.Where(
		sb.Equal("source_person_id", sourcePersonID),
		sb.IsNull("undone_at"),
	)
	sb.OrderBy("merged_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var h models.MergeHistory
	if err := r.db.GetContext(ctx, &h, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merge history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge history")
	}
	return &h, nil
}

// MarkUndone annotates a merge row as reversed
func (r *Repository) MarkUndone(ctx context.Context, id, actor string) error {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.MarkUndone")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("merge_history")
	ub.Set(
		ub.Assign("undone_at", time.Now().UTC()),
		ub.Assign("undone_by", actor),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("undone_at"),
	)

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	query, args := ub.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to mark merge undone")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark merge undone")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("merge %s is already undone", id))
	}
	return tx.Commit(ctx)
}

// ListForPerson returns every merge a person participated in, either side,
// newest first
func (r *Repository) ListForPerson(ctx context.Context, personID string) ([]models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.ListForPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("merge_history")
	sb.Where(sb.Or(
		sb.Equal("source_person_id", personID),
		sb.Equal("target_person_id", personID),
	))
	sb.OrderBy("merged_at DESC")

	query, args := sb.Build()
	var items []models.MergeHistory
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge history")
	}
	return items, nil
}

package relationship

import (
	"context"
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

const columns = "id, person_id, kind, related_type, related_id, source_system, created_at, updated_at"

// Repository handles person relationships (ownerships, residencies, and other
// links supplied by connectors)
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
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

// Link upserts a relationship. Replaying the same link is a no-op.
func (r *Repository) Link(ctx context.Context, personID, kind, relatedType, relatedID, sourceSystem string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Link")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Link",
		"person_id": personID,
		"kind":      kind,
	})

	now := time.Now().UTC()
	query := `
		WITH ins AS (
			INSERT INTO relationships (id, person_id, kind, related_type, related_id, source_system, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (person_id, kind, related_type, related_id) DO NOTHING
			RETURNING ` + columns + `
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + columns + `
		FROM relationships
		WHERE person_id = $2 AND kind = $3 AND related_type = $4 AND related_id = $5
		LIMIT 1`

	var rel models.Relationship
	if err := r.db.GetContext(ctx, &rel, query, uuid.New().String(), personID, kind, relatedType, relatedID, sourceSystem, now); err != nil {
		log.WithError(err).Error("Failed to link relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to link relationship")
	}

	return &rel, nil
}

// ListByPerson returns a person's relationships
func (r *Repository) ListByPerson(ctx context.Context, personID string) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListByPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("relationships")
	sb.Where(sb.Equal("person_id", personID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var rels []models.Relationship
	if err := r.db.SelectContext(ctx, &rels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}
	return rels, nil
}

// ReassignToPerson moves source's relationships to target during a merge,
// dropping any that would duplicate an existing target relationship of the
// same kind. Returns moved and skipped counts.
func (r *Repository) ReassignToPerson(ctx context.Context, sourcePersonID, targetPersonID string) (int, int, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ReassignToPerson")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "ReassignToPerson",
		"source_id": sourcePersonID,
		"target_id": targetPersonID,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	dropQuery := `
		DELETE FROM relationships s
		WHERE s.person_id = $1
			AND EXISTS (
				SELECT 1 FROM relationships t
				WHERE t.person_id = $2 AND t.kind = s.kind
					AND t.related_type = s.related_type AND t.related_id = s.related_id
			)`
	dropRes, err := tx.ExecContext(ctx, dropQuery, sourcePersonID, targetPersonID)
	if err != nil {
		log.WithError(err).Error("Failed to drop duplicate relationships")
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign relationships")
	}

	moveQuery := `
		UPDATE relationships SET person_id = $2, updated_at = $3
		WHERE person_id = $1`
	moveRes, err := tx.ExecContext(ctx, moveQuery, sourcePersonID, targetPersonID, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to reassign relationships")
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign relationships")
	}

	skipped, _ := dropRes.RowsAffected()
	moved, _ := moveRes.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign relationships")
	}
	return int(moved), int(skipped), nil
}

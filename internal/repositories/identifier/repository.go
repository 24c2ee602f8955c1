package identifier

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
	"github.com/harborpaws/resolve/pkg/normalizers"
)

const columns = "id, person_id, kind, raw_value, normalized_value, confidence, source_system, created_at, updated_at"

// Repository handles identifier persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new identifier repository
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

// Normalize applies the kind-appropriate normalizer to a raw value
func Normalize(kind models.IdentifierKind, raw string) string {
	switch kind {
	case models.IdentifierKindPhone:
		return normalizers.NormalizePhone(raw)
	case models.IdentifierKindEmail:
		return normalizers.NormalizeEmail(raw)
	default:
		return normalizers.Trim(raw)
	}
}

// Attach upserts an identifier onto a person. Re-attaching the same value is
// a no-op apart from keeping the higher confidence, which makes record replay
// idempotent.
func (r *Repository) Attach(ctx context.Context, personID string, kind models.IdentifierKind, rawValue string, confidence float64, sourceSystem string) (*models.Identifier, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.Attach")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Attach",
		"person_id": personID,
		"kind":      kind,
	})

	now := time.Now().UTC()
	query := `
		INSERT INTO identifiers (id, person_id, kind, raw_value, normalized_value, confidence, source_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (person_id, kind, normalized_value) DO UPDATE SET
			confidence = GREATEST(identifiers.confidence, EXCLUDED.confidence),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + columns

	var ident models.Identifier
	err := r.db.GetContext(ctx, &ident, query,
		uuid.New().String(), personID, kind, rawValue,
		Normalize(kind, rawValue), confidence, sourceSystem, now)
	if err != nil {
		log.WithError(err).Error("Failed to attach identifier")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach identifier")
	}

	return &ident, nil
}

// FindOwners returns the canonical persons currently holding an identifier
// value, newest first
func (r *Repository) FindOwners(ctx context.Context, kind models.IdentifierKind, normalizedValue string) ([]models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.FindOwners")
	defer span.End()

	query := `
		SELECT p.id, p.first_name, p.last_name, p.display_name, p.household_id,
			p.merged_into_person_id, p.merged_at, p.merge_reason, p.version, p.created_at, p.updated_at
		FROM identifiers i
		JOIN persons p ON p.id = i.person_id
		WHERE i.kind = $1 AND i.normalized_value = $2 AND p.merged_into_person_id IS NULL
		ORDER BY i.created_at DESC`

	var persons []models.Person
	if err := r.db.SelectContext(ctx, &persons, query, kind, normalizedValue); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find identifier owners")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find identifier owners")
	}
	return persons, nil
}

// CountDistinctOwners counts the canonical persons holding an identifier value
func (r *Repository) CountDistinctOwners(ctx context.Context, kind models.IdentifierKind, normalizedValue string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.CountDistinctOwners")
	defer span.End()

	query := `
		SELECT COUNT(DISTINCT i.person_id)
		FROM identifiers i
		JOIN persons p ON p.id = i.person_id
		WHERE i.kind = $1 AND i.normalized_value = $2 AND p.merged_into_person_id IS NULL`

	var count int
	if err := r.db.GetContext(ctx, &count, query, kind, normalizedValue); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count identifier owners")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count identifier owners")
	}
	return count, nil
}

// ListByPerson returns all identifiers attached to a person
func (r *Repository) ListByPerson(ctx context.Context, personID string) ([]models.Identifier, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.ListByPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("identifiers")
	sb.Where(sb.Equal("person_id", personID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var idents []models.Identifier
	if err := r.db.SelectContext(ctx, &idents, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list identifiers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list identifiers")
	}
	return idents, nil
}

// ReassignToPerson moves source's identifiers to target during a merge. A row
// that would duplicate an existing (kind, normalized_value) on the target is
// deleted instead of moved. Returns moved and skipped counts.
func (r *Repository) ReassignToPerson(ctx context.Context, sourcePersonID, targetPersonID string) (int, int, error) {
	ctx, span := tracing.StartSpan(ctx, "identifier.Repository.ReassignToPerson")
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
		DELETE FROM identifiers s
		WHERE s.person_id = $1
			AND EXISTS (
				SELECT 1 FROM identifiers t
				WHERE t.person_id = $2 AND t.kind = s.kind AND t.normalized_value = s.normalized_value
			)`
	dropRes, err := tx.ExecContext(ctx, dropQuery, sourcePersonID, targetPersonID)
	if err != nil {
		log.WithError(err).Error("Failed to drop duplicate identifiers")
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign identifiers")
	}

	moveQuery := `
		UPDATE identifiers SET person_id = $2, updated_at = $3
		WHERE person_id = $1`
	moveRes, err := tx.ExecContext(ctx, moveQuery, sourcePersonID, targetPersonID, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to reassign identifiers")
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign identifiers")
	}

	skipped, _ := dropRes.RowsAffected()
	moved, _ := moveRes.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign identifiers")
	}
	return int(moved), int(skipped), nil
}

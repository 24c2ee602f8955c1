package matchindex

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
)

// Index field names. Values are stored pre-normalized so blocking is a plain
// equality lookup.
const (
	FieldLastNameSoundex = "last_name_soundex"
	FieldNameZip         = "name_soundex_zip"
	FieldAddress         = "address"
)

// Entry is one precomputed blocking key for a person
type Entry struct {
	ID        string    `json:"id" db:"id"`
	PersonID  string    `json:"person_id" db:"person_id"`
	Field     string    `json:"field" db:"field"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Repository handles the precomputed blocking-key index
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match index repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes one blocking key for a person
func (r *Repository) Upsert(ctx context.Context, personID, field, value string) error {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.Upsert")
	defer span.End()

	if value == "" {
		return nil
	}

	query := `
		INSERT INTO match_index (id, person_id, field, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (person_id, field) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), personID, field, value, time.Now().UTC()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"person_id": personID,
			"field":     field,
		}).Error("Failed to upsert match index entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert match index entry")
	}
	return nil
}

// FindPersonIDs returns canonical persons sharing a blocking key, capped at
// limit
func (r *Repository) FindPersonIDs(ctx context.Context, field, value string, limit int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.FindPersonIDs")
	defer span.End()

	if value == "" {
		return nil, nil
	}

	query := `
		SELECT m.person_id
		FROM match_index m
		JOIN persons p ON p.id = m.person_id
		WHERE m.field = $1 AND m.value = $2 AND p.merged_into_person_id IS NULL
		ORDER BY m.updated_at DESC
		LIMIT $3`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, field, value, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("field", field).Error("Failed to query match index")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query match index")
	}
	return ids, nil
}

// ListForPerson returns every blocking key stored for a person
func (r *Repository) ListForPerson(ctx context.Context, personID string) ([]Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.ListForPerson")
	defer span.End()

	query := `SELECT id, person_id, field, value, updated_at FROM match_index WHERE person_id = $1`
	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, personID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("person_id", personID).Error("Failed to list match index entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match index entries")
	}
	return entries, nil
}

// DeleteForPerson removes a person's blocking keys, used when the person is
// merged away
func (r *Repository) DeleteForPerson(ctx context.Context, personID string) error {
	ctx, span := tracing.StartSpan(ctx, "matchindex.Repository.DeleteForPerson")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_index WHERE person_id = $1`, personID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("person_id", personID).Error("Failed to delete match index entries")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match index entries")
	}
	return tx.Commit(ctx)
}

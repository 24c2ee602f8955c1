package person

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

const columns = "id, first_name, last_name, display_name, household_id, merged_into_person_id, merged_at, merge_reason, version, created_at, updated_at"

// Repository handles canonical person persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
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

// Create inserts a canonical person
func (r *Repository) Create(ctx context.Context, firstName, lastName *string, displayName string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "Create",
		"display_name": displayName,
	})

	now := time.Now().UTC()
	p := &models.Person{
		ID:          uuid.New().String(),
		FirstName:   firstName,
		LastName:    lastName,
		DisplayName: displayName,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("persons")
	ib.Cols("id", "first_name", "last_name", "display_name", "version", "created_at", "updated_at")
	ib.Values(p.ID, p.FirstName, p.LastName, p.DisplayName, p.Version, p.CreatedAt, p.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create person")
	}

	log.WithFields(map[string]any{"id": p.ID}).Info("Created person")
	return p, nil
}

// Get retrieves a person by ID, merged or not
func (r *Repository) Get(ctx context.Context, id string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("persons")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var p models.Person
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}

	return &p, nil
}

// GetByIDs retrieves several persons at once
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("persons")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	sb.Where(sb.In("id", args...))

	query, qargs := sb.Build()
	var persons []models.Person
	if err := r.db.SelectContext(ctx, &persons, query, qargs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get persons")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get persons")
	}
	return persons, nil
}

// GetForUpdate reads a person with a row lock inside the caller's
// transaction, serializing concurrent merges touching the same rows
func (r *Repository) GetForUpdate(ctx context.Context, id string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.GetForUpdate")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + columns + ` FROM persons WHERE id = $1 FOR UPDATE`
	var p models.Person
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person for update")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person for update")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person for update")
	}
	return &p, nil
}

// SetMergedInto marks source as merged away. The guard on
// merged_into_person_id keeps concurrent merges of the same source from both
// succeeding.
func (r *Repository) SetMergedInto(ctx context.Context, sourceID, targetID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.SetMergedInto")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	query := `
		UPDATE persons SET
			merged_into_person_id = $2,
			merged_at = $3,
			merge_reason = $4,
			version = version + 1,
			updated_at = $3
		WHERE id = $1 AND merged_into_person_id IS NULL`

	res, err := tx.ExecContext(ctx, query, sourceID, targetID, now, reason)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("source_id", sourceID).Error("Failed to set merge pointer")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set merge pointer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("person %s is already merged", sourceID))
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set merge pointer")
	}
	return nil
}

// ClearMergedInto reverses a merge pointer
func (r *Repository) ClearMergedInto(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.ClearMergedInto")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE persons SET
			merged_into_person_id = NULL,
			merged_at = NULL,
			merge_reason = NULL,
			version = version + 1,
			updated_at = $2
		WHERE id = $1 AND merged_into_person_id IS NOT NULL`

	res, err := tx.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to clear merge pointer")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear merge pointer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("person %s is not merged", id))
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear merge pointer")
	}
	return nil
}

// BackfillFields fills absent scalar fields on the target from the source
// during a merge; present target values are never overwritten. Returns the
// names of the fields that were filled.
func (r *Repository) BackfillFields(ctx context.Context, targetID string, source *models.Person) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.BackfillFields")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var target models.Person
	if err := tx.GetContext(ctx, &target, `SELECT `+columns+` FROM persons WHERE id = $1`, targetID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", targetID))
		}
		r.logger.WithContext(ctx).WithError(err).WithField("id", targetID).Error("Failed to get person for backfill")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to backfill person fields")
	}

	var filled []string
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("persons")
	assignments := []string{}
	if target.FirstName == nil && source.FirstName != nil {
		assignments = append(assignments, ub.Assign("first_name", *source.FirstName))
		filled = append(filled, "first_name")
	}
	if target.LastName == nil && source.LastName != nil {
		assignments = append(assignments, ub.Assign("last_name", *source.LastName))
		filled = append(filled, "last_name")
	}
	if target.DisplayName == "" && source.DisplayName != "" {
		assignments = append(assignments, ub.Assign("display_name", source.DisplayName))
		filled = append(filled, "display_name")
	}
	if target.HouseholdID == nil && source.HouseholdID != nil {
		assignments = append(assignments, ub.Assign("household_id", *source.HouseholdID))
		filled = append(filled, "household_id")
	}
	if len(assignments) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to backfill person fields")
		}
		return nil, nil
	}

	assignments = append(assignments,
		ub.Assign("updated_at", time.Now().UTC()),
		"version = version + 1",
	)
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", targetID))

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", targetID).Error("Failed to backfill person fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to backfill person fields")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to backfill person fields")
	}
	return filled, nil
}

// SetHousehold assigns a person to a household
func (r *Repository) SetHousehold(ctx context.Context, personID, householdID string) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.SetHousehold")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("persons")
	ub.Set(
		ub.Assign("household_id", householdID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", personID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("person_id", personID).Error("Failed to set household")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set household")
	}
	return nil
}

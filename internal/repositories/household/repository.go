package household

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

const columns = "id, place_id, shared_identifier_kind, shared_identifier_value, created_at, updated_at"
const memberColumns = "id, household_id, person_id, role, confidence, evidence_source, valid_from, valid_to"

// Repository handles household and membership persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new household repository
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

// FindOrCreate returns the household for a shared identifier, creating it on
// first sight. The upsert keeps concurrent callers converging on one row.
func (r *Repository) FindOrCreate(ctx context.Context, placeID *string, kind models.IdentifierKind, value string) (*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Repository.FindOrCreate")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "FindOrCreate",
		"kind":   kind,
	})

	now := time.Now().UTC()
	query := `
		WITH ins AS (
			INSERT INTO households (id, place_id, shared_identifier_kind, shared_identifier_value, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (shared_identifier_kind, shared_identifier_value) DO NOTHING
			RETURNING ` + columns + `
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + columns + `
		FROM households
		WHERE shared_identifier_kind = $3 AND shared_identifier_value = $4
		LIMIT 1`

	var h models.Household
	if err := r.db.GetContext(ctx, &h, query, uuid.New().String(), placeID, kind, value, now); err != nil {
		log.WithError(err).Error("Failed to find or create household")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find or create household")
	}

	return &h, nil
}

// Get retrieves a household by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("households")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var h models.Household
	if err := r.db.GetContext(ctx, &h, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("household %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get household")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get household")
	}

	return &h, nil
}

// AddMember opens a membership interval for a person. Re-adding a person with
// an open interval is a no-op, which keeps record replay idempotent.
func (r *Repository) AddMember(ctx context.Context, householdID, personID, role, evidenceSource string, confidence float64) (*models.HouseholdMember, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Repository.AddMember")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "AddMember",
		"household_id": householdID,
		"person_id":    personID,
	})

	now := time.Now().UTC()
	query := `
		WITH ins AS (
			INSERT INTO household_members (id, household_id, person_id, role, confidence, evidence_source, valid_from)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (household_id, person_id) WHERE valid_to IS NULL DO NOTHING
			RETURNING ` + memberColumns + `
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + memberColumns + `
		FROM household_members
		WHERE household_id = $2 AND person_id = $3 AND valid_to IS NULL
		LIMIT 1`

	var m models.HouseholdMember
	if err := r.db.GetContext(ctx, &m, query, uuid.New().String(), householdID, personID, role, confidence, evidenceSource, now); err != nil {
		log.WithError(err).Error("Failed to add household member")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to add household member")
	}

	return &m, nil
}

// CloseMembership ends a person's open membership interval. The row stays for
// audit.
func (r *Repository) CloseMembership(ctx context.Context, householdID, personID string) error {
	ctx, span := tracing.StartSpan(ctx, "household.Repository.CloseMembership")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("household_members")
	ub.Set(ub.Assign("valid_to", time.Now().UTC()))
	ub.Where(
		ub.Equal("household_id", householdID),
		ub.Equal("person_id", personID),
		ub.IsNull("valid_to"),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to close household membership")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to close household membership")
	}
	return nil
}

// ListMembers returns the open membership intervals of a household
func (r *Repository) ListMembers(ctx context.Context, householdID string) ([]models.HouseholdMember, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Repository.ListMembers")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(memberColumns)
	sb.From("household_members")
	sb.Where(
		sb.Equal("household_id", householdID),
		sb.IsNull("valid_to"),
	)
	sb.OrderBy("valid_from ASC")

	query, args := sb.Build()
	var members []models.HouseholdMember
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list household members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list household members")
	}
	return members, nil
}

package place

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
	"github.com/harborpaws/resolve/pkg/normalizers"
)

const columns = "id, raw_address, normalized_address, house_number, city, state, zip, merged_into_place_id, merged_at, created_at, updated_at"

// Repository handles canonical place persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new place repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindOrCreate returns the place for an address, creating it on first sight.
// Places are keyed by normalized address so unit variants converge.
func (r *Repository) FindOrCreate(ctx context.Context, rawAddress string, zip *string) (*models.Place, error) {
	ctx, span := tracing.StartSpan(ctx, "place.Repository.FindOrCreate")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("method", "FindOrCreate")

	normalized := normalizers.NormalizeAddress(rawAddress)
	if normalized == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "address is empty after normalization")
	}
	houseNumber := normalizers.HouseNumber(normalized)
	var housePtr *string
	if houseNumber != "" {
		housePtr = &houseNumber
	}

	now := time.Now().UTC()
	query := `
		WITH ins AS (
			INSERT INTO places (id, raw_address, normalized_address, house_number, zip, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (normalized_address) DO NOTHING
			RETURNING ` + columns + `
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + columns + `
		FROM places
		WHERE normalized_address = $3
		LIMIT 1`

	var p models.Place
	if err := r.db.GetContext(ctx, &p, query, uuid.New().String(), rawAddress, normalized, housePtr, zip, now); err != nil {
		log.WithError(err).Error("Failed to find or create place")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find or create place")
	}

	return &p, nil
}

// Get retrieves a place by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Place, error) {
	ctx, span := tracing.StartSpan(ctx, "place.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("places")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var p models.Place
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("place %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get place")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get place")
	}

	return &p, nil
}

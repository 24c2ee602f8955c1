package blacklist

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

const columns = "id, kind, normalized_value, distinct_owner_count, min_name_similarity, require_address_match, reason, created_at, updated_at"

// Repository handles the soft blacklist of shared identifiers
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new blacklist repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the entry for an identifier value, or nil when the value is not
// blacklisted
func (r *Repository) Get(ctx context.Context, kind models.IdentifierKind, normalizedValue string) (*models.BlacklistEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "blacklist.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("blacklist_entries")
	sb.Where(
		sb.Equal("kind", kind),
		sb.Equal("normalized_value", normalizedValue),
	)

	query, args := sb.Build()
	var entry models.BlacklistEntry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get blacklist entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get blacklist entry")
	}

	return &entry, nil
}

// Register upserts an entry for a shared identifier, bumping the owner count
// when new owners are observed. Corroboration requirements only tighten; an
// existing stricter similarity floor is kept.
func (r *Repository) Register(ctx context.Context, kind models.IdentifierKind, normalizedValue string, ownerCount int, minNameSimilarity float64, requireAddressMatch bool, reason *string) (*models.BlacklistEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "blacklist.Repository.Register")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Register",
		"kind":   kind,
	})

	now := time.Now().UTC()
	query := `
		INSERT INTO blacklist_entries (id, kind, normalized_value, distinct_owner_count, min_name_similarity, require_address_match, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (kind, normalized_value) DO UPDATE SET
			distinct_owner_count = GREATEST(blacklist_entries.distinct_owner_count, EXCLUDED.distinct_owner_count),
			min_name_similarity = GREATEST(blacklist_entries.min_name_similarity, EXCLUDED.min_name_similarity),
			require_address_match = blacklist_entries.require_address_match OR EXCLUDED.require_address_match,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + columns

	var entry models.BlacklistEntry
	err := r.db.GetContext(ctx, &entry, query,
		uuid.New().String(), kind, normalizedValue, ownerCount,
		minNameSimilarity, requireAddressMatch, reason, now)
	if err != nil {
		log.WithError(err).Error("Failed to register blacklist entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to register blacklist entry")
	}

	log.WithFields(map[string]any{
		"id":          entry.ID,
		"owner_count": entry.DistinctOwnerCount,
	}).Info("Registered blacklist entry")
	return &entry, nil
}

// List returns all blacklist entries, most-shared first
func (r *Repository) List(ctx context.Context) ([]models.BlacklistEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "blacklist.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("blacklist_entries")
	sb.OrderBy("distinct_owner_count DESC")

	query, args := sb.Build()
	var entries []models.BlacklistEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list blacklist entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list blacklist entries")
	}
	return entries, nil
}

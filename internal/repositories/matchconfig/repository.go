package matchconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

const columns = "version, weights, upper_threshold, lower_threshold, household_min_name_similarity, blacklist_min_name_similarity, min_name_length, is_active, created_at"

// Repository handles versioned matching configuration
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match config repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetActive returns the configuration snapshot currently in force
func (r *Repository) GetActive(ctx context.Context) (*models.MatchConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.GetActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_configs")
	sb.Where(sb.Equal("is_active", true))
	sb.OrderBy("version DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var cfg models.MatchConfig
	if err := r.db.GetContext(ctx, &cfg, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "no active match configuration")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get active match config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get active match config")
	}

	return &cfg, nil
}

// GetByVersion returns a specific configuration version
func (r *Repository) GetByVersion(ctx context.Context, version int) (*models.MatchConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.GetByVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_configs")
	sb.Where(sb.Equal("version", version))

	query, args := sb.Build()
	var cfg models.MatchConfig
	if err := r.db.GetContext(ctx, &cfg, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match config version %d not found", version))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match config")
	}

	return &cfg, nil
}

// Create inserts a new configuration version and makes it the active one.
// Old versions stay for decision reproducibility.
func (r *Repository) Create(ctx context.Context, req models.CreateMatchConfigRequest) (*models.MatchConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("method", "Create")

	weights, err := json.Marshal(req.Weights)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid weights")
	}

	ctxTx, tx, err := r.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctxTx)

	if _, err := tx.ExecContext(ctxTx, `UPDATE match_configs SET is_active = false WHERE is_active = true`); err != nil {
		log.WithError(err).Error("Failed to deactivate match configs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match config")
	}

	query := `
		INSERT INTO match_configs (weights, upper_threshold, lower_threshold, household_min_name_similarity, blacklist_min_name_similarity, min_name_length, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING ` + columns

	var cfg models.MatchConfig
	row := tx.QueryRowxContext(ctxTx, query, weights, req.UpperThreshold, req.LowerThreshold,
		req.HouseholdMinNameSimilarity, req.BlacklistMinNameSimilarity, req.MinNameLength)
	if err := row.StructScan(&cfg); err != nil {
		log.WithError(err).Error("Failed to insert match config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match config")
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match config")
	}

	log.WithFields(map[string]any{"version": cfg.Version}).Info("Created match config version")
	return &cfg, nil
}

// ListVersions returns all configuration versions, newest first
func (r *Repository) ListVersions(ctx context.Context) ([]models.MatchConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "matchconfig.Repository.ListVersions")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_configs")
	sb.OrderBy("version DESC")

	query, args := sb.Build()
	var configs []models.MatchConfig
	if err := r.db.SelectContext(ctx, &configs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match configs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match configs")
	}
	return configs, nil
}

package rawrecord

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

const columns = "id, source_system, source_table, source_row_id, source_row_hash, payload, processing_state, received_at, processed_at, error_message"

// Repository handles the append-only raw record store
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new raw record repository
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

// HashPayload produces the content hash used for idempotent re-ingest
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Ingest stores one payload. Re-ingesting an identical row (same source
// identity and content hash) returns the existing record with inserted=false,
// so replays never double-create.
func (r *Repository) Ingest(ctx context.Context, req models.IngestRequest) (*models.RawRecord, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.Ingest")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":        "Ingest",
		"source_system": req.SourceSystem,
		"source_table":  req.SourceTable,
		"source_row_id": req.SourceRowID,
	})

	record := &models.RawRecord{
		ID:              uuid.New().String(),
		SourceSystem:    req.SourceSystem,
		SourceTable:     req.SourceTable,
		SourceRowID:     req.SourceRowID,
		SourceRowHash:   HashPayload(req.Payload),
		Payload:         req.Payload,
		ProcessingState: models.ProcessingStatePending,
		ReceivedAt:      time.Now().UTC(),
	}

	query := `
		WITH ins AS (
			INSERT INTO raw_records (id, source_system, source_table, source_row_id, source_row_hash, payload, processing_state, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (source_system, source_table, source_row_id, source_row_hash) DO NOTHING
			RETURNING ` + columns + `, true AS inserted
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + columns + `, false AS inserted
		FROM raw_records
		WHERE source_system = $2 AND source_table = $3 AND source_row_id = $4 AND source_row_hash = $5
		LIMIT 1`

	var row struct {
		models.RawRecord
		Inserted bool `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &row, query,
		record.ID, record.SourceSystem, record.SourceTable, record.SourceRowID,
		record.SourceRowHash, record.Payload, record.ProcessingState, record.ReceivedAt)
	if err != nil {
		log.WithError(err).Error("Failed to ingest raw record")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to ingest raw record")
	}

	if row.Inserted {
		log.WithFields(map[string]any{"id": row.RawRecord.ID}).Info("Ingested raw record")
	}
	return &row.RawRecord, row.Inserted, nil
}

// Get retrieves a raw record by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("raw_records")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var record models.RawRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("raw record %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get raw record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get raw record")
	}

	return &record, nil
}

// ListPendingBatch returns up to limit pending records for one source table,
// oldest first
func (r *Repository) ListPendingBatch(ctx context.Context, sourceSystem, sourceTable string, limit int) ([]models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.ListPendingBatch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("raw_records")
	sb.Where(
		sb.Equal("source_system", sourceSystem),
		sb.Equal("source_table", sourceTable),
		sb.Equal("processing_state", models.ProcessingStatePending),
	)
	sb.OrderBy("received_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.RawRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending raw records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending raw records")
	}

	return records, nil
}

// MarkProcessed transitions a record to processed
func (r *Repository) MarkProcessed(ctx context.Context, id string) error {
	return r.setState(ctx, id, models.ProcessingStateProcessed, nil)
}

// MarkFailed transitions a record to failed with the per-record error
func (r *Repository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.setState(ctx, id, models.ProcessingStateFailed, &errMsg)
}

func (r *Repository) setState(ctx context.Context, id string, state models.ProcessingState, errMsg *string) error {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.setState")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("raw_records")
	ub.Set(
		ub.Assign("processing_state", state),
		ub.Assign("processed_at", time.Now().UTC()),
		ub.Assign("error_message", errMsg),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("id", id).Error("Failed to update raw record state")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update raw record state")
	}
	return nil
}

// PendingSourceTables returns the distinct (source_system, source_table) pairs
// that still have pending records, used by the enqueue sweep
func (r *Repository) PendingSourceTables(ctx context.Context) ([]models.SourceContext, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.PendingSourceTables")
	defer span.End()

	query := `
		SELECT DISTINCT source_system, source_table
		FROM raw_records
		WHERE processing_state = 'pending'`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending source tables")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending source tables")
	}
	defer rows.Close()

	var out []models.SourceContext
	for rows.Next() {
		var sc models.SourceContext
		if err := rows.Scan(&sc.SourceSystem, &sc.SourceTable); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan pending source tables")
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

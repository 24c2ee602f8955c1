package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type txContextKey string

const txKey = txContextKey("tx")

// Tx is the transactional subset of the DB surface. The caller that opened the
// transaction owns it; participants resolved from the context get a handle
// whose Commit and Rollback do nothing, so nested repository calls can follow
// the usual defer-rollback pattern without closing the outer transaction.
type Tx interface {
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

// participant wraps the owner's transaction for callers that joined it via the
// context. Statements run on the shared transaction; closing it is left to the
// owner.
type participant struct {
	*Transaction
}

func (p participant) Commit(ctx context.Context) error   { return nil }
func (p participant) Rollback(ctx context.Context) error { return nil }

// GetTx joins the transaction attached to ctx when one is open, otherwise
// begins a new one and attaches it. Only the Tx returned from the call that
// began the transaction can commit or roll it back.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if joined, ok := ctx.Value(txKey).(participant); ok && joined.Transaction != nil && joined.IsOpen() {
		return ctx, joined, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("failed to begin transaction")
		return ctx, nil, errors.Wrap(err, "failed to begin transaction")
	}

	owner := NewTx(tx, logger)
	ctx = context.WithValue(ctx, txKey, participant{owner})
	return ctx, owner, nil
}

func (t *Transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("failed to roll back transaction")
		return errors.Wrap(err, "failed to roll back transaction")
	}

	t.isClosed = true
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("failed to commit transaction")
		return errors.Wrap(err, "failed to commit transaction")
	}

	t.isClosed = true
	return nil
}

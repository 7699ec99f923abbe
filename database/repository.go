package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const migrationsTable = "migrations"

const createMigrationsTableQuery = `
	CREATE TABLE IF NOT EXISTS migrations (
		id SERIAL PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		executed_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		success BOOLEAN NOT NULL,
		error_message TEXT
	)
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar) //nolint:gochecknoglobals

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type db interface {
	execer
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type repository struct {
	db db
}

func newRepository(db db) *repository {
	return &repository{db: db}
}

func (r *repository) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createMigrationsTableQuery)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (r *repository) hasSucceeded(ctx context.Context, fileName string) (bool, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From(migrationsTable).
		Where(sq.Eq{"filename": fileName, "success": true}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build migration lookup: %w", err)
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to look up migration %s: %w", fileName, err)
	}
	return count > 0, nil
}

func (r *repository) getRecords(ctx context.Context) ([]MigrationRecord, error) {
	query, args, err := psql.
		Select("id", "filename", "executed_at", "success", "error_message").
		From(migrationsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build migration records query: %w", err)
	}

	var records []MigrationRecord
	err = r.db.SelectContext(ctx, &records, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration records: %w", err)
	}
	return records, nil
}

// saveSuccess records a successful run through e, which is the migration's
// own transaction so the record commits or rolls back with it.
func (r *repository) saveSuccess(ctx context.Context, e execer, fileName string) error {
	return r.insertRecord(ctx, e, fileName, true, nil)
}

// saveFailure records a failed run outside of the rolled back transaction.
func (r *repository) saveFailure(ctx context.Context, fileName string, cause error) error {
	return r.insertRecord(ctx, r.db, fileName, false, cause.Error())
}

func (r *repository) insertRecord(ctx context.Context, e execer, fileName string, success bool, errorMessage any) error {
	query, args, err := psql.
		Insert(migrationsTable).
		Columns("filename", "success", "error_message").
		Values(fileName, success, errorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build migration record insert: %w", err)
	}

	_, err = e.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save migration record: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing when fn succeeds and
// rolling back otherwise.
func withTx(ctx context.Context, conn db, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if err != nil {
			// database/sql has already rolled back when ctx was canceled.
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rollbackErr))
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

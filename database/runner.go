package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/idling-app/dbmigrate/log"
)

// Reporter receives operator-facing progress messages.
type Reporter interface {
	Success(msg string)
	Warn(msg string)
	Fail(msg string, err error)
	Info(msg string)
	Blank()
	FileName(path string) string
	Table(columns []string, rows [][]string)
}

// Prompter asks the operator a single-line question.
type Prompter interface {
	PromptLine(ctx context.Context, question string) (string, error)
}

// Runner discovers, creates and executes migration files in a directory and
// tracks their results in the migrations table.
type Runner struct {
	repo *repository
	conn db
	dir  Dir
	out  Reporter
}

// NewRunner creates a Runner executing files from dir over conn.
func NewRunner(conn db, dir Dir, out Reporter) *Runner {
	return &Runner{repo: newRepository(conn), conn: conn, dir: dir, out: out}
}

// EnsureTable creates the migrations tracking table if it does not exist.
func (r *Runner) EnsureTable(ctx context.Context) error {
	return r.repo.ensureTable(ctx)
}

// RunMigration executes a single migration file unless a successful run of
// it is already recorded. The file content and the success record share one
// transaction. A failure is recorded separately, so it survives the rollback.
func (r *Runner) RunMigration(ctx context.Context, fileName string) (Outcome, error) {
	ctx = log.WithMigration(ctx, fileName)

	err := r.repo.ensureTable(ctx)
	if err != nil {
		return "", err
	}

	done, err := r.repo.hasSucceeded(ctx, fileName)
	if err != nil {
		return "", err
	}
	if done {
		r.out.Warn(fmt.Sprintf("Skipping %s - already executed successfully", r.out.FileName(fileName)))
		log.InfoContext(ctx, "migration skipped")
		return OutcomeSkipped, nil
	}

	err = r.apply(ctx, fileName)
	if err != nil {
		// The run may have been interrupted; the failure row must still land.
		saveErr := r.repo.saveFailure(context.WithoutCancel(ctx), fileName, err)
		if saveErr != nil {
			log.ErrorContext(ctx, "failed to record migration failure", "error", saveErr)
		}

		r.out.Fail(fmt.Sprintf("Migration %s failed", r.out.FileName(fileName)), err)
		log.ErrorContext(ctx, "migration failed", "error", err)
		return "", &MigrationError{File: fileName, Err: err}
	}

	r.out.Success("Successfully executed " + r.out.FileName(fileName))
	log.InfoContext(ctx, "migration applied")
	return OutcomeApplied, nil
}

func (r *Runner) apply(ctx context.Context, fileName string) error {
	content, err := r.dir.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	r.out.Info("Executing " + r.out.FileName(fileName) + "...")

	return withTx(ctx, r.conn, func(tx *sqlx.Tx) error {
		preview, err := execBatch(ctx, tx, string(content))
		if err != nil {
			return err
		}

		if preview != nil {
			r.out.Info("Query results:")
			r.out.Table(preview.columns, preview.rows)
		}

		return r.repo.saveSuccess(ctx, tx, fileName)
	})
}

type resultSet struct {
	columns []string
	rows    [][]string
}

// execBatch runs query as one multi-statement batch and returns the first
// result set that has rows, or nil when there is none. All result sets are
// drained so errors from later statements are reported.
func execBatch(ctx context.Context, tx *sqlx.Tx, query string) (*resultSet, error) {
	rows, err := tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute migration: %w", err)
	}
	defer rows.Close()

	var preview *resultSet
	for {
		columns, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read result columns: %w", err)
		}

		set := &resultSet{columns: columns}
		for rows.Next() {
			values, err := rows.SliceScan()
			if err != nil {
				return nil, fmt.Errorf("failed to scan result row: %w", err)
			}
			if preview == nil {
				set.rows = append(set.rows, formatRow(values))
			}
		}
		if preview == nil && len(set.rows) > 0 {
			preview = set
		}

		if !rows.NextResultSet() {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute migration: %w", err)
	}

	return preview, rows.Close()
}

func formatRow(values []any) []string {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = formatValue(v)
	}
	return row
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// RunAll executes every migration file in the directory in file name order.
// It stops at the first failing file; files after it are not attempted.
func (r *Runner) RunAll(ctx context.Context) (Summary, error) {
	var summary Summary

	files, err := ListMigrationFiles(r.dir)
	if err != nil {
		return summary, err
	}

	r.out.Info(fmt.Sprintf("Found %d migration files to process...", len(files)))
	log.InfoContext(ctx, "running migrations", "count", len(files))

	for _, file := range files {
		outcome, err := r.RunMigration(ctx, file)
		if err != nil {
			summary.Failed = file
			return summary, err
		}

		switch outcome {
		case OutcomeApplied:
			summary.Applied = append(summary.Applied, file)
		case OutcomeSkipped:
			summary.Skipped = append(summary.Skipped, file)
		}
	}

	return summary, nil
}

// CreateMigration asks for a description and writes the next migration file.
// It returns the created file name.
func (r *Runner) CreateMigration(ctx context.Context, prompter Prompter) (string, error) {
	number, err := r.nextNumber()
	if err != nil {
		return "", err
	}

	description, err := prompter.PromptLine(ctx, "Enter migration description: ")
	if err != nil {
		return "", fmt.Errorf("failed to read migration description: %w", err)
	}

	return r.writeMigration(ctx, number, description)
}

// CreateNamedMigration writes the next migration file for description
// without prompting.
func (r *Runner) CreateNamedMigration(ctx context.Context, description string) (string, error) {
	number, err := r.nextNumber()
	if err != nil {
		return "", err
	}

	return r.writeMigration(ctx, number, description)
}

func (r *Runner) nextNumber() (string, error) {
	entries, err := r.dir.ReadDir(".")
	if err != nil {
		return "", fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	existing, err := ListMigrationFiles(r.dir)
	if err != nil {
		return "", err
	}

	if len(existing) == 0 {
		r.out.Info("No migrations found, creating first migration file...")
	} else {
		r.out.Info("Existing migrations:")
		for _, name := range existing {
			r.out.Info("  " + r.out.FileName(name))
		}
		r.out.Blank()
	}

	return NextSequenceNumber(names), nil
}

func (r *Runner) writeMigration(ctx context.Context, number, description string) (string, error) {
	fileName := MigrationFileName(number, description)
	content := "-- Migration: " + description + "\n\n"

	err := r.dir.WriteFile(fileName, []byte(content))
	if err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}

	r.out.Success("Created new migration: " + r.out.FileName(fileName))
	log.InfoContext(ctx, "migration created", "file", fileName)

	return fileName, nil
}

// Status reports the tracking state of every migration file in the directory.
// Records for files that are no longer present are ignored.
func (r *Runner) Status(ctx context.Context) ([]FileStatus, error) {
	files, err := ListMigrationFiles(r.dir)
	if err != nil {
		return nil, err
	}

	err = r.repo.ensureTable(ctx)
	if err != nil {
		return nil, err
	}

	records, err := r.repo.getRecords(ctx)
	if err != nil {
		return nil, err
	}

	byFile := make(map[string][]MigrationRecord, len(records))
	for _, record := range records {
		byFile[record.Filename] = append(byFile[record.Filename], record)
	}

	statuses := make([]FileStatus, 0, len(files))
	for _, file := range files {
		statuses = append(statuses, fileStatus(file, byFile[file]))
	}

	return statuses, nil
}

// fileStatus folds the records of one file, ordered by id, into its state.
// The first success wins; otherwise the latest failure is reported.
func fileStatus(file string, records []MigrationRecord) FileStatus {
	status := FileStatus{FileName: file, State: StatePending}

	for _, record := range records {
		if record.Success {
			return FileStatus{FileName: file, State: StateApplied, ExecutedAt: record.ExecutedAt.Time}
		}

		status.State = StateFailed
		status.ExecutedAt = record.ExecutedAt.Time
		status.Error = record.ErrorMessage.String
	}

	return status
}

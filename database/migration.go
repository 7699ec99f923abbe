package database

import (
	"database/sql"
	"fmt"
	"time"
)

// MigrationRecord is one row of the migrations tracking table.
// A row is written for every execution attempt, successful or not.
type MigrationRecord struct {
	ID           int64          `db:"id"`
	Filename     string         `db:"filename"`
	ExecutedAt   sql.NullTime   `db:"executed_at"`
	Success      bool           `db:"success"`
	ErrorMessage sql.NullString `db:"error_message"`
}

// Outcome reports what RunMigration did with a file.
type Outcome string

const (
	// OutcomeApplied means the file was executed and recorded as successful.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means a successful record already existed for the file.
	OutcomeSkipped Outcome = "skipped"
)

// Summary collects the results of a batch run.
type Summary struct {
	Applied []string
	Skipped []string
	// Failed is the file that stopped the batch, if any.
	Failed string
}

// FileState is the tracking state of a migration file.
type FileState string

// File states reported by Status.
const (
	StatePending FileState = "pending"
	StateApplied FileState = "applied"
	StateFailed  FileState = "failed"
)

// FileStatus describes a migration file together with its tracking state.
type FileStatus struct {
	FileName   string
	State      FileState
	ExecutedAt time.Time
	// Error holds the message of the latest failed attempt when State is StateFailed.
	Error string
}

// MigrationError is returned when executing a migration file fails.
type MigrationError struct {
	File string
	Err  error
}

// Error returns the formatted error message for MigrationError.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.File, e.Err)
}

// Unwrap returns the underlying error for MigrationError.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

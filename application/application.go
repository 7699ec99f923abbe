// Package application dispatches the migration tool's commands and runs the
// interactive menu.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/idling-app/dbmigrate/console"
	"github.com/idling-app/dbmigrate/database"
	"github.com/idling-app/dbmigrate/log"
	"github.com/idling-app/dbmigrate/scheduler"
)

// DefaultWatchSchedule is used by the watch command when no cron expression is given.
const DefaultWatchSchedule = "@every 1m"

var (
	// ErrUnknownCommand is returned when an unknown CLI command is provided.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingDescription is returned when create is called without a description.
	ErrMissingDescription = errors.New("migration description is required")
)

// ErrMigrationFailed is an error type that represents a failed migration batch.
type ErrMigrationFailed struct {
	err error
}

// Error returns the formatted error message for ErrMigrationFailed.
func (e *ErrMigrationFailed) Error() string {
	return fmt.Sprintf("failed to run migrations: %v", e.err)
}

// Unwrap returns the underlying error for ErrMigrationFailed.
func (e *ErrMigrationFailed) Unwrap() error {
	return e.err
}

// Migrator is the set of migration operations the application drives.
type Migrator interface {
	EnsureTable(ctx context.Context) error
	RunAll(ctx context.Context) (database.Summary, error)
	CreateMigration(ctx context.Context, prompter database.Prompter) (string, error)
	CreateNamedMigration(ctx context.Context, description string) (string, error)
	Status(ctx context.Context) ([]database.FileStatus, error)
}

// Application wires the migrator to the command line and the interactive menu.
type Application struct {
	migrator      Migrator
	migrationsDir string
	prompter      database.Prompter
	out           *console.Printer
	ensureDir     func(path string) error
}

// New creates and returns a new Application instance.
func New(migrator Migrator, migrationsDir string, prompter database.Prompter, out *console.Printer) *Application {
	return &Application{
		migrator:      migrator,
		migrationsDir: migrationsDir,
		prompter:      prompter,
		out:           out,
		ensureDir:     database.EnsureDir,
	}
}

func (a *Application) printUsage() {
	a.out.Title("Usage: migrate [command]")
	a.out.Blank()
	a.out.Info("Without a command the interactive menu is shown.")
	a.out.Blank()
	a.out.Title("Commands:")
	a.out.Table([]string{"Command", "Description"}, [][]string{
		{"migrate", "Run all pending migrations in order, stopping at the first failure"},
		{"create <description>", "Create the next numbered migration file"},
		{"status", "Show applied, failed and pending migrations (a file is applied once by name)"},
		{"watch [cron]", "Run pending migrations on a schedule (default " + DefaultWatchSchedule + ")"},
		{"help", "Show this help"},
	})
}

// Run parses CLI arguments and executes the appropriate command.
// Without arguments it enters the interactive menu.
// Returns ErrUnknownCommand for unknown commands.
func (a *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.Interactive(ctx)
	}

	command := args[0]
	ctx = context.WithValue(ctx, log.CommandKey, command)

	switch command {
	case "migrate":
		return a.migrate(ctx)
	case "create":
		return a.create(ctx, strings.Join(args[1:], " "))
	case "status":
		return a.status(ctx)
	case "watch":
		schedule := DefaultWatchSchedule
		if len(args) > 1 {
			schedule = strings.Join(args[1:], " ")
		}
		return a.watch(ctx, schedule)
	case "help", "--help", "-h":
		a.printUsage()
		return nil
	default:
		a.printUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// Interactive prepares the migrations directory and tracking table, shows the
// menu and runs the selected action once. It never exits the process; the
// caller decides the exit code from the returned error.
func (a *Application) Interactive(ctx context.Context) error {
	ctx = context.WithValue(ctx, log.CommandKey, "interactive")

	err := a.ensureDir(a.migrationsDir)
	if err != nil {
		return err
	}

	err = a.migrator.EnsureTable(ctx)
	if err != nil {
		return err
	}

	a.out.Title("📦 Database Migration Tool")
	a.out.Blank()
	a.out.MenuItem("1", "Run all migrations")
	a.out.MenuItem("2", "Create new migration")
	a.out.Blank()

	option, err := a.prompter.PromptLine(ctx, "Select an option: ")
	if err != nil {
		return fmt.Errorf("failed to read option: %w", err)
	}

	switch strings.TrimSpace(option) {
	case "1":
		err = a.runAll(ctx)
	case "2":
		_, err = a.migrator.CreateMigration(ctx, a.prompter)
	default:
		a.out.Warn("Invalid option")
		log.WarnContext(ctx, "invalid menu option", "option", option)
		return nil
	}

	return err
}

func (a *Application) migrate(ctx context.Context) error {
	err := a.ensureDir(a.migrationsDir)
	if err != nil {
		return err
	}

	return a.runAll(ctx)
}

func (a *Application) runAll(ctx context.Context) error {
	summary, err := a.migrator.RunAll(ctx)
	a.printSummary(summary)
	if err != nil {
		return &ErrMigrationFailed{err: err}
	}
	return nil
}

func (a *Application) printSummary(summary database.Summary) {
	a.out.Blank()
	a.out.Title("Migration Summary")
	a.out.Success(fmt.Sprintf("Successful: %d", len(summary.Applied)))
	a.out.Warn(fmt.Sprintf("Skipped: %d", len(summary.Skipped)))
	if summary.Failed != "" {
		a.out.Fail("Failed: "+a.out.FileName(summary.Failed), nil)
	}
}

func (a *Application) create(ctx context.Context, description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrMissingDescription
	}

	err := a.ensureDir(a.migrationsDir)
	if err != nil {
		return err
	}

	_, err = a.migrator.CreateNamedMigration(ctx, description)
	return err
}

func (a *Application) status(ctx context.Context) error {
	err := a.ensureDir(a.migrationsDir)
	if err != nil {
		return err
	}

	statuses, err := a.migrator.Status(ctx)
	if err != nil {
		return err
	}

	if len(statuses) == 0 {
		a.out.Info("No migrations found in " + a.migrationsDir)
		return nil
	}

	rows := make([][]string, 0, len(statuses))
	pending := 0
	for _, status := range statuses {
		executedAt := ""
		if !status.ExecutedAt.IsZero() {
			executedAt = status.ExecutedAt.Local().Format("2006-01-02 15:04:05")
		}
		if status.State == database.StatePending {
			pending++
		}
		rows = append(rows, []string{status.FileName, string(status.State), executedAt, status.Error})
	}

	a.out.Table([]string{"File", "State", "Executed At", "Error"}, rows)
	a.out.Info(fmt.Sprintf("%d of %d migrations pending", pending, len(statuses)))
	return nil
}

func (a *Application) watch(ctx context.Context, schedule string) error {
	err := a.ensureDir(a.migrationsDir)
	if err != nil {
		return err
	}

	watchCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	// The first failed run ends the watch.
	s, err := scheduler.New(schedule, scheduler.TaskFunc(func(runCtx context.Context) error {
		runErr := a.runAll(runCtx)
		if runErr != nil {
			stop(runErr)
		}
		return runErr
	}))
	if err != nil {
		return err
	}

	a.out.Info("Watching " + a.migrationsDir + " (" + schedule + "), press Ctrl+C to stop")

	err = s.Run(watchCtx)

	var failed *ErrMigrationFailed
	if cause := context.Cause(watchCtx); errors.As(cause, &failed) {
		return cause
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/idling-app/dbmigrate/application"
	"github.com/idling-app/dbmigrate/config"
	"github.com/idling-app/dbmigrate/console"
	"github.com/idling-app/dbmigrate/database"
	"github.com/idling-app/dbmigrate/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = log.WithTraceID(ctx)

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "failed to load configuration", "error", err)
		return 1
	}

	log.SetDefault(log.New(os.Stderr, cfg.LogFormat, log.ParseLevel(cfg.LogLevel), nil))

	workDir, err := os.Getwd()
	if err != nil {
		log.ErrorContext(ctx, "failed to get working directory", "error", err)
		return 1
	}
	migrationsDir := cfg.MigrationsPath(workDir)

	db, err := database.New(cfg.DSN())
	if err != nil {
		log.ErrorContext(ctx, "failed to open database", "error", err)
		return 1
	}
	defer db.Close()

	db.ConfigurePool(cfg.MaxOpenConns, cfg.IdleTimeout)

	out := console.New(os.Stdout)
	runner := db.Runner(database.NewOSDir(migrationsDir), out)
	app := application.New(runner, migrationsDir, console.NewPrompter(os.Stdin, os.Stdout), out)

	err = app.Run(ctx, os.Args[1:])
	if err != nil {
		log.ErrorContext(ctx, "command failed", "error", err)
		return 1
	}

	return 0
}

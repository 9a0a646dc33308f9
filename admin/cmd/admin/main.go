package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/Avexra-AI/SAS-Chatbot/admin/internal/admin"
	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/Avexra-AI/SAS-Chatbot/api/config"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/logger"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	// Commands
	validateModelFlag := flag.Bool("validate-model", false, "Load the semantic model and print its catalog")
	verifyCatalogOnlyFlag := flag.Bool("check-catalog", false, "Check the semantic model against the configured database catalog")
	compileFlag := flag.String("compile", "", `Compile an intent JSON (e.g. '{"metric":"order_count","dimensions":["customer"]}') to SQL without running it`)
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run chat history migrations")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the last chat history migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show chat history migration status")
	resetHistoryFlag := flag.Bool("reset-history", false, "Delete all stored conversation history")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	log := logger.New(cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case *validateModelFlag:
		_, err := admin.ValidateModel(os.Stdout, cfg.SemanticModelPath)
		return err

	case *compileFlag != "":
		reg, err := registry.Load(cfg.SemanticModelPath)
		if err != nil {
			return err
		}
		return admin.CompileIntent(os.Stdout, reg, *compileFlag)

	case *verifyCatalogOnlyFlag:
		reg, err := registry.Load(cfg.SemanticModelPath)
		if err != nil {
			return err
		}
		if cfg.DBBackend == config.BackendClickHouse {
			conn, err := config.NewClickHouseConn(ctx, log, cfg.ClickHouse)
			if err != nil {
				return err
			}
			defer conn.Close()
			return admin.VerifyCatalog(ctx, log, reg, workflow.NewClickHouseCatalog(conn))
		}
		pool, err := config.NewPostgresPool(ctx, log, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		return admin.VerifyCatalog(ctx, log, reg, workflow.NewPostgresCatalog(pool))

	case *pgMigrateFlag:
		return admin.PgMigrateUp(log, cfg.Postgres)

	case *pgMigrateDownFlag:
		return admin.PgMigrateDown(log, cfg.Postgres)

	case *pgMigrateStatusFlag:
		return admin.PgMigrateStatus(log, cfg.Postgres)

	case *resetHistoryFlag:
		pool, err := config.NewPostgresPool(ctx, log, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		return admin.ResetHistory(ctx, log, pool, os.Stdin, os.Stdout, *dryRunFlag, *yesFlag)
	}

	flag.Usage()
	return nil
}

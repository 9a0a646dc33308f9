package admin

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Avexra-AI/SAS-Chatbot/api/config"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"
)

// PgMigrateUp runs all pending chat history migrations.
func PgMigrateUp(log *slog.Logger, cfg config.PgConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.RunMigrations(log, cfg.ConnString())
}

// PgMigrateDown rolls back the last chat history migration.
func PgMigrateDown(log *slog.Logger, cfg config.PgConfig) error {
	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("rolling back PostgreSQL migration (down)")
	if err := goose.Down(db, "migrations"); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	log.Info("PostgreSQL migration rollback completed")
	return nil
}

// PgMigrateStatus prints the status of every chat history migration.
func PgMigrateStatus(log *slog.Logger, cfg config.PgConfig) error {
	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("PostgreSQL migration status")
	if err := goose.Status(db, "migrations"); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func openPgDB(cfg config.PgConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	goose.SetBaseFS(config.EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db, err := sql.Open("pgx", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

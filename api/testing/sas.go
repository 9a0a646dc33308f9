package apitesting

import (
	_ "embed"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/sas_seed.sql
var sasSeed string

// SeedSAS creates the sales and stock tables described by the bundled
// semantic model and fills them with a small fixed dataset. It is safe to
// call once per database.
func SeedSAS(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(t.Context(), sasSeed)
	require.NoError(t, err, "failed to seed SAS tables")
}

// NewSASDatabase returns a pool on a fresh database in the container,
// seeded with SeedSAS, so tests do not see each other's tables.
func NewSASDatabase(t *testing.T, db *DB, name string) *pgxpool.Pool {
	t.Helper()
	admin := NewTestPool(t, db)
	_, err := admin.Exec(t.Context(), "CREATE DATABASE "+name)
	require.NoError(t, err, "failed to create database %s", name)

	cfg, err := pgxpool.ParseConfig(db.connStr)
	require.NoError(t, err)
	cfg.ConnConfig.Database = name
	pool, err := pgxpool.NewWithConfig(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	SeedSAS(t, pool)
	return pool
}

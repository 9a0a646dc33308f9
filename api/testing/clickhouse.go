package apitesting

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/config"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/retry"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

//go:embed testdata/sas_seed_clickhouse.sql
var sasSeedClickHouse string

// ClickHouseDBConfig holds the ClickHouse test container configuration.
type ClickHouseDBConfig struct {
	Database       string
	Username       string
	Password       string
	Port           string
	ContainerImage string
}

func (cfg *ClickHouseDBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "clickhouse/clickhouse-server:latest"
	}
	return nil
}

// ClickHouseDB represents a ClickHouse test container.
type ClickHouseDB struct {
	log       *slog.Logger
	cfg       *ClickHouseDBConfig
	addr      string
	container *tcch.ClickHouseContainer
}

// Addr returns the native protocol address (host:port).
func (db *ClickHouseDB) Addr() string {
	return db.addr
}

func (db *ClickHouseDB) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.container.Terminate(terminateCtx); err != nil {
		db.log.Error("failed to terminate ClickHouse container", "error", err)
	}
}

// NewClickHouseDB starts a ClickHouse testcontainer.
func NewClickHouseDB(ctx context.Context, log *slog.Logger, cfg *ClickHouseDBConfig) (*ClickHouseDB, error) {
	if cfg == nil {
		cfg = &ClickHouseDBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate DB config: %w", err)
	}

	container, err := retry.DoValue(ctx, retry.Config{
		MaxAttempts: 3,
		BaseBackoff: 750 * time.Millisecond,
		MaxBackoff:  3 * time.Second,
		Retryable:   isRetryableContainerStartErr,
	}, func() (*tcch.ClickHouseContainer, error) {
		return tcch.Run(ctx,
			cfg.ContainerImage,
			tcch.WithDatabase(cfg.Database),
			tcch.WithUsername(cfg.Username),
			tcch.WithPassword(cfg.Password),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ClickHouse container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get ClickHouse container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, nat.Port(cfg.Port+"/tcp"))
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get ClickHouse container mapped port: %w", err)
	}

	return &ClickHouseDB{
		log:       log,
		cfg:       cfg,
		addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
		container: container,
	}, nil
}

// NewClickHouseSASDatabase creates a uniquely named database in the
// container, seeds it with the SAS tables and returns a connection whose
// default database is the new one. The database is dropped when the test
// ends.
func NewClickHouseSASDatabase(t *testing.T, db *ClickHouseDB) (driver.Conn, string) {
	t.Helper()

	admin := newClickHouseConn(t, db, db.cfg.Database)
	name := "sas_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	require.NoError(t, admin.Exec(t.Context(), "CREATE DATABASE "+name), "failed to create database %s", name)
	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := admin.Exec(dropCtx, "DROP DATABASE IF EXISTS "+name); err != nil {
			db.log.Warn("failed to drop ClickHouse test database", "database", name, "error", err)
		}
	})

	conn := newClickHouseConn(t, db, name)
	for _, stmt := range strings.Split(sasSeedClickHouse, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		require.NoError(t, conn.Exec(t.Context(), stmt), "failed to seed SAS tables")
	}
	return conn, name
}

func newClickHouseConn(t *testing.T, db *ClickHouseDB, database string) driver.Conn {
	t.Helper()
	conn, err := retry.DoValue(t.Context(), retry.Config{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		Retryable:   isRetryableClickHouseConnErr,
	}, func() (driver.Conn, error) {
		return config.NewClickHouseConn(t.Context(), db.log, config.ClickHouseConfig{
			Addr:     db.addr,
			Database: database,
			Username: db.cfg.Username,
			Password: db.cfg.Password,
		})
	})
	require.NoError(t, err, "failed to connect to ClickHouse")
	t.Cleanup(func() { conn.Close() })
	return conn
}

// SkipWithoutClickHouse skips t when the ClickHouse container could not be
// started.
func SkipWithoutClickHouse(t *testing.T, db *ClickHouseDB) {
	t.Helper()
	if db == nil {
		t.Skip("ClickHouse container unavailable")
	}
}

func isRetryableClickHouseConnErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "handshake") ||
		strings.Contains(s, "unexpected packet") ||
		strings.Contains(s, "failed to ping") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "dial tcp")
}

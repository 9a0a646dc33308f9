package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const DefaultClickHouseDatabase = "default"

// ClickHouseConfig holds the ClickHouse configuration.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	// Secure enables TLS (ClickHouse Cloud listens on 9440).
	Secure           bool
	MaxExecutionTime time.Duration
}

func (c *ClickHouseConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("CLICKHOUSE_ADDR is required")
	}
	if c.Database == "" {
		c.Database = DefaultClickHouseDatabase
	}
	if c.Username == "" {
		c.Username = "default"
	}
	if c.MaxExecutionTime == 0 {
		c.MaxExecutionTime = 60 * time.Second
	}
	return nil
}

// NewClickHouseConn opens and pings a ClickHouse connection.
func NewClickHouseConn(ctx context.Context, log *slog.Logger, cfg ClickHouseConfig) (driver.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.MaxExecutionTime.Seconds()),
		},
		DialTimeout: 5 * time.Second,
	}
	if cfg.Secure {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("ClickHouse client initialized", "addr", cfg.Addr, "database", cfg.Database, "secure", cfg.Secure)
	return conn, nil
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 5000
)

// PgxQueryer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type PgxQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresQuerier executes compiled queries against PostgreSQL.
type PostgresQuerier struct {
	log     *slog.Logger
	db      PgxQueryer
	timeout time.Duration
	maxRows int
}

func NewPostgresQuerier(log *slog.Logger, db PgxQueryer, timeout time.Duration, maxRows int) *PostgresQuerier {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &PostgresQuerier{log: log, db: db, timeout: timeout, maxRows: maxRows}
}

func (q *PostgresQuerier) Query(ctx context.Context, cq compiler.Query) (ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	rs, err := q.query(ctx, cq)
	metrics.RecordDBQuery("postgres", time.Since(start), err)
	if err != nil {
		q.log.Warn("postgres: query failed", "duration", time.Since(start), "error", err)
		return ResultSet{}, &ExecutionError{SQL: cq.SQL, Err: err}
	}
	q.log.Debug("postgres: query completed", "duration", time.Since(start), "rows", len(rs.Rows))
	return rs, nil
}

func (q *PostgresQuerier) query(ctx context.Context, cq compiler.Query) (ResultSet, error) {
	rows, err := q.db.Query(ctx, cq.SQL, cq.Args...)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := ResultSet{Columns: make([]string, len(fields)), Rows: []map[string]any{}}
	for i, fd := range fields {
		rs.Columns[i] = fd.Name
	}

	for rows.Next() {
		if len(rs.Rows) >= q.maxRows {
			q.log.Warn("postgres: result truncated", "maxRows", q.maxRows)
			break
		}
		values, err := rows.Values()
		if err != nil {
			return ResultSet{}, fmt.Errorf("failed to read row: %w", err)
		}
		rs.Rows = append(rs.Rows, NormalizeRow(rs.Columns, values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

// PostgresCatalog reads table columns from information_schema.
type PostgresCatalog struct {
	db PgxQueryer
}

func NewPostgresCatalog(db PgxQueryer) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// TableColumns accepts "table" (resolved against current_schema()) or
// "schema.table".
func (c *PostgresCatalog) TableColumns(ctx context.Context, table string) ([]string, error) {
	var schema any
	if s, t, ok := strings.Cut(table, "."); ok {
		schema, table = s, t
	}
	rows, err := c.db.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = COALESCE($1::text, current_schema()) AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query information_schema: %w", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read information_schema: %w", err)
	}
	return cols, nil
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConn is the subset of driver.Conn the querier needs.
type ClickHouseConn interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ClickHouseQuerier executes compiled queries against ClickHouse. The
// driver binds $1-style positional parameters.
type ClickHouseQuerier struct {
	log     *slog.Logger
	conn    ClickHouseConn
	timeout time.Duration
	maxRows int
}

func NewClickHouseQuerier(log *slog.Logger, conn ClickHouseConn, timeout time.Duration, maxRows int) *ClickHouseQuerier {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &ClickHouseQuerier{log: log, conn: conn, timeout: timeout, maxRows: maxRows}
}

func (q *ClickHouseQuerier) Query(ctx context.Context, cq compiler.Query) (ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	rs, err := q.query(ctx, cq)
	metrics.RecordDBQuery("clickhouse", time.Since(start), err)
	if err != nil {
		q.log.Warn("clickhouse: query failed", "duration", time.Since(start), "error", err)
		return ResultSet{}, &ExecutionError{SQL: cq.SQL, Err: err}
	}
	q.log.Debug("clickhouse: query completed", "duration", time.Since(start), "rows", len(rs.Rows))
	return rs, nil
}

func (q *ClickHouseQuerier) query(ctx context.Context, cq compiler.Query) (ResultSet, error) {
	rows, err := q.conn.Query(ctx, cq.SQL, cq.Args...)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	rs := ResultSet{Columns: rows.Columns(), Rows: []map[string]any{}}

	for rows.Next() {
		if len(rs.Rows) >= q.maxRows {
			q.log.Warn("clickhouse: result truncated", "maxRows", q.maxRows)
			break
		}
		values := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			values[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(values...); err != nil {
			return ResultSet{}, fmt.Errorf("failed to scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, NormalizeRow(rs.Columns, values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

// ClickHouseCatalog reads table columns from system.columns.
type ClickHouseCatalog struct {
	conn ClickHouseConn
}

func NewClickHouseCatalog(conn ClickHouseConn) *ClickHouseCatalog {
	return &ClickHouseCatalog{conn: conn}
}

// TableColumns accepts "table" (resolved against currentDatabase()) or
// "database.table".
func (c *ClickHouseCatalog) TableColumns(ctx context.Context, table string) ([]string, error) {
	query := "SELECT name FROM system.columns WHERE database = currentDatabase() AND table = $1 ORDER BY position"
	args := []any{table}
	if db, t, ok := strings.Cut(table, "."); ok {
		query = "SELECT name FROM system.columns WHERE database = $1 AND table = $2 ORDER BY position"
		args = []any{db, t}
	}
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query system.columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan system.columns: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// HistoryDB is the subset of *pgxpool.Pool ResetHistory uses.
type HistoryDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ResetHistory deletes all stored conversation turns after asking for
// confirmation on in, unless skipConfirm is set.
func ResetHistory(ctx context.Context, log *slog.Logger, db HistoryDB, in io.Reader, out io.Writer, dryRun, skipConfirm bool) error {
	var turns, sessions int64
	err := db.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT session_id) FROM chat_history`).Scan(&turns, &sessions)
	if err != nil {
		return fmt.Errorf("failed to count chat history: %w", err)
	}
	if turns == 0 {
		fmt.Fprintln(out, "Chat history is already empty")
		return nil
	}

	fmt.Fprintf(out, "WARNING: This will delete %d turn(s) across %d session(s).\n", turns, sessions)
	if dryRun {
		fmt.Fprintln(out, "[DRY RUN] Would delete the above chat history")
		return nil
	}

	if !skipConfirm {
		fmt.Fprint(out, "Type 'yes' to confirm: ")
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(out, "\nConfirmation failed. Operation cancelled.")
			return nil
		}
	}

	if _, err := db.Exec(ctx, `TRUNCATE TABLE chat_history RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate chat history: %w", err)
	}
	log.Info("chat history reset", "turns", turns, "sessions", sessions)
	fmt.Fprintf(out, "Deleted %d turn(s)\n", turns)
	return nil
}

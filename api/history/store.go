// Package history persists the questions asked in a chat session together
// with the intent each one resolved to, so follow-up questions can be
// interpreted in context.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const DefaultLimit = 5

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	log *slog.Logger
	db  DB
}

func NewStore(log *slog.Logger, db DB) *Store {
	return &Store{log: log, db: db}
}

// Save records a question and its intent for the session.
func (s *Store) Save(ctx context.Context, sessionID uuid.UUID, question string, intent governance.Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_history (session_id, question, intent)
		VALUES ($1, $2, $3)
	`, sessionID, question, data)
	if err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// Recent returns the last limit turns of the session, oldest first. A
// limit of zero or less means DefaultLimit.
func (s *Store) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]workflow.ConversationTurn, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT question, intent FROM (
			SELECT id, question, intent, created_at
			FROM chat_history
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	turns := []workflow.ConversationTurn{}
	for rows.Next() {
		var (
			question string
			raw      []byte
		)
		if err := rows.Scan(&question, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan chat history: %w", err)
		}
		var intent governance.Intent
		if err := json.Unmarshal(raw, &intent); err != nil {
			// A row we cannot decode should not break the conversation.
			s.log.Warn("history: skipping undecodable intent", "session_id", sessionID, "error", err)
			continue
		}
		turns = append(turns, workflow.ConversationTurn{Question: question, Intent: intent})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat history: %w", err)
	}
	return turns, nil
}

// Clear deletes every turn of the session.
func (s *Store) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_history WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/coalesce"
	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/google/uuid"
)

// Runner answers a question given the prior turns of the conversation.
type Runner interface {
	Run(ctx context.Context, question string, history []workflow.ConversationTurn) (*workflow.Result, error)
}

// HistoryStore is the conversation memory used by the chat endpoint.
type HistoryStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, question string, intent governance.Intent) error
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]workflow.ConversationTurn, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// Pinger reports whether the analytics database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// VersionInfo is set from build flags.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger       *slog.Logger
	Registry     *registry.Registry
	Runner       Runner
	Dispatcher   *coalesce.Dispatcher[*workflow.Result]
	History      HistoryStore // optional
	HistoryTurns int
	DB           Pinger // optional
	Version      VersionInfo
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	if cfg.Runner == nil {
		return errors.New("runner is required")
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = coalesce.New[*workflow.Result](cfg.Logger)
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = workflow.DefaultHistoryTurns
	}
	return nil
}

// Handler serves the chat API.
type Handler struct {
	log          *slog.Logger
	registry     *registry.Registry
	runner       Runner
	dispatcher   *coalesce.Dispatcher[*workflow.Result]
	history      HistoryStore
	historyTurns int
	db           Pinger
	version      VersionInfo
}

func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		log:          cfg.Logger,
		registry:     cfg.Registry,
		runner:       cfg.Runner,
		dispatcher:   cfg.Dispatcher,
		history:      cfg.History,
		historyTurns: cfg.HistoryTurns,
		db:           cfg.DB,
		version:      cfg.Version,
	}, nil
}

// ErrorResponse is the body of every non-2xx response except 429.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

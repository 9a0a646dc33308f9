package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/coalesce"
	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/Avexra-AI/SAS-Chatbot/api/config"
	"github.com/Avexra-AI/SAS-Chatbot/api/handlers"
	"github.com/Avexra-AI/SAS-Chatbot/api/history"
	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
	"github.com/Avexra-AI/SAS-Chatbot/utils/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	log := logger.New(cfg.Verbose)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry enabled", "environment", cfg.SentryEnvironment)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg, err := registry.Load(cfg.SemanticModelPath)
	if err != nil {
		return err
	}
	log.Info("semantic model loaded", "path", reg.Source(), "models", len(reg.Models()), "metrics", len(reg.Metrics()), "dimensions", len(reg.Dimensions()))

	var (
		querier workflow.Querier
		catalog registry.CatalogReader
		pinger  handlers.Pinger
		pgPool  *pgxpool.Pool
	)
	switch cfg.DBBackend {
	case config.BackendClickHouse:
		conn, err := config.NewClickHouseConn(ctx, log, cfg.ClickHouse)
		if err != nil {
			return err
		}
		defer conn.Close()
		querier = workflow.NewClickHouseQuerier(log, conn, cfg.QueryTimeout, cfg.MaxRows)
		catalog = workflow.NewClickHouseCatalog(conn)
		pinger = handlers.PingFunc(conn.Ping)

		// History still lives in Postgres when one is configured.
		if cfg.Postgres.Database != "" {
			pgPool, err = config.NewPostgresPool(ctx, log, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pgPool.Close()
		}
	default:
		pgPool, err = config.NewPostgresPool(ctx, log, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		querier = workflow.NewPostgresQuerier(log, pgPool, cfg.QueryTimeout, cfg.MaxRows)
		catalog = workflow.NewPostgresCatalog(pgPool)
		pinger = handlers.PingFunc(pgPool.Ping)
	}

	if cfg.VerifyCatalog {
		if err := reg.VerifyCatalog(ctx, catalog); err != nil {
			return err
		}
		log.Info("semantic model matches database catalog", "backend", cfg.DBBackend)
	}

	var store handlers.HistoryStore
	if pgPool != nil {
		store = history.NewStore(log, pgPool)
	} else {
		log.Warn("no PostgreSQL configured, conversation history is disabled")
	}

	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	llm := workflow.NewAnthropicLLMClient(log, workflow.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AnthropicMaxTokens,
		Timeout:   cfg.LLMTimeout,
	})

	pipeline, err := workflow.New(workflow.Config{
		Logger:     log,
		Registry:   reg,
		Extractor:  workflow.NewLLMExtractor(log, llm.WithName("extract"), reg, workflow.WithHistoryTurns(cfg.HistoryTurns)),
		Querier:    querier,
		Summarizer: workflow.NewLLMSummarizer(log, llm.WithName("summarize")),
	})
	if err != nil {
		return err
	}

	h, err := handlers.New(handlers.Config{
		Logger:       log,
		Registry:     reg,
		Runner:       pipeline,
		Dispatcher:   coalesce.New[*workflow.Result](log),
		History:      store,
		HistoryTurns: cfg.HistoryTurns,
		DB:           pinger,
		Version:      handlers.VersionInfo{Version: version, Commit: commit, Date: date},
	})
	if err != nil {
		return err
	}

	var limiter *handlers.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = handlers.NewRateLimiter(nil, rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(h, handlers.RouterOptions{
			CORSOrigins: cfg.CORSOrigins,
			Limiter:     limiter,
			Timeout:     cfg.QueryTimeout + 2*cfg.LLMTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}

	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
		}
		log.Info("prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := metricsSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsSrv.Close()
		})
	}

	g.Go(func() error {
		log.Info("API server listening", "address", cfg.HTTPAddr, "backend", cfg.DBBackend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down API server", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

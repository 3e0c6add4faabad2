package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/p-n-ai/pai-quiz/internal/api"
	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/platform/logging"
	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/questionbank"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/realtime"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app is the wired service.
type app struct {
	handler http.Handler
	engine  *quiz.Engine
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var db *database.DB
	if cfg.NeedsDatabase() {
		db = openDatabase(ctx, cfg)
		if db != nil {
			a.closers = append(a.closers, db.Close)
		}
	}

	backend, closeBackend, err := openBackend(ctx, cfg, db)
	if errors.Is(err, errUnknownBackend) {
		a.Close()
		return nil, err
	}
	if err != nil {
		// Keep serving; /readyz reports the outage.
		slog.Error("storage unavailable, progress is kept in memory until restart",
			"backend", cfg.Storage.Backend,
			"error", err,
		)
		backend = progress.NewFallbackBackend(err)
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}
	store := progress.NewStore(backend)

	var events quiz.EventLogger = quiz.NopEventLogger{}
	if cfg.Quiz.EventLog {
		if db != nil {
			events = quiz.NewPostgresEventLogger(db.Pool)
		} else {
			slog.Warn("event log disabled, database unavailable")
		}
	}

	bank := loadQuestions(cfg.QuestionsPath)
	hub := realtime.NewHub()
	a.engine = quiz.NewEngine(quiz.EngineConfig{
		Questions:    bank,
		Store:        store,
		Presenter:    hub,
		Events:       events,
		TickInterval: cfg.Quiz.TickInterval,
	})

	a.handler = api.New(api.Config{
		Engine:    a.engine,
		Progress:  store,
		Questions: bank,
		Stream:    hub,
	}).Routes()
	return a, nil
}

// Close stops the quiz clock and releases connections in reverse order.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openDatabase connects and migrates, or returns nil after logging why not.
func openDatabase(ctx context.Context, cfg *config.Config) *database.DB {
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		slog.Error("database migration failed", "error", err)
		db.Close()
		return nil
	}
	return db
}

var errUnknownBackend = errors.New("unknown storage backend")

// openBackend returns the progress backend selected by configuration and an
// optional cleanup function.
func openBackend(ctx context.Context, cfg *config.Config, db *database.DB) (progress.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return progress.NewMemoryBackend(), nil, nil
	case config.BackendFile:
		return progress.NewFileBackend(cfg.Storage.FilePath), nil, nil
	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, nil, err
		}
		b, err := progress.NewRedisBackend(c, cfg.Storage.Key)
		if err != nil {
			c.Close()
			return nil, nil, err
		}
		return b, func() { c.Close() }, nil
	case config.BackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres backend requires a database connection")
		}
		b, err := progress.NewPostgresBackend(db.Pool, cfg.Storage.Key)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", errUnknownBackend, cfg.Storage.Backend)
	}
}

// loadQuestions never fails: a broken question source leaves the subject list
// empty and the service up.
func loadQuestions(path string) *questionbank.Bank {
	bank, err := questionbank.Load(path)
	if err != nil {
		slog.Error("failed to load questions", "path", path, "error", err)
		return questionbank.Empty()
	}
	slog.Info("questions loaded", "path", path, "subjects", len(bank.Subjects()))
	return bank
}

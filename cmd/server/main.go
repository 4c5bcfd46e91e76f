package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/classifier"
	"spendwise/internal/config"
	"spendwise/internal/handlers"
	"spendwise/internal/log"
	"spendwise/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	// Until the configured logger exists, report with the defaults.
	bootLog := log.New(log.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		bootLog.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		bootLog.Error("Failed to create logger", log.FieldError, err)
		os.Exit(1)
	}
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// newLogger builds the application logger from the logging settings.
func newLogger(cfg *config.Config, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	}), nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	storeLog := logger.WithComponent(log.ComponentStorage)
	if n, err := db.CleanExpiredSessions(ctx); err != nil {
		storeLog.Warn("Failed to purge expired sessions", log.FieldError, err)
	} else {
		storeLog.Info("Purged expired sessions", "count", n)
	}

	if err := bootstrapAdmin(ctx, db, cfg, logger); err != nil {
		return err
	}

	h := handlers.NewHandlers(db, loadClassifier(cfg, logger), logger, handlers.Options{
		TemplateDir:    cfg.TemplateDir,
		SecureCookie:   cfg.SecureCookie,
		IdleTimeout:    cfg.SessionIdleTimeout,
		AutoCategorize: cfg.AutoCategorize,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        setupRouter(h, cfg.StaticDir, logger),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "db", cfg.DBPath, "classifier", cfg.ClassifierBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupRouter(h *handlers.Handlers, staticDir string, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	h.Register(mux)

	return log.Middleware(logger)(handlers.SecurityHeaders(mux))
}

// loadClassifier builds the configured category classifier. Load failures
// are logged and replaced with one that always yields Uncategorized, so the
// server starts either way.
func loadClassifier(cfg *config.Config, logger *log.Logger) classifier.Classifier {
	clog := logger.WithComponent(log.ComponentClassifier)

	switch cfg.ClassifierBackend {
	case config.BackendOpenAI:
		clog.Info("Using remote classifier", "base_url", cfg.AIBaseURL, "model", cfg.AIModel)
		return classifier.NewRemote(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel,
			classifier.Categories(classifier.DefaultSamples()))
	case config.BackendNone:
		clog.Info("Category inference disabled")
		return classifier.Unavailable{}
	}

	model, err := classifier.Load(cfg.VectorizerPath, cfg.ModelPath)
	if err != nil {
		clog.Warn("Category model not loaded; expenses without a category will be Uncategorized",
			"vectorizer", cfg.VectorizerPath, "model", cfg.ModelPath, log.FieldError, err)
		return classifier.Unavailable{Reason: err}
	}
	clog.Info("Loaded category model", "classes", len(model.Classes()))
	return model
}

// bootstrapAdmin creates the configured admin account when the database has
// no users yet.
func bootstrapAdmin(ctx context.Context, db *storage.DB, cfg *config.Config, logger *log.Logger) error {
	if !cfg.HasAdmin() {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	user, err := db.CreateUser(ctx, cfg.AdminUser, cfg.AdminEmail, hash)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	logger.WithComponent(log.ComponentAuth).Info("Created bootstrap user", "username", user.Username, log.FieldUserID, user.ID)
	return nil
}

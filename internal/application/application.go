// Package application wires configuration, storage, metrics and the service
// together for the server and the riskctl command.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/RiskTracker/internal/config"
	"github.com/JonMunkholm/RiskTracker/internal/core"
	"github.com/JonMunkholm/RiskTracker/internal/database"
	"github.com/JonMunkholm/RiskTracker/internal/metrics"
	"github.com/JonMunkholm/RiskTracker/internal/web"
)

// LoadConfig loads a .env file if one exists, overwriting existing variables,
// then reads and validates the configuration from the environment.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}
	return config.Load()
}

// App holds the long-lived components. The store is owned by App and closed
// by Close.
type App struct {
	Config  *config.Config
	Store   core.Store
	Metrics *metrics.Metrics
	Service *core.Service
}

// New opens the configured store and builds the service on top of it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	app := &App{
		Config:  cfg,
		Store:   store,
		Metrics: m,
		Service: core.NewService(store, cfg.Import, core.WithRecorder(m)),
	}

	slog.Info("store ready",
		"scheme", cfg.Database.Scheme(),
		"migrate", cfg.Database.Migrate,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
	)
	return app, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Serve runs the HTTP server until ctx is cancelled. On cancellation it waits
// for running imports, bounded by the shutdown timeout, then stops the server.
func (a *App) Serve(ctx context.Context) error {
	server := web.NewServer(a.Service, a.Config, a.Metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		server.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if status := a.Service.ImportLimiterStatus(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := a.Service.WaitForImports(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/observability"
)

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Server    *http.Server
	Telemetry *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, telemetry *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Telemetry: telemetry}
}

// Serve blocks until the server stops. A graceful shutdown is not an error.
func (a *App) Serve() error {
	a.Logger.Info("server starting", "addr", a.Server.Addr, "env", a.Config.Env)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	serverErr := a.Server.Shutdown(ctx)
	telemetryErr := a.Telemetry.Shutdown(ctx)
	return errors.Join(serverErr, telemetryErr)
}

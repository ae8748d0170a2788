package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"RepAuthBot/internal/config"
)

// App is the HTTP server Telegram delivers updates to.
type App struct {
	log        *slog.Logger
	httpServer *http.Server
	address    string
}

func New(log *slog.Logger, cfg config.HttpServerConfig, secret string, bot UpdateHandler) *App {
	address := net.JoinHostPort(cfg.Address, cfg.Port)
	srv := &http.Server{
		Addr:         address,
		Handler:      NewRouter(log, secret, bot),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &App{log: log, httpServer: srv, address: address}
}

// Run serves until Shutdown is called.
func (a *App) Run() error {
	const op = "webhook.Run"

	a.log.With(slog.String("op", op)).
		Info("server started", slog.String("address", a.address))

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	const op = "webhook.Shutdown"

	a.log.With(slog.String("op", op)).
		Info("stopping HTTP server", slog.String("address", a.address))

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

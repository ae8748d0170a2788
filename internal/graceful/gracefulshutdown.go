package graceful

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type Operation func(ctx context.Context) error

// Step is one named clean up operation.
type Step struct {
	Name string
	Op   Operation
}

// GracefulShutdown waits for a termination signal or ctx cancellation and
// runs steps one after another, in the given order, within timeout.
// The returned channel is closed once every step has finished.
func GracefulShutdown(ctx context.Context, timeout time.Duration, steps []Step, logger *slog.Logger) <-chan struct{} {
	op := "GracefulShutdown()"
	log := logger.With(
		slog.String("op", op))

	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(s)

		select {
		case sig := <-s:
			log.Info("shutting down", slog.String("signal", sig.String()))
		case <-ctx.Done():
			log.Info("shutting down", slog.String("reason", context.Cause(ctx).Error()))
		}

		ctxTimeout, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		Run(ctxTimeout, steps, log)
		log.Info("graceful shutdown completed")

		close(wait)
	}()

	return wait
}

// Run executes steps in order. A failing step is logged and does not stop
// the ones after it.
func Run(ctx context.Context, steps []Step, log *slog.Logger) {
	for _, step := range steps {
		log.Info("cleaning up", slog.String("process", step.Name))
		if err := step.Op(ctx); err != nil {
			log.Error("error clean up", slog.String("process", step.Name), slog.String("error", err.Error()))
			continue
		}
		log.Info("shutdown gracefully", slog.String("process", step.Name))
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/crm"
	"RepAuthBot/internal/graceful"
	"RepAuthBot/internal/repositories"
	"RepAuthBot/internal/repositories/memrepo"
	"RepAuthBot/internal/repositories/redisrepo"
	"RepAuthBot/internal/sessions"
	"RepAuthBot/internal/telegram"
	"RepAuthBot/internal/texts"
	"RepAuthBot/internal/utils/logger/handlers/slogpretty"
	"RepAuthBot/internal/utils/logger/sl"
	"RepAuthBot/internal/webhook"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	janitorInterval = 10 * time.Minute
)

var Version = "0.1"

// kvStore is a session store backend that owns a connection.
type kvStore interface {
	sessions.Store
	Shutdown(ctx context.Context) error
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info(
		"starting rep auth bot",
		slog.String("env", cfg.Env),
		slog.String("version", Version),
		slog.String("store", cfg.StoreConfig.Driver),
	)

	ctx, stop := context.WithCancelCause(context.Background())
	defer stop(nil)

	store := setupStore(ctx, log, cfg.StoreConfig)
	sessionRepository := sessions.New(log, store, cfg.StoreConfig.SessionTTL)
	crmClient := crm.New(log, cfg.CrmConfig, sessionRepository)

	messages, err := texts.Load(cfg.BotConfig.TextsFile)
	if err != nil {
		log.Error("error loading bot texts", sl.Err(err))
		os.Exit(1)
	}

	tgBot, err := telegram.New(log, cfg, sessionRepository, crmClient, messages)
	if err != nil {
		os.Exit(1)
	}

	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := tgBot.RegisterWebhook(regCtx); err != nil {
		log.Error("error registering webhook", sl.Err(err))
	}
	cancel()

	httpApp := webhook.New(log, cfg.HttpServer, cfg.BotConfig.WebhookSecret, tgBot)

	maxSecond := 15 * time.Second
	waitShutdown := graceful.GracefulShutdown(
		ctx,
		maxSecond,
		[]graceful.Step{
			{Name: "HTTP server", Op: httpApp.Shutdown},
			{Name: "Telegram bot", Op: tgBot.Shutdown},
			{Name: "Session store", Op: func(ctx context.Context) error {
				stop(nil)
				return store.Shutdown(ctx)
			}},
		},
		log,
	)

	go tgBot.Start()
	go func() {
		if err := httpApp.Run(); err != nil {
			log.Error("http server stopped", sl.Err(err))
			stop(err)
		}
	}()

	<-waitShutdown
}

func setupStore(ctx context.Context, log *slog.Logger, cfg config.StoreConfig) kvStore {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		repo := repositories.New(log, cfg.DBConfig)
		go repo.RunJanitor(ctx, janitorInterval)
		return repo
	case config.StoreDriverRedis:
		repo := redisrepo.New(log, cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			log.Error("error connecting to redis", sl.Err(err))
			panic("error connecting to redis")
		}
		return repo
	default:
		repo, err := memrepo.New(cfg.Capacity)
		if err != nil {
			log.Error("error creating in-memory store", sl.Err(err))
			panic("error creating in-memory store")
		}
		log.Warn("using in-memory session store, sessions are lost on restart")
		return repo
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog(slog.LevelDebug)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = setupPrettySlog(slog.LevelInfo)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog(level slog.Level) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}
	handler := opts.NewPrettyHandler(os.Stdout)
	return slog.New(handler)
}

package repositories

import (
	"RepAuthBot/internal/config"
	"RepAuthBot/internal/migrator"
	"RepAuthBot/internal/utils/logger/sl"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Repository is the Postgres-backed key-value store.
type Repository struct {
	DB  *sqlx.DB
	log *slog.Logger
}

// New creates a new repository, connects to the database, and runs migrations.
func New(logger *slog.Logger, cfg config.DBConfig) *Repository {
	op := "repositories.New()"
	log := logger.With(
		slog.String("op", op))

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s sslmode=disable password=%s search_path=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.Password, cfg.Schema)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Error("error connecting to database", sl.Err(err))
		panic("error connecting to database")
	}

	if err := conn.PingContext(ctx); err != nil {
		log.Error("error pinging database", sl.Err(err))
		panic("error pinging database")
	}

	log.Debug("sqlx connected to database")

	m := migrator.NewMigrator(conn, log, cfg.Schema)
	if err := m.Run(ctx); err != nil {
		log.Error("error running database migrations", sl.Err(err))
		panic("error running database migrations")
	}

	return &Repository{
		DB:  conn,
		log: logger.With(slog.String("component", "repositories.postgres")),
	}
}

// RunJanitor purges expired keys every interval until ctx is done.
// Reads already filter on expiry; this only keeps the table small.
func (r *Repository) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.PurgeExpired(ctx)
			if err != nil {
				r.log.Error("purge expired keys", sl.Err(err))
				continue
			}
			if n > 0 {
				r.log.Debug("purged expired keys", slog.Int64("count", n))
			}
		}
	}
}

// Shutdown closes the database connection.
func (r *Repository) Shutdown(ctx context.Context) error {
	op := "Repository.Shutdown"
	select {
	case <-ctx.Done():
		return fmt.Errorf("force exit %s: %w", op, ctx.Err())
	default:
		if err := r.DB.Close(); err != nil {
			return fmt.Errorf("error exit %s: %w", op, err)
		}
		return nil
	}
}

package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"RepAuthBot/internal/repositories"
)

const (
	adminTokenKey = "admintoken"
	sessionPrefix = "session:"

	// DefaultTTL is how long sessions and the admin token live.
	DefaultTTL = 7200 * time.Second
)

// Store is a key-value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Repository maps chat sessions and the CRM admin token onto a Store.
type Repository struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

func New(logger *slog.Logger, store Store, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{
		store: store,
		ttl:   ttl,
		log:   logger.With(slog.String("component", "sessions")),
	}
}

// TTL is the expiry applied to every key written by the repository.
func (r *Repository) TTL() time.Duration {
	return r.ttl
}

func SessionKey(chatID int64) string {
	return sessionPrefix + strconv.FormatInt(chatID, 10)
}

func (r *Repository) SaveAdminToken(ctx context.Context, token string) error {
	if err := r.store.Put(ctx, adminTokenKey, token, r.ttl); err != nil {
		return fmt.Errorf("sessions.SaveAdminToken: %w", err)
	}
	return nil
}

// AdminToken returns the cached admin token; ok is false on a cache miss.
func (r *Repository) AdminToken(ctx context.Context) (token string, ok bool, err error) {
	return r.get(ctx, "sessions.AdminToken", adminTokenKey)
}

func (r *Repository) RemoveAdminToken(ctx context.Context) error {
	if err := r.store.Delete(ctx, adminTokenKey); err != nil {
		return fmt.Errorf("sessions.RemoveAdminToken: %w", err)
	}
	return nil
}

func (r *Repository) SaveUserSession(ctx context.Context, chatID int64, token string) error {
	if err := r.store.Put(ctx, SessionKey(chatID), token, r.ttl); err != nil {
		return fmt.Errorf("sessions.SaveUserSession: %w", err)
	}
	r.log.Debug("session saved", slog.Int64("chat_id", chatID), slog.Duration("ttl", r.ttl))
	return nil
}

// UserSession returns the chat's session token; ok is false when there is none.
func (r *Repository) UserSession(ctx context.Context, chatID int64) (token string, ok bool, err error) {
	return r.get(ctx, "sessions.UserSession", SessionKey(chatID))
}

func (r *Repository) RemoveUserSession(ctx context.Context, chatID int64) error {
	if err := r.store.Delete(ctx, SessionKey(chatID)); err != nil {
		return fmt.Errorf("sessions.RemoveUserSession: %w", err)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, op, key string) (string, bool, error) {
	value, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return value, true, nil
}

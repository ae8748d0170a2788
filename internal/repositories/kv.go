package repositories

import (
	models "RepAuthBot/internal/models/repositories"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by every store backend for a missing or expired key.
var ErrNotFound = errors.New("key not found")

// Get returns the live value stored under key.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	op := "Repository.Get"
	var entry models.KVEntry
	query := `SELECT key, value, expires_at, updated_at
		FROM kv_store WHERE key = $1 AND expires_at > now()`
	err := r.DB.GetContext(ctx, &entry, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return entry.Value, nil
}

// Put stores value under key for ttl, replacing any previous value.
func (r *Repository) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	op := "Repository.Put"
	query := `INSERT INTO kv_store (key, value, expires_at)
		VALUES ($1, $2, now() + $3 * interval '1 second')
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query, key, value, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	op := "Repository.Delete"
	_, err := r.DB.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	op := "Repository.PurgeExpired"
	res, err := r.DB.ExecContext(ctx, `DELETE FROM kv_store WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n, nil
}

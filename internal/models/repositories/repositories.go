package repositories

import (
	"time"
)

// KVEntry is a row of the key-value table backing sessions and the admin token.
type KVEntry struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	ExpiresAt time.Time `db:"expires_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

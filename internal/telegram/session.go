package telegram

import (
	"sync"
	"time"

	"RepAuthBot/internal/models/domain"
)

// defaultStateTTL is the inactivity timeout for a login dialogue.
const defaultStateTTL = 30 * time.Minute

// FlowStore keeps the login dialogue of each chat.
type FlowStore interface {
	Get(chatID int64) (*domain.ChatState, bool)
	Set(chatID int64, state *domain.ChatState)
	Delete(chatID int64)
}

// stateStore is the in-process FlowStore. Every Set refreshes the idle expiry.
// States are copied on the way in and out.
type stateStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.ChatState
	ttl  time.Duration
	now  func() time.Time
}

func newStateStore(ttl time.Duration, now func() time.Time) *stateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &stateStore{
		data: make(map[int64]*domain.ChatState),
		ttl:  ttl,
		now:  now,
	}
}

func (s *stateStore) Get(chatID int64) (*domain.ChatState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[chatID]
	if !ok || s.now().After(st.ExpiresAt) {
		return nil, false
	}
	return st.Clone(), true
}

func (s *stateStore) Set(chatID int64, st *domain.ChatState) {
	c := st.Clone()
	c.ExpiresAt = s.now().Add(s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[chatID] = c
}

func (s *stateStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
}

// purgeExpired drops abandoned dialogues and returns how many were removed.
func (s *stateStore) purgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.data {
		if now.After(st.ExpiresAt) {
			delete(s.data, id)
			n++
		}
	}
	return n
}

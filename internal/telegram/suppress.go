package telegram

import (
	"sync"
	"time"
)

// suppressor swallows updates for a chat for a short window after a login,
// so a duplicate delivery or a late button press does not restart the dialogue.
type suppressor struct {
	mu     sync.Mutex
	until  map[int64]time.Time
	window time.Duration
	now    func() time.Time
}

func newSuppressor(window time.Duration, now func() time.Time) *suppressor {
	if now == nil {
		now = time.Now
	}
	return &suppressor{
		until:  make(map[int64]time.Time),
		window: window,
		now:    now,
	}
}

func (s *suppressor) mark(chatID int64) {
	if s.window <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until[chatID] = s.now().Add(s.window)
}

// active reports whether chatID is inside its window. Elapsed marks are dropped.
func (s *suppressor) active(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.until[chatID]
	if !ok {
		return false
	}
	if s.now().Before(until) {
		return true
	}
	delete(s.until, chatID)
	return false
}

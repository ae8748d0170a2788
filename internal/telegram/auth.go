package telegram

import (
	"context"
	"fmt"
)

// isLoggedIn reports whether the chat holds a live session.
func (repBot *Bot) isLoggedIn(ctx context.Context, chatID int64) (bool, error) {
	_, ok, err := repBot.sessions.UserSession(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("isLoggedIn: %w", err)
	}
	return ok, nil
}

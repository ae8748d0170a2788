package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"
)

// handleCallbackQuery handles inline keyboard presses from the main menu.
func (repBot *Bot) handleCallbackQuery(ctx context.Context, chatID int64, cq *models.CallbackQuery) error {
	repBot.client.AnswerCallback(ctx, cq.ID)

	switch cq.Data {
	case callbackLogin:
		return repBot.flow.StartLogin(ctx, chatID)
	case callbackHelp:
		return repBot.handleHelp(ctx, chatID)
	default:
		repBot.log.Debug("unknown callback data", slog.String("data", cq.Data))
		return nil
	}
}

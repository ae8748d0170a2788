package telegram

import (
	"context"
	"fmt"

	"RepAuthBot/internal/models/domain"

	"github.com/go-telegram/bot/models"
)

// ─── Message dispatcher ───────────────────────────────────────────────────

// handleMessage routes the known commands. Any other text, slash-prefixed or
// not, belongs to an open login dialogue.
func (repBot *Bot) handleMessage(ctx context.Context, chatID int64, msg *models.Message) error {
	if isKnownCommand(msg.Text) {
		return repBot.commandHandler(ctx, chatID, msg)
	}
	if _, ok := repBot.states.Get(chatID); ok {
		return repBot.flow.Advance(ctx, chatID, msg.Text)
	}
	return repBot.sendText(ctx, chatID, repBot.texts.UnknownCommand)
}

// commandHandler dispatches bot commands.
func (repBot *Bot) commandHandler(ctx context.Context, chatID int64, msg *models.Message) error {
	switch commandText(msg.Text) {
	case "start":
		return repBot.handleStart(ctx, chatID, msg.ID)
	case "login":
		return repBot.handleLogin(ctx, chatID, msg.ID, commandArguments(msg.Text))
	case "logout":
		return repBot.handleLogout(ctx, chatID)
	case "help":
		return repBot.handleHelp(ctx, chatID)
	default:
		return repBot.sendText(ctx, chatID, repBot.texts.UnknownCommand)
	}
}

func isKnownCommand(text string) bool {
	switch commandText(text) {
	case "start", "login", "logout", "help":
		return true
	}
	return false
}

// ─── /start ───────────────────────────────────────────────────────────────

func (repBot *Bot) handleStart(ctx context.Context, chatID int64, messageID int) error {
	loggedIn, err := repBot.isLoggedIn(ctx, chatID)
	if err != nil {
		return err
	}
	if loggedIn {
		return repBot.sendText(ctx, chatID, repBot.texts.AlreadyLoggedIn)
	}

	repBot.states.Set(chatID, domain.NewChatState(messageID))

	kb := inlineKeyboard(
		inlineRow(
			inlineBtn(repBot.texts.LoginButton, callbackLogin),
			inlineBtn(repBot.texts.HelpButton, callbackHelp),
		),
	)
	if _, err := repBot.client.Send(ctx, chatID, Message{Text: repBot.texts.Welcome, Keyboard: kb}); err != nil {
		return fmt.Errorf("handleStart: %w", err)
	}
	return nil
}

// ─── /login ───────────────────────────────────────────────────────────────

// handleLogin starts the dialogue, or with arguments tries
// "/login username password" in one go.
func (repBot *Bot) handleLogin(ctx context.Context, chatID int64, messageID int, args []string) error {
	if len(args) == 0 {
		return repBot.flow.StartLogin(ctx, chatID)
	}
	username, password := args[0], ""
	if len(args) > 1 {
		password = args[1]
	}
	return repBot.flow.SubmitLoginLine(ctx, chatID, username, password, messageID)
}

// ─── /logout ──────────────────────────────────────────────────────────────

func (repBot *Bot) handleLogout(ctx context.Context, chatID int64) error {
	if err := repBot.sessions.RemoveUserSession(ctx, chatID); err != nil {
		return fmt.Errorf("handleLogout: %w", err)
	}
	repBot.client.ClearHistory(ctx, chatID)
	return repBot.sendText(ctx, chatID, repBot.texts.LogoutSuccess)
}

// ─── /help ────────────────────────────────────────────────────────────────

func (repBot *Bot) handleHelp(ctx context.Context, chatID int64) error {
	if _, err := repBot.client.Send(ctx, chatID, Message{Text: repBot.texts.Help, HTML: true}); err != nil {
		return fmt.Errorf("handleHelp: %w", err)
	}
	return nil
}

// sendText sends a plain reply.
func (repBot *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	if _, err := repBot.client.Send(ctx, chatID, Plain(text)); err != nil {
		return fmt.Errorf("sendText: %w", err)
	}
	return nil
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"RepAuthBot/internal/utils/logger/sl"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// api is the part of the Bot API the service calls. *bot.Bot satisfies it.
type api interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

// Message is an outgoing chat message.
type Message struct {
	Text string
	// HTML marks Text as already formatted; plain text is escaped before sending.
	HTML     bool
	Keyboard *models.InlineKeyboardMarkup
}

// Plain builds a message whose text is sent verbatim.
func Plain(text string) Message {
	return Message{Text: text}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Client sends and deletes messages and remembers what it sent to each chat.
type Client struct {
	api api
	log *slog.Logger

	mu   sync.Mutex
	sent map[int64][]int
}

func NewClient(logger *slog.Logger, api api) *Client {
	return &Client{
		api:  api,
		log:  logger.With(slog.String("component", "telegram.client")),
		sent: make(map[int64][]int),
	}
}

// Send delivers msg and returns the id Telegram assigned to it.
func (c *Client) Send(ctx context.Context, chatID int64, msg Message) (int, error) {
	op := "telegram.Client.Send"

	text := msg.Text
	if !msg.HTML {
		text = htmlEscaper.Replace(text)
	}
	p := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if msg.Keyboard != nil {
		p.ReplyMarkup = msg.Keyboard
	}

	sent, err := c.api.SendMessage(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if sent == nil {
		return 0, fmt.Errorf("%s: empty response", op)
	}

	c.mu.Lock()
	c.sent[chatID] = append(c.sent[chatID], sent.ID)
	c.mu.Unlock()

	return sent.ID, nil
}

// DeleteMessage removes one message. Failures are logged, never returned:
// the message may already be gone or be too old to delete.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	_, err := c.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		c.log.Warn("failed to delete message",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			sl.Err(err),
		)
		return false
	}
	return true
}

// ClearHistory deletes every message sent to the chat, oldest first, and
// empties the log. It always reports success.
func (c *Client) ClearHistory(ctx context.Context, chatID int64) bool {
	c.mu.Lock()
	ids := c.sent[chatID]
	delete(c.sent, chatID)
	c.mu.Unlock()

	failed := 0
	for _, id := range ids {
		if !c.DeleteMessage(ctx, chatID, id) {
			failed++
		}
	}
	c.log.Debug("history cleared",
		slog.Int64("chat_id", chatID),
		slog.Int("messages", len(ids)),
		slog.Int("failed", failed),
	)
	return true
}

// SentMessages returns a copy of the chat's sent-message log.
func (c *Client) SentMessages(chatID int64) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.sent[chatID]...)
}

// AnswerCallback stops the spinner on the pressed button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) {
	if callbackID == "" {
		return
	}
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		c.log.Warn("failed to answer callback", slog.String("callback_id", callbackID), sl.Err(err))
	}
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/texts"
	"RepAuthBot/internal/utils/logger/sl"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	callbackLogin = "cmd_login_username"
	callbackHelp  = "cmd_help"

	janitorInterval = time.Minute
)

// Bot is the Telegram side of RepAuthBot: it turns webhook updates into
// replies. It does not poll.
type Bot struct {
	api      api
	client   *Client
	flow     *Flow
	sessions SessionStore
	states   *stateStore
	suppress *suppressor
	texts    *texts.Texts
	cfg      config.BotConfig
	locks    *chatLocks
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

// New creates a Bot backed by the real Bot API.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	sessions SessionStore,
	auth Authenticator,
	t *texts.Texts,
) (*Bot, error) {
	op := "telegram.New()"
	log := logger.With(slog.String("op", op))

	b, err := bot.New(cfg.BotConfig.TgbotApiToken, bot.WithSkipGetMe())
	if err != nil {
		log.Error("error auth telegram bot", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	repBot := newBot(logger, cfg, b, sessions, auth, t, time.Now)
	log.Info("telegram bot created")
	return repBot, nil
}

func newBot(
	logger *slog.Logger,
	cfg *config.Config,
	api api,
	sessions SessionStore,
	auth Authenticator,
	t *texts.Texts,
	now func() time.Time,
) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.With(slog.String("component", "telegram"))

	client := NewClient(logger, api)
	states := newStateStore(cfg.FlowConfig.StateTTL, now)
	suppress := newSuppressor(cfg.FlowConfig.SuppressWindow, now)

	return &Bot{
		api:      api,
		client:   client,
		sessions: sessions,
		states:   states,
		suppress: suppress,
		texts:    t,
		cfg:      cfg.BotConfig,
		locks:    newChatLocks(),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		flow: &Flow{
			client:      client,
			auth:        auth,
			sessions:    sessions,
			states:      states,
			suppress:    suppress,
			texts:       t,
			deleteLimit: cfg.FlowConfig.DeleteConcurrency,
			log:         log,
		},
	}
}

// Start drops abandoned login dialogues until Shutdown is called.
func (repBot *Bot) Start() {
	repBot.log.Info("starting flow state janitor")
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-repBot.ctx.Done():
			repBot.log.Info("flow state janitor stopped")
			return
		case <-ticker.C:
			if n := repBot.states.purgeExpired(); n > 0 {
				repBot.log.Debug("expired login dialogues dropped", slog.Int("count", n))
			}
		}
	}
}

// RegisterWebhook points Telegram at the configured webhook URL and publishes
// the command menu. Without a URL it does nothing.
func (repBot *Bot) RegisterWebhook(ctx context.Context) error {
	op := "telegram.RegisterWebhook()"
	log := repBot.log.With(slog.String("op", op))

	if repBot.cfg.WebhookURL == "" {
		log.Info("webhook url not set, skipping registration")
		return nil
	}

	if _, err := repBot.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            repBot.cfg.WebhookURL,
		SecretToken:    repBot.cfg.WebhookSecret,
		AllowedUpdates: []string{"message", "callback_query"},
	}); err != nil {
		return fmt.Errorf("%s: set webhook: %w", op, err)
	}

	c := repBot.texts.Commands
	if _, err := repBot.api.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: c.Start},
			{Command: "login", Description: c.Login},
			{Command: "logout", Description: c.Logout},
			{Command: "help", Description: c.Help},
		},
	}); err != nil {
		return fmt.Errorf("%s: set commands: %w", op, err)
	}

	log.Info("webhook registered", slog.String("url", repBot.cfg.WebhookURL))
	return nil
}

// isCommand reports whether text is a bot command.
func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// commandText extracts the command name from text (without slash or @botname).
func commandText(text string) string {
	if !isCommand(text) {
		return ""
	}
	cmd := text[1:]
	if i := strings.IndexFunc(cmd, isSpace); i >= 0 {
		cmd = cmd[:i]
	}
	// strip @botname if present
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// commandArguments returns the words that follow the command.
func commandArguments(text string) []string {
	if !isCommand(text) {
		return nil
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

// inlineKeyboard builds an InlineKeyboardMarkup from rows of buttons.
func inlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// inlineRow builds a single row of inline keyboard buttons.
func inlineRow(btns ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return btns
}

// inlineBtn creates an inline keyboard button with callback data.
func inlineBtn(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

// Shutdown stops the janitor.
func (repBot *Bot) Shutdown(_ context.Context) error {
	repBot.cancel()
	return nil
}

package telegram

import (
	"context"
	"log/slog"
	"sync"

	"RepAuthBot/internal/utils/logger/sl"

	"github.com/go-telegram/bot/models"
)

// HandleUpdate is the single entry point for webhook updates. Handler errors
// are answered with an apology and never returned, so Telegram does not
// redeliver an update that was already handled.
func (repBot *Bot) HandleUpdate(ctx context.Context, update *models.Update) error {
	op := "telegram.HandleUpdate()"
	log := repBot.log.With(slog.String("op", op))

	if update == nil {
		return nil
	}
	chatID, messageIDs := resolveChat(update)
	if chatID == 0 {
		log.Debug("update without chat, ignoring", slog.Int64("update_id", update.ID))
		return nil
	}
	log = log.With(slog.Int64("chat_id", chatID))

	unlock := repBot.locks.lock(chatID)
	defer unlock()

	if repBot.suppress.active(chatID) {
		log.Info("ignoring update right after login")
		return nil
	}

	if st, ok := repBot.states.Get(chatID); ok && len(messageIDs) > 0 {
		st.Track(messageIDs...)
		repBot.states.Set(chatID, st)
	}

	var err error
	switch {
	case update.CallbackQuery != nil:
		log.Info("input callback",
			slog.Int64("user_id", update.CallbackQuery.From.ID),
			slog.String("user_name", update.CallbackQuery.From.Username),
			slog.String("data", update.CallbackQuery.Data),
		)
		err = repBot.handleCallbackQuery(ctx, chatID, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		attrs := []any{slog.Int("message_id", update.Message.ID)}
		if from := update.Message.From; from != nil {
			attrs = append(attrs, slog.Int64("user_id", from.ID), slog.String("user_name", from.Username))
		}
		if isCommand(update.Message.Text) {
			attrs = append(attrs, slog.String("command", commandText(update.Message.Text)))
		}
		log.Info("input message", attrs...)
		err = repBot.handleMessage(ctx, chatID, update.Message)
	default:
		return nil
	}

	if err != nil {
		log.Error("update handler error", sl.Err(err))
		if _, sendErr := repBot.client.Send(ctx, chatID, Plain(repBot.texts.RequestError)); sendErr != nil {
			log.Error("failed to send apology", sl.Err(sendErr))
		}
	}
	return nil
}

// resolveChat returns the chat of the update and the ids of the messages it
// refers to.
func resolveChat(update *models.Update) (int64, []int) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, []int{update.Message.ID}
	case update.CallbackQuery != nil:
		m := update.CallbackQuery.Message
		switch {
		case m.Message != nil:
			return m.Message.Chat.ID, []int{m.Message.ID}
		case m.InaccessibleMessage != nil:
			return m.InaccessibleMessage.Chat.ID, []int{m.InaccessibleMessage.MessageID}
		}
	}
	return 0, nil
}

// chatLocks serializes updates of the same chat. Entries live only while a
// handler holds or waits for them.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*chatLock)}
}

func (l *chatLocks) lock(chatID int64) (unlock func()) {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}

func (l *chatLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RepAuthBot/internal/config"
	"RepAuthBot/internal/crm"
	"RepAuthBot/internal/models/domain"
	"RepAuthBot/internal/repositories/memrepo"
	"RepAuthBot/internal/sessions"
	"RepAuthBot/internal/texts"
	"RepAuthBot/internal/utils/logger/handlers/slogdiscard"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type sentMessage struct {
	ID        int
	ChatID    int64
	Text      string
	ParseMode models.ParseMode
	Keyboard  *models.InlineKeyboardMarkup
}

// fakeAPI records Bot API calls and hands out message ids from 1000 upwards.
type fakeAPI struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	deleted   []int
	answered  []string
	sendErr   error
	deleteErr map[int]error
	webhook   *bot.SetWebhookParams
	commands  []models.BotCommand
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 1000, deleteErr: make(map[int]error)}
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	kb, _ := p.ReplyMarkup.(*models.InlineKeyboardMarkup)
	chatID, _ := p.ChatID.(int64)
	f.sent = append(f.sent, sentMessage{
		ID:        f.nextID,
		ChatID:    chatID,
		Text:      p.Text,
		ParseMode: p.ParseMode,
		Keyboard:  kb,
	})
	return &models.Message{ID: f.nextID, Chat: models.Chat{ID: chatID}, Text: p.Text}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, p.MessageID)
	if err := f.deleteErr[p.MessageID]; err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, p.CallbackQueryID)
	return true, nil
}

func (f *fakeAPI) SetWebhook(_ context.Context, p *bot.SetWebhookParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhook = p
	return true, nil
}

func (f *fakeAPI) SetMyCommands(_ context.Context, p *bot.SetMyCommandsParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = p.Commands
	return true, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeAPI) deletedIDs() map[int]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]int, len(f.deleted))
	for _, id := range f.deleted {
		out[id]++
	}
	return out
}

type authCall struct {
	username, password string
}

// fakeAuth accepts "correctpass", reports the CRM down for "down" and rejects
// everything else.
type fakeAuth struct {
	mu    sync.Mutex
	calls []authCall
}

func (a *fakeAuth) RepToken(_ context.Context, username, password string) crm.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, authCall{username, password})
	switch password {
	case "correctpass":
		return crm.Result{
			Outcome:  crm.OutcomeAuthenticated,
			Token:    "token-" + username,
			Customer: &domain.Customer{UserName: username, UserCanLogIn: true},
		}
	case "down":
		return crm.Result{Outcome: crm.OutcomeUnavailable, Reason: "crm down"}
	default:
		return crm.Result{Outcome: crm.OutcomeRejected, Reason: "bad credentials"}
	}
}

func (a *fakeAuth) attempts() []authCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]authCall(nil), a.calls...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ttlStore records the expiry of every key it is asked to store.
type ttlStore struct {
	*memrepo.Repository
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func (s *ttlStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.ttls[key] = ttl
	s.mu.Unlock()
	return s.Repository.Put(ctx, key, value, ttl)
}

func (s *ttlStore) ttl(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// brokenSessions fails the operations that have an error set.
type brokenSessions struct {
	saveErr, getErr, removeErr error
}

func (b *brokenSessions) SaveUserSession(context.Context, int64, string) error { return b.saveErr }

func (b *brokenSessions) UserSession(context.Context, int64) (string, bool, error) {
	return "", false, b.getErr
}

func (b *brokenSessions) RemoveUserSession(context.Context, int64) error { return b.removeErr }

var errBoom = errors.New("boom")

type harness struct {
	bot      *Bot
	api      *fakeAPI
	auth     *fakeAuth
	sessions *sessions.Repository
	store    *ttlStore
	clock    *fakeClock
	texts    *texts.Texts
}

func testConfig() *config.Config {
	return &config.Config{
		FlowConfig: config.FlowConfig{
			StateTTL:          30 * time.Minute,
			SuppressWindow:    2 * time.Second,
			DeleteConcurrency: 4,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem, err := memrepo.New(128)
	if err != nil {
		t.Fatalf("memrepo.New: %v", err)
	}
	t.Cleanup(func() { mem.Shutdown(context.Background()) })

	log := slogdiscard.NewDiscardLogger()
	store := &ttlStore{Repository: mem, ttls: make(map[string]time.Duration)}
	h := &harness{
		api:      newFakeAPI(),
		auth:     &fakeAuth{},
		sessions: sessions.New(log, store, 0),
		store:    store,
		clock:    newFakeClock(),
		texts:    texts.Default(),
	}
	h.bot = newBot(log, testConfig(), h.api, h.sessions, h.auth, h.texts, h.clock.Now)
	return h
}

func (h *harness) send(t *testing.T, u *models.Update) {
	t.Helper()
	if err := h.bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
}

func (h *harness) state(chatID int64) (*domain.ChatState, bool) {
	return h.bot.states.Get(chatID)
}

func (h *harness) loggedIn(t *testing.T, chatID int64) bool {
	t.Helper()
	_, ok, err := h.sessions.UserSession(context.Background(), chatID)
	if err != nil {
		t.Fatalf("UserSession: %v", err)
	}
	return ok
}

func textUpdate(chatID int64, messageID int, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   messageID,
			Chat: models.Chat{ID: chatID},
			From: &models.User{ID: chatID, Username: "rep"},
			Text: text,
		},
	}
}

func callbackUpdate(chatID int64, messageID int, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-" + data,
			From: models.User{ID: chatID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: messageID, Chat: models.Chat{ID: chatID}},
			},
		},
	}
}

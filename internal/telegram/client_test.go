package telegram

import (
	"context"
	"testing"
	"time"

	"RepAuthBot/internal/models/domain"
	"RepAuthBot/internal/utils/logger/handlers/slogdiscard"

	"github.com/go-telegram/bot/models"
)

func TestClientSend(t *testing.T) {
	api := newFakeAPI()
	c := NewClient(slogdiscard.NewDiscardLogger(), api)
	ctx := context.Background()

	if _, err := c.Send(ctx, 1, Plain("a < b & c > d")); err != nil {
		t.Fatalf("Send plain: %v", err)
	}
	plain := api.last()
	if plain.Text != "a &lt; b &amp; c &gt; d" {
		t.Errorf("plain text = %q, want escaped", plain.Text)
	}
	if plain.ParseMode != models.ParseModeHTML {
		t.Errorf("parse mode = %q", plain.ParseMode)
	}
	if plain.Keyboard != nil {
		t.Error("plain message carries a keyboard")
	}

	kb := inlineKeyboard(inlineRow(inlineBtn("Go", "go")))
	id, err := c.Send(ctx, 1, Message{Text: "<b>bold</b>", HTML: true, Keyboard: kb})
	if err != nil {
		t.Fatalf("Send html: %v", err)
	}
	html := api.last()
	if html.Text != "<b>bold</b>" || html.Keyboard != kb || html.ID != id {
		t.Errorf("html message = %+v", html)
	}

	if got := c.SentMessages(1); len(got) != 2 || got[1] != id {
		t.Errorf("sent log = %v", got)
	}
	if got := c.SentMessages(2); len(got) != 0 {
		t.Errorf("other chat log = %v", got)
	}
}

func TestClientSendError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errBoom
	c := NewClient(slogdiscard.NewDiscardLogger(), api)

	if _, err := c.Send(context.Background(), 1, Plain("hi")); err == nil {
		t.Fatal("Send succeeded on transport failure")
	}
	if got := c.SentMessages(1); len(got) != 0 {
		t.Errorf("failed send logged: %v", got)
	}
}

func TestClientClearHistory(t *testing.T) {
	api := newFakeAPI()
	c := NewClient(slogdiscard.NewDiscardLogger(), api)
	ctx := context.Background()

	first, _ := c.Send(ctx, 1, Plain("one"))
	second, _ := c.Send(ctx, 1, Plain("two"))
	other, _ := c.Send(ctx, 2, Plain("elsewhere"))
	api.deleteErr[first] = errBoom

	if !c.ClearHistory(ctx, 1) {
		t.Fatal("ClearHistory reported failure")
	}
	if len(api.deleted) != 2 || api.deleted[0] != first || api.deleted[1] != second {
		t.Errorf("deleted = %v, want [%d %d] in order", api.deleted, first, second)
	}
	if got := c.SentMessages(1); len(got) != 0 {
		t.Errorf("log not emptied: %v", got)
	}
	if got := c.SentMessages(2); len(got) != 1 || got[0] != other {
		t.Errorf("other chat log touched: %v", got)
	}
	if !c.ClearHistory(ctx, 1) {
		t.Error("ClearHistory on an empty log reported failure")
	}
}

func TestStateStore(t *testing.T) {
	clock := newFakeClock()
	s := newStateStore(time.Minute, clock.Now)

	st := domain.NewChatState(1)
	s.Set(7, st)
	st.Track(2)

	got, ok := s.Get(7)
	if !ok || len(got.PendingMessageIDs) != 1 {
		t.Fatalf("stored state shares memory with the caller: %+v", got)
	}
	got.Track(3)
	if again, _ := s.Get(7); len(again.PendingMessageIDs) != 1 {
		t.Fatal("returned state shares memory with the store")
	}

	clock.Advance(50 * time.Second)
	s.Set(7, got)
	clock.Advance(50 * time.Second)
	if _, ok := s.Get(7); !ok {
		t.Fatal("Set did not refresh the idle expiry")
	}

	clock.Advance(time.Minute)
	if _, ok := s.Get(7); ok {
		t.Fatal("state outlived its ttl")
	}
	if n := s.purgeExpired(); n != 1 {
		t.Errorf("purgeExpired = %d, want 1", n)
	}

	s.Set(8, domain.NewChatState())
	s.Delete(8)
	if _, ok := s.Get(8); ok {
		t.Error("Delete left the state behind")
	}
}

func TestSuppressor(t *testing.T) {
	clock := newFakeClock()
	s := newSuppressor(2*time.Second, clock.Now)

	if s.active(1) {
		t.Fatal("unmarked chat is suppressed")
	}
	s.mark(1)
	if !s.active(1) || s.active(2) {
		t.Fatal("mark did not apply to exactly one chat")
	}
	clock.Advance(1999 * time.Millisecond)
	if !s.active(1) {
		t.Fatal("window closed early")
	}
	clock.Advance(time.Millisecond)
	if s.active(1) {
		t.Fatal("window still open at its end")
	}

	off := newSuppressor(0, clock.Now)
	off.mark(1)
	if off.active(1) {
		t.Error("zero window suppressed a chat")
	}
}

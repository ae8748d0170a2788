package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"RepAuthBot/internal/crm"
	"RepAuthBot/internal/models/domain"
	"RepAuthBot/internal/texts"
	"RepAuthBot/internal/utils/logger/sl"

	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"
)

const (
	eventUsernameSubmitted = "username_submitted"
	eventAuthenticated     = "authenticated"
)

// Authenticator checks rep credentials against the CRM.
type Authenticator interface {
	RepToken(ctx context.Context, username, password string) crm.Result
}

// SessionStore persists the token of a logged-in chat.
type SessionStore interface {
	SaveUserSession(ctx context.Context, chatID int64, token string) error
	UserSession(ctx context.Context, chatID int64) (string, bool, error)
	RemoveUserSession(ctx context.Context, chatID int64) error
}

// Flow drives the two-step login dialogue of each chat.
type Flow struct {
	client      *Client
	auth        Authenticator
	sessions    SessionStore
	states      FlowStore
	suppress    *suppressor
	texts       *texts.Texts
	deleteLimit int
	log         *slog.Logger
}

func newLoginFSM(step domain.FlowStep) *fsm.FSM {
	return fsm.NewFSM(
		string(step),
		fsm.Events{
			{
				Name: eventUsernameSubmitted,
				Src:  []string{string(domain.StepAwaitingUsername)},
				Dst:  string(domain.StepAwaitingPassword),
			},
			{
				Name: eventAuthenticated,
				Src:  []string{string(domain.StepAwaitingUsername), string(domain.StepAwaitingPassword)},
				Dst:  string(domain.StepCompleted),
			},
		},
		fsm.Callbacks{},
	)
}

// transition moves st along the login state machine.
func transition(ctx context.Context, st *domain.ChatState, event string) error {
	f := newLoginFSM(st.Step)
	if err := f.Event(ctx, event); err != nil {
		return fmt.Errorf("transition %s from %s: %w", event, st.Step, err)
	}
	st.Step = domain.FlowStep(f.Current())
	return nil
}

// StartLogin opens the dialogue if the chat has none and prompts for the
// current step. Progress of an open dialogue is kept.
func (f *Flow) StartLogin(ctx context.Context, chatID int64) error {
	op := "telegram.Flow.StartLogin"

	st, ok := f.states.Get(chatID)
	if !ok {
		st = domain.NewChatState()
	}

	prompt := f.texts.AskUsername
	if st.Step == domain.StepAwaitingPassword {
		prompt = f.texts.AskPassword
	}

	id, err := f.client.Send(ctx, chatID, Plain(prompt))
	st.Track(id)
	f.states.Set(chatID, st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SubmitLoginLine handles the one-line form "/login username password".
// commandIDs are the messages carrying the credentials; they are deleted on
// success.
func (f *Flow) SubmitLoginLine(ctx context.Context, chatID int64, username, password string, commandIDs ...int) error {
	op := "telegram.Flow.SubmitLoginLine"

	if username == "" || password == "" {
		id, err := f.client.Send(ctx, chatID, Plain(f.texts.LoginFormat))
		f.trackIfActive(chatID, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	return f.authenticate(ctx, chatID, username, password, commandIDs...)
}

// Advance feeds one line of free text into the dialogue.
func (f *Flow) Advance(ctx context.Context, chatID int64, text string) error {
	op := "telegram.Flow.Advance"

	st, ok := f.states.Get(chatID)
	if !ok {
		if _, err := f.client.Send(ctx, chatID, Plain(f.texts.SessionExpired)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	switch st.Step {
	case domain.StepAwaitingUsername:
		if err := transition(ctx, st, eventUsernameSubmitted); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		st.Username = text
		id, err := f.client.Send(ctx, chatID, Plain(f.texts.AskPassword))
		st.Track(id)
		f.states.Set(chatID, st)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil

	case domain.StepAwaitingPassword:
		return f.authenticate(ctx, chatID, st.Username, text)

	default:
		return fmt.Errorf("%s: chat %d has unexpected step %q", op, chatID, st.Step)
	}
}

// authenticate is shared by the stepped and the one-line path. On success the
// dialogue's messages and extraIDs are deleted.
func (f *Flow) authenticate(ctx context.Context, chatID int64, username, password string, extraIDs ...int) error {
	op := "telegram.Flow.authenticate"
	log := f.log.With(
		slog.String("op", op),
		slog.Int64("chat_id", chatID),
		slog.String("username", username),
	)

	res := f.auth.RepToken(ctx, username, password)
	if !res.OK() {
		log.Info("login failed", slog.String("outcome", res.Outcome.String()), slog.String("reason", res.Reason))
		text := f.texts.AuthFailed
		if res.Outcome == crm.OutcomeUnavailable {
			text = f.texts.AuthUnavailable
		}
		id, err := f.client.Send(ctx, chatID, Plain(text))
		f.trackIfActive(chatID, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if err := f.sessions.SaveUserSession(ctx, chatID, res.Token); err != nil {
		log.Error("failed to save session", sl.Err(err))
		id, sendErr := f.client.Send(ctx, chatID, Plain(f.texts.Error))
		f.trackIfActive(chatID, id)
		if sendErr != nil {
			return fmt.Errorf("%s: %w", op, sendErr)
		}
		return nil
	}

	toDelete := extraIDs
	if st, ok := f.states.Get(chatID); ok {
		if err := transition(ctx, st, eventAuthenticated); err != nil {
			log.Warn("unexpected dialogue step on login", sl.Err(err))
		}
		toDelete = append(st.PendingMessageIDs, extraIDs...)
	}
	f.deletePending(ctx, chatID, toDelete)

	_, err := f.client.Send(ctx, chatID, Plain(f.texts.LoginSuccess))
	f.suppress.mark(chatID)
	f.states.Delete(chatID)
	log.Info("rep logged in")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// deletePending removes the given messages once each. Individual failures
// are logged by the client and do not stop the batch.
func (f *Flow) deletePending(ctx context.Context, chatID int64, ids []int) {
	var g errgroup.Group
	g.SetLimit(max(f.deleteLimit, 1))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			f.client.DeleteMessage(ctx, chatID, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Flow) trackIfActive(chatID int64, ids ...int) {
	st, ok := f.states.Get(chatID)
	if !ok {
		return
	}
	st.Track(ids...)
	f.states.Set(chatID, st)
}

package domain

import (
	"slices"
	"time"
)

// FlowStep identifies where a chat is in the login dialogue.
type FlowStep string

const (
	StepAwaitingUsername FlowStep = "awaiting_username"
	StepAwaitingPassword FlowStep = "awaiting_password"

	// Terminal steps. A state in one of these is never stored.
	StepCompleted FlowStep = "completed"
	StepExpired   FlowStep = "expired"
)

// ChatState is the login dialogue of one chat.
type ChatState struct {
	Step     FlowStep
	Username string // set once Step is StepAwaitingPassword
	// PendingMessageIDs are scrubbed from the chat once the login succeeds.
	PendingMessageIDs []int
	ExpiresAt         time.Time
}

// NewChatState returns a state awaiting a username, seeded with ids.
func NewChatState(ids ...int) *ChatState {
	return &ChatState{
		Step:              StepAwaitingUsername,
		PendingMessageIDs: append([]int(nil), ids...),
	}
}

// Track appends message ids in arrival order, skipping zero ids.
func (s *ChatState) Track(ids ...int) {
	for _, id := range ids {
		if id != 0 {
			s.PendingMessageIDs = append(s.PendingMessageIDs, id)
		}
	}
}

// Clone returns a deep copy so stored states are never shared between callers.
func (s *ChatState) Clone() *ChatState {
	if s == nil {
		return nil
	}
	c := *s
	c.PendingMessageIDs = slices.Clone(s.PendingMessageIDs)
	return &c
}

// Customer is the CRM account a rep logged in with.
type Customer struct {
	CustomerID   int64  `json:"customerId"`
	UserName     string `json:"userName"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
	UserCanLogIn bool   `json:"userCanLogIn"`
}

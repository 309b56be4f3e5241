package testutil

import (
	"fmt"
	"time"

	"musicpipe/internal/domain"

	"go.uber.org/zap"
)

// NewTestLogger creates a no-op logger for tests
func NewTestLogger() *zap.Logger {
	return zap.NewNop()
}

// NewTestUserState creates a test user state row without context
func NewTestUserState(telegramID int64, state domain.StateName) *domain.UserState {
	now := time.Now()
	return &domain.UserState{
		ID:               telegramID * 10,
		TelegramID:       telegramID,
		ConnectionPhrase: fmt.Sprintf("phrase-%d", telegramID),
		State:            state,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// WithContext returns a copy of u carrying the encoded c
func WithContext(u *domain.UserState, c domain.StateContext) *domain.UserState {
	raw, err := domain.EncodeContext(c)
	if err != nil {
		panic(err)
	}
	out := *u
	out.Context = raw
	return &out
}

// NewTestEvent creates a text message event from the user's private chat
func NewTestEvent(userID int64, text string) domain.Event {
	return domain.Event{
		UpdateID: 1,
		Kind:     domain.EventMessage,
		UserID:   userID,
		ChatID:   userID,
		Text:     text,
	}
}

// NewTestCallback creates a button press event
func NewTestCallback(userID int64, data string) domain.Event {
	return domain.Event{
		UpdateID:     1,
		Kind:         domain.EventCallback,
		UserID:       userID,
		ChatID:       userID,
		CallbackID:   "cb-1",
		CallbackData: data,
	}
}

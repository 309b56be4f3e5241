package statemachine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"musicpipe/internal/domain"
	"musicpipe/internal/downloader"
	"musicpipe/internal/telegram"

	tele "gopkg.in/telebot.v3"
)

// Sender delivers replies to the chat platform
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (*telegram.Outbound, error)
	SendFormatted(ctx context.Context, chatID int64, text string) (*telegram.Outbound, error)
	SendChatAction(ctx context.Context, chatID int64, action tele.ChatAction) error
	SendAudio(ctx context.Context, chatID int64, r io.Reader, fileName string, markup *tele.ReplyMarkup) (*telegram.Outbound, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Downloader fetches tracks into per-request working directories
type Downloader interface {
	Download(ctx context.Context, req downloader.Request) (*downloader.Track, error)
	Cleanup(downloadID string) error
}

// Backend registers users with the downstream API
type Backend interface {
	RegisterUser(ctx context.Context, telegramID int64, phrase string) error
}

// Handler decides what happens to an event in one state
type Handler interface {
	State() domain.StateName
	Handle(ctx context.Context, turn *Turn) (Result, error)
}

// CheckpointFunc persists an intermediate state before a long operation
type CheckpointFunc func(ctx context.Context, next domain.StateName, sctx domain.StateContext) error

// Turn is one event being processed for one user
type Turn struct {
	State *domain.UserState
	Event domain.Event

	checkpoint CheckpointFunc
}

// Checkpoint persists next before the handler finishes. On success
// turn.State reflects the stored row.
func (t *Turn) Checkpoint(ctx context.Context, next domain.StateName, sctx domain.StateContext) error {
	if t.checkpoint == nil {
		return &persistError{err: errors.New("checkpoint is not available")}
	}
	if err := t.checkpoint(ctx, next, sctx); err != nil {
		return &persistError{err: err}
	}
	return nil
}

// persistError marks a handler failure caused by the store
type persistError struct {
	err error
}

func (e *persistError) Error() string {
	return fmt.Sprintf("failed to persist checkpoint: %v", e.err)
}

func (e *persistError) Unwrap() error {
	return e.err
}

// Registry maps each state to its handler. It is built once at startup.
type Registry map[domain.StateName]Handler

// NewRegistry indexes handlers by the state they serve
func NewRegistry(handlers ...Handler) (Registry, error) {
	r := make(Registry, len(handlers))
	for _, h := range handlers {
		name := h.State()
		if !name.Valid() {
			return nil, &domain.ErrInvalidState{Name: name}
		}
		if _, dup := r[name]; dup {
			return nil, fmt.Errorf("duplicate handler for state %q", name)
		}
		r[name] = h
	}
	if _, ok := r[domain.StateInitial]; !ok {
		return nil, fmt.Errorf("no handler for state %q", domain.StateInitial)
	}
	return r, nil
}

// Lookup returns the handler for name
func (r Registry) Lookup(name domain.StateName) (Handler, bool) {
	h, ok := r[name]
	return h, ok
}

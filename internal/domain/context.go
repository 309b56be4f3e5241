package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrContextMismatch is returned when a stored context is read for a state
// other than the one it was built for.
var ErrContextMismatch = errors.New("state context belongs to another state")

// StateContext is a state-specific payload. Each implementation is bound
// to exactly one StateName.
type StateContext interface {
	ContextState() StateName
}

// DownloadingContext is persisted right before the external downloader starts
type DownloadingContext struct {
	DownloadID string    `json:"downloadId"`
	URL        string    `json:"url"`
	StartedAt  time.Time `json:"startedAt"`
}

func (DownloadingContext) ContextState() StateName { return StateDownloading }

// PostProcessContext links a delivered track back to its download
type PostProcessContext struct {
	DownloadID string `json:"downloadId"`
	FileName   string `json:"fileName"`
}

func (PostProcessContext) ContextState() StateName { return StateAwaitingPostProcess }

// ClearedContext drops the stored context while moving to State
type ClearedContext struct {
	State StateName
}

func (c ClearedContext) ContextState() StateName { return c.State }

type envelope struct {
	State StateName       `json:"state"`
	Data  json.RawMessage `json:"data"`
}

// EncodeContext serializes c together with the state it belongs to. nil
// and ClearedContext encode to nothing.
func EncodeContext(c StateContext) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	if _, ok := c.(ClearedContext); ok {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s context: %w", c.ContextState(), err)
	}
	return json.Marshal(envelope{State: c.ContextState(), Data: data})
}

// DecodeContext restores a context of type T, refusing payloads tagged
// with a different state.
func DecodeContext[T StateContext](raw []byte) (T, error) {
	var zero T
	if len(raw) == 0 {
		return zero, fmt.Errorf("empty %s context", zero.ContextState())
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("failed to decode context envelope: %w", err)
	}
	if env.State != zero.ContextState() {
		return zero, fmt.Errorf("%w: stored %q, wanted %q", ErrContextMismatch, env.State, zero.ContextState())
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("failed to decode %s context: %w", env.State, err)
	}
	return out, nil
}

// ContextOf returns the context of u as T. It fails with ErrContextMismatch
// when u is not currently in T's state, so a handler never reads a payload
// built for another state. ok is false when no context is stored.
func ContextOf[T StateContext](u *UserState) (ctx T, ok bool, err error) {
	if u.State != ctx.ContextState() {
		return ctx, false, fmt.Errorf("%w: user is in %q, wanted %q", ErrContextMismatch, u.State, ctx.ContextState())
	}
	if !u.HasContext() {
		return ctx, false, nil
	}
	ctx, err = DecodeContext[T](u.Context)
	if err != nil {
		return ctx, false, err
	}
	return ctx, true, nil
}

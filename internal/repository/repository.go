package repository

import (
	"context"
	"errors"

	"musicpipe/internal/domain"
)

// ErrStaleState is returned when the row changed since it was read
var ErrStaleState = errors.New("user state was modified concurrently")

// UserStateRepository defines durable per-user conversation state operations
type UserStateRepository interface {
	// GetOrCreate returns the row for telegramID, inserting an Initial row on first contact
	GetOrCreate(ctx context.Context, telegramID int64) (*domain.UserState, error)
	// Update persists next as the current state. A nil nextCtx keeps the stored context,
	// domain.ClearedContext removes it.
	Update(ctx context.Context, current *domain.UserState, next domain.StateName, nextCtx domain.StateContext) (*domain.UserState, error)
}

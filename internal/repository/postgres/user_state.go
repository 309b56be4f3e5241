package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"musicpipe/internal/domain"
	"musicpipe/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	userStateColumns = `id, telegram_id, connection_phrase, state, context, version, created_at, updated_at`

	// uniqueViolation is the postgres SQLSTATE for unique_violation
	uniqueViolation = "23505"

	maxCreateAttempts = 3
)

// UserStateRepo implements repository.UserStateRepository
type UserStateRepo struct {
	db        *sql.DB
	newPhrase func() string
}

// NewUserStateRepo creates a new user state repository
func NewUserStateRepo(db *sql.DB) *UserStateRepo {
	return &UserStateRepo{
		db:        db,
		newPhrase: uuid.NewString,
	}
}

var _ repository.UserStateRepository = (*UserStateRepo)(nil)

// Get returns the state row of a user, or nil if the user is unknown
func (r *UserStateRepo) Get(ctx context.Context, telegramID int64) (*domain.UserState, error) {
	query := `SELECT ` + userStateColumns + ` FROM user_states WHERE telegram_id = $1`

	state, err := scanUserState(r.db.QueryRowContext(ctx, query, telegramID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user state: %w", err)
	}
	return state, nil
}

// GetByPhrase looks a user up by connection phrase
func (r *UserStateRepo) GetByPhrase(ctx context.Context, phrase string) (*domain.UserState, error) {
	query := `SELECT ` + userStateColumns + ` FROM user_states WHERE connection_phrase = $1`

	state, err := scanUserState(r.db.QueryRowContext(ctx, query, phrase))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user state by phrase: %w", err)
	}
	return state, nil
}

// GetOrCreate returns the existing row or inserts a new Initial one.
// A concurrent first contact is resolved by re-reading the winner's row.
func (r *UserStateRepo) GetOrCreate(ctx context.Context, telegramID int64) (*domain.UserState, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		state, err := r.Get(ctx, telegramID)
		if err != nil {
			return nil, err
		}
		if state != nil {
			return state, nil
		}

		state, err = r.insert(ctx, telegramID)
		if err != nil && !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create user state: %w", err)
		}
		if state != nil {
			return state, nil
		}
		// Another writer inserted the row first
	}

	return nil, fmt.Errorf("user state for %d was not visible after %d attempts", telegramID, maxCreateAttempts)
}

func (r *UserStateRepo) insert(ctx context.Context, telegramID int64) (*domain.UserState, error) {
	query := `
		INSERT INTO user_states (telegram_id, connection_phrase, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + userStateColumns

	state, err := scanUserState(r.db.QueryRowContext(ctx, query, telegramID, r.newPhrase(), string(domain.StateInitial)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Update moves the row to next. The stored context is replaced only when
// nextCtx is non-nil; domain.ClearedContext removes it. The write is rejected with repository.ErrStaleState
// when the row version no longer matches current.
func (r *UserStateRepo) Update(
	ctx context.Context,
	current *domain.UserState,
	next domain.StateName,
	nextCtx domain.StateContext,
) (*domain.UserState, error) {
	if !next.Valid() {
		return nil, &domain.ErrInvalidState{Name: next}
	}
	if nextCtx != nil && nextCtx.ContextState() != next {
		return nil, fmt.Errorf("%w: %s context for %s transition", domain.ErrContextMismatch, nextCtx.ContextState(), next)
	}

	var (
		payload sql.NullString
		clear   bool
	)
	switch c := nextCtx.(type) {
	case nil:
	case domain.ClearedContext:
		clear = true
	default:
		raw, err := domain.EncodeContext(c)
		if err != nil {
			return nil, err
		}
		payload = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		UPDATE user_states
		SET state = $1,
			context = CASE WHEN $5 THEN NULL ELSE COALESCE($2::jsonb, context) END,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING ` + userStateColumns

	updated, err := scanUserState(r.db.QueryRowContext(ctx, query, string(next), payload, current.ID, current.Version, clear))
	if err == sql.ErrNoRows {
		return nil, repository.ErrStaleState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user state: %w", err)
	}
	return updated, nil
}

func scanUserState(row *sql.Row) (*domain.UserState, error) {
	var (
		s     domain.UserState
		state string
		raw   []byte
	)
	if err := row.Scan(
		&s.ID, &s.TelegramID, &s.ConnectionPhrase, &state, &raw, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.State = domain.StateName(state)
	if len(raw) > 0 {
		s.Context = raw
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

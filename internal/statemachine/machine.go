package statemachine

import (
	"context"
	"errors"

	"musicpipe/internal/domain"
	"musicpipe/internal/repository"
	"musicpipe/internal/telegram"

	"go.uber.org/zap"
)

// Machine runs one event through the state handlers and persists the result
type Machine struct {
	store    repository.UserStateRepository
	registry Registry
	sender   Sender
	logger   *zap.Logger
}

// NewMachine creates a new state machine
func NewMachine(store repository.UserStateRepository, registry Registry, sender Sender, logger *zap.Logger) *Machine {
	return &Machine{
		store:    store,
		registry: registry,
		sender:   sender,
		logger:   logger,
	}
}

// Process handles ev end to end. Store and handler failures are reported to
// the user and swallowed; platform errors and cancellation are returned so
// the receive loop can cool down.
func (m *Machine) Process(ctx context.Context, ev domain.Event) error {
	logger := m.logger.With(
		zap.Int64("user_id", ev.UserID),
		zap.Int("update_id", ev.UpdateID),
		zap.Stringer("kind", ev.Kind),
	)

	state, err := m.store.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Failed to get or add user state", zap.Error(err))
		return m.reply(ctx, ev, msgStateFailed)
	}

	turn := &Turn{State: state, Event: ev}
	turn.checkpoint = func(ctx context.Context, next domain.StateName, sctx domain.StateContext) error {
		updated, err := m.store.Update(ctx, turn.State, next, sctx)
		if err != nil {
			return err
		}
		turn.State = updated
		return nil
	}

	from := turn.State.State
	result, err := m.dispatch(ctx, turn, logger)
	if err != nil {
		return m.fail(ctx, ev, err, logger)
	}

	if result.Outcome == OutcomeSkipped {
		logger.Debug("Event skipped", zap.String("state", string(turn.State.State)))
		return nil
	}

	if _, ok := m.registry.Lookup(result.Next); !ok {
		logger.Error("Result names a state without handler, resetting",
			zap.String("state", string(result.Next)),
		)
		result = Completed(domain.StateInitial, result.Sent)
	}

	if _, err := m.store.Update(ctx, turn.State, result.Next, nextContext(turn.State, result)); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			logger.Error("User state changed concurrently, transition discarded",
				zap.String("from", string(from)),
				zap.String("to", string(result.Next)),
			)
		} else {
			logger.Error("Failed to persist user state", zap.Error(err))
		}
		return m.reply(ctx, ev, msgUpdateFailed)
	}

	logger.Info("User state updated",
		zap.String("from", string(from)),
		zap.String("to", string(result.Next)),
		zap.Stringer("outcome", result.Outcome),
	)
	return nil
}

// dispatch tries the Initial handler first for messages so that global
// commands work in any state, then the handler of the persisted state.
func (m *Machine) dispatch(ctx context.Context, turn *Turn, logger *zap.Logger) (Result, error) {
	current := turn.State.State

	if turn.Event.IsMessage() {
		initial, _ := m.registry.Lookup(domain.StateInitial)
		result, err := initial.Handle(ctx, turn)
		if err != nil || result.Outcome != OutcomeSkipped || current == domain.StateInitial {
			return result, err
		}
	}

	h, ok := m.registry.Lookup(current)
	if !ok {
		logger.Error("No handler for persisted state", zap.String("state", string(current)))
		if !turn.Event.IsMessage() {
			if err := m.sender.AnswerCallback(ctx, turn.Event.CallbackID, ""); err != nil {
				return Result{}, err
			}
		}
		sent, err := m.sender.SendText(ctx, turn.Event.ChatID, msgHandlingFailed, nil)
		if err != nil {
			return Result{}, err
		}
		return Completed(domain.StateInitial, sent), nil
	}

	return h.Handle(ctx, turn)
}

// nextContext drops a stored context once the row leaves the state it was
// built for, unless the handler supplied a new one.
func nextContext(current *domain.UserState, result Result) domain.StateContext {
	if result.Context != nil || result.Next == current.State || !current.HasContext() {
		return result.Context
	}
	return domain.ClearedContext{State: result.Next}
}

func (m *Machine) fail(ctx context.Context, ev domain.Event, err error, logger *zap.Logger) error {
	var platformErr *telegram.PlatformError
	if errors.As(err, &platformErr) || ctx.Err() != nil {
		return err
	}

	var checkpointErr *persistError
	if errors.As(err, &checkpointErr) {
		logger.Error("Failed to store checkpoint", zap.Error(err))
		return m.reply(ctx, ev, msgUpdateFailed)
	}

	logger.Error("Failed to handle event", zap.Error(err))
	return m.reply(ctx, ev, msgHandlingFailed)
}

func (m *Machine) reply(ctx context.Context, ev domain.Event, text string) error {
	_, err := m.sender.SendText(ctx, ev.ChatID, text, nil)
	return err
}

package statemachine

import (
	"context"
	"fmt"
	"strings"

	"musicpipe/internal/domain"
	"musicpipe/internal/downloader"

	"go.uber.org/zap"
)

const (
	cmdStart     = "/start"
	cmdHelp      = "/help"
	cmdLoadTrack = "/loadtrack"
	cmdCancel    = "/cancel"
	cmdConnect   = "/connect"
)

// InitialHandler serves the idle state and the global commands that are
// tried first for every message, whatever state the user is in.
type InitialHandler struct {
	sender      Sender
	downloading *DownloadingHandler
	backend     Backend
	logger      *zap.Logger
}

// NewInitialHandler creates the Initial state handler
func NewInitialHandler(sender Sender, downloading *DownloadingHandler, backend Backend, logger *zap.Logger) *InitialHandler {
	return &InitialHandler{
		sender:      sender,
		downloading: downloading,
		backend:     backend,
		logger:      logger,
	}
}

func (h *InitialHandler) State() domain.StateName {
	return domain.StateInitial
}

// Handle runs a global command or, in the Initial state, answers free text
// with usage help. Anything else is left to the persisted state's handler.
func (h *InitialHandler) Handle(ctx context.Context, turn *Turn) (Result, error) {
	ev := turn.Event
	current := turn.State.State

	if !ev.IsMessage() {
		// A stale button from an earlier conversation
		if err := h.sender.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
			return Result{}, err
		}
		return Skipped(current), nil
	}

	if strings.TrimSpace(ev.Text) == "" {
		sent, err := h.sender.SendText(ctx, ev.ChatID, msgUnsupported, nil)
		if err != nil {
			return Result{}, err
		}
		return Completed(current, sent), nil
	}

	cmd, _ := ev.Command()
	switch normalizeCommand(cmd) {
	case cmdStart, cmdHelp:
		sent, err := h.sender.SendText(ctx, ev.ChatID, msgGreeting, nil)
		if err != nil {
			return Result{}, err
		}
		return Completed(domain.StateInitial, sent), nil

	case cmdLoadTrack:
		return h.loadTrack(ctx, turn)

	case cmdCancel:
		return h.cancel(ctx, turn)

	case cmdConnect:
		return h.connect(ctx, turn)
	}

	if current != domain.StateInitial {
		return Skipped(current), nil
	}

	sent, err := h.sender.SendFormatted(ctx, ev.ChatID, msgUsage)
	if err != nil {
		return Result{}, err
	}
	return Completed(domain.StateInitial, sent), nil
}

func (h *InitialHandler) loadTrack(ctx context.Context, turn *Turn) (Result, error) {
	ev := turn.Event

	url, ok := downloader.ExtractTrackURL(ev.Text)
	if !ok {
		h.logger.Warn("Invalid track URL",
			zap.Int64("user_id", ev.UserID),
			zap.String("text", ev.Text),
		)
		sent, err := h.sender.SendText(ctx, ev.ChatID, msgInvalidURL, nil)
		if err != nil {
			return Result{}, err
		}
		return Completed(domain.StateInitial, sent), nil
	}

	return h.downloading.Start(ctx, turn, url)
}

func (h *InitialHandler) cancel(ctx context.Context, turn *Turn) (Result, error) {
	h.downloading.discardStale(turn)

	sent, err := h.sender.SendText(ctx, turn.Event.ChatID, msgCancelled, nil)
	if err != nil {
		return Result{}, err
	}
	return Completed(domain.StateInitial, sent), nil
}

func (h *InitialHandler) connect(ctx context.Context, turn *Turn) (Result, error) {
	ev := turn.Event
	phrase := turn.State.ConnectionPhrase

	if err := h.backend.RegisterUser(ctx, ev.UserID, phrase); err != nil {
		h.logger.Error("Failed to register user with backend",
			zap.Int64("user_id", ev.UserID),
			zap.Error(err),
		)
		sent, sendErr := h.sender.SendText(ctx, ev.ChatID, msgUnavailable, nil)
		if sendErr != nil {
			return Result{}, sendErr
		}
		return Completed(turn.State.State, sent), nil
	}

	h.logger.Info("User registered with backend", zap.Int64("user_id", ev.UserID))

	sent, err := h.sender.SendText(ctx, ev.ChatID, fmt.Sprintf(msgConnect, phrase), nil)
	if err != nil {
		return Result{}, err
	}
	return Completed(domain.StateInitial, sent), nil
}

// normalizeCommand drops the "@botname" suffix used in group chats
func normalizeCommand(cmd string) string {
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

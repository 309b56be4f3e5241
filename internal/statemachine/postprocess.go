package statemachine

import (
	"context"

	"musicpipe/internal/domain"

	"go.uber.org/zap"
)

// PostProcessHandler serves the buttons attached to a delivered track
type PostProcessHandler struct {
	sender Sender
	logger *zap.Logger
}

// NewPostProcessHandler creates the AwaitingPostProcess state handler
func NewPostProcessHandler(sender Sender, logger *zap.Logger) *PostProcessHandler {
	return &PostProcessHandler{
		sender: sender,
		logger: logger,
	}
}

func (h *PostProcessHandler) State() domain.StateName {
	return domain.StateAwaitingPostProcess
}

func (h *PostProcessHandler) Handle(ctx context.Context, turn *Turn) (Result, error) {
	ev := turn.Event

	if ev.IsMessage() {
		// Free text ends post-processing like any new request would
		sent, err := h.sender.SendFormatted(ctx, ev.ChatID, msgUsage)
		if err != nil {
			return Result{}, err
		}
		return Completed(domain.StateInitial, sent), nil
	}

	if err := h.sender.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
		return Result{}, err
	}

	var text string
	switch ev.CallbackData {
	case btnAgain.Unique:
		text = msgAnotherTrack
	case btnDone.Unique:
		text = msgFarewell
	default:
		h.logger.Warn("Unknown post-processing callback",
			zap.Int64("user_id", ev.UserID),
			zap.String("data", ev.CallbackData),
		)
		return Skipped(turn.State.State), nil
	}

	if pp, ok, err := domain.ContextOf[domain.PostProcessContext](turn.State); err == nil && ok {
		h.logger.Info("Post-processing finished",
			zap.Int64("user_id", ev.UserID),
			zap.String("download_id", pp.DownloadID),
			zap.String("action", ev.CallbackData),
		)
	}

	sent, err := h.sender.SendText(ctx, ev.ChatID, text, nil)
	if err != nil {
		return Result{}, err
	}
	return Completed(domain.StateInitial, sent), nil
}

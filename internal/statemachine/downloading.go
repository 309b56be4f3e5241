package statemachine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"musicpipe/internal/domain"
	"musicpipe/internal/downloader"
	"musicpipe/internal/telegram"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// DownloadingHandler runs the download flow. A row found in the
// Downloading state on a later event belongs to a download that never
// finished, so the handler recovers it.
type DownloadingHandler struct {
	sender     Sender
	downloader Downloader
	logger     *zap.Logger
	now        func() time.Time
}

// NewDownloadingHandler creates the Downloading state handler
func NewDownloadingHandler(sender Sender, dl Downloader, logger *zap.Logger) *DownloadingHandler {
	return &DownloadingHandler{
		sender:     sender,
		downloader: dl,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *DownloadingHandler) State() domain.StateName {
	return domain.StateDownloading
}

// Handle recovers an interrupted download: the stale working directory is
// removed and the user is asked to send the link again.
func (h *DownloadingHandler) Handle(ctx context.Context, turn *Turn) (Result, error) {
	ev := turn.Event

	if !ev.IsMessage() {
		if err := h.sender.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
			return Result{}, err
		}
	}

	h.discardStale(turn)
	h.logger.Warn("Recovered interrupted download", zap.Int64("user_id", ev.UserID))

	sent, err := h.sender.SendText(ctx, ev.ChatID, msgInterrupted, nil)
	if err != nil {
		return Result{}, err
	}
	return Completed(domain.StateInitial, sent), nil
}

// Start downloads url for the user and delivers the track. The Downloading
// checkpoint is stored before the downloader runs; if it cannot be stored
// nothing is downloaded.
func (h *DownloadingHandler) Start(ctx context.Context, turn *Turn, url string) (Result, error) {
	ev := turn.Event
	h.discardStale(turn)

	req := downloader.NewRequest(url)
	logger := h.logger.With(
		zap.Int64("user_id", ev.UserID),
		zap.String("download_id", req.ID),
	)

	checkpoint := domain.DownloadingContext{
		DownloadID: req.ID,
		URL:        req.URL,
		StartedAt:  h.now().UTC(),
	}
	if err := turn.Checkpoint(ctx, domain.StateDownloading, checkpoint); err != nil {
		return Result{}, err
	}

	if _, err := h.sender.SendText(ctx, ev.ChatID, msgPleaseWait, nil); err != nil {
		return Result{}, err
	}
	if err := h.sender.SendChatAction(ctx, ev.ChatID, tele.UploadingDocument); err != nil {
		logger.Warn("Failed to send chat action", zap.Error(err))
	}

	logger.Info("Starting download", zap.String("url", req.URL))

	track, err := h.downloader.Download(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Shutdown: the checkpoint stays so the next event recovers
			return Result{}, fmt.Errorf("download interrupted: %w", ctxErr)
		}
		if errors.Is(err, downloader.ErrTrackNotFound) {
			logger.Warn("Track not found", zap.String("url", req.URL))
		} else {
			logger.Error("Download failed", zap.String("url", req.URL), zap.Error(err))
			h.cleanup(req.ID)
		}

		sent, sendErr := h.sender.SendText(ctx, ev.ChatID, msgDownloadFailed, nil)
		if sendErr != nil {
			return Result{}, sendErr
		}
		return Completed(domain.StateInitial, sent), nil
	}

	sent, err := h.deliver(ctx, ev.ChatID, track)
	if err != nil {
		return Result{}, err
	}

	logger.Info("Track delivered", zap.String("file_name", track.FileName))

	return Transitioned(
		domain.StateAwaitingPostProcess,
		domain.PostProcessContext{DownloadID: track.DownloadID, FileName: track.FileName},
		sent,
	), nil
}

// deliver streams the track to the chat and removes its working directory
// once the upload has finished, whatever its outcome.
func (h *DownloadingHandler) deliver(ctx context.Context, chatID int64, track *downloader.Track) (*telegram.Outbound, error) {
	defer h.cleanup(track.DownloadID)

	f, err := os.Open(track.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}
	defer f.Close()

	return h.sender.SendAudio(ctx, chatID, f, track.FileName, postProcessMarkup())
}

// discardStale removes the working directory named by a Downloading
// context, if the user has one.
func (h *DownloadingHandler) discardStale(turn *Turn) {
	if turn.State.State != domain.StateDownloading {
		return
	}
	stale, ok, err := domain.ContextOf[domain.DownloadingContext](turn.State)
	if err != nil {
		h.logger.Error("Failed to read downloading context",
			zap.Int64("user_id", turn.Event.UserID),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}
	h.cleanup(stale.DownloadID)
}

func (h *DownloadingHandler) cleanup(downloadID string) {
	if err := h.downloader.Cleanup(downloadID); err != nil {
		h.logger.Error("Couldn't delete working directory",
			zap.String("download_id", downloadID),
			zap.Error(err),
		)
	}
}

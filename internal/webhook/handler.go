package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"musicpipe/internal/backend"
	"musicpipe/internal/domain"

	"go.uber.org/zap"
)

const (
	sessionUpdateTimeout = 30 * time.Second
	maxBodyBytes         = 1 << 16

	msgSessionUpdated = "Your Yandex session was linked to MusicPipe."
)

// SessionUpdater forwards session updates to the backend
type SessionUpdater interface {
	UpdateSession(ctx context.Context, phrase, sessionID string) error
}

// PhraseLookup finds the user that owns a connection phrase
type PhraseLookup interface {
	GetByPhrase(ctx context.Context, phrase string) (*domain.UserState, error)
}

// Notifier tells a chat that its session changed
type Notifier interface {
	NotifyText(ctx context.Context, chatID int64, text string) error
}

// SessionUpdateRequest is the body of a session update webhook
type SessionUpdateRequest struct {
	Phrase    string `json:"phrase"`
	SessionID string `json:"sessionId"`
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// SessionUpdateHandler forwards a session update to the backend. The
// backend's status is propagated; transport failures become 502. When
// lookup and notifier are set, the owner of the phrase is told in chat.
func SessionUpdateHandler(
	logger *zap.Logger,
	updater SessionUpdater,
	lookup PhraseLookup,
	notifier Notifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionUpdateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			logger.Warn("Failed to decode session update", zap.Error(err))
			writeProblem(w, http.StatusBadRequest, "malformed request body")
			return
		}
		req.Phrase = strings.TrimSpace(req.Phrase)
		req.SessionID = strings.TrimSpace(req.SessionID)
		if req.Phrase == "" || req.SessionID == "" {
			writeProblem(w, http.StatusBadRequest, "phrase and sessionId are required")
			return
		}

		logger := logger.With(zap.String("phrase", req.Phrase))
		logger.Info("Sending Yandex session id")

		ctx, cancel := context.WithTimeout(r.Context(), sessionUpdateTimeout)
		defer cancel()

		if err := updater.UpdateSession(ctx, req.Phrase, req.SessionID); err != nil {
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) {
				logger.Error("Backend rejected session update",
					zap.Int("status", apiErr.StatusCode),
					zap.Error(err),
				)
				writeProblem(w, apiErr.StatusCode, apiErr.Body)
				return
			}
			logger.Error("Failed to send Yandex session id", zap.Error(err))
			writeProblem(w, http.StatusBadGateway, "backend is unavailable")
			return
		}

		notifyOwner(ctx, logger, lookup, notifier, req.Phrase)
		w.WriteHeader(http.StatusOK)
	}
}

func notifyOwner(ctx context.Context, logger *zap.Logger, lookup PhraseLookup, notifier Notifier, phrase string) {
	if lookup == nil || notifier == nil {
		return
	}
	owner, err := lookup.GetByPhrase(ctx, phrase)
	if err != nil {
		logger.Error("Failed to look up phrase owner", zap.Error(err))
		return
	}
	if owner == nil {
		logger.Warn("No user owns the phrase")
		return
	}
	if err := notifier.NotifyText(ctx, owner.TelegramID, msgSessionUpdated); err != nil {
		logger.Error("Failed to notify phrase owner",
			zap.Int64("user_id", owner.TelegramID),
			zap.Error(err),
		)
	}
}

// HealthHandler reports that the process is serving
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

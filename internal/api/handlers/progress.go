package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/pkg/logger"
)

const progressPushInterval = time.Second

// ProgressHandler exposes live batch progress
// ⭐ SSOT: 진행률 API 핸들러는 이 구조체에서만
type ProgressHandler struct {
	progress *batch.Progress
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(progress *batch.Progress, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		logger:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API serves an internal dashboard, not browsers on
			// other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetProgress returns a one-shot progress snapshot
// GET /api/progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.progress.Snapshot())
}

// StreamProgress pushes progress snapshots over a websocket until the
// client disconnects
// GET /ws/progress
func (h *ProgressHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.WithField("remote", r.RemoteAddr).Debug("Progress stream opened")

	// Reader goroutine: only there to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.progress.Snapshot()); err != nil {
				h.logger.WithError(err).Debug("Progress stream closed")
				return
			}
		}
	}
}

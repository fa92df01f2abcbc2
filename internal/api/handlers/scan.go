package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/checkpoint"
	"github.com/linhao/stockscan/internal/report"
	"github.com/linhao/stockscan/pkg/logger"
)

// ScanHandler serves scan run state from the checkpoint store
// ⭐ SSOT: 스캔 런 API 핸들러는 이 구조체에서만
type ScanHandler struct {
	store  *checkpoint.Store
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(store *checkpoint.Store, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		store:  store,
		logger: log,
	}
}

// ListRuns returns the known run IDs, newest first
// GET /api/runs
func (h *ScanHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// GetRun returns the raw checkpoint state of one run
// GET /api/runs/{id}
func (h *ScanHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	snap, ok, err := h.store.Load(runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetReport returns the summarized report of one run
// GET /api/runs/{id}/report
func (h *ScanHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	snap, ok, err := h.store.Load(runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, report.Build(batch.FromSnapshot(snap)))
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linhao/stockscan/internal/api/handlers"
	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/checkpoint"
	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/pkg/logger"
)

func newTestRouter(t *testing.T) (http.Handler, *checkpoint.Store, *batch.Progress) {
	t.Helper()
	log := logger.NewNop()

	store, err := checkpoint.NewStore(t.TempDir(), log)
	require.NoError(t, err)

	progress := batch.NewProgress()
	router := NewRouter(
		handlers.NewScanHandler(store, log),
		handlers.NewProgressHandler(progress, log),
		log,
	)
	return router, store, progress
}

func seedRun(t *testing.T, store *checkpoint.Store) *checkpoint.Snapshot {
	t.Helper()
	snap := &checkpoint.Snapshot{
		RunID:     "run_20260825_190000",
		StartedAt: time.Date(2026, 8, 25, 19, 0, 0, 0, time.UTC),
		Symbols:   []string{"600519", "000001"},
		Status: map[string]string{
			"600519": "done",
			"000001": "failed",
		},
		Verdicts: map[string][]strategy.Verdict{
			"600519": {{Symbol: "600519", Strategy: "breakout", Triggered: true}},
		},
		Failures: map[string]string{"000001": "3 attempts exhausted: timeout"},
	}
	require.NoError(t, store.Save(snap))
	return snap
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestListRuns(t *testing.T) {
	router, store, _ := newTestRouter(t)
	seedRun(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []string `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"run_20260825_190000"}, body.Runs)
}

func TestGetRun(t *testing.T) {
	router, store, _ := newTestRouter(t)
	snap := seedRun(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+snap.RunID, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got checkpoint.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, snap.RunID, got.RunID)
	assert.Equal(t, "done", got.Status["600519"])
}

func TestGetRun_NotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/run_nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport(t *testing.T) {
	router, store, _ := newTestRouter(t)
	snap := seedRun(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+snap.RunID+"/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var rep struct {
		RunID     string `json:"run_id"`
		Universe  int    `json:"universe"`
		Done      int    `json:"done"`
		Failed    int    `json:"failed"`
		Triggered int    `json:"triggered"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, snap.RunID, rep.RunID)
	assert.Equal(t, 2, rep.Universe)
	assert.Equal(t, 1, rep.Done)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Triggered)
}

func TestGetProgress(t *testing.T) {
	router, _, progress := newTestRouter(t)
	progress.Begin("run_x", 100, 40)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap batch.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run_x", snap.RunID)
	assert.Equal(t, 100, snap.Total)
	assert.Equal(t, 40, snap.Completed)
	assert.True(t, snap.Running)
}

func TestStreamProgress(t *testing.T) {
	router, _, progress := newTestRouter(t)
	progress.Begin("run_ws", 10, 2)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap batch.ProgressSnapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "run_ws", snap.RunID)
	assert.Equal(t, 2, snap.Completed)
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserbox/browserbox/internal/health"
	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/infrastructure/monitoring"
	"github.com/browserbox/browserbox/internal/results"
	"github.com/browserbox/browserbox/internal/supervisor"
)

const testKey = "test-key"

func newTestServer(t *testing.T, specs []health.ServiceSpec) (*Server, *results.Store) {
	t.Helper()
	t.Setenv("BROWSER_SERVICE_API_KEY", testKey)
	t.Setenv("STATE_DIR", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	logger := logging.NewNop()
	store := results.NewStore(t.TempDir())
	require.NoError(t, store.EnsureLayout())

	sup := supervisor.New(logger)
	agg := health.NewAggregator(specs, health.NewProber(), logger)
	srv := NewServer(cfg, sup, agg, store, logger, monitoring.NewMetrics())
	return srv, store
}

func get(srv *Server, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := get(srv, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "browserbox-orchestrator")
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("empty service table is healthy", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		w := get(srv, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var body struct {
			OK     bool   `json:"ok"`
			Report string `json:"report"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.OK)
		assert.Contains(t, body.Report, "healthy")
	})

	t.Run("critical failure returns 503", func(t *testing.T) {
		srv, _ := newTestServer(t, []health.ServiceSpec{
			{Name: "app-api", Port: 1, Tier: health.TierCritical, MaxRetries: 1},
		})
		w := get(srv, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := get(srv, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processes")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := get(srv, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orchestrator_uptime_seconds")
}

func TestTaskResultAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	path := "/tasks/1735689600000-ab12z/result"

	t.Run("missing key", func(t *testing.T) {
		w := get(srv, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "API Key header is missing")
	})

	t.Run("wrong key", func(t *testing.T) {
		w := get(srv, path, map[string]string{"X-API-Key": "wrong"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid API Key")
	})
}

func TestTaskResult(t *testing.T) {
	auth := map[string]string{"X-API-Key": testKey}

	t.Run("invalid id", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		w := get(srv, "/tasks/not-a-task-id/result", auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		w := get(srv, "/tasks/1735689600000-zzzzz/result", auth)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "No results found for session ID")
	})

	t.Run("full result with artifacts", func(t *testing.T) {
		srv, store := newTestServer(t, nil)
		taskID := "1735689600000-ab12z"

		require.NoError(t, store.WriteResult(taskID, results.Result{
			Text:            "done",
			Success:         true,
			DurationSeconds: 12.5,
			Steps: []results.Step{
				{Number: 1, Action: "navigate", Status: "done"},
			},
		}))
		dir, err := store.TaskDir(taskID)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, taskID+".gif"), []byte("GIF89a"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "step_1.jpg"), []byte("x"), 0o644))

		w := get(srv, "/tasks/"+taskID+"/result", auth)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Success   bool   `json:"success"`
			SessionID string `json:"session_id"`
			Result    struct {
				Text           string `json:"text"`
				StepsCompleted int    `json:"steps_completed"`
			} `json:"result"`
			Resources map[string]json.RawMessage `json:"resources"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, taskID, body.SessionID)
		assert.Equal(t, "done", body.Result.Text)
		assert.Equal(t, 1, body.Result.StepsCompleted)
		assert.Contains(t, body.Resources, "history_json")
		assert.Contains(t, body.Resources, "recording_gif")
		assert.Contains(t, body.Resources, "screenshots")
	})

	t.Run("artifact url is served by the files route", func(t *testing.T) {
		srv, store := newTestServer(t, nil)
		taskID := "1735689600000-ab12z"
		require.NoError(t, store.WriteResult(taskID, results.Result{Text: "done"}))

		w := get(srv, "/files/agent_history/"+taskID+"/"+taskID+".json", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "done")
	})
}

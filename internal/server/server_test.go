package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/splitrelay/internal/config"
	"github.com/aristath/splitrelay/internal/di"
	"github.com/aristath/splitrelay/internal/events"
	"github.com/aristath/splitrelay/internal/tasks"
)

func newTestServer(t *testing.T, defaultOwner string) (*Server, *di.Container) {
	t.Helper()
	cfg := &config.Config{
		DataDir:          t.TempDir(),
		Port:             8001,
		DefaultOwner:     defaultOwner,
		CORSOrigins:      []string{"*"},
		SessionRetention: time.Hour,
	}
	log := zerolog.New(nil).Level(zerolog.Disabled)
	container, _, err := di.Wire(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Coordinator.CancelAll("test finished")
		container.Close()
	})
	return New(Config{Log: log, Config: cfg, Container: container}), container
}

func do(s *Server, method, target, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := do(s, "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_SubmitCancelAndMetrics(t *testing.T) {
	s, container := newTestServer(t, "")

	w := do(s, "POST", "/api/tasks/kind/history_sync", "owner-1", `{"days":30}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var submitted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&submitted))

	task, err := container.TaskRegistry.GetTask(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", task.Owner)

	w = do(s, "GET", "/api/tasks/"+submitted.ID, "owner-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"Polling"`)

	assert.Equal(t, http.StatusNoContent, do(s, "DELETE", "/api/tasks/"+submitted.ID, "owner-1", "").Code)

	w = do(s, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `coordinator_tasks_submitted_total{kind="history_sync"} 1`)
	assert.Contains(t, w.Body.String(), `outcome="cancelled"`)
}

func TestServer_OwnerResolution(t *testing.T) {
	s, _ := newTestServer(t, "")
	assert.Equal(t, http.StatusUnauthorized, do(s, "POST", "/api/tasks/kind/history_sync", "", `{"days":7}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, "GET", "/api/lots/", "", "").Code)

	withDefault, _ := newTestServer(t, "household")
	w := do(withDefault, "POST", "/api/tasks/kind/history_sync", "", `{"days":7}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestServer_SystemEndpoints(t *testing.T) {
	s, _ := newTestServer(t, "")
	do(s, "POST", "/api/tasks/kind/compare", "owner-1", `{"codes":["005930"]}`)

	w := do(s, "GET", "/api/system/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 1, status.LiveSessions)

	w = do(s, "GET", "/api/system/database/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats DatabaseStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Len(t, stats.Databases, 2)
}

func TestEventsStream_FiltersByOwner(t *testing.T) {
	s, container := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events/stream?types=LOTS_RENUMBERED", nil)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, "owner-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := dataLines(resp.Body)
	assert.Contains(t, <-lines, `"connected"`)

	container.EventManager.Emit("lots", &events.LotsRenumberedData{Owner: "owner-2", Code: "000660"})
	container.EventManager.Emit("lots", &events.LotsRenumberedData{Owner: "owner-1", Code: "005930"})

	line := <-lines
	assert.Contains(t, line, `"LOTS_RENUMBERED"`)
	assert.Contains(t, line, `"005930"`)
	assert.NotContains(t, line, `"000660"`)
}

// dataLines yields the payload of every SSE data line read from r.
func dataLines(r io.Reader) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				out <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	return out
}

func TestOwnerMiddleware(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ""
		if owner, ok := tasks.OwnerFromContext(r.Context()); ok {
			got = owner
		}
	})

	tests := []struct {
		name, header, fallback, want string
	}{
		{"header wins", "owner-1", "household", "owner-1"},
		{"fallback", "", "household", "household"},
		{"trimmed", "  owner-2 ", "", "owner-2"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set(OwnerHeader, tt.header)
			}
			OwnerMiddleware(tt.fallback)(next).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

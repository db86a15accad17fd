package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/inferbench/bench-server/internal/app"
	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/types"
	"github.com/inferbench/bench-server/internal/utils/hashutil"
)

// testConfig points everything at a temp directory: the measurement script is
// a stub shell script printing fixed timings, the database a throwaway sqlite
// file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	home := t.TempDir()
	script := filepath.Join(home, "bench.sh")
	payload := `{"load_ms":[100,120],"first_infer_ms":[20,22],"subsequent_infer_ms":[[10,11],[12,13]],"runtime":"node v20.11.0"}`
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '"+payload+"'\n"), 0o755))

	return &config.Config{
		Host:        "127.0.0.1",
		Environment: "test",
		BenchHome:   home,
		ResultsDir:  filepath.Join(home, "results"),
		DisableAuth: true,
		Filesystem:  config.FilesystemLocal,
		Runner: config.RunnerConfig{
			NodeCommand: "/bin/sh",
			NodeScript:  script,
			WebScript:   script,
			JobTimeout:  30 * time.Second,
		},
		DB: &config.DBConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(home, "bench.db"),
		},
	}
}

// testHandler boots a full app against cfg and returns it with the routed
// engine.
func testHandler(t *testing.T, cfg *config.Config) (*app.App, http.Handler) {
	t.Helper()

	a, err := app.NewApp(cfg,
		app.WithMQ(),
		app.WithDBInitialization(),
		app.WithStore(),
		app.WithExecutor(),
		app.WithUploader(),
		app.WithQueue(),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	srv.SetupRoutes(a)

	return a, srv.ginEngine
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, body []byte) types.JobRecord {
	t.Helper()

	var resp struct {
		Data types.JobRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Data
}

func TestHealthz(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	w := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	w := doJSON(t, handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSubmitRejectsInvalidConfig(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	w := doJSON(t, handler, http.MethodPost, "/api/v1/benchmarks", map[string]any{
		"task":     "feature-extraction",
		"modelId":  "Xenova/all-MiniLM-L6-v2",
		"platform": "deno",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown platform")
}

func TestSubmitRejectsUnsupportedContentType(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/benchmarks", strings.NewReader("task=feature-extraction"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported content type")
}

func TestSubmitAcceptsMsgpack(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	payload, err := msgpack.Marshal(types.BenchConfig{
		Task:     "feature-extraction",
		ModelID:  "Xenova/all-MiniLM-L6-v2",
		Platform: types.PlatformNode,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/benchmarks", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/msgpack")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	job := decodeJob(t, w.Body.Bytes())
	assert.Equal(t, "Xenova/all-MiniLM-L6-v2", job.Config.ModelID)
}

func TestGetUnknownJob(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	w := doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks/"+uuid.NewString()+"/stream", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBenchmarkLifecycle(t *testing.T) {
	_, handler := testHandler(t, testConfig(t))

	w := doJSON(t, handler, http.MethodPost, "/api/v1/benchmarks", types.BenchConfig{
		Task:     "feature-extraction",
		ModelID:  "Xenova/all-MiniLM-L6-v2",
		Platform: types.PlatformNode,
		Repeats:  2,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	submitted := decodeJob(t, w.Body.Bytes())
	require.NotEmpty(t, submitted.ID)
	assert.Equal(t, types.JobStatusPending, submitted.Status)
	assert.Equal(t, 2, submitted.Config.Repeats)

	var job types.JobRecord
	require.Eventually(t, func() bool {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks/"+submitted.ID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Data types.JobRecord `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		job = resp.Data
		return job.Terminal()
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, types.JobStatusCompleted, job.Status, "job error: %s", job.Error)
	require.NotNil(t, job.Result)
	assert.Equal(t, "node v20.11.0", job.Result["runtime"])
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), submitted.ID)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"pending":0,"running":0,"completed":1,"failed":0,"total":1}}`, w.Body.String())

	// Streaming a finished job replays its terminal event and ends.
	w = doJSON(t, handler, http.MethodGet, "/api/v1/benchmarks/"+submitted.ID+"/stream", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "data: "), "body was %q", w.Body.String())
	assert.Contains(t, w.Body.String(), `"type":"completed"`)

	// The uploader indexes completed runs in the background.
	require.Eventually(t, func() bool {
		w := doJSON(t, handler, http.MethodGet, "/api/v1/results?model=Xenova/all-MiniLM-L6-v2", nil)
		if w.Code != http.StatusOK {
			return false
		}
		return strings.Contains(w.Body.String(), `"status":"completed"`)
	}, 10*time.Second, 50*time.Millisecond)

	w = doJSON(t, handler, http.MethodGet, "/api/v1/results?model=Xenova/all-MiniLM-L6-v2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identity":"node_warm_cpu_b1`)
	assert.Contains(t, w.Body.String(), `"task":"feature-extraction"`)
}

func TestAPIKeyAuthentication(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableAuth = false
	a, handler := testHandler(t, cfg)

	w := doJSON(t, handler, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("X-API-Key", "not-a-real-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	key := "bench_0123456789abcdef"
	_, err := a.APIKeyRepository.Create(a.Context(), models.NewAPIKey("ci", hashutil.Blake3Hash([]byte(key)), "bench...cdef"))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("X-API-Key", key)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.APIKeyRepository.RevokeAPIKeyWithHash(a.Context(), hashutil.Blake3Hash([]byte(key))))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("X-API-Key", key)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")

	// The health endpoint sits outside the authenticated group.
	w = doJSON(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

package dataset

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/types"
)

type capturedCommit struct {
	authorization string
	contentType   string
	path          string
	summary       string
	content       []byte
}

func decodeCommit(t *testing.T, r *http.Request) capturedCommit {
	t.Helper()

	commit := capturedCommit{
		authorization: r.Header.Get("Authorization"),
		contentType:   r.Header.Get("Content-Type"),
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		var op struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &op))

		switch op.Key {
		case "header":
			var header struct {
				Summary string `json:"summary"`
			}
			require.NoError(t, json.Unmarshal(op.Value, &header))
			commit.summary = header.Summary
		case "file":
			var file struct {
				Path     string `json:"path"`
				Content  string `json:"content"`
				Encoding string `json:"encoding"`
			}
			require.NoError(t, json.Unmarshal(op.Value, &file))
			require.Equal(t, "base64", file.Encoding)

			content, err := base64.StdEncoding.DecodeString(file.Content)
			require.NoError(t, err)
			commit.path = file.Path
			commit.content = content
		}
	}
	require.NoError(t, scanner.Err())

	return commit
}

func testClient(cfg config.DatasetConfig) *Client {
	client := NewClient(&cfg, zap.NewNop())
	client.retryInterval = time.Millisecond
	return client
}

func TestPushRecordCommitsFile(t *testing.T) {
	var commit capturedCommit
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/datasets/inferbench/results/commit/main", r.URL.Path)
		commit = decodeCommit(t, r)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(config.DatasetConfig{
		Repo:     "inferbench/results",
		Branch:   "main",
		Endpoint: server.URL,
		Token:    "hf_secret",
	})

	rec := types.ResultRecord{
		ID:       "node_warm_cpu_b1",
		Platform: types.PlatformNode,
		ModelID:  "Xenova/all-MiniLM-L6-v2",
		Task:     "feature-extraction",
		Status:   types.JobStatusCompleted,
	}
	path := "feature-extraction/Xenova/all-MiniLM-L6-v2/node_warm_cpu_b1.json"
	require.NoError(t, client.PushRecord(context.Background(), path, rec))

	assert.Equal(t, "Bearer hf_secret", commit.authorization)
	assert.Equal(t, "application/x-ndjson", commit.contentType)
	assert.Equal(t, path, commit.path)
	assert.Equal(t, "Update "+path, commit.summary)

	var pushed types.ResultRecord
	require.NoError(t, json.Unmarshal(commit.content, &pushed))
	assert.Equal(t, rec, pushed)
}

func TestPushFileSkipsUnchangedContent(t *testing.T) {
	var commits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(config.DatasetConfig{Repo: "r/r", Branch: "main", Endpoint: server.URL})
	ctx := context.Background()

	require.NoError(t, client.PushFile(ctx, "a.json", []byte(`{"v":1}`)))
	require.NoError(t, client.PushFile(ctx, "a.json", []byte(`{"v":1}`)))
	assert.Equal(t, int32(1), commits.Load(), "identical content must not recommit")

	require.NoError(t, client.PushFile(ctx, "a.json", []byte(`{"v":2}`)))
	assert.Equal(t, int32(2), commits.Load())

	// Same content under a different path is its own file.
	require.NoError(t, client.PushFile(ctx, "b.json", []byte(`{"v":2}`)))
	assert.Equal(t, int32(3), commits.Load())
}

func TestPushFileRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(config.DatasetConfig{Repo: "r/r", Branch: "main", Endpoint: server.URL})

	require.NoError(t, client.PushFile(context.Background(), "retry.json", []byte("{}")))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPushFileDoesNotRetryAuthFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(config.DatasetConfig{Repo: "r/r", Branch: "main", Endpoint: server.URL})

	err := client.PushFile(context.Background(), "denied.json", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
}

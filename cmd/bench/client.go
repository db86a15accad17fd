package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inferbench/bench-server/internal/types"
)

// benchClient is the thin HTTP client submit and sweep use to talk to a
// running server.
type benchClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func newBenchClient(base, apiKey string) *benchClient {
	return &benchClient{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *benchClient) Submit(ctx context.Context, cfg types.BenchConfig) (types.JobRecord, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return types.JobRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/benchmarks", bytes.NewReader(body))
	if err != nil {
		return types.JobRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, http.StatusAccepted)
}

func (c *benchClient) Get(ctx context.Context, id string) (types.JobRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/benchmarks/"+id, nil)
	if err != nil {
		return types.JobRecord{}, err
	}

	return c.do(req, http.StatusOK)
}

// Wait polls until the job reaches a terminal state.
func (c *benchClient) Wait(ctx context.Context, id string, interval time.Duration) (types.JobRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Get(ctx, id)
		if err != nil {
			return types.JobRecord{}, err
		}
		if job.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return types.JobRecord{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *benchClient) do(req *http.Request, wantStatus int) (types.JobRecord, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.JobRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.JobRecord{}, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Data types.JobRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.JobRecord{}, fmt.Errorf("undecodable server response: %w", err)
	}

	return envelope.Data, nil
}

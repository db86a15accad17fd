package dataset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/types"
	"github.com/inferbench/bench-server/internal/utils/hashutil"
)

// Client pushes result files into a HuggingFace dataset repo through the
// commit API, one file per commit. Contents already pushed in this process
// are skipped by hash.
type Client struct {
	httpClient    *http.Client
	cfg           *config.DatasetConfig
	logger        *zap.Logger
	retryInterval time.Duration

	mu     sync.Mutex
	pushed map[string]string
}

func NewClient(cfg *config.DatasetConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		cfg:           cfg,
		logger:        logger.Named("dataset"),
		retryInterval: 1 * time.Second,
		pushed:        make(map[string]string),
	}
}

// PushRecord writes one result record to path inside the dataset repo.
func (c *Client) PushRecord(ctx context.Context, path string, rec types.ResultRecord) error {
	content, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return c.PushFile(ctx, path, content)
}

func (c *Client) PushFile(ctx context.Context, path string, content []byte) error {
	hash := hashutil.Blake3Hash(content)

	c.mu.Lock()
	if c.pushed[path] == hash {
		c.mu.Unlock()
		c.logger.Debug("skipping unchanged file", zap.String("path", path))
		return nil
	}
	c.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 30 * time.Second

	err := backoff.Retry(func() error {
		return c.commit(ctx, path, content)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}

	c.mu.Lock()
	c.pushed[path] = hash
	c.mu.Unlock()

	c.logger.Info("pushed file to dataset",
		zap.String("repo", c.cfg.Repo),
		zap.String("path", path),
	)

	return nil
}

// commitOperation is one NDJSON line of the commit payload.
type commitOperation struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *Client) commit(ctx context.Context, path string, content []byte) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)

	if err := enc.Encode(commitOperation{
		Key:   "header",
		Value: commitHeader{Summary: "Update " + path},
	}); err != nil {
		return backoff.Permanent(err)
	}
	if err := enc.Encode(commitOperation{
		Key: "file",
		Value: commitFile{
			Path:     path,
			Content:  base64.StdEncoding.EncodeToString(content),
			Encoding: "base64",
		},
	}); err != nil {
		return backoff.Permanent(err)
	}

	url := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.cfg.Endpoint, c.cfg.Repo, c.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/x-ndjson")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	commitErr := fmt.Errorf("commit failed with status %d: %s", resp.StatusCode, msg)

	// Client errors will not heal on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(commitErr)
	}

	return commitErr
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/types"
)

// LocalStore writes result records as pretty-printed JSON files under the
// results directory, mirroring the task/model/identity layout consumers of
// the dataset expect.
type LocalStore struct {
	resultsDir string
}

func NewLocalStore(cfg *config.Config) (*LocalStore, error) {
	if cfg.ResultsDir == "" {
		return nil, fmt.Errorf("results directory is not set")
	}

	return &LocalStore{resultsDir: cfg.ResultsDir}, nil
}

func (s *LocalStore) Save(_ context.Context, rec types.ResultRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	dest := filepath.Join(s.resultsDir, filepath.FromSlash(recordPath(rec).FullPath))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}

	if err := os.WriteFile(dest, data, os.FileMode(0644)); err != nil {
		return "", err
	}

	return dest, nil
}

// Get reads one record by its store-relative path, with or without the
// .json extension.
func (s *LocalStore) Get(relPath string) (*types.ResultRecord, error) {
	if !strings.HasSuffix(relPath, ".json") {
		relPath += ".json"
	}

	data, err := os.ReadFile(filepath.Join(s.resultsDir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, err
	}

	var rec types.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", relPath, err)
	}

	return &rec, nil
}

// List walks the results directory and returns every readable record.
// Files that fail to parse are skipped.
func (s *LocalStore) List() ([]types.ResultRecord, error) {
	var records []types.ResultRecord

	err := filepath.WalkDir(s.resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var rec types.ResultRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil
		}

		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

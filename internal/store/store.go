package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/identity"
	"github.com/inferbench/bench-server/internal/types"
)

// Store persists one result record per identity path. Saving the same
// identity again overwrites the previous record; history lives in the db
// index, not here.
type Store interface {
	Save(ctx context.Context, rec types.ResultRecord) (string, error)
}

func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	filesystem := strings.ToLower(cfg.Filesystem)

	switch filesystem {
	case config.FilesystemLocal, "":
		return NewLocalStore(cfg)
	case config.FilesystemS3:
		return NewS3Store(cfg, logger)
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.Filesystem)
}

// recordPath derives the relative store path for a record, environment
// tokens included whenever the record carries machine info.
func recordPath(rec types.ResultRecord) identity.Path {
	var opts []identity.Option
	if rec.Environment != nil {
		opts = append(opts, identity.WithEnvironment(*rec.Environment))
	}

	return identity.DerivePath(rec.Config(), opts...)
}

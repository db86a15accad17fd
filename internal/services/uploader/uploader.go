package uploader

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/benchmark"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/db/repository"
	"github.com/inferbench/bench-server/internal/identity"
	"github.com/inferbench/bench-server/internal/store"
	"github.com/inferbench/bench-server/internal/types"
	"github.com/inferbench/bench-server/internal/utils/jsonutil"
)

// RecordPusher mirrors the dataset client surface the uploader needs.
type RecordPusher interface {
	PushRecord(ctx context.Context, path string, rec types.ResultRecord) error
}

// Uploader persists terminal jobs off the queue's dispatch goroutine:
// completed runs go to the result store, the db index, and optionally a
// dataset repo; failed runs are indexed in the db only.
type Uploader struct {
	wp      *workerpool.WorkerPool
	store   store.Store
	results repository.IResultRepository
	dataset RecordPusher
	env     *types.EnvironmentInfo
	logger  *zap.Logger
	ctx     context.Context
}

func New(
	ctx context.Context,
	st store.Store,
	results repository.IResultRepository,
	dataset RecordPusher,
	env *types.EnvironmentInfo,
	logger *zap.Logger,
	maxWorkers int,
) *Uploader {
	return &Uploader{
		wp:      workerpool.New(maxWorkers),
		store:   st,
		results: results,
		dataset: dataset,
		env:     env,
		logger:  logger.Named("uploader"),
		ctx:     ctx,
	}
}

// Stop waits for queued persists to finish.
func (u *Uploader) Stop() {
	u.wp.StopWait()
}

// HandleEvent is registered as a queue subscriber. It only enqueues work.
func (u *Uploader) HandleEvent(event types.JobEvent) {
	switch event.Type {
	case types.JobCompleted:
		u.wp.Submit(func() { u.persistCompleted(event.Job) })
	case types.JobFailed:
		u.wp.Submit(func() { u.persistFailed(event.Job) })
	}
}

func (u *Uploader) persistCompleted(job types.JobRecord) {
	var rec types.ResultRecord
	if err := jsonutil.MapToStruct(job.Result, &rec); err != nil {
		u.logger.Error("failed to decode job result",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	if u.store != nil {
		location, err := u.store.Save(u.ctx, rec)
		if err != nil {
			u.logger.Error("failed to save result",
				zap.String("job_id", job.ID), zap.Error(err))
		} else {
			u.logger.Info("saved result",
				zap.String("result_id", rec.ID), zap.String("location", location))
		}
	}

	relPath := u.recordPath(rec)
	u.index(job.ID, rec, relPath)

	if u.dataset != nil {
		if err := u.dataset.PushRecord(u.ctx, relPath, rec); err != nil {
			u.logger.Error("failed to push result to dataset",
				zap.String("result_id", rec.ID), zap.Error(err))
		}
	}
}

func (u *Uploader) persistFailed(job types.JobRecord) {
	rec := benchmark.NewRecord(job.Config, u.env)
	rec.Status = types.JobStatusFailed
	rec.Error = job.Error
	if job.StartedAt != nil {
		rec.StartedAt = types.UnixMillis(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		rec.CompletedAt = types.UnixMillis(*job.CompletedAt)
	}

	u.index(job.ID, rec, u.recordPath(rec))
}

func (u *Uploader) index(jobID string, rec types.ResultRecord, relPath string) {
	if u.results == nil {
		return
	}

	row, err := models.NewResult(rec, relPath)
	if err != nil {
		u.logger.Error("failed to build result row",
			zap.String("job_id", jobID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(u.ctx, 10*time.Second)
	defer cancel()

	if _, err := u.results.Create(ctx, row); err != nil {
		u.logger.Error("failed to index result",
			zap.String("job_id", jobID), zap.Error(err))
	}
}

func (u *Uploader) recordPath(rec types.ResultRecord) string {
	var opts []identity.Option
	if rec.Environment != nil {
		opts = append(opts, identity.WithEnvironment(*rec.Environment))
	}

	return identity.DerivePath(rec.Config(), opts...).FullPath
}

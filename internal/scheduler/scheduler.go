package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/types"
)

var ErrClosed = errors.New("queue is closed")

// Executor runs one job to completion and returns its result payload. The
// queue stores the payload opaquely.
type Executor interface {
	Execute(ctx context.Context, job types.JobDescription) (map[string]any, error)
}

type ExecutorFunc func(ctx context.Context, job types.JobDescription) (map[string]any, error)

func (f ExecutorFunc) Execute(ctx context.Context, job types.JobDescription) (map[string]any, error) {
	return f(ctx, job)
}

// Queue is a strictly sequential benchmark queue: FIFO among pending jobs,
// at most one running at any instant. A dispatcher goroutine woken by
// enqueues drains pending jobs one at a time; completions feed the next start
// without recursion.
type Queue struct {
	logger   *zap.Logger
	executor Executor

	mu      sync.Mutex
	order   []*types.JobRecord
	byID    map[string]*types.JobRecord
	running bool
	closed  bool
	subs    []func(types.JobEvent)

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Status is a snapshot of queue depth by state.
type Status struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

func NewQueue(executor Executor, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger:   logger.Named("queue"),
		executor: executor,
		byID:     make(map[string]*types.JobRecord),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go q.dispatch()
	return q
}

// Subscribe registers an observer for job lifecycle events. Observers
// registered before an emission receive every later event, in emission
// order; callbacks run synchronously and must not block for long.
func (q *Queue) Subscribe(fn func(types.JobEvent)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, fn)
}

// Enqueue appends a pending job and returns a snapshot of its record. It
// never blocks on execution.
func (q *Queue) Enqueue(cfg types.BenchConfig) (types.JobRecord, error) {
	desc := types.JobDescription{
		ID:          uuid.NewString(),
		Config:      cfg.Normalized(),
		SubmittedAt: time.Now(),
	}

	rec := &types.JobRecord{
		JobDescription: desc,
		Status:         types.JobStatusPending,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return types.JobRecord{}, ErrClosed
	}
	q.order = append(q.order, rec)
	q.byID[desc.ID] = rec
	snapshot := *rec
	q.mu.Unlock()

	q.logger.Info("job added",
		zap.String("id", desc.ID),
		zap.String("model", cfg.ModelID),
		zap.String("task", cfg.Task),
	)

	q.emit(types.JobAdded, snapshot)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return snapshot, nil
}

// Get returns a snapshot of one record.
func (q *Queue) Get(id string) (types.JobRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.byID[id]
	if !ok {
		return types.JobRecord{}, false
	}
	return *rec, true
}

// List returns snapshots of every record in enqueue order.
func (q *Queue) List() []types.JobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]types.JobRecord, len(q.order))
	for i, rec := range q.order {
		out[i] = *rec
	}
	return out
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Status
	for _, rec := range q.order {
		switch rec.Status {
		case types.JobStatusPending:
			s.Pending++
		case types.JobStatusRunning:
			s.Running++
		case types.JobStatusCompleted:
			s.Completed++
		case types.JobStatusFailed:
			s.Failed++
		}
	}
	s.Total = len(q.order)
	return s
}

// Close stops the dispatcher and cancels the running job, if any. Safe to
// call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done
}

func (q *Queue) dispatch() {
	defer close(q.done)

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}

		for {
			rec := q.startNext()
			if rec == nil {
				break
			}

			q.execute(rec)

			if q.ctx.Err() != nil {
				return
			}
		}
	}
}

// startNext flips the oldest pending record to running. Returns nil when the
// queue is empty or a job is already in flight.
func (q *Queue) startNext() *types.JobRecord {
	q.mu.Lock()

	if q.running {
		q.mu.Unlock()
		return nil
	}

	var next *types.JobRecord
	for _, rec := range q.order {
		if rec.Status == types.JobStatusPending {
			next = rec
			break
		}
	}
	if next == nil {
		q.mu.Unlock()
		return nil
	}

	now := time.Now()
	next.Status = types.JobStatusRunning
	next.StartedAt = &now
	q.running = true
	snapshot := *next
	q.mu.Unlock()

	q.logger.Info("job started", zap.String("id", next.ID))
	q.emit(types.JobStarted, snapshot)

	return next
}

func (q *Queue) execute(rec *types.JobRecord) {
	result, err := q.executor.Execute(q.ctx, rec.JobDescription)

	q.mu.Lock()
	now := time.Now()
	rec.CompletedAt = &now
	q.running = false

	var event types.JobEventType
	if err != nil {
		rec.Status = types.JobStatusFailed
		rec.Error = errorMessage(err)
		event = types.JobFailed
	} else {
		rec.Status = types.JobStatusCompleted
		rec.Result = result
		event = types.JobCompleted
	}
	snapshot := *rec
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("job failed",
			zap.String("id", rec.ID),
			zap.Error(err),
			zap.Duration("duration", now.Sub(*rec.StartedAt)),
		)
	} else {
		q.logger.Info("job completed",
			zap.String("id", rec.ID),
			zap.Duration("duration", now.Sub(*rec.StartedAt)),
		)
	}

	q.emit(event, snapshot)
}

func (q *Queue) emit(event types.JobEventType, rec types.JobRecord) {
	q.mu.Lock()
	subs := make([]func(types.JobEvent), len(q.subs))
	copy(subs, q.subs)
	q.mu.Unlock()

	for _, fn := range subs {
		fn(types.JobEvent{Type: event, Job: rec})
	}
}

// errorMessage renders an executor error for the record, appending captured
// stream excerpts when the error carries them.
func errorMessage(err error) string {
	msg := err.Error()

	var d interface{ Diagnostic() string }
	if errors.As(err, &d) {
		if diag := d.Diagnostic(); diag != "" {
			msg += "\n" + diag
		}
	}
	return msg
}

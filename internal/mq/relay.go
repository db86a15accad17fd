package mq

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/types"
)

// Relay republishes queue events onto the message queue: every event goes to
// the shared jobs topic, and to a per-job topic that is closed once the job
// reaches a terminal state. Stream consumers subscribe to the per-job topic.
type Relay struct {
	mq     MQ
	logger *zap.Logger
	ctx    context.Context
}

func NewRelay(ctx context.Context, m MQ, logger *zap.Logger) *Relay {
	return &Relay{
		mq:     m,
		logger: logger.Named("relay"),
		ctx:    ctx,
	}
}

// HandleEvent is registered as a queue subscriber. Publish failures are
// logged and dropped; the queue itself never depends on the relay.
func (r *Relay) HandleEvent(event types.JobEvent) {
	data, err := msgpack.Marshal(event)
	if err != nil {
		r.logger.Error("failed to encode job event", zap.Error(err))
		return
	}

	r.publish(config.DefaultJobsTopic, data)

	jobTopic := config.DefaultJobsPrefix + event.Job.ID
	r.publish(jobTopic, data)

	if event.Job.Terminal() {
		if err := r.mq.CloseTopic(jobTopic); err != nil && !errors.Is(err, ErrTopicNotExists) {
			r.logger.Warn("failed to close job topic",
				zap.String("topic", jobTopic), zap.Error(err))
		}
	}
}

func (r *Relay) publish(topic string, data []byte) {
	err := r.mq.Publish(r.ctx, topic, data)
	if err == nil {
		return
	}

	// A full topic just means nobody is draining it right now.
	if errors.Is(err, ErrQueueFull) {
		r.logger.Debug("dropping job event", zap.String("topic", topic))
		return
	}

	r.logger.Warn("failed to publish job event",
		zap.String("topic", topic), zap.Error(err))
}

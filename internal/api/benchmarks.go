package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/app"
	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/mq"
	"github.com/inferbench/bench-server/internal/scheduler"
	"github.com/inferbench/bench-server/internal/types"
)

func SubmitBenchmarkHandler(c *gin.Context) {
	var cfg types.BenchConfig
	contentType := c.ContentType()
	if contentType == "" {
		contentType = "application/json" // Default to JSON
	}

	switch contentType {
	case "application/msgpack":
		if err := c.ShouldBindWith(&cfg, binding.MsgPack); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse msgpack request body"})
			return
		}
	case "application/json":
		if err := c.ShouldBindWith(&cfg, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse json request body"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "unsupported content type: " + contentType})
		return
	}

	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	app := c.MustGet("app").(*app.App)
	job, err := app.Queue().Enqueue(cfg)
	if err != nil {
		if errors.Is(err, scheduler.ErrClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "queue is shutting down"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func GetJobHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid job id"})
		return
	}

	app := c.MustGet("app").(*app.App)
	job, ok := app.Queue().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

func ListJobsHandler(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	c.JSON(http.StatusOK, gin.H{"data": app.Queue().List()})
}

func QueueStatusHandler(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	c.JSON(http.StatusOK, gin.H{"data": app.Queue().Status()})
}

// StreamJobHandler replays one job's lifecycle as server-sent events. Events
// arrive on the job's own topic; the stream ends when the job reaches a
// terminal state or the client goes away.
func StreamJobHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid job id"})
		return
	}

	app := c.MustGet("app").(*app.App)
	job, ok := app.Queue().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "job not found"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// A job that already finished has no topic left to consume. Emit its
	// terminal event directly.
	if job.Terminal() {
		writeEvent(c, types.JobEvent{Type: eventTypeFor(job.Status), Job: job})
		return
	}

	ctx := c.Request.Context()
	topic := config.DefaultJobsPrefix + id

	for {
		message, err := app.MQ().Receive(ctx, topic)
		if err != nil {
			if errors.Is(err, mq.ErrTopicClosed) || errors.Is(err, mq.ErrQueueClosed) {
				return
			}
			if ctx.Err() != nil {
				return
			}

			app.Logger.Warn("receive failed on job stream", zap.String("id", id), zap.Error(err))
			continue
		}

		data, err := app.MQ().GetMessageData(message)
		if err != nil {
			continue
		}

		var event types.JobEvent
		if err := msgpack.Unmarshal(data, &event); err != nil {
			app.Logger.Warn("undecodable job event on stream", zap.String("id", id), zap.Error(err))
			continue
		}

		writeEvent(c, event)
		if event.Job.Terminal() {
			return
		}
	}
}

func writeEvent(c *gin.Context, event types.JobEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return
	}
	c.Writer.Flush()
}

func eventTypeFor(status types.JobStatus) types.JobEventType {
	switch status {
	case types.JobStatusFailed:
		return types.JobFailed
	default:
		return types.JobCompleted
	}
}

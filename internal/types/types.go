package types

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

type Platform string

const (
	PlatformNode Platform = "node"
	PlatformWeb  Platform = "web"
)

type Mode string

const (
	ModeWarm Mode = "warm"
	ModeCold Mode = "cold"
)

type Device string

const (
	DeviceCPU    Device = "cpu"
	DeviceCUDA   Device = "cuda"
	DeviceWASM   Device = "wasm"
	DeviceWebGPU Device = "webgpu"
)

type Browser string

const (
	BrowserChromium Browser = "chromium"
	BrowserChrome   Browser = "chrome"
	BrowserFirefox  Browser = "firefox"
	BrowserWebKit   Browser = "webkit"
	BrowserSafari   Browser = "safari"
)

// Field names mirror what the leaderboard reads from persisted records.
type BenchConfig struct {
	Task      string   `json:"task" msgpack:"task"`
	ModelID   string   `json:"modelId" msgpack:"modelId"`
	Platform  Platform `json:"platform" msgpack:"platform"`
	Mode      Mode     `json:"mode" msgpack:"mode"`
	Repeats   int      `json:"repeats" msgpack:"repeats"`
	BatchSize int      `json:"batchSize" msgpack:"batchSize"`
	DType     string   `json:"dtype,omitempty" msgpack:"dtype,omitempty"`
	Device    Device   `json:"device,omitempty" msgpack:"device,omitempty"`
	Browser   Browser  `json:"browser,omitempty" msgpack:"browser,omitempty"`
	Headed    bool     `json:"headed,omitempty" msgpack:"headed,omitempty"`
}

// Normalized returns a copy with defaults filled in. The queue and the
// identity codec always see normalized configs.
func (c BenchConfig) Normalized() BenchConfig {
	out := c
	if out.Mode == "" {
		out.Mode = ModeWarm
	}
	if out.Repeats <= 0 {
		out.Repeats = 1
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 1
	}
	if out.Device == "" {
		out.Device = DefaultDevice(out.Platform)
	}
	return out
}

// DefaultDevice is the per-platform device assumed when none is given.
func DefaultDevice(platform Platform) Device {
	if platform == PlatformWeb {
		return DeviceWASM
	}
	return DeviceCPU
}

// Validate is the submission-boundary check. The queue itself accepts any
// description it is handed.
func (c BenchConfig) Validate() error {
	if c.Task == "" {
		return fmt.Errorf("%w: task is required", ErrInvalidInput)
	}
	if c.ModelID == "" {
		return fmt.Errorf("%w: modelId is required", ErrInvalidInput)
	}
	switch c.Platform {
	case PlatformNode, PlatformWeb:
	default:
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, c.Platform)
	}
	switch c.Mode {
	case "", ModeWarm, ModeCold:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, c.Mode)
	}
	switch c.Device {
	case "", DeviceCPU, DeviceCUDA, DeviceWASM, DeviceWebGPU:
	default:
		return fmt.Errorf("%w: unknown device %q", ErrInvalidInput, c.Device)
	}
	switch c.Browser {
	case "", BrowserChromium, BrowserChrome, BrowserFirefox, BrowserWebKit, BrowserSafari:
	default:
		return fmt.Errorf("%w: unknown browser %q", ErrInvalidInput, c.Browser)
	}
	if c.Repeats < 0 {
		return fmt.Errorf("%w: repeats must not be negative", ErrInvalidInput)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batchSize must not be negative", ErrInvalidInput)
	}
	return nil
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobDescription is the immutable submission: config plus identity and
// submission time. Never mutated after creation.
type JobDescription struct {
	ID          string      `json:"id" msgpack:"id"`
	Config      BenchConfig `json:"config" msgpack:"config"`
	SubmittedAt time.Time   `json:"submittedAt" msgpack:"submittedAt"`
}

// JobRecord is the queue's view of one job. Once the status is terminal the
// record is read-only; consumers receive copies.
type JobRecord struct {
	JobDescription

	Status      JobStatus      `json:"status" msgpack:"status"`
	Result      map[string]any `json:"result,omitempty" msgpack:"result,omitempty"`
	Error       string         `json:"error,omitempty" msgpack:"error,omitempty"`
	StartedAt   *time.Time     `json:"startedAt,omitempty" msgpack:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" msgpack:"completedAt,omitempty"`
}

func (r *JobRecord) Terminal() bool {
	return r.Status == JobStatusCompleted || r.Status == JobStatusFailed
}

type JobEventType string

const (
	JobAdded     JobEventType = "added"
	JobStarted   JobEventType = "started"
	JobCompleted JobEventType = "completed"
	JobFailed    JobEventType = "failed"
)

// JobEvent carries a snapshot of the record as it was when the transition
// happened.
type JobEvent struct {
	Type JobEventType `json:"type" msgpack:"type"`
	Job  JobRecord    `json:"job" msgpack:"job"`
}

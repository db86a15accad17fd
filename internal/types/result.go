package types

import "time"

// MeasurementSample is one repetition's raw timings as reported by the
// measurement process.
type MeasurementSample struct {
	LoadMS            float64   `json:"load_ms"`
	FirstInferMS      float64   `json:"first_infer_ms"`
	SubsequentInferMS []float64 `json:"subsequent_infer_ms"`
}

// MetricSummary holds percentiles plus the raw samples in collection order.
type MetricSummary struct {
	P50 float64   `json:"p50" msgpack:"p50"`
	P90 float64   `json:"p90" msgpack:"p90"`
	Raw []float64 `json:"raw" msgpack:"raw"`
}

type Metrics struct {
	LoadMS            MetricSummary `json:"load_ms" msgpack:"load_ms"`
	FirstInferMS      MetricSummary `json:"first_infer_ms" msgpack:"first_infer_ms"`
	SubsequentInferMS MetricSummary `json:"subsequent_infer_ms" msgpack:"subsequent_infer_ms"`
}

type MemoryInfo struct {
	// DeviceMemory is total memory in GB.
	DeviceMemory float64 `json:"deviceMemory" msgpack:"deviceMemory"`
}

// EnvironmentInfo describes the machine a benchmark ran on. Probed once at
// startup and embedded into every persisted record.
type EnvironmentInfo struct {
	CPU       string     `json:"cpu,omitempty" msgpack:"cpu,omitempty"`
	CPUCores  int        `json:"cpuCores" msgpack:"cpuCores"`
	Memory    MemoryInfo `json:"memory" msgpack:"memory"`
	Arch      string     `json:"arch,omitempty" msgpack:"arch,omitempty"`
	GPUVendor string     `json:"gpuVendor,omitempty" msgpack:"gpuVendor,omitempty"`
}

// ResultRecord is the flat object written to the results store, one file per
// identity path. Timestamps are unix milliseconds.
type ResultRecord struct {
	ID          string           `json:"id" msgpack:"id"`
	Platform    Platform         `json:"platform" msgpack:"platform"`
	ModelID     string           `json:"modelId" msgpack:"modelId"`
	Task        string           `json:"task" msgpack:"task"`
	Mode        Mode             `json:"mode" msgpack:"mode"`
	Repeats     int              `json:"repeats" msgpack:"repeats"`
	BatchSize   int              `json:"batchSize" msgpack:"batchSize"`
	Device      Device           `json:"device" msgpack:"device"`
	Browser     Browser          `json:"browser,omitempty" msgpack:"browser,omitempty"`
	DType       string           `json:"dtype,omitempty" msgpack:"dtype,omitempty"`
	Headed      bool             `json:"headed,omitempty" msgpack:"headed,omitempty"`
	Status      JobStatus        `json:"status" msgpack:"status"`
	Timestamp   int64            `json:"timestamp" msgpack:"timestamp"`
	Runtime     string           `json:"runtime,omitempty" msgpack:"runtime,omitempty"`
	Metrics     *Metrics         `json:"metrics,omitempty" msgpack:"metrics,omitempty"`
	Environment *EnvironmentInfo `json:"environment,omitempty" msgpack:"environment,omitempty"`
	StartedAt   int64            `json:"startedAt,omitempty" msgpack:"startedAt,omitempty"`
	CompletedAt int64            `json:"completedAt,omitempty" msgpack:"completedAt,omitempty"`
	Error       string           `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Config reconstructs the benchmark configuration echoed into the record.
func (r ResultRecord) Config() BenchConfig {
	return BenchConfig{
		Task:      r.Task,
		ModelID:   r.ModelID,
		Platform:  r.Platform,
		Mode:      r.Mode,
		Repeats:   r.Repeats,
		BatchSize: r.BatchSize,
		DType:     r.DType,
		Device:    r.Device,
		Browser:   r.Browser,
		Headed:    r.Headed,
	}
}

func UnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

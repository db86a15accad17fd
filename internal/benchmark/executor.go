package benchmark

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/envinfo"
	"github.com/inferbench/bench-server/internal/identity"
	"github.com/inferbench/bench-server/internal/runner"
	"github.com/inferbench/bench-server/internal/stats"
	"github.com/inferbench/bench-server/internal/types"
	"github.com/inferbench/bench-server/internal/utils/jsonutil"
)

// processResult is the marked object the measurement scripts print on stdout:
// parallel arrays, one entry per repeat.
type processResult struct {
	LoadMS            []float64   `json:"load_ms"`
	FirstInferMS      []float64   `json:"first_infer_ms"`
	SubsequentInferMS [][]float64 `json:"subsequent_infer_ms"`
	Runtime           string      `json:"runtime"`
}

// Executor turns queued benchmark jobs into measurement subprocess runs and
// aggregates their raw timings into a persisted result record.
type Executor struct {
	logger  *zap.Logger
	runner  *runner.Runner
	cfg     config.RunnerConfig
	hfToken string
	env     types.EnvironmentInfo
}

func NewExecutor(cfg *config.Config, logger *zap.Logger) *Executor {
	env := envinfo.Probe()
	if cfg.GPUVendor != "" {
		env.GPUVendor = cfg.GPUVendor
	}

	return &Executor{
		logger:  logger.Named("benchmark"),
		runner:  runner.New(logger),
		cfg:     cfg.Runner,
		hfToken: cfg.HFToken,
		env:     env,
	}
}

// Environment reports the probed machine info embedded into records.
func (e *Executor) Environment() types.EnvironmentInfo {
	return e.env
}

func (e *Executor) Execute(ctx context.Context, job types.JobDescription) (map[string]any, error) {
	cfg := job.Config.Normalized()
	startedAt := time.Now()

	e.logger.Info("running benchmark",
		zap.String("job_id", job.ID),
		zap.String("model", cfg.ModelID),
		zap.String("task", cfg.Task),
		zap.String("platform", string(cfg.Platform)),
	)

	out, err := e.runner.Run(ctx, e.spec(cfg))
	if err != nil {
		return nil, err
	}

	var proc processResult
	if err := jsonutil.MapToStruct(out.Result, &proc); err != nil {
		return nil, fmt.Errorf("failed to decode measurement output: %w", err)
	}

	samples, err := proc.samples()
	if err != nil {
		return nil, err
	}

	metrics, err := stats.Aggregate(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate samples: %w", err)
	}

	rec := NewRecord(cfg, &e.env)
	rec.Status = types.JobStatusCompleted
	rec.Runtime = proc.Runtime
	rec.Metrics = metrics
	rec.StartedAt = types.UnixMillis(startedAt)
	rec.CompletedAt = types.UnixMillis(time.Now())

	e.logger.Info("benchmark completed",
		zap.String("job_id", job.ID),
		zap.String("result_id", rec.ID),
		zap.Float64("load_p50_ms", metrics.LoadMS.P50),
		zap.Duration("duration", time.Since(startedAt)),
	)

	return jsonutil.StructToMap(rec)
}

// spec builds the subprocess invocation. Both platforms launch through the
// node binary; the web script drives a browser itself.
func (e *Executor) spec(cfg types.BenchConfig) runner.Spec {
	script := e.cfg.NodeScript
	if cfg.Platform == types.PlatformWeb {
		script = e.cfg.WebScript
	}

	args := []string{
		script,
		"--task", cfg.Task,
		"--model", cfg.ModelID,
		"--mode", string(cfg.Mode),
		"--device", string(cfg.Device),
		"--batch-size", strconv.Itoa(cfg.BatchSize),
		"--repeats", strconv.Itoa(cfg.Repeats),
	}
	if cfg.DType != "" {
		args = append(args, "--dtype", cfg.DType)
	}
	if cfg.Platform == types.PlatformWeb {
		if cfg.Browser != "" {
			args = append(args, "--browser", string(cfg.Browser))
		}
		if cfg.Headed {
			args = append(args, "--headed")
		}
	}

	var env []string
	if e.hfToken != "" {
		env = append(env, "HF_TOKEN="+e.hfToken)
	}

	return runner.Spec{
		Command: e.cfg.NodeCommand,
		Args:    args,
		Dir:     e.cfg.WorkDir,
		Env:     env,
		Timeout: e.cfg.JobTimeout,
	}
}

// samples zips the parallel arrays into per-repeat samples. The arrays must
// agree on length; a script bug here should fail the job, not skew stats.
func (p *processResult) samples() ([]types.MeasurementSample, error) {
	n := len(p.LoadMS)
	if len(p.FirstInferMS) != n || len(p.SubsequentInferMS) != n {
		return nil, fmt.Errorf("sample arrays disagree: load=%d first=%d subsequent=%d",
			n, len(p.FirstInferMS), len(p.SubsequentInferMS))
	}

	samples := make([]types.MeasurementSample, n)
	for i := 0; i < n; i++ {
		samples[i] = types.MeasurementSample{
			LoadMS:            p.LoadMS[i],
			FirstInferMS:      p.FirstInferMS[i],
			SubsequentInferMS: p.SubsequentInferMS[i],
		}
	}

	return samples, nil
}

// NewRecord builds the base result record for a config: identity, config
// echo, and submission timestamp. Environment tokens join the identity only
// when env is non-nil.
func NewRecord(cfg types.BenchConfig, env *types.EnvironmentInfo) types.ResultRecord {
	cfg = cfg.Normalized()

	var opts []identity.Option
	if env != nil {
		opts = append(opts, identity.WithEnvironment(*env))
	}
	path := identity.DerivePath(cfg, opts...)

	return types.ResultRecord{
		ID:          path.Filename,
		Platform:    cfg.Platform,
		ModelID:     cfg.ModelID,
		Task:        cfg.Task,
		Mode:        cfg.Mode,
		Repeats:     cfg.Repeats,
		BatchSize:   cfg.BatchSize,
		Device:      cfg.Device,
		Browser:     cfg.Browser,
		DType:       cfg.DType,
		Headed:      cfg.Headed,
		Timestamp:   types.UnixMillis(time.Now()),
		Environment: env,
	}
}

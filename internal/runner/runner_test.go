package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRunner() *Runner {
	return &Runner{logger: zap.NewNop(), grace: 100 * time.Millisecond}
}

func shell(script string) Spec {
	return Spec{Command: "sh", Args: []string{"-c", script}}
}

func TestRunExtractsResult(t *testing.T) {
	spec := shell(`echo "loading model"; echo '{"load_ms": [120.5], "first_infer_ms": [30.0], "subsequent_infer_ms": [[10.0]]}'`)

	out, err := testRunner().Run(context.Background(), spec)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Contains(t, out.Result, "load_ms")
	assert.Contains(t, string(out.Stdout), "loading model")
}

func TestRunCapturesBothStreams(t *testing.T) {
	spec := shell(`echo to-stdout; echo to-stderr >&2; echo '{"load_ms": [1.0]}'`)

	out, err := testRunner().Run(context.Background(), spec)
	require.NoError(t, err)

	assert.Contains(t, string(out.Stdout), "to-stdout")
	assert.Contains(t, string(out.Stderr), "to-stderr")
}

func TestRunSpawnError(t *testing.T) {
	spec := Spec{Command: "/definitely/not/a/real/binary"}

	_, err := testRunner().Run(context.Background(), spec)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestRunNonZeroExit(t *testing.T) {
	spec := shell(`echo "model not found" >&2; exit 3`)

	_, err := testRunner().Run(context.Background(), spec)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.StderrExcerpt, "model not found")
}

func TestRunNoResult(t *testing.T) {
	spec := shell(`echo "just logs"; echo "warnings" >&2`)

	_, err := testRunner().Run(context.Background(), spec)

	var noResult *NoResultError
	require.ErrorAs(t, err, &noResult)
	assert.Contains(t, noResult.StdoutExcerpt, "just logs")
	assert.Contains(t, noResult.StderrExcerpt, "warnings")
	assert.Contains(t, noResult.Diagnostic(), "just logs")
}

func TestRunTimeout(t *testing.T) {
	spec := shell(`sleep 10`)
	spec.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := testRunner().Run(context.Background(), spec)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.Contains(t, err.Error(), "100ms")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestRunTimeoutResolvesBeforeForcedKill(t *testing.T) {
	// The child ignores SIGTERM; the runner must still resolve right after the
	// timeout instead of waiting out the grace window.
	r := &Runner{logger: zap.NewNop(), grace: 2 * time.Second}
	spec := shell(`trap "" TERM; sleep 10`)
	spec.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), spec)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, elapsed, time.Second)
}

func TestRunSignalTermination(t *testing.T) {
	spec := shell(`kill -TERM $$`)

	_, err := testRunner().Run(context.Background(), spec)

	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
	assert.Contains(t, sigErr.Signal, "terminated")
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	spec := shell(`sleep 10`)
	_, err := testRunner().Run(ctx, spec)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	spec := shell(`printf '{"load_ms": ["%s"]}' "$PWD"`)
	spec.Dir = dir

	out, err := testRunner().Run(context.Background(), spec)
	require.NoError(t, err)

	raw := out.Result["load_ms"].([]any)
	assert.Contains(t, raw[0].(string), resolved)
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultGracePeriod is how long a signalled process gets to exit on its
	// own before the forced kill.
	DefaultGracePeriod = 5 * time.Second

	stderrTailLimit = 2048
	excerptLimit    = 1024
)

// Spec describes one external measurement process.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Output is a successful run: the extracted result object plus the full
// captured streams.
type Output struct {
	Result map[string]any
	Stdout []byte
	Stderr []byte
}

type Runner struct {
	logger *zap.Logger
	grace  time.Duration
}

func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger: logger.Named("runner"),
		grace:  DefaultGracePeriod,
	}
}

// Run launches the process and blocks until it resolves. stdout and stderr
// are captured concurrently so the child never blocks on a full pipe. On a
// zero exit the marked result object is extracted from stdout; every failure
// mode maps to one of the typed errors in this package.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Output, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Err: err}
	}

	r.logger.Debug("process started",
		zap.String("command", spec.Command),
		zap.Strings("args", spec.Args),
		zap.Int("pid", cmd.Process.Pid),
	)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case waitErr := <-done:
		return r.resolve(&stdout, &stderr, waitErr)

	case <-timeoutCh:
		r.logger.Warn("process timed out",
			zap.String("command", spec.Command),
			zap.Duration("timeout", spec.Timeout),
		)
		r.terminate(cmd.Process, done)
		return nil, &TimeoutError{Timeout: spec.Timeout}

	case <-ctx.Done():
		r.terminate(cmd.Process, done)
		return nil, ctx.Err()
	}
}

// terminate asks the process to stop and schedules the forced kill. It
// returns without waiting for either to take effect.
func (r *Runner) terminate(proc *os.Process, done <-chan error) {
	if proc == nil {
		return
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return
	}

	grace := r.grace
	go func() {
		select {
		case <-done:
		case <-time.After(grace):
			if err := proc.Kill(); err == nil {
				r.logger.Warn("process ignored termination signal, killed", zap.Int("pid", proc.Pid))
			}
		}
	}()
}

func (r *Runner) resolve(stdout, stderr *bytes.Buffer, waitErr error) (*Output, error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				return nil, &SignalError{Signal: ws.Signal().String()}
			}
			return nil, &ExitError{
				Code:          exitErr.ExitCode(),
				StderrExcerpt: tail(stderr.Bytes(), stderrTailLimit),
			}
		}
		return nil, fmt.Errorf("waiting for process: %w", waitErr)
	}

	result, ok := ExtractResult(stdout.Bytes())
	if !ok {
		return nil, &NoResultError{
			StdoutExcerpt: excerpt(stdout.Bytes(), excerptLimit),
			StderrExcerpt: excerpt(stderr.Bytes(), excerptLimit),
		}
	}

	return &Output{
		Result: result,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}, nil
}

// tail keeps the end of the stream, where the actual error usually is.
func tail(b []byte, limit int) string {
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}

// excerpt keeps the head and tail of a long stream, eliding the middle.
func excerpt(b []byte, limit int) string {
	if len(b) <= 2*limit {
		return string(b)
	}
	return fmt.Sprintf("%s\n... (%d bytes elided) ...\n%s", b[:limit], len(b)-2*limit, b[len(b)-limit:])
}

// Package executor is the in-core half of the Sandbox Executor contract:
// it formats an ExecRequest, hands it to the cmd/judger-init helper over
// a pipe, and translates the helper's exit into a spec.Result. The
// Compiler and Runner Drivers depend only on the Executor interface
// below, never on how the helper is implemented — the helper remains a
// swappable external collaborator, per spec.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"github.com/genuine-oj/judger/internal/sandbox/spec"
	"github.com/genuine-oj/judger/pkg/logger"

	"go.uber.org/zap"
)

// Executor runs one process under the caps described by an ExecRequest.
type Executor interface {
	Exec(ctx context.Context, req spec.ExecRequest) (spec.Result, error)
}

// ProcessExecutor launches the judger-init helper binary as a child
// process for every request. Each sandboxed program therefore runs in
// its own process, isolated from every other case — the concurrency
// model spec.md §5 calls for.
type ProcessExecutor struct {
	// HelperPath is the path to the cmd/judger-init binary.
	HelperPath string
}

// NewProcessExecutor builds an Executor that shells out to helperPath.
func NewProcessExecutor(helperPath string) *ProcessExecutor {
	return &ProcessExecutor{HelperPath: helperPath}
}

// Exec runs the helper, enforcing wall-clock via ctx since RLIMIT_CPU
// alone cannot bound real time (a process blocked on I/O burns no CPU
// time but still occupies a worker slot indefinitely).
func (p *ProcessExecutor) Exec(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
	wall := req.Limits.MaxRealTimeMs
	if wall <= 0 && req.Limits.MaxCPUTimeMs > 0 {
		wall = req.Limits.MaxCPUTimeMs * 3
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if wall > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(wall)*time.Millisecond)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return spec.Result{Code: spec.ResultSystemError, Stats: spec.SandboxStats{Error: err.Error()}}, nil
	}

	cmd := exec.CommandContext(runCtx, p.HelperPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Dir = req.WorkDir

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	stats := spec.SandboxStats{RealTimeMs: elapsed.Milliseconds()}
	fillRusage(&stats, cmd.ProcessState)
	if cmd.ProcessState != nil {
		stats.ExitCode = cmd.ProcessState.ExitCode()
	}

	code := classify(runCtx, runErr, cmd.ProcessState, req.Limits, &stats)
	if code == spec.ResultSystemError && runErr != nil {
		stats.Error = runErr.Error()
		logger.Warn(ctx, "sandbox executor helper failed", zap.Error(runErr), zap.Strings("argv", req.Argv))
	}
	return spec.Result{Code: code, Stats: stats}, nil
}

func classify(ctx context.Context, runErr error, state *os.ProcessState, limits spec.ResourceLimit, stats *spec.SandboxStats) spec.SandboxResultCode {
	if ctx.Err() == context.DeadlineExceeded {
		return spec.ResultRealTimeLimitExceeded
	}
	if limits.MaxCPUTimeMs > 0 && stats.CPUTimeMs >= limits.MaxCPUTimeMs {
		return spec.ResultCPUTimeLimitExceeded
	}
	if limits.MaxMemoryBytes > 0 && stats.MemoryBytes > limits.MaxMemoryBytes {
		return spec.ResultMemoryLimitExceeded
	}
	if sig, killed := killSignal(state); killed {
		stats.Signal = sig
		return spec.ResultRuntimeError
	}
	if state == nil {
		return spec.ResultSystemError
	}
	if runErr != nil {
		if !state.Success() {
			return spec.ResultRuntimeError
		}
		return spec.ResultSystemError
	}
	if state.ExitCode() != 0 {
		return spec.ResultRuntimeError
	}
	return spec.ResultSuccess
}

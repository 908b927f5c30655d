package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/genuine-oj/judger/internal/sandbox/spec"
)

// runFor executes a trivial shell command and returns the resulting
// ProcessState, giving classify() a real state to classify without
// involving cmd/judger-init at all.
func runFor(t *testing.T, ctx context.Context, shellCmd string) (*exec.Cmd, error) {
	t.Helper()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", shellCmd)
	err := cmd.Run()
	return cmd, err
}

func TestClassifySuccess(t *testing.T) {
	cmd, err := runFor(t, context.Background(), "exit 0")
	stats := &spec.SandboxStats{}
	code := classify(context.Background(), err, cmd.ProcessState, spec.ResourceLimit{}, stats)
	if code != spec.ResultSuccess {
		t.Fatalf("classify = %v, want SUCCESS", code)
	}
}

func TestClassifyNonZeroExitIsRuntimeError(t *testing.T) {
	cmd, err := runFor(t, context.Background(), "exit 7")
	stats := &spec.SandboxStats{}
	code := classify(context.Background(), err, cmd.ProcessState, spec.ResourceLimit{}, stats)
	if code != spec.ResultRuntimeError {
		t.Fatalf("classify = %v, want RUNTIME_ERROR", code)
	}
}

func TestClassifySignalKilledIsRuntimeError(t *testing.T) {
	cmd, err := runFor(t, context.Background(), "kill -9 $$")
	stats := &spec.SandboxStats{}
	code := classify(context.Background(), err, cmd.ProcessState, spec.ResourceLimit{}, stats)
	if code != spec.ResultRuntimeError {
		t.Fatalf("classify = %v, want RUNTIME_ERROR", code)
	}
	if stats.Signal == 0 {
		t.Fatal("expected stats.Signal to be populated for a signal-killed process")
	}
}

func TestClassifyDeadlineExceededIsRealTimeLimitExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	cmd, err := runFor(t, ctx, "sleep 1")
	<-ctx.Done()
	stats := &spec.SandboxStats{}
	code := classify(ctx, err, cmd.ProcessState, spec.ResourceLimit{}, stats)
	if code != spec.ResultRealTimeLimitExceeded {
		t.Fatalf("classify = %v, want REAL_TIME_LIMIT_EXCEEDED", code)
	}
}

func TestClassifyCPUTimeLimitExceededTakesPriorityOverExitCode(t *testing.T) {
	cmd, err := runFor(t, context.Background(), "exit 0")
	stats := &spec.SandboxStats{CPUTimeMs: 5000}
	code := classify(context.Background(), err, cmd.ProcessState, spec.ResourceLimit{MaxCPUTimeMs: 1000}, stats)
	if code != spec.ResultCPUTimeLimitExceeded {
		t.Fatalf("classify = %v, want CPU_TIME_LIMIT_EXCEEDED", code)
	}
}

func TestClassifyMemoryLimitExceeded(t *testing.T) {
	cmd, err := runFor(t, context.Background(), "exit 0")
	stats := &spec.SandboxStats{MemoryBytes: 128 << 20}
	code := classify(context.Background(), err, cmd.ProcessState, spec.ResourceLimit{MaxMemoryBytes: 64 << 20}, stats)
	if code != spec.ResultMemoryLimitExceeded {
		t.Fatalf("classify = %v, want MEMORY_LIMIT_EXCEEDED", code)
	}
}

func TestClassifyNilStateIsSystemError(t *testing.T) {
	stats := &spec.SandboxStats{}
	code := classify(context.Background(), nil, nil, spec.ResourceLimit{}, stats)
	if code != spec.ResultSystemError {
		t.Fatalf("classify = %v, want SYSTEM_ERROR", code)
	}
}

package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/sandbox/executor"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
)

type fakeExecutor struct {
	exec func(ctx context.Context, req spec.ExecRequest) (spec.Result, error)
}

func (f *fakeExecutor) Exec(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
	return f.exec(ctx, req)
}

var _ executor.Executor = (*fakeExecutor)(nil)

func selfPrincipal() Principal {
	return Principal{UID: os.Getuid(), GID: os.Getgid()}
}

func TestRunBuildsArgvAndMergesOutput(t *testing.T) {
	workDir := t.TempDir()
	var captured spec.ExecRequest
	d := New(&fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		captured = req
		return spec.Result{Code: spec.ResultSuccess}, nil
	}})

	req := Request{
		WorkDir:   workDir,
		ExeName:   "main",
		InName:    "1.in",
		OutName:   "1.out",
		RunSpec:   langreg.RunSpec{CommandTpl: "{exe_path}", SeccompRule: "general"},
		Limits:    Limits{MaxCPUTimeMs: 1000, MaxMemoryBytes: 64 << 20},
		Principal: selfPrincipal(),
	}

	if _, err := d.Run(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantExe := filepath.Join(workDir, "main")
	if len(captured.Argv) != 1 || captured.Argv[0] != wantExe {
		t.Fatalf("argv = %v, want [%s]", captured.Argv, wantExe)
	}
	if captured.OutputPath != captured.ErrorPath {
		t.Fatal("expected stdout and stderr to be merged into the same file")
	}
	if captured.Limits.MaxRealTimeMs != 3000 {
		t.Fatalf("MaxRealTimeMs = %d, want 3000 (3x MaxCPUTimeMs)", captured.Limits.MaxRealTimeMs)
	}
	if captured.SeccompRule != "general" {
		t.Fatalf("SeccompRule = %q, want general", captured.SeccompRule)
	}
}

func TestRunSubstitutesSPJExtraArgs(t *testing.T) {
	workDir := t.TempDir()
	var captured spec.ExecRequest
	d := New(&fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		captured = req
		return spec.Result{Code: spec.ResultSuccess}, nil
	}})

	req := Request{
		WorkDir: workDir,
		ExeName: "checker",
		InName:  "1.in",
		OutName: "checker.out",
		RunSpec: langreg.RunSpec{CommandTpl: "{exe_path} {in_file_path} {user_out_file_path} {answer_file_path}"},
		Limits:  Limits{MaxCPUTimeMs: 1000, MaxMemoryBytes: 64 << 20},
		Extra: &ExtraArgs{
			InFilePath:      "/work/1.in",
			UserOutFilePath: "/work/1.out",
			AnswerFilePath:  "/work/1.ans",
		},
		Principal: selfPrincipal(),
	}

	if _, err := d.Run(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{filepath.Join(workDir, "checker"), "/work/1.in", "/work/1.out", "/work/1.ans"}
	if len(captured.Argv) != len(want) {
		t.Fatalf("argv = %v, want %v", captured.Argv, want)
	}
	for i := range want {
		if captured.Argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, captured.Argv[i], want[i])
		}
	}
}

func TestRunSandboxErrorIsWrapped(t *testing.T) {
	d := New(&fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		return spec.Result{}, context.DeadlineExceeded
	}})

	req := Request{
		WorkDir:   t.TempDir(),
		ExeName:   "main",
		InName:    "1.in",
		OutName:   "1.out",
		RunSpec:   langreg.RunSpec{CommandTpl: "{exe_path}"},
		Principal: selfPrincipal(),
	}
	if _, err := d.Run(context.Background(), req); err == nil {
		t.Fatal("expected the sandbox executor's error to propagate")
	}
}

package grader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/genuine-oj/judger/internal/comparator"
	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/runner"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
	"github.com/genuine-oj/judger/internal/verdict"
)

// fakeExecutor lets each test decide how a sandboxed run behaves
// without touching cmd/judger-init, the same stand-in role
// judge_service/tests/sandbox's fakeRunner plays for its engine.
type fakeExecutor struct {
	exec func(ctx context.Context, req spec.ExecRequest) (spec.Result, error)
}

func (f *fakeExecutor) Exec(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
	return f.exec(ctx, req)
}

func echoExecutor() *fakeExecutor {
	return &fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		in, err := os.ReadFile(req.InputPath)
		if err != nil {
			return spec.Result{}, err
		}
		if err := os.WriteFile(req.OutputPath, in, 0644); err != nil {
			return spec.Result{}, err
		}
		return spec.Result{Code: spec.ResultSuccess, Stats: spec.SandboxStats{CPUTimeMs: 5, MemoryBytes: 1024}}, nil
	}}
}

func baseJob(t *testing.T, workDir, caseDir string) CaseJob {
	t.Helper()
	return CaseJob{
		WorkDir:       workDir,
		CaseBundleDir: caseDir,
		CaseName:      "1",
		Score:         10,
		Lang: langreg.LanguageSpec{
			ID:      "c",
			Compile: &langreg.CompileSpec{ExeName: "main"},
			Run:     langreg.RunSpec{CommandTpl: "{exe_path}"},
		},
		Limits: runner.Limits{MaxCPUTimeMs: 1000, MaxMemoryBytes: 64 << 20},
	}
}

func TestEvaluateCaseAccepted(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.md5"), []byte(comparator.Hash([]byte("3\n"))), 0644); err != nil {
		t.Fatal(err)
	}

	run := runner.New(echoExecutor())
	res := evaluateCase(context.Background(), run, baseJob(t, workDir, caseDir))
	if res.Verdict != verdict.Accepted {
		t.Fatalf("verdict = %v, want Accepted; output=%q", res.Verdict, res.Output)
	}
}

func TestEvaluateCaseWrongAnswer(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.md5"), []byte(comparator.Hash([]byte("4\n"))), 0644); err != nil {
		t.Fatal(err)
	}

	run := runner.New(echoExecutor())
	res := evaluateCase(context.Background(), run, baseJob(t, workDir, caseDir))
	if res.Verdict != verdict.WrongAnswer {
		t.Fatalf("verdict = %v, want WrongAnswer", res.Verdict)
	}
}

func TestEvaluateCaseTimeLimitExceeded(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("loop\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.md5"), []byte(comparator.Hash([]byte("anything\n"))), 0644); err != nil {
		t.Fatal(err)
	}

	tle := &fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		return spec.Result{Code: spec.ResultCPUTimeLimitExceeded, Stats: spec.SandboxStats{CPUTimeMs: req.Limits.MaxCPUTimeMs}}, nil
	}}
	run := runner.New(tle)
	res := evaluateCase(context.Background(), run, baseJob(t, workDir, caseDir))
	if res.Verdict != verdict.TimeLimitExceeded {
		t.Fatalf("verdict = %v, want TimeLimitExceeded", res.Verdict)
	}
}

func TestEvaluateCaseMissingInputIsSystemError(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir() // no .in file dropped
	run := runner.New(echoExecutor())
	res := evaluateCase(context.Background(), run, baseJob(t, workDir, caseDir))
	if res.Verdict != verdict.SystemError {
		t.Fatalf("verdict = %v, want SystemError", res.Verdict)
	}
}

func TestRunSPJAccepted(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.ans"), []byte("6\n"), 0644); err != nil {
		t.Fatal(err)
	}
	userOut := filepath.Join(workDir, "1.out")
	if err := os.WriteFile(userOut, []byte("6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := &fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		if !strings.Contains(req.Argv[0], "checker") {
			t.Fatalf("expected checker invocation, got argv=%v", req.Argv)
		}
		return spec.Result{Code: spec.ResultSuccess, Stats: spec.SandboxStats{ExitCode: 0}}, nil
	}}
	run := runner.New(checker)
	job := baseJob(t, workDir, caseDir)
	job.SPJ = &SPJJob{
		CheckerExeName: "checker",
		RunSpec:        langreg.RunSpec{CommandTpl: "{exe_path} {in_file_path} {user_out_file_path} {answer_file_path}"},
	}

	v, out, stats := runSPJ(context.Background(), run, job, userOut)
	if v != verdict.Accepted {
		t.Fatalf("verdict = %v, want Accepted", v)
	}
	if out != nil {
		t.Fatalf("expected nil output on SPJ acceptance, got %q", out)
	}
	if stats != nil {
		t.Fatal("expected nil stats on SPJ acceptance, so evaluateCase keeps the user program's own stats")
	}
}

func TestEvaluateCaseSPJAcceptedKeepsUserStats(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.ans"), []byte("6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	const userCPUTimeMs = 42
	const userMemoryBytes = 123456
	calls := 0
	exec := &fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		calls++
		if calls == 1 {
			// The user program's run: echoes input to its output file.
			in, err := os.ReadFile(req.InputPath)
			if err != nil {
				return spec.Result{}, err
			}
			if err := os.WriteFile(req.OutputPath, in, 0644); err != nil {
				return spec.Result{}, err
			}
			return spec.Result{Code: spec.ResultSuccess, Stats: spec.SandboxStats{CPUTimeMs: userCPUTimeMs, MemoryBytes: userMemoryBytes}}, nil
		}
		// The checker's run: reports a wildly different stat set, which
		// must not leak into the reported CaseResult on acceptance.
		return spec.Result{Code: spec.ResultSuccess, Stats: spec.SandboxStats{ExitCode: 0, CPUTimeMs: 9999, MemoryBytes: 9999999}}, nil
	}}

	run := runner.New(exec)
	job := baseJob(t, workDir, caseDir)
	job.SPJ = &SPJJob{
		CheckerExeName: "checker",
		RunSpec:        langreg.RunSpec{CommandTpl: "{exe_path} {in_file_path} {user_out_file_path} {answer_file_path}"},
	}

	res := evaluateCase(context.Background(), run, job)
	if res.Verdict != verdict.Accepted {
		t.Fatalf("verdict = %v, want Accepted", res.Verdict)
	}
	if res.Stats.CPUTimeMs != userCPUTimeMs || res.Stats.MemoryBytes != userMemoryBytes {
		t.Fatalf("stats = %+v, want the user program's own stats (cpu=%d mem=%d)", res.Stats, userCPUTimeMs, userMemoryBytes)
	}
}

func TestRunSPJMalfunctionIsSystemError(t *testing.T) {
	workDir := t.TempDir()
	caseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(caseDir, "1.in"), []byte("3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, "1.ans"), []byte("6\n"), 0644); err != nil {
		t.Fatal(err)
	}
	userOut := filepath.Join(workDir, "1.out")
	if err := os.WriteFile(userOut, []byte("6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := &fakeExecutor{exec: func(ctx context.Context, req spec.ExecRequest) (spec.Result, error) {
		if err := os.WriteFile(req.OutputPath, []byte("checker crashed"), 0644); err != nil {
			return spec.Result{}, err
		}
		return spec.Result{Code: spec.ResultSuccess, Stats: spec.SandboxStats{ExitCode: 3}}, nil
	}}
	run := runner.New(checker)
	job := baseJob(t, workDir, caseDir)
	job.SPJ = &SPJJob{
		CheckerExeName: "checker",
		RunSpec:        langreg.RunSpec{CommandTpl: "{exe_path} {in_file_path} {user_out_file_path} {answer_file_path}"},
	}

	v, out, _ := runSPJ(context.Background(), run, job, userOut)
	if v != verdict.SystemError {
		t.Fatalf("verdict = %v, want SystemError", v)
	}
	if len(out) == 0 {
		t.Fatal("expected SPJ malfunction output to carry the checker's own diagnostic")
	}
}

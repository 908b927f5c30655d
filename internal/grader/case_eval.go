package grader

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/genuine-oj/judger/internal/comparator"
	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/runner"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
	"github.com/genuine-oj/judger/internal/verdict"
)

// CaseJob is the immutable value a worker-pool goroutine processes —
// no shared Grader state is captured, matching spec.md §9's "stateless
// worker functions" note (the Python original instead pickles the
// whole Judger instance into a multiprocessing.Pool worker; Go
// goroutines share the process, so that workaround never applies here).
type CaseJob struct {
	WorkDir      string
	CaseBundleDir string
	CaseName     string
	Score        int
	Subcheck     *int

	Lang   langreg.LanguageSpec
	Limits runner.Limits
	Code   runner.Principal

	SPJ *SPJJob // nil when the task has no special judge
}

// SPJJob carries everything the checker invocation needs for one case.
type SPJJob struct {
	CheckerExeName string
	RunSpec        langreg.RunSpec
	Principal      runner.Principal
}

// CaseResult is one case's outcome.
type CaseResult struct {
	CaseName string
	Verdict  verdict.Verdict
	Output   []byte
	Stats    spec.SandboxStats
	Subcheck *int
}

// evaluateCase implements the Per-Case Evaluator, spec.md §4.5.
func evaluateCase(ctx context.Context, run *runner.Driver, job CaseJob) CaseResult {
	inFile := filepath.Join(job.CaseBundleDir, job.CaseName+".in")
	if _, err := os.Stat(inFile); err != nil {
		return CaseResult{
			CaseName: job.CaseName,
			Verdict:  verdict.SystemError,
			Output:   []byte("Test input not found!"),
			Subcheck: job.Subcheck,
		}
	}
	if err := copyFile(inFile, filepath.Join(job.WorkDir, job.CaseName+".in")); err != nil {
		return CaseResult{
			CaseName: job.CaseName,
			Verdict:  verdict.SystemError,
			Output:   []byte(err.Error()),
			Subcheck: job.Subcheck,
		}
	}

	inName := job.CaseName + ".in"
	outName := job.CaseName + ".out"
	result, err := run.Run(ctx, runner.Request{
		WorkDir:   job.WorkDir,
		ExeName:   job.Lang.Compile.ExeName,
		InName:    inName,
		OutName:   outName,
		RunSpec:   job.Lang.Run,
		Limits:    job.Limits,
		Principal: job.Code,
	})
	if err != nil {
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.SystemError, Output: []byte(err.Error()), Subcheck: job.Subcheck}
	}

	outPath := filepath.Join(job.WorkDir, outName)
	stats := result.Stats

	switch result.Code {
	case spec.ResultCPUTimeLimitExceeded, spec.ResultRealTimeLimitExceeded:
		if result.Code == spec.ResultRealTimeLimitExceeded {
			stats.CPUTimeMs = stats.RealTimeMs
		}
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.TimeLimitExceeded, Output: snapshot(outPath), Stats: stats, Subcheck: job.Subcheck}
	case spec.ResultMemoryLimitExceeded:
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.MemoryLimitExceeded, Output: snapshot(outPath), Stats: stats, Subcheck: job.Subcheck}
	case spec.ResultRuntimeError:
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.RuntimeError, Output: snapshot(outPath), Stats: stats, Subcheck: job.Subcheck}
	case spec.ResultSuccess:
		// fallthrough to comparison below
	default:
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.SystemError, Output: snapshot(outPath), Stats: stats, Subcheck: job.Subcheck}
	}

	if _, err := os.Stat(outPath); err != nil {
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.WrongAnswer, Output: nil, Stats: stats, Subcheck: job.Subcheck}
	}

	if job.SPJ != nil {
		v, out, spjStats := runSPJ(ctx, run, job, outPath)
		if spjStats != nil {
			stats = *spjStats
		}
		return CaseResult{CaseName: job.CaseName, Verdict: v, Output: out, Stats: stats, Subcheck: job.Subcheck}
	}

	v, out, err := comparator.CompareDefault(outPath, filepath.Join(job.CaseBundleDir, job.CaseName+".md5"))
	if err != nil {
		return CaseResult{CaseName: job.CaseName, Verdict: verdict.SystemError, Output: []byte(err.Error()), Stats: stats, Subcheck: job.Subcheck}
	}
	return CaseResult{CaseName: job.CaseName, Verdict: v, Output: out, Stats: stats, Subcheck: job.Subcheck}
}

// runSPJ implements the per-case half of spec.md §4.6.
func runSPJ(ctx context.Context, run *runner.Driver, job CaseJob, userOutPath string) (verdict.Verdict, []byte, *spec.SandboxStats) {
	ansSrc := filepath.Join(job.CaseBundleDir, job.CaseName+".ans")
	ansDst := filepath.Join(job.WorkDir, job.CaseName+".ans")
	if err := copyFile(ansSrc, ansDst); err != nil {
		return verdict.SystemError, []byte("SPJ error, info: reference answer unavailable"), nil
	}

	spjOutName := job.CaseName + ".spj.out"
	result, err := run.Run(ctx, runner.Request{
		WorkDir: job.WorkDir,
		ExeName: job.SPJ.CheckerExeName,
		InName:  ".spj.in",
		OutName: spjOutName,
		RunSpec: job.SPJ.RunSpec,
		Limits:  job.Limits,
		Principal: job.SPJ.Principal,
		Extra: &runner.ExtraArgs{
			InFilePath:      filepath.Join(job.WorkDir, job.CaseName+".in"),
			UserOutFilePath: userOutPath,
			AnswerFilePath:  ansDst,
		},
	})
	if err != nil {
		return verdict.SystemError, []byte("SPJ error, info: "+err.Error()), nil
	}

	stats := result.Stats
	v := comparator.SPJExitCode(stats.ExitCode)
	switch v {
	case verdict.Accepted:
		return v, nil, nil
	case verdict.WrongAnswer:
		return v, snapshot(userOutPath), nil
	default:
		out, readErr := os.ReadFile(filepath.Join(job.WorkDir, spjOutName))
		if readErr != nil {
			out = []byte("Failed to get SPJ output!")
		}
		return verdict.SystemError, []byte("SPJ error, info: " + string(out)), &stats
	}
}

func snapshot(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// encodeOutput base64-encodes a case's reported output for the wire.
func encodeOutput(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

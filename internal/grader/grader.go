// Package grader implements the Grader: the task orchestrator that
// drives compile -> SPJ prep -> parallel per-case evaluation -> subtask
// aggregation -> final report, streaming interim events as it goes.
package grader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genuine-oj/judger/internal/compiler"
	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/runner"
	"github.com/genuine-oj/judger/internal/sandbox/executor"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
	"github.com/genuine-oj/judger/internal/verdict"
	"github.com/genuine-oj/judger/internal/workdir"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
	"github.com/genuine-oj/judger/pkg/logger"
)

// Grader orchestrates one grading task at a time; parallelism exists
// only within a task's per-case worker pool (spec.md §5).
type Grader struct {
	cfg      Config
	registry *langreg.Registry
	executor executor.Executor
}

// New builds a Grader.
func New(cfg Config, registry *langreg.Registry, exec executor.Executor) *Grader {
	return &Grader{cfg: cfg, registry: registry, executor: exec}
}

// Grade runs the full lifecycle of spec.md §4.7 for one task, emitting
// events into sink. An infrastructure error is reported as a
// SYSTEM_ERROR final event and also returned; compile and per-case
// outcomes are reported through the event stream only, and Grade
// returns nil for them, per spec.md §7.
func (g *Grader) Grade(ctx context.Context, task Task, sink EventSink) error {
	defer sink.Close()

	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	lang, err := g.registry.Lookup(task.LanguageTag)
	if err != nil {
		return g.emitInfraFailure(sink, err)
	}

	if _, statErr := os.Stat(g.caseBundleDir(task.CaseBundleID)); statErr != nil {
		return g.emitInfraFailure(sink, pkgerrors.New(pkgerrors.JudgeSystemError).WithMessage("Test data not found!"))
	}

	retain := g.cfg.RetainOnExit || task.RetainDebug

	var reportErr error
	workErr := workdir.With(ctx, g.cfg.BaseDir, task.TaskID, retain, func(dir string) error {
		reportErr = g.gradeInWorkDir(ctx, task, lang, dir, sink)
		return nil
	})
	if workErr != nil {
		return g.emitInfraFailure(sink, workErr)
	}
	if reportErr != nil {
		return g.emitInfraFailure(sink, reportErr)
	}
	return nil
}

func (g *Grader) caseBundleDir(caseID string) string {
	return filepath.Join(g.cfg.TestCaseDir, caseID)
}

func (g *Grader) gradeInWorkDir(ctx context.Context, task Task, lang langreg.LanguageSpec, workDir string, sink EventSink) error {
	srcPath := filepath.Join(workDir, srcName(lang))
	if err := os.WriteFile(srcPath, []byte(task.SourceCode), 0644); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("write source failed")
	}

	compileDriver := compiler.New(g.executor, g.cfg.CompilerPrincipal())
	result, compileLog, err := compileDriver.Compile(ctx, workDir, lang.Compile)
	if err != nil {
		return err
	}
	artifactExists := lang.Compile == nil || fileExists(filepath.Join(workDir, lang.Compile.ExeName))
	if !compileAccepted(result, artifactExists) {
		emitFinal(sink, verdict.CompileError, 0, result.Stats, compileLog, nil)
		return nil
	}
	if result.Code != spec.ResultSuccess && artifactExists {
		logger.Warn(ctx, "compile reported non-success result code but artifact exists",
			zap.String("task_id", task.TaskID), zap.String("result_code", result.Code.String()))
	}

	if err := sink.Emit(TaskEvent{Kind: EventCompile, CompileLog: compileLog}); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("emit compile event failed")
	}

	var spjPrep spjPrepResult
	if task.SPJID != "" {
		prep, failLog, ok := g.prepSPJ(ctx, task.SPJID, workDir)
		if !ok {
			emitFinal(sink, verdict.CompileError, 0, spec.SandboxStats{}, failLog, nil)
			return nil
		}
		spjPrep = prep
	}

	exeName := ""
	if lang.Compile != nil {
		exeName = lang.Compile.ExeName
	} else {
		exeName = srcName(lang)
	}

	results := g.runCases(ctx, task, lang, workDir, exeName, spjPrep, sink)
	g.aggregateAndEmit(task, compileLog, results, sink)
	return nil
}

func srcName(lang langreg.LanguageSpec) string {
	if lang.Compile != nil {
		return lang.Compile.SrcName
	}
	return lang.ID
}

// compileAccepted implements spec.md §4.7 step 5's compile acceptance
// rule: accept if result_code == SUCCESS, or the artifact exists
// regardless (some compilers exit non-zero on warnings-as-errors while
// still emitting a binary).
func compileAccepted(result spec.Result, artifactExists bool) bool {
	return result.Code == spec.ResultSuccess || artifactExists
}

// runCases fans out the per-case evaluator across a fixed-size worker
// pool and streams a part event as each job completes, in completion
// order (not submission order), per spec.md §5.
func (g *Grader) runCases(ctx context.Context, task Task, lang langreg.LanguageSpec, workDir, exeName string, spjPrep spjPrepResult, sink EventSink) []CaseResult {
	jobs := make(chan CaseJob)
	resultsCh := make(chan CaseResult)

	var wg sync.WaitGroup
	workers := g.cfg.ParallelTests
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				resultsCh <- evaluateCase(ctx, runner.New(g.executor), job)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, tc := range task.TestCaseConfig {
			job := CaseJob{
				WorkDir:       workDir,
				CaseBundleDir: g.caseBundleDir(task.CaseBundleID),
				CaseName:      tc.Name,
				Score:         tc.Score,
				Subcheck:      tc.Subcheck,
				Lang:          withExeOverride(lang, exeName),
				Limits:        runner.Limits{MaxCPUTimeMs: task.Limit.MaxCPUTimeMs, MaxMemoryBytes: task.Limit.MaxMemoryBytes},
				Code:          g.cfg.CodePrincipal(),
			}
			if task.SPJID != "" {
				job.SPJ = &SPJJob{
					CheckerExeName: spjPrep.checkerExeName,
					RunSpec:        spjPrep.runSpec,
					Principal:      g.cfg.SPJPrincipal(),
				}
			}
			jobs <- job
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]CaseResult, 0, len(task.TestCaseConfig))
	for res := range resultsCh {
		results = append(results, res)
		_ = sink.Emit(TaskEvent{
			Kind:         EventPart,
			PartTestCase: res.CaseName,
			PartOutput:   encodeOutput(res.Output),
			PartStatus:   int(res.Verdict),
		})
	}
	return results
}

// withExeOverride lets an interpreted language's CaseJob reference its
// source file the same way a compiled language references its binary.
func withExeOverride(lang langreg.LanguageSpec, exeName string) langreg.LanguageSpec {
	if lang.Compile != nil {
		return lang
	}
	cp := lang
	cp.Compile = &langreg.CompileSpec{ExeName: exeName}
	return cp
}

// aggregateAndEmit implements spec.md §4.7 step 9-10.
func (g *Grader) aggregateAndEmit(task Task, compileLog string, results []CaseResult, sink EventSink) {
	subtask := task.SubtaskMode()

	var maxTime, maxMemory int64
	detail := make([]CaseDetail, 0, len(results))
	var nonAccepted []verdict.Verdict
	score := 0

	groupScores := make(map[int]int, len(task.SubcheckConfig))
	for id, g := range task.SubcheckConfig {
		groupScores[id] = g.Score
	}
	failedGroups := make(map[int]bool)

	for _, res := range results {
		if res.Stats.CPUTimeMs > maxTime {
			maxTime = res.Stats.CPUTimeMs
		}
		if res.Stats.MemoryBytes > maxMemory {
			maxMemory = res.Stats.MemoryBytes
		}
		detail = append(detail, CaseDetail{
			CaseName: res.CaseName,
			Status:   int(res.Verdict),
			Statistics: CaseStatistics{
				Time:     res.Stats.CPUTimeMs,
				Memory:   res.Stats.MemoryBytes,
				ExitCode: res.Stats.ExitCode,
			},
			Subcheck: res.Subcheck,
		})
		if res.Verdict == verdict.Accepted {
			if !subtask {
				score += findScore(task.TestCaseConfig, res.CaseName)
			}
			continue
		}
		nonAccepted = append(nonAccepted, res.Verdict)
		if subtask && res.Subcheck != nil {
			failedGroups[*res.Subcheck] = true
		}
	}

	if subtask {
		score = 0
		for id, configured := range groupScores {
			if failedGroups[id] {
				continue
			}
			score += configured
		}
	}

	status := verdict.Worst(nonAccepted)
	emitFinal(sink, status, score, spec.SandboxStats{CPUTimeMs: maxTime, MemoryBytes: maxMemory}, compileLog, detail)
}

func findScore(cases []TestCaseSpec, name string) int {
	for _, c := range cases {
		if c.Name == name {
			return c.Score
		}
	}
	return 0
}

func emitFinal(sink EventSink, status verdict.Verdict, score int, stats spec.SandboxStats, log string, detail []CaseDetail) {
	_ = sink.Emit(TaskEvent{
		Kind:            EventFinal,
		FinalStatus:     int(status),
		FinalScore:      score,
		FinalStatistics: FinalStatistics{MaxTime: stats.CPUTimeMs, MaxMemory: stats.MemoryBytes},
		FinalLog:        log,
		FinalDetail:     detail,
	})
}

// emitInfraFailure turns an infrastructure error into the single final
// SYSTEM_ERROR report spec.md §7 calls for.
func (g *Grader) emitInfraFailure(sink EventSink, err error) error {
	coded := pkgerrors.GetError(err)
	emitFinal(sink, verdict.SystemError, 0, spec.SandboxStats{}, coded.Message, nil)
	return fmt.Errorf("grade task failed: %w", err)
}

package grader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/genuine-oj/judger/internal/compiler"
	"github.com/genuine-oj/judger/internal/langreg"
)

// spjPrepResult carries what the fan-out stage needs once SPJ prep
// succeeds.
type spjPrepResult struct {
	checkerExeName string
	runSpec        langreg.RunSpec
}

// prepSPJ implements spec.md §4.6's once-per-task setup: compile-or-
// reuse the cached checker, then drop an empty .spj.in the checker runs
// with (its real inputs arrive as argv, not stdin).
func (g *Grader) prepSPJ(ctx context.Context, spjID, workDir string) (spjPrepResult, string, bool) {
	spjDir := filepath.Join(g.cfg.SPJDir, spjID)
	checkerSrc := filepath.Join(spjDir, "checker.cpp")
	if _, err := os.Stat(checkerSrc); err != nil {
		return spjPrepResult{}, "SPJ source not found", false
	}

	spec, err := g.registry.SPJSpec()
	if err != nil {
		return spjPrepResult{}, "SPJ language entry missing", false
	}

	checkerCached := filepath.Join(spjDir, spec.Compile.ExeName)
	checkerDst := filepath.Join(workDir, spec.Compile.ExeName)

	if _, err := os.Stat(checkerCached); err == nil {
		if err := copyFile(checkerCached, checkerDst); err != nil {
			return spjPrepResult{}, fmt.Sprintf("failed to stage cached checker: %v", err), false
		}
	} else {
		if err := copyFile(checkerSrc, filepath.Join(workDir, spec.Compile.SrcName)); err != nil {
			return spjPrepResult{}, fmt.Sprintf("failed to stage checker source: %v", err), false
		}
		testlib := filepath.Join(g.cfg.SPJDir, "testlib.h")
		if err := copyFile(testlib, filepath.Join(workDir, "testlib.h")); err != nil {
			return spjPrepResult{}, fmt.Sprintf("failed to stage testlib.h: %v", err), false
		}

		compileDriver := compiler.New(g.executor, g.cfg.CompilerPrincipal())
		result, log, err := compileDriver.Compile(ctx, workDir, spec.Compile)
		if err != nil {
			return spjPrepResult{}, fmt.Sprintf("SPJ compile error, info: %v", err), false
		}
		compiledArtifactExists := fileExists(checkerDst)
		if !compileAccepted(result, compiledArtifactExists) {
			return spjPrepResult{}, fmt.Sprintf("SPJ compile error, info: %s", log), false
		}
		if err := copyFile(checkerDst, checkerCached); err != nil {
			return spjPrepResult{}, fmt.Sprintf("failed to cache compiled checker: %v", err), false
		}
	}

	if err := os.WriteFile(filepath.Join(workDir, ".spj.in"), nil, 0644); err != nil {
		return spjPrepResult{}, fmt.Sprintf("failed to create .spj.in: %v", err), false
	}

	return spjPrepResult{checkerExeName: spec.Compile.ExeName, runSpec: spec.Run}, "", true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

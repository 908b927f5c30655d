// Package compiler implements the Compiler Driver: formats the compile
// command, invokes the Sandbox Executor as the compiler principal, and
// captures the combined compiler stdout/stderr into a bounded file.
package compiler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/genuine-oj/judger/internal/cmdtemplate"
	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/sandbox/executor"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
)

const (
	maxStackBytes  = 128 * 1024 * 1024
	maxOutputBytes = 20 * 1024 * 1024
	compilerLog    = "compiler.out"
)

// Principal identifies the uid/gid a sandboxed process runs as.
type Principal struct {
	UID int
	GID int
}

// Driver is the Compiler Driver.
type Driver struct {
	Executor executor.Executor
	// Compiler is the uid/gid the compile step runs under.
	Compiler Principal
}

// New builds a Compiler Driver.
func New(exec executor.Executor, compiler Principal) *Driver {
	return &Driver{Executor: exec, Compiler: compiler}
}

// Compile runs compileSpec.CommandTpl inside workDir. When CommandTpl is
// empty the language has no compile step (interpreted source) and the
// call succeeds immediately without touching the sandbox.
func (d *Driver) Compile(ctx context.Context, workDir string, compileSpec *langreg.CompileSpec) (spec.Result, string, error) {
	if compileSpec == nil || compileSpec.CommandTpl == "" {
		return spec.Result{Code: spec.ResultSuccess}, "", nil
	}

	srcPath := filepath.Join(workDir, compileSpec.SrcName)
	exePath := filepath.Join(workDir, compileSpec.ExeName)

	if err := chown(workDir, d.Compiler.UID, d.Compiler.GID); err != nil {
		return spec.Result{}, "", pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("chown workdir for compiler failed")
	}

	argv, err := formatCommand(compileSpec.CommandTpl, srcPath, exePath)
	if err != nil {
		return spec.Result{}, "", pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("parse compile command failed")
	}

	logPath := filepath.Join(workDir, compilerLog)
	req := spec.ExecRequest{
		Argv:       argv,
		Env:        mergeEnv(compileSpec.Env),
		WorkDir:    workDir,
		InputPath:  srcPath, // not /dev/null: avoids a problematic ioctl on some kernels
		OutputPath: logPath,
		ErrorPath:  logPath,
		UID:        d.Compiler.UID,
		GID:        d.Compiler.GID,
		// seccomp disabled: the compiler must run unfiltered.
		Limits: spec.ResourceLimit{
			MaxCPUTimeMs:     compileSpec.MaxCPUTimeMs,
			MaxRealTimeMs:    compileSpec.MaxRealTimeMs,
			MaxMemoryBytes:   compileSpec.MaxMemoryBytes,
			MaxStackBytes:    maxStackBytes,
			MaxOutputBytes:   maxOutputBytes,
			MaxProcessNumber: 0,
		},
	}

	result, err := d.Executor.Exec(ctx, req)
	if err != nil {
		return spec.Result{}, "", pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("invoke sandbox executor for compile failed")
	}

	captured := capturedText(logPath, result)
	return result, captured, nil
}

// capturedText returns compiler.out's contents (then removes it), or a
// JSON stringification of the sandbox result if the log is missing.
func capturedText(logPath string, result spec.Result) string {
	data, err := os.ReadFile(logPath)
	if err == nil {
		_ = os.Remove(logPath)
		return string(data)
	}
	raw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return ""
	}
	return string(raw)
}

func formatCommand(tpl, srcPath, exePath string) ([]string, error) {
	return cmdtemplate.Expand(tpl, cmdtemplate.Vars{SrcPath: srcPath, ExePath: exePath})
}

func mergeEnv(overrides map[string]string) []string {
	return cmdtemplate.MergeEnv(overrides, os.Getenv("PATH"))
}

func chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

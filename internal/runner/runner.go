// Package runner implements the Runner Driver: formats the run command
// (including SPJ argument substitution), invokes the Sandbox Executor
// as the user-code or SPJ principal, and returns the raw sandbox
// result.
package runner

import (
	"context"
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
	maxOutputBytes = 32 * 1024 * 1024
)

// Principal identifies the uid/gid a sandboxed process runs as.
type Principal struct {
	UID int
	GID int
}

// Driver is the Runner Driver.
type Driver struct {
	Executor executor.Executor
}

// New builds a Runner Driver.
func New(exec executor.Executor) *Driver {
	return &Driver{Executor: exec}
}

// ExtraArgs carries the SPJ-only template placeholders (spec.md §4.3).
type ExtraArgs struct {
	InFilePath      string
	UserOutFilePath string
	AnswerFilePath  string
}

// Request describes one sandboxed run.
type Request struct {
	WorkDir   string
	ExeName   string
	InName    string
	OutName   string
	RunSpec   langreg.RunSpec
	Limits    Limits
	Principal Principal
	Extra     *ExtraArgs
}

// Limits is the caller-supplied resource cap; MaxRealTimeMs and the
// stack/output/process caps are derived per spec.md §4.3, never
// supplied by the caller.
type Limits struct {
	MaxCPUTimeMs   int64
	MaxMemoryBytes int64
}

// Run executes one program inside workDir and returns the sandbox
// result.
func (d *Driver) Run(ctx context.Context, req Request) (spec.Result, error) {
	exePath := filepath.Join(req.WorkDir, req.ExeName)

	vars := cmdtemplate.Vars{ExePath: exePath}
	if req.Extra != nil {
		vars.InFilePath = req.Extra.InFilePath
		vars.UserOutFilePath = req.Extra.UserOutFilePath
		vars.AnswerFilePath = req.Extra.AnswerFilePath
	}
	argv, err := cmdtemplate.Expand(req.RunSpec.CommandTpl, vars)
	if err != nil {
		return spec.Result{}, pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("parse run command failed")
	}

	if err := os.Chown(req.WorkDir, req.Principal.UID, req.Principal.GID); err != nil {
		return spec.Result{}, pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("chown workdir for run failed")
	}

	inPath := filepath.Join(req.WorkDir, req.InName)
	outPath := filepath.Join(req.WorkDir, req.OutName)

	sandboxReq := spec.ExecRequest{
		Argv:        argv,
		Env:         cmdtemplate.MergeEnv(req.RunSpec.Env, os.Getenv("PATH")),
		WorkDir:     req.WorkDir,
		InputPath:   inPath,
		OutputPath:  outPath,
		ErrorPath:   outPath, // merged stdout+stderr, per spec.md §9 "Output merging"
		UID:         req.Principal.UID,
		GID:         req.Principal.GID,
		SeccompRule: req.RunSpec.SeccompRule,
		Limits: spec.ResourceLimit{
			MaxCPUTimeMs:     req.Limits.MaxCPUTimeMs,
			MaxRealTimeMs:    req.Limits.MaxCPUTimeMs * 3,
			MaxMemoryBytes:   req.Limits.MaxMemoryBytes,
			MaxStackBytes:    maxStackBytes,
			MaxOutputBytes:   maxOutputBytes,
			MaxProcessNumber: 0,
		},
	}

	result, err := d.Executor.Exec(ctx, sandboxReq)
	if err != nil {
		return spec.Result{}, pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("invoke sandbox executor for run failed")
	}
	return result, nil
}

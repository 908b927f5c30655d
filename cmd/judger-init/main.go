//go:build linux

// judger-init is the Sandbox Executor helper: it reads an ExecRequest as
// JSON on stdin, applies rlimits and a named seccomp policy, drops
// privileges to the requested uid/gid, redirects stdio to files, and
// execs the target program in place of itself. It never returns control
// to the caller on success — unix.Exec replaces this process image, and
// the parent (internal/sandbox/executor) observes the outcome through
// the usual wait4/rusage channel, exactly like any other child process.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"github.com/genuine-oj/judger/internal/sandbox/seccomppolicy"
	"github.com/genuine-oj/judger/internal/sandbox/spec"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	req, err := decodeRequest(os.Stdin)
	if err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	if req.WorkDir != "" {
		if err := os.Chdir(req.WorkDir); err != nil {
			return fmt.Errorf("chdir workdir: %w", err)
		}
	}
	if err := redirectIO(req); err != nil {
		return err
	}
	if err := applyRlimits(req.Limits); err != nil {
		return err
	}
	if req.SeccompRule != "" {
		if err := applySeccomp(req.SeccompRule); err != nil {
			return err
		}
	}
	if err := dropPrivileges(req.GID, req.UID); err != nil {
		return err
	}

	env := req.Env
	if len(env) == 0 {
		env = []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
	}
	cmdPath, err := exec.LookPath(req.Argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, req.Argv, env)
}

func decodeRequest(r io.Reader) (spec.ExecRequest, error) {
	var req spec.ExecRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return spec.ExecRequest{}, fmt.Errorf("decode exec request: %w", err)
	}
	return req, nil
}

func validate(req spec.ExecRequest) error {
	if len(req.Argv) == 0 {
		return fmt.Errorf("argv is required")
	}
	return nil
}

func redirectIO(req spec.ExecRequest) error {
	stdinPath := req.InputPath
	if stdinPath == "" {
		stdinPath = "/dev/null"
	}
	stdoutPath := req.OutputPath
	if stdoutPath == "" {
		stdoutPath = "/dev/null"
	}
	stderrPath := req.ErrorPath
	if stderrPath == "" {
		stderrPath = stdoutPath
	}

	stdinFile, err := os.Open(stdinPath)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	defer stdinFile.Close()
	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	defer stdoutFile.Close()

	var stderrFile *os.File
	if stderrPath == stdoutPath {
		stderrFile = stdoutFile
	} else {
		stderrFile, err = os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open stderr: %w", err)
		}
		defer stderrFile.Close()
	}

	if err := unix.Dup2(int(stdinFile.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("dup stdout: %w", err)
	}
	if err := unix.Dup2(int(stderrFile.Fd()), int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("dup stderr: %w", err)
	}
	return nil
}

// applyRlimits mirrors original_source/config.py's caps: CPU time,
// address space (the classic way to bound "memory" without cgroups),
// stack, output size via RLIMIT_FSIZE, and process count.
func applyRlimits(limits spec.ResourceLimit) error {
	if limits.MaxCPUTimeMs > 0 {
		seconds := uint64((limits.MaxCPUTimeMs + 999) / 1000)
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds}); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if limits.MaxMemoryBytes > 0 {
		mem := uint64(limits.MaxMemoryBytes)
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: mem, Max: mem}); err != nil {
			return fmt.Errorf("set rlimit as: %w", err)
		}
	}
	if limits.MaxStackBytes > 0 {
		stack := uint64(limits.MaxStackBytes)
		if err := unix.Setrlimit(unix.RLIMIT_STACK, &unix.Rlimit{Cur: stack, Max: stack}); err != nil {
			return fmt.Errorf("set rlimit stack: %w", err)
		}
	}
	if limits.MaxOutputBytes > 0 {
		out := uint64(limits.MaxOutputBytes)
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: out, Max: out}); err != nil {
			return fmt.Errorf("set rlimit fsize: %w", err)
		}
	}
	if limits.MaxProcessNumber > 0 {
		n := uint64(limits.MaxProcessNumber)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: n, Max: n}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	return nil
}

// dropPrivileges sets the group before the user, since once the uid is
// dropped the process typically lacks permission to change its gid.
func dropPrivileges(gid, uid int) error {
	if gid > 0 {
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("setgid: %w", err)
		}
	}
	if uid > 0 {
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("setuid: %w", err)
		}
	}
	return nil
}

func applySeccomp(ruleName string) error {
	policy, ok := seccomppolicy.Lookup(ruleName)
	if !ok {
		return fmt.Errorf("unknown seccomp rule: %s", ruleName)
	}
	defaultAction, err := toScmpAction(policy.DefaultAction)
	if err != nil {
		return err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, rule := range policy.Rules {
		for _, name := range rule.Names {
			if err := filter.AddRuleExact(name, seccomp.ActAllow); err != nil {
				return fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	return filter.Load()
}

func toScmpAction(a seccomppolicy.Action) (seccomp.ScmpAction, error) {
	switch a {
	case seccomppolicy.ActionAllow:
		return seccomp.ActAllow, nil
	case seccomppolicy.ActionKillProcess:
		return seccomp.ActKillProcess, nil
	default:
		return seccomp.ActKillProcess, fmt.Errorf("unsupported seccomp action: %s", a)
	}
}

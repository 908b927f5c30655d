// Package seccomppolicy names the syscall-filter policies the Sandbox
// Executor helper can load. The data here is policy *names and rules*,
// not the libseccomp wiring itself — only cmd/judger-init links against
// github.com/seccomp/libseccomp-golang; this package stays portable so
// the Compiler/Runner Driver can reference a rule by name without
// pulling in cgo.
package seccomppolicy

// Action mirrors the subset of libseccomp actions the policies below use.
type Action string

const (
	ActionAllow       Action = "SCMP_ACT_ALLOW"
	ActionKillProcess Action = "SCMP_ACT_KILL_PROCESS"
)

// Rule allows a named group of syscalls under a default-deny filter.
type Rule struct {
	Names []string
}

// Policy is a named, ordered set of allow rules under a kill-by-default
// filter. It never grants more than the general rule below: this repo
// defines no new seccomp policies (spec Non-goal), it only gives the
// teacher's "general" rule, named by `original_source/languages.py`'s
// `seccomp_rule: 'general'`, a concrete body.
type Policy struct {
	Name          string
	DefaultAction Action
	Rules         []Rule
}

// General is the default run-time policy: enough syscalls for a
// compiled C/C++ or interpreted program to read stdin, write stdout,
// allocate memory, and exit, nothing that reaches the network or
// manipulates other processes.
var General = Policy{
	Name:          "general",
	DefaultAction: ActionKillProcess,
	Rules: []Rule{
		{Names: []string{
			"read", "write", "readv", "writev", "pread64", "pwrite64",
			"open", "openat", "close", "fstat", "lseek", "dup", "dup2", "dup3",
			"mmap", "munmap", "mprotect", "brk", "madvise",
			"rt_sigaction", "rt_sigprocmask", "rt_sigreturn",
			"exit", "exit_group", "arch_prctl", "access",
			"execve", "set_tid_address", "set_robust_list",
			"getrandom", "clock_gettime", "gettimeofday", "fcntl", "ioctl",
			"getpid", "getuid", "geteuid", "getgid", "getegid",
			"prlimit64", "sigaltstack", "futex",
		}},
	},
}

// SPJ is the checker's policy: identical to General but kept as a
// distinct name so a checker-specific exception can be introduced later
// without touching user-code sandboxing. original_source/languages.py
// pins SPJ to the same 'general' rule; we mirror that 1:1.
var SPJ = Policy{
	Name:          "spj",
	DefaultAction: General.DefaultAction,
	Rules:         General.Rules,
}

// registry is the process-wide immutable table of named policies.
var registry = map[string]Policy{
	General.Name: General,
	SPJ.Name:     SPJ,
}

// Lookup resolves a rule name to its policy. An empty name means "no
// seccomp filter" and is handled by the caller, not here.
func Lookup(name string) (Policy, bool) {
	p, ok := registry[name]
	return p, ok
}

//go:build linux

package executor

import (
	"os"
	"syscall"

	"github.com/genuine-oj/judger/internal/sandbox/spec"
)

// fillRusage extracts CPU time and peak RSS from the finished child's
// resource usage, available on Linux via os.ProcessState.SysUsage().
func fillRusage(stats *spec.SandboxStats, state *os.ProcessState) {
	if state == nil {
		return
	}
	ru, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return
	}
	cpuMs := (ru.Utime.Sec+ru.Stime.Sec)*1000 + int64(ru.Utime.Usec+ru.Stime.Usec)/1000
	stats.CPUTimeMs = cpuMs
	stats.MemoryBytes = ru.Maxrss * 1024 // Maxrss is KB on Linux
}

// killSignal reports the terminating signal, if the child died from one.
func killSignal(state *os.ProcessState) (int, bool) {
	if state == nil {
		return 0, false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return int(status.Signal()), true
}

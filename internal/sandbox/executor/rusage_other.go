//go:build !linux

package executor

import (
	"os"

	"github.com/genuine-oj/judger/internal/sandbox/spec"
)

// fillRusage is a no-op off Linux: the sandbox helper itself is
// linux-only (cmd/judger-init), so this path only matters for building
// and unit-testing the executor package on a dev workstation.
func fillRusage(stats *spec.SandboxStats, state *os.ProcessState) {}

func killSignal(state *os.ProcessState) (int, bool) { return 0, false }

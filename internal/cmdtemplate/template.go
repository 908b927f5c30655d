// Package cmdtemplate expands the {placeholder} command templates used
// by both the Compiler and Runner Drivers, then tokenizes the result
// into argv with github.com/google/shlex — the same approach
// judge_service/internal/sandbox/runner/default_runner.go uses for its
// {src}/{bin}/{extraFlags} templates.
package cmdtemplate

import (
	"strings"

	"github.com/google/shlex"
)

// Vars holds every placeholder a compile or run command template may
// reference. Unused fields are simply never substituted.
type Vars struct {
	SrcPath        string
	ExePath        string
	InFilePath     string
	UserOutFilePath string
	AnswerFilePath string
}

// Expand substitutes every known placeholder present in tpl and splits
// the result into argv.
func Expand(tpl string, vars Vars) ([]string, error) {
	replacer := strings.NewReplacer(
		"{src_path}", vars.SrcPath,
		"{exe_path}", vars.ExePath,
		"{in_file_path}", vars.InFilePath,
		"{user_out_file_path}", vars.UserOutFilePath,
		"{answer_file_path}", vars.AnswerFilePath,
	)
	expanded := replacer.Replace(tpl)
	return shlex.Split(expanded)
}

// MergeEnv combines per-language environment overrides with the
// inherited PATH, matching spec.md §4.2/§4.3's `env = spec.env ∪
// PATH={inherited}`.
func MergeEnv(overrides map[string]string, inheritedPath string) []string {
	merged := make([]string, 0, len(overrides)+1)
	if _, ok := overrides["PATH"]; !ok {
		merged = append(merged, "PATH="+inheritedPath)
	}
	for k, v := range overrides {
		merged = append(merged, k+"="+v)
	}
	return merged
}

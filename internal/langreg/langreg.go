// Package langreg holds the Language Registry: a static mapping from
// language tag to {compile spec, run spec}, loaded once at startup and
// treated as an immutable table for the life of the process (spec.md
// §9 "Global mutable state").
package langreg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
)

// SPJLanguageID is the dedicated registry entry for the special-judge
// checker language, kept alongside the user-facing languages so the
// Compiler/Runner Drivers can treat it identically to any other entry.
const SPJLanguageID = "spj"

// CompileSpec describes how to turn source into an executable. A nil
// CompileSpec on a LanguageSpec means the source is interpreted in
// place: the Compiler Driver returns SUCCESS immediately.
type CompileSpec struct {
	SrcName        string            `yaml:"src_name"`
	ExeName        string            `yaml:"exe_name"`
	MaxCPUTimeMs   int64             `yaml:"max_cpu_time"`
	MaxRealTimeMs  int64             `yaml:"max_real_time"`
	MaxMemoryBytes int64             `yaml:"max_memory"`
	CommandTpl     string            `yaml:"compile_command"`
	Env            map[string]string `yaml:"env"`
}

// RunSpec describes how to invoke the compiled (or interpreted)
// program.
type RunSpec struct {
	CommandTpl  string            `yaml:"command"`
	SeccompRule string            `yaml:"seccomp_rule"`
	Env         map[string]string `yaml:"env"`
}

// LanguageSpec is one Language Registry entry.
type LanguageSpec struct {
	ID      string       `yaml:"-"`
	Compile *CompileSpec `yaml:"compile"`
	Run     RunSpec      `yaml:"run"`
}

// Registry is the process-wide, read-only language table.
type Registry struct {
	entries map[string]LanguageSpec
}

// Lookup resolves a language tag. Missing entries are reported as a
// coded error, not a bare Go error, so the Grader can translate it into
// a SYSTEM_ERROR final report per spec.md §7.
func (r *Registry) Lookup(tag string) (LanguageSpec, error) {
	spec, ok := r.entries[tag]
	if !ok {
		return LanguageSpec{}, pkgerrors.New(pkgerrors.LanguageNotSupported).WithDetail("language", tag)
	}
	return spec, nil
}

// SPJSpec returns the dedicated checker-compilation language entry.
func (r *Registry) SPJSpec() (LanguageSpec, error) {
	return r.Lookup(SPJLanguageID)
}

// rawFile is the on-disk YAML shape: a flat map from language tag to
// entry, matching original_source/languages.py's CONFIG dict.
type rawFile struct {
	Languages map[string]LanguageSpec `yaml:"languages"`
}

// Load reads the Language Registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.JudgeSystemError, "read language registry %s", path)
	}
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.JudgeSystemError, "parse language registry %s", path)
	}
	entries := make(map[string]LanguageSpec, len(raw.Languages))
	for id, spec := range raw.Languages {
		spec.ID = id
		entries[id] = spec
	}
	if _, ok := entries[SPJLanguageID]; !ok {
		return nil, fmt.Errorf("language registry %s is missing the %q entry", path, SPJLanguageID)
	}
	return &Registry{entries: entries}, nil
}

// NewStatic builds a Registry directly from a map, for tests and for
// callers that embed the table instead of loading YAML from disk.
func NewStatic(entries map[string]LanguageSpec) *Registry {
	cp := make(map[string]LanguageSpec, len(entries))
	for id, spec := range entries {
		spec.ID = id
		cp[id] = spec
	}
	return &Registry{entries: cp}
}

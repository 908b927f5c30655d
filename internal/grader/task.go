package grader

// TestCaseSpec is one entry of a task's ordered case list. When any
// entry in a Task carries a non-nil Subcheck, the task runs in subtask
// mode (spec.md §3).
type TestCaseSpec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Subcheck *int   `json:"subcheck,omitempty"`
}

// SubcheckGroup is one subtask group's configured score.
type SubcheckGroup struct {
	Score int `json:"score"`
}

// SubcheckConfig maps subcheck_id to its group's configured score.
type SubcheckConfig map[int]SubcheckGroup

// Limits is the caller-supplied per-task resource cap.
type Limits struct {
	MaxCPUTimeMs   int64 `json:"max_cpu_time"`
	MaxMemoryBytes int64 `json:"max_memory"`
}

// Task is one grading request, exactly spec.md §6's inbound JSON shape.
type Task struct {
	TaskID         string         `json:"task_id"`
	CaseBundleID   string         `json:"case_id"`
	SPJID          string         `json:"spj_id,omitempty"`
	TestCaseConfig []TestCaseSpec `json:"test_case_config"`
	SubcheckConfig SubcheckConfig `json:"subcheck_config"`
	SourceCode     string         `json:"code"`
	LanguageTag    string         `json:"lang"`
	Limit          Limits         `json:"limit"`

	// RetainDebug requests that this task's Work-Dir be archived before
	// it is removed (spec.md §4.11), overriding Config.RetainOnExit for
	// this task alone.
	RetainDebug bool `json:"retain_debug,omitempty"`
}

// SubtaskMode reports whether any case carries a subcheck id.
func (t *Task) SubtaskMode() bool {
	for _, c := range t.TestCaseConfig {
		if c.Subcheck != nil {
			return true
		}
	}
	return false
}

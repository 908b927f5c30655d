package grader

import "encoding/json"

// EventKind discriminates the three wire messages spec.md §6 defines.
type EventKind string

const (
	EventCompile EventKind = "compile"
	EventPart    EventKind = "part"
	EventFinal   EventKind = "final"
)

// CaseDetail is one entry of a final report's detail list.
type CaseDetail struct {
	CaseName   string         `json:"case_name"`
	Status     int            `json:"status"`
	Statistics CaseStatistics `json:"statistics"`
	Subcheck   *int           `json:"subcheck,omitempty"`
}

// CaseStatistics is the per-case timing/memory/exit-code triple.
type CaseStatistics struct {
	Time     int64 `json:"time"`
	Memory   int64 `json:"memory"`
	ExitCode int   `json:"exit_code"`
}

// FinalStatistics is the task-level max time/memory pair.
type FinalStatistics struct {
	MaxTime   int64 `json:"max_time"`
	MaxMemory int64 `json:"max_memory"`
}

// TaskEvent is the Go-native sum type behind the event stream: exactly
// one populated payload per Kind.
type TaskEvent struct {
	Kind EventKind

	// EventCompile
	CompileLog string

	// EventPart
	PartTestCase string
	PartOutput   string // base64
	PartStatus   int

	// EventFinal
	FinalStatus     int
	FinalScore      int
	FinalStatistics FinalStatistics
	FinalLog        string
	FinalDetail     []CaseDetail
}

// MarshalJSON renders each event kind in exactly the shape spec.md §6
// documents — a flat object with a "type" discriminant, no envelope.
func (e TaskEvent) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventCompile:
		return json.Marshal(struct {
			Type string `json:"type"`
			Data string `json:"data"`
		}{Type: string(EventCompile), Data: e.CompileLog})
	case EventPart:
		return json.Marshal(struct {
			Type     string `json:"type"`
			TestCase string `json:"test_case"`
			Output   string `json:"output"`
			Status   int    `json:"status"`
		}{Type: string(EventPart), TestCase: e.PartTestCase, Output: e.PartOutput, Status: e.PartStatus})
	case EventFinal:
		return json.Marshal(struct {
			Type       string          `json:"type"`
			Status     int             `json:"status"`
			Score      int             `json:"score"`
			Statistics FinalStatistics `json:"statistics"`
			Log        string          `json:"log"`
			Detail     []CaseDetail    `json:"detail"`
		}{
			Type:       string(EventFinal),
			Status:     e.FinalStatus,
			Score:      e.FinalScore,
			Statistics: e.FinalStatistics,
			Log:        e.FinalLog,
			Detail:     e.FinalDetail,
		})
	default:
		return json.Marshal(struct{}{})
	}
}

// EventSink receives the event stream the Grader emits. Transport
// adapters (internal/transport) implement this; the Grader never knows
// which transport, if any, is attached.
type EventSink interface {
	Emit(TaskEvent) error
	// Close signals end of stream (the sentinel spec.md §6 describes
	// following the final event).
	Close() error
}

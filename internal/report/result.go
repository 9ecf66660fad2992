package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/toolshim/pkg/logging"
)

// Mode is the runner variant that produced a Result.
type Mode string

const (
	ModeFixed   Mode = "fixed"
	ModeDynamic Mode = "dynamic"
)

// Outcome is how the guarded call ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"   // entry point returned
	OutcomeIntercepted Outcome = "intercepted" // entry point asked to exit
	OutcomeToolFailed  Outcome = "tool_failed" // entry point returned an error or panicked
)

// State is a step of the invocation lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateGuardsInstalled State = "guards-installed"
	StateInvoking        State = "invoking"
	StateIntercepted     State = "intercepted"
	StateCompleted       State = "completed"
	StateToolFailed      State = "tool-failed"
	StateGuardsRemoved   State = "guards-removed"
)

// Event is one lifecycle transition.
type Event struct {
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// Result is the record of one invocation. Finish is called once; after that
// the Result is not modified.
type Result struct {
	ID     string   `json:"id"`
	Tool   string   `json:"tool"`
	Bundle string   `json:"bundle,omitempty"`
	Entry  string   `json:"entry,omitempty"`
	Mode   Mode     `json:"mode"`
	Args   []string `json:"args"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	ExitCode    int     `json:"exit_code"`
	Intercepted bool    `json:"intercepted"`
	Outcome     Outcome `json:"outcome"`
	Error       string  `json:"error,omitempty"`

	Events []Event `json:"events"`
}

// NewResult starts the record of an invocation
func NewResult(tool string, mode Mode, args []string) *Result {
	return &Result{
		ID:        uuid.NewString(),
		Tool:      tool,
		Mode:      mode,
		Args:      append([]string(nil), args...),
		StartTime: time.Now(),
	}
}

// AddEvent appends a lifecycle event
func (r *Result) AddEvent(state State, message string) {
	r.Events = append(r.Events, Event{State: state, Timestamp: time.Now(), Message: message})
}

// Finish freezes the outcome. A tool error wins over an intercepted exit:
// the tool failed before or while asking to stop.
func (r *Result) Finish(exitCode int, intercepted bool, err error) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.ExitCode = exitCode
	r.Intercepted = intercepted

	switch {
	case err != nil:
		r.Outcome = OutcomeToolFailed
		r.Error = err.Error()
	case intercepted:
		r.Outcome = OutcomeIntercepted
	default:
		r.Outcome = OutcomeCompleted
	}
}

// LogSummary emits a one-line summary of the invocation
func (r *Result) LogSummary(log *logging.Logger) {
	fields := map[string]interface{}{
		"id":          r.ID,
		"tool":        r.Tool,
		"mode":        string(r.Mode),
		"outcome":     string(r.Outcome),
		"exit":        r.ExitCode,
		"intercepted": r.Intercepted,
		"runtime":     r.Duration.String(),
	}
	if r.Error != "" {
		fields["error"] = r.Error
		log.Warn("invocation finished", fields)
		return
	}
	log.Info("invocation finished", fields)
}

package wrapper

import (
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/pkg/logging"
)

// idle -> guards-installed -> invoking -> (intercepted|completed|tool-failed)
// -> guards-removed -> idle. A call whose streams cannot be set up goes
// straight from guards-installed to guards-removed. Nothing else.
var transitions = map[report.State][]report.State{
	report.StateIdle:            {report.StateGuardsInstalled},
	report.StateGuardsInstalled: {report.StateInvoking, report.StateGuardsRemoved},
	report.StateInvoking:        {report.StateIntercepted, report.StateCompleted, report.StateToolFailed},
	report.StateIntercepted:     {report.StateGuardsRemoved},
	report.StateCompleted:       {report.StateGuardsRemoved},
	report.StateToolFailed:      {report.StateGuardsRemoved},
	report.StateGuardsRemoved:   {report.StateIdle},
}

// lifecycle walks one invocation through its states and records every
// transition on the result.
type lifecycle struct {
	state  report.State
	result *report.Result
	log    *logging.Logger
}

func newLifecycle(result *report.Result, log *logging.Logger) *lifecycle {
	return &lifecycle{state: report.StateIdle, result: result, log: log}
}

func (l *lifecycle) to(next report.State, message string) {
	if !allowed(l.state, next) {
		// record it anyway; a wrong event is better than a missing one
		l.log.Warn("unexpected lifecycle transition", map[string]interface{}{
			"id":   l.result.ID,
			"from": string(l.state),
			"to":   string(next),
		})
	}
	l.state = next
	l.result.AddEvent(next, message)
}

// started reports whether the guard was ever installed for this invocation
func (l *lifecycle) started() bool {
	return len(l.result.Events) > 0
}

func allowed(from, to report.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

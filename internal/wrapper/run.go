package wrapper

// The host MUST outlive the tool.
// Whatever the tool does, the guard comes off and the streams go back.

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/stdio"
	"github.com/psantana5/toolshim/pkg/logging"
	"github.com/psantana5/toolshim/pkg/tracing"
)

// ErrBusy is returned when another invocation holds the process-wide guard.
var ErrBusy = fmt.Errorf("invocation already in flight: %w", exitguard.ErrActive)

// Run invokes a fixed entry point with the host's own stdout and stderr.
//
// A termination request from the tool is a normal return; its code is in
// the result. Any other failure, a panic included, is returned together
// with the result. Stdout is shielded so a tool that closes it does not
// close the host's.
func Run(ctx context.Context, name string, main bundle.Main, args []string) (*report.Result, error) {
	ctx, span := tracing.Tracer("toolshim/wrapper").Start(ctx, "invoke "+name,
		trace.WithAttributes(
			attribute.String("tool", name),
			attribute.String("mode", string(report.ModeFixed)),
		))
	defer span.End()

	result := report.NewResult(name, report.ModeFixed, args)
	log := logging.Default().WithField("id", result.ID)
	lc := newLifecycle(result, log)

	var setupErr error
	exit, toolErr := exitguard.Trap(func() error {
		lc.to(report.StateGuardsInstalled, "")
		restore, err := stdio.Shield()
		if err != nil {
			setupErr = err
			return err
		}
		defer restore()

		streams := stdio.Streams{
			Stdout: stdio.Unclosable(os.Stdout),
			Stderr: stdio.Unclosable(os.Stderr),
		}
		report.Global().IncrStarted(report.ModeFixed)
		lc.to(report.StateInvoking, name)
		return main(ctx, streams, args)
	})

	if !lc.started() {
		tracing.SetError(ctx, toolErr)
		return nil, ErrBusy
	}
	if setupErr != nil {
		abandon(ctx, lc, setupErr)
		return nil, fmt.Errorf("shield stdout: %w", setupErr)
	}

	finish(ctx, lc, exit, toolErr)
	if toolErr != nil {
		return result, toolErr
	}
	return result, nil
}

// abandon records a call whose streams could not be set up. The tool never
// ran; the failure still counts.
func abandon(ctx context.Context, lc *lifecycle, err error) {
	lc.to(report.StateGuardsRemoved, err.Error())
	lc.to(report.StateIdle, "")
	lc.result.Finish(0, false, err)
	tracing.SetError(ctx, err)

	report.Global().RecordResult(lc.result)
	report.GlobalFailures().Record(lc.result)
	lc.result.LogSummary(lc.log)
}

// finish records the outcome of a call that got past setup.
func finish(ctx context.Context, lc *lifecycle, exit *exitguard.ExitError, toolErr error) {
	result := lc.result
	code, intercepted := 0, exit != nil
	if intercepted {
		code = exit.Code
	}
	result.Finish(code, intercepted, toolErr)

	switch result.Outcome {
	case report.OutcomeToolFailed:
		lc.to(report.StateToolFailed, toolErr.Error())
		tracing.SetError(ctx, toolErr)
	case report.OutcomeIntercepted:
		lc.to(report.StateIntercepted, exit.Error())
		tracing.AddEvent(ctx, "exit intercepted", attribute.Int("exit_code", code))
	default:
		lc.to(report.StateCompleted, "")
	}
	lc.to(report.StateGuardsRemoved, "")
	lc.to(report.StateIdle, "")

	report.Global().RecordResult(result)
	report.GlobalFailures().Record(result)
	result.LogSummary(lc.log)

	var pe *exitguard.PanicError
	if errors.As(toolErr, &pe) {
		lc.log.Debug("tool panicked", map[string]interface{}{"stack": string(pe.Stack)})
	}
}

package wrapper

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

// MainRequest names an entry point and where its output goes.
type MainRequest struct {
	Bundle  string   `json:"bundle"`
	Entry   string   `json:"entry"`
	OutPath string   `json:"out"`
	ErrPath string   `json:"err"`
	Args    []string `json:"args"`
}

// Launcher runs entry points chosen at call time.
type Launcher struct {
	Cache *bundle.Cache
}

// NewLauncher creates a launcher resolving through cache
func NewLauncher(cache *bundle.Cache) *Launcher {
	return &Launcher{Cache: cache}
}

// RunMain resolves the entry point, sends the process's stdout and stderr to
// the request's files and calls it.
//
// Resolution and file errors are returned before anything is redirected.
// A tool failure is written to the error file and the call still returns
// normally; the result carries the outcome.
func (l *Launcher) RunMain(ctx context.Context, req MainRequest) (*report.Result, error) {
	ctx, span := tracing.Tracer("toolshim/wrapper").Start(ctx, "run_main",
		trace.WithAttributes(
			attribute.String("bundle", req.Bundle),
			attribute.String("entry", req.Entry),
			attribute.String("mode", string(report.ModeDynamic)),
		))
	defer span.End()

	main, err := l.Cache.Resolve(req.Bundle, req.Entry)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	out, err := os.Create(req.OutPath)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	errFile, err := os.Create(req.ErrPath)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("open error output: %w", err)
	}

	tool := req.Entry
	if tool == "" {
		tool = req.Bundle
	}
	result := report.NewResult(tool, report.ModeDynamic, req.Args)
	result.Bundle, result.Entry = req.Bundle, req.Entry
	log := logging.Default().WithField("id", result.ID)
	lc := newLifecycle(result, log)

	defer closeAll(log, out, errFile)

	var setupErr error
	exit, toolErr := exitguard.Trap(func() error {
		lc.to(report.StateGuardsInstalled, "")
		restore, err := stdio.Redirect(out, errFile)
		if err != nil {
			setupErr = err
			return err
		}
		defer restore()

		streams := stdio.Streams{
			Stdout: stdio.Unclosable(out),
			Stderr: stdio.Unclosable(errFile),
		}
		report.Global().IncrStarted(report.ModeDynamic)
		lc.to(report.StateInvoking, req.Bundle+" "+req.Entry)
		return main(ctx, streams, req.Args)
	})

	if !lc.started() {
		tracing.SetError(ctx, toolErr)
		return nil, ErrBusy
	}
	if setupErr != nil {
		abandon(ctx, lc, setupErr)
		return nil, fmt.Errorf("redirect output: %w", setupErr)
	}

	if toolErr != nil {
		writeFailure(log, errFile, toolErr)
	}
	finish(ctx, lc, exit, toolErr)
	return result, nil
}

// writeFailure puts a tool failure in the error file, where callers look
// for it. A panic's stack follows the message.
func writeFailure(log *logging.Logger, errFile *os.File, toolErr error) {
	msg := []byte(toolErr.Error() + "\n")
	var pe *exitguard.PanicError
	if errors.As(toolErr, &pe) {
		msg = append(msg, pe.Stack...)
	}
	if _, err := errFile.Write(msg); err != nil {
		log.Error("failed to write tool failure", map[string]interface{}{
			"file":       errFile.Name(),
			"error":      err.Error(),
			"tool_error": toolErr.Error(),
		})
	}
}

// closeAll closes files; errors are logged, never returned over the outcome.
func closeAll(log *logging.Logger, files ...*os.File) {
	for _, f := range files {
		if err := f.Close(); err != nil {
			log.Warn("close failed", map[string]interface{}{"file": f.Name(), "error": err.Error()})
		}
	}
}

package wrapper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/stdio"
)

// captureStdout points os.Stdout at a temp file for the duration of the test
func captureStdout(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	saved := os.Stdout
	os.Stdout = f
	t.Cleanup(func() {
		os.Stdout = saved
		f.Close()
	})
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func states(r *report.Result) []string {
	var out []string
	for _, e := range r.Events {
		out = append(out, string(e.State))
	}
	return out
}

func TestRunInterceptsExitAndKeepsStdout(t *testing.T) {
	f := captureStdout(t)

	main := func(ctx context.Context, streams stdio.Streams, args []string) error {
		fmt.Fprintf(streams.Stdout, "compiled %s\n", strings.Join(args, " "))
		streams.Stdout.Close()
		os.Stdout.Close()
		exitguard.Exit(0)
		return nil
	}

	result, err := Run(context.Background(), "closure", main, []string{"a.js"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != report.OutcomeIntercepted || result.ExitCode != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if os.Stdout != f {
		t.Fatal("stdout not restored")
	}
	if _, err := fmt.Fprintln(os.Stdout, "host"); err != nil {
		t.Fatalf("host stdout closed by tool: %v", err)
	}
	if got := readFile(t, f.Name()); got != "compiled a.js\nhost\n" {
		t.Errorf("stdout = %q", got)
	}

	want := "guards-installed invoking intercepted guards-removed idle"
	if got := strings.Join(states(result), " "); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
	if exitguard.Installed() {
		t.Error("guard left installed")
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	captureStdout(t)
	result, err := Run(context.Background(), "soy", func(ctx context.Context, s stdio.Streams, a []string) error {
		exitguard.Exit(2)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ExitCode != 2 || !result.Intercepted {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRunReturnsPanic(t *testing.T) {
	f := captureStdout(t)
	result, err := Run(context.Background(), "closure", func(ctx context.Context, s stdio.Streams, a []string) error {
		panic("compiler bug")
	}, nil)

	var pe *exitguard.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
	if result == nil || result.Outcome != report.OutcomeToolFailed {
		t.Fatalf("unexpected result %+v", result)
	}
	if os.Stdout != f || exitguard.Installed() {
		t.Error("cleanup skipped after panic")
	}
}

func TestRunBusy(t *testing.T) {
	captureStdout(t)
	if err := exitguard.Install(); err != nil {
		t.Fatalf("install: %v", err)
	}
	defer exitguard.Remove()

	called := false
	_, err := Run(context.Background(), "closure", func(ctx context.Context, s stdio.Streams, a []string) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, exitguard.ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	if called {
		t.Error("tool ran while another invocation held the guard")
	}
}

func TestRunShieldFailureIsRecorded(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no dup on windows")
	}
	f := captureStdout(t)
	f.Close()
	before := report.GlobalFailures().Count()

	called := false
	_, err := Run(context.Background(), "closure", func(ctx context.Context, s stdio.Streams, a []string) error {
		called = true
		return nil
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "shield stdout") {
		t.Fatalf("expected shield error, got %v", err)
	}
	if called {
		t.Error("tool ran without a shielded stdout")
	}
	if report.GlobalFailures().Count() != before+1 {
		t.Error("setup failure not recorded")
	}
	if os.Stdout != f || exitguard.Installed() {
		t.Error("cleanup skipped after setup failure")
	}
}

func newTestLauncher(tools bundle.Static) *Launcher {
	reg := bundle.NewRegistry()
	reg.Register("builtin", tools)
	return NewLauncher(bundle.NewCache(reg.Open))
}

func TestRunMainRedirectsOutput(t *testing.T) {
	dir := t.TempDir()
	launcher := newTestLauncher(bundle.Static{
		"echo": func(ctx context.Context, streams stdio.Streams, args []string) error {
			fmt.Fprint(os.Stdout, "via os.Stdout;")
			fmt.Fprint(streams.Stdout, strings.Join(args, ","))
			fmt.Fprint(os.Stderr, "warning")
			exitguard.Exit(4)
			return nil
		},
	})
	savedOut, savedErr := os.Stdout, os.Stderr

	req := MainRequest{
		Bundle:  "builtin",
		Entry:   "echo",
		OutPath: filepath.Join(dir, "out.txt"),
		ErrPath: filepath.Join(dir, "err.txt"),
		Args:    []string{"a", "b"},
	}
	result, err := launcher.RunMain(context.Background(), req)
	if err != nil {
		t.Fatalf("run main: %v", err)
	}
	if os.Stdout != savedOut || os.Stderr != savedErr {
		t.Fatal("streams not restored")
	}
	if result.ExitCode != 4 || result.Mode != report.ModeDynamic || result.Entry != "echo" {
		t.Errorf("unexpected result %+v", result)
	}
	if got := readFile(t, req.OutPath); got != "via os.Stdout;a,b" {
		t.Errorf("out = %q", got)
	}
	if got := readFile(t, req.ErrPath); got != "warning" {
		t.Errorf("err = %q", got)
	}
}

func TestRunMainToolFailureGoesToErrFile(t *testing.T) {
	dir := t.TempDir()
	launcher := newTestLauncher(bundle.Static{
		"fail": func(ctx context.Context, streams stdio.Streams, args []string) error {
			return errors.New("bad input")
		},
	})

	req := MainRequest{
		Bundle:  "builtin",
		Entry:   "fail",
		OutPath: filepath.Join(dir, "out"),
		ErrPath: filepath.Join(dir, "err"),
	}
	result, err := launcher.RunMain(context.Background(), req)
	if err != nil {
		t.Fatalf("expected normal return, got %v", err)
	}
	if result.Outcome != report.OutcomeToolFailed {
		t.Errorf("outcome = %s", result.Outcome)
	}
	if got := readFile(t, req.ErrPath); !strings.Contains(got, "bad input") {
		t.Errorf("err file = %q", got)
	}
	if exitguard.Installed() {
		t.Error("guard left installed")
	}
}

func TestRunMainFailureSurvivesClosedStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no dup on windows")
	}
	dir := t.TempDir()
	launcher := newTestLauncher(bundle.Static{
		"crash": func(ctx context.Context, streams stdio.Streams, args []string) error {
			os.Stderr.WriteString("partial\n")
			os.Stderr.Close()
			os.Stdout.Close()
			return errors.New("compiler crashed")
		},
	})
	savedErr := os.Stderr

	req := MainRequest{
		Bundle:  "builtin",
		Entry:   "crash",
		OutPath: filepath.Join(dir, "out"),
		ErrPath: filepath.Join(dir, "err"),
	}
	result, err := launcher.RunMain(context.Background(), req)
	if err != nil {
		t.Fatalf("expected normal return, got %v", err)
	}
	if result.Outcome != report.OutcomeToolFailed {
		t.Errorf("outcome = %s", result.Outcome)
	}
	if os.Stderr != savedErr {
		t.Fatal("stderr not restored")
	}
	if got := readFile(t, req.ErrPath); got != "partial\ncompiler crashed\n" {
		t.Errorf("err file = %q", got)
	}
}

func TestRunMainResolveErrorOpensNothing(t *testing.T) {
	dir := t.TempDir()
	launcher := newTestLauncher(bundle.Static{})

	req := MainRequest{
		Bundle:  "builtin",
		Entry:   "missing",
		OutPath: filepath.Join(dir, "out"),
		ErrPath: filepath.Join(dir, "err"),
	}
	_, err := launcher.RunMain(context.Background(), req)

	var re *bundle.ResolveError
	if !errors.As(err, &re) || !errors.Is(err, bundle.ErrEntryNotFound) {
		t.Fatalf("expected resolve error, got %v", err)
	}
	if _, err := os.Stat(req.OutPath); !os.IsNotExist(err) {
		t.Error("output file created for an unresolved entry point")
	}
}

func TestRunMainBadErrPath(t *testing.T) {
	dir := t.TempDir()
	launcher := newTestLauncher(bundle.Static{
		"noop": func(ctx context.Context, s stdio.Streams, a []string) error { return nil },
	})

	_, err := launcher.RunMain(context.Background(), MainRequest{
		Bundle:  "builtin",
		Entry:   "noop",
		OutPath: filepath.Join(dir, "out"),
		ErrPath: filepath.Join(dir, "no", "such", "dir", "err"),
	})
	if err == nil || !strings.Contains(err.Error(), "open error output") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	if !allowed(report.StateInvoking, report.StateToolFailed) {
		t.Error("invoking -> tool-failed should be allowed")
	}
	if !allowed(report.StateGuardsInstalled, report.StateGuardsRemoved) {
		t.Error("a failed setup must be able to remove the guards")
	}
	if allowed(report.StateIdle, report.StateInvoking) {
		t.Error("idle -> invoking skips the guard")
	}
}

package bundle

// A child is a tool like any other: its exit status is a termination
// request and goes through exitguard.Exit.

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/observe"
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/stdio"
	"github.com/psantana5/toolshim/pkg/logging"
	"github.com/psantana5/toolshim/pkg/retry"
)

// ExecConfig controls how exec bundles start their child processes.
type ExecConfig struct {
	Java           string   // java launcher for .jar bundles
	JavaOpts       []string // extra launcher flags, e.g. -Xmx1g
	Timeout        time.Duration
	SampleInterval time.Duration
	Logger         *logging.Logger
}

// ExecOpener opens bundles that run in a child process: .jar archives
// started with the java launcher, and plain executables.
func ExecOpener(cfg ExecConfig) Opener {
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return func(location string) (Bundle, error) {
		info, err := os.Stat(location)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, location)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidBundle, location)
		}

		if strings.EqualFold(filepath.Ext(location), ".jar") {
			return openJar(cfg, location)
		}
		if info.Mode().Perm()&0o111 == 0 {
			return nil, fmt.Errorf("%w: %s is not executable", ErrInvalidBundle, location)
		}
		return &execBundle{cfg: cfg, path: location}, nil
	}
}

type jarBundle struct {
	cfg     ExecConfig
	path    string
	classes map[string]struct{}
}

// openJar reads the archive's table of contents once; lookups use it.
func openJar(cfg ExecConfig, path string) (*jarBundle, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBundle, path, err)
	}
	defer zr.Close()

	classes := make(map[string]struct{})
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".class") {
			classes[f.Name] = struct{}{}
		}
	}
	cfg.Logger.Debug("jar opened", map[string]interface{}{
		"path":    path,
		"classes": len(classes),
	})
	return &jarBundle{cfg: cfg, path: path, classes: classes}, nil
}

// Lookup resolves a fully qualified class name.
func (j *jarBundle) Lookup(class string) (Main, error) {
	entry := strings.ReplaceAll(class, ".", "/") + ".class"
	if _, ok := j.classes[entry]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, class)
	}

	tool := class[strings.LastIndex(class, ".")+1:]
	return func(ctx context.Context, streams stdio.Streams, args []string) error {
		argv := append([]string{}, j.cfg.JavaOpts...)
		argv = append(argv, "-cp", j.path, class)
		argv = append(argv, args...)
		return j.cfg.run(ctx, tool, j.cfg.Java, argv, streams)
	}, nil
}

type execBundle struct {
	cfg  ExecConfig
	path string
}

// Lookup resolves entry in a plain executable. "" and "main" run it as is;
// any other entry is passed as the first argument, for multi-call binaries.
func (e *execBundle) Lookup(entry string) (Main, error) {
	tool := filepath.Base(e.path)
	var lead []string
	if entry != "" && entry != "main" {
		tool += ":" + entry
		lead = []string{entry}
	}
	return func(ctx context.Context, streams stdio.Streams, args []string) error {
		argv := append(append([]string{}, lead...), args...)
		return e.cfg.run(ctx, tool, e.path, argv, streams)
	}, nil
}

// run starts the child, waits for it and hands its status to exitguard.Exit.
// Only a failure to start or a cancelled context is returned as an error.
func (c ExecConfig) run(ctx context.Context, tool, name string, argv []string, streams stdio.Streams) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	err := retry.Do(ctx, retry.DefaultConfig(), retry.IsRetryable, func() error {
		cmd = exec.CommandContext(ctx, name, argv...)
		cmd.Stdout = streams.Stdout
		cmd.Stderr = streams.Stderr
		setProcessGroup(cmd)
		return cmd.Start()
	})
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	pid := cmd.Process.Pid
	c.Logger.Debug("child started", map[string]interface{}{"tool": tool, "pid": pid})

	watcher := observe.New(pid, c.SampleInterval)
	watcher.Start(ctx)
	waitErr := cmd.Wait()
	stats := watcher.Stop()
	if stats.Samples > 0 {
		report.Global().ObservePeakRSS(tool, stats.PeakRSS)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", tool, ctx.Err())
	}

	code := 0
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
		if code < 0 {
			return fmt.Errorf("%s: %s", tool, exitErr.ProcessState.String())
		}
	} else if waitErr != nil {
		return fmt.Errorf("%s: %w", tool, waitErr)
	}

	c.Logger.Debug("child exited", map[string]interface{}{
		"tool":     tool,
		"pid":      pid,
		"exit":     code,
		"runtime":  stats.Runtime.String(),
		"peak_rss": stats.PeakRSS,
	})
	exitguard.Exit(code)
	return nil
}

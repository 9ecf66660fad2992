package repl

// One invocation at a time. The guard is process-wide.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.starlark.net/repl"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/tools"
	"github.com/psantana5/toolshim/internal/wrapper"
)

// Session is a scripting host that calls tools from Starlark.
type Session struct {
	mu sync.Mutex

	ctx      context.Context
	tools    *tools.Toolchain
	launcher *wrapper.Launcher

	thread  *starlark.Thread
	globals starlark.StringDict
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// New creates a session. print() output goes to out.
func New(ctx context.Context, tc *tools.Toolchain, launcher *wrapper.Launcher, out io.Writer) *Session {
	s := &Session{
		ctx:      ctx,
		tools:    tc,
		launcher: launcher,
		globals:  make(starlark.StringDict),
	}
	s.thread = &starlark.Thread{
		Name: "toolshim",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out, msg)
		},
	}
	return s
}

// Builtins are the functions predeclared in every script.
func (s *Session) Builtins() starlark.StringDict {
	return starlark.StringDict{
		"compile_js":  starlark.NewBuiltin("compile_js", s.compileJS),
		"compile_soy": starlark.NewBuiltin("compile_soy", s.compileSoy),
		"run_main":    starlark.NewBuiltin("run_main", s.runMain),
		"run_tool":    starlark.NewBuiltin("run_tool", s.runTool),
		"tools":       starlark.NewBuiltin("tools", s.listTools),
		"failures":    starlark.NewBuiltin("failures", s.failures),
		"metrics":     starlark.NewBuiltin("metrics", s.metrics),
		"cache_stats": starlark.NewBuiltin("cache_stats", s.cacheStats),
	}
}

// Exec runs a script. src is a filename's contents as string or []byte, or
// nil to read filename. Globals it defines stay visible to later calls.
func (s *Session) Exec(filename string, src interface{}) (starlark.StringDict, error) {
	predeclared := s.Builtins()
	for k, v := range s.globals {
		predeclared[k] = v
	}
	globals, err := starlark.ExecFileOptions(fileOptions, s.thread, filename, src, predeclared)
	for k, v := range globals {
		s.globals[k] = v
	}
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return globals, fmt.Errorf("%s", evalErr.Backtrace())
		}
		return globals, err
	}
	return globals, nil
}

// Interactive reads statements from the terminal until EOF.
func (s *Session) Interactive() {
	globals := s.Builtins()
	for k, v := range s.globals {
		globals[k] = v
	}
	repl.REPLOptions(fileOptions, s.thread, globals)
}

// invoke serializes calls into the runner.
func (s *Session) invoke(fn func() (*report.Result, error)) (starlark.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := fn()
	if err != nil {
		return nil, err
	}
	return resultDict(result), nil
}

func (s *Session) compileJS(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	argv, err := stringArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	return s.invoke(func() (*report.Result, error) {
		return s.tools.CompileJS(s.ctx, argv)
	})
}

func (s *Session) compileSoy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	argv, err := stringArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}
	return s.invoke(func() (*report.Result, error) {
		return s.tools.CompileSoy(s.ctx, argv)
	})
}

// run_tool(name, *args)
func (s *Session) runTool(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing tool name", b.Name())
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: tool name must be a string, got %s", b.Name(), args[0].Type())
	}
	argv, err := stringArgs(b.Name(), args[1:], kwargs)
	if err != nil {
		return nil, err
	}
	return s.invoke(func() (*report.Result, error) {
		return s.tools.Run(s.ctx, name, argv)
	})
}

// run_main(bundle, entry, out, err, args=[])
func (s *Session) runMain(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var req wrapper.MainRequest
	var list starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"bundle", &req.Bundle,
		"entry", &req.Entry,
		"out", &req.OutPath,
		"err", &req.ErrPath,
		"args?", &list,
	); err != nil {
		return nil, err
	}
	if list != nil {
		var err error
		if req.Args, err = iterStrings(b.Name(), list); err != nil {
			return nil, err
		}
	}
	return s.invoke(func() (*report.Result, error) {
		return s.launcher.RunMain(s.ctx, req)
	})
}

func (s *Session) listTools(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	var out []starlark.Value
	for _, t := range s.tools.List() {
		out = append(out, toValue(map[string]any{
			"name":   t.Name,
			"bundle": t.Bundle,
			"entry":  t.Entry,
		}))
	}
	return starlark.NewList(out), nil
}

// failures(n=10)
func (s *Session) failures(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 10
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	var out []starlark.Value
	for _, f := range report.GlobalFailures().GetRecent(n) {
		out = append(out, toValue(map[string]any{
			"id":       f.ID,
			"tool":     f.Tool,
			"mode":     string(f.Mode),
			"error":    f.Error,
			"duration": f.Duration,
		}))
	}
	return starlark.NewList(out), nil
}

func (s *Session) metrics(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	text, err := report.Export()
	if err != nil {
		return nil, err
	}
	return starlark.String(text), nil
}

func (s *Session) cacheStats(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	st := s.launcher.Cache.Stats()
	return toValue(map[string]any{
		"loads":   st.Loads,
		"hits":    st.Hits,
		"misses":  st.Misses,
		"entries": s.launcher.Cache.Len(),
	}), nil
}

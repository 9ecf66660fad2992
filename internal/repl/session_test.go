package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/config"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/stdio"
	"github.com/psantana5/toolshim/internal/tools"
	"github.com/psantana5/toolshim/internal/wrapper"
)

func newSession(t *testing.T, out *bytes.Buffer) *Session {
	t.Helper()
	reg := bundle.NewRegistry()
	reg.Register("compiler.jar", bundle.Static{
		tools.CompilerClass: func(ctx context.Context, s stdio.Streams, args []string) error {
			if len(args) > 0 && args[0] == "--bad" {
				return errors.New("unknown flag --bad")
			}
			exitguard.Exit(len(args))
			return nil
		},
	})
	reg.Register("echo", bundle.Static{
		"main": func(ctx context.Context, s stdio.Streams, args []string) error {
			s.Stdout.Write([]byte(strings.Join(args, " ")))
			return nil
		},
	})
	cache := bundle.NewCache(reg.Open)
	tc := tools.New(cache, &config.Config{CompilerJar: "compiler.jar"})
	return New(context.Background(), tc, wrapper.NewLauncher(cache), out)
}

func TestCompileJSFromScript(t *testing.T) {
	var out bytes.Buffer
	s := newSession(t, &out)

	globals, err := s.Exec("build.star", `
r = compile_js("--js", "a.js")
print(r["outcome"], r["exit_code"])
listed = compile_js(["x"])
`)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "intercepted 2" {
		t.Errorf("print output = %q", got)
	}
	d := globals["listed"].(*starlark.Dict)
	code, _, _ := d.Get(starlark.String("exit_code"))
	if n, err := starlark.AsInt32(code); err != nil || n != 1 {
		t.Errorf("list form exit_code = %v", code)
	}
}

func TestToolFailureIsScriptError(t *testing.T) {
	s := newSession(t, &bytes.Buffer{})
	_, err := s.Exec("fail.star", `compile_js("--bad")`)
	if err == nil || !strings.Contains(err.Error(), "unknown flag --bad") {
		t.Fatalf("expected tool error in script, got %v", err)
	}
}

func TestRunMainFromScript(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out")
	errPath := filepath.Join(dir, "err")

	s := newSession(t, &bytes.Buffer{})
	s.globals["out_path"] = starlark.String(outPath)
	s.globals["err_path"] = starlark.String(errPath)

	if _, err := s.Exec("run.star", `r = run_main("echo", "main", out_path, err_path, ["hello", "world"])`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	data, _ := os.ReadFile(outPath)
	if string(data) != "hello world" {
		t.Errorf("out = %q", data)
	}

	// globals persist across Exec calls
	if _, err := s.Exec("next.star", `assert_ok = r["outcome"] == "completed"`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if s.globals["assert_ok"] != starlark.True {
		t.Error("previous result not visible or not completed")
	}
}

func TestIntrospectionBuiltins(t *testing.T) {
	var out bytes.Buffer
	s := newSession(t, &out)

	_, err := s.Exec("info.star", `
print(len(tools()))
print(type(failures()))
print("toolshim_" in metrics())
print(cache_stats()["loads"] >= 0)
`)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := strings.Fields(out.String()); strings.Join(got, " ") != "1 list True True" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestStringArgsRejectsNonStrings(t *testing.T) {
	_, err := stringArgs("f", starlark.Tuple{starlark.MakeInt(1)}, nil)
	if err == nil {
		t.Fatal("expected error for int argument")
	}
}

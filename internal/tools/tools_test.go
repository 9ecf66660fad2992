package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/config"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/stdio"
)

func TestNewRegistersConfiguredTools(t *testing.T) {
	tc := New(nil, &config.Config{
		CompilerJar: "/opt/compiler.jar",
		Tools:       map[string]config.ToolConfig{"css": {Bundle: "/opt/css.jar", Entry: "Css"}},
	})

	list := tc.List()
	if len(list) != 2 || list[0].Name != Compiler || list[1].Name != "css" {
		t.Fatalf("unexpected tools %+v", list)
	}
	if list[0].Entry != CompilerClass {
		t.Errorf("compiler entry = %s", list[0].Entry)
	}
	if _, err := tc.Tool(Templates); err == nil {
		t.Error("templates tool present without a jar")
	}
}

func TestCompileJSRunsFixedEntryPoint(t *testing.T) {
	var gotArgs []string
	reg := bundle.NewRegistry()
	reg.Register("compiler.jar", bundle.Static{
		CompilerClass: func(ctx context.Context, streams stdio.Streams, args []string) error {
			gotArgs = args
			exitguard.Exit(0)
			return nil
		},
	})

	f, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	saved := os.Stdout
	os.Stdout = f
	defer func() { os.Stdout = saved }()

	tc := New(bundle.NewCache(reg.Open), &config.Config{CompilerJar: "compiler.jar"})
	result, err := tc.CompileJS(context.Background(), []string{"--js", "a.js"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[1] != "a.js" {
		t.Errorf("args = %v", gotArgs)
	}
	if !result.Intercepted || result.Entry != CompilerClass {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestCompileSoyUnresolved(t *testing.T) {
	tc := New(bundle.NewCache(bundle.NewRegistry().Open), &config.Config{TemplatesJar: "soy.jar"})
	_, err := tc.CompileSoy(context.Background(), nil)

	var re *bundle.ResolveError
	if !errors.As(err, &re) || !errors.Is(err, bundle.ErrUnknownBundle) {
		t.Fatalf("expected resolve error, got %v", err)
	}
}

func TestBuiltins(t *testing.T) {
	reg := bundle.NewRegistry()
	reg.Register(BuiltinBundle, Builtins())
	cache := bundle.NewCache(reg.Open)

	main, err := cache.Resolve(BuiltinBundle, "exit")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	exit, err := exitguard.Trap(func() error {
		return main(context.Background(), stdio.Streams{}, []string{"7"})
	})
	if err != nil || exit == nil || exit.Code != 7 {
		t.Fatalf("expected exit 7, got %v %v", exit, err)
	}

	_, err = exitguard.Trap(func() error {
		return main(context.Background(), stdio.Streams{}, []string{"seven"})
	})
	if err == nil {
		t.Error("expected error for a non-numeric code")
	}
}

package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/config"
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/wrapper"
)

// Fixed entry points of the Closure tools.
const (
	CompilerClass  = "com.google.javascript.jscomp.CommandLineRunner"
	TemplatesClass = "com.google.template.soy.SoyToJsSrcCompiler"
)

// Names of the two built-in tools.
const (
	Compiler  = "closure"
	Templates = "soy"
)

// Tool is a named entry point in a bundle.
type Tool struct {
	Name   string `json:"name"`
	Bundle string `json:"bundle"`
	Entry  string `json:"entry"`
}

// Toolchain resolves and runs the configured tools.
type Toolchain struct {
	Cache *bundle.Cache
	tools map[string]Tool
}

// New builds the toolchain from cfg. The Closure tools are present only
// when their jar is configured.
func New(cache *bundle.Cache, cfg *config.Config) *Toolchain {
	tc := &Toolchain{Cache: cache, tools: make(map[string]Tool)}
	if cfg.CompilerJar != "" {
		tc.tools[Compiler] = Tool{Name: Compiler, Bundle: cfg.CompilerJar, Entry: CompilerClass}
	}
	if cfg.TemplatesJar != "" {
		tc.tools[Templates] = Tool{Name: Templates, Bundle: cfg.TemplatesJar, Entry: TemplatesClass}
	}
	for name, t := range cfg.Tools {
		tc.tools[name] = Tool{Name: name, Bundle: t.Bundle, Entry: t.Entry}
	}
	return tc
}

// Tool returns the named tool
func (tc *Toolchain) Tool(name string) (Tool, error) {
	t, ok := tc.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("unknown tool %q", name)
	}
	return t, nil
}

// List returns the configured tools sorted by name
func (tc *Toolchain) List() []Tool {
	list := make([]Tool, 0, len(tc.tools))
	for _, t := range tc.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Run invokes the named tool with the host's stdout and stderr.
func (tc *Toolchain) Run(ctx context.Context, name string, args []string) (*report.Result, error) {
	t, err := tc.Tool(name)
	if err != nil {
		return nil, err
	}
	main, err := tc.Cache.Resolve(t.Bundle, t.Entry)
	if err != nil {
		return nil, err
	}
	result, err := wrapper.Run(ctx, t.Name, main, args)
	if result != nil {
		result.Bundle, result.Entry = t.Bundle, t.Entry
	}
	return result, err
}

// CompileJS runs the Closure Compiler's command line runner.
func (tc *Toolchain) CompileJS(ctx context.Context, args []string) (*report.Result, error) {
	return tc.Run(ctx, Compiler, args)
}

// CompileSoy runs the Closure Templates Soy to JS compiler.
func (tc *Toolchain) CompileSoy(ctx context.Context, args []string) (*report.Result, error) {
	return tc.Run(ctx, Templates, args)
}

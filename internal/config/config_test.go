package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Java != "java" || cfg.Serve.Addr != "127.0.0.1:8089" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Invoke.SampleInterval != 100*time.Millisecond {
		t.Errorf("sample interval = %v", cfg.Invoke.SampleInterval)
	}
}

func TestLoadExample(t *testing.T) {
	v := New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(ExampleConfig)); err != nil {
		t.Fatalf("read example: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Invoke.Timeout != 5*time.Minute {
		t.Errorf("timeout = %v", cfg.Invoke.Timeout)
	}
	if len(cfg.JavaOpts) != 1 || cfg.JavaOpts[0] != "-Xmx1g" {
		t.Errorf("java opts = %v", cfg.JavaOpts)
	}
	tool, ok := cfg.Tools["stylesheets"]
	if !ok || !strings.HasSuffix(tool.Bundle, "closure-stylesheets.jar") {
		t.Errorf("tools = %+v", cfg.Tools)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TOOLSHIM_LOG_LEVEL", "debug")
	t.Setenv("TOOLSHIM_COMPILER_JAR", "/tmp/compiler.jar")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.CompilerJar != "/tmp/compiler.jar" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Java: "java", Tools: map[string]ToolConfig{"x": {Entry: "Main"}}}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "tools.x.bundle") {
		t.Errorf("expected missing bundle error, got %v", err)
	}
	half := &Config{Java: "java", Serve: ServeConfig{TLS: TLSConfig{Cert: "c.pem"}}}
	if err := half.Validate(); err == nil {
		t.Error("expected error for cert without key")
	}
	if err := (&Config{}).Validate(); err == nil {
		t.Error("expected error for empty java")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, _ := Load(New())
	cfg.Invoke.Timeout = 30 * time.Second

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(string(out), "timeout: 30s") {
		t.Errorf("duration not rendered as text:\n%s", out)
	}

	var back map[string]interface{}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("output is not yaml: %v", err)
	}
}

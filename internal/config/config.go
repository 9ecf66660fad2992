package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the effective toolshim configuration.
type Config struct {
	Java         string                `mapstructure:"java" yaml:"java"`
	JavaOpts     []string              `mapstructure:"java_opts" yaml:"java_opts"`
	CompilerJar  string                `mapstructure:"compiler_jar" yaml:"compiler_jar"`
	TemplatesJar string                `mapstructure:"templates_jar" yaml:"templates_jar"`
	Tools        map[string]ToolConfig `mapstructure:"tools" yaml:"tools,omitempty"`
	Invoke       InvokeConfig          `mapstructure:"invoke" yaml:"invoke"`
	Log          LogConfig             `mapstructure:"log" yaml:"log"`
	Serve        ServeConfig           `mapstructure:"serve" yaml:"serve"`
	Tracing      TracingConfig         `mapstructure:"tracing" yaml:"tracing"`
}

// ToolConfig names an extra tool: a bundle location and its entry point.
type ToolConfig struct {
	Bundle string `mapstructure:"bundle" yaml:"bundle"`
	Entry  string `mapstructure:"entry" yaml:"entry"`
}

type InvokeConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 = none
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	JSON    bool   `mapstructure:"json" yaml:"json"`
	File    bool   `mapstructure:"file" yaml:"file"`
	Journal bool   `mapstructure:"journal" yaml:"journal"`
}

type ServeConfig struct {
	Addr         string          `mapstructure:"addr" yaml:"addr"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	APIKeyHashes []string        `mapstructure:"api_key_hashes" yaml:"api_key_hashes,omitempty"` // bcrypt
	TLS          TLSConfig       `mapstructure:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Cert     string `mapstructure:"cert" yaml:"cert,omitempty"`
	Key      string `mapstructure:"key" yaml:"key,omitempty"`
	ClientCA string `mapstructure:"client_ca" yaml:"client_ca,omitempty"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// EnvPrefix prefixes environment overrides: TOOLSHIM_LOG_LEVEL=debug.
const EnvPrefix = "TOOLSHIM"

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("java", "java")
	v.SetDefault("java_opts", []string{})
	v.SetDefault("compiler_jar", "")
	v.SetDefault("templates_jar", "")
	v.SetDefault("invoke.timeout", time.Duration(0))
	v.SetDefault("invoke.sample_interval", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", false)
	v.SetDefault("log.journal", false)
	v.SetDefault("serve.addr", "127.0.0.1:8089")
	v.SetDefault("serve.rate_limit.rps", 5.0)
	v.SetDefault("serve.rate_limit.burst", 10)
	v.SetDefault("serve.api_key_hashes", []string{})
	v.SetDefault("serve.tls.cert", "")
	v.SetDefault("serve.tls.key", "")
	v.SetDefault("serve.tls.client_ca", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
}

// BindEnv enables TOOLSHIM_* overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would only fail later, mid-invocation.
func (c *Config) Validate() error {
	if c.Java == "" {
		return fmt.Errorf("invalid config: java must not be empty")
	}
	if c.Invoke.Timeout < 0 {
		return fmt.Errorf("invalid config: invoke.timeout must not be negative")
	}
	for name, t := range c.Tools {
		if t.Bundle == "" {
			return fmt.Errorf("invalid config: tools.%s.bundle is required", name)
		}
	}
	if (c.Serve.TLS.Cert == "") != (c.Serve.TLS.Key == "") {
		return fmt.Errorf("invalid config: serve.tls.cert and serve.tls.key go together")
	}
	if c.Serve.RateLimit.RPS < 0 || c.Serve.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid config: serve.rate_limit must not be negative")
	}
	return nil
}

// YAML renders the configuration as it would appear in a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ExampleConfig is printed by `toolshim config example`.
const ExampleConfig = `# toolshim configuration ($HOME/.toolshim/config.yaml)
java: java
java_opts: ["-Xmx1g"]

# Closure Compiler and Closure Templates jars
compiler_jar: /opt/closure/compiler.jar
templates_jar: /opt/closure/SoyToJsSrcCompiler.jar

# extra tools, invoked with "toolshim run-main" or from the REPL
tools:
  stylesheets:
    bundle: /opt/closure/closure-stylesheets.jar
    entry: com.google.common.css.compiler.commandline.ClosureCommandLineCompiler

invoke:
  timeout: 5m
  sample_interval: 100ms

log:
  level: info
  json: false
  file: false
  journal: false

serve:
  addr: 127.0.0.1:8089
  rate_limit:
    rps: 5
    burst: 10
  # bcrypt hashes from "toolshim config gen-key"; empty = no auth
  api_key_hashes: []
  tls:
    cert: ""
    key: ""
    client_ca: ""

tracing:
  enabled: false
  endpoint: localhost:4318
`

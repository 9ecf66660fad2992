package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/config"
	"github.com/psantana5/toolshim/internal/tools"
	"github.com/psantana5/toolshim/internal/wrapper"
	"github.com/psantana5/toolshim/pkg/logging"
	"github.com/psantana5/toolshim/pkg/tracing"
)

var (
	cfgFile      string
	logLevel     string
	jsonLogs     bool
	outputFormat string

	v   = config.New()
	cfg *config.Config

	// exitCode is the status the process ends with after a tool ran
	exitCode int
)

// version is set at build time
var version = "dev"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "toolshim",
	Short: "Run main-style compiler tools without letting them end the host",
	Long: `toolshim invokes command-line tools such as the Closure Compiler and the
Closure Templates compiler in-process, intercepting their termination request
and protecting the host's standard output, so a long-lived host (REPL, HTTP
server, build script) can call them over and over.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode returns the exit status of the last tool run by a command
func ExitCode() int {
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.toolshim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		v.AddConfigPath(filepath.Join(home, ".toolshim"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil && cfgFile != "" {
		// an explicit file must exist; the default one is optional
		fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the process logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if jsonLogs {
		cfg.Log.JSON = true
	}

	level := logging.ParseLevel(cfg.Log.Level)
	logger := logging.NewLogger(level, cfg.Log.JSON)
	if cfg.Log.File {
		fileLogger, err := logging.NewFileLogger("toolshim", cmd.Name(), level, cfg.Log.JSON)
		if err != nil {
			logger.Warn("file logging disabled", map[string]interface{}{"error": err.Error()})
		} else {
			logger = fileLogger
		}
	}
	if cfg.Log.Journal {
		if err := logger.EnableJournal(); err != nil {
			logger.Warn("journal logging disabled", map[string]interface{}{"error": err.Error()})
		}
	}
	logging.SetDefault(logger)

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", map[string]interface{}{"file": used})
	}
	return nil
}

// app is everything a tool-running command needs.
type app struct {
	cache    *bundle.Cache
	registry *bundle.Registry
	tools    *tools.Toolchain
	launcher *wrapper.Launcher
	tracer   *tracing.Provider
}

// newApp wires bundles, cache, toolchain and tracing from cfg.
func newApp() (*app, error) {
	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "toolshim",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}

	registry := bundle.NewRegistry()
	registry.Register(tools.BuiltinBundle, tools.Builtins())

	open := bundle.Chain(
		registry.Open,
		bundle.ExecOpener(bundle.ExecConfig{
			Java:           cfg.Java,
			JavaOpts:       cfg.JavaOpts,
			Timeout:        cfg.Invoke.Timeout,
			SampleInterval: cfg.Invoke.SampleInterval,
			Logger:         logging.Default(),
		}),
	)
	cache := bundle.NewCache(open)

	return &app{
		cache:    cache,
		registry: registry,
		tools:    tools.New(cache, cfg),
		launcher: wrapper.NewLauncher(cache),
		tracer:   tracer,
	}, nil
}

// Close flushes pending spans
func (a *app) Close() {
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		logging.Default().Warn("tracer shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

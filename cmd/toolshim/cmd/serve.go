package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/api"
	"github.com/psantana5/toolshim/pkg/auth"
	"github.com/psantana5/toolshim/pkg/logging"
	"github.com/psantana5/toolshim/pkg/ratelimit"
	"github.com/psantana5/toolshim/pkg/shutdown"
	tlsutil "github.com/psantana5/toolshim/pkg/tls"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tool invocations over HTTP",
	Long: `Starts the HTTP host:

  GET  /healthz
  GET  /tools
  POST /tools/{name}/invoke   {"args": [...]}
  GET  /failures?n=10
  GET  /metrics

Invocations are serialized; requests are rate limited per client.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config serve.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Default()
	a, err := newApp()
	if err != nil {
		return err
	}

	addr := cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var limiter *ratelimit.Limiter
	if cfg.Serve.RateLimit.RPS > 0 {
		limiter = ratelimit.NewLimiter(cfg.Serve.RateLimit.RPS, cfg.Serve.RateLimit.Burst)
	}
	keys := auth.NewKeySet(cfg.Serve.APIKeyHashes)
	if !keys.Enabled() {
		log.Warn("no serve.api_key_hashes configured, API is unauthenticated")
	}

	handler := api.NewHandler(a.tools, a.launcher, log)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, keys, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	useTLS := cfg.Serve.TLS.Cert != ""
	if useTLS {
		server.TLSConfig, err = tlsutil.LoadServerConfig(cfg.Serve.TLS.Cert, cfg.Serve.TLS.Key, cfg.Serve.TLS.ClientCA)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mgr := shutdown.New(30 * time.Second)
	mgr.Register("tracer", func(ctx context.Context) error {
		return a.tracer.Shutdown(ctx)
	})
	mgr.Register("http", shutdown.StopHTTPServer(server))

	if limiter != nil {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := limiter.CleanupOldLimiters(10 * time.Minute); n > 0 {
						log.Debug("rate limiters expired", map[string]interface{}{"count": n})
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("toolshim listening", map[string]interface{}{"addr": addr, "tls": useTLS})
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	go func() {
		if err, ok := <-errCh; ok {
			serveErr = err
			cancel()
		}
	}()

	if err := mgr.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	return nil
}

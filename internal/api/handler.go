package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/tools"
	"github.com/psantana5/toolshim/internal/wrapper"
	"github.com/psantana5/toolshim/pkg/auth"
	"github.com/psantana5/toolshim/pkg/logging"
	"github.com/psantana5/toolshim/pkg/ratelimit"
	"github.com/psantana5/toolshim/pkg/tracing"
)

// maxBodyBytes caps an invoke request body
const maxBodyBytes = 1 << 20

// Handler serves tool invocations over HTTP. Invocations are serialized:
// the guard is process-wide.
type Handler struct {
	mu       sync.Mutex
	tools    *tools.Toolchain
	launcher *wrapper.Launcher
	logger   *logging.Logger
}

// InvokeRequest is the body of POST /tools/{name}/invoke
type InvokeRequest struct {
	Args []string `json:"args"`
}

// InvokeResponse carries the result and everything the tool wrote.
type InvokeResponse struct {
	Result  *report.Result `json:"result"`
	Stdout  string         `json:"stdout"`
	Stderr  string         `json:"stderr"`
	Summary report.Summary `json:"summary"`
}

// NewHandler creates a new API handler
func NewHandler(tc *tools.Toolchain, launcher *wrapper.Launcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{tools: tc, launcher: launcher, logger: logger}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.HandleFunc("/tools", h.ListTools).Methods("GET")
	r.HandleFunc("/tools/{name}/invoke", h.Invoke).Methods("POST")
	r.HandleFunc("/failures", h.ListFailures).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(report.Registry, promhttp.HandlerOpts{})).Methods("GET")
}

// NewRouter wires the handler behind tracing, API key checks (when keys is
// set) and per-client rate limiting (when limiter is set).
func NewRouter(h *Handler, keys *auth.KeySet, limiter *ratelimit.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(tracing.HTTPMiddleware("toolshim-api"))
	if limiter != nil {
		router.Use(limiter.Middleware(ratelimit.ClientKeyFunc))
	}
	if keys != nil {
		router.Use(keys.Middleware("/healthz"))
	}
	h.RegisterRoutes(router)
	return router
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"guard_held":  exitguard.Installed(),
		"cached_main": h.launcher.Cache.Len(),
	})
}

// ListTools handles GET /tools
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tools.List())
}

// ListFailures handles GET /failures?n=10
func (h *Handler) ListFailures(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, fmt.Sprintf("Invalid n: %q", v), http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, report.GlobalFailures().GetRecent(n))
}

// Invoke handles POST /tools/{name}/invoke. The tool runs with its output
// sent to temporary files, which are returned in the response.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	t, err := h.tools.Tool(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var req InvokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}

	dir, err := os.MkdirTemp("", "toolshim-invoke-")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create work dir: %v", err), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	mainReq := wrapper.MainRequest{
		Bundle:  t.Bundle,
		Entry:   t.Entry,
		OutPath: filepath.Join(dir, "stdout"),
		ErrPath: filepath.Join(dir, "stderr"),
		Args:    req.Args,
	}

	h.mu.Lock()
	result, err := h.launcher.RunMain(r.Context(), mainReq)
	h.mu.Unlock()
	if err != nil {
		h.logger.Warn("invoke failed", map[string]interface{}{"tool": name, "error": err.Error()})
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	result.Tool = name

	stdout, _ := os.ReadFile(mainReq.OutPath)
	stderr, _ := os.ReadFile(mainReq.ErrPath)
	writeJSON(w, http.StatusOK, InvokeResponse{
		Result:  result,
		Stdout:  string(stdout),
		Stderr:  string(stderr),
		Summary: report.ParseSummary(string(stderr)),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exitguard.ErrActive):
		return http.StatusConflict
	case errors.Is(err, bundle.ErrBundleNotFound),
		errors.Is(err, bundle.ErrEntryNotFound),
		errors.Is(err, bundle.ErrUnknownBundle):
		return http.StatusNotFound
	case errors.Is(err, bundle.ErrInvalidBundle):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package web serves the condor status page, the removal controller and a
// small JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gurneyalex/cubicweb-condor/internal/condor"
	"github.com/gurneyalex/cubicweb-condor/internal/model"
	"github.com/gurneyalex/cubicweb-condor/internal/reconcile"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
)

// Condor is the subset of condor.Client used by the web layer.
type Condor interface {
	Status(ctx context.Context) condor.Result
	Queue(ctx context.Context) condor.Result
	Remove(ctx context.Context, jobID string) condor.Result
	JobIDs(ctx context.Context) []string
}

// Executions lists tracked execution records.
type Executions interface {
	List(ctx context.Context, states ...string) ([]model.Execution, error)
}

// Reconciler runs stale execution passes and exposes the suspicious set.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.Report, error)
	Candidates() []string
	LastPass() time.Time
}

// Options configures a Server. Executions and Reconciler may be nil, in
// which case the matching API endpoints answer 503.
type Options struct {
	Condor     Condor
	Executions Executions
	Reconciler Reconciler
	Log        utils.Logger

	Username     string
	PasswordHash string  // bcrypt; empty disables authentication
	RemoveRate   float64 // removals per minute per client; <= 0 disables limiting

	// ReconcileSpacing is the minimum time between the previous pass and a
	// pass requested through the API. Zero allows back-to-back passes.
	ReconcileSpacing time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	condor     Condor
	executions Executions
	reconciler Reconciler
	log        utils.Logger
	spacing    time.Duration
	now        func() time.Time

	reconcileMu sync.Mutex // serializes API passes with the spacing check

	auth    *basicAuth
	limiter *rateLimiter
	handler http.Handler
}

// NewServer creates a Server and its routes.
func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = utils.Console{}
	}
	s := &Server{
		condor:     opts.Condor,
		executions: opts.Executions,
		reconciler: opts.Reconciler,
		log:        log,
		spacing:    opts.ReconcileSpacing,
		now:        time.Now,
	}
	if opts.PasswordHash != "" {
		s.auth = &basicAuth{username: opts.Username, hash: []byte(opts.PasswordHash)}
	}
	if opts.RemoveRate > 0 {
		s.limiter = newRateLimiter(opts.RemoveRate)
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	var h http.Handler = mux
	if s.auth != nil {
		h = s.auth.wrap(h)
	}
	s.handler = noStore(h)
	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleJobs)
	mux.HandleFunc("/do_condor_remove", s.handleRemove)

	mux.HandleFunc("/api/v1/queue", s.handleQueueAPI)
	mux.HandleFunc("/api/v1/executions", s.handleExecutionsAPI)
	mux.HandleFunc("/api/v1/reconcile", s.handleReconcileAPI)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Debugf("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func noStore(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		h.ServeHTTP(w, r)
	})
}

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Errorf("Error encoding JSON response: %v", err)
		}
	}
}

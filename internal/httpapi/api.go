// Package httpapi exposes the broadcast scheduler over HTTP: job CRUD,
// pause/resume, number validation, transport and clock status, and the
// websocket event stream.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"wablast/internal/clock"
	"wablast/internal/lifecycle"
	"wablast/internal/transport"
	logx "wablast/pkg/logx"
)

//go:generate go run go.uber.org/mock/mockgen -package=httpapi -destination=service_mock_test.go wablast/internal/httpapi Service

// Service is the job lifecycle as seen by the handlers.
type Service interface {
	Create(ctx context.Context, req lifecycle.CreateRequest) (lifecycle.CreateResult, error)
	List(ctx context.Context) ([]lifecycle.Detail, error)
	Cancel(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	StartValidation(ctx context.Context, numbers []string) (string, error)
	Groups(ctx context.Context) ([]transport.Group, error)
	Connected() bool
}

// TimeSource reports the clock correction.
type TimeSource interface {
	Status() clock.Status
}

type Options struct {
	Service Service
	Time    TimeSource   // optional
	Events  http.Handler // websocket endpoint; optional
	Log     logx.Logger
}

type handlers struct {
	svc  Service
	time TimeSource
	log  logx.Logger
}

// New returns the routed handler.
func New(opts Options) http.Handler {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{svc: opts.Service, time: opts.Time, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /api/jobs", h.createJob)
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.cancelJob)
	mux.HandleFunc("POST /api/jobs/{id}/pause", h.pauseJob)
	mux.HandleFunc("POST /api/jobs/{id}/resume", h.resumeJob)
	mux.HandleFunc("POST /api/validate-numbers", h.validateNumbers)
	mux.HandleFunc("GET /api/groups", h.listGroups)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/time-status", h.timeStatus)
	if opts.Events != nil {
		mux.Handle("GET /ws", opts.Events)
	}
	return recoverer(log, accessLog(log, mux))
}

// NewServer wraps handler in an http.Server with the given timeouts. Zero
// write timeout is kept so the websocket stays open.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

// Package server exposes the pipeline stages over HTTP and on a cron
// schedule. Runs are serialized: a scheduled sync and an HTTP trigger never
// execute at the same time inside one process.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/koustreak/rostersync/internal/config"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/pipeline"
)

// Job is one triggerable unit of work.
type Job func(ctx context.Context) pipeline.Outcome

// Jobs are the runs the server can trigger.
type Jobs struct {
	Extract Job
	Load    Job
	Sync    Job
}

// Server serves the trigger API and owns the cron scheduler.
type Server struct {
	cfg  config.ServerConfig
	jobs Jobs
	log  *logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// New builds a Server. A non-empty schedule registers Sync on it; an
// invalid expression is ErrKindInvalidInput.
func New(cfg config.ServerConfig, schedule string, jobs Jobs, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Global()
	}
	s := &Server{cfg: cfg, jobs: jobs, log: log}

	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	if schedule != "" {
		_, err := s.cron.AddFunc(schedule, func() {
			s.trigger(context.Background(), "sync", s.jobs.Sync)
		})
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid cron schedule "+schedule, err)
		}
		log.With().Str("schedule", schedule).Logger().Info("sync scheduled")
	}
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/extract", s.handle("extract", s.jobs.Extract))
		r.Post("/load", s.handle("load", s.jobs.Load))
		r.Post("/sync", s.handle("sync", s.jobs.Sync))
	})
	return r
}

func (s *Server) handle(name string, job Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := s.trigger(r.Context(), name, job)
		status := http.StatusOK
		if !out.OK() {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, out)
	}
}

// trigger runs job while holding the run lock.
func (s *Server) trigger(ctx context.Context, name string, job Job) pipeline.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out := job(ctx)
	s.log.With().
		Str("trigger", name).
		Str("status", out.Status).
		Str("elapsed", time.Since(start).String()).
		Logger().
		Info("run finished")
	return out
}

// Run starts the scheduler and serves HTTP until ctx is cancelled, then
// shuts both down within cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.cron.Start()
	defer func() { <-s.cron.Stop().Done() }()

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("trigger API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errs.Wrap(errs.ErrKindConnectionFailed, "trigger API stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("shutting down trigger API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "trigger API shutdown", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWith("cron: "+msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.ErrorWith("cron: "+msg, err, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}

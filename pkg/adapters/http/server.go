// Package http exposes package analysis as an asynchronous REST API. A
// submitted run is accepted immediately and executed in the background; the
// caller polls the run resource for the verdict.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/packhound/packhound/internal/logging"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

// Analyzer runs one full investigation. The returned state carries whatever
// was committed, even when err is non-nil.
type Analyzer interface {
	Analyze(ctx context.Context, packageName string, units []domain.SourceUnit) (*domain.AnalysisState, error)
}

// Server handles the REST API over an Analyzer and a RunStore.
type Server struct {
	analyzer Analyzer
	store    ports.RunStore
	logger   *slog.Logger

	// runTimeout bounds each background analysis.
	runTimeout time.Duration

	// locker, when set, serializes run execution across replicas sharing a
	// store.
	locker ports.DistributedLocker

	// metrics is mounted at /metrics when set.
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunTimeout bounds background analyses.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithMetricsHandler mounts a metrics endpoint at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLocker serializes run execution across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Server) { s.locker = l }
}

// NewHandler creates the HTTP handler for the API.
func NewHandler(analyzer Analyzer, store ports.RunStore, opts ...Option) http.Handler {
	s := &Server{
		analyzer:   analyzer,
		store:      store,
		logger:     logging.NewNop(),
		runTimeout: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
		r.Delete("/{id}", s.deleteRun)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRunRequest struct {
	PackageName string              `json:"package_name"`
	SourceUnits []domain.SourceUnit `json:"source_units"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRun accepts the submission, stores a pending record and runs the
// analysis on its own goroutine with a detached context.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.PackageName == "" {
		http.Error(w, "package_name is required", http.StatusBadRequest)
		return
	}
	if len(body.SourceUnits) == 0 {
		http.Error(w, "source_units must not be empty", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	rec := &domain.RunRecord{
		ID:          uuid.NewString(),
		PackageName: body.PackageName,
		Status:      domain.RunPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(r.Context(), rec); err != nil {
		s.logger.Error("failed to store run", "error", err)
		http.Error(w, "Failed to store run", http.StatusInternalServerError)
		return
	}

	go s.execute(rec.ID, body.PackageName, body.SourceUnits)

	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) execute(id, packageName string, units []domain.SourceUnit) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, id, s.runTimeout)
		if err != nil {
			s.updateStatus(ctx, id, func(rec *domain.RunRecord) {
				rec.Status = domain.RunFailed
				rec.Error = "failed to acquire run lock: " + err.Error()
			})
			return
		}
		defer func() { _ = unlock(context.Background()) }()
	}

	s.updateStatus(ctx, id, func(rec *domain.RunRecord) {
		rec.Status = domain.RunRunning
	})

	state, err := s.analyzer.Analyze(ctx, packageName, units)

	s.updateStatus(ctx, id, func(rec *domain.RunRecord) {
		rec.State = state
		if err != nil {
			rec.Status = domain.RunFailed
			rec.Error = err.Error()
			return
		}
		rec.Status = domain.RunComplete
	})
	if err != nil {
		s.logger.Error("analysis failed", "run_id", id, "package", packageName, "error", err)
	}
}

func (s *Server) updateStatus(ctx context.Context, id string, mutate func(*domain.RunRecord)) {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		s.logger.Error("failed to load run for update", "run_id", id, "error", err)
		return
	}
	mutate(rec)
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("failed to update run", "run_id", id, "error", err)
	}
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Load(r.Context(), id); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete run", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

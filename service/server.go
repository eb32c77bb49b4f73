package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/flowdeploy/deploy"
	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/health"
	"github.com/c360/flowdeploy/metric"
	"github.com/c360/flowdeploy/nifi"
	"github.com/c360/flowdeploy/targetstore"
)

// Engine is the deployment surface the HTTP layer exposes. *deploy.Engine
// satisfies it.
type Engine interface {
	Deploy(ctx context.Context, targetID string, req deploy.DeploymentRequest) (*deploy.DeploymentOutcome, *deploy.DeploymentConflict, error)
	ResolveConflict(ctx context.Context, targetID string, req deploy.DeploymentRequest, conflict deploy.DeploymentConflict, action deploy.ConflictAction) (*deploy.DeploymentOutcome, error)
	SyncParameters(ctx context.Context, targetID, contextID string, desired []nifi.Parameter) (*deploy.SyncResult, error)
	DeployBatch(ctx context.Context, targetID string, units []deploy.PairedDeploymentUnit) (*deploy.BatchResult, error)
	BatchResult(runID string) (*deploy.BatchResult, bool)
	OnBatchEvent(fn func(deploy.BatchEvent))
}

// Catalog is the target and template administration surface.
// *targetstore.Store satisfies it.
type Catalog interface {
	CreateTarget(ctx context.Context, record *targetstore.TargetRecord) error
	GetTargetRecord(ctx context.Context, id string) (*targetstore.TargetRecord, error)
	ListTargets(ctx context.Context) ([]*targetstore.TargetRecord, error)
	DeleteTarget(ctx context.Context, id string) error

	CreateTemplate(ctx context.Context, record *targetstore.TemplateRecord) error
	ListTemplates(ctx context.Context) ([]*targetstore.TemplateRecord, error)
	DeleteTemplate(ctx context.Context, name string) error
}

// Server is the caller-facing HTTP service.
type Server struct {
	engine  Engine
	catalog Catalog
	metrics *metric.MetricsRegistry
	monitor *health.Monitor
	logger  *slog.Logger
	hub     *batchHub
}

// NewServer creates the HTTP service and subscribes its websocket hub to the
// engine's batch events. Metrics and monitor may be nil.
func NewServer(engine Engine, catalog Catalog, metrics *metric.MetricsRegistry, monitor *health.Monitor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		catalog: catalog,
		metrics: metrics,
		monitor: monitor,
		logger:  logger,
		hub:     newBatchHub(logger),
	}
	engine.OnBatchEvent(s.hub.broadcast)
	return s
}

// Routes builds the request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/deploy", s.handleDeploy)
	mux.HandleFunc("POST /api/deploy/resolve", s.handleResolveConflict)
	mux.HandleFunc("POST /api/parameters/sync", s.handleSyncParameters)
	mux.HandleFunc("POST /api/batch", s.handleDeployBatch)
	mux.HandleFunc("GET /api/batch/{id}", s.handleGetBatch)

	mux.HandleFunc("GET /api/targets", s.handleListTargets)
	mux.HandleFunc("POST /api/targets", s.handleCreateTarget)
	mux.HandleFunc("GET /api/targets/{id}", s.handleGetTarget)
	mux.HandleFunc("DELETE /api/targets/{id}", s.handleDeleteTarget)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("DELETE /api/templates/{name}", s.handleDeleteTemplate)

	mux.HandleFunc("GET /ws/batch", s.hub.handleSocket)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}

// DeployRequest is the POST /api/deploy body.
type DeployRequest struct {
	TargetID string                   `json:"target_id"`
	Request  deploy.DeploymentRequest `json:"request"`
}

// DeployResponse reports either an outcome or a conflict awaiting
// resolution, never both.
type DeployResponse struct {
	Outcome  *deploy.DeploymentOutcome  `json:"outcome,omitempty"`
	Conflict *deploy.DeploymentConflict `json:"conflict,omitempty"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		s.writeJSONError(w, "target_id is required", http.StatusBadRequest)
		return
	}

	outcome, conflict, err := s.engine.Deploy(r.Context(), req.TargetID, req.Request)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if conflict != nil {
		// 409 carries the conflict description; the caller picks an action
		// and calls /api/deploy/resolve.
		w.WriteHeader(http.StatusConflict)
		s.writeJSON(w, DeployResponse{Conflict: conflict})
		return
	}
	s.writeJSON(w, DeployResponse{Outcome: outcome})
}

// ResolveConflictRequest is the POST /api/deploy/resolve body: the original
// request, the conflict as returned by deploy, and the chosen action.
type ResolveConflictRequest struct {
	TargetID string                    `json:"target_id"`
	Request  deploy.DeploymentRequest  `json:"request"`
	Conflict deploy.DeploymentConflict `json:"conflict"`
	Action   deploy.ConflictAction     `json:"action"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		s.writeJSONError(w, "target_id is required", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		s.writeJSONError(w, "Unknown conflict action", http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.ResolveConflict(r.Context(), req.TargetID, req.Request, req.Conflict, req.Action)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, DeployResponse{Outcome: outcome})
}

// SyncParametersRequest is the POST /api/parameters/sync body.
type SyncParametersRequest struct {
	TargetID   string           `json:"target_id"`
	ContextID  string           `json:"context_id"`
	Parameters []nifi.Parameter `json:"parameters"`
}

func (s *Server) handleSyncParameters(w http.ResponseWriter, r *http.Request) {
	var req SyncParametersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" || req.ContextID == "" {
		s.writeJSONError(w, "target_id and context_id are required", http.StatusBadRequest)
		return
	}

	result, err := s.engine.SyncParameters(r.Context(), req.TargetID, req.ContextID, req.Parameters)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, result)
}

// BatchRequest is the POST /api/batch body.
type BatchRequest struct {
	TargetID string                       `json:"target_id"`
	Units    []deploy.PairedDeploymentUnit `json:"units"`
}

func (s *Server) handleDeployBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		s.writeJSONError(w, "target_id is required", http.StatusBadRequest)
		return
	}
	if len(req.Units) == 0 {
		s.writeJSONError(w, "units cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := s.engine.DeployBatch(r.Context(), req.TargetID, req.Units)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	result, ok := s.engine.BatchResult(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, "Batch run not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.ListTargets(r.Context())
	if err != nil {
		s.writeJSONError(w, "Failed to list targets", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*targetstore.TargetRecord{}
	}
	s.writeJSON(w, map[string]any{"targets": records})
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var record targetstore.TargetRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.catalog.CreateTarget(r.Context(), &record); err != nil {
		switch {
		case errors.Is(err, errors.ErrAlreadyExists):
			s.writeJSONError(w, "Target already exists", http.StatusConflict)
		case errors.IsInvalid(err):
			s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			s.writeJSONError(w, "Failed to create target", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, record)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	record, err := s.catalog.GetTargetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, errors.ErrTargetNotFound) {
			s.writeJSONError(w, "Target not found", http.StatusNotFound)
			return
		}
		s.writeJSONError(w, "Failed to get target", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, record)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteTarget(r.Context(), r.PathValue("id")); err != nil {
		s.writeJSONError(w, "Failed to delete target", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.ListTemplates(r.Context())
	if err != nil {
		s.writeJSONError(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*targetstore.TemplateRecord{}
	}
	s.writeJSON(w, map[string]any{"templates": records})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var record targetstore.TemplateRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.catalog.CreateTemplate(r.Context(), &record); err != nil {
		switch {
		case errors.Is(err, errors.ErrAlreadyExists):
			s.writeJSONError(w, "Template already exists", http.StatusConflict)
		case errors.IsInvalid(err):
			s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			s.writeJSONError(w, "Failed to create template", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, record)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteTemplate(r.Context(), r.PathValue("name")); err != nil {
		s.writeJSONError(w, "Failed to delete template", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeJSON(w, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := s.monitor.Check(ctx, "flowdeploy")
	if status.IsUnhealthy() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.Error("Failed to encode JSON response", "error", err)
		}
		return
	}
	s.writeJSON(w, status)
}

// writeJSON writes a JSON response and logs encoding errors
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes an error response in JSON format
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		s.logger.Error("Failed to encode JSON error response", "error", err)
	}
}

// writeEngineError maps engine error classes onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrTargetNotFound),
		errors.Is(err, errors.ErrFlowNotFound),
		errors.Is(err, errors.ErrKeyNotFound):
		s.writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errors.ErrAuthenticationFailed):
		s.writeJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.IsInvalid(err):
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

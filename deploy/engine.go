package deploy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/metric"
	"github.com/c360/flowdeploy/nifi"
	"github.com/c360/flowdeploy/pkg/retry"
)

// TargetSource looks up remote targets by id.
type TargetSource interface {
	GetTarget(ctx context.Context, id string) (*nifi.RemoteTarget, error)
}

// Engine is the caller-facing entry point. It owns the pipeline, the path
// resolver, the registry resolver, and the parameter synchronizer, and fans
// batch progress out to registered observers.
type Engine struct {
	client    nifi.Client
	sessions  nifi.SessionProvider
	targets   TargetSource
	pipeline  *Pipeline
	resolver  *PathResolver
	registry  *RegistryResolver
	paramSync *ParameterSynchronizer
	logger    *slog.Logger
	metrics   *engineMetrics

	mu        sync.RWMutex
	observers []func(BatchEvent)

	batchMu sync.RWMutex
	batches map[string]*BatchResult
}

// Options configures an Engine.
type Options struct {
	// Templates resolves named flow templates. May be nil when callers
	// always pass explicit registry coordinates.
	Templates TemplateSource

	// Await bounds parameter-context update polling. Zero value uses the
	// default budget.
	Await retry.AwaitConfig

	// Metrics enables Prometheus instrumentation. Nil disables it.
	Metrics *metric.MetricsRegistry

	Logger *slog.Logger
}

// NewEngine creates a deployment engine on top of a remote API client, a
// session provider, and a target lookup.
func NewEngine(client nifi.Client, sessions nifi.SessionProvider, targets TargetSource, opts Options) (*Engine, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "NewEngine", "nil client")
	}
	if sessions == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "NewEngine", "nil session provider")
	}
	if targets == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "NewEngine", "nil target source")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newEngineMetrics(opts.Metrics)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "NewEngine", "metrics registration failed")
	}

	registry := NewRegistryResolver(client, opts.Templates, logger)

	e := &Engine{
		client:    client,
		sessions:  sessions,
		targets:   targets,
		registry:  registry,
		pipeline:  NewPipeline(client, registry, logger, metrics),
		resolver:  NewPathResolver(client, logger),
		paramSync: NewParameterSynchronizer(client, opts.Await, logger, metrics),
		logger:    logger,
		metrics:   metrics,
		batches:   make(map[string]*BatchResult),
	}
	return e, nil
}

// OnBatchEvent registers an observer for batch progress events. Observers are
// called synchronously from the batch goroutine and must not block.
func (e *Engine) OnBatchEvent(fn func(BatchEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) emit(event BatchEvent) {
	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()
	for _, fn := range observers {
		fn(event)
	}
}

// Deploy runs one deployment against the named target. A non-nil
// DeploymentConflict with a nil error means the caller must choose a
// resolution and call ResolveConflict.
func (e *Engine) Deploy(ctx context.Context, targetID string, req DeploymentRequest) (*DeploymentOutcome, *DeploymentConflict, error) {
	session, err := e.session(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}

	index, err := e.indexFor(ctx, session, req)
	if err != nil {
		return nil, nil, err
	}
	return e.pipeline.Deploy(ctx, session, req, index)
}

// ResolveConflict applies the chosen action to a previously returned
// conflict.
func (e *Engine) ResolveConflict(ctx context.Context, targetID string, req DeploymentRequest, conflict DeploymentConflict, action ConflictAction) (*DeploymentOutcome, error) {
	if !action.Valid() {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "ResolveConflict",
			"unknown conflict action "+string(action))
	}

	session, err := e.session(ctx, targetID)
	if err != nil {
		return nil, err
	}

	index, err := e.indexFor(ctx, session, req)
	if err != nil {
		return nil, err
	}
	return e.pipeline.ResolveConflict(ctx, session, req, conflict, action, index)
}

// SyncParameters reconciles the named parameter context toward the desired
// parameter set.
func (e *Engine) SyncParameters(ctx context.Context, targetID, contextID string, desired []nifi.Parameter) (*SyncResult, error) {
	session, err := e.session(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return e.paramSync.Sync(ctx, session, contextID, desired)
}

// ResolveAllPaths enumerates the target's full group tree and returns its
// path index.
func (e *Engine) ResolveAllPaths(ctx context.Context, targetID string) (*PathIndex, error) {
	session, err := e.session(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return e.resolver.ResolveAllPaths(ctx, session)
}

// DeployBatch runs a paired batch against the named target. The result is
// retained for later lookup by run id.
func (e *Engine) DeployBatch(ctx context.Context, targetID string, units []PairedDeploymentUnit) (*BatchResult, error) {
	session, err := e.session(ctx, targetID)
	if err != nil {
		return nil, err
	}

	orch := NewBatchOrchestrator(e.pipeline, e.resolver, e.logger, e.metrics)
	orch.SetNotifier(e.emit)

	result, err := orch.Run(ctx, session, units)
	if err != nil {
		return nil, err
	}

	e.batchMu.Lock()
	e.batches[result.RunID] = result
	e.batchMu.Unlock()
	return result, nil
}

// BatchResult returns a previously completed batch run by id.
func (e *Engine) BatchResult(runID string) (*BatchResult, bool) {
	e.batchMu.RLock()
	defer e.batchMu.RUnlock()
	result, ok := e.batches[runID]
	return result, ok
}

// session looks up the target and opens an authenticated session against it.
func (e *Engine) session(ctx context.Context, targetID string) (*nifi.RemoteSession, error) {
	target, err := e.targets.GetTarget(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "session", "target lookup")
	}
	return e.sessions.OpenSession(ctx, *target)
}

// indexFor builds a path index only when the request addresses its parent by
// path. Requests with an explicit parent id skip the tree walk.
func (e *Engine) indexFor(ctx context.Context, session *nifi.RemoteSession, req DeploymentRequest) (*PathIndex, error) {
	if req.ParentGroupPath == "" || req.ParentGroupID != "" {
		return nil, nil
	}
	return e.resolver.ResolveAllPaths(ctx, session)
}

package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/flowdeploy/nifi"
)

// BatchOrchestrator sequences paired (source, destination) deployments.
// Within each unit the destination side is attempted first and must succeed
// before the source side is attempted; across units order is the input
// order. Processing is sequential by design: parallelizing would invalidate
// the per-batch path index and make destination-before-source ordering
// unenforceable.
type BatchOrchestrator struct {
	pipeline *Pipeline
	resolver *PathResolver
	logger   *slog.Logger
	metrics  *engineMetrics

	// notify, when set, receives a progress event per side outcome.
	notify func(BatchEvent)
}

// NewBatchOrchestrator creates a batch orchestrator.
func NewBatchOrchestrator(pipeline *Pipeline, resolver *PathResolver, logger *slog.Logger, metrics *engineMetrics) *BatchOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchOrchestrator{pipeline: pipeline, resolver: resolver, logger: logger, metrics: metrics}
}

// SetNotifier installs a progress callback. Must be called before Run.
func (b *BatchOrchestrator) SetNotifier(fn func(BatchEvent)) {
	b.notify = fn
}

// Run executes the batch. It always returns one outcome per unit:
// Success, Failed(reason), Skipped(reason), or ConflictPending — a failed
// destination records its paired source as Skipped (declined to try), never
// Failed (tried and lost). A naming conflict pauses the whole batch:
// units after the conflicted one are recorded Skipped so reported progress
// stays consistent with the actual remote state.
func (b *BatchOrchestrator) Run(ctx context.Context, session *nifi.RemoteSession, units []PairedDeploymentUnit) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.NewString()}

	// One tree walk per batch run; the index is confined to this run.
	index, err := b.resolver.ResolveAllPaths(ctx, session)
	if err != nil {
		return nil, err
	}

	failedDestinations := make(map[string]bool)

	for i, unit := range units {
		if unit.ID == "" {
			unit.ID = fmt.Sprintf("unit-%d", i+1)
		}

		unitResult := UnitResult{UnitID: unit.ID}

		// Destination first.
		unitResult.Destination = b.deploySide(ctx, session, result.RunID, unit.ID, SideDestination, unit.Destination, index)

		if unitResult.Destination.Status == StatusConflictPending {
			unitResult.Source = b.skipSide(result.RunID, unit.ID, SideSource,
				"batch paused pending conflict resolution")
			result.Units = append(result.Units, unitResult)
			result.Paused = true
			b.skipRemaining(result, units[i+1:], "batch paused pending conflict resolution")
			break
		}

		if unitResult.Destination.Status == StatusFailed {
			failedDestinations[unit.ID] = true
			// The source's precondition was not met: record Skipped, not
			// Failed, and never invoke its import.
			unitResult.Source = b.skipSide(result.RunID, unit.ID, SideSource,
				fmt.Sprintf("destination deployment failed: %s", unitResult.Destination.Reason))
			result.Units = append(result.Units, unitResult)
			continue
		}

		unitResult.Source = b.deploySide(ctx, session, result.RunID, unit.ID, SideSource, unit.Source, index)

		if unitResult.Source.Status == StatusConflictPending {
			result.Units = append(result.Units, unitResult)
			result.Paused = true
			b.skipRemaining(result, units[i+1:], "batch paused pending conflict resolution")
			break
		}

		result.Units = append(result.Units, unitResult)
	}

	b.logger.Info("Batch run finished",
		"run_id", result.RunID,
		"units", len(result.Units),
		"failed_destinations", len(failedDestinations),
		"paused", result.Paused)
	return result, nil
}

func (b *BatchOrchestrator) deploySide(ctx context.Context, session *nifi.RemoteSession, runID, unitID string, side DeploymentSide, req DeploymentRequest, index *PathIndex) SideResult {
	outcome, conflict, err := b.pipeline.Deploy(ctx, session, req, index)

	var sideResult SideResult
	switch {
	case conflict != nil:
		sideResult = SideResult{Status: StatusConflictPending, Conflict: conflict}
	case err != nil:
		sideResult = SideResult{Status: StatusFailed, Reason: err.Error()}
	default:
		sideResult = SideResult{Status: StatusSuccess, Outcome: outcome}
	}

	b.metrics.recordBatchUnit(session.Target.ID, string(side), string(sideResult.Status))
	b.emit(BatchEvent{RunID: runID, UnitID: unitID, Side: side, Status: sideResult.Status, Reason: sideResult.Reason})
	return sideResult
}

func (b *BatchOrchestrator) skipSide(runID, unitID string, side DeploymentSide, reason string) SideResult {
	b.emit(BatchEvent{RunID: runID, UnitID: unitID, Side: side, Status: StatusSkipped, Reason: reason})
	return SideResult{Status: StatusSkipped, Reason: reason}
}

func (b *BatchOrchestrator) skipRemaining(result *BatchResult, remaining []PairedDeploymentUnit, reason string) {
	for i, unit := range remaining {
		id := unit.ID
		if id == "" {
			id = fmt.Sprintf("unit-%d", len(result.Units)+i+1)
		}
		result.Units = append(result.Units, UnitResult{
			UnitID:      id,
			Destination: b.skipSide(result.RunID, id, SideDestination, reason),
			Source:      b.skipSide(result.RunID, id, SideSource, reason),
		})
	}
}

func (b *BatchOrchestrator) emit(event BatchEvent) {
	if b.notify != nil {
		b.notify(event)
	}
}

package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
	"github.com/c360/flowdeploy/pkg/retry"
)

// ParameterSynchronizer reconciles a desired parameter set against a remote
// parameter context: updates in place, creates new entries, tombstones
// leftovers, then drives the remote's long-running update job to completion.
type ParameterSynchronizer struct {
	api      nifi.ParameterContextAPI
	awaitCfg retry.AwaitConfig
	logger   *slog.Logger
	metrics  *engineMetrics
}

// NewParameterSynchronizer creates a synchronizer. awaitCfg bounds the
// update-request polling loop.
func NewParameterSynchronizer(api nifi.ParameterContextAPI, awaitCfg retry.AwaitConfig, logger *slog.Logger, metrics *engineMetrics) *ParameterSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	if awaitCfg.MaxAttempts == 0 {
		awaitCfg = retry.DefaultAwaitConfig()
	}
	return &ParameterSynchronizer{api: api, awaitCfg: awaitCfg, logger: logger, metrics: metrics}
}

// Sync diffs desired against the context's current parameters and submits
// one merged update.
//
// Existing entities are mutated in place so identity fields survive; a
// sensitive parameter's value is opaque (never round-tripped back from the
// remote), so values are only compared and updated for non-sensitive
// parameters. Names present remotely but absent from desired are appended
// as tombstones (Removed=true, no value) — a tombstone is only ever sent
// for a name that currently exists on the context.
func (s *ParameterSynchronizer) Sync(ctx context.Context, session *nifi.RemoteSession, contextID string, desired []nifi.Parameter) (*SyncResult, error) {
	start := time.Now()
	success := false
	defer func() {
		s.metrics.recordParamSync(session.Target.ID, success, time.Since(start).Seconds())
	}()

	current, err := s.api.GetContext(ctx, session, contextID)
	if err != nil {
		return nil, errors.WrapTransient(err, "ParameterSynchronizer", "Sync", "fetch context")
	}

	result := &SyncResult{ContextID: contextID}
	merged := s.merge(current.Parameters, desired, result)
	result.Submitted = merged

	op, err := s.api.SubmitContextUpdate(ctx, session, contextID, merged)
	if err != nil {
		return nil, errors.Wrap(errors.ErrParameterSyncFailed, "ParameterSynchronizer", "Sync", err.Error())
	}

	if err := s.awaitUpdate(ctx, session, contextID, op); err != nil {
		return nil, err
	}

	// The operation record is acknowledged explicitly once complete.
	if err := s.api.AcknowledgeContextUpdate(ctx, session, contextID, op.RequestID); err != nil {
		s.logger.Warn("Failed to acknowledge context update",
			"context_id", contextID, "request_id", op.RequestID, "error", err)
	}

	// Verify against the remote; it is the source of truth, so a count
	// mismatch is a warning, not a failure.
	expected := len(merged) - result.Removed
	refetched, err := s.api.GetContext(ctx, session, contextID)
	if err != nil {
		s.logger.Warn("Post-sync verification fetch failed", "context_id", contextID, "error", err)
	} else {
		result.VerifiedCount = len(refetched.Parameters)
		result.CountMatches = result.VerifiedCount == expected
		if !result.CountMatches {
			s.logger.Warn("Parameter count mismatch after sync",
				"context_id", contextID, "expected", expected, "actual", result.VerifiedCount)
		}
	}

	success = true
	s.logger.Info("Parameter context synchronized",
		"context_id", contextID,
		"added", result.Added, "updated", result.Updated,
		"removed", result.Removed, "unchanged", result.Unchanged)
	return result, nil
}

// merge builds the full parameter list to submit: every desired parameter
// (updated or new) plus a tombstone per leftover remote name.
func (s *ParameterSynchronizer) merge(existing, desired []nifi.Parameter, result *SyncResult) []nifi.Parameter {
	existingByName := make(map[string]nifi.Parameter, len(existing))
	for _, p := range existing {
		existingByName[p.Name] = p
	}

	merged := make([]nifi.Parameter, 0, len(desired)+len(existing))
	desiredNames := make(map[string]bool, len(desired))

	for _, want := range desired {
		desiredNames[want.Name] = true

		have, exists := existingByName[want.Name]
		if !exists {
			merged = append(merged, want)
			result.Added++
			continue
		}

		changed := have.Description != want.Description || have.Sensitive != want.Sensitive

		// Mutate the existing entity in place rather than rebuilding it.
		have.Description = want.Description
		have.Sensitive = want.Sensitive
		if !want.Sensitive {
			if !equalValue(have.Value, want.Value) {
				changed = true
			}
			have.Value = want.Value
		} else if want.Value != nil {
			// A supplied sensitive value is a requested change even though
			// it can never be diffed against the remote's.
			have.Value = want.Value
			changed = true
		}

		merged = append(merged, have)
		if changed {
			result.Updated++
		} else {
			result.Unchanged++
		}
	}

	for _, have := range existing {
		if desiredNames[have.Name] {
			continue
		}
		merged = append(merged, nifi.Parameter{
			Name:        have.Name,
			Sensitive:   have.Sensitive,
			Description: have.Description,
			Removed:     true,
		})
		result.Removed++
	}

	return merged
}

func equalValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// awaitUpdate polls the update request within the configured budget.
// Exhausting the budget is a reported timeout, never an assumed success;
// a failure reason on the operation fails the sync even when the remote
// marks it complete.
func (s *ParameterSynchronizer) awaitUpdate(ctx context.Context, session *nifi.RemoteSession, contextID string, op *nifi.AsyncOperation) error {
	var last *nifi.AsyncOperation

	err := retry.Await(ctx, s.awaitCfg, func(ctx context.Context) (bool, error) {
		polled, err := s.api.PollContextUpdate(ctx, session, contextID, op.RequestID)
		if err != nil {
			return false, errors.WrapTransient(err, "ParameterSynchronizer", "awaitUpdate", "poll update")
		}
		last = polled
		return polled.Complete, nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrBudgetExhausted) {
			return errors.Wrap(errors.ErrParameterSyncTimeout,
				"ParameterSynchronizer", "awaitUpdate",
				fmt.Sprintf("request %s still incomplete", op.RequestID))
		}
		return err
	}

	if last != nil && last.Failed() {
		return errors.Wrap(errors.ErrParameterSyncFailed,
			"ParameterSynchronizer", "awaitUpdate", *last.FailureReason)
	}
	return nil
}

package deploy

import (
	"context"
	"fmt"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// ResolveConflict resumes a deployment that paused on a naming conflict.
// The caller supplies the original request, the conflict description the
// pipeline returned, and the chosen action. The engine holds no state
// between the pause and this call: an unresolved conflict is caller-owned
// for as long as the caller likes.
func (p *Pipeline) ResolveConflict(ctx context.Context, session *nifi.RemoteSession, req DeploymentRequest, conflict DeploymentConflict, action ConflictAction, index *PathIndex) (*DeploymentOutcome, error) {
	if !action.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown conflict action %q", action),
			"Pipeline", "ResolveConflict", "action validation")
	}

	parentID := conflict.ParentGroupID
	if parentID == "" {
		resolved, err := p.resolveParent(ctx, session, req, index)
		if err != nil {
			return nil, err
		}
		parentID = resolved
	}

	ref, err := p.registry.Resolve(ctx, session, req.Flow)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Resolving deployment conflict",
		"target", session.Target.ID,
		"existing_group_id", conflict.ExistingProcessGroupID,
		"requested_name", conflict.RequestedName,
		"action", string(action))

	switch action {
	case DeployAnyway:
		// Drop the desired-name constraint and let the remote assign a
		// default; the operator accepted a duplicate.
		anyway := req
		anyway.Name = ""
		return p.importAndFinish(ctx, session, anyway, parentID, ref)

	case DeleteAndDeploy:
		if err := p.client.DeleteGroup(ctx, session, conflict.ExistingProcessGroupID, true); err != nil {
			// Never import over a group that failed to delete.
			return nil, errors.Wrap(errors.ErrDeletionFailed,
				"Pipeline", "ResolveConflict", err.Error())
		}
		return p.importAndFinish(ctx, session, req, parentID, ref)

	case UpdateVersion:
		if ref.Version == nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("no version resolved for in-place upgrade"),
				"Pipeline", "ResolveConflict", "version resolution")
		}
		if err := p.client.UpgradeGroupVersion(ctx, session, conflict.ExistingProcessGroupID, *ref.Version); err != nil {
			return nil, errors.Wrap(err, "Pipeline", "ResolveConflict", "upgrade group version")
		}
		return &DeploymentOutcome{
			ProcessGroupID:   conflict.ExistingProcessGroupID,
			ProcessGroupName: conflict.ExistingName,
			DeployedVersion:  *ref.Version,
		}, nil
	}

	// Unreachable: Valid() covers the action set.
	return nil, errors.WrapInvalid(fmt.Errorf("unhandled action %q", action),
		"Pipeline", "ResolveConflict", "action dispatch")
}

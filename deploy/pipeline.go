package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// Pipeline runs the sequential deployment workflow for one request:
// resolve parent group, check for a naming conflict, import the versioned
// flow, optionally rename, extract the deployed version, optionally
// auto-connect ports.
type Pipeline struct {
	client   nifi.Client
	registry *RegistryResolver
	logger   *slog.Logger
	metrics  *engineMetrics
}

// NewPipeline creates a deployment pipeline.
func NewPipeline(client nifi.Client, registry *RegistryResolver, logger *slog.Logger, metrics *engineMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{client: client, registry: registry, logger: logger, metrics: metrics}
}

// Deploy runs the pipeline. On a naming conflict it returns a non-nil
// DeploymentConflict and nil outcome: conflicts are decision points for the
// caller, not errors. index is required when the request addresses its
// parent by path; it may be nil for requests carrying an explicit parent id.
//
// Once the import has succeeded the created group is never rolled back:
// failures of the rename, post-action, or port-connect steps are reported as
// warnings on a successful outcome.
func (p *Pipeline) Deploy(ctx context.Context, session *nifi.RemoteSession, req DeploymentRequest, index *PathIndex) (*DeploymentOutcome, *DeploymentConflict, error) {
	start := time.Now()
	status := "failure"
	defer func() {
		p.metrics.recordDeploy(session.Target.ID, status, time.Since(start).Seconds())
	}()

	parentID, err := p.resolveParent(ctx, session, req, index)
	if err != nil {
		return nil, nil, err
	}

	// The conflict check runs before import because some remote import
	// paths silently append a disambiguating suffix instead of rejecting a
	// duplicate name.
	if req.Name != "" {
		conflict, err := p.checkConflict(ctx, session, parentID, req.Name)
		if err != nil {
			return nil, nil, err
		}
		if conflict != nil {
			status = "conflict"
			p.metrics.recordConflict(session.Target.ID)
			return nil, conflict, nil
		}
	}

	ref, err := p.registry.Resolve(ctx, session, req.Flow)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := p.importAndFinish(ctx, session, req, parentID, ref)
	if err != nil {
		return nil, nil, err
	}

	status = "success"
	return outcome, nil, nil
}

// resolveParent maps the request's parent reference to a group id. A
// missing path segment fails with ErrParentNotFound; the engine never
// creates process groups implicitly.
func (p *Pipeline) resolveParent(ctx context.Context, session *nifi.RemoteSession, req DeploymentRequest, index *PathIndex) (string, error) {
	if req.ParentGroupID != "" {
		if _, err := p.client.GetGroup(ctx, session, req.ParentGroupID); err != nil {
			if errors.Is(err, errors.ErrKeyNotFound) {
				return "", errors.WrapInvalid(errors.ErrParentNotFound,
					"Pipeline", "resolveParent", fmt.Sprintf("group id %s", req.ParentGroupID))
			}
			return "", errors.Wrap(err, "Pipeline", "resolveParent", "verify parent group")
		}
		return req.ParentGroupID, nil
	}

	if req.ParentGroupPath == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("request needs parent_group_id or parent_group_path"),
			"Pipeline", "resolveParent", "request validation")
	}
	if index == nil {
		return "", errors.WrapInvalid(
			fmt.Errorf("path-addressed request requires a path index"),
			"Pipeline", "resolveParent", "request validation")
	}

	id, err := index.Resolve(req.ParentGroupPath)
	if err != nil {
		if errors.Is(err, errors.ErrPathNotFound) {
			return "", errors.WrapInvalid(errors.ErrParentNotFound,
				"Pipeline", "resolveParent", fmt.Sprintf("path %q", req.ParentGroupPath))
		}
		return "", err
	}
	return id, nil
}

// checkConflict looks for an existing child of parentID carrying the
// desired name.
func (p *Pipeline) checkConflict(ctx context.Context, session *nifi.RemoteSession, parentID, name string) (*DeploymentConflict, error) {
	children, err := p.client.ListChildren(ctx, session, parentID)
	if err != nil {
		return nil, errors.WrapTransient(err, "Pipeline", "checkConflict", "list children")
	}
	for _, child := range children {
		if child.Name == name {
			return &DeploymentConflict{
				ExistingProcessGroupID: child.ID,
				ExistingName:           child.Name,
				RequestedName:          name,
				ParentGroupID:          parentID,
			}, nil
		}
	}
	return nil, nil
}

// importAndFinish performs the import and every step after it. Used by both
// the normal pipeline and conflict resolution re-entry.
func (p *Pipeline) importAndFinish(ctx context.Context, session *nifi.RemoteSession, req DeploymentRequest, parentID string, ref *nifi.FlowReference) (*DeploymentOutcome, error) {
	result, err := p.client.CreateVersionedGroup(ctx, session, parentID, *ref)
	if err != nil {
		return nil, errors.Wrap(errors.ErrImportFailed, "Pipeline", "importAndFinish", err.Error())
	}

	outcome := &DeploymentOutcome{
		ProcessGroupID:   result.Group.ID,
		ProcessGroupName: result.Group.Name,
	}

	if req.Name != "" && result.Group.Name != req.Name {
		if err := p.client.RenameGroup(ctx, session, result.Group.ID, req.Name); err != nil {
			// The group exists; a failed rename is a warning, not a rollback.
			p.logger.Warn("Rename after import failed",
				"group_id", result.Group.ID, "desired_name", req.Name, "error", err)
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("rename to %q failed: %v", req.Name, err))
		} else {
			outcome.ProcessGroupName = req.Name
		}
	}

	// Deployed version comes from the import response, falling back to the
	// requested version when the remote does not echo one.
	switch {
	case result.VersionInfo != nil && result.VersionInfo.Version != nil:
		outcome.DeployedVersion = *result.VersionInfo.Version
	case ref.Version != nil:
		outcome.DeployedVersion = *ref.Version
	}

	p.applyPostActions(ctx, session, req.PostActions, outcome)

	if req.AutoConnect {
		reports, err := autoConnectPorts(ctx, p.client, session, result.Group.ID, parentID, p.logger)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("port auto-connect failed: %v", err))
		}
		outcome.PortConnections = reports
	}

	p.logger.Info("Deployed versioned flow",
		"target", session.Target.ID,
		"group_id", outcome.ProcessGroupID,
		"name", outcome.ProcessGroupName,
		"version", outcome.DeployedVersion)
	return outcome, nil
}

// applyPostActions applies optional follow-ups. Failures are warnings: the
// imported group stays.
func (p *Pipeline) applyPostActions(ctx context.Context, session *nifi.RemoteSession, actions PostActions, outcome *DeploymentOutcome) {
	if actions.Disable {
		if err := p.client.SetGroupState(ctx, session, outcome.ProcessGroupID, nifi.GroupStateDisabled); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("disable failed: %v", err))
		}
	}
	if actions.StopVersioning {
		if err := p.client.StopVersionControl(ctx, session, outcome.ProcessGroupID); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("stop versioning failed: %v", err))
		}
	}
	if actions.Start {
		if err := p.client.SetGroupState(ctx, session, outcome.ProcessGroupID, nifi.GroupStateRunning); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("start failed: %v", err))
		}
	}
}

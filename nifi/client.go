package nifi

import (
	"context"
)

// ProcessGroupAPI covers the process-group operations the engine invokes.
type ProcessGroupAPI interface {
	// ListAllGroups enumerates every process group on the target, root
	// included, as a flat snapshot.
	ListAllGroups(ctx context.Context, session *RemoteSession) ([]ProcessGroupNode, error)

	// GetGroup fetches a single group by id.
	GetGroup(ctx context.Context, session *RemoteSession, id string) (*ProcessGroupNode, error)

	// ListChildren returns the direct child groups of a parent.
	ListChildren(ctx context.Context, session *RemoteSession, parentID string) ([]ProcessGroupNode, error)

	// CreateVersionedGroup imports a versioned flow from a registry under
	// the parent group and returns the created group.
	CreateVersionedGroup(ctx context.Context, session *RemoteSession, parentID string, ref FlowReference) (*ImportResult, error)

	// RenameGroup changes a group's display name.
	RenameGroup(ctx context.Context, session *RemoteSession, id, name string) error

	// DeleteGroup removes a group. force stops and disconnects its contents
	// first, cascading through children.
	DeleteGroup(ctx context.Context, session *RemoteSession, id string, force bool) error

	// UpgradeGroupVersion moves an existing version-controlled group to the
	// target version in place, blocking until the remote update finishes.
	UpgradeGroupVersion(ctx context.Context, session *RemoteSession, id string, version int) error

	// SetGroupState schedules or unschedules everything in a group.
	// state is one of RUNNING, STOPPED, DISABLED.
	SetGroupState(ctx context.Context, session *RemoteSession, id, state string) error

	// StopVersionControl detaches a group from its registry flow.
	StopVersionControl(ctx context.Context, session *RemoteSession, id string) error
}

// PortAPI covers the connectable enumeration and wiring operations used by
// port auto-connect.
type PortAPI interface {
	// ListInputPorts returns the input ports defined directly on a group.
	ListInputPorts(ctx context.Context, session *RemoteSession, groupID string) ([]Port, error)

	// ListOutputPorts returns the output ports defined directly on a group.
	ListOutputPorts(ctx context.Context, session *RemoteSession, groupID string) ([]Port, error)

	// CreateConnection wires source to destination inside the parent group.
	CreateConnection(ctx context.Context, session *RemoteSession, parentGroupID string, source, destination Connectable) (*Connection, error)
}

// RegistryAPI covers the flow-registry operations the engine invokes.
type RegistryAPI interface {
	// ListRegistryClients enumerates the registry clients configured on the
	// target.
	ListRegistryClients(ctx context.Context, session *RemoteSession) ([]RegistryClient, error)

	// GetRegistryClient fetches one registry client by id.
	GetRegistryClient(ctx context.Context, session *RemoteSession, id string) (*RegistryClient, error)

	// ListFlows enumerates the flows in a registry bucket.
	ListFlows(ctx context.Context, session *RemoteSession, registryID, bucketID string) ([]VersionedFlow, error)

	// LatestVersion returns the highest snapshot version of a flow.
	// Versions are monotonically increasing integers per flow.
	LatestVersion(ctx context.Context, session *RemoteSession, registryID, bucketID, flowID string) (int, error)
}

// ParameterContextAPI covers the parameter-context operations the engine
// invokes. Context updates are long-running: submit returns an
// AsyncOperation handle that is polled and then explicitly acknowledged.
type ParameterContextAPI interface {
	GetContext(ctx context.Context, session *RemoteSession, id string) (*ParameterContext, error)
	SubmitContextUpdate(ctx context.Context, session *RemoteSession, id string, parameters []Parameter) (*AsyncOperation, error)
	PollContextUpdate(ctx context.Context, session *RemoteSession, id, requestID string) (*AsyncOperation, error)
	AcknowledgeContextUpdate(ctx context.Context, session *RemoteSession, id, requestID string) error
}

// Client is the full remote surface the deployment engine depends on.
type Client interface {
	ProcessGroupAPI
	PortAPI
	RegistryAPI
	ParameterContextAPI
}

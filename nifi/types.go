package nifi

// ProcessGroupNode is a point-in-time snapshot of a process group on the
// remote canvas tree. The engine only reads node identity, never mutates it.
type ProcessGroupNode struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentGroupId,omitempty"` // nil only for the root group
	Comments string  `json:"comments,omitempty"`
}

// RegistryKind distinguishes native flow registries from externally-backed
// (git-type) ones. Binary import/export is only supported on native
// registries.
type RegistryKind string

const (
	RegistryKindNative RegistryKind = "registry"
	RegistryKindGitHub RegistryKind = "github"
	RegistryKindGitLab RegistryKind = "gitlab"
)

// SupportsBinaryTransfer reports whether flows can be imported/exported as
// binary snapshots through this registry kind.
func (k RegistryKind) SupportsBinaryTransfer() bool {
	return k == RegistryKindNative
}

// RegistryClient identifies a flow registry client configured on the remote
// instance.
type RegistryClient struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind RegistryKind `json:"type"`
}

// VersionedFlow is a flow definition stored in a registry bucket.
type VersionedFlow struct {
	RegistryClientID string `json:"registryId"`
	BucketID         string `json:"bucketId"`
	FlowID           string `json:"flowId"`
	Name             string `json:"flowName"`
}

// FlowReference pins a flow in a registry. A nil Version means "latest".
type FlowReference struct {
	RegistryClientID string `json:"registryId"`
	BucketID         string `json:"bucketId"`
	FlowID           string `json:"flowId"`
	Version          *int   `json:"version,omitempty"`
}

// VersionControlInfo is the version binding reported on an imported group.
type VersionControlInfo struct {
	RegistryClientID string `json:"registryId"`
	BucketID         string `json:"bucketId"`
	FlowID           string `json:"flowId"`
	Version          *int   `json:"version,omitempty"`
}

// ImportResult is the response to a versioned flow import. Version is
// optional on the wire; callers fall back to the requested version when the
// remote does not echo one back.
type ImportResult struct {
	Group       ProcessGroupNode
	VersionInfo *VersionControlInfo
}

// PortType distinguishes input from output ports.
type PortType string

// Port type constants
const (
	PortTypeInput  PortType = "INPUT_PORT"
	PortTypeOutput PortType = "OUTPUT_PORT"
)

// Port is a named connection endpoint on a process group boundary.
type Port struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    PortType `json:"type"`
	GroupID string   `json:"groupId"`
	State   string   `json:"state,omitempty"`
}

// Connectable is anything a connection can attach to: a port or a processor.
type Connectable struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // INPUT_PORT, OUTPUT_PORT, PROCESSOR
	GroupID string `json:"groupId"`
}

// Connection links a source connectable to a destination connectable inside
// a parent group.
type Connection struct {
	ID          string      `json:"id"`
	Source      Connectable `json:"source"`
	Destination Connectable `json:"destination"`
}

// Parameter is one entry of a parameter context. Value is nil for sensitive
// parameters, whose values are never round-tripped back from the remote
// system. Removed=true is a tombstone instruction: it tells the remote to
// delete a parameter that currently exists on the context.
type Parameter struct {
	Name        string  `json:"name"`
	Value       *string `json:"value,omitempty"`
	Sensitive   bool    `json:"sensitive"`
	Description string  `json:"description,omitempty"`
	Removed     bool    `json:"removed,omitempty"`
}

// ParameterContext is a named, shareable set of parameters bindable to
// process groups.
type ParameterContext struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Parameters         []Parameter `json:"parameters"`
	BoundProcessGroups []string    `json:"boundProcessGroups,omitempty"`
	InheritedContexts  []string    `json:"inheritedParameterContexts,omitempty"`
}

// AsyncOperation represents a long-running remote job. It is created by a
// submit call, polled until Complete, then explicitly acknowledged.
type AsyncOperation struct {
	RequestID       string  `json:"requestId"`
	PercentComplete int     `json:"percentCompleted"`
	Complete        bool    `json:"complete"`
	FailureReason   *string `json:"failureReason,omitempty"`
}

// Failed reports whether the operation carries a failure reason. The remote
// system can mark an operation Complete and still report failure, so callers
// must check Failed before trusting Complete.
func (op *AsyncOperation) Failed() bool {
	return op.FailureReason != nil && *op.FailureReason != ""
}

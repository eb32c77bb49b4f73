package deploy

import (
	"github.com/c360/flowdeploy/nifi"
)

// FlowSelector names the flow to deploy: either a stored template by name,
// or explicit registry coordinates. Template takes precedence when both are
// set.
type FlowSelector struct {
	Template string `json:"template,omitempty"`

	RegistryClientID string `json:"registry_client_id,omitempty"`
	BucketID         string `json:"bucket_id,omitempty"`
	FlowID           string `json:"flow_id,omitempty"`

	// Version pins a snapshot; nil means latest.
	Version *int `json:"version,omitempty"`
}

// FlowTemplate is a named, reusable flow reference stored outside the
// engine.
type FlowTemplate struct {
	Name             string `json:"name"`
	RegistryClientID string `json:"registry_client_id"`
	BucketID         string `json:"bucket_id"`
	FlowID           string `json:"flow_id"`
	Version          *int   `json:"version,omitempty"`
}

// PostActions are optional follow-ups applied after a successful import.
type PostActions struct {
	Disable        bool `json:"disable,omitempty"`
	StopVersioning bool `json:"stop_versioning,omitempty"`
	Start          bool `json:"start,omitempty"`
}

// DeploymentRequest describes one deployment onto one remote target.
// Exactly one of ParentGroupID and ParentGroupPath must be set.
type DeploymentRequest struct {
	Flow FlowSelector `json:"flow"`

	ParentGroupID   string `json:"parent_group_id,omitempty"`
	ParentGroupPath string `json:"parent_group_path,omitempty"`

	// Name is the desired display name. Empty keeps the remote default.
	Name string `json:"name,omitempty"`

	// AutoConnect wires the new group's ports to name-matched counterparts
	// one level up.
	AutoConnect bool `json:"auto_connect,omitempty"`

	PostActions PostActions `json:"post_actions,omitempty"`
}

// DeploymentConflict is surfaced when the desired name already exists under
// the parent group. It is a decision point for the caller, not an error.
type DeploymentConflict struct {
	ExistingProcessGroupID string `json:"existing_process_group_id"`
	ExistingName           string `json:"existing_name"`
	RequestedName          string `json:"requested_name"`
	ParentGroupID          string `json:"parent_group_id"`
}

// ConflictAction selects how a DeploymentConflict is resolved.
type ConflictAction string

// Conflict resolution actions
const (
	// DeployAnyway re-imports without the desired-name constraint; the
	// remote assigns a default name.
	DeployAnyway ConflictAction = "deploy_anyway"
	// DeleteAndDeploy force-deletes the conflicting group, then imports.
	DeleteAndDeploy ConflictAction = "delete_and_deploy"
	// UpdateVersion upgrades the existing group in place instead of
	// creating a new one.
	UpdateVersion ConflictAction = "update_version"
)

// Valid reports whether the action is one of the defined choices.
func (a ConflictAction) Valid() bool {
	switch a {
	case DeployAnyway, DeleteAndDeploy, UpdateVersion:
		return true
	default:
		return false
	}
}

// PortConnectReport records one auto-connect attempt.
type PortConnectReport struct {
	PortName     string `json:"port_name"`
	Connected    bool   `json:"connected"`
	ConnectionID string `json:"connection_id,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// DeploymentOutcome is the result of a successful deployment. Warnings carry
// non-fatal failures of secondary steps (rename, port connect) that left the
// imported group in place.
type DeploymentOutcome struct {
	ProcessGroupID   string              `json:"process_group_id"`
	ProcessGroupName string              `json:"process_group_name"`
	DeployedVersion  int                 `json:"deployed_version"`
	PortConnections  []PortConnectReport `json:"port_connections,omitempty"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// DeploymentSide tags the two halves of a paired deployment unit.
type DeploymentSide string

// Sides of a paired deployment
const (
	SideSource      DeploymentSide = "source"
	SideDestination DeploymentSide = "destination"
)

// PairedDeploymentUnit groups the source and destination deployments of one
// logical flow. The destination is attempted first; its failure cancels the
// source attempt.
type PairedDeploymentUnit struct {
	ID          string            `json:"id"`
	Source      DeploymentRequest `json:"source"`
	Destination DeploymentRequest `json:"destination"`
}

// UnitStatus is the per-side outcome of a batch unit.
type UnitStatus string

// Batch unit statuses
const (
	StatusSuccess UnitStatus = "success"
	// StatusFailed means the deployment was attempted and lost.
	StatusFailed UnitStatus = "failed"
	// StatusSkipped means the deployment was never attempted because its
	// precondition was not met.
	StatusSkipped UnitStatus = "skipped"
	// StatusConflictPending means the deployment paused on a naming
	// conflict awaiting caller resolution.
	StatusConflictPending UnitStatus = "conflict_pending"
)

// SideResult is the outcome of one side of one unit.
type SideResult struct {
	Status   UnitStatus          `json:"status"`
	Outcome  *DeploymentOutcome  `json:"outcome,omitempty"`
	Conflict *DeploymentConflict `json:"conflict,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// UnitResult pairs the two side outcomes of one unit.
type UnitResult struct {
	UnitID      string     `json:"unit_id"`
	Destination SideResult `json:"destination"`
	Source      SideResult `json:"source"`
}

// BatchResult reports one outcome per unit, never a bare error bubbling past
// the batch boundary.
type BatchResult struct {
	RunID string       `json:"run_id"`
	Units []UnitResult `json:"units"`

	// Paused is set when the batch stopped on a pending conflict.
	Paused bool `json:"paused,omitempty"`
}

// BatchEvent is a progress notification emitted while a batch runs.
type BatchEvent struct {
	RunID  string         `json:"run_id"`
	UnitID string         `json:"unit_id"`
	Side   DeploymentSide `json:"side"`
	Status UnitStatus     `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// SyncResult summarizes one parameter-context synchronization.
type SyncResult struct {
	ContextID string `json:"context_id"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`

	// Submitted is the merged parameter list sent to the remote, tombstones
	// included.
	Submitted []nifi.Parameter `json:"submitted,omitempty"`

	// VerifiedCount is the parameter count observed on re-fetch after the
	// update completed. A mismatch against the expected count is a logged
	// warning, not a failure.
	VerifiedCount int  `json:"verified_count"`
	CountMatches  bool `json:"count_matches"`
}

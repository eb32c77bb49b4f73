package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/flowdeploy/nifi"
)

// autoConnectPorts wires a newly deployed group's boundary ports to
// name-matched counterparts one level up. Matching is exact and
// case-sensitive, the sole heuristic: the child's output ports connect to
// same-named output ports on the parent scope, and the parent's input ports
// connect down to same-named input ports on the child.
//
// Auto-connect is a convenience: a port with no counterpart is skipped
// silently, while a port with more than one candidate is skipped AND
// reported — the engine never guesses between ambiguous candidates.
func autoConnectPorts(ctx context.Context, client nifi.Client, session *nifi.RemoteSession, groupID, parentID string, logger *slog.Logger) ([]PortConnectReport, error) {
	childOutputs, err := client.ListOutputPorts(ctx, session, groupID)
	if err != nil {
		return nil, fmt.Errorf("list child output ports: %w", err)
	}
	childInputs, err := client.ListInputPorts(ctx, session, groupID)
	if err != nil {
		return nil, fmt.Errorf("list child input ports: %w", err)
	}
	parentOutputs, err := client.ListOutputPorts(ctx, session, parentID)
	if err != nil {
		return nil, fmt.Errorf("list parent output ports: %w", err)
	}
	parentInputs, err := client.ListInputPorts(ctx, session, parentID)
	if err != nil {
		return nil, fmt.Errorf("list parent input ports: %w", err)
	}

	var reports []PortConnectReport

	// Child output ports drain upward into the parent's output ports.
	for _, port := range childOutputs {
		report := connectByName(ctx, client, session, parentID, port, parentOutputs, logger)
		if report != nil {
			reports = append(reports, *report)
		}
	}

	// Parent input ports feed downward into the child's input ports.
	for _, port := range parentInputs {
		report := connectByName(ctx, client, session, parentID, port, childInputs, logger)
		if report != nil {
			reports = append(reports, *report)
		}
	}

	return reports, nil
}

// connectByName connects from to the single same-named candidate, if any.
// Returns nil when no candidate matches (silent skip).
func connectByName(ctx context.Context, client nifi.Client, session *nifi.RemoteSession, parentID string, from nifi.Port, candidates []nifi.Port, logger *slog.Logger) *PortConnectReport {
	var matches []nifi.Port
	for _, candidate := range candidates {
		if candidate.Name == from.Name && candidate.ID != from.ID {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil
	case 1:
		// proceed below
	default:
		logger.Warn("Ambiguous port match, skipping",
			"port", from.Name, "candidates", len(matches))
		return &PortConnectReport{
			PortName: from.Name,
			Skipped:  true,
			Reason:   fmt.Sprintf("%d candidates match", len(matches)),
		}
	}

	to := matches[0]
	conn, err := client.CreateConnection(ctx, session, parentID,
		nifi.Connectable{ID: from.ID, Name: from.Name, Type: string(from.Type), GroupID: from.GroupID},
		nifi.Connectable{ID: to.ID, Name: to.Name, Type: string(to.Type), GroupID: to.GroupID},
	)
	if err != nil {
		logger.Warn("Port connection failed", "port", from.Name, "error", err)
		return &PortConnectReport{
			PortName: from.Name,
			Skipped:  true,
			Reason:   fmt.Sprintf("connect failed: %v", err),
		}
	}

	logger.Debug("Connected ports", "port", from.Name, "connection_id", conn.ID)
	return &PortConnectReport{
		PortName:     from.Name,
		Connected:    true,
		ConnectionID: conn.ID,
	}
}

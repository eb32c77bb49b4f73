package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
	"github.com/c360/flowdeploy/pkg/cache"
)

// ProcessGroupPath is the derived location of a process group inside the
// remote tree: the ordered ancestor chain from the root down to the group
// itself.
type ProcessGroupPath struct {
	TargetID string
	// Chain is ordered root-first; the last element is the group itself.
	Chain []nifi.ProcessGroupNode
	Depth int
}

// String renders the path using the engine's one path convention: segments
// are group names joined by "/", the root group's name is NOT included, and
// the root itself renders as the empty string.
func (p ProcessGroupPath) String() string {
	if len(p.Chain) <= 1 {
		return ""
	}
	segments := make([]string, 0, len(p.Chain)-1)
	for _, node := range p.Chain[1:] {
		segments = append(segments, node.Name)
	}
	return strings.Join(segments, "/")
}

// GroupID returns the id of the group the path addresses.
func (p ProcessGroupPath) GroupID() string {
	if len(p.Chain) == 0 {
		return ""
	}
	return p.Chain[len(p.Chain)-1].ID
}

// PathIndex is the per-batch mapping between path strings and process-group
// ids for one remote target. It is a snapshot: the remote tree can change
// between batch runs, so an index is rebuilt per run and never persisted.
type PathIndex struct {
	targetID string
	rootID   string
	byID     map[string]ProcessGroupPath
	byPath   *cache.Cache[string]
}

// RootID returns the id of the tree root.
func (idx *PathIndex) RootID() string {
	return idx.rootID
}

// Lookup returns the path of a group by id.
func (idx *PathIndex) Lookup(id string) (ProcessGroupPath, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Resolve maps a path string to a process-group id. The empty path (or "/")
// resolves to the root.
func (idx *PathIndex) Resolve(path string) (string, error) {
	normalized := NormalizePath(path)
	if normalized == "" {
		return idx.rootID, nil
	}
	id, ok := idx.byPath.Get(normalized)
	if !ok {
		return "", errors.WrapInvalid(errors.ErrPathNotFound,
			"PathIndex", "Resolve", fmt.Sprintf("path %q", normalized))
	}
	return id, nil
}

// Size returns the number of groups indexed.
func (idx *PathIndex) Size() int {
	return len(idx.byID)
}

// NormalizePath trims surrounding slashes and whitespace so path-building
// and path-matching share one convention.
func NormalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// JoinPath appends a segment to a normalized path.
func JoinPath(base, segment string) string {
	base = NormalizePath(base)
	if base == "" {
		return segment
	}
	return base + "/" + segment
}

// PathResolver builds PathIndex snapshots by walking the remote group tree.
type PathResolver struct {
	api    nifi.ProcessGroupAPI
	logger *slog.Logger
}

// NewPathResolver creates a path resolver.
func NewPathResolver(api nifi.ProcessGroupAPI, logger *slog.Logger) *PathResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathResolver{api: api, logger: logger}
}

// ResolveAllPaths enumerates the full group tree once and builds both the
// id-to-path and path-string-to-id indexes.
//
// The walk follows parent ids upward with a visited set: a repeated id is a
// cycle and a hard error, never a silent truncation. A node whose recorded
// parent is absent from the snapshot is an orphan, which is distinguished
// from the genuine root (the one node with no parent on record).
func (r *PathResolver) ResolveAllPaths(ctx context.Context, session *nifi.RemoteSession) (*PathIndex, error) {
	nodes, err := r.api.ListAllGroups(ctx, session)
	if err != nil {
		return nil, errors.WrapTransient(err, "PathResolver", "ResolveAllPaths", "list groups")
	}
	if len(nodes) == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("remote returned no process groups"),
			"PathResolver", "ResolveAllPaths", "snapshot validation")
	}

	byID := make(map[string]*nifi.ProcessGroupNode, len(nodes))
	rootID := ""
	for i := range nodes {
		node := &nodes[i]
		byID[node.ID] = node
		if node.ParentID == nil {
			if rootID != "" {
				return nil, errors.WrapFatal(
					fmt.Errorf("two roots in snapshot: %s and %s", rootID, node.ID),
					"PathResolver", "ResolveAllPaths", "root identification")
			}
			rootID = node.ID
		}
	}
	if rootID == "" {
		// Every node claims a parent: the tree has no root, which with a
		// finite snapshot implies a cycle.
		return nil, errors.WrapFatal(errors.ErrCycleDetected,
			"PathResolver", "ResolveAllPaths", "root identification")
	}

	byPath, err := cache.New[string]()
	if err != nil {
		return nil, err
	}

	index := &PathIndex{
		targetID: session.Target.ID,
		rootID:   rootID,
		byID:     make(map[string]ProcessGroupPath, len(nodes)),
		byPath:   byPath,
	}

	for i := range nodes {
		path, err := r.walkToRoot(&nodes[i], byID, rootID, session.Target.ID)
		if err != nil {
			return nil, err
		}
		index.byID[nodes[i].ID] = path
		if _, err := index.byPath.Set(pathKey(path.String()), nodes[i].ID); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("Resolved process group paths",
		"target", session.Target.ID, "groups", index.Size(), "root_id", rootID)
	return index, nil
}

// pathKey maps the root's empty path string onto a cacheable key.
func pathKey(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// walkToRoot follows parent ids from node up to the root, building the
// ordered ancestor chain.
func (r *PathResolver) walkToRoot(node *nifi.ProcessGroupNode, byID map[string]*nifi.ProcessGroupNode, rootID, targetID string) (ProcessGroupPath, error) {
	visited := map[string]bool{}
	var reversed []nifi.ProcessGroupNode

	current := node
	for {
		if visited[current.ID] {
			return ProcessGroupPath{}, errors.WrapFatal(errors.ErrCycleDetected,
				"PathResolver", "walkToRoot", fmt.Sprintf("group %s revisited", current.ID))
		}
		visited[current.ID] = true
		reversed = append(reversed, *current)

		if current.ParentID == nil {
			if current.ID != rootID {
				return ProcessGroupPath{}, errors.WrapFatal(
					fmt.Errorf("group %s has no parent but is not the root %s: %w", current.ID, rootID, errors.ErrOrphanedGroup),
					"PathResolver", "walkToRoot", "ancestry walk")
			}
			break
		}

		parent, ok := byID[*current.ParentID]
		if !ok {
			// A recorded parent missing from the snapshot is a dangling
			// reference, not a root.
			return ProcessGroupPath{}, errors.WrapFatal(
				fmt.Errorf("group %s references missing parent %s: %w", current.ID, *current.ParentID, errors.ErrOrphanedGroup),
				"PathResolver", "walkToRoot", "ancestry walk")
		}
		current = parent
	}

	chain := make([]nifi.ProcessGroupNode, len(reversed))
	for i, n := range reversed {
		chain[len(reversed)-1-i] = n
	}

	return ProcessGroupPath{
		TargetID: targetID,
		Chain:    chain,
		Depth:    len(chain) - 1,
	}, nil
}

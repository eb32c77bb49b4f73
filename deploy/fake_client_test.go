package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient provides an in-memory remote API for testing. State is set up
// per test; call counters record what the engine actually invoked.
type fakeClient struct {
	groups     []nifi.ProcessGroupNode
	registries map[string]nifi.RegistryClient
	latest     map[string]int
	contexts   map[string]*nifi.ParameterContext

	inputPorts  map[string][]nifi.Port
	outputPorts map[string][]nifi.Port

	listAllErr error

	importResult *nifi.ImportResult
	importErr    error
	importCalls  int
	lastImport   nifi.FlowReference
	lastParentID string

	renameErr   error
	renameCalls int
	lastRename  string

	deleteErr   error
	deleteCalls int
	lastDelete  string

	upgradeErr   error
	upgradeCalls int
	lastUpgrade  int

	stateCalls []string
	stopVCalls int

	connections     []nifi.Connection
	connectionErr   error
	connectionCalls int

	submitted    []nifi.Parameter
	submitErr    error
	submitCalls  int
	pollResults  []*nifi.AsyncOperation
	pollErr      error
	pollCalls    int
	ackCalls     int
	syncAppliesOnPoll bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		registries:  make(map[string]nifi.RegistryClient),
		latest:      make(map[string]int),
		contexts:    make(map[string]*nifi.ParameterContext),
		inputPorts:  make(map[string][]nifi.Port),
		outputPorts: make(map[string][]nifi.Port),
	}
}

func (f *fakeClient) addGroup(id, name string, parentID *string) {
	f.groups = append(f.groups, nifi.ProcessGroupNode{ID: id, Name: name, ParentID: parentID})
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func (f *fakeClient) ListAllGroups(_ context.Context, _ *nifi.RemoteSession) ([]nifi.ProcessGroupNode, error) {
	if f.listAllErr != nil {
		return nil, f.listAllErr
	}
	out := make([]nifi.ProcessGroupNode, len(f.groups))
	copy(out, f.groups)
	return out, nil
}

func (f *fakeClient) GetGroup(_ context.Context, _ *nifi.RemoteSession, id string) (*nifi.ProcessGroupNode, error) {
	for i := range f.groups {
		if f.groups[i].ID == id {
			node := f.groups[i]
			return &node, nil
		}
	}
	return nil, errors.ErrKeyNotFound
}

func (f *fakeClient) ListChildren(_ context.Context, _ *nifi.RemoteSession, parentID string) ([]nifi.ProcessGroupNode, error) {
	var children []nifi.ProcessGroupNode
	for _, g := range f.groups {
		if g.ParentID != nil && *g.ParentID == parentID {
			children = append(children, g)
		}
	}
	return children, nil
}

func (f *fakeClient) CreateVersionedGroup(_ context.Context, _ *nifi.RemoteSession, parentID string, ref nifi.FlowReference) (*nifi.ImportResult, error) {
	f.importCalls++
	f.lastImport = ref
	f.lastParentID = parentID
	if f.importErr != nil {
		return nil, f.importErr
	}
	if f.importResult != nil {
		return f.importResult, nil
	}
	return &nifi.ImportResult{
		Group: nifi.ProcessGroupNode{ID: "imported-1", Name: "imported", ParentID: &parentID},
	}, nil
}

func (f *fakeClient) RenameGroup(_ context.Context, _ *nifi.RemoteSession, id, name string) error {
	f.renameCalls++
	f.lastRename = name
	return f.renameErr
}

func (f *fakeClient) DeleteGroup(_ context.Context, _ *nifi.RemoteSession, id string, _ bool) error {
	f.deleteCalls++
	f.lastDelete = id
	return f.deleteErr
}

func (f *fakeClient) UpgradeGroupVersion(_ context.Context, _ *nifi.RemoteSession, id string, version int) error {
	f.upgradeCalls++
	f.lastUpgrade = version
	return f.upgradeErr
}

func (f *fakeClient) SetGroupState(_ context.Context, _ *nifi.RemoteSession, id, state string) error {
	f.stateCalls = append(f.stateCalls, state)
	return nil
}

func (f *fakeClient) StopVersionControl(_ context.Context, _ *nifi.RemoteSession, id string) error {
	f.stopVCalls++
	return nil
}

func (f *fakeClient) ListInputPorts(_ context.Context, _ *nifi.RemoteSession, groupID string) ([]nifi.Port, error) {
	return f.inputPorts[groupID], nil
}

func (f *fakeClient) ListOutputPorts(_ context.Context, _ *nifi.RemoteSession, groupID string) ([]nifi.Port, error) {
	return f.outputPorts[groupID], nil
}

func (f *fakeClient) CreateConnection(_ context.Context, _ *nifi.RemoteSession, parentGroupID string, source, destination nifi.Connectable) (*nifi.Connection, error) {
	f.connectionCalls++
	if f.connectionErr != nil {
		return nil, f.connectionErr
	}
	conn := nifi.Connection{
		ID:          fmt.Sprintf("conn-%d", f.connectionCalls),
		Source:      source,
		Destination: destination,
	}
	f.connections = append(f.connections, conn)
	return &conn, nil
}

func (f *fakeClient) ListRegistryClients(_ context.Context, _ *nifi.RemoteSession) ([]nifi.RegistryClient, error) {
	var out []nifi.RegistryClient
	for _, rc := range f.registries {
		out = append(out, rc)
	}
	return out, nil
}

func (f *fakeClient) GetRegistryClient(_ context.Context, _ *nifi.RemoteSession, id string) (*nifi.RegistryClient, error) {
	rc, ok := f.registries[id]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return &rc, nil
}

func (f *fakeClient) ListFlows(_ context.Context, _ *nifi.RemoteSession, registryID, bucketID string) ([]nifi.VersionedFlow, error) {
	return nil, nil
}

func (f *fakeClient) LatestVersion(_ context.Context, _ *nifi.RemoteSession, registryID, bucketID, flowID string) (int, error) {
	v, ok := f.latest[flowID]
	if !ok {
		return 0, errors.ErrVersionNotFound
	}
	return v, nil
}

func (f *fakeClient) GetContext(_ context.Context, _ *nifi.RemoteSession, id string) (*nifi.ParameterContext, error) {
	pc, ok := f.contexts[id]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	clone := *pc
	clone.Parameters = make([]nifi.Parameter, len(pc.Parameters))
	copy(clone.Parameters, pc.Parameters)
	return &clone, nil
}

func (f *fakeClient) SubmitContextUpdate(_ context.Context, _ *nifi.RemoteSession, id string, parameters []nifi.Parameter) (*nifi.AsyncOperation, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = make([]nifi.Parameter, len(parameters))
	copy(f.submitted, parameters)
	return &nifi.AsyncOperation{RequestID: fmt.Sprintf("req-%d", f.submitCalls)}, nil
}

func (f *fakeClient) PollContextUpdate(_ context.Context, _ *nifi.RemoteSession, id, requestID string) (*nifi.AsyncOperation, error) {
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.pollResults) == 0 {
		return &nifi.AsyncOperation{RequestID: requestID, PercentComplete: 50}, nil
	}
	op := f.pollResults[0]
	if len(f.pollResults) > 1 {
		f.pollResults = f.pollResults[1:]
	}
	if op.Complete && f.syncAppliesOnPoll {
		f.applySubmitted(id)
		f.syncAppliesOnPoll = false
	}
	return op, nil
}

func (f *fakeClient) AcknowledgeContextUpdate(_ context.Context, _ *nifi.RemoteSession, id, requestID string) error {
	f.ackCalls++
	return nil
}

// applySubmitted mirrors the remote's merge-on-complete behavior so post-sync
// verification reads the updated context.
func (f *fakeClient) applySubmitted(id string) {
	pc, ok := f.contexts[id]
	if !ok {
		return
	}
	var next []nifi.Parameter
	for _, p := range f.submitted {
		if p.Removed {
			continue
		}
		next = append(next, p)
	}
	pc.Parameters = next
}

var _ nifi.Client = (*fakeClient)(nil)

// testSession builds a session against a synthetic target.
func testSession() *nifi.RemoteSession {
	return &nifi.RemoteSession{
		Target: nifi.RemoteTarget{
			ID:      "target-1",
			Name:    "east-dc01",
			BaseURL: "https://nifi.example.com:8443/nifi-api",
		},
		Token:    "test-token",
		ClientID: "client-1",
	}
}

package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/metric"
	"github.com/c360/flowdeploy/nifi"
)

// fakeTargets serves targets from a map.
type fakeTargets map[string]nifi.RemoteTarget

func (f fakeTargets) GetTarget(_ context.Context, id string) (*nifi.RemoteTarget, error) {
	target, ok := f[id]
	if !ok {
		return nil, errors.ErrTargetNotFound
	}
	return &target, nil
}

// fakeSessions hands out unauthenticated sessions without touching the
// network.
type fakeSessions struct {
	opens int
	err   error
}

func (f *fakeSessions) OpenSession(_ context.Context, target nifi.RemoteTarget) (*nifi.RemoteSession, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return &nifi.RemoteSession{Target: target, Token: "t", ClientID: "c"}, nil
}

func newTestEngine(t *testing.T, fake *fakeClient) (*Engine, *fakeSessions) {
	t.Helper()
	fake.registries["reg-1"] = nifi.RegistryClient{ID: "reg-1", Name: "local", Kind: nifi.RegistryKindNative}
	fake.latest["flow-1"] = 7

	sessions := &fakeSessions{}
	targets := fakeTargets{"target-1": {ID: "target-1", Name: "east-dc01", BaseURL: "https://nifi.example.com"}}

	engine, err := NewEngine(fake, sessions, targets, Options{Logger: testLogger()})
	require.NoError(t, err)
	return engine, sessions
}

func TestNewEngineValidation(t *testing.T) {
	fake := newFakeClient()
	sessions := &fakeSessions{}
	targets := fakeTargets{}

	_, err := NewEngine(nil, sessions, targets, Options{})
	require.Error(t, err)
	_, err = NewEngine(fake, nil, targets, Options{})
	require.Error(t, err)
	_, err = NewEngine(fake, sessions, nil, Options{})
	require.Error(t, err)
}

func TestNewEngineWithMetrics(t *testing.T) {
	fake := newFakeClient()
	sessions := &fakeSessions{}
	targets := fakeTargets{}

	engine, err := NewEngine(fake, sessions, targets, Options{Metrics: metric.NewMetricsRegistry()})
	require.NoError(t, err)
	assert.NotNil(t, engine.metrics)
}

func TestEngineDeploy(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	engine, sessions := newTestEngine(t, fake)

	outcome, conflict, err := engine.Deploy(context.Background(), "target-1", DeploymentRequest{
		Flow:            explicitFlow(),
		ParentGroupPath: "A",
		Name:            "flow1",
	})
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, sessions.opens)
	assert.Equal(t, "a", fake.lastParentID)
}

func TestEngineDeployUnknownTarget(t *testing.T) {
	fake := newFakeClient()
	engine, _ := newTestEngine(t, fake)

	_, _, err := engine.Deploy(context.Background(), "no-such-target", DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTargetNotFound))
}

func TestEngineConflictRoundTrip(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	fake.addGroup("existing", "flow1", strptr("a"))
	engine, _ := newTestEngine(t, fake)

	req := DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "a",
		Name:          "flow1",
	}

	_, conflict, err := engine.Deploy(context.Background(), "target-1", req)
	require.NoError(t, err)
	require.NotNil(t, conflict)

	// The engine holds no conflict state; the caller replays the request
	// with its chosen action.
	outcome, err := engine.ResolveConflict(context.Background(), "target-1", req, *conflict, DeleteAndDeploy)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, fake.deleteCalls)
	assert.Equal(t, 1, fake.importCalls)
}

func TestEngineResolveConflictRejectsUnknownAction(t *testing.T) {
	fake := newFakeClient()
	engine, sessions := newTestEngine(t, fake)

	_, err := engine.ResolveConflict(context.Background(), "target-1",
		DeploymentRequest{}, DeploymentConflict{}, ConflictAction("merge"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	// Rejected before any session is opened.
	assert.Zero(t, sessions.opens)
}

func TestEngineDeployBatchRetainsResult(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("src", "Sources", strptr("root"))
	fake.addGroup("dst", "Destinations", strptr("root"))
	engine, _ := newTestEngine(t, fake)

	var events []BatchEvent
	engine.OnBatchEvent(func(e BatchEvent) { events = append(events, e) })

	result, err := engine.DeployBatch(context.Background(), "target-1", []PairedDeploymentUnit{pairedUnit("u1")})
	require.NoError(t, err)
	require.Len(t, events, 2)

	stored, ok := engine.BatchResult(result.RunID)
	require.True(t, ok)
	assert.Equal(t, result, stored)

	_, ok = engine.BatchResult("no-such-run")
	assert.False(t, ok)
}

func TestEngineSyncParameters(t *testing.T) {
	fake := newFakeClient()
	fake.contexts["ctx-1"] = &nifi.ParameterContext{ID: "ctx-1"}
	fake.pollResults = []*nifi.AsyncOperation{doneOp()}
	engine, _ := newTestEngine(t, fake)
	engine.paramSync = newTestSynchronizer(fake)

	result, err := engine.SyncParameters(context.Background(), "target-1", "ctx-1",
		[]nifi.Parameter{{Name: "p1", Value: strptr("x")}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
}

func TestEngineResolveAllPaths(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	engine, _ := newTestEngine(t, fake)

	index, err := engine.ResolveAllPaths(context.Background(), "target-1")
	require.NoError(t, err)
	assert.Equal(t, 2, index.Size())
}

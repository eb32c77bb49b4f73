package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

// newTestPipeline wires a pipeline over the fake with a native registry and
// one versioned flow.
func newTestPipeline(fake *fakeClient) *Pipeline {
	fake.registries["reg-1"] = nifi.RegistryClient{ID: "reg-1", Name: "local", Kind: nifi.RegistryKindNative}
	fake.latest["flow-1"] = 7
	registry := NewRegistryResolver(fake, nil, nil)
	return NewPipeline(fake, registry, nil, nil)
}

func explicitFlow() FlowSelector {
	return FlowSelector{RegistryClientID: "reg-1", BucketID: "bucket-1", FlowID: "flow-1"}
}

func TestDeployByPath(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	fake.importResult = &nifi.ImportResult{
		Group:       nifi.ProcessGroupNode{ID: "new-1", Name: "imported", ParentID: strptr("a")},
		VersionInfo: &nifi.VersionControlInfo{Version: intptr(7)},
	}
	pipeline := newTestPipeline(fake)

	index, err := NewPathResolver(fake, nil).ResolveAllPaths(context.Background(), testSession())
	require.NoError(t, err)

	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:            explicitFlow(),
		ParentGroupPath: "A",
		Name:            "flow1",
	}, index)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, outcome)

	assert.Equal(t, "new-1", outcome.ProcessGroupID)
	assert.Equal(t, "flow1", outcome.ProcessGroupName)
	assert.Equal(t, 7, outcome.DeployedVersion)
	assert.Equal(t, "a", fake.lastParentID)
	assert.Equal(t, 1, fake.importCalls)
	assert.Equal(t, 1, fake.renameCalls)
	assert.Empty(t, outcome.Warnings)
}

func TestDeployByExplicitParentID(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	pipeline := newTestPipeline(fake)

	// No index needed when the parent is addressed by id.
	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "a",
	}, nil)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, outcome)
	assert.Equal(t, "a", fake.lastParentID)
}

func TestDeployParentNotFound(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	pipeline := newTestPipeline(fake)

	index, err := NewPathResolver(fake, nil).ResolveAllPaths(context.Background(), testSession())
	require.NoError(t, err)

	t.Run("by path", func(t *testing.T) {
		_, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
			Flow:            explicitFlow(),
			ParentGroupPath: "no/such/path",
		}, index)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrParentNotFound))
		assert.Zero(t, fake.importCalls)
	})

	t.Run("by id", func(t *testing.T) {
		_, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
			Flow:          explicitFlow(),
			ParentGroupID: "no-such-id",
		}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrParentNotFound))
		assert.Zero(t, fake.importCalls)
	})
}

func TestDeployNamingConflict(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	fake.addGroup("existing", "flow1", strptr("a"))
	pipeline := newTestPipeline(fake)

	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "a",
		Name:          "flow1",
	}, nil)

	// A conflict is a decision point, not an error, and short-circuits
	// before any import.
	require.NoError(t, err)
	require.Nil(t, outcome)
	require.NotNil(t, conflict)
	assert.Equal(t, "existing", conflict.ExistingProcessGroupID)
	assert.Equal(t, "flow1", conflict.ExistingName)
	assert.Equal(t, "flow1", conflict.RequestedName)
	assert.Equal(t, "a", conflict.ParentGroupID)
	assert.Zero(t, fake.importCalls)
}

func TestDeployNoNameSkipsConflictCheck(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("existing", "imported", strptr("root"))
	pipeline := newTestPipeline(fake)

	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
	}, nil)
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, fake.importCalls)
}

func TestDeployGitRegistryUnsupported(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.registries["reg-git"] = nifi.RegistryClient{ID: "reg-git", Name: "github", Kind: nifi.RegistryKindGitHub}
	pipeline := newTestPipeline(fake)

	_, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          FlowSelector{RegistryClientID: "reg-git", BucketID: "bucket-1", FlowID: "flow-1"},
		ParentGroupID: "root",
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRegistryUnsupported))
	assert.Zero(t, fake.importCalls)
}

func TestDeployResolvesLatestVersion(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	pipeline := newTestPipeline(fake)

	outcome, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.NotNil(t, fake.lastImport.Version)
	assert.Equal(t, 7, *fake.lastImport.Version)
	// Remote echoed no version; the requested one is reported.
	assert.Equal(t, 7, outcome.DeployedVersion)
}

func TestDeployPinnedVersion(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	pipeline := newTestPipeline(fake)

	flow := explicitFlow()
	flow.Version = intptr(3)
	_, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          flow,
		ParentGroupID: "root",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, fake.lastImport.Version)
	assert.Equal(t, 3, *fake.lastImport.Version)
}

func TestDeployRenameFailureIsWarning(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.renameErr = errors.New("rename rejected")
	pipeline := newTestPipeline(fake)

	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
		Name:          "flow1",
	}, nil)

	// The import succeeded; nothing rolls it back.
	require.NoError(t, err)
	require.Nil(t, conflict)
	require.NotNil(t, outcome)
	assert.Equal(t, "imported", outcome.ProcessGroupName)
	require.Len(t, outcome.Warnings, 1)
	assert.Contains(t, outcome.Warnings[0], "rename")
	assert.Zero(t, fake.deleteCalls)
}

func TestDeployImportFailure(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.importErr = errors.New("registry unreachable")
	pipeline := newTestPipeline(fake)

	outcome, conflict, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
	}, nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Nil(t, conflict)
	assert.True(t, errors.Is(err, errors.ErrImportFailed))
}

func TestDeployPostActions(t *testing.T) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	pipeline := newTestPipeline(fake)

	outcome, _, err := pipeline.Deploy(context.Background(), testSession(), DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "root",
		PostActions:   PostActions{Disable: true, StopVersioning: true},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, []string{nifi.GroupStateDisabled}, fake.stateCalls)
	assert.Equal(t, 1, fake.stopVCalls)
}

func TestRegistryResolverTemplate(t *testing.T) {
	fake := newFakeClient()
	fake.registries["reg-1"] = nifi.RegistryClient{ID: "reg-1", Name: "local", Kind: nifi.RegistryKindNative}
	fake.latest["flow-9"] = 4

	templates := templateMap{
		"ingest": {Name: "ingest", RegistryClientID: "reg-1", BucketID: "bucket-1", FlowID: "flow-9"},
	}
	resolver := NewRegistryResolver(fake, templates, nil)

	ref, err := resolver.Resolve(context.Background(), testSession(), FlowSelector{Template: "ingest"})
	require.NoError(t, err)
	assert.Equal(t, "reg-1", ref.RegistryClientID)
	assert.Equal(t, "flow-9", ref.FlowID)
	require.NotNil(t, ref.Version)
	assert.Equal(t, 4, *ref.Version)
}

func TestRegistryResolverIncompleteReference(t *testing.T) {
	fake := newFakeClient()
	resolver := NewRegistryResolver(fake, nil, nil)

	_, err := resolver.Resolve(context.Background(), testSession(), FlowSelector{RegistryClientID: "reg-1"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

// templateMap is an in-memory TemplateSource.
type templateMap map[string]FlowTemplate

func (m templateMap) GetTemplate(_ context.Context, name string) (*FlowTemplate, error) {
	template, ok := m[name]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return &template, nil
}

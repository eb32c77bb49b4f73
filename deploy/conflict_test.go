package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowdeploy/errors"
	"github.com/c360/flowdeploy/nifi"
)

func conflictFixture() (*fakeClient, *Pipeline, DeploymentRequest, DeploymentConflict) {
	fake := newFakeClient()
	fake.addGroup("root", "NiFi Flow", nil)
	fake.addGroup("a", "A", strptr("root"))
	fake.addGroup("existing", "flow1", strptr("a"))
	pipeline := newTestPipeline(fake)

	req := DeploymentRequest{
		Flow:          explicitFlow(),
		ParentGroupID: "a",
		Name:          "flow1",
	}
	conflict := DeploymentConflict{
		ExistingProcessGroupID: "existing",
		ExistingName:           "flow1",
		RequestedName:          "flow1",
		ParentGroupID:          "a",
	}
	return fake, pipeline, req, conflict
}

func TestResolveConflictDeployAnyway(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, DeployAnyway, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	// The desired name is dropped: the remote's default stands and no
	// rename is attempted, so the duplicate never collides.
	assert.Equal(t, 1, fake.importCalls)
	assert.Zero(t, fake.renameCalls)
	assert.Zero(t, fake.deleteCalls)
	assert.Equal(t, "imported", outcome.ProcessGroupName)
}

func TestResolveConflictDeleteAndDeploy(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, DeleteAndDeploy, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	// Exactly one delete of the conflicting group, then exactly one import.
	assert.Equal(t, 1, fake.deleteCalls)
	assert.Equal(t, "existing", fake.lastDelete)
	assert.Equal(t, 1, fake.importCalls)
	assert.Equal(t, "flow1", outcome.ProcessGroupName)
}

func TestResolveConflictDeleteFailureBlocksImport(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()
	fake.deleteErr = errors.New("group is running")

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, DeleteAndDeploy, nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, errors.Is(err, errors.ErrDeletionFailed))
	// Never import over a group that failed to delete.
	assert.Zero(t, fake.importCalls)
}

func TestResolveConflictUpdateVersion(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, UpdateVersion, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	// The existing group is upgraded in place; nothing new is created.
	assert.Equal(t, 1, fake.upgradeCalls)
	assert.Equal(t, 7, fake.lastUpgrade)
	assert.Zero(t, fake.importCalls)
	assert.Zero(t, fake.deleteCalls)
	assert.Equal(t, "existing", outcome.ProcessGroupID)
	assert.Equal(t, "flow1", outcome.ProcessGroupName)
	assert.Equal(t, 7, outcome.DeployedVersion)
}

func TestResolveConflictUpdateVersionFailure(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()
	fake.upgradeErr = errors.New("version not in registry")

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, UpdateVersion, nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
}

func TestResolveConflictInvalidAction(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()

	_, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, ConflictAction("merge"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Zero(t, fake.importCalls)
	assert.Zero(t, fake.deleteCalls)
	assert.Zero(t, fake.upgradeCalls)
}

func TestConflictActionValid(t *testing.T) {
	assert.True(t, DeployAnyway.Valid())
	assert.True(t, DeleteAndDeploy.Valid())
	assert.True(t, UpdateVersion.Valid())
	assert.False(t, ConflictAction("").Valid())
	assert.False(t, ConflictAction("merge").Valid())
}

func TestResolveConflictDeployAnywayPreservesPostActions(t *testing.T) {
	fake, pipeline, req, conflict := conflictFixture()
	req.PostActions = PostActions{Start: true}

	outcome, err := pipeline.ResolveConflict(context.Background(), testSession(), req, conflict, DeployAnyway, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, []string{nifi.GroupStateRunning}, fake.stateCalls)
}

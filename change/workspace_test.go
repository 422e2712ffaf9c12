package change

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/vcsdb"
)

func openTestDB(t *testing.T) vcsdb.Database {
	t.Helper()
	db, cleanup, err := vcsdb.OpenTemp(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return db
}

func TestWorkspaceWorkingPointer(t *testing.T) {
	ws := newWorkspace(openTestDB(t))

	_, ok, err := ws.working()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ws.setWorking("c1"))
	id, ok, err := ws.working()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c1", id)

	require.NoError(t, ws.clearWorking())
	_, ok, err = ws.working()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWorkspaceStashList(t *testing.T) {
	ws := newWorkspace(openTestDB(t))

	require.NoError(t, ws.stash("c1"))
	require.NoError(t, ws.stash("c2"))

	list, err := ws.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"c1", "c2"}, list)

	require.NoError(t, ws.unstash("c1"))
	list, err = ws.List()
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, list)
}

func TestWorkspaceIsStashedTracksCache(t *testing.T) {
	ws := newWorkspace(openTestDB(t))

	stashed, err := ws.IsStashed("c1")
	require.NoError(t, err)
	require.False(t, stashed)

	require.NoError(t, ws.stash("c1"))
	stashed, err = ws.IsStashed("c1")
	require.NoError(t, err)
	require.True(t, stashed)

	// second call must hit the lru cache path, not just the bucket
	stashed, err = ws.IsStashed("c1")
	require.NoError(t, err)
	require.True(t, stashed)

	require.NoError(t, ws.unstash("c1"))
	stashed, err = ws.IsStashed("c1")
	require.NoError(t, err)
	require.False(t, stashed, "unstash must invalidate the cached result")
}

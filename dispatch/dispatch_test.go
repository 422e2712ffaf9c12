package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/repo"
	"github.com/biscuitwizard/vcscore/vcserr"
)

func openTestDispatcher(t *testing.T, authorize Authorize) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	cfg, err := repo.LoadConfig(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	cfg.StoragePath = filepath.Join(dir, "vcscore.db")
	r, err := repo.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return New(r, authorize)
}

func TestObjectUpdateRoundTrip(t *testing.T) {
	d := openTestDispatcher(t, nil)

	_, err := d.ChangeCreate("alice", false)
	require.NoError(t, err)

	_, err = d.ObjectUpdate("alice", "a", "object a property x = 1 endobject")
	require.NoError(t, err)

	got, ok, err := d.ObjectGet("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", got.Name)
}

func TestObjectUpdateRejectsBadName(t *testing.T) {
	d := openTestDispatcher(t, nil)
	_, err := d.ObjectUpdate("alice", "", "object a endobject")
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindMalformedDump))
}

func TestAuthorizeHookBlocksMutation(t *testing.T) {
	d := openTestDispatcher(t, func(userID, operation string) bool { return false })
	_, err := d.ChangeCreate("mallory", false)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindPermissionDenied))
}

func TestMetaIgnoredPropertyFiltersOnIngest(t *testing.T) {
	d := openTestDispatcher(t, nil)

	_, err := d.ChangeCreate("alice", false)
	require.NoError(t, err)
	require.NoError(t, d.MetaAddIgnoredProperty("alice", "a", "x"))

	_, err = d.ObjectUpdate("alice", "a", "object a property x = 1\nproperty y = 2 endobject")
	require.NoError(t, err)

	got, ok, err := d.ObjectGet("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	for _, p := range got.Properties {
		require.NotEqual(t, "x", p.Name)
	}
}

// TestMetaIgnoredPropertyFiltersOnReadback adds the ignore rule after
// the object already exists, so the property's absence from ObjectGet
// can only come from read-back filtering, not ingest-time filtering.
func TestMetaIgnoredPropertyFiltersOnReadback(t *testing.T) {
	d := openTestDispatcher(t, nil)

	_, err := d.ChangeCreate("alice", false)
	require.NoError(t, err)
	_, err = d.ObjectUpdate("alice", "a", "object a property x = 1\nproperty y = 2 endobject")
	require.NoError(t, err)

	before, ok, err := d.ObjectGet("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, before.Properties, 2)

	require.NoError(t, d.MetaAddIgnoredProperty("alice", "a", "x"))

	after, ok, err := d.ObjectGet("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	for _, p := range after.Properties {
		require.NotEqual(t, "x", p.Name)
	}
}

// TestMetaMutationRequiresDraft confirms meta edits go through the
// same Draft requirement as an object edit, rather than writing
// straight through to storage outside the change pipeline.
func TestMetaMutationRequiresDraft(t *testing.T) {
	d := openTestDispatcher(t, nil)
	err := d.MetaAddIgnoredProperty("alice", "a", "x")
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindIllegalTransition))
}

// TestObjectGetByVersion exercises the optional version argument of
// object.get, fetching an older version after the object has moved on.
func TestObjectGetByVersion(t *testing.T) {
	d := openTestDispatcher(t, nil)

	_, err := d.ChangeCreate("alice", false)
	require.NoError(t, err)
	_, err = d.ObjectUpdate("alice", "a", "object a property x = 1 endobject")
	require.NoError(t, err)
	working, _, _, err := d.ChangeStatus()
	require.NoError(t, err)
	_, err = d.ChangeApprove("alice", working)
	require.NoError(t, err)

	_, err = d.ChangeCreate("alice", false)
	require.NoError(t, err)
	_, err = d.ObjectUpdate("alice", "a", "object a property x = 2 endobject")
	require.NoError(t, err)
	working, _, _, err = d.ChangeStatus()
	require.NoError(t, err)
	_, err = d.ChangeApprove("alice", working)
	require.NoError(t, err)

	current, ok, err := d.ObjectGet("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", current.Properties[0].Value)

	v1 := uint64(1)
	old, ok, err := d.ObjectGet("a", &v1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", old.Properties[0].Value)
}

func TestChangeLifecycleThroughDispatcher(t *testing.T) {
	d := openTestDispatcher(t, nil)

	_, err := d.ChangeCreate("alice", false)
	require.NoError(t, err)
	_, err = d.ObjectUpdate("alice", "a", "object a endobject")
	require.NoError(t, err)

	working, ok, _, err := d.ChangeStatus()
	require.NoError(t, err)
	require.True(t, ok)

	ch, err := d.ChangeApprove("alice", working)
	require.NoError(t, err)
	require.NotNil(t, ch)

	ids, err := d.IndexList(0, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Equal(t, working, ids[0])

	effects, err := d.IndexCalcDelta(0)
	require.NoError(t, err)
	require.Len(t, effects, 1)
}

func TestIndexCalcDeltaUnknownPosition(t *testing.T) {
	d := openTestDispatcher(t, nil)
	_, err := d.IndexCalcDelta(99)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindVersionNotFound))
}

func TestObjectListRejectsUnknownType(t *testing.T) {
	d := openTestDispatcher(t, nil)
	_, err := d.ObjectList(dump.ObjectType("Bogus"))
	require.Error(t, err)
}

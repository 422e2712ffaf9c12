package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
)

func openTestDB(t *testing.T) vcsdb.Database {
	t.Helper()
	db, cleanup, err := vcsdb.OpenTemp(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return db
}

func TestStoreDedup(t *testing.T) {
	db := openTestDB(t)
	s := New(db)

	d := dump.Dump{Name: "foo", Properties: []dump.Property{{Name: "x", Value: "1"}}}
	digest1, err := StoreDump(s, d)
	require.NoError(t, err)
	digest2, err := StoreDump(s, d)
	require.NoError(t, err)
	require.Equal(t, digest1, digest2)

	count, err := s.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestGetMissingIsNotError(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	v, err := s.Get("deadbeef")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestIntegrityMismatch(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	require.NoError(t, s.Store("digestA", []byte("original")))
	err := s.Store("digestA", []byte("different"))
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindIntegrityMismatch))
}

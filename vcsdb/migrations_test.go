package vcsdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/vcslog"
)

func testLog() *vcslog.Logger { return vcslog.New(nopWriter{}, vcslog.LevelError) }

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestMigratorAppliesEachStepOnce(t *testing.T) {
	db, cleanup, err := OpenTemp(t.TempDir())
	require.NoError(t, err)
	defer cleanup()

	calls := 0
	mig := Migration{Name: "001", Up: func(db Database) error {
		calls++
		return db.Put(TreeConfig, []byte("k"), []byte("v"))
	}}

	m := NewMigrator(testLog(), mig)
	require.NoError(t, m.Apply(db))
	require.NoError(t, m.Apply(db))
	require.Equal(t, 1, calls, "a migration already recorded in TreeMigrations must not rerun")

	got, err := db.Get(TreeConfig, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestMigratorStopsOnFirstFailure(t *testing.T) {
	db, cleanup, err := OpenTemp(t.TempDir())
	require.NoError(t, err)
	defer cleanup()

	second := false
	m := NewMigrator(testLog(),
		Migration{Name: "001", Up: func(db Database) error { return errBoom }},
		Migration{Name: "002", Up: func(db Database) error { second = true; return nil }},
	)
	require.Error(t, m.Apply(db))
	require.False(t, second, "a later migration must not run after an earlier one fails")
}

package vcsdb

import "github.com/biscuitwizard/vcscore/vcslog"

// Migration is one named, idempotent schema step, adapted from the
// teacher's migrations.Migration (migrations/migrations.go): a named
// step applied at most once, tracked in TreeMigrations so re-running
// the binary against an already-migrated database is a no-op.
type Migration struct {
	Name string
	Up   func(db Database) error
}

// Migrator applies a fixed, ordered list of migrations, skipping any
// already recorded as applied — same shape as the teacher's
// Migrator.Apply, generalized from ethdb.Database to vcsdb.Database.
type Migrator struct {
	Migrations []Migration
	log        *vcslog.Logger
}

// NewMigrator builds a migrator over the given ordered steps. Steps
// apply sequentially in list order; reordering the list after release
// is unsafe for the same reason the teacher's comment warns about:
// idempotency is achieved by recording each applied step's name in
// TreeMigrations, never by reordering history.
func NewMigrator(log *vcslog.Logger, steps ...Migration) *Migrator {
	return &Migrator{Migrations: steps, log: log}
}

// Apply runs every not-yet-applied migration against db in order.
func (m *Migrator) Apply(db Database) error {
	if len(m.Migrations) == 0 {
		return nil
	}
	applied := map[string]bool{}
	if err := db.Walk(TreeMigrations, nil, func(k, _ []byte) (bool, error) {
		applied[string(k)] = true
		return true, nil
	}); err != nil {
		return err
	}

	for _, mig := range m.Migrations {
		if applied[mig.Name] {
			continue
		}
		m.log.Info("apply migration", "name", mig.Name)
		if err := mig.Up(db); err != nil {
			return err
		}
		if err := db.Put(TreeMigrations, []byte(mig.Name), []byte{1}); err != nil {
			return err
		}
		m.log.Info("applied migration", "name", mig.Name)
	}
	return nil
}

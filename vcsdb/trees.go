package vcsdb

// Trees are the logical partitions of the single embedded key-value
// file, one bolt bucket each. Naming and the doc-comment-per-bucket
// style follow the teacher's common/dbutils/bucket.go.
const (
	// TreeObjects holds digest -> canonical dump bytes.
	// key   - lowercase hex SHA-256, 64 chars
	// value - canonical dump bytes
	TreeObjects = "objects"

	// TreeRefs holds "<type>/<name>" -> encoded VersionEntry list. A
	// MetaObject's ignore-list document is just another RefKey in this
	// same bucket (Type: dump.TypeMetaObject), versioned and
	// content-addressed through TreeObjects exactly like a regular
	// Object — there is no separate meta-specific bucket.
	// key   - ObjectType + "/" + Name
	// value - JSON-encoded version chain, ordered by Version ascending
	TreeRefs = "refs"

	// TreeChanges holds change-id -> encoded Change record.
	// key   - change UUID string
	// value - JSON-encoded Change
	TreeChanges = "changes"

	// TreeIndex holds big-endian uint64 position -> change-id.
	// key   - 8-byte big-endian position, monotonically increasing
	// value - change UUID string
	TreeIndex = "index"

	// TreeWorkspace holds "stash/" + change-id -> one-byte marker for
	// every Stashed change, plus the single key WorkingKey -> change-id
	// for the current Draft, if any.
	TreeWorkspace = "workspace"

	// TreeConfig holds small singleton values. The baseline migration
	// writes schema_version here; upstream mirror settings are read from
	// the process configuration, not from this tree.
	TreeConfig = "config"

	// TreeMigrations tracks applied migration names.
	// key   - migration name
	// value - one-byte marker
	TreeMigrations = "migrations"
)

// AllTrees enumerates every bucket created on Open, mirroring the
// teacher's loop over dbutils.Buckets in NewMemDatabase.
var AllTrees = []string{
	TreeObjects,
	TreeRefs,
	TreeChanges,
	TreeIndex,
	TreeWorkspace,
	TreeConfig,
	TreeMigrations,
}

// WorkingKey is the sentinel key in TreeWorkspace naming the current
// Draft change, distinct from the per-change marker keys.
const WorkingKey = "\x00working"

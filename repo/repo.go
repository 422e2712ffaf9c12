// Package repo is the Repository handle of spec.md §9's design note:
// every operation takes an explicit handle rather than reaching for an
// ambient singleton. Open wires the embedded database, every component
// store, the background flusher, and the migration runner; Close tears
// them down in reverse.
package repo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/viper"

	"github.com/biscuitwizard/vcscore/change"
	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/mirror"
	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
	"github.com/biscuitwizard/vcscore/vcslog"
)

// schemaVersion is stamped into TreeConfig by the baseline migration,
// the same "applied migrations are permanent record" idea the
// teacher's migrations.go tracks per-name rather than per-version, but
// recorded here as a single value for operational visibility.
const schemaVersion = "1"

// Config is the process configuration loaded via viper: storage path,
// upstream mirror settings, and flusher tuning.
type Config struct {
	StoragePath     string
	Mirror          mirror.Config
	FlushInterval   time.Duration
	FlushLimitBytes datasize.ByteSize
}

func defaults() Config {
	return Config{
		StoragePath:     "vcscore.db",
		FlushInterval:   2 * time.Second,
		FlushLimitBytes: 4 * datasize.MB,
	}
}

// LoadConfig reads a TOML/YAML/JSON config file at path via viper
// (storj-storj's config-loading dependency, wired here for
// ExternalMirrorConfig and storage paths per SPEC_FULL.md §1.3). A
// missing file is not an error: defaults apply, matching cobra/viper's
// usual "flags and env override an optional file" posture.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("storage_path", cfg.StoragePath)
	v.SetDefault("flush_interval_seconds", cfg.FlushInterval.Seconds())
	v.SetDefault("flush_limit_bytes", uint64(cfg.FlushLimitBytes))
	if _, statErr := os.Stat(path); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("repo: load config %s: %w", path, err)
		}
	}
	cfg.StoragePath = v.GetString("storage_path")
	cfg.FlushInterval = time.Duration(v.GetFloat64("flush_interval_seconds") * float64(time.Second))
	cfg.FlushLimitBytes = datasize.ByteSize(v.GetUint64("flush_limit_bytes"))
	cfg.Mirror = mirror.Config{
		URL:            v.GetString("mirror.url"),
		CredentialsRef: v.GetString("mirror.credentials_ref"),
		Timeout:        v.GetDuration("mirror.timeout"),
	}
	return cfg, nil
}

// Repo is the open repository handle: the one object every dispatcher
// call is threaded through.
type Repo struct {
	cfg     Config
	db      *vcsdb.BoltDB
	Machine *change.Machine
	flusher *vcsdb.Flusher
	log     *vcslog.Logger

	// mu serializes all write operations against the repository,
	// per spec.md §5's single-writer discipline: bbolt itself only
	// guarantees one writer transaction at a time, but Change Machine
	// operations span several logical steps (e.g. Approve's conflict
	// check followed by its index append) that must not interleave
	// across two concurrent callers.
	mu sync.Mutex

	cancel context.CancelFunc
}

// Open creates or opens the database at cfg.StoragePath, applies any
// pending migrations, starts the background flusher, and wires a
// change.Machine over the result.
func Open(cfg Config) (*Repo, error) {
	db, err := vcsdb.Open(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	log := vcslog.Root().With("component", "repo")
	migrator := vcsdb.NewMigrator(log, baselineMigration())
	if err := migrator.Apply(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	flusher := vcsdb.NewFlusher(log, cfg.FlushInterval, cfg.FlushLimitBytes)
	flusher.Start(ctx)

	var mc mirror.Client
	if cfg.Mirror.URL != "" {
		mc = mirror.NewHTTPClient(cfg.Mirror)
	} else {
		mc = mirror.NoopClient{}
	}

	r := &Repo{
		cfg:     cfg,
		db:      db,
		Machine: change.New(db, dump.TextParser{}, mc),
		flusher: flusher,
		log:     log,
		cancel:  cancel,
	}
	log.Info("repository opened", "path", cfg.StoragePath)
	return r, nil
}

func baselineMigration() vcsdb.Migration {
	return vcsdb.Migration{
		Name: "001_stamp_schema_version",
		Up: func(db vcsdb.Database) error {
			return db.Put(vcsdb.TreeConfig, []byte("schema_version"), []byte(schemaVersion))
		},
	}
}

// Close stops the flusher and closes the underlying database. Further
// use of Machine after Close is undefined, matching bbolt's own
// post-Close contract.
func (r *Repo) Close() error {
	r.cancel()
	r.flusher.Stop()
	if err := r.db.Close(); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "close database", err)
	}
	r.log.Info("repository closed")
	return nil
}

// WithLock runs fn holding the repository's single-writer lock, the
// serialization span spec.md §5 requires around every mutating Change
// Machine call (Update/Delete/Rename/Stash/Switch/Approve/Submit/
// Abandon/Reset). Read-only calls (Get/List/Status) don't need it.
func (r *Repo) WithLock(fn func(*change.Machine) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.Machine)
}

// Status reports the repository's storage path and schema version for
// the hello_op-derived liveness surface (SPEC_FULL.md §3).
func (r *Repo) Status() (path string, version string, err error) {
	raw, err := r.db.Get(vcsdb.TreeConfig, []byte("schema_version"))
	if err != nil {
		return "", "", vcserr.Wrap(vcserr.KindStorageUnavailable, "read schema version", err)
	}
	return r.cfg.StoragePath, string(raw), nil
}

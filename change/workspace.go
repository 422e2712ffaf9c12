package change

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
)

const stashPrefix = "stash/"

// stashCacheSize bounds the recent-lookup cache below; TreeWorkspace
// itself remains the system of record, this only saves a redundant
// Get for IsStashed checks the dispatcher makes repeatedly against the
// same handful of in-flight changes.
const stashCacheSize = 256

// workspace wraps the TreeWorkspace bucket: the single working-change
// pointer plus the set of Stashed change-ids (spec.md §4.7).
type workspace struct {
	db    vcsdb.Database
	cache *lru.Cache // change-id -> bool, recent IsStashed results
}

func newWorkspace(db vcsdb.Database) *workspace {
	cache, err := lru.New(stashCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// stashCacheSize never is.
		panic(err)
	}
	return &workspace{db: db, cache: cache}
}

// IsStashed reports whether id is currently in the Stashed set,
// consulting the bounded recent-lookup cache before the bucket.
func (w *workspace) IsStashed(id string) (bool, error) {
	if v, ok := w.cache.Get(id); ok {
		return v.(bool), nil
	}
	raw, err := w.db.Get(vcsdb.TreeWorkspace, []byte(stashPrefix+id))
	if err != nil {
		return false, vcserr.Wrap(vcserr.KindStorageUnavailable, "read stash marker", err)
	}
	stashed := raw != nil
	w.cache.Add(id, stashed)
	return stashed, nil
}

func (w *workspace) working() (string, bool, error) {
	raw, err := w.db.Get(vcsdb.TreeWorkspace, []byte(vcsdb.WorkingKey))
	if err != nil {
		return "", false, vcserr.Wrap(vcserr.KindStorageUnavailable, "read working pointer", err)
	}
	if raw == nil {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (w *workspace) setWorking(id string) error {
	if err := w.db.Put(vcsdb.TreeWorkspace, []byte(vcsdb.WorkingKey), []byte(id)); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "set working pointer", err)
	}
	return nil
}

func (w *workspace) clearWorking() error {
	if err := w.db.Delete(vcsdb.TreeWorkspace, []byte(vcsdb.WorkingKey)); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "clear working pointer", err)
	}
	return nil
}

func (w *workspace) stash(id string) error {
	if err := w.db.Put(vcsdb.TreeWorkspace, []byte(stashPrefix+id), []byte{1}); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "stash change", err)
	}
	w.cache.Remove(id)
	return nil
}

func (w *workspace) unstash(id string) error {
	if err := w.db.Delete(vcsdb.TreeWorkspace, []byte(stashPrefix+id)); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "unstash change", err)
	}
	w.cache.Remove(id)
	return nil
}

// List returns every Stashed change-id, per spec.md §4.7.
func (w *workspace) List() ([]string, error) {
	var out []string
	prefix := []byte(stashPrefix)
	err := w.db.Walk(vcsdb.TreeWorkspace, prefix, func(k, _ []byte) (bool, error) {
		out = append(out, string(k[len(prefix):]))
		return true, nil
	})
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "list workspace", err)
	}
	return out, nil
}

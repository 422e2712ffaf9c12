// Package refs is the reference resolver of spec.md §4.3: a
// persistent mapping from (ObjectType, Name) to an ordered,
// contiguous-from-1 chain of versions, each bound to a digest and the
// change-id that produced it.
package refs

import (
	"encoding/json"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// RefKey identifies an entity independent of its content.
type RefKey struct {
	Type dump.ObjectType
	Name string
}

func (k RefKey) String() string {
	return string(k.Type) + "/" + k.Name
}

func key(k RefKey) []byte {
	return []byte(k.String())
}

// VersionEntry is one immutable point in a RefKey's history. Deleted
// marks a tombstone version: Digest still carries the pre-delete
// digest for audit, but the refkey is considered absent as of this
// version (spec.md doesn't give the Resolver a dedicated delete op —
// deletion is modeled as a regular, contiguous version whose content
// is "nothing," the same way the rest of the chain is append-only).
type VersionEntry struct {
	Version  uint64
	Digest   string
	ChangeID string
	Deleted  bool
}

// chain is the on-disk encoding of a RefKey's full version history,
// ordered ascending by Version. Encoded as JSON: refs are low-volume
// compared to object bytes, and JSON keeps the on-disk format
// debuggable, the same tradeoff the teacher makes for its DBINFO
// bucket (common/dbutils/bucket.go) versus the raw/packed encodings it
// reserves for high-volume state buckets.
type chain struct {
	Entries []VersionEntry `json:"entries"`
}

// Resolver wraps a vcsdb.Database's TreeRefs bucket.
type Resolver struct {
	db vcsdb.Database
}

func New(db vcsdb.Database) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) loadChain(k RefKey) (chain, error) {
	raw, err := r.db.Get(vcsdb.TreeRefs, key(k))
	if err != nil {
		return chain{}, vcserr.Wrap(vcserr.KindStorageUnavailable, "read ref", err)
	}
	if raw == nil {
		return chain{}, nil
	}
	var c chain
	if err := json.Unmarshal(raw, &c); err != nil {
		return chain{}, vcserr.Wrap(vcserr.KindStorageUnavailable, "decode ref chain", err)
	}
	return c, nil
}

func (r *Resolver) saveChain(k RefKey, c chain) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "encode ref chain", err)
	}
	if err := r.db.Put(vcsdb.TreeRefs, key(k), raw); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "write ref", err)
	}
	return nil
}

// Current returns the highest version for refkey, if any.
func (r *Resolver) Current(k RefKey) (VersionEntry, bool, error) {
	c, err := r.loadChain(k)
	if err != nil {
		return VersionEntry{}, false, err
	}
	if len(c.Entries) == 0 {
		return VersionEntry{}, false, nil
	}
	return c.Entries[len(c.Entries)-1], true, nil
}

// Version returns the digest bound to a specific version number.
func (r *Resolver) Version(k RefKey, v uint64) (string, bool, error) {
	c, err := r.loadChain(k)
	if err != nil {
		return "", false, err
	}
	for _, e := range c.Entries {
		if e.Version == v {
			return e.Digest, true, nil
		}
	}
	return "", false, nil
}

// History returns the full ordered version chain for refkey.
func (r *Resolver) History(k RefKey) ([]VersionEntry, error) {
	c, err := r.loadChain(k)
	if err != nil {
		return nil, err
	}
	return append([]VersionEntry(nil), c.Entries...), nil
}

// Append adds a new version on top of refkey's chain: version 1 if the
// chain is empty, otherwise previous+1. Called only from the Change
// State Machine (spec.md §4.3).
func (r *Resolver) Append(k RefKey, digest string, changeID string) (uint64, error) {
	return r.appendEntry(k, digest, changeID, false)
}

// AppendTombstone records a deletion as the next contiguous version,
// carrying the pre-delete digest forward for audit while marking the
// refkey absent as of this version.
func (r *Resolver) AppendTombstone(k RefKey, preDigest string, changeID string) (uint64, error) {
	return r.appendEntry(k, preDigest, changeID, true)
}

func (r *Resolver) appendEntry(k RefKey, digest string, changeID string, deleted bool) (uint64, error) {
	c, err := r.loadChain(k)
	if err != nil {
		return 0, err
	}
	next := uint64(1)
	if len(c.Entries) > 0 {
		next = c.Entries[len(c.Entries)-1].Version + 1
	}
	c.Entries = append(c.Entries, VersionEntry{Version: next, Digest: digest, ChangeID: changeID, Deleted: deleted})
	if err := r.saveChain(k, c); err != nil {
		return 0, err
	}
	return next, nil
}

// Rename moves old's entire version chain under new. Fails with
// NameAlreadyExists if new is occupied, or RefNotFound if old is empty.
func (r *Resolver) Rename(oldKey, newKey RefKey) error {
	oldChain, err := r.loadChain(oldKey)
	if err != nil {
		return err
	}
	if len(oldChain.Entries) == 0 {
		return vcserr.RefNotFound.WithRef(oldKey.String())
	}
	newChain, err := r.loadChain(newKey)
	if err != nil {
		return err
	}
	if len(newChain.Entries) != 0 {
		return vcserr.NameAlreadyExists.WithRef(newKey.String())
	}
	if err := r.saveChain(newKey, oldChain); err != nil {
		return err
	}
	if err := r.db.Delete(vcsdb.TreeRefs, key(oldKey)); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "delete old ref", err)
	}
	return nil
}

// List enumerates every RefKey of the given type; order unspecified.
func (r *Resolver) List(t dump.ObjectType) ([]RefKey, error) {
	var out []RefKey
	prefix := []byte(string(t) + "/")
	err := r.db.Walk(vcsdb.TreeRefs, prefix, func(k, _ []byte) (bool, error) {
		name := string(k)[len(prefix):]
		out = append(out, RefKey{Type: t, Name: name})
		return true, nil
	})
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "list refs", err)
	}
	return out, nil
}

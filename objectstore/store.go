// Package objectstore is the content-addressed, insert-only object
// store of spec.md §4.2: digest -> canonical dump bytes, deduplicated
// by construction since the digest is the key.
package objectstore

import (
	"bytes"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// Store wraps one vcsdb.Database's TreeObjects bucket.
type Store struct {
	db vcsdb.Database
}

func New(db vcsdb.Database) *Store {
	return &Store{db: db}
}

// Store is idempotent: if digest already exists, the stored bytes
// must equal the input or IntegrityMismatch is returned (a hash
// collision or corruption, per spec.md §4.2 — fatal, never retried
// inside the core).
func (s *Store) Store(digest string, bytes_ []byte) error {
	existing, err := s.db.Get(vcsdb.TreeObjects, []byte(digest))
	if err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "read object", err)
	}
	if existing != nil {
		if !bytes.Equal(existing, bytes_) {
			return vcserr.New(vcserr.KindIntegrityMismatch, "stored bytes disagree with re-put under same digest").WithRef(digest)
		}
		return nil
	}
	if err := s.db.Put(vcsdb.TreeObjects, []byte(digest), bytes_); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "write object", err)
	}
	return nil
}

// Get is total: a missing digest returns (nil, nil), never an error.
func (s *Store) Get(digest string) ([]byte, error) {
	v, err := s.db.Get(vcsdb.TreeObjects, []byte(digest))
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "read object", err)
	}
	return v, nil
}

// Count returns the number of distinct digests stored. No deletion API
// is exposed here — reachability-based GC, if ever added, is a
// separate concern per spec.md §9.
func (s *Store) Count() (uint64, error) {
	var n uint64
	err := s.db.Walk(vcsdb.TreeObjects, nil, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	if err != nil {
		return 0, vcserr.Wrap(vcserr.KindStorageUnavailable, "count objects", err)
	}
	return n, nil
}

// StoreDump canonicalizes and digests d, stores the canonical bytes,
// and returns the digest — the composition spec.md §4.5's ingest
// pipeline needs after metastore.Filter has run.
func StoreDump(s *Store, d dump.Dump) (string, error) {
	canonical := dump.Canonicalize(d)
	digest := dump.Digest(canonical)
	if err := s.Store(digest, canonical); err != nil {
		return "", err
	}
	return digest, nil
}

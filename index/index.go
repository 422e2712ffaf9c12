// Package index is the append-only, strictly linear log of approved
// changes from spec.md §4.6 — the repository's approved history.
package index

import (
	"encoding/binary"

	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// Index wraps one vcsdb.Database's TreeIndex bucket. Positions are
// 0-indexed, big-endian uint64 keys, never reused — the same
// monotonic-numeric-key shape the teacher uses for block-number-keyed
// changesets (common/dbutils/bucket.go's AccountChangeSetBucket).
type Index struct {
	db vcsdb.Database
}

func New(db vcsdb.Database) *Index {
	return &Index{db: db}
}

func encodePosition(pos uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, pos)
	return b
}

func decodePosition(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// Append assigns the next position to changeID and returns it. Must be
// called within the same lock span as the Object Store/Reference
// Resolver writes for the approving change, per spec.md §5.
func (x *Index) Append(tx vcsdb.Tx, changeID string) (uint64, error) {
	head, ok, err := x.headTx(tx)
	if err != nil {
		return 0, err
	}
	pos := uint64(0)
	if ok {
		pos = head + 1
	}
	if err := tx.Put(vcsdb.TreeIndex, encodePosition(pos), []byte(changeID)); err != nil {
		return 0, vcserr.Wrap(vcserr.KindStorageUnavailable, "append index", err)
	}
	return pos, nil
}

func (x *Index) headTx(tx vcsdb.Tx) (uint64, bool, error) {
	var last []byte
	found := false
	err := tx.Walk(vcsdb.TreeIndex, nil, func(k, _ []byte) (bool, error) {
		last = k
		found = true
		return true, nil // no early stop: bbolt cursors are already ordered, but we must reach the true max
	})
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	return decodePosition(last), true, nil
}

// Head returns the highest occupied position, if any.
func (x *Index) Head() (uint64, bool, error) {
	var out uint64
	var ok bool
	err := x.db.View(func(tx vcsdb.Tx) error {
		var err error
		out, ok, err = x.headTx(tx)
		return err
	})
	if err != nil {
		return 0, false, vcserr.Wrap(vcserr.KindStorageUnavailable, "read index head", err)
	}
	return out, ok, nil
}

// At returns the change-id recorded at position.
func (x *Index) At(position uint64) (string, bool, error) {
	raw, err := x.db.Get(vcsdb.TreeIndex, encodePosition(position))
	if err != nil {
		return "", false, vcserr.Wrap(vcserr.KindStorageUnavailable, "read index position", err)
	}
	if raw == nil {
		return "", false, nil
	}
	return string(raw), true, nil
}

// Length returns the number of approved entries.
func (x *Index) Length() (uint64, error) {
	head, ok, err := x.Head()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return head + 1, nil
}

// Iter returns change-ids for positions in [from, to).
func (x *Index) Iter(from, to uint64) ([]string, error) {
	var out []string
	for pos := from; pos < to; pos++ {
		id, ok, err := x.At(pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out, nil
}

// Package vcsdb is the embedded, tree-partitioned key-value engine
// underlying every other component: a single bbolt file with one
// bucket ("tree") per logical partition from spec.md §6's persisted
// layout. Shaped after the teacher's ethdb.Database/Putter/Getter
// split (ethdb/memory_database.go).
package vcsdb

import (
	"bytes"
	"os"

	"go.etcd.io/bbolt"

	"github.com/biscuitwizard/vcscore/vcserr"
)

// Putter writes into one tree.
type Putter interface {
	Put(tree string, key, value []byte) error
}

// Getter reads from one tree.
type Getter interface {
	Get(tree string, key []byte) ([]byte, error) // nil, nil if absent
}

// Walker enumerates a tree's key range. fn returning false stops
// the walk early without error.
type Walker interface {
	Walk(tree string, prefix []byte, fn func(k, v []byte) (bool, error)) error
}

// Deleter removes one key.
type Deleter interface {
	Delete(tree string, key []byte) error
}

// Database is the full read/write surface every component is built
// against. A Batch groups several tree operations into one atomic
// write per spec.md §5's durability guarantee.
type Database interface {
	Putter
	Getter
	Walker
	Deleter
	// Batch executes fn against a writable transaction spanning every
	// tree; fn's puts/deletes become visible atomically, or not at all
	// if fn returns an error.
	Batch(fn func(tx Tx) error) error
	// View executes fn against a read-only, point-in-time snapshot.
	View(fn func(tx Tx) error) error
	Close() error
}

// Tx is the transaction-scoped view Batch/View hand to the caller.
type Tx interface {
	Putter
	Getter
	Walker
	Deleter
}

// BoltDB is the sole Database implementation: one *bbolt.DB file with
// AllTrees pre-created as buckets, matching the teacher's
// BoltDatabase wrapping *bolt.Tx in ethdb/memory_database.go.
type BoltDB struct {
	db *bbolt.DB
}

// Open creates or opens path, ensuring every logical tree exists.
func Open(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "open database", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, tree := range AllTrees {
			if _, err := tx.CreateBucketIfNotExists([]byte(tree)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "create trees", err)
	}
	return &BoltDB{db: db}, nil
}

// OpenTemp opens a fresh database backed by a private temp file under
// dir, the equivalent of the teacher's NewMemDatabase for tests: bbolt
// has no true in-memory mode, so tests get an ephemeral file instead.
func OpenTemp(dir string) (*BoltDB, func(), error) {
	f, err := os.CreateTemp(dir, "vcscore-*.db")
	if err != nil {
		return nil, nil, err
	}
	path := f.Name()
	_ = f.Close()
	db, err := Open(path)
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
		os.Remove(path)
	}
	return db, cleanup, nil
}

func (b *BoltDB) Put(tree string, key, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tree)).Put(key, value)
	})
}

func (b *BoltDB) Get(tree string, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(tree)).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (b *BoltDB) Delete(tree string, key []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(tree)).Delete(key)
	})
}

func (b *BoltDB) Walk(tree string, prefix []byte, fn func(k, v []byte) (bool, error)) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(tree)).Cursor()
		var k, v []byte
		if len(prefix) == 0 {
			k, v = c.First()
		} else {
			k, v = c.Seek(prefix)
		}
		for ; k != nil; k, v = c.Next() {
			if len(prefix) > 0 && !bytes.HasPrefix(k, prefix) {
				break
			}
			kCopy, vCopy := append([]byte(nil), k...), append([]byte(nil), v...)
			cont, err := fn(kCopy, vCopy)
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}

type boltTx struct{ tx *bbolt.Tx }

func (t *boltTx) Put(tree string, key, value []byte) error {
	return t.tx.Bucket([]byte(tree)).Put(key, value)
}

func (t *boltTx) Get(tree string, key []byte) ([]byte, error) {
	v := t.tx.Bucket([]byte(tree)).Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *boltTx) Delete(tree string, key []byte) error {
	return t.tx.Bucket([]byte(tree)).Delete(key)
}

func (t *boltTx) Walk(tree string, prefix []byte, fn func(k, v []byte) (bool, error)) error {
	c := t.tx.Bucket([]byte(tree)).Cursor()
	var k, v []byte
	if len(prefix) == 0 {
		k, v = c.First()
	} else {
		k, v = c.Seek(prefix)
	}
	for ; k != nil; k, v = c.Next() {
		if len(prefix) > 0 && !bytes.HasPrefix(k, prefix) {
			break
		}
		cont, err := fn(append([]byte(nil), k...), append([]byte(nil), v...))
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func (b *BoltDB) Batch(fn func(tx Tx) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (b *BoltDB) View(fn func(tx Tx) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (b *BoltDB) Close() error { return b.db.Close() }

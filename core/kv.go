package core

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Namespace names the bbolt buckets backing the persistent KV layer (spec
// §4.7/§6). Grounded on rubin-protocol's node/store/db.go, which opens one
// bolt.DB and creates all of its buckets inside a single db.Update call at
// startup.
type Namespace string

const (
	NamespaceBlocks       Namespace = "blocks"
	NamespaceBlockHashes  Namespace = "block_hashes"
	NamespaceTransactions Namespace = "transactions"
	NamespaceAccounts     Namespace = "accounts"
	NamespaceMetadata     Namespace = "metadata"
	NamespaceSCTNodes     Namespace = "sct_nodes"
)

var allNamespaces = []Namespace{
	NamespaceBlocks,
	NamespaceBlockHashes,
	NamespaceTransactions,
	NamespaceAccounts,
	NamespaceMetadata,
	NamespaceSCTNodes,
}

// MetadataLatestHeight is the metadata-namespace key holding the latest
// committed block height.
const MetadataLatestHeight = "latest_block_height"

// Store is the namespaced, atomically-batchable KV layer every other
// component treats as the external persistence boundary (spec §4.7: "a
// persistent KV backend treated as an atomic-batch namespaced KV").
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) a bbolt database at path and
// ensures every namespace bucket exists.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, ns := range allNamespaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return fmt.Errorf("create bucket %s: %w", ns, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes a single key/value pair in one namespace as its own
// transaction.
func (s *Store) Put(ns Namespace, key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return fmt.Errorf("put: unknown namespace %s", ns)
		}
		return b.Put(key, value)
	})
}

// Get reads a single key from one namespace. ok is false if the key is
// absent.
func (s *Store) Get(ns Namespace, key []byte) (value []byte, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return fmt.Errorf("get: unknown namespace %s", ns)
		}
		v := b.Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return value, ok, err
}

// RangeFunc is called for each key/value pair in lexicographic key order
// during Range. Returning false stops iteration early.
type RangeFunc func(key, value []byte) bool

// Range iterates all entries in ns whose key has the given prefix, in
// lexicographic (numeric, for big-endian integer keys) key order.
func (s *Store) Range(ns Namespace, prefix []byte, fn RangeFunc) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		if b == nil {
			return fmt.Errorf("range: unknown namespace %s", ns)
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// batchWrite is one queued put (or delete, when value is nil and delete
// is true) within a Batch.
type batchWrite struct {
	ns     Namespace
	key    []byte
	value  []byte
	delete bool
}

// Batch accumulates writes across multiple namespaces for atomic commit.
// Because bbolt commits a whole bolt.Tx atomically regardless of how many
// buckets it touches, "atomic multi-namespace batch" maps directly onto a
// single db.Update call (spec §4.7).
type Batch struct {
	store  *Store
	writes []batchWrite
}

// NewBatch starts an empty batch against s.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

// Put queues a write; it is not visible until Apply succeeds.
func (b *Batch) Put(ns Namespace, key, value []byte) {
	b.writes = append(b.writes, batchWrite{ns: ns, key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

// Delete queues a removal; it is not visible until Apply succeeds.
func (b *Batch) Delete(ns Namespace, key []byte) {
	b.writes = append(b.writes, batchWrite{ns: ns, key: append([]byte(nil), key...), delete: true})
}

// Apply commits every queued write in one bolt transaction. If any write
// fails (e.g. an unknown namespace) none of the batch's writes take
// effect.
func (b *Batch) Apply() error {
	return b.store.db.Update(func(tx *bbolt.Tx) error {
		for _, w := range b.writes {
			bucket := tx.Bucket([]byte(w.ns))
			if bucket == nil {
				return fmt.Errorf("apply batch: unknown namespace %s", w.ns)
			}
			if w.delete {
				if err := bucket.Delete(w.key); err != nil {
					return fmt.Errorf("apply batch: delete %s/%x: %w", w.ns, w.key, err)
				}
				continue
			}
			if err := bucket.Put(w.key, w.value); err != nil {
				return fmt.Errorf("apply batch: put %s/%x: %w", w.ns, w.key, err)
			}
		}
		return nil
	})
}

// Flush forces the database file to durable storage. bbolt fsyncs on
// every committed transaction by default, so Flush is a no-op sync call
// kept for symmetry with spec §4.7's "explicit durability flush"
// requirement and to make the commit protocol's durability point visible
// at call sites.
func (s *Store) Flush() error {
	return s.db.Sync()
}

// heightKey renders a block height as an 8-byte big-endian key so that
// lexicographic bucket iteration equals numeric height order.
func heightKey(height uint64) []byte {
	k := make([]byte, 8)
	for i := 0; i < 8; i++ {
		k[7-i] = byte(height >> (8 * uint(i)))
	}
	return k
}

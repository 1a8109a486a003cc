// Package kvstore defines the ordered, byte-keyed persistent store
// collaborator of §1/§6: "persistent key-value store (the core asks for
// ordered byte-keyed get/put/iterate/batch/snapshot)". The interface shape
// follows database/engine's Engine/Transaction/Snapshot/Iterator split;
// the consensus packages that persist state (dmn, orderbook) depend only
// on this package, never on a concrete engine. instantsend and chainlock
// keep their locks in in-memory maps and do not persist them.
package kvstore

import "bytes"

// Store is the top-level handle to an opened database.
type Store interface {
	// Get returns the value for key, or (nil, false) if absent.
	Get(key []byte) ([]byte, bool, error)

	// Batch starts a write transaction. Writes are invisible until
	// Commit; Discard abandons them.
	Batch() (Batch, error)

	// Snapshot returns a consistent read view pinned to the current
	// state of the store.
	Snapshot() (Snapshot, error)

	// Iterate returns an iterator over keys sharing the given prefix,
	// in ascending lexicographic order.
	Iterate(prefix []byte) (Iterator, error)

	Close() error
}

// Batch is a single atomic write transaction. orderbook writes each block
// transition (ConnectBlock, DisconnectBlock) through exactly one Batch, per
// §4.9. dmn.Manager.ApplyBlock commits a block's parent link, anchor and
// tip snapshot as separate single-put batches.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard()
}

// Snapshot is a read-only, point-in-time view.
type Snapshot interface {
	Get(key []byte) ([]byte, bool, error)
	Iterate(prefix []byte) (Iterator, error)
	Release()
}

// Iterator walks a key range in ascending order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// PrefixRange returns the [start, limit) byte range that exactly covers
// every key sharing the given prefix, the same construction as
// database/engine's BytesPrefix.
func PrefixRange(prefix []byte) (start, limit []byte) {
	start = append([]byte(nil), prefix...)
	limit = nil
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i] = c + 1
			break
		}
	}
	return start, limit
}

// HasPrefix reports whether key begins with prefix; used by in-memory test
// doubles that don't have native range iteration.
func HasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

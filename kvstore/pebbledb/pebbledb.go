// Package pebbledb adapts github.com/cockroachdb/pebble to the kvstore.Store
// contract, the same wiring btcd's database/engine/pebbledb package performs
// for its own Engine interface.
package pebbledb

import (
	"errors"
	"runtime"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/Slashx124/mynta-core/kvstore"
)

var (
	ErrClosed           = errors.New("pebbledb: closed")
	ErrTxClosed         = errors.New("pebbledb: transaction already closed")
	ErrSnapshotReleased = errors.New("pebbledb: snapshot released")
)

const (
	DefaultCacheMB = 64
	DefaultHandles = 16
)

// Open creates or opens a pebble-backed store at dbPath.
func Open(dbPath string, cacheMB, handles int) (kvstore.Store, error) {
	if cacheMB <= 0 {
		cacheMB = DefaultCacheMB
	}
	if handles <= 0 {
		handles = DefaultHandles
	}

	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(cacheMB) * 1024 * 1024),
		MaxOpenFiles:             handles,
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 4 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 8 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 16 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	opts.Experimental.ReadSamplingMultiplier = -1

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, err
	}
	return &store{db: db}, nil
}

type store struct {
	db     *pebble.DB
	closed bool
}

func (s *store) Get(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, ErrClosed
	}
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *store) Batch() (kvstore.Batch, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return &batch{b: s.db.NewBatch()}, nil
}

func (s *store) Snapshot() (kvstore.Snapshot, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return &snapshot{snap: s.db.NewSnapshot()}, nil
}

func (s *store) Iterate(prefix []byte) (kvstore.Iterator, error) {
	if s.closed {
		return nil, ErrClosed
	}
	start, limit := kvstore.PrefixRange(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: limit})
	if err != nil {
		return nil, err
	}
	return &iterator{iter: iter, started: false}, nil
}

func (s *store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type batch struct {
	b        *pebble.Batch
	released bool
}

func (t *batch) Put(key, value []byte) error {
	if t.released {
		return ErrTxClosed
	}
	return t.b.Set(key, value, pebble.NoSync)
}

func (t *batch) Delete(key []byte) error {
	if t.released {
		return ErrTxClosed
	}
	return t.b.Delete(key, pebble.NoSync)
}

func (t *batch) Commit() error {
	if t.released {
		return ErrTxClosed
	}
	t.released = true
	return t.b.Commit(pebble.Sync)
}

func (t *batch) Discard() {
	if !t.released {
		t.released = true
		t.b.Close()
	}
}

type snapshot struct {
	snap     *pebble.Snapshot
	released bool
}

func (s *snapshot) Get(key []byte) ([]byte, bool, error) {
	if s.released {
		return nil, false, ErrSnapshotReleased
	}
	val, closer, err := s.snap.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *snapshot) Iterate(prefix []byte) (kvstore.Iterator, error) {
	if s.released {
		return nil, ErrSnapshotReleased
	}
	start, limit := kvstore.PrefixRange(prefix)
	iter, err := s.snap.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: limit})
	if err != nil {
		return nil, err
	}
	return &iterator{iter: iter}, nil
}

func (s *snapshot) Release() {
	if !s.released {
		s.released = true
		s.snap.Close()
	}
}

type iterator struct {
	iter    *pebble.Iterator
	started bool
}

func (i *iterator) Next() bool {
	if !i.started {
		i.started = true
		return i.iter.First()
	}
	return i.iter.Next()
}

func (i *iterator) Key() []byte {
	if !i.iter.Valid() {
		return nil
	}
	return i.iter.Key()
}

func (i *iterator) Value() []byte {
	if !i.iter.Valid() {
		return nil
	}
	return i.iter.Value()
}

func (i *iterator) Error() error {
	return i.iter.Error()
}

func (i *iterator) Release() {
	_ = i.iter.Close()
}

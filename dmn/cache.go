package dmn

import (
	"container/list"
	"sync"

	"github.com/Slashx124/mynta-core/chainhash"
)

// cache is the SnapshotLRUSize-entry LRU of recent snapshots keyed by
// block hash, per §3.2: "the manager keeps the last SnapshotLRUSize(=100)
// snapshots in an LRU so that a small reorg does not require replaying
// from genesis." Structure is adapted from claimtrie/node's list-backed
// Cache: a doubly linked list for recency order plus a map for O(1)
// lookup, with the map entry storing the list element so Fetch can move
// it to the front without a second lookup.
type cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[chainhash.Hash]*list.Element
}

type cacheEntry struct {
	hash chainhash.Hash
	snap *Snapshot
}

func newCache(capacity int) *cache {
	return &cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[chainhash.Hash]*list.Element, capacity),
	}
}

// Insert records snap under its BlockHash, evicting the oldest entry if
// the cache is full.
func (c *cache) Insert(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[snap.BlockHash]; ok {
		el.Value.(*cacheEntry).snap = snap
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{hash: snap.BlockHash, snap: snap})
	c.items[snap.BlockHash] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).hash)
	}
}

// Fetch returns the snapshot for the given block hash, promoting it to
// most-recently-used.
func (c *cache) Fetch(hash chainhash.Hash) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[hash]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).snap, true
}

// DropFrom evicts every cached snapshot whose height is >= height, used
// when a disconnect invalidates cached state ahead of the new tip.
func (c *cache) DropFrom(height int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*cacheEntry)
		if entry.snap.Height >= height {
			c.ll.Remove(el)
			delete(c.items, entry.hash)
		}
		el = next
	}
}

// Len reports the number of cached snapshots.
func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

package chain

import "sync"

// lookupCache is a positive read-through cache for node-local lookups.
// Records are tagged with the node version they were computed against; a
// record whose version no longer matches the node's current version is a
// miss and is dropped on the spot, so a stale result is never served.
type lookupCache struct {
	m sync.Map // cacheKey -> cacheRecord
}

type cacheKey struct {
	node string
	name string
}

type cacheRecord struct {
	version uint64
	handle  Handle
}

func (lc *lookupCache) get(n *Node, name string) (Handle, bool) {
	key := cacheKey{node: n.id, name: name}
	v, ok := lc.m.Load(key)
	if !ok {
		return Handle{}, false
	}
	rec := v.(cacheRecord)
	if rec.version != n.Version() {
		lc.m.Delete(key)
		return Handle{}, false
	}
	return rec.handle, true
}

func (lc *lookupCache) put(n *Node, name string, version uint64, h Handle) {
	lc.m.Store(cacheKey{node: n.id, name: name}, cacheRecord{version: version, handle: h})
}

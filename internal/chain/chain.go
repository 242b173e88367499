package chain

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Chain is the rooted graph of resolver nodes. Resolution walks from a start
// node toward the root; the entry-point cell names the node new top-level
// resolves begin from and is only moved by a splice.
type Chain struct {
	root  *Node
	entry atomic.Pointer[Node]

	mu    sync.RWMutex
	nodes map[string]*Node // reachable set

	cache *lookupCache
	log   *zap.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the chain's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Chain) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCache enables the positive read-through lookup cache.
func WithCache() Option {
	return func(c *Chain) {
		c.cache = &lookupCache{}
	}
}

// New creates a chain holding a single empty root node, which is also the
// initial entry point.
func New(opts ...Option) *Chain {
	c := &Chain{
		nodes: make(map[string]*Node),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.root = newNode(nil, nil)
	c.entry.Store(c.root)
	c.nodes[c.root.id] = c.root
	return c
}

// Root returns the chain's root node.
func (c *Chain) Root() *Node { return c.root }

// EntryPoint returns the node new top-level resolves start from. It only
// changes when a splice publishes a new node.
func (c *Chain) EntryPoint() *Node { return c.entry.Load() }

// Contains reports whether the node with the given id is in the reachable set.
func (c *Chain) Contains(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.nodes[nodeID]
	return ok
}

// Resolve walks the chain from start toward the root and returns a handle for
// the first entry defining name. A nil start begins at the current entry
// point. The walk is deterministic and lock-free: each node's table is read
// through a single atomic pointer, so a concurrent mutation is observed
// either fully or not at all.
func (c *Chain) Resolve(start *Node, name string) (Handle, error) {
	if start == nil {
		start = c.EntryPoint()
	}
	if h, ok := c.walk(start, name); ok {
		return h, nil
	}
	return Handle{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// walk applies the search order at n: own entries first, then the delegate's
// full sub-walk, then the parent. The delegate sub-walk covers the delegate's
// own parent chain, so the later parent fallback is redundant in a healthy
// splice topology but still correct if the delegate was detached.
func (c *Chain) walk(n *Node, name string) (Handle, bool) {
	for ; n != nil; n = n.Parent() {
		if h, ok := c.local(n, name); ok {
			return h, true
		}
		if d := n.delegate; d != nil {
			if h, ok := c.walk(d, name); ok {
				return h, true
			}
		}
	}
	return Handle{}, false
}

// local performs one node's own lookup, consulting the version-keyed cache
// when enabled. The version is read before the scan so a mutation racing the
// scan leaves a stale-tagged record that is treated as a miss.
func (c *Chain) local(n *Node, name string) (Handle, bool) {
	if c.cache == nil {
		return n.lookupLocal(name)
	}
	if h, ok := c.cache.get(n, name); ok {
		return h, true
	}
	version := n.Version()
	h, ok := n.lookupLocal(name)
	if ok {
		c.cache.put(n, name, version, h)
	}
	return h, ok
}

// NodeInfo describes one node for introspection.
type NodeInfo struct {
	ID       string
	Parent   string
	Delegate string
	Segments int
	Entries  int
	Version  uint64
	Entry    bool
	Root     bool
}

// Snapshot returns the reachable set sorted by node id, for diagnostics.
func (c *Chain) Snapshot() []NodeInfo {
	entry := c.EntryPoint()
	c.mu.RLock()
	defer c.mu.RUnlock()
	infos := make([]NodeInfo, 0, len(c.nodes))
	for _, n := range c.nodes {
		segs, entries := n.segmentCount()
		info := NodeInfo{
			ID:       n.id,
			Segments: segs,
			Entries:  entries,
			Version:  n.Version(),
			Entry:    n == entry,
			Root:     n == c.root,
		}
		if p := n.Parent(); p != nil {
			info.Parent = p.id
		}
		if d := n.delegate; d != nil {
			info.Delegate = d.id
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// addNode and dropNode maintain the reachable set. Callers must hold the
// editor's mutation lock.
func (c *Chain) addNode(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.id] = n
}

func (c *Chain) dropNode(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, n.id)
}

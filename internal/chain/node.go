package chain

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Entry is one lookup source inside a node's table. Implementations must be
// safe for concurrent Lookup calls.
type Entry interface {
	// Owner returns the id of the module the entry came from.
	Owner() string

	// Lookup returns the value bound to name, if this entry defines it.
	Lookup(name string) (any, bool)
}

// Handle is the result of a successful resolution. NodeID records which node
// held the matching entry; two handles with equal names but different node
// ids are independent identities (see SameSymbol).
type Handle struct {
	Name   string
	Module string
	NodeID string
	Value  any
}

// SameSymbol reports whether two handles refer to the same symbol identity.
// Handles with equal names resolved from different nodes are never unified;
// comparing them returns ErrIdentityConflict.
func SameSymbol(a, b Handle) (bool, error) {
	if a.Name != b.Name {
		return false, nil
	}
	if a.NodeID != b.NodeID {
		return false, fmt.Errorf("%w: %q from node %s vs node %s", ErrIdentityConflict, a.Name, a.NodeID, b.NodeID)
	}
	return true, nil
}

// Segment is an immutable slice of a node's table, tagged with the module
// that produced it and its registration order.
type Segment struct {
	Module   string
	Order    uint64
	Priority bool
	Entries  []Entry
}

// entryTable is the unit of publication for a node's entries. The version is
// carried inside the table so one pointer swap updates both.
type entryTable struct {
	segments []*Segment
	version  uint64
}

// Node is one vertex of the resolution chain. Its entry table is read via an
// atomic pointer; parent is a back-reference only and never owns the parent.
// delegate is set once at construction (splice strategy) and never changes.
type Node struct {
	id       string
	table    atomic.Pointer[entryTable]
	parent   atomic.Pointer[Node]
	delegate *Node
}

func newNode(parent, delegate *Node) *Node {
	n := &Node{
		id:       "node_" + uuid.NewString(),
		delegate: delegate,
	}
	n.table.Store(&entryTable{})
	if parent != nil {
		n.parent.Store(parent)
	}
	return n
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Parent returns the node's chain parent, or nil for the root or a detached
// node.
func (n *Node) Parent() *Node { return n.parent.Load() }

// Delegate returns the node's secondary delegate, or nil. Only nodes created
// by a splice carry one.
func (n *Node) Delegate() *Node { return n.delegate }

// Version returns the node's mutation counter. It increments on every table
// swap, so a (version, name) pair uniquely identifies a cacheable lookup.
func (n *Node) Version() uint64 { return n.table.Load().version }

// lookupLocal scans the node's own segments front-to-back and returns a
// handle for the first entry that defines name.
func (n *Node) lookupLocal(name string) (Handle, bool) {
	t := n.table.Load()
	for _, seg := range t.segments {
		for _, e := range seg.Entries {
			if v, ok := e.Lookup(name); ok {
				return Handle{Name: name, Module: e.Owner(), NodeID: n.id, Value: v}, true
			}
		}
	}
	return Handle{}, false
}

// swapTable publishes a new segment list. Callers must hold the editor's
// mutation lock.
func (n *Node) swapTable(segments []*Segment) {
	old := n.table.Load()
	n.table.Store(&entryTable{segments: segments, version: old.version + 1})
}

// flatten returns the node's entries in search order.
func (n *Node) flatten() []Entry {
	t := n.table.Load()
	var out []Entry
	for _, seg := range t.segments {
		out = append(out, seg.Entries...)
	}
	return out
}

// segmentCount returns the number of live segments, for introspection.
func (n *Node) segmentCount() (segs, entries int) {
	t := n.table.Load()
	for _, seg := range t.segments {
		entries += len(seg.Entries)
	}
	return len(t.segments), entries
}

package chain

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MergeOrder controls where incoming entries land relative to a node's
// existing ones.
type MergeOrder int

const (
	// Prepend places incoming entries ahead of existing ones, so the new
	// module shadows the old on name collisions.
	Prepend MergeOrder = iota
	// Append places incoming entries after existing ones.
	Append
)

func (o MergeOrder) String() string {
	switch o {
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// Editor is the only component allowed to mutate node tables or chain edges.
// Mutations are serialized behind a single mutex and published as one atomic
// swap each, so they are all-or-nothing from a reader's point of view.
// Candidate tables are always built off to the side before the swap; a
// failure partway through building one leaves the chain untouched.
type Editor struct {
	mu      sync.Mutex
	chain   *Chain
	log     *zap.Logger
	retries int
	backoff time.Duration
	order   atomic.Uint64 // segment registration counter
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithEditorLogger sets the editor's logger.
func WithEditorLogger(log *zap.Logger) EditorOption {
	return func(e *Editor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRetryPolicy bounds how long a mutation waits for the mutation lock
// before failing with ErrMutationConflict.
func WithRetryPolicy(retries int, backoff time.Duration) EditorOption {
	return func(e *Editor) {
		if retries > 0 {
			e.retries = retries
		}
		if backoff > 0 {
			e.backoff = backoff
		}
	}
}

// NewEditor creates the editor for a chain. A chain must have exactly one.
func NewEditor(c *Chain, opts ...EditorOption) *Editor {
	e := &Editor{
		chain:   c,
		log:     zap.NewNop(),
		retries: 50,
		backoff: 2 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// acquire takes the mutation lock under the bounded retry policy.
func (e *Editor) acquire() error {
	for i := 0; i <= e.retries; i++ {
		if e.mu.TryLock() {
			return nil
		}
		time.Sleep(e.backoff)
	}
	return fmt.Errorf("%w: gave up after %d attempts", ErrMutationConflict, e.retries)
}

func (e *Editor) nextOrder() uint64 { return e.order.Add(1) }

// checkTarget verifies a mutation target is live. Caller holds the lock.
func (e *Editor) checkTarget(n *Node) error {
	if n == nil || !e.chain.Contains(n.id) {
		return ErrUnknownNode
	}
	return nil
}

// AttachIsolated creates a new leaf node holding the module's entries, with
// the current entry point as its chain parent. The new node's entries are
// searched first; a miss falls through to the host chain. Two isolated nodes
// never see each other's entries.
func (e *Editor) AttachIsolated(moduleID string, entries []Entry) (*Node, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: module %s", ErrNoEntries, moduleID)
	}
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	n := newNode(e.chain.EntryPoint(), nil)
	n.swapTable([]*Segment{{Module: moduleID, Order: e.nextOrder(), Entries: entries}})
	e.chain.addNode(n)
	e.log.Debug("attached isolated node",
		zap.String("node", n.id),
		zap.String("module", moduleID),
		zap.Int("entries", len(entries)))
	return n, nil
}

// Merge rebuilds target's table as one flat segment combining the incoming
// entries with the existing ones, then publishes it in a single swap.
// Prepend lets the incoming module shadow existing names. Merged entries
// cannot be un-spliced later: handles already resolved against the combined
// sequence would be invalidated, so merged loads have no unload.
func (e *Editor) Merge(target *Node, moduleID string, entries []Entry, order MergeOrder) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: module %s", ErrNoEntries, moduleID)
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.checkTarget(target); err != nil {
		return err
	}

	existing := target.flatten()
	candidate := make([]Entry, 0, len(existing)+len(entries))
	switch order {
	case Prepend:
		candidate = append(candidate, entries...)
		candidate = append(candidate, existing...)
	default:
		candidate = append(candidate, existing...)
		candidate = append(candidate, entries...)
	}
	target.swapTable([]*Segment{{Module: moduleID, Order: e.nextOrder(), Entries: candidate}})
	e.log.Debug("merged module into node",
		zap.String("node", target.id),
		zap.String("module", moduleID),
		zap.Stringer("order", order),
		zap.Int("entries", len(candidate)))
	return nil
}

// AppendSegment adds the module's entries to target as one immutable segment,
// avoiding the full-table rebuild Merge pays on every load. Segments are
// searched in registration order; a priority segment is placed ahead of the
// existing ones instead.
func (e *Editor) AppendSegment(target *Node, moduleID string, entries []Entry, priority bool) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: module %s", ErrNoEntries, moduleID)
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := e.checkTarget(target); err != nil {
		return err
	}

	seg := &Segment{Module: moduleID, Order: e.nextOrder(), Priority: priority, Entries: entries}
	old := target.table.Load().segments
	candidate := make([]*Segment, 0, len(old)+1)
	if priority {
		candidate = append(candidate, seg)
		candidate = append(candidate, old...)
	} else {
		candidate = append(candidate, old...)
		candidate = append(candidate, seg)
	}
	target.swapTable(candidate)
	e.log.Debug("appended segment",
		zap.String("node", target.id),
		zap.String("module", moduleID),
		zap.Bool("priority", priority),
		zap.Int("segments", len(candidate)))
	return nil
}

// Splice inserts a new node between target and target's chain parent and
// publishes it as the chain's entry point. The new node's parent is the
// target's parent and its secondary delegate is the target itself; the
// target is not rewritten, so callers resolving from the target directly are
// unaffected. A resolve from the new node misses its own entries, then runs
// the target's full resolve (entries plus its parent chain), and only then
// falls back to the parent directly.
func (e *Editor) Splice(target *Node, moduleID string, entries []Entry) (*Node, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if err := e.checkTarget(target); err != nil {
		return nil, err
	}

	n := newNode(target.Parent(), target)
	if len(entries) > 0 {
		n.swapTable([]*Segment{{Module: moduleID, Order: e.nextOrder(), Entries: entries}})
	}
	e.chain.addNode(n)
	e.chain.entry.Store(n)
	e.log.Info("spliced node into chain",
		zap.String("node", n.id),
		zap.String("bypassed", target.id),
		zap.String("module", moduleID))
	return n, nil
}

// Detach removes an isolated node from the chain: its parent link is cleared,
// its table is emptied, and it leaves the reachable set. Resolves starting
// from it afterwards fail with ErrNotFound; resolves that never passed
// through it are unaffected.
func (e *Editor) Detach(n *Node) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if n == e.chain.root {
		return ErrRootImmutable
	}
	if err := e.checkTarget(n); err != nil {
		return err
	}

	n.parent.Store(nil)
	n.swapTable(nil)
	e.chain.dropNode(n)
	e.log.Info("detached node", zap.String("node", n.id))
	return nil
}

package resolver

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"modchain/internal/chain"
	"modchain/internal/module"
)

// Resolver is the facade over the resolution chain and its editor.
type Resolver struct {
	chain  *chain.Chain
	editor *chain.Editor

	log            *zap.Logger
	accessor       Accessor
	cacheEnabled   bool
	allowedImports []string
	retries        int
	backoff        time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithCache enables the chain's version-keyed lookup cache.
func WithCache() Option {
	return func(r *Resolver) { r.cacheEnabled = true }
}

// WithAccessor installs the external get/set/invoke capability.
func WithAccessor(a Accessor) Option {
	return func(r *Resolver) { r.accessor = a }
}

// WithAllowedImports replaces the container import whitelist.
func WithAllowedImports(pkgs []string) Option {
	return func(r *Resolver) { r.allowedImports = pkgs }
}

// WithRetryPolicy bounds mutation-lock acquisition before mutations fail
// with ErrMutationConflict.
func WithRetryPolicy(retries int, backoff time.Duration) Option {
	return func(r *Resolver) {
		r.retries = retries
		r.backoff = backoff
	}
}

// New creates a resolver with an empty chain whose root node is the entry
// point. Host entries are registered through LoadModule like everything
// else, typically merged into the root.
func New(opts ...Option) *Resolver {
	r := &Resolver{log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	chainOpts := []chain.Option{chain.WithLogger(r.log)}
	if r.cacheEnabled {
		chainOpts = append(chainOpts, chain.WithCache())
	}
	r.chain = chain.New(chainOpts...)

	editorOpts := []chain.EditorOption{chain.WithEditorLogger(r.log)}
	if r.retries > 0 {
		editorOpts = append(editorOpts, chain.WithRetryPolicy(r.retries, r.backoff))
	}
	r.editor = chain.NewEditor(r.chain, editorOpts...)
	return r
}

// LoadOptions tunes a LoadModule call. Target is required for the Merged,
// MultiSegment, and Delegating strategies; Order is meaningful for Merged
// and MultiSegment, where Prepend means the incoming module shadows
// existing names.
type LoadOptions struct {
	Order  chain.MergeOrder
	Target *chain.Node
	Origin string
}

// ModuleHandle identifies one loaded module: its immutable unit, the node
// that holds its entries, and the strategy it was loaded under.
type ModuleHandle struct {
	Unit     *module.Unit
	Node     *chain.Node
	Strategy Strategy
}

// LoadModule parses container bytes and attaches the resulting unit to the
// chain under the given strategy. Loading is transactional: a parse failure
// or a rejected edit leaves all chain state untouched.
func (r *Resolver) LoadModule(data []byte, strat Strategy, opts LoadOptions) (*ModuleHandle, error) {
	parseOpts := []module.Option{}
	if opts.Origin != "" {
		parseOpts = append(parseOpts, module.WithOrigin(opts.Origin))
	}
	if r.allowedImports != nil {
		parseOpts = append(parseOpts, module.WithAllowedImports(r.allowedImports))
	}
	unit, err := module.Parse(data, parseOpts...)
	if err != nil {
		return nil, err
	}

	entries := make([]chain.Entry, len(unit.Entries))
	for i, e := range unit.Entries {
		entries[i] = e
	}

	var node *chain.Node
	switch strat {
	case Isolated:
		node, err = r.editor.AttachIsolated(unit.ID, entries)
	case Merged:
		if opts.Target == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, strat)
		}
		node = opts.Target
		err = r.editor.Merge(opts.Target, unit.ID, entries, opts.Order)
	case MultiSegment:
		if opts.Target == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, strat)
		}
		node = opts.Target
		err = r.editor.AppendSegment(opts.Target, unit.ID, entries, opts.Order == chain.Prepend)
	case Delegating:
		if opts.Target == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, strat)
		}
		node, err = r.editor.Splice(opts.Target, unit.ID, entries)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, strat)
	}
	if err != nil {
		return nil, err
	}

	r.log.Info("module loaded",
		zap.String("module", unit.ID),
		zap.String("origin", unit.Origin),
		zap.Stringer("strategy", strat),
		zap.String("node", node.ID()))
	return &ModuleHandle{Unit: unit, Node: node, Strategy: strat}, nil
}

// Resolve looks up name starting from the given node, or from the current
// entry point when no start node is passed.
func (r *Resolver) Resolve(name string, from ...*chain.Node) (chain.Handle, error) {
	var start *chain.Node
	if len(from) > 0 {
		start = from[0]
	}
	return r.chain.Resolve(start, name)
}

// Unload detaches an isolated module's node from the chain. Modules loaded
// under any other strategy cannot be removed: their entries are woven into
// shared tables and un-splicing them would invalidate handles already
// resolved against the combined sequence.
func (r *Resolver) Unload(h *ModuleHandle) error {
	if h == nil || h.Node == nil {
		return chain.ErrUnknownNode
	}
	if h.Strategy != Isolated {
		return fmt.Errorf("%w: %s modules cannot be unloaded", ErrUnsupportedStrategy, h.Strategy)
	}
	if err := r.editor.Detach(h.Node); err != nil {
		return err
	}
	r.log.Info("module unloaded",
		zap.String("module", h.Unit.ID),
		zap.String("node", h.Node.ID()))
	return nil
}

// SameSymbol reports whether two handles are the same symbol identity; see
// chain.SameSymbol.
func (r *Resolver) SameSymbol(a, b chain.Handle) (bool, error) {
	return chain.SameSymbol(a, b)
}

// EntryPoint returns the node new top-level resolves start from.
func (r *Resolver) EntryPoint() *chain.Node { return r.chain.EntryPoint() }

// Root returns the chain's root node.
func (r *Resolver) Root() *chain.Node { return r.chain.Root() }

// Snapshot returns the chain topology for diagnostics.
func (r *Resolver) Snapshot() []chain.NodeInfo { return r.chain.Snapshot() }

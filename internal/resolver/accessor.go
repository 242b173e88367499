package resolver

import "modchain/internal/chain"

// Accessor is the external get/set/invoke capability used to reach into a
// resolved symbol's internals. The core only locates symbols; member access
// and invocation are delegated to whatever implementation the host process
// installs via WithAccessor.
type Accessor interface {
	Get(h chain.Handle, member string) (any, error)
	Set(h chain.Handle, member string, value any) error
	Invoke(h chain.Handle, args ...any) (any, error)
}

// Get reads a member of a resolved symbol through the installed accessor.
func (r *Resolver) Get(h chain.Handle, member string) (any, error) {
	if r.accessor == nil {
		return nil, ErrNoAccessor
	}
	return r.accessor.Get(h, member)
}

// Set writes a member of a resolved symbol through the installed accessor.
func (r *Resolver) Set(h chain.Handle, member string, value any) error {
	if r.accessor == nil {
		return ErrNoAccessor
	}
	return r.accessor.Set(h, member, value)
}

// Invoke calls a resolved symbol through the installed accessor.
func (r *Resolver) Invoke(h chain.Handle, args ...any) (any, error) {
	if r.accessor == nil {
		return nil, ErrNoAccessor
	}
	return r.accessor.Invoke(h, args...)
}

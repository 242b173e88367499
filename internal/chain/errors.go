package chain

import "errors"

// Chain errors.
var (
	// ErrNotFound is returned when a name is absent from every node on the
	// search path. Probing callers should treat this as a normal miss.
	ErrNotFound = errors.New("symbol not found")

	// ErrIdentityConflict is returned when two handles share a name but were
	// resolved from different nodes. They are independent identities and are
	// never unified.
	ErrIdentityConflict = errors.New("identity conflict between isolated symbols")

	// ErrMutationConflict is returned when the mutation lock could not be
	// acquired within the editor's retry budget.
	ErrMutationConflict = errors.New("concurrent chain mutation in progress")

	// ErrUnknownNode is returned when a mutation targets a node that is not
	// part of the chain's reachable set.
	ErrUnknownNode = errors.New("node is not part of the chain")

	// ErrRootImmutable is returned when a caller tries to detach the root node.
	ErrRootImmutable = errors.New("root node cannot be detached")

	// ErrNoEntries is returned when a mutation is attempted with an empty
	// entry list.
	ErrNoEntries = errors.New("module has no symbol entries")
)

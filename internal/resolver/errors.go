package resolver

import (
	"errors"

	"modchain/internal/chain"
	"modchain/internal/module"
)

// Facade errors. Chain and parse errors are re-exported so callers only need
// this package for errors.Is checks.
var (
	// ErrParse is returned by LoadModule for malformed container bytes.
	ErrParse = module.ErrParse

	// ErrNotFound is returned by Resolve when the name is absent from every
	// node on the search path.
	ErrNotFound = chain.ErrNotFound

	// ErrIdentityConflict is returned when comparing handles for the same
	// name resolved from mutually isolated nodes.
	ErrIdentityConflict = chain.ErrIdentityConflict

	// ErrMutationConflict is returned when a mutation exhausts the editor's
	// bounded retry policy.
	ErrMutationConflict = chain.ErrMutationConflict

	// ErrUnsupportedStrategy is returned for operations a load strategy does
	// not support, like unloading a merged module.
	ErrUnsupportedStrategy = errors.New("operation unsupported for load strategy")

	// ErrMissingTarget is returned when a strategy that edits an existing
	// node is invoked without one.
	ErrMissingTarget = errors.New("load strategy requires a target node")

	// ErrNoAccessor is returned by Get/Set/Invoke when no accessor
	// capability was installed.
	ErrNoAccessor = errors.New("no accessor capability installed")
)

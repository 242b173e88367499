// Package resolver is the public entry point of the subsystem. It turns raw
// container bytes into module units, attaches them to the resolution chain
// under one of four load strategies, and answers name lookups against the
// chain. All chain mutation goes through the single chain editor, so loads
// are transactional and lookups stay lock-free.
package resolver

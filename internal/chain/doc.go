// Package chain implements the resolution chain: a rooted graph of resolver
// nodes that maps symbol names to handles. Nodes hold ordered entry tables
// published by atomic pointer swap, so lookups are lock-free while the
// Editor serializes all mutations behind a single mutex.
package chain

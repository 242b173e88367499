// Package module turns raw code-container bytes into immutable module units.
// A container is Go source interpreted with yaegi; a container may carry
// several sections, each of which becomes one ordered symbol entry. Only
// whitelisted stdlib imports are allowed, so evaluating a container cannot
// touch the filesystem, the network, or spawn processes.
package module

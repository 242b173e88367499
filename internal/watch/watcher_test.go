package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modchain/internal/chain"
	"modchain/internal/resolver"
)

func newTestWatcher(t *testing.T, dir string, opts ...Option) (*resolver.Resolver, *Watcher) {
	t.Helper()
	r := resolver.New()
	opts = append([]Option{WithDebounce(50 * time.Millisecond)}, opts...)
	w, err := New(r, []string{dir}, opts...)
	require.NoError(t, err)
	return r, w
}

func writeContainer(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// resolvesVia waits for path's module to be loaded and its symbol to resolve
// from the module's own node. Watched modules load isolated by default, so
// their symbols are only visible from that node.
func resolvesVia(w *Watcher, r *resolver.Resolver, path, name string, want any) func() bool {
	return func() bool {
		h := w.Handle(path)
		if h == nil {
			return false
		}
		got, err := r.Resolve(name, h.Node)
		return err == nil && got.Value == want
	}
}

func TestInitialSweep(t *testing.T) {
	dir := t.TempDir()
	pathA := writeContainer(t, dir, "a.go", `var FromA = "a"`)
	pathB := writeContainer(t, dir, "b.go", `var FromB = "b"`)
	writeContainer(t, dir, "notes.txt", `not a container`)

	r, w := newTestWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, resolvesVia(w, r, pathA, "FromA", "a"), 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, resolvesVia(w, r, pathB, "FromB", "b"), 2*time.Second, 20*time.Millisecond)

	stats := w.Snapshot()
	assert.Equal(t, 2, stats.FilesLoaded)
	assert.Equal(t, 0, stats.Errors)
}

func TestHotLoadNewFile(t *testing.T) {
	dir := t.TempDir()
	r, w := newTestWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := writeContainer(t, dir, "late.go", `var Late = "here"`)

	require.Eventually(t, resolvesVia(w, r, path, "Late", "here"), 3*time.Second, 20*time.Millisecond)
}

func TestHotLoadMergedIntoRoot(t *testing.T) {
	dir := t.TempDir()
	r, w := newTestWatcher(t, dir,
		WithStrategy(resolver.Merged),
		WithMergeOrder(chain.Prepend))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeContainer(t, dir, "merged.go", `var MergedSym = "visible"`)

	// Merged loads land in the root, so top-level resolves see them.
	require.Eventually(t, func() bool {
		h, err := r.Resolve("MergedSym")
		return err == nil && h.Value == "visible"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReloadReplacesModule(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "mod.go", `var V = "one"`)

	r, w := newTestWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, resolvesVia(w, r, path, "V", "one"), 2*time.Second, 20*time.Millisecond)
	first := w.Handle(path)

	require.NoError(t, os.WriteFile(path, []byte(`var V = "two"`), 0644))
	require.Eventually(t, resolvesVia(w, r, path, "V", "two"), 3*time.Second, 20*time.Millisecond)

	// The stale isolated node was detached during the reload.
	_, err := r.Resolve("V", first.Node)
	assert.ErrorIs(t, err, resolver.ErrNotFound)
	assert.GreaterOrEqual(t, w.Snapshot().FilesReloaded, 1)
}

func TestRemoveUnloadsModule(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "mod.go", `var Gone = "soon"`)

	r, w := newTestWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, resolvesVia(w, r, path, "Gone", "soon"), 2*time.Second, 20*time.Millisecond)
	h := w.Handle(path)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		if w.Handle(path) != nil {
			return false
		}
		_, err := r.Resolve("Gone", h.Node)
		return errors.Is(err, resolver.ErrNotFound)
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, w.Snapshot().FilesUnloaded)
}

func TestBadContainerCountsError(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, dir, "broken.go", `var Broken = `)

	_, w := newTestWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, func() bool {
		return w.Snapshot().Errors > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, w.Snapshot().FilesLoaded)
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	_, w := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

// Package watch hot-loads module containers dropped into watched
// directories. Files named *.go are parsed and attached to the chain through
// the resolver facade; deleting a file unloads its module when the load
// strategy supports removal.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modchain/internal/chain"
	"modchain/internal/resolver"
)

// Watcher monitors directories for module containers and loads them through
// a resolver. Rapid saves of the same file are debounced.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	res         *resolver.Resolver
	dirs        []string
	strategy    resolver.Strategy
	order       chain.MergeOrder
	debounceMap map[string]time.Time
	debounceDur time.Duration
	loaded      map[string]*resolver.ModuleHandle
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	log         *zap.Logger

	stats Stats
}

// Stats tracks watcher activity for diagnostics.
type Stats struct {
	FilesLoaded   int
	FilesReloaded int
	FilesUnloaded int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithStrategy sets the load strategy for discovered containers. Defaults
// to Isolated, the only strategy whose modules can be unloaded when their
// file disappears.
func WithStrategy(s resolver.Strategy) Option {
	return func(w *Watcher) { w.strategy = s }
}

// WithMergeOrder sets the merge order for merged/multisegment loads.
func WithMergeOrder(o chain.MergeOrder) Option {
	return func(w *Watcher) { w.order = o }
}

// WithDebounce sets the window that collapses rapid file events.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// New creates a watcher over the given directories.
func New(res *resolver.Resolver, dirs []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fsw,
		res:         res,
		dirs:        dirs,
		strategy:    resolver.Isolated,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		loaded:      make(map[string]*resolver.ModuleHandle),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start sweeps the watched directories once, loading every container found,
// then begins watching for changes. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.sweep(ctx); err != nil {
		w.log.Warn("initial sweep failed", zap.Error(err))
	}

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.log.Warn("watch failed, directory may not exist yet",
				zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.log.Debug("watching directory", zap.String("dir", dir))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error("error closing fsnotify watcher", zap.Error(err))
	}
}

// Snapshot returns a copy of the watcher's counters.
func (w *Watcher) Snapshot() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Handle returns the module handle loaded for a container path, or nil if
// the path is not currently loaded. Callers need it to resolve against an
// isolated module's node.
func (w *Watcher) Handle(path string) *resolver.ModuleHandle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded[path]
}

// sweep loads every container already present in the watched directories.
func (w *Watcher) sweep(ctx context.Context) error {
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, dir := range w.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !isContainer(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			eg.Go(func() error {
				w.loadFile(path)
				return nil
			})
		}
	}
	return eg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isContainer(event.Name) {
		return
	}

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.mu.Lock()
		w.debounceMap[event.Name] = time.Now()
		w.mu.Unlock()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.unloadFile(event.Name)
	}
}

// processDebounced loads files whose last event is older than the debounce
// window.
func (w *Watcher) processDebounced() {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, last := range w.debounceMap {
		if now.Sub(last) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.loadFile(path)
	}
}

// loadFile loads or reloads one container file. A reload of an isolated
// module detaches the old node first so stale entries do not linger.
func (w *Watcher) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("cannot read container", zap.String("path", path), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.RLock()
	prev := w.loaded[path]
	w.mu.RUnlock()

	opts := resolver.LoadOptions{Order: w.order, Origin: path}
	switch w.strategy {
	case resolver.Merged, resolver.MultiSegment:
		opts.Target = w.res.Root()
	case resolver.Delegating:
		opts.Target = w.res.EntryPoint()
	}

	h, err := w.res.LoadModule(data, w.strategy, opts)
	if err != nil {
		w.log.Warn("container load failed", zap.String("path", path), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	reloaded := false
	if prev != nil && prev.Strategy == resolver.Isolated {
		if err := w.res.Unload(prev); err != nil {
			w.log.Warn("stale module unload failed", zap.String("path", path), zap.Error(err))
		} else {
			reloaded = true
		}
	}

	w.mu.Lock()
	w.loaded[path] = h
	if reloaded {
		w.stats.FilesReloaded++
	} else {
		w.stats.FilesLoaded++
	}
	w.mu.Unlock()

	w.log.Info("container loaded from watch",
		zap.String("path", path),
		zap.String("module", h.Unit.ID),
		zap.Stringer("strategy", w.strategy))
}

// unloadFile removes the module for a deleted container file, when its
// strategy supports removal.
func (w *Watcher) unloadFile(path string) {
	w.mu.Lock()
	h := w.loaded[path]
	delete(w.loaded, path)
	delete(w.debounceMap, path)
	w.mu.Unlock()

	if h == nil {
		return
	}
	if err := w.res.Unload(h); err != nil {
		w.log.Warn("unload failed", zap.String("path", path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.stats.FilesUnloaded++
	w.mu.Unlock()
	w.log.Info("container unloaded", zap.String("path", path))
}

func isContainer(name string) bool {
	return strings.HasSuffix(name, ".go")
}

package proxyconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/metrics"
)

// Watcher reloads the proxy configuration file into a Store whenever it changes.
//
// The directory holding the file is watched rather than the file itself, so
// editors and deployment tools that replace the file by renaming are handled.
// A file that fails to load or validate is reported and the previous snapshot
// is kept.
//
// Kubernetes mounts a ConfigMap as symlinks into a "..data" directory and
// updates it by swapping that link, which never touches the file's own path;
// events on "..data" trigger a reload too.
type Watcher struct {
	path      string
	store     *Store
	log       logger.ILogger
	onReload  []func(*Config)
	watcher   *fsnotify.Watcher
	closeCh   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

const configMapDataDir = "..data"

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithOnReload calls fn with every configuration the watcher publishes.
func WithOnReload(fn func(*Config)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = append(w.onReload, fn)
	}
}

// NewWatcher starts watching path and publishing reloaded configurations to store.
func NewWatcher(path string, store *Store, log logger.ILogger, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", absPath, err)
	}

	w := &Watcher{
		path:    absPath,
		store:   store,
		log:     log,
		watcher: watcher,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()

	return w, nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		<-w.done
	})
}

// Reload loads the file and swaps it into the store.
func (w *Watcher) Reload() (err error) {
	defer func() { metrics.RecordReload(context.Background(), err) }()

	cfg, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	if err := w.store.Swap(cfg); err != nil {
		return err
	}
	for _, fn := range w.onReload {
		fn(cfg)
	}
	w.log.Infof("Reloaded proxy configuration from %s (%d clusters, %d routes)", w.path, len(cfg.Clusters), len(cfg.Routes))
	return nil
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case <-w.closeCh:
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.triggersReload(event) {
				continue
			}
			w.consumeExtraEvents()
			if err := w.Reload(); err != nil {
				w.log.Errorf("Failed to reload proxy configuration, keeping previous one: %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Errorf("Proxy configuration watcher error: %v", err)
		}
	}
}

func (w *Watcher) triggersReload(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	switch {
	case name == w.path:
		return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
	case filepath.Base(name) == configMapDataDir && filepath.Dir(name) == filepath.Dir(w.path):
		return event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
	default:
		return false
	}
}

// consumeExtraEvents drains redundant events already queued by a burst of writes.
func (w *Watcher) consumeExtraEvents() {
	for {
		select {
		case <-w.watcher.Events:
		default:
			return
		}
	}
}

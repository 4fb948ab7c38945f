// Package configwatch reloads storefront configuration when its file changes.
package configwatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/storefront/config"
	"github.com/grovetools/storefront/logging"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher watches one configuration file and reports each successfully
// parsed revision. Editors that replace the file atomically are handled by
// watching the parent directory.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func(*config.Config)
	logger   *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Watcher for path. onReload runs on the watcher goroutine.
func New(path string, debounce time.Duration, onReload func(*config.Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: debounce,
		onReload: onReload,
		logger:   logging.NewLogger("config-watcher"),
	}, nil
}

// Start processes file events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Config watcher error")
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

// schedule reloads once the file has been quiet for the debounce window.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring invalid configuration change")
		return
	}

	w.logger.WithField("path", w.path).Info("Configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

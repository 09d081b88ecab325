// ABOUTME: Polling watcher that reapplies the tool manifest when its file changes
// ABOUTME: Compares mtimes on a ticker; a broken edit is logged and the previous declarations stay

package config

import (
	"os"
	"sync"
	"time"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

// DefaultWatchInterval is how often the manifest mtime is checked.
const DefaultWatchInterval = 2 * time.Second

// Watcher reloads a manifest into a registry when the file changes.
type Watcher struct {
	path     string
	reg      *tools.Registry
	onReload func(error)

	mu       sync.Mutex
	interval time.Duration
	mtime    time.Time
	present  bool
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the manifest at path. onReload, when
// set, is called after every reload attempt with its error.
func NewWatcher(path string, reg *tools.Registry, onReload func(error)) *Watcher {
	return &Watcher{
		path:     path,
		reg:      reg,
		onReload: onReload,
		interval: DefaultWatchInterval,
		stopCh:   make(chan struct{}),
	}
}

// SetInterval overrides the polling interval. It takes effect on Start.
func (w *Watcher) SetInterval(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.interval = d
	}
}

// Start begins polling in a goroutine. Calling it again is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.snapshotLocked()
	interval := w.interval
	w.mu.Unlock()

	go w.loop(interval)
}

// Stop halts polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.stopCh)
	})
}

// Check reloads synchronously if the file changed since the last snapshot
// and reports whether a reload was attempted.
func (w *Watcher) Check() bool {
	w.mu.Lock()
	changed := w.changedLocked()
	if changed {
		w.snapshotLocked()
	}
	w.mu.Unlock()

	if changed {
		w.reload()
	}
	return changed
}

func (w *Watcher) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

func (w *Watcher) reload() {
	var err error
	if _, statErr := os.Stat(w.path); statErr != nil {
		log.Warn("config: tool manifest %s disappeared; keeping current declarations", w.path)
	} else {
		var m *Manifest
		if m, err = LoadManifest(w.path); err == nil {
			err = m.Apply(w.reg)
		}
		if err != nil {
			log.Error("config: reloading %s: %v", w.path, err)
		}
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// changedLocked compares the current mtime with the snapshot. Must hold mu.
func (w *Watcher) changedLocked() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return w.present
	}
	return !w.present || !info.ModTime().Equal(w.mtime)
}

// snapshotLocked records the current mtime. Must hold mu.
func (w *Watcher) snapshotLocked() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.present = false
		w.mtime = time.Time{}
		return
	}
	w.present = true
	w.mtime = info.ModTime()
}

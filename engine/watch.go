package engine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the window within which change events coalesce.
const DefaultDebounce = 200 * time.Millisecond

// Watcher observes a single notebook source file and posts a coalesced
// notification each time its content settles after a change. It never
// reads the file itself (that is the orchestrator's job) and never calls
// into the evaluator.
type Watcher struct {
	path     string
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	pending  bool
	lastSeen time.Time
	present  bool

	Changed chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher builds a Watcher for path with the default 200ms debounce.
func NewWatcher(path string) (*Watcher, error) {
	return NewWatcherDebounce(path, DefaultDebounce)
}

// NewWatcherDebounce is NewWatcher with an explicit debounce window, used by
// tests that want the coalescing loop to settle faster than 200ms.
func NewWatcherDebounce(path string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		fsw:      fsw,
		Changed:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if _, err := os.Stat(path); err == nil {
		w.present = true
	}
	return w, nil
}

// Start begins the debounce loop in its own goroutine and returns
// immediately.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	interval := w.debounce / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case <-w.fsw.Errors:
			// A watcher-level error does not abort the watcher itself; the
			// orchestrator sees no event and simply doesn't get woken up.
			// Read failures surface on the orchestrator's own ReadFile, not
			// here.
		case <-ticker.C:
			w.maybeFire()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	if abs != w.path {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Pause: keep observing the path, resume on re-appearance. No
		// notification is posted for a removal itself.
		w.present = false
	default:
		w.present = true
		w.pending = true
		w.lastSeen = time.Now()
	}
}

// maybeFire posts a notification once a pending change has settled past
// the debounce window, coalescing any events that arrived during that
// window into the single post. The watcher's debounce is the first layer
// of collapsing; the orchestrator's pass loop is the second.
func (w *Watcher) maybeFire() {
	w.mu.Lock()
	fire := w.pending && w.present && time.Since(w.lastSeen) >= w.debounce
	if fire {
		w.pending = false
	}
	w.mu.Unlock()

	if !fire {
		return
	}
	select {
	case w.Changed <- struct{}{}:
	default:
		// A notification is already queued; the orchestrator will read the
		// latest file content on its next pass regardless, so a second
		// signal would be redundant.
	}
}

// Package watch re-runs a check whenever manifest files change. Events are
// debounced per path so editor save bursts trigger one run.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"placefix/internal/logging"
)

// Watcher monitors the one path it was given (a directory, or a single file)
// and invokes the callback with the changed path.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dir      string
	onChange func(path string)

	mu       sync.Mutex
	debounce time.Duration
	lastSeen map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a watcher over dir. The callback runs on the watcher goroutine.
func New(dir string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		dir:      dir,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		lastSeen: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching; it is non-blocking.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop ends the watch and waits for the loop to drain.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	log := logging.L(logging.CategoryWatch)

	for {
		select {
		case <-w.stopCh:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("watch error: %v", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debugf("event %s on %s", ev.Op, ev.Name)
			w.onChange(ev.Name)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	if ext != ".yaml" && ext != ".yml" && ext != ".ir" && ext != ".spec" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if last, ok := w.lastSeen[ev.Name]; ok && now.Sub(last) < w.debounce {
		return false
	}
	w.lastSeen[ev.Name] = now
	return true
}

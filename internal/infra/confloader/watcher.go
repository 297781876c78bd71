package confloader

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// DefaultDebounce is how long the watcher waits after the last write
// before notifying. Editors save a file as several events in quick
// succession; callbacks should see one settled change, not the burst.
const DefaultDebounce = 200 * time.Millisecond

// Watcher notifies callbacks when a registered configuration file is
// rewritten on disk. It watches the parent directory rather than the
// file itself so atomic rename-style saves are still observed, and it
// ignores events for other files in that directory.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	log       logger.Logger
	mu        sync.RWMutex
	files     map[string]struct{}
	callbacks []func(string)
	done      chan struct{}
	stopOnce  sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger used for watcher diagnostics.
func WithWatcherLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithDebounce overrides the settle window for change notifications.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		log:      logger.Default(),
		files:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("component", "confwatcher")
	return w, nil
}

// Watch registers a configuration file. Only registered files produce
// change notifications.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.files[abs] = struct{}{}
	w.mu.Unlock()

	dir := filepath.Dir(abs)
	if err := w.fsw.Add(dir); err != nil {
		w.log.Error("watch directory failed", "path", dir, "error", err)
		return err
	}
	w.log.Debug("watching config file", "file", abs)
	return nil
}

// OnChange registers a callback invoked with the path of a changed
// file once the change has settled.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start runs the watch loop. It blocks until Stop is called.
func (w *Watcher) Start() {
	w.log.Info("configuration watcher started")

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending string
	)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path := w.registered(event.Name)
			if path == "" {
				continue
			}
			// Restart the settle window on every event in the burst.
			pending = path
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			w.log.Debug("configuration file changed", "file", pending)
			w.notify(pending)
			timer = nil
			timerCh = nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("configuration watcher error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// StartAsync runs the watch loop in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends the watch loop and releases the OS watch. Safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.log.Info("configuration watcher stopped")
	})
	return err
}

// registered resolves an event path against the registered files and
// returns the canonical path, or "" when the file is not watched.
func (w *Watcher) registered(name string) string {
	abs, err := filepath.Abs(name)
	if err != nil {
		return ""
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if _, ok := w.files[abs]; ok {
		return abs
	}
	return ""
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	callbacks := make([]func(string), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()
	for _, cb := range callbacks {
		cb(path)
	}
}

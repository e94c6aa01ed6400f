package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes a set of definition files and invokes a callback when any
// of them change. Watching happens at the directory level because editors
// that save atomically replace the file instead of writing it in place.
type Watcher struct {
	mu       sync.Mutex
	files    map[string]string // absolute path -> original path
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(path string)
	pending  map[string]*time.Timer
	stopCh   chan struct{}
}

// debounceDelay coalesces the event bursts an atomic save produces.
const debounceDelay = 100 * time.Millisecond

// NewWatcher creates a watcher over the given files. onChange receives the
// path as it was originally given, not the resolved absolute path.
func NewWatcher(files []string, logger zerolog.Logger, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]string, len(files)),
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("absolute path for %s: %w", f, err)
		}
		w.files[abs] = f
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	return w, nil
}

// Start begins delivering change notifications.
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info().Int("files", len(w.files)).Msg("watching definition files for changes")
}

// Stop stops watching. Pending debounced notifications are dropped.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()

	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			orig, watched := w.files[abs]
			if !watched {
				continue
			}

			// Write in place or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("definition file changed")
				w.schedule(abs, orig)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// schedule arms (or re-arms) the debounce timer for one file.
func (w *Watcher) schedule(abs, orig string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[abs]; ok {
		t.Stop()
	}
	w.pending[abs] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, abs)
		w.mu.Unlock()

		select {
		case <-w.stopCh:
		default:
			w.onChange(orig)
		}
	})
}

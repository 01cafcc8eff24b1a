package library

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// Watcher keeps the store in step with the library directory. Files that
// are created or written are (re)loaded, files that are removed or
// renamed away are unloaded. Events are debounced per file.
type Watcher struct {
	store     *Store
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the store's directory
func NewWatcher(store *Store, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:     store,
		fsWatcher: fsw,
		debounce:  debounce,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.store.Dir(), err)
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching library directory", "dir", w.store.Dir())
	return nil
}

// Stop terminates the watcher and cancels pending reloads
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isLibraryFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("library watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// schedule (re)arms the debounce timer for path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.sync(path)
	})
}

// sync applies the current state of path to the store
func (w *Watcher) sync(path string) {
	if _, err := os.Stat(path); err != nil {
		if w.store.UnloadFile(path) {
			w.logger.Info("unloaded library", "file", path)
		}
		return
	}

	id, err := w.store.LoadFile(path, models.LibraryOriginWatch)
	if err != nil {
		w.logger.Warn("failed to reload library", "file", path, "error", err)
		return
	}
	w.logger.Info("reloaded library", "identifier", id.Raw, "file", path)
}

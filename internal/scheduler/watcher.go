package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StoreWatcher watches the local database files and requests an opportunistic
// sync once writes settle. Local edits reach other devices soon after they
// happen instead of waiting out the periodic interval.
type StoreWatcher struct {
	dbPath   string
	debounce time.Duration
	trigger  func(ctx context.Context)
	logger   *log.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending time.Time // zero when no change is queued

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStoreWatcher creates a watcher over the database at dbPath.
//
// trigger is called after the debounce window passes with no further writes;
// it is expected to tolerate an in-progress sync. If logger is nil, a default
// logger writing to stderr is used.
func NewStoreWatcher(dbPath string, debounce time.Duration, trigger func(ctx context.Context), logger *log.Logger) (*StoreWatcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("trigger cannot be nil")
	}
	if debounce <= 0 {
		debounce = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StoreWatcher{
		dbPath:   dbPath,
		debounce: debounce,
		trigger:  trigger,
		logger:   logger,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching. Non-blocking; Stop shuts the watcher down.
func (w *StoreWatcher) Start() error {
	// Watch the directory: SQLite rewrites -wal and -shm siblings.
	if err := w.watcher.Add(filepath.Dir(w.dbPath)); err != nil {
		return fmt.Errorf("failed to watch database directory: %w", err)
	}

	w.wg.Add(2)
	go w.watchEvents()
	go w.drainQueue()

	w.logger.Printf("Watching %s", w.dbPath)
	return nil
}

// Stop shuts the watcher down and waits for its goroutines.
func (w *StoreWatcher) Stop() error {
	w.cancel()
	if err := w.watcher.Close(); err != nil {
		w.logger.Printf("Error closing watcher: %v", err)
	}
	w.wg.Wait()
	return nil
}

func (w *StoreWatcher) watchEvents() {
	defer w.wg.Done()

	base := filepath.Base(w.dbPath)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Only the database and its WAL sidecars.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

// drainQueue fires the trigger once writes have been quiet for the debounce
// window, batching rapid updates together.
func (w *StoreWatcher) drainQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			queued := w.pending
			if queued.IsZero() || time.Since(queued) < w.debounce {
				w.mu.Unlock()
				continue
			}
			w.pending = time.Time{}
			w.mu.Unlock()

			w.logger.Printf("Local writes settled, requesting sync")
			w.trigger(w.ctx)

			// The sync itself writes pulled rows to the database we watch.
			// Drop whatever queued while it ran, or every sync would chain
			// into the next one.
			w.mu.Lock()
			w.pending = time.Time{}
			w.mu.Unlock()
		}
	}
}

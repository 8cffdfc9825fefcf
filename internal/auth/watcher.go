package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentmitra/portalctl/internal/log"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher republishes changes that other processes make to the session file.
// An access token that disappears is published as a cleared event, so a
// running 'portalctl serve' logs out when 'portalctl auth logout' runs in
// another terminal. Short-lived commands reread the file on every request
// and need no watcher.
type Watcher struct {
	path     string
	bus      *Bus
	logger   *log.Logger
	debounce time.Duration
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   bool

	started   bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the session file at path.
func NewWatcher(path string, bus *Bus, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Watcher{
		path:     path,
		bus:      bus,
		logger:   logger,
		debounce: DefaultDebounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the session file. The file itself is
// replaced by rename on every save, so watching it directly would lose the
// watch after the first write.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	w.started = true
	go w.run(ctx)
	w.logger.Debug("session watcher started", "path", w.path)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
		if w.started {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			w.pendingMu.Lock()
			w.pending = true
			w.pendingMu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("session watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	s, err := readSessionFile(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("session file changed but could not be read")
		return
	}

	kind := EventSaved
	if s.Empty() {
		kind = EventCleared
	}
	w.logger.Debug("session changed externally", "event", kind.String())
	w.bus.Publish(Event{Kind: kind, Key: KeyAccessToken, Origin: OriginExternal})
}

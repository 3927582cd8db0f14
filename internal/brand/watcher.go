package brand

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source supplies the profile in effect right now.
type Source interface {
	Current() Profile
}

// Static is a Source that never changes.
type Static Profile

// Current implements Source.
func (s Static) Current() Profile { return Profile(s) }

// DefaultSettleDelay is how long the file must stay quiet before it is reloaded.
const DefaultSettleDelay = 250 * time.Millisecond

// Watcher keeps a profile file loaded and reloads it when it changes.
// A file that fails to parse is logged and the previous profile stays active.
type Watcher struct {
	path        string
	logger      *slog.Logger
	settleDelay time.Duration
	onReload    func(Profile)

	mu      sync.RWMutex
	current Profile
	timer   *time.Timer

	fsw  *fsnotify.Watcher
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settleDelay = d }
}

// WithReloadHook is called with each successfully reloaded profile.
func WithReloadHook(fn func(Profile)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher loads path and prepares to watch it. The initial load must succeed.
func NewWatcher(path string, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	// Editors often replace the file, so the directory is watched rather than the file.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:        filepath.Clean(path),
		logger:      logger,
		settleDelay: DefaultSettleDelay,
		current:     p,
		fsw:         fsw,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Current implements Source.
func (w *Watcher) Current() Profile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start processes file events until ctx is canceled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					w.schedule()
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("brand profile watch error", "error", err)
			}
		}
	}()
}

// schedule restarts the settle timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settleDelay, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	p, err := Load(w.path)
	if err != nil {
		w.logger.Warn("brand profile reload failed, keeping previous profile",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.mu.Lock()
	w.current = p
	w.mu.Unlock()

	w.logger.Info("brand profile reloaded", "path", w.path, "business", p.BusinessName)
	if w.onReload != nil {
		w.onReload(p)
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

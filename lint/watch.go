package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnolang/patlint/internal/frontend"
	"github.com/gnolang/patlint/internal/types"
)

// DefaultDebounce merges the bursts of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher rescans source files when they are written.
type Watcher struct {
	engine   LintEngine
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onResult func(types.FileResult)
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	report  sync.Mutex
}

// NewWatcher creates a watcher that hands every rescan result to onResult.
// onResult is never called concurrently.
func NewWatcher(engine LintEngine, logger *zap.Logger, onResult func(types.FileResult)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		engine:   engine,
		logger:   logger,
		watcher:  fw,
		onResult: onResult,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Add watches files and every directory below the given directories.
func (w *Watcher) Add(paths ...string) error {
	for _, path := range paths {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || p == path {
				return w.watcher.Add(p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error adding %s to watcher: %w", path, err)
		}
	}
	return nil
}

// Run handles events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.Add(event.Name); err != nil {
				w.logger.Error("Error watching directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if _, ok := frontend.ForPath(event.Name); !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(w.debounce)
		return
	}
	name := event.Name
	w.pending[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		w.rescan(ctx, name)
	})
}

func (w *Watcher) rescan(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	res, err := w.engine.Run(ctx, path)
	if err != nil {
		w.logger.Error("Error processing file", zap.String("file", path), zap.Error(err))
		return
	}
	w.logger.Debug("Rescanned file", zap.String("file", path), zap.Int("findings", len(res.Findings)))

	w.report.Lock()
	defer w.report.Unlock()
	w.onResult(res)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()
	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Error closing watcher", zap.Error(err))
	}
}

// Package watch re-runs the gate when any input file changes. Events are
// debounced (editors write in bursts) and rate-limited so a rapidly changing
// input cannot queue an unbounded backlog of runs.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/logger"
)

// Trigger is invoked once per settled change batch.
type Trigger func(ctx context.Context)

// Watcher drives re-runs from file change events.
type Watcher struct {
	paths   map[string]bool
	watcher *fsnotify.Watcher
	trigger Trigger

	debounce time.Duration
	limiter  *rate.Limiter

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// New watches the given files. minInterval is the floor between triggered
// runs; debounce is the quiet period after the last event before triggering.
func New(paths []string, minInterval, debounce time.Duration, trigger Trigger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}

	w := &Watcher{
		paths:    make(map[string]bool, len(paths)),
		watcher:  fsw,
		trigger:  trigger,
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}

	// Watch parent directories: editors rename over the original file, which
	// silently detaches a direct file watch.
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "resolving %s", p)
		}
		w.paths[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "watching %s", dir)
		}
	}
	return w, nil
}

// Run blocks, dispatching triggers, until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debugw("input file changed",
				logger.FieldFile, event.Name,
				logger.FieldOperation, event.Op.String())
			w.schedule(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("file watcher error", logger.FieldError, err.Error())
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.paths[abs]
}

// schedule (re)arms the debounce timer; the trigger fires only after the
// change burst settles, and never faster than the rate limit allows.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		logger.Infow("change settled, triggering run")
		w.trigger(ctx)
	})
}

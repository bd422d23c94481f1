package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a corpus directory. Bursts of filesystem events
// are coalesced into a single callback after the debounce interval.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	filter   func(name string) bool
	onChange func()
	logger   *slog.Logger
}

// NewWatcher starts watching dir. filter, when non-nil, selects which file
// names count as corpus changes.
func NewWatcher(dir string, debounce time.Duration, filter func(string) bool, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		filter:   filter,
		onChange: onChange,
		logger:   slog.Default().With("component", "corpus-watcher", "dir", dir),
	}, nil
}

// Run delivers change notifications until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("corpus change", "name", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			if pending {
				pending = false
				w.logger.Info("corpus changed, invalidating index")
				w.onChange()
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.filter == nil || w.filter(event.Name)
}

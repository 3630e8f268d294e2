package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/lazyval/pkg/telemetry"
)

// DefaultWatchDelay is how long a watcher waits for writes to settle.
const DefaultWatchDelay = 200 * time.Millisecond

// Watcher reports changes to a source file or a CUE package directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *telemetry.Logger
	target  string
	isDir   bool

	// Delay debounces bursts of events into one change.
	Delay time.Duration
}

// NewWatcher watches path. For a single file the containing directory is
// watched so that editors replacing the file are noticed.
func NewWatcher(path string, logger *telemetry.Logger) (*Watcher, error) {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher: watcher,
		logger:  logger,
		target:  filepath.Clean(path),
		isDir:   info.IsDir(),
		Delay:   DefaultWatchDelay,
	}

	dir := w.target
	if !w.isDir {
		dir = filepath.Dir(w.target)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return w, nil
}

// Run calls onChange after every settled change until ctx is done. onChange
// runs on the caller's goroutine, one call at a time.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.WithFields(map[string]interface{}{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("source changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.Delay)
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if !w.isDir {
		return name == w.target
	}
	return strings.ToLower(filepath.Ext(name)) == ".cue"
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

package toml

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports when the session file disappears, which is how a logout
// performed by another bw process becomes visible to a long-running one.
type Watcher struct {
	w         *fsnotify.Watcher
	path      string
	onRemoved func()
	logger    zerolog.Logger
	done      chan struct{}
}

// NewWatcher watches the directory holding path and calls onRemoved from the
// watcher goroutine each time the file is removed.
func NewWatcher(path string, onRemoved func(), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, sessionDirMode); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	watcher := &Watcher{
		w:         fw,
		path:      filepath.Clean(path),
		onRemoved: onRemoved,
		logger:    logger,
		done:      make(chan struct{}),
	}

	go watcher.loop()
	return watcher, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// An atomic save renames over the file; only a real absence counts.
			if _, err := os.Stat(w.path); !errors.Is(err, os.ErrNotExist) {
				continue
			}

			w.logger.Debug().Str("path", w.path).Msg("session file removed")
			w.onRemoved()

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("session watcher error")
		}
	}
}

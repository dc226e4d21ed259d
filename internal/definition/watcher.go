package definition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rndsolutions/HawkCD/internal/logging"
)

const debounce = 100 * time.Millisecond

// Watcher imports definition files as they appear in a directory. A file
// whose definition name is already stored is skipped, so edits to an
// imported definition are not applied.
type Watcher struct {
	dir      string
	importer *Importer
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(dir string, importer *Importer, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{dir: dir, importer: importer, logger: logging.OrDiscard(logger), watcher: w}, nil
}

// Run processes events until ctx is done, then closes the watcher.
// Editors often emit several events per save, so paths are collected and
// imported once the directory has been quiet for a short while.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	w.logger.Info("definition watcher started", "dir", w.dir)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("definition watcher stopped", "dir", w.dir)
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsDefinitionFile(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(debounce)

		case <-timer.C:
			for path := range pending {
				if _, _, err := w.importer.ImportFile(ctx, path); err != nil {
					w.logger.Warn("definition import failed", "path", path, "error", err)
				}
			}
			pending = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("definition watcher error", "error", err)
		}
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"helprag/loader/internal"

	"github.com/fsnotify/fsnotify"
)

// Watch runs a full ingestion at start and again each time HTML files in
// sourceDir stop changing for debounce. onRun receives every run result.
// It returns when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, sourceDir string, debounce time.Duration, onRun func(*Report, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(sourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", sourceDir, err)
	}
	s.logger.Info("start monitoring folder", "source_dir", sourceDir, "debounce", debounce)

	onRun(s.RunIngestion(ctx, sourceDir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("file watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			s.logger.Debug("source changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		case <-timer.C:
			onRun(s.RunIngestion(ctx, sourceDir))
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !internal.IsHTMLFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

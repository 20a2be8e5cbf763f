// internal/daemon/reload.go
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// startHotReload watches the contexts file and reloads it once writes have
// been quiet for the reload delay. The parent directory is watched so that
// editors replacing the file by rename are seen.
func (d *Daemon) startHotReload(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Error("could not create config watcher", "error", err)
		<-ctx.Done()
		return ctx.Err()
	}
	defer watcher.Close()

	target, err := filepath.Abs(d.contextsPath)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		d.logger.Error("could not watch config directory", "error", err, "dir", filepath.Dir(target))
		<-ctx.Done()
		return ctx.Err()
	}

	d.logger.Info("hot-reload watcher started", "path", target)

	var debounceTimer *time.Timer
	debounceCh := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(d.reloadDelay, func() {
				select {
				case debounceCh <- struct{}{}:
				default:
				}
			})

		case <-debounceCh:
			d.logger.Info("reloading contexts (hot-reload)")
			d.reloadContexts(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("config watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

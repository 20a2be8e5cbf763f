//go:build !darwin

package trigger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Listen watches the closest existing directory above the target with
// inotify-style notifications and re-checks the target whenever an entry
// on the way to it changes. The watch follows the target down as missing
// parents appear and back up as they are removed.
func (p *Path) Listen(ctx context.Context, events chan<- Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: path: %w", ErrProbe, err)
	}
	defer watcher.Close()

	watched, err := p.watchAncestor(watcher, "")
	if err != nil {
		return err
	}

	em := emitter{name: p.Name()}
	if err := p.check(ctx, &em, events); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if name != p.path && !isAncestor(name, p.path) {
				continue
			}
			if watched, err = p.watchAncestor(watcher, watched); err != nil {
				return err
			}
			if err := p.check(ctx, &em, events); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("%w: path: %w", ErrProbe, err)
		}
	}
}

// watchAncestor moves the watch from current to the closest existing
// directory above the target and returns it.
func (p *Path) watchAncestor(w *fsnotify.Watcher, current string) (string, error) {
	for {
		dir := closestDir(filepath.Dir(p.path))
		if dir == current {
			return current, nil
		}
		if err := w.Add(dir); err != nil {
			return current, fmt.Errorf("%w: path: watching %s: %w", ErrProbe, dir, err)
		}
		if current != "" {
			// Fails when current was deleted; inotify already dropped it.
			_ = w.Remove(current)
		}
		current = dir
	}
}

func closestDir(dir string) string {
	for {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func isAncestor(dir, path string) bool {
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

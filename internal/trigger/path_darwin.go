//go:build darwin

package trigger

import (
	"context"

	"github.com/fsnotify/fsevents"
)

// Listen uses an FSEvents stream rooted at the target. FSEvents watches
// path strings, so the target may not exist yet and volume mounts are
// reported.
func (p *Path) Listen(ctx context.Context, events chan<- Event) error {
	em := emitter{name: p.Name()}
	if err := p.check(ctx, &em, events); err != nil {
		return err
	}

	stream := &fsevents.EventStream{
		Paths:   []string{p.path},
		Latency: 0,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot | fsevents.NoDefer,
	}
	stream.Start()
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-stream.Events:
			if !ok {
				return nil
			}
			if err := p.check(ctx, &em, events); err != nil {
				return err
			}
		}
	}
}

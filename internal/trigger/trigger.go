// internal/trigger/trigger.go
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colebrumley/runtext/internal/config"
)

var (
	// ErrUnknownTrigger is returned by New for a name with no implementation.
	ErrUnknownTrigger = fmt.Errorf("%w: trigger", config.ErrUnknownIdentifier)

	// ErrProbe is returned by Listen when the evidence source cannot be read.
	ErrProbe = errors.New("evidence probe failed")
)

// Activity is the signal a trigger reports when its condition changes.
type Activity int

const (
	Inactive Activity = iota
	Active
)

func (a Activity) String() string {
	if a == Active {
		return "active"
	}
	return "inactive"
}

// Event is one edge reported by a trigger.
type Event struct {
	Trigger   string
	Activity  Activity
	Timestamp time.Time
	// Observed is the raw evidence behind the edge, e.g. the joined SSID.
	Observed string
}

// Trigger is the interface all evidence sources implement
type Trigger interface {
	// Name returns the registry name of the trigger
	Name() string
	// Listen watches the evidence source and sends an Event on every change
	// of its matching state. It blocks until ctx is done or the source
	// fails. Each call starts from a fresh, not-matching state.
	Listen(ctx context.Context, events chan<- Event) error
}

// emitter pairs an edge detector with the send side of the fan-in channel.
type emitter struct {
	name string
	edge Edge
}

func (e *emitter) observe(ctx context.Context, events chan<- Event, matching bool, observed string) error {
	activity, changed := e.edge.Observe(matching)
	if !changed {
		return nil
	}

	select {
	case events <- Event{
		Trigger:   e.name,
		Activity:  activity,
		Timestamp: time.Now(),
		Observed:  observed,
	}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func invalidConfig(trigger, format string, args ...any) error {
	return fmt.Errorf("%w: %s trigger: %s", config.ErrInvalidConfig, trigger, fmt.Sprintf(format, args...))
}

// internal/driver/policy.go
package driver

import "github.com/colebrumley/runtext/internal/config"

// Decision is the batch operation issued to all actions after an event.
type Decision int

const (
	Leave Decision = iota
	Enter
)

func (d Decision) String() string {
	if d == Enter {
		return "enter"
	}
	return "leave"
}

// Decide evaluates the trigger behavior after one event moved the activity
// counter from prev to counter, with total triggers in the context.
//
// And is level-triggered: every event issues Enter while all triggers are
// active and Leave otherwise. Or enters only on the event that takes the
// counter off zero; every other event, including further activity while
// already entered, issues Leave.
func Decide(behavior config.TriggerBehavior, prev, counter, total int) Decision {
	switch behavior {
	case config.Or:
		if prev == 0 && counter > 0 {
			return Enter
		}
		return Leave
	default:
		if counter == total {
			return Enter
		}
		return Leave
	}
}

// internal/trigger/schedule.go
package trigger

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule is active between an enter and a leave time, e.g. working hours
type Schedule struct {
	enter cron.Schedule
	leave cron.Schedule
	specs [2]string
}

// NewSchedule creates a schedule trigger from a mapping with enter and
// leave keys. Each is a cron expression with a seconds field, a descriptor
// such as @every 1h, or a daily "HH:MM" time.
func NewSchedule(cfg yaml.Node) (*Schedule, error) {
	if cfg.Kind != yaml.MappingNode {
		return nil, invalidConfig("schedule", "expected a mapping with enter and leave (line %d)", cfg.Line)
	}

	var sc struct {
		Enter string `yaml:"enter"`
		Leave string `yaml:"leave"`
	}
	if err := cfg.Decode(&sc); err != nil {
		return nil, invalidConfig("schedule", "%v", err)
	}
	if sc.Enter == "" || sc.Leave == "" {
		return nil, invalidConfig("schedule", "both enter and leave are required")
	}

	s := &Schedule{specs: [2]string{toCron(sc.Enter), toCron(sc.Leave)}}
	var err error
	if s.enter, err = cronParser.Parse(s.specs[0]); err != nil {
		return nil, invalidConfig("schedule", "enter %q: %v", sc.Enter, err)
	}
	if s.leave, err = cronParser.Parse(s.specs[1]); err != nil {
		return nil, invalidConfig("schedule", "leave %q: %v", sc.Leave, err)
	}
	return s, nil
}

func (s *Schedule) Name() string {
	return "schedule"
}

// Listen runs a private cron instance until ctx is done. When started inside
// a window the trigger reports Active immediately.
func (s *Schedule) Listen(ctx context.Context, events chan<- Event) error {
	fires := make(chan bool, 4)
	fire := func(matching bool) cron.FuncJob {
		return func() {
			select {
			case fires <- matching:
			case <-ctx.Done():
			}
		}
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(s.enter, fire(true))
	c.Schedule(s.leave, fire(false))
	c.Start()
	defer c.Stop()

	// Starting inside a window counts as having entered it.
	em := emitter{name: s.Name()}
	if s.Within(time.Now()) {
		if err := em.observe(ctx, events, true, s.specs[0]); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case matching := <-fires:
			observed := s.specs[1]
			if matching {
				observed = s.specs[0]
			}
			if err := em.observe(ctx, events, matching, observed); err != nil {
				return err
			}
		}
	}
}

// Next returns the next enter and leave times after t.
func (s *Schedule) Next(t time.Time) (enter, leave time.Time) {
	return s.enter.Next(t), s.leave.Next(t)
}

// Within reports whether t falls between an enter and the following leave,
// that is the next leave comes before the next enter.
func (s *Schedule) Within(t time.Time) bool {
	enter, leave := s.Next(t)
	return leave.Before(enter)
}

// toCron converts a daily "HH:MM" time to a cron expression and passes
// anything else through unchanged.
func toCron(expr string) string {
	if len(expr) == 5 && expr[2] == ':' {
		return "0 " + expr[3:5] + " " + expr[0:2] + " * * *"
	}
	return expr
}

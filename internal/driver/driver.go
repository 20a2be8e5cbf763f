// internal/driver/driver.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colebrumley/runtext/internal/action"
	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/logging"
	"github.com/colebrumley/runtext/internal/metrics"
	"github.com/colebrumley/runtext/internal/state"
	"github.com/colebrumley/runtext/internal/trigger"
	"gopkg.in/yaml.v3"
)

const defaultShutdownTimeout = 10 * time.Second

var (
	// ErrTriggerFailed is returned by Run when a trigger sequence ends with
	// an error. The wrapped error names the trigger.
	ErrTriggerFailed = errors.New("trigger failed")

	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("driver already started")
)

// Recorder stores evaluated transitions. *state.DB implements it.
type Recorder interface {
	RecordTransition(t state.Transition) (int64, error)
}

// Status is a snapshot of a running driver.
type Status struct {
	Counter   int       `json:"counter"`
	Entered   bool      `json:"entered"`
	Events    int       `json:"events"`
	LastEvent time.Time `json:"last_event,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Option configures a Driver.
type Option func(*options)

type options struct {
	newTrigger      func(name string, cfg yaml.Node) (trigger.Trigger, error)
	newAction       func(name string, cfg yaml.Node) (action.Action, error)
	logger          *slog.Logger
	recorder        Recorder
	metrics         *metrics.Metrics
	session         string
	shutdownTimeout time.Duration
}

// WithFactory replaces the trigger and action registries.
func WithFactory(
	newTrigger func(name string, cfg yaml.Node) (trigger.Trigger, error),
	newAction func(name string, cfg yaml.Node) (action.Action, error),
) Option {
	return func(o *options) {
		if newTrigger != nil {
			o.newTrigger = newTrigger
		}
		if newAction != nil {
			o.newAction = newAction
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder stores every evaluated event under the given session id.
func WithRecorder(r Recorder, session string) Option {
	return func(o *options) {
		o.recorder = r
		o.session = session
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithShutdownTimeout bounds the final leave issued when Run returns.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// Driver runs the activation state machine of one context
type Driver struct {
	context  config.Context
	triggers []trigger.Trigger
	actions  []action.Action
	opts     options
	logger   *slog.Logger

	// counter is only touched by the Run goroutine.
	counter int
	started atomic.Bool
	status  atomic.Pointer[Status]
}

// New resolves every trigger and action of c. Nothing is started; if any
// name fails to resolve the actions built so far are closed and no driver
// is returned.
func New(c config.Context, opts ...Option) (*Driver, error) {
	o := options{
		newTrigger:      trigger.New,
		newAction:       action.New,
		logger:          logging.Discard(),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("context %q: %w", c.Name, err)
	}

	d := &Driver{
		context: c,
		opts:    o,
		logger:  logging.WithContextName(o.logger, c.Name),
	}
	d.status.Store(&Status{})

	for _, name := range c.TriggerNames() {
		t, err := o.newTrigger(name, c.Triggers[name])
		if err != nil {
			return nil, fmt.Errorf("context %q: trigger %q: %w", c.Name, name, err)
		}
		d.triggers = append(d.triggers, t)
	}

	for _, name := range c.ActionNames() {
		a, err := o.newAction(name, c.Actions[name])
		if err != nil {
			d.closeActions()
			return nil, fmt.Errorf("context %q: action %q: %w", c.Name, name, err)
		}
		d.actions = append(d.actions, a)
	}

	return d, nil
}

// Name returns the context name.
func (d *Driver) Name() string {
	return d.context.Name
}

// Close releases the actions of a driver that will not be run. Run
// releases them itself.
func (d *Driver) Close() {
	if d.started.CompareAndSwap(false, true) {
		d.closeActions()
	}
}

// Status returns the latest snapshot.
func (d *Driver) Status() Status {
	return *d.status.Load()
}

// Run merges all trigger sequences and drives the actions until ctx is
// done, every trigger sequence has ended, or a trigger fails. Before
// returning it leaves and closes every action. A cancelled ctx is not an
// error.
func (d *Driver) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	d.opts.metrics.SetRunning(d.context.Name, true)
	defer d.opts.metrics.SetRunning(d.context.Name, false)

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan trigger.Event)
	exits := make(chan triggerExit, len(d.triggers))

	var wg sync.WaitGroup
	for _, t := range d.triggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exits <- triggerExit{name: t.Name(), err: t.Listen(ctx, events)}
		}()
	}

	d.logger.Info("context started",
		"behavior", d.context.TriggerBehavior.String(),
		"triggers", len(d.triggers),
		"actions", len(d.actions))

	err := d.loop(ctx, events, exits)

	cancel()
	wg.Wait()
	d.shutdown()

	if err != nil {
		d.logger.Error("context stopped", "error", err)
	} else {
		d.logger.Info("context stopped")
	}
	return err
}

type triggerExit struct {
	name string
	err  error
}

func (d *Driver) loop(ctx context.Context, events <-chan trigger.Event, exits <-chan triggerExit) error {
	remaining := len(d.triggers)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			d.handle(ctx, ev)
		case exit := <-exits:
			remaining--
			switch {
			case ctx.Err() != nil:
				return nil
			case exit.err != nil:
				d.opts.metrics.RecordTriggerFailure(d.context.Name, exit.name)
				d.setError(exit.err)
				return fmt.Errorf("%w: context %q: trigger %q: %w", ErrTriggerFailed, d.context.Name, exit.name, exit.err)
			default:
				logging.WithTrigger(d.logger, exit.name).Warn("trigger sequence ended")
			}
		}
	}
	return nil
}

// handle applies one event to the counter, evaluates the behavior and
// issues the resulting batch to every action.
func (d *Driver) handle(ctx context.Context, ev trigger.Event) {
	total := len(d.triggers)
	prev := d.counter
	if ev.Activity == trigger.Active {
		d.counter++
	} else {
		d.counter--
	}
	if d.counter < 0 || d.counter > total {
		d.logger.Warn("activity counter out of range",
			"trigger", ev.Trigger, "counter", d.counter, "triggers", total)
	}

	decision := Decide(d.context.TriggerBehavior, prev, d.counter, total)
	d.opts.metrics.RecordEvent(d.context.Name, ev.Trigger, ev.Activity.String(), d.counter)
	logging.WithTrigger(d.logger, ev.Trigger).Info("trigger event",
		"activity", ev.Activity.String(),
		"observed", ev.Observed,
		"counter", d.counter,
		"decision", decision.String())

	start := time.Now()
	err := d.apply(ctx, decision)
	took := time.Since(start)
	d.opts.metrics.RecordTransition(d.context.Name, decision.String(), took)

	st := Status{
		Counter:   d.counter,
		Entered:   decision == Enter,
		Events:    d.Status().Events + 1,
		LastEvent: ev.Timestamp,
	}
	if err != nil {
		st.LastError = err.Error()
	}
	d.status.Store(&st)

	d.record(ev, decision, err, took)
}

// apply calls Enter or Leave on every action concurrently and waits for
// all of them. Failures are logged and joined; they never stop the loop.
func (d *Driver) apply(ctx context.Context, decision Decision) error {
	ctx = action.WithContextName(ctx, d.context.Name)
	errs := make([]error, len(d.actions))

	var wg sync.WaitGroup
	for i, a := range d.actions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if decision == Enter {
				err = a.Enter(ctx)
			} else {
				err = a.Leave(ctx)
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", a.Name(), err)
				d.opts.metrics.RecordActionError(d.context.Name, a.Name(), decision.String())
				logging.WithAction(d.logger, a.Name()).Error("action failed",
					"operation", decision.String(), "error", err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (d *Driver) record(ev trigger.Event, decision Decision, err error, took time.Duration) {
	if d.opts.recorder == nil {
		return
	}
	t := state.Transition{
		Session:    d.opts.session,
		Context:    d.context.Name,
		Trigger:    ev.Trigger,
		Activity:   ev.Activity.String(),
		Observed:   ev.Observed,
		Counter:    d.counter,
		Decision:   decision.String(),
		Timestamp:  ev.Timestamp,
		DurationMs: took.Milliseconds(),
	}
	if err != nil {
		t.Errors = err.Error()
	}
	if _, err := d.opts.recorder.RecordTransition(t); err != nil {
		d.logger.Warn("failed to record transition", "error", err)
	}
}

func (d *Driver) setError(err error) {
	st := d.Status()
	st.LastError = err.Error()
	d.status.Store(&st)
}

// shutdown leaves every action once with a fresh deadline and then closes
// them, so no external resource outlives the driver.
func (d *Driver) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.shutdownTimeout)
	defer cancel()

	if err := d.apply(ctx, Leave); err != nil {
		d.logger.Warn("final leave failed", "error", err)
	}
	d.closeActions()

	st := d.Status()
	st.Entered = false
	d.status.Store(&st)
}

func (d *Driver) closeActions() {
	for _, a := range d.actions {
		if err := a.Close(); err != nil {
			logging.WithAction(d.logger, a.Name()).Warn("close failed", "error", err)
		}
	}
}

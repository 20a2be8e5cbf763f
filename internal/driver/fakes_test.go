// internal/driver/fakes_test.go
package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colebrumley/runtext/internal/action"
	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/state"
	"github.com/colebrumley/runtext/internal/trigger"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

type fakeTrigger struct {
	name string
	feed chan trigger.Activity
	fail chan error
}

func (f *fakeTrigger) Name() string { return f.name }

func (f *fakeTrigger) Listen(ctx context.Context, events chan<- trigger.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-f.fail:
			return err
		case a := <-f.feed:
			select {
			case events <- trigger.Event{Trigger: f.name, Activity: a, Timestamp: time.Now()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

type fakeAction struct {
	name     string
	enterErr error

	mu    sync.Mutex
	calls []string
}

func (f *fakeAction) Name() string { return f.name }

func (f *fakeAction) Enter(ctx context.Context) error {
	f.add("enter")
	return f.enterErr
}

func (f *fakeAction) Leave(ctx context.Context) error {
	f.add("leave")
	return nil
}

func (f *fakeAction) Close() error {
	f.add("close")
	return nil
}

func (f *fakeAction) add(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAction) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fixture builds fakes through the driver factory hooks and keeps them by
// configuration key.
type fixture struct {
	triggers     map[string]*fakeTrigger
	actions      map[string]*fakeAction
	actionsBuilt int
	enterErr     map[string]error
}

func newFixture() *fixture {
	return &fixture{
		triggers: map[string]*fakeTrigger{},
		actions:  map[string]*fakeAction{},
		enterErr: map[string]error{},
	}
}

func (fx *fixture) newTrigger(name string, _ yaml.Node) (trigger.Trigger, error) {
	t := &fakeTrigger{
		name: name,
		feed: make(chan trigger.Activity),
		fail: make(chan error, 1),
	}
	fx.triggers[name] = t
	return t, nil
}

func (fx *fixture) newAction(name string, cfg yaml.Node) (action.Action, error) {
	if name == "missing" {
		return action.New(name, cfg)
	}
	fx.actionsBuilt++
	a := &fakeAction{name: name, enterErr: fx.enterErr[name]}
	fx.actions[name] = a
	return a, nil
}

func (fx *fixture) option() Option {
	return WithFactory(fx.newTrigger, fx.newAction)
}

func testContext(behavior config.TriggerBehavior, triggers, actions []string) config.Context {
	c := config.Context{
		Name:            "test",
		Triggers:        map[string]yaml.Node{},
		Actions:         map[string]yaml.Node{},
		TriggerBehavior: behavior,
	}
	for _, name := range triggers {
		c.Triggers[name] = yaml.Node{Kind: yaml.ScalarNode, Value: name}
	}
	for _, name := range actions {
		c.Actions[name] = yaml.Node{Kind: yaml.ScalarNode, Value: name}
	}
	return c
}

// waitCalls waits until a has recorded n calls and returns them.
func waitCalls(t *testing.T, a *fakeAction, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(a.Calls()) >= n }, testTimeout, testTick,
		"waiting for %d calls on %s", n, a.name)
	return a.Calls()
}

type memRecorder struct {
	mu          sync.Mutex
	transitions []state.Transition
}

func (m *memRecorder) RecordTransition(t state.Transition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, t)
	return int64(len(m.transitions)), nil
}

func (m *memRecorder) all() []state.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]state.Transition(nil), m.transitions...)
}

// internal/action/command.go
package action

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/colebrumley/runtext/internal/security"
	"gopkg.in/yaml.v3"
)

// Command runs a program for as long as the context is entered
type Command struct {
	enter []string
	leave []string
	proc  *process
}

// process owns the running child. It is kept apart from Command so the
// runtime cleanup can reach it after the Command itself is unreachable.
type process struct {
	mu    sync.Mutex
	child *child
}

type child struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// NewCommand creates a command action. cfg is the enter command line as a
// string or a mapping with enter and an optional leave command line.
func NewCommand(cfg yaml.Node) (*Command, error) {
	var cc struct {
		Enter string `yaml:"enter"`
		Leave string `yaml:"leave"`
	}
	switch cfg.Kind {
	case yaml.ScalarNode:
		cc.Enter = cfg.Value
	case yaml.MappingNode:
		if err := cfg.Decode(&cc); err != nil {
			return nil, invalidConfig("command", "%v", err)
		}
	default:
		return nil, invalidConfig("command", "expected a command line or a mapping (line %d)", cfg.Line)
	}

	c := &Command{
		enter: Tokenize(cc.Enter),
		leave: Tokenize(cc.Leave),
		proc:  &process{},
	}
	if len(c.enter) == 0 {
		return nil, invalidConfig("command", "missing enter command")
	}

	runtime.AddCleanup(c, func(p *process) {
		if err := p.terminate(); err != nil {
			slog.Warn("cleanup of abandoned command failed", "error", err)
		}
	}, c.proc)
	return c, nil
}

// Tokenize splits a command line on whitespace. There is no quoting,
// globbing or variable expansion.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

func (c *Command) Name() string {
	return "command"
}

// Enter starts the enter command detached from the daemon, in its own
// process group and with no standard streams. A child from a previous
// Enter is killed first.
func (c *Command) Enter(ctx context.Context) error {
	p := c.proc
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.terminateLocked(); err != nil {
		return err
	}

	cmd := exec.Command(c.enter[0], c.enter[1:]...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSpawn, security.Scrub(strings.Join(c.enter, " ")), err)
	}

	ch := &child{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		slog.Debug("command exited", "pid", cmd.Process.Pid, "error", err)
		close(ch.done)
	}()
	p.child = ch
	return nil
}

// Leave kills the running child, if any, and then runs the leave command
// to completion when one is configured.
func (c *Command) Leave(ctx context.Context) error {
	if err := c.proc.terminate(); err != nil {
		return err
	}
	if len(c.leave) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, c.leave[0], c.leave[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("leave command %s: %w", security.Scrub(strings.Join(c.leave, " ")), err)
	}
	return nil
}

// Close kills the running child, if any.
func (c *Command) Close() error {
	return c.proc.terminate()
}

// PID returns the process id of the running child.
func (c *Command) PID() (int, bool) {
	p := c.proc
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.child == nil {
		return 0, false
	}
	select {
	case <-p.child.done:
		return 0, false
	default:
		return p.child.cmd.Process.Pid, true
	}
}

func (p *process) terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminateLocked()
}

// terminateLocked kills the child's process group and waits for it to be
// reaped. It is the single teardown path for Enter, Leave, Close and the
// runtime cleanup.
func (p *process) terminateLocked() error {
	ch := p.child
	if ch == nil {
		return nil
	}
	p.child = nil

	select {
	case <-ch.done:
		return nil
	default:
	}

	if err := kill(ch.cmd); err != nil {
		return fmt.Errorf("%w: pid %d: %w", ErrTerminate, ch.cmd.Process.Pid, err)
	}
	<-ch.done
	return nil
}

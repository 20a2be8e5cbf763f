// internal/action/action.go
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/colebrumley/runtext/internal/config"
)

var (
	// ErrUnknownAction is returned by New for a name with no implementation.
	ErrUnknownAction = fmt.Errorf("%w: action", config.ErrUnknownIdentifier)

	// ErrSpawn is returned when a process cannot be started.
	ErrSpawn = errors.New("spawning process")

	// ErrTerminate is returned when a running process cannot be killed.
	ErrTerminate = errors.New("terminating process")
)

// Action is a resource whose lifetime follows the activation of a context
type Action interface {
	// Name returns the registry name of the action
	Name() string
	// Enter establishes the resource. Calling it while entered replaces the
	// resource without leaking the previous one.
	Enter(ctx context.Context) error
	// Leave releases the resource. Calling it while not entered succeeds.
	Leave(ctx context.Context) error
	// Close force-releases anything still owned. The action is not used
	// after Close.
	Close() error
}

type contextNameKey struct{}

// WithContextName attaches the name of the driving context to ctx, for
// actions that report it.
func WithContextName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextNameKey{}, name)
}

// ContextName returns the context name attached with WithContextName.
func ContextName(ctx context.Context) string {
	name, _ := ctx.Value(contextNameKey{}).(string)
	return name
}

func invalidConfig(action, format string, args ...any) error {
	return fmt.Errorf("%w: %s action: %s", config.ErrInvalidConfig, action, fmt.Sprintf(format, args...))
}

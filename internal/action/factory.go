// internal/action/factory.go
package action

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names lists the registered action names.
var Names = []string{"command", "mqtt"}

// New creates an action from its registry name and raw configuration
func New(name string, cfg yaml.Node) (Action, error) {
	switch strings.TrimSpace(name) {
	case "command":
		return NewCommand(cfg)
	case "mqtt":
		return NewMQTT(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

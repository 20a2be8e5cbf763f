// internal/trigger/factory.go
package trigger

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names lists the registered trigger names.
var Names = []string{"mqtt", "path", "schedule", "wifi"}

// New creates a trigger from its registry name and raw configuration
func New(name string, cfg yaml.Node) (Trigger, error) {
	switch strings.TrimSpace(name) {
	case "wifi":
		return NewWifi(cfg)
	case "path":
		return NewPath(cfg)
	case "schedule":
		return NewSchedule(cfg)
	case "mqtt":
		return NewMQTT(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
}

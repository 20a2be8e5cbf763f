// internal/config/types.go
package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Global daemon settings loaded from the settings file
type Global struct {
	Daemon                 DaemonConfig  `yaml:"daemon"`
	Logging                LoggingConfig `yaml:"logging"`
	History                HistoryConfig `yaml:"history"`
	ShutdownTimeoutSeconds int           `yaml:"shutdown_timeout_seconds" validate:"gte=0"`
}

type DaemonConfig struct {
	LogLevel            string `yaml:"log_level" validate:"oneof=debug info warn error"`
	StatusListenAddress string `yaml:"status_listen_address" validate:"required"`
	StatusListenPort    int    `yaml:"status_listen_port" validate:"gte=0,lte=65535"` // 0 disables the status server
}

type LoggingConfig struct {
	Format    string `yaml:"format" validate:"oneof=json text"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" validate:"gte=0"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
}

// Context is one automation rule: a set of evidence sources, the actions
// they drive and the policy combining them.
//
// Trigger and action configurations are kept as raw YAML nodes; each
// implementation decodes its own shape.
type Context struct {
	Name            string               `yaml:"name"`
	Triggers        map[string]yaml.Node `yaml:"triggers"`
	Actions         map[string]yaml.Node `yaml:"actions"`
	TriggerBehavior TriggerBehavior      `yaml:"trigger_behavior"`
}

// Validate checks that the context has something to watch and something to do.
func (c *Context) Validate() error {
	if len(c.Triggers) == 0 {
		return ErrMissingTriggers
	}
	if len(c.Actions) == 0 {
		return ErrMissingActions
	}
	return nil
}

// TriggerNames returns the configured trigger keys in sorted order.
func (c *Context) TriggerNames() []string {
	return sortedKeys(c.Triggers)
}

// ActionNames returns the configured action keys in sorted order.
func (c *Context) ActionNames() []string {
	return sortedKeys(c.Actions)
}

func sortedKeys(m map[string]yaml.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TriggerBehavior specifies whether all evidence sources have to report
// activity or just one for the actions to be entered.
type TriggerBehavior int

const (
	// And requires every trigger to be active. This is the default.
	And TriggerBehavior = iota
	// Or requires a single active trigger.
	Or
)

func (b TriggerBehavior) String() string {
	switch b {
	case And:
		return "and"
	case Or:
		return "or"
	default:
		return fmt.Sprintf("TriggerBehavior(%d)", int(b))
	}
}

// ParseTriggerBehavior parses "and" or "or", case-insensitively. The empty
// string yields the default.
func ParseTriggerBehavior(s string) (TriggerBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return And, nil
	case "or":
		return Or, nil
	default:
		return And, fmt.Errorf("%w: unknown trigger_behavior %q (expected and or or)", ErrInvalidConfig, s)
	}
}

func (b *TriggerBehavior) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: trigger_behavior must be a string (line %d)", ErrInvalidConfig, value.Line)
	}
	parsed, err := ParseTriggerBehavior(value.Value)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b TriggerBehavior) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

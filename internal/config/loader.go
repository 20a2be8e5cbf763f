// internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DefaultContextsPath returns ~/.config/runtext.yml for the current user.
func DefaultContextsPath() string {
	return ExpandHome("~/.config/runtext.yml")
}

// DefaultHistoryPath returns the history database location used when the
// settings do not name one.
func DefaultHistoryPath() string {
	return ExpandHome("~/.local/state/runtext/history.db")
}

// LoadGlobal loads daemon settings from a YAML file. An empty path or a
// missing file yields the defaults.
func LoadGlobal(path string) (*Global, error) {
	var cfg Global

	if path != "" {
		data, err := os.ReadFile(ExpandHome(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading settings file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing settings file: %w", err)
			}
		}
	}

	applyGlobalDefaults(&cfg)
	if err := ValidateGlobal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateGlobal checks value ranges on the daemon settings.
func ValidateGlobal(cfg *Global) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoadContexts loads and validates the contexts in a configuration file.
// The file may be YAML, JSON or JSON with comments, and may hold either a
// single context or a list of them.
func LoadContexts(path string) ([]Context, error) {
	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	contexts, err := ParseContexts(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return contexts, nil
}

// ParseContexts decodes contexts from raw file content. ext selects the
// JSON-with-comments preprocessing for ".json" and ".jsonc".
func ParseContexts(data []byte, ext string) ([]Context, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty configuration", ErrInvalidConfig)
	}

	root := doc.Content[0]
	var contexts []Context
	switch root.Kind {
	case yaml.MappingNode:
		var c Context
		if err := root.Decode(&c); err != nil {
			return nil, err
		}
		contexts = []Context{c}
	case yaml.SequenceNode:
		if err := root.Decode(&contexts); err != nil {
			return nil, err
		}
		if len(contexts) == 0 {
			return nil, fmt.Errorf("%w: no contexts defined", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: expected a context or a list of contexts (line %d)", ErrInvalidConfig, root.Line)
	}

	if err := ValidateContexts(contexts); err != nil {
		return nil, err
	}
	return contexts, nil
}

// ValidateContexts validates each context, fills in missing names and
// rejects duplicates.
func ValidateContexts(contexts []Context) error {
	seen := make(map[string]bool, len(contexts))
	for i := range contexts {
		c := &contexts[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = fmt.Sprintf("context-%d", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateContext, c.Name)
		}
		seen[c.Name] = true

		if err := c.Validate(); err != nil {
			return fmt.Errorf("context %q: %w", c.Name, err)
		}
	}
	return nil
}

func applyGlobalDefaults(cfg *Global) {
	if cfg.Daemon.LogLevel == "" {
		cfg.Daemon.LogLevel = "info"
	}
	if cfg.Daemon.StatusListenAddress == "" {
		cfg.Daemon.StatusListenAddress = "127.0.0.1"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = ExpandHome(cfg.Logging.File)
		if cfg.Logging.MaxSizeMB == 0 {
			cfg.Logging.MaxSizeMB = 10
		}
	}
	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			cfg.History.Path = DefaultHistoryPath()
		} else {
			cfg.History.Path = ExpandHome(cfg.History.Path)
		}
		if cfg.History.RetentionDays == 0 {
			cfg.History.RetentionDays = 30
		}
	}
	if cfg.ShutdownTimeoutSeconds == 0 {
		cfg.ShutdownTimeoutSeconds = 10
	}
}

// ExpandHome resolves a leading ~ to the current user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		path = "~/"
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// internal/trigger/path.go
package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/colebrumley/runtext/internal/config"
	"gopkg.in/yaml.v3"
)

// Path signals while a file or directory exists, e.g. a mounted volume
type Path struct {
	path string
}

// NewPath creates a path trigger. cfg is the path as a string or a mapping
// with a path key.
func NewPath(cfg yaml.Node) (*Path, error) {
	var pc struct {
		Path string `yaml:"path"`
	}
	switch cfg.Kind {
	case yaml.ScalarNode:
		pc.Path = cfg.Value
	case yaml.MappingNode:
		if err := cfg.Decode(&pc); err != nil {
			return nil, invalidConfig("path", "%v", err)
		}
	default:
		return nil, invalidConfig("path", "expected a path or a mapping (line %d)", cfg.Line)
	}

	if pc.Path == "" {
		return nil, invalidConfig("path", "missing path")
	}

	abs, err := filepath.Abs(config.ExpandHome(pc.Path))
	if err != nil {
		return nil, invalidConfig("path", "%v", err)
	}
	return &Path{path: abs}, nil
}

func (p *Path) Name() string {
	return "path"
}

// Target returns the absolute path being watched.
func (p *Path) Target() string {
	return p.path
}

// check stats the target and forwards the result to the edge detector.
func (p *Path) check(ctx context.Context, em *emitter, events chan<- Event) error {
	_, err := os.Stat(p.path)
	switch {
	case err == nil:
		return em.observe(ctx, events, true, p.path)
	case errors.Is(err, os.ErrNotExist):
		return em.observe(ctx, events, false, "")
	default:
		return fmt.Errorf("%w: path: %w", ErrProbe, err)
	}
}

// internal/daemon/daemon.go
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/colebrumley/runtext/internal/driver"
	"github.com/colebrumley/runtext/internal/logging"
	"github.com/colebrumley/runtext/internal/metrics"
	"github.com/colebrumley/runtext/internal/security"
	"github.com/colebrumley/runtext/internal/state"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const cleanupInterval = 24 * time.Hour

// Daemon runs one driver per configured context and serves their status.
type Daemon struct {
	contextsPath string
	settingsPath string
	config       *config.Global
	logger       *slog.Logger
	logCloser    io.Closer
	metrics      *metrics.Metrics
	stateDB      *state.DB
	session      string
	startTime    time.Time
	httpServer   *http.Server
	driverOpts   []driver.Option
	reloadDelay  time.Duration

	mu       sync.RWMutex
	contexts map[string]config.Context
	handles  map[string]*driver.Handle
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger replaces the logger built from the settings file.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// WithDriverOptions appends options passed to every driver.
func WithDriverOptions(opts ...driver.Option) Option {
	return func(d *Daemon) { d.driverOpts = append(d.driverOpts, opts...) }
}

// WithReloadDelay sets the debounce applied to config file changes.
func WithReloadDelay(delay time.Duration) Option {
	return func(d *Daemon) { d.reloadDelay = delay }
}

// New creates a daemon for the contexts file at contextsPath. settingsPath
// may be empty.
func New(contextsPath, settingsPath string, opts ...Option) *Daemon {
	d := &Daemon{
		contextsPath: contextsPath,
		settingsPath: settingsPath,
		metrics:      metrics.New(),
		session:      state.NewSession(),
		reloadDelay:  time.Second,
		contexts:     make(map[string]config.Context),
		handles:      make(map[string]*driver.Handle),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts every context and blocks until ctx is cancelled. A context
// whose driver fails is logged and left stopped; the others keep running.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	if err := d.loadConfig(); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if d.logger == nil {
		d.initLogger()
	}
	defer func() {
		if d.logCloser != nil {
			d.logCloser.Close()
		}
	}()

	d.logger.Info("starting daemon", "config", d.contextsPath, "session", d.session)

	contexts, err := d.loadContexts()
	if err != nil {
		return fmt.Errorf("loading contexts: %w", err)
	}

	if d.config.History.Enabled {
		if err := d.initStateDB(); err != nil {
			d.logger.Warn("failed to initialize history database, transitions will not be recorded", "error", err)
		}
	}

	for _, c := range contexts {
		d.startContext(ctx, c)
	}
	d.logger.Info("daemon started", "contexts", len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	if d.config.Daemon.StatusListenPort > 0 {
		g.Go(func() error { return d.startHTTPServer(gctx) })
	}
	g.Go(func() error { return d.startHotReload(gctx) })
	if d.stateDB != nil {
		g.Go(func() error { return d.runCleanup(gctx) })
	}

	err = g.Wait()
	d.logger.Info("daemon stopping, waiting for contexts to leave")
	d.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// initLogger writes to the configured rotating file, falling back to
// stderr when the file cannot be opened.
func (d *Daemon) initLogger() {
	cfg := d.config.Logging
	if cfg.File == "" {
		d.logger = logging.NewLogger(cfg.Format, d.config.Daemon.LogLevel, os.Stderr)
		return
	}

	w, err := logging.NewRotatingWriter(cfg.File, int64(cfg.MaxSizeMB)*1024*1024)
	if err != nil {
		d.logger = logging.NewLogger(cfg.Format, d.config.Daemon.LogLevel, os.Stderr)
		d.logger.Warn("failed to open log file, using stderr", "error", err, "path", cfg.File)
		return
	}
	d.logCloser = w
	d.logger = logging.NewLogger(cfg.Format, d.config.Daemon.LogLevel, w)
}

func (d *Daemon) initStateDB() error {
	db, err := state.Open(d.config.History.Path)
	if err != nil {
		return err
	}
	if err := security.ValidateStateDirectory(filepath.Dir(d.config.History.Path)); err != nil {
		d.logger.Warn("history directory is accessible to other users", "error", err)
	}
	d.stateDB = db
	return nil
}

// runCleanup prunes the history on start and once a day after that.
func (d *Daemon) runCleanup(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		if deleted, err := d.stateDB.Cleanup(d.config.History.RetentionDays); err != nil {
			d.logger.Warn("history cleanup failed", "error", err)
		} else if deleted > 0 {
			d.logger.Info("cleaned up old transitions", "deleted", deleted)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Daemon) loadConfig() error {
	cfg, err := config.LoadGlobal(d.settingsPath)
	if err != nil {
		return err
	}
	d.config = cfg
	return nil
}

// loadContexts refuses a contexts file writable by other users, since its
// commands run with the daemon's privileges.
func (d *Daemon) loadContexts() ([]config.Context, error) {
	if err := security.ValidateConfigFile(d.contextsPath); err != nil {
		return nil, err
	}
	return config.LoadContexts(d.contextsPath)
}

func (d *Daemon) startContext(ctx context.Context, c config.Context) {
	opts := []driver.Option{
		driver.WithLogger(d.logger),
		driver.WithMetrics(d.metrics),
		driver.WithShutdownTimeout(time.Duration(d.config.ShutdownTimeoutSeconds) * time.Second),
	}
	if d.stateDB != nil {
		opts = append(opts, driver.WithRecorder(d.stateDB, d.session))
	}
	opts = append(opts, d.driverOpts...)

	d.mu.Lock()
	d.contexts[c.Name] = c
	d.mu.Unlock()

	h, err := driver.Start(ctx, c, opts...)
	if err != nil {
		d.logger.Error("failed to start context", "context", c.Name, "error", err)
		return
	}

	d.mu.Lock()
	d.handles[c.Name] = h
	d.mu.Unlock()

	go d.watch(h)
}

// watch logs a context whose driver ended on its own.
func (d *Daemon) watch(h *driver.Handle) {
	if err := h.Wait(); err != nil {
		d.logger.Error("context failed, other contexts keep running", "context", h.Name(), "error", err)
	}
}

// stopContext stops the driver of name and waits until its actions have
// been left and closed.
func (d *Daemon) stopContext(name string) {
	d.mu.Lock()
	h, ok := d.handles[name]
	delete(d.handles, name)
	delete(d.contexts, name)
	d.mu.Unlock()

	if ok {
		h.Stop()
		h.Wait()
	}
}

func (d *Daemon) shutdown() {
	d.mu.RLock()
	names := make([]string, 0, len(d.handles))
	for name := range d.handles {
		names = append(names, name)
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.stopContext(name)
		}()
	}
	wg.Wait()

	if d.stateDB != nil {
		d.stateDB.Close()
	}
}

// reloadContexts restarts every context whose configuration changed or
// whose driver has stopped, stops removed ones and starts new ones. An
// invalid file leaves the running contexts untouched.
func (d *Daemon) reloadContexts(ctx context.Context) {
	contexts, err := d.loadContexts()
	if err != nil {
		d.logger.Error("failed to reload contexts", "error", err)
		return
	}

	next := make(map[string]config.Context, len(contexts))
	for _, c := range contexts {
		next[c.Name] = c
	}

	d.mu.RLock()
	var stop []string
	for name := range d.contexts {
		if _, ok := next[name]; !ok {
			stop = append(stop, name)
		}
	}
	var start []config.Context
	for _, c := range contexts {
		old, existed := d.contexts[c.Name]
		h := d.handles[c.Name]
		if existed && h != nil && h.Running() && !contextChanged(old, c) {
			continue
		}
		if existed {
			stop = append(stop, c.Name)
		}
		start = append(start, c)
	}
	d.mu.RUnlock()

	for _, name := range stop {
		d.logger.Info("stopping context", "context", name)
		d.stopContext(name)
	}
	for _, c := range start {
		d.logger.Info("starting context", "context", c.Name)
		d.startContext(ctx, c)
	}

	d.logger.Info("contexts reloaded", "contexts", len(contexts), "restarted", len(start))
}

// contextChanged compares two contexts by their YAML rendering, which
// ignores source positions.
func contextChanged(a, b config.Context) bool {
	ya, errA := yaml.Marshal(a)
	yb, errB := yaml.Marshal(b)
	if errA != nil || errB != nil {
		return true
	}
	return string(ya) != string(yb)
}

// contextNames returns the loaded context names in sorted order.
func (d *Daemon) contextNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.contexts))
	for name := range d.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// internal/driver/handle.go
package driver

import (
	"context"

	"github.com/colebrumley/runtext/internal/config"
)

// Handle controls a driver running in its own goroutine.
type Handle struct {
	driver *Driver
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start builds a driver for c and runs it until Stop is called, ctx is
// done or a trigger fails. Build errors are returned synchronously.
func Start(ctx context.Context, c config.Context, opts ...Option) (*Handle, error) {
	d, err := New(c, opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		driver: d,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = d.Run(ctx)
	}()
	return h, nil
}

// Name returns the context name.
func (h *Handle) Name() string {
	return h.driver.Name()
}

// Stop cancels the driver. It does not wait; use Wait for that.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed once the driver has returned and released its actions.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the driver returns and reports its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Err reports the driver error without blocking. It is nil while running.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Running reports whether the driver has not yet returned.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Status returns the latest snapshot of the driver.
func (h *Handle) Status() Status {
	return h.driver.Status()
}

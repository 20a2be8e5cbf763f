// internal/daemon/server.go
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/colebrumley/runtext/internal/driver"
	"github.com/colebrumley/runtext/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// contextStatus is the /api/contexts representation of one context.
type contextStatus struct {
	Name            string   `json:"name"`
	TriggerBehavior string   `json:"trigger_behavior"`
	Triggers        []string `json:"triggers"`
	Actions         []string `json:"actions"`
	Running         bool     `json:"running"`
	driver.Status
}

// startHTTPServer serves health, context status, history and metrics until
// ctx is done.
func (d *Daemon) startHTTPServer(ctx context.Context) error {
	addr := net.JoinHostPort(d.config.Daemon.StatusListenAddress,
		strconv.Itoa(d.config.Daemon.StatusListenPort))

	d.httpServer = &http.Server{
		Addr:              addr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.logger.Info("starting status server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := d.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			d.logger.Error("status server error", "error", err)
		}
		// The daemon keeps driving contexts without a status server.
		<-ctx.Done()
		return ctx.Err()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.httpServer.Shutdown(shutdownCtx)
	return ctx.Err()
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rateLimitHandler(60, d.handleHealth))
	mux.HandleFunc("/api/contexts", rateLimitHandler(30, d.handleAPIContexts))
	mux.HandleFunc("/api/history", rateLimitHandler(30, d.handleAPIHistory))
	mux.Handle("/metrics", rateLimitHandler(60, d.metrics.Handler().ServeHTTP))
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d.mu.RLock()
	loaded := len(d.contexts)
	running := 0
	for _, h := range d.handles {
		if h.Running() {
			running++
		}
	}
	d.mu.RUnlock()

	resp := map[string]any{
		"status":           "ok",
		"session":          d.session,
		"uptime":           time.Since(d.startTime).Truncate(time.Second).String(),
		"contexts_loaded":  loaded,
		"contexts_running": running,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (d *Daemon) handleAPIContexts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := d.contextNames()
	statuses := make([]contextStatus, 0, len(names))

	d.mu.RLock()
	for _, name := range names {
		c, ok := d.contexts[name]
		if !ok {
			continue
		}
		cs := contextStatus{
			Name:            c.Name,
			TriggerBehavior: c.TriggerBehavior.String(),
			Triggers:        c.TriggerNames(),
			Actions:         c.ActionNames(),
		}
		if h, ok := d.handles[name]; ok {
			cs.Running = h.Running()
			cs.Status = h.Status()
			if err := h.Err(); err != nil {
				cs.LastError = err.Error()
			}
		} else {
			cs.LastError = "not started"
		}
		statuses = append(statuses, cs)
	}
	d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

func (d *Daemon) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if d.stateDB == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]any{})
		return
	}

	limit := defaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", l), http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := d.stateDB.GetHistory(r.URL.Query().Get("context"), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("querying history: %v", err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []state.Transition{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// rateLimitHandler wraps an HTTP handler with a token bucket refilled once
// per minute.
func rateLimitHandler(requestsPerMinute int, handler http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	tokens := requestsPerMinute
	lastRefill := time.Now()

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		now := time.Now()
		refill := int(now.Sub(lastRefill).Minutes() * float64(requestsPerMinute))
		if refill > 0 {
			tokens = min(tokens+refill, requestsPerMinute)
			lastRefill = now
		}

		if tokens <= 0 {
			mu.Unlock()
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		tokens--
		mu.Unlock()

		handler(w, r)
	}
}

// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	m := New()
	m.RecordEvent("backup", "wifi", "active", 1)
	m.RecordEvent("backup", "wifi", "inactive", 0)
	m.RecordEvent("backup", "wifi", "active", 1)
	m.RecordTransition("backup", "enter", 10*time.Millisecond)
	m.RecordActionError("backup", "command", "enter")
	m.RecordTriggerFailure("backup", "wifi")
	m.SetRunning("backup", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("backup", "wifi", "active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeTriggers.WithLabelValues("backup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("backup", "enter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actionErrors.WithLabelValues("backup", "command", "enter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggerFailures.WithLabelValues("backup", "wifi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.running.WithLabelValues("backup")))

	series, err := testutil.GatherAndCount(m.Registry(), "runtext_trigger_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one series per activity")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordEvent("a", "wifi", "active", 1)
	m.RecordTransition("a", "enter", time.Second)
	m.RecordActionError("a", "command", "leave")
	m.RecordTriggerFailure("a", "wifi")
	m.SetRunning("a", false)
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetRunning("office", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `runtext_context_running{context="office"} 1`))
}

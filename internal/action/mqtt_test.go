// internal/action/mqtt_test.go
package action

import (
	"context"
	"testing"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMQTT(t *testing.T) {
	m, err := NewMQTT(node(t, `
broker: localhost
topic: home/presence
enter: '{"context": "{{context}}", "state": "{{ state }}"}'
leave: gone
retain: true
qos: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "home/presence", m.topic)
	assert.Equal(t, byte(1), m.conn.QoS)
	assert.True(t, m.retain)
}

func TestNewMQTTInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{"scalar", "localhost", "expected a mapping"},
		{"missing broker", "{topic: t, enter: on}", "missing broker"},
		{"missing topic", "{broker: localhost, enter: on}", "missing topic"},
		{"missing enter", "{broker: localhost, topic: t}", "missing enter"},
		{"bad qos", "{broker: localhost, topic: t, enter: on, qos: 3}", "qos"},
		{"unknown placeholder", "{broker: localhost, topic: t, enter: '{{host}}'}", "{{host}}"},
		{"unknown leave placeholder", "{broker: localhost, topic: t, enter: on, leave: '{{user}}'}", "{{user}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMQTT(node(t, tt.cfg))
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, "home entered", Render("{{context}} {{state}}", "home", "entered"))
	assert.Equal(t, "static", Render("static", "home", "left"))
}

func TestMQTTWithoutBroker(t *testing.T) {
	m, err := NewMQTT(node(t, "{broker: localhost, topic: t, enter: on}"))
	require.NoError(t, err)

	// No leave payload: nothing to publish, no connection attempted.
	assert.NoError(t, m.Leave(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Enter(ctx), context.Canceled)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

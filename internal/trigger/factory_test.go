// internal/trigger/factory_test.go
package trigger

import (
	"errors"
	"testing"

	"github.com/colebrumley/runtext/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrigger(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"wifi", "HomeNet"},
		{" wifi ", "HomeNet"},
		{"path", "/Volumes/Backup"},
		{"schedule", "{enter: '09:00', leave: '17:30'}"},
		{"mqtt", "{broker: 'localhost:1883', topic: home/presence, payload: home}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, err := New(tt.name, node(t, tt.config))
			require.NoError(t, err)
			assert.Contains(t, Names, trig.Name())
		})
	}
}

func TestNewTriggerUnknownName(t *testing.T) {
	_, err := New("bluetooth", node(t, "headphones"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrigger)
	assert.True(t, errors.Is(err, config.ErrUnknownIdentifier))
	assert.Contains(t, err.Error(), "bluetooth")
}

func TestNewTriggerInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"wifi", "[1, 2]"},
		{"path", "{}"},
		{"schedule", "09:00"},
		{"schedule", "{enter: 'not a cron'}"},
		{"mqtt", "{topic: x, payload: y}"},
		{"mqtt", "{broker: localhost, payload: y}"},
		{"mqtt", "{broker: localhost, topic: x, payload: y, qos: 3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" "+tt.config, func(t *testing.T) {
			_, err := New(tt.name, node(t, tt.config))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

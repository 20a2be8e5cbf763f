// internal/action/mqtt.go
package action

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/colebrumley/runtext/internal/mqttclient"
	"github.com/colebrumley/runtext/internal/template"
	"gopkg.in/yaml.v3"
)

// MQTT publishes a message when the context is entered and left
type MQTT struct {
	conn   mqttclient.Config
	topic  string
	enter  string
	leave  string
	retain bool

	mu     sync.Mutex
	client pahomqtt.Client
}

// NewMQTT creates an mqtt action from a mapping with broker, topic and
// enter keys plus optional leave, retain, client_id, username, password and
// qos. Payloads may reference {{context}} and {{state}}.
func NewMQTT(cfg yaml.Node) (*MQTT, error) {
	if cfg.Kind != yaml.MappingNode {
		return nil, invalidConfig("mqtt", "expected a mapping (line %d)", cfg.Line)
	}

	var mc struct {
		mqttclient.Config `yaml:",inline"`
		Topic             string `yaml:"topic"`
		Enter             string `yaml:"enter"`
		Leave             string `yaml:"leave"`
		Retain            bool   `yaml:"retain"`
	}
	if err := cfg.Decode(&mc); err != nil {
		return nil, invalidConfig("mqtt", "%v", err)
	}
	if err := mc.Config.Validate(); err != nil {
		return nil, invalidConfig("mqtt", "%v", err)
	}
	if mc.Topic == "" {
		return nil, invalidConfig("mqtt", "missing topic")
	}
	if mc.Enter == "" {
		return nil, invalidConfig("mqtt", "missing enter payload")
	}
	for _, payload := range []string{mc.Enter, mc.Leave} {
		if err := template.Check(payload, "context", "state"); err != nil {
			return nil, invalidConfig("mqtt", "%v", err)
		}
	}

	return &MQTT{
		conn:   mc.Config,
		topic:  mc.Topic,
		enter:  mc.Enter,
		leave:  mc.Leave,
		retain: mc.Retain,
	}, nil
}

func (m *MQTT) Name() string {
	return "mqtt"
}

func (m *MQTT) Enter(ctx context.Context) error {
	return m.publish(ctx, m.enter, "entered")
}

// Leave publishes the leave payload. Without one it does nothing.
func (m *MQTT) Leave(ctx context.Context) error {
	if m.leave == "" {
		return nil
	}
	return m.publish(ctx, m.leave, "left")
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	return nil
}

// Render expands the payload placeholders for a transition.
func Render(payload, contextName, state string) string {
	return template.Expand(payload, map[string]any{
		"context": contextName,
		"state":   state,
	})
}

func (m *MQTT) publish(ctx context.Context, payload, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.client == nil || !m.client.IsConnectionOpen() {
		client, err := mqttclient.Connect(ctx, m.conn.Options("action", nil))
		if err != nil {
			return err
		}
		m.client = client
	}

	body := Render(payload, ContextName(ctx), state)
	if err := mqttclient.Wait(m.client.Publish(m.topic, m.conn.QoS, m.retain, body)); err != nil {
		return fmt.Errorf("publishing to %s: %w", m.topic, err)
	}
	return nil
}

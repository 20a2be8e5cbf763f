// internal/trigger/mqtt.go
package trigger

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/colebrumley/runtext/internal/mqttclient"
	"github.com/colebrumley/runtext/internal/security"
	"gopkg.in/yaml.v3"
)

// MQTT is active while the last message on a topic equals a payload
type MQTT struct {
	conn    mqttclient.Config
	topic   string
	payload string
	connect func(context.Context, *pahomqtt.ClientOptions) (pahomqtt.Client, error)
}

// NewMQTT creates an mqtt trigger from a mapping with broker, topic and
// payload keys plus optional client_id, username, password and qos.
func NewMQTT(cfg yaml.Node) (*MQTT, error) {
	if cfg.Kind != yaml.MappingNode {
		return nil, invalidConfig("mqtt", "expected a mapping (line %d)", cfg.Line)
	}

	var mc struct {
		mqttclient.Config `yaml:",inline"`
		Topic             string `yaml:"topic"`
		Payload           string `yaml:"payload"`
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
	if mc.Payload == "" {
		return nil, invalidConfig("mqtt", "missing payload")
	}

	return &MQTT{
		conn:    mc.Config,
		topic:   mc.Topic,
		payload: mc.Payload,
		connect: mqttclient.Connect,
	}, nil
}

func (m *MQTT) Name() string {
	return "mqtt"
}

// Listen connects, subscribes to the topic and compares each message with
// the configured payload. A lost connection ends the sequence.
func (m *MQTT) Listen(ctx context.Context, events chan<- Event) error {
	lost := make(chan error, 1)
	opts := m.conn.Options("trigger", func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	client, err := m.connect(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: mqtt: %w", ErrProbe, err)
	}
	defer client.Disconnect(250)

	messages := make(chan string, 16)
	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case messages <- string(msg.Payload()):
		case <-ctx.Done():
		}
	}
	if err := mqttclient.Wait(client.Subscribe(m.topic, m.conn.QoS, handler)); err != nil {
		return fmt.Errorf("%w: mqtt: subscribing to %s: %w", ErrProbe, m.topic, err)
	}

	em := emitter{name: m.Name()}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return fmt.Errorf("%w: mqtt: connection lost: %w", ErrProbe, err)
		case payload := <-messages:
			if err := em.observe(ctx, events, payload == m.payload, security.SanitizeValue(payload)); err != nil {
				return err
			}
		}
	}
}

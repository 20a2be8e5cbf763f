// internal/mqttclient/client.go
package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colebrumley/runtext/internal/security"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	connectTimeout = 10 * time.Second
	keepAlive      = 30 * time.Second
	// OperationTimeout bounds subscribe and publish round trips.
	OperationTimeout = 5 * time.Second
)

var (
	// ErrConnectionFailed is returned when the broker cannot be reached.
	ErrConnectionFailed = errors.New("mqtt connection failed")
	// ErrTimeout is returned when a broker round trip does not complete.
	ErrTimeout = errors.New("mqtt operation timed out")
)

// Config is the broker connection shared by the mqtt trigger and action.
type Config struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// Validate checks the fields every mqtt component needs.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("missing broker")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// BrokerURL returns the broker address with a tcp:// scheme added when
// none is given.
func (c *Config) BrokerURL() string {
	if strings.Contains(c.Broker, "://") {
		return c.Broker
	}
	return "tcp://" + c.Broker
}

// ID returns the client id a component with the given role connects with.
// The role is always appended so a trigger and an action can share one
// client_id.
func (c *Config) ID(role string) string {
	if c.ClientID == "" {
		return "runtext-" + role + "-" + uuid.NewString()[:8]
	}
	return c.ClientID + "-" + role
}

// Options builds paho client options. Reconnects are disabled; a lost
// connection is reported through onLost.
func (c *Config) Options(role string, onLost func(error)) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.BrokerURL())
	opts.SetClientID(c.ID(role))

	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if onLost != nil {
		opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			onLost(err)
		})
	}
	return opts
}

// Connect opens a connection and waits for the broker to accept it, the
// connect timeout, or ctx. A connection that does not complete is torn down.
func Connect(ctx context.Context, opts *pahomqtt.ClientOptions) (pahomqtt.Client, error) {
	return connect(ctx, pahomqtt.NewClient(opts), opts)
}

func connect(ctx context.Context, client pahomqtt.Client, opts *pahomqtt.ClientOptions) (pahomqtt.Client, error) {
	var broker string
	if len(opts.Servers) > 0 {
		broker = security.Scrub(opts.Servers[0].String())
	}

	token := client.Connect()
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, broker, connectTimeout)
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, broker, err)
	}
	return client, nil
}

// Wait waits for a token with the operation timeout.
func Wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(OperationTimeout) {
		return ErrTimeout
	}
	return token.Error()
}

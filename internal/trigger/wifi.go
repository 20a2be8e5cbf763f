// internal/trigger/wifi.go
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/colebrumley/runtext/internal/security"
	"gopkg.in/yaml.v3"
)

// DefaultWifiInterval is the time between two probes of the joined network.
const DefaultWifiInterval = 5 * time.Second

// wifiProbe returns the SSID of the currently joined network. ok is false
// when the radio is off or no network is joined.
type wifiProbe func(ctx context.Context) (ssid string, ok bool, err error)

// Wifi signals while a specific wireless network is joined
type Wifi struct {
	ssid     string
	interval time.Duration
	probe    wifiProbe
}

type wifiConfig struct {
	SSID     string        `yaml:"ssid"`
	Interval time.Duration `yaml:"interval"`
}

// NewWifi creates a wifi trigger. cfg is either the SSID as a string or a
// mapping with ssid and interval keys.
func NewWifi(cfg yaml.Node) (*Wifi, error) {
	var wc wifiConfig
	switch cfg.Kind {
	case yaml.ScalarNode:
		wc.SSID = cfg.Value
	case yaml.MappingNode:
		if err := cfg.Decode(&wc); err != nil {
			return nil, invalidConfig("wifi", "%v", err)
		}
	default:
		return nil, invalidConfig("wifi", "expected an SSID or a mapping (line %d)", cfg.Line)
	}

	if wc.SSID == "" {
		return nil, invalidConfig("wifi", "missing ssid")
	}
	if wc.Interval < 0 {
		return nil, invalidConfig("wifi", "negative interval %s", wc.Interval)
	}
	if wc.Interval == 0 {
		wc.Interval = DefaultWifiInterval
	}

	return &Wifi{
		ssid:     wc.SSID,
		interval: wc.Interval,
		probe:    probeSSID,
	}, nil
}

func (w *Wifi) Name() string {
	return "wifi"
}

// SSID returns the network this trigger matches.
func (w *Wifi) SSID() string {
	return w.ssid
}

// Listen polls the joined network, the first time immediately and then
// every interval. A probe failure ends the sequence.
func (w *Wifi) Listen(ctx context.Context, events chan<- Event) error {
	em := emitter{name: w.Name()}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		observed, ok, err := w.probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: wifi: %w", ErrProbe, err)
		}
		if !ok {
			observed = ""
		}

		if err := em.observe(ctx, events, ok && observed == w.ssid, security.SanitizeValue(observed)); err != nil {
			return err
		}
		timer.Reset(w.interval)
	}
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSMirror forwards every published event to a NATS subject, namespaced
// by event name, for out-of-process observers. It is a best-effort mirror:
// a publish failure is logged and never propagated back to the bus.
type NATSMirror struct {
	nc     *nats.Conn
	prefix string
}

// NATSMirrorConfig configures the mirror connection.
type NATSMirrorConfig struct {
	URL    string
	Prefix string // subject prefix, default "engine.events."
}

// NewNATSMirror connects to NATS and returns a Mirror. Matches the
// reconnect-forever posture used elsewhere in this codebase for
// best-effort sidecar transports.
func NewNATSMirror(config NATSMirrorConfig) (*NATSMirror, error) {
	nc, err := nats.Connect(
		config.URL,
		nats.Name("tradeengine-events"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS event mirror disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS event mirror reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect NATS event mirror: %w", err)
	}

	if config.Prefix == "" {
		config.Prefix = "engine.events."
	}

	return &NATSMirror{nc: nc, prefix: config.Prefix}, nil
}

// Publish forwards the event to "<prefix><name>". Marshal or connection
// failures are logged, not returned: the in-process bus is the source of
// truth for SSE subscribers, this mirror is a convenience for sidecars.
func (m *NATSMirror) Publish(ev Event) {
	if !m.nc.IsConnected() {
		log.Warn().Str("event", string(ev.Name)).Msg("NATS event mirror not connected, dropping")
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("event", string(ev.Name)).Msg("failed to marshal event for NATS mirror")
		return
	}

	subject := m.prefix + string(ev.Name)
	if err := m.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to NATS mirror")
	}
}

// Close closes the underlying NATS connection without draining it.
func (m *NATSMirror) Close() {
	m.nc.Close()
}

var _ Mirror = (*NATSMirror)(nil)

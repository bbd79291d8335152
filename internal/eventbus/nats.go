/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/events"
)

// NATSBus mirrors events between the local bus and NATS subjects. It keeps
// working local-only while NATS is disconnected.
type NATSBus struct {
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	prefix string

	mu   sync.RWMutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL    string
	Token  string
	Prefix string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Prefix:        DefaultPrefix,
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus on top of local.
// It falls back to local-only delivery if NATS is unavailable.
func NewNATSBus(cfg NATSConfig, local *events.Bus, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	if local == nil {
		return nil, fmt.Errorf("nats bus: nil local bus")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	nb := &NATSBus{
		logger: logger.With().Str("component", "eventbus").Str("backend", "nats").Logger(),
		local:  local,
		nodeID: nodeID,
		prefix: cfg.Prefix,
	}

	opts := []nats.Option{
		nats.Name("elevatord-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected, delivering locally")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		nb.logger.Warn().Err(err).Msg("NATS connection failed, using in-memory fallback")
		return nb, nil
	}

	sub, err := conn.Subscribe(nb.prefix+">", nb.handleMessage)
	if err != nil {
		conn.Close()
		nb.logger.Warn().Err(err).Msg("NATS subscribe failed, using in-memory fallback")
		return nb, nil
	}

	nb.conn = conn
	nb.sub = sub
	nb.logger.Info().Str("url", cfg.URL).Msg("NATS event bus initialized")
	return nb, nil
}

// Subscribe registers a local subscriber.
func (nb *NATSBus) Subscribe(eventTypes ...events.EventType) events.Subscriber {
	return nb.local.Subscribe(eventTypes...)
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(sub events.Subscriber) {
	nb.local.Unsubscribe(sub)
}

// Publish delivers locally and to NATS when connected.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	nb.mu.RLock()
	conn := nb.conn
	nb.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := conn.Publish(channelName(nb.prefix, eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Connected reports whether NATS is in use.
func (nb *NATSBus) Connected() bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.conn != nil && nb.conn.IsConnected()
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		nb.conn = nil
		return fmt.Errorf("drain nats: %w", err)
	}
	nb.conn = nil
	nb.sub = nil
	return nil
}

func (nb *NATSBus) handleMessage(msg *nats.Msg) {
	wire, err := unmarshalMessage(msg.Data)
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal NATS message")
		return
	}
	if wire.NodeID == nb.nodeID {
		return
	}
	nb.local.Publish(wire.EventType, wire.Payload)
}

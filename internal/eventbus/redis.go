/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/events"
)

// RedisBus mirrors events between the local bus and Redis pub/sub. Local
// subscribers always hang off the in-memory bus; remote messages are
// republished into it. When Redis is unreachable it degrades to local only.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger zerolog.Logger
	local  *events.Bus
	nodeID string
	prefix string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Circuit breaker state
	mu            sync.Mutex
	useFallback   bool
	failCount     int
	maxFails      int
	lastCheck     time.Time
	checkInterval time.Duration
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string

	// Connection pooling
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		Prefix:        DefaultPrefix,
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// NewRedisBus creates a Redis-backed event bus on top of local.
// It falls back to local-only delivery if Redis is unavailable.
func NewRedisBus(cfg RedisConfig, local *events.Bus, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	if local == nil {
		return nil, fmt.Errorf("redis bus: nil local bus")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rb := &RedisBus{
		logger:        logger.With().Str("component", "eventbus").Str("backend", "redis").Logger(),
		local:         local,
		nodeID:        nodeID,
		prefix:        cfg.Prefix,
		maxFails:      cfg.MaxFailures,
		checkInterval: cfg.CheckInterval,
		ctx:           ctx,
		cancel:        cancel,
	}

	rb.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := rb.client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Msg("Redis connection failed, using in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
	} else {
		rb.startReceiver()
		rb.logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	}

	rb.wg.Add(1)
	go rb.reconnectLoop()

	return rb, nil
}

// Subscribe registers a local subscriber. Remote events arrive through the
// pattern subscription started at connect time.
func (rb *RedisBus) Subscribe(eventTypes ...events.EventType) events.Subscriber {
	return rb.local.Subscribe(eventTypes...)
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(sub events.Subscriber) {
	rb.local.Unsubscribe(sub)
}

// Publish delivers locally and, unless degraded, to Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if rb.fallbackActive() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, channelName(rb.prefix, eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Close stops the receiver and closes the client.
func (rb *RedisBus) Close() error {
	rb.logger.Info().Msg("closing Redis event bus")
	rb.cancel()

	rb.mu.Lock()
	if rb.pubsub != nil {
		rb.pubsub.Close()
		rb.pubsub = nil
	}
	rb.mu.Unlock()

	rb.wg.Wait()

	if err := rb.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func (rb *RedisBus) fallbackActive() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.useFallback
}

func (rb *RedisBus) startReceiver() {
	pubsub := rb.client.PSubscribe(rb.ctx, rb.prefix+"*")
	rb.mu.Lock()
	rb.pubsub = pubsub
	rb.mu.Unlock()

	rb.wg.Add(1)
	go rb.receiveMessages(pubsub)
}

// receiveMessages republishes remote messages on the local bus.
func (rb *RedisBus) receiveMessages(pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				if rb.ctx.Err() == nil {
					rb.logger.Warn().Msg("Redis channel closed")
					rb.handleFailure()
				}
				return
			}
			rb.deliver(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (rb *RedisBus) deliver(channel string, data []byte) {
	wire, err := unmarshalMessage(data)
	if err != nil {
		rb.logger.Error().Err(err).Str("channel", channel).Msg("failed to unmarshal Redis message")
		return
	}
	if wire.NodeID == rb.nodeID {
		return
	}
	if eventType, ok := eventTypeFrom(rb.prefix, channel); ok && eventType != wire.EventType {
		rb.logger.Warn().Str("channel", channel).Str("event_type", string(wire.EventType)).Msg("channel and event type disagree")
	}
	rb.local.Publish(wire.EventType, wire.Payload)
}

// handleFailure implements circuit breaker logic.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().
			Int("fail_count", rb.failCount).
			Msg("Redis failure threshold reached, switching to in-memory fallback")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		if rb.pubsub != nil {
			rb.pubsub.Close()
			rb.pubsub = nil
		}
	}
}

func (rb *RedisBus) reconnectLoop() {
	defer rb.wg.Done()

	ticker := time.NewTicker(rb.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rb.ctx.Done():
			return
		case <-ticker.C:
			if err := rb.tryReconnect(); err != nil {
				rb.logger.Debug().Err(err).Msg("Redis reconnect skipped")
			}
		}
	}
}

// tryReconnect re-enables Redis after the check interval has elapsed.
func (rb *RedisBus) tryReconnect() error {
	rb.mu.Lock()
	if !rb.useFallback {
		rb.mu.Unlock()
		return nil
	}
	if time.Since(rb.lastCheck) < rb.checkInterval {
		rb.mu.Unlock()
		return fmt.Errorf("too soon to retry")
	}
	rb.lastCheck = time.Now()
	rb.mu.Unlock()

	ctx, cancel := context.WithTimeout(rb.ctx, 5*time.Second)
	defer cancel()

	if err := rb.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis still unavailable: %w", err)
	}

	rb.mu.Lock()
	rb.useFallback = false
	rb.failCount = 0
	rb.mu.Unlock()

	rb.startReceiver()
	rb.logger.Info().Msg("reconnected to Redis, disabling fallback")
	return nil
}

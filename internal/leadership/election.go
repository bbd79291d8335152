/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects one active dispatcher among several elevatord
// instances sharing a Redis server. Followers stay on standby until the
// lease frees up.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/telemetry"
)

const (
	defaultElectionKey     = "elevatord:leader:dispatch"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// releaseScript deletes the lease only while this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Election manages the dispatch lease in Redis.
type Election struct {
	client     *redis.Client
	logger     zerolog.Logger
	config     ElectionConfig
	instanceID string

	isLeader atomic.Bool
	leaderCh chan bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// ElectionConfig configures leader election behavior.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the current leader's instance id.
	ElectionKey string

	// LeaseDuration is how long a lease survives without renewal.
	LeaseDuration time.Duration

	// RenewalInterval is how often the leader renews and followers retry.
	RenewalInterval time.Duration

	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
	}
}

func (c *ElectionConfig) applyDefaults() error {
	if c.InstanceID == "" {
		return errors.New("leader election: instance id is required")
	}
	if c.ElectionKey == "" {
		c.ElectionKey = defaultElectionKey
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.RenewalInterval <= 0 {
		c.RenewalInterval = defaultRenewalInterval
	}
	if c.RenewalInterval >= c.LeaseDuration {
		return fmt.Errorf("leader election: renewal interval %v must be shorter than lease %v", c.RenewalInterval, c.LeaseDuration)
	}
	return nil
}

// NewElection connects to Redis and prepares an election. It fails when
// Redis cannot be reached, since standby without a lease holder is unsafe.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With().Str("component", "leader_election").Logger()
	logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Msg("connected to Redis for leader election")

	return &Election{
		client:     client,
		logger:     logger,
		config:     config,
		instanceID: config.InstanceID,
		leaderCh:   make(chan bool, 1),
	}, nil
}

// Start campaigns immediately and then on every renewal interval.
func (e *Election) Start(ctx context.Context) error {
	if e.cancel != nil {
		return errors.New("leader election already started")
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	e.logger.Info().
		Dur("lease_duration", e.config.LeaseDuration).
		Msg("starting leader election")

	go e.campaignLoop(ctx)
	return nil
}

// Stop ends the campaign, releases the lease if held and closes Redis.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
			<-e.done
		}
		if e.isLeader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if rerr := e.releaseLock(ctx); rerr != nil {
				e.logger.Error().Err(rerr).Msg("failed to release leadership lock")
			}
			cancel()
			e.updateLeadershipStatus(false)
		}
		close(e.leaderCh)
		err = e.client.Close()
	})
	return err
}

// IsLeader returns whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh receives every leadership change. It is closed by Stop.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the instance id holding the lease, or "" if none.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	leaderID, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return leaderID, nil
}

func (e *Election) campaignLoop(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	e.attemptLeadership(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.attemptLeadership(ctx)
		}
	}
}

func (e *Election) attemptLeadership(ctx context.Context) {
	acquired, err := e.acquireLock(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Error().Err(err).Msg("failed to acquire leadership lock")
		e.updateLeadershipStatus(false)
		return
	}
	e.updateLeadershipStatus(acquired)
}

// acquireLock takes the lease if free, or renews it if this instance holds it.
func (e *Election) acquireLock(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.instanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get current leader: %w", err)
	}
	if current != e.instanceID {
		return false, nil
	}

	if err := e.client.Expire(ctx, e.config.ElectionKey, e.config.LeaseDuration).Err(); err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return true, nil
}

func (e *Election) releaseLock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	e.logger.Info().Msg("released leadership lock")
	return nil
}

func (e *Election) updateLeadershipStatus(isLeader bool) {
	if e.isLeader.Swap(isLeader) == isLeader {
		return
	}

	if isLeader {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "acquired").Inc()
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(e.instanceID, "lost").Inc()
	}

	// Keep only the latest state if the reader is behind.
	select {
	case e.leaderCh <- isLeader:
	default:
		select {
		case <-e.leaderCh:
		default:
		}
		select {
		case e.leaderCh <- isLeader:
		default:
		}
	}
}

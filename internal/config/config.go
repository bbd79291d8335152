/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/elevatord/internal/strategy"
)

// BusBackend selects how building events reach the dispatcher.
type BusBackend string

const (
	BusMemory BusBackend = "memory"
	BusRedis  BusBackend = "redis"
	BusNATS   BusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment    string
	LogLevel       string
	HTTPBind       string
	HTTPPort       int
	MetricsEnabled bool
	LogBufferSize  int

	// Dispatch
	Strategy      strategy.Kind
	LoadThreshold float64       // 0 keeps the variant's preset
	WaitThreshold time.Duration // 0 keeps the variant's preset
	IdleInterval  time.Duration

	// Event delivery
	EventBufferSize int
	BusBackend      BusBackend
	BusPrefix       string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NATSURL         string
	NATSToken       string
	InstanceID      string

	// Multi-instance configuration
	LeaderElectionEnabled bool
	LeaderLease           time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Built-in simulation used by `serve`
	SimFloors      int
	SimCabins      int
	SimCapacity    int
	SimTick        time.Duration
	SimArrivalRate float64 // chance per tick of a new rider, 0 disables random arrivals

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:    getEnvAny([]string{"ELEVATORD_ENV"}, "development"),
		LogLevel:       getEnvAny([]string{"ELEVATORD_LOG_LEVEL"}, ""),
		HTTPBind:       getEnvAny([]string{"ELEVATORD_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:       getEnvIntAny([]string{"ELEVATORD_HTTP_PORT"}, 8080),
		MetricsEnabled: getEnvBoolAny([]string{"ELEVATORD_METRICS_ENABLED"}, true),
		LogBufferSize:  getEnvIntAny([]string{"ELEVATORD_LOG_BUFFER_SIZE"}, 2000),

		Strategy:      strategy.Kind(strings.ToLower(getEnvAny([]string{"ELEVATORD_STRATEGY"}, string(strategy.KindDefault)))),
		LoadThreshold: getEnvFloatAny([]string{"ELEVATORD_LOAD_THRESHOLD"}, 0),
		WaitThreshold: getEnvDurationAny([]string{"ELEVATORD_WAIT_THRESHOLD"}, 0),
		IdleInterval:  getEnvDurationAny([]string{"ELEVATORD_IDLE_INTERVAL"}, 100*time.Millisecond),

		EventBufferSize: getEnvIntAny([]string{"ELEVATORD_EVENT_BUFFER"}, 256),
		BusBackend:      BusBackend(strings.ToLower(getEnvAny([]string{"ELEVATORD_BUS_BACKEND"}, string(BusMemory)))),
		BusPrefix:       getEnvAny([]string{"ELEVATORD_BUS_PREFIX"}, "elevatord.events."),
		RedisAddr:       getEnvAny([]string{"ELEVATORD_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:   getEnvAny([]string{"ELEVATORD_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:         getEnvIntAny([]string{"ELEVATORD_REDIS_DB", "REDIS_DB"}, 0),
		NATSURL:         getEnvAny([]string{"ELEVATORD_NATS_URL", "NATS_URL"}, "nats://127.0.0.1:4222"),
		NATSToken:       getEnvAny([]string{"ELEVATORD_NATS_TOKEN", "NATS_TOKEN"}, ""),
		InstanceID:      getEnvAny([]string{"ELEVATORD_INSTANCE_ID"}, ""),

		LeaderElectionEnabled: getEnvBoolAny([]string{"ELEVATORD_LEADER_ELECTION_ENABLED"}, false),
		LeaderLease:           getEnvDurationAny([]string{"ELEVATORD_LEADER_LEASE"}, 15*time.Second),

		TracingEnabled:    getEnvBoolAny([]string{"ELEVATORD_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"ELEVATORD_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"ELEVATORD_TRACING_SAMPLE_RATE"}, 1.0),

		SimFloors:      getEnvIntAny([]string{"ELEVATORD_SIM_FLOORS"}, 10),
		SimCabins:      getEnvIntAny([]string{"ELEVATORD_SIM_CABINS"}, 3),
		SimCapacity:    getEnvIntAny([]string{"ELEVATORD_SIM_CAPACITY"}, 8),
		SimTick:        getEnvDurationAny([]string{"ELEVATORD_SIM_TICK"}, 250*time.Millisecond),
		SimArrivalRate: getEnvFloatAny([]string{"ELEVATORD_SIM_ARRIVAL_RATE"}, 0.2),
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.BusBackend != BusMemory && c.BusBackend != BusRedis && c.BusBackend != BusNATS {
		return fmt.Errorf("unsupported event bus backend %q", c.BusBackend)
	}

	known := false
	for _, k := range strategy.Kinds() {
		if c.Strategy == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("ELEVATORD_STRATEGY: %w: %q", strategy.ErrUnknownKind, c.Strategy)
	}

	if c.LoadThreshold < 0 || c.LoadThreshold > 1 {
		return fmt.Errorf("ELEVATORD_LOAD_THRESHOLD must be within [0, 1], got %v", c.LoadThreshold)
	}
	if c.WaitThreshold < 0 {
		return fmt.Errorf("ELEVATORD_WAIT_THRESHOLD must not be negative")
	}
	if c.IdleInterval <= 0 {
		return fmt.Errorf("ELEVATORD_IDLE_INTERVAL must be positive")
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("ELEVATORD_EVENT_BUFFER must be at least 1")
	}
	if c.LeaderElectionEnabled && c.LeaderLease < time.Second {
		return fmt.Errorf("ELEVATORD_LEADER_LEASE must be at least 1s, got %v", c.LeaderLease)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("ELEVATORD_TRACING_SAMPLE_RATE must be within [0, 1], got %v", c.TracingSampleRate)
	}

	if c.SimFloors < 2 {
		return fmt.Errorf("ELEVATORD_SIM_FLOORS must be at least 2, got %d", c.SimFloors)
	}
	if c.SimCabins < 1 {
		return fmt.Errorf("ELEVATORD_SIM_CABINS must be at least 1, got %d", c.SimCabins)
	}
	if c.SimCapacity < 1 {
		return fmt.Errorf("ELEVATORD_SIM_CAPACITY must be at least 1, got %d", c.SimCapacity)
	}
	if c.SimTick <= 0 {
		return fmt.Errorf("ELEVATORD_SIM_TICK must be positive")
	}
	if c.SimArrivalRate < 0 || c.SimArrivalRate > 1 {
		return fmt.Errorf("ELEVATORD_SIM_ARRIVAL_RATE must be within [0, 1], got %v", c.SimArrivalRate)
	}
	return nil
}

// StrategyParams returns the threshold overrides for the configured variant.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{LoadThreshold: c.LoadThreshold, WaitThreshold: c.WaitThreshold}
}

// HTTPAddr is the listen address of the status API.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"LOG_LEVEL":               "use ELEVATORD_LOG_LEVEL",
		"STRATEGY":                "use ELEVATORD_STRATEGY",
		"LEADER_ELECTION_ENABLED": "use ELEVATORD_LEADER_ELECTION_ENABLED",
		"TRACING_ENABLED":         "use ELEVATORD_TRACING_ENABLED",
		"OTLP_ENDPOINT":           "use ELEVATORD_OTLP_ENDPOINT (or OTEL_EXPORTER_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE":     "use ELEVATORD_TRACING_SAMPLE_RATE",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("unprefixed env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go durations ("250ms") or bare integers as
// milliseconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

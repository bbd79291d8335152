/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/elevatord/internal/config"
	"github.com/friendsincode/elevatord/internal/dispatch"
	"github.com/friendsincode/elevatord/internal/eventbus"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/leadership"
	"github.com/friendsincode/elevatord/internal/logbuffer"
	"github.com/friendsincode/elevatord/internal/logging"
	"github.com/friendsincode/elevatord/internal/server"
	"github.com/friendsincode/elevatord/internal/simulation"
	"github.com/friendsincode/elevatord/internal/telemetry"
	"github.com/friendsincode/elevatord/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:           "elevatord",
	Short:         "elevatord - elevator fleet dispatcher",
	Long:          "elevatord assigns hall calls to a fleet of elevator cabins and decides where each cabin goes next.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatcher against the built-in building with the status API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(cfg.LogBufferSize)
	logger = logging.SetupWithWriter(cfg.Environment, cfg.LogLevel, logbuffer.NewWriter(logBuf, nil))
	return nil
}

// openBus builds the configured event bus. The returned closer is never nil.
func openBus() (events.Broker, func() error, error) {
	local := events.NewBusWithBuffer(cfg.EventBufferSize)
	nodeID := cfg.InstanceID

	switch cfg.BusBackend {
	case config.BusRedis:
		rc := eventbus.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		rc.Prefix = cfg.BusPrefix
		rb, err := eventbus.NewRedisBus(rc, local, nodeID, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("redis event bus: %w", err)
		}
		return rb, rb.Close, nil
	case config.BusNATS:
		nc := eventbus.DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nc.Token = cfg.NATSToken
		nc.Prefix = cfg.BusPrefix
		nb, err := eventbus.NewNATSBus(nc, local, nodeID, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("nats event bus: %w", err)
		}
		return nb, nb.Close, nil
	default:
		return local, func() error { return nil }, nil
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func initTracer(ctx context.Context) (*telemetry.TracerProvider, error) {
	tp, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "elevatord",
		ServiceVersion: version.Version,
		InstanceID:     cfg.InstanceID,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}
	return tp, nil
}

// startElection campaigns for the dispatch lease. Only the holder runs the
// fleet; the others serve the status API in standby.
func startElection(ctx context.Context) (*leadership.Election, error) {
	ec := leadership.DefaultConfig()
	ec.RedisAddr = cfg.RedisAddr
	ec.RedisPassword = cfg.RedisPassword
	ec.RedisDB = cfg.RedisDB
	ec.InstanceID = cfg.InstanceID
	ec.LeaseDuration = cfg.LeaderLease
	ec.RenewalInterval = cfg.LeaderLease / 3

	election, err := leadership.NewElection(ec, logger)
	if err != nil {
		return nil, fmt.Errorf("leader election: %w", err)
	}
	if err := election.Start(ctx); err != nil {
		_ = election.Stop()
		return nil, fmt.Errorf("leader election: %w", err)
	}
	return election, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("version", version.Version).
		Str("instance_id", cfg.InstanceID).
		Str("bus", string(cfg.BusBackend)).
		Msg("elevatord starting")

	tracerProvider, err := initTracer(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	bus, closeBus, err := openBus()
	if err != nil {
		return err
	}
	scenario := simulation.DefaultScenario(cfg.SimFloors, cfg.SimCabins, cfg.SimCapacity, cfg.SimTick, cfg.SimArrivalRate)
	b := scenario.Building()

	fleet, err := dispatch.New(b, bus, dispatch.Options{
		InstanceID:   cfg.InstanceID,
		Strategy:     cfg.Strategy,
		Params:       cfg.StrategyParams(),
		IdleInterval: cfg.IdleInterval,
	}, logger)
	if err != nil {
		_ = closeBus()
		return fmt.Errorf("initialize fleet: %w", err)
	}

	srv, err := server.New(cfg, fleet, logBuf, logger)
	if err != nil {
		_ = closeBus()
		return fmt.Errorf("initialize server: %w", err)
	}
	srv.DeferClose(closeBus)

	ctx, stop := signalContext()
	defer stop()

	runner := simulation.NewRunner(b, bus, scenario, logger)
	runTerm := func(ctx context.Context) {
		if err := fleet.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("start fleet")
			return
		}
		defer func() {
			if err := fleet.Stop(); err != nil {
				logger.Error().Err(err).Msg("stop fleet")
			}
		}()
		if _, err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("simulation stopped")
		}
	}

	dispatchDone := make(chan struct{})
	if cfg.LeaderElectionEnabled {
		election, err := startElection(ctx)
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return err
		}
		defer func() {
			if err := election.Stop(); err != nil {
				logger.Error().Err(err).Msg("leader election stop failed")
			}
		}()
		srv.SetLeader(election)
		if holder, err := election.GetLeader(ctx); err == nil && holder != "" && holder != cfg.InstanceID {
			logger.Info().Str("leader", holder).Msg("dispatch lease held elsewhere, standing by")
		}
		go func() {
			defer close(dispatchDone)
			leadership.Follow(ctx, election, runTerm)
		}()
	} else {
		go func() {
			defer close(dispatchDone)
			runTerm(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
		stop()
	}

	logger.Info().Msg("shutting down gracefully...")
	<-dispatchDone

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closes the event bus after the fleet has stopped publishing.
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	summary := runner.Summary()
	logger.Info().
		Int("ticks", summary.Ticks).
		Int("delivered", summary.Delivered).
		Float64("avg_wait_ticks", summary.AvgWaitTicks).
		Msg("elevatord stopped")
	return nil
}

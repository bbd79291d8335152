/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/elevatord/internal/dispatch"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/simulation"
	"github.com/friendsincode/elevatord/internal/strategy"
)

var (
	simulateStrategy string
	simulateTick     time.Duration
	simulateJSON     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Run a scenario to completion and print a summary",
	Long: `Run the dispatcher against a scenario file on an in-memory bus.

The run ends once every rider has been delivered, the scenario's max_ticks is
reached, or the process is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateStrategy, "strategy", "", "Override the scenario's strategy")
	simulateCmd.Flags().DurationVar(&simulateTick, "tick", 0, "Override the scenario's tick length")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	scenario, err := simulation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if simulateStrategy != "" {
		scenario.Strategy = simulateStrategy
	}
	if simulateTick > 0 {
		scenario.Tick = simulateTick
	}
	kind := cfg.Strategy
	if scenario.Strategy != "" {
		kind = strategy.Kind(scenario.Strategy)
	}

	ctx, stop := signalContext()
	defer stop()

	tracerProvider, err := initTracer(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	bus := events.NewBusWithBuffer(cfg.EventBufferSize)
	b := scenario.Building()
	fleet, err := dispatch.New(b, bus, dispatch.Options{
		InstanceID:   cfg.InstanceID,
		Strategy:     kind,
		Params:       cfg.StrategyParams(),
		IdleInterval: cfg.IdleInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize fleet: %w", err)
	}
	if err := fleet.Start(ctx); err != nil {
		return fmt.Errorf("start fleet: %w", err)
	}

	summary, runErr := simulation.NewRunner(b, bus, scenario, logger).Run(ctx)
	if err := fleet.Stop(); err != nil {
		logger.Error().Err(err).Msg("fleet stop failed")
	}

	if err := printSummary(cmd.OutOrStdout(), string(kind), summary); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func printSummary(w io.Writer, kind string, s simulation.Summary) error {
	if simulateJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Strategy string `json:"strategy"`
			simulation.Summary
		}{kind, s})
	}

	_, err := fmt.Fprintf(w, `scenario:    %s
strategy:    %s
ticks:       %d
riders:      %d
delivered:   %d
waiting:     %d
aboard:      %d
avg wait:    %.2f ticks
max wait:    %d ticks
avg trip:    %.2f ticks
`, s.Scenario, kind, s.Ticks, s.Riders, s.Delivered, s.Waiting, s.Aboard, s.AvgWaitTicks, s.MaxWaitTicks, s.AvgTripTicks)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if s.Waiting+s.Aboard > 0 {
		fmt.Fprintln(os.Stderr, "warning: not every rider was delivered")
	}
	return nil
}

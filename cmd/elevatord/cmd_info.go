/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/version"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the built-in dispatch strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, k := range strategy.Kinds() {
			fmt.Fprintf(tw, "%s\t%s\n", k, strategy.Describe(k))
		}
		return tw.Flush()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Current())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every event seen on the configured event bus",
	Long: `Connect to the configured event bus (ELEVATORD_BUS_BACKEND) and log the
building and fleet events published by other nodes until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	bus, closeBus, err := openBus()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBus(); err != nil {
			logger.Error().Err(err).Msg("event bus close failed")
		}
	}()

	types := append(append([]events.EventType{}, events.CabinEvents...), events.HallEvents...)
	types = append(types, events.EventCabinClaimed, events.EventCabinRedirected, events.EventHallCallServiced, events.EventStrategyChanged)
	sub := bus.Subscribe(types...)
	defer bus.Unsubscribe(sub)

	ctx, stop := signalContext()
	defer stop()

	logger.Info().Str("bus", string(cfg.BusBackend)).Msg("watching events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub:
			if !ok {
				return nil
			}
			logger.Info().Str("event_type", string(evt.Type)).Interface("payload", evt.Payload).Msg("event")
		}
	}
}

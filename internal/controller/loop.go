/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/elevatord/internal/coordinator"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

// Start subscribes to this cabin's events and runs the loop in the
// background until ctx is done. Events published after Start returns are
// never missed.
func (c *Controller) Start(ctx context.Context) error {
	if c.bus == nil {
		return fmt.Errorf("start controller %d: no event bus", c.cabin.ID())
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	sub := c.bus.Subscribe(events.CabinEvents...)
	done := make(chan struct{})
	c.done.Store(&done)

	go func() {
		defer close(done)
		defer c.running.Store(false)
		defer c.bus.Unsubscribe(sub)
		c.loop(ctx, sub)
	}()
	return nil
}

// Run is Start followed by waiting for the loop to exit.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-c.Done()
	return nil
}

// Done is closed when the loop started by the last Start exits. It is nil
// before the first Start.
func (c *Controller) Done() <-chan struct{} {
	if done := c.done.Load(); done != nil {
		return *done
	}
	return nil
}

// loop consumes events. While the cabin is idle and found nothing to claim
// it re-polls every IdleInterval, or sooner when woken. The timer is re-armed
// only after it fires, a poll runs or this cabin handles an event, so traffic
// from other cabins never postpones a re-poll. A panic in one handler is
// logged and the loop goes on.
func (c *Controller) loop(ctx context.Context, sub events.Subscriber) {
	timer := time.NewTimer(c.IdleInterval())
	defer timer.Stop()

	c.logger.Info().Dur("idle_interval", c.IdleInterval()).Msg("controller started")

	for {
		rearm := false
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("controller stopped")
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if !c.owns(evt) {
				continue
			}
			c.safely(evt.Type, func() { c.handle(ctx, evt) })
			rearm = true
		case <-c.wake:
			if c.idleWaiting() {
				c.safely("wake", func() { c.Poll(ctx) })
				rearm = true
			}
		case <-timer.C:
			if c.idleWaiting() {
				c.safely("idle_poll", func() { c.Poll(ctx) })
			}
			rearm = true
		}

		if rearm {
			resetTimer(timer, c.IdleInterval())
		}
	}
}

// owns reports whether evt is addressed to this cabin.
func (c *Controller) owns(evt events.Event) bool {
	id, ok := evt.Payload.Int(events.KeyCabinID)
	return ok && id == c.cabin.ID()
}

// handle routes one event to its handler. Events for other cabins are
// ignored.
func (c *Controller) handle(ctx context.Context, evt events.Event) {
	if !c.owns(evt) {
		return
	}
	floor, hasFloor := evt.Payload.Int(events.KeyFloor)

	switch evt.Type {
	case events.EventCabinIdle:
		c.HandleIdle(ctx)
	case events.EventCabinButtonPressed:
		if !hasFloor {
			c.logger.Warn().Str("event_type", string(evt.Type)).Msg("event missing floor")
			return
		}
		c.HandleFloorButtonPressed(ctx, floor)
	case events.EventCabinPassingFloor:
		if !hasFloor {
			c.logger.Warn().Str("event_type", string(evt.Type)).Msg("event missing floor")
			return
		}
		direction, _ := evt.Payload.Direction()
		c.HandlePassingFloor(ctx, floor, direction)
	case events.EventCabinStoppedAtFloor:
		if !hasFloor {
			c.logger.Warn().Str("event_type", string(evt.Type)).Msg("event missing floor")
			return
		}
		c.HandleStoppedAtFloor(ctx, floor)
	}
}

func (c *Controller) safely(what events.EventType, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.HandlerPanicsTotal.WithLabelValues(c.label).Inc()
			c.logger.Error().
				Interface("panic", r).
				Str("event_type", string(what)).
				Msg("handler panicked, cabin keeps running")
		}
	}()
	fn()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Running reports whether Run is active.
func (c *Controller) Running() bool {
	return c.running.Load()
}

var (
	_ coordinator.Preemptor = (*Controller)(nil)
	_ coordinator.Waker     = (*Controller)(nil)
	_ coordinator.Candidate = (*Controller)(nil)
)

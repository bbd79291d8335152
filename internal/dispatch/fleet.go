/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dispatch assembles the coordinator and one controller per cabin
// into a running fleet.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/controller"
	"github.com/friendsincode/elevatord/internal/coordinator"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

var (
	// ErrFleetRunning is returned by Start on a running fleet.
	ErrFleetRunning = errors.New("fleet already running")

	// ErrFleetNotRunning is returned by Stop on a stopped fleet.
	ErrFleetNotRunning = errors.New("fleet not running")

	// ErrUnknownCabin indicates a cabin id outside the roster.
	ErrUnknownCabin = errors.New("unknown cabin")
)

// Options tune a fleet at construction.
type Options struct {
	InstanceID   string
	Strategy     strategy.Kind
	Params       strategy.Params
	IdleInterval time.Duration
}

// Fleet owns the coordinator and the controllers for a fixed building.
type Fleet struct {
	instanceID string
	floors     int
	coord      *coordinator.Coordinator
	bus        events.Broker
	logger     zerolog.Logger

	mu          sync.RWMutex
	controllers map[int]*controller.Controller
	ids         []int
	resolver    strategy.Resolver
	current     strategy.Set
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
}

// New builds a fleet for every cabin in b. The roster is fixed for the
// fleet's lifetime.
func New(b building.Building, bus events.Broker, opts Options, logger zerolog.Logger) (*Fleet, error) {
	if b == nil || b.Floors() < 2 {
		return nil, fmt.Errorf("new fleet: building needs at least two floors")
	}
	if len(b.Cabins()) == 0 {
		return nil, fmt.Errorf("new fleet: building has no cabins")
	}

	resolver := strategy.BuiltinResolver{Params: opts.Params}
	kind := opts.Strategy
	if kind == "" {
		kind = strategy.KindDefault
	}
	set, err := resolver.Resolve(kind)
	if err != nil {
		return nil, fmt.Errorf("new fleet: %w", err)
	}

	f := &Fleet{
		instanceID:  opts.InstanceID,
		floors:      b.Floors(),
		bus:         bus,
		logger:      logger.With().Str("component", "fleet").Logger(),
		controllers: make(map[int]*controller.Controller),
		resolver:    resolver,
		current:     set,
	}
	f.coord = coordinator.New(b.Floors(), set.Ordering, logger)

	for _, cabin := range b.Cabins() {
		if _, exists := f.controllers[cabin.ID()]; exists {
			return nil, fmt.Errorf("new fleet: duplicate cabin id %d", cabin.ID())
		}
		ctrl := controller.New(cabin, f.coord, bus, set, b.Floors(), logger)
		if opts.IdleInterval > 0 {
			ctrl.SetIdleInterval(opts.IdleInterval)
		}
		f.coord.Register(ctrl)
		f.controllers[cabin.ID()] = ctrl
		f.ids = append(f.ids, cabin.ID())
	}
	sort.Ints(f.ids)

	return f, nil
}

// Start launches one loop per controller plus the hall call listener.
func (f *Fleet) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return ErrFleetRunning
	}
	if f.bus == nil {
		return fmt.Errorf("start fleet: no event bus")
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true

	hallSub := f.bus.Subscribe(events.HallEvents...)
	f.wg.Add(1)
	go f.hallLoop(ctx, hallSub)

	for _, id := range f.ids {
		ctrl := f.controllers[id]
		if err := ctrl.Start(ctx); err != nil {
			cancel()
			f.running = false
			return fmt.Errorf("start controller %d: %w", id, err)
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			<-ctrl.Done()
		}()
	}

	f.logger.Info().
		Str("instance_id", f.instanceID).
		Int("cabins", len(f.ids)).
		Int("floors", f.floors).
		Str("strategy", f.current.Name()).
		Msg("fleet started")
	return nil
}

// Stop cancels every loop and waits for them to return.
func (f *Fleet) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return ErrFleetNotRunning
	}
	f.cancel()
	f.running = false
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info().Msg("fleet stopped")
	return nil
}

// Running reports whether the fleet loops are active.
func (f *Fleet) Running() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

func (f *Fleet) hallLoop(ctx context.Context, sub events.Subscriber) {
	defer f.wg.Done()
	defer f.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			f.handleHallCall(evt)
		}
	}
}

func (f *Fleet) handleHallCall(evt events.Event) {
	floor, ok := evt.Payload.Int(events.KeyFloor)
	if !ok {
		f.logger.Warn().Str("event_type", string(evt.Type)).Msg("hall call without floor")
		return
	}
	direction := models.DirectionUp
	if evt.Type == events.EventHallDownPressed {
		direction = models.DirectionDown
	}
	f.coord.RegisterButtonPress(floor, direction)
}

// RegisterButtonPress records a hall call directly, bypassing the bus.
func (f *Fleet) RegisterButtonPress(floor int, direction models.Direction) time.Time {
	return f.coord.RegisterButtonPress(floor, direction)
}

// Coordinator exposes the fleet coordinator.
func (f *Fleet) Coordinator() *coordinator.Coordinator {
	return f.coord
}

// Controller returns the controller for a cabin.
func (f *Fleet) Controller(cabinID int) (*controller.Controller, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ctrl, ok := f.controllers[cabinID]
	return ctrl, ok
}

// Strategy returns the fleet-wide policy set.
func (f *Fleet) Strategy() strategy.Set {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// SetResolver replaces how strategy kinds map to policy sets.
func (f *Fleet) SetResolver(r strategy.Resolver) {
	if r == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolver = r
}

// ChangeStrategy switches every controller and the coordinator to kind.
// An unknown kind leaves the current strategy in place.
func (f *Fleet) ChangeStrategy(kind strategy.Kind) error {
	f.mu.Lock()
	set, err := f.resolver.Resolve(kind)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("change strategy: %w", err)
	}
	f.current = set
	ctrls := make([]*controller.Controller, 0, len(f.ids))
	for _, id := range f.ids {
		ctrls = append(ctrls, f.controllers[id])
	}
	f.mu.Unlock()

	f.coord.SetOrdering(set.Ordering)
	for _, ctrl := range ctrls {
		ctrl.SetStrategy(set)
	}

	telemetry.StrategyChangesTotal.WithLabelValues(set.Name()).Inc()
	if f.bus != nil {
		f.bus.Publish(events.EventStrategyChanged, events.Payload{events.KeyKind: set.Name()})
	}
	f.logger.Info().Str("strategy", set.Name()).Msg("strategy changed")
	return nil
}

// SetIdleInterval changes the idle re-poll period of every controller.
func (f *Fleet) SetIdleInterval(d time.Duration) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ctrl := range f.controllers {
		ctrl.SetIdleInterval(d)
	}
}

// ForceGoToFloor redirects one cabin to floor ahead of its queue.
func (f *Fleet) ForceGoToFloor(ctx context.Context, cabinID, floor int) error {
	ctrl, ok := f.Controller(cabinID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCabin, cabinID)
	}
	return ctrl.ForceGoToFloor(ctx, floor)
}

// ForceStop clears one cabin's destination queue.
func (f *Fleet) ForceStop(cabinID int) error {
	ctrl, ok := f.Controller(cabinID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCabin, cabinID)
	}
	ctrl.ForceStop()
	return nil
}

// Snapshot reports pending calls and every cabin, ordered by cabin id.
func (f *Fleet) Snapshot() models.FleetSnapshot {
	f.mu.RLock()
	ids := append([]int(nil), f.ids...)
	running := f.running
	name := f.current.Name()
	f.mu.RUnlock()

	snap := models.FleetSnapshot{
		InstanceID: f.instanceID,
		Strategy:   name,
		Floors:     f.floors,
		Running:    running,
		Pending:    f.coord.Pending(),
		TakenAt:    time.Now().UTC(),
	}
	for _, id := range ids {
		ctrl, _ := f.Controller(id)
		snap.Cabins = append(snap.Cabins, ctrl.Snapshot())
	}
	return snap
}

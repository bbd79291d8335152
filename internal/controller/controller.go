/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package controller drives one cabin: it reacts to the cabin's events,
// consults the stop and ordering policies, and claims hall calls through
// the coordinator.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/coordinator"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

var (
	// ErrPolicyReturnedInvalid marks a policy suggestion outside the building
	// or a malformed direction. The controller falls back to nearest-floor.
	ErrPolicyReturnedInvalid = errors.New("policy returned invalid suggestion")

	// ErrInvalidTransition indicates an unexpected state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyRunning is returned by Run when a loop is already active.
	ErrAlreadyRunning = errors.New("controller already running")
)

// DefaultIdleInterval is the idle re-poll period.
const DefaultIdleInterval = 100 * time.Millisecond

// Coordinator is the part of the fleet coordinator a controller uses.
type Coordinator interface {
	RequestHasWaitingPassenger(floor int, direction models.Direction) bool
	MarkServiced(floor int, direction models.Direction) bool
	PressedAt(floor int, direction models.Direction) (time.Time, bool)
	ClaimNextUnclaimedRequest(ctx context.Context, candidate coordinator.Candidate) (models.Claim, bool)
}

// boarding remembers when the riders who got on at the last stop started
// waiting for it.
type boarding struct {
	floor int
	since time.Time
	ok    bool
}

// Controller owns one cabin's reactive behaviour.
type Controller struct {
	cabin  building.Cabin
	coord  Coordinator
	bus    events.Broker
	floors int
	label  string
	logger zerolog.Logger
	now    func() time.Time

	strategy     atomic.Pointer[strategy.Set]
	idleInterval atomic.Int64
	running      atomic.Bool
	done         atomic.Pointer[chan struct{}]
	wake         chan struct{}

	// mu serializes handlers.
	mu sync.Mutex

	// dataMu guards the fields below. It is held only briefly and never
	// while calling out, so TryPreemptivelyClaim can read them while
	// another goroutine is inside a handler.
	dataMu         sync.RWMutex
	state          models.CabinStateEnum
	waiting        bool
	passengerSince map[int]time.Time
	pickupSince    map[int]time.Time
	lastBoarding   boarding
}

// New creates a controller for cabin in a building of floors floors.
// bus may be nil when handlers are called directly.
func New(cabin building.Cabin, coord Coordinator, bus events.Broker, set strategy.Set, floors int, logger zerolog.Logger) *Controller {
	c := &Controller{
		cabin:          cabin,
		coord:          coord,
		bus:            bus,
		floors:         floors,
		label:          strconv.Itoa(cabin.ID()),
		logger:         logger.With().Str("component", "controller").Int("cabin_id", cabin.ID()).Logger(),
		now:            time.Now,
		wake:           make(chan struct{}, 1),
		state:          models.CabinStateIdle,
		passengerSince: make(map[int]time.Time),
		pickupSince:    make(map[int]time.Time),
	}
	c.SetStrategy(set)
	c.idleInterval.Store(int64(DefaultIdleInterval))
	telemetry.CabinState.WithLabelValues(c.label, string(models.CabinStateIdle)).Set(1)
	return c
}

// SetClock replaces the time source.
func (c *Controller) SetClock(now func() time.Time) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.now = now
}

func (c *Controller) clock() time.Time {
	c.dataMu.RLock()
	now := c.now
	c.dataMu.RUnlock()
	return now()
}

// CabinID returns the id of the controlled cabin.
func (c *Controller) CabinID() int {
	return c.cabin.ID()
}

// SetStrategy swaps the policies used for future decisions.
func (c *Controller) SetStrategy(set strategy.Set) {
	if set.Ordering == nil || set.Stop == nil {
		set = strategy.Default()
	}
	c.strategy.Store(&set)
	c.logger.Debug().Str("strategy", set.Name()).Msg("strategy set")
}

// Strategy returns the current policies.
func (c *Controller) Strategy() strategy.Set {
	return *c.strategy.Load()
}

// SetIdleInterval changes the idle re-poll period. Non-positive values are
// ignored.
func (c *Controller) SetIdleInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.idleInterval.Store(int64(d))
}

// IdleInterval returns the idle re-poll period.
func (c *Controller) IdleInterval() time.Duration {
	return time.Duration(c.idleInterval.Load())
}

// Wake asks an idle controller to poll the coordinator now. It never blocks.
func (c *Controller) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// State returns the controller state.
func (c *Controller) State() models.CabinStateEnum {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.state
}

// PassengerSince returns a copy of the per-destination wait-start map.
func (c *Controller) PassengerSince() map[int]time.Time {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return copyTimes(c.passengerSince)
}

// View builds the read-only picture of the cabin handed to policies.
func (c *Controller) View() models.CabinView {
	return models.CabinView{
		ID:            c.cabin.ID(),
		CurrentFloor:  c.cabin.CurrentFloor(),
		Queue:         c.cabin.DestinationQueue(),
		PressedFloors: c.cabin.PressedFloors(),
		LoadFactor:    c.cabin.LoadFactor(),
		Direction:     c.cabin.DestinationDirection(),
		Floors:        c.floors,
	}
}

// IndicatorDirection returns the direction the cabin advertises.
func (c *Controller) IndicatorDirection() models.Direction {
	return building.IndicatorDirection(c.cabin)
}

// Snapshot reports the controller and cabin state for status output.
func (c *Controller) Snapshot() models.CabinSnapshot {
	view := c.View()
	c.dataMu.RLock()
	state := c.state
	since := copyTimes(c.passengerSince)
	c.dataMu.RUnlock()

	return models.CabinSnapshot{
		ID:             view.ID,
		State:          state,
		CurrentFloor:   view.CurrentFloor,
		Queue:          view.Queue,
		PressedFloors:  view.PressedFloors,
		LoadFactor:     view.LoadFactor,
		Indicator:      c.IndicatorDirection(),
		Strategy:       c.Strategy().Name(),
		PassengerSince: since,
	}
}

// TryPreemptivelyClaim reports whether this cabin is already heading past
// floor in the request's direction and its stop policy would pick the
// riders up. It reads a snapshot of the cabin and never changes anything.
func (c *Controller) TryPreemptivelyClaim(floor int, direction models.Direction) bool {
	current, queue := c.cabin.Position()
	if len(queue) == 0 {
		return false
	}
	heading := models.Toward(current, queue[0])
	if !heading.IsTravel() || !heading.Matches(direction) {
		return false
	}
	if !covers(current, queue, heading, floor) {
		return false
	}

	view := models.CabinView{
		ID:            c.cabin.ID(),
		CurrentFloor:  current,
		Queue:         queue,
		PressedFloors: c.cabin.PressedFloors(),
		LoadFactor:    c.cabin.LoadFactor(),
		Direction:     heading,
		Floors:        c.floors,
	}
	c.dataMu.RLock()
	since := copyTimes(c.passengerSince)
	now := c.now
	c.dataMu.RUnlock()

	return c.Strategy().Stop.StopToPickUp(view, since, now())
}

// covers reports whether floor lies strictly ahead of current and no
// further than the furthest queued stop in heading.
func covers(current int, queue []int, heading models.Direction, floor int) bool {
	furthest := current
	for _, f := range queue {
		if heading == models.DirectionUp && f > furthest {
			furthest = f
		}
		if heading == models.DirectionDown && f < furthest {
			furthest = f
		}
	}
	if heading == models.DirectionUp {
		return floor > current && floor <= furthest
	}
	return floor < current && floor >= furthest
}

// HandleIdle runs when the cabin has nothing queued. It advertises both
// directions and polls for work. A stale idle event for a cabin that has
// since been given a destination is ignored.
func (c *Controller) HandleIdle(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cabin.DestinationQueue()) > 0 {
		return
	}
	c.arriveIdleLocked(ctx)
}

// arriveIdleLocked advertises both directions and looks for work.
func (c *Controller) arriveIdleLocked(ctx context.Context) {
	c.transition(models.CabinStateIdle)
	building.SetIndicators(c.cabin, models.DirectionBoth)
	c.pollLocked(ctx)
}

// Poll re-runs the idle selection if the cabin is idle and waiting.
func (c *Controller) Poll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cabin.DestinationQueue()) > 0 || c.State() == models.CabinStateMoving {
		return
	}
	c.pollLocked(ctx)
}

// HandleFloorButtonPressed records when the rider heading to floor started
// waiting and, if the cabin has no destination, goes through the idle
// arrival at once instead of waiting for the idle timer.
func (c *Controller) HandleFloorButtonPressed(ctx context.Context, floor int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !building.ValidFloor(floor, c.floors) {
		c.logger.Warn().Int("floor", floor).Msg("ignoring cabin button outside the building")
		return
	}

	since := c.boardingSince()
	c.dataMu.Lock()
	if _, ok := c.passengerSince[floor]; !ok {
		c.passengerSince[floor] = since
	}
	c.dataMu.Unlock()

	c.logger.Debug().Int("floor", floor).Time("since", since).Msg("cabin button pressed")

	if len(c.cabin.DestinationQueue()) == 0 {
		c.arriveIdleLocked(ctx)
	}
}

// boardingSince picks the wait start for a rider who just pressed a cabin
// button: a still-pending hall call at the current floor, else the call
// this cabin picked up at its last stop, else now.
func (c *Controller) boardingSince() time.Time {
	if at, ok := c.coord.PressedAt(c.cabin.CurrentFloor(), c.IndicatorDirection()); ok {
		return at
	}
	c.dataMu.RLock()
	last := c.lastBoarding
	c.dataMu.RUnlock()
	if last.ok {
		return last.since
	}
	return c.clock()
}

// HandlePassingFloor decides whether to stop at floor while travelling in
// direction, to let riders off or to pick waiting riders up.
func (c *Controller) HandlePassingFloor(ctx context.Context, floor int, direction models.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transition(models.CabinStateMoving)

	if !building.ValidFloor(floor, c.floors) {
		c.logger.Warn().Int("floor", floor).Msg("passing floor outside the building")
		return
	}

	view := c.View()
	set := c.Strategy()
	since := c.PassengerSince()
	now := c.clock()

	dropOff := view.HasPressed(floor) && set.Stop.StopToDropOff(view, since, now)
	pickUp := false
	if direction.IsTravel() {
		pickUp = c.coord.RequestHasWaitingPassenger(floor, direction) && set.Stop.StopToPickUp(view, since, now)
	} else {
		c.logger.Warn().Int("floor", floor).Str("direction", direction.String()).Msg("passing floor without a travel direction")
	}

	if !dropOff && !pickUp {
		return
	}

	reason := "drop_off"
	if pickUp && !dropOff {
		reason = "pick_up"
	}
	if pickUp {
		if at, ok := c.coord.PressedAt(floor, direction); ok {
			c.rememberPickup(floor, at)
		}
	}
	c.forceGoToFloorLocked(ctx, floor, reason)
	if direction.IsTravel() {
		c.coord.MarkServiced(floor, direction)
	}
}

// HandleStoppedAtFloor settles the cabin after it stops: riders for floor
// are gone, the next destination is chosen if the queue ran out, and the
// hall call matching the advertised direction is taken.
func (c *Controller) HandleStoppedAtFloor(ctx context.Context, floor int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transition(models.CabinStateStoppedDeciding)

	c.dataMu.Lock()
	delete(c.passengerSince, floor)
	pickup, hadPickup := c.pickupSince[floor]
	delete(c.pickupSince, floor)
	c.dataMu.Unlock()

	queue := c.cabin.DestinationQueue()
	if len(queue) == 0 {
		view := c.View()
		if next, ok := c.nextFloor(view); ok {
			c.goToFloorLocked(ctx, next)
		} else {
			building.SetIndicators(c.cabin, models.DirectionBoth)
		}
	} else {
		building.SetIndicators(c.cabin, models.Toward(floor, queue[0]))
	}

	direction := c.IndicatorDirection()
	if at, ok := c.coord.PressedAt(floor, direction); ok {
		if !hadPickup || at.Before(pickup) {
			pickup, hadPickup = at, true
		}
		c.coord.MarkServiced(floor, direction)
	}

	c.dataMu.Lock()
	c.lastBoarding = boarding{floor: floor, since: pickup, ok: hadPickup}
	c.dataMu.Unlock()

	if len(c.cabin.DestinationQueue()) > 0 {
		c.transition(models.CabinStateMoving)
	}
	c.logger.Debug().
		Int("floor", floor).
		Ints("queue", c.cabin.DestinationQueue()).
		Str("indicator", direction.String()).
		Msg("stopped at floor")
}

// ForceGoToFloor puts floor at the front of the queue, keeping the rest.
func (c *Controller) ForceGoToFloor(ctx context.Context, floor int) error {
	if !building.ValidFloor(floor, c.floors) {
		return fmt.Errorf("force go to floor %d: %w", floor, building.ErrFloorOutOfRange)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceGoToFloorLocked(ctx, floor, "forced")
	return nil
}

// ForceStop clears the destination queue so the cabin halts at the next
// floor.
func (c *Controller) ForceStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cabin.SetDestinationQueue(nil)
	c.cabin.CheckDestinationQueue()
	c.logger.Info().Msg("cabin stopped by command")
}

// pollLocked tries to give an empty cabin a destination: the riders aboard
// first, then the coordinator. It reports whether a destination was set.
func (c *Controller) pollLocked(ctx context.Context) bool {
	if len(c.cabin.DestinationQueue()) > 0 {
		c.setWaiting(false)
		return true
	}

	view := c.View()
	if view.LoadFactor > 0 || len(view.PressedFloors) > 0 {
		if floor, ok := c.nextFloorFromIdle(view); ok {
			c.logger.Debug().Int("floor", floor).Msg("rider aboard, leaving idle")
			c.goToFloorLocked(ctx, floor)
			c.setWaiting(false)
			return true
		}
	}

	claim, ok := c.coord.ClaimNextUnclaimedRequest(ctx, c)
	if !ok {
		telemetry.IdlePollsTotal.WithLabelValues(c.label).Inc()
		c.setWaiting(true)
		return false
	}

	c.rememberPickup(claim.Floor, claim.PressedAt)
	c.logger.Debug().
		Int("floor", claim.Floor).
		Str("direction", string(claim.Direction)).
		Msg("claimed hall call")
	c.publish(events.EventCabinClaimed, events.Payload{
		events.KeyCabinID:   c.cabin.ID(),
		events.KeyFloor:     claim.Floor,
		events.KeyDirection: string(claim.Direction),
	})
	c.goToFloorLocked(ctx, claim.Floor)
	c.setWaiting(false)
	return true
}

// goToFloorLocked appends floor to the queue and tells the coordinator the
// call there in the direction the cabin will leave is covered.
func (c *Controller) goToFloorLocked(_ context.Context, floor int) {
	if err := c.cabin.GoToFloor(floor); err != nil {
		c.logger.Error().Err(err).Int("floor", floor).Msg("cabin refused destination")
		return
	}

	view := c.View()
	building.SetIndicators(c.cabin, models.Toward(view.CurrentFloor, floor))

	next := c.Strategy().Stop.NextDirection(view)
	if !next.IsValid() {
		c.policyFault("next_direction", fmt.Errorf("%w: direction %q", ErrPolicyReturnedInvalid, string(next)))
		next = view.Direction
	}
	if !next.IsTravel() {
		next = models.DirectionBoth
	}
	c.coord.MarkServiced(floor, next)

	c.transition(models.CabinStateMoving)
	c.logger.Debug().Int("floor", floor).Str("next_direction", string(next)).Msg("moving to floor")
}

// forceGoToFloorLocked prepends floor to the queue without dropping any
// existing destination.
func (c *Controller) forceGoToFloorLocked(ctx context.Context, floor int, reason string) {
	_, span := telemetry.StartSpan(ctx, "controller.redirect", telemetry.CabinAttrs(c.cabin.ID(), floor)...)
	defer span.End()

	queue := c.cabin.DestinationQueue()
	if len(queue) > 0 && queue[0] == floor {
		return
	}
	c.cabin.SetDestinationQueue(prepend(floor, queue))
	c.cabin.CheckDestinationQueue()
	c.transition(models.CabinStateMoving)

	telemetry.RedirectsTotal.WithLabelValues(c.label, reason).Inc()
	c.publish(events.EventCabinRedirected, events.Payload{
		events.KeyCabinID: c.cabin.ID(),
		events.KeyFloor:   floor,
		events.KeyReason:  reason,
	})
	c.logger.Debug().Int("floor", floor).Str("reason", reason).Ints("queue", queue).Msg("redirected")
}

// prepend returns [floor] followed by queue with any later floor entries
// removed.
func prepend(floor int, queue []int) []int {
	out := make([]int, 0, len(queue)+1)
	out = append(out, floor)
	for _, f := range queue {
		if f != floor {
			out = append(out, f)
		}
	}
	return out
}

func (c *Controller) nextFloor(view models.CabinView) (int, bool) {
	floor, ok := c.Strategy().Stop.NextFloor(view, c.PassengerSince(), c.clock())
	if !ok {
		return 0, false
	}
	if !building.ValidFloor(floor, c.floors) {
		c.policyFault("next_floor", fmt.Errorf("%w: floor %d", ErrPolicyReturnedInvalid, floor))
		return strategy.NearestPressed(view)
	}
	return floor, true
}

func (c *Controller) nextFloorFromIdle(view models.CabinView) (int, bool) {
	floor, ok := c.Strategy().Stop.NextFloorFromIdle(view)
	if !ok {
		return 0, false
	}
	if !building.ValidFloor(floor, c.floors) {
		c.policyFault("next_floor_from_idle", fmt.Errorf("%w: floor %d", ErrPolicyReturnedInvalid, floor))
		return strategy.NearestPressed(view)
	}
	return floor, true
}

func (c *Controller) policyFault(policy string, err error) {
	telemetry.PolicyFaultsTotal.WithLabelValues(c.label, policy).Inc()
	c.logger.Warn().Err(err).Str("policy", policy).Msg("ignoring policy suggestion, using nearest floor")
}

// rememberPickup keeps the first known wait start for riders at floor.
func (c *Controller) rememberPickup(floor int, at time.Time) {
	if at.IsZero() {
		return
	}
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if existing, ok := c.pickupSince[floor]; !ok || at.Before(existing) {
		c.pickupSince[floor] = at
	}
}

func (c *Controller) setWaiting(waiting bool) {
	c.dataMu.Lock()
	c.waiting = waiting
	c.dataMu.Unlock()
}

// idleWaiting reports whether the last poll found nothing to do.
func (c *Controller) idleWaiting() bool {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.waiting && c.state != models.CabinStateMoving
}

func (c *Controller) publish(eventType events.EventType, payload events.Payload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventType, payload)
}

func copyTimes(in map[int]time.Time) map[int]time.Time {
	out := make(map[int]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package coordinator owns the fleet-wide hall-call queues and arbitrates
// which cabin commits to each call.
package coordinator

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

// ErrInvariantViolation marks a pending entry that survived the claim that
// should have removed it.
var ErrInvariantViolation = errors.New("coordinator invariant violation")

// Preemptor is the side of a cabin controller the coordinator consults during
// arbitration. TryPreemptivelyClaim is called with the coordinator lock held
// and must not call back into the coordinator.
type Preemptor interface {
	CabinID() int
	TryPreemptivelyClaim(floor int, direction models.Direction) bool
}

// Waker is implemented by preemptors that want to hear about new hall calls.
// Wake must not block.
type Waker interface {
	Wake()
}

// Candidate is a cabin asking for work.
type Candidate interface {
	CabinID() int
	View() models.CabinView
}

// Coordinator tracks pending hall calls per direction. It has no goroutines
// of its own; every method runs in the caller's goroutine under one lock.
type Coordinator struct {
	floors int
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	up         *pendingQueue
	down       *pendingQueue
	ordering   strategy.FloorOrderingPolicy
	preemptors []Preemptor
}

// New creates a coordinator for a building with the given number of floors.
// A nil ordering policy falls back to nearest-first.
func New(floors int, ordering strategy.FloorOrderingPolicy, logger zerolog.Logger) *Coordinator {
	if ordering == nil {
		ordering = strategy.NearestFirst{}
	}
	return &Coordinator{
		floors:   floors,
		logger:   logger.With().Str("component", "coordinator").Logger(),
		now:      time.Now,
		up:       newPendingQueue(),
		down:     newPendingQueue(),
		ordering: ordering,
	}
}

// SetClock replaces the time source.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetOrdering swaps the floor ordering policy. Queues are left as they are.
func (c *Coordinator) SetOrdering(ordering strategy.FloorOrderingPolicy) {
	if ordering == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ordering = ordering
}

// Register adds a controller to the arbitration roster.
func (c *Coordinator) Register(p Preemptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.preemptors {
		if existing.CabinID() == p.CabinID() {
			return
		}
	}
	c.preemptors = append(c.preemptors, p)
}

// RequestHasWaitingPassenger reports whether (floor, direction) is pending.
// DirectionBoth asks whether either direction is pending.
func (c *Coordinator) RequestHasWaitingPassenger(floor int, direction models.Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch direction {
	case models.DirectionUp:
		return c.up.has(floor)
	case models.DirectionDown:
		return c.down.has(floor)
	case models.DirectionBoth:
		return c.up.has(floor) || c.down.has(floor)
	}
	return false
}

// RegisterButtonPress records a hall call. Repeated presses before service
// keep the first timestamp, which is returned either way.
func (c *Coordinator) RegisterButtonPress(floor int, direction models.Direction) time.Time {
	if !c.inRange(floor) || !direction.IsTravel() {
		c.logger.Warn().
			Int("floor", floor).
			Str("direction", direction.String()).
			Msg("ignoring hall call outside the building")
		return time.Time{}
	}

	c.mu.Lock()
	q := c.queue(direction)
	at, added := q.add(floor, c.now())
	telemetry.PendingRequests.WithLabelValues(string(direction)).Set(float64(q.len()))
	var wake []Waker
	if added {
		for _, p := range c.preemptors {
			if w, ok := p.(Waker); ok {
				wake = append(wake, w)
			}
		}
	}
	c.mu.Unlock()

	if added {
		telemetry.ButtonPressesTotal.WithLabelValues(string(direction), "new").Inc()
		c.logger.Debug().Int("floor", floor).Str("direction", string(direction)).Msg("hall call registered")
		for _, w := range wake {
			w.Wake()
		}
	} else {
		telemetry.ButtonPressesTotal.WithLabelValues(string(direction), "repeat").Inc()
	}
	return at
}

// MarkServiced removes (floor, direction) from the pending sets. Any
// non-travel direction removes both. It reports whether anything was removed.
func (c *Coordinator) MarkServiced(floor int, direction models.Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	for _, d := range expand(direction) {
		if at, ok := c.queue(d).remove(floor); ok {
			removed = true
			c.recordRemoval(d, at)
		}
	}
	if removed {
		c.logger.Debug().Int("floor", floor).Str("direction", direction.String()).Msg("hall call serviced")
	}
	return removed
}

// PressedAt returns the first-press time of a pending call. DirectionBoth
// returns the older of the two.
func (c *Coordinator) PressedAt(floor int, direction models.Direction) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pressedAtLocked(floor, direction)
}

// MergedOldestTimestamps returns, per pending floor, the earlier of its up
// and down first-press times.
func (c *Coordinator) MergedOldestTimestamps() map[int]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

// Pending returns every unclaimed call, oldest first.
func (c *Coordinator) Pending() []models.PendingRequest {
	c.mu.Lock()
	out := make([]models.PendingRequest, 0, c.up.len()+c.down.len())
	for _, floor := range c.up.order {
		out = append(out, models.PendingRequest{Floor: floor, Direction: models.DirectionUp, PressedAt: c.up.since[floor]})
	}
	for _, floor := range c.down.order {
		out = append(out, models.PendingRequest{Floor: floor, Direction: models.DirectionDown, PressedAt: c.down.since[floor]})
	}
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PressedAt.Before(out[j].PressedAt)
	})
	return out
}

// ClaimNextUnclaimedRequest hands the candidate the best pending floor no
// other cabin is already going to stop at. The floor is removed from both
// queues before the lock is released, so a call is claimed at most once.
func (c *Coordinator) ClaimNextUnclaimedRequest(ctx context.Context, candidate Candidate) (models.Claim, bool) {
	view := candidate.View()
	cabinLabel := strconv.Itoa(candidate.CabinID())

	_, span := telemetry.StartSpan(ctx, "coordinator.claim", telemetry.CabinAttrs(view.ID, view.CurrentFloor)...)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	floors := c.unionLocked()
	if len(floors) == 0 {
		telemetry.ClaimsTotal.WithLabelValues(cabinLabel, "none").Inc()
		return models.Claim{}, false
	}

	now := c.now()
	ordered := c.ordering.OrderFloors(floors, view, c.mergedLocked(), now)
	if !sameFloors(ordered, floors) {
		telemetry.PolicyFaultsTotal.WithLabelValues(cabinLabel, "ordering").Inc()
		c.logger.Warn().
			Ints("candidates", floors).
			Ints("ordered", ordered).
			Msg("ordering policy returned a different floor set, using nearest-first")
		ordered = strategy.NearestFirst{}.OrderFloors(floors, view, c.mergedLocked(), now)
	}

	for _, floor := range ordered {
		direction := c.directionLocked(floor)
		if preemptor := c.preemptedByLocked(candidate.CabinID(), floor, direction); preemptor >= 0 {
			telemetry.PreemptionsTotal.WithLabelValues(cabinLabel).Inc()
			c.logger.Debug().
				Int("cabin_id", view.ID).
				Int("floor", floor).
				Int("preempted_by", preemptor).
				Msg("floor left to another cabin")
			continue
		}

		claim := models.Claim{Floor: floor, Direction: direction}
		for _, d := range []models.Direction{models.DirectionUp, models.DirectionDown} {
			if at, ok := c.queue(d).remove(floor); ok {
				c.recordRemoval(d, at)
				if claim.PressedAt.IsZero() || at.Before(claim.PressedAt) {
					claim.PressedAt = at
				}
			}
		}
		c.checkClaimedLocked(floor)

		telemetry.ClaimsTotal.WithLabelValues(cabinLabel, "claimed").Inc()
		span.SetAttributes(
			attribute.Int("claim.floor", floor),
			attribute.String("claim.direction", string(direction)),
		)
		c.logger.Debug().
			Int("cabin_id", view.ID).
			Int("floor", floor).
			Str("direction", string(direction)).
			Msg("hall call claimed")
		return claim, true
	}

	telemetry.ClaimsTotal.WithLabelValues(cabinLabel, "none").Inc()
	return models.Claim{}, false
}

// preemptedByLocked returns the id of the first other cabin that will stop
// at floor anyway, or -1.
func (c *Coordinator) preemptedByLocked(candidateID, floor int, direction models.Direction) int {
	for _, p := range c.preemptors {
		if p.CabinID() == candidateID {
			continue
		}
		if p.TryPreemptivelyClaim(floor, direction) {
			return p.CabinID()
		}
	}
	return -1
}

// checkClaimedLocked repairs and reports a claimed floor still present in a queue.
func (c *Coordinator) checkClaimedLocked(floor int) {
	for _, d := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		q := c.queue(d)
		if !q.has(floor) {
			continue
		}
		telemetry.InvariantViolationsTotal.Inc()
		c.logger.Error().
			Err(ErrInvariantViolation).
			Int("floor", floor).
			Str("direction", string(d)).
			Msg("stale pending entry after claim, removing")
		for q.has(floor) {
			q.remove(floor)
		}
	}
}

func (c *Coordinator) recordRemoval(direction models.Direction, pressedAt time.Time) {
	telemetry.ServicedTotal.WithLabelValues(string(direction)).Inc()
	telemetry.PendingRequests.WithLabelValues(string(direction)).Set(float64(c.queue(direction).len()))
	if !pressedAt.IsZero() {
		telemetry.RequestWaitSeconds.Observe(c.now().Sub(pressedAt).Seconds())
	}
}

func (c *Coordinator) pressedAtLocked(floor int, direction models.Direction) (time.Time, bool) {
	switch direction {
	case models.DirectionUp:
		return c.up.pressedAt(floor)
	case models.DirectionDown:
		return c.down.pressedAt(floor)
	}
	upAt, upOK := c.up.pressedAt(floor)
	downAt, downOK := c.down.pressedAt(floor)
	switch {
	case upOK && downOK:
		if downAt.Before(upAt) {
			return downAt, true
		}
		return upAt, true
	case upOK:
		return upAt, true
	case downOK:
		return downAt, true
	}
	return time.Time{}, false
}

func (c *Coordinator) mergedLocked() map[int]time.Time {
	merged := make(map[int]time.Time, c.up.len()+c.down.len())
	for floor, at := range c.down.since {
		merged[floor] = at
	}
	for floor, at := range c.up.since {
		if existing, ok := merged[floor]; !ok || at.Before(existing) {
			merged[floor] = at
		}
	}
	return merged
}

// unionLocked returns up floors then down-only floors, without duplicates.
func (c *Coordinator) unionLocked() []int {
	floors := c.up.floors()
	for _, floor := range c.down.order {
		if !c.up.has(floor) {
			floors = append(floors, floor)
		}
	}
	return floors
}

func (c *Coordinator) directionLocked(floor int) models.Direction {
	up, down := c.up.has(floor), c.down.has(floor)
	switch {
	case up && down:
		return models.DirectionBoth
	case up:
		return models.DirectionUp
	case down:
		return models.DirectionDown
	}
	return models.DirectionNone
}

func (c *Coordinator) queue(direction models.Direction) *pendingQueue {
	if direction == models.DirectionDown {
		return c.down
	}
	return c.up
}

func (c *Coordinator) inRange(floor int) bool {
	return floor >= 0 && (c.floors <= 0 || floor < c.floors)
}

func expand(direction models.Direction) []models.Direction {
	if direction.IsTravel() {
		return []models.Direction{direction}
	}
	return []models.Direction{models.DirectionUp, models.DirectionDown}
}

// sameFloors reports whether got is a permutation of want.
func sameFloors(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[int]int, len(want))
	for _, f := range want {
		seen[f]++
	}
	for _, f := range got {
		if seen[f] == 0 {
			return false
		}
		seen[f]--
	}
	return true
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package simulation

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/models"
)

// ErrIncomplete is returned when a run hits its tick limit with riders
// still travelling.
var ErrIncomplete = errors.New("simulation ended with riders undelivered")

// Summary reports how a run went. Times are in ticks.
type Summary struct {
	RunID        string  `json:"run_id"`
	Scenario     string  `json:"scenario"`
	Ticks        int     `json:"ticks"`
	Riders       int     `json:"riders"`
	Delivered    int     `json:"delivered"`
	Waiting      int     `json:"waiting"`
	Aboard       int     `json:"aboard"`
	AvgWaitTicks float64 `json:"avg_wait_ticks"`
	MaxWaitTicks int     `json:"max_wait_ticks"`
	AvgTripTicks float64 `json:"avg_trip_ticks"`
}

// Runner advances a building one tick at a time and publishes what happens.
type Runner struct {
	b        *Building
	bus      events.Broker
	scenario *Scenario
	logger   zerolog.Logger
	runID    string
	rng      *rand.Rand

	tick     int
	nextCall int
	riders   []*Rider
}

// NewRunner creates a runner for scenario on b.
func NewRunner(b *Building, bus events.Broker, scenario *Scenario, logger zerolog.Logger) *Runner {
	runID := uuid.NewString()
	seed := scenario.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Runner{
		b:        b,
		bus:      bus,
		scenario: scenario,
		logger:   logger.With().Str("component", "simulation").Str("run_id", runID).Logger(),
		runID:    runID,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Run steps every scenario tick until all riders are delivered, the tick
// limit is hit, or ctx is done. Hitting the limit is only an error for
// scenarios with a fixed set of calls.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	ticker := time.NewTicker(r.scenario.Tick)
	defer ticker.Stop()

	r.logger.Info().
		Str("scenario", r.scenario.Name).
		Int("floors", r.b.Floors()).
		Int("cabins", len(r.b.cabins)).
		Msg("simulation started")

	for {
		select {
		case <-ctx.Done():
			if r.scenario.Endless() {
				return r.Summary(), nil
			}
			return r.Summary(), ctx.Err()
		case <-ticker.C:
			r.Step()
			if r.Done() {
				summary := r.Summary()
				r.logger.Info().Int("ticks", summary.Ticks).Int("delivered", summary.Delivered).Msg("simulation finished")
				return summary, nil
			}
			if r.scenario.MaxTicks > 0 && r.tick >= r.scenario.MaxTicks {
				if r.scenario.ArrivalRate > 0 || r.scenario.Continuous {
					return r.Summary(), nil
				}
				return r.Summary(), ErrIncomplete
			}
		}
	}
}

// Step advances the building by one tick.
func (r *Runner) Step() {
	for r.nextCall < len(r.scenario.Calls) && r.scenario.Calls[r.nextCall].Tick <= r.tick {
		call := r.scenario.Calls[r.nextCall]
		r.AddRider(call.From, call.To)
		r.nextCall++
	}
	if r.scenario.ArrivalRate > 0 && r.rng.Float64() < r.scenario.ArrivalRate {
		from := r.rng.IntN(r.b.floors)
		to := r.rng.IntN(r.b.floors - 1)
		if to >= from {
			to++
		}
		r.AddRider(from, to)
	}

	for _, c := range r.b.cabins {
		r.stepCabin(c)
	}
	r.tick++
}

// Tick returns the number of completed steps.
func (r *Runner) Tick() int {
	return r.tick
}

// Done reports whether every scheduled rider has been delivered.
func (r *Runner) Done() bool {
	if r.scenario.Continuous || r.scenario.ArrivalRate > 0 || r.nextCall < len(r.scenario.Calls) {
		return false
	}
	if r.b.Waiting() > 0 {
		return false
	}
	for _, c := range r.b.cabins {
		if c.Riders() > 0 {
			return false
		}
	}
	return true
}

// AddRider puts a rider on floor from and presses the hall button if it is
// not lit yet.
func (r *Runner) AddRider(from, to int) {
	rider := NewRider(from, to, r.tick)
	r.riders = append(r.riders, rider)
	r.b.waiting[from] = append(r.b.waiting[from], rider)
	r.pressHall(from, rider.Direction())
	r.logger.Debug().Str("rider_id", rider.ID).Int("from", from).Int("to", to).Msg("rider arrived")
}

func (r *Runner) pressHall(floor int, direction models.Direction) {
	if r.b.isLit(floor, direction) {
		return
	}
	r.b.setLit(floor, direction, true)
	eventType := events.EventHallUpPressed
	if direction == models.DirectionDown {
		eventType = events.EventHallDownPressed
	}
	r.bus.Publish(eventType, events.Payload{events.KeyFloor: floor})
}

type cabinEvent struct {
	eventType events.EventType
	payload   events.Payload
}

// stepCabin moves c one phase: board with doors open, announce idle, stop
// at the front of the queue, or travel one floor.
func (r *Runner) stepCabin(c *Cabin) {
	c.mu.Lock()
	if c.doorsOpen {
		c.doorsOpen = false
		floor := c.floor
		indicator := indicatorOf(c.up, c.down)
		c.mu.Unlock()
		r.board(c, floor, indicator)
		return
	}

	var out []cabinEvent
	switch {
	case len(c.queue) == 0:
		if c.moving {
			out = append(out, r.arriveLocked(c))
		} else if !c.idleSent {
			c.idleSent = true
			out = append(out, cabinEvent{events.EventCabinIdle, events.CabinPayload(c.id, c.floor, models.DirectionNone)})
		}
	case c.queue[0] == c.floor:
		out = append(out, r.arriveLocked(c))
	default:
		direction := models.Toward(c.floor, c.queue[0])
		if direction == models.DirectionUp {
			c.floor++
		} else {
			c.floor--
		}
		c.moving = true
		if c.floor == c.queue[0] {
			out = append(out, r.arriveLocked(c))
		} else {
			out = append(out, cabinEvent{events.EventCabinPassingFloor, events.CabinPayload(c.id, c.floor, direction)})
		}
	}
	c.mu.Unlock()

	for _, evt := range out {
		r.bus.Publish(evt.eventType, evt.payload)
	}
}

// arriveLocked stops c at its current floor, lets riders off, and opens the
// doors for the next tick.
func (r *Runner) arriveLocked(c *Cabin) cabinEvent {
	for len(c.queue) > 0 && c.queue[0] == c.floor {
		c.queue = c.queue[1:]
	}
	c.moving = false
	c.doorsOpen = true

	kept := c.riders[:0]
	for _, rider := range c.riders {
		if rider.To == c.floor {
			rider.DoneTick = r.tick
			continue
		}
		kept = append(kept, rider)
	}
	c.riders = kept
	delete(c.pressed, c.floor)

	return cabinEvent{events.EventCabinStoppedAtFloor, events.CabinPayload(c.id, c.floor, models.DirectionNone)}
}

// board moves waiting riders heading the advertised way into c.
func (r *Runner) board(c *Cabin, floor int, indicator models.Direction) {
	var (
		out    []cabinEvent
		remain []*Rider
	)

	c.mu.Lock()
	for _, rider := range r.b.waiting[floor] {
		if !serves(indicator, rider.Direction()) || len(c.riders) >= c.capacity {
			remain = append(remain, rider)
			continue
		}
		rider.BoardedTick = r.tick
		c.riders = append(c.riders, rider)
		if !c.pressed[rider.To] {
			c.pressed[rider.To] = true
			out = append(out, cabinEvent{events.EventCabinButtonPressed, events.CabinPayload(c.id, rider.To, models.DirectionNone)})
		}
	}
	c.mu.Unlock()

	r.b.waiting[floor] = remain
	for _, direction := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		if serves(indicator, direction) {
			r.b.setLit(floor, direction, false)
		}
	}

	for _, evt := range out {
		r.bus.Publish(evt.eventType, evt.payload)
	}
	// The dispatcher may have written off calls this stop did not serve.
	// Whoever is left presses again.
	for _, rider := range remain {
		r.b.setLit(floor, rider.Direction(), false)
	}
	for _, rider := range remain {
		r.pressHall(floor, rider.Direction())
	}
}

// Summary reports the run so far.
func (r *Runner) Summary() Summary {
	s := Summary{
		RunID:    r.runID,
		Scenario: r.scenario.Name,
		Ticks:    r.tick,
		Riders:   len(r.riders),
	}

	var waitSum, tripSum, boarded int
	for _, rider := range r.riders {
		switch {
		case rider.DoneTick >= 0:
			s.Delivered++
			tripSum += rider.DoneTick - rider.BoardedTick
		case rider.BoardedTick >= 0:
			s.Aboard++
		default:
			s.Waiting++
		}
		if rider.BoardedTick >= 0 {
			boarded++
			wait := rider.BoardedTick - rider.ArrivedTick
			waitSum += wait
			if wait > s.MaxWaitTicks {
				s.MaxWaitTicks = wait
			}
		}
	}
	if boarded > 0 {
		s.AvgWaitTicks = float64(waitSum) / float64(boarded)
	}
	if s.Delivered > 0 {
		s.AvgTripTicks = float64(tripSum) / float64(s.Delivered)
	}
	return s
}

func indicatorOf(up, down bool) models.Direction {
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

func serves(indicator, want models.Direction) bool {
	return indicator == models.DirectionBoth || indicator == want
}

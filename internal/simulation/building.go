/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package simulation is a tick-driven building used by the CLI and the end
// to end tests. It emits the cabin and hall events the dispatcher consumes.
package simulation

import (
	"github.com/google/uuid"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/models"
)

// Rider is one passenger travelling From -> To.
type Rider struct {
	ID          string
	From        int
	To          int
	ArrivedTick int
	BoardedTick int
	DoneTick    int
}

// NewRider creates a rider appearing at tick.
func NewRider(from, to, tick int) *Rider {
	return &Rider{ID: uuid.NewString(), From: from, To: to, ArrivedTick: tick, BoardedTick: -1, DoneTick: -1}
}

// Direction is the hall button the rider presses.
func (r *Rider) Direction() models.Direction {
	return models.Toward(r.From, r.To)
}

// Building is a set of cabins plus the riders waiting on each floor.
type Building struct {
	floors int
	cabins []*Cabin

	// Touched only by the runner goroutine.
	waiting map[int][]*Rider
	lit     map[int]map[models.Direction]bool
}

// NewBuilding parks one cabin per entry of start.
func NewBuilding(floors, capacity int, start []int) *Building {
	b := &Building{
		floors:  floors,
		waiting: make(map[int][]*Rider),
		lit:     make(map[int]map[models.Direction]bool),
	}
	for id, floor := range start {
		b.cabins = append(b.cabins, NewCabin(id, floors, capacity, floor))
	}
	return b
}

func (b *Building) Floors() int { return b.floors }

func (b *Building) Cabins() []building.Cabin {
	out := make([]building.Cabin, len(b.cabins))
	for i, c := range b.cabins {
		out[i] = c
	}
	return out
}

// Cabin returns the simulated cabin with id.
func (b *Building) Cabin(id int) (*Cabin, bool) {
	if id < 0 || id >= len(b.cabins) {
		return nil, false
	}
	return b.cabins[id], true
}

// Waiting returns how many riders are waiting on all floors.
func (b *Building) Waiting() int {
	n := 0
	for _, riders := range b.waiting {
		n += len(riders)
	}
	return n
}

func (b *Building) isLit(floor int, direction models.Direction) bool {
	return b.lit[floor][direction]
}

func (b *Building) setLit(floor int, direction models.Direction, on bool) {
	if b.lit[floor] == nil {
		b.lit[floor] = make(map[models.Direction]bool)
	}
	b.lit[floor][direction] = on
}

var _ building.Building = (*Building)(nil)

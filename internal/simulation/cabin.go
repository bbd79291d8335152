/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package simulation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/models"
)

// Cabin is an in-memory elevator car. Readers get copies; the runner is the
// only goroutine that moves it.
type Cabin struct {
	id       int
	floors   int
	capacity int

	mu        sync.Mutex
	floor     int
	queue     []int
	pressed   map[int]bool
	riders    []*Rider
	up        bool
	down      bool
	moving    bool
	doorsOpen bool
	idleSent  bool
}

// NewCabin creates a cabin parked at floor with both indicators lit.
func NewCabin(id, floors, capacity, floor int) *Cabin {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cabin{
		id:       id,
		floors:   floors,
		capacity: capacity,
		floor:    floor,
		pressed:  make(map[int]bool),
		up:       true,
		down:     true,
	}
}

func (c *Cabin) ID() int { return c.id }

func (c *Cabin) CurrentFloor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.floor
}

func (c *Cabin) LoadFactor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(len(c.riders)) / float64(c.capacity)
}

func (c *Cabin) PressedFloors() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.pressed))
	for floor := range c.pressed {
		out = append(out, floor)
	}
	sort.Ints(out)
	return out
}

func (c *Cabin) DestinationDirection() models.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return models.DirectionStopped
	}
	return models.Toward(c.floor, c.queue[0])
}

func (c *Cabin) DestinationQueue() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.queue...)
}

func (c *Cabin) Position() (int, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.floor, append([]int(nil), c.queue...)
}

func (c *Cabin) SetDestinationQueue(queue []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append([]int(nil), queue...)
}

// CheckDestinationQueue re-arms the idle notification once work is queued.
func (c *Cabin) CheckDestinationQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		c.idleSent = false
	}
}

func (c *Cabin) GoToFloor(floor int) error {
	if !building.ValidFloor(floor, c.floors) {
		return fmt.Errorf("cabin %d go to %d: %w", c.id, floor, building.ErrFloorOutOfRange)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, floor)
	c.idleSent = false
	return nil
}

func (c *Cabin) GoingUpIndicator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *Cabin) SetGoingUpIndicator(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = on
}

func (c *Cabin) GoingDownIndicator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.down
}

func (c *Cabin) SetGoingDownIndicator(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = on
}

// Riders returns the number of riders aboard.
func (c *Cabin) Riders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.riders)
}

var _ building.Cabin = (*Cabin)(nil)

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package building describes the cabins and floors the dispatcher drives.
// Implementations live outside the dispatcher; see internal/simulation.
package building

import (
	"errors"

	"github.com/friendsincode/elevatord/internal/models"
)

// ErrFloorOutOfRange is returned by cabins asked to go to a floor that does
// not exist.
var ErrFloorOutOfRange = errors.New("floor out of range")

// Cabin is the command surface of one elevator car. All methods must be safe
// for concurrent use; DestinationQueue and PressedFloors return copies.
type Cabin interface {
	ID() int

	CurrentFloor() int
	LoadFactor() float64
	PressedFloors() []int
	DestinationDirection() models.Direction

	// DestinationQueue returns the committed stops, front first.
	DestinationQueue() []int
	// Position returns the current floor and a copy of the queue read
	// together, so the pair is never torn by a concurrent move.
	Position() (floor int, queue []int)
	// SetDestinationQueue replaces the queue. Call CheckDestinationQueue
	// afterwards to make the cabin act on it.
	SetDestinationQueue(queue []int)
	CheckDestinationQueue()
	// GoToFloor appends floor to the queue.
	GoToFloor(floor int) error

	GoingUpIndicator() bool
	SetGoingUpIndicator(on bool)
	GoingDownIndicator() bool
	SetGoingDownIndicator(on bool)
}

// Building is the fixed roster the dispatcher is built for.
type Building interface {
	Floors() int
	Cabins() []Cabin
}

// IndicatorDirection reads the two indicators as a direction. Neither lit
// reads as DirectionNone.
func IndicatorDirection(c Cabin) models.Direction {
	up, down := c.GoingUpIndicator(), c.GoingDownIndicator()
	switch {
	case up && down:
		return models.DirectionBoth
	case up:
		return models.DirectionUp
	case down:
		return models.DirectionDown
	default:
		return models.DirectionNone
	}
}

// SetIndicators lights the indicators for direction. Both and stopped light
// both.
func SetIndicators(c Cabin, direction models.Direction) {
	switch direction {
	case models.DirectionUp:
		c.SetGoingUpIndicator(true)
		c.SetGoingDownIndicator(false)
	case models.DirectionDown:
		c.SetGoingUpIndicator(false)
		c.SetGoingDownIndicator(true)
	default:
		c.SetGoingUpIndicator(true)
		c.SetGoingDownIndicator(true)
	}
}

// ValidFloor reports whether floor exists in a building of n floors.
func ValidFloor(floor, n int) bool {
	return floor >= 0 && floor < n
}

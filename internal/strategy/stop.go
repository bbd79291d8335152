/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"time"

	"github.com/friendsincode/elevatord/internal/models"
)

const (
	DefaultLoadThreshold = 0.7
	DefaultWaitThreshold = 15 * time.Second
)

// ThresholdStop approves a pickup stop while the cabin is at most
// LoadThreshold full and nobody aboard has waited longer than WaitThreshold.
// Drop-off stops are always approved.
//
// A LoadThreshold of 0 only lets an empty cabin pick up; a WaitThreshold of 0
// refuses pickups as soon as anyone aboard has waited at all.
type ThresholdStop struct {
	LoadThreshold float64
	WaitThreshold time.Duration
}

// DefaultStop returns the stock stop policy (0.7 load, 15s wait).
func DefaultStop() ThresholdStop {
	return ThresholdStop{LoadThreshold: DefaultLoadThreshold, WaitThreshold: DefaultWaitThreshold}
}

func (ThresholdStop) StopToDropOff(models.CabinView, map[int]time.Time, time.Time) bool {
	return true
}

func (p ThresholdStop) StopToPickUp(cabin models.CabinView, passengerSince map[int]time.Time, now time.Time) bool {
	if cabin.LoadFactor > p.LoadThreshold {
		return false
	}
	return maxWait(passengerSince, now) <= p.WaitThreshold
}

func (p ThresholdStop) NextFloor(cabin models.CabinView, _ map[int]time.Time, _ time.Time) (int, bool) {
	return p.NextFloorFromIdle(cabin)
}

// NextFloorFromIdle returns the pressed floor nearest to the cabin.
func (ThresholdStop) NextFloorFromIdle(cabin models.CabinView) (int, bool) {
	return NearestPressed(cabin)
}

func (ThresholdStop) NextDirection(cabin models.CabinView) models.Direction {
	return cabin.Direction
}

// NearestPressed returns the pressed destination closest to the cabin's
// current floor, preferring the lower floor on a tie. The current floor itself
// is skipped. It is also the fallback when a policy suggests garbage.
func NearestPressed(cabin models.CabinView) (int, bool) {
	best, bestDistance := 0, -1
	for _, floor := range cabin.PressedFloors {
		if floor == cabin.CurrentFloor {
			continue
		}
		d := abs(floor - cabin.CurrentFloor)
		if bestDistance < 0 || d < bestDistance || (d == bestDistance && floor < best) {
			best, bestDistance = floor, d
		}
	}
	return best, bestDistance >= 0
}

// SweepStop keeps serving pressed floors in the current direction before
// turning around, which cuts reversals at the cost of longer rides.
type SweepStop struct {
	ThresholdStop
}

func (p SweepStop) NextFloor(cabin models.CabinView, _ map[int]time.Time, _ time.Time) (int, bool) {
	if cabin.Direction.IsTravel() {
		best, found := 0, false
		for _, floor := range cabin.PressedFloors {
			if models.Toward(cabin.CurrentFloor, floor) != cabin.Direction {
				continue
			}
			if !found || abs(floor-cabin.CurrentFloor) < abs(best-cabin.CurrentFloor) {
				best, found = floor, true
			}
		}
		if found {
			return best, true
		}
	}
	return NearestPressed(cabin)
}

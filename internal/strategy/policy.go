/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package strategy holds the pluggable decision policies used by cabin
// controllers and the fleet coordinator. Every policy is a pure function of
// its arguments, so a policy can be swapped while cabins are moving without
// touching any queue.
package strategy

import (
	"time"

	"github.com/friendsincode/elevatord/internal/models"
)

// FloorOrderingPolicy orders candidate floors by desirability for a cabin.
type FloorOrderingPolicy interface {
	// OrderFloors returns a new slice; floors is left untouched.
	// waitingSince may be nil or miss floors.
	OrderFloors(floors []int, cabin models.CabinView, waitingSince map[int]time.Time, now time.Time) []int
}

// StopDecisionPolicy answers the per-cabin stop/go questions.
type StopDecisionPolicy interface {
	// StopToDropOff is consulted only when the floor is a pressed destination.
	StopToDropOff(cabin models.CabinView, passengerSince map[int]time.Time, now time.Time) bool

	// StopToPickUp is consulted only when a hall call is pending in the travel direction.
	StopToPickUp(cabin models.CabinView, passengerSince map[int]time.Time, now time.Time) bool

	// NextFloor picks where to go after a stop left the queue empty.
	NextFloor(cabin models.CabinView, passengerSince map[int]time.Time, now time.Time) (int, bool)

	// NextFloorFromIdle picks where to go when riders boarded an idle cabin.
	NextFloorFromIdle(cabin models.CabinView) (int, bool)

	// NextDirection is the direction the cabin will serve once it reaches its destination.
	NextDirection(cabin models.CabinView) models.Direction
}

// Set bundles the two policies that make up a named strategy.
type Set struct {
	Kind     Kind
	Ordering FloorOrderingPolicy
	Stop     StopDecisionPolicy
}

// Name returns the variant name for logs and status output.
func (s Set) Name() string {
	if s.Kind == "" {
		return string(KindDefault)
	}
	return string(s.Kind)
}

// maxWait returns the longest wait among known passengers.
func maxWait(passengerSince map[int]time.Time, now time.Time) time.Duration {
	var longest time.Duration
	for _, since := range passengerSince {
		if since.IsZero() {
			continue
		}
		if waited := now.Sub(since); waited > longest {
			longest = waited
		}
	}
	return longest
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

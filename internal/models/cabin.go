/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// CabinStateEnum defines the controller states of a cabin.
type CabinStateEnum string

const (
	CabinStateIdle            CabinStateEnum = "idle"             // No destination, nobody aboard
	CabinStateMoving          CabinStateEnum = "moving"           // Destination queue non-empty
	CabinStateStoppedDeciding CabinStateEnum = "stopped_deciding" // Arrived, choosing what next
)

// CabinView is a point-in-time copy of everything a policy may look at.
type CabinView struct {
	ID            int
	CurrentFloor  int
	Queue         []int
	PressedFloors []int
	LoadFactor    float64
	Direction     Direction
	Floors        int
}

// HasPressed reports whether floor is a pressed in-cabin destination.
func (v CabinView) HasPressed(floor int) bool {
	for _, f := range v.PressedFloors {
		if f == floor {
			return true
		}
	}
	return false
}

// CabinSnapshot is the status view of one controller.
type CabinSnapshot struct {
	ID             int               `json:"id"`
	State          CabinStateEnum    `json:"state"`
	CurrentFloor   int               `json:"current_floor"`
	Queue          []int             `json:"queue"`
	PressedFloors  []int             `json:"pressed_floors"`
	LoadFactor     float64           `json:"load_factor"`
	Indicator      Direction         `json:"indicator"`
	Strategy       string            `json:"strategy"`
	PassengerSince map[int]time.Time `json:"passenger_since,omitempty"`
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the plain data types shared by the dispatcher packages.
package models

import (
	"fmt"
	"strings"
)

// Direction is the travel direction of a cabin or a hall call.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionBoth    Direction = "both"    // Hall calls pending both ways, or a cabin open to either
	DirectionStopped Direction = "stopped" // Cabin with no destination
	DirectionNone    Direction = ""
)

// ParseDirection accepts the wire spellings used by building events.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	case DirectionBoth:
		return DirectionBoth, nil
	case DirectionStopped:
		return DirectionStopped, nil
	case DirectionNone:
		return DirectionNone, nil
	default:
		return DirectionNone, fmt.Errorf("unknown direction %q", s)
	}
}

// IsValid reports whether d is one of the known directions.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionBoth, DirectionStopped, DirectionNone:
		return true
	}
	return false
}

// IsTravel reports whether d is a concrete travel direction.
func (d Direction) IsTravel() bool {
	return d == DirectionUp || d == DirectionDown
}

// Matches reports whether a cabin heading in d can serve a call in want.
// Both sides are treated as wildcards when they are not a concrete direction.
func (d Direction) Matches(want Direction) bool {
	if !d.IsTravel() || !want.IsTravel() {
		return true
	}
	return d == want
}

// Opposite returns the reverse travel direction; non-travel values are returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	}
	return d
}

// Toward returns the direction of travel from one floor to another.
func Toward(from, to int) Direction {
	switch {
	case to > from:
		return DirectionUp
	case to < from:
		return DirectionDown
	default:
		return DirectionStopped
	}
}

func (d Direction) String() string {
	if d == DirectionNone {
		return "none"
	}
	return string(d)
}

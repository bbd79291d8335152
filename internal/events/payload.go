/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"encoding/json"

	"github.com/friendsincode/elevatord/internal/models"
)

// Payload generic event payload.
type Payload map[string]any

// Payload keys used by building and fleet events.
const (
	KeyCabinID   = "cabin_id"
	KeyFloor     = "floor"
	KeyDirection = "direction"
	KeyKind      = "kind"
	KeyReason    = "reason"
)

// CabinPayload builds the payload for a cabin event.
func CabinPayload(cabinID, floor int, direction models.Direction) Payload {
	p := Payload{KeyCabinID: cabinID, KeyFloor: floor}
	if direction != models.DirectionNone {
		p[KeyDirection] = string(direction)
	}
	return p
}

// Int reads an integer field. Payloads that crossed a JSON transport carry
// numbers as float64.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// String reads a string field.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Direction reads the direction field. Missing or malformed values yield
// DirectionNone and false.
func (p Payload) Direction() (models.Direction, bool) {
	switch v := p[KeyDirection].(type) {
	case models.Direction:
		return v, v.IsValid()
	case string:
		d, err := models.ParseDirection(v)
		if err != nil {
			return models.DirectionNone, false
		}
		return d, true
	}
	return models.DirectionNone, false
}

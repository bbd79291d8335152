/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// PendingRequest is an unclaimed hall call.
type PendingRequest struct {
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	PressedAt time.Time `json:"pressed_at"`
}

// WaitedFor returns how long the request has been outstanding at now.
func (r PendingRequest) WaitedFor(now time.Time) time.Duration {
	if r.PressedAt.IsZero() || now.Before(r.PressedAt) {
		return 0
	}
	return now.Sub(r.PressedAt)
}

// Claim is the result of a cabin taking ownership of a pending floor.
type Claim struct {
	Floor     int
	Direction Direction // Up, Down or Both when the floor was pending both ways
	PressedAt time.Time // Oldest press among the removed entries
}

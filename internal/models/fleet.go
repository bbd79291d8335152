/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// FleetSnapshot is the status view of the whole dispatcher.
type FleetSnapshot struct {
	InstanceID string           `json:"instance_id"`
	Strategy   string           `json:"strategy"`
	Floors     int              `json:"floors"`
	Running    bool             `json:"running"`
	Pending    []PendingRequest `json:"pending"`
	Cabins     []CabinSnapshot  `json:"cabins"`
	TakenAt    time.Time        `json:"taken_at"`
}

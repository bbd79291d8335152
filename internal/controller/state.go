/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package controller

import (
	"fmt"

	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

var cabinStates = []models.CabinStateEnum{
	models.CabinStateIdle,
	models.CabinStateMoving,
	models.CabinStateStoppedDeciding,
}

// transition records a state change. Cabin events are the ground truth, so
// an unexpected transition is logged and applied anyway.
func (c *Controller) transition(to models.CabinStateEnum) {
	c.dataMu.Lock()
	from := c.state
	c.state = to
	if to == models.CabinStateMoving {
		c.waiting = false
	}
	c.dataMu.Unlock()

	if from == to {
		return
	}
	if !isValidTransition(from, to) {
		c.logger.Warn().
			Err(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)).
			Msg("unexpected cabin state change")
	}
	for _, state := range cabinStates {
		value := 0.0
		if state == to {
			value = 1
		}
		telemetry.CabinState.WithLabelValues(c.label, string(state)).Set(value)
	}
	c.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("state transition")
}

func isValidTransition(from, to models.CabinStateEnum) bool {
	validTransitions := map[models.CabinStateEnum][]models.CabinStateEnum{
		models.CabinStateIdle: {
			models.CabinStateMoving,
			models.CabinStateStoppedDeciding,
		},
		models.CabinStateMoving: {
			models.CabinStateStoppedDeciding,
		},
		models.CabinStateStoppedDeciding: {
			models.CabinStateMoving,
			models.CabinStateIdle,
		},
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}

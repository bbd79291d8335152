/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"sort"
	"time"

	"github.com/friendsincode/elevatord/internal/models"
)

// NearestFirst orders by absolute distance from the cabin. Ties go to the
// floor that has been waiting longer, then to the lower floor.
type NearestFirst struct{}

func (NearestFirst) OrderFloors(floors []int, cabin models.CabinView, waitingSince map[int]time.Time, now time.Time) []int {
	out := append([]int(nil), floors...)
	sort.SliceStable(out, func(i, j int) bool {
		di := abs(out[i] - cabin.CurrentFloor)
		dj := abs(out[j] - cabin.CurrentFloor)
		if di != dj {
			return di < dj
		}
		if older, decided := olderFirst(out[i], out[j], waitingSince); decided {
			return older
		}
		return out[i] < out[j]
	})
	return out
}

// LongestWaitFirst orders by first-press time, oldest first. Floors without a
// known timestamp go last; ties fall back to distance.
type LongestWaitFirst struct{}

func (LongestWaitFirst) OrderFloors(floors []int, cabin models.CabinView, waitingSince map[int]time.Time, now time.Time) []int {
	out := append([]int(nil), floors...)
	sort.SliceStable(out, func(i, j int) bool {
		if older, decided := olderFirst(out[i], out[j], waitingSince); decided {
			return older
		}
		di := abs(out[i] - cabin.CurrentFloor)
		dj := abs(out[j] - cabin.CurrentFloor)
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// Weighted trades travel distance against waiting time: each floor of travel
// costs FloorCost, each unit of waiting earns the same amount back.
type Weighted struct {
	FloorCost time.Duration
}

func (w Weighted) OrderFloors(floors []int, cabin models.CabinView, waitingSince map[int]time.Time, now time.Time) []int {
	cost := w.FloorCost
	if cost <= 0 {
		cost = 2 * time.Second
	}
	score := func(floor int) time.Duration {
		s := time.Duration(abs(floor-cabin.CurrentFloor)) * cost
		if since, ok := waitingSince[floor]; ok && !since.IsZero() {
			s -= now.Sub(since)
		}
		return s
	}
	out := append([]int(nil), floors...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}

// olderFirst compares first-press times. decided is false when the floors
// cannot be told apart by timestamp.
func olderFirst(a, b int, waitingSince map[int]time.Time) (older bool, decided bool) {
	ta, okA := waitingSince[a]
	tb, okB := waitingSince[b]
	okA = okA && !ta.IsZero()
	okB = okB && !tb.IsZero()
	switch {
	case okA && okB:
		if ta.Equal(tb) {
			return false, false
		}
		return ta.Before(tb), true
	case okA:
		return true, true
	case okB:
		return false, true
	}
	return false, false
}

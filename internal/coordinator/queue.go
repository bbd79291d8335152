/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coordinator

import "time"

// pendingQueue is an insertion-ordered set of floors with their first-press time.
type pendingQueue struct {
	order []int
	since map[int]time.Time
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{since: make(map[int]time.Time)}
}

// add inserts floor unless present. It returns the stored timestamp and
// whether the floor was newly added.
func (q *pendingQueue) add(floor int, at time.Time) (time.Time, bool) {
	if existing, ok := q.since[floor]; ok {
		return existing, false
	}
	q.order = append(q.order, floor)
	q.since[floor] = at
	return at, true
}

// remove deletes floor; removing an absent floor is a no-op.
func (q *pendingQueue) remove(floor int) (time.Time, bool) {
	at, ok := q.since[floor]
	if !ok {
		return time.Time{}, false
	}
	delete(q.since, floor)
	for i, f := range q.order {
		if f == floor {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return at, true
}

func (q *pendingQueue) has(floor int) bool {
	_, ok := q.since[floor]
	return ok
}

func (q *pendingQueue) pressedAt(floor int) (time.Time, bool) {
	at, ok := q.since[floor]
	return at, ok
}

func (q *pendingQueue) floors() []int {
	return append([]int(nil), q.order...)
}

func (q *pendingQueue) len() int {
	return len(q.order)
}

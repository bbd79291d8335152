/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"

	"github.com/friendsincode/elevatord/internal/telemetry"
)

// EventType enumerates event categories.
type EventType string

const (
	// Cabin events, keyed by cabin_id
	EventCabinIdle           EventType = "cabin.idle"
	EventCabinButtonPressed  EventType = "cabin.floor_button_pressed"
	EventCabinPassingFloor   EventType = "cabin.passing_floor"
	EventCabinStoppedAtFloor EventType = "cabin.stopped_at_floor"

	// Hall call buttons, keyed by floor
	EventHallUpPressed   EventType = "hall.up_button_pressed"
	EventHallDownPressed EventType = "hall.down_button_pressed"

	// Dispatcher decisions
	EventHallCallServiced EventType = "fleet.serviced"
	EventCabinClaimed     EventType = "fleet.claimed"
	EventCabinRedirected  EventType = "fleet.redirected"
	EventStrategyChanged  EventType = "fleet.strategy_changed"
)

// CabinEvents are the event types a cabin controller consumes.
var CabinEvents = []EventType{
	EventCabinIdle,
	EventCabinButtonPressed,
	EventCabinPassingFloor,
	EventCabinStoppedAtFloor,
}

// HallEvents are the hall call button events.
var HallEvents = []EventType{EventHallUpPressed, EventHallDownPressed}

// DefaultBufferSize is the subscriber channel capacity used by NewBus.
const DefaultBufferSize = 256

// Event is a delivered payload tagged with its type.
type Event struct {
	Type    EventType
	Payload Payload
}

// Subscriber receives events. Events of all subscribed types arrive on the
// one channel in publish order.
type Subscriber chan Event

// Broker is the publish/subscribe surface shared by the in-process bus and
// the distributed bridges.
type Broker interface {
	Subscribe(eventTypes ...EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	bufferSize int

	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return NewBusWithBuffer(DefaultBufferSize)
}

// NewBusWithBuffer creates an event bus whose subscribers buffer size events.
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{bufferSize: size, subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers one subscriber for all of the given event types.
func (b *Bus) Subscribe(eventTypes ...EventType) Subscriber {
	ch := make(Subscriber, b.bufferSize)
	b.mu.Lock()
	for _, eventType := range eventTypes {
		b.subs[eventType] = append(b.subs[eventType], ch)
	}
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. It never blocks; a full subscriber
// misses the event and the drop is counted.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- Event{Type: eventType, Payload: payload}:
		default:
			telemetry.EventsDroppedTotal.WithLabelValues(string(eventType)).Inc()
		}
	}
}

// Unsubscribe removes the subscriber from every type and closes it.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	found := false
	for eventType, subs := range b.subs {
		for i, candidate := range subs {
			if candidate == sub {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				found = true
				break
			}
		}
	}
	if found {
		close(sub)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"encoding/json"
	"testing"

	"github.com/friendsincode/elevatord/internal/models"
)

func TestBus_OrderAcrossTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(CabinEvents...)
	defer bus.Unsubscribe(sub)

	bus.Publish(EventCabinPassingFloor, CabinPayload(0, 3, models.DirectionUp))
	bus.Publish(EventCabinStoppedAtFloor, CabinPayload(0, 4, models.DirectionNone))
	bus.Publish(EventCabinIdle, CabinPayload(0, 4, models.DirectionNone))

	want := []EventType{EventCabinPassingFloor, EventCabinStoppedAtFloor, EventCabinIdle}
	for i, eventType := range want {
		evt := <-sub
		if evt.Type != eventType {
			t.Fatalf("event %d: got %s, want %s", i, evt.Type, eventType)
		}
	}
}

func TestBus_IgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventHallUpPressed)
	defer bus.Unsubscribe(sub)

	bus.Publish(EventHallDownPressed, Payload{KeyFloor: 2})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event %s", evt.Type)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBusWithBuffer(1)
	sub := bus.Subscribe(EventHallUpPressed)
	defer bus.Unsubscribe(sub)

	bus.Publish(EventHallUpPressed, Payload{KeyFloor: 1})
	bus.Publish(EventHallUpPressed, Payload{KeyFloor: 2})

	evt := <-sub
	if floor, _ := evt.Payload.Int(KeyFloor); floor != 1 {
		t.Fatalf("got floor %d, want 1", floor)
	}
}

func TestBus_UnsubscribeCloses(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(HallEvents...)
	bus.Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	// A second unsubscribe must not panic on a closed channel.
	bus.Unsubscribe(sub)
	bus.Publish(EventHallUpPressed, Payload{KeyFloor: 1})
}

func TestPayload_Int(t *testing.T) {
	var decoded Payload
	if err := json.Unmarshal([]byte(`{"floor": 7, "bad": 1.5, "name": "x"}`), &decoded); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		payload Payload
		key     string
		want    int
		wantOK  bool
	}{
		{"native int", Payload{KeyFloor: 3}, KeyFloor, 3, true},
		{"json number", decoded, KeyFloor, 7, true},
		{"fractional", decoded, "bad", 0, false},
		{"string", decoded, "name", 0, false},
		{"missing", Payload{}, KeyFloor, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.payload.Int(tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Int(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPayload_Direction(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    models.Direction
		wantOK  bool
	}{
		{"typed", Payload{KeyDirection: models.DirectionDown}, models.DirectionDown, true},
		{"string", Payload{KeyDirection: "up"}, models.DirectionUp, true},
		{"malformed", Payload{KeyDirection: "sideways"}, models.DirectionNone, false},
		{"missing", Payload{}, models.DirectionNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.payload.Direction()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Direction() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/events"
)

func TestMessageRoundTrip(t *testing.T) {
	data, err := marshalMessage(events.EventHallUpPressed, events.Payload{events.KeyFloor: 3}, "node-a")
	if err != nil {
		t.Fatal(err)
	}

	msg, err := unmarshalMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.EventType != events.EventHallUpPressed || msg.NodeID != "node-a" || msg.MessageID == "" {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if floor, ok := msg.Payload.Int(events.KeyFloor); !ok || floor != 3 {
		t.Fatalf("floor = %d, %v; want 3", floor, ok)
	}
}

func TestUnmarshalMessage_Rejects(t *testing.T) {
	for _, raw := range []string{`not json`, `{"payload":{}}`} {
		if _, err := unmarshalMessage([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestEventTypeFrom(t *testing.T) {
	got, ok := eventTypeFrom(DefaultPrefix, channelName(DefaultPrefix, events.EventCabinIdle))
	if !ok || got != events.EventCabinIdle {
		t.Fatalf("got %q, %v", got, ok)
	}
	if _, ok := eventTypeFrom(DefaultPrefix, "other.cabin.idle"); ok {
		t.Fatal("expected foreign channel to be rejected")
	}
}

func TestDeliver_SkipsOwnNode(t *testing.T) {
	local := events.NewBus()
	sub := local.Subscribe(events.EventHallDownPressed)
	defer local.Unsubscribe(sub)

	rb := &RedisBus{local: local, nodeID: "self", prefix: DefaultPrefix, logger: zerolog.Nop()}

	own, _ := marshalMessage(events.EventHallDownPressed, events.Payload{events.KeyFloor: 1}, "self")
	rb.deliver(channelName(DefaultPrefix, events.EventHallDownPressed), own)

	remote, _ := marshalMessage(events.EventHallDownPressed, events.Payload{events.KeyFloor: 2}, "peer")
	rb.deliver(channelName(DefaultPrefix, events.EventHallDownPressed), remote)

	select {
	case evt := <-sub:
		if floor, _ := evt.Payload.Int(events.KeyFloor); floor != 2 {
			t.Fatalf("got floor %d, want 2", floor)
		}
	case <-time.After(time.Second):
		t.Fatal("remote event not delivered")
	}
	select {
	case evt := <-sub:
		t.Fatalf("unexpected extra event %+v", evt)
	default:
	}
}

func TestNATSBus_FallbackWhenUnreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.MaxReconnects = 0
	cfg.Timeout = 100 * time.Millisecond

	local := events.NewBus()
	nb, err := NewNATSBus(cfg, local, "node", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer nb.Close()

	if nb.Connected() {
		t.Fatal("expected fallback mode")
	}

	sub := nb.Subscribe(events.EventHallUpPressed)
	defer nb.Unsubscribe(sub)
	nb.Publish(events.EventHallUpPressed, events.Payload{events.KeyFloor: 4})

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("local delivery failed in fallback mode")
	}
}

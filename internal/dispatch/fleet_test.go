/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/simulation"
	"github.com/friendsincode/elevatord/internal/strategy"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *simulation.Building
		opts Options
	}{
		{"one floor", simulation.NewBuilding(1, 4, []int{0}), Options{}},
		{"no cabins", simulation.NewBuilding(5, 4, nil), Options{}},
		{"unknown strategy", simulation.NewBuilding(5, 4, []int{0}), Options{Strategy: "fastest"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.b, events.NewBus(), tt.opts, zerolog.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// Two idle cabins on floors 1 and 5 and one up call on floor 3: exactly one
// cabin takes it and the other keeps waiting.
func TestFleet_OneCabinClaimsContestedCall(t *testing.T) {
	for run := 0; run < 10; run++ {
		bus := events.NewBus()
		b := simulation.NewBuilding(6, 8, []int{1, 5})
		fleet, err := New(b, bus, Options{IdleInterval: 5 * time.Millisecond}, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		if err := fleet.Start(ctx); err != nil {
			t.Fatal(err)
		}
		bus.Publish(events.EventCabinIdle, events.CabinPayload(0, 1, models.DirectionNone))
		bus.Publish(events.EventCabinIdle, events.CabinPayload(1, 5, models.DirectionNone))
		bus.Publish(events.EventHallUpPressed, events.Payload{events.KeyFloor: 3})

		a, _ := b.Cabin(0)
		c, _ := b.Cabin(1)
		waitFor(t, func() bool { return len(a.DestinationQueue())+len(c.DestinationQueue()) > 0 })
		time.Sleep(30 * time.Millisecond)

		qa, qc := a.DestinationQueue(), c.DestinationQueue()
		if len(qa)+len(qc) != 1 {
			t.Fatalf("run %d: queues %v and %v, want exactly one claim", run, qa, qc)
		}
		if fleet.Coordinator().RequestHasWaitingPassenger(3, models.DirectionUp) {
			t.Fatalf("run %d: floor 3 still pending", run)
		}

		cancel()
		if err := fleet.Stop(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFleet_StartStop(t *testing.T) {
	bus := events.NewBus()
	fleet, err := New(simulation.NewBuilding(4, 4, []int{0}), bus, Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := fleet.Stop(); !errors.Is(err, ErrFleetNotRunning) {
		t.Fatalf("Stop before Start = %v", err)
	}
	if err := fleet.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := fleet.Start(context.Background()); !errors.Is(err, ErrFleetRunning) {
		t.Fatalf("second Start = %v", err)
	}
	if !fleet.Running() {
		t.Fatal("fleet not running")
	}
	if err := fleet.Stop(); err != nil {
		t.Fatal(err)
	}
	ctrl, _ := fleet.Controller(0)
	if ctrl.Running() {
		t.Fatal("controller still running after Stop")
	}
}

func TestFleet_ChangeStrategy(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventStrategyChanged)
	defer bus.Unsubscribe(sub)

	fleet, err := New(simulation.NewBuilding(5, 4, []int{0, 4}), bus, Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := fleet.ChangeStrategy(strategy.KindMinimumWaitingTime); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{0, 1} {
		ctrl, _ := fleet.Controller(id)
		if got := ctrl.Strategy().Kind; got != strategy.KindMinimumWaitingTime {
			t.Errorf("cabin %d strategy = %s", id, got)
		}
	}
	select {
	case evt := <-sub:
		if kind, _ := evt.Payload.String(events.KeyKind); kind != string(strategy.KindMinimumWaitingTime) {
			t.Fatalf("event kind = %q", kind)
		}
	default:
		t.Fatal("no strategy change event")
	}

	if err := fleet.ChangeStrategy("teleport"); !errors.Is(err, strategy.ErrUnknownKind) {
		t.Fatalf("unknown kind err = %v", err)
	}
	if got := fleet.Strategy().Kind; got != strategy.KindMinimumWaitingTime {
		t.Fatalf("failed change replaced strategy with %s", got)
	}
}

func TestFleet_SetResolver(t *testing.T) {
	fleet, err := New(simulation.NewBuilding(5, 4, []int{0}), events.NewBus(), Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	fleet.SetResolver(strategy.ResolverFunc(func(kind strategy.Kind) (strategy.Set, error) {
		return strategy.Set{Kind: kind, Ordering: strategy.LongestWaitFirst{}, Stop: strategy.DefaultStop()}, nil
	}))
	if err := fleet.ChangeStrategy("custom"); err != nil {
		t.Fatal(err)
	}
	if got := fleet.Snapshot().Strategy; got != "custom" {
		t.Fatalf("snapshot strategy = %q", got)
	}
}

func TestFleet_ForceCommands(t *testing.T) {
	b := simulation.NewBuilding(6, 4, []int{0})
	fleet, err := New(b, events.NewBus(), Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := fleet.ForceGoToFloor(ctx, 9, 1); !errors.Is(err, ErrUnknownCabin) {
		t.Fatalf("unknown cabin err = %v", err)
	}
	if err := fleet.ForceGoToFloor(ctx, 0, 4); err != nil {
		t.Fatal(err)
	}
	cabin, _ := b.Cabin(0)
	if got := cabin.DestinationQueue(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("queue = %v", got)
	}
	if err := fleet.ForceStop(0); err != nil {
		t.Fatal(err)
	}
	if got := cabin.DestinationQueue(); len(got) != 0 {
		t.Fatalf("queue after stop = %v", got)
	}
}

func TestFleet_Snapshot(t *testing.T) {
	fleet, err := New(simulation.NewBuilding(5, 4, []int{0, 4}), events.NewBus(), Options{InstanceID: "test"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fleet.RegisterButtonPress(2, models.DirectionDown)

	snap := fleet.Snapshot()
	if snap.InstanceID != "test" || snap.Floors != 5 || snap.Strategy != "default" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Cabins) != 2 || snap.Cabins[0].ID != 0 || snap.Cabins[1].CurrentFloor != 4 {
		t.Fatalf("cabins = %+v", snap.Cabins)
	}
	if len(snap.Pending) != 1 || snap.Pending[0].Floor != 2 {
		t.Fatalf("pending = %+v", snap.Pending)
	}
}

func TestFleet_DeliversScenario(t *testing.T) {
	scenario, err := simulation.ParseScenario([]byte(`
name: e2e
floors: 8
capacity: 6
start_floors: [0, 7]
tick: 10ms
max_ticks: 3000
calls:
  - {tick: 0, from: 3, to: 6}
  - {tick: 0, from: 5, to: 0}
  - {tick: 4, from: 0, to: 7}
  - {tick: 6, from: 6, to: 2}
  - {tick: 10, from: 2, to: 5}
  - {tick: 10, from: 2, to: 1}
`))
	if err != nil {
		t.Fatal(err)
	}

	for _, kind := range strategy.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			bus := events.NewBus()
			b := scenario.Building()
			fleet, err := New(b, bus, Options{Strategy: kind, IdleInterval: 5 * time.Millisecond}, zerolog.Nop())
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := fleet.Start(ctx); err != nil {
				t.Fatal(err)
			}
			defer fleet.Stop()

			summary, err := simulation.NewRunner(b, bus, scenario, zerolog.Nop()).Run(ctx)
			if err != nil {
				t.Fatalf("run failed: %v (summary %+v)", err, summary)
			}
			if summary.Delivered != len(scenario.Calls) {
				t.Fatalf("delivered %d of %d", summary.Delivered, len(scenario.Calls))
			}
		})
	}
}

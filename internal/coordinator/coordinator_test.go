/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
)

type fakeCabin struct {
	id      int
	floor   int
	preempt map[int]bool
	wakes   int
	mu      sync.Mutex
}

func (f *fakeCabin) CabinID() int { return f.id }

func (f *fakeCabin) View() models.CabinView {
	return models.CabinView{ID: f.id, CurrentFloor: f.floor, Floors: 10}
}

func (f *fakeCabin) TryPreemptivelyClaim(floor int, _ models.Direction) bool {
	return f.preempt[floor]
}

func (f *fakeCabin) Wake() {
	f.mu.Lock()
	f.wakes++
	f.mu.Unlock()
}

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCoordinator() (*Coordinator, *stepClock) {
	clock := &stepClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New(10, strategy.NearestFirst{}, zerolog.Nop())
	c.SetClock(clock.now)
	return c, clock
}

func TestRegisterButtonPress_Idempotent(t *testing.T) {
	c, clock := newTestCoordinator()

	first := c.RegisterButtonPress(3, models.DirectionUp)
	clock.advance(5 * time.Second)
	second := c.RegisterButtonPress(3, models.DirectionUp)

	if !first.Equal(second) {
		t.Fatalf("repeat press changed timestamp: %v then %v", first, second)
	}
	if got := len(c.Pending()); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
}

func TestRegisterButtonPress_IgnoresInvalid(t *testing.T) {
	c, _ := newTestCoordinator()

	tests := []struct {
		name      string
		floor     int
		direction models.Direction
	}{
		{"negative floor", -1, models.DirectionUp},
		{"above top", 10, models.DirectionDown},
		{"both", 2, models.DirectionBoth},
		{"stopped", 2, models.DirectionStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if at := c.RegisterButtonPress(tt.floor, tt.direction); !at.IsZero() {
				t.Errorf("expected zero time, got %v", at)
			}
		})
	}
	if got := len(c.Pending()); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestRegisterButtonPress_WakesControllers(t *testing.T) {
	c, _ := newTestCoordinator()
	cabin := &fakeCabin{id: 1}
	c.Register(cabin)

	c.RegisterButtonPress(4, models.DirectionDown)
	c.RegisterButtonPress(4, models.DirectionDown)

	if cabin.wakes != 1 {
		t.Fatalf("wakes = %d, want 1", cabin.wakes)
	}
}

func TestMarkServiced(t *testing.T) {
	tests := []struct {
		name      string
		direction models.Direction
		wantUp    bool
		wantDown  bool
	}{
		{"up only", models.DirectionUp, false, true},
		{"down only", models.DirectionDown, true, false},
		{"both", models.DirectionBoth, false, false},
		{"stopped clears both", models.DirectionStopped, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator()
			c.RegisterButtonPress(5, models.DirectionUp)
			c.RegisterButtonPress(5, models.DirectionDown)

			if !c.MarkServiced(5, tt.direction) {
				t.Fatal("expected removal")
			}
			if got := c.RequestHasWaitingPassenger(5, models.DirectionUp); got != tt.wantUp {
				t.Errorf("up pending = %v, want %v", got, tt.wantUp)
			}
			if got := c.RequestHasWaitingPassenger(5, models.DirectionDown); got != tt.wantDown {
				t.Errorf("down pending = %v, want %v", got, tt.wantDown)
			}
		})
	}
}

func TestMarkServiced_AbsentIsNoop(t *testing.T) {
	c, _ := newTestCoordinator()
	if c.MarkServiced(2, models.DirectionUp) {
		t.Fatal("removing an absent request reported success")
	}
	if c.RequestHasWaitingPassenger(2, models.DirectionBoth) {
		t.Fatal("absent floor reported pending")
	}
}

func TestMergedOldestTimestamps(t *testing.T) {
	c, clock := newTestCoordinator()

	downAt := c.RegisterButtonPress(6, models.DirectionDown)
	clock.advance(3 * time.Second)
	c.RegisterButtonPress(6, models.DirectionUp)
	upAt := c.RegisterButtonPress(2, models.DirectionUp)

	merged := c.MergedOldestTimestamps()
	if len(merged) != 2 {
		t.Fatalf("merged has %d floors, want 2", len(merged))
	}
	if !merged[6].Equal(downAt) {
		t.Errorf("floor 6 = %v, want older down press %v", merged[6], downAt)
	}
	if !merged[2].Equal(upAt) {
		t.Errorf("floor 2 = %v, want %v", merged[2], upAt)
	}

	at, ok := c.PressedAt(6, models.DirectionBoth)
	if !ok || !at.Equal(downAt) {
		t.Errorf("PressedAt(6, both) = %v, %v; want %v", at, ok, downAt)
	}
}

func TestClaim_RemovesFromBothQueues(t *testing.T) {
	c, clock := newTestCoordinator()
	downAt := c.RegisterButtonPress(4, models.DirectionDown)
	clock.advance(time.Second)
	c.RegisterButtonPress(4, models.DirectionUp)

	claim, ok := c.ClaimNextUnclaimedRequest(context.Background(), &fakeCabin{id: 1, floor: 0})
	if !ok {
		t.Fatal("expected a claim")
	}
	if claim.Floor != 4 || claim.Direction != models.DirectionBoth {
		t.Fatalf("claim = %+v, want floor 4 both", claim)
	}
	if !claim.PressedAt.Equal(downAt) {
		t.Errorf("claim pressed at %v, want oldest %v", claim.PressedAt, downAt)
	}
	for _, d := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		if c.RequestHasWaitingPassenger(4, d) {
			t.Errorf("floor 4 %s still pending after claim", d)
		}
	}

	if _, ok := c.ClaimNextUnclaimedRequest(context.Background(), &fakeCabin{id: 2}); ok {
		t.Fatal("second claim on an empty coordinator succeeded")
	}
}

func TestClaim_NearestFirst(t *testing.T) {
	c, _ := newTestCoordinator()
	c.RegisterButtonPress(9, models.DirectionDown)
	c.RegisterButtonPress(2, models.DirectionUp)
	c.RegisterButtonPress(5, models.DirectionUp)

	var got []int
	cabin := &fakeCabin{id: 1, floor: 4}
	for {
		claim, ok := c.ClaimNextUnclaimedRequest(context.Background(), cabin)
		if !ok {
			break
		}
		got = append(got, claim.Floor)
	}

	want := []int{5, 2, 9}
	if len(got) != len(want) {
		t.Fatalf("claims = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("claims = %v, want %v", got, want)
		}
	}
}

func TestClaim_SkipsPreemptedFloors(t *testing.T) {
	c, _ := newTestCoordinator()
	busy := &fakeCabin{id: 2, preempt: map[int]bool{5: true}}
	candidate := &fakeCabin{id: 1, floor: 4, preempt: map[int]bool{3: true}}
	c.Register(busy)
	c.Register(candidate)

	c.RegisterButtonPress(5, models.DirectionUp)
	c.RegisterButtonPress(3, models.DirectionUp)

	claim, ok := c.ClaimNextUnclaimedRequest(context.Background(), candidate)
	if !ok || claim.Floor != 3 {
		t.Fatalf("claim = %+v, %v; want floor 3", claim, ok)
	}
	if !c.RequestHasWaitingPassenger(5, models.DirectionUp) {
		t.Fatal("pre-empted floor must stay pending")
	}

	if _, ok := c.ClaimNextUnclaimedRequest(context.Background(), candidate); ok {
		t.Fatal("candidate claimed a floor another cabin pre-empted")
	}
}

type scrambledOrdering struct{}

func (scrambledOrdering) OrderFloors(floors []int, _ models.CabinView, _ map[int]time.Time, _ time.Time) []int {
	return []int{42}
}

func TestClaim_FallsBackOnBadOrdering(t *testing.T) {
	c, _ := newTestCoordinator()
	c.SetOrdering(scrambledOrdering{})
	c.RegisterButtonPress(7, models.DirectionDown)
	c.RegisterButtonPress(1, models.DirectionUp)

	claim, ok := c.ClaimNextUnclaimedRequest(context.Background(), &fakeCabin{id: 1, floor: 2})
	if !ok || claim.Floor != 1 {
		t.Fatalf("claim = %+v, %v; want nearest floor 1", claim, ok)
	}
}

func TestClaim_AtMostOnceUnderContention(t *testing.T) {
	c, _ := newTestCoordinator()
	for floor := 0; floor < 10; floor++ {
		c.RegisterButtonPress(floor, models.DirectionUp)
		c.RegisterButtonPress(floor, models.DirectionDown)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int]int)
		wg      sync.WaitGroup
	)
	for id := 0; id < 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cabin := &fakeCabin{id: id, floor: id}
			for {
				claim, ok := c.ClaimNextUnclaimedRequest(context.Background(), cabin)
				if !ok {
					return
				}
				mu.Lock()
				claimed[claim.Floor]++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if len(claimed) != 10 {
		t.Fatalf("claimed %d floors, want 10", len(claimed))
	}
	for floor, n := range claimed {
		if n != 1 {
			t.Errorf("floor %d claimed %d times", floor, n)
		}
	}
	if got := len(c.Pending()); got != 0 {
		t.Fatalf("pending = %d after draining", got)
	}
}

func TestPending_OldestFirst(t *testing.T) {
	c, clock := newTestCoordinator()
	c.RegisterButtonPress(8, models.DirectionDown)
	clock.advance(time.Second)
	c.RegisterButtonPress(1, models.DirectionUp)

	pending := c.Pending()
	if len(pending) != 2 || pending[0].Floor != 8 || pending[1].Floor != 1 {
		t.Fatalf("pending = %+v", pending)
	}
}

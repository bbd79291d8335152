/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"testing"
	"time"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"up", DirectionUp, false},
		{" DOWN ", DirectionDown, false},
		{"both", DirectionBoth, false},
		{"stopped", DirectionStopped, false},
		{"", DirectionNone, false},
		{"sideways", DirectionNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirection(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDirectionMatches(t *testing.T) {
	tests := []struct {
		cabin, call Direction
		want        bool
	}{
		{DirectionUp, DirectionUp, true},
		{DirectionUp, DirectionDown, false},
		{DirectionStopped, DirectionDown, true},
		{DirectionDown, DirectionBoth, true},
	}
	for _, tt := range tests {
		if got := tt.cabin.Matches(tt.call); got != tt.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tt.cabin, tt.call, got, tt.want)
		}
	}
}

func TestTowardAndOpposite(t *testing.T) {
	if Toward(2, 5) != DirectionUp || Toward(5, 2) != DirectionDown || Toward(3, 3) != DirectionStopped {
		t.Fatal("Toward returned the wrong direction")
	}
	if DirectionUp.Opposite() != DirectionDown || DirectionStopped.Opposite() != DirectionStopped {
		t.Fatal("Opposite returned the wrong direction")
	}
}

func TestPendingRequestWaitedFor(t *testing.T) {
	pressed := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	r := PendingRequest{Floor: 3, Direction: DirectionUp, PressedAt: pressed}
	if got := r.WaitedFor(pressed.Add(7 * time.Second)); got != 7*time.Second {
		t.Fatalf("waited = %v, want 7s", got)
	}
	if got := r.WaitedFor(pressed.Add(-time.Second)); got != 0 {
		t.Fatalf("waited before press = %v, want 0", got)
	}
	if got := (PendingRequest{}).WaitedFor(pressed); got != 0 {
		t.Fatalf("zero press time waited = %v, want 0", got)
	}
}

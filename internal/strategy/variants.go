/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownKind indicates a strategy name no resolver knows.
var ErrUnknownKind = errors.New("unknown strategy kind")

// Kind names one of the closed set of strategy variants.
type Kind string

const (
	KindDefault            Kind = "default"
	KindMinimumMoves       Kind = "minimum-moves"
	KindMinimumWaitingTime Kind = "minimum-waiting-time"
	KindMaximumPassengers  Kind = "maximum-passengers"
	KindBalanced           Kind = "balanced"
)

// Params overrides the thresholds of a variant. Zero fields keep the preset.
type Params struct {
	LoadThreshold float64
	WaitThreshold time.Duration
}

// Kinds lists every built-in variant in display order.
func Kinds() []Kind {
	return []Kind{KindDefault, KindMinimumMoves, KindMinimumWaitingTime, KindMaximumPassengers, KindBalanced}
}

// Describe returns a one-line summary of a variant.
func Describe(kind Kind) string {
	switch kind {
	case KindDefault:
		return "nearest floor first; pick up while load <= 0.7 and waits <= 15s"
	case KindMinimumMoves:
		return "nearest floor first; keep sweeping one direction; pick up while load <= 0.9 and waits <= 30s"
	case KindMinimumWaitingTime:
		return "longest waiting floor first; pick up while load <= 0.8 and waits <= 10s"
	case KindMaximumPassengers:
		return "nearest floor first; fill the cabin, pick up while load <= 0.95 and waits <= 25s"
	case KindBalanced:
		return "distance weighed against waiting time; pick up while load <= 0.7 and waits <= 20s"
	}
	return ""
}

// New builds the variant named by kind, applying any non-zero overrides.
func New(kind Kind, p Params) (Set, error) {
	var set Set
	switch kind {
	case KindDefault, "":
		kind = KindDefault
		set = Set{Ordering: NearestFirst{}, Stop: DefaultStop()}
	case KindMinimumMoves:
		set = Set{Ordering: NearestFirst{}, Stop: SweepStop{ThresholdStop{LoadThreshold: 0.9, WaitThreshold: 30 * time.Second}}}
	case KindMinimumWaitingTime:
		set = Set{Ordering: LongestWaitFirst{}, Stop: ThresholdStop{LoadThreshold: 0.8, WaitThreshold: 10 * time.Second}}
	case KindMaximumPassengers:
		set = Set{Ordering: NearestFirst{}, Stop: ThresholdStop{LoadThreshold: 0.95, WaitThreshold: 25 * time.Second}}
	case KindBalanced:
		set = Set{Ordering: Weighted{FloorCost: 2 * time.Second}, Stop: ThresholdStop{LoadThreshold: 0.7, WaitThreshold: 20 * time.Second}}
	default:
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	set.Kind = kind
	set.Stop = withParams(set.Stop, p)
	return set, nil
}

// Default returns the stock strategy.
func Default() Set {
	set, _ := New(KindDefault, Params{})
	return set
}

func withParams(stop StopDecisionPolicy, p Params) StopDecisionPolicy {
	apply := func(t ThresholdStop) ThresholdStop {
		if p.LoadThreshold > 0 {
			t.LoadThreshold = p.LoadThreshold
		}
		if p.WaitThreshold > 0 {
			t.WaitThreshold = p.WaitThreshold
		}
		return t
	}
	switch s := stop.(type) {
	case ThresholdStop:
		return apply(s)
	case SweepStop:
		return SweepStop{apply(s.ThresholdStop)}
	}
	return stop
}

// Resolver maps a variant name to a strategy. Fleets hold one and can have it
// replaced at runtime to add variants.
type Resolver interface {
	Resolve(kind Kind) (Set, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(kind Kind) (Set, error)

func (f ResolverFunc) Resolve(kind Kind) (Set, error) { return f(kind) }

// BuiltinResolver resolves the built-in variants with shared overrides.
type BuiltinResolver struct {
	Params Params
}

func (r BuiltinResolver) Resolve(kind Kind) (Set, error) {
	return New(kind, r.Params)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "elevatord"

var (
	// ButtonPressesTotal counts hall-call presses, including debounced repeats.
	ButtonPressesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "button_presses_total",
		Help:      "Hall-call button presses observed by the coordinator.",
	}, []string{"direction", "result"}) // result: new, repeat

	// PendingRequests tracks the size of each pending queue.
	PendingRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_requests",
		Help:      "Unclaimed hall calls per direction.",
	}, []string{"direction"})

	// ClaimsTotal counts claim attempts by outcome.
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_total",
		Help:      "ClaimNextUnclaimedRequest calls by cabin and outcome.",
	}, []string{"cabin", "result"}) // result: claimed, none

	// PreemptionsTotal counts candidate floors skipped because another cabin will stop there.
	PreemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "preemptions_total",
		Help:      "Candidate floors left to a cabin already heading through them.",
	}, []string{"cabin"})

	// ServicedTotal counts pending entries removed by service reports.
	ServicedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "serviced_total",
		Help:      "Pending hall calls removed by a claim or service report.",
	}, []string{"direction"})

	// RequestWaitSeconds observes first-press to removal latency.
	RequestWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_wait_seconds",
		Help:      "Time from first press to a cabin committing to the call.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
	})

	// RedirectsTotal counts forced redirects.
	RedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redirects_total",
		Help:      "Forced redirects while passing a floor.",
	}, []string{"cabin", "reason"}) // reason: drop_off, pick_up

	// IdlePollsTotal counts idle re-polls of the coordinator.
	IdlePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idle_polls_total",
		Help:      "Idle cabin polls of the coordinator.",
	}, []string{"cabin"})

	// CabinState reports 1 for the current controller state of each cabin.
	CabinState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cabin_state",
		Help:      "Current controller state per cabin (1 = active).",
	}, []string{"cabin", "state"})

	// PolicyFaultsTotal counts invalid policy suggestions that were replaced by the fallback.
	PolicyFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policy_faults_total",
		Help:      "Invalid floor or direction suggestions from a strategy.",
	}, []string{"cabin", "policy"})

	// InvariantViolationsTotal counts stale pending entries found after a claim.
	InvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invariant_violations_total",
		Help:      "Coordinator invariant violations detected and repaired.",
	})

	// HandlerPanicsTotal counts recovered panics in cabin event handlers.
	HandlerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_panics_total",
		Help:      "Recovered panics in cabin event handlers.",
	}, []string{"cabin"})

	// StrategyChangesTotal counts fleet-wide strategy swaps.
	StrategyChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "strategy_changes_total",
		Help:      "Runtime strategy changes by target kind.",
	}, []string{"kind"})

	// EventsDroppedTotal counts events a full subscriber could not take.
	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Building events dropped because a subscriber buffer was full.",
	}, []string{"event_type"})

	// LeaderElectionStatus is 1 while this instance holds the dispatch lease.
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leader_election_status",
		Help:      "Whether this instance is the active dispatcher (1) or standby (0).",
	}, []string{"instance_id"})

	// LeaderElectionChanges counts lease acquisitions and losses.
	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leader_election_changes_total",
		Help:      "Dispatch lease changes by kind (acquired, lost).",
	}, []string{"instance_id", "change"})

	// APIRequestsTotal counts status API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Status API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes status API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Status API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight status API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight status API requests.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

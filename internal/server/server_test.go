/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/building"
	"github.com/friendsincode/elevatord/internal/config"
	"github.com/friendsincode/elevatord/internal/dispatch"
	"github.com/friendsincode/elevatord/internal/events"
	"github.com/friendsincode/elevatord/internal/logbuffer"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/simulation"
	"github.com/friendsincode/elevatord/internal/strategy"
)

type fakeFleet struct {
	floors  int
	cabins  int
	set     strategy.Set
	running bool
	calls   []models.PendingRequest
	gotos   map[int]int
	stops   []int
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{floors: 10, cabins: 2, set: strategy.Default(), running: true, gotos: map[int]int{}}
}

func (f *fakeFleet) Snapshot() models.FleetSnapshot {
	return models.FleetSnapshot{Strategy: f.set.Name(), Floors: f.floors, Running: f.running, Pending: f.calls}
}

func (f *fakeFleet) Strategy() strategy.Set { return f.set }

func (f *fakeFleet) ChangeStrategy(kind strategy.Kind) error {
	set, err := strategy.New(kind, strategy.Params{})
	if err != nil {
		return fmt.Errorf("change strategy: %w", err)
	}
	f.set = set
	return nil
}

func (f *fakeFleet) RegisterButtonPress(floor int, direction models.Direction) time.Time {
	if !building.ValidFloor(floor, f.floors) {
		return time.Time{}
	}
	at := time.Unix(100, 0)
	f.calls = append(f.calls, models.PendingRequest{Floor: floor, Direction: direction, PressedAt: at})
	return at
}

func (f *fakeFleet) ForceGoToFloor(_ context.Context, cabinID, floor int) error {
	if cabinID < 0 || cabinID >= f.cabins {
		return fmt.Errorf("%w: %d", dispatch.ErrUnknownCabin, cabinID)
	}
	if !building.ValidFloor(floor, f.floors) {
		return fmt.Errorf("force go to floor: %w", building.ErrFloorOutOfRange)
	}
	f.gotos[cabinID] = floor
	return nil
}

func (f *fakeFleet) ForceStop(cabinID int) error {
	if cabinID < 0 || cabinID >= f.cabins {
		return fmt.Errorf("%w: %d", dispatch.ErrUnknownCabin, cabinID)
	}
	f.stops = append(f.stops, cabinID)
	return nil
}

func (f *fakeFleet) Running() bool { return f.running }

func newTestServer(t *testing.T, fleet Fleet, logBuf *logbuffer.Buffer) *Server {
	t.Helper()
	cfg := &config.Config{HTTPBind: "127.0.0.1", HTTPPort: 0, MetricsEnabled: true}
	srv, err := New(cfg, fleet, logBuf, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewRequiresFleet(t *testing.T) {
	if _, err := New(&config.Config{}, nil, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error without a fleet")
	}
}

func TestHealthz(t *testing.T) {
	fleet := newFakeFleet()
	h := newTestServer(t, fleet, nil).Handler()

	if rr := do(t, h, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rr.Code)
	}
	fleet.running = false
	if rr := do(t, h, http.MethodGet, "/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz on stopped fleet = %d, want 503", rr.Code)
	}
}

type fixedLeader bool

func (l fixedLeader) IsLeader() bool { return bool(l) }

func TestHealthzReportsStandby(t *testing.T) {
	fleet := newFakeFleet()
	fleet.running = false
	srv := newTestServer(t, fleet, nil)
	srv.SetLeader(fixedLeader(false))

	rr := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("standby healthz = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "standby" || body["leader"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := do(t, newTestServer(t, newFakeFleet(), nil).Handler(), http.MethodGet, "/healthz", "")

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q, want DENY", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS on non-HTTPS request, got %q", got)
	}
}

func TestSecurityHeadersSetsHSTSOnHTTPS(t *testing.T) {
	h := newTestServer(t, newFakeFleet(), nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security=%q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestServer(t, newFakeFleet(), nil).Handler(), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "elevatord_") {
		t.Fatal("expected elevatord metrics in exposition")
	}
}

func TestStrategyEndpoints(t *testing.T) {
	fleet := newFakeFleet()
	h := newTestServer(t, fleet, nil).Handler()

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"switch", `{"kind":"balanced"}`, http.StatusOK, "balanced"},
		{"unknown kind keeps current", `{"kind":"fastest"}`, http.StatusBadRequest, "balanced"},
		{"malformed", `{`, http.StatusBadRequest, "balanced"},
		{"empty kind", `{}`, http.StatusBadRequest, "balanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPut, "/api/v1/strategy", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("PUT = %d, want %d: %s", rr.Code, tt.code, rr.Body.String())
			}
			rr = do(t, h, http.MethodGet, "/api/v1/strategy", "")
			var got strategyResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.want {
				t.Fatalf("strategy = %q, want %q", got.Kind, tt.want)
			}
		})
	}

	rr := do(t, h, http.MethodGet, "/api/v1/strategies", "")
	var list []strategyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != len(strategy.Kinds()) {
		t.Fatalf("listed %d strategies, want %d", len(list), len(strategy.Kinds()))
	}
}

func TestHallCallEndpoint(t *testing.T) {
	fleet := newFakeFleet()
	h := newTestServer(t, fleet, nil).Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"up call", `{"floor":3,"direction":"up"}`, http.StatusAccepted},
		{"floor out of range", `{"floor":30,"direction":"down"}`, http.StatusBadRequest},
		{"not a travel direction", `{"floor":3,"direction":"both"}`, http.StatusBadRequest},
		{"malformed", `floor=3`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, h, http.MethodPost, "/api/v1/calls", tt.body); rr.Code != tt.code {
				t.Fatalf("POST = %d, want %d", rr.Code, tt.code)
			}
		})
	}
	if len(fleet.calls) != 1 || fleet.calls[0].Floor != 3 {
		t.Fatalf("registered calls = %+v", fleet.calls)
	}
}

func TestCabinCommands(t *testing.T) {
	fleet := newFakeFleet()
	h := newTestServer(t, fleet, nil).Handler()

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"goto", "/api/v1/cabins/1/goto", `{"floor":7}`, http.StatusNoContent},
		{"goto out of range", "/api/v1/cabins/1/goto", `{"floor":70}`, http.StatusBadRequest},
		{"goto unknown cabin", "/api/v1/cabins/9/goto", `{"floor":2}`, http.StatusNotFound},
		{"goto bad id", "/api/v1/cabins/x/goto", `{"floor":2}`, http.StatusBadRequest},
		{"stop", "/api/v1/cabins/0/stop", ``, http.StatusNoContent},
		{"stop unknown cabin", "/api/v1/cabins/5/stop", ``, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, h, http.MethodPost, tt.path, tt.body); rr.Code != tt.code {
				t.Fatalf("POST %s = %d, want %d", tt.path, rr.Code, tt.code)
			}
		})
	}
	if fleet.gotos[1] != 7 {
		t.Fatalf("gotos = %v", fleet.gotos)
	}
	if len(fleet.stops) != 1 || fleet.stops[0] != 0 {
		t.Fatalf("stops = %v", fleet.stops)
	}
}

func TestLogsEndpoint(t *testing.T) {
	if rr := do(t, newTestServer(t, newFakeFleet(), nil).Handler(), http.MethodGet, "/api/v1/logs", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("logs without buffer = %d, want 503", rr.Code)
	}

	one, two := 1, 2
	buf := logbuffer.New(10)
	buf.Add(logbuffer.LogEntry{Level: "info", Component: "controller", CabinID: &one, Message: "claimed"})
	buf.Add(logbuffer.LogEntry{Level: "info", Component: "controller", CabinID: &two, Message: "redirected"})
	h := newTestServer(t, newFakeFleet(), buf).Handler()

	rr := do(t, h, http.MethodGet, "/api/v1/logs?cabin_id=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logs = %d", rr.Code)
	}
	var body struct {
		Entries []logbuffer.LogEntry `json:"entries"`
		Count   int                  `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || body.Entries[0].Message != "redirected" {
		t.Fatalf("unexpected logs: %+v", body)
	}

	if rr := do(t, h, http.MethodGet, "/api/v1/logs?cabin_id=two", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad cabin id = %d, want 400", rr.Code)
	}
}

func TestFleetEndpointWithDispatcher(t *testing.T) {
	b := simulation.NewBuilding(6, 4, []int{0, 5})
	fleet, err := dispatch.New(b, events.NewBus(), dispatch.Options{InstanceID: "node-a"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fleet.RegisterButtonPress(3, models.DirectionDown)
	h := newTestServer(t, fleet, nil).Handler()

	rr := do(t, h, http.MethodGet, "/api/v1/fleet", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("fleet = %d", rr.Code)
	}
	var snap models.FleetSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.InstanceID != "node-a" || snap.Floors != 6 || len(snap.Cabins) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Pending) != 1 || snap.Pending[0].Floor != 3 || snap.Pending[0].Direction != models.DirectionDown {
		t.Fatalf("pending = %+v", snap.Pending)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package simulation

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario wraps every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Call is one rider appearing at Tick on floor From, bound for To.
type Call struct {
	Tick int `yaml:"tick"`
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Scenario describes a building and the riders that show up in it.
type Scenario struct {
	Name        string        `yaml:"name"`
	Floors      int           `yaml:"floors"`
	Capacity    int           `yaml:"capacity"`
	StartFloors []int         `yaml:"start_floors"`
	Tick        time.Duration `yaml:"tick"`
	MaxTicks    int           `yaml:"max_ticks"`
	Strategy    string        `yaml:"strategy"`

	// ArrivalRate is the chance per tick of a random rider appearing.
	// Runs with a rate above zero never finish on their own.
	ArrivalRate float64 `yaml:"arrival_rate"`
	Seed        uint64  `yaml:"seed"`

	// Continuous runs keep stepping after every rider is delivered.
	Continuous bool `yaml:"continuous"`

	Calls []Call `yaml:"calls"`
}

// Defaults used when a scenario leaves a field out.
const (
	DefaultTick     = 50 * time.Millisecond
	DefaultCapacity = 8
	DefaultMaxTicks = 5000
)

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	if s.Tick <= 0 {
		s.Tick = DefaultTick
	}
	if s.Capacity <= 0 {
		s.Capacity = DefaultCapacity
	}
	if s.MaxTicks <= 0 && s.ArrivalRate == 0 && !s.Continuous {
		s.MaxTicks = DefaultMaxTicks
	}
	sort.SliceStable(s.Calls, func(i, j int) bool { return s.Calls[i].Tick < s.Calls[j].Tick })
}

// Validate checks the building shape and every call.
func (s *Scenario) Validate() error {
	if s.Floors < 2 {
		return fmt.Errorf("%w: need at least 2 floors, got %d", ErrInvalidScenario, s.Floors)
	}
	if len(s.StartFloors) == 0 {
		return fmt.Errorf("%w: no cabins", ErrInvalidScenario)
	}
	for i, floor := range s.StartFloors {
		if floor < 0 || floor >= s.Floors {
			return fmt.Errorf("%w: cabin %d starts at floor %d outside 0..%d", ErrInvalidScenario, i, floor, s.Floors-1)
		}
	}
	if s.ArrivalRate < 0 || s.ArrivalRate > 1 {
		return fmt.Errorf("%w: arrival_rate %.2f outside 0..1", ErrInvalidScenario, s.ArrivalRate)
	}
	for i, call := range s.Calls {
		if call.Tick < 0 {
			return fmt.Errorf("%w: call %d has negative tick", ErrInvalidScenario, i)
		}
		if call.From < 0 || call.From >= s.Floors || call.To < 0 || call.To >= s.Floors {
			return fmt.Errorf("%w: call %d %d->%d outside the building", ErrInvalidScenario, i, call.From, call.To)
		}
		if call.From == call.To {
			return fmt.Errorf("%w: call %d goes nowhere", ErrInvalidScenario, i)
		}
	}
	return nil
}

// Building creates the simulated building the scenario describes.
func (s *Scenario) Building() *Building {
	return NewBuilding(s.Floors, s.Capacity, s.StartFloors)
}

// Endless reports whether the scenario only stops when cancelled.
func (s *Scenario) Endless() bool {
	return s.MaxTicks <= 0 && (s.Continuous || s.ArrivalRate > 0)
}

// DefaultScenario is the open-ended building used by the serve command.
func DefaultScenario(floors, cabins, capacity int, tick time.Duration, rate float64) *Scenario {
	start := make([]int, cabins)
	for i := range start {
		start[i] = (i * (floors - 1)) / max(cabins-1, 1)
	}
	s := &Scenario{
		Name:        "continuous",
		Floors:      floors,
		Capacity:    capacity,
		StartFloors: start,
		Tick:        tick,
		ArrivalRate: rate,
		Continuous:  true,
	}
	s.applyDefaults()
	return s
}

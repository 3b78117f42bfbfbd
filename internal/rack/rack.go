// Package rack contains the per-server physics unit and the rack-level
// aggregate that validates and dispatches step vectors across a fixed set of
// servers.
package rack

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/thermalstack/racksim/internal/cooling"
	"github.com/thermalstack/racksim/pkg/config"
)

// ErrDimensionMismatch is returned when a load or action vector does not
// match the configured server count. The caller must not retry with the same
// input; vectors are never truncated or padded.
var ErrDimensionMismatch = errors.New("vector length does not match server count")

// Rack owns a fixed-size ordered collection of servers and aggregates their
// per-step statistics. It is not safe for concurrent use.
type Rack struct {
	servers          []*Server
	physics          config.PhysicsConfig
	lastCoolingPower float64
	log              logr.Logger
}

// New constructs a rack of numServers servers, each owning its own cooling
// subsystem built from coolingCfg. An unknown cooling mode fails here.
func New(numServers int, physics config.PhysicsConfig, coolingCfg config.CoolingConfig, log logr.Logger) (*Rack, error) {
	if numServers <= 0 {
		return nil, fmt.Errorf("rack needs at least one server, got %d", numServers)
	}
	servers := make([]*Server, numServers)
	for i := range servers {
		cool, err := cooling.New(coolingCfg)
		if err != nil {
			return nil, fmt.Errorf("building cooling subsystem for server %d: %w", i, err)
		}
		servers[i] = NewServer(i, physics, cool, log)
	}
	return &Rack{
		servers: servers,
		physics: physics,
		log:     log,
	}, nil
}

// Size returns the fixed server count.
func (r *Rack) Size() int { return len(r.servers) }

// Servers exposes the owned servers in rack order.
func (r *Rack) Servers() []*Server { return r.servers }

// Update dispatches one physics step to every server. Vector lengths must
// equal the server count; values outside [0,1] are clamped inside
// Server.UpdatePhysics. The rack-level cooling power accumulator is
// refreshed from the returned stats.
func (r *Rack) Update(loads, actions []float64, dt float64) ([]StepStats, error) {
	if len(loads) != len(r.servers) {
		return nil, fmt.Errorf("%w: got %d loads, want %d", ErrDimensionMismatch, len(loads), len(r.servers))
	}
	if len(actions) != len(r.servers) {
		return nil, fmt.Errorf("%w: got %d actions, want %d", ErrDimensionMismatch, len(actions), len(r.servers))
	}

	stats := make([]StepStats, len(r.servers))
	totalCooling := 0.0
	for i, srv := range r.servers {
		stats[i] = srv.UpdatePhysics(loads[i], actions[i], dt)
		totalCooling += stats[i].CoolingPower
	}
	r.lastCoolingPower = totalCooling
	return stats, nil
}

// TotalPower returns the rack draw in Watts: IT power of every server plus
// the last aggregated cooling power.
func (r *Rack) TotalPower() float64 {
	itPower := 0.0
	for _, srv := range r.servers {
		itPower += srv.PowerDraw()
	}
	return itPower + r.lastCoolingPower
}

// ITPower returns the IT-only draw in Watts.
func (r *Rack) ITPower() float64 {
	itPower := 0.0
	for _, srv := range r.servers {
		itPower += srv.PowerDraw()
	}
	return itPower
}

// CoolingPower returns the last aggregated cooling draw in Watts.
func (r *Rack) CoolingPower() float64 { return r.lastCoolingPower }

// Temperatures returns the per-server temperatures in rack order.
func (r *Rack) Temperatures() []float64 {
	temps := make([]float64, len(r.servers))
	for i, srv := range r.servers {
		temps[i] = srv.Temperature()
	}
	return temps
}

// MaxTemperature returns the hottest server temperature.
func (r *Rack) MaxTemperature() float64 {
	return floats.Max(r.Temperatures())
}

// AvgTemperature returns the mean server temperature.
func (r *Rack) AvgTemperature() float64 {
	return stat.Mean(r.Temperatures(), nil)
}

// Healths returns the per-server health scores in rack order.
func (r *Rack) Healths() []float64 {
	healths := make([]float64, len(r.servers))
	for i, srv := range r.servers {
		healths[i] = srv.Health()
	}
	return healths
}

// AvgHealth returns the mean health score.
func (r *Rack) AvgHealth() float64 {
	return stat.Mean(r.Healths(), nil)
}

// Reset restores every server to initial conditions. initialTemps may be nil
// (every server starts at ambient) or carry exactly one temperature per
// server (pre-warmed starts chosen by the environment).
func (r *Rack) Reset(initialTemps []float64) error {
	if initialTemps != nil && len(initialTemps) != len(r.servers) {
		return fmt.Errorf("%w: got %d initial temperatures, want %d", ErrDimensionMismatch, len(initialTemps), len(r.servers))
	}
	for i, srv := range r.servers {
		temp := r.physics.AmbientTemp
		if initialTemps != nil {
			temp = initialTemps[i]
		}
		srv.Reset(temp)
	}
	r.lastCoolingPower = 0.0
	return nil
}

package rack

import (
	"math"

	"github.com/go-logr/logr"

	"github.com/thermalstack/racksim/internal/cooling"
	"github.com/thermalstack/racksim/pkg/config"
)

// kelvinOffset converts °C to K for the Arrhenius aging law.
const kelvinOffset = 273.15

// criticalWarnFraction of MaxTemp triggers a near-critical log line.
const criticalWarnFraction = 0.9

// StepStats is the per-server record produced by one physics update. All
// consumers (rack aggregation, reward shaping, observation building) read
// these documented fields; a step mutates nothing else.
type StepStats struct {
	ServerID      int
	Temperature   float64 // °C, already clamped to [MinTemp, MaxTemp]
	ITPower       float64 // Watts, idle + dynamic + leakage
	LeakagePower  float64 // Watts, the temperature-dependent component of ITPower
	CoolingPower  float64 // Watts drawn by the cooling subsystem
	HeatGenerated float64 // Watts
	HeatRemoved   float64 // Watts
	Health        float64 // [0,1], monotonically non-increasing
}

// Server simulates one server's thermal and power behavior. It owns exactly
// one cooling subsystem and is owned exclusively by one Rack; it is not safe
// for concurrent use.
type Server struct {
	id      int
	physics config.PhysicsConfig
	cooling *cooling.Subsystem
	log     logr.Logger

	// inletOffset raises the effective ambient seen by this server above
	// the room ambient (e.g. top-of-rack recirculation). Zero by default.
	inletOffset float64

	temperature float64
	load        float64
	powerDraw   float64
	health      float64
}

// NewServer constructs a server at ambient temperature with full health.
func NewServer(id int, physics config.PhysicsConfig, cool *cooling.Subsystem, log logr.Logger) *Server {
	return &Server{
		id:          id,
		physics:     physics,
		cooling:     cool,
		log:         log,
		temperature: physics.AmbientTemp,
		powerDraw:   physics.IdlePower,
		health:      1.0,
	}
}

// Temperature returns the current temperature in °C.
func (s *Server) Temperature() float64 { return s.temperature }

// Load returns the last applied load in [0,1].
func (s *Server) Load() float64 { return s.load }

// PowerDraw returns the last IT power draw in Watts.
func (s *Server) PowerDraw() float64 { return s.powerDraw }

// Health returns the remaining health in [0,1].
func (s *Server) Health() float64 { return s.health }

// Cooling exposes the owned subsystem for inspection.
func (s *Server) Cooling() *cooling.Subsystem { return s.cooling }

// UpdatePhysics advances the server by dt seconds under the given load and
// cooling effort. Both inputs saturate to [0,1]. The update sequence is:
// power/heat generation (including temperature-dependent leakage), heat
// removal via the cooling subsystem, rate-then-absolute clamped temperature
// integration, cooling wear accrual, and Arrhenius health loss.
func (s *Server) UpdatePhysics(load, coolingAction, dt float64) StepStats {
	load = clamp(load, 0, 1)
	coolingAction = clamp(coolingAction, 0, 1)
	s.load = load

	// IT power: idle floor, convex dynamic term, and leakage that rises
	// with the temperature entering this step. Hotter servers draw more
	// power, which generates more heat.
	p := s.physics
	dynamic := (p.MaxPower - p.IdlePower) * (2*load - math.Pow(load, p.PowerExponent))
	leakage := p.LeakageBasePower * math.Exp(p.LeakageCoeff*(s.temperature-p.LeakageRefTemp))
	s.powerDraw = p.IdlePower + dynamic + leakage
	heatGenerated := s.powerDraw

	// Heat removal and the cooling apparatus' own electrical cost. The
	// latter is a power accounting term only; it does not enter the heat
	// balance of the server.
	effectiveAmbient := p.AmbientTemp + s.inletOffset
	heatRemoved := s.cooling.CoolingCapacity(coolingAction, effectiveAmbient, s.temperature)
	coolingPower := s.cooling.PowerConsumption(coolingAction)

	// Two-stage clamp: bound the per-step rate first, then the absolute
	// temperature. Both are silent saturations, not errors.
	netHeat := heatGenerated - heatRemoved
	deltaT := clamp(netHeat*dt/p.ThermalMass, -p.MaxTempChangeRate, p.MaxTempChangeRate)
	s.temperature = clamp(s.temperature+deltaT, p.MinTemp, p.MaxTemp)

	s.cooling.UpdateDegradation(dt)
	s.ageHealth(dt)

	if s.temperature >= criticalWarnFraction*p.MaxTemp {
		s.log.V(1).Info("Server temperature near critical",
			"server", s.id,
			"temperature", s.temperature,
			"maxTemp", p.MaxTemp)
	}

	return StepStats{
		ServerID:      s.id,
		Temperature:   s.temperature,
		ITPower:       s.powerDraw,
		LeakagePower:  leakage,
		CoolingPower:  coolingPower,
		HeatGenerated: heatGenerated,
		HeatRemoved:   heatRemoved,
		Health:        s.health,
	}
}

// ageHealth applies the Arrhenius degradation law at the post-integration
// temperature. Health only ever decreases and is floored at zero.
func (s *Server) ageHealth(dt float64) {
	p := s.physics
	tempK := s.temperature + kelvinOffset
	loss := p.AgingBaseRate * math.Exp(p.AgingEaOverKb*(1.0/p.AgingRefTempK-1.0/tempK)) * dt
	s.health = math.Max(0, s.health-loss)
}

// Reset restores the server to initial conditions at the given temperature
// (ambient, or a pre-warmed value chosen by the environment). Health returns
// to 1.0; cooling wear persists, since component aging is physical state.
func (s *Server) Reset(initialTemp float64) {
	s.temperature = clamp(initialTemp, s.physics.MinTemp, s.physics.MaxTemp)
	s.load = 0.0
	s.powerDraw = s.physics.IdlePower
	s.health = 1.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

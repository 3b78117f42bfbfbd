// Package cooling implements the pluggable cooling subsystem physics: air
// (fan), liquid (pump) and hybrid variants behind one Subsystem type. A
// subsystem is a pure function of a normalized flow signal plus ambient and
// server temperatures, with one piece of state: accumulated operating hours
// driving slow efficiency degradation.
package cooling

import (
	"errors"
	"fmt"
	"math"

	"github.com/thermalstack/racksim/pkg/config"
)

// ErrUnknownMode is returned when a cooling mode string names none of the
// supported variants. This is a configuration error surfaced at
// construction, never a silent fallback to a default physics law.
var ErrUnknownMode = errors.New("unknown cooling mode")

// Mode selects the cooling physics variant.
type Mode string

const (
	// ModeAir is forced-air fan cooling with an outside-air economizer.
	ModeAir Mode = "AIR"
	// ModeLiquid is pumped liquid-loop cooling.
	ModeLiquid Mode = "LIQUID"
	// ModeHybrid splits flow across the air and liquid variants.
	ModeHybrid Mode = "HYBRID"
)

// ParseMode converts a configured mode string into a Mode, rejecting
// anything outside the known set.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAir, ModeLiquid, ModeHybrid:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

const (
	// fanDeadband is the flow fraction below which the fan only draws
	// monitoring power.
	fanDeadband = 0.05
	// fanMonitoringPower is that monitoring draw in Watts.
	fanMonitoringPower = 2.0
	// fanSweetSpotCenter/Width define the 40-80% flow band where the fan
	// runs at nominal efficiency; outside it a quadratic penalty applies.
	fanSweetSpotCenter = 0.6
	fanSweetSpotWidth  = 0.2
	fanPenaltyCoeff    = 2.0
	// fanStaticFraction models static pressure losses linear in flow.
	fanStaticFraction = 0.05

	// pumpMinFlow is the flow fraction below which only half the base
	// circulation power is drawn.
	pumpMinFlow = 0.1
	// pumpExponent is the super-linear pump power law exponent.
	pumpExponent = 2.5
	// pumpBEP is the best efficiency point flow fraction; pumpBEPCoeff
	// scales the quadratic efficiency loss away from it.
	pumpBEP      = 0.65
	pumpBEPCoeff = 0.2

	// airReferenceDelta normalizes the server/ambient temperature delta for
	// the active air cooling term.
	airReferenceDelta = 30.0
	// liquidSaturationDelta is the temperature delta at which liquid loop
	// effectiveness saturates at 1.
	liquidSaturationDelta = 40.0
	// economizerGain scales the free-cooling bonus.
	economizerGain = 1.5
	// economizerMinFlow is the minimum flow needed to move outside air.
	economizerMinFlow = 0.1

	// hybridAirShare/hybridLiquidShare split the requested flow between the
	// two subsystems for capacity.
	hybridAirShare    = 0.3
	hybridLiquidShare = 0.7
	// hybridCrossover is the flow below which hybrid power is air-dominant.
	hybridCrossover = 0.4

	// degradationPerHour is the efficiency lost per operating hour
	// (1% per 1000 h). minEfficiency floors the decay.
	degradationPerHour = 0.01 / 1000.0
	minEfficiency      = 0.8
	// minDelta keeps temperature deltas strictly positive.
	minDelta = 0.1
)

// Subsystem is one server's cooling apparatus. It is owned exclusively by a
// single server unit and is not safe for concurrent use.
type Subsystem struct {
	mode Mode
	cfg  config.CoolingConfig

	operatingHours   float64
	efficiencyFactor float64
}

// New constructs a Subsystem for the configured mode. An unrecognized mode
// fails here so downstream physics never branches on an unknown string.
func New(cfg config.CoolingConfig) (*Subsystem, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return &Subsystem{
		mode:             mode,
		cfg:              cfg,
		efficiencyFactor: 1.0,
	}, nil
}

// Mode reports the configured variant.
func (s *Subsystem) Mode() Mode { return s.mode }

// Efficiency reports the current degradation factor in [minEfficiency, 1].
func (s *Subsystem) Efficiency() float64 { return s.efficiencyFactor }

// OperatingHours reports the accumulated runtime.
func (s *Subsystem) OperatingHours() float64 { return s.operatingHours }

// PowerConsumption returns the electrical draw in Watts for the given flow.
// Flow is clamped to [0,1]; it is a saturating control signal, never an
// input error. As the unit degrades, the same flow costs more power: the
// raw figure scales by (2 - efficiencyFactor).
func (s *Subsystem) PowerConsumption(flow float64) float64 {
	flow = clamp01(flow)

	var power float64
	switch s.mode {
	case ModeAir:
		power = s.airPower(flow)
	case ModeLiquid:
		power = s.liquidPower(flow)
	case ModeHybrid:
		power = s.hybridPower(flow)
	}

	return power * (2.0 - s.efficiencyFactor)
}

// CoolingCapacity returns the heat-removal capacity in Watts for the given
// flow at the given ambient and server temperatures. Flow is clamped to
// [0,1].
func (s *Subsystem) CoolingCapacity(flow, ambientTemp, serverTemp float64) float64 {
	flow = clamp01(flow)

	switch s.mode {
	case ModeAir:
		return s.airCapacity(flow, ambientTemp, serverTemp)
	case ModeLiquid:
		return s.liquidCapacity(flow, ambientTemp, serverTemp)
	case ModeHybrid:
		// Reuse the two variants' formulas on the split flows rather than
		// duplicating them.
		return s.airCapacity(hybridAirShare*flow, ambientTemp, serverTemp) +
			s.liquidCapacity(hybridLiquidShare*flow, ambientTemp, serverTemp)
	}
	return 0
}

// UpdateDegradation accrues dt seconds of runtime and recomputes the
// efficiency factor. Operating hours persist across episode resets: wear is
// physical state, not episode bookkeeping.
func (s *Subsystem) UpdateDegradation(dt float64) {
	s.operatingHours += dt / 3600.0
	s.efficiencyFactor = math.Max(minEfficiency, 1.0-degradationPerHour*s.operatingHours)
}

// airPower is the fan law: cubic in flow plus a static-pressure term, with a
// deadband floor and a quadratic efficiency penalty outside the 40-80% flow
// sweet spot.
func (s *Subsystem) airPower(flow float64) float64 {
	if flow < fanDeadband {
		return fanMonitoringPower
	}
	dist := math.Abs(flow-fanSweetSpotCenter) - fanSweetSpotWidth
	penalty := 1.0
	if dist > 0 {
		penalty += fanPenaltyCoeff * dist * dist
	}
	base := s.cfg.MaxFanPower * math.Pow(flow, 3)
	static := fanStaticFraction * s.cfg.MaxFanPower * flow
	return (base + static) * penalty
}

// liquidPower is the pump law: base circulation power plus a super-linear
// flow term, with a quadratic efficiency loss away from the best efficiency
// point.
func (s *Subsystem) liquidPower(flow float64) float64 {
	if flow < pumpMinFlow {
		return 0.5 * s.cfg.BasePumpPower
	}
	bepLoss := 1.0 + pumpBEPCoeff*(flow-pumpBEP)*(flow-pumpBEP)
	variable := s.cfg.MaxPumpPower * math.Pow(flow, pumpExponent)
	return s.cfg.BasePumpPower + variable*bepLoss
}

// hybridPower splits flow load-dependently: air-dominant at low flow,
// liquid-dominant at high flow, summing the two variants' laws.
func (s *Subsystem) hybridPower(flow float64) float64 {
	var airFlow, liquidFlow float64
	if flow < hybridCrossover {
		airFlow = math.Min(1.0, flow*1.5)
		liquidFlow = 0.2
	} else {
		airFlow = 0.3
		liquidFlow = flow
	}
	return s.airPower(airFlow) + s.liquidPower(liquidFlow)
}

// airCapacity is natural convection plus a flow-scaled active term
// proportional to the server/ambient delta, plus an economizer bonus when
// outside air is cool enough for free cooling.
func (s *Subsystem) airCapacity(flow, ambientTemp, serverTemp float64) float64 {
	deltaT := math.Max(minDelta, serverTemp-ambientTemp)

	passive := s.cfg.NaturalConvection
	active := flow * s.cfg.AirCapacity * (deltaT / airReferenceDelta)

	economizer := 0.0
	if ambientTemp < s.cfg.EconomizerCutoff && flow > economizerMinFlow {
		economizer = economizerGain * s.cfg.AirCapacity * flow *
			(s.cfg.EconomizerCutoff - ambientTemp) / s.cfg.EconomizerRefDelta
	}

	return passive + active + economizer
}

// liquidCapacity scales flow by an effectiveness factor that saturates as
// the temperature delta grows.
func (s *Subsystem) liquidCapacity(flow, ambientTemp, serverTemp float64) float64 {
	deltaT := math.Max(minDelta, serverTemp-ambientTemp)
	effectiveness := math.Min(1.0, deltaT/liquidSaturationDelta)
	return flow * s.cfg.LiquidCapacity * effectiveness
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

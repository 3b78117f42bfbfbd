// Package reward implements the shaped scalar reward for the thermal control
// loop. There is exactly one formula; named profiles are coefficient presets
// that rescale its term weights, never separate code paths.
package reward

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/thermalstack/racksim/internal/rack"
	"github.com/thermalstack/racksim/pkg/config"
)

// ErrUnknownProfile is returned when a reward profile name is not in the
// known preset table. This fails at construction, never mid-episode.
var ErrUnknownProfile = errors.New("unknown reward profile")

// Profile names a coefficient preset.
type Profile string

const (
	// ProfileBalanced applies the configured weights unchanged.
	ProfileBalanced Profile = "balanced"
	// ProfileSafetyFirst biases toward thermal headroom and hardware
	// longevity at the cost of energy savings.
	ProfileSafetyFirst Profile = "safety-first"
	// ProfileEfficiencyFirst biases toward energy savings, tolerating
	// warmer operation.
	ProfileEfficiencyFirst Profile = "efficiency-first"
)

// termScales rescale the configured weights per term family.
type termScales struct {
	energy  float64
	thermal float64
	safety  float64
	action  float64
	health  float64
}

// profileScales is the whole profile mechanism: one small table, one formula.
var profileScales = map[Profile]termScales{
	ProfileBalanced:        {energy: 1.0, thermal: 1.0, safety: 1.0, action: 1.0, health: 1.0},
	ProfileSafetyFirst:     {energy: 0.5, thermal: 1.0, safety: 2.0, action: 1.0, health: 1.5},
	ProfileEfficiencyFirst: {energy: 1.5, thermal: 0.8, safety: 0.6, action: 0.5, health: 0.75},
}

// ParseProfile validates a configured profile name.
func ParseProfile(s string) (Profile, error) {
	p := Profile(s)
	if _, ok := profileScales[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
	return p, nil
}

// Breakdown carries the individual term outputs of one evaluation. Penalty
// terms are reported as the positive magnitudes that were subtracted.
type Breakdown struct {
	Energy       float64
	Thermal      float64
	Safety       float64
	ActionCost   float64
	Health       float64
	Catastrophic float64
	Total        float64
	// PUE is the power usage effectiveness observed this step.
	PUE float64
}

// Calculator evaluates the reward for one rack configuration. The weights
// are fixed at construction (configured values rescaled by the profile).
type Calculator struct {
	cfg     config.RewardConfig
	profile Profile
}

// New builds a Calculator, applying the named profile's scales to the
// configured weights. An unknown profile name is a configuration error.
func New(cfg config.RewardConfig) (*Calculator, error) {
	profile, err := ParseProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}
	scales := profileScales[profile]
	cfg.EnergyWeight *= scales.energy
	cfg.ThermalWeight *= scales.thermal
	cfg.SafetyWeight *= scales.safety
	cfg.ActionWeight *= scales.action
	cfg.ActionDeltaWeight *= scales.action
	cfg.HealthWeight *= scales.health
	return &Calculator{cfg: cfg, profile: profile}, nil
}

// Profile reports the active preset.
func (c *Calculator) Profile() Profile { return c.profile }

// Compute evaluates the reward for one step. prevActions may be nil on the
// first step of an episode, disabling the oscillation penalty for that step.
func (c *Calculator) Compute(stats []rack.StepStats, actions, prevActions []float64) Breakdown {
	n := len(stats)
	itPower, coolingPower := 0.0, 0.0
	temps := make([]float64, n)
	healths := make([]float64, n)
	maxTemp := math.Inf(-1)
	for i, s := range stats {
		itPower += s.ITPower
		coolingPower += s.CoolingPower
		temps[i] = s.Temperature
		healths[i] = s.Health
		if s.Temperature > maxTemp {
			maxTemp = s.Temperature
		}
	}

	var b Breakdown
	b.PUE = (itPower + coolingPower) / (itPower + 1e-6)
	b.Energy = c.energyTerm(b.PUE)
	b.Thermal = c.thermalTerm(stat.Mean(temps, nil))
	b.Safety = c.safetyTerm(maxTemp)
	b.ActionCost = c.actionTerm(actions, prevActions)
	b.Health = c.cfg.HealthWeight * (1.0 - stat.Mean(healths, nil))
	if maxTemp >= c.cfg.CriticalLimit {
		b.Catastrophic = c.cfg.CatastrophicPenalty
	}

	b.Total = b.Energy + b.Thermal - b.Safety - b.ActionCost - b.Health - b.Catastrophic
	return b
}

// energyTerm rewards PUE improving below the target baseline, with an
// optional sub-linear exponent for diminishing returns.
func (c *Calculator) energyTerm(pue float64) float64 {
	margin := math.Max(0, c.cfg.PUETarget-pue)
	if c.cfg.PUEExponent != 1.0 && margin > 0 {
		margin = math.Pow(margin, c.cfg.PUEExponent)
	}
	return c.cfg.EnergyWeight * margin
}

// thermalTerm is a Gaussian bell around the ideal operating temperature, so
// overcooling is discouraged as much as overheating.
func (c *Calculator) thermalTerm(avgTemp float64) float64 {
	d := avgTemp - c.cfg.IdealTemp
	return c.cfg.ThermalWeight * math.Exp(-c.cfg.ThermalSharpness*d*d)
}

// safetyTerm is zero below the soft limit, quadratic up to the hard limit,
// and linear beyond it with a slope-continuous transition, clipped at the
// cap so extreme excursions keep a bounded gradient.
func (c *Calculator) safetyTerm(maxTemp float64) float64 {
	if maxTemp <= c.cfg.SoftLimit {
		return 0
	}
	var penalty float64
	if maxTemp <= c.cfg.HardLimit {
		x := maxTemp - c.cfg.SoftLimit
		penalty = c.cfg.SafetyWeight * x * x
	} else {
		span := c.cfg.HardLimit - c.cfg.SoftLimit
		penalty = c.cfg.SafetyWeight*span*span +
			2*c.cfg.SafetyWeight*span*(maxTemp-c.cfg.HardLimit)
	}
	return math.Min(penalty, c.cfg.SafetyCap)
}

// actionTerm penalizes mean squared cooling effort, plus mean squared
// step-to-step change when the oscillation penalty is enabled.
func (c *Calculator) actionTerm(actions, prevActions []float64) float64 {
	meanAction := stat.Mean(actions, nil)
	cost := c.cfg.ActionWeight * meanAction * meanAction

	if c.cfg.ActionDeltaWeight > 0 && prevActions != nil && len(prevActions) == len(actions) {
		sq := 0.0
		for i := range actions {
			d := actions[i] - prevActions[i]
			sq += d * d
		}
		cost += c.cfg.ActionDeltaWeight * sq / float64(len(actions))
	}
	return cost
}

// Package env implements the episodic thermal control loop: it seeds
// workload, drives the rack physics, shapes the reward, evaluates
// termination, and exposes the step/reset contract consumed by an external
// decision-making agent.
//
// The environment is single-threaded and synchronous. All randomness comes
// from one seeded generator owned by the instance, so two environments
// constructed identically, reset with the same seed, and driven with the
// same action sequence produce bit-identical trajectories. Independent
// instances share no mutable state and may run in parallel.
package env

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/thermalstack/racksim/internal/rack"
	"github.com/thermalstack/racksim/internal/reward"
	"github.com/thermalstack/racksim/pkg/config"
)

// ErrNotReady is returned by Step when the environment has not been reset,
// or when the previous episode already terminated or truncated.
var ErrNotReady = errors.New("environment is not ready: call Reset first")

// Phase is the episode lifecycle state.
type Phase int

const (
	// PhaseUninitialized is the state before the first Reset.
	PhaseUninitialized Phase = iota
	// PhaseReady follows a Reset; Stepping begins with the first Step.
	PhaseReady
	// PhaseStepping is the in-episode state.
	PhaseStepping
	// PhaseTerminated is a safety failure end state.
	PhaseTerminated
	// PhaseTruncated is a time-budget-expiry end state.
	PhaseTruncated
)

// Info is the auxiliary metrics map returned alongside each observation.
type Info map[string]float64

// StepResult bundles the outputs of one environment step.
type StepResult struct {
	Observation []float64
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
	// Breakdown exposes the individual reward terms for analysis; it is
	// not part of the agent-facing contract.
	Breakdown reward.Breakdown
}

// StepRecorder receives the per-step info channel, e.g. for exporting
// simulation gauges. Recording must not mutate the environment.
type StepRecorder interface {
	RecordStep(info Info)
}

// Env is the thermal environment. It exclusively owns one rack and the
// per-episode bookkeeping; it is not safe for concurrent use.
type Env struct {
	cfg  config.Config
	rack *rack.Rack
	calc *reward.Calculator
	log  logr.Logger

	obsSpec ObservationSpec
	rng     *rand.Rand
	seeded  bool

	phase        Phase
	stepCount    int
	episodeCount int

	currentLoads []float64
	prevActions  []float64
	prevTemps    []float64

	recorder StepRecorder

	episodeRewards []float64
	episodeTemps   []float64
	episodePowers  []float64
}

// New constructs an environment from a validated configuration. Unknown
// cooling modes and reward profiles fail here, before any episode runs.
func New(cfg config.Config, log logr.Logger) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("environment configuration: %w", err)
	}
	r, err := rack.New(cfg.Environment.NumServers, cfg.Physics, cfg.Cooling, log)
	if err != nil {
		return nil, err
	}
	calc, err := reward.New(cfg.Reward)
	if err != nil {
		return nil, err
	}

	e := &Env{
		cfg:  cfg,
		rack: r,
		calc: calc,
		log:  log,
		obsSpec: ObservationSpec{
			NumServers:   cfg.Environment.NumServers,
			IncludeTrend: cfg.Environment.IncludeTrend,
		},
		phase:        PhaseUninitialized,
		currentLoads: make([]float64, cfg.Environment.NumServers),
		prevTemps:    make([]float64, cfg.Environment.NumServers),
	}
	log.Info("Thermal environment initialized",
		"servers", cfg.Environment.NumServers,
		"coolingMode", cfg.Cooling.Mode,
		"rewardProfile", cfg.Reward.Profile,
		"observationSize", e.obsSpec.Size())
	return e, nil
}

// ObservationSpec returns the fixed observation layout for this deployment.
func (e *Env) ObservationSpec() ObservationSpec { return e.obsSpec }

// Phase returns the current lifecycle state.
func (e *Env) Phase() Phase { return e.phase }

// StepCount returns the number of steps taken in the current episode.
func (e *Env) StepCount() int { return e.stepCount }

// SetRecorder attaches an optional per-step metrics sink.
func (e *Env) SetRecorder(r StepRecorder) { e.recorder = r }

// ResetWithSeed starts a new episode from a deterministic random stream.
// The same seed and action sequence reproduce the same trajectory exactly.
func (e *Env) ResetWithSeed(seed int64) ([]float64, Info, error) {
	e.rng = rand.New(rand.NewSource(seed))
	e.seeded = true
	return e.reset()
}

// Reset starts a new episode. If the environment was previously seeded the
// existing random stream continues; otherwise a time-based seed is drawn.
func (e *Env) Reset() ([]float64, Info, error) {
	if !e.seeded {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		e.seeded = true
	}
	return e.reset()
}

func (e *Env) reset() ([]float64, Info, error) {
	envCfg := e.cfg.Environment

	if err := e.rack.Reset(e.initialTemperatures()); err != nil {
		return nil, nil, err
	}

	for i := range e.currentLoads {
		span := envCfg.MaxInitialLoad - envCfg.MinInitialLoad
		e.currentLoads[i] = envCfg.MinInitialLoad + e.rng.Float64()*span
	}
	copy(e.prevTemps, e.rack.Temperatures())
	e.prevActions = nil

	e.stepCount = 0
	e.episodeCount++
	e.episodeRewards = e.episodeRewards[:0]
	e.episodeTemps = e.episodeTemps[:0]
	e.episodePowers = e.episodePowers[:0]
	e.phase = PhaseReady

	return e.observe(), e.info(), nil
}

// initialTemperatures returns nil (start at ambient) unless pre-warmed
// starts are configured, in which case each server draws uniformly from the
// configured range.
func (e *Env) initialTemperatures() []float64 {
	envCfg := e.cfg.Environment
	if envCfg.PrewarmMax <= 0 {
		return nil
	}
	temps := make([]float64, envCfg.NumServers)
	for i := range temps {
		temps[i] = envCfg.PrewarmMin + e.rng.Float64()*(envCfg.PrewarmMax-envCfg.PrewarmMin)
	}
	return temps
}

// Step advances the simulation by one control interval:
//
//  1. clamp the action to [0,1]
//  2. drift each server's workload by seeded Gaussian noise
//  3. run the rack physics
//  4. shape the reward
//  5. evaluate termination (safety) and truncation (time budget)
//  6. build the observation
//
// A step either completes deterministically or fails fast on invalid input;
// a catastrophic thermal excursion is a terminal outcome, not an error.
func (e *Env) Step(action []float64) (StepResult, error) {
	if e.phase != PhaseReady && e.phase != PhaseStepping {
		return StepResult{}, ErrNotReady
	}
	// Validate before touching any state, so a failed call perturbs
	// neither the workload nor the random stream.
	if len(action) != e.cfg.Environment.NumServers {
		return StepResult{}, fmt.Errorf("%w: got %d actions, want %d",
			rack.ErrDimensionMismatch, len(action), e.cfg.Environment.NumServers)
	}

	clamped := make([]float64, len(action))
	for i, a := range action {
		clamped[i] = clamp01(a)
	}

	// Organic workload drift, independent of the agent's action.
	for i := range e.currentLoads {
		noise := e.rng.NormFloat64() * e.cfg.Environment.LoadStd
		e.currentLoads[i] = clamp01(e.currentLoads[i] + noise)
	}
	copy(e.prevTemps, e.rack.Temperatures())

	stats, err := e.rack.Update(e.currentLoads, clamped, e.cfg.Environment.Dt)
	if err != nil {
		return StepResult{}, err
	}

	breakdown := e.calc.Compute(stats, clamped, e.prevActions)
	e.prevActions = clamped

	maxTemp := e.rack.MaxTemperature()
	terminated := maxTemp >= e.cfg.Physics.MaxTemp
	e.stepCount++
	truncated := !terminated && e.stepCount >= e.cfg.Environment.EpisodeLength

	e.phase = PhaseStepping
	if terminated {
		e.phase = PhaseTerminated
		e.log.Info("Episode terminated on thermal safety failure",
			"episode", e.episodeCount,
			"step", e.stepCount,
			"maxTemp", maxTemp)
	} else if truncated {
		e.phase = PhaseTruncated
	}

	e.episodeRewards = append(e.episodeRewards, breakdown.Total)
	e.episodeTemps = append(e.episodeTemps, maxTemp)
	e.episodePowers = append(e.episodePowers, e.rack.TotalPower())

	info := e.info()
	if e.recorder != nil {
		e.recorder.RecordStep(info)
	}

	return StepResult{
		Observation: e.observe(),
		Reward:      breakdown.Total,
		Terminated:  terminated,
		Truncated:   truncated,
		Info:        info,
		Breakdown:   breakdown,
	}, nil
}

// info builds the auxiliary metrics channel. The four documented keys
// (total_power, max_temp, avg_temp, avg_health) are a stable contract;
// the rest are advisory.
func (e *Env) info() Info {
	return Info{
		"total_power":   e.rack.TotalPower(),
		"max_temp":      e.rack.MaxTemperature(),
		"avg_temp":      e.rack.AvgTemperature(),
		"avg_health":    e.rack.AvgHealth(),
		"it_power":      e.rack.ITPower(),
		"cooling_power": e.rack.CoolingPower(),
		"step":          float64(e.stepCount),
		"episode":       float64(e.episodeCount),
	}
}

// EpisodeSummary condenses the rolling per-step histories. The histories
// feed only this summary channel, never the physics.
type EpisodeSummary struct {
	Episode     int
	Steps       int
	TotalReward float64
	MeanReward  float64
	PeakTemp    float64
	MeanPower   float64
}

// Summary reports the current episode's bookkeeping.
func (e *Env) Summary() EpisodeSummary {
	s := EpisodeSummary{
		Episode: e.episodeCount,
		Steps:   e.stepCount,
	}
	if len(e.episodeRewards) > 0 {
		s.TotalReward = floats.Sum(e.episodeRewards)
		s.MeanReward = stat.Mean(e.episodeRewards, nil)
		s.PeakTemp = floats.Max(e.episodeTemps)
		s.MeanPower = stat.Mean(e.episodePowers, nil)
	}
	return s
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

/*
Copyright 2026 The thermalstack Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
)

// PhysicsConfig holds the per-server thermal and electrical model parameters.
// All values are immutable for the duration of a run.
type PhysicsConfig struct {
	// AmbientTemp is the room ambient temperature in °C.
	AmbientTemp float64 `yaml:"ambientTemp" mapstructure:"ambientTemp"`

	// MinTemp and MaxTemp bound the server temperature state in °C.
	// MaxTemp is also the catastrophic shutdown limit.
	MinTemp float64 `yaml:"minTemp" mapstructure:"minTemp"`
	MaxTemp float64 `yaml:"maxTemp" mapstructure:"maxTemp"`

	// ThermalMass is the effective heat capacity in J/K governing how fast
	// temperature responds to net heat.
	ThermalMass float64 `yaml:"thermalMass" mapstructure:"thermalMass"`

	// IdlePower and MaxPower bound the IT electrical draw in Watts.
	IdlePower float64 `yaml:"idlePower" mapstructure:"idlePower"`
	MaxPower  float64 `yaml:"maxPower" mapstructure:"maxPower"`

	// PowerExponent is the r coefficient of the load power law
	// Pdyn = (Pmax-Pidle)·(2u - u^r).
	PowerExponent float64 `yaml:"powerExponent" mapstructure:"powerExponent"`

	// MaxTempChangeRate limits the per-step temperature change in °C.
	MaxTempChangeRate float64 `yaml:"maxTempChangeRate" mapstructure:"maxTempChangeRate"`

	// Leakage models temperature-dependent static power:
	// Pleak = LeakageBasePower·exp(LeakageCoeff·(T - LeakageRefTemp)).
	LeakageBasePower float64 `yaml:"leakageBasePower" mapstructure:"leakageBasePower"`
	LeakageCoeff     float64 `yaml:"leakageCoeff" mapstructure:"leakageCoeff"`
	LeakageRefTemp   float64 `yaml:"leakageRefTemp" mapstructure:"leakageRefTemp"`

	// Arrhenius aging: per-second health loss at temperature T (Kelvin) is
	// AgingBaseRate·exp(AgingEaOverKb·(1/AgingRefTempK - 1/T)).
	AgingBaseRate float64 `yaml:"agingBaseRate" mapstructure:"agingBaseRate"`
	AgingEaOverKb float64 `yaml:"agingEaOverKb" mapstructure:"agingEaOverKb"`
	AgingRefTempK float64 `yaml:"agingRefTempK" mapstructure:"agingRefTempK"`
}

// CoolingConfig holds the cooling subsystem coefficients shared by all modes.
type CoolingConfig struct {
	// Mode selects the cooling variant: "AIR", "LIQUID" or "HYBRID".
	Mode string `yaml:"mode" mapstructure:"mode"`

	// MaxFanPower is the fan draw at full flow in Watts.
	MaxFanPower float64 `yaml:"maxFanPower" mapstructure:"maxFanPower"`

	// MaxPumpPower and BasePumpPower parameterize the liquid loop in Watts.
	MaxPumpPower  float64 `yaml:"maxPumpPower" mapstructure:"maxPumpPower"`
	BasePumpPower float64 `yaml:"basePumpPower" mapstructure:"basePumpPower"`

	// AirCapacity and LiquidCapacity are full-flow removal capacities in Watts.
	AirCapacity    float64 `yaml:"airCapacity" mapstructure:"airCapacity"`
	LiquidCapacity float64 `yaml:"liquidCapacity" mapstructure:"liquidCapacity"`

	// NaturalConvection is the passive removal floor in Watts, present at
	// zero flow.
	NaturalConvection float64 `yaml:"naturalConvection" mapstructure:"naturalConvection"`

	// EconomizerCutoff is the ambient temperature in °C below which the air
	// mode earns free-cooling capacity. EconomizerRefDelta is the ambient
	// drop in °C that yields one full unit of bonus scale.
	EconomizerCutoff   float64 `yaml:"economizerCutoff" mapstructure:"economizerCutoff"`
	EconomizerRefDelta float64 `yaml:"economizerRefDelta" mapstructure:"economizerRefDelta"`
}

// RewardConfig holds the weights and thresholds of the shaped reward. A
// Profile rescales the configured term weights; it never selects a different
// formula.
type RewardConfig struct {
	// Profile names a coefficient preset: "balanced", "safety-first" or
	// "efficiency-first". An unknown name is a construction-time error.
	Profile string `yaml:"profile" mapstructure:"profile"`

	// Energy term: EnergyWeight·max(0, PUETarget - PUE)^PUEExponent.
	EnergyWeight float64 `yaml:"energyWeight" mapstructure:"energyWeight"`
	PUETarget    float64 `yaml:"pueTarget" mapstructure:"pueTarget"`
	PUEExponent  float64 `yaml:"pueExponent" mapstructure:"pueExponent"`

	// Thermal term: ThermalWeight·exp(-ThermalSharpness·(avgT - IdealTemp)²).
	ThermalWeight    float64 `yaml:"thermalWeight" mapstructure:"thermalWeight"`
	IdealTemp        float64 `yaml:"idealTemp" mapstructure:"idealTemp"`
	ThermalSharpness float64 `yaml:"thermalSharpness" mapstructure:"thermalSharpness"`

	// Safety term: quadratic in (maxT - SoftLimit) up to HardLimit, linear
	// beyond it, clipped at SafetyCap.
	SafetyWeight float64 `yaml:"safetyWeight" mapstructure:"safetyWeight"`
	SoftLimit    float64 `yaml:"softLimit" mapstructure:"softLimit"`
	HardLimit    float64 `yaml:"hardLimit" mapstructure:"hardLimit"`
	SafetyCap    float64 `yaml:"safetyCap" mapstructure:"safetyCap"`

	// Action cost: ActionWeight·mean(action)² plus
	// ActionDeltaWeight·mean(action - prevAction)². A zero delta weight
	// disables the oscillation penalty.
	ActionWeight      float64 `yaml:"actionWeight" mapstructure:"actionWeight"`
	ActionDeltaWeight float64 `yaml:"actionDeltaWeight" mapstructure:"actionDeltaWeight"`

	// Health term: HealthWeight·(1 - avgHealth).
	HealthWeight float64 `yaml:"healthWeight" mapstructure:"healthWeight"`

	// CatastrophicPenalty is subtracted once when max temperature reaches
	// CriticalLimit (°C); the episode terminates on the same step.
	CatastrophicPenalty float64 `yaml:"catastrophicPenalty" mapstructure:"catastrophicPenalty"`
	CriticalLimit       float64 `yaml:"criticalLimit" mapstructure:"criticalLimit"`
}

// EnvironmentConfig holds the episode structure parameters.
type EnvironmentConfig struct {
	// NumServers is the rack size; load and action vectors must carry
	// exactly this many entries.
	NumServers int `yaml:"numServers" mapstructure:"numServers"`

	// EpisodeLength is the step budget before truncation.
	EpisodeLength int `yaml:"episodeLength" mapstructure:"episodeLength"`

	// LoadStd is the per-step Gaussian drift applied to each server load.
	LoadStd float64 `yaml:"loadStd" mapstructure:"loadStd"`

	// Initial loads are drawn uniformly from [MinInitialLoad, MaxInitialLoad].
	MinInitialLoad float64 `yaml:"minInitialLoad" mapstructure:"minInitialLoad"`
	MaxInitialLoad float64 `yaml:"maxInitialLoad" mapstructure:"maxInitialLoad"`

	// PrewarmMin/PrewarmMax, when both positive, randomize the reset
	// temperature uniformly in that range instead of starting at ambient.
	PrewarmMin float64 `yaml:"prewarmMin" mapstructure:"prewarmMin"`
	PrewarmMax float64 `yaml:"prewarmMax" mapstructure:"prewarmMax"`

	// IncludeTrend appends a bounded temperature-trend block to the
	// observation. Fixed at construction; see env.ObservationSpec.
	IncludeTrend bool `yaml:"includeTrend" mapstructure:"includeTrend"`

	// Dt is the simulated seconds per step.
	Dt float64 `yaml:"dt" mapstructure:"dt"`
}

// Config is the root configuration record passed to the environment
// constructor. There is no process-wide mutable configuration; every
// component receives its section explicitly.
type Config struct {
	Physics     PhysicsConfig     `yaml:"physics" mapstructure:"physics"`
	Cooling     CoolingConfig     `yaml:"cooling" mapstructure:"cooling"`
	Reward      RewardConfig      `yaml:"reward" mapstructure:"reward"`
	Environment EnvironmentConfig `yaml:"environment" mapstructure:"environment"`
}

// Default returns the documented default configuration. The simulation must
// remain usable for smoke testing with no config file present, so every
// field here is a complete, coherent setting.
func Default() Config {
	return Config{
		Physics: PhysicsConfig{
			AmbientTemp:       22.0,
			MinTemp:           22.0,
			MaxTemp:           95.0,
			ThermalMass:       15000.0,
			IdlePower:         200.0,
			MaxPower:          800.0,
			PowerExponent:     0.5,
			MaxTempChangeRate: 5.0,
			LeakageBasePower:  15.0,
			LeakageCoeff:      0.02,
			LeakageRefTemp:    45.0,
			AgingBaseRate:     1e-6,
			AgingEaOverKb:     5000.0,
			AgingRefTempK:     318.15,
		},
		Cooling: CoolingConfig{
			Mode:               "AIR",
			MaxFanPower:        500.0,
			MaxPumpPower:       50.0,
			BasePumpPower:      10.0,
			AirCapacity:        3000.0,
			LiquidCapacity:     12000.0,
			NaturalConvection:  50.0,
			EconomizerCutoff:   18.0,
			EconomizerRefDelta: 10.0,
		},
		Reward: RewardConfig{
			Profile:             "balanced",
			EnergyWeight:        80.0,
			PUETarget:           1.15,
			PUEExponent:         1.0,
			ThermalWeight:       400.0,
			IdealTemp:           45.0,
			ThermalSharpness:    0.015,
			SafetyWeight:        500.0,
			SoftLimit:           70.0,
			HardLimit:           85.0,
			SafetyCap:           5000.0,
			ActionWeight:        100.0,
			ActionDeltaWeight:   0.0,
			HealthWeight:        2000.0,
			CatastrophicPenalty: 5000.0,
			CriticalLimit:       95.0,
		},
		Environment: EnvironmentConfig{
			NumServers:     10,
			EpisodeLength:  1000,
			LoadStd:        0.1,
			MinInitialLoad: 0.1,
			MaxInitialLoad: 0.3,
			PrewarmMin:     0.0,
			PrewarmMax:     0.0,
			IncludeTrend:   false,
			Dt:             1.0,
		},
	}
}

// Validate checks for invalid physics values.
func (c *PhysicsConfig) Validate() error {
	if c.MinTemp >= c.MaxTemp {
		return fmt.Errorf("minTemp (%.1f) must be below maxTemp (%.1f)", c.MinTemp, c.MaxTemp)
	}
	if c.AmbientTemp < c.MinTemp || c.AmbientTemp > c.MaxTemp {
		return fmt.Errorf("ambientTemp (%.1f) must lie within [%.1f, %.1f]", c.AmbientTemp, c.MinTemp, c.MaxTemp)
	}
	if c.ThermalMass <= 0 {
		return fmt.Errorf("thermalMass must be positive, got %.1f", c.ThermalMass)
	}
	if c.IdlePower < 0 || c.MaxPower <= c.IdlePower {
		return fmt.Errorf("power bounds invalid: idle %.1f, max %.1f", c.IdlePower, c.MaxPower)
	}
	if c.MaxTempChangeRate <= 0 {
		return fmt.Errorf("maxTempChangeRate must be positive, got %.2f", c.MaxTempChangeRate)
	}
	if c.AgingRefTempK <= 0 {
		return fmt.Errorf("agingRefTempK must be positive Kelvin, got %.2f", c.AgingRefTempK)
	}
	return nil
}

// Validate checks for invalid cooling coefficients. Mode strings are checked
// by the cooling package at construction, not here.
func (c *CoolingConfig) Validate() error {
	if c.MaxFanPower < 0 || c.MaxPumpPower < 0 || c.BasePumpPower < 0 {
		return fmt.Errorf("cooling power coefficients must be non-negative")
	}
	if c.AirCapacity < 0 || c.LiquidCapacity < 0 || c.NaturalConvection < 0 {
		return fmt.Errorf("cooling capacities must be non-negative")
	}
	if c.EconomizerRefDelta <= 0 {
		return fmt.Errorf("economizerRefDelta must be positive, got %.1f", c.EconomizerRefDelta)
	}
	return nil
}

// Validate checks for invalid reward thresholds.
func (c *RewardConfig) Validate() error {
	if c.PUETarget < 1.0 {
		return fmt.Errorf("pueTarget must be >= 1.0, got %.2f", c.PUETarget)
	}
	if c.SoftLimit >= c.HardLimit {
		return fmt.Errorf("softLimit (%.1f) must be below hardLimit (%.1f)", c.SoftLimit, c.HardLimit)
	}
	if c.HardLimit > c.CriticalLimit {
		return fmt.Errorf("hardLimit (%.1f) must not exceed criticalLimit (%.1f)", c.HardLimit, c.CriticalLimit)
	}
	if c.SafetyCap <= 0 {
		return fmt.Errorf("safetyCap must be positive, got %.1f", c.SafetyCap)
	}
	return nil
}

// Validate checks for invalid episode structure.
func (c *EnvironmentConfig) Validate() error {
	if c.NumServers <= 0 {
		return fmt.Errorf("numServers must be positive, got %d", c.NumServers)
	}
	if c.EpisodeLength <= 0 {
		return fmt.Errorf("episodeLength must be positive, got %d", c.EpisodeLength)
	}
	if c.MinInitialLoad > c.MaxInitialLoad {
		return fmt.Errorf("minInitialLoad (%.2f) must not exceed maxInitialLoad (%.2f)", c.MinInitialLoad, c.MaxInitialLoad)
	}
	if c.PrewarmMin > c.PrewarmMax {
		return fmt.Errorf("prewarmMin (%.1f) must not exceed prewarmMax (%.1f)", c.PrewarmMin, c.PrewarmMax)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %.2f", c.Dt)
	}
	return nil
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Physics.Validate(); err != nil {
		return fmt.Errorf("physics: %w", err)
	}
	if err := c.Cooling.Validate(); err != nil {
		return fmt.Errorf("cooling: %w", err)
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("reward: %w", err)
	}
	if err := c.Environment.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Package config provides configuration management for the rack thermal
// simulator.
//
// This package handles loading, validation, and access to simulation
// configuration from YAML files, with documented defaults for every field.
//
// Configuration Types:
//
//   - PhysicsConfig: per-server thermal/electrical model (power law,
//     leakage, thermal mass, temperature bounds, Arrhenius aging)
//   - CoolingConfig: cooling mode selection and per-mode coefficients
//   - RewardConfig: reward weights, thresholds, and the named profile
//   - EnvironmentConfig: rack size, episode length, workload drift
//
// Configuration Sources:
//
//  1. YAML file values (highest priority)
//  2. Default values (lowest priority)
//
// A missing or corrupt file is recovered by substituting the defaults with a
// logged warning, so the simulation stays usable with no config present. A
// structurally invalid configuration is an error: the simulator never
// silently runs different physics than requested.
//
// Example usage:
//
//	cfg, err := config.Load("racksim.yaml", logger)
//	if err != nil {
//	    return err
//	}
//
//	logger.Info("simulation configuration",
//	    "servers", cfg.Environment.NumServers,
//	    "coolingMode", cfg.Cooling.Mode,
//	    "rewardProfile", cfg.Reward.Profile)
package config

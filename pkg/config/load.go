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
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file and merges it over the documented
// defaults. Failures are recovered, never silently absorbed: a missing or
// unreadable file yields the defaults with a logged warning, and a section
// that fails validation (e.g. inverted temperature bounds) is replaced by
// its default section, again with a warning. The simulation stays usable
// for smoke testing with no valid config present. Unknown cooling modes and
// reward profiles are not checked here; they fail fast at environment
// construction.
func Load(path string, logger logr.Logger) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		logger.Info("Config file not loaded, falling back to defaults",
			"path", path,
			"reason", err.Error())
		return cfg, nil
	}

	if err := v.Unmarshal(&cfg); err != nil {
		logger.Info("Config file not parseable, falling back to defaults",
			"path", path,
			"reason", err.Error())
		return Default(), nil
	}

	defaults := Default()
	if err := cfg.Physics.Validate(); err != nil {
		logger.Info("Invalid physics section, using defaults", "path", path, "reason", err.Error())
		cfg.Physics = defaults.Physics
	}
	if err := cfg.Cooling.Validate(); err != nil {
		logger.Info("Invalid cooling section, using defaults", "path", path, "reason", err.Error())
		cfg.Cooling = defaults.Cooling
	}
	if err := cfg.Reward.Validate(); err != nil {
		logger.Info("Invalid reward section, using defaults", "path", path, "reason", err.Error())
		cfg.Reward = defaults.Reward
	}
	if err := cfg.Environment.Validate(); err != nil {
		logger.Info("Invalid environment section, using defaults", "path", path, "reason", err.Error())
		cfg.Environment = defaults.Environment
	}
	return cfg, nil
}

// setDefaults registers every field so that partially specified files
// inherit the documented values rather than zeroes.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("physics", structToMap(cfg.Physics))
	v.SetDefault("cooling", structToMap(cfg.Cooling))
	v.SetDefault("reward", structToMap(cfg.Reward))
	v.SetDefault("environment", structToMap(cfg.Environment))
}

// structToMap round-trips a section through YAML to obtain the keyed form
// viper expects for section defaults.
func structToMap(section any) map[string]any {
	raw, err := yaml.Marshal(section)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Save writes the configuration as YAML, matching the format Load reads.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config to %q: %w", path, err)
	}
	return nil
}

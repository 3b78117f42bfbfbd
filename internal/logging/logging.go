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

// Package logging constructs the logr.Logger instances used across the
// simulator. Components never hold package-level loggers; a logger is passed
// into each constructor.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewLogger returns a production logger. Verbosity maps logr V-levels onto
// zap levels: V(0) is info, V(1) and above are debug.
func NewLogger(development bool) logr.Logger {
	var zl *zap.Logger
	var err error
	if development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		// zap's presets only fail on invalid sink URLs, which none of the
		// presets use. Fall back to a no-op logger rather than panic.
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}

// NewTestLogger returns a development-mode logger for use in test suites.
func NewTestLogger() logr.Logger {
	zl := zap.Must(zap.NewDevelopment())
	return zapr.NewLogger(zl)
}

// Package metrics exports simulation gauges to Prometheus. The recorder is
// an optional sink attached to an environment; the simulation itself never
// depends on it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thermalstack/racksim/internal/env"
)

// Recorder publishes the environment's per-step info channel as gauges.
type Recorder struct {
	totalPower   prometheus.Gauge
	itPower      prometheus.Gauge
	coolingPower prometheus.Gauge
	maxTemp      prometheus.Gauge
	avgTemp      prometheus.Gauge
	avgHealth    prometheus.Gauge
	steps        prometheus.Counter
}

var _ env.StepRecorder = (*Recorder)(nil)

// NewRecorder builds a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		totalPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_total_power_watts",
			Help: "Rack power draw including cooling.",
		}),
		itPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_it_power_watts",
			Help: "IT equipment power draw.",
		}),
		coolingPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_cooling_power_watts",
			Help: "Cooling apparatus power draw.",
		}),
		maxTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_max_temperature_celsius",
			Help: "Hottest server temperature in the rack.",
		}),
		avgTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_avg_temperature_celsius",
			Help: "Mean server temperature in the rack.",
		}),
		avgHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "racksim_avg_health_ratio",
			Help: "Mean server health score, 1.0 is new.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racksim_steps_total",
			Help: "Simulation steps executed.",
		}),
	}
	reg.MustRegister(r.totalPower, r.itPower, r.coolingPower, r.maxTemp, r.avgTemp, r.avgHealth, r.steps)
	return r
}

// RecordStep implements env.StepRecorder.
func (r *Recorder) RecordStep(info env.Info) {
	r.totalPower.Set(info["total_power"])
	r.itPower.Set(info["it_power"])
	r.coolingPower.Set(info["cooling_power"])
	r.maxTemp.Set(info["max_temp"])
	r.avgTemp.Set(info["avg_temp"])
	r.avgHealth.Set(info["avg_health"])
	r.steps.Inc()
}

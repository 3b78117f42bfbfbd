package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/thermalstack/racksim/internal/env"
)

func TestRecorderExportsStepInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	rec.RecordStep(env.Info{
		"total_power":   4200.0,
		"it_power":      3800.0,
		"cooling_power": 400.0,
		"max_temp":      61.5,
		"avg_temp":      55.0,
		"avg_health":    0.98,
	})
	rec.RecordStep(env.Info{
		"total_power":   4100.0,
		"it_power":      3750.0,
		"cooling_power": 350.0,
		"max_temp":      60.0,
		"avg_temp":      54.0,
		"avg_health":    0.97,
	})

	assert.Equal(t, 4100.0, testutil.ToFloat64(rec.totalPower))
	assert.Equal(t, 3750.0, testutil.ToFloat64(rec.itPower))
	assert.Equal(t, 350.0, testutil.ToFloat64(rec.coolingPower))
	assert.Equal(t, 60.0, testutil.ToFloat64(rec.maxTemp))
	assert.Equal(t, 54.0, testutil.ToFloat64(rec.avgTemp))
	assert.Equal(t, 0.97, testutil.ToFloat64(rec.avgHealth))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.steps))
}

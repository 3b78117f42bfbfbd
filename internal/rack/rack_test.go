package rack

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermalstack/racksim/pkg/config"
)

func newTestRack(t *testing.T, numServers int) *Rack {
	t.Helper()
	cfg := config.Default()
	r, err := New(numServers, cfg.Physics, cfg.Cooling, logr.Discard())
	require.NoError(t, err)
	return r
}

func TestNewRejectsBadInputs(t *testing.T) {
	cfg := config.Default()

	_, err := New(0, cfg.Physics, cfg.Cooling, logr.Discard())
	require.Error(t, err)

	badCooling := cfg.Cooling
	badCooling.Mode = "CRYOGENIC"
	_, err = New(4, cfg.Physics, badCooling, logr.Discard())
	require.Error(t, err)
}

func TestUpdateValidatesVectorLengths(t *testing.T) {
	r := newTestRack(t, 4)

	tests := []struct {
		name    string
		loads   []float64
		actions []float64
	}{
		{name: "short loads", loads: []float64{0.5, 0.5, 0.5}, actions: []float64{0.5, 0.5, 0.5, 0.5}},
		{name: "long loads", loads: make([]float64, 5), actions: make([]float64, 4)},
		{name: "short actions", loads: make([]float64, 4), actions: make([]float64, 2)},
		{name: "empty loads", loads: nil, actions: make([]float64, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Update(tt.loads, tt.actions, 1.0)
			require.ErrorIs(t, err, ErrDimensionMismatch)
		})
	}
}

func TestUpdateAggregatesStats(t *testing.T) {
	r := newTestRack(t, 3)

	loads := []float64{0.2, 0.5, 0.9}
	actions := []float64{0.3, 0.3, 0.3}
	stats, err := r.Update(loads, actions, 1.0)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	coolingSum, itSum := 0.0, 0.0
	for i, s := range stats {
		assert.Equal(t, i, s.ServerID)
		coolingSum += s.CoolingPower
		itSum += s.ITPower
	}
	assert.InDelta(t, coolingSum, r.CoolingPower(), 1e-9)
	assert.InDelta(t, itSum, r.ITPower(), 1e-9)
	assert.InDelta(t, itSum+coolingSum, r.TotalPower(), 1e-9)

	// Higher load means higher draw, so the max/avg queries must reflect
	// the ordered per-server states.
	temps := r.Temperatures()
	require.Len(t, temps, 3)
	assert.Equal(t, r.MaxTemperature(), temps[2])
	assert.GreaterOrEqual(t, r.MaxTemperature(), r.AvgTemperature())
	assert.InDelta(t, 1.0, r.AvgHealth(), 1e-3)
}

func TestUpdateClampsOutOfRangeVectors(t *testing.T) {
	r := newTestRack(t, 2)

	stats, err := r.Update([]float64{-3.0, 9.0}, []float64{7.0, -1.0}, 1.0)
	require.NoError(t, err)

	// Clamped load 0 draws idle + leakage only; clamped load 1 draws the
	// full dynamic term on top.
	assert.Less(t, stats[0].ITPower, stats[1].ITPower)
	assert.Equal(t, 0.0, r.Servers()[0].Load())
	assert.Equal(t, 1.0, r.Servers()[1].Load())
}

func TestRackReset(t *testing.T) {
	r := newTestRack(t, 3)

	loads := []float64{1.0, 1.0, 1.0}
	actions := []float64{0.0, 0.0, 0.0}
	for i := 0; i < 20; i++ {
		_, err := r.Update(loads, actions, 1.0)
		require.NoError(t, err)
	}
	require.Greater(t, r.MaxTemperature(), config.Default().Physics.AmbientTemp)

	require.NoError(t, r.Reset(nil))
	assert.Equal(t, config.Default().Physics.AmbientTemp, r.MaxTemperature())
	assert.Equal(t, 0.0, r.CoolingPower())
	assert.Equal(t, 1.0, r.AvgHealth())
}

func TestRackResetPrewarmed(t *testing.T) {
	r := newTestRack(t, 2)

	require.NoError(t, r.Reset([]float64{40.0, 45.0}))
	assert.Equal(t, []float64{40.0, 45.0}, r.Temperatures())

	err := r.Reset([]float64{40.0})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

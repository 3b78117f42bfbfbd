package env

// ObservationSpec documents the fixed observation layout. The channel set is
// a construction-time choice and never changes mid-run.
//
// The vector is a concatenation of per-server blocks, each NumServers wide,
// every entry in [0,1]:
//
//	[0, N)    normalized temperature: (T - MinTemp) / (MaxTemp - MinTemp), clamped
//	[N, 2N)   raw load
//	[2N, 3N)  raw health
//	[3N, 4N)  temperature trend (only when IncludeTrend): 0.5 is steady,
//	          0 is cooling at the max rate, 1 is heating at the max rate
type ObservationSpec struct {
	NumServers   int
	IncludeTrend bool
}

// Size returns the observation vector length.
func (s ObservationSpec) Size() int {
	blocks := 3
	if s.IncludeTrend {
		blocks = 4
	}
	return blocks * s.NumServers
}

// Channels names the blocks in layout order.
func (s ObservationSpec) Channels() []string {
	channels := []string{"temperature", "load", "health"}
	if s.IncludeTrend {
		channels = append(channels, "trend")
	}
	return channels
}

// observe builds the observation vector from the current rack state.
func (e *Env) observe() []float64 {
	n := e.obsSpec.NumServers
	obs := make([]float64, e.obsSpec.Size())

	p := e.cfg.Physics
	tempSpan := p.MaxTemp - p.MinTemp
	temps := e.rack.Temperatures()
	healths := e.rack.Healths()

	for i := 0; i < n; i++ {
		obs[i] = clamp01((temps[i] - p.MinTemp) / tempSpan)
		obs[n+i] = e.currentLoads[i]
		obs[2*n+i] = healths[i]
	}

	if e.obsSpec.IncludeTrend {
		// Bounded trend: the per-step delta normalized against the maximum
		// change rate, recentered so 0.5 means no movement.
		for i := 0; i < n; i++ {
			delta := temps[i] - e.prevTemps[i]
			obs[3*n+i] = clamp01(0.5 + delta/(2*p.MaxTempChangeRate))
		}
	}
	return obs
}

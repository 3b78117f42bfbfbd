package env

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/thermalstack/racksim/internal/rack"
	"github.com/thermalstack/racksim/pkg/config"
)

// smallConfig is the default configuration shrunk to three servers so the
// suite runs fast.
func smallConfig() config.Config {
	cfg := config.Default()
	cfg.Environment.NumServers = 3
	return cfg
}

// runawayConfig is tuned so a fully loaded, uncooled rack hits the thermal
// limit well inside one episode.
func runawayConfig() config.Config {
	cfg := smallConfig()
	cfg.Physics.ThermalMass = 500.0
	cfg.Environment.LoadStd = 0.0
	cfg.Environment.MinInitialLoad = 1.0
	cfg.Environment.MaxInitialLoad = 1.0
	return cfg
}

func mustEnv(cfg config.Config) *Env {
	e, err := New(cfg, logr.Discard())
	Expect(err).NotTo(HaveOccurred())
	return e
}

var _ = Describe("ThermalEnvironment", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = smallConfig()
	})

	Context("construction", func() {
		It("rejects an unknown cooling mode", func() {
			cfg.Cooling.Mode = "MAGIC"
			_, err := New(cfg, logr.Discard())
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown reward profile", func() {
			cfg.Reward.Profile = "vibes"
			_, err := New(cfg, logr.Discard())
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid physics bounds", func() {
			cfg.Physics.MinTemp = 100.0
			_, err := New(cfg, logr.Discard())
			Expect(err).To(HaveOccurred())
		})
	})

	Context("lifecycle", func() {
		It("starts uninitialized and refuses to step before reset", func() {
			e := mustEnv(cfg)
			Expect(e.Phase()).To(Equal(PhaseUninitialized))
			_, err := e.Step([]float64{0, 0, 0})
			Expect(err).To(MatchError(ErrNotReady))
		})

		It("moves through Ready and Stepping", func() {
			e := mustEnv(cfg)
			_, _, err := e.ResetWithSeed(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Phase()).To(Equal(PhaseReady))

			_, err = e.Step([]float64{0.5, 0.5, 0.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Phase()).To(Equal(PhaseStepping))
		})

		It("fails fast on a mismatched action vector", func() {
			e := mustEnv(cfg)
			_, _, err := e.ResetWithSeed(1)
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Step([]float64{0.5, 0.5})
			Expect(err).To(MatchError(rack.ErrDimensionMismatch))
		})
	})

	Context("determinism", func() {
		It("reproduces the initial observation for the same seed", func() {
			e := mustEnv(cfg)
			first, _, err := e.ResetWithSeed(42)
			Expect(err).NotTo(HaveOccurred())
			second, _, err := e.ResetWithSeed(42)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("produces bit-identical trajectories across instances", func() {
			e1 := mustEnv(cfg)
			e2 := mustEnv(cfg)

			obs1, _, err := e1.ResetWithSeed(7)
			Expect(err).NotTo(HaveOccurred())
			obs2, _, err := e2.ResetWithSeed(7)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs1).To(Equal(obs2))

			actionRng := rand.New(rand.NewSource(99))
			for i := 0; i < 200; i++ {
				action := []float64{actionRng.Float64(), actionRng.Float64(), actionRng.Float64()}
				r1, err := e1.Step(action)
				Expect(err).NotTo(HaveOccurred())
				r2, err := e2.Step(action)
				Expect(err).NotTo(HaveOccurred())

				Expect(r1.Reward).To(Equal(r2.Reward), "step %d", i)
				Expect(r1.Observation).To(Equal(r2.Observation), "step %d", i)
			}
		})
	})

	Context("observation", func() {
		It("has the documented layout and stays in [0,1]", func() {
			e := mustEnv(cfg)
			Expect(e.ObservationSpec().Size()).To(Equal(9))
			Expect(e.ObservationSpec().Channels()).To(Equal([]string{"temperature", "load", "health"}))

			obs, _, err := e.ResetWithSeed(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs).To(HaveLen(9))

			for i := 0; i < 500; i++ {
				result, err := e.Step([]float64{0.2, 0.8, 0.5})
				Expect(err).NotTo(HaveOccurred())
				for j, v := range result.Observation {
					Expect(v).To(BeNumerically(">=", 0.0), "channel %d", j)
					Expect(v).To(BeNumerically("<=", 1.0), "channel %d", j)
				}
			}
		})

		It("appends a trend block when configured", func() {
			cfg.Environment.IncludeTrend = true
			e := mustEnv(cfg)
			Expect(e.ObservationSpec().Size()).To(Equal(12))
			Expect(e.ObservationSpec().Channels()).To(ContainElement("trend"))

			obs, _, err := e.ResetWithSeed(3)
			Expect(err).NotTo(HaveOccurred())
			// The trend block is neutral at reset: no previous movement.
			for i := 9; i < 12; i++ {
				Expect(obs[i]).To(Equal(0.5))
			}
		})
	})

	Context("physical invariants", func() {
		It("keeps temperature and health in bounds every step", func() {
			e := mustEnv(runawayConfig())
			_, _, err := e.ResetWithSeed(5)
			Expect(err).NotTo(HaveOccurred())

			actionRng := rand.New(rand.NewSource(13))
			for {
				action := []float64{actionRng.Float64(), actionRng.Float64(), actionRng.Float64()}
				result, err := e.Step(action)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Info["max_temp"]).To(BeNumerically("<=", cfg.Physics.MaxTemp))
				Expect(result.Info["avg_health"]).To(BeNumerically(">=", 0.0))
				Expect(result.Info["avg_health"]).To(BeNumerically("<=", 1.0))

				if result.Terminated || result.Truncated {
					break
				}
			}
		})
	})

	Context("termination", func() {
		It("terminates on the exact step the thermal limit is reached, with the catastrophic penalty", func() {
			e := mustEnv(runawayConfig())
			_, _, err := e.ResetWithSeed(17)
			Expect(err).NotTo(HaveOccurred())

			noCooling := []float64{0, 0, 0}
			prevMax := 0.0
			for {
				result, err := e.Step(noCooling)
				Expect(err).NotTo(HaveOccurred())

				if result.Terminated {
					Expect(result.Info["max_temp"]).To(BeNumerically(">=", cfg.Physics.MaxTemp))
					Expect(prevMax).To(BeNumerically("<", cfg.Physics.MaxTemp))
					Expect(result.Breakdown.Catastrophic).To(BeNumerically(">", 0.0))
					Expect(e.Phase()).To(Equal(PhaseTerminated))
					break
				}
				Expect(result.Truncated).To(BeFalse(), "episode must terminate before the time budget")
				prevMax = result.Info["max_temp"]
			}

			_, err = e.Step(noCooling)
			Expect(err).To(MatchError(ErrNotReady))
		})

		It("truncates exactly at the episode length and not before", func() {
			e := mustEnv(cfg)
			_, _, err := e.ResetWithSeed(23)
			Expect(err).NotTo(HaveOccurred())

			fullCooling := []float64{1, 1, 1}
			for i := 1; i <= cfg.Environment.EpisodeLength; i++ {
				result, err := e.Step(fullCooling)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Terminated).To(BeFalse())

				if i < cfg.Environment.EpisodeLength {
					Expect(result.Truncated).To(BeFalse(), "step %d", i)
				} else {
					Expect(result.Truncated).To(BeTrue())
					Expect(e.Phase()).To(Equal(PhaseTruncated))
				}
			}
		})

		It("allows a new episode after a terminal state", func() {
			e := mustEnv(runawayConfig())
			_, _, err := e.ResetWithSeed(29)
			Expect(err).NotTo(HaveOccurred())
			for {
				result, err := e.Step([]float64{0, 0, 0})
				Expect(err).NotTo(HaveOccurred())
				if result.Terminated {
					break
				}
			}

			_, _, err = e.ResetWithSeed(29)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Phase()).To(Equal(PhaseReady))
			Expect(e.StepCount()).To(Equal(0))
		})
	})

	Context("info channel", func() {
		It("carries the documented keys", func() {
			e := mustEnv(cfg)
			_, info, err := e.ResetWithSeed(31)
			Expect(err).NotTo(HaveOccurred())
			for _, key := range []string{"total_power", "max_temp", "avg_temp", "avg_health"} {
				Expect(info).To(HaveKey(key))
			}

			result, err := e.Step([]float64{0.5, 0.5, 0.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Info["total_power"]).To(BeNumerically(">", 0.0))
			Expect(result.Info["max_temp"]).To(BeNumerically(">=", result.Info["avg_temp"]))
			Expect(result.Info["avg_health"]).To(BeNumerically("~", 1.0, 1e-3))
		})
	})

	Context("episode bookkeeping", func() {
		It("summarizes the episode without feeding physics", func() {
			e := mustEnv(cfg)
			_, _, err := e.ResetWithSeed(37)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 10; i++ {
				_, err := e.Step([]float64{0.4, 0.4, 0.4})
				Expect(err).NotTo(HaveOccurred())
			}

			s := e.Summary()
			Expect(s.Episode).To(Equal(1))
			Expect(s.Steps).To(Equal(10))
			Expect(s.PeakTemp).To(BeNumerically(">", 0.0))
			Expect(s.MeanPower).To(BeNumerically(">", 0.0))
		})
	})

	Context("pre-warmed resets", func() {
		It("draws initial temperatures from the configured range", func() {
			cfg.Environment.PrewarmMin = 40.0
			cfg.Environment.PrewarmMax = 50.0
			e := mustEnv(cfg)

			obs, _, err := e.ResetWithSeed(41)
			Expect(err).NotTo(HaveOccurred())

			p := cfg.Physics
			for i := 0; i < 3; i++ {
				temp := p.MinTemp + obs[i]*(p.MaxTemp-p.MinTemp)
				Expect(temp).To(BeNumerically(">=", 40.0-1e-9))
				Expect(temp).To(BeNumerically("<=", 50.0+1e-9))
			}
		})
	})
})

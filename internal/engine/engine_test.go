package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/forces"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/state"
)

type panickingField struct{}

func (panickingField) Name() string                                   { return "panicking" }
func (panickingField) Apply(*state.State, forces.Context)             { panic("boom") }
func (panickingField) Potential(*state.State, forces.Context) float64 { return 0 }

const smallN = 27

// smallConfig is an open 3x3x3 Lennard-Jones lattice; edge particles start
// with nonzero net force.
func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.World.ParticleCount = smallN
	cfg.World.Box = config.Box{X: 2.5, Y: 2.5, Z: 2.5}
	cfg.Runtime.PBC = false
	return cfg
}

// freeConfig has no forces, so only the thermostat and boundaries act.
func freeConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.World.ParticleCount = smallN
	cfg.World.Box = config.Box{X: 4, Y: 4, Z: 4}
	cfg.Forces = config.Forces{}
	return cfg
}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

var _ = Describe("Engine", func() {
	var e *Engine

	BeforeEach(func() {
		var err error
		e, err = New(smallConfig(), WithFrameInterval(time.Millisecond))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		e.Pause()
	})

	Describe("construction", func() {
		It("rejects an invalid config", func() {
			cfg := smallConfig()
			cfg.Runtime.Dt = -1
			_, err := New(cfg)
			Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeTrue())
		})

		It("keeps its own copy of the config", func() {
			cfg := smallConfig()
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			cfg.Runtime.Dt = 1
			Expect(eng.Config().Runtime.Dt).To(Equal(config.DefaultDt))
		})

		It("starts with forces computed", func() {
			Expect(floats.Norm(e.State().Forces, 2)).To(BeNumerically(">", 0))
		})
	})

	Describe("stepping", func() {
		It("emits a frame every step and diagnostics every nth step", func() {
			eng, err := New(smallConfig(), WithDiagnosticsEvery(5))
			Expect(err).NotTo(HaveOccurred())
			frames, diags := &collector{}, &collector{}
			eng.Subscribe(KindFrame, frames.handle)
			eng.Subscribe(KindDiagnostics, diags.handle)

			Expect(eng.Run(12)).To(Succeed())

			Expect(frames.len()).To(Equal(12))
			Expect(diags.len()).To(Equal(2))
			Expect(diags.all()[1].Step).To(Equal(int64(10)))
			Expect(eng.Steps()).To(Equal(int64(12)))
			Expect(eng.State().Time).To(BeNumerically("~", 12*config.DefaultDt, 1e-12))
		})

		It("stops delivering after unsubscribe", func() {
			frames := &collector{}
			unsubscribe := e.Subscribe(KindFrame, frames.handle)
			Expect(e.Step()).To(Succeed())
			unsubscribe()
			unsubscribe()
			Expect(e.Step()).To(Succeed())
			Expect(frames.len()).To(Equal(1))
			Expect(e.bus.count(KindFrame)).To(Equal(0))
		})

		It("lets handlers call back into the engine", func() {
			var seen int64
			e.Subscribe(KindFrame, func(ev Event) {
				seen = e.Steps()
			})
			Expect(e.Step()).To(Succeed())
			Expect(seen).To(Equal(int64(1)))
		})
	})

	Describe("boundaries", func() {
		It("wraps periodic crossings and reports them", func() {
			cfg := freeConfig()
			cfg.World.ParticleCount = 2
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Seed(state.SeedData{
				Positions:  []float64{3.95, 0, 0, -2, 0, 0},
				Velocities: []float64{20, 0, 0, 0, 0, 0},
			})
			wraps := &collector{}
			eng.Subscribe(KindWrap, wraps.handle)

			Expect(eng.Step()).To(Succeed())

			Expect(wraps.len()).To(Equal(1))
			rec := wraps.all()[0].Wraps
			Expect(rec).To(HaveLen(1))
			Expect(rec[0].I).To(Equal(0))
			Expect(rec[0].Surfaces).To(ConsistOf("+x"))
			Expect(eng.State().Positions[0]).To(BeNumerically("~", -3.95, 1e-9))
		})

		It("flags escaped particles in an open box and keeps integrating them", func() {
			cfg := freeConfig()
			cfg.World.ParticleCount = 2
			cfg.Runtime.PBC = false
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Seed(state.SeedData{
				Positions:  []float64{3.95, 0, 0, -2, 0, 0},
				Velocities: []float64{20, 0, 0, 0, 0, 0},
			})

			Expect(eng.Run(2)).To(Succeed())

			st := eng.State()
			Expect(st.Escaped).To(Equal([]uint8{1, 0}))
			Expect(st.Positions[0]).To(BeNumerically("~", 4.15, 1e-9))
		})
	})

	Describe("reconfiguration", func() {
		It("resizes, keeping the prefix and announcing the new state", func() {
			before := e.State()
			realloc, cfgs := &collector{}, &collector{}
			e.Subscribe(KindStateReallocated, realloc.handle)
			e.Subscribe(KindConfig, cfgs.handle)

			Expect(e.UpdateConfig(func(c *config.Config) { c.World.ParticleCount = 40 })).To(Succeed())

			after := e.State()
			Expect(after.N).To(Equal(40))
			Expect(after.Positions[:3*smallN]).To(Equal(before.Positions))
			Expect(after.Masses[:smallN]).To(Equal(before.Masses))
			Expect(realloc.len()).To(Equal(1))
			Expect(realloc.all()[0].State.N).To(Equal(40))
			Expect(cfgs.len()).To(Equal(1))
			Expect(cfgs.all()[0].Config.World.ParticleCount).To(Equal(40))
		})

		It("shrinks without losing time", func() {
			Expect(e.Run(3)).To(Succeed())
			t := e.State().Time
			Expect(e.UpdateConfig(func(c *config.Config) { c.World.ParticleCount = 3 })).To(Succeed())
			Expect(e.State().N).To(Equal(3))
			Expect(e.State().Time).To(Equal(t))
		})

		It("does not reallocate when only runtime settings change", func() {
			realloc := &collector{}
			e.Subscribe(KindStateReallocated, realloc.handle)
			Expect(e.UpdateConfig(func(c *config.Config) { c.Runtime.Integrator = "euler" })).To(Succeed())
			Expect(realloc.len()).To(Equal(0))
			Expect(e.Config().Runtime.Integrator).To(Equal("euler"))
		})

		It("keeps forces identical across a strategy swap", func() {
			cfg := smallConfig()
			cfg.Runtime.Cutoff = 3
			cfg.Neighbor.Strategy = "naive"
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Thermalize(0.5, 3)
			Expect(eng.Run(5)).To(Succeed())
			eng.Seed(state.SeedData{})

			naive := eng.State().Forces
			Expect(eng.UpdateConfig(func(c *config.Config) { c.Neighbor.Strategy = "cell" })).To(Succeed())
			cell := eng.State().Forces

			Expect(floats.EqualApprox(naive, cell, 1e-9)).To(BeTrue())
		})

		It("rejects an invalid patch and keeps the old config", func() {
			err := e.UpdateConfig(func(c *config.Config) { c.Neighbor.Strategy = "octree" })
			var fe *config.FieldError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Field).To(Equal("neighbor.strategy"))
			Expect(e.Config().Neighbor.Strategy).To(Equal("cell"))
		})

		It("restores a state wholesale", func() {
			cfg := smallConfig()
			cfg.World.ParticleCount = 5
			st := state.New(5, cfg.World.Box.Half())
			st.Time = 7

			Expect(e.Restore(cfg, st, 40)).To(Succeed())
			Expect(e.Steps()).To(Equal(int64(40)))
			Expect(e.State().Time).To(Equal(7.0))

			Expect(e.Restore(cfg, state.New(4, cfg.World.Box.Half()), 0)).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("wraps escaped particles when periodic boundaries are switched on", func() {
			cfg := config.DefaultConfig()
			cfg.World = config.World{ParticleCount: 2, Box: config.Box{X: 5, Y: 5, Z: 5}}
			cfg.Runtime.PBC = false
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Seed(state.SeedData{Positions: []float64{14, 0, 0, -4.8, 0, 0}})
			wraps := &collector{}
			eng.Subscribe(KindWrap, wraps.handle)

			Expect(eng.UpdateConfig(func(c *config.Config) { c.Runtime.PBC = true })).To(Succeed())

			Expect(wraps.len()).To(Equal(1))
			Expect(wraps.all()[0].Wraps[0].I).To(Equal(0))
			got := eng.State()
			Expect(got.Positions[0]).To(BeNumerically("~", 4, 1e-12))

			periodic := cfg.Clone()
			periodic.Runtime.PBC = true
			ref, err := New(periodic)
			Expect(err).NotTo(HaveOccurred())
			ref.Seed(state.SeedData{Positions: []float64{4, 0, 0, -4.8, 0, 0}})

			// The images sit 1.2 apart across the +x face, inside the cutoff.
			Expect(got.Forces[0]).To(BeNumerically(">", 0))
			Expect(floats.EqualApprox(got.Forces, ref.State().Forces, 1e-9)).To(BeTrue())
		})

		It("wraps a restored state into a periodic box", func() {
			cfg := freeConfig()
			cfg.World.ParticleCount = 2
			st := state.New(2, cfg.World.Box.Half())
			copy(st.Positions, []float64{9, 0, 0, 0, 0, 0})

			Expect(e.Restore(cfg, st, 0)).To(Succeed())
			Expect(e.State().Positions[0]).To(BeNumerically("~", 1, 1e-12))
		})

		It("stays usable after a panicking patch", func() {
			Expect(func() {
				_ = e.UpdateConfig(func(*config.Config) { panic("bad patch") })
			}).To(PanicWith("bad patch"))

			Expect(e.Step()).To(Succeed())
			Expect(e.Config().Neighbor.Strategy).To(Equal("cell"))
		})
	})

	Describe("run loop", func() {
		It("steps until paused", func() {
			Expect(e.Start(context.Background())).To(BeTrue())
			Expect(e.Start(context.Background())).To(BeFalse())
			Expect(e.Running()).To(BeTrue())

			Eventually(e.Steps).Should(BeNumerically(">=", 3))

			e.Pause()
			e.Pause()
			Expect(e.Running()).To(BeFalse())
			Eventually(e.Done()).Should(BeClosed())

			n := e.Steps()
			Consistently(e.Steps, 30*time.Millisecond).Should(Equal(n))
		})

		It("stops when its context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			Expect(e.Start(ctx)).To(BeTrue())
			cancel()
			Eventually(e.Done()).Should(BeClosed())
			Expect(e.Running()).To(BeFalse())
		})

		It("recovers a panicking force field, pauses and emits the error", func() {
			errs := &collector{}
			e.Subscribe(KindError, errs.handle)
			e.sim.Fields = append(e.sim.Fields, panickingField{})

			Expect(e.Start(context.Background())).To(BeTrue())
			Eventually(errs.len).Should(Equal(1))
			Eventually(e.Done()).Should(BeClosed())
			Expect(e.Running()).To(BeFalse())

			err := errs.all()[0].Err
			var stepErr *dynamo.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrStepPanic)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("boom"))
		})

		It("returns the step error to direct callers", func() {
			e.sim.Fields = append(e.sim.Fields, panickingField{})
			err := e.Step()
			Expect(errors.Is(err, dynamo.ErrStepPanic)).To(BeTrue())
			Expect(e.Steps()).To(Equal(int64(0)))
		})
	})

	Describe("thermostat", func() {
		It("pulls the temperature to the target", func() {
			cfg := freeConfig()
			cfg.Runtime.Thermostat = config.Thermostat{Enabled: true, Target: 0.5, Tau: 0.05}
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Thermalize(2, 1)

			Expect(eng.Run(300)).To(Succeed())

			Expect(eng.Diagnostics().Temperature).To(BeNumerically("~", 0.5, 1e-3))
		})

		It("clamps the per-step scale factor", func() {
			st := state.New(8, [3]float64{4, 4, 4})
			st.Thermalize(100, 1, 1)
			lambda := berendsen(st, config.Thermostat{Enabled: true, Target: 1, Tau: 0.001}, 0.01, 1)
			Expect(lambda).To(Equal(0.8))

			st.Thermalize(0.001, 1, 1)
			lambda = berendsen(st, config.Thermostat{Enabled: true, Target: 1, Tau: 0.001}, 0.01, 1)
			Expect(lambda).To(Equal(1.25))
		})
	})

	Describe("stability", func() {
		It("emits a severe instability after three fast frames", func() {
			cfg := freeConfig()
			eng, err := New(cfg, WithDiagnosticsEvery(1))
			Expect(err).NotTo(HaveOccurred())
			v := make([]float64, 3*smallN)
			v[0] = 1000
			eng.Seed(state.SeedData{Velocities: v})
			inst := &collector{}
			eng.Subscribe(KindInstability, inst.handle)

			Expect(eng.Run(2)).To(Succeed())
			Expect(inst.len()).To(Equal(0))
			Expect(eng.Step()).To(Succeed())

			Expect(inst.len()).To(Equal(1))
			Expect(inst.all()[0].Stability.Level).To(Equal(metrics.Severe))
			Expect(eng.Running()).To(BeFalse())
		})
	})

	Describe("recorder", func() {
		It("records diagnostics until stopped", func() {
			eng, err := New(smallConfig(), WithDiagnosticsEvery(1))
			Expect(err).NotTo(HaveOccurred())
			rec := NewRecorder(eng)

			Expect(eng.Run(20)).To(Succeed())
			Expect(rec.Len()).To(Equal(20))
			s := rec.Series()
			Expect(s.Total).To(HaveLen(20))
			Expect(s.Time[19]).To(BeNumerically(">", s.Time[0]))
			Expect(rec.EnergyDrift()).To(BeNumerically("<", 0.05))

			rec.Stop()
			Expect(eng.Run(5)).To(Succeed())
			Expect(rec.Len()).To(Equal(20))

			rec.Reset()
			Expect(rec.Len()).To(Equal(0))
		})
	})

	Describe("contributions", func() {
		It("splits the net force by field", func() {
			cfg := smallConfig()
			cfg.Forces = config.Forces{LennardJones: true, Coulomb: true}
			cfg.Runtime.PBC = true
			eng, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			eng.Thermalize(0.5, 2)
			Expect(eng.Run(3)).To(Succeed())

			parts := eng.Contributions()
			Expect(parts).To(HaveLen(2))
			Expect(parts[0].Name).To(Equal("ewald-coulomb"))

			sum := make([]float64, 3*smallN)
			for _, p := range parts {
				floats.Add(sum, p.Forces)
			}
			Expect(floats.EqualApprox(sum, eng.State().Forces, 1e-9)).To(BeTrue())
		})
	})

	Describe("ensemble", func() {
		It("runs one replica per seed in seed order", func() {
			seeds := []int64{3, 1, 2}
			results, err := NewEnsemble(freeConfig(), 1, seeds).Run(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for i, r := range results {
				Expect(r.Seed).To(Equal(seeds[i]))
				Expect(r.Steps).To(Equal(10))
				Expect(r.Final.Temperature).To(BeNumerically("~", 1, 1e-9))
				Expect(r.EnergyDrift).To(BeNumerically("<", 1e-9))
				Expect(r.Worst).To(Equal(metrics.Stable))
			}
		})

		It("rejects an invalid configuration", func() {
			cfg := freeConfig()
			cfg.Runtime.Dt = 0
			_, err := NewEnsemble(cfg, 1, []int64{1}).Run(context.Background(), 1)
			Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeTrue())
		})

		It("stops replicas when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			results, err := NewEnsemble(freeConfig(), 1, []int64{1, 2}).Run(ctx, 100)
			Expect(err).To(MatchError(context.Canceled))
			for _, r := range results {
				Expect(r.Steps).To(Equal(0))
			}
		})
	})
})

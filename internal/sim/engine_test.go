package sim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/config"
	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/experiment"
	"github.com/san-kum/swarmlab/internal/physics"
	"github.com/san-kum/swarmlab/internal/sim"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func build(cfg *config.Config) *sim.Engine {
	GinkgoHelper()
	x, err := experiment.New(cfg, nil, quiet)
	Expect(err).NotTo(HaveOccurred())
	eng, err := x.Build(cfg.Seed)
	Expect(err).NotTo(HaveOccurred())
	return eng
}

func modeConfig(mode string, count int) *config.Config {
	GinkgoHelper()
	cfg, err := config.ForMode(mode)
	Expect(err).NotTo(HaveOccurred())
	cfg.Count = count
	cfg.Capacity = max(cfg.Capacity, count)
	return cfg
}

func advance(eng *sim.Engine, steps int) {
	GinkgoHelper()
	for i := 0; i < steps; i++ {
		Expect(eng.Advance(0)).To(Succeed())
	}
}

var _ = Describe("Engine", func() {
	Describe("stepping", func() {
		It("leaves every accumulator zero after a step", func() {
			for _, mode := range config.Modes() {
				eng := build(modeConfig(mode, 40))
				for k := 0; k < 20; k++ {
					Expect(eng.Advance(0)).To(Succeed())
					for i, a := range eng.Store().Acc {
						Expect(a).To(Equal(r3.Vec{}), "mode %s entity %d", mode, i)
					}
				}
			}
		})

		It("ignores the wall-clock dt", func() {
			a := build(modeConfig(config.ModeGravity, 30))
			b := build(modeConfig(config.ModeGravity, 30))
			Expect(a.Advance(0.001)).To(Succeed())
			Expect(b.Advance(5)).To(Succeed())
			Expect(a.Store().Pos).To(Equal(b.Store().Pos))
		})

		It("publishes a snapshot that matches the store", func() {
			eng := build(modeConfig(config.ModeEvolution, 120))
			for k := 0; k < 50; k++ {
				Expect(eng.Advance(0)).To(Succeed())
				snap := eng.Publisher().Latest()
				Expect(snap).NotTo(BeNil())
				Expect(snap.Step).To(Equal(eng.Step()))
				Expect(snap.Entities).To(HaveLen(eng.Store().LiveCount()))
				Expect(snap.Food).To(HaveLen(len(eng.Field().Food)))
				Expect(snap.Totals).To(Equal(eng.Totals()))
			}
		})
	})

	Describe("determinism", func() {
		It("replays bit for bit from the seed", func() {
			cfg := modeConfig(config.ModeEvolution, 150)
			a, b := build(cfg), build(cfg)
			advance(a, 100)
			advance(b, 100)

			Expect(a.Store().Len()).To(Equal(b.Store().Len()))
			Expect(a.Store().Pos).To(Equal(b.Store().Pos))
			Expect(a.Store().Vel).To(Equal(b.Store().Vel))
			Expect(a.Store().ID).To(Equal(b.Store().ID))
			Expect(a.Totals()).To(Equal(b.Totals()))
		})

		It("returns to the initial state on reset", func() {
			eng := build(modeConfig(config.ModeFlocking, 80))
			initial := append([]r3.Vec(nil), eng.Store().Pos...)
			advance(eng, 25)
			Expect(eng.Store().Pos).NotTo(Equal(initial))

			Expect(eng.Reset(eng.Store().Seed())).To(Succeed())
			Expect(eng.Step()).To(BeZero())
			Expect(eng.Store().Pos).To(Equal(initial))
		})
	})

	Describe("gravity", func() {
		var cfg *config.Config

		BeforeEach(func() {
			cfg = modeConfig(config.ModeGravity, 40)
			cfg.Params.DragFactor = 0
			cfg.Params.MaxAccel = 0
			cfg.Params.BoundRadius = 100
			cfg.Params.G = 0.001
			cfg.Params.MinDistance = 0.05
		})

		It("conserves momentum with symmetric forces", func() {
			eng := build(cfg)
			p0 := physics.Momentum(eng.Store())
			advance(eng, 100)
			p1 := physics.Momentum(eng.Store())
			Expect(r3.Norm(r3.Sub(p1, p0))).To(BeNumerically("<", 1e-8))
		})

		It("clamps the force before integration", func() {
			cfg.Params.MaxAccel = 0.5
			cfg.Params.G = 10
			eng := build(cfg)
			s := eng.Store()
			dt := cfg.Params.TimeStep

			for k := 0; k < 10; k++ {
				before := append([]r3.Vec(nil), s.Vel...)
				Expect(eng.Advance(0)).To(Succeed())
				for i := range s.Vel {
					dv := r3.Norm(r3.Sub(s.Vel[i], before[i]))
					Expect(dv * s.Mass[i]).To(BeNumerically("<=", cfg.Params.MaxAccel*dt+1e-12))
				}
			}
		})

		It("pulls two resting bodies together", func() {
			cfg.Count, cfg.Capacity = 0, 2
			eng := build(cfg)
			s := eng.Store()
			_, err := s.Add(bodyAt(r3.Vec{X: -0.5}))
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Add(bodyAt(r3.Vec{X: 0.5}))
			Expect(err).NotTo(HaveOccurred())

			d0 := r3.Norm(r3.Sub(s.Pos[1], s.Pos[0]))
			advance(eng, 50)
			d1 := r3.Norm(r3.Sub(s.Pos[1], s.Pos[0]))
			Expect(d1).To(BeNumerically("<", d0))
			Expect(s.Pos[0].X + s.Pos[1].X).To(BeNumerically("~", 0, 1e-12))
		})
	})

	Describe("flocking", func() {
		It("only drifts with velocity when the local radius is zero", func() {
			cfg := modeConfig(config.ModeFlocking, 60)
			cfg.Params.LocalRadius = 0
			cfg.Params.CruiseSpeed = 0
			cfg.Params.DragFactor = 0
			cfg.Params.BoundRadius = 100
			eng := build(cfg)
			s := eng.Store()

			orient := append(s.Orient[:0:0], s.Orient...)
			pos := append([]r3.Vec(nil), s.Pos...)
			Expect(eng.Advance(0)).To(Succeed())

			for i := range s.Pos {
				want := r3.Add(pos[i], r3.Scale(cfg.Params.TimeStep, s.Vel[i]))
				Expect(r3.Norm(r3.Sub(s.Pos[i], want))).To(BeNumerically("<", 1e-12))
				Expect(s.Orient[i]).To(Equal(orient[i]))
				Expect(s.Traits[i].FlockCount).To(BeZero())
			}
		})

		It("keeps every entity inside the bound", func() {
			cfg := modeConfig(config.ModeFlocking, 100)
			cfg.Params.CruiseSpeed = 2
			eng := build(cfg)
			for k := 0; k < 100; k++ {
				Expect(eng.Advance(0)).To(Succeed())
				for _, p := range eng.Store().Pos {
					Expect(r3.Norm(p)).To(BeNumerically("<=", cfg.Params.BoundRadius))
				}
			}
		})
	})

	Describe("freeze", func() {
		It("skips the step entirely", func() {
			eng := build(modeConfig(config.ModeEvolution, 50))
			advance(eng, 3)
			pos := append([]r3.Vec(nil), eng.Store().Pos...)
			published := eng.Publisher().Published()

			eng.SetFrozen(true)
			advance(eng, 10)
			Expect(eng.Step()).To(Equal(uint64(3)))
			Expect(eng.Store().Pos).To(Equal(pos))
			Expect(eng.Publisher().Published()).To(Equal(published))

			eng.SetFrozen(false)
			advance(eng, 1)
			Expect(eng.Step()).To(Equal(uint64(4)))
		})
	})

	Describe("lifecycle", func() {
		It("never grows past capacity", func() {
			cfg := modeConfig(config.ModeEvolution, 200)
			cfg.Capacity = 200
			cfg.Params.ReproductionProbabilityThreshold = 0
			eng := build(cfg)
			for k := 0; k < 150; k++ {
				Expect(eng.Advance(0)).To(Succeed())
				Expect(eng.Store().Len()).To(BeNumerically("<=", 200))
			}
		})
	})

	Describe("errors", func() {
		It("rejects a non-positive mass without moving anything", func() {
			eng := build(modeConfig(config.ModeGravity, 20))
			advance(eng, 2)
			s := eng.Store()
			s.Mass[3] = 0
			pos := append([]r3.Vec(nil), s.Pos...)

			err := eng.Advance(0)
			Expect(errors.Is(err, dynamo.ErrNonPositiveMass)).To(BeTrue())
			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Index).To(Equal(3))
			Expect(se.Step).To(Equal(uint64(2)))

			Expect(s.Pos).To(Equal(pos))
			for _, a := range s.Acc {
				Expect(a).To(Equal(r3.Vec{}))
			}
		})

		It("stops a run when the context is cancelled", func() {
			eng := build(modeConfig(config.ModeGravity, 10))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := eng.Run(ctx, sim.RunConfig{Steps: 100, SampleEvery: 1})
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.StepsTaken).To(BeZero())
		})

		It("validates the run config", func() {
			eng := build(modeConfig(config.ModeGravity, 10))
			_, err := eng.Run(context.Background(), sim.RunConfig{Steps: 1})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("samples metrics and observers on the interval", func() {
			cfg := modeConfig(config.ModeEvolution, 80)
			x, err := experiment.New(cfg, nil, quiet)
			Expect(err).NotTo(HaveOccurred())
			eng, err := x.Build(cfg.Seed)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range x.Metrics() {
				eng.AddMetric(m)
			}

			var steps []uint64
			eng.AddObserver(sim.ObserverFunc(func(e *sim.Engine) {
				steps = append(steps, e.Step())
			}))

			res, err := eng.Run(context.Background(), sim.RunConfig{Steps: 25, SampleEvery: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(25))
			Expect(steps).To(Equal([]uint64{0, 10, 20, 25}))
			Expect(res.Metrics).To(HaveKey("population"))
			Expect(res.Metrics).To(HaveKey("mean_fitness"))
			Expect(res.Population).To(Equal(eng.Store().LiveCount()))
		})
	})
})

var _ = Describe("Ensemble", func() {
	It("gives identical results for identical seeds", func() {
		cfg := modeConfig(config.ModeFlocking, 60)
		cfg.Steps = 30
		x, err := experiment.New(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		first, err := x.Ensemble(4).Run(context.Background(), x.RunConfig())
		Expect(err).NotTo(HaveOccurred())
		second, err := x.Ensemble(4).Run(context.Background(), x.RunConfig())
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(HaveLen(4))
		for i := range first {
			Expect(first[i].Metrics).To(Equal(second[i].Metrics))
		}
		Expect(first[0].Metrics["kinetic_energy"]).NotTo(Equal(first[1].Metrics["kinetic_energy"]))
	})

	It("reports build failures with the seed", func() {
		ens := sim.NewEnsemble(func(seed uint32) (*sim.Engine, error) {
			return nil, errors.New("no")
		}, 2, 7)
		_, err := ens.Run(context.Background(), sim.RunConfig{Steps: 1, SampleEvery: 1})
		Expect(err).To(MatchError(ContainSubstring("seed 7")))
	})
})

func bodyAt(p r3.Vec) entity.Entity {
	return entity.Entity{Pos: p, Mass: 1}
}

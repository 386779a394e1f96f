// Package lifecycle runs the evolutionary side of an agent population:
// aging, fitness, reproduction, death, eating and cull events.
package lifecycle

import (
	"errors"
	"log/slog"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/field"
	"github.com/san-kum/swarmlab/internal/neighbor"
)

// Fitness bands. Values inside a band are rewarded, outside penalised.
const (
	MinFlock     = 5
	MaxFlock     = 30
	MinRate      = 0.3
	MaxRate      = 0.9
	BoostFitness = 500
	BoostFactor  = 10

	// reproduction is only rolled for once lifespan drops under uniform()*ReproductionAge
	ReproductionAge = 10
)

// Stats counts what happened during one step.
type Stats struct {
	Births   int
	Rejected int
	Deaths   int
	Unfit    int
	Culled   int
	Eaten    int
}

func (st *Stats) add(o Stats) {
	st.Births += o.Births
	st.Rejected += o.Rejected
	st.Deaths += o.Deaths
	st.Unfit += o.Unfit
	st.Culled += o.Culled
	st.Eaten += o.Eaten
}

func (st Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("births", st.Births),
		slog.Int("rejected", st.Rejected),
		slog.Int("deaths", st.Deaths),
		slog.Int("unfit", st.Unfit),
		slog.Int("culled", st.Culled),
		slog.Int("eaten", st.Eaten),
	)
}

// Cull is a kill sphere dropped at a random time and place.
type Cull struct {
	Step   uint64
	Center r3.Vec
	Radius float64
	Killed int
}

type Manager struct {
	logger *slog.Logger

	step      uint64
	untilCull int
	lastCull  *Cull
	total     Stats

	nb    []int
	mated []bool
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Reset clears counters and schedules the first cull.
func (m *Manager) Reset(rng *rand.Rand, p dynamo.Params) {
	m.step = 0
	m.total = Stats{}
	m.lastCull = nil
	m.untilCull = nextCull(rng, p)
}

func (m *Manager) Totals() Stats { return m.total }

// LastCull returns the most recent cull event, if any happened.
func (m *Manager) LastCull() (Cull, bool) {
	if m.lastCull == nil {
		return Cull{}, false
	}
	return *m.lastCull, true
}

// Step advances the population by one tick. fld may be nil when there is no food.
func (m *Manager) Step(s *entity.Store, f neighbor.Finder, fld *field.Field, p dynamo.Params) Stats {
	m.step++
	rng := s.Rand()
	var st Stats

	f.Rebuild(s.Pos, s.Alive)

	m.Age(s, p)
	st.Unfit = m.AssignFitness(rng, s, p)
	children := m.pair(rng, s, f, p)

	// rows freed by this step's deaths are available to its births
	st.Deaths = m.MarkDeaths(s)
	s.Compact()
	st.Births, st.Rejected = m.admit(s, children)

	f.Rebuild(s.Pos, s.Alive)
	if fld != nil {
		st.Eaten = m.Eat(s, f, fld, p)
	}
	st.Culled = m.MaybeCull(rng, s, f, p)

	s.Compact()
	m.total.add(st)

	if st.Births > 0 || st.Deaths > 0 || st.Culled > 0 {
		m.logger.Debug("lifecycle", "step", m.step, "stats", st, "population", s.Len())
	}
	return st
}

// Age lowers every live lifespan by DecreaseLifespanAmount.
func (m *Manager) Age(s *entity.Store, p dynamo.Params) {
	for i := range s.Traits {
		if s.Alive[i] {
			s.Traits[i].Lifespan -= p.DecreaseLifespanAmount
		}
	}
}

// AssignFitness adds this step's randomly weighted score to every live
// agent and zeroes the lifespan of those that fail the cutoff once they are
// old enough to be checked. It returns how many failed.
func (m *Manager) AssignFitness(rng *rand.Rand, s *entity.Store, p dynamo.Params) int {
	unfit := 0
	for i := range s.Traits {
		if !s.Alive[i] {
			continue
		}
		tr := &s.Traits[i]

		scalar := 1.0
		if tr.Fitness > BoostFitness {
			scalar = BoostFactor
		}

		value := banded(rng, float64(tr.FlockCount), MinFlock, MaxFlock)
		value += banded(rng, r3.Norm(tr.MoveRate), MinRate, MaxRate)
		value += banded(rng, r3.Norm(tr.TurnRate), MinRate, MaxRate)
		tr.Fitness += value * scalar

		if tr.Lifespan < tr.StartCheckingFitness && tr.Fitness < p.FitnessCutoff {
			if tr.Lifespan > 0 {
				unfit++
			}
			tr.Lifespan = 0
		}
	}
	return unfit
}

// banded returns +uniform()*x inside [lo, hi] and -uniform()*x outside.
func banded(rng *rand.Rand, x, lo, hi float64) float64 {
	v := rng.Float64() * x
	if x < lo || x > hi {
		return -v
	}
	return v
}

// Reproduce rolls eligibility for every live agent and pairs eligible
// agents with an eligible neighbour within ReproductionDistanceThreshold.
// Each agent mates at most once per call. Children are appended after the
// pairing scan, into rows left by dead agents first; a child that does not
// fit is dropped and counted as rejected.
func (m *Manager) Reproduce(rng *rand.Rand, s *entity.Store, f neighbor.Finder, p dynamo.Params) (births, rejected int) {
	children := m.pair(rng, s, f, p)
	if len(children) > 0 && s.Full() && s.LiveCount() < s.Len() {
		s.Compact()
	}
	return m.admit(s, children)
}

func (m *Manager) pair(rng *rand.Rand, s *entity.Store, f neighbor.Finder, p dynamo.Params) []entity.Entity {
	n := s.Len()
	for i := 0; i < n; i++ {
		if !s.Alive[i] {
			continue
		}
		tr := &s.Traits[i]
		tr.CanReproduce = false
		if tr.Lifespan < rng.Float64()*ReproductionAge {
			if rng.Float64()+tr.Fitness > p.ReproductionProbabilityThreshold {
				tr.CanReproduce = true
			}
		}
	}

	if cap(m.mated) < n {
		m.mated = make([]bool, n)
	}
	m.mated = m.mated[:n]
	clear(m.mated)

	var children []entity.Entity
	for i := 0; i < n; i++ {
		if !s.Alive[i] || !s.Traits[i].CanReproduce || m.mated[i] {
			continue
		}
		m.nb = f.Query(m.nb, i, p.ReproductionDistanceThreshold)
		m.nb = neighbor.KeepNearest(m.nb, s.Pos, s.Pos[i], p.NeighborLimit)

		for _, j := range m.nb {
			if j >= n || m.mated[j] || !s.Alive[j] || !s.Traits[j].CanReproduce {
				continue
			}
			m.mated[i], m.mated[j] = true, true
			children = append(children, entity.Child(rng, s.Row(i), s.Row(j), p.MutationScale))
			break
		}
	}

	for i := 0; i < n; i++ {
		s.Traits[i].CanReproduce = false
	}
	return children
}

// admit appends children while there is room.
func (m *Manager) admit(s *entity.Store, children []entity.Entity) (births, rejected int) {
	for _, c := range children {
		if _, err := s.Add(c); err != nil {
			if !errors.Is(err, dynamo.ErrCapacity) {
				m.logger.Warn("child rejected", "err", err)
			}
			rejected++
			continue
		}
		births++
	}
	return births, rejected
}

// MarkDeaths kills every live agent whose lifespan is spent.
func (m *Manager) MarkDeaths(s *entity.Store) int {
	deaths := 0
	for i := range s.Traits {
		if s.Alive[i] && s.Traits[i].Lifespan <= 0 {
			s.Kill(i)
			deaths++
		}
	}
	return deaths
}

// Eat lets every live agent within FoodDistanceThreshold of a food particle
// gain its size as lifespan. Eaten food is swept from the field afterwards.
func (m *Manager) Eat(s *entity.Store, f neighbor.Finder, fld *field.Field, p dynamo.Params) int {
	if p.FoodDistanceThreshold <= 0 {
		return 0
	}
	eaten := 0
	for k := range fld.Food {
		fd := &fld.Food[k]
		m.nb = f.QueryPoint(m.nb, fd.Position, p.FoodDistanceThreshold, -1)
		for _, i := range m.nb {
			if !s.Alive[i] {
				continue
			}
			s.Traits[i].Lifespan += fd.Size * p.FoodLifespanGain
			fd.Consumed = true
		}
		if fd.Consumed {
			eaten++
		}
	}
	fld.Sweep()
	return eaten
}

// MaybeCull counts down to the next cull and, when it is due, kills every
// live agent inside a random sphere and schedules the following one.
func (m *Manager) MaybeCull(rng *rand.Rand, s *entity.Store, f neighbor.Finder, p dynamo.Params) int {
	m.untilCull--
	if m.untilCull > 0 {
		return 0
	}
	m.untilCull = nextCull(rng, p)

	c := &Cull{
		Step:   m.step,
		Center: entity.RandomVec(rng, 1),
		Radius: rng.Float64() * p.CullMaxRadius,
	}
	m.nb = f.QueryPoint(m.nb, c.Center, c.Radius, -1)
	for _, i := range m.nb {
		if s.Alive[i] {
			s.Kill(i)
			c.Killed++
		}
	}
	m.lastCull = c

	m.logger.Debug("cull", "step", c.Step, "radius", c.Radius, "killed", c.Killed)
	return c.Killed
}

func nextCull(rng *rand.Rand, p dynamo.Params) int {
	if p.CullMaxInterval <= 1 {
		return 1
	}
	return 1 + rng.Intn(p.CullMaxInterval)
}

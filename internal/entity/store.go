package entity

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
)

// Traits are the agent-only columns. Particles leave them zero.
type Traits struct {
	Lifespan             float64
	Fitness              float64
	StartCheckingFitness float64
	CanReproduce         bool
	FlockCount           int

	MoveRate       r3.Vec
	TurnRate       r3.Vec
	RandomFlocking r3.Vec

	// flocking targets staged during the neighbour scan
	Heading r3.Vec
	Center  r3.Vec
}

// Entity is one row of a Store, used to insert and read back whole entities.
type Entity struct {
	Pos    r3.Vec
	Vel    r3.Vec
	Mass   float64
	Orient quat.Number
	Color  colorful.Color
	Size   float64
	Traits Traits
}

// Spawner produces a fresh entity for slot i. It must draw all randomness
// from rng so that a Store reset with the same seed is reproducible.
type Spawner interface {
	Spawn(rng *rand.Rand, i int) Entity
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(rng *rand.Rand, i int) Entity

func (f SpawnerFunc) Spawn(rng *rand.Rand, i int) Entity { return f(rng, i) }

// Store owns all per-entity state as parallel columns. Every column has the
// same length, Len(), and never grows past Cap().
type Store struct {
	Pos    []r3.Vec
	Vel    []r3.Vec
	Acc    []r3.Vec
	Mass   []float64
	Orient []quat.Number
	Color  []colorful.Color
	Size   []float64
	Alive  []bool
	ID     []uint64
	Traits []Traits

	capacity int
	initial  int
	seed     uint32
	nextID   uint64
	rng      *rand.Rand
	spawner  Spawner
}

// NewStore allocates a store that holds at most capacity entities and is
// populated with initial entities on every Reset.
func NewStore(capacity, initial int, spawner Spawner) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if initial < 0 || initial > capacity {
		return nil, fmt.Errorf("initial count %d outside [0, %d]", initial, capacity)
	}
	if spawner == nil {
		return nil, fmt.Errorf("spawner is required")
	}
	return &Store{
		Pos:      make([]r3.Vec, 0, capacity),
		Vel:      make([]r3.Vec, 0, capacity),
		Acc:      make([]r3.Vec, 0, capacity),
		Mass:     make([]float64, 0, capacity),
		Orient:   make([]quat.Number, 0, capacity),
		Color:    make([]colorful.Color, 0, capacity),
		Size:     make([]float64, 0, capacity),
		Alive:    make([]bool, 0, capacity),
		ID:       make([]uint64, 0, capacity),
		Traits:   make([]Traits, 0, capacity),
		capacity: capacity,
		initial:  initial,
		spawner:  spawner,
		rng:      rand.New(rand.NewSource(0)),
	}, nil
}

func (s *Store) Len() int     { return len(s.Pos) }
func (s *Store) Cap() int     { return s.capacity }
func (s *Store) Full() bool   { return len(s.Pos) >= s.capacity }
func (s *Store) Seed() uint32 { return s.seed }

// Rand is the store's seeded random stream. Every component that needs
// randomness during a step draws from it so a whole run replays from the seed.
func (s *Store) Rand() *rand.Rand { return s.rng }

// Reset discards every entity and repopulates the store from seed.
func (s *Store) Reset(seed uint32) error {
	s.seed = seed
	s.rng = rand.New(rand.NewSource(uint64(seed)))
	s.nextID = 0
	s.truncate(0)

	for i := 0; i < s.initial; i++ {
		if _, err := s.Add(s.spawner.Spawn(s.rng, i)); err != nil {
			return fmt.Errorf("reset slot %d: %w", i, err)
		}
	}
	return nil
}

// Add appends e and returns its index. A full store is left untouched and
// ErrCapacity is returned.
func (s *Store) Add(e Entity) (int, error) {
	if s.Full() {
		return -1, dynamo.ErrCapacity
	}
	if e.Mass <= 0 {
		return -1, fmt.Errorf("%w: got %g", dynamo.ErrNonPositiveMass, e.Mass)
	}

	s.Pos = append(s.Pos, e.Pos)
	s.Vel = append(s.Vel, e.Vel)
	s.Acc = append(s.Acc, r3.Vec{})
	s.Mass = append(s.Mass, e.Mass)
	s.Orient = append(s.Orient, orientOrIdentity(e.Orient))
	s.Color = append(s.Color, e.Color)
	s.Size = append(s.Size, e.Size)
	s.Alive = append(s.Alive, true)
	s.ID = append(s.ID, s.nextID)
	s.Traits = append(s.Traits, e.Traits)
	s.nextID++

	return len(s.Pos) - 1, nil
}

// Respawn reinitialises entity i in place. It keeps its ID.
func (s *Store) Respawn(i int) {
	s.check(i)
	e := s.spawner.Spawn(s.rng, i)
	if e.Mass <= 0 {
		panic(fmt.Errorf("%w: spawner produced %g", dynamo.ErrNonPositiveMass, e.Mass))
	}
	s.set(i, e)
	s.Alive[i] = true
}

// Row returns a copy of entity i.
func (s *Store) Row(i int) Entity {
	s.check(i)
	return Entity{
		Pos:    s.Pos[i],
		Vel:    s.Vel[i],
		Mass:   s.Mass[i],
		Orient: s.Orient[i],
		Color:  s.Color[i],
		Size:   s.Size[i],
		Traits: s.Traits[i],
	}
}

// SetMass rejects non-positive masses before they can reach the integrator.
func (s *Store) SetMass(i int, m float64) error {
	s.check(i)
	if m <= 0 {
		return fmt.Errorf("%w: entity %d got %g", dynamo.ErrNonPositiveMass, i, m)
	}
	s.Mass[i] = m
	return nil
}

// Kill marks i dead. The row stays in place until Compact runs, so indices
// held during an iteration remain valid.
func (s *Store) Kill(i int) {
	s.check(i)
	s.Alive[i] = false
}

// Compact drops every dead row, keeping survivors in their original order,
// and returns how many rows were removed.
func (s *Store) Compact() int {
	w := 0
	for r := range s.Pos {
		if !s.Alive[r] {
			continue
		}
		if w != r {
			s.Pos[w] = s.Pos[r]
			s.Vel[w] = s.Vel[r]
			s.Acc[w] = s.Acc[r]
			s.Mass[w] = s.Mass[r]
			s.Orient[w] = s.Orient[r]
			s.Color[w] = s.Color[r]
			s.Size[w] = s.Size[r]
			s.Alive[w] = true
			s.ID[w] = s.ID[r]
			s.Traits[w] = s.Traits[r]
		}
		w++
	}
	removed := len(s.Pos) - w
	s.truncate(w)
	return removed
}

// LiveCount counts rows not yet marked dead.
func (s *Store) LiveCount() int {
	n := 0
	for _, a := range s.Alive {
		if a {
			n++
		}
	}
	return n
}

// ClearAcc zeroes every accumulator.
func (s *Store) ClearAcc() {
	for i := range s.Acc {
		s.Acc[i] = r3.Vec{}
	}
}

func (s *Store) set(i int, e Entity) {
	s.Pos[i] = e.Pos
	s.Vel[i] = e.Vel
	s.Acc[i] = r3.Vec{}
	s.Mass[i] = e.Mass
	s.Orient[i] = orientOrIdentity(e.Orient)
	s.Color[i] = e.Color
	s.Size[i] = e.Size
	s.Traits[i] = e.Traits
}

func (s *Store) truncate(n int) {
	s.Pos = s.Pos[:n]
	s.Vel = s.Vel[:n]
	s.Acc = s.Acc[:n]
	s.Mass = s.Mass[:n]
	s.Orient = s.Orient[:n]
	s.Color = s.Color[:n]
	s.Size = s.Size[:n]
	s.Alive = s.Alive[:n]
	s.ID = s.ID[:n]
	s.Traits = s.Traits[:n]
}

func (s *Store) check(i int) {
	if i < 0 || i >= len(s.Pos) {
		panic(fmt.Errorf("%w: %d (len %d)", dynamo.ErrIndexOutOfRange, i, len(s.Pos)))
	}
}

func orientOrIdentity(q quat.Number) quat.Number {
	if q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return q
}

package entity

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/dynamo"
	"github.com/san-kum/swarmlab/internal/pose"
)

func newTestStore(t *testing.T, capacity, initial int) *Store {
	t.Helper()
	s, err := NewStore(capacity, initial, NewAgentSpawner(true))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Reset(7); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return s
}

func TestNewStoreValidation(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		initial  int
		spawner  Spawner
	}{
		{"zero capacity", 0, 0, NewClusterSpawner()},
		{"initial over capacity", 4, 5, NewClusterSpawner()},
		{"negative initial", 4, -1, NewClusterSpawner()},
		{"nil spawner", 4, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStore(tt.capacity, tt.initial, tt.spawner); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResetDeterministic(t *testing.T) {
	for _, sp := range []Spawner{NewClusterSpawner(), NewOrbitSpawner(1), NewAgentSpawner(true)} {
		a, _ := NewStore(64, 50, sp)
		b, _ := NewStore(64, 50, sp)
		if err := a.Reset(42); err != nil {
			t.Fatal(err)
		}
		if err := b.Reset(42); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a.Pos, b.Pos) || !reflect.DeepEqual(a.Traits, b.Traits) || !reflect.DeepEqual(a.Orient, b.Orient) {
			t.Errorf("%T: same seed produced different state", sp)
		}

		if err := b.Reset(43); err != nil {
			t.Fatal(err)
		}
		if reflect.DeepEqual(a.Pos, b.Pos) {
			t.Errorf("%T: different seeds produced identical positions", sp)
		}
	}
}

func TestResetReplacesPopulation(t *testing.T) {
	s := newTestStore(t, 10, 5)
	if _, err := s.Add(Entity{Mass: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(7); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 5 {
		t.Errorf("expected 5 after reset, got %d", s.Len())
	}
	if s.ID[0] != 0 || s.ID[4] != 4 {
		t.Errorf("expected ids to restart at 0, got %v", s.ID)
	}
}

func TestAddAtCapacity(t *testing.T) {
	s := newTestStore(t, 3, 3)
	before := append([]r3.Vec(nil), s.Pos...)

	idx, err := s.Add(Entity{Mass: 1, Pos: r3.Vec{X: 9}})
	if !errors.Is(err, dynamo.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if idx != -1 {
		t.Errorf("expected index -1, got %d", idx)
	}
	if s.Len() != 3 {
		t.Errorf("expected len 3, got %d", s.Len())
	}
	if !reflect.DeepEqual(before, s.Pos) {
		t.Error("store mutated by rejected add")
	}
}

func TestMassRejected(t *testing.T) {
	s := newTestStore(t, 4, 1)

	for _, m := range []float64{0, -1} {
		if _, err := s.Add(Entity{Mass: m}); !errors.Is(err, dynamo.ErrNonPositiveMass) {
			t.Errorf("mass %g: expected ErrNonPositiveMass, got %v", m, err)
		}
		if err := s.SetMass(0, m); !errors.Is(err, dynamo.ErrNonPositiveMass) {
			t.Errorf("set mass %g: expected ErrNonPositiveMass, got %v", m, err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("expected len 1, got %d", s.Len())
	}
	if s.Mass[0] != 1 {
		t.Errorf("expected mass unchanged, got %f", s.Mass[0])
	}
}

func TestKillAndCompact(t *testing.T) {
	s := newTestStore(t, 10, 6)
	ids := append([]uint64(nil), s.ID...)

	// kill adjacent rows to catch skip-on-erase mistakes
	s.Kill(1)
	s.Kill(2)
	s.Kill(5)

	if s.Len() != 6 {
		t.Errorf("expected rows to stay until compaction, got len %d", s.Len())
	}
	if s.LiveCount() != 3 {
		t.Errorf("expected 3 live, got %d", s.LiveCount())
	}

	removed := s.Compact()
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}
	want := []uint64{ids[0], ids[3], ids[4]}
	if !reflect.DeepEqual(s.ID, want) {
		t.Errorf("expected survivors %v in order, got %v", want, s.ID)
	}
	for i, a := range s.Alive {
		if !a {
			t.Errorf("row %d dead after compaction", i)
		}
	}
}

func TestCompactAllDead(t *testing.T) {
	s := newTestStore(t, 4, 4)
	for i := 0; i < s.Len(); i++ {
		s.Kill(i)
	}
	s.Compact()
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
	if _, err := s.Add(Entity{Mass: 1}); err != nil {
		t.Errorf("expected room after compaction, got %v", err)
	}
}

func TestRespawnKeepsID(t *testing.T) {
	s := newTestStore(t, 4, 4)
	s.Pos[2] = r3.Vec{X: 50}
	s.Acc[2] = r3.Vec{Y: 3}
	s.Kill(2)
	id := s.ID[2]

	s.Respawn(2)

	if s.ID[2] != id {
		t.Errorf("expected id %d, got %d", id, s.ID[2])
	}
	if r3.Norm(s.Pos[2]) > math.Sqrt(3) {
		t.Errorf("expected respawn inside the spawn cube, got %v", s.Pos[2])
	}
	if s.Acc[2] != (r3.Vec{}) {
		t.Errorf("expected cleared accumulator, got %v", s.Acc[2])
	}
	if !s.Alive[2] {
		t.Error("expected respawned entity alive")
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	s := newTestStore(t, 4, 2)
	for _, i := range []int{-1, 2, 100} {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, dynamo.ErrIndexOutOfRange) {
					t.Errorf("index %d: expected ErrIndexOutOfRange panic, got %v", i, r)
				}
			}()
			s.Kill(i)
		}()
	}
}

func TestOrbitSpawner(t *testing.T) {
	o := NewOrbitSpawner(1)
	rng := rand.New(rand.NewSource(1))

	sun := o.Spawn(rng, 0)
	if sun.Pos != (r3.Vec{}) || sun.Mass != o.CentralMass {
		t.Errorf("expected central mass at origin, got %+v", sun)
	}

	p := o.Spawn(rng, 1)
	want := math.Sqrt(o.G * o.CentralMass / p.Pos.X)
	if math.Abs(p.Vel.Y-want) > 1e-9 {
		t.Errorf("expected circular speed %f, got %f", want, p.Vel.Y)
	}

	// softened gravity pulls less near the centre, so the orbit is slower
	o.Softening = 0.1
	q := o.Spawn(rng, 2)
	r2 := q.Pos.X*q.Pos.X + 0.01
	want = q.Pos.X * math.Sqrt(o.G*o.CentralMass/math.Pow(r2, 1.5))
	if math.Abs(q.Vel.Y-want) > 1e-9 {
		t.Errorf("expected softened circular speed %f, got %f", want, q.Vel.Y)
	}
	if q.Vel.Y >= math.Sqrt(o.G*o.CentralMass/q.Pos.X) {
		t.Errorf("expected softened speed below the point-mass speed, got %f", q.Vel.Y)
	}
}

func TestChild(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := Entity{
		Pos: r3.Vec{X: 1}, Mass: 1, Orient: pose.Identity(),
		Traits: Traits{MoveRate: r3.Vec{X: 1}, TurnRate: r3.Vec{Y: 1}, Lifespan: 4},
	}
	b := Entity{
		Pos: r3.Vec{X: -1}, Mass: 3, Orient: pose.Identity(),
		Traits: Traits{MoveRate: r3.Vec{X: 0}, TurnRate: r3.Vec{Y: 0}, Lifespan: 2},
	}
	a.Traits.Heading = r3.Vec{X: 1}
	b.Traits.Heading = r3.Vec{Y: 1}

	c := Child(rng, a, b, 0)
	if c.Pos != (r3.Vec{}) {
		t.Errorf("expected midpoint, got %v", c.Pos)
	}
	if c.Mass != 2 {
		t.Errorf("expected mass 2, got %f", c.Mass)
	}
	if c.Traits.MoveRate != (r3.Vec{X: 0.5}) {
		t.Errorf("expected averaged move rate, got %v", c.Traits.MoveRate)
	}
	if c.Traits.Lifespan != 3 {
		t.Errorf("expected lifespan 3, got %f", c.Traits.Lifespan)
	}
	if c.Traits.Heading != (r3.Vec{X: 0.5, Y: 0.5}) {
		t.Errorf("expected averaged heading, got %v", c.Traits.Heading)
	}
	if r3.Norm(r3.Sub(pose.Forward(c.Orient), pose.Forward(a.Orient))) > 1e-9 {
		t.Errorf("expected inherited facing, got %v", pose.Forward(c.Orient))
	}

	m := Child(rng, a, b, 0.1)
	d := r3.Sub(m.Traits.MoveRate, r3.Vec{X: 0.5})
	if math.Abs(d.X) > 0.1 || math.Abs(d.Y) > 0.1 || math.Abs(d.Z) > 0.1 {
		t.Errorf("expected perturbation within 0.1, got %v", d)
	}

	h := r3.Sub(m.Traits.Heading, r3.Vec{X: 0.5, Y: 0.5})
	if h == (r3.Vec{}) {
		t.Error("expected the heading to mutate")
	}
	if math.Abs(h.X) > 0.1 || math.Abs(h.Y) > 0.1 || math.Abs(h.Z) > 0.1 {
		t.Errorf("expected heading perturbation within 0.1, got %v", h)
	}
	if pose.Forward(m.Orient) == pose.Forward(a.Orient) {
		t.Error("expected the facing to mutate")
	}
}

func TestSizeForMass(t *testing.T) {
	tests := []struct {
		mass, want float64
	}{
		{1, 1},
		{8, 2},
		{1000, 10},
	}
	for _, tt := range tests {
		if got := SizeForMass(tt.mass); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("expected size %f for mass %f, got %f", tt.want, tt.mass, got)
		}
	}

	e := NewClusterSpawner().Spawn(rand.New(rand.NewSource(5)), 0)
	if e.Size != SizeForMass(e.Mass) {
		t.Errorf("expected spawned size %f, got %f", SizeForMass(e.Mass), e.Size)
	}
}

package snapshot

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/field"
	"github.com/san-kum/swarmlab/internal/pose"
)

func TestCapture(t *testing.T) {
	s, _ := entity.NewStore(4, 0, entity.NewAgentSpawner(true))
	for i, l := range []float64{5, 20, -1} {
		_, err := s.Add(entity.Entity{
			Pos: r3.Vec{X: float64(i)}, Mass: 1, Orient: pose.Identity(), Size: 1,
			Traits: entity.Traits{Lifespan: l},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	s.Kill(1)

	fld := field.New(field.DefaultConfig())
	fld.Food = []field.Food{{Position: r3.Vec{Y: 1}, Size: 3}}

	snap := Capture(7, s, fld, Options{LifespanAlpha: true})

	if snap.Step != 7 {
		t.Errorf("expected step 7, got %d", snap.Step)
	}
	if len(snap.Entities) != 2 {
		t.Fatalf("expected 2 live drawables, got %d", len(snap.Entities))
	}
	if snap.Entities[0].Alpha != 0.5 {
		t.Errorf("expected alpha 0.5, got %f", snap.Entities[0].Alpha)
	}
	if snap.Entities[1].Alpha != 0 {
		t.Errorf("expected negative lifespan to clamp alpha to 0, got %f", snap.Entities[1].Alpha)
	}
	if snap.Entities[1].ID != 2 {
		t.Errorf("expected id 2, got %d", snap.Entities[1].ID)
	}
	if f := snap.Entities[0].Forward; math.Abs(f.Z+1) > 1e-12 {
		t.Errorf("expected forward (0,0,-1), got %v", f)
	}
	if len(snap.Food) != 1 || snap.Food[0].Size != 3 {
		t.Errorf("expected one food drawable, got %v", snap.Food)
	}

	// the snapshot is a copy
	s.Pos[0] = r3.Vec{X: 100}
	if snap.Entities[0].Position.X != 0 {
		t.Error("snapshot aliased store memory")
	}
}

func TestBounds(t *testing.T) {
	snap := &Snapshot{Entities: []Drawable{
		{Position: r3.Vec{X: 1, Y: -2}},
		{Position: r3.Vec{X: -3, Z: 4}},
	}}
	lo, hi, ok := snap.Bounds()
	if !ok || lo != (r3.Vec{X: -3, Y: -2}) || hi != (r3.Vec{X: 1, Z: 4}) {
		t.Errorf("unexpected bounds %v %v", lo, hi)
	}
	if _, _, ok := (&Snapshot{}).Bounds(); ok {
		t.Error("expected no bounds for empty snapshot")
	}
}

func TestPublisherNoTornReads(t *testing.T) {
	pub := NewPublisher()
	if pub.Latest() != nil {
		t.Fatal("expected nil before first publish")
	}

	const n = 64
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := pub.Latest()
			if snap == nil {
				continue
			}
			// every drawable of one snapshot carries that snapshot's step
			for _, d := range snap.Entities {
				if d.ID != snap.Step {
					t.Errorf("torn snapshot: step %d has id %d", snap.Step, d.ID)
					return
				}
			}
		}
	}()

	for step := uint64(1); step <= 500; step++ {
		ents := make([]Drawable, n)
		for i := range ents {
			ents[i].ID = step
		}
		pub.Publish(&Snapshot{Step: step, Entities: ents})
	}
	close(stop)
	wg.Wait()

	if pub.Published() != 500 {
		t.Errorf("expected 500 publishes, got %d", pub.Published())
	}
	if pub.Latest().Step != 500 {
		t.Errorf("expected latest step 500, got %d", pub.Latest().Step)
	}
}

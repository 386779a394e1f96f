// Package snapshot is the only data that crosses from the simulation to
// whatever draws it. A Snapshot is built once per step and never mutated
// after it is published.
package snapshot

import (
	"sync/atomic"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/entity"
	"github.com/san-kum/swarmlab/internal/field"
	"github.com/san-kum/swarmlab/internal/lifecycle"
	"github.com/san-kum/swarmlab/internal/pose"
)

type Drawable struct {
	ID       uint64
	Position r3.Vec
	Forward  r3.Vec
	Up       r3.Vec
	Color    colorful.Color
	Alpha    float64
	Size     float64
}

// Sphere marks a transient region such as a cull event.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

type Snapshot struct {
	Step     uint64
	Entities []Drawable
	Food     []Drawable
	Cull     *Sphere

	// Totals are the lifecycle counts since the last reset.
	Totals lifecycle.Stats
}

// Options choose how entity rows turn into drawables.
type Options struct {
	// LifespanAlpha fades agents with their remaining lifespan.
	LifespanAlpha bool
}

// Capture copies the drawable attributes of every live entity and food item.
func Capture(step uint64, s *entity.Store, fld *field.Field, opts Options) *Snapshot {
	snap := &Snapshot{
		Step:     step,
		Entities: make([]Drawable, 0, s.Len()),
	}
	for i := range s.Pos {
		if !s.Alive[i] {
			continue
		}
		alpha := 1.0
		if opts.LifespanAlpha {
			alpha = pose.Clamp(s.Traits[i].Lifespan*0.1, 0, 1)
		}
		snap.Entities = append(snap.Entities, Drawable{
			ID:       s.ID[i],
			Position: s.Pos[i],
			Forward:  pose.Forward(s.Orient[i]),
			Up:       pose.Up(s.Orient[i]),
			Color:    s.Color[i],
			Alpha:    alpha,
			Size:     s.Size[i],
		})
	}

	if fld != nil {
		snap.Food = make([]Drawable, 0, len(fld.Food))
		for _, fd := range fld.Food {
			snap.Food = append(snap.Food, Drawable{
				Position: fd.Position,
				Color:    fd.Color,
				Alpha:    1,
				Size:     fd.Size,
			})
		}
	}
	return snap
}

// Bounds returns the axis-aligned box around every entity position.
func (s *Snapshot) Bounds() (lo, hi r3.Vec, ok bool) {
	if len(s.Entities) == 0 {
		return r3.Vec{}, r3.Vec{}, false
	}
	lo, hi = s.Entities[0].Position, s.Entities[0].Position
	for _, d := range s.Entities[1:] {
		p := d.Position
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi, true
}

// Publisher hands the latest snapshot to concurrent readers. Publish swaps
// in a fully built snapshot, so a reader sees either the previous step or
// the new one, never a mix.
type Publisher struct {
	latest atomic.Pointer[Snapshot]
	count  atomic.Uint64
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) Publish(s *Snapshot) {
	p.latest.Store(s)
	p.count.Add(1)
}

// Latest returns the newest snapshot or nil before the first Publish.
func (p *Publisher) Latest() *Snapshot { return p.latest.Load() }

// Published counts Publish calls.
func (p *Publisher) Published() uint64 { return p.count.Load() }

package neighbor

import (
	"reflect"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

func randomSnapshot(rng *rand.Rand, n int, spread float64) ([]r3.Vec, []bool) {
	pos := make([]r3.Vec, n)
	alive := make([]bool, n)
	for i := range pos {
		pos[i] = r3.Vec{
			X: (rng.Float64()*2 - 1) * spread,
			Y: (rng.Float64()*2 - 1) * spread,
			Z: (rng.Float64()*2 - 1) * spread,
		}
		alive[i] = rng.Float64() > 0.1
	}
	return pos, alive
}

func TestBruteForceMatchesHash(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for _, n := range []int{10, 100, 1000} {
		for _, r := range []float64{0, 0.05, 0.2, 0.5} {
			pos, alive := randomSnapshot(rng, n, 1)

			brute := NewBruteForce()
			brute.Rebuild(pos, alive)
			hash := NewSpatialHash(0.2)
			hash.Rebuild(pos, alive)

			var a, b []int
			for i := 0; i < n; i++ {
				a = brute.Query(a, i, r)
				b = hash.Query(b, i, r)
				if !reflect.DeepEqual(a, b) && !(len(a) == 0 && len(b) == 0) {
					t.Fatalf("n=%d r=%g i=%d: brute %v, hash %v", n, r, i, a, b)
				}
			}
		}
	}
}

func TestQueryExcludesSelfAndDead(t *testing.T) {
	pos := []r3.Vec{{}, {X: 0.01}, {X: 0.02}, {X: 5}}
	alive := []bool{true, false, true, true}

	for _, f := range []Finder{NewBruteForce(), NewSpatialHash(0.1)} {
		f.Rebuild(pos, alive)
		got := f.Query(nil, 0, 0.1)
		if !reflect.DeepEqual(got, []int{2}) {
			t.Errorf("%s: expected [2], got %v", f.Name(), got)
		}
	}
}

func TestQueryZeroRadius(t *testing.T) {
	pos := []r3.Vec{{}, {}, {}}
	alive := []bool{true, true, true}

	for _, f := range []Finder{NewBruteForce(), NewSpatialHash(0.1)} {
		f.Rebuild(pos, alive)
		if got := f.Query(nil, 0, 0); len(got) != 0 {
			t.Errorf("%s: expected no neighbours at radius 0, got %v", f.Name(), got)
		}
	}
}

func TestQueryPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pos, alive := randomSnapshot(rng, 300, 1)

	brute := NewBruteForce()
	brute.Rebuild(pos, alive)
	hash := NewSpatialHash(0.1)
	hash.Rebuild(pos, alive)

	for k := 0; k < 50; k++ {
		p := r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		a := brute.QueryPoint(nil, p, 0.15, -1)
		b := hash.QueryPoint(nil, p, 0.15, -1)
		if !reflect.DeepEqual(a, b) && !(len(a) == 0 && len(b) == 0) {
			t.Fatalf("point %v: brute %v, hash %v", p, a, b)
		}
	}
}

func TestHashLargeRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	pos, alive := randomSnapshot(rng, 200, 10)

	brute := NewBruteForce()
	brute.Rebuild(pos, alive)
	hash := NewSpatialHash(0.01)
	hash.Rebuild(pos, alive)

	a := brute.Query(nil, 3, 8)
	b := hash.Query(nil, 3, 8)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected equal sets, brute %d hash %d", len(a), len(b))
	}
}

func TestRebuildTracksMovement(t *testing.T) {
	pos := []r3.Vec{{}, {X: 3}}
	alive := []bool{true, true}

	h := NewSpatialHash(0.5)
	h.Rebuild(pos, alive)
	if got := h.Query(nil, 0, 0.5); len(got) != 0 {
		t.Fatalf("expected no neighbour, got %v", got)
	}

	pos[1] = r3.Vec{X: 0.1}
	h.Rebuild(pos, alive)
	if got := h.Query(nil, 0, 0.5); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("expected [1] after rebuild, got %v", got)
	}
}

func TestKeepNearest(t *testing.T) {
	pos := []r3.Vec{{}, {X: 0.4}, {X: 0.1}, {X: 0.3}, {X: 0.2}}
	idx := []int{1, 2, 3, 4}

	got := KeepNearest(idx, pos, pos[0], 2)
	if !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("expected [2 4], got %v", got)
	}

	all := KeepNearest([]int{1, 2}, pos, pos[0], 0)
	if !reflect.DeepEqual(all, []int{1, 2}) {
		t.Errorf("expected untouched, got %v", all)
	}
}

func BenchmarkBruteForce(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pos, alive := randomSnapshot(rng, 1000, 1)
	f := NewBruteForce()
	var dst []int

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Rebuild(pos, alive)
		for j := range pos {
			dst = f.Query(dst, j, 0.1)
		}
	}
}

func BenchmarkSpatialHash(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pos, alive := randomSnapshot(rng, 1000, 1)
	f := NewSpatialHash(0.1)
	var dst []int

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Rebuild(pos, alive)
		for j := range pos {
			dst = f.Query(dst, j, 0.1)
		}
	}
}

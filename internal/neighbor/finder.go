// Package neighbor answers fixed-radius neighbour queries over a snapshot of
// entity positions.
//
// A Finder is rebuilt once per step, before the force phase, and is then
// queried read-only. Querying after positions move without a Rebuild
// returns stale sets; nothing detects it.
package neighbor

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

type Finder interface {
	Name() string
	// Rebuild indexes the given snapshot. The slices are retained, not copied,
	// and must not change until the next Rebuild.
	Rebuild(pos []r3.Vec, alive []bool)
	// Query appends to dst[:0] every live index j != i with |pos[j]-pos[i]| < r,
	// in ascending index order.
	Query(dst []int, i int, r float64) []int
	// QueryPoint is Query around an arbitrary point; exclude < 0 excludes nothing.
	QueryPoint(dst []int, p r3.Vec, r float64, exclude int) []int
}

// BruteForce scans every pair. Exact and allocation free; fine up to a few thousand entities.
type BruteForce struct {
	pos   []r3.Vec
	alive []bool
}

func NewBruteForce() *BruteForce { return &BruteForce{} }

func (b *BruteForce) Name() string { return "brute" }

func (b *BruteForce) Rebuild(pos []r3.Vec, alive []bool) {
	b.pos = pos
	b.alive = alive
}

func (b *BruteForce) Query(dst []int, i int, r float64) []int {
	return b.QueryPoint(dst, b.pos[i], r, i)
}

func (b *BruteForce) QueryPoint(dst []int, p r3.Vec, r float64, exclude int) []int {
	dst = dst[:0]
	r2 := r * r
	for j, q := range b.pos {
		if j == exclude || !b.alive[j] {
			continue
		}
		if r3.Norm2(r3.Sub(q, p)) < r2 {
			dst = append(dst, j)
		}
	}
	return dst
}

// KeepNearest reorders idx by distance from p, ties broken by index, and
// truncates it to k. k <= 0 keeps everything in index order.
func KeepNearest(idx []int, pos []r3.Vec, p r3.Vec, k int) []int {
	if k <= 0 || len(idx) <= k {
		return idx
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da := r3.Norm2(r3.Sub(pos[idx[a]], p))
		db := r3.Norm2(r3.Sub(pos[idx[b]], p))
		if da != db {
			return da < db
		}
		return idx[a] < idx[b]
	})
	idx = idx[:k]
	slices.Sort(idx)
	return idx
}

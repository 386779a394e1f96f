package neighbor

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/swarmlab/internal/pose"
)

const minCellSize = 1e-3

type cellKey struct {
	x, y, z int32
}

// SpatialHash buckets entities into cubic cells keyed by integer
// coordinates. The world is unbounded: any finite position hashes.
type SpatialHash struct {
	cellSize float64
	cells    map[cellKey][]int
	pos      []r3.Vec
	alive    []bool
}

// NewSpatialHash sizes cells to the largest radius the caller will query
// with, so a typical query touches 27 cells.
func NewSpatialHash(cellSize float64) *SpatialHash {
	if cellSize < minCellSize || math.IsNaN(cellSize) {
		cellSize = minCellSize
	}
	return &SpatialHash{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

func (h *SpatialHash) Name() string { return "hash" }

func (h *SpatialHash) CellSize() float64 { return h.cellSize }

func (h *SpatialHash) Rebuild(pos []r3.Vec, alive []bool) {
	h.pos = pos
	h.alive = alive

	// drop buckets left over from a much larger population
	if len(h.cells) > 4*len(pos)+64 {
		h.cells = make(map[cellKey][]int, len(pos))
	}
	for k, v := range h.cells {
		h.cells[k] = v[:0]
	}

	for i, p := range pos {
		if !alive[i] || !pose.IsFinite(p) {
			continue
		}
		k := h.key(p)
		h.cells[k] = append(h.cells[k], i)
	}
}

func (h *SpatialHash) Query(dst []int, i int, r float64) []int {
	return h.QueryPoint(dst, h.pos[i], r, i)
}

func (h *SpatialHash) QueryPoint(dst []int, p r3.Vec, r float64, exclude int) []int {
	dst = dst[:0]
	if r <= 0 || !pose.IsFinite(p) {
		return dst
	}

	r2 := r * r
	span := 2*math.Ceil(r/h.cellSize) + 1
	if span*span*span > float64(len(h.cells)) {
		// radius much larger than a cell: walking the buckets is cheaper
		for _, bucket := range h.cells {
			dst = h.appendWithin(dst, bucket, p, r2, exclude)
		}
		slices.Sort(dst)
		return dst
	}

	reach := int32(math.Ceil(r / h.cellSize))
	c := h.key(p)

	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			for dz := -reach; dz <= reach; dz++ {
				dst = h.appendWithin(dst, h.cells[cellKey{c.x + dx, c.y + dy, c.z + dz}], p, r2, exclude)
			}
		}
	}

	slices.Sort(dst)
	return dst
}

func (h *SpatialHash) appendWithin(dst, bucket []int, p r3.Vec, r2 float64, exclude int) []int {
	for _, j := range bucket {
		if j == exclude {
			continue
		}
		if r3.Norm2(r3.Sub(h.pos[j], p)) < r2 {
			dst = append(dst, j)
		}
	}
	return dst
}

func (h *SpatialHash) key(p r3.Vec) cellKey {
	return cellKey{
		x: cellCoord(p.X, h.cellSize),
		y: cellCoord(p.Y, h.cellSize),
		z: cellCoord(p.Z, h.cellSize),
	}
}

func cellCoord(v, size float64) int32 {
	c := math.Floor(v / size)
	if c > math.MaxInt32-2 {
		return math.MaxInt32 - 2
	}
	if c < math.MinInt32+2 {
		return math.MinInt32 + 2
	}
	return int32(c)
}

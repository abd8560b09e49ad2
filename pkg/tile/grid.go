package tile

import (
	"iter"
	"math"
)

// Grid is the inclusive tile index range covering a bounding box at
// one zoom level.
type Grid struct {
	Zoom                   int
	MinX, MinY, MaxX, MaxY int
}

// GridAt computes the tile index range covering bbox at the given zoom
// level, clamped to the world extent [0, 2^zoom-1]. The min corner
// uses floor division and the max corner the ceil-1 rule, so a box
// edge exactly on a tile boundary never drags in a tile the box only
// touches.
func GridAt(m *Mercator, bbox BoundingBox, zoom int) Grid {
	pminx, pminy := m.MetersToPixels(bbox.MinX, bbox.MinY, zoom)
	minX := int(math.Floor(pminx / float64(m.TileSize)))
	minY := int(math.Floor(pminy / float64(m.TileSize)))
	maxX, maxY := m.MetersToTile(bbox.MaxX, bbox.MaxY, zoom)

	last := int(uint64(1)<<uint(zoom)) - 1
	return Grid{
		Zoom: zoom,
		MinX: max(0, minX),
		MinY: max(0, minY),
		MaxX: min(last, maxX),
		MaxY: min(last, maxY),
	}
}

// Size returns the number of tiles in the grid.
func (g Grid) Size() int {
	return (g.MaxX - g.MinX + 1) * (g.MaxY - g.MinY + 1)
}

// Contains reports whether the coordinate falls inside the grid.
func (g Grid) Contains(c Coordinate) bool {
	return c.Zoom == g.Zoom &&
		c.X >= g.MinX && c.X <= g.MaxX &&
		c.Y >= g.MinY && c.Y <= g.MaxY
}

// Coordinates yields every tile in the grid in row-major order: y
// outer ascending, x inner ascending. The sequence is finite and can
// be ranged over any number of times; the fixed order gives resumed
// runs a stable iteration point.
func (g Grid) Coordinates() iter.Seq[Coordinate] {
	return func(yield func(Coordinate) bool) {
		for y := g.MinY; y <= g.MaxY; y++ {
			for x := g.MinX; x <= g.MaxX; x++ {
				if !yield(Coordinate{Zoom: g.Zoom, X: x, Y: y}) {
					return
				}
			}
		}
	}
}

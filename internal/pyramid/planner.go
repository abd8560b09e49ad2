// Package pyramid computes the zoom range of a tile pyramid from a
// raster's projected footprint and native resolution.
package pyramid

import (
	"errors"
	"fmt"

	"github.com/tilefan/tilefan/pkg/tile"
)

// ErrDegenerateExtent is returned when the source raster is too small
// to produce even a single-level pyramid at the requested tile size.
var ErrDegenerateExtent = errors.New("degenerate extent: computed max zoom below min zoom")

// Spec describes one pyramid: the zoom range to render plus the tile
// parameters shared by every level. It is created once per run and
// never mutated afterwards.
type Spec struct {
	MinZoom  int
	MaxZoom  int
	TileSize int
	Format   tile.Format
}

// Levels returns the number of zoom levels in the pyramid.
func (s Spec) Levels() int { return s.MaxZoom - s.MinZoom + 1 }

// Plan computes the pyramid spec for a raster with the given projected
// bounding box and native ground resolution (meters per pixel).
//
// The maximum zoom is the smallest level whose resolution is finer
// than or equal to the source's, so tiles never carry detail the
// source cannot supply. The minimum zoom is the deepest level whose
// single-tile footprint still contains the whole raster, so the
// pyramid always tops out with an overview the extent fits into.
// Plan is pure; the same inputs always produce the same spec.
func Plan(bbox tile.BoundingBox, resolution float64, tileSize int, format tile.Format) (Spec, error) {
	if !bbox.Valid() {
		return Spec{}, fmt.Errorf("invalid bounding box: min (%g,%g) not below max (%g,%g)",
			bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY)
	}
	if resolution <= 0 {
		return Spec{}, fmt.Errorf("invalid resolution: %g", resolution)
	}
	if tileSize <= 0 {
		return Spec{}, fmt.Errorf("invalid tile size: %d", tileSize)
	}

	m := tile.NewMercator(tileSize)

	maxZoom := m.ZoomForResolution(resolution)

	// Effective pixel size of the whole raster squeezed into one
	// tile; the deepest zoom still no finer than that resolution is
	// the level whose tile footprint contains the extent.
	extent := max(bbox.Width(), bbox.Height())
	minZoom := m.ZoomCovering(extent / float64(tileSize))

	if maxZoom < minZoom {
		return Spec{}, fmt.Errorf("%w (min %d, max %d)", ErrDegenerateExtent, minZoom, maxZoom)
	}

	return Spec{
		MinZoom:  minZoom,
		MaxZoom:  maxZoom,
		TileSize: tileSize,
		Format:   format,
	}, nil
}

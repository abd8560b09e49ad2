// Package raster exposes geo-referenced rasters as a read-only
// capability: a projected bounding box, a native resolution and a
// crop/resample operation. Workers and the dispatcher always address a
// source by absolute path on shared storage.
package raster

import (
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/tilefan/tilefan/pkg/tile"
)

// Source is a read-only geo-referenced raster in the target spatial
// reference.
type Source interface {
	// Bounds returns the projected footprint of the raster.
	Bounds() tile.BoundingBox
	// Resolution returns the native ground resolution in units per pixel.
	Resolution() float64
	// SRS returns the spatial reference the raster is georeferenced in.
	SRS() string
	// RenderTile crops the footprint out of the raster and resamples it
	// to a size x size pixel image. Areas of the footprint outside the
	// raster come out fully transparent.
	RenderTile(ctx context.Context, footprint tile.BoundingBox, size int, res Resampler) (image.Image, error)
}

// Resampler selects the interpolation used when scaling a cropped
// window to the tile size.
type Resampler struct {
	Name   string
	interp xdraw.Interpolator
}

var resamplers = map[string]xdraw.Interpolator{
	"near":           xdraw.NearestNeighbor,
	"bilinear":       xdraw.BiLinear,
	"approxbilinear": xdraw.ApproxBiLinear,
	"cubic":          xdraw.CatmullRom,
}

// ParseResampler resolves a resampling algorithm by name. Supported:
// near (default), bilinear, approxbilinear, cubic.
func ParseResampler(name string) (Resampler, error) {
	if name == "" {
		name = "near"
	}
	interp, ok := resamplers[name]
	if !ok {
		return Resampler{}, fmt.Errorf("unknown resampling algorithm: %q", name)
	}
	return Resampler{Name: name, interp: interp}, nil
}

// Scale resamples src into the given rectangle of dst.
func (r Resampler) Scale(dst xdraw.Image, dr image.Rectangle, src image.Image, sr image.Rectangle) {
	interp := r.interp
	if interp == nil {
		interp = xdraw.NearestNeighbor
	}
	interp.Scale(dst, dr, src, sr, xdraw.Over, nil)
}

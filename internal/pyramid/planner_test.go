package pyramid

import (
	"errors"
	"testing"

	"github.com/tilefan/tilefan/pkg/tile"
)

func TestPlanTenKilometerRaster(t *testing.T) {
	// 10km x 10km at 5m/pixel, 256px tiles.
	bbox := tile.BoundingBox{MinX: 1650000, MinY: 5950000, MaxX: 1660000, MaxY: 5960000}

	spec, err := Plan(bbox, 5, 256, tile.FormatPNG)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	m := tile.NewMercator(256)
	if m.Resolution(spec.MaxZoom) > 5 {
		t.Errorf("max zoom %d has resolution %v, coarser than the source", spec.MaxZoom, m.Resolution(spec.MaxZoom))
	}
	if spec.MaxZoom > 0 && m.Resolution(spec.MaxZoom-1) <= 5 {
		t.Errorf("max zoom %d is deeper than needed", spec.MaxZoom)
	}
	if spec.MinZoom > spec.MaxZoom {
		t.Errorf("min zoom %d above max zoom %d", spec.MinZoom, spec.MaxZoom)
	}

	// At min zoom one tile footprint must contain the raster, and
	// going one level deeper must lose that containment.
	tileSpan := float64(spec.TileSize) * m.Resolution(spec.MinZoom)
	if tileSpan < 10000 {
		t.Errorf("min zoom %d tile span %v cannot contain the 10km raster", spec.MinZoom, tileSpan)
	}
	if tileSpan > 10000*2 {
		t.Errorf("min zoom %d tile span %v is far larger than the raster", spec.MinZoom, tileSpan)
	}
	if deeper := float64(spec.TileSize) * m.Resolution(spec.MinZoom+1); deeper >= 10000 {
		t.Errorf("min zoom %d is shallower than needed: a zoom %d tile still spans %v",
			spec.MinZoom, spec.MinZoom+1, deeper)
	}

	if spec.TileSize != 256 || spec.Format != tile.FormatPNG {
		t.Errorf("spec carries wrong parameters: %+v", spec)
	}
	if spec.Levels() != spec.MaxZoom-spec.MinZoom+1 {
		t.Errorf("Levels() = %d", spec.Levels())
	}
}

func TestPlanReproducible(t *testing.T) {
	bbox := tile.BoundingBox{MinX: -300, MinY: -400, MaxX: 700, MaxY: 600}

	first, err := Plan(bbox, 2.5, 256, tile.FormatJPEG)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	second, err := Plan(bbox, 2.5, 256, tile.FormatJPEG)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if first != second {
		t.Errorf("same input produced different specs: %+v vs %+v", first, second)
	}
}

func TestPlanDegenerateExtent(t *testing.T) {
	// A raster far smaller than one tile at its own resolution.
	bbox := tile.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	_, err := Plan(bbox, 5, 256, tile.FormatPNG)
	if !errors.Is(err, ErrDegenerateExtent) {
		t.Fatalf("Plan = %v, want ErrDegenerateExtent", err)
	}
}

func TestPlanOrderedZoomRange(t *testing.T) {
	boxes := []tile.BoundingBox{
		{MinX: 0, MinY: 0, MaxX: 100000, MaxY: 100000},
		{MinX: -2e7, MinY: -2e7, MaxX: 2e7, MaxY: 2e7},
		{MinX: 100, MinY: 100, MaxX: 5000, MaxY: 9000},
	}
	resolutions := []float64{0.1, 1, 10, 1000}

	for _, bbox := range boxes {
		for _, res := range resolutions {
			spec, err := Plan(bbox, res, 256, tile.FormatPNG)
			if errors.Is(err, ErrDegenerateExtent) {
				continue
			}
			if err != nil {
				t.Fatalf("Plan(%+v, %v): %v", bbox, res, err)
			}
			if spec.MinZoom > spec.MaxZoom {
				t.Errorf("Plan(%+v, %v): min %d > max %d", bbox, res, spec.MinZoom, spec.MaxZoom)
			}
			if spec.MinZoom < 0 {
				t.Errorf("Plan(%+v, %v): negative min zoom %d", bbox, res, spec.MinZoom)
			}

			m := tile.NewMercator(256)
			extent := max(bbox.MaxX-bbox.MinX, bbox.MaxY-bbox.MinY)
			if span := 256 * m.Resolution(spec.MinZoom); spec.MinZoom > 0 && span < extent {
				t.Errorf("Plan(%+v, %v): min zoom %d tile span %v below extent %v",
					bbox, res, spec.MinZoom, span, extent)
			}
		}
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	good := tile.BoundingBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}

	if _, err := Plan(tile.BoundingBox{MinX: 10, MinY: 0, MaxX: 0, MaxY: 10}, 1, 256, tile.FormatPNG); err == nil {
		t.Error("inverted bounding box accepted")
	}
	if _, err := Plan(good, 0, 256, tile.FormatPNG); err == nil {
		t.Error("zero resolution accepted")
	}
	if _, err := Plan(good, -5, 256, tile.FormatPNG); err == nil {
		t.Error("negative resolution accepted")
	}
	if _, err := Plan(good, 1, 0, tile.FormatPNG); err == nil {
		t.Error("zero tile size accepted")
	}
}

package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestResolutionHalvesPerZoom(t *testing.T) {
	m := NewMercator(256)

	if got := m.Resolution(0); math.Abs(got-156543.03392804062) > 1e-6 {
		t.Errorf("Resolution(0) = %v, want 156543.03392804062", got)
	}

	for z := 0; z < 20; z++ {
		if got, want := m.Resolution(z+1), m.Resolution(z)/2; math.Abs(got-want) > 1e-9 {
			t.Errorf("Resolution(%d) = %v, want half of Resolution(%d) = %v", z+1, got, z, want)
		}
	}
}

func TestResolutionDependsOnTileSize(t *testing.T) {
	// Zoom 0 is one tile covering the full extent, so doubling the
	// pixel count halves the ground resolution.
	m256 := NewMercator(256)
	m512 := NewMercator(512)
	if got, want := m512.Resolution(0), m256.Resolution(0)/2; math.Abs(got-want) > 1e-9 {
		t.Errorf("512px Resolution(0) = %v, want %v", got, want)
	}
}

func TestLatLonMetersRoundTrip(t *testing.T) {
	m := NewMercator(256)

	cases := []struct{ lat, lon float64 }{
		{0, 0},
		{48.2082, 16.3738},
		{-33.8688, 151.2093},
		{37.7749, -122.4194},
		{84.9, 179.9},
		{-84.9, -179.9},
	}
	for _, c := range cases {
		x, y := m.LatLonToMeters(c.lat, c.lon)
		lat, lon := m.MetersToLatLon(x, y)
		if math.Abs(lat-c.lat) > 1e-9 || math.Abs(lon-c.lon) > 1e-9 {
			t.Errorf("round trip (%v,%v) -> (%v,%v) -> (%v,%v)", c.lat, c.lon, x, y, lat, lon)
		}
	}
}

func TestPixelsMetersRoundTrip(t *testing.T) {
	m := NewMercator(256)
	for _, zoom := range []int{0, 5, 12, 20} {
		x, y := m.PixelsToMeters(12345.5, 6789.25, zoom)
		px, py := m.MetersToPixels(x, y, zoom)
		if math.Abs(px-12345.5) > 1e-6 || math.Abs(py-6789.25) > 1e-6 {
			t.Errorf("zoom %d: pixel round trip gave (%v,%v)", zoom, px, py)
		}
	}
}

func TestPixelsToTileBoundary(t *testing.T) {
	m := NewMercator(256)

	// A pixel exactly on the boundary belongs to the lower tile.
	if tx, _ := m.PixelsToTile(256, 0); tx != 0 {
		t.Errorf("pixel 256 -> tile %d, want 0", tx)
	}
	if tx, _ := m.PixelsToTile(256.0001, 0); tx != 1 {
		t.Errorf("pixel 256.0001 -> tile %d, want 1", tx)
	}
	if tx, _ := m.PixelsToTile(511.9, 0); tx != 1 {
		t.Errorf("pixel 511.9 -> tile %d, want 1", tx)
	}
}

func TestTileBoundsContainTile(t *testing.T) {
	m := NewMercator(256)
	c := Coordinate{Zoom: 7, X: 68, Y: 83}

	b := m.TileBounds(c)
	if !b.Valid() {
		t.Fatalf("tile bounds %+v not valid", b)
	}

	// Center of the footprint maps back to the same tile.
	tx, ty := m.MetersToTile((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2, c.Zoom)
	if tx != c.X || ty != c.Y {
		t.Errorf("footprint center maps to (%d,%d), want (%d,%d)", tx, ty, c.X, c.Y)
	}

	// Footprint edge length equals tileSize * resolution.
	want := float64(256) * m.Resolution(c.Zoom)
	if math.Abs(b.Width()-want) > 1e-6 || math.Abs(b.Height()-want) > 1e-6 {
		t.Errorf("footprint %vx%v, want %v per side", b.Width(), b.Height(), want)
	}
}

func TestZoomForResolution(t *testing.T) {
	m := NewMercator(256)

	cases := []struct {
		pixelSize float64
		want      int
	}{
		{200000, 0},                 // coarser than the base level
		{m.Resolution(0), 0},        // exact match stays at the level
		{m.Resolution(5), 5},
		{m.Resolution(5) * 1.01, 5}, // slightly coarser still needs level 5
		{5, 15},                     // 5m/pixel, res(15)=4.777
	}
	for _, c := range cases {
		if got := m.ZoomForResolution(c.pixelSize); got != c.want {
			t.Errorf("ZoomForResolution(%v) = %d, want %d", c.pixelSize, got, c.want)
		}
	}

	for z := 0; z < MaxZoom; z++ {
		if m.Resolution(m.ZoomForResolution(m.Resolution(z))) > m.Resolution(z) {
			t.Errorf("zoom %d: selected level is coarser than requested", z)
		}
	}
}

func TestZoomCovering(t *testing.T) {
	m := NewMercator(256)

	cases := []struct {
		pixelSize float64
		want      int
	}{
		{200000, 0},                 // coarser than the base level clamps at 0
		{m.Resolution(0), 0},        // exact match stays at the level
		{m.Resolution(5), 5},
		{m.Resolution(5) * 0.99, 5}, // slightly finer is still covered by level 5
		{m.Resolution(5) * 1.01, 4}, // slightly coarser needs the level above
		{10000.0 / 256, 11},         // 10km extent in one 256px tile
	}
	for _, c := range cases {
		if got := m.ZoomCovering(c.pixelSize); got != c.want {
			t.Errorf("ZoomCovering(%v) = %d, want %d", c.pixelSize, got, c.want)
		}
	}

	// The selected level must never be finer than requested.
	for z := 1; z < MaxZoom; z++ {
		if m.Resolution(m.ZoomCovering(m.Resolution(z))) < m.Resolution(z) {
			t.Errorf("zoom %d: selected level is finer than requested", z)
		}
	}
}

// TestTileIndicesMatchMaptile cross-checks the forward mapping against
// the slippy-map scheme, accounting for the flipped y origin.
func TestTileIndicesMatchMaptile(t *testing.T) {
	m := NewMercator(256)

	points := []struct{ lat, lon float64 }{
		{48.2082, 16.3738},
		{-33.8688, 151.2093},
		{37.7749, -122.4194},
		{0.5, 0.5},
		{-0.5, -0.5},
		{60.1699, 24.9384},
	}
	for _, p := range points {
		for _, zoom := range []int{1, 5, 10, 15} {
			x, y := m.LatLonToMeters(p.lat, p.lon)
			tx, ty := m.MetersToTile(x, y, zoom)

			ref := maptile.At(orb.Point{p.lon, p.lat}, maptile.Zoom(zoom))
			wantX := int(ref.X)
			wantY := int(uint32(1)<<uint(zoom)) - 1 - int(ref.Y)
			if tx != wantX || ty != wantY {
				t.Errorf("(%v,%v) z%d: got (%d,%d), want (%d,%d)", p.lat, p.lon, zoom, tx, ty, wantX, wantY)
			}
		}
	}
}

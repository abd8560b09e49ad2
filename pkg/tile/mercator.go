package tile

import "math"

// MaxZoom is the deepest pyramid level we will ever plan for.
const MaxZoom = 32

const earthRadius = 6378137.0

// Mercator implements the TMS Global Mercator profile (EPSG:3857).
//
// Zoom 0 covers the whole projected extent with a single tile of the
// configured pixel size; every following level halves the ground
// resolution per pixel. Pixel and tile coordinates use TMS notation
// with the origin in the bottom-left corner.
type Mercator struct {
	TileSize int

	originShift       float64
	initialResolution float64
}

// NewMercator returns a Mercator profile for the given tile pixel size.
func NewMercator(tileSize int) *Mercator {
	shift := math.Pi * earthRadius // 20037508.342789244
	return &Mercator{
		TileSize:          tileSize,
		originShift:       shift,
		initialResolution: 2 * shift / float64(tileSize),
	}
}

// Resolution returns the ground resolution (meters/pixel, measured at
// the equator) of the given zoom level.
func (m *Mercator) Resolution(zoom int) float64 {
	return m.initialResolution / float64(uint64(1)<<uint(zoom))
}

// LatLonToMeters converts WGS84 lat/lon to XY in Spherical Mercator.
func (m *Mercator) LatLonToMeters(lat, lon float64) (float64, float64) {
	x := lon * m.originShift / 180.0
	y := math.Log(math.Tan((90+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * m.originShift / 180.0
	return x, y
}

// MetersToLatLon converts XY in Spherical Mercator to WGS84 lat/lon.
func (m *Mercator) MetersToLatLon(x, y float64) (float64, float64) {
	lon := (x / m.originShift) * 180.0
	lat := (y / m.originShift) * 180.0
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return lat, lon
}

// MetersToPixels converts projected meters to pyramid pixel
// coordinates at the given zoom level.
func (m *Mercator) MetersToPixels(x, y float64, zoom int) (float64, float64) {
	res := m.Resolution(zoom)
	px := (x + m.originShift) / res
	py := (y + m.originShift) / res
	return px, py
}

// PixelsToMeters converts pyramid pixel coordinates at the given zoom
// level to projected meters.
func (m *Mercator) PixelsToMeters(px, py float64, zoom int) (float64, float64) {
	res := m.Resolution(zoom)
	x := px*res - m.originShift
	y := py*res - m.originShift
	return x, y
}

// PixelsToTile returns the tile covering the given pixel coordinates.
// A pixel exactly on a tile boundary belongs to the lower tile, so a
// bounding box edge aligned with the grid does not drag in the
// neighbouring tile it merely touches.
func (m *Mercator) PixelsToTile(px, py float64) (int, int) {
	tx := int(math.Ceil(px/float64(m.TileSize)) - 1)
	ty := int(math.Ceil(py/float64(m.TileSize)) - 1)
	return tx, ty
}

// MetersToTile returns the tile covering the given projected point at
// the given zoom level.
func (m *Mercator) MetersToTile(x, y float64, zoom int) (int, int) {
	px, py := m.MetersToPixels(x, y, zoom)
	return m.PixelsToTile(px, py)
}

// TileBounds returns the projected footprint of a tile.
func (m *Mercator) TileBounds(c Coordinate) BoundingBox {
	minX, minY := m.PixelsToMeters(float64(c.X*m.TileSize), float64(c.Y*m.TileSize), c.Zoom)
	maxX, maxY := m.PixelsToMeters(float64((c.X+1)*m.TileSize), float64((c.Y+1)*m.TileSize), c.Zoom)
	return BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// ZoomForResolution returns the smallest zoom level whose ground
// resolution is finer than or equal to the given pixel size. Rendering
// at that level never discards detail the source cannot supply anyway.
func (m *Mercator) ZoomForResolution(pixelSize float64) int {
	for z := 0; z < MaxZoom; z++ {
		if m.Resolution(z) <= pixelSize {
			return z
		}
	}
	return MaxZoom - 1
}

// ZoomCovering returns the largest zoom level whose ground resolution
// is still at least the given pixel size, clamped at zoom 0. It is the
// coarse counterpart of ZoomForResolution: going one level deeper
// would make a pixel span less than pixelSize meters.
func (m *Mercator) ZoomCovering(pixelSize float64) int {
	for z := 0; z < MaxZoom; z++ {
		if m.Resolution(z) < pixelSize {
			if z == 0 {
				return 0
			}
			return z - 1
		}
	}
	return MaxZoom - 1
}

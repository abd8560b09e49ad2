package tile

import "fmt"

// Format is the output image format for rendered tiles.
type Format string

const (
	FormatPNG  Format = "PNG"
	FormatGIF  Format = "GIF"
	FormatJPEG Format = "JPEG"
)

// ParseFormat maps a format name as accepted on the command line to a
// Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPNG, FormatGIF, FormatJPEG:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown tile format: %q", s)
}

// Ext returns the file extension used for tiles of this format,
// without the leading dot.
func (f Format) Ext() string {
	switch f {
	case FormatGIF:
		return "gif"
	case FormatJPEG:
		return "jpg"
	default:
		return "png"
	}
}

func (f Format) String() string { return string(f) }

// BoundingBox represents projected bounds in the target spatial
// reference (EPSG:3857 meters).
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Valid reports whether the box has positive extent on both axes.
func (b BoundingBox) Valid() bool {
	return b.MinX < b.MaxX && b.MinY < b.MaxY
}

// Width returns the horizontal extent in projected units.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent in projected units.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Intersects reports whether the two boxes share any area.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Coordinate identifies one tile in the pyramid using the TMS scheme:
// the origin tile (0,0) sits in the bottom-left corner of the projected
// extent and y grows northward.
type Coordinate struct {
	Zoom int
	X    int
	Y    int
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Zoom, c.X, c.Y)
}

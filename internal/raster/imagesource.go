package raster

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Codecs for the raster formats we can open directly.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/tilefan/tilefan/pkg/tile"
)

// webMercatorAliases are the spatial reference names accepted as "the
// target SRS". Sources in any other reference must be warped before a
// run; this package does not reproject.
var webMercatorAliases = map[string]bool{
	"EPSG:3857":   true,
	"EPSG:3785":   true,
	"EPSG:900913": true,
	"OSGEO:41001": true,
}

// ImageSource is a Source backed by a world-file-georeferenced image
// on shared storage (PNG, JPEG, GIF or TIFF).
type ImageSource struct {
	path   string
	img    image.Image
	wf     worldFile
	srs    string
	bounds tile.BoundingBox
}

// Open reads the image at path together with its world file. The
// spatial reference is taken from srsOverride when non-empty,
// otherwise from a sidecar .prj file. Sources not already
// georeferenced in Spherical Mercator are rejected.
func Open(path string, srsOverride string) (*ImageSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot open input raster: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode input raster %s: %w", abs, err)
	}

	wfPath, err := worldFilePath(abs)
	if err != nil {
		return nil, fmt.Errorf("input raster %s is not georeferenced: %w", abs, err)
	}
	wf, err := readWorldFile(wfPath)
	if err != nil {
		return nil, err
	}

	srs := srsOverride
	if srs == "" {
		srs = sidecarSRS(abs)
	}
	if srs == "" {
		return nil, fmt.Errorf("input raster %s has unknown SRS, provide one with --srs", abs)
	}
	if !webMercatorAliases[strings.ToUpper(srs)] {
		return nil, fmt.Errorf("input raster %s is georeferenced in %s, warp it to EPSG:3857 first", abs, srs)
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("input raster %s is empty", abs)
	}

	// World file coordinates reference pixel centers; bounds use edges.
	minX := wf.originX - wf.pixelX/2
	maxY := wf.originY - wf.pixelY/2
	bounds := tile.BoundingBox{
		MinX: minX,
		MinY: maxY + float64(h)*wf.pixelY,
		MaxX: minX + float64(w)*wf.pixelX,
		MaxY: maxY,
	}

	return &ImageSource{
		path:   abs,
		img:    img,
		wf:     wf,
		srs:    srs,
		bounds: bounds,
	}, nil
}

// Path returns the absolute path the source was opened from.
func (s *ImageSource) Path() string { return s.path }

func (s *ImageSource) Bounds() tile.BoundingBox { return s.bounds }

func (s *ImageSource) SRS() string { return s.srs }

// Resolution returns the coarser of the two axis resolutions.
func (s *ImageSource) Resolution() float64 {
	return math.Max(s.wf.pixelX, -s.wf.pixelY)
}

// RenderTile crops the projected footprint out of the raster and
// resamples it into a size x size RGBA image. The crop window is
// clamped to the raster; for border tiles the uncovered remainder
// stays transparent.
func (s *ImageSource) RenderTile(ctx context.Context, footprint tile.BoundingBox, size int, res Resampler) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid tile size: %d", size)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	// Footprint in raster pixel coordinates (y down from the top edge).
	px := s.wf.pixelX
	py := -s.wf.pixelY
	rx0 := (footprint.MinX - s.bounds.MinX) / px
	ry0 := (s.bounds.MaxY - footprint.MaxY) / py
	rx1 := (footprint.MaxX - s.bounds.MinX) / px
	ry1 := (s.bounds.MaxY - footprint.MinY) / py

	// Clamp the read window to the raster, remembering how much of
	// the tile the clamped window still maps onto.
	w := s.img.Bounds().Dx()
	h := s.img.Bounds().Dy()
	cx0 := math.Max(rx0, 0)
	cy0 := math.Max(ry0, 0)
	cx1 := math.Min(rx1, float64(w))
	cy1 := math.Min(ry1, float64(h))
	if cx0 >= cx1 || cy0 >= cy1 {
		// Footprint entirely outside the raster.
		return dst, nil
	}

	sx := float64(size) / (rx1 - rx0)
	sy := float64(size) / (ry1 - ry0)
	dr := image.Rect(
		int(math.Round((cx0-rx0)*sx)),
		int(math.Round((cy0-ry0)*sy)),
		int(math.Round((cx1-rx0)*sx)),
		int(math.Round((cy1-ry0)*sy)),
	)
	sr := image.Rect(
		int(math.Floor(cx0)), int(math.Floor(cy0)),
		int(math.Ceil(cx1)), int(math.Ceil(cy1)),
	).Add(s.img.Bounds().Min)

	res.Scale(dst, dr, s.img, sr)
	return dst, nil
}

// sidecarSRS reads a .prj file beside the image, if present. The
// content is treated as an opaque SRS name/definition.
func sidecarSRS(imagePath string) string {
	stem := imagePath[:len(imagePath)-len(pathExt(imagePath))]
	data, err := os.ReadFile(stem + ".prj")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

package raster

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// worldFile is the six-parameter affine georeference stored beside an
// image file: x pixel size, two rotation terms, y pixel size (negative
// for north-up), and the projected center of the top-left pixel.
type worldFile struct {
	pixelX, pixelY   float64 // pixelY negative for north-up rasters
	rotX, rotY       float64
	originX, originY float64 // center of the top-left pixel
}

// worldFileExts maps an image extension to its conventional world file
// extensions, tried in order. The generic .wld is always tried last.
var worldFileExts = map[string][]string{
	".png":  {".pgw", ".pngw"},
	".jpg":  {".jgw", ".jpgw"},
	".jpeg": {".jgw", ".jpgw"},
	".gif":  {".gfw", ".gifw"},
	".tif":  {".tfw", ".tifw"},
	".tiff": {".tfw", ".tifw"},
}

func worldFilePath(imagePath string) (string, error) {
	ext := strings.ToLower(pathExt(imagePath))
	stem := imagePath[:len(imagePath)-len(pathExt(imagePath))]

	candidates := append([]string{}, worldFileExts[ext]...)
	candidates = append(candidates, ".wld")
	for _, we := range candidates {
		p := stem + we
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no world file found for %s", imagePath)
}

func pathExt(p string) string {
	if idx := strings.LastIndex(p, "."); idx != -1 && !strings.ContainsAny(p[idx:], "/\\") {
		return p[idx:]
	}
	return ""
}

func readWorldFile(path string) (worldFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return worldFile{}, err
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return worldFile{}, fmt.Errorf("world file %s: bad value %q: %w", path, line, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return worldFile{}, err
	}
	if len(vals) < 6 {
		return worldFile{}, fmt.Errorf("world file %s: expected 6 values, got %d", path, len(vals))
	}

	wf := worldFile{
		pixelX:  vals[0],
		rotY:    vals[1],
		rotX:    vals[2],
		pixelY:  vals[3],
		originX: vals[4],
		originY: vals[5],
	}
	if wf.rotX != 0 || wf.rotY != 0 {
		return worldFile{}, fmt.Errorf("world file %s: rotated or skewed rasters are not supported", path)
	}
	if wf.pixelX <= 0 || wf.pixelY >= 0 {
		return worldFile{}, fmt.Errorf("world file %s: expected positive x and negative y pixel size, got %g/%g",
			path, wf.pixelX, wf.pixelY)
	}
	return wf, nil
}

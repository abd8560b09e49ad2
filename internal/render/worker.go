// Package render consumes render tasks: it crops and resamples one
// tile out of the input raster and promotes it atomically into the
// output tree. Workers are stateless and safe to run any number of
// times for the same task.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/tilefan/tilefan/internal/queue"
	"github.com/tilefan/tilefan/internal/raster"
	"github.com/tilefan/tilefan/pkg/tile"
)

// ErrRender marks a per-task render failure. It never aborts a run;
// sibling tiles are unaffected.
var ErrRender = errors.New("render failed")

// SourceOpener opens the raster source a task points at. Injected so
// tests can substitute an in-memory source.
type SourceOpener func(path, srs string) (raster.Source, error)

// Worker renders tiles. The source cache only saves re-decoding the
// same input across tasks; it carries no per-task state, so a worker
// stays safe under at-least-once redelivery.
type Worker struct {
	resampler raster.Resampler
	optimize  bool
	open      SourceOpener
	logger    *log.Logger

	mu      sync.Mutex
	sources map[string]raster.Source
}

// NewWorker returns a worker rendering with the given resampler.
// When optimize is set, PNG tiles go through an external quantizer
// before promotion; a missing or failing quantizer degrades to the
// unoptimized tile.
func NewWorker(resampler raster.Resampler, optimize bool, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Worker{
		resampler: resampler,
		optimize:  optimize,
		open: func(path, srs string) (raster.Source, error) {
			return raster.Open(path, srs)
		},
		logger:  logger,
		sources: make(map[string]raster.Source),
	}
}

// SetOpener replaces the raster source opener.
func (w *Worker) SetOpener(open SourceOpener) { w.open = open }

// Render executes one task: crop/resample the tile footprint, write it
// to a scratch file invisible under the canonical path, optionally
// post-process, then promote with an atomic rename. Concurrent readers
// and racing redeliveries of the same task only ever observe either no
// file or a complete tile.
func (w *Worker) Render(ctx context.Context, task queue.Task) error {
	src, err := w.source(task.InputPath, task.SourceSRS)
	if err != nil {
		return fmt.Errorf("%w: %s: opening source: %v", ErrRender, task.Coordinate(), err)
	}

	m := tile.NewMercator(task.TileSize)
	footprint := m.TileBounds(task.Coordinate())

	img, err := src.RenderTile(ctx, footprint, task.TileSize, w.resampler)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRender, task.Coordinate(), err)
	}

	final := task.OutputPath()
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRender, task.Coordinate(), err)
	}

	// Scratch file in the destination directory so the rename below
	// stays within one filesystem. It keeps the real image extension:
	// the png quantizers derive their in-place output name from it.
	scratch := filepath.Join(filepath.Dir(final), "."+uuid.NewString()+".tmp."+task.Format.Ext())
	if err := w.encode(scratch, img, task.Format); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("%w: %s: %v", ErrRender, task.Coordinate(), err)
	}

	if w.optimize && task.Format == tile.FormatPNG {
		if err := optimizePNG(ctx, scratch); err != nil {
			w.logger.Printf("optimize %s: %v (keeping unoptimized tile)", task.Coordinate(), err)
		}
	}

	if err := os.Rename(scratch, final); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("%w: %s: promoting tile: %v", ErrRender, task.Coordinate(), err)
	}
	return nil
}

func (w *Worker) source(path, srs string) (raster.Source, error) {
	key := path + "\x00" + srs
	w.mu.Lock()
	defer w.mu.Unlock()
	if src, ok := w.sources[key]; ok {
		return src, nil
	}
	src, err := w.open(path, srs)
	if err != nil {
		return nil, err
	}
	w.sources[key] = src
	return src, nil
}

func (w *Worker) encode(path string, img image.Image, format tile.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch format {
	case tile.FormatGIF:
		err = gif.Encode(f, img, nil)
	case tile.FormatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

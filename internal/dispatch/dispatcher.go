// Package dispatch plans a tile pyramid over an input raster and fans
// the per-tile render work out onto a task channel.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/tilefan/tilefan/internal/pyramid"
	"github.com/tilefan/tilefan/internal/queue"
	"github.com/tilefan/tilefan/internal/raster"
	"github.com/tilefan/tilefan/pkg/tile"
)

// Config is the run configuration consumed by the dispatcher. It is a
// plain value; nothing mutates it once the dispatcher starts.
type Config struct {
	// InputPath is the absolute path of the input raster on shared
	// storage.
	InputPath string
	// OutputRoot is the absolute directory tiles are written under.
	OutputRoot string
	Resume     bool
	DryRun     bool
	Format     tile.Format
	TileSize   int
	// SRS overrides the spatial reference declared by the input.
	SRS string
	// Resampling names the algorithm workers resample with.
	Resampling string
}

// Counts summarizes a dispatch run.
type Counts struct {
	TilesPlanned       int `json:"tiles_planned"`
	TasksSubmitted     int `json:"tasks_submitted"`
	TasksSkippedResume int `json:"tasks_skipped_resume"`
}

// Dispatcher walks every (zoom, coordinate) pair of a planned pyramid
// and submits one self-contained render task per tile that still needs
// rendering. Enumeration is sequential and deterministic.
type Dispatcher struct {
	cfg    Config
	spec   pyramid.Spec
	bounds tile.BoundingBox
	queue  queue.Submitter
	ledger *Ledger
	logger *log.Logger

	mu     sync.Mutex
	counts Counts
}

// New validates the input raster, plans the pyramid and returns a
// dispatcher ready to run. Validation and planning failures surface as
// ErrValidation and pyramid.ErrDegenerateExtent respectively; in both
// cases nothing has been dispatched.
func New(cfg Config, src raster.Source, q queue.Submitter, logger *log.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if !filepath.IsAbs(cfg.InputPath) {
		return nil, validationf("input path %q is not absolute", cfg.InputPath)
	}
	if !filepath.IsAbs(cfg.OutputRoot) {
		return nil, validationf("output root %q is not absolute", cfg.OutputRoot)
	}

	bounds := src.Bounds()
	if !bounds.Valid() {
		return nil, validationf("input raster has a degenerate bounding box")
	}

	spec, err := pyramid.Plan(bounds, src.Resolution(), cfg.TileSize, cfg.Format)
	if err != nil {
		return nil, err
	}

	m := tile.NewMercator(spec.TileSize)
	minLat, minLon := m.MetersToLatLon(bounds.MinX, bounds.MinY)
	maxLat, maxLon := m.MetersToLatLon(bounds.MaxX, bounds.MaxY)
	logger.Printf("bounds (projected): minX:%.3f minY:%.3f maxX:%.3f maxY:%.3f",
		bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	logger.Printf("bounds (latlon): %.6f,%.6f to %.6f,%.6f", minLat, minLon, maxLat, maxLon)
	logger.Printf("zoom levels: %d to %d (res %.6f to %.6f)",
		spec.MinZoom, spec.MaxZoom, m.Resolution(spec.MinZoom), m.Resolution(spec.MaxZoom))
	for z := spec.MinZoom; z <= spec.MaxZoom; z++ {
		logger.Printf("tiles at zoom %d: %d", z, tile.GridAt(m, bounds, z).Size())
	}

	return &Dispatcher{
		cfg:    cfg,
		spec:   spec,
		bounds: bounds,
		queue:  q,
		ledger: NewLedger(),
		logger: logger,
	}, nil
}

// Spec returns the planned pyramid.
func (d *Dispatcher) Spec() pyramid.Spec { return d.spec }

// SetQueue replaces the task channel. It must be called before Run;
// a dispatcher without a queue can only dry-run.
func (d *Dispatcher) SetQueue(q queue.Submitter) { d.queue = q }

// Ledger returns the per-tile status read model of this run.
func (d *Dispatcher) Ledger() *Ledger { return d.ledger }

// Counts returns a snapshot of the running totals. It is safe to call
// concurrently while Run is in progress; the status server polls it.
func (d *Dispatcher) Counts() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}

func (d *Dispatcher) add(delta Counts) {
	d.mu.Lock()
	d.counts.TilesPlanned += delta.TilesPlanned
	d.counts.TasksSubmitted += delta.TasksSubmitted
	d.counts.TasksSkippedResume += delta.TasksSkippedResume
	d.mu.Unlock()
}

// Run enumerates all tiles, deepest zoom first, and submits tasks.
// When resume is on, tiles whose output file already exists and is
// non-empty are skipped; existence is the whole check, the content is
// trusted as-is. When dry-run is on, nothing is written or submitted
// and only counts are gathered. A mid-walk failure aborts further
// submission and returns partial counts with ErrDispatchAbort.
func (d *Dispatcher) Run(ctx context.Context) (Counts, error) {
	d.mu.Lock()
	d.counts = Counts{}
	d.mu.Unlock()

	if !d.cfg.DryRun {
		if d.queue == nil {
			return Counts{}, validationf("no task channel configured")
		}
		if err := d.prepareOutput(); err != nil {
			return Counts{}, err
		}
	}

	m := tile.NewMercator(d.spec.TileSize)
	for z := d.spec.MaxZoom; z >= d.spec.MinZoom; z-- {
		// Fail fast if the input raster has vanished: dispatching
		// against an input no worker can read is unsafe. A dry run
		// touches the filesystem for resume checks only.
		if !d.cfg.DryRun {
			if st, err := os.Stat(d.cfg.InputPath); err != nil || st.IsDir() {
				return d.Counts(), abortf("input raster %s became unreadable at zoom %d: %v", d.cfg.InputPath, z, err)
			}
		}

		grid := tile.GridAt(m, d.bounds, z)
		for c := range grid.Coordinates() {
			if err := ctx.Err(); err != nil {
				return d.Counts(), abortf("cancelled at %s: %v", c, err)
			}
			d.add(Counts{TilesPlanned: 1})

			path := tile.Path(d.cfg.OutputRoot, c, d.spec.Format)
			if d.cfg.Resume && outputExists(path) {
				d.add(Counts{TasksSkippedResume: 1})
				d.ledger.Mark(c, StateDone)
				continue
			}

			if d.cfg.DryRun {
				d.ledger.Mark(c, StatePending)
				continue
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return d.Counts(), abortf("output root became unwritable at %s: %v", c, err)
			}

			task := queue.Task{
				InputPath:  d.cfg.InputPath,
				Zoom:       c.Zoom,
				X:          c.X,
				Y:          c.Y,
				TileSize:   d.spec.TileSize,
				Format:     d.spec.Format,
				SourceSRS:  d.cfg.SRS,
				OutputRoot: d.cfg.OutputRoot,
			}
			d.ledger.Mark(c, StatePending)
			if err := d.queue.Submit(ctx, task); err != nil {
				return d.Counts(), abortf("submitting %s: %v", c, err)
			}
			d.ledger.Mark(c, StateSubmitted)
			d.add(Counts{TasksSubmitted: 1})
		}
	}

	counts := d.Counts()
	d.logger.Printf("dispatch complete: %d planned, %d submitted, %d skipped (resume)",
		counts.TilesPlanned, counts.TasksSubmitted, counts.TasksSkippedResume)
	return counts, nil
}

// prepareOutput creates the output root, refusing to reuse an existing
// directory unless resume is enabled.
func (d *Dispatcher) prepareOutput() error {
	if st, err := os.Stat(d.cfg.OutputRoot); err == nil {
		if !st.IsDir() {
			return validationf("output %s exists and is not a directory", d.cfg.OutputRoot)
		}
		if !d.cfg.Resume {
			return validationf("output %s already exists and resume is not enabled", d.cfg.OutputRoot)
		}
		return nil
	}
	if err := os.MkdirAll(d.cfg.OutputRoot, 0o755); err != nil {
		return validationf("cannot create output %s: %v", d.cfg.OutputRoot, err)
	}
	return nil
}

// outputExists implements the resume fast path: a tile is considered
// rendered when its file exists and is non-empty.
func outputExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}

// DefaultOutputRoot returns the conventional output directory for an
// input raster: the input path with its extension replaced by .tiles.
func DefaultOutputRoot(inputPath string) (string, error) {
	ext := filepath.Ext(inputPath)
	root := inputPath[:len(inputPath)-len(ext)] + ".tiles"
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving output root: %w", err)
	}
	return abs, nil
}

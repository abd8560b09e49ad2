// Package queue carries self-contained render tasks between the
// dispatcher and an unbounded pool of workers with at-least-once
// delivery. Two transports exist: an in-process channel for
// single-node runs and a shared-filesystem spool for distributed ones.
package queue

import (
	"context"
	"errors"

	"github.com/tilefan/tilefan/pkg/tile"
)

// ErrClosed is returned once a queue accepts no further submissions
// or deliveries.
var ErrClosed = errors.New("queue closed")

// Task is one self-describing render unit. It carries every value a
// worker needs; all paths are absolute and no worker ever resolves a
// relative path. A task may be delivered more than once and must stay
// safe to replay.
type Task struct {
	InputPath  string      `json:"input_path"`
	Zoom       int         `json:"zoom"`
	X          int         `json:"x"`
	Y          int         `json:"y"`
	TileSize   int         `json:"tile_size"`
	Format     tile.Format `json:"format"`
	SourceSRS  string      `json:"source_srs"`
	OutputRoot string      `json:"output_root"`
}

// Coordinate returns the tile the task renders.
func (t Task) Coordinate() tile.Coordinate {
	return tile.Coordinate{Zoom: t.Zoom, X: t.X, Y: t.Y}
}

// OutputPath returns the canonical tile location the task will
// eventually be promoted to.
func (t Task) OutputPath() string {
	return tile.Path(t.OutputRoot, t.Coordinate(), t.Format)
}

// Submitter is the dispatcher's side of the task channel. Submit may
// block for backpressure imposed by the transport.
type Submitter interface {
	Submit(ctx context.Context, t Task) error
}

// Delivery is one received task plus its acknowledgement handles.
type Delivery struct {
	Task Task

	// Ack marks the task done; the transport will not redeliver it.
	Ack func() error
	// Requeue returns the task for redelivery, e.g. after a worker
	// failure that a retry might resolve.
	Requeue func() error
}

// Consumer is the worker's side of the task channel. Receive blocks
// until a task is available, the context is cancelled, or the queue is
// closed (ErrClosed).
type Consumer interface {
	Receive(ctx context.Context) (Delivery, error)
}

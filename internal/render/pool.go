package render

import (
	"context"
	"errors"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/tilefan/tilefan/internal/queue"
	"github.com/tilefan/tilefan/pkg/tile"
)

// Pool runs a fixed number of workers against a task channel. Workers
// coordinate through nothing but the output filesystem; a render
// failure is isolated to its task and never stops the pool.
type Pool struct {
	Size     int
	Consumer queue.Consumer
	Worker   *Worker
	Logger   *log.Logger

	// OnDone and OnFailed, when set, receive per-task outcomes. The
	// dispatch ledger hooks in here on single-node runs.
	OnDone   func(tile.Coordinate)
	OnFailed func(tile.Coordinate)
}

// Run consumes tasks until the channel closes or the context is
// cancelled. Failed tasks are acknowledged rather than requeued:
// retry policy belongs to the task channel, not the worker.
func (p *Pool) Run(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	size := p.Size
	if size < 1 {
		size = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			for {
				d, err := p.Consumer.Receive(ctx)
				if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}

				c := d.Task.Coordinate()
				if rerr := p.Worker.Render(ctx, d.Task); rerr != nil {
					logger.Printf("%v", rerr)
					if p.OnFailed != nil {
						p.OnFailed(c)
					}
				} else if p.OnDone != nil {
					p.OnDone(c)
				}
				if aerr := d.Ack(); aerr != nil {
					logger.Printf("ack %s: %v", c, aerr)
				}
			}
		})
	}
	return g.Wait()
}

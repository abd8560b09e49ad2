package cmd

import (
	"context"
	"log"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tilefan/tilefan/internal/queue"
	"github.com/tilefan/tilefan/internal/raster"
	"github.com/tilefan/tilefan/internal/render"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Render tiles from a shared task spool",
	Long: `Run a pool of render workers against a shared spool directory.

Workers claim tasks from the spool, render the tile they describe and
promote it atomically into the output tree carried by the task. Any
number of worker processes, on any number of hosts, may drain the same
spool as long as they share the filesystem holding the spool, the
input raster and the output tree.

Examples:
  # Drain a spool with one worker per CPU
  tilefan worker --spool /shared/spool

  # Fewer workers, cubic resampling, optimized PNG output
  tilefan worker --spool /shared/spool --workers 2 -r cubic --optimize`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("spool", "", "shared spool directory to consume tasks from (required)")
	workerCmd.Flags().Int("workers", runtime.NumCPU(), "number of concurrent render workers")
	workerCmd.Flags().StringP("resampling", "r", "near", "resampling algorithm (near|bilinear|approxbilinear|cubic)")
	workerCmd.Flags().Bool("optimize", false, "post-process PNG tiles with an external quantizer")
	workerCmd.Flags().Duration("stale-after", 10*time.Minute, "requeue tasks claimed longer than this (crashed workers)")
	workerCmd.MarkFlagRequired("spool")

	viper.BindPFlag("worker.spool", workerCmd.Flags().Lookup("spool"))
	viper.BindPFlag("worker.workers", workerCmd.Flags().Lookup("workers"))
	viper.BindPFlag("worker.resampling", workerCmd.Flags().Lookup("resampling"))
	viper.BindPFlag("worker.optimize", workerCmd.Flags().Lookup("optimize"))
	viper.BindPFlag("worker.stale-after", workerCmd.Flags().Lookup("stale-after"))
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	resampler, err := raster.ParseResampler(viper.GetString("worker.resampling"))
	if err != nil {
		return err
	}

	spool, err := queue.OpenSpool(viper.GetString("worker.spool"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Return tasks orphaned by crashed workers, now and periodically.
	staleAfter := viper.GetDuration("worker.stale-after")
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if n, err := spool.RecoverStale(staleAfter); err == nil && n > 0 {
		logger.Printf("requeued %d stale task(s)", n)
	}
	go func() {
		ticker := time.NewTicker(staleAfter / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := spool.RecoverStale(staleAfter); err == nil && n > 0 {
					logger.Printf("requeued %d stale task(s)", n)
				}
			}
		}
	}()

	pool := &render.Pool{
		Size:     viper.GetInt("worker.workers"),
		Consumer: spool,
		Worker:   render.NewWorker(resampler, viper.GetBool("worker.optimize"), logger),
		Logger:   logger,
	}

	logger.Printf("worker pool started (%d workers), consuming %s", pool.Size, viper.GetString("worker.spool"))
	return pool.Run(ctx)
}

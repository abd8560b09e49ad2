package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tilefan/tilefan/internal/dispatch"
	"github.com/tilefan/tilefan/internal/queue"
	"github.com/tilefan/tilefan/internal/raster"
	"github.com/tilefan/tilefan/internal/render"
	"github.com/tilefan/tilefan/internal/server"
	"github.com/tilefan/tilefan/pkg/tile"
)

const version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilefan [flags] <input>",
	Short: "Render a raster into a TMS tile pyramid across distributed workers",
	Long: `tilefan plans a TMS tile pyramid over a geo-referenced raster and fans
the per-tile render work out over a pool of workers.

The input must be a world-file-georeferenced image (PNG, JPEG, GIF or
TIFF) in Spherical Mercator, reachable by the same absolute path from
every worker. Tiles are written as <output>/<zoom>/<x>/<y>.<ext>.

Examples:
  # Render a raster into PNG tiles next to the input
  tilefan /data/ortho.png

  # Resume an interrupted run, skipping existing tiles
  tilefan --resume -o /data/ortho.tiles /data/ortho.png

  # Count the tasks a run would produce, without rendering anything
  tilefan --dry-run /data/ortho.png

  # JPEG tiles at 512px with bilinear resampling
  tilefan -f JPEG -t 512 -r bilinear /data/ortho.png

  # Fan tasks out to a shared spool for remote workers
  tilefan --spool /shared/spool /data/ortho.png
  tilefan worker --spool /shared/spool`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runRender(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tilefan.yaml)")

	// Run options
	rootCmd.Flags().StringP("output", "o", "", "directory where generated tiles are stored (default: <input>.tiles)")
	rootCmd.Flags().BoolP("resume", "e", false, "resume tile generation, omitting already existing tiles")
	rootCmd.Flags().BoolP("dry-run", "n", false, "only validate the input and count the necessary tasks")
	rootCmd.Flags().StringP("format", "f", "PNG", "output format for tile images (PNG|GIF|JPEG)")
	rootCmd.Flags().IntP("tilesize", "t", 256, "size (quadratic) for each tile image in pixels")
	rootCmd.Flags().StringP("srs", "s", "", "spatial reference of the input raster")
	rootCmd.Flags().StringP("resampling", "r", "near", "resampling algorithm (near|bilinear|approxbilinear|cubic)")

	// Execution options
	rootCmd.Flags().Int("workers", runtime.NumCPU(), "number of local render workers")
	rootCmd.Flags().String("spool", "", "submit tasks to a shared spool directory instead of rendering locally")
	rootCmd.Flags().Bool("optimize", false, "post-process PNG tiles with an external quantizer")
	rootCmd.Flags().String("status-addr", "", "serve run status over HTTP on this address")

	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("resume", rootCmd.Flags().Lookup("resume"))
	viper.BindPFlag("dry-run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("tilesize", rootCmd.Flags().Lookup("tilesize"))
	viper.BindPFlag("srs", rootCmd.Flags().Lookup("srs"))
	viper.BindPFlag("resampling", rootCmd.Flags().Lookup("resampling"))
	viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("spool", rootCmd.Flags().Lookup("spool"))
	viper.BindPFlag("optimize", rootCmd.Flags().Lookup("optimize"))
	viper.BindPFlag("status-addr", rootCmd.Flags().Lookup("status-addr"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tilefan" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tilefan")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	format, err := tile.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}
	resampler, err := raster.ParseResampler(viper.GetString("resampling"))
	if err != nil {
		return err
	}

	output := viper.GetString("output")
	if output == "" {
		if output, err = dispatch.DefaultOutputRoot(input); err != nil {
			return err
		}
		logger.Printf("No output specified, using %s", output)
	} else if output, err = filepath.Abs(output); err != nil {
		return err
	}

	src, err := raster.Open(input, viper.GetString("srs"))
	if err != nil {
		return fmt.Errorf("%w: %v", dispatch.ErrValidation, err)
	}
	logger.Printf("Input file: %s (%s)", input, src.SRS())

	cfg := dispatch.Config{
		InputPath:  input,
		OutputRoot: output,
		Resume:     viper.GetBool("resume"),
		DryRun:     viper.GetBool("dry-run"),
		Format:     format,
		TileSize:   viper.GetInt("tilesize"),
		SRS:        src.SRS(),
		Resampling: resampler.Name,
	}

	d, err := dispatch.New(cfg, src, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := viper.GetString("status-addr"); addr != "" {
		// d.Counts is a live snapshot; /status tracks the run as it goes.
		startStatusServer(addr, d.Counts, d.Ledger(), logger)
	}

	counts, err := runDispatch(ctx, d, src, resampler, logger)

	report := "Run complete"
	if cfg.DryRun {
		report = "Dry run complete"
	}
	logger.Printf("%s: %d tiles planned, %d tasks submitted, %d skipped (resume)",
		report, counts.TilesPlanned, counts.TasksSubmitted, counts.TasksSkippedResume)
	return err
}

// runDispatch wires the dispatcher to a task channel. With a spool
// configured, tasks are handed to remote workers; otherwise a local
// worker pool drains an in-process queue while the dispatcher fills it.
func runDispatch(ctx context.Context, d *dispatch.Dispatcher, src *raster.ImageSource, resampler raster.Resampler, logger *log.Logger) (dispatch.Counts, error) {
	if viper.GetBool("dry-run") {
		// Nothing is submitted; no queue to wire.
		return d.Run(ctx)
	}

	if spoolDir := viper.GetString("spool"); spoolDir != "" {
		spool, err := queue.OpenSpool(spoolDir)
		if err != nil {
			return dispatch.Counts{}, err
		}
		d.SetQueue(spool)
		return d.Run(ctx)
	}

	mem := queue.NewMemory(viper.GetInt("workers") * 2)
	d.SetQueue(mem)

	worker := render.NewWorker(resampler, viper.GetBool("optimize"), logger)
	// The input is already decoded; let local workers share it.
	worker.SetOpener(func(path, srs string) (raster.Source, error) {
		if path == src.Path() {
			return src, nil
		}
		return raster.Open(path, srs)
	})

	ledger := d.Ledger()
	pool := &render.Pool{
		Size:     viper.GetInt("workers"),
		Consumer: mem,
		Worker:   worker,
		Logger:   logger,
		OnDone:   func(c tile.Coordinate) { ledger.Mark(c, dispatch.StateDone) },
		OnFailed: func(c tile.Coordinate) { ledger.Mark(c, dispatch.StateFailed) },
	}

	poolErr := make(chan error, 1)
	go func() { poolErr <- pool.Run(ctx) }()

	counts, err := d.Run(ctx)
	mem.Close()
	if perr := <-poolErr; err == nil {
		err = perr
	}
	return counts, err
}

func startStatusServer(addr string, counts func() dispatch.Counts, ledger *dispatch.Ledger, logger *log.Logger) {
	srv := server.New(version, counts, ledger)
	logger.Printf("Serving run status on http://%s/status", addr)
	go func() {
		if err := http.ListenAndServe(addr, srv.Router()); err != nil {
			logger.Printf("status server: %v", err)
		}
	}()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/config"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/dates"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/exitcode"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/grid"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/progress"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/series"
)

// pipeline is the part of series.Service the commands drive.
type pipeline interface {
	BuildOne(ctx context.Context, date dates.Spec, opts series.Options) (*series.Result, error)
	BuildRange(ctx context.Context, start, finish dates.Spec, opts series.Options) ([]*series.Result, error)
}

type latestResolver interface {
	ResolveLatest(ctx context.Context) (time.Time, error)
}

// app is everything a command needs once configuration has been applied.
type app struct {
	pipeline pipeline
	latest   latestResolver
	progress progress.Sink
	close    func()
}

// cliOptions collects flag values shared by all commands.
type cliOptions struct {
	level       int
	scale       int
	band        string
	retries     int
	concurrency int
	sequential  bool
	prefix      string
	name        string
	runID       string
	output      string
	increment   time.Duration
	progress    bool
	verbose     bool

	// resolved from the raw flags by seriesOptions
	opts series.Options
}

// wireFunc builds the app for one command invocation.
type wireFunc func(ctx context.Context, o *cliOptions, stderr io.Writer) (*app, error)

func main() {
	// Create a cancellable context (for graceful shutdown)
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, wireServices)
	cancel()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, wire wireFunc) int {
	root := newRootCmd(stdout, stderr, wire)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		slog.Error("application error", "error", err, "exit_code", code)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return code
	}
	return exitcode.Success
}

func newRootCmd(stdout, stderr io.Writer, wire wireFunc) *cobra.Command {
	o := &cliOptions{}

	root := &cobra.Command{
		Use:   "himawari",
		Short: "Download full-disk Himawari imagery and assemble it from tiles",
		Long: `himawari fetches the tile grid published for a timestamp, stitches the
tiles into one image and stores it in the configured sink (a local
directory or a MinIO bucket).

Dates are UTC and accept most common layouts ("2021-01-01 00:10",
"2021-01-01T00:10:00Z", "Jan 1 2021 00:10"). Omit a date, or pass
"latest", for the newest published image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if o.verbose {
				level = slog.LevelDebug
			}
			// Configure the global logger; stdout carries the stored keys
			slog.SetDefault(slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})))

			opts, err := o.seriesOptions()
			if err != nil {
				return err
			}
			o.opts = opts
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	defaults := series.DefaultOptions()
	flags := root.PersistentFlags()
	flags.IntVar(&o.level, "level", int(defaults.Level), "grid level: 1, 2, 4, 8, 16 or 20 tiles per side")
	flags.IntVar(&o.scale, "scale", defaults.Scale, "edge length of each tile in the output, in pixels")
	flags.StringVar(&o.band, "band", defaults.Band.String(), "RGB for true color, or a spectral channel 1-16 (e.g. B13)")
	flags.IntVar(&o.retries, "retries", defaults.Retries, "attempts per request before giving up")
	flags.IntVar(&o.concurrency, "concurrency", 0, "parallel tile downloads (0 = one per tile)")
	flags.BoolVar(&o.sequential, "sequential", false, "download tiles one at a time")
	flags.StringVar(&o.prefix, "prefix", defaults.Prefix, "value substituted for {prefix} in --name")
	flags.StringVar(&o.name, "name", defaults.NameTemplate, "file name template; {prefix} and {date} are substituted")
	flags.StringVar(&o.runID, "run-id", "", "run identifier recorded with each composite (UUIDv7, generated if empty)")
	flags.StringVar(&o.output, "output", "", "output directory for the file sink (overrides HIMAWARI_OUTPUT_DIR)")
	flags.BoolVar(&o.progress, "progress", false, "show download progress on stderr")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newImageCmd(stdout, stderr, o, wire),
		newSeriesCmd(stdout, stderr, o, wire),
		newLatestCmd(stdout, stderr, o, wire),
	)
	return root
}

func newImageCmd(stdout, stderr io.Writer, o *cliOptions, wire wireFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "image [DATE]",
		Short: "Build and store the composite for one timestamp",
		Example: `  himawari image
  himawari image "2021-01-01 00:10" --level 8 --scale 275
  himawari image latest --band B13`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := dates.Latest()
			if len(args) == 1 {
				date = dates.Text(args[0])
			}

			a, err := wire(cmd.Context(), o, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.pipeline.BuildOne(cmd.Context(), date, o.opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, result.Key)
			return nil
		},
	}
}

func newSeriesCmd(stdout, stderr io.Writer, o *cliOptions, wire wireFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series START END",
		Short: "Build and store one composite per publication step between two dates",
		Long: `series aligns START down to the publication cadence and stores one
composite every --increment until END. Images are built one after another;
the first failure stops the series.`,
		Example: `  himawari series "2021-01-01 00:00" "2021-01-01 06:00" --increment 1h`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context(), o, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.pipeline.BuildRange(cmd.Context(), dates.Text(args[0]), dates.Text(args[1]), o.opts)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintln(stdout, r.Key)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&o.increment, "increment", addressing.DefaultIncrement, "step between images (whole minutes)")
	return cmd
}

func newLatestCmd(stdout, stderr io.Writer, o *cliOptions, wire wireFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the timestamp of the newest published image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context(), o, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			ts, err := a.latest.ResolveLatest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, ts.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

// seriesOptions validates the raw flags. Every CLI composite is saved.
func (o *cliOptions) seriesOptions() (series.Options, error) {
	band, err := model.ParseBand(o.band)
	if err != nil {
		return series.Options{}, err
	}
	increment := o.increment
	if increment == 0 {
		increment = addressing.DefaultIncrement
	}

	opts := series.Options{
		Level:        model.GridLevel(o.level),
		Scale:        o.scale,
		Band:         band,
		Retries:      o.retries,
		Concurrency:  o.concurrency,
		Sequential:   o.sequential,
		Save:         true,
		Prefix:       o.prefix,
		NameTemplate: o.name,
		Increment:    increment,
	}
	if o.runID != "" {
		if err := model.RunID(o.runID).Validate(); err != nil {
			return series.Options{}, err
		}
	}
	return opts, opts.Validate()
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var (
		missing     *config.ErrMissingRequiredEnvVar
		badVar      *config.ErrInvalidEnvVar
		invalid     *model.InvalidInputError
		rangeErr    *dates.RangeError
		unavailable *dates.UnavailableError
		gridErr     *grid.GridFetchError
		persistErr  *series.PersistError
		setupErr    *setupError
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &badVar):
		return exitcode.ConfigError
	case errors.As(err, &invalid), errors.As(err, &rangeErr):
		return exitcode.DataError
	case errors.As(err, &unavailable):
		return exitcode.NetworkError
	case errors.As(err, &gridErr):
		return exitcode.APIError
	case errors.As(err, &persistErr):
		return exitcode.StorageError
	case errors.As(err, &setupErr):
		return setupErr.code
	default:
		return exitcode.ApplicationError
	}
}

// Command pointerseed loads document pointers from a JSON file into a sandbox
// pointer table.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jacentio/pointers/ddb"
	"github.com/jacentio/pointers/instrument"
	"github.com/jacentio/pointers/seed"
	"github.com/jacentio/pointers/store"
)

// options holds the command line flags.
type options struct {
	ConfigPath      string
	DataFile        string
	FunctionName    string
	MetricsTextfile string
	DryRun          bool
	Verbose         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pointerseed:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pointerseed",
		Short: "Seed document pointers into a sandbox table",
		Long: `Seed document pointers into a sandbox pointer table.

Seeding refuses to run unless the function name, the environment and the
table prefix all contain "sandbox". Pointers that already exist are left
unchanged, so the command can be rerun.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&opts.DataFile, "data", "", "JSON data file (overrides config)")
	cmd.Flags().StringVar(&opts.FunctionName, "function-name", "", "name checked by the sandbox safeguard (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the data file without writing")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every operation")

	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	cfg := seed.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = seed.LoadConfig(opts.ConfigPath); err != nil {
			return err
		}
	}
	if opts.DataFile != "" {
		cfg.DataFile = opts.DataFile
	}
	if opts.FunctionName != "" {
		cfg.FunctionName = opts.FunctionName
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := seed.Safeguard(cfg.FunctionName, cfg.Environment, cfg.Prefix); err != nil {
		return err
	}
	logger.Info("sandbox environment confirmed",
		"functionName", cfg.FunctionName,
		"environment", cfg.Environment,
		"prefix", cfg.Prefix,
	)

	records, err := seed.ReadRecordsFile(cfg.DataFile)
	if err != nil {
		return err
	}
	if opts.DryRun {
		fmt.Fprintf(stdout, "%d records valid\n", len(records))
		return nil
	}

	client, err := ddb.NewClient(ctx, ddb.Options{
		Region:      cfg.AWS.Region,
		Profile:     cfg.AWS.Profile,
		Endpoint:    cfg.AWS.Endpoint,
		MaxAttempts: cfg.AWS.MaxAttempts,
	})
	if err != nil {
		return err
	}

	storeCfg := store.DefaultConfig()
	storeCfg.EnvironmentPrefix = cfg.Prefix
	if cfg.CreateTable {
		if err := ddb.CreateTable(ctx, client, storeCfg, 2*time.Minute); err != nil {
			return err
		}
		logger.Info("table created", "table", storeCfg.QualifiedTableName())
	}

	limited := ddb.RateLimited(client, ddb.NewWriteLimiter(cfg.AWS.WritesPerSecond))
	repo := instrument.WithLogging(store.New(limited, storeCfg), logger)

	var registry *prometheus.Registry
	if opts.MetricsTextfile != "" {
		registry = prometheus.NewRegistry()
		repo = instrument.WithMetrics(repo, instrument.NewMetrics(registry))
	}

	res, runErr := seed.NewSeeder(repo, logger, cfg.Concurrency).Run(ctx, records)
	fmt.Fprintf(stdout, "created %d, existing %d\n", res.Created, res.Existing)

	if registry != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsTextfile, registry); err != nil {
			logger.Warn("failed to write metrics", "path", opts.MetricsTextfile, "error", err)
		}
	}
	return runErr
}

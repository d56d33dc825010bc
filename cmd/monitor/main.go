package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nauj93x/MoniSenso/internal/domain/pipeline"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/config"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/logging"
	"github.com/Nauj93x/MoniSenso/internal/infrastructure/monitoring"
)

type flags struct {
	configFile      string
	buffer          int
	temperatureFile string
	phFile          string
	pipe            string
	grace           time.Duration
	strict          bool
	opsAddr         string
	dev             bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(runFn func(context.Context, *config.Config) error) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor pH and temperature readings arriving on a named pipe",
		Long: `monitor reads sensor readings from a named pipe. Integer readings are
temperatures and go to the temperature file; decimal readings are pH values
and go to the pH file. Values on or beyond a normal range raise an alert.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}
			return runFn(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	// -h is the pH file, so help is long-form only.
	fs.Bool("help", false, "help for monitor")
	fs.StringVar(&f.configFile, "config", "", "config file (.yaml, .yml or .toml)")
	fs.IntVarP(&f.buffer, "buffer", "b", 0, "capacity of each reading queue")
	fs.StringVarP(&f.temperatureFile, "temperature-file", "t", "", "temperature output file")
	fs.StringVarP(&f.phFile, "ph-file", "h", "", "pH output file")
	fs.StringVarP(&f.pipe, "pipe", "p", "", "named pipe path")
	fs.DurationVar(&f.grace, "grace", 0, "wait after the sensor disconnects")
	fs.BoolVar(&f.strict, "strict", false, "accept plain decimal pH values only")
	fs.StringVar(&f.opsAddr, "ops-addr", "", "health and metrics listen address")
	fs.BoolVar(&f.dev, "dev", false, "development logging")

	return cmd
}

// buildConfig layers changed flags over file and environment configuration.
func buildConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("buffer") {
		cfg.Queue.Capacity = f.buffer
	}
	if fs.Changed("temperature-file") {
		cfg.Sinks.Temperature = f.temperatureFile
	}
	if fs.Changed("ph-file") {
		cfg.Sinks.PH = f.phFile
	}
	if fs.Changed("pipe") {
		cfg.Channel.Path = f.pipe
	}
	if fs.Changed("grace") {
		cfg.Channel.Grace = f.grace
	}
	if fs.Changed("strict") {
		cfg.Classifier.Strict = f.strict
	}
	if fs.Changed("ops-addr") {
		cfg.Ops.Address = f.opsAddr
	}
	if fs.Changed("dev") {
		cfg.Logging.Development = f.dev
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	coord := pipeline.New(*cfg, logger, metrics)
	err = coord.Run(ctx)
	for _, s := range coord.Summaries() {
		logger.Info("Run summary",
			zap.String("class", s.Class),
			zap.Int("count", s.Count),
			zap.Int("alerts", s.Alerts),
		)
	}
	if pipeline.IsShutdown(err) {
		logger.Info("Monitor stopped by signal")
		return nil
	}
	return err
}
